package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/clock"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	historyrepository "github.com/smallbiznis/fieldops/internal/history/repository"
	historyservice "github.com/smallbiznis/fieldops/internal/history/service"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	notificationrepository "github.com/smallbiznis/fieldops/internal/notification/repository"
	notificationservice "github.com/smallbiznis/fieldops/internal/notification/service"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	paymentdomain "github.com/smallbiznis/fieldops/internal/payment/domain"
	"github.com/smallbiznis/fieldops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type recordingPayments struct {
	paymentdomain.Service

	mu      sync.Mutex
	expired []snowflake.ID
}

func (p *recordingPayments) ExpireCheckout(_ context.Context, id snowflake.ID) (*paymentdomain.Payment, error) {
	p.mu.Lock()
	p.expired = append(p.expired, id)
	p.mu.Unlock()
	return &paymentdomain.Payment{ID: id, Status: paymentdomain.StatusFailed}, nil
}

type fixture struct {
	sched       *Scheduler
	db          *gorm.DB
	node        *snowflake.Node
	clock       *clock.FakeClock
	history     historydomain.Service
	payments    *recordingPayments
	broadcaster *testutil.RecordingBroadcaster
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	db := testutil.NewDB(t,
		&orderdomain.Order{},
		&paymentdomain.Payment{},
		&historydomain.Entry{},
		&notificationdomain.Notification{},
	)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(now)
	log := zap.NewNop()
	broadcaster := &testutil.RecordingBroadcaster{}

	f := &fixture{
		db:          db,
		node:        node,
		clock:       clk,
		payments:    &recordingPayments{},
		broadcaster: broadcaster,
	}
	f.history = historyservice.NewService(historyservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: historyrepository.Provide(), Broadcaster: broadcaster,
	})
	notifier := notificationservice.NewService(notificationservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: notificationrepository.Provide(), Broadcaster: broadcaster,
	})

	sched, err := New(Params{
		DB:       db,
		Log:      log,
		GenID:    node,
		Clock:    clk,
		Config:   cfg,
		Payments: f.payments,
		History:  f.history,
		Notifier: notifier,
	})
	require.NoError(t, err)
	f.sched = sched
	return f
}

func (f *fixture) order(t *testing.T, status orderdomain.Status, start time.Time, technician *snowflake.ID) *orderdomain.Order {
	t.Helper()
	order := &orderdomain.Order{
		ID:                   f.node.Generate(),
		Code:                 "SRV-" + f.node.Generate().String(),
		Customer:             orderdomain.CustomerSnapshot{Name: "Asha", Phone: "1", Address: "12 MG Road"},
		Currency:             "INR",
		ScheduledAt:          start,
		TimeWindowStart:      start,
		TimeWindowEnd:        start.Add(2 * time.Hour),
		Status:               status,
		PaymentStatus:        orderdomain.PaymentUnpaid,
		AssignedTechnicianID: technician,
		Source:               orderdomain.SourceAdmin,
		Version:              1,
		CreatedAt:            now.Add(-24 * time.Hour),
		UpdatedAt:            now.Add(-24 * time.Hour),
	}
	require.NoError(t, f.db.Create(order).Error)
	return order
}

func (f *fixture) payment(t *testing.T, method paymentdomain.Method, status paymentdomain.Status, age time.Duration) *paymentdomain.Payment {
	t.Helper()
	payment := &paymentdomain.Payment{
		ID:        f.node.Generate(),
		OrderID:   f.node.Generate(),
		Method:    method,
		Amount:    1500,
		Currency:  "INR",
		Status:    status,
		CreatedAt: now.Add(-age),
		UpdatedAt: now.Add(-age),
	}
	require.NoError(t, f.db.Create(payment).Error)
	return payment
}

func countEvents(events []string, want string) int {
	n := 0
	for _, e := range events {
		if e == want {
			n++
		}
	}
	return n
}

func TestUnassignedOrdersAreFlaggedOnce(t *testing.T) {
	f := newFixture(t, Config{UnassignedLead: 2 * time.Hour})
	ctx := context.Background()
	tech := snowflake.ID(500)

	soon := f.order(t, orderdomain.StatusNew, now.Add(time.Hour), nil)
	overdue := f.order(t, orderdomain.StatusPendingAssignment, now.Add(-time.Hour), nil)
	f.order(t, orderdomain.StatusNew, now.Add(48*time.Hour), nil)
	f.order(t, orderdomain.StatusAssigned, now.Add(time.Hour), &tech)
	f.order(t, orderdomain.StatusCancelled, now.Add(time.Hour), nil)

	require.NoError(t, f.sched.RunOnce(ctx))
	require.NoError(t, f.sched.RunOnce(ctx))

	for _, order := range []*orderdomain.Order{soon, overdue} {
		entries, err := f.history.List(ctx, order.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, historydomain.ActionAssignmentOverdue, entries[0].Action)
	}
	assert.Equal(t, 2, countEvents(f.broadcaster.Events("admins"), notificationdomain.EventOrderUnassigned))

	var flagged int64
	require.NoError(t, f.db.Model(&historydomain.Entry{}).Where("action = ?", historydomain.ActionAssignmentOverdue).Count(&flagged).Error)
	assert.Equal(t, int64(2), flagged)
}

func TestExpireCheckoutsPicksStaleOnlinePayments(t *testing.T) {
	f := newFixture(t, Config{CheckoutTTL: 30 * time.Minute})

	stale := f.payment(t, paymentdomain.MethodOnline, paymentdomain.StatusInitiated, time.Hour)
	f.payment(t, paymentdomain.MethodOnline, paymentdomain.StatusInitiated, 10*time.Minute)
	f.payment(t, paymentdomain.MethodCash, paymentdomain.StatusInitiated, time.Hour)
	f.payment(t, paymentdomain.MethodOnline, paymentdomain.StatusSuccess, time.Hour)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, []snowflake.ID{stale.ID}, f.payments.expired)
}

func TestEnabledJobsFilter(t *testing.T) {
	f := newFixture(t, Config{EnabledJobs: []string{"EXPIRE_CHECKOUTS"}})
	f.order(t, orderdomain.StatusNew, now.Add(time.Hour), nil)
	stale := f.payment(t, paymentdomain.MethodOnline, paymentdomain.StatusInitiated, time.Hour)

	require.NoError(t, f.sched.RunOnce(context.Background()))
	assert.Equal(t, []snowflake.ID{stale.ID}, f.payments.expired)
	assert.Zero(t, countEvents(f.broadcaster.Events("admins"), notificationdomain.EventOrderUnassigned))
}

func TestRunJobTreatsDeadlineAsSoft(t *testing.T) {
	f := newFixture(t, Config{JobTimeout: 5 * time.Millisecond})

	err := f.sched.runJob(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.NoError(t, err)

	boom := errors.New("boom")
	err = f.sched.runJob(context.Background(), "broken", func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "broken")
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
