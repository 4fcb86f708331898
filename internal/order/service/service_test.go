package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	calendarrepository "github.com/smallbiznis/fieldops/internal/calendar/repository"
	calendarservice "github.com/smallbiznis/fieldops/internal/calendar/service"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	customerdomain "github.com/smallbiznis/fieldops/internal/customer/domain"
	customerrepository "github.com/smallbiznis/fieldops/internal/customer/repository"
	customerservice "github.com/smallbiznis/fieldops/internal/customer/service"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	historyrepository "github.com/smallbiznis/fieldops/internal/history/repository"
	historyservice "github.com/smallbiznis/fieldops/internal/history/service"
	jobcarddomain "github.com/smallbiznis/fieldops/internal/jobcard/domain"
	jobcardrepository "github.com/smallbiznis/fieldops/internal/jobcard/repository"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	notificationrepository "github.com/smallbiznis/fieldops/internal/notification/repository"
	notificationservice "github.com/smallbiznis/fieldops/internal/notification/service"
	"github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/internal/order/repository"
	"github.com/smallbiznis/fieldops/internal/providers/email"
	"github.com/smallbiznis/fieldops/internal/storage"
	"github.com/smallbiznis/fieldops/internal/testutil"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"github.com/smallbiznis/fieldops/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	windowStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	techID      = snowflake.ID(500)
	admin       = actor.Actor{ID: 1, Role: actor.RoleAdmin}
	technician  = actor.Actor{ID: techID, Role: actor.RoleTechnician}
)

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func (m *memoryStorage) Upload(_ context.Context, folder, name, contentType string, body io.Reader, size int64) (storage.Object, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return storage.Object{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	key := fmt.Sprintf("%s/%d-%s", folder, len(m.objects), name)
	m.objects[key] = data
	return storage.Object{Key: key, ContentType: contentType, Size: size}, nil
}

func (m *memoryStorage) PresignGet(_ context.Context, key string) (string, error) {
	return "https://signed.example.com/" + key, nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type fixture struct {
	svc         *Service
	db          *gorm.DB
	clock       *clock.FakeClock
	customers   customerdomain.Service
	calendar    calendardomain.Service
	jobcards    jobcarddomain.Repository
	storage     *memoryStorage
	email       *testutil.RecordingEmail
	broadcaster *testutil.RecordingBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t,
		&domain.Order{},
		&jobcarddomain.JobCard{},
		&calendardomain.Entry{},
		&calendardomain.WeeklyHours{},
		&calendardomain.DayOverride{},
		&customerdomain.Customer{},
		&customerdomain.Address{},
		&historydomain.Entry{},
		&notificationdomain.Notification{},
	)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(windowStart.Add(-48 * time.Hour))
	log := zap.NewNop()
	broadcaster := &testutil.RecordingBroadcaster{}

	f := &fixture{
		db:          db,
		clock:       clk,
		jobcards:    jobcardrepository.Provide(),
		storage:     &memoryStorage{},
		email:       &testutil.RecordingEmail{},
		broadcaster: broadcaster,
		customers: customerservice.New(customerservice.Params{
			DB: db, Log: log, GenID: node, Clock: clk, Repo: customerrepository.Provide(),
		}),
		calendar: calendarservice.NewService(calendarservice.Params{
			DB: db, Log: log, GenID: node, Clock: clk, Repo: calendarrepository.Provide(),
		}),
	}
	f.svc = NewService(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Clock:     clk,
		Repo:      repository.Provide(),
		JobCards:  f.jobcards,
		Calendar:  f.calendar,
		Customers: f.customers,
		History: historyservice.NewService(historyservice.Params{
			DB: db, Log: log, GenID: node, Clock: clk, Repo: historyrepository.Provide(), Broadcaster: broadcaster,
		}),
		Notifier: notificationservice.NewService(notificationservice.Params{
			DB: db, Log: log, GenID: node, Clock: clk, Repo: notificationrepository.Provide(), Broadcaster: broadcaster,
		}),
		Storage: f.storage,
		Email:   f.email,
		Ops:     config.NewStaticOperationsConfigHolder(config.DefaultOperationsConfig()),
	}).(*Service)
	return f
}

func window(offset time.Duration) (*time.Time, *time.Time) {
	start := windowStart.Add(offset)
	end := start.Add(2 * time.Hour)
	return &start, &end
}

func (f *fixture) create(t *testing.T, a actor.Actor) *domain.Order {
	t.Helper()
	start, end := window(0)
	order, err := f.svc.Create(context.Background(), domain.CreateRequest{
		Actor: a,
		Customer: domain.CustomerSnapshot{
			Name:    "Asha",
			Phone:   "+91 98000 00000",
			Email:   "asha@example.com",
			Address: "12 MG Road, Bengaluru",
		},
		Services:        []domain.RequestedService{{Name: "AC service"}},
		EstimatedCost:   1000,
		TimeWindowStart: start,
		TimeWindowEnd:   end,
	})
	require.NoError(t, err)
	return order
}

// assign mimics what assignment leaves behind: technician fields, blocked
// calendar entries and an open job card.
func (f *fixture) assign(t *testing.T, order *domain.Order) *jobcarddomain.JobCard {
	t.Helper()
	ctx := context.Background()
	primary := techID
	order.AssignedTechnicianID = &primary
	order.AssignedTechnicianIDs = datatypes.JSONSlice[snowflake.ID]{primary}
	order.Status = domain.StatusAssigned
	require.NoError(t, f.svc.repo.Update(ctx, f.db, order, order.Version))
	require.NoError(t, f.calendar.Block(ctx, f.db, techID, order.ID, []calendardomain.Interval{
		{Start: order.TimeWindowStart, End: order.TimeWindowEnd},
	}))

	card := &jobcarddomain.JobCard{
		ID:             f.svc.genID.Generate(),
		OrderID:        order.ID,
		TechnicianID:   techID,
		Status:         jobcarddomain.StatusOpen,
		EstimateAmount: order.EstimatedCost,
		PaymentStatus:  jobcarddomain.PaymentPending,
		CreatedAt:      f.clock.Now(),
		UpdatedAt:      f.clock.Now(),
	}
	card.Recalculate()
	require.NoError(t, f.jobcards.Insert(ctx, f.db, card))
	return card
}

func (f *fixture) reload(t *testing.T, id snowflake.ID) *domain.Order {
	t.Helper()
	order, err := f.svc.Get(context.Background(), id)
	require.NoError(t, err)
	return order
}

func (f *fixture) actions(t *testing.T, orderID snowflake.ID) []string {
	t.Helper()
	entries, err := f.svc.History(context.Background(), orderID)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func TestCreateOrderByAdmin(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, admin)

	assert.Regexp(t, `^SRV-260228-[0-9A-Z]{6}$`, order.Code)
	assert.Equal(t, domain.StatusPendingAssignment, order.Status)
	assert.Equal(t, domain.SourceAdmin, order.Source)
	assert.Equal(t, domain.PaymentUnpaid, order.PaymentStatus)
	assert.Equal(t, "INR", order.Currency)
	assert.True(t, order.ScheduledAt.Equal(windowStart))
	assert.Equal(t, 1, order.Services[0].Quantity)
	assert.Equal(t, domain.ApprovalNotRequired, order.Approval().Status)

	stored := f.reload(t, order.ID)
	assert.Equal(t, order.Code, stored.Code)
	assert.Equal(t, "Asha", stored.Customer.Name)

	assert.Equal(t, []string{historydomain.ActionOrderCreated}, f.actions(t, order.ID))
	assert.Contains(t, f.broadcaster.Events("admins"), notificationdomain.EventOrderNew)

	sent := f.email.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, email.TemplateOrderReceived, sent[0].Template)
}

func TestCreateOrderFromPublicChannel(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, actor.Actor{Role: actor.RolePublic})
	assert.Equal(t, domain.StatusNew, order.Status)
	assert.Equal(t, domain.SourcePublic, order.Source)
}

func TestCreateOrderFillsSnapshotFromCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cust, err := f.customers.Create(ctx, customerdomain.CreateCustomerRequest{Name: "Kiran", Email: "kiran@example.com", Phone: "+91 97000 00000"})
	require.NoError(t, err)
	lat, lng := 12.9, 77.6
	addr, err := f.customers.AddAddress(ctx, customerdomain.AddAddressRequest{
		CustomerID: cust.ID, Line1: "4 Residency Road", City: "Bengaluru", Latitude: &lat, Longitude: &lng,
	})
	require.NoError(t, err)

	start, end := window(0)
	order, err := f.svc.Create(ctx, domain.CreateRequest{
		Actor:           actor.Actor{ID: cust.ID, Role: actor.RoleCustomer},
		AddressID:       &addr.ID,
		Customer:        domain.CustomerSnapshot{Phone: "+91 96000 00000"},
		Services:        []domain.RequestedService{{Name: "Washing machine repair", Quantity: 2}},
		TimeWindowStart: start,
		TimeWindowEnd:   end,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceCustomer, order.Source)
	require.NotNil(t, order.CustomerID)
	assert.Equal(t, cust.ID, *order.CustomerID)
	assert.Equal(t, "Kiran", order.Customer.Name)
	assert.Equal(t, "+91 96000 00000", order.Customer.Phone)
	assert.Equal(t, "kiran@example.com", order.Customer.Email)
	assert.Contains(t, order.Customer.Address, "4 Residency Road")
	require.NotNil(t, order.Customer.Latitude)
	assert.InDelta(t, lat, *order.Customer.Latitude, 0.0001)
}

func TestCreateOrderValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start, end := window(0)
	valid := domain.CreateRequest{
		Actor:           admin,
		Customer:        domain.CustomerSnapshot{Name: "Asha", Phone: "1", Address: "x"},
		Services:        []domain.RequestedService{{Name: "AC service"}},
		TimeWindowStart: start,
		TimeWindowEnd:   end,
	}

	req := valid
	req.TimeWindowEnd = nil
	_, err := f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	req = valid
	req.TimeWindowStart, req.TimeWindowEnd = end, start
	_, err = f.svc.Create(ctx, req)
	require.ErrorIs(t, err, domain.ErrInvalidSchedule)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	req = valid
	req.Services = nil
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidServices)

	req = valid
	req.Customer.Name = "<script></script>"
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	req = valid
	req.EstimatedCost = -1
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestCreateOrderCodeExhaustion(t *testing.T) {
	f := newFixture(t)
	f.svc.newCode = func(time.Time) string { return "SRV-260228-AAAAAA" }

	f.create(t, admin)

	start, end := window(0)
	_, err := f.svc.Create(context.Background(), domain.CreateRequest{
		Actor:           admin,
		Customer:        domain.CustomerSnapshot{Name: "Asha", Phone: "1", Address: "x"},
		Services:        []domain.RequestedService{{Name: "AC service"}},
		TimeWindowStart: start,
		TimeWindowEnd:   end,
	})
	require.ErrorIs(t, err, domain.ErrCodeExhausted)
	assert.Equal(t, errs.KindFatal, errs.KindOf(err))
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.create(t, admin)
	f.clock.Advance(time.Minute)
	second := f.create(t, admin)
	f.clock.Advance(time.Minute)
	third := f.create(t, actor.Actor{Role: actor.RolePublic})

	res, err := f.svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	require.Len(t, res.Orders, 3)
	assert.Equal(t, third.ID, res.Orders[0].ID)
	assert.Equal(t, first.ID, res.Orders[2].ID)

	res, err = f.svc.List(ctx, domain.ListRequest{Status: "pending_assignment"})
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	assert.Equal(t, second.ID, res.Orders[0].ID)

	res, err = f.svc.List(ctx, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, res.Orders, 2)
	assert.True(t, res.HasMore)
	next, err := f.svc.List(ctx, domain.ListRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: res.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, next.Orders, 1)
	assert.Equal(t, first.ID, next.Orders[0].ID)

	from := windowStart.Add(time.Hour)
	res, err = f.svc.List(ctx, domain.ListRequest{From: &from})
	require.NoError(t, err)
	assert.Empty(t, res.Orders)

	_, err = f.svc.List(ctx, domain.ListRequest{Status: "bogus"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
	_, err = f.svc.List(ctx, domain.ListRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)
	f.assign(t, order)

	start, end := window(24 * time.Hour)
	got, err := f.svc.Reschedule(ctx, domain.RescheduleRequest{OrderID: order.ID, Start: *start, End: *end, Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRescheduled, got.Status)
	assert.Equal(t, 1, got.RescheduleCount)
	assert.True(t, got.ScheduledAt.Equal(*start))
	assert.True(t, got.TimeWindowEnd.Equal(*end))

	// The technician's block follows the order to the new window.
	oldStart, oldEnd := window(0)
	free, err := f.calendar.IsAvailable(ctx, techID, *oldStart, *oldEnd)
	require.NoError(t, err)
	assert.True(t, free)
	free, err = f.calendar.IsAvailable(ctx, techID, *start, *end)
	require.NoError(t, err)
	assert.False(t, free)
	var blocked int64
	require.NoError(t, f.db.Model(&calendardomain.Entry{}).Where("order_id = ?", order.ID).Count(&blocked).Error)
	assert.Equal(t, int64(1), blocked)

	assert.Contains(t, f.broadcaster.Events("user:"+techID.String()), notificationdomain.EventOrderRescheduled)
	assert.Contains(t, f.actions(t, order.ID), historydomain.ActionOrderRescheduled)

	_, err = f.svc.Reschedule(ctx, domain.RescheduleRequest{OrderID: 42, Start: *start, End: *end, Actor: admin})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Reschedule(ctx, domain.RescheduleRequest{OrderID: order.ID, Start: *end, End: *start, Actor: admin})
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)
}

func TestRescheduleSkipsAvailabilityCheck(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)
	f.assign(t, order)

	start, end := window(48 * time.Hour)
	require.NoError(t, f.calendar.Block(ctx, f.db, techID, f.svc.genID.Generate(), []calendardomain.Interval{{Start: *start, End: *end}}))

	_, err := f.svc.Reschedule(ctx, domain.RescheduleRequest{OrderID: order.ID, Start: *start, End: *end, Actor: admin})
	require.NoError(t, err)

	var entries []calendardomain.Entry
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].StartAt.Equal(*start))
}

func TestRescheduleUnassignedOrderBlocksNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)

	start, end := window(24 * time.Hour)
	_, err := f.svc.Reschedule(ctx, domain.RescheduleRequest{OrderID: order.ID, Start: *start, End: *end, Actor: admin})
	require.NoError(t, err)

	var count int64
	require.NoError(t, f.db.Model(&calendardomain.Entry{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdateStatusFollowUpUnassigns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)
	card := f.assign(t, order)

	_, err := f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "FOLLOW_UP", Attachments: []string{"a.jpg"}, Actor: admin})
	assert.ErrorIs(t, err, domain.ErrFollowUpReason)
	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "FOLLOW_UP", Reason: "needs part", Actor: admin})
	assert.ErrorIs(t, err, domain.ErrFollowUpAttachments)

	got, err := f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{
		OrderID: order.ID, Status: "follow_up", Reason: "needs part", Attachments: []string{"https://cdn/a.jpg"}, Actor: admin,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFollowUp, got.Status)
	assert.Nil(t, got.AssignedTechnicianID)
	assert.Empty(t, got.AssignedTechnicianIDs)
	require.NotNil(t, got.FollowUp)
	assert.Equal(t, "needs part", got.FollowUp.Reason)
	assert.True(t, got.FollowUp.Open())

	stored, err := f.jobcards.FindByID(ctx, f.db, card.ID)
	require.NoError(t, err)
	assert.Equal(t, jobcarddomain.StatusFollowUp, stored.Status)

	var entries []calendardomain.Entry
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, calendardomain.StatusCancelled, entries[0].Status)

	assert.Contains(t, f.broadcaster.Events("user:"+techID.String()), notificationdomain.EventOrderStatusChanged)

	got, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "PENDING_ASSIGNMENT", Actor: admin})
	require.NoError(t, err)
	require.NotNil(t, got.FollowUp)
	assert.NotNil(t, got.FollowUp.ResolvedAt)
}

func TestUpdateStatusRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)
	card := f.assign(t, order)

	_, err := f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "DONE", Actor: admin})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "IN_PROGRESS", Actor: actor.Actor{ID: 9, Role: actor.RoleTechnician}})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "IN_PROGRESS", Actor: technician})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	stored, err := f.jobcards.FindByID(ctx, f.db, card.ID)
	require.NoError(t, err)
	assert.Equal(t, jobcarddomain.StatusCheckedIn, stored.Status)

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "COMPLETED", Actor: admin})
	require.NoError(t, err)
	stored, err = f.jobcards.FindByID(ctx, f.db, card.ID)
	require.NoError(t, err)
	assert.Equal(t, jobcarddomain.StatusCompleted, stored.Status)

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "IN_PROGRESS", Actor: admin})
	require.ErrorIs(t, err, domain.ErrOrderClosed)
	assert.Equal(t, errs.KindInvalidState, errs.KindOf(err))
}

func TestUpdateStatusDoesNotReopenVisitedCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)
	card := f.assign(t, order)

	stored, err := f.jobcards.FindByID(ctx, f.db, card.ID)
	require.NoError(t, err)
	stored.CheckIns = append(stored.CheckIns, jobcarddomain.CheckIn{TechnicianID: techID, At: f.clock.Now()})
	stored.Status = jobcarddomain.StatusCheckedIn
	require.NoError(t, f.jobcards.Update(ctx, f.db, stored, stored.Version))

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "IN_PROGRESS", Actor: admin})
	require.NoError(t, err)
	got, err := f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "ASSIGNED", Actor: admin})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAssigned, got.Status)

	stored, err = f.jobcards.FindByID(ctx, f.db, card.ID)
	require.NoError(t, err)
	assert.Equal(t, jobcarddomain.StatusCheckedIn, stored.Status)
	assert.Len(t, stored.CheckIns, 1)
}

func TestUpdateStatusLeavesLockedCard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)
	card := f.assign(t, order)

	card.Status = jobcarddomain.StatusLocked
	require.NoError(t, f.jobcards.Update(ctx, f.db, card, card.Version))

	_, err := f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "COMPLETED", Actor: admin})
	require.NoError(t, err)

	stored, err := f.jobcards.FindByID(ctx, f.db, card.ID)
	require.NoError(t, err)
	assert.Equal(t, jobcarddomain.StatusLocked, stored.Status)
}

func TestCancellation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cust, err := f.customers.Create(ctx, customerdomain.CreateCustomerRequest{Name: "Kiran", Email: "kiran@example.com", Phone: "1"})
	require.NoError(t, err)
	owner := actor.Actor{ID: cust.ID, Role: actor.RoleCustomer}

	start, end := window(0)
	order, err := f.svc.Create(ctx, domain.CreateRequest{
		Actor:           owner,
		Customer:        domain.CustomerSnapshot{Address: "4 Residency Road"},
		Services:        []domain.RequestedService{{Name: "AC service"}},
		TimeWindowStart: start,
		TimeWindowEnd:   end,
	})
	require.NoError(t, err)
	f.assign(t, order)

	_, err = f.svc.RequestCancellation(ctx, order.ID, "travelling", actor.Actor{ID: 77, Role: actor.RoleCustomer})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.svc.RequestCancellation(ctx, order.ID, "travelling", owner)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancellationRequested, got.Status)

	_, err = f.svc.RequestCancellation(ctx, order.ID, "again", owner)
	assert.ErrorIs(t, err, domain.ErrCancellationRequested)

	got, err = f.svc.Cancel(ctx, order.ID, "customer asked", admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)

	var entries []calendardomain.Entry
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, calendardomain.StatusCancelled, entries[0].Status)

	assert.Equal(t, []string{
		historydomain.ActionOrderCreated,
		historydomain.ActionCancellationRequested,
		historydomain.ActionOrderStatusChanged,
	}, f.actions(t, order.ID))
}

func pendingApproval(t *testing.T, f *fixture, order *domain.Order) {
	t.Helper()
	approval := order.Approval()
	approval.Status = domain.ApprovalPending
	approval.RequestedItems = []domain.RequestedItem{{
		LineID: "01J0000000000000000000000A", Kind: domain.ItemExtraWork, Description: "Gas refill", Amount: 500,
	}}
	order.SetApproval(approval)
	require.NoError(t, f.svc.repo.Update(context.Background(), f.db, order, order.Version))
}

func TestApproveAdditionalItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)
	f.assign(t, order)

	_, err := f.svc.ApproveAdditionalItems(ctx, domain.DecisionRequest{OrderID: order.ID, Actor: admin})
	assert.ErrorIs(t, err, domain.ErrNoPendingApproval)

	pendingApproval(t, f, order)

	_, err = f.svc.ApproveAdditionalItems(ctx, domain.DecisionRequest{OrderID: order.ID, Actor: technician})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.svc.ApproveAdditionalItems(ctx, domain.DecisionRequest{OrderID: order.ID, Note: "ok", Actor: admin})
	require.NoError(t, err)
	approval := got.Approval()
	assert.Equal(t, domain.ApprovalApproved, approval.Status)
	assert.Empty(t, approval.RequestedItems)
	require.Len(t, approval.History, 1)
	assert.Equal(t, domain.ApprovalApproved, approval.History[0].Status)
	require.Len(t, approval.History[0].Items, 1)
	assert.Equal(t, int64(500), approval.History[0].Items[0].Amount)

	assert.Equal(t, domain.ApprovalApproved, f.reload(t, order.ID).Approval().Status)
	assert.Contains(t, f.actions(t, order.ID), historydomain.ActionApprovalApproved)
	assert.Contains(t, f.broadcaster.Events("user:"+techID.String()), notificationdomain.EventApprovalResolved)

	_, err = f.svc.ApproveAdditionalItems(ctx, domain.DecisionRequest{OrderID: order.ID, Actor: admin})
	assert.ErrorIs(t, err, domain.ErrNoPendingApproval)
}

func TestRejectAdditionalItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)
	pendingApproval(t, f, order)

	got, err := f.svc.RejectAdditionalItems(ctx, domain.DecisionRequest{OrderID: order.ID, Note: "too costly", Actor: admin})
	require.NoError(t, err)
	approval := got.Approval()
	assert.Equal(t, domain.ApprovalRejected, approval.Status)
	require.Len(t, approval.History, 1)
	assert.Equal(t, "too costly", approval.History[0].Note)
}

func TestMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)

	_, err := f.svc.AddMedia(ctx, domain.AddMediaRequest{
		OrderID: order.ID, FileName: "x.exe", ContentType: "application/x-msdownload", Size: 3, Body: strings.NewReader("abc"), Actor: admin,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMedia)

	got, err := f.svc.AddMedia(ctx, domain.AddMediaRequest{
		OrderID: order.ID, FileName: "unit.jpg", ContentType: "image/jpeg", Size: 3, Body: bytes.NewReader([]byte("abc")), Actor: admin,
	})
	require.NoError(t, err)
	require.Len(t, got.Media, 1)
	assert.Equal(t, "photo", got.Media[0].Kind)

	url, err := f.svc.MediaURL(ctx, order.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example.com/"+got.Media[0].Key, url)
	_, err = f.svc.MediaURL(ctx, order.ID, 3)
	assert.ErrorIs(t, err, domain.ErrMediaNotFound)

	key := got.Media[0].Key
	got, err = f.svc.RemoveMedia(ctx, order.ID, 0, admin)
	require.NoError(t, err)
	assert.Empty(t, got.Media)
	assert.Equal(t, []string{key}, f.storage.deleted)

	_, err = f.svc.RemoveMedia(ctx, order.ID, 0, admin)
	assert.ErrorIs(t, err, domain.ErrMediaNotFound)

	assert.Equal(t, []string{
		historydomain.ActionOrderCreated,
		historydomain.ActionMediaAdded,
		historydomain.ActionMediaRemoved,
	}, f.actions(t, order.ID))
}

func TestCompletedOrderIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)

	_, err := f.svc.AddMedia(ctx, domain.AddMediaRequest{
		OrderID: order.ID, FileName: "a.png", ContentType: "image/png", Size: 1, Body: strings.NewReader("a"), Actor: admin,
	})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "COMPLETED", Actor: admin})
	require.NoError(t, err)

	_, err = f.svc.AddMedia(ctx, domain.AddMediaRequest{
		OrderID: order.ID, FileName: "b.png", ContentType: "image/png", Size: 1, Body: strings.NewReader("b"), Actor: admin,
	})
	assert.ErrorIs(t, err, domain.ErrOrderReadOnly)

	_, err = f.svc.RemoveMedia(ctx, order.ID, 0, admin)
	assert.ErrorIs(t, err, domain.ErrOrderReadOnly)

	_, err = f.svc.AddHistoryNote(ctx, order.ID, "late note", admin)
	require.ErrorIs(t, err, domain.ErrOrderReadOnly)
	assert.Equal(t, errs.KindInvalidState, errs.KindOf(err))

	_, err = f.svc.OverridePaymentStatus(ctx, order.ID, "paid", admin)
	assert.ErrorIs(t, err, domain.ErrOrderReadOnly)
}

func TestOverridePaymentStatusAndNotes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)

	_, err := f.svc.OverridePaymentStatus(ctx, order.ID, "paid", technician)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.OverridePaymentStatus(ctx, order.ID, "free", admin)
	assert.ErrorIs(t, err, domain.ErrInvalidPaymentStatus)

	got, err := f.svc.OverridePaymentStatus(ctx, order.ID, "Partial", admin)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPartial, got.PaymentStatus)

	_, err = f.svc.AddHistoryNote(ctx, order.ID, "   ", admin)
	assert.ErrorIs(t, err, domain.ErrInvalidNote)
	entry, err := f.svc.AddHistoryNote(ctx, order.ID, "Customer called", admin)
	require.NoError(t, err)
	assert.Equal(t, "Customer called", entry.Message)

	assert.Equal(t, []string{
		historydomain.ActionOrderCreated,
		historydomain.ActionPaymentStatusOverride,
		historydomain.ActionNote,
	}, f.actions(t, order.ID))
}

func TestRate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cust, err := f.customers.Create(ctx, customerdomain.CreateCustomerRequest{Name: "Kiran", Email: "kiran@example.com", Phone: "1"})
	require.NoError(t, err)
	owner := actor.Actor{ID: cust.ID, Role: actor.RoleCustomer}

	start, end := window(0)
	order, err := f.svc.Create(ctx, domain.CreateRequest{
		Actor:           owner,
		Customer:        domain.CustomerSnapshot{Address: "4 Residency Road"},
		Services:        []domain.RequestedService{{Name: "AC service"}},
		TimeWindowStart: start,
		TimeWindowEnd:   end,
	})
	require.NoError(t, err)

	_, err = f.svc.Rate(ctx, domain.RateRequest{OrderID: order.ID, Score: 5, Actor: owner})
	assert.ErrorIs(t, err, domain.ErrNotCompleted)

	_, err = f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "COMPLETED", Actor: admin})
	require.NoError(t, err)

	_, err = f.svc.Rate(ctx, domain.RateRequest{OrderID: order.ID, Score: 6, Actor: owner})
	assert.ErrorIs(t, err, domain.ErrInvalidRating)
	_, err = f.svc.Rate(ctx, domain.RateRequest{OrderID: order.ID, Score: 5, Actor: admin})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	got, err := f.svc.Rate(ctx, domain.RateRequest{OrderID: order.ID, Score: 4, Comment: "quick", Actor: owner})
	require.NoError(t, err)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 4, got.Rating.Score)
	assert.Equal(t, 4, f.reload(t, order.ID).Rating.Score)

	_, err = f.svc.Rate(ctx, domain.RateRequest{OrderID: order.ID, Score: 3, Actor: owner})
	require.ErrorIs(t, err, domain.ErrAlreadyRated)
	assert.True(t, errors.Is(err, domain.ErrAlreadyRated))
}

func TestStaleVersionIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.create(t, admin)

	stale := *order
	_, err := f.svc.UpdateStatus(ctx, domain.UpdateStatusRequest{OrderID: order.ID, Status: "PENDING_ASSIGNMENT", Actor: admin})
	require.NoError(t, err)

	err = f.svc.repo.Update(ctx, f.db, &stale, stale.Version)
	require.ErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
}
