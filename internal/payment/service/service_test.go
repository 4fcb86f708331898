package service

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	calendarrepository "github.com/smallbiznis/fieldops/internal/calendar/repository"
	calendarservice "github.com/smallbiznis/fieldops/internal/calendar/service"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	historyrepository "github.com/smallbiznis/fieldops/internal/history/repository"
	historyservice "github.com/smallbiznis/fieldops/internal/history/service"
	jobcarddomain "github.com/smallbiznis/fieldops/internal/jobcard/domain"
	jobcardrepository "github.com/smallbiznis/fieldops/internal/jobcard/repository"
	jobcardservice "github.com/smallbiznis/fieldops/internal/jobcard/service"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	notificationrepository "github.com/smallbiznis/fieldops/internal/notification/repository"
	notificationservice "github.com/smallbiznis/fieldops/internal/notification/service"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	orderrepository "github.com/smallbiznis/fieldops/internal/order/repository"
	"github.com/smallbiznis/fieldops/internal/payment/adapters"
	"github.com/smallbiznis/fieldops/internal/payment/domain"
	"github.com/smallbiznis/fieldops/internal/payment/repository"
	"github.com/smallbiznis/fieldops/internal/providers/email"
	"github.com/smallbiznis/fieldops/internal/providers/pdf"
	"github.com/smallbiznis/fieldops/internal/testutil"
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
	customerID  = snowflake.ID(700)
	admin       = actor.Actor{ID: 1, Role: actor.RoleAdmin}
	customer    = actor.Actor{ID: customerID, Role: actor.RoleCustomer}
)

type fakeGateway struct {
	name     string
	order    domain.GatewayOrder
	payment  domain.GatewayPayment
	verified bool
	err      error
	created  []domain.CreateOrderRequest
}

func (g *fakeGateway) Name() string { return g.name }

func (g *fakeGateway) CreateOrder(_ context.Context, req domain.CreateOrderRequest) (domain.GatewayOrder, error) {
	g.created = append(g.created, req)
	if g.err != nil {
		return domain.GatewayOrder{}, g.err
	}
	return g.order, nil
}

func (g *fakeGateway) VerifySignature(orderRef, paymentID, signature string) bool {
	return g.verified && orderRef == g.order.ID && signature != ""
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (domain.GatewayPayment, error) {
	if g.err != nil {
		return domain.GatewayPayment{}, g.err
	}
	return g.payment, nil
}

func (g *fakeGateway) ParseWebhook(context.Context, []byte, http.Header) (*domain.PaymentEvent, error) {
	return nil, domain.ErrEventIgnored
}

type fixture struct {
	svc         *Service
	db          *gorm.DB
	node        *snowflake.Node
	clock       *clock.FakeClock
	orders      orderdomain.Repository
	jobcards    jobcarddomain.Repository
	calendar    calendardomain.Service
	history     historydomain.Service
	gateway     *fakeGateway
	email       *testutil.RecordingEmail
	broadcaster *testutil.RecordingBroadcaster
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t,
		&orderdomain.Order{},
		&jobcarddomain.JobCard{},
		&calendardomain.Entry{},
		&calendardomain.WeeklyHours{},
		&calendardomain.DayOverride{},
		&historydomain.Entry{},
		&notificationdomain.Notification{},
		&domain.Payment{},
		&domain.EventRecord{},
	)
	node := testutil.NewNode(t)
	clk := clock.NewFakeClock(windowStart.Add(3 * time.Hour))
	log := zap.NewNop()
	broadcaster := &testutil.RecordingBroadcaster{}
	ops := config.NewStaticOperationsConfigHolder(config.DefaultOperationsConfig())

	f := &fixture{
		db:          db,
		node:        node,
		clock:       clk,
		orders:      orderrepository.Provide(),
		jobcards:    jobcardrepository.Provide(),
		email:       &testutil.RecordingEmail{},
		broadcaster: broadcaster,
		gateway: &fakeGateway{
			name:     "razorpay",
			order:    domain.GatewayOrder{ID: "order_rzp_1", Amount: 1500, Currency: "INR", Status: "created"},
			verified: true,
		},
	}
	f.calendar = calendarservice.NewService(calendarservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: calendarrepository.Provide(),
	})
	f.history = historyservice.NewService(historyservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: historyrepository.Provide(), Broadcaster: broadcaster,
	})
	notifier := notificationservice.NewService(notificationservice.Params{
		DB: db, Log: log, GenID: node, Clock: clk, Repo: notificationrepository.Provide(), Broadcaster: broadcaster,
	})
	jobcards := jobcardservice.New(jobcardservice.Params{
		DB: db, Log: log, Clock: clk, Repo: f.jobcards, Orders: f.orders,
		Calendar: f.calendar, History: f.history, Notifier: notifier, Ops: ops,
	})

	f.svc = New(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       clk,
		Repo:        repository.Provide(),
		Orders:      f.orders,
		JobCards:    jobcards,
		JobCardRepo: f.jobcards,
		Calendar:    f.calendar,
		History:     f.history,
		Notifier:    notifier,
		Email:       f.email,
		PDF:         pdf.New(),
		Providers:   adapters.NewStaticRegistry(f.gateway),
		Ops:         ops,
		Cfg:         config.Config{AppName: "fieldops"},
	}).(*Service)
	return f
}

// job inserts an assigned order with a job card worth 1500: an estimate of
// 1000 plus one spare part line.
func (f *fixture) job(t *testing.T) (*orderdomain.Order, *jobcarddomain.JobCard) {
	t.Helper()
	ctx := context.Background()
	now := f.clock.Now()
	owner, tech := customerID, techID

	order := &orderdomain.Order{
		ID:   f.node.Generate(),
		Code: "SRV-" + f.node.Generate().String(),
		Customer: orderdomain.CustomerSnapshot{
			Name: "Asha", Phone: "1", Email: "asha@example.com", Address: "12 MG Road",
		},
		CustomerID:            &owner,
		Services:              datatypes.JSONSlice[orderdomain.RequestedService]{{Name: "AC service", Quantity: 1}},
		EstimatedCost:         1000,
		Currency:              "INR",
		ScheduledAt:           windowStart,
		TimeWindowStart:       windowStart,
		TimeWindowEnd:         windowStart.Add(2 * time.Hour),
		Status:                orderdomain.StatusInProgress,
		PaymentStatus:         orderdomain.PaymentUnpaid,
		AssignedTechnicianID:  &tech,
		AssignedTechnicianIDs: datatypes.JSONSlice[snowflake.ID]{tech},
		Media:                 datatypes.JSONSlice[orderdomain.Media]{},
		Source:                orderdomain.SourceCustomer,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	order.SetApproval(orderdomain.CustomerApproval{Status: orderdomain.ApprovalNotRequired})
	require.NoError(t, f.orders.Insert(ctx, f.db, order))
	require.NoError(t, f.calendar.Block(ctx, f.db, techID, order.ID, []calendardomain.Interval{
		{Start: order.TimeWindowStart, End: order.TimeWindowEnd},
	}))

	card := &jobcarddomain.JobCard{
		ID:             f.node.Generate(),
		OrderID:        order.ID,
		TechnicianID:   techID,
		Status:         jobcarddomain.StatusCheckedIn,
		EstimateAmount: 1000,
		PaymentStatus:  jobcarddomain.PaymentPending,
		SpareParts: datatypes.JSONSlice[jobcarddomain.SparePart]{
			{LineID: "01J00000000000000000000001", Part: "Capacitor", Quantity: 2, UnitPrice: 250, AddedAt: now},
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	card.Recalculate()
	require.NoError(t, f.jobcards.Insert(ctx, f.db, card))
	return order, card
}

func (f *fixture) actions(t *testing.T, orderID snowflake.ID) []string {
	t.Helper()
	entries, err := f.history.List(context.Background(), orderID)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Action)
	}
	return out
}

func count(items []string, want string) int {
	n := 0
	for _, item := range items {
		if item == want {
			n++
		}
	}
	return n
}

func (f *fixture) reload(t *testing.T, order *orderdomain.Order, card *jobcarddomain.JobCard) (*orderdomain.Order, *jobcarddomain.JobCard) {
	t.Helper()
	ctx := context.Background()
	o, err := f.orders.FindByID(ctx, f.db, order.ID)
	require.NoError(t, err)
	c, err := f.jobcards.FindByID(ctx, f.db, card.ID)
	require.NoError(t, err)
	return o, c
}

func TestRecordPaymentSettlesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, card := f.job(t)
	require.Equal(t, int64(1500), card.FinalAmount)

	payment, err := f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{
		OrderID: order.ID, Method: "Cash", Amount: 1500, Reference: "counter-7", Actor: admin,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, payment.Status)
	assert.Equal(t, domain.MethodCash, payment.Method)
	require.NotNil(t, payment.JobCardID)
	assert.Equal(t, card.ID, *payment.JobCardID)
	require.NotNil(t, payment.PaidAt)

	order, card = f.reload(t, order, card)
	assert.Equal(t, orderdomain.StatusCompleted, order.Status)
	assert.Equal(t, orderdomain.PaymentPaid, order.PaymentStatus)
	assert.Equal(t, jobcarddomain.StatusLocked, card.Status)
	assert.Equal(t, jobcarddomain.PaymentPaid, card.PaymentStatus)
	assert.NotNil(t, card.LockedAt)

	var entries []calendardomain.Entry
	require.NoError(t, f.db.Where("order_id = ?", order.ID).Find(&entries).Error)
	require.Len(t, entries, 1)
	assert.Equal(t, calendardomain.StatusCompleted, entries[0].Status)

	assert.Equal(t, []string{
		historydomain.ActionJobCardLocked,
		historydomain.ActionPaymentSucceeded,
		historydomain.ActionOrderStatusChanged,
	}, f.actions(t, order.ID))

	assert.Contains(t, f.broadcaster.Events("admins"), notificationdomain.EventPaymentReceived)
	assert.Contains(t, f.broadcaster.Events("user:"+customerID.String()), notificationdomain.EventPaymentReceived)
	assert.Contains(t, f.broadcaster.Events("user:"+techID.String()), notificationdomain.EventPaymentReceived)

	sent := f.email.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, email.TemplatePaymentReceived, sent[0].Template)
	assert.Equal(t, []string{"asha@example.com"}, sent[0].To)
}

func TestRecordPaymentPartialThenPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, card := f.job(t)

	_, err := f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{OrderID: order.ID, Method: "upi", Amount: 500, Actor: admin})
	require.NoError(t, err)
	o, c := f.reload(t, order, card)
	assert.Equal(t, orderdomain.PaymentPartial, o.PaymentStatus)
	assert.Equal(t, jobcarddomain.PaymentPartial, c.PaymentStatus)
	assert.Equal(t, jobcarddomain.StatusLocked, c.Status)
	assert.Equal(t, orderdomain.StatusCompleted, o.Status)

	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{OrderID: order.ID, Method: "cash", Amount: 1000, Actor: admin})
	require.NoError(t, err)
	o, c = f.reload(t, order, card)
	assert.Equal(t, orderdomain.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, jobcarddomain.PaymentPaid, c.PaymentStatus)

	actions := f.actions(t, order.ID)
	assert.Equal(t, 1, count(actions, historydomain.ActionJobCardLocked))
	assert.Equal(t, 2, count(actions, historydomain.ActionPaymentSucceeded))
	assert.Equal(t, 1, count(actions, historydomain.ActionOrderStatusChanged))

	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{OrderID: order.ID, Method: "cash", Amount: 1, Actor: admin})
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestRecordPaymentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.job(t)

	_, err := f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{OrderID: order.ID, Method: "cash", Amount: 10, Actor: customer})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{OrderID: order.ID, Method: "online", Amount: 10, Actor: admin})
	assert.ErrorIs(t, err, domain.ErrInvalidMethod)
	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{OrderID: order.ID, Method: "cash", Amount: 0, Actor: admin})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{OrderID: 42, Method: "cash", Amount: 10, Actor: admin})
	assert.ErrorIs(t, err, orderdomain.ErrNotFound)

	order.Status = orderdomain.StatusCancelled
	require.NoError(t, f.orders.Update(ctx, f.db, order, order.Version))
	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{OrderID: order.ID, Method: "cash", Amount: 10, Actor: admin})
	require.ErrorIs(t, err, domain.ErrOrderClosed)
	assert.Equal(t, errs.KindInvalidState, errs.KindOf(err))
}

func TestCashPaymentConfirmIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, card := f.job(t)

	res, err := f.svc.InitializeCustomerPayment(ctx, domain.InitializeRequest{OrderID: order.ID, Method: "cash", Amount: 1500, Actor: customer})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInitiated, res.Payment.Status)
	assert.Nil(t, res.Checkout)
	assert.Empty(t, f.gateway.created)

	confirmed, err := f.svc.ConfirmCustomerPayment(ctx, domain.ConfirmRequest{PaymentID: res.Payment.ID, Actor: customer})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, confirmed.Status)

	again, err := f.svc.ConfirmCustomerPayment(ctx, domain.ConfirmRequest{PaymentID: res.Payment.ID, Actor: customer})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, again.Status)

	_, c := f.reload(t, order, card)
	assert.Equal(t, jobcarddomain.StatusLocked, c.Status)

	actions := f.actions(t, order.ID)
	assert.Equal(t, 1, count(actions, historydomain.ActionPaymentInitiated))
	assert.Equal(t, 1, count(actions, historydomain.ActionPaymentSucceeded))
}

func TestOnlinePaymentFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, card := f.job(t)

	res, err := f.svc.InitializeCustomerPayment(ctx, domain.InitializeRequest{OrderID: order.ID, Method: "online", Amount: 1500, Actor: customer})
	require.NoError(t, err)
	require.NotNil(t, res.Checkout)
	assert.Equal(t, "order_rzp_1", res.Checkout.ID)
	assert.Equal(t, "razorpay", res.Payment.Provider)
	require.NotNil(t, res.Payment.TransactionRef)
	assert.Equal(t, "order_rzp_1", *res.Payment.TransactionRef)

	require.Len(t, f.gateway.created, 1)
	assert.Equal(t, order.Code, f.gateway.created[0].Receipt)
	assert.Equal(t, res.Payment.ID.String(), f.gateway.created[0].Notes["payment_id"])

	_, err = f.svc.ConfirmCustomerPayment(ctx, domain.ConfirmRequest{PaymentID: res.Payment.ID, ProviderPaymentID: "pay_1", Actor: customer})
	require.ErrorIs(t, err, domain.ErrInvalidSignature)
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	f.gateway.payment = domain.GatewayPayment{ID: "pay_1", OrderRef: "order_rzp_1", State: domain.GatewayCaptured, Method: "upi", Amount: 1500, Currency: "INR"}
	confirmed, err := f.svc.ConfirmCustomerPayment(ctx, domain.ConfirmRequest{
		PaymentID: res.Payment.ID, ProviderPaymentID: "pay_1", Signature: "sig", Actor: customer,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, confirmed.Status)
	require.NotNil(t, confirmed.ProviderPaymentID)
	assert.Equal(t, "pay_1", *confirmed.ProviderPaymentID)

	o, c := f.reload(t, order, card)
	assert.Equal(t, orderdomain.StatusCompleted, o.Status)
	assert.Equal(t, jobcarddomain.StatusLocked, c.Status)
}

func TestOnlinePaymentNotCapturedFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, card := f.job(t)

	res, err := f.svc.InitializeCustomerPayment(ctx, domain.InitializeRequest{OrderID: order.ID, Method: "online", Amount: 1500, Actor: customer})
	require.NoError(t, err)

	f.gateway.payment = domain.GatewayPayment{ID: "pay_1", OrderRef: "order_rzp_1", State: domain.GatewayPending, Amount: 1500, Currency: "INR"}
	got, err := f.svc.ConfirmCustomerPayment(ctx, domain.ConfirmRequest{
		PaymentID: res.Payment.ID, ProviderPaymentID: "pay_1", Signature: "sig", Actor: customer,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)

	_, err = f.svc.ConfirmCustomerPayment(ctx, domain.ConfirmRequest{
		PaymentID: res.Payment.ID, ProviderPaymentID: "pay_1", Signature: "sig", Actor: customer,
	})
	assert.ErrorIs(t, err, domain.ErrPaymentFailed)

	o, c := f.reload(t, order, card)
	assert.Equal(t, orderdomain.StatusInProgress, o.Status)
	assert.Equal(t, jobcarddomain.StatusCheckedIn, c.Status)
	assert.Contains(t, f.actions(t, order.ID), historydomain.ActionPaymentFailed)
}

func TestGatewayResponsesAreRevalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.job(t)

	f.gateway.order.Amount = 15
	_, err := f.svc.InitializeCustomerPayment(ctx, domain.InitializeRequest{OrderID: order.ID, Method: "online", Amount: 1500, Actor: customer})
	require.ErrorIs(t, err, domain.ErrGatewayMismatch)
	payments, err := f.svc.ListForOrder(ctx, order.ID, admin)
	require.NoError(t, err)
	assert.Empty(t, payments)

	f.gateway.order.Amount = 1500
	res, err := f.svc.InitializeCustomerPayment(ctx, domain.InitializeRequest{OrderID: order.ID, Method: "online", Amount: 1500, Actor: customer})
	require.NoError(t, err)

	f.gateway.payment = domain.GatewayPayment{ID: "pay_1", OrderRef: "order_other", State: domain.GatewayCaptured, Amount: 1500, Currency: "INR"}
	_, err = f.svc.ConfirmCustomerPayment(ctx, domain.ConfirmRequest{
		PaymentID: res.Payment.ID, ProviderPaymentID: "pay_1", Signature: "sig", Actor: customer,
	})
	require.ErrorIs(t, err, domain.ErrGatewayMismatch)

	stored, err := f.svc.Get(ctx, res.Payment.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInitiated, stored.Status)

	f.gateway.err = errors.New("gateway down")
	_, err = f.svc.InitializeCustomerPayment(ctx, domain.InitializeRequest{OrderID: order.ID, Method: "online", Amount: 1500, Actor: customer})
	assert.Error(t, err)
}

func TestInitializeAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.job(t)

	_, err := f.svc.InitializeCustomerPayment(ctx, domain.InitializeRequest{
		OrderID: order.ID, Method: "cash", Amount: 10, Actor: actor.Actor{ID: 9, Role: actor.RoleCustomer},
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.InitializeCustomerPayment(ctx, domain.InitializeRequest{
		OrderID: order.ID, Method: "cash", Amount: 10, Actor: actor.Actor{ID: techID, Role: actor.RoleTechnician},
	})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.InitializeCustomerPayment(ctx, domain.InitializeRequest{OrderID: order.ID, Method: "cheque", Amount: 10, Actor: customer})
	assert.ErrorIs(t, err, domain.ErrInvalidMethod)
	_, err = f.svc.InitializeCustomerPayment(ctx, domain.InitializeRequest{
		OrderID: order.ID, Method: "online", Provider: "paypal", Amount: 10, Actor: customer,
	})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func onlinePayment(t *testing.T, f *fixture, order *orderdomain.Order) *domain.Payment {
	t.Helper()
	res, err := f.svc.InitializeCustomerPayment(context.Background(), domain.InitializeRequest{
		OrderID: order.ID, Method: "online", Amount: 1500, Actor: customer,
	})
	require.NoError(t, err)
	return res.Payment
}

func captured(eventID string) *domain.PaymentEvent {
	return &domain.PaymentEvent{
		Provider:          "razorpay",
		ProviderEventID:   eventID,
		Type:              domain.EventTypePaymentSucceeded,
		OrderRef:          "order_rzp_1",
		ProviderPaymentID: "pay_1",
		State:             domain.GatewayCaptured,
		Amount:            1500,
		Currency:          "INR",
		RawPayload:        []byte(`{"event":"payment.captured"}`),
	}
}

func TestProcessEventIsReplaySafe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, card := f.job(t)
	payment := onlinePayment(t, f, order)

	require.NoError(t, f.svc.ProcessEvent(ctx, captured("evt_1")))
	require.NoError(t, f.svc.ProcessEvent(ctx, captured("evt_1")))
	require.NoError(t, f.svc.ProcessEvent(ctx, captured("evt_2")))

	stored, err := f.svc.Get(ctx, payment.ID, customer)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, stored.Status)

	_, c := f.reload(t, order, card)
	assert.Equal(t, jobcarddomain.StatusLocked, c.Status)
	assert.Equal(t, 1, count(f.actions(t, order.ID), historydomain.ActionPaymentSucceeded))

	var events []domain.EventRecord
	require.NoError(t, f.db.Order("provider_event_id").Find(&events).Error)
	require.Len(t, events, 2)
	for _, e := range events {
		assert.NotNil(t, e.ProcessedAt)
		require.NotNil(t, e.PaymentID)
		assert.Equal(t, payment.ID, *e.PaymentID)
	}
}

func TestProcessEventUpgradesFailedPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.job(t)
	payment := onlinePayment(t, f, order)

	failed := captured("evt_fail")
	failed.State = domain.GatewayFailed
	failed.Type = domain.EventTypePaymentFailed
	require.NoError(t, f.svc.ProcessEvent(ctx, failed))
	stored, err := f.svc.Get(ctx, payment.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)

	require.NoError(t, f.svc.ProcessEvent(ctx, captured("evt_ok")))
	stored, err = f.svc.Get(ctx, payment.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, stored.Status)
}

func TestExpireCheckout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, card := f.job(t)
	payment := onlinePayment(t, f, order)
	f.broadcaster.Reset()

	expired, err := f.svc.ExpireCheckout(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, expired.Status)
	assert.Equal(t, "checkout_expired", expired.ProviderMetadata["failure_reason"])
	assert.Equal(t, 1, count(f.actions(t, order.ID), historydomain.ActionPaymentFailed))
	assert.Contains(t, f.broadcaster.Events("user:"+customerID.String()), notificationdomain.EventPaymentExpired)

	again, err := f.svc.ExpireCheckout(ctx, payment.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, again.Status)
	assert.Equal(t, 1, count(f.actions(t, order.ID), historydomain.ActionPaymentFailed))

	o, c := f.reload(t, order, card)
	assert.Equal(t, orderdomain.StatusInProgress, o.Status)
	assert.Equal(t, jobcarddomain.StatusCheckedIn, c.Status)

	// A late capture still settles the expired checkout.
	require.NoError(t, f.svc.ProcessEvent(ctx, captured("evt_late")))
	stored, err := f.svc.Get(ctx, payment.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, stored.Status)

	_, err = f.svc.ExpireCheckout(ctx, snowflake.ID(12345))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProcessEventRejectsMismatchAndUnknown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.job(t)
	payment := onlinePayment(t, f, order)

	bad := captured("evt_bad")
	bad.Amount = 1
	require.ErrorIs(t, f.svc.ProcessEvent(ctx, bad), domain.ErrGatewayMismatch)
	stored, err := f.svc.Get(ctx, payment.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInitiated, stored.Status)

	unknown := captured("evt_unknown")
	unknown.OrderRef = "order_nobody"
	require.NoError(t, f.svc.ProcessEvent(ctx, unknown))

	assert.ErrorIs(t, f.svc.ProcessEvent(ctx, &domain.PaymentEvent{Provider: "razorpay"}), domain.ErrInvalidEvent)
	assert.ErrorIs(t, f.svc.ProcessEvent(ctx, nil), domain.ErrInvalidEvent)
}

func TestListAndGetAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, _ := f.job(t)
	payment, err := f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{OrderID: order.ID, Method: "cash", Amount: 200, Actor: admin})
	require.NoError(t, err)

	items, err := f.svc.ListForOrder(ctx, order.ID, customer)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, payment.ID, items[0].ID)

	stranger := actor.Actor{ID: 9, Role: actor.RoleCustomer}
	_, err = f.svc.ListForOrder(ctx, order.ID, stranger)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.Get(ctx, payment.ID, stranger)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.Get(ctx, 42, admin)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, card := f.job(t)

	_, err := f.svc.Receipt(ctx, card.ID, customer)
	assert.ErrorIs(t, err, domain.ErrNotPaid)

	_, err = f.svc.RecordPayment(ctx, domain.RecordPaymentRequest{OrderID: order.ID, Method: "cash", Amount: 1500, Actor: admin})
	require.NoError(t, err)

	doc, err := f.svc.Receipt(ctx, card.ID, customer)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF")))

	_, err = f.svc.Receipt(ctx, card.ID, actor.Actor{ID: 9, Role: actor.RoleCustomer})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.svc.Receipt(ctx, 42, admin)
	assert.ErrorIs(t, err, jobcarddomain.ErrNotFound)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "INR 15.00", formatMoney("INR", 1500))
	assert.Equal(t, "INR 0.05", formatMoney("INR", 5))
	assert.Equal(t, "INR -1.50", formatMoney("INR", -150))
}
