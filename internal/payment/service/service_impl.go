package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	jobcarddomain "github.com/smallbiznis/fieldops/internal/jobcard/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/internal/payment/adapters"
	"github.com/smallbiznis/fieldops/internal/payment/domain"
	"github.com/smallbiznis/fieldops/internal/providers/email"
	"github.com/smallbiznis/fieldops/internal/providers/pdf"
	techniciandomain "github.com/smallbiznis/fieldops/internal/technician/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Orders      orderdomain.Repository
	JobCards    jobcarddomain.Service
	JobCardRepo jobcarddomain.Repository
	Calendar    calendardomain.Service
	History     historydomain.Service
	Notifier    notificationdomain.Dispatcher
	Email       email.Provider
	PDF         pdf.Provider
	Providers   *adapters.Registry
	Ops         *config.OperationsConfigHolder
	Cfg         config.Config               `optional:"true"`
	Technicians techniciandomain.Service `optional:"true"`
	Metrics     *metrics.Metrics            `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	orders      orderdomain.Repository
	jobcards    jobcarddomain.Service
	jobcardRepo jobcarddomain.Repository
	calendar    calendardomain.Service
	history     historydomain.Service
	notifier    notificationdomain.Dispatcher
	email       email.Provider
	pdf         pdf.Provider
	providers   *adapters.Registry
	ops         *config.OperationsConfigHolder
	appName     string
	technicians techniciandomain.Service
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		orders:      p.Orders,
		jobcards:    p.JobCards,
		jobcardRepo: p.JobCardRepo,
		calendar:    p.Calendar,
		history:     p.History,
		notifier:    p.Notifier,
		email:       p.Email,
		pdf:         p.PDF,
		providers:   p.Providers,
		ops:         p.Ops,
		appName:     p.Cfg.AppName,
		technicians: p.Technicians,
		metrics:     p.Metrics,
	}
}

func (s *Service) RecordPayment(ctx context.Context, req domain.RecordPaymentRequest) (*domain.Payment, error) {
	if !req.Actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	method := domain.Method(strings.ToLower(strings.TrimSpace(req.Method)))
	if method != domain.MethodCash && method != domain.MethodUPI {
		return nil, domain.ErrInvalidMethod
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	order, card, err := s.payable(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	payment := &domain.Payment{
		ID:               s.genID.Generate(),
		OrderID:          order.ID,
		JobCardID:        cardID(card),
		CustomerID:       order.CustomerID,
		Method:           method,
		Amount:           req.Amount,
		Currency:         order.Currency,
		Status:           domain.StatusSuccess,
		TransactionRef:   optional(req.Reference),
		PaidAt:           &now,
		ProviderMetadata: datatypes.JSONMap{"recorded_by": req.Actor.ID.String()},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var out *settlement
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, payment); err != nil {
			return err
		}
		var err error
		out, err = s.settle(ctx, tx, payment, req.Actor)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterSettle(ctx, out)
	s.log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("method", string(method)),
		zap.Int64("amount", payment.Amount),
	)
	return payment, nil
}

func (s *Service) InitializeCustomerPayment(ctx context.Context, req domain.InitializeRequest) (*domain.InitializeResponse, error) {
	method := domain.Method(strings.ToLower(strings.TrimSpace(req.Method)))
	if !method.Valid() {
		return nil, domain.ErrInvalidMethod
	}
	if req.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	order, card, err := s.payable(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := payer(order, req.Actor); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	payment := &domain.Payment{
		ID:               s.genID.Generate(),
		OrderID:          order.ID,
		JobCardID:        cardID(card),
		CustomerID:       order.CustomerID,
		Method:           method,
		Amount:           req.Amount,
		Currency:         order.Currency,
		Status:           domain.StatusInitiated,
		ProviderMetadata: datatypes.JSONMap{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var checkout *domain.GatewayOrder
	if method.Gateway() {
		name := strings.ToLower(strings.TrimSpace(req.Provider))
		if name == "" {
			name = s.ops.Get().DefaultOnlineProvider
		}
		provider, err := s.providers.Get(name)
		if err != nil {
			return nil, err
		}
		gw, err := provider.CreateOrder(ctx, domain.CreateOrderRequest{
			Amount:   payment.Amount,
			Currency: payment.Currency,
			Receipt:  order.Code,
			Notes: map[string]string{
				"order_id":   order.ID.String(),
				"payment_id": payment.ID.String(),
			},
		})
		if err != nil {
			s.log.Error("gateway order creation failed",
				zap.String("provider", name),
				zap.String("order_id", order.ID.String()),
				zap.Error(err),
			)
			return nil, err
		}
		if strings.TrimSpace(gw.ID) == "" || gw.Amount != payment.Amount || !strings.EqualFold(gw.Currency, payment.Currency) {
			s.log.Error("gateway order does not match request",
				zap.String("provider", name),
				zap.String("gateway_order_id", gw.ID),
				zap.Int64("gateway_amount", gw.Amount),
				zap.Int64("amount", payment.Amount),
			)
			return nil, domain.ErrGatewayMismatch
		}
		payment.Provider = provider.Name()
		payment.TransactionRef = optional(gw.ID)
		payment.ProviderMetadata["gateway_status"] = gw.Status
		checkout = &gw
	}

	var entry *historydomain.Entry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, payment); err != nil {
			return err
		}
		entry, err = s.history.Append(ctx, tx, historydomain.RecordRequest{
			OrderID:  order.ID,
			Action:   historydomain.ActionPaymentInitiated,
			Message:  fmt.Sprintf("Payment of %s initiated by %s", formatMoney(payment.Currency, payment.Amount), payment.Method),
			Actor:    req.Actor,
			Metadata: paymentMetadata(payment),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(ctx, entry)
	return &domain.InitializeResponse{Payment: payment, Checkout: checkout}, nil
}

func (s *Service) ConfirmCustomerPayment(ctx context.Context, req domain.ConfirmRequest) (*domain.Payment, error) {
	payment, err := s.load(ctx, s.db, req.PaymentID)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, s.db, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if err := payer(order, req.Actor); err != nil {
		return nil, err
	}

	switch payment.Status {
	case domain.StatusSuccess:
		return payment, nil
	case domain.StatusFailed:
		return nil, domain.ErrPaymentFailed
	}

	if !payment.Method.Gateway() {
		return s.finalize(ctx, payment, outcome{success: true}, req.Actor)
	}

	provider, err := s.providers.Get(payment.Provider)
	if err != nil {
		return nil, err
	}
	ref := deref(payment.TransactionRef)
	providerPaymentID := strings.TrimSpace(req.ProviderPaymentID)
	if !provider.VerifySignature(ref, providerPaymentID, strings.TrimSpace(req.Signature)) {
		s.log.Warn("payment signature rejected",
			zap.String("payment_id", payment.ID.String()),
			zap.String("provider", payment.Provider),
		)
		return nil, domain.ErrInvalidSignature
	}

	gp, err := provider.FetchPayment(ctx, providerPaymentID)
	if err != nil {
		return nil, err
	}
	if gp.OrderRef != ref || gp.Amount != payment.Amount || !strings.EqualFold(gp.Currency, payment.Currency) {
		s.log.Error("gateway payment does not match",
			zap.String("payment_id", payment.ID.String()),
			zap.String("gateway_order_ref", gp.OrderRef),
			zap.Int64("gateway_amount", gp.Amount),
		)
		return nil, domain.ErrGatewayMismatch
	}

	return s.finalize(ctx, payment, outcome{
		success:           gp.State.Settled(),
		providerPaymentID: gp.ID,
		metadata: map[string]any{
			"gateway_state":  string(gp.State),
			"gateway_method": gp.Method,
		},
	}, req.Actor)
}

func (s *Service) ListForOrder(ctx context.Context, orderID snowflake.ID, a actor.Actor) ([]domain.Payment, error) {
	order, err := s.loadOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if !order.VisibleTo(a) {
		return nil, domain.ErrForbidden
	}
	return s.repo.ListByOrder(ctx, s.db, orderID)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID, a actor.Actor) (*domain.Payment, error) {
	payment, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	order, err := s.loadOrder(ctx, s.db, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.VisibleTo(a) {
		return nil, domain.ErrForbidden
	}
	return payment, nil
}

// payable loads an order that can still take money, with its job card when
// one exists.
func (s *Service) payable(ctx context.Context, orderID snowflake.ID) (*orderdomain.Order, *jobcarddomain.JobCard, error) {
	order, err := s.loadOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, nil, err
	}
	if order.Status == orderdomain.StatusCancelled {
		return nil, nil, domain.ErrOrderClosed
	}
	if order.PaymentStatus == orderdomain.PaymentPaid {
		return nil, nil, domain.ErrAlreadyPaid
	}
	card, err := s.jobcardRepo.FindByOrder(ctx, s.db, order.ID)
	if err != nil {
		return nil, nil, err
	}
	return order, card, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	payment, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrNotFound
	}
	return payment, nil
}

func (s *Service) loadOrder(ctx context.Context, db *gorm.DB, id snowflake.ID) (*orderdomain.Order, error) {
	order, err := s.orders.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrNotFound
	}
	return order, nil
}

// payer allows admins and the customer who owns the order.
func payer(order *orderdomain.Order, a actor.Actor) error {
	if a.IsAdmin() || (a.IsCustomer() && order.OwnedBy(a.ID)) {
		return nil
	}
	return domain.ErrForbidden
}

func cardID(card *jobcarddomain.JobCard) *snowflake.ID {
	if card == nil {
		return nil
	}
	id := card.ID
	return &id
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatMoney(currency string, amount int64) string {
	sign := ""
	if amount < 0 {
		sign, amount = "-", -amount
	}
	return fmt.Sprintf("%s %s%d.%02d", currency, sign, amount/100, amount%100)
}

func paymentMetadata(p *domain.Payment) map[string]any {
	m := map[string]any{
		"payment_id": p.ID.String(),
		"method":     string(p.Method),
		"amount":     p.Amount,
		"currency":   p.Currency,
		"status":     string(p.Status),
	}
	if p.Provider != "" {
		m["provider"] = p.Provider
	}
	if p.TransactionRef != nil {
		m["transaction_ref"] = *p.TransactionRef
	}
	return m
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrStatusConflict)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func serviceDescription(services []orderdomain.RequestedService) string {
	names := make([]string, 0, len(services))
	for _, svc := range services {
		if svc.Quantity > 1 {
			names = append(names, fmt.Sprintf("%s x%d", svc.Name, svc.Quantity))
			continue
		}
		names = append(names, svc.Name)
	}
	if len(names) == 0 {
		return "Service visit"
	}
	return strings.Join(names, ", ")
}
