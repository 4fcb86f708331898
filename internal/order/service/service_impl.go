package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/fieldops/internal/actor"
	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	customerdomain "github.com/smallbiznis/fieldops/internal/customer/domain"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	jobcarddomain "github.com/smallbiznis/fieldops/internal/jobcard/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/internal/observability/metrics"
	"github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/internal/providers/email"
	"github.com/smallbiznis/fieldops/internal/storage"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"github.com/smallbiznis/fieldops/pkg/textutil"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	JobCards  jobcarddomain.Repository
	Calendar  calendardomain.Service
	Customers customerdomain.Service
	History   historydomain.Service
	Notifier  notificationdomain.Dispatcher
	Storage   storage.Storage
	Email     email.Provider
	Ops       *config.OperationsConfigHolder
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	jobcards  jobcarddomain.Repository
	calendar  calendardomain.Service
	customers customerdomain.Service
	history   historydomain.Service
	notifier  notificationdomain.Dispatcher
	storage   storage.Storage
	email     email.Provider
	ops       *config.OperationsConfigHolder
	metrics   *metrics.Metrics

	newCode func(time.Time) string
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("order.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		jobcards:  p.JobCards,
		calendar:  p.Calendar,
		customers: p.Customers,
		history:   p.History,
		notifier:  p.Notifier,
		storage:   p.Storage,
		email:     p.Email,
		ops:       p.Ops,
		metrics:   p.Metrics,
		newCode:   newOrderCode,
	}
}

// newOrderCode renders SRV-YYMMDD-XXXXXX using the random tail of a ULID.
func newOrderCode(now time.Time) string {
	id := ulid.Make().String()
	return "SRV-" + now.UTC().Format("060102") + "-" + id[len(id)-6:]
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Order, error) {
	if req.TimeWindowStart == nil || req.TimeWindowEnd == nil {
		return nil, domain.ErrInvalidSchedule
	}
	start := normalizeTime(*req.TimeWindowStart)
	end := normalizeTime(*req.TimeWindowEnd)
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return nil, domain.ErrInvalidSchedule
	}
	scheduledAt := start
	if req.ScheduledAt != nil && !req.ScheduledAt.IsZero() {
		scheduledAt = normalizeTime(*req.ScheduledAt)
	}

	if req.EstimatedCost < 0 {
		return nil, domain.ErrInvalidAmount
	}

	services, err := normalizeServices(req.Services)
	if err != nil {
		return nil, err
	}

	snapshot, customerID, err := s.resolveCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	source, status := domain.SourceAdmin, domain.StatusPendingAssignment
	switch req.Actor.Role {
	case actor.RoleCustomer:
		source = domain.SourceCustomer
	case actor.RolePublic:
		source, status = domain.SourcePublic, domain.StatusNew
	}

	code, err := s.generateCode(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := &domain.Order{
		ID:                    s.genID.Generate(),
		Code:                  code,
		Customer:              snapshot,
		CustomerID:            customerID,
		AddressID:             req.AddressID,
		Services:              datatypes.JSONSlice[domain.RequestedService](services),
		EstimatedCost:         req.EstimatedCost,
		Currency:              s.ops.Get().Currency,
		ScheduledAt:           scheduledAt,
		TimeWindowStart:       start,
		TimeWindowEnd:         end,
		Status:                status,
		PaymentStatus:         domain.PaymentUnpaid,
		AssignedTechnicianIDs: datatypes.JSONSlice[snowflake.ID]{},
		Media:                 datatypes.JSONSlice[domain.Media]{},
		Notes:                 textutil.Clean(req.Notes),
		Source:                source,
		Version:               1,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	order.SetApproval(domain.CustomerApproval{Status: domain.ApprovalNotRequired})

	var entry *historydomain.Entry
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, order); err != nil {
			return err
		}
		entry, err = s.history.Append(ctx, tx, historydomain.RecordRequest{
			OrderID: order.ID,
			Action:  historydomain.ActionOrderCreated,
			Message: fmt.Sprintf("Order %s created", order.Code),
			Actor:   req.Actor,
			Metadata: map[string]any{
				"source": string(order.Source),
				"status": string(order.Status),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(ctx, entry)
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventOrderNew, summary(order))
	s.metrics.RecordOrderCreated(ctx, string(order.Source))
	s.sendEmail(ctx, order.Customer.Email, email.TemplateOrderReceived, map[string]any{
		"customer_name": order.Customer.Name,
		"order_code":    order.Code,
		"window_start":  order.TimeWindowStart.Format(time.RFC1123),
	})

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.String("code", order.Code),
		zap.String("source", string(order.Source)),
	)
	return order, nil
}

// resolveCustomer fills the snapshot from the saved customer and address.
// Fields supplied on the request win.
func (s *Service) resolveCustomer(ctx context.Context, req domain.CreateRequest) (domain.CustomerSnapshot, *snowflake.ID, error) {
	snapshot := req.Customer
	customerID := req.CustomerID
	if req.Actor.IsCustomer() {
		id := req.Actor.ID
		customerID = &id
	}

	if customerID != nil {
		customer, err := s.customers.GetByID(ctx, *customerID)
		if err != nil {
			return domain.CustomerSnapshot{}, nil, err
		}
		snapshot.Name = firstNonEmpty(snapshot.Name, customer.Name)
		snapshot.Phone = firstNonEmpty(snapshot.Phone, customer.Phone)
		snapshot.Email = firstNonEmpty(snapshot.Email, customer.Email)
	}

	if req.AddressID != nil {
		if customerID == nil {
			return domain.CustomerSnapshot{}, nil, domain.ErrInvalidCustomer
		}
		address, err := s.customers.GetAddress(ctx, *customerID, *req.AddressID)
		if err != nil {
			return domain.CustomerSnapshot{}, nil, err
		}
		snapshot.Address = firstNonEmpty(snapshot.Address, address.Formatted())
		if snapshot.Latitude == nil && snapshot.Longitude == nil {
			snapshot.Latitude, snapshot.Longitude = address.Latitude, address.Longitude
		}
	}

	snapshot.Name = textutil.Clean(snapshot.Name)
	snapshot.Phone = strings.TrimSpace(snapshot.Phone)
	snapshot.Email = strings.ToLower(strings.TrimSpace(snapshot.Email))
	snapshot.Address = textutil.Clean(snapshot.Address)
	if snapshot.Name == "" || snapshot.Phone == "" || snapshot.Address == "" {
		return domain.CustomerSnapshot{}, nil, domain.ErrInvalidCustomer
	}
	return snapshot, customerID, nil
}

func (s *Service) generateCode(ctx context.Context) (string, error) {
	attempts := s.ops.Get().OrderCodeAttempts
	if attempts <= 0 {
		attempts = 5
	}
	for i := 0; i < attempts; i++ {
		code := s.newCode(s.clock.Now())
		exists, err := s.repo.CodeExists(ctx, s.db, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	s.log.Error("order code generation exhausted", zap.Int("attempts", attempts))
	return "", domain.ErrCodeExhausted
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	var filter domain.ListFilter
	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(strings.ToUpper(raw))
		if !status.Valid() {
			return domain.ListResponse{}, domain.ErrInvalidStatus
		}
		filter.Status = &status
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return domain.ListResponse{}, domain.ErrInvalidSchedule
	}
	filter.From = req.From
	filter.To = req.To
	filter.TechnicianID = req.TechnicianID
	filter.CustomerID = req.CustomerID

	if token := strings.TrimSpace(req.PageToken); token != "" {
		if _, err := pagination.DecodeCursor(token); err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
	}

	page := req.Pagination.Normalize()
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	info, items := pagination.BuildCursorPageInfo(items, page.PageSize, func(o *domain.Order) pagination.Cursor {
		return pagination.Cursor{ID: o.ID.String(), CreatedAt: o.CreatedAt.Format(time.RFC3339Nano)}
	})

	orders := make([]domain.Order, 0, len(items))
	for _, item := range items {
		orders = append(orders, *item)
	}
	return domain.ListResponse{PageInfo: *info, Orders: orders}, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Order, error) {
	return s.load(ctx, s.db, id)
}

func (s *Service) Reschedule(ctx context.Context, req domain.RescheduleRequest) (*domain.Order, error) {
	start := normalizeTime(req.Start)
	end := normalizeTime(req.End)
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return nil, domain.ErrInvalidSchedule
	}

	order, err := s.load(ctx, s.db, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, req.Actor); err != nil {
		return nil, err
	}
	if order.Status.Closed() {
		return nil, domain.ErrOrderClosed
	}

	previousStart, previousEnd := order.TimeWindowStart, order.TimeWindowEnd
	expected := order.Version
	order.ScheduledAt = start
	order.TimeWindowStart = start
	order.TimeWindowEnd = end
	order.Status = domain.StatusRescheduled
	order.RescheduleCount++
	order.UpdatedAt = s.clock.Now()

	entry, err := s.commit(ctx, order, expected, historydomain.RecordRequest{
		OrderID: order.ID,
		Action:  historydomain.ActionOrderRescheduled,
		Message: fmt.Sprintf("Rescheduled to %s until %s", start.Format(time.RFC3339), end.Format(time.RFC3339)),
		Actor:   req.Actor,
		Metadata: map[string]any{
			"previous_start":   previousStart,
			"previous_end":     previousEnd,
			"start":            start,
			"end":              end,
			"reschedule_count": order.RescheduleCount,
		},
	}, func(tx *gorm.DB) error {
		return s.moveCalendar(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	if warn := s.ops.Get().RescheduleWarnAfter; warn > 0 && order.RescheduleCount >= warn {
		s.log.Warn("order rescheduled repeatedly",
			zap.String("order_id", order.ID.String()),
			zap.Int("reschedule_count", order.RescheduleCount),
		)
	}

	s.history.Publish(ctx, entry)
	payload := summary(order)
	payload["time_window_start"] = order.TimeWindowStart
	payload["time_window_end"] = order.TimeWindowEnd
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventOrderRescheduled, payload)
	s.notifyTechnicians(ctx, order.TechnicianIDs(), notificationdomain.EventOrderRescheduled, payload)
	s.metrics.RecordOrderTransition(ctx, string(order.Status))
	return order, nil
}

// moveCalendar re-blocks the assigned technicians on the order's current
// window. Availability is not re-checked: a reschedule is an admin override.
func (s *Service) moveCalendar(ctx context.Context, tx *gorm.DB, order *domain.Order) error {
	technicians := order.TechnicianIDs()
	if len(technicians) == 0 {
		return nil
	}
	if err := s.calendar.ClearForOrder(ctx, tx, order.ID); err != nil {
		return err
	}
	window := []calendardomain.Interval{{Start: order.TimeWindowStart, End: order.TimeWindowEnd}}
	for _, id := range technicians {
		if err := s.calendar.Block(ctx, tx, id, order.ID, window); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) History(ctx context.Context, orderID snowflake.ID) ([]historydomain.Entry, error) {
	if _, err := s.load(ctx, s.db, orderID); err != nil {
		return nil, err
	}
	return s.history.List(ctx, orderID)
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	order, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return order, nil
}

// commit writes the order under its version check together with one
// history entry. extra runs first inside the same transaction.
func (s *Service) commit(ctx context.Context, order *domain.Order, expected int64, req historydomain.RecordRequest, extra func(tx *gorm.DB) error) (*historydomain.Entry, error) {
	var entry *historydomain.Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if extra != nil {
			if err := extra(tx); err != nil {
				return err
			}
		}
		if err := s.repo.Update(ctx, tx, order, expected); err != nil {
			return err
		}
		var err error
		entry, err = s.history.Append(ctx, tx, req)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			s.log.Info("order changed concurrently", zap.String("order_id", order.ID.String()))
		}
		return nil, err
	}
	return entry, nil
}

func (s *Service) notifyTechnicians(ctx context.Context, ids []snowflake.ID, event string, payload map[string]any) {
	for _, id := range ids {
		s.notifier.NotifyUser(ctx, id, actor.RoleTechnician, event, payload)
	}
}

func (s *Service) notifyCustomer(ctx context.Context, order *domain.Order, event string, payload map[string]any) {
	if order.CustomerID == nil {
		return
	}
	s.notifier.NotifyUser(ctx, *order.CustomerID, actor.RoleCustomer, event, payload)
}

func (s *Service) sendEmail(ctx context.Context, to, template string, data map[string]any) {
	if to == "" || s.email == nil {
		return
	}
	if err := s.email.SendTemplate(ctx, []string{to}, template, data); err != nil {
		s.log.Warn("failed to send email", zap.String("template", template), zap.Error(err))
	}
}

func authorize(order *domain.Order, a actor.Actor) error {
	if !order.VisibleTo(a) {
		return domain.ErrForbidden
	}
	return nil
}

func summary(order *domain.Order) map[string]any {
	return map[string]any{
		"order_id": order.ID.String(),
		"code":     order.Code,
		"status":   string(order.Status),
	}
}

func normalizeServices(in []domain.RequestedService) ([]domain.RequestedService, error) {
	out := make([]domain.RequestedService, 0, len(in))
	for _, svc := range in {
		name := textutil.Clean(svc.Name)
		if name == "" {
			return nil, domain.ErrInvalidServices
		}
		if svc.Quantity < 0 {
			return nil, domain.ErrInvalidServices
		}
		if svc.Quantity == 0 {
			svc.Quantity = 1
		}
		svc.Name = name
		out = append(out, svc)
	}
	if len(out) == 0 {
		return nil, domain.ErrInvalidServices
	}
	return out, nil
}

func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC().Truncate(time.Second)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
