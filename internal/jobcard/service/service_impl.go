package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	catalogdomain "github.com/smallbiznis/fieldops/internal/catalog/domain"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	"github.com/smallbiznis/fieldops/internal/jobcard/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Clock    clock.Clock
	Repo     domain.Repository
	Orders   orderdomain.Repository
	Catalog  catalogdomain.Service
	Calendar calendardomain.Service
	History  historydomain.Service
	Notifier notificationdomain.Dispatcher
	Ops      *config.OperationsConfigHolder
	Metrics  *metrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	clock    clock.Clock
	repo     domain.Repository
	orders   orderdomain.Repository
	catalog  catalogdomain.Service
	calendar calendardomain.Service
	history  historydomain.Service
	notifier notificationdomain.Dispatcher
	ops      *config.OperationsConfigHolder
	metrics  *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("jobcard.service"),
		clock:    p.Clock,
		repo:     p.Repo,
		orders:   p.Orders,
		catalog:  p.Catalog,
		calendar: p.Calendar,
		history:  p.History,
		notifier: p.Notifier,
		ops:      p.Ops,
		metrics:  p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, id snowflake.ID, a actor.Actor) (*domain.JobCard, error) {
	card, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, card, a)
}

func (s *Service) GetByOrder(ctx context.Context, orderID snowflake.ID, a actor.Actor) (*domain.JobCard, error) {
	card, err := s.repo.FindByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, domain.ErrNotFound
	}
	return s.view(ctx, card, a)
}

// view applies read access. Technicians never see the checkout code.
func (s *Service) view(ctx context.Context, card *domain.JobCard, a actor.Actor) (*domain.JobCard, error) {
	order, err := s.loadOrder(ctx, s.db, card.OrderID)
	if err != nil {
		return nil, err
	}
	if a.IsTechnician() {
		if card.TechnicianID != a.ID && !order.AssignedTo(a.ID) {
			return nil, domain.ErrForbidden
		}
		return redacted(card), nil
	}
	if !order.VisibleTo(a) {
		return nil, domain.ErrForbidden
	}
	return card, nil
}

func (s *Service) Lock(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.JobCard, error) {
	card, err := s.load(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if card.Locked() {
		return card, nil
	}

	now := s.clock.Now()
	card.Status = domain.StatusLocked
	card.LockedAt = &now
	card.UpdatedAt = now
	if err := s.repo.Update(ctx, db, card, card.Version); err != nil {
		return nil, err
	}
	s.metrics.RecordJobCardMutation(ctx, "lock")
	return card, nil
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.JobCard, error) {
	card, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, domain.ErrNotFound
	}
	return card, nil
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

// loadForTechnician resolves the card and its order for a technician
// action. Only an assigned technician may act and a locked card never
// changes.
func (s *Service) loadForTechnician(ctx context.Context, id snowflake.ID, a actor.Actor) (*domain.JobCard, *orderdomain.Order, error) {
	if !a.IsTechnician() {
		return nil, nil, domain.ErrForbidden
	}
	card, err := s.load(ctx, s.db, id)
	if err != nil {
		return nil, nil, err
	}
	order, err := s.loadOrder(ctx, s.db, card.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if card.TechnicianID != a.ID && !order.AssignedTo(a.ID) {
		return nil, nil, domain.ErrForbidden
	}
	if card.Locked() {
		return nil, nil, domain.ErrLocked
	}
	return card, order, nil
}

// editable guards charge edits. A completed order is read-only.
func editable(order *orderdomain.Order) error {
	if order.Status == orderdomain.StatusCompleted {
		return orderdomain.ErrOrderReadOnly
	}
	if order.Status.Closed() {
		return orderdomain.ErrOrderClosed
	}
	return nil
}

// commit persists the card and, when given, the order in one transaction.
// Both writes are checked against the versions that were loaded.
func (s *Service) commit(ctx context.Context, card *domain.JobCard, order *orderdomain.Order, extra func(tx *gorm.DB) error, reqs ...historydomain.RecordRequest) ([]*historydomain.Entry, error) {
	cardVersion := card.Version
	var orderVersion int64
	if order != nil {
		orderVersion = order.Version
	}

	entries := make([]*historydomain.Entry, 0, len(reqs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, card, cardVersion); err != nil {
			return err
		}
		if order != nil {
			if err := s.orders.Update(ctx, tx, order, orderVersion); err != nil {
				return err
			}
		}
		if extra != nil {
			if err := extra(tx); err != nil {
				return err
			}
		}
		for _, req := range reqs {
			entry, err := s.history.Append(ctx, tx, req)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) || errors.Is(err, orderdomain.ErrVersionConflict) {
			s.log.Info("job card changed concurrently", zap.String("job_card_id", card.ID.String()))
		}
		return nil, err
	}
	return entries, nil
}

func (s *Service) notifyCustomer(ctx context.Context, order *orderdomain.Order, event string, payload map[string]any) {
	if order.CustomerID == nil {
		return
	}
	s.notifier.NotifyUser(ctx, *order.CustomerID, actor.RoleCustomer, event, payload)
}

func summary(card *domain.JobCard, order *orderdomain.Order) map[string]any {
	return map[string]any{
		"job_card_id":  card.ID.String(),
		"order_id":     order.ID.String(),
		"order_code":   order.Code,
		"status":       string(card.Status),
		"final_amount": card.FinalAmount,
	}
}

func redacted(card *domain.JobCard) *domain.JobCard {
	out := card.Redacted()
	return &out
}
