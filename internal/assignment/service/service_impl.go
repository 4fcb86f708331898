package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	"github.com/smallbiznis/fieldops/internal/assignment/domain"
	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	calendarservice "github.com/smallbiznis/fieldops/internal/calendar/service"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/config"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	jobcarddomain "github.com/smallbiznis/fieldops/internal/jobcard/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/internal/providers/email"
	"github.com/smallbiznis/fieldops/internal/ratelimit"
	techniciandomain "github.com/smallbiznis/fieldops/internal/technician/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const lockTTL = 30 * time.Second

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Orders      orderdomain.Repository
	JobCards    jobcarddomain.Repository
	Technicians techniciandomain.Service
	Calendar    calendardomain.Service
	History     historydomain.Service
	Notifier    notificationdomain.Dispatcher
	Email       email.Provider
	Ops         *config.OperationsConfigHolder
	Locker      *ratelimit.Locker `optional:"true"`
	Metrics     *metrics.Metrics  `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	orders      orderdomain.Repository
	jobcards    jobcarddomain.Repository
	technicians techniciandomain.Service
	calendar    calendardomain.Service
	history     historydomain.Service
	notifier    notificationdomain.Dispatcher
	email       email.Provider
	ops         *config.OperationsConfigHolder
	locker      *ratelimit.Locker
	metrics     *metrics.Metrics

	newOTP func() (string, error)
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("assignment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		orders:      p.Orders,
		jobcards:    p.JobCards,
		technicians: p.Technicians,
		calendar:    p.Calendar,
		history:     p.History,
		notifier:    p.Notifier,
		email:       p.Email,
		ops:         p.Ops,
		locker:      p.Locker,
		metrics:     p.Metrics,
		newOTP:      randomOTP,
	}
}

// Assign reserves every technician for every interval or nothing at all.
// Feasibility and the writes share one transaction; with Redis configured
// the technicians are also locked across instances.
func (s *Service) Assign(ctx context.Context, req domain.AssignRequest) (*domain.Result, error) {
	if !req.Actor.IsAdmin() && req.Actor.Role != actor.RoleSystem {
		return nil, domain.ErrForbidden
	}
	techIDs := dedupe(req.TechnicianIDs)
	if len(techIDs) == 0 {
		return nil, domain.ErrNoTechnicians
	}

	order, err := s.orders.FindByID(ctx, s.db, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrNotFound
	}
	if order.Status == orderdomain.StatusCompleted || order.Status == orderdomain.StatusCancelled {
		return nil, orderdomain.ErrOrderClosed
	}

	technicians, err := s.technicians.Require(ctx, techIDs)
	if err != nil {
		return nil, err
	}

	intervals := req.Slots
	if len(intervals) == 0 {
		if order.TimeWindowStart.IsZero() || order.TimeWindowEnd.IsZero() {
			return nil, domain.ErrNoWindow
		}
		intervals = []calendardomain.Interval{{Start: order.TimeWindowStart, End: order.TimeWindowEnd}}
	}
	intervals, err = calendarservice.ValidateIntervals(intervals)
	if err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, techIDs)
	if err != nil {
		return nil, err
	}
	defer release()

	now := s.clock.Now()
	previous := order.Status
	expected := order.Version
	primary := techIDs[0]

	var (
		card  *jobcarddomain.JobCard
		entry *historydomain.Entry
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conflicts, err := s.calendar.FindConflicts(ctx, tx, techIDs, intervals, order.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			for _, c := range conflicts {
				s.log.Info("technician unavailable",
					zap.String("order_id", order.ID.String()),
					zap.String("technician_id", c.TechnicianID.String()),
					zap.String("blocked_by", c.OrderID.String()),
				)
			}
			return domain.ErrConflict
		}

		if err := s.calendar.ClearForOrder(ctx, tx, order.ID); err != nil {
			return err
		}
		for _, id := range techIDs {
			if err := s.calendar.Block(ctx, tx, id, order.ID, intervals); err != nil {
				return err
			}
		}

		order.AssignedTechnicianID = &primary
		order.AssignedTechnicianIDs = datatypes.JSONSlice[snowflake.ID](techIDs)
		order.Status = orderdomain.StatusAssigned
		order.UpdatedAt = now
		if err := s.orders.Update(ctx, tx, order, expected); err != nil {
			return err
		}

		card, err = s.upsertJobCard(ctx, tx, order, primary, now)
		if err != nil {
			return err
		}

		entry, err = s.history.Append(ctx, tx, historydomain.RecordRequest{
			OrderID: order.ID,
			Action:  historydomain.ActionOrderAssigned,
			Message: fmt.Sprintf("Assigned to %s", names(technicians)),
			Actor:   req.Actor,
			Metadata: map[string]any{
				"technician_ids":  idStrings(techIDs),
				"primary":         primary.String(),
				"intervals":       intervals,
				"previous_status": string(previous),
				"job_card_id":     card.ID.String(),
			},
		})
		return err
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, domain.ErrConflict) {
			outcome = "conflict"
		}
		s.metrics.RecordAssignment(ctx, outcome)
		return nil, err
	}

	s.history.Publish(ctx, entry)
	payload := map[string]any{
		"order_id":       order.ID.String(),
		"code":           order.Code,
		"status":         string(order.Status),
		"job_card_id":    card.ID.String(),
		"technician_ids": idStrings(techIDs),
		"intervals":      intervals,
	}
	for _, id := range techIDs {
		s.notifier.NotifyUser(ctx, id, actor.RoleTechnician, notificationdomain.EventJobAssigned, payload)
	}
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventOrderAssigned, payload)
	if order.CustomerID != nil {
		s.notifier.NotifyUser(ctx, *order.CustomerID, actor.RoleCustomer, notificationdomain.EventOrderAssigned, payload)
	}
	s.sendAssignedEmail(ctx, order, card, technicians[0])
	s.metrics.RecordAssignment(ctx, "assigned")
	s.metrics.RecordOrderTransition(ctx, string(order.Status))

	s.log.Info("order assigned",
		zap.String("order_id", order.ID.String()),
		zap.String("primary", primary.String()),
		zap.Int("technicians", len(techIDs)),
		zap.Int("intervals", len(intervals)),
	)

	return &domain.Result{
		Order:   order,
		JobCard: card,
		Entries: len(techIDs) * len(intervals),
	}, nil
}

// upsertJobCard creates the order's card on first assignment and hands an
// existing one to the new primary technician. A card parked in FOLLOW_UP
// reopens for the next visit.
func (s *Service) upsertJobCard(ctx context.Context, tx *gorm.DB, order *orderdomain.Order, primary snowflake.ID, now time.Time) (*jobcarddomain.JobCard, error) {
	card, err := s.jobcards.FindByOrder(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	if card == nil {
		card = &jobcarddomain.JobCard{
			ID:             s.genID.Generate(),
			OrderID:        order.ID,
			TechnicianID:   primary,
			Status:         jobcarddomain.StatusOpen,
			EstimateAmount: order.EstimatedCost,
			PaymentStatus:  jobcarddomain.PaymentPending,
			CheckIns:       datatypes.JSONSlice[jobcarddomain.CheckIn]{},
			ExtraWork:      datatypes.JSONSlice[jobcarddomain.ExtraWork]{},
			SpareParts:     datatypes.JSONSlice[jobcarddomain.SparePart]{},
			Version:        1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		card.Recalculate()
		if err := s.ensureOTP(ctx, tx, card); err != nil {
			return nil, err
		}
		if err := s.jobcards.Insert(ctx, tx, card); err != nil {
			return nil, err
		}
		return card, nil
	}

	if card.Locked() {
		return nil, jobcarddomain.ErrLocked
	}
	expected := card.Version
	card.TechnicianID = primary
	if card.Status == jobcarddomain.StatusFollowUp {
		card.Status = jobcarddomain.StatusOpen
	}
	card.UpdatedAt = now
	if err := s.ensureOTP(ctx, tx, card); err != nil {
		return nil, err
	}
	if err := s.jobcards.Update(ctx, tx, card, expected); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *Service) ensureOTP(ctx context.Context, tx *gorm.DB, card *jobcarddomain.JobCard) error {
	if card.OTP != nil && *card.OTP != "" {
		return nil
	}
	attempts := s.ops.Get().OTPAttempts
	if attempts <= 0 {
		attempts = 5
	}
	for i := 0; i < attempts; i++ {
		otp, err := s.newOTP()
		if err != nil {
			return err
		}
		exists, err := s.jobcards.OTPExists(ctx, tx, otp)
		if err != nil {
			return err
		}
		if !exists {
			card.OTP = &otp
			return nil
		}
	}
	s.log.Error("otp generation exhausted",
		zap.String("job_card_id", card.ID.String()),
		zap.Int("attempts", attempts),
	)
	return domain.ErrOTPExhausted
}

// lock serializes assignments touching the same technicians across
// instances. Without Redis it is a no-op and the transaction alone guards
// the calendar.
func (s *Service) lock(ctx context.Context, techIDs []snowflake.ID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	keys := make([]string, 0, len(techIDs))
	for _, id := range techIDs {
		keys = append(keys, "technician:"+id.String())
	}
	sort.Strings(keys)

	release, ok, err := s.locker.LockAll(ctx, keys, lockTTL)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrBusy
	}
	return release, nil
}

func (s *Service) sendAssignedEmail(ctx context.Context, order *orderdomain.Order, card *jobcarddomain.JobCard, tech techniciandomain.Technician) {
	if order.Customer.Email == "" || s.email == nil {
		return
	}
	otp := ""
	if card.OTP != nil {
		otp = *card.OTP
	}
	err := s.email.SendTemplate(ctx, []string{order.Customer.Email}, email.TemplateTechnicianAssigned, map[string]any{
		"customer_name":   order.Customer.Name,
		"technician_name": tech.Name,
		"order_code":      order.Code,
		"window_start":    order.TimeWindowStart.Format(time.RFC1123),
		"window_end":      order.TimeWindowEnd.Format(time.RFC1123),
		"otp":             otp,
	})
	if err != nil {
		s.log.Warn("failed to send assignment email",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}

func randomOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func dedupe(ids []snowflake.ID) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(ids))
	out := make([]snowflake.ID, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func idStrings(ids []snowflake.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func names(techs []techniciandomain.Technician) string {
	out := ""
	for i, t := range techs {
		if i > 0 {
			out += ", "
		}
		out += t.Name
	}
	return out
}
