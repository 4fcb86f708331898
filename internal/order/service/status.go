package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	jobcarddomain "github.com/smallbiznis/fieldops/internal/jobcard/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/pkg/textutil"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type transition struct {
	target      domain.Status
	reason      string
	attachments []string
	actor       actor.Actor
	action      string
}

func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (*domain.Order, error) {
	target := domain.Status(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !target.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	order, err := s.load(ctx, s.db, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, req.Actor); err != nil {
		return nil, err
	}

	return s.transition(ctx, order, transition{
		target:      target,
		reason:      req.Reason,
		attachments: req.Attachments,
		actor:       req.Actor,
		action:      historydomain.ActionOrderStatusChanged,
	})
}

func (s *Service) RequestCancellation(ctx context.Context, orderID snowflake.ID, reason string, a actor.Actor) (*domain.Order, error) {
	order, err := s.load(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, a); err != nil {
		return nil, err
	}
	if order.Status == domain.StatusCancellationRequested {
		return nil, domain.ErrCancellationRequested
	}

	return s.transition(ctx, order, transition{
		target: domain.StatusCancellationRequested,
		reason: reason,
		actor:  a,
		action: historydomain.ActionCancellationRequested,
	})
}

func (s *Service) Cancel(ctx context.Context, orderID snowflake.ID, reason string, a actor.Actor) (*domain.Order, error) {
	return s.UpdateStatus(ctx, domain.UpdateStatusRequest{
		OrderID: orderID,
		Status:  string(domain.StatusCancelled),
		Reason:  reason,
		Actor:   a,
	})
}

// transition applies one status change. Closed orders never move. Entering
// FOLLOW_UP unassigns the technicians and releases their calendar, and the
// job card follows the order through JobCardStatusFor unless it is locked.
func (s *Service) transition(ctx context.Context, order *domain.Order, t transition) (*domain.Order, error) {
	if order.Status.Closed() {
		return nil, domain.ErrOrderClosed
	}

	reason := textutil.Clean(t.reason)
	now := s.clock.Now()
	from := order.Status
	notified := order.TechnicianIDs()
	expected := order.Version

	var release calendardomain.Status
	switch t.target {
	case domain.StatusFollowUp:
		if reason == "" {
			return nil, domain.ErrFollowUpReason
		}
		attachments := textutil.CleanAll(t.attachments)
		if len(attachments) == 0 {
			return nil, domain.ErrFollowUpAttachments
		}
		order.FollowUp = &domain.FollowUp{
			Reason:      reason,
			Attachments: attachments,
			CreatedBy:   t.actor.IDPtr(),
			CreatedAt:   now,
		}
		order.AssignedTechnicianID = nil
		order.AssignedTechnicianIDs = datatypes.JSONSlice[snowflake.ID]{}
		release = calendardomain.StatusCancelled
	case domain.StatusCancelled:
		release = calendardomain.StatusCancelled
	case domain.StatusCompleted:
		release = calendardomain.StatusCompleted
	}

	if from == domain.StatusFollowUp && t.target != domain.StatusFollowUp && order.FollowUp.Open() {
		resolved := now
		order.FollowUp.ResolvedAt = &resolved
	}

	order.Status = t.target
	order.UpdatedAt = now

	metadata := map[string]any{
		"from": string(from),
		"to":   string(t.target),
	}
	if reason != "" {
		metadata["reason"] = reason
	}

	entry, err := s.commit(ctx, order, expected, historydomain.RecordRequest{
		OrderID:  order.ID,
		Action:   t.action,
		Message:  statusMessage(from, t.target, reason),
		Actor:    t.actor,
		Metadata: metadata,
	}, func(tx *gorm.DB) error {
		if release != "" {
			if err := s.calendar.MarkOrder(ctx, tx, order.ID, release); err != nil {
				return err
			}
		}
		if status, ok := domain.JobCardStatusFor(t.target); ok {
			return s.projectJobCard(ctx, tx, order.ID, status, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(ctx, entry)
	payload := summary(order)
	payload["previous_status"] = string(from)
	if reason != "" {
		payload["reason"] = reason
	}
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventOrderStatusChanged, payload)
	s.notifyTechnicians(ctx, notified, notificationdomain.EventOrderStatusChanged, payload)
	s.metrics.RecordOrderTransition(ctx, string(order.Status))

	s.log.Info("order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
	)
	return order, nil
}

func (s *Service) projectJobCard(ctx context.Context, tx *gorm.DB, orderID snowflake.ID, status jobcarddomain.Status, now time.Time) error {
	card, err := s.jobcards.FindByOrder(ctx, tx, orderID)
	if err != nil || card == nil {
		return err
	}
	if card.Locked() || card.Status == status {
		return nil
	}
	// A visited card never reopens; its check-ins already count.
	if status == jobcarddomain.StatusOpen && len(card.CheckIns) > 0 {
		return nil
	}

	expected := card.Version
	card.Status = status
	card.UpdatedAt = now
	if status == jobcarddomain.StatusCompleted && card.CompletedAt == nil {
		completed := now
		card.CompletedAt = &completed
	}
	return s.jobcards.Update(ctx, tx, card, expected)
}

func statusMessage(from, to domain.Status, reason string) string {
	msg := fmt.Sprintf("Status changed from %s to %s", from, to)
	if reason != "" {
		msg += ": " + reason
	}
	return msg
}
