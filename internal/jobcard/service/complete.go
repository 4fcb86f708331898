package service

import (
	"context"
	"fmt"
	"strings"

	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	"github.com/smallbiznis/fieldops/internal/jobcard/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/pkg/textutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CompleteJob closes the visit. completed finishes the card and the order;
// follow_up parks both until the order is assigned again.
func (s *Service) CompleteJob(ctx context.Context, req domain.CompleteRequest) (*domain.JobCard, error) {
	card, order, err := s.loadForTechnician(ctx, req.JobCardID, req.Actor)
	if err != nil {
		return nil, err
	}

	resolution := domain.Resolution(strings.ToLower(strings.TrimSpace(req.Resolution)))
	if resolution != domain.ResolutionCompleted && resolution != domain.ResolutionFollowUp {
		return nil, domain.ErrInvalidResolution
	}
	paymentStatus := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(req.PaymentStatus)))
	if !paymentStatus.Valid() {
		return nil, domain.ErrInvalidPaymentStatus
	}

	if order.Status.Closed() {
		return nil, orderdomain.ErrOrderClosed
	}
	if card.Status != domain.StatusCheckedIn {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	previous := order.Status
	card.PaymentStatus = paymentStatus
	card.UpdatedAt = now
	order.UpdatedAt = now

	var (
		message  string
		metadata = map[string]any{
			"job_card_id":    card.ID.String(),
			"resolution":     string(resolution),
			"payment_status": string(paymentStatus),
		}
	)

	switch resolution {
	case domain.ResolutionFollowUp:
		reason := textutil.Clean(req.FollowUpNote)
		if reason == "" {
			reason = s.ops.Get().FollowUpReason
		}
		var attachments []string
		if order.FollowUp != nil {
			attachments = order.FollowUp.Attachments
		}
		if attachments == nil {
			attachments = []string{}
		}
		order.FollowUp = &orderdomain.FollowUp{
			Reason:      reason,
			Attachments: attachments,
			CreatedBy:   req.Actor.IDPtr(),
			CreatedAt:   now,
		}
		card.Status = domain.StatusFollowUp
		order.Status = orderdomain.StatusFollowUp
		message = "Job needs a follow-up visit: " + reason
		metadata["reason"] = reason
	case domain.ResolutionCompleted:
		completed := now
		card.Status = domain.StatusCompleted
		card.CompletedAt = &completed
		order.Status = orderdomain.StatusCompleted
		order.PaymentStatus = orderdomain.PaymentStatusFor(paymentStatus)
		if order.FollowUp.Open() {
			resolved := now
			order.FollowUp.ResolvedAt = &resolved
		}
		message = fmt.Sprintf("Job completed, final amount %d", card.FinalAmount)
		metadata["final_amount"] = card.FinalAmount
	}

	entries, err := s.commit(ctx, card, order, func(tx *gorm.DB) error {
		return s.calendar.MarkOrder(ctx, tx, order.ID, calendardomain.StatusCompleted)
	}, historydomain.RecordRequest{
		OrderID:  order.ID,
		Action:   historydomain.ActionJobCompleted,
		Message:  message,
		Actor:    req.Actor,
		Metadata: metadata,
	}, historydomain.RecordRequest{
		OrderID:  order.ID,
		Action:   historydomain.ActionOrderStatusChanged,
		Message:  fmt.Sprintf("Status changed from %s to %s", previous, order.Status),
		Actor:    req.Actor,
		Metadata: map[string]any{"from": string(previous), "to": string(order.Status)},
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(ctx, entries...)
	payload := summary(card, order)
	payload["resolution"] = string(resolution)
	payload["previous_status"] = string(previous)
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventOrderStatusChanged, payload)
	s.notifyCustomer(ctx, order, notificationdomain.EventOrderStatusChanged, payload)
	s.metrics.RecordJobCardMutation(ctx, "complete")
	s.metrics.RecordOrderTransition(ctx, string(order.Status))

	s.log.Info("job completed",
		zap.String("job_card_id", card.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("resolution", string(resolution)),
	)
	return redacted(card), nil
}
