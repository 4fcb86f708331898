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
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/internal/payment/domain"
	"github.com/smallbiznis/fieldops/internal/providers/email"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type outcome struct {
	success           bool
	providerPaymentID string
	metadata          map[string]any
}

type settlement struct {
	payment *domain.Payment
	order   *orderdomain.Order
	entries []*historydomain.Entry
	settled bool
}

// finalize moves an open payment to its terminal status. A payment another
// request already settled is returned as is.
func (s *Service) finalize(ctx context.Context, payment *domain.Payment, o outcome, a actor.Actor) (*domain.Payment, error) {
	expected := payment.Status
	now := s.clock.Now()

	if payment.ProviderMetadata == nil {
		payment.ProviderMetadata = datatypes.JSONMap{}
	}
	for k, v := range o.metadata {
		payment.ProviderMetadata[k] = v
	}
	if o.providerPaymentID != "" {
		payment.ProviderPaymentID = optional(o.providerPaymentID)
	}
	payment.UpdatedAt = now
	if o.success {
		payment.Status = domain.StatusSuccess
		payment.PaidAt = &now
	} else {
		payment.Status = domain.StatusFailed
	}

	out := &settlement{payment: payment}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Update(ctx, tx, payment, expected); err != nil {
			return err
		}
		if o.success {
			var err error
			out, err = s.settle(ctx, tx, payment, a)
			return err
		}
		entry, err := s.history.Append(ctx, tx, historydomain.RecordRequest{
			OrderID:  payment.OrderID,
			Action:   historydomain.ActionPaymentFailed,
			Message:  fmt.Sprintf("Payment of %s failed", formatMoney(payment.Currency, payment.Amount)),
			Actor:    a,
			Metadata: paymentMetadata(payment),
		})
		out.entries = append(out.entries, entry)
		return err
	})
	if isConflict(err) {
		stored, loadErr := s.load(ctx, s.db, payment.ID)
		if loadErr != nil {
			return nil, loadErr
		}
		if stored.Status == domain.StatusSuccess {
			return stored, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if !o.success {
		s.history.Publish(ctx, out.entries...)
		s.log.Info("payment failed",
			zap.String("payment_id", payment.ID.String()),
			zap.String("provider", payment.Provider),
		)
		return payment, nil
	}
	s.afterSettle(ctx, out)
	return payment, nil
}

// settle applies a successful payment inside tx: the job card is locked and
// its payment status derived from the total collected, the order completes,
// the calendar entries close and history is appended. Publishing happens in
// afterSettle once the transaction commits.
func (s *Service) settle(ctx context.Context, tx *gorm.DB, payment *domain.Payment, a actor.Actor) (*settlement, error) {
	now := s.clock.Now()
	order, err := s.loadOrder(ctx, tx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	expectedOrder := order.Version

	collected, err := s.repo.SumSuccessful(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}

	due := order.EstimatedCost
	var entries []*historydomain.Entry
	status := jobcarddomain.PaymentPartial

	existing, err := s.jobcardRepo.FindByOrder(ctx, tx, order.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		card, err := s.jobcards.Lock(ctx, tx, existing.ID)
		if err != nil {
			return nil, err
		}
		due = card.FinalAmount
		if collected >= due {
			status = jobcarddomain.PaymentPaid
		}
		if card.PaymentStatus != status {
			expected := card.Version
			card.PaymentStatus = status
			card.UpdatedAt = now
			if err := s.jobcardRepo.Update(ctx, tx, card, expected); err != nil {
				return nil, err
			}
		}
		if !existing.Locked() {
			entry, err := s.history.Append(ctx, tx, historydomain.RecordRequest{
				OrderID:  order.ID,
				Action:   historydomain.ActionJobCardLocked,
				Message:  "Job card locked after payment",
				Actor:    actor.System,
				Metadata: map[string]any{"job_card_id": card.ID.String()},
			})
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	} else if collected >= due {
		status = jobcarddomain.PaymentPaid
	}

	from := order.Status
	order.PaymentStatus = orderdomain.PaymentStatusFor(status)
	order.UpdatedAt = now
	switch from {
	case orderdomain.StatusCancelled:
		s.log.Warn("payment settled on cancelled order",
			zap.String("order_id", order.ID.String()),
			zap.String("payment_id", payment.ID.String()),
		)
	case orderdomain.StatusCompleted:
	default:
		order.Status = orderdomain.StatusCompleted
		if order.FollowUp.Open() {
			resolved := now
			order.FollowUp.ResolvedAt = &resolved
		}
	}
	if err := s.orders.Update(ctx, tx, order, expectedOrder); err != nil {
		return nil, err
	}
	if order.Status == orderdomain.StatusCompleted {
		if err := s.calendar.MarkOrder(ctx, tx, order.ID, calendardomain.StatusCompleted); err != nil {
			return nil, err
		}
	}

	metadata := paymentMetadata(payment)
	metadata["collected"] = collected
	metadata["due"] = due
	metadata["payment_status"] = string(order.PaymentStatus)
	entry, err := s.history.Append(ctx, tx, historydomain.RecordRequest{
		OrderID:  order.ID,
		Action:   historydomain.ActionPaymentSucceeded,
		Message:  fmt.Sprintf("Payment of %s received by %s", formatMoney(payment.Currency, payment.Amount), payment.Method),
		Actor:    a,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}
	entries = append(entries, entry)

	if from != order.Status {
		entry, err := s.history.Append(ctx, tx, historydomain.RecordRequest{
			OrderID: order.ID,
			Action:  historydomain.ActionOrderStatusChanged,
			Message: fmt.Sprintf("Status changed from %s to %s", from, order.Status),
			Actor:   a,
			Metadata: map[string]any{
				"from": string(from),
				"to":   string(order.Status),
			},
		})
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return &settlement{payment: payment, order: order, entries: entries, settled: true}, nil
}

func (s *Service) afterSettle(ctx context.Context, out *settlement) {
	if out == nil || !out.settled {
		return
	}
	payment, order := out.payment, out.order
	s.history.Publish(ctx, out.entries...)

	payload := map[string]any{
		"order_id":       order.ID.String(),
		"code":           order.Code,
		"status":         string(order.Status),
		"payment_id":     payment.ID.String(),
		"method":         string(payment.Method),
		"amount":         payment.Amount,
		"currency":       payment.Currency,
		"payment_status": string(order.PaymentStatus),
	}
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventPaymentReceived, payload)
	for _, id := range order.TechnicianIDs() {
		s.notifier.NotifyUser(ctx, id, actor.RoleTechnician, notificationdomain.EventPaymentReceived, payload)
	}
	if order.CustomerID != nil {
		s.notifier.NotifyUser(ctx, *order.CustomerID, actor.RoleCustomer, notificationdomain.EventPaymentReceived, payload)
	}

	if to := order.Customer.Email; to != "" && s.email != nil {
		err := s.email.SendTemplate(ctx, []string{to}, email.TemplatePaymentReceived, map[string]any{
			"customer_name": order.Customer.Name,
			"order_code":    order.Code,
			"amount":        formatMoney(payment.Currency, payment.Amount),
			"method":        string(payment.Method),
			"paid_at":       payment.PaidAt.Format(time.RFC1123),
		})
		if err != nil {
			s.log.Warn("failed to send payment email", zap.String("order_id", order.ID.String()), zap.Error(err))
		}
	}

	s.metrics.RecordPaymentSettled(ctx, string(payment.Method), payment.Provider)
	s.log.Info("payment settled",
		zap.String("payment_id", payment.ID.String()),
		zap.String("order_id", order.ID.String()),
		zap.String("payment_status", string(order.PaymentStatus)),
	)
}

// ProcessEvent applies a verified gateway webhook. Every event is stored
// once per provider event id; redeliveries of a processed event and events
// for payments that already succeeded are no-ops.
func (s *Service) ProcessEvent(ctx context.Context, event *domain.PaymentEvent) error {
	if err := validateEvent(event); err != nil {
		return err
	}

	now := s.clock.Now()
	received := domain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      now,
	}
	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return domain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			s.log.Debug("payment event already processed",
				zap.String("provider", event.Provider),
				zap.String("provider_event_id", event.ProviderEventID),
			)
			return nil
		}
	}

	payment, err := s.repo.FindByTransactionRef(ctx, s.db, event.Provider, event.OrderRef)
	if err != nil {
		return err
	}
	if payment == nil {
		s.log.Warn("payment event without matching payment",
			zap.String("provider", event.Provider),
			zap.String("order_ref", event.OrderRef),
		)
		return s.repo.MarkProcessed(ctx, s.db, stored.ID, nil, now)
	}

	if err := s.applyEvent(ctx, payment, event); err != nil {
		return err
	}
	return s.repo.MarkProcessed(ctx, s.db, stored.ID, &payment.ID, now)
}

func (s *Service) applyEvent(ctx context.Context, payment *domain.Payment, event *domain.PaymentEvent) error {
	if payment.Status == domain.StatusSuccess {
		return nil
	}
	if event.Amount != payment.Amount || !strings.EqualFold(event.Currency, payment.Currency) {
		s.log.Error("payment event does not match payment",
			zap.String("payment_id", payment.ID.String()),
			zap.Int64("event_amount", event.Amount),
			zap.Int64("amount", payment.Amount),
		)
		return domain.ErrGatewayMismatch
	}

	o := outcome{
		providerPaymentID: event.ProviderPaymentID,
		metadata: map[string]any{
			"gateway_state":     string(event.State),
			"provider_event_id": event.ProviderEventID,
		},
	}
	switch {
	case event.State.Settled():
		o.success = true
	case event.State == domain.GatewayFailed && payment.Status == domain.StatusInitiated:
	default:
		return nil
	}
	_, err := s.finalize(ctx, payment, o, actor.System)
	return err
}

// ExpireCheckout fails an online checkout still waiting on the customer.
// Settled and already failed payments are returned untouched.
func (s *Service) ExpireCheckout(ctx context.Context, paymentID snowflake.ID) (*domain.Payment, error) {
	payment, err := s.load(ctx, s.db, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status != domain.StatusInitiated || !payment.Method.Gateway() {
		return payment, nil
	}

	payment, err = s.finalize(ctx, payment, outcome{
		metadata: map[string]any{"failure_reason": "checkout_expired"},
	}, actor.System)
	if err != nil {
		return nil, err
	}
	if payment.Status == domain.StatusFailed && payment.CustomerID != nil {
		s.notifier.NotifyUser(ctx, *payment.CustomerID, actor.RoleCustomer, notificationdomain.EventPaymentExpired, map[string]any{
			"order_id":   payment.OrderID.String(),
			"payment_id": payment.ID.String(),
			"amount":     payment.Amount,
			"currency":   payment.Currency,
		})
	}
	return payment, nil
}

func validateEvent(event *domain.PaymentEvent) error {
	if event == nil {
		return domain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return domain.ErrInvalidProvider
	}
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	event.OrderRef = strings.TrimSpace(event.OrderRef)
	if event.ProviderEventID == "" || event.OrderRef == "" {
		return domain.ErrInvalidEvent
	}
	if len(event.RawPayload) == 0 {
		event.RawPayload = []byte("{}")
	}
	return nil
}
