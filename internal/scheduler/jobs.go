package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	paymentdomain "github.com/smallbiznis/fieldops/internal/payment/domain"
	"go.uber.org/zap"
)

// ExpireCheckoutsJob fails online checkouts left initiated past the TTL.
func (s *Scheduler) ExpireCheckoutsJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	cutoff := s.clock.Now().Add(-s.cfg.CheckoutTTL)

	ids, err := s.fetchStaleCheckouts(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		payment, err := s.payments.ExpireCheckout(ctx, id)
		if err != nil {
			s.logItemError(ctx, "scheduler.checkout.expire_failed", err, zap.String("payment_id", id.String()))
			continue
		}
		if payment.Status == paymentdomain.StatusFailed {
			run.AddProcessed(1)
		} else {
			run.AddSkipped(1)
		}
	}
	return nil
}

// UnassignedOrdersJob alerts admins once per order when an open order has
// no technician and its window starts within the lead time.
func (s *Scheduler) UnassignedOrdersJob(ctx context.Context) error {
	run := jobRunFromContext(ctx)
	now := s.clock.Now()

	orders, err := s.fetchUnassignedOrders(ctx, now.Add(s.cfg.UnassignedLead), s.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, err := s.history.Record(ctx, historydomain.RecordRequest{
			OrderID: order.ID,
			Action:  historydomain.ActionAssignmentOverdue,
			Message: fmt.Sprintf("Order %s starts %s and has no technician", order.Code, order.TimeWindowStart.Format(time.RFC1123)),
			Actor:   actor.System,
			Metadata: map[string]any{
				"time_window_start": order.TimeWindowStart.Format(time.RFC3339),
				"status":            string(order.Status),
			},
		})
		if err != nil {
			s.logItemError(ctx, "scheduler.order.flag_failed", err, zap.String("order_id", order.ID.String()))
			continue
		}
		s.notifier.NotifyAdmins(ctx, notificationdomain.EventOrderUnassigned, map[string]any{
			"order_id":          order.ID.String(),
			"code":              order.Code,
			"status":            string(order.Status),
			"time_window_start": order.TimeWindowStart,
			"overdue":           !order.TimeWindowStart.After(now),
		})
		run.AddProcessed(1)
	}
	return nil
}

func (s *Scheduler) fetchStaleCheckouts(ctx context.Context, cutoff time.Time, limit int) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := s.db.WithContext(ctx).
		Model(&paymentdomain.Payment{}).
		Where("status = ? AND method = ? AND created_at <= ?", paymentdomain.StatusInitiated, paymentdomain.MethodOnline, cutoff).
		Order("created_at asc").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// fetchUnassignedOrders skips orders that already carry an overdue marker
// in their history.
func (s *Scheduler) fetchUnassignedOrders(ctx context.Context, horizon time.Time, limit int) ([]orderdomain.Order, error) {
	var orders []orderdomain.Order
	err := s.db.WithContext(ctx).
		Where("status IN ? AND assigned_technician_id IS NULL AND time_window_start <= ?",
			[]orderdomain.Status{orderdomain.StatusNew, orderdomain.StatusPendingAssignment}, horizon).
		Where("NOT EXISTS (SELECT 1 FROM order_history h WHERE h.order_id = orders.id AND h.action = ?)",
			historydomain.ActionAssignmentOverdue).
		Order("time_window_start asc").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
