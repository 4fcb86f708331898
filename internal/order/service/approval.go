package service

import (
	"context"
	"fmt"

	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/pkg/textutil"
)

func (s *Service) ApproveAdditionalItems(ctx context.Context, req domain.DecisionRequest) (*domain.Order, error) {
	return s.decide(ctx, req, domain.ApprovalApproved)
}

// RejectAdditionalItems records the refusal. The job card lines stay in
// place; removing them is up to the technician.
func (s *Service) RejectAdditionalItems(ctx context.Context, req domain.DecisionRequest) (*domain.Order, error) {
	return s.decide(ctx, req, domain.ApprovalRejected)
}

func (s *Service) decide(ctx context.Context, req domain.DecisionRequest, status domain.ApprovalStatus) (*domain.Order, error) {
	order, err := s.load(ctx, s.db, req.OrderID)
	if err != nil {
		return nil, err
	}
	if req.Actor.IsTechnician() {
		return nil, domain.ErrForbidden
	}
	if err := authorize(order, req.Actor); err != nil {
		return nil, err
	}

	approval := order.Approval()
	if approval.Status != domain.ApprovalPending {
		return nil, domain.ErrNoPendingApproval
	}

	now := s.clock.Now()
	note := textutil.Clean(req.Note)
	items := approval.RequestedItems
	var total int64
	for _, item := range items {
		total += item.Amount
	}

	approval.History = append(approval.History, domain.ApprovalDecision{
		Status:    status,
		Items:     items,
		Note:      note,
		ActorID:   req.Actor.IDPtr(),
		ActorRole: string(req.Actor.Role),
		At:        now,
	})
	approval.RequestedItems = nil
	approval.Status = status
	order.SetApproval(approval)

	expected := order.Version
	order.UpdatedAt = now

	action := historydomain.ActionApprovalApproved
	verb := "approved"
	if status == domain.ApprovalRejected {
		action = historydomain.ActionApprovalRejected
		verb = "rejected"
	}

	entry, err := s.commit(ctx, order, expected, historydomain.RecordRequest{
		OrderID: order.ID,
		Action:  action,
		Message: fmt.Sprintf("Customer %s %d additional item(s)", verb, len(items)),
		Actor:   req.Actor,
		Metadata: map[string]any{
			"items":  len(items),
			"amount": total,
			"note":   note,
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	s.history.Publish(ctx, entry)
	payload := summary(order)
	payload["approval_status"] = string(status)
	payload["amount"] = total
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventApprovalResolved, payload)
	s.notifyTechnicians(ctx, order.TechnicianIDs(), notificationdomain.EventApprovalResolved, payload)
	return order, nil
}
