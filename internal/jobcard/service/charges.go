package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/fieldops/internal/actor"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	"github.com/smallbiznis/fieldops/internal/jobcard/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/pkg/textutil"
)

func (s *Service) AddExtraWork(ctx context.Context, req domain.AddExtraWorkRequest) (*domain.JobCard, error) {
	card, order, err := s.loadForCharges(ctx, req.JobCardID, req.Actor)
	if err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, domain.ErrInvalidItems
	}

	now := s.clock.Now()
	lines := make([]domain.ExtraWork, 0, len(req.Items))
	requested := make([]orderdomain.RequestedItem, 0, len(req.Items))
	for _, in := range req.Items {
		item, err := s.catalog.ResolveActiveItem(ctx, in.CategoryID, in.ItemID)
		if err != nil {
			return nil, err
		}
		amount := item.BasePrice
		if in.Amount != nil {
			amount = *in.Amount
		}
		if amount <= 0 {
			return nil, domain.ErrInvalidAmount
		}
		description := textutil.Clean(in.Description)
		if description == "" {
			description = item.Name
		}

		line := domain.ExtraWork{
			LineID:      ulid.Make().String(),
			CategoryID:  item.CategoryID,
			ItemID:      item.ID,
			Description: description,
			Amount:      amount,
			AddedAt:     now,
		}
		lines = append(lines, line)

		categoryID, itemID := line.CategoryID, line.ItemID
		requested = append(requested, orderdomain.RequestedItem{
			LineID:      line.LineID,
			Kind:        orderdomain.ItemExtraWork,
			Description: description,
			CategoryID:  &categoryID,
			ItemID:      &itemID,
			Amount:      amount,
			RequestedAt: now,
		})
	}

	card.ExtraWork = append(card.ExtraWork, lines...)
	return s.requestApproval(ctx, card, order, requested, req.Actor, historydomain.ActionExtraWorkAdded, "extra_work")
}

func (s *Service) AddSpareParts(ctx context.Context, req domain.AddSparePartsRequest) (*domain.JobCard, error) {
	card, order, err := s.loadForCharges(ctx, req.JobCardID, req.Actor)
	if err != nil {
		return nil, err
	}
	if len(req.Parts) == 0 {
		return nil, domain.ErrInvalidItems
	}

	now := s.clock.Now()
	lines := make([]domain.SparePart, 0, len(req.Parts))
	requested := make([]orderdomain.RequestedItem, 0, len(req.Parts))
	for _, in := range req.Parts {
		part := textutil.Clean(in.Part)
		if part == "" || in.Quantity <= 0 {
			return nil, domain.ErrInvalidItems
		}
		if in.UnitPrice <= 0 {
			return nil, domain.ErrInvalidAmount
		}

		line := domain.SparePart{
			LineID:    ulid.Make().String(),
			Part:      part,
			Quantity:  in.Quantity,
			UnitPrice: in.UnitPrice,
			AddedAt:   now,
		}
		lines = append(lines, line)
		requested = append(requested, orderdomain.RequestedItem{
			LineID:      line.LineID,
			Kind:        orderdomain.ItemSparePart,
			Description: part,
			Part:        part,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      line.Amount(),
			RequestedAt: now,
		})
	}

	card.SpareParts = append(card.SpareParts, lines...)
	return s.requestApproval(ctx, card, order, requested, req.Actor, historydomain.ActionSparePartsAdded, "spare_parts")
}

// requestApproval recalculates the card and opens the customer approval gate
// for the new lines. Card and order are written together.
func (s *Service) requestApproval(ctx context.Context, card *domain.JobCard, order *orderdomain.Order, items []orderdomain.RequestedItem, a actor.Actor, action, metric string) (*domain.JobCard, error) {
	now := s.clock.Now()
	card.Recalculate()
	card.UpdatedAt = now

	var total int64
	for _, item := range items {
		total += item.Amount
	}

	approval := order.Approval()
	approval.RequestedItems = append(approval.RequestedItems, items...)
	approval.Status = orderdomain.ApprovalPending
	approval.History = append(approval.History, orderdomain.ApprovalDecision{
		Status:    orderdomain.ApprovalPending,
		Items:     items,
		ActorID:   a.IDPtr(),
		ActorRole: string(a.Role),
		At:        now,
	})
	order.SetApproval(approval)
	order.UpdatedAt = now

	entries, err := s.commit(ctx, card, order, nil, historydomain.RecordRequest{
		OrderID: order.ID,
		Action:  action,
		Message: fmt.Sprintf("Added %d line item(s) awaiting customer approval", len(items)),
		Actor:   a,
		Metadata: map[string]any{
			"job_card_id":        card.ID.String(),
			"amount":             total,
			"additional_charges": card.AdditionalCharges,
			"final_amount":       card.FinalAmount,
		},
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(ctx, entries...)
	payload := summary(card, order)
	payload["amount"] = total
	payload["items"] = items
	s.notifyCustomer(ctx, order, notificationdomain.EventApprovalRequested, payload)
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventApprovalRequested, payload)
	s.metrics.RecordJobCardMutation(ctx, metric)
	return redacted(card), nil
}

func (s *Service) RemoveExtraWork(ctx context.Context, req domain.RemoveLineRequest) (*domain.JobCard, error) {
	card, order, err := s.loadForCharges(ctx, req.JobCardID, req.Actor)
	if err != nil {
		return nil, err
	}
	if req.Index < 0 || req.Index >= len(card.ExtraWork) {
		return nil, domain.ErrLineNotFound
	}

	line := card.ExtraWork[req.Index]
	card.ExtraWork = append(card.ExtraWork[:req.Index:req.Index], card.ExtraWork[req.Index+1:]...)
	return s.removeLine(ctx, card, order, line.LineID, line.Amount, req.Actor, historydomain.ActionExtraWorkRemoved,
		fmt.Sprintf("Removed extra work %q", line.Description))
}

func (s *Service) RemoveSparePart(ctx context.Context, req domain.RemoveLineRequest) (*domain.JobCard, error) {
	card, order, err := s.loadForCharges(ctx, req.JobCardID, req.Actor)
	if err != nil {
		return nil, err
	}
	if req.Index < 0 || req.Index >= len(card.SpareParts) {
		return nil, domain.ErrLineNotFound
	}

	line := card.SpareParts[req.Index]
	card.SpareParts = append(card.SpareParts[:req.Index:req.Index], card.SpareParts[req.Index+1:]...)
	return s.removeLine(ctx, card, order, line.LineID, line.Amount(), req.Actor, historydomain.ActionSparePartRemoved,
		fmt.Sprintf("Removed spare part %q", line.Part))
}

// removeLine drops the matching requested item from the approval gate. The
// gate reopens as not_required once nothing is left to approve.
func (s *Service) removeLine(ctx context.Context, card *domain.JobCard, order *orderdomain.Order, lineID string, amount int64, a actor.Actor, action, message string) (*domain.JobCard, error) {
	now := s.clock.Now()
	card.Recalculate()
	card.UpdatedAt = now

	approval := order.Approval()
	removed := false
	for i, item := range approval.RequestedItems {
		if item.LineID == lineID {
			approval.RequestedItems = append(approval.RequestedItems[:i:i], approval.RequestedItems[i+1:]...)
			removed = true
			break
		}
	}

	var touched *orderdomain.Order
	if removed {
		if len(approval.RequestedItems) == 0 && approval.Status == orderdomain.ApprovalPending {
			approval.Status = orderdomain.ApprovalNotRequired
		}
		order.SetApproval(approval)
		order.UpdatedAt = now
		touched = order
	}

	entries, err := s.commit(ctx, card, touched, nil, historydomain.RecordRequest{
		OrderID: order.ID,
		Action:  action,
		Message: message,
		Actor:   a,
		Metadata: map[string]any{
			"job_card_id":        card.ID.String(),
			"line_id":            lineID,
			"amount":             amount,
			"additional_charges": card.AdditionalCharges,
			"final_amount":       card.FinalAmount,
		},
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(ctx, entries...)
	payload := summary(card, order)
	payload["approval_status"] = string(approval.Status)
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventJobUpdated, payload)
	if removed {
		s.notifyCustomer(ctx, order, notificationdomain.EventJobUpdated, payload)
	}
	s.metrics.RecordJobCardMutation(ctx, "remove_line")
	return redacted(card), nil
}

func (s *Service) UpdateEstimate(ctx context.Context, req domain.UpdateEstimateRequest) (*domain.JobCard, error) {
	if req.EstimateAmount < 0 {
		return nil, domain.ErrInvalidAmount
	}
	card, order, err := s.loadForTechnician(ctx, req.JobCardID, req.Actor)
	if err != nil {
		return nil, err
	}
	if err := editable(order); err != nil {
		return nil, err
	}

	previous := card.EstimateAmount
	card.EstimateAmount = req.EstimateAmount
	card.Recalculate()
	card.UpdatedAt = s.clock.Now()

	entries, err := s.commit(ctx, card, nil, nil, historydomain.RecordRequest{
		OrderID: order.ID,
		Action:  historydomain.ActionEstimateUpdated,
		Message: fmt.Sprintf("Estimate updated from %d to %d", previous, card.EstimateAmount),
		Actor:   req.Actor,
		Metadata: map[string]any{
			"job_card_id":  card.ID.String(),
			"previous":     previous,
			"estimate":     card.EstimateAmount,
			"final_amount": card.FinalAmount,
		},
	})
	if err != nil {
		return nil, err
	}

	s.history.Publish(ctx, entries...)
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventJobUpdated, summary(card, order))
	s.metrics.RecordJobCardMutation(ctx, "estimate")
	return redacted(card), nil
}

// loadForCharges adds the on-site rule for line item edits: the technician
// must have checked in at least once.
func (s *Service) loadForCharges(ctx context.Context, id snowflake.ID, a actor.Actor) (*domain.JobCard, *orderdomain.Order, error) {
	card, order, err := s.loadForTechnician(ctx, id, a)
	if err != nil {
		return nil, nil, err
	}
	if len(card.CheckIns) == 0 {
		return nil, nil, domain.ErrNotCheckedIn
	}
	if err := editable(order); err != nil {
		return nil, nil, err
	}
	return card, order, nil
}
