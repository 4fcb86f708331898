package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	jobcarddomain "github.com/smallbiznis/fieldops/internal/jobcard/domain"
	"github.com/smallbiznis/fieldops/internal/payment/domain"
	"github.com/smallbiznis/fieldops/internal/providers/pdf"
	"go.uber.org/zap"
)

const receiptDate = "02 Jan 2006"

// Receipt renders the PDF receipt of a job card that has taken at least one
// successful payment.
func (s *Service) Receipt(ctx context.Context, jobCardID snowflake.ID, a actor.Actor) ([]byte, error) {
	card, err := s.jobcardRepo.FindByID(ctx, s.db, jobCardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, jobcarddomain.ErrNotFound
	}
	order, err := s.loadOrder(ctx, s.db, card.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.VisibleTo(a) && !(a.IsTechnician() && card.TechnicianID == a.ID) {
		return nil, domain.ErrForbidden
	}

	payments, err := s.repo.ListByOrder(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}
	var (
		paid     int64
		lastPaid time.Time
		rows     []pdf.ReceiptPayment
	)
	for _, p := range payments {
		if p.Status != domain.StatusSuccess {
			continue
		}
		paid += p.Amount
		paidAt := p.UpdatedAt
		if p.PaidAt != nil {
			paidAt = *p.PaidAt
		}
		if paidAt.After(lastPaid) {
			lastPaid = paidAt
		}
		rows = append(rows, pdf.ReceiptPayment{
			Method:    string(p.Method),
			Reference: firstNonEmpty(deref(p.ProviderPaymentID), deref(p.TransactionRef)),
			PaidAt:    paidAt.Format(receiptDate),
			Amount:    formatMoney(p.Currency, p.Amount),
		})
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotPaid
	}

	currency := order.Currency
	items := []pdf.ReceiptItem{{
		Description: serviceDescription(order.Services),
		Qty:         1,
		UnitPrice:   formatMoney(currency, card.EstimateAmount),
		Amount:      formatMoney(currency, card.EstimateAmount),
	}}
	for _, w := range card.ExtraWork {
		items = append(items, pdf.ReceiptItem{
			Description: w.Description,
			Qty:         1,
			UnitPrice:   formatMoney(currency, w.Amount),
			Amount:      formatMoney(currency, w.Amount),
		})
	}
	for _, p := range card.SpareParts {
		items = append(items, pdf.ReceiptItem{
			Description: p.Part,
			Qty:         p.Quantity,
			UnitPrice:   formatMoney(currency, p.UnitPrice),
			Amount:      formatMoney(currency, p.Amount()),
		})
	}

	data := pdf.ReceiptData{
		BusinessName:      firstNonEmpty(s.appName, "FieldOps"),
		ReceiptNumber:     order.Code + "-" + card.ID.String(),
		OrderCode:         order.Code,
		ServiceDate:       order.ScheduledAt.Format(receiptDate),
		DatePaid:          lastPaid.Format(receiptDate),
		CustomerName:      order.Customer.Name,
		CustomerAddress:   order.Customer.Address,
		CustomerEmail:     order.Customer.Email,
		TechnicianName:    s.technicianName(ctx, card.TechnicianID),
		Items:             items,
		Payments:          rows,
		Estimate:          formatMoney(currency, card.EstimateAmount),
		AdditionalCharges: formatMoney(currency, card.AdditionalCharges),
		Total:             formatMoney(currency, card.FinalAmount),
		Paid:              formatMoney(currency, paid),
	}
	doc, err := s.pdf.Receipt(ctx, data)
	if err != nil {
		s.log.Error("receipt rendering failed", zap.String("job_card_id", card.ID.String()), zap.Error(err))
		return nil, err
	}
	return doc, nil
}

func (s *Service) technicianName(ctx context.Context, id snowflake.ID) string {
	if s.technicians == nil {
		return ""
	}
	t, err := s.technicians.Get(ctx, id)
	if err != nil || t == nil {
		return ""
	}
	return t.Name
}
