package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	"github.com/smallbiznis/fieldops/internal/jobcard/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/pkg/textutil"
	"go.uber.org/zap"
)

// CheckIn records the technician on site. The first check-in of a visit
// moves the card to CHECKED_IN and the order to IN_PROGRESS; later ones are
// progress updates.
func (s *Service) CheckIn(ctx context.Context, req domain.CheckInRequest) (*domain.JobCard, error) {
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		return nil, domain.ErrInvalidLocation
	}

	card, order, err := s.loadForTechnician(ctx, req.JobCardID, req.Actor)
	if err != nil {
		return nil, err
	}
	if order.Status.Closed() {
		return nil, orderdomain.ErrOrderClosed
	}
	if card.Status != domain.StatusOpen && card.Status != domain.StatusCheckedIn {
		return nil, domain.ErrInvalidTransition
	}

	now := s.clock.Now()
	first := card.Status == domain.StatusOpen
	note := textutil.Clean(req.Note)

	card.CheckIns = append(card.CheckIns, domain.CheckIn{
		TechnicianID: req.Actor.ID,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Note:         note,
		At:           now,
	})
	card.Status = domain.StatusCheckedIn
	card.UpdatedAt = now

	previous := order.Status
	order.Tracking = &orderdomain.Tracking{Latitude: req.Latitude, Longitude: req.Longitude, At: now}
	if first {
		order.Status = orderdomain.StatusInProgress
	}
	order.UpdatedAt = now

	message := "Progress check-in"
	if first {
		message = "Technician checked in"
	}
	if note != "" {
		message += ": " + note
	}

	reqs := []historydomain.RecordRequest{{
		OrderID: order.ID,
		Action:  historydomain.ActionCheckIn,
		Message: message,
		Actor:   req.Actor,
		Metadata: map[string]any{
			"job_card_id": card.ID.String(),
			"latitude":    req.Latitude,
			"longitude":   req.Longitude,
			"first":       first,
		},
	}}
	if previous != order.Status {
		reqs = append(reqs, historydomain.RecordRequest{
			OrderID:  order.ID,
			Action:   historydomain.ActionOrderStatusChanged,
			Message:  fmt.Sprintf("Status changed from %s to %s", previous, order.Status),
			Actor:    req.Actor,
			Metadata: map[string]any{"from": string(previous), "to": string(order.Status)},
		})
	}

	entries, err := s.commit(ctx, card, order, nil, reqs...)
	if err != nil {
		return nil, err
	}

	s.history.Publish(ctx, entries...)
	payload := summary(card, order)
	payload["latitude"] = req.Latitude
	payload["longitude"] = req.Longitude
	payload["first"] = first
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventJobCheckIn, payload)
	s.notifyCustomer(ctx, order, notificationdomain.EventJobCheckIn, payload)
	s.metrics.RecordJobCardMutation(ctx, "check_in")
	if previous != order.Status {
		s.metrics.RecordOrderTransition(ctx, string(order.Status))
	}
	return redacted(card), nil
}

// Checkout verifies the code the customer hands to the technician. It only
// records the verification; completion goes through CompleteJob. Completed
// and closed orders are refused so their history stays final.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.JobCard, error) {
	otp := strings.TrimSpace(req.OTP)
	if otp == "" {
		return nil, domain.ErrInvalidOTP
	}

	card, order, err := s.loadForTechnician(ctx, req.JobCardID, req.Actor)
	if err != nil {
		return nil, err
	}
	if err := editable(order); err != nil {
		return nil, err
	}
	if card.OTP == nil || *card.OTP == "" {
		return nil, domain.ErrOTPNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(*card.OTP), []byte(otp)) != 1 {
		s.log.Info("checkout code mismatch",
			zap.String("job_card_id", card.ID.String()),
			zap.String("technician_id", req.Actor.ID.String()),
		)
		return nil, domain.ErrOTPMismatch
	}

	if _, err := s.history.Record(ctx, historydomain.RecordRequest{
		OrderID:  order.ID,
		Action:   historydomain.ActionCheckout,
		Message:  "Checkout verified",
		Actor:    req.Actor,
		Metadata: map[string]any{"job_card_id": card.ID.String()},
	}); err != nil {
		return nil, err
	}

	s.notifier.NotifyAdmins(ctx, notificationdomain.EventJobUpdated, summary(card, order))
	return redacted(card), nil
}
