package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/pkg/textutil"
	"go.uber.org/zap"
)

const defaultMediaKind = "photo"

func (s *Service) AddMedia(ctx context.Context, req domain.AddMediaRequest) (*domain.Order, error) {
	order, err := s.load(ctx, s.db, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, req.Actor); err != nil {
		return nil, err
	}
	if order.Status == domain.StatusCompleted {
		return nil, domain.ErrOrderReadOnly
	}

	ops := s.ops.Get()
	contentType := strings.ToLower(strings.TrimSpace(req.ContentType))
	if req.Body == nil || req.Size <= 0 || req.Size > ops.MediaMaxBytes || !allowed(ops.MediaContentTypes, contentType) {
		return nil, domain.ErrInvalidMedia
	}
	kind := strings.ToLower(textutil.Clean(req.Kind))
	if kind == "" {
		kind = defaultMediaKind
	}

	obj, err := s.storage.Upload(ctx, fmt.Sprintf("orders/%s/media", order.ID), req.FileName, contentType, req.Body, req.Size)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expected := order.Version
	order.Media = append(order.Media, domain.Media{
		Key:         obj.Key,
		URL:         obj.URL,
		Kind:        kind,
		ContentType: contentType,
		UploadedBy:  req.Actor.IDPtr(),
		UploadedAt:  now,
	})
	order.UpdatedAt = now

	entry, err := s.commit(ctx, order, expected, historydomain.RecordRequest{
		OrderID:  order.ID,
		Action:   historydomain.ActionMediaAdded,
		Message:  fmt.Sprintf("Added %s", kind),
		Actor:    req.Actor,
		Metadata: map[string]any{"key": obj.Key, "kind": kind},
	}, nil)
	if err != nil {
		s.deleteObject(ctx, obj.Key)
		return nil, err
	}

	s.history.Publish(ctx, entry)
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventOrderUpdated, summary(order))
	return order, nil
}

func (s *Service) RemoveMedia(ctx context.Context, orderID snowflake.ID, index int, a actor.Actor) (*domain.Order, error) {
	order, err := s.load(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, a); err != nil {
		return nil, err
	}
	if order.Status == domain.StatusCompleted {
		return nil, domain.ErrOrderReadOnly
	}
	if index < 0 || index >= len(order.Media) {
		return nil, domain.ErrMediaNotFound
	}

	removed := order.Media[index]
	expected := order.Version
	order.Media = append(order.Media[:index:index], order.Media[index+1:]...)
	order.UpdatedAt = s.clock.Now()

	entry, err := s.commit(ctx, order, expected, historydomain.RecordRequest{
		OrderID:  order.ID,
		Action:   historydomain.ActionMediaRemoved,
		Message:  fmt.Sprintf("Removed %s", removed.Kind),
		Actor:    a,
		Metadata: map[string]any{"key": removed.Key, "index": index},
	}, nil)
	if err != nil {
		return nil, err
	}

	s.deleteObject(ctx, removed.Key)
	s.history.Publish(ctx, entry)
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventOrderUpdated, summary(order))
	return order, nil
}

func (s *Service) MediaURL(ctx context.Context, orderID snowflake.ID, index int) (string, error) {
	order, err := s.load(ctx, s.db, orderID)
	if err != nil {
		return "", err
	}
	if index < 0 || index >= len(order.Media) {
		return "", domain.ErrMediaNotFound
	}
	media := order.Media[index]
	if media.URL != "" {
		return media.URL, nil
	}
	return s.storage.PresignGet(ctx, media.Key)
}

func (s *Service) OverridePaymentStatus(ctx context.Context, orderID snowflake.ID, status string, a actor.Actor) (*domain.Order, error) {
	target := domain.PaymentStatus(strings.ToLower(strings.TrimSpace(status)))
	if !target.Valid() {
		return nil, domain.ErrInvalidPaymentStatus
	}
	if !a.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	order, err := s.load(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == domain.StatusCompleted {
		return nil, domain.ErrOrderReadOnly
	}

	previous := order.PaymentStatus
	expected := order.Version
	order.PaymentStatus = target
	order.UpdatedAt = s.clock.Now()

	entry, err := s.commit(ctx, order, expected, historydomain.RecordRequest{
		OrderID: order.ID,
		Action:  historydomain.ActionPaymentStatusOverride,
		Message: fmt.Sprintf("Payment status set to %s", target),
		Actor:   a,
		Metadata: map[string]any{
			"from": string(previous),
			"to":   string(target),
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	s.history.Publish(ctx, entry)
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventOrderUpdated, summary(order))
	return order, nil
}

func (s *Service) AddHistoryNote(ctx context.Context, orderID snowflake.ID, note string, a actor.Actor) (*historydomain.Entry, error) {
	note = textutil.Clean(note)
	if note == "" {
		return nil, domain.ErrInvalidNote
	}

	order, err := s.load(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, a); err != nil {
		return nil, err
	}
	if order.Status == domain.StatusCompleted {
		return nil, domain.ErrOrderReadOnly
	}

	return s.history.Record(ctx, historydomain.RecordRequest{
		OrderID: order.ID,
		Action:  historydomain.ActionNote,
		Message: note,
		Actor:   a,
	})
}

func (s *Service) Rate(ctx context.Context, req domain.RateRequest) (*domain.Order, error) {
	if req.Score < 1 || req.Score > 5 {
		return nil, domain.ErrInvalidRating
	}
	if !req.Actor.IsCustomer() {
		return nil, domain.ErrForbidden
	}

	order, err := s.load(ctx, s.db, req.OrderID)
	if err != nil {
		return nil, err
	}
	if err := authorize(order, req.Actor); err != nil {
		return nil, err
	}
	if order.Status != domain.StatusCompleted {
		return nil, domain.ErrNotCompleted
	}
	if order.Rating != nil {
		return nil, domain.ErrAlreadyRated
	}

	now := s.clock.Now()
	expected := order.Version
	order.Rating = &domain.Rating{
		Score:   req.Score,
		Comment: textutil.Clean(req.Comment),
		RatedAt: now,
	}
	order.UpdatedAt = now

	entry, err := s.commit(ctx, order, expected, historydomain.RecordRequest{
		OrderID:  order.ID,
		Action:   historydomain.ActionRated,
		Message:  fmt.Sprintf("Customer rated the service %d/5", req.Score),
		Actor:    req.Actor,
		Metadata: map[string]any{"score": req.Score},
	}, nil)
	if err != nil {
		return nil, err
	}

	s.history.Publish(ctx, entry)
	payload := summary(order)
	payload["score"] = req.Score
	s.notifier.NotifyAdmins(ctx, notificationdomain.EventOrderUpdated, payload)
	s.notifyTechnicians(ctx, order.TechnicianIDs(), notificationdomain.EventOrderUpdated, payload)
	return order, nil
}

func (s *Service) deleteObject(ctx context.Context, key string) {
	if err := s.storage.Delete(ctx, key); err != nil {
		s.log.Warn("failed to delete media object", zap.String("key", key), zap.Error(err))
	}
}

func allowed(types []string, contentType string) bool {
	for _, t := range types {
		if strings.EqualFold(strings.TrimSpace(t), contentType) {
			return true
		}
	}
	return false
}
