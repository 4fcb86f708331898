package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/internal/realtime"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	Broadcaster realtime.Broadcaster
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	broadcaster realtime.Broadcaster
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("notification.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		broadcaster: p.Broadcaster,
	}
}

func (s *Service) NotifyAdmins(ctx context.Context, event string, payload map[string]any) {
	n := s.build(nil, actor.RoleAdmin, domain.ChannelAdmins, event, payload)
	if err := s.repo.Insert(ctx, s.db, n); err != nil {
		s.log.Warn("failed to persist admin notification", zap.String("event", event), zap.Error(err))
	}
	s.broadcaster.EmitToAdmins(ctx, event, n)
}

func (s *Service) NotifyUser(ctx context.Context, userID snowflake.ID, role actor.Role, event string, payload map[string]any) {
	if userID == 0 {
		return
	}
	n := s.build(&userID, role, domain.ChannelUser, event, payload)
	if err := s.repo.Insert(ctx, s.db, n); err != nil {
		s.log.Warn("failed to persist notification",
			zap.String("event", event),
			zap.String("recipient_id", userID.String()),
			zap.Error(err),
		)
	}
	s.broadcaster.EmitToUser(ctx, userID.String(), event, n)
}

func (s *Service) build(recipientID *snowflake.ID, role actor.Role, channel, event string, payload map[string]any) *domain.Notification {
	return &domain.Notification{
		ID:            s.genID.Generate(),
		RecipientID:   recipientID,
		RecipientRole: string(role),
		Channel:       channel,
		Event:         strings.TrimSpace(event),
		Payload:       datatypes.JSONMap(payload),
		CreatedAt:     s.clock.Now(),
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (domain.ListResponse, error) {
	filter, err := recipientFilter(req.Recipient)
	if err != nil {
		return domain.ListResponse{}, err
	}
	filter.UnreadOnly = req.UnreadOnly

	if token := strings.TrimSpace(req.PageToken); token != "" {
		if _, err := pagination.DecodeCursor(token); err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
	}

	page := req.Pagination.Normalize()
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListResponse{}, err
	}

	info, items := pagination.BuildCursorPageInfo(items, page.PageSize, func(n *domain.Notification) pagination.Cursor {
		return pagination.Cursor{ID: n.ID.String(), CreatedAt: n.CreatedAt.Format(time.RFC3339Nano)}
	})

	out := make([]domain.Notification, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.ListResponse{PageInfo: *info, Notifications: out}, nil
}

// MarkRead is the only mutation a notification ever sees. Marking an
// already-read notification is a no-op.
func (s *Service) MarkRead(ctx context.Context, id snowflake.ID, recipient actor.Actor) (domain.Notification, error) {
	n, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Notification{}, err
	}
	if n == nil {
		return domain.Notification{}, domain.ErrNotFound
	}
	if !owns(recipient, n) {
		return domain.Notification{}, domain.ErrForbidden
	}
	if n.ReadAt != nil {
		return *n, nil
	}

	now := s.clock.Now()
	if err := s.repo.MarkRead(ctx, s.db, n.ID, now); err != nil {
		return domain.Notification{}, err
	}
	n.ReadAt = &now
	return *n, nil
}

func recipientFilter(recipient actor.Actor) (domain.ListFilter, error) {
	switch {
	case recipient.IsAdmin():
		return domain.ListFilter{RecipientRole: string(actor.RoleAdmin)}, nil
	case recipient.ID != 0 && recipient.Role.Valid():
		id := recipient.ID
		return domain.ListFilter{RecipientID: &id, RecipientRole: string(recipient.Role)}, nil
	default:
		return domain.ListFilter{}, domain.ErrInvalidRecipient
	}
}

func owns(recipient actor.Actor, n *domain.Notification) bool {
	if n.RecipientID == nil {
		return recipient.IsAdmin() && n.RecipientRole == string(actor.RoleAdmin)
	}
	return *n.RecipientID == recipient.ID && n.RecipientRole == string(recipient.Role)
}
