package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/history/domain"
	"github.com/smallbiznis/fieldops/internal/history/masking"
	"github.com/smallbiznis/fieldops/internal/realtime"
	"github.com/smallbiznis/fieldops/pkg/textutil"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const eventHistory = "order:history"

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
		log:         p.Log.Named("history.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		broadcaster: p.Broadcaster,
	}
}

func (s *Service) Append(ctx context.Context, db *gorm.DB, req domain.RecordRequest) (*domain.Entry, error) {
	action := strings.TrimSpace(req.Action)
	if action == "" {
		return nil, domain.ErrInvalidAction
	}
	if req.OrderID == 0 {
		return nil, domain.ErrInvalidOrder
	}

	role := string(req.Actor.Role)
	if role == "" {
		role = "system"
	}

	entry := &domain.Entry{
		ID:        s.genID.Generate(),
		OrderID:   req.OrderID,
		Action:    action,
		Message:   textutil.Clean(req.Message),
		Metadata:  datatypes.JSONMap(masking.MaskSensitive(req.Metadata)),
		ActorID:   req.Actor.IDPtr(),
		ActorRole: role,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, db, entry); err != nil {
		s.log.Warn("failed to append history", zap.String("action", action), zap.Error(err))
		return nil, err
	}
	return entry, nil
}

// Publish emits order:history to the order room and the admin stream.
func (s *Service) Publish(ctx context.Context, entries ...*domain.Entry) {
	if s.broadcaster == nil {
		return
	}
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		s.broadcaster.EmitToOrder(ctx, entry.OrderID.String(), eventHistory, entry)
		s.broadcaster.EmitToAdmins(ctx, eventHistory, entry)
	}
}

func (s *Service) Record(ctx context.Context, req domain.RecordRequest) (*domain.Entry, error) {
	entry, err := s.Append(ctx, s.db, req)
	if err != nil {
		return nil, err
	}
	s.Publish(ctx, entry)
	return entry, nil
}

func (s *Service) List(ctx context.Context, orderID snowflake.ID) ([]domain.Entry, error) {
	if orderID == 0 {
		return nil, domain.ErrInvalidOrder
	}
	entries, err := s.repo.ListByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.Entry{}
	}
	return entries, nil
}
