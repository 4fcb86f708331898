package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/technician/domain"
	"github.com/smallbiznis/fieldops/pkg/db"
	"github.com/smallbiznis/fieldops/pkg/textutil"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("technician.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Technician, error) {
	name := textutil.Clean(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return nil, domain.ErrInvalidPhone
	}
	var email *string
	if value := strings.ToLower(strings.TrimSpace(req.Email)); value != "" {
		if !strings.Contains(value, "@") {
			return nil, domain.ErrInvalidEmail
		}
		email = &value
	}

	skills := textutil.CleanAll(req.Skills)
	for i := range skills {
		skills[i] = strings.ToLower(skills[i])
	}

	now := s.clock.Now()
	technician := &domain.Technician{
		ID:        s.genID.Generate(),
		Name:      name,
		Phone:     phone,
		Email:     email,
		Skills:    datatypes.JSONSlice[string](skills),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, technician); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrEmailAlreadyTaken
		}
		return nil, err
	}

	s.log.Info("technician created", zap.String("technician_id", technician.ID.String()))
	return technician, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Technician, error) {
	technician, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if technician == nil {
		return nil, domain.ErrNotFound
	}
	return technician, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Technician, error) {
	items, err := s.repo.List(ctx, s.db, req)
	if err != nil {
		return nil, err
	}

	skill := strings.ToLower(strings.TrimSpace(req.Skill))
	out := make([]domain.Technician, 0, len(items))
	for _, item := range items {
		if skill != "" && !hasSkill(item.Skills, skill) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Service) SetActive(ctx context.Context, id snowflake.ID, active bool) (*domain.Technician, error) {
	technician, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if technician.Active == active {
		return technician, nil
	}

	technician.Active = active
	technician.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, technician); err != nil {
		return nil, err
	}
	return technician, nil
}

func (s *Service) Require(ctx context.Context, ids []snowflake.ID) ([]domain.Technician, error) {
	found, err := s.repo.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[snowflake.ID]domain.Technician, len(found))
	for _, t := range found {
		byID[t.ID] = t
	}

	out := make([]domain.Technician, 0, len(ids))
	for _, id := range ids {
		t, ok := byID[id]
		if !ok {
			return nil, domain.ErrNotFound
		}
		if !t.Active {
			return nil, domain.ErrInactive
		}
		out = append(out, t)
	}
	return out, nil
}

func hasSkill(skills []string, skill string) bool {
	for _, s := range skills {
		if s == skill {
			return true
		}
	}
	return false
}
