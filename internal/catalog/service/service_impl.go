package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/fieldops/internal/catalog/domain"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/pkg/db"
	"github.com/smallbiznis/fieldops/pkg/textutil"
	"go.uber.org/fx"
	"go.uber.org/zap"
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
	repo  domain.Repository
	genID *snowflake.Node
	clock clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("catalog.service"),
		repo:  p.Repo,
		genID: p.GenID,
		clock: p.Clock,
	}
}

func (s *Service) CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (*domain.Category, error) {
	name := textutil.Clean(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	code := normalizeCode(req.Code, name)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	now := s.clock.Now()
	category := &domain.Category{
		ID:        s.genID.Generate(),
		Code:      code,
		Name:      name,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertCategory(ctx, s.db, category); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCodeAlreadyExists
		}
		return nil, err
	}
	return category, nil
}

func (s *Service) ListCategories(ctx context.Context, activeOnly bool) ([]domain.Category, error) {
	items, err := s.repo.ListCategories(ctx, s.db, activeOnly)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Category{}
	}
	return items, nil
}

func (s *Service) CreateItem(ctx context.Context, req domain.CreateItemRequest) (*domain.Item, error) {
	name := textutil.Clean(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.BasePrice <= 0 {
		return nil, domain.ErrInvalidPrice
	}

	category, err := s.repo.FindCategory(ctx, s.db, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if category == nil {
		return nil, domain.ErrCategoryNotFound
	}

	code := normalizeCode(req.Code, category.Code+"-"+name)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	now := s.clock.Now()
	item := &domain.Item{
		ID:          s.genID.Generate(),
		CategoryID:  category.ID,
		Code:        code,
		Name:        name,
		Description: cleanOptional(req.Description),
		BasePrice:   req.BasePrice,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertItem(ctx, s.db, item); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrCodeAlreadyExists
		}
		return nil, err
	}
	return item, nil
}

func (s *Service) UpdateItem(ctx context.Context, req domain.UpdateItemRequest) (*domain.Item, error) {
	item, err := s.GetItem(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := textutil.Clean(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		item.Name = name
	}
	if req.Description != nil {
		item.Description = cleanOptional(req.Description)
	}
	if req.BasePrice != nil {
		if *req.BasePrice <= 0 {
			return nil, domain.ErrInvalidPrice
		}
		item.BasePrice = *req.BasePrice
	}
	if req.Active != nil {
		item.Active = *req.Active
	}

	item.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateItem(ctx, s.db, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) GetItem(ctx context.Context, id snowflake.ID) (*domain.Item, error) {
	item, err := s.repo.FindItem(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

func (s *Service) ListItems(ctx context.Context, req domain.ListItemsRequest) ([]domain.Item, error) {
	items, err := s.repo.ListItems(ctx, s.db, req)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Item{}
	}
	return items, nil
}

func (s *Service) ResolveActiveItem(ctx context.Context, categoryID, itemID snowflake.ID) (*domain.Item, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !item.Active {
		return nil, domain.ErrItemInactive
	}
	if item.CategoryID != categoryID {
		return nil, domain.ErrCategoryMismatch
	}
	return item, nil
}

func normalizeCode(code, fallback string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		code = fallback
	}
	return slug.Make(code)
}

func cleanOptional(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := textutil.Clean(*value)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
