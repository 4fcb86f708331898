package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/catalog/domain"
	"github.com/smallbiznis/fieldops/internal/catalog/repository"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewDB(t, &domain.Category{}, &domain.Item{})
	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	}).(*Service)
}

func TestCreateCategoryDerivesCode(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	category, err := svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "AC Repair & Service"})
	require.NoError(t, err)
	assert.Equal(t, "ac-repair-and-service", category.Code)

	_, err = svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "Other", Code: "AC Repair & Service"})
	assert.ErrorIs(t, err, domain.ErrCodeAlreadyExists)

	_, err = svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestCreateItemRequiresCategoryAndPrice(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateItem(ctx, domain.CreateItemRequest{CategoryID: snowflake.ID(1), Name: "Gas refill", BasePrice: 100})
	assert.ErrorIs(t, err, domain.ErrCategoryNotFound)

	category, err := svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "AC"})
	require.NoError(t, err)

	_, err = svc.CreateItem(ctx, domain.CreateItemRequest{CategoryID: category.ID, Name: "Gas refill"})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	item, err := svc.CreateItem(ctx, domain.CreateItemRequest{CategoryID: category.ID, Name: "Gas refill", BasePrice: 150000})
	require.NoError(t, err)
	assert.Equal(t, "ac-gas-refill", item.Code)
	assert.True(t, item.Active)
}

func TestResolveActiveItem(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	ac, err := svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "AC"})
	require.NoError(t, err)
	plumbing, err := svc.CreateCategory(ctx, domain.CreateCategoryRequest{Name: "Plumbing"})
	require.NoError(t, err)
	item, err := svc.CreateItem(ctx, domain.CreateItemRequest{CategoryID: ac.ID, Name: "Filter clean", BasePrice: 50000})
	require.NoError(t, err)

	got, err := svc.ResolveActiveItem(ctx, ac.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), got.BasePrice)

	_, err = svc.ResolveActiveItem(ctx, plumbing.ID, item.ID)
	assert.ErrorIs(t, err, domain.ErrCategoryMismatch)

	_, err = svc.ResolveActiveItem(ctx, ac.ID, snowflake.ID(99))
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	inactive := false
	_, err = svc.UpdateItem(ctx, domain.UpdateItemRequest{ID: item.ID, Active: &inactive})
	require.NoError(t, err)

	_, err = svc.ResolveActiveItem(ctx, ac.ID, item.ID)
	assert.ErrorIs(t, err, domain.ErrItemInactive)

	active := true
	items, err := svc.ListItems(ctx, domain.ListItemsRequest{CategoryID: &ac.ID, Active: &active})
	require.NoError(t, err)
	assert.Empty(t, items)
}
