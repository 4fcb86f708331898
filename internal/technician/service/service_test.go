package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/technician/domain"
	"github.com/smallbiznis/fieldops/internal/technician/repository"
	"github.com/smallbiznis/fieldops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewDB(t, &domain.Technician{})
	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	}).(*Service)
}

func TestCreateAndGetTechnician(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tech, err := svc.Create(ctx, domain.CreateRequest{
		Name:   "Ravi",
		Phone:  "+91 90000 00001",
		Email:  "Ravi@Example.com",
		Skills: []string{"AC", " plumbing ", ""},
	})
	require.NoError(t, err)
	require.NotNil(t, tech.Email)
	assert.Equal(t, "ravi@example.com", *tech.Email)
	assert.Equal(t, []string{"ac", "plumbing"}, []string(tech.Skills))

	got, err := svc.Get(ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, tech.Name, got.Name)
	assert.Equal(t, []string{"ac", "plumbing"}, []string(got.Skills))

	_, err = svc.Get(ctx, snowflake.ID(1))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateTechnicianValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{Phone: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "A"})
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)

	_, err = svc.Create(ctx, domain.CreateRequest{Name: "A", Phone: "1", Email: "bad"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
}

func TestRequireTechnicians(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, domain.CreateRequest{Name: "A", Phone: "1", Email: "a@x.io"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, domain.CreateRequest{Name: "B", Phone: "2", Email: "b@x.io"})
	require.NoError(t, err)

	got, err := svc.Require(ctx, []snowflake.ID{b.ID, a.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, b.ID, got[0].ID)
	assert.Equal(t, a.ID, got[1].ID)

	_, err = svc.Require(ctx, []snowflake.ID{a.ID, snowflake.ID(5)})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.SetActive(ctx, b.ID, false)
	require.NoError(t, err)
	_, err = svc.Require(ctx, []snowflake.ID{b.ID})
	assert.ErrorIs(t, err, domain.ErrInactive)
}

func TestListFiltersBySkill(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateRequest{Name: "A", Phone: "1", Email: "a@x.io", Skills: []string{"ac"}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateRequest{Name: "B", Phone: "2", Email: "b@x.io", Skills: []string{"plumbing"}})
	require.NoError(t, err)

	items, err := svc.List(ctx, domain.ListRequest{Skill: "AC"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "A", items[0].Name)
}
