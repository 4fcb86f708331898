package service

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/fieldops/internal/actor"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/history/domain"
	"github.com/smallbiznis/fieldops/internal/history/repository"
	"github.com/smallbiznis/fieldops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock, *testutil.RecordingBroadcaster) {
	t.Helper()
	db := testutil.NewDB(t, &domain.Entry{})
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	bc := &testutil.RecordingBroadcaster{}
	svc := NewService(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       testutil.NewNode(t),
		Clock:       clk,
		Repo:        repository.Provide(),
		Broadcaster: bc,
	}).(*Service)
	return svc, clk, bc
}

func TestRecordAppendsAndBroadcasts(t *testing.T) {
	svc, _, bc := newTestService(t)
	ctx := context.Background()
	admin := actor.Actor{ID: 77, Role: actor.RoleAdmin}

	entry, err := svc.Record(ctx, domain.RecordRequest{
		OrderID:  10,
		Action:   domain.ActionNote,
		Message:  "Customer asked for <b>morning</b> slot",
		Actor:    admin,
		Metadata: map[string]any{"otp": "123456", "slot": "am"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Customer asked for morning slot", entry.Message)
	assert.Equal(t, "admin", entry.ActorRole)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, int64(77), entry.ActorID.Int64())
	assert.Equal(t, "****3456", entry.Metadata["otp"])

	assert.Equal(t, []string{"order:history"}, bc.Events("order:10"))
	assert.Equal(t, []string{"order:history"}, bc.Events("admins"))
}

func TestListIsAscendingAndAppendOnly(t *testing.T) {
	svc, clk, _ := newTestService(t)
	ctx := context.Background()

	for _, action := range []string{domain.ActionOrderCreated, domain.ActionOrderAssigned, domain.ActionCheckIn} {
		_, err := svc.Record(ctx, domain.RecordRequest{OrderID: 5, Action: action, Message: action})
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}
	_, err := svc.Record(ctx, domain.RecordRequest{OrderID: 6, Action: domain.ActionOrderCreated})
	require.NoError(t, err)

	entries, err := svc.List(ctx, 5)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.ActionOrderCreated, entries[0].Action)
	assert.Equal(t, domain.ActionCheckIn, entries[2].Action)
	assert.Equal(t, "system", entries[0].ActorRole)
	assert.Nil(t, entries[0].ActorID)
}

func TestAppendValidates(t *testing.T) {
	svc, _, bc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Record(ctx, domain.RecordRequest{OrderID: 5, Action: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)

	_, err = svc.Record(ctx, domain.RecordRequest{Action: domain.ActionNote})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
	assert.Empty(t, bc.Emissions())
}

func TestAppendDoesNotPublish(t *testing.T) {
	svc, _, bc := newTestService(t)

	entry, err := svc.Append(context.Background(), svc.db, domain.RecordRequest{OrderID: 1, Action: domain.ActionNote})
	require.NoError(t, err)
	assert.Empty(t, bc.Emissions())

	svc.Publish(context.Background(), entry, nil)
	assert.Len(t, bc.Emissions(), 2)
}
