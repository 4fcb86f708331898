package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/calendar/domain"
	"github.com/smallbiznis/fieldops/internal/calendar/repository"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewDB(t, &domain.Entry{}, &domain.WeeklyHours{}, &domain.DayOverride{})
	require.NoError(t, db.Exec(`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		code TEXT,
		status TEXT,
		customer_name TEXT,
		customer_address TEXT
	)`).Error)
	return NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clock.NewFakeClock(day.Add(8 * time.Hour)),
		Repo:  repository.Provide(),
	}).(*Service)
}

func TestOverlapRuleIsHalfOpen(t *testing.T) {
	slot := domain.Interval{Start: at(10, 0), End: at(12, 0)}

	assert.True(t, slot.Overlaps(at(11, 0), at(13, 0)))
	assert.True(t, slot.Overlaps(at(9, 0), at(10, 1)))
	assert.True(t, slot.Overlaps(at(10, 30), at(11, 0)))
	assert.False(t, slot.Overlaps(at(12, 0), at(13, 0)))
	assert.False(t, slot.Overlaps(at(8, 0), at(10, 0)))
}

func TestBlockThenIsAvailable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tech := snowflake.ID(100)

	require.NoError(t, svc.Block(ctx, svc.db, tech, 1, []domain.Interval{{Start: at(10, 0), End: at(12, 0)}}))

	ok, err := svc.IsAvailable(ctx, tech, at(11, 0), at(13, 0))
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.IsAvailable(ctx, tech, at(12, 0), at(13, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsAvailable(ctx, 200, at(11, 0), at(13, 0))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = svc.IsAvailable(ctx, tech, at(13, 0), at(12, 0))
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)
}

func TestFindConflictsExcludesOwnOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tech := snowflake.ID(100)
	require.NoError(t, svc.Block(ctx, svc.db, tech, 1, []domain.Interval{{Start: at(10, 0), End: at(12, 0)}}))

	slots := []domain.Interval{{Start: at(11, 0), End: at(13, 0)}}
	conflicts, err := svc.FindConflicts(ctx, svc.db, []snowflake.ID{tech}, slots, 2)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, snowflake.ID(1), conflicts[0].OrderID)

	conflicts, err = svc.FindConflicts(ctx, svc.db, []snowflake.ID{tech}, slots, 1)
	require.NoError(t, err)
	assert.Empty(t, conflicts)
}

func TestValidateIntervals(t *testing.T) {
	_, err := ValidateIntervals(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)

	_, err = ValidateIntervals([]domain.Interval{
		{Start: at(10, 0), End: at(12, 0)},
		{Start: at(11, 0), End: at(13, 0)},
	})
	assert.ErrorIs(t, err, domain.ErrOverlappingSlots)

	out, err := ValidateIntervals([]domain.Interval{
		{Start: at(14, 0), End: at(15, 0)},
		{Start: at(10, 0), End: at(12, 0)},
	})
	require.NoError(t, err)
	assert.Equal(t, at(10, 0), out[0].Start)
}

func TestClearAndMarkOrder(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tech := snowflake.ID(100)
	slot := []domain.Interval{{Start: at(10, 0), End: at(12, 0)}}

	require.NoError(t, svc.Block(ctx, svc.db, tech, 1, slot))
	require.NoError(t, svc.MarkOrder(ctx, svc.db, 1, domain.StatusCompleted))
	ok, err := svc.IsAvailable(ctx, tech, at(10, 0), at(12, 0))
	require.NoError(t, err)
	assert.True(t, ok, "completed entries no longer block")

	require.NoError(t, svc.Block(ctx, svc.db, tech, 2, slot))
	require.NoError(t, svc.ClearForOrder(ctx, svc.db, 2))
	ok, err = svc.IsAvailable(ctx, tech, at(10, 0), at(12, 0))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScheduleJoinsOrderSummary(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tech := snowflake.ID(100)
	require.NoError(t, svc.db.Exec(
		`INSERT INTO orders (id, code, status, customer_name, customer_address) VALUES (?, ?, ?, ?, ?)`,
		1, "SRV-260302-ABC123", "ASSIGNED", "Asha", "12 MG Road",
	).Error)

	require.NoError(t, svc.Block(ctx, svc.db, tech, 1, []domain.Interval{
		{Start: at(14, 0), End: at(15, 0)},
		{Start: at(10, 0), End: at(11, 0)},
	}))

	items, err := svc.Schedule(ctx, tech, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, items[0].StartAt.Equal(at(10, 0)))
	assert.Equal(t, "SRV-260302-ABC123", items[0].OrderCode)
	assert.Equal(t, "Asha", items[0].CustomerName)
	assert.Equal(t, "2026-03-02", items[0].Date)

	weekly, err := svc.Schedule(ctx, tech, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, weekly, 2)

	_, err = svc.Schedule(ctx, tech, day, day)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestWeeklyHoursAndOverrides(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	tech := snowflake.ID(100)

	_, err := svc.SetWeeklyHours(ctx, domain.SetWeeklyHoursRequest{TechnicianID: tech, DayOfWeek: 1, StartTime: "09:00", EndTime: "18:00"})
	require.NoError(t, err)
	updated, err := svc.SetWeeklyHours(ctx, domain.SetWeeklyHoursRequest{TechnicianID: tech, DayOfWeek: 1, StartTime: "10:00", EndTime: "19:00"})
	require.NoError(t, err)
	assert.Equal(t, "10:00", updated.StartTime)

	var count int64
	require.NoError(t, svc.db.Model(&domain.WeeklyHours{}).Count(&count).Error)
	assert.Equal(t, int64(1), count, "one row per technician and weekday")

	_, err = svc.SetWeeklyHours(ctx, domain.SetWeeklyHoursRequest{TechnicianID: tech, DayOfWeek: 7, StartTime: "09:00", EndTime: "18:00"})
	assert.ErrorIs(t, err, domain.ErrInvalidDayOfWeek)
	_, err = svc.SetWeeklyHours(ctx, domain.SetWeeklyHoursRequest{TechnicianID: tech, DayOfWeek: 2, StartTime: "18:00", EndTime: "09:00"})
	assert.ErrorIs(t, err, domain.ErrInvalidShift)

	require.NoError(t, svc.Block(ctx, svc.db, tech, 1, []domain.Interval{{Start: at(10, 0), End: at(11, 0)}}))
	avail, err := svc.Availability(ctx, tech, "2026-03-02")
	require.NoError(t, err)
	assert.True(t, avail.Working)
	assert.Equal(t, "10:00", avail.StartTime)
	assert.Len(t, avail.Blocked, 1)

	_, err = svc.SetDayOverride(ctx, domain.SetDayOverrideRequest{TechnicianID: tech, Date: "2026-03-02", Unavailable: true, Note: "training"})
	require.NoError(t, err)
	avail, err = svc.Availability(ctx, tech, "2026-03-02")
	require.NoError(t, err)
	assert.False(t, avail.Working)
	assert.Equal(t, "training", avail.Note)

	_, err = svc.Availability(ctx, tech, "02/03/2026")
	assert.ErrorIs(t, err, domain.ErrInvalidDate)
}
