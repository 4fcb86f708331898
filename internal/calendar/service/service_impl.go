package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jinzhu/now"
	"github.com/smallbiznis/fieldops/internal/calendar/domain"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/pkg/textutil"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxScheduleRange = 93 * 24 * time.Hour

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

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("calendar.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) IsAvailable(ctx context.Context, technicianID snowflake.ID, start, end time.Time) (bool, error) {
	interval, err := normalizeInterval(domain.Interval{Start: start, End: end})
	if err != nil {
		return false, err
	}
	entries, err := s.repo.FindOverlapping(ctx, s.db, []snowflake.ID{technicianID}, interval.Start, interval.End, 0)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}

// FindConflicts reports every blocked entry of the given technicians that
// overlaps any interval. Entries owned by excludeOrderID are ignored since a
// reassignment replaces them.
func (s *Service) FindConflicts(ctx context.Context, db *gorm.DB, technicianIDs []snowflake.ID, intervals []domain.Interval, excludeOrderID snowflake.ID) ([]domain.Conflict, error) {
	normalized, err := ValidateIntervals(intervals)
	if err != nil {
		return nil, err
	}

	seen := make(map[snowflake.ID]struct{})
	var conflicts []domain.Conflict
	for _, interval := range normalized {
		entries, err := s.repo.FindOverlapping(ctx, db, technicianIDs, interval.Start, interval.End, excludeOrderID)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			conflicts = append(conflicts, domain.Conflict{
				TechnicianID: e.TechnicianID,
				OrderID:      e.OrderID,
				StartAt:      e.StartAt,
				EndAt:        e.EndAt,
			})
		}
	}
	return conflicts, nil
}

func (s *Service) Block(ctx context.Context, db *gorm.DB, technicianID, orderID snowflake.ID, intervals []domain.Interval) error {
	if technicianID == 0 {
		return domain.ErrInvalidTechnician
	}
	normalized, err := ValidateIntervals(intervals)
	if err != nil {
		return err
	}

	ts := s.clock.Now()
	entries := make([]domain.Entry, 0, len(normalized))
	for _, interval := range normalized {
		entries = append(entries, domain.Entry{
			ID:           s.genID.Generate(),
			TechnicianID: technicianID,
			OrderID:      orderID,
			StartAt:      interval.Start,
			EndAt:        interval.End,
			Date:         interval.Start.Format(domain.DateLayout),
			Status:       domain.StatusBlocked,
			CreatedAt:    ts,
			UpdatedAt:    ts,
		})
	}
	return s.repo.InsertEntries(ctx, db, entries)
}

func (s *Service) ClearForOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error {
	return s.repo.DeleteByOrder(ctx, db, orderID)
}

// MarkOrder moves the order's blocked entries to a terminal status, which
// frees the technician for other work.
func (s *Service) MarkOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, status domain.Status) error {
	return s.repo.UpdateStatusByOrder(ctx, db, orderID, status, s.clock.Now())
}

// Schedule defaults to the current week when no range is given.
func (s *Service) Schedule(ctx context.Context, technicianID snowflake.ID, from, to time.Time) ([]domain.ScheduleItem, error) {
	if technicianID == 0 {
		return nil, domain.ErrInvalidTechnician
	}
	if from.IsZero() && to.IsZero() {
		week := now.With(s.clock.Now())
		from, to = week.BeginningOfWeek(), week.EndOfWeek()
	}
	if from.IsZero() || to.IsZero() || !to.After(from) || to.Sub(from) > maxScheduleRange {
		return nil, domain.ErrInvalidRange
	}

	items, err := s.repo.ListSchedule(ctx, s.db, technicianID, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.ScheduleItem{}
	}
	return items, nil
}

func (s *Service) SetWeeklyHours(ctx context.Context, req domain.SetWeeklyHoursRequest) (domain.WeeklyHours, error) {
	if req.TechnicianID == 0 {
		return domain.WeeklyHours{}, domain.ErrInvalidTechnician
	}
	if req.DayOfWeek < int(time.Sunday) || req.DayOfWeek > int(time.Saturday) {
		return domain.WeeklyHours{}, domain.ErrInvalidDayOfWeek
	}
	start, end := strings.TrimSpace(req.StartTime), strings.TrimSpace(req.EndTime)
	startAt, err1 := time.Parse("15:04", start)
	endAt, err2 := time.Parse("15:04", end)
	if err1 != nil || err2 != nil || !endAt.After(startAt) {
		return domain.WeeklyHours{}, domain.ErrInvalidShift
	}

	hours := domain.WeeklyHours{
		ID:           s.genID.Generate(),
		TechnicianID: req.TechnicianID,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    start,
		EndTime:      end,
		UpdatedAt:    s.clock.Now(),
	}
	if err := s.repo.UpsertWeeklyHours(ctx, s.db, &hours); err != nil {
		return domain.WeeklyHours{}, err
	}
	stored, err := s.repo.FindWeeklyHours(ctx, s.db, req.TechnicianID, req.DayOfWeek)
	if err != nil || stored == nil {
		return hours, err
	}
	return *stored, nil
}

func (s *Service) SetDayOverride(ctx context.Context, req domain.SetDayOverrideRequest) (domain.DayOverride, error) {
	if req.TechnicianID == 0 {
		return domain.DayOverride{}, domain.ErrInvalidTechnician
	}
	day, err := parseDate(req.Date)
	if err != nil {
		return domain.DayOverride{}, err
	}

	override := domain.DayOverride{
		ID:           s.genID.Generate(),
		TechnicianID: req.TechnicianID,
		Date:         day.Format(domain.DateLayout),
		Unavailable:  req.Unavailable,
		Note:         textutil.Clean(req.Note),
		UpdatedAt:    s.clock.Now(),
	}
	if err := s.repo.UpsertDayOverride(ctx, s.db, &override); err != nil {
		return domain.DayOverride{}, err
	}
	stored, err := s.repo.FindDayOverride(ctx, s.db, override.TechnicianID, override.Date)
	if err != nil || stored == nil {
		return override, err
	}
	return *stored, nil
}

// Availability combines the weekly shift, any override for the date and the
// blocked entries that fall on it.
func (s *Service) Availability(ctx context.Context, technicianID snowflake.ID, date string) (domain.DayAvailability, error) {
	if technicianID == 0 {
		return domain.DayAvailability{}, domain.ErrInvalidTechnician
	}
	day, err := parseDate(date)
	if err != nil {
		return domain.DayAvailability{}, err
	}
	bounds := now.With(day)

	out := domain.DayAvailability{
		TechnicianID: technicianID,
		Date:         day.Format(domain.DateLayout),
		Blocked:      []domain.Entry{},
	}

	hours, err := s.repo.FindWeeklyHours(ctx, s.db, technicianID, int(day.Weekday()))
	if err != nil {
		return domain.DayAvailability{}, err
	}
	if hours != nil {
		out.Working = true
		out.StartTime, out.EndTime = hours.StartTime, hours.EndTime
	}

	override, err := s.repo.FindDayOverride(ctx, s.db, technicianID, out.Date)
	if err != nil {
		return domain.DayAvailability{}, err
	}
	if override != nil {
		out.Note = override.Note
		if override.Unavailable {
			out.Working = false
		}
	}

	entries, err := s.repo.FindOverlapping(ctx, s.db, []snowflake.ID{technicianID}, bounds.BeginningOfDay(), bounds.EndOfDay(), 0)
	if err != nil {
		return domain.DayAvailability{}, err
	}
	out.Blocked = append(out.Blocked, entries...)
	return out, nil
}

// ValidateIntervals normalizes to UTC whole seconds, sorts by start and
// rejects empty, inverted or mutually overlapping intervals.
func ValidateIntervals(intervals []domain.Interval) ([]domain.Interval, error) {
	if len(intervals) == 0 {
		return nil, domain.ErrInvalidInterval
	}
	out := make([]domain.Interval, 0, len(intervals))
	for _, interval := range intervals {
		normalized, err := normalizeInterval(interval)
		if err != nil {
			return nil, err
		}
		out = append(out, normalized)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	for i := 1; i < len(out); i++ {
		if out[i].Overlaps(out[i-1].Start, out[i-1].End) {
			return nil, domain.ErrOverlappingSlots
		}
	}
	return out, nil
}

func normalizeInterval(interval domain.Interval) (domain.Interval, error) {
	start := interval.Start.UTC().Truncate(time.Second)
	end := interval.End.UTC().Truncate(time.Second)
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return domain.Interval{}, domain.ErrInvalidInterval
	}
	return domain.Interval{Start: start, End: end}, nil
}

func parseDate(value string) (time.Time, error) {
	day, err := time.ParseInLocation(domain.DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, domain.ErrInvalidDate
	}
	return day, nil
}
