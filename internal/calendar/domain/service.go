package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/pkg/errs"
	"gorm.io/gorm"
)

type SetWeeklyHoursRequest struct {
	TechnicianID snowflake.ID
	DayOfWeek    int
	StartTime    string
	EndTime      string
}

type SetDayOverrideRequest struct {
	TechnicianID snowflake.ID
	Date         string
	Unavailable  bool
	Note         string
}

// Service is the availability ledger. Methods that take a *gorm.DB run on the
// caller's transaction so check-then-block happens atomically.
type Service interface {
	IsAvailable(ctx context.Context, technicianID snowflake.ID, start, end time.Time) (bool, error)
	FindConflicts(ctx context.Context, db *gorm.DB, technicianIDs []snowflake.ID, intervals []Interval, excludeOrderID snowflake.ID) ([]Conflict, error)
	Block(ctx context.Context, db *gorm.DB, technicianID, orderID snowflake.ID, intervals []Interval) error
	ClearForOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error
	MarkOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, status Status) error
	Schedule(ctx context.Context, technicianID snowflake.ID, from, to time.Time) ([]ScheduleItem, error)

	SetWeeklyHours(ctx context.Context, req SetWeeklyHoursRequest) (WeeklyHours, error)
	SetDayOverride(ctx context.Context, req SetDayOverrideRequest) (DayOverride, error)
	Availability(ctx context.Context, technicianID snowflake.ID, date string) (DayAvailability, error)
}

type Repository interface {
	FindOverlapping(ctx context.Context, db *gorm.DB, technicianIDs []snowflake.ID, start, end time.Time, excludeOrderID snowflake.ID) ([]Entry, error)
	InsertEntries(ctx context.Context, db *gorm.DB, entries []Entry) error
	DeleteByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error
	UpdateStatusByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, status Status, at time.Time) error
	ListSchedule(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, from, to time.Time) ([]ScheduleItem, error)

	UpsertWeeklyHours(ctx context.Context, db *gorm.DB, hours *WeeklyHours) error
	FindWeeklyHours(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, dayOfWeek int) (*WeeklyHours, error)
	UpsertDayOverride(ctx context.Context, db *gorm.DB, override *DayOverride) error
	FindDayOverride(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, date string) (*DayOverride, error)
}

var (
	ErrInvalidInterval   = errs.New(errs.KindValidation, "invalid_interval")
	ErrOverlappingSlots  = errs.New(errs.KindValidation, "overlapping_slots")
	ErrInvalidTechnician = errs.New(errs.KindValidation, "invalid_technician")
	ErrInvalidDate       = errs.New(errs.KindValidation, "invalid_date")
	ErrInvalidDayOfWeek  = errs.New(errs.KindValidation, "invalid_day_of_week")
	ErrInvalidShift      = errs.New(errs.KindValidation, "invalid_shift")
	ErrInvalidRange      = errs.New(errs.KindValidation, "invalid_range")
)
