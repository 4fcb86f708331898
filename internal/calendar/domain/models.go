package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusBlocked   Status = "blocked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

const DateLayout = "2006-01-02"

// Entry reserves a technician for an order over [StartAt, EndAt). Only
// blocked entries take part in availability checks.
type Entry struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	TechnicianID snowflake.ID `gorm:"not null;index:idx_calendar_tech_start,priority:1" json:"technician_id"`
	OrderID      snowflake.ID `gorm:"not null;index" json:"order_id"`
	StartAt      time.Time    `gorm:"not null;index:idx_calendar_tech_start,priority:2" json:"start_at"`
	EndAt        time.Time    `gorm:"not null" json:"end_at"`
	Date         string       `gorm:"not null;size:10" json:"date"`
	Status       Status       `gorm:"not null;size:16" json:"status"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Entry) TableName() string { return "technician_calendar_entries" }

type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps uses half-open intervals: touching boundaries do not overlap.
func (i Interval) Overlaps(start, end time.Time) bool {
	return i.Start.Before(end) && i.End.After(start)
}

// WeeklyHours is a technician's regular shift on one weekday.
type WeeklyHours struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	TechnicianID snowflake.ID `gorm:"not null;uniqueIndex:idx_weekly_hours_tech_dow,priority:1" json:"technician_id"`
	DayOfWeek    int          `gorm:"not null;uniqueIndex:idx_weekly_hours_tech_dow,priority:2" json:"day_of_week"`
	StartTime    string       `gorm:"not null;size:5" json:"start_time"`
	EndTime      string       `gorm:"not null;size:5" json:"end_time"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (WeeklyHours) TableName() string { return "technician_weekly_hours" }

// DayOverride marks a single date as off (or annotates it) for a technician.
type DayOverride struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	TechnicianID snowflake.ID `gorm:"not null;uniqueIndex:idx_day_override_tech_date,priority:1" json:"technician_id"`
	Date         string       `gorm:"not null;size:10;uniqueIndex:idx_day_override_tech_date,priority:2" json:"date"`
	Unavailable  bool         `gorm:"not null" json:"unavailable"`
	Note         string       `json:"note,omitempty"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (DayOverride) TableName() string { return "technician_day_overrides" }

type Conflict struct {
	TechnicianID snowflake.ID `json:"technician_id"`
	OrderID      snowflake.ID `json:"order_id"`
	StartAt      time.Time    `json:"start_at"`
	EndAt        time.Time    `json:"end_at"`
}

// ScheduleItem is a calendar entry joined with a short summary of its order.
type ScheduleItem struct {
	Entry
	OrderCode    string `json:"order_code"`
	OrderStatus  string `json:"order_status"`
	CustomerName string `json:"customer_name"`
	Address      string `json:"address"`
}

type DayAvailability struct {
	TechnicianID snowflake.ID `json:"technician_id"`
	Date         string       `json:"date"`
	Working      bool         `json:"working"`
	StartTime    string       `json:"start_time,omitempty"`
	EndTime      string       `json:"end_time,omitempty"`
	Note         string       `json:"note,omitempty"`
	Blocked      []Entry      `json:"blocked"`
}
