package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/calendar/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOverlapping(ctx context.Context, db *gorm.DB, technicianIDs []snowflake.ID, start, end time.Time, excludeOrderID snowflake.ID) ([]domain.Entry, error) {
	if len(technicianIDs) == 0 {
		return nil, nil
	}
	stmt := db.WithContext(ctx).
		Model(&domain.Entry{}).
		Where("technician_id IN ?", technicianIDs).
		Where("status = ?", domain.StatusBlocked).
		Where("start_at < ? AND end_at > ?", end, start)
	if excludeOrderID != 0 {
		stmt = stmt.Where("order_id <> ?", excludeOrderID)
	}

	var entries []domain.Entry
	if err := stmt.Order("start_at asc").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repo) InsertEntries(ctx context.Context, db *gorm.DB, entries []domain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&entries).Error
}

func (r *repo) DeleteByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM technician_calendar_entries WHERE order_id = ?`,
		orderID,
	).Error
}

func (r *repo) UpdateStatusByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID, status domain.Status, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE technician_calendar_entries SET status = ?, updated_at = ? WHERE order_id = ? AND status = ?`,
		status,
		at,
		orderID,
		domain.StatusBlocked,
	).Error
}

func (r *repo) ListSchedule(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, from, to time.Time) ([]domain.ScheduleItem, error) {
	var items []domain.ScheduleItem
	err := db.WithContext(ctx).Raw(
		`SELECT e.id, e.technician_id, e.order_id, e.start_at, e.end_at, e.date, e.status, e.created_at, e.updated_at,
		        o.code AS order_code, o.status AS order_status,
		        o.customer_name AS customer_name, o.customer_address AS address
		 FROM technician_calendar_entries e
		 LEFT JOIN orders o ON o.id = e.order_id
		 WHERE e.technician_id = ? AND e.start_at < ? AND e.end_at > ?
		 ORDER BY e.start_at ASC, e.id ASC`,
		technicianID,
		to,
		from,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) UpsertWeeklyHours(ctx context.Context, db *gorm.DB, hours *domain.WeeklyHours) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "technician_id"}, {Name: "day_of_week"}},
		DoUpdates: clause.AssignmentColumns([]string{"start_time", "end_time", "updated_at"}),
	}).Create(hours).Error
}

func (r *repo) FindWeeklyHours(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, dayOfWeek int) (*domain.WeeklyHours, error) {
	var hours domain.WeeklyHours
	err := db.WithContext(ctx).
		Where("technician_id = ? AND day_of_week = ?", technicianID, dayOfWeek).
		Limit(1).
		Find(&hours).Error
	if err != nil {
		return nil, err
	}
	if hours.ID == 0 {
		return nil, nil
	}
	return &hours, nil
}

func (r *repo) UpsertDayOverride(ctx context.Context, db *gorm.DB, override *domain.DayOverride) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "technician_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"unavailable", "note", "updated_at"}),
	}).Create(override).Error
}

func (r *repo) FindDayOverride(ctx context.Context, db *gorm.DB, technicianID snowflake.ID, date string) (*domain.DayOverride, error) {
	var override domain.DayOverride
	err := db.WithContext(ctx).
		Where("technician_id = ? AND date = ?", technicianID, date).
		Limit(1).
		Find(&override).Error
	if err != nil {
		return nil, err
	}
	if override.ID == 0 {
		return nil, nil
	}
	return &override, nil
}
