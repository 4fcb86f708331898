package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/notification/domain"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO notifications (id, recipient_id, recipient_role, channel, event, payload, read_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID,
		n.RecipientID,
		n.RecipientRole,
		n.Channel,
		n.Event,
		n.Payload,
		n.ReadAt,
		n.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Notification, error) {
	var n domain.Notification
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&n).Error
	if err != nil {
		return nil, err
	}
	if n.ID == 0 {
		return nil, nil
	}
	return &n, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Notification, error) {
	stmt := db.WithContext(ctx).Model(&domain.Notification{}).
		Where("recipient_role = ?", filter.RecipientRole)
	if filter.RecipientID != nil {
		stmt = stmt.Where("recipient_id = ?", *filter.RecipientID)
	} else {
		stmt = stmt.Where("recipient_id IS NULL")
	}
	if filter.UnreadOnly {
		stmt = stmt.Where("read_at IS NULL")
	}
	stmt, err := pagination.Apply(stmt, page, "")
	if err != nil {
		return nil, err
	}

	var items []*domain.Notification
	if err := stmt.Order("created_at desc, id desc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkRead(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE notifications SET read_at = ? WHERE id = ? AND read_at IS NULL`,
		at,
		id,
	).Error
}
