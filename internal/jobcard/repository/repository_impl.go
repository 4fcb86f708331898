package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/jobcard/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, card *domain.JobCard) error {
	if card.Version == 0 {
		card.Version = 1
	}
	return db.WithContext(ctx).Create(card).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, card *domain.JobCard, expectedVersion int64) error {
	if card == nil {
		return gorm.ErrInvalidData
	}
	card.Version = expectedVersion + 1

	res := db.WithContext(ctx).
		Model(&domain.JobCard{}).
		Where("id = ? AND version = ?", card.ID, expectedVersion).
		Select("*").
		Omit("id", "order_id", "created_at").
		Updates(card)
	if res.Error != nil {
		card.Version = expectedVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		card.Version = expectedVersion
		return domain.ErrVersionConflict
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.JobCard, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.JobCard, error) {
	return r.findOne(ctx, db, "order_id = ?", orderID)
}

func (r *repo) OTPExists(ctx context.Context, db *gorm.DB, otp string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.JobCard{}).
		Where("otp = ?", otp).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, arg any) (*domain.JobCard, error) {
	var card domain.JobCard
	err := db.WithContext(ctx).Where(query, arg).Limit(1).Find(&card).Error
	if err != nil {
		return nil, err
	}
	if card.ID == 0 {
		return nil, nil
	}
	return &card, nil
}
