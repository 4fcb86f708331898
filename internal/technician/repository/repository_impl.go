package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/technician/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, technician *domain.Technician) error {
	return db.WithContext(ctx).Create(technician).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, technician *domain.Technician) error {
	if technician == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE technicians SET active = ?, updated_at = ? WHERE id = ?`,
		technician.Active,
		technician.UpdatedAt,
		technician.ID,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Technician, error) {
	var t domain.Technician
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&t).Error
	if err != nil {
		return nil, err
	}
	if t.ID == 0 {
		return nil, nil
	}
	return &t, nil
}

func (r *repo) FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Technician, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Technician
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Technician, error) {
	var items []domain.Technician
	stmt := db.WithContext(ctx).Model(&domain.Technician{})
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}
	if err := stmt.Order("name ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
