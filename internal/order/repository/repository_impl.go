package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	if order.Version == 0 {
		order.Version = 1
	}
	return db.WithContext(ctx).Create(order).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, order *domain.Order, expectedVersion int64) error {
	if order == nil {
		return gorm.ErrInvalidData
	}
	order.Version = expectedVersion + 1

	res := db.WithContext(ctx).
		Model(&domain.Order{}).
		Where("id = ? AND version = ?", order.ID, expectedVersion).
		Select("*").
		Omit("id", "created_at").
		Updates(order)
	if res.Error != nil {
		order.Version = expectedVersion
		return res.Error
	}
	if res.RowsAffected == 0 {
		order.Version = expectedVersion
		return domain.ErrVersionConflict
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

func (r *repo) CodeExists(ctx context.Context, db *gorm.DB, code string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Order{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Order, error) {
	stmt := db.WithContext(ctx).Model(&domain.Order{})
	if filter.Status != nil {
		stmt = stmt.Where("status = ?", *filter.Status)
	}
	if filter.From != nil {
		stmt = stmt.Where("scheduled_at >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("scheduled_at <= ?", *filter.To)
	}
	if filter.TechnicianID != nil {
		stmt = stmt.Where("assigned_technician_id = ?", *filter.TechnicianID)
	}
	if filter.CustomerID != nil {
		stmt = stmt.Where("customer_id = ?", *filter.CustomerID)
	}

	stmt, err := pagination.Apply(stmt, page, "")
	if err != nil {
		return nil, err
	}

	var orders []*domain.Order
	if err := stmt.Order("created_at DESC, id DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
