package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/customer/domain"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, customer *domain.Customer) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO customers (id, name, email, phone, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		customer.ID,
		customer.Name,
		customer.Email,
		customer.Phone,
		customer.Metadata,
		customer.CreatedAt,
		customer.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Customer, error) {
	var customer domain.Customer
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, phone, metadata, created_at, updated_at
		 FROM customers WHERE id = ?`,
		id,
	).Scan(&customer).Error
	if err != nil {
		return nil, err
	}
	if customer.ID == 0 {
		return nil, nil
	}
	return &customer, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListCustomerFilter, page pagination.Pagination) ([]*domain.Customer, error) {
	stmt := db.WithContext(ctx).Model(&domain.Customer{})
	if filter.Name != "" {
		stmt = stmt.Where("name = ?", filter.Name)
	}
	if filter.Email != "" {
		stmt = stmt.Where("email = ?", filter.Email)
	}
	if filter.CreatedFrom != nil {
		stmt = stmt.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedTo)
	}
	stmt, err := pagination.Apply(stmt, page, "")
	if err != nil {
		return nil, err
	}

	var customers []*domain.Customer
	if err := stmt.Order("created_at desc, id desc").Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

func (r *repo) InsertAddress(ctx context.Context, db *gorm.DB, address *domain.Address) error {
	return db.WithContext(ctx).Create(address).Error
}

func (r *repo) FindAddress(ctx context.Context, db *gorm.DB, customerID, id snowflake.ID) (*domain.Address, error) {
	var address domain.Address
	err := db.WithContext(ctx).
		Where("customer_id = ? AND id = ?", customerID, id).
		Limit(1).
		Find(&address).Error
	if err != nil {
		return nil, err
	}
	if address.ID == 0 {
		return nil, nil
	}
	return &address, nil
}

func (r *repo) ListAddresses(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]domain.Address, error) {
	var addresses []domain.Address
	err := db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at asc, id asc").
		Find(&addresses).Error
	if err != nil {
		return nil, err
	}
	return addresses, nil
}
