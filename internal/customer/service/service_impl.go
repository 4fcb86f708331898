package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/customer/domain"
	"github.com/smallbiznis/fieldops/pkg/db"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"github.com/smallbiznis/fieldops/pkg/textutil"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

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

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("customer.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	name := textutil.Clean(req.Name)
	if name == "" {
		return domain.Customer{}, domain.ErrInvalidName
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.Customer{}, domain.ErrInvalidEmail
	}

	phone := strings.TrimSpace(req.Phone)
	if phone == "" {
		return domain.Customer{}, domain.ErrInvalidPhone
	}

	now := s.clock.Now()
	customer := domain.Customer{
		ID:        s.genID.Generate(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		Metadata:  datatypes.JSONMap{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Customer{}, domain.ErrEmailAlreadyTaken
		}
		return domain.Customer{}, err
	}

	return customer, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	filter := domain.ListCustomerFilter{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		CreatedFrom: req.CreatedFrom,
		CreatedTo:   req.CreatedTo,
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		if _, err := pagination.DecodeCursor(token); err != nil {
			return domain.ListCustomerResponse{}, domain.ErrInvalidPageToken
		}
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: int(req.PageSize)}.Normalize()
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListCustomerResponse{}, err
	}

	pageInfo, items := pagination.BuildCursorPageInfo(items, page.PageSize, func(customer *domain.Customer) pagination.Cursor {
		return pagination.Cursor{
			ID:        customer.ID.String(),
			CreatedAt: customer.CreatedAt.Format(time.RFC3339Nano),
		}
	})

	customers := make([]domain.Customer, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		customers = append(customers, *item)
	}

	return domain.ListCustomerResponse{PageInfo: *pageInfo, Customers: customers}, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Customer, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Customer{}, err
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) AddAddress(ctx context.Context, req domain.AddAddressRequest) (domain.Address, error) {
	if _, err := s.GetByID(ctx, req.CustomerID); err != nil {
		return domain.Address{}, err
	}

	address := domain.Address{
		ID:         s.genID.Generate(),
		CustomerID: req.CustomerID,
		Label:      textutil.Clean(req.Label),
		Line1:      textutil.Clean(req.Line1),
		Line2:      textutil.Clean(req.Line2),
		City:       textutil.Clean(req.City),
		State:      textutil.Clean(req.State),
		PostalCode: strings.TrimSpace(req.PostalCode),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		CreatedAt:  s.clock.Now(),
	}
	if address.Line1 == "" || address.City == "" {
		return domain.Address{}, domain.ErrInvalidAddress
	}

	if err := s.repo.InsertAddress(ctx, s.db, &address); err != nil {
		return domain.Address{}, err
	}
	return address, nil
}

func (s *Service) GetAddress(ctx context.Context, customerID, addressID snowflake.ID) (domain.Address, error) {
	address, err := s.repo.FindAddress(ctx, s.db, customerID, addressID)
	if err != nil {
		return domain.Address{}, err
	}
	if address == nil {
		return domain.Address{}, domain.ErrAddressNotFound
	}
	return *address, nil
}

func (s *Service) ListAddresses(ctx context.Context, customerID snowflake.ID) ([]domain.Address, error) {
	if _, err := s.GetByID(ctx, customerID); err != nil {
		return nil, err
	}
	addresses, err := s.repo.ListAddresses(ctx, s.db, customerID)
	if err != nil {
		return nil, err
	}
	if addresses == nil {
		addresses = []domain.Address{}
	}
	return addresses, nil
}
