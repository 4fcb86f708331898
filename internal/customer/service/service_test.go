package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/clock"
	"github.com/smallbiznis/fieldops/internal/customer/domain"
	"github.com/smallbiznis/fieldops/internal/customer/repository"
	"github.com/smallbiznis/fieldops/internal/testutil"
	"github.com/smallbiznis/fieldops/pkg/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()
	db := testutil.NewDB(t, &domain.Customer{}, &domain.Address{})
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	return New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Clock: clk,
		Repo:  repository.Provide(),
	}).(*Service), clk
}

func TestCreateCustomer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateCustomerRequest{
		Name:  "  Asha <b>Rao</b> ",
		Email: "Asha@Example.com",
		Phone: "+91 98450 00000",
	})
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", created.Name)
	assert.Equal(t, "asha@example.com", created.Email)

	got, err := svc.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Phone, got.Phone)
}

func TestCreateCustomerValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateCustomerRequest{Email: "a@b.c", Phone: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "A", Email: "nope", Phone: "1"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	_, err = svc.Create(ctx, domain.CreateCustomerRequest{Name: "A", Email: "a@b.c"})
	assert.ErrorIs(t, err, domain.ErrInvalidPhone)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestCreateCustomerDuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := domain.CreateCustomerRequest{Name: "A", Email: "dup@example.com", Phone: "1"}
	_, err := svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyTaken)
}

func TestGetMissingCustomer(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.GetByID(context.Background(), snowflake.ID(42))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCustomersPaginates(t *testing.T) {
	svc, clk := newTestService(t)
	ctx := context.Background()

	for _, email := range []string{"a@x.io", "b@x.io", "c@x.io"} {
		_, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: email, Email: email, Phone: "1"})
		require.NoError(t, err)
		clk.Advance(time.Minute)
	}

	first, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Customers, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, "c@x.io", first.Customers[0].Email)

	second, err := svc.List(ctx, domain.ListCustomerRequest{PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Customers, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "a@x.io", second.Customers[0].Email)

	_, err = svc.List(ctx, domain.ListCustomerRequest{PageToken: "%%%"})
	assert.ErrorIs(t, err, domain.ErrInvalidPageToken)
}

func TestAddresses(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	customer, err := svc.Create(ctx, domain.CreateCustomerRequest{Name: "A", Email: "addr@x.io", Phone: "1"})
	require.NoError(t, err)

	_, err = svc.AddAddress(ctx, domain.AddAddressRequest{CustomerID: customer.ID, City: "Pune"})
	assert.ErrorIs(t, err, domain.ErrInvalidAddress)

	_, err = svc.AddAddress(ctx, domain.AddAddressRequest{CustomerID: snowflake.ID(7), Line1: "x", City: "y"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	address, err := svc.AddAddress(ctx, domain.AddAddressRequest{
		CustomerID: customer.ID,
		Label:      "Home",
		Line1:      "12 MG Road",
		City:       "Pune",
		PostalCode: "411001",
	})
	require.NoError(t, err)
	assert.Equal(t, "12 MG Road, Pune, 411001", address.Formatted())

	got, err := svc.GetAddress(ctx, customer.ID, address.ID)
	require.NoError(t, err)
	assert.Equal(t, address.Line1, got.Line1)

	_, err = svc.GetAddress(ctx, snowflake.ID(9), address.ID)
	assert.ErrorIs(t, err, domain.ErrAddressNotFound)

	list, err := svc.ListAddresses(ctx, customer.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
