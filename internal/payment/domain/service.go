package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	"github.com/smallbiznis/fieldops/pkg/errs"
)

// RecordPaymentRequest is an admin entering money already collected.
type RecordPaymentRequest struct {
	OrderID   snowflake.ID
	Method    string
	Amount    int64
	Reference string
	Actor     actor.Actor
}

type InitializeRequest struct {
	OrderID  snowflake.ID
	Method   string
	Provider string
	Amount   int64
	Actor    actor.Actor
}

type InitializeResponse struct {
	Payment  *Payment      `json:"payment"`
	Checkout *GatewayOrder `json:"checkout,omitempty"`
}

type ConfirmRequest struct {
	PaymentID         snowflake.ID
	ProviderPaymentID string
	Signature         string
	Actor             actor.Actor
}

type Service interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (*Payment, error)
	InitializeCustomerPayment(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
	ConfirmCustomerPayment(ctx context.Context, req ConfirmRequest) (*Payment, error)
	ProcessEvent(ctx context.Context, event *PaymentEvent) error
	ListForOrder(ctx context.Context, orderID snowflake.ID, a actor.Actor) ([]Payment, error)
	Get(ctx context.Context, id snowflake.ID, a actor.Actor) (*Payment, error)
	Receipt(ctx context.Context, jobCardID snowflake.ID, a actor.Actor) ([]byte, error)
	// ExpireCheckout fails an online checkout the customer abandoned.
	ExpireCheckout(ctx context.Context, paymentID snowflake.ID) (*Payment, error)
}

var (
	ErrInvalidMethod    = errs.New(errs.KindValidation, "invalid_payment_method")
	ErrInvalidAmount    = errs.New(errs.KindValidation, "invalid_payment_amount")
	ErrInvalidProvider  = errs.New(errs.KindValidation, "invalid_payment_provider")
	ErrInvalidPayload   = errs.New(errs.KindValidation, "invalid_webhook_payload")
	ErrInvalidEvent     = errs.New(errs.KindValidation, "invalid_webhook_event")
	ErrInvalidSignature = errs.New(errs.KindUnauthorized, "invalid_payment_signature")
	ErrNotFound         = errs.New(errs.KindNotFound, "payment_not_found")
	ErrProviderNotFound = errs.New(errs.KindNotFound, "payment_provider_not_found")
	ErrForbidden        = errs.New(errs.KindForbidden, "payment_forbidden")
	ErrPaymentFailed    = errs.New(errs.KindInvalidState, "payment_failed")
	ErrOrderClosed      = errs.New(errs.KindInvalidState, "order_closed")
	ErrNotPaid          = errs.New(errs.KindInvalidState, "job_card_not_paid")
	ErrAlreadyPaid      = errs.New(errs.KindInvalidState, "order_already_paid")
	ErrStatusConflict   = errs.New(errs.KindConflict, "payment_status_conflict")
	ErrGatewayMismatch  = errs.New(errs.KindFatal, "payment_gateway_mismatch")
	ErrGateway          = errs.New(errs.KindFatal, "payment_gateway_error")

	// ErrEventIgnored marks webhook events the settlement flow skips.
	ErrEventIgnored          = errs.New(errs.KindValidation, "payment_event_ignored")
	ErrProviderNotConfigured = errs.New(errs.KindInvalidState, "payment_provider_not_configured")
)
