package domain

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	history "github.com/smallbiznis/fieldops/internal/history/domain"
	"github.com/smallbiznis/fieldops/pkg/db/pagination"
	"github.com/smallbiznis/fieldops/pkg/errs"
)

type CreateRequest struct {
	Actor           actor.Actor
	CustomerID      *snowflake.ID
	AddressID       *snowflake.ID
	Customer        CustomerSnapshot
	Services        []RequestedService
	EstimatedCost   int64
	ScheduledAt     *time.Time
	TimeWindowStart *time.Time
	TimeWindowEnd   *time.Time
	Notes           string
}

type ListRequest struct {
	pagination.Pagination
	Status       string
	From         *time.Time
	To           *time.Time
	TechnicianID *snowflake.ID
	CustomerID   *snowflake.ID
}

type ListResponse struct {
	pagination.PageInfo
	Orders []Order `json:"orders"`
}

type RescheduleRequest struct {
	OrderID snowflake.ID
	Start   time.Time
	End     time.Time
	Actor   actor.Actor
}

type UpdateStatusRequest struct {
	OrderID     snowflake.ID
	Status      string
	Reason      string
	Attachments []string
	Actor       actor.Actor
}

type DecisionRequest struct {
	OrderID snowflake.ID
	Note    string
	Actor   actor.Actor
}

type AddMediaRequest struct {
	OrderID     snowflake.ID
	Kind        string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Actor       actor.Actor
}

type RateRequest struct {
	OrderID snowflake.ID
	Score   int
	Comment string
	Actor   actor.Actor
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Order, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	Get(ctx context.Context, id snowflake.ID) (*Order, error)
	Reschedule(ctx context.Context, req RescheduleRequest) (*Order, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (*Order, error)
	RequestCancellation(ctx context.Context, orderID snowflake.ID, reason string, a actor.Actor) (*Order, error)
	Cancel(ctx context.Context, orderID snowflake.ID, reason string, a actor.Actor) (*Order, error)

	ApproveAdditionalItems(ctx context.Context, req DecisionRequest) (*Order, error)
	RejectAdditionalItems(ctx context.Context, req DecisionRequest) (*Order, error)

	AddMedia(ctx context.Context, req AddMediaRequest) (*Order, error)
	RemoveMedia(ctx context.Context, orderID snowflake.ID, index int, a actor.Actor) (*Order, error)
	MediaURL(ctx context.Context, orderID snowflake.ID, index int) (string, error)
	OverridePaymentStatus(ctx context.Context, orderID snowflake.ID, status string, a actor.Actor) (*Order, error)
	AddHistoryNote(ctx context.Context, orderID snowflake.ID, note string, a actor.Actor) (*history.Entry, error)
	Rate(ctx context.Context, req RateRequest) (*Order, error)
	History(ctx context.Context, orderID snowflake.ID) ([]history.Entry, error)
}

var (
	ErrInvalidSchedule       = errs.New(errs.KindValidation, "invalid_schedule")
	ErrInvalidCustomer       = errs.New(errs.KindValidation, "invalid_customer")
	ErrInvalidServices       = errs.New(errs.KindValidation, "invalid_services")
	ErrInvalidAmount         = errs.New(errs.KindValidation, "invalid_amount")
	ErrInvalidStatus         = errs.New(errs.KindValidation, "invalid_status")
	ErrInvalidPaymentStatus  = errs.New(errs.KindValidation, "invalid_payment_status")
	ErrFollowUpReason        = errs.New(errs.KindValidation, "follow_up_reason_required")
	ErrFollowUpAttachments   = errs.New(errs.KindValidation, "follow_up_attachments_required")
	ErrInvalidNote           = errs.New(errs.KindValidation, "invalid_note")
	ErrInvalidRating         = errs.New(errs.KindValidation, "invalid_rating")
	ErrInvalidMedia          = errs.New(errs.KindValidation, "invalid_media")
	ErrInvalidPageToken      = errs.New(errs.KindValidation, "invalid_page_token")
	ErrNotFound              = errs.New(errs.KindNotFound, "order_not_found")
	ErrMediaNotFound         = errs.New(errs.KindNotFound, "media_not_found")
	ErrForbidden             = errs.New(errs.KindForbidden, "order_forbidden")
	ErrOrderClosed           = errs.New(errs.KindInvalidState, "order_closed")
	ErrOrderReadOnly         = errs.New(errs.KindInvalidState, "order_read_only")
	ErrNoPendingApproval     = errs.New(errs.KindInvalidState, "no_pending_approval")
	ErrNotCompleted          = errs.New(errs.KindInvalidState, "order_not_completed")
	ErrCancellationRequested = errs.New(errs.KindInvalidState, "cancellation_already_requested")
	ErrAlreadyRated          = errs.New(errs.KindConflict, "order_already_rated")
	ErrVersionConflict       = errs.New(errs.KindConflict, "order_version_conflict")
	ErrCodeExhausted         = errs.New(errs.KindFatal, "order_code_generation_failed")
)
