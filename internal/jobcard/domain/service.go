package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	"github.com/smallbiznis/fieldops/pkg/errs"
	"gorm.io/gorm"
)

type CheckInRequest struct {
	JobCardID snowflake.ID
	Latitude  float64
	Longitude float64
	Note      string
	Actor     actor.Actor
}

type CheckoutRequest struct {
	JobCardID snowflake.ID
	OTP       string
	Actor     actor.Actor
}

// ExtraWorkInput references a catalog item. Amount overrides the item's base
// price when set; Description defaults to the item name.
type ExtraWorkInput struct {
	CategoryID  snowflake.ID `json:"category_id"`
	ItemID      snowflake.ID `json:"item_id"`
	Amount      *int64       `json:"amount"`
	Description string       `json:"description"`
}

type AddExtraWorkRequest struct {
	JobCardID snowflake.ID
	Items     []ExtraWorkInput
	Actor     actor.Actor
}

type SparePartInput struct {
	Part      string `json:"part"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type AddSparePartsRequest struct {
	JobCardID snowflake.ID
	Parts     []SparePartInput
	Actor     actor.Actor
}

type RemoveLineRequest struct {
	JobCardID snowflake.ID
	Index     int
	Actor     actor.Actor
}

type UpdateEstimateRequest struct {
	JobCardID      snowflake.ID
	EstimateAmount int64
	Actor          actor.Actor
}

type Resolution string

const (
	ResolutionCompleted Resolution = "completed"
	ResolutionFollowUp  Resolution = "follow_up"
)

type CompleteRequest struct {
	JobCardID     snowflake.ID
	Resolution    string
	PaymentStatus string
	FollowUpNote  string
	Actor         actor.Actor
}

type Service interface {
	Get(ctx context.Context, id snowflake.ID, a actor.Actor) (*JobCard, error)
	GetByOrder(ctx context.Context, orderID snowflake.ID, a actor.Actor) (*JobCard, error)

	CheckIn(ctx context.Context, req CheckInRequest) (*JobCard, error)
	Checkout(ctx context.Context, req CheckoutRequest) (*JobCard, error)
	AddExtraWork(ctx context.Context, req AddExtraWorkRequest) (*JobCard, error)
	AddSpareParts(ctx context.Context, req AddSparePartsRequest) (*JobCard, error)
	RemoveExtraWork(ctx context.Context, req RemoveLineRequest) (*JobCard, error)
	RemoveSparePart(ctx context.Context, req RemoveLineRequest) (*JobCard, error)
	UpdateEstimate(ctx context.Context, req UpdateEstimateRequest) (*JobCard, error)
	CompleteJob(ctx context.Context, req CompleteRequest) (*JobCard, error)

	// Lock makes the card read-only. It runs on the caller's transaction and
	// is a no-op for a card that is already locked.
	Lock(ctx context.Context, db *gorm.DB, id snowflake.ID) (*JobCard, error)
}

var (
	ErrInvalidLocation      = errs.New(errs.KindValidation, "invalid_location")
	ErrInvalidItems         = errs.New(errs.KindValidation, "invalid_line_items")
	ErrInvalidAmount        = errs.New(errs.KindValidation, "invalid_amount")
	ErrInvalidResolution    = errs.New(errs.KindValidation, "invalid_resolution")
	ErrInvalidPaymentStatus = errs.New(errs.KindValidation, "invalid_payment_status")
	ErrInvalidOTP           = errs.New(errs.KindValidation, "invalid_otp")
	ErrNotFound             = errs.New(errs.KindNotFound, "job_card_not_found")
	ErrLineNotFound         = errs.New(errs.KindNotFound, "line_item_not_found")
	ErrForbidden            = errs.New(errs.KindForbidden, "job_card_forbidden")
	ErrOTPMismatch          = errs.New(errs.KindUnauthorized, "otp_mismatch")
	ErrLocked               = errs.New(errs.KindInvalidState, "job_card_locked")
	ErrNotCheckedIn         = errs.New(errs.KindInvalidState, "job_card_not_checked_in")
	ErrOTPNotConfigured     = errs.New(errs.KindInvalidState, "otp_not_configured")
	ErrInvalidTransition    = errs.New(errs.KindInvalidState, "invalid_job_card_transition")
	ErrVersionConflict      = errs.New(errs.KindConflict, "job_card_version_conflict")
)
