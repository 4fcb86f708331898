package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	jobcarddomain "github.com/smallbiznis/fieldops/internal/jobcard/domain"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	"github.com/smallbiznis/fieldops/pkg/errs"
)

// AssignRequest reserves TechnicianIDs for the order. The first id is the
// primary technician and owns the job card. Slots default to the order's
// own time window.
type AssignRequest struct {
	OrderID       snowflake.ID              `json:"-"`
	TechnicianIDs []snowflake.ID            `json:"technician_ids"`
	Slots         []calendardomain.Interval `json:"slots"`
	Actor         actor.Actor               `json:"-"`
}

type Result struct {
	Order   *orderdomain.Order     `json:"order"`
	JobCard *jobcarddomain.JobCard `json:"job_card"`
	Entries int                    `json:"calendar_entries"`
}

type Service interface {
	Assign(ctx context.Context, req AssignRequest) (*Result, error)
}

var (
	ErrNoTechnicians = errs.New(errs.KindValidation, "technicians_required")
	ErrNoWindow      = errs.New(errs.KindValidation, "assignment_window_required")
	ErrForbidden     = errs.New(errs.KindForbidden, "assignment_forbidden")
	ErrConflict      = errs.New(errs.KindConflict, "technician_unavailable")
	ErrBusy          = errs.New(errs.KindConflict, "assignment_in_progress")
	ErrOTPExhausted  = errs.New(errs.KindFatal, "otp_generation_failed")
)
