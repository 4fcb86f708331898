package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Entry is one immutable line in an order's timeline.
type Entry struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrderID   snowflake.ID      `gorm:"not null;index:idx_order_history_order,priority:1" json:"order_id"`
	Action    string            `gorm:"not null;size:64" json:"action"`
	Message   string            `gorm:"not null" json:"message"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	ActorID   *snowflake.ID     `json:"actor_id,omitempty"`
	ActorRole string            `gorm:"not null;size:32" json:"actor_role"`
	CreatedAt time.Time         `gorm:"not null;index:idx_order_history_order,priority:2" json:"created_at"`
}

func (Entry) TableName() string { return "order_history" }

const (
	ActionOrderCreated          = "order.created"
	ActionOrderRescheduled      = "order.rescheduled"
	ActionOrderStatusChanged    = "order.status_changed"
	ActionOrderAssigned         = "order.assigned"
	ActionCancellationRequested = "order.cancellation_requested"
	ActionApprovalApproved      = "order.approval_approved"
	ActionApprovalRejected      = "order.approval_rejected"
	ActionMediaAdded            = "order.media_added"
	ActionMediaRemoved          = "order.media_removed"
	ActionPaymentStatusOverride = "order.payment_status_overridden"
	ActionNote                  = "order.note"
	ActionRated                 = "order.rated"
	ActionAssignmentOverdue     = "order.assignment_overdue"

	ActionCheckIn          = "jobcard.check_in"
	ActionCheckout         = "jobcard.checkout"
	ActionExtraWorkAdded   = "jobcard.extra_work_added"
	ActionExtraWorkRemoved = "jobcard.extra_work_removed"
	ActionSparePartsAdded  = "jobcard.spare_parts_added"
	ActionSparePartRemoved = "jobcard.spare_part_removed"
	ActionEstimateUpdated  = "jobcard.estimate_updated"
	ActionJobCompleted     = "jobcard.completed"
	ActionJobCardLocked    = "jobcard.locked"

	ActionPaymentInitiated = "payment.initiated"
	ActionPaymentSucceeded = "payment.succeeded"
	ActionPaymentFailed    = "payment.failed"
)
