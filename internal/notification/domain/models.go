package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ChannelAdmins = "admins"
	ChannelUser   = "user"
)

// Notification is a persisted inbox item. RecipientID is nil for items on
// the shared admin channel.
type Notification struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	RecipientID   *snowflake.ID     `gorm:"index" json:"recipient_id,omitempty"`
	RecipientRole string            `gorm:"not null;size:32;index" json:"recipient_role"`
	Channel       string            `gorm:"not null;size:16" json:"channel"`
	Event         string            `gorm:"not null;size:64" json:"event"`
	Payload       datatypes.JSONMap `json:"payload,omitempty"`
	ReadAt        *time.Time        `json:"read_at,omitempty"`
	CreatedAt     time.Time         `gorm:"not null;index" json:"created_at"`
}

func (Notification) TableName() string { return "notifications" }

// Event names shared by every producer.
const (
	EventOrderNew           = "order:new"
	EventOrderUpdated       = "order:updated"
	EventOrderAssigned      = "order:assigned"
	EventOrderRescheduled   = "order:rescheduled"
	EventOrderStatusChanged = "order:status"
	EventJobAssigned        = "job:assigned"
	EventJobUpdated         = "job:updated"
	EventJobCheckIn         = "job:check_in"
	EventApprovalRequested  = "approval:requested"
	EventApprovalResolved   = "approval:resolved"
	EventPaymentReceived    = "payment:received"
	EventPaymentExpired     = "payment:expired"
	EventOrderUnassigned    = "order:unassigned"
)
