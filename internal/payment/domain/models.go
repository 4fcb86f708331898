package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Method string

const (
	MethodCash   Method = "cash"
	MethodUPI    Method = "upi"
	MethodOnline Method = "online"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodUPI, MethodOnline:
		return true
	}
	return false
}

// Gateway reports whether the method settles through a payment provider.
func (m Method) Gateway() bool {
	return m == MethodOnline
}

type Status string

const (
	StatusInitiated Status = "initiated"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
)

// Payment is immutable once it reaches StatusSuccess.
type Payment struct {
	ID                snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrderID           snowflake.ID      `gorm:"not null;index" json:"order_id"`
	JobCardID         *snowflake.ID     `gorm:"index" json:"job_card_id,omitempty"`
	CustomerID        *snowflake.ID     `gorm:"index" json:"customer_id,omitempty"`
	Method            Method            `gorm:"type:text;not null" json:"method"`
	Provider          string            `gorm:"type:text" json:"provider,omitempty"`
	Amount            int64             `gorm:"not null" json:"amount"`
	Currency          string            `gorm:"type:text;not null" json:"currency"`
	Status            Status            `gorm:"type:text;not null;index" json:"status"`
	TransactionRef    *string           `gorm:"type:text;index" json:"transaction_ref,omitempty"`
	ProviderPaymentID *string           `gorm:"type:text" json:"provider_payment_id,omitempty"`
	PaidAt            *time.Time        `json:"paid_at,omitempty"`
	ProviderMetadata  datatypes.JSONMap `json:"provider_metadata,omitempty"`
	CreatedAt         time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// EventRecord remembers every provider webhook so redeliveries are no-ops.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event" json:"provider"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_payment_events_provider_event" json:"provider_event_id"`
	EventType       string         `gorm:"type:text;not null" json:"event_type"`
	PaymentID       *snowflake.ID  `json:"payment_id,omitempty"`
	Payload         datatypes.JSON `gorm:"not null" json:"payload"`
	ReceivedAt      time.Time      `gorm:"not null" json:"received_at"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty"`
}

func (EventRecord) TableName() string { return "payment_events" }

const (
	EventTypePaymentSucceeded = "payment_succeeded"
	EventTypePaymentFailed    = "payment_failed"
)

// GatewayState is a provider payment state normalised across providers.
type GatewayState string

const (
	GatewayCaptured   GatewayState = "captured"
	GatewayAuthorized GatewayState = "authorized"
	GatewayPending    GatewayState = "pending"
	GatewayFailed     GatewayState = "failed"
)

// Settled reports whether money has been secured by the provider.
func (s GatewayState) Settled() bool {
	return s == GatewayCaptured || s == GatewayAuthorized
}

// PaymentEvent is the canonical webhook event parsed by a provider.
type PaymentEvent struct {
	Provider          string
	ProviderEventID   string
	Type              string
	OrderRef          string
	ProviderPaymentID string
	State             GatewayState
	Amount            int64
	Currency          string
	OccurredAt        time.Time
	RawPayload        []byte
}
