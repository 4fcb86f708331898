package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fieldops/internal/actor"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusNew                   Status = "NEW"
	StatusPendingAssignment     Status = "PENDING_ASSIGNMENT"
	StatusAssigned              Status = "ASSIGNED"
	StatusInProgress            Status = "IN_PROGRESS"
	StatusCompleted             Status = "COMPLETED"
	StatusCancelled             Status = "CANCELLED"
	StatusCancellationRequested Status = "CANCELLATION_REQUESTED"
	StatusRescheduled           Status = "RESCHEDULED"
	StatusAwaitingApproval      Status = "AWAITING_APPROVAL"
	StatusFollowUp              Status = "FOLLOW_UP"
	StatusUnpaid                Status = "UNPAID"
	StatusPartiallyPaid         Status = "PARTIALLY_PAID"
)

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusPendingAssignment, StatusAssigned, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusCancellationRequested, StatusRescheduled,
		StatusAwaitingApproval, StatusFollowUp, StatusUnpaid, StatusPartiallyPaid:
		return true
	}
	return false
}

// Closed reports whether the order has reached a terminal status.
func (s Status) Closed() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPartial, PaymentPaid:
		return true
	}
	return false
}

type Source string

const (
	SourceCustomer Source = "customer"
	SourceAdmin    Source = "admin"
	SourcePublic   Source = "public"
)

// CustomerSnapshot is copied onto the order at creation and never updated.
type CustomerSnapshot struct {
	Name      string   `gorm:"type:text;not null" json:"name"`
	Phone     string   `gorm:"type:text;not null" json:"phone"`
	Email     string   `gorm:"type:text" json:"email,omitempty"`
	Address   string   `gorm:"type:text" json:"address"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type RequestedService struct {
	ItemID   *snowflake.ID `json:"item_id,omitempty"`
	Name     string        `json:"name"`
	Quantity int           `json:"quantity"`
}

type Media struct {
	Key         string        `json:"key"`
	URL         string        `json:"url,omitempty"`
	Kind        string        `json:"kind"`
	ContentType string        `json:"content_type"`
	UploadedBy  *snowflake.ID `json:"uploaded_by,omitempty"`
	UploadedAt  time.Time     `json:"uploaded_at"`
}

type ApprovalStatus string

const (
	ApprovalNotRequired ApprovalStatus = "not_required"
	ApprovalPending     ApprovalStatus = "pending"
	ApprovalApproved    ApprovalStatus = "approved"
	ApprovalRejected    ApprovalStatus = "rejected"
)

type ItemKind string

const (
	ItemExtraWork ItemKind = "extra_work"
	ItemSparePart ItemKind = "spare_part"
)

// RequestedItem mirrors one job card line awaiting customer sign-off.
// LineID matches the job card line it was created from.
type RequestedItem struct {
	LineID      string        `json:"line_id"`
	Kind        ItemKind      `json:"kind"`
	Description string        `json:"description"`
	CategoryID  *snowflake.ID `json:"category_id,omitempty"`
	ItemID      *snowflake.ID `json:"item_id,omitempty"`
	Part        string        `json:"part,omitempty"`
	Quantity    int           `json:"quantity,omitempty"`
	UnitPrice   int64         `json:"unit_price,omitempty"`
	Amount      int64         `json:"amount"`
	RequestedAt time.Time     `json:"requested_at"`
}

type ApprovalDecision struct {
	Status    ApprovalStatus  `json:"status"`
	Items     []RequestedItem `json:"items"`
	Note      string          `json:"note,omitempty"`
	ActorID   *snowflake.ID   `json:"actor_id,omitempty"`
	ActorRole string          `json:"actor_role"`
	At        time.Time       `json:"at"`
}

type CustomerApproval struct {
	Status         ApprovalStatus     `json:"status"`
	RequestedItems []RequestedItem    `json:"requested_items"`
	History        []ApprovalDecision `json:"history"`
}

type Rating struct {
	Score   int       `json:"score"`
	Comment string    `json:"comment,omitempty"`
	RatedAt time.Time `json:"rated_at"`
}

type FollowUp struct {
	Reason      string        `json:"reason"`
	Attachments []string      `json:"attachments"`
	CreatedBy   *snowflake.ID `json:"created_by,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
}

func (f *FollowUp) Open() bool {
	return f != nil && f.ResolvedAt == nil
}

type Tracking struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	At        time.Time `json:"at"`
}

type Order struct {
	ID                    snowflake.ID                          `gorm:"primaryKey" json:"id"`
	Code                  string                                `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Customer              CustomerSnapshot                      `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	CustomerID            *snowflake.ID                         `gorm:"index" json:"customer_id,omitempty"`
	AddressID             *snowflake.ID                         `json:"address_id,omitempty"`
	Services              datatypes.JSONSlice[RequestedService] `json:"services"`
	EstimatedCost         int64                                 `gorm:"not null" json:"estimated_cost"`
	Currency              string                                `gorm:"type:text;not null" json:"currency"`
	ScheduledAt           time.Time                             `gorm:"not null;index" json:"scheduled_at"`
	TimeWindowStart       time.Time                             `gorm:"not null" json:"time_window_start"`
	TimeWindowEnd         time.Time                             `gorm:"not null" json:"time_window_end"`
	Status                Status                                `gorm:"type:text;not null;index" json:"status"`
	PaymentStatus         PaymentStatus                         `gorm:"type:text;not null" json:"payment_status"`
	AssignedTechnicianID  *snowflake.ID                         `gorm:"index" json:"assigned_technician_id,omitempty"`
	AssignedTechnicianIDs datatypes.JSONSlice[snowflake.ID]     `json:"assigned_technician_ids"`
	Media                 datatypes.JSONSlice[Media]            `json:"media"`
	CustomerApproval      datatypes.JSONType[CustomerApproval]  `json:"customer_approval"`
	Rating                *Rating                               `gorm:"serializer:json" json:"rating,omitempty"`
	FollowUp              *FollowUp                             `gorm:"serializer:json" json:"follow_up,omitempty"`
	Tracking              *Tracking                             `gorm:"serializer:json" json:"tracking,omitempty"`
	Notes                 string                                `gorm:"type:text" json:"notes,omitempty"`
	RescheduleCount       int                                   `gorm:"not null" json:"reschedule_count"`
	Source                Source                                `gorm:"type:text;not null" json:"source"`
	Version               int64                                 `gorm:"not null;default:1" json:"version"`
	CreatedAt             time.Time                             `gorm:"not null;index" json:"created_at"`
	UpdatedAt             time.Time                             `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

func (Order) TableName() string { return "orders" }

// Approval returns a copy of the approval sub-record that can be modified
// and written back with SetApproval.
func (o *Order) Approval() CustomerApproval {
	a := o.CustomerApproval.Data()
	if a.Status == "" {
		a.Status = ApprovalNotRequired
	}
	a.RequestedItems = append([]RequestedItem(nil), a.RequestedItems...)
	a.History = append([]ApprovalDecision(nil), a.History...)
	return a
}

func (o *Order) SetApproval(a CustomerApproval) {
	if a.RequestedItems == nil {
		a.RequestedItems = []RequestedItem{}
	}
	if a.History == nil {
		a.History = []ApprovalDecision{}
	}
	o.CustomerApproval = datatypes.NewJSONType(a)
}

// TechnicianIDs returns every assigned technician, primary first.
func (o *Order) TechnicianIDs() []snowflake.ID {
	if len(o.AssignedTechnicianIDs) > 0 {
		return append([]snowflake.ID(nil), o.AssignedTechnicianIDs...)
	}
	if o.AssignedTechnicianID != nil {
		return []snowflake.ID{*o.AssignedTechnicianID}
	}
	return nil
}

// OwnedBy reports whether customerID is the registered owner of the order.
func (o *Order) OwnedBy(customerID snowflake.ID) bool {
	return o.CustomerID != nil && *o.CustomerID == customerID
}

// AssignedTo reports whether technicianID is one of the assigned technicians.
func (o *Order) AssignedTo(technicianID snowflake.ID) bool {
	for _, id := range o.TechnicianIDs() {
		if id == technicianID {
			return true
		}
	}
	return false
}

// VisibleTo reports whether a may read the order. Customers see their own
// orders and technicians the ones they are assigned to.
func (o *Order) VisibleTo(a actor.Actor) bool {
	switch a.Role {
	case actor.RoleAdmin, actor.RoleSystem:
		return true
	case actor.RoleCustomer:
		return o.OwnedBy(a.ID)
	case actor.RoleTechnician:
		return o.AssignedTo(a.ID)
	}
	return false
}
