package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusCheckedIn Status = "CHECKED_IN"
	StatusCompleted Status = "COMPLETED"
	StatusFollowUp  Status = "FOLLOW_UP"
	StatusLocked    Status = "LOCKED"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPartial, PaymentPaid:
		return true
	}
	return false
}

type CheckIn struct {
	TechnicianID snowflake.ID `json:"technician_id"`
	Latitude     float64      `json:"latitude"`
	Longitude    float64      `json:"longitude"`
	Note         string       `json:"note,omitempty"`
	At           time.Time    `json:"at"`
}

type ExtraWork struct {
	LineID      string       `json:"line_id"`
	CategoryID  snowflake.ID `json:"category_id"`
	ItemID      snowflake.ID `json:"item_id"`
	Description string       `json:"description"`
	Amount      int64        `json:"amount"`
	AddedAt     time.Time    `json:"added_at"`
}

type SparePart struct {
	LineID    string    `json:"line_id"`
	Part      string    `json:"part"`
	Quantity  int       `json:"quantity"`
	UnitPrice int64     `json:"unit_price"`
	AddedAt   time.Time `json:"added_at"`
}

func (p SparePart) Amount() int64 {
	return int64(p.Quantity) * p.UnitPrice
}

type JobCard struct {
	ID                snowflake.ID                   `gorm:"primaryKey" json:"id"`
	OrderID           snowflake.ID                   `gorm:"not null;uniqueIndex" json:"order_id"`
	TechnicianID      snowflake.ID                   `gorm:"not null;index" json:"technician_id"`
	Status            Status                         `gorm:"type:text;not null" json:"status"`
	EstimateAmount    int64                          `gorm:"not null" json:"estimate_amount"`
	AdditionalCharges int64                          `gorm:"not null" json:"additional_charges"`
	FinalAmount       int64                          `gorm:"not null" json:"final_amount"`
	OTP               *string                        `gorm:"column:otp;type:text;uniqueIndex" json:"otp,omitempty"`
	PaymentStatus     PaymentStatus                  `gorm:"type:text;not null" json:"payment_status"`
	CheckIns          datatypes.JSONSlice[CheckIn]   `json:"check_ins"`
	ExtraWork         datatypes.JSONSlice[ExtraWork] `json:"extra_work"`
	SpareParts        datatypes.JSONSlice[SparePart] `json:"spare_parts"`
	CompletedAt       *time.Time                     `json:"completed_at,omitempty"`
	LockedAt          *time.Time                     `json:"locked_at,omitempty"`
	Version           int64                          `gorm:"not null;default:1" json:"version"`
	CreatedAt         time.Time                      `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time                      `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
}

func (JobCard) TableName() string { return "job_cards" }

// Recalculate derives the charge totals from the line items.
// FinalAmount is always EstimateAmount + AdditionalCharges.
func (j *JobCard) Recalculate() {
	var additional int64
	for _, w := range j.ExtraWork {
		additional += w.Amount
	}
	for _, p := range j.SpareParts {
		additional += p.Amount()
	}
	j.AdditionalCharges = additional
	j.FinalAmount = j.EstimateAmount + additional
}

func (j *JobCard) Locked() bool {
	return j.Status == StatusLocked
}

// Redacted hides the checkout code from the technician who has to ask the
// customer for it.
func (j JobCard) Redacted() JobCard {
	j.OTP = nil
	return j
}
