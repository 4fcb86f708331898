package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Technician is the profile behind a technician account. Its ID is the
// subject of the technician's access token.
type Technician struct {
	ID        snowflake.ID                `gorm:"primaryKey" json:"id"`
	Name      string                      `gorm:"type:text;not null" json:"name"`
	Phone     string                      `gorm:"type:text;not null" json:"phone"`
	Email     *string                     `gorm:"type:text;uniqueIndex" json:"email,omitempty"`
	Skills    datatypes.JSONSlice[string] `json:"skills"`
	Active    bool                        `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time                   `gorm:"not null" json:"updated_at"`
}

func (Technician) TableName() string { return "technicians" }
