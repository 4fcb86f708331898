package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Category struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Code      string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name      string       `gorm:"type:text;not null" json:"name"`
	Active    bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Category) TableName() string { return "service_categories" }

// Item is a billable service. BasePrice is in minor units and is used when
// extra work does not carry an explicit amount.
type Item struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CategoryID  snowflake.ID `gorm:"not null;index" json:"category_id"`
	Code        string       `gorm:"type:text;not null;uniqueIndex" json:"code"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Description *string      `gorm:"type:text" json:"description,omitempty"`
	BasePrice   int64        `gorm:"not null" json:"base_price"`
	Active      bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Item) TableName() string { return "service_items" }
