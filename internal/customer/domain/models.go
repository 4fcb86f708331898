package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Customer struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name      string            `gorm:"not null" json:"name"`
	Email     string            `gorm:"not null;uniqueIndex" json:"email"`
	Phone     string            `gorm:"not null" json:"phone"`
	Metadata  datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

// Address is a saved service location. Orders copy it into their snapshot.
type Address struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	CustomerID snowflake.ID `gorm:"not null;index" json:"customer_id"`
	Label      string       `json:"label,omitempty"`
	Line1      string       `gorm:"not null" json:"line1"`
	Line2      string       `json:"line2,omitempty"`
	City       string       `gorm:"not null" json:"city"`
	State      string       `json:"state,omitempty"`
	PostalCode string       `json:"postal_code,omitempty"`
	Latitude   *float64     `json:"latitude,omitempty"`
	Longitude  *float64     `json:"longitude,omitempty"`
	CreatedAt  time.Time    `gorm:"not null" json:"created_at"`
}

func (Address) TableName() string { return "customer_addresses" }

// Formatted renders the address on one line.
func (a Address) Formatted() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Line1, a.Line2, a.City, a.State, a.PostalCode} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
