package models

import "time"

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// EntryRequest is a moderated change proposal awaiting an administrator
type EntryRequest struct {
	ID               uint          `json:"id" gorm:"primaryKey"`
	City             string        `json:"city" gorm:"size:120;not null;index"`
	Product          string        `json:"product" gorm:"size:120;not null;index"`
	Price            float64       `json:"price" gorm:"not null"`
	Trend            Trend         `json:"trend" gorm:"size:10;not null;default:up"`
	Percent          float64       `json:"percent" gorm:"not null;default:0"`
	IsProductionCity bool          `json:"is_production_city" gorm:"not null;default:false"`
	Status           RequestStatus `json:"status" gorm:"size:20;not null;default:pending;index"`
	SubmitIP         string        `json:"submit_ip,omitempty" gorm:"size:64"`
	DecidedAt        *time.Time    `json:"decided_at,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

func (EntryRequest) TableName() string {
	return "entry_requests"
}

// Fields returns the proposed entry values.
func (r *EntryRequest) Fields() EntryFields {
	return EntryFields{
		City:             r.City,
		Product:          r.Product,
		Price:            r.Price,
		Trend:            r.Trend,
		Percent:          r.Percent,
		IsProductionCity: r.IsProductionCity,
	}
}
