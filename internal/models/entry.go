package models

import (
	"strings"
	"time"
)

type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// ParseTrend normalises user input. Empty input means up.
func ParseTrend(s string) (Trend, bool) {
	switch Trend(strings.ToLower(strings.TrimSpace(s))) {
	case "", TrendUp:
		return TrendUp, true
	case TrendDown:
		return TrendDown, true
	case TrendFlat:
		return TrendFlat, true
	default:
		return "", false
	}
}

// Entry is one price observation for a (city, product) pair
type Entry struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	City             string    `json:"city" gorm:"size:120;not null;uniqueIndex:uq_entries_city_product,priority:1"`
	Product          string    `json:"product" gorm:"size:120;not null;uniqueIndex:uq_entries_city_product,priority:2"`
	Price            float64   `json:"price" gorm:"not null"`
	Trend            Trend     `json:"trend" gorm:"size:10;not null;default:up"`
	Percent          float64   `json:"percent" gorm:"not null;default:0"`
	IsProductionCity bool      `json:"is_production_city" gorm:"not null;default:false"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Entry) TableName() string {
	return "entries"
}

// Timestamp returns the time the observation was last touched.
func (e *Entry) Timestamp() time.Time {
	if e.UpdatedAt.IsZero() {
		return e.CreatedAt
	}
	return e.UpdatedAt
}

// Key returns the (city, product) identity of the entry
func (e *Entry) Key() EntryKey {
	return EntryKey{City: e.City, Product: e.Product}
}

type EntryKey struct {
	City    string
	Product string
}

// EntryFields carries the writable fields of an entry as submitted by a form,
// an approved request or an imported CSV row.
type EntryFields struct {
	City             string
	Product          string
	Price            float64
	Trend            Trend
	Percent          float64
	IsProductionCity bool
	CreatedAt        *time.Time
	UpdatedAt        *time.Time
}

// Normalize trims the key fields and fills the trend default.
func (f *EntryFields) Normalize() {
	f.City = strings.TrimSpace(f.City)
	f.Product = strings.TrimSpace(f.Product)
	if f.Trend == "" {
		f.Trend = TrendUp
	}
}

// Apply copies the mutable fields onto an existing entry.
func (f EntryFields) Apply(e *Entry) {
	e.Price = f.Price
	e.Trend = f.Trend
	e.Percent = f.Percent
	e.IsProductionCity = f.IsProductionCity
}

// NewEntry builds an unsaved entry from the fields.
func (f EntryFields) NewEntry() *Entry {
	e := &Entry{City: f.City, Product: f.Product}
	f.Apply(e)
	if f.CreatedAt != nil {
		e.CreatedAt = f.CreatedAt.UTC()
	}
	if f.UpdatedAt != nil {
		e.UpdatedAt = f.UpdatedAt.UTC()
	}
	return e
}
