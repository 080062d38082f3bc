package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"traderesonance/server/internal/models"
)

const (
	DefaultPerPage = 15
	MaxPerPage     = 500
	paginationSpan = 7
)

// EntryFilters narrows the price list and the CSV export
type EntryFilters struct {
	City       string
	Product    string
	Trend      string
	PriceMin   *float64
	PriceMax   *float64
	PercentMin *float64
	PercentMax *float64
	Production string // any, yes, no
	Sort       string
}

var sortClauses = map[string]string{
	"price_asc":    "price ASC",
	"price_desc":   "price DESC",
	"percent_asc":  "percent ASC",
	"percent_desc": "percent DESC",
	"updated_asc":  "updated_at ASC",
	"updated_desc": "updated_at DESC",
}

func (f EntryFilters) apply(q *gorm.DB) *gorm.DB {
	if f.City != "" {
		q = q.Where("LOWER(city) LIKE ?", "%"+strings.ToLower(f.City)+"%")
	}
	if f.Product != "" {
		q = q.Where("LOWER(product) LIKE ?", "%"+strings.ToLower(f.Product)+"%")
	}
	if trend, ok := models.ParseTrend(f.Trend); ok && f.Trend != "" {
		q = q.Where("trend = ?", trend)
	}
	if f.PriceMin != nil {
		q = q.Where("price >= ?", *f.PriceMin)
	}
	if f.PriceMax != nil {
		q = q.Where("price <= ?", *f.PriceMax)
	}
	if f.PercentMin != nil {
		q = q.Where("percent >= ?", *f.PercentMin)
	}
	if f.PercentMax != nil {
		q = q.Where("percent <= ?", *f.PercentMax)
	}
	switch f.Production {
	case "yes":
		q = q.Where("is_production_city = ?", true)
	case "no":
		q = q.Where("is_production_city = ?", false)
	}
	return q
}

func (f EntryFilters) orderClause() string {
	clause, ok := sortClauses[f.Sort]
	if !ok {
		clause = sortClauses["updated_desc"]
	}
	return clause + ", id DESC"
}

type PriceTotals struct {
	Entries  int64 `json:"entries"`
	Cities   int64 `json:"cities"`
	Products int64 `json:"products"`
}

type Pagination struct {
	Page     int   `json:"page"`
	Pages    int   `json:"pages"`
	Total    int64 `json:"total"`
	PerPage  int   `json:"per_page"`
	HasPrev  bool  `json:"has_prev"`
	HasNext  bool  `json:"has_next"`
	PrevPage *int  `json:"prev_page"`
	NextPage *int  `json:"next_page"`
	Window   []int `json:"window"`
}

// NewPagination clamps page into range and computes the page window shown
// around it.
func NewPagination(page, perPage int, total int64) Pagination {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	pages := int((total + int64(perPage) - 1) / int64(perPage))
	if pages < 1 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	p := Pagination{
		Page:    page,
		Pages:   pages,
		Total:   total,
		PerPage: perPage,
		HasPrev: page > 1,
		HasNext: page < pages,
	}
	if p.HasPrev {
		prev := page - 1
		p.PrevPage = &prev
	}
	if p.HasNext {
		next := page + 1
		p.NextPage = &next
	}

	start := max(1, page-paginationSpan/2)
	end := min(pages, start+paginationSpan-1)
	start = max(1, end-paginationSpan+1)
	for i := start; i <= end; i++ {
		p.Window = append(p.Window, i)
	}
	return p
}

type PricePage struct {
	Items      []models.Entry `json:"items"`
	Pagination Pagination     `json:"pagination"`
	Totals     PriceTotals    `json:"totals"`
}

// ListEntries returns one page of filtered entries with totals over the
// whole filtered set.
func (d *Database) ListEntries(ctx context.Context, filters EntryFilters, page, perPage int) (*PricePage, error) {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	base := filters.apply(d.db.WithContext(ctx).Model(&models.Entry{}))

	var totals PriceTotals
	err := base.Session(&gorm.Session{}).
		Select("COUNT(*) AS entries, COUNT(DISTINCT city) AS cities, COUNT(DISTINCT product) AS products").
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count entries: %w", err)
	}

	pagination := NewPagination(page, perPage, totals.Entries)
	items := make([]models.Entry, 0, perPage)
	err = base.Session(&gorm.Session{}).
		Order(filters.orderClause()).
		Offset((pagination.Page - 1) * perPage).
		Limit(perPage).
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}

	return &PricePage{Items: items, Pagination: pagination, Totals: totals}, nil
}

// AllEntries returns every entry; the trade views aggregate over the full table.
func (d *Database) AllEntries(ctx context.Context) ([]models.Entry, error) {
	var entries []models.Entry
	if err := d.db.WithContext(ctx).Order("city ASC, product ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	return entries, nil
}

func (d *Database) GetEntry(ctx context.Context, id uint) (*models.Entry, error) {
	var entry models.Entry
	if err := d.db.WithContext(ctx).First(&entry, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// FindEntryByKey looks up the entry for a trimmed (city, product) pair.
func (d *Database) FindEntryByKey(ctx context.Context, city, product string) (*models.Entry, error) {
	var entry models.Entry
	err := d.db.WithContext(ctx).
		Where("city = ? AND product = ?", strings.TrimSpace(city), strings.TrimSpace(product)).
		First(&entry).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// CreateEntry inserts a new entry. A collision on (city, product) returns an
// *EntryExistsError holding the row that already owns the key.
func (d *Database) CreateEntry(ctx context.Context, fields models.EntryFields) (*models.Entry, error) {
	fields.Normalize()

	if existing, err := d.FindEntryByKey(ctx, fields.City, fields.Product); err == nil {
		return nil, &EntryExistsError{Existing: existing}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	entry := fields.NewEntry()
	if err := d.db.WithContext(ctx).Create(entry).Error; err != nil {
		if isUniqueViolation(err) {
			// lost a race against a concurrent create of the same key
			existing, findErr := d.FindEntryByKey(ctx, fields.City, fields.Product)
			if findErr != nil {
				return nil, fmt.Errorf("failed to load conflicting entry: %w", findErr)
			}
			return nil, &EntryExistsError{Existing: existing}
		}
		return nil, fmt.Errorf("failed to create entry: %w", err)
	}
	return entry, nil
}

// UpdateEntry overwrites the mutable fields of an entry and refreshes its
// timestamp. City and product are immutable.
func (d *Database) UpdateEntry(ctx context.Context, id uint, fields models.EntryFields) (*models.Entry, error) {
	entry, err := d.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	fields.Normalize()
	fields.Apply(entry)
	entry.UpdatedAt = time.Now().UTC()
	if err := d.db.WithContext(ctx).Save(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}
	return entry, nil
}

func (d *Database) DeleteEntry(ctx context.Context, id uint) (*models.Entry, error) {
	entry, err := d.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.db.WithContext(ctx).Delete(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to delete entry: %w", err)
	}
	return entry, nil
}

// UpsertEntry writes fields under their (city, product) key, overwriting the
// existing row or inserting a new one. inserted tells which happened.
func (d *Database) UpsertEntry(ctx context.Context, fields models.EntryFields) (entry *models.Entry, inserted bool, err error) {
	fields.Normalize()

	existing, err := d.FindEntryByKey(ctx, fields.City, fields.Product)
	switch {
	case err == nil:
		entry, err = d.overwrite(ctx, existing, fields)
		return entry, false, err
	case !errors.Is(err, ErrNotFound):
		return nil, false, err
	}

	entry = fields.NewEntry()
	if err := d.db.WithContext(ctx).Create(entry).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, false, fmt.Errorf("failed to insert entry: %w", err)
		}
		existing, findErr := d.FindEntryByKey(ctx, fields.City, fields.Product)
		if findErr != nil {
			return nil, false, fmt.Errorf("failed to load conflicting entry: %w", findErr)
		}
		entry, err = d.overwrite(ctx, existing, fields)
		return entry, false, err
	}
	return entry, true, nil
}

func (d *Database) overwrite(ctx context.Context, entry *models.Entry, fields models.EntryFields) (*models.Entry, error) {
	fields.Apply(entry)
	if fields.UpdatedAt != nil {
		entry.UpdatedAt = fields.UpdatedAt.UTC()
	} else {
		entry.UpdatedAt = time.Now().UTC()
	}
	// UpdateColumns keeps an explicit updated_at instead of stamping now
	err := d.db.WithContext(ctx).Model(entry).UpdateColumns(map[string]interface{}{
		"price":              entry.Price,
		"trend":              entry.Trend,
		"percent":            entry.Percent,
		"is_production_city": entry.IsProductionCity,
		"updated_at":         entry.UpdatedAt,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update entry: %w", err)
	}
	return entry, nil
}

// DistinctCities returns the sorted set of city names.
func (d *Database) DistinctCities(ctx context.Context) ([]string, error) {
	return d.distinct(ctx, "city")
}

// DistinctProducts returns the sorted set of product names.
func (d *Database) DistinctProducts(ctx context.Context) ([]string, error) {
	return d.distinct(ctx, "product")
}

func (d *Database) distinct(ctx context.Context, column string) ([]string, error) {
	var names []string
	err := d.db.WithContext(ctx).Model(&models.Entry{}).
		Distinct(column).
		Order(column+" ASC").
		Pluck(column, &names).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list %s values: %w", column, err)
	}
	return names, nil
}

// ExportEntries returns the filtered entries created inside [from, to],
// newest first. Zero bounds are open.
func (d *Database) ExportEntries(ctx context.Context, filters EntryFilters, from, to time.Time) ([]models.Entry, error) {
	q := filters.apply(d.db.WithContext(ctx).Model(&models.Entry{}))
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", to.UTC())
	}

	var entries []models.Entry
	if err := q.Order("created_at DESC, id DESC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to export entries: %w", err)
	}
	return entries, nil
}
