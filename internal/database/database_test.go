package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traderesonance/server/config"
	"traderesonance/server/internal/models"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	cfg := &config.Config{DatabaseURL: "sqlite:///" + filepath.Join(t.TempDir(), "test.db")}
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := NewDatabase(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db := openTestDB(t)
	require.NoError(t, db.RunMigrations(context.Background()))
	return db
}

// createLegacyTable creates entries the way it looked before the
// (city, product) unique index existed.
func createLegacyTable(t *testing.T, db *Database) {
	t.Helper()
	require.NoError(t, db.GetDB().Exec(`CREATE TABLE entries (
		id integer PRIMARY KEY AUTOINCREMENT,
		city text NOT NULL,
		product text NOT NULL,
		price real NOT NULL,
		trend text NOT NULL DEFAULT 'up',
		percent real NOT NULL DEFAULT 0,
		is_production_city numeric NOT NULL DEFAULT false,
		created_at datetime,
		updated_at datetime
	)`).Error)
}

func fields(city, product string, price float64) models.EntryFields {
	return models.EntryFields{City: city, Product: product, Price: price, Trend: models.TrendUp}
}

func TestCreateEntryRejectsDuplicateKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := db.CreateEntry(ctx, fields("Aurora", "Iron Ore", 120))
	require.NoError(t, err)

	_, err = db.CreateEntry(ctx, fields("  Aurora ", "Iron Ore", 135))
	var exists *EntryExistsError
	require.True(t, errors.As(err, &exists))
	assert.ErrorIs(t, err, ErrEntryExists)
	assert.Equal(t, first.ID, exists.Existing.ID)
	assert.Equal(t, 120.0, exists.Existing.Price)
}

func TestUniqueConstraintGuardsRawInsert(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.CreateEntry(ctx, fields("Aurora", "Iron Ore", 120))
	require.NoError(t, err)

	err = db.GetDB().Create(&models.Entry{City: "Aurora", Product: "Iron Ore", Price: 99, Trend: models.TrendUp}).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))
}

func TestUpdateEntry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	entry, err := db.CreateEntry(ctx, fields("Aurora", "Iron Ore", 120))
	require.NoError(t, err)

	updated, err := db.UpdateEntry(ctx, entry.ID, models.EntryFields{Price: 140, Trend: models.TrendDown, Percent: -4, IsProductionCity: true})
	require.NoError(t, err)
	assert.Equal(t, "Aurora", updated.City)
	assert.Equal(t, 140.0, updated.Price)
	assert.Equal(t, models.TrendDown, updated.Trend)
	assert.True(t, updated.IsProductionCity)

	_, err = db.UpdateEntry(ctx, 9999, fields("x", "y", 1))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertEntrySecondWriteWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, inserted, err := db.UpsertEntry(ctx, models.EntryFields{City: "Solace", Product: "Iron Ore", Price: 150, Trend: models.TrendUp, IsProductionCity: true})
	require.NoError(t, err)
	assert.True(t, inserted)

	_, inserted, err = db.UpsertEntry(ctx, models.EntryFields{City: "Solace", Product: "Iron Ore", Price: 160, Trend: models.TrendFlat, Percent: 3})
	require.NoError(t, err)
	assert.False(t, inserted)

	all, err := db.AllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 160.0, all[0].Price)
	assert.Equal(t, models.TrendFlat, all[0].Trend)
	assert.Equal(t, 3.0, all[0].Percent)
	assert.False(t, all[0].IsProductionCity)
}

func TestImportEntriesCountsInsertsAndUpdates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stats, err := db.ImportEntries(ctx, []models.EntryFields{
		fields("Aurora", "Iron Ore", 120),
		fields("Solace", "Iron Ore", 150),
		fields("Aurora", "Iron Ore", 125),
	})
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Inserted: 2, Updated: 1}, stats)

	entry, err := db.FindEntryByKey(ctx, "Aurora", "Iron Ore")
	require.NoError(t, err)
	assert.Equal(t, 125.0, entry.Price)
}

func TestImportKeepsExplicitTimestamps(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 3, 2, 12, 30, 0, 0, time.UTC)
	row := fields("Aurora", "Copper", 80)
	row.CreatedAt = &created
	row.UpdatedAt = &updated

	_, err := db.ImportEntries(ctx, []models.EntryFields{row})
	require.NoError(t, err)

	entry, err := db.FindEntryByKey(ctx, "Aurora", "Copper")
	require.NoError(t, err)
	assert.True(t, created.Equal(entry.CreatedAt))
	assert.True(t, updated.Equal(entry.UpdatedAt))
}

func TestMigrationsCollapseLegacyDuplicates(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	createLegacyTable(t, db)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	legacy := []models.Entry{
		{City: "Aurora", Product: "Iron Ore", Price: 100, Trend: models.TrendUp, IsProductionCity: true, CreatedAt: base, UpdatedAt: base},
		{City: "Aurora", Product: "Iron Ore", Price: 130, Trend: models.TrendUp, CreatedAt: base, UpdatedAt: base.Add(2 * time.Hour)},
		{City: "Aurora", Product: "Iron Ore", Price: 110, Trend: models.TrendUp, CreatedAt: base, UpdatedAt: base.Add(time.Hour)},
		{City: "Solace", Product: "Iron Ore", Price: 150, Trend: models.TrendDown, CreatedAt: base, UpdatedAt: base},
	}
	for i := range legacy {
		require.NoError(t, db.GetDB().Create(&legacy[i]).Error)
	}

	require.NoError(t, db.RunMigrations(ctx))

	all, err := db.AllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 130.0, all[0].Price)
	assert.True(t, all[0].IsProductionCity, "production flag of a removed duplicate is kept")
	assert.Equal(t, "Solace", all[1].City)

	// the unique index exists now
	err = db.GetDB().Create(&models.Entry{City: "Solace", Product: "Iron Ore", Price: 1, Trend: models.TrendUp}).Error
	assert.True(t, isUniqueViolation(err))
}

func TestDedupeIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	createLegacyTable(t, db)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.Entry{
		{City: "Aurora", Product: "Iron Ore", Price: 100, Trend: models.TrendUp, CreatedAt: base, UpdatedAt: base},
		{City: "Aurora", Product: "Iron Ore", Price: 120, Trend: models.TrendUp, CreatedAt: base, UpdatedAt: base.Add(time.Hour)},
		{City: "Solace", Product: "Copper", Price: 80, Trend: models.TrendDown, IsProductionCity: true, CreatedAt: base, UpdatedAt: base},
		{City: "Solace", Product: "Copper", Price: 85, Trend: models.TrendDown, CreatedAt: base, UpdatedAt: base},
		{City: "Solace", Product: "Iron Ore", Price: 150, Trend: models.TrendFlat, CreatedAt: base, UpdatedAt: base},
	}
	for i := range rows {
		require.NoError(t, db.GetDB().Create(&rows[i]).Error)
	}

	first, err := db.DedupeEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, DedupeResult{Scanned: 5, Removed: 2}, first)

	after, err := db.AllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, after, 3)

	second, err := db.DedupeEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, DedupeResult{Scanned: 3, Removed: 0}, second)

	again, err := db.AllEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, after, again)

	// equal timestamps: the higher id wins and keeps the production flag
	copper := again[1]
	assert.Equal(t, "Copper", copper.Product)
	assert.Equal(t, rows[3].ID, copper.ID)
	assert.True(t, copper.IsProductionCity)
}

func TestImportSurvivesFailedDedupe(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	// a row that cannot be scanned makes the full-table dedupe read fail
	require.NoError(t, db.GetDB().Exec(
		`INSERT INTO entries (city, product, price, trend, percent, is_production_city) VALUES ('Zenith', 'Junk', 'lots', 'up', 0, false)`,
	).Error)
	_, err := db.DedupeEntries(ctx)
	require.Error(t, err)

	stats, err := db.ImportEntries(ctx, []models.EntryFields{
		fields("Aurora", "Iron Ore", 120),
		fields("Solace", "Iron Ore", 150),
	})
	require.NoError(t, err)
	assert.Equal(t, ImportStats{Inserted: 2}, stats)

	entry, err := db.FindEntryByKey(ctx, "Solace", "Iron Ore")
	require.NoError(t, err)
	assert.Equal(t, 150.0, entry.Price)
}

func TestListEntriesFiltersAndTotals(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, f := range []models.EntryFields{
		fields("Aurora", "Iron Ore", 120),
		fields("Aurora", "Copper", 60),
		fields("Solace", "Iron Ore", 150),
		{City: "Solace", Product: "Grain", Price: 20, Trend: models.TrendDown, IsProductionCity: true},
	} {
		_, err := db.CreateEntry(ctx, f)
		require.NoError(t, err)
	}

	page, err := db.ListEntries(ctx, EntryFilters{Product: "iron", Sort: "price_asc"}, 1, 15)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 120.0, page.Items[0].Price)
	assert.Equal(t, PriceTotals{Entries: 2, Cities: 2, Products: 1}, page.Totals)

	page, err = db.ListEntries(ctx, EntryFilters{Production: "yes"}, 1, 15)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Grain", page.Items[0].Product)

	floor := 50.0
	page, err = db.ListEntries(ctx, EntryFilters{PriceMin: &floor, Sort: "price_desc"}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Pagination.Pages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 60.0, page.Items[0].Price)
}

func TestDistinctNames(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for _, f := range []models.EntryFields{
		fields("Solace", "Iron Ore", 150),
		fields("Aurora", "Iron Ore", 120),
		fields("Aurora", "Copper", 60),
	} {
		_, err := db.CreateEntry(ctx, f)
		require.NoError(t, err)
	}

	cities, err := db.DistinctCities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Aurora", "Solace"}, cities)

	products, err := db.DistinctProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Copper", "Iron Ore"}, products)
}

func TestRequestLifecycle(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	req, err := db.CreateRequest(ctx, fields("Aurora", "Iron Ore", 120), "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)

	pending, err := db.ListRequests(ctx, models.RequestPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	entry, err := db.ApproveRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aurora", entry.City)

	_, err = db.ApproveRequest(ctx, req.ID)
	assert.ErrorIs(t, err, ErrRequestClosed)

	other, err := db.CreateRequest(ctx, fields("Solace", "Iron Ore", 150), "")
	require.NoError(t, err)
	rejected, err := db.RejectRequest(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestRejected, rejected.Status)

	_, err = db.FindEntryByKey(ctx, "Solace", "Iron Ore")
	assert.ErrorIs(t, err, ErrNotFound)

	count, err := db.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNewPaginationWindow(t *testing.T) {
	p := NewPagination(10, 10, 200)
	assert.Equal(t, 20, p.Pages)
	assert.Equal(t, []int{7, 8, 9, 10, 11, 12, 13}, p.Window)
	require.NotNil(t, p.PrevPage)
	assert.Equal(t, 9, *p.PrevPage)

	p = NewPagination(5, 10, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, []int{1}, p.Window)
	assert.False(t, p.HasNext)
}
