package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"traderesonance/server/internal/models"
)

var secondaryIndexes = []struct {
	name    string
	columns string
}{
	{"ix_entries_product_updated", "product, updated_at"},
	{"ix_entries_city_updated", "city, updated_at"},
}

// RunMigrations brings the schema up to date. Tables created before the
// (city, product) unique index existed may hold duplicates, so those are
// collapsed before the index is built.
func (d *Database) RunMigrations(ctx context.Context) error {
	if d.db.Migrator().HasTable(&models.Entry{}) {
		if _, err := d.DedupeEntries(ctx); err != nil {
			return fmt.Errorf("failed to dedupe legacy entries: %w", err)
		}
	}

	if err := d.db.WithContext(ctx).AutoMigrate(&models.Entry{}, &models.EntryRequest{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	for _, idx := range secondaryIndexes {
		stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON entries (%s)", idx.name, idx.columns)
		if err := d.db.WithContext(ctx).Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	result, err := d.DedupeEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to run startup dedupe: %w", err)
	}
	d.logger.WithFields(logrus.Fields{
		"scanned": result.Scanned,
		"removed": result.Removed,
	}).Info("Startup dedupe finished")

	return nil
}
