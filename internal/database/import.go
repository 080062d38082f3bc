package database

import (
	"context"

	"github.com/sirupsen/logrus"

	"traderesonance/server/internal/models"
)

type ImportStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	Removed  int `json:"removed"`
}

// ImportEntries upserts each row on its own. A failing row is logged and
// counted as skipped; rows written before it stay written. The dedup pass
// runs once at the end and its failure only logs.
func (d *Database) ImportEntries(ctx context.Context, rows []models.EntryFields) (ImportStats, error) {
	var stats ImportStats
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		_, inserted, err := d.UpsertEntry(ctx, row)
		if err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"row":     i + 1,
				"city":    row.City,
				"product": row.Product,
			}).Warn("Failed to import row")
			stats.Skipped++
			continue
		}
		if inserted {
			stats.Inserted++
		} else {
			stats.Updated++
		}
	}

	// rows are already written; the unique index still guards the table
	result, err := d.DedupeEntries(ctx)
	if err != nil {
		d.logger.WithError(err).Warn("Failed to dedupe entries after import")
		return stats, nil
	}
	stats.Removed = result.Removed
	return stats, nil
}
