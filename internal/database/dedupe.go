package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"

	"traderesonance/server/internal/models"
)

// deleteChunk bounds the size of the IN list of a single DELETE
const deleteChunk = 500

type DedupeResult struct {
	Scanned int `json:"scanned"`
	Removed int `json:"removed"`
}

// dedupePlan is the outcome of planDedupe: rows to delete and surviving rows
// whose production flag must be raised because a removed duplicate had it.
type dedupePlan struct {
	remove  []uint
	promote []uint
}

// planDedupe groups entries by trimmed (city, product) and keeps the most
// recently touched row of each group, highest id winning ties.
func planDedupe(entries []models.Entry) dedupePlan {
	sorted := make([]models.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		ka, kb := dedupeKey(&a), dedupeKey(&b)
		if ka != kb {
			if ka.City != kb.City {
				return ka.City < kb.City
			}
			return ka.Product < kb.Product
		}
		ta, tb := a.Timestamp(), b.Timestamp()
		if !ta.Equal(tb) {
			return ta.After(tb)
		}
		return a.ID > b.ID
	})

	var plan dedupePlan
	var keeper *models.Entry
	promoted := false
	for i := range sorted {
		e := &sorted[i]
		if keeper == nil || dedupeKey(keeper) != dedupeKey(e) {
			keeper = e
			promoted = false
			continue
		}
		if e.IsProductionCity && !keeper.IsProductionCity && !promoted {
			plan.promote = append(plan.promote, keeper.ID)
			promoted = true
		}
		plan.remove = append(plan.remove, e.ID)
	}
	return plan
}

func dedupeKey(e *models.Entry) models.EntryKey {
	return models.EntryKey{
		City:    strings.TrimSpace(e.City),
		Product: strings.TrimSpace(e.Product),
	}
}

// DedupeEntries collapses rows sharing a (city, product) key down to the most
// recent one. Running it again right away removes nothing.
func (d *Database) DedupeEntries(ctx context.Context) (DedupeResult, error) {
	var entries []models.Entry
	if err := d.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return DedupeResult{}, fmt.Errorf("failed to load entries: %w", err)
	}

	plan := planDedupe(entries)
	result := DedupeResult{Scanned: len(entries), Removed: len(plan.remove)}
	if len(plan.remove) == 0 {
		return result, nil
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(plan.promote) > 0 {
			err := tx.Model(&models.Entry{}).
				Where("id IN ?", plan.promote).
				UpdateColumn("is_production_city", true).Error
			if err != nil {
				return fmt.Errorf("failed to merge production flags: %w", err)
			}
		}
		for start := 0; start < len(plan.remove); start += deleteChunk {
			end := start + deleteChunk
			if end > len(plan.remove) {
				end = len(plan.remove)
			}
			if err := tx.Delete(&models.Entry{}, plan.remove[start:end]).Error; err != nil {
				return fmt.Errorf("failed to delete duplicates: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return DedupeResult{}, err
	}

	d.logger.WithField("removed", result.Removed).Info("Removed duplicate entries")
	return result, nil
}
