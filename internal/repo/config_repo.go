// This file provides repository functions for ConfigEntry: the flat
// key-value table backing the configuration and rule store (§4.1). The
// store package is responsible for caching and default-resolution; this
// layer only does the SQL.
package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/forum-relay-bot/internal/domain"
)

// GetConfigEntry fetches a single row by key. Returns ErrNotFound if
// absent.
func GetConfigEntry(ctx context.Context, db *gorm.DB, key string) (*domain.ConfigEntry, error) {
	var e domain.ConfigEntry
	if err := db.WithContext(ctx).First(&e, "key = ?", key).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// ListConfigEntries loads every row in the table in one query, used by the
// store's cache-reload path (§4.1: "reload *all* config entries in a
// single query and cache the map").
func ListConfigEntries(ctx context.Context, db *gorm.DB) ([]domain.ConfigEntry, error) {
	var out []domain.ConfigEntry
	err := db.WithContext(ctx).Find(&out).Error
	return out, err
}

// UpsertConfigEntry writes key/value via INSERT OR REPLACE semantics, as
// required by §4.1. The store's cache invalidation runs at the call site,
// since that is process-scoped soft state this layer has no business
// touching.
func UpsertConfigEntry(ctx context.Context, db *gorm.DB, key, value string) error {
	e := &domain.ConfigEntry{Key: key, Value: value}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(e).Error
}

// DeleteConfigEntry removes a row by key. Deleting an absent key is not an
// error: `delete` is idempotent from the store's point of view.
func DeleteConfigEntry(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).Delete(&domain.ConfigEntry{}, "key = ?", key).Error
}
