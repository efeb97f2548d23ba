// Package store persists provider configurations and generation history.
// The relational stores run on GORM; a Redis-backed history store is
// available as an alternative backend.
package store

import "gorm.io/gorm"

// AutoMigrate creates or updates the schema for every store model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ProviderConfig{}, &HistoryRecord{})
}
