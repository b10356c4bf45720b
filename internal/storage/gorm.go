package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StateEntry is the single-table schema backing the sqlite/postgres store.
type StateEntry struct {
	Key       string `gorm:"primaryKey;size:64"`
	Value     string
	UpdatedAt time.Time
}

func (StateEntry) TableName() string {
	return "state_entries"
}

// GormStore persists shopper state in a local database file (or postgres
// when so configured).
type GormStore struct {
	conn *gorm.DB
}

// NewGormStore migrates the state table and returns the store.
func NewGormStore(conn *gorm.DB) (*GormStore, error) {
	if conn == nil {
		return nil, fmt.Errorf("db connection required")
	}
	if err := conn.AutoMigrate(&StateEntry{}); err != nil {
		return nil, fmt.Errorf("migrating state table: %w", err)
	}
	return &GormStore{conn: conn}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entry StateEntry
	err := s.conn.WithContext(ctx).First(&entry, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return entry.Value, true, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	entry := StateEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return s.conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&entry).Error
}

func (s *GormStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.conn.WithContext(ctx).Delete(&StateEntry{}, "key IN ?", keys).Error
}
