package postgresql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/reminder-engine/internal/kv"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ kv.Store = (*KVStore)(nil)

// KVEntryModel is the persistence model for the kv_entries table.
type KVEntryModel struct {
	Key       string `gorm:"type:varchar(255);primaryKey"`
	Value     string `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time
}

func (KVEntryModel) TableName() string {
	return "kv_entries"
}

// KVStore keeps JSON values in postgres, one row per key.
type KVStore struct {
	db *gorm.DB
}

func NewKVStore(db *gorm.DB) (*KVStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db is required")
	}
	return &KVStore{db: db}, nil
}

func (s *KVStore) Get(ctx context.Context, key string, dest any) error {
	var model KVEntryModel
	err := s.db.WithContext(ctx).First(&model, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return kv.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get key %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(model.Value), dest); err != nil {
		return fmt.Errorf("failed to decode value for key %q: %w: %w", key, kv.ErrMalformed, err)
	}
	return nil
}

func (s *KVStore) Set(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for key %q: %w", key, err)
	}

	model := KVEntryModel{
		Key:       key,
		Value:     string(raw),
		UpdatedAt: time.Now().UTC(),
	}

	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&model).Error
	if err != nil {
		return fmt.Errorf("failed to set key %q: %w", key, err)
	}
	return nil
}

func (s *KVStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *KVStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
