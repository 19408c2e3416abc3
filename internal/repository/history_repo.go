package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/kv"
)

type HistoryRepository interface {
	Load(ctx context.Context) ([]domain.NotificationRecord, error)
	Save(ctx context.Context, history []domain.NotificationRecord) error
}

type KVHistoryRepo struct {
	store kv.Store
}

func NewKVHistoryRepo(store kv.Store) *KVHistoryRepo {
	return &KVHistoryRepo{store: store}
}

// Load returns an empty history when nothing has been stored yet.
func (r *KVHistoryRepo) Load(ctx context.Context) ([]domain.NotificationRecord, error) {
	var history []domain.NotificationRecord
	err := r.store.Get(ctx, KeyHistory, &history)
	if errors.Is(err, kv.ErrNotFound) {
		return []domain.NotificationRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	if history == nil {
		history = []domain.NotificationRecord{}
	}
	return history, nil
}

func (r *KVHistoryRepo) Save(ctx context.Context, history []domain.NotificationRecord) error {
	if history == nil {
		history = []domain.NotificationRecord{}
	}
	if err := r.store.Set(ctx, KeyHistory, history); err != nil {
		return fmt.Errorf("failed to save history: %w", err)
	}
	return nil
}
