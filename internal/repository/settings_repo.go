package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
	"github.com/kursadbilgin/reminder-engine/internal/kv"
	"go.uber.org/zap"
)

type SettingsRepository interface {
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, settings domain.Settings) error
}

// KVSettingsRepo reads each setting from its own key and falls back to the
// configured default per key. A value that is missing or cannot be decoded
// keeps the default; only store failures are returned.
type KVSettingsRepo struct {
	store    kv.Store
	defaults domain.Settings
	logger   *zap.Logger
}

func NewKVSettingsRepo(store kv.Store, defaults domain.Settings, logger *zap.Logger) *KVSettingsRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KVSettingsRepo{store: store, defaults: defaults, logger: logger}
}

func (r *KVSettingsRepo) Get(ctx context.Context) (domain.Settings, error) {
	settings := r.defaults

	if err := getOrDefault(ctx, r, KeyQuietFrom, &settings.QuietFrom); err != nil {
		return domain.Settings{}, err
	}
	if err := getOrDefault(ctx, r, KeyQuietTo, &settings.QuietTo); err != nil {
		return domain.Settings{}, err
	}

	maxPer2h := lenientInt(settings.MaxPer2h)
	if err := getOrDefault(ctx, r, KeyMaxPer2h, &maxPer2h); err != nil {
		return domain.Settings{}, err
	}
	settings.MaxPer2h = int(maxPer2h)

	return settings, nil
}

func (r *KVSettingsRepo) Update(ctx context.Context, settings domain.Settings) error {
	values := []struct {
		key   string
		value any
	}{
		{key: KeyQuietFrom, value: settings.QuietFrom},
		{key: KeyQuietTo, value: settings.QuietTo},
		{key: KeyMaxPer2h, value: settings.MaxPer2h},
	}

	for _, v := range values {
		if err := r.store.Set(ctx, v.key, v.value); err != nil {
			return fmt.Errorf("failed to store setting %q: %w", v.key, err)
		}
	}
	return nil
}

// getOrDefault leaves dest untouched when the key is missing or malformed.
func getOrDefault[T any](ctx context.Context, r *KVSettingsRepo, key string, dest *T) error {
	var value T
	err := r.store.Get(ctx, key, &value)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return nil
	case errors.Is(err, kv.ErrMalformed):
		r.logger.Warn("ignoring malformed setting, using default",
			zap.String("key", key),
			zap.Error(err),
		)
		return nil
	case err != nil:
		return fmt.Errorf("failed to load setting %q: %w", key, err)
	}

	*dest = value
	return nil
}

// lenientInt decodes a JSON number or a numeric string, truncating fractions.
type lenientInt int

func (n *lenientInt) UnmarshalJSON(data []byte) error {
	var number float64
	if err := json.Unmarshal(data, &number); err == nil {
		return n.set(number)
	}

	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("expected number or numeric string, got %s", data)
	}
	number, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return fmt.Errorf("expected numeric string, got %q", text)
	}
	return n.set(number)
}

func (n *lenientInt) set(number float64) error {
	if math.IsNaN(number) || math.IsInf(number, 0) || math.Abs(number) > math.MaxInt32 {
		return fmt.Errorf("number %v out of range", number)
	}
	*n = lenientInt(int(number))
	return nil
}
