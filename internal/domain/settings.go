package domain

import (
	"fmt"
	"strings"
	"time"
)

// Settings is the user-editable configuration persisted in the KV store.
type Settings struct {
	QuietFrom string `json:"quietFrom"`
	QuietTo   string `json:"quietTo"`
	MaxPer2h  int    `json:"maxPer2h"`
}

// ValidateClock checks the strict 24h HH:MM form accepted from users.
func ValidateClock(value string) error {
	trimmed := strings.TrimSpace(value)
	if _, err := time.Parse("15:04", trimmed); err != nil || len(trimmed) != 5 {
		return fmt.Errorf("%w: invalid time %q, want HH:MM", ErrValidation, value)
	}
	return nil
}

func (s Settings) Validate() error {
	if err := ValidateClock(s.QuietFrom); err != nil {
		return err
	}
	if err := ValidateClock(s.QuietTo); err != nil {
		return err
	}
	if s.MaxPer2h < 0 {
		return fmt.Errorf("%w: maxPer2h must be >= 0", ErrValidation)
	}
	return nil
}
