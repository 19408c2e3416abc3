// Package gate decides whether a reminder may be emitted. Every function is
// pure: callers pass the current time, the policy and the history, and own
// any persistence of the result.
package gate

import (
	"math"
	"strconv"
	"strings"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
)

// IsInQuietHours reports whether currentMinutes falls in [from, to).
// Windows with from > to wrap midnight; from == to is quiet all day.
func IsInQuietHours(currentMinutes, fromMinutes, toMinutes int) bool {
	if fromMinutes == toMinutes {
		return true
	}
	if fromMinutes < toMinutes {
		return currentMinutes >= fromMinutes && currentMinutes < toMinutes
	}
	return currentMinutes >= fromMinutes || currentMinutes < toMinutes
}

// HHMMToMinutes converts "HH:MM" to minutes since midnight. Components that
// are missing or not finite numbers count as zero and the result is not
// clamped, so "25:99" yields 1599.
func HHMMToMinutes(text string) int {
	parts := strings.Split(text, ":")

	hours := parseComponent(parts, 0)
	minutes := parseComponent(parts, 1)

	return int(hours*60 + minutes)
}

func parseComponent(parts []string, idx int) float64 {
	if idx >= len(parts) {
		return 0
	}

	value := strings.TrimSpace(parts[idx])
	if value == "" {
		return 0
	}

	if base, digits, ok := integerPrefix(value); ok {
		parsed, err := strconv.ParseUint(digits, base, 64)
		if err != nil {
			return 0
		}
		return float64(parsed)
	}
	// Hex floats, signed hex and digit separators are not numbers here.
	if strings.ContainsAny(value, "xX_") {
		return 0
	}

	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

// integerPrefix recognizes unsigned 0x, 0o and 0b integer literals.
func integerPrefix(value string) (int, string, bool) {
	if len(value) < 3 || value[0] != '0' {
		return 0, "", false
	}
	switch value[1] {
	case 'x', 'X':
		return 16, value[2:], true
	case 'o', 'O':
		return 8, value[2:], true
	case 'b', 'B':
		return 2, value[2:], true
	}
	return 0, "", false
}

// IsRateLimited reports whether one more notification would exceed maxAllowed
// within the trailing window. It must be checked before recording.
func IsRateLimited(nowMs int64, history []domain.NotificationRecord, windowMs int64, maxAllowed int) bool {
	cutoff := nowMs - windowMs

	recent := 0
	for _, record := range history {
		if record.Timestamp >= cutoff {
			recent++
		}
	}

	return recent >= maxAllowed
}

// IsDeduped reports whether a record with dedupeKey was delivered within ttlMs.
// An empty key never dedupes.
func IsDeduped(nowMs int64, history []domain.NotificationRecord, dedupeKey string, ttlMs int64) bool {
	if dedupeKey == "" {
		return false
	}

	cutoff := nowMs - ttlMs
	for _, record := range history {
		if record.Timestamp >= cutoff && record.DedupeKey == dedupeKey {
			return true
		}
	}

	return false
}

// RecordNotification returns a new history with the record appended, keeping
// only the newest maxRecords entries. The input slice is not modified.
func RecordNotification(
	history []domain.NotificationRecord,
	id string,
	dedupeKey string,
	nowMs int64,
	maxRecords int,
) []domain.NotificationRecord {
	next := make([]domain.NotificationRecord, 0, len(history)+1)
	next = append(next, history...)
	next = append(next, domain.NotificationRecord{
		ID:        id,
		DedupeKey: dedupeKey,
		Timestamp: nowMs,
	})

	if len(next) <= maxRecords {
		return next
	}

	if maxRecords <= 0 {
		return []domain.NotificationRecord{}
	}

	return next[len(next)-maxRecords:]
}
