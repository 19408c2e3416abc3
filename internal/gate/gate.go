package gate

import (
	"time"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
)

// Evaluate runs quiet hours, rate limit and dedup in that order. build is
// only called once quiet hours and rate limit have passed.
func Evaluate(
	now time.Time,
	policy domain.Policy,
	history []domain.NotificationRecord,
	build func() domain.Reminder,
) domain.Decision {
	if IsInQuietHours(MinutesOfDay(now), policy.Quiet.FromMinutes, policy.Quiet.ToMinutes) {
		return domain.Deny(domain.ReasonQuietHours, nil)
	}

	nowMs := now.UnixMilli()
	if IsRateLimited(nowMs, history, policy.Rate.WindowMs, policy.Rate.MaxPerWindow) {
		return domain.Deny(domain.ReasonRateLimited, nil)
	}

	candidate := build()
	if IsDeduped(nowMs, history, candidate.DedupeKey, policy.Dedup.TTLMs) {
		return domain.Deny(domain.ReasonDeduped, &candidate)
	}

	return domain.Allow(candidate)
}

// MinutesOfDay returns minutes since midnight in t's location.
func MinutesOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// PolicyFromSettings converts persisted settings into gate inputs. Stored
// clock values go through the lenient parser.
func PolicyFromSettings(settings domain.Settings, dedupTTL time.Duration) domain.Policy {
	return domain.Policy{
		Quiet: domain.QuietWindow{
			FromMinutes: HHMMToMinutes(settings.QuietFrom),
			ToMinutes:   HHMMToMinutes(settings.QuietTo),
		},
		Rate: domain.RatePolicy{
			WindowMs:     domain.RateWindow.Milliseconds(),
			MaxPerWindow: settings.MaxPer2h,
		},
		Dedup: domain.DedupPolicy{
			TTLMs: dedupTTL.Milliseconds(),
		},
	}
}
