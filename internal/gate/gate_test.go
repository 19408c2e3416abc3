package gate

import (
	"testing"
	"time"

	"github.com/kursadbilgin/reminder-engine/internal/domain"
)

func testPolicy() domain.Policy {
	return PolicyFromSettings(domain.Settings{
		QuietFrom: "22:00",
		QuietTo:   "08:00",
		MaxPer2h:  3,
	}, 30*time.Minute)
}

func at(t *testing.T, clock string) time.Time {
	t.Helper()

	parsed, err := time.ParseInLocation("2006-01-02 15:04", "2026-03-01 "+clock, time.UTC)
	if err != nil {
		t.Fatalf("time.ParseInLocation() error = %v", err)
	}
	return parsed
}

func TestEvaluateQuietHoursShortCircuits(t *testing.T) {
	t.Parallel()

	built := 0
	decision := Evaluate(at(t, "23:00"), testPolicy(), nil, func() domain.Reminder {
		built++
		return domain.Reminder{ID: "r1", DedupeKey: "k"}
	})

	if decision.Allowed {
		t.Fatal("expected deny inside quiet hours")
	}
	if decision.Reason != domain.ReasonQuietHours {
		t.Fatalf("reason = %s, want %s", decision.Reason, domain.ReasonQuietHours)
	}
	if built != 0 {
		t.Fatalf("build calls = %d, want 0", built)
	}
	if decision.Reminder != nil {
		t.Fatal("quiet hours deny should not carry a reminder")
	}
}

func TestEvaluateOutsideQuietHoursAllows(t *testing.T) {
	t.Parallel()

	decision := Evaluate(at(t, "21:00"), testPolicy(), nil, func() domain.Reminder {
		return domain.Reminder{ID: "r1", DedupeKey: "k", Title: "t"}
	})

	if !decision.Allowed {
		t.Fatalf("expected allow, got reason %s", decision.Reason)
	}
	if decision.Reminder == nil || decision.Reminder.ID != "r1" {
		t.Fatalf("reminder = %+v, want r1", decision.Reminder)
	}
}

func TestEvaluateRateLimitBeforeDedup(t *testing.T) {
	t.Parallel()

	now := at(t, "12:00")
	nowMs := now.UnixMilli()
	history := []domain.NotificationRecord{
		{ID: "a", DedupeKey: "other", Timestamp: nowMs - (90 * time.Minute).Milliseconds()},
		{ID: "b", DedupeKey: "other", Timestamp: nowMs - (60 * time.Minute).Milliseconds()},
		{ID: "c", DedupeKey: "other", Timestamp: nowMs - (45 * time.Minute).Milliseconds()},
	}

	built := 0
	decision := Evaluate(now, testPolicy(), history, func() domain.Reminder {
		built++
		return domain.Reminder{ID: "r1", DedupeKey: "k"}
	})

	if decision.Allowed {
		t.Fatal("expected deny when rate budget is exhausted")
	}
	if decision.Reason != domain.ReasonRateLimited {
		t.Fatalf("reason = %s, want %s", decision.Reason, domain.ReasonRateLimited)
	}
	if built != 0 {
		t.Fatalf("build calls = %d, want 0", built)
	}
}

func TestEvaluateDedupWithRateBudgetAvailable(t *testing.T) {
	t.Parallel()

	now := at(t, "12:00")
	history := []domain.NotificationRecord{
		{ID: "a", DedupeKey: "k", Timestamp: now.Add(-10 * time.Minute).UnixMilli()},
	}

	decision := Evaluate(now, testPolicy(), history, func() domain.Reminder {
		return domain.Reminder{ID: "r2", DedupeKey: "k"}
	})

	if decision.Allowed {
		t.Fatal("expected dedup deny")
	}
	if decision.Reason != domain.ReasonDeduped {
		t.Fatalf("reason = %s, want %s", decision.Reason, domain.ReasonDeduped)
	}
	if decision.Reminder == nil || decision.Reminder.ID != "r2" {
		t.Fatalf("dedup deny should carry the candidate, got %+v", decision.Reminder)
	}
}

func TestEvaluateExpiredDedupAllows(t *testing.T) {
	t.Parallel()

	now := at(t, "12:00")
	history := []domain.NotificationRecord{
		{ID: "a", DedupeKey: "k", Timestamp: now.Add(-31 * time.Minute).UnixMilli()},
	}

	decision := Evaluate(now, testPolicy(), history, func() domain.Reminder {
		return domain.Reminder{ID: "r3", DedupeKey: "k"}
	})

	if !decision.Allowed {
		t.Fatalf("expected allow, got reason %s", decision.Reason)
	}
}

func TestEvaluateUsesLocationOfNow(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+3", 3*60*60)
	// 20:00 UTC is 23:00 in loc, inside 22:00-08:00.
	now := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC).In(loc)

	decision := Evaluate(now, testPolicy(), nil, func() domain.Reminder {
		return domain.Reminder{ID: "r"}
	})
	if decision.Reason != domain.ReasonQuietHours {
		t.Fatalf("reason = %s, want %s", decision.Reason, domain.ReasonQuietHours)
	}
}

func TestPolicyFromSettings(t *testing.T) {
	t.Parallel()

	policy := PolicyFromSettings(domain.Settings{QuietFrom: "22:30", QuietTo: "bad", MaxPer2h: 5}, 15*time.Minute)

	if policy.Quiet.FromMinutes != 1350 {
		t.Fatalf("FromMinutes = %d, want 1350", policy.Quiet.FromMinutes)
	}
	if policy.Quiet.ToMinutes != 0 {
		t.Fatalf("ToMinutes = %d, want 0", policy.Quiet.ToMinutes)
	}
	if policy.Rate.WindowMs != 2*60*60*1000 {
		t.Fatalf("WindowMs = %d, want 7200000", policy.Rate.WindowMs)
	}
	if policy.Rate.MaxPerWindow != 5 {
		t.Fatalf("MaxPerWindow = %d, want 5", policy.Rate.MaxPerWindow)
	}
	if policy.Dedup.TTLMs != 15*60*1000 {
		t.Fatalf("TTLMs = %d, want 900000", policy.Dedup.TTLMs)
	}
}
