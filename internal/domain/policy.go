package domain

import "time"

// RateWindow is the fixed trailing window used by the persisted rate setting.
const RateWindow = 2 * time.Hour

// QuietWindow is a recurring daily interval in minutes since local midnight.
// From > To wraps midnight; From == To covers the whole day.
type QuietWindow struct {
	FromMinutes int
	ToMinutes   int
}

type RatePolicy struct {
	WindowMs     int64
	MaxPerWindow int
}

type DedupPolicy struct {
	TTLMs int64
}

// Policy bundles the three gating rules for one evaluation.
type Policy struct {
	Quiet QuietWindow
	Rate  RatePolicy
	Dedup DedupPolicy
}
