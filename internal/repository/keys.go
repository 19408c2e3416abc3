package repository

// KV keys shared with other tooling that reads the same store.
const (
	KeyQuietFrom = "quiet.from"
	KeyQuietTo   = "quiet.to"
	KeyMaxPer2h  = "rate.maxPer2h"
	KeyHistory   = "history"
)
