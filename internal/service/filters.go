package service

import "time"

// LogFilter supports history filtering by time range and type.
type LogFilter struct {
	From time.Time // inclusive; zero means no lower bound
	To   time.Time // inclusive; zero means no upper bound
	Type string    // "", "POWER", "HARVEST", "LATCH", "CALIBRATION", "ERROR"
}

// TelemetryFilter selects persisted readings, newest first.
type TelemetryFilter struct {
	From  time.Time
	To    time.Time
	Limit int // zero means the store default
}
