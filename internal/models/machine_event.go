package models

import "time"

// Machine event types.
const (
	EventPower       = "POWER"
	EventHarvest     = "HARVEST"
	EventLatch       = "LATCH"
	EventCalibration = "CALIBRATION"
	EventError       = "ERROR"
)

// MachineEvent is a single log entry.
type MachineEvent struct {
	EventID     string    `json:"event_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"` // POWER | HARVEST | LATCH | CALIBRATION | ERROR
	Description string    `json:"description"`
	Metadata    any       `json:"metadata,omitempty"`
}
