package models

import "time"

// MachineState is a snapshot of the enclosure's shared state.
type MachineState struct {
	Power        bool      `json:"power"`
	HarvestMode  bool      `json:"harvest_mode"`
	NPKFailed    bool      `json:"npk_failed"`
	HarvestReady bool      `json:"harvest_ready"`
	LastStart    time.Time `json:"last_start"`

	// Actuators is filled in by the monitoring view; the state machine
	// does not own actuator state.
	Actuators ActuatorStates `json:"actuators"`

	// Version increases with every mutation.
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActuatorStates reflects the last acknowledged command for each actuator.
type ActuatorStates struct {
	FanOn     bool `json:"fan_on"`
	PumpOn    bool `json:"pump_on"`
	HatchOpen bool `json:"hatch_open"`
	StepperOn bool `json:"stepper_on"`
	DCMotorOn bool `json:"dc_motor_on"`
}

// StateDocument is the remote mirror of MachineState.
type StateDocument struct {
	Power   bool      `json:"power"`
	Harvest bool      `json:"harvest"`
	Failed  bool      `json:"failed"`
	Ready   bool      `json:"ready"`
	Started time.Time `json:"started"`
	Version uint64    `json:"version"`
}

// Document converts the snapshot into its remote representation.
func (s MachineState) Document() StateDocument {
	return StateDocument{
		Power:   s.Power,
		Harvest: s.HarvestMode,
		Failed:  s.NPKFailed,
		Ready:   s.HarvestReady,
		Started: s.LastStart.UTC(),
		Version: s.Version,
	}
}
