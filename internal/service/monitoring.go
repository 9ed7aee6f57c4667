package service

import (
	"context"

	"greencure/internal/models"
)

// ActuatorReader exposes the last acknowledged actuator states.
type ActuatorReader interface {
	States() models.ActuatorStates
}

type MonitoringService struct {
	machine *Machine
	act     ActuatorReader
}

func NewMonitoringService(machine *Machine, act ActuatorReader) *MonitoringService {
	return &MonitoringService{machine: machine, act: act}
}

// GetState returns the live machine snapshot with actuator states filled in.
func (s *MonitoringService) GetState(ctx context.Context) (models.MachineState, error) {
	if err := ctx.Err(); err != nil {
		return models.MachineState{}, err
	}
	st := s.machine.Snapshot()
	if s.act != nil {
		st.Actuators = s.act.States()
	}
	st.LastStart = normalizeToUTC(st.LastStart)
	st.UpdatedAt = normalizeToUTC(st.UpdatedAt)
	return st, nil
}

// OverrideService applies manual overrides coming from the HTTP API.
type OverrideService struct {
	machine *Machine
}

func NewOverrideService(machine *Machine) *OverrideService {
	return &OverrideService{machine: machine}
}

// ToggleHarvest flips harvest mode. It fails with ErrInvalidTransition
// while the machine is unpowered.
func (s *OverrideService) ToggleHarvest(ctx context.Context) (models.MachineState, error) {
	if err := ctx.Err(); err != nil {
		return models.MachineState{}, err
	}
	return s.machine.ToggleHarvestMode(OriginAPI)
}
