package service

import (
	"context"

	"greencure/internal/models"
	"greencure/internal/repository"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Override exposes manual control of the machine.
type Override interface {
	ToggleHarvest(ctx context.Context) (models.MachineState, error)
}

// Monitoring exposes the live machine state.
type Monitoring interface {
	GetState(ctx context.Context) (models.MachineState, error)
}

// EventLog exposes the append-only machine event log.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.MachineEvent, error)
}

// TelemetryLog exposes persisted sensor readings.
type TelemetryLog interface {
	List(ctx context.Context, f TelemetryFilter) ([]models.SensorReading, error)
}

// Service aggregates the sub-services the HTTP layer depends on.
type Service struct {
	Override
	Monitoring
	EventLog
	Telemetry TelemetryLog
	Authorization
}

func NewService(repos *repository.Repository, machine *Machine, act ActuatorReader, auth *AuthService) *Service {
	return &Service{
		Override:      NewOverrideService(machine),
		Monitoring:    NewMonitoringService(machine, act),
		EventLog:      NewEventLogService(repos.EventRepo),
		Telemetry:     NewTelemetryService(repos.TelemetryRepo),
		Authorization: auth,
	}
}
