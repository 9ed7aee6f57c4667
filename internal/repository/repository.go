package repository

import (
	"context"
	"database/sql"
	"time"

	"greencure/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

// Recipients lists the identifiers notifications are addressed to.
type Recipients interface {
	Usernames(ctx context.Context) ([]string, error)
}

type StateRepo interface {
	Save(ctx context.Context, s models.MachineState) error
	Load(ctx context.Context) (models.MachineState, error)
}

type TelemetryRepo interface {
	Append(ctx context.Context, r models.SensorReading) error
	List(ctx context.Context, from, to time.Time, limit int) ([]models.SensorReading, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.MachineEvent) error
	List(ctx context.Context, from, to time.Time, typ string) ([]models.MachineEvent, error)
}

type Repository struct {
	StateRepo     StateRepo
	TelemetryRepo TelemetryRepo
	EventRepo     EventRepo
	Auth          *UserRepository
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo:     NewStateSQLite(db),
		TelemetryRepo: NewTelemetrySQLite(db),
		EventRepo:     NewEventSQLite(db),
		Auth:          NewUserRepository(db),
	}
}

// timestampLayout is how timestamps are written to TIMESTAMP columns.
const timestampLayout = "2006-01-02 15:04:05"

func formatTS(t time.Time) string { return t.UTC().Format(timestampLayout) }
