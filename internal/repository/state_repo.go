package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"greencure/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	machineStateRowID = 1

	upsertStateSQL = `
		INSERT INTO machine_state (id, power, harvest, failed, ready, started, version, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			power=excluded.power,
			harvest=excluded.harvest,
			failed=excluded.failed,
			ready=excluded.ready,
			started=excluded.started,
			version=excluded.version,
			updated_at=excluded.updated_at
		WHERE excluded.version >= machine_state.version
	`

	selectStateSQL = `
		SELECT power, harvest, failed, ready, started, version, updated_at
		FROM machine_state WHERE id=?
	`
)

// Save upserts the single machine_state row. A row carrying a newer
// version than s is left untouched.
func (r *StateSQLite) Save(ctx context.Context, s models.MachineState) error {
	updated := s.UpdatedAt
	if updated.IsZero() {
		updated = time.Now()
	}
	var started sql.NullString
	if !s.LastStart.IsZero() {
		started = sql.NullString{String: formatTS(s.LastStart), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, upsertStateSQL,
		machineStateRowID,
		s.Power,
		s.HarvestMode,
		s.NPKFailed,
		s.HarvestReady,
		started,
		int64(s.Version),
		formatTS(updated),
	)
	return err
}

// Load returns the persisted state, or the zero value when none exists.
func (r *StateSQLite) Load(ctx context.Context) (models.MachineState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, machineStateRowID)

	var (
		s       models.MachineState
		started sql.NullTime
		version int64
	)
	if err := row.Scan(
		&s.Power,
		&s.HarvestMode,
		&s.NPKFailed,
		&s.HarvestReady,
		&started,
		&version,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.MachineState{}, nil
		}
		return models.MachineState{}, err
	}
	if started.Valid {
		s.LastStart = started.Time.UTC()
	}
	s.Version = uint64(version)
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}
