package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"greencure/internal/models"
)

type TelemetrySQLite struct {
	db *sql.DB
}

func NewTelemetrySQLite(db *sql.DB) *TelemetrySQLite { return &TelemetrySQLite{db: db} }

const (
	insertTelemetrySQL = `INSERT INTO telemetry (temperature, humidity, moisture, nitrogen, phosphorus, potassium, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	selectTelemetrySQL = `SELECT temperature, humidity, moisture, nitrogen, phosphorus, potassium, created_at FROM telemetry`

	defaultTelemetryLimit = 500
)

// Append stores one validated reading.
func (r *TelemetrySQLite) Append(ctx context.Context, rd models.SensorReading) error {
	if !rd.Valid() {
		return fmt.Errorf("refusing to store non-finite reading")
	}
	created := rd.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, insertTelemetrySQL,
		rd.Temperature,
		rd.Humidity,
		rd.Moisture,
		rd.Nitrogen,
		rd.Phosphorus,
		rd.Potassium,
		formatTS(created),
	)
	return err
}

// List returns the newest readings within [from, to], newest first.
// A non-positive limit falls back to defaultTelemetryLimit.
func (r *TelemetrySQLite) List(ctx context.Context, from, to time.Time, limit int) ([]models.SensorReading, error) {
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, formatTS(from))
	}
	if !to.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, formatTS(to))
	}
	if limit <= 0 {
		limit = defaultTelemetryLimit
	}

	q := selectTelemetrySQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.SensorReading, 0, 64)
	for rows.Next() {
		var rd models.SensorReading
		if err := rows.Scan(&rd.Temperature, &rd.Humidity, &rd.Moisture,
			&rd.Nitrogen, &rd.Phosphorus, &rd.Potassium, &rd.CreatedAt); err != nil {
			return nil, err
		}
		rd.CreatedAt = rd.CreatedAt.UTC()
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
