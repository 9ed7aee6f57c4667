package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"greencure/internal/models"
	"greencure/internal/service"
)

func TestTelemetryHandler(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tel := &mockTelemetry{resp: []models.SensorReading{
		{Temperature: 31, Moisture: 40, CreatedAt: now},
		{Temperature: 29, Moisture: 55, CreatedAt: now.Add(-5 * time.Second)},
	}}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Telemetry: tel})

	w := doAuthed(r, http.MethodGet, "/api/v1/telemetry?from=2024-06-01&limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", w.Code, w.Body.String())
	}
	var out struct {
		Count    int                    `json:"count"`
		Readings []models.SensorReading `json:"readings"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Count != 2 || out.Readings[0].Temperature != 31 {
		t.Fatalf("unexpected body %+v", out)
	}
	if tel.last.Limit != 2 || !tel.last.From.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) || !tel.last.To.IsZero() {
		t.Fatalf("unexpected filter %+v", tel.last)
	}
}

func TestTelemetryHandler_DefaultLimit(t *testing.T) {
	tel := &mockTelemetry{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Telemetry: tel})

	if w := doAuthed(r, http.MethodGet, "/api/v1/telemetry"); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if tel.last.Limit != 0 {
		t.Fatalf("expected store default limit, got %d", tel.last.Limit)
	}
}

func TestTelemetryHandler_Validation(t *testing.T) {
	tel := &mockTelemetry{}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Telemetry: tel})

	for _, q := range []string{"limit=0", "limit=-3", "limit=abc", "limit=5001", "to=bogus"} {
		if w := doAuthed(r, http.MethodGet, "/api/v1/telemetry?"+q); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestTelemetryHandler_ServiceError(t *testing.T) {
	tel := &mockTelemetry{err: errors.New("db down")}
	r := newTestRouter(&service.Service{Authorization: &mockAuth{}, Telemetry: tel})
	if w := doAuthed(r, http.MethodGet, "/api/v1/telemetry"); w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
