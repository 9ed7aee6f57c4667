package repository

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"greencure/internal/models"
)

var eventCols = []string{"id", "occurred_at", "type", "message", "meta"}

func TestEventSQLite_Append_FillsDefaults(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "HARVEST", "harvest mode on", `{"origin":"remote"}`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(testCtx(t), models.MachineEvent{
		Type:        "  harvest ",
		Description: "harvest mode on",
		Metadata:    map[string]any{"origin": "remote"},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestEventSQLite_Append_KeepsGivenIDAndTime(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	at := time.Date(2026, 6, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	mock.ExpectExec(regexp.QuoteMeta(insertEventSQL)).
		WithArgs("evt-1", "2026-06-01 09:00:00", "POWER", "power on", nil).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Append(testCtx(t), models.MachineEvent{EventID: "evt-1", OccurredAt: at, Type: models.EventPower, Description: "power on"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func TestEventSQLite_Append_DBError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	mock.ExpectExec("INSERT INTO machine_events").WillReturnError(errors.New("down"))

	err := repo.Append(testCtx(t), models.MachineEvent{Type: "error", Description: "x"})
	if err == nil || !strings.Contains(err.Error(), "down") {
		t.Fatalf("expected error, got %v", err)
	}
}

func TestEventSQLite_List_NoFilters_ParsesMetadata(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	js, _ := json.Marshal(map[string]any{"latch": "harvest_ready"})

	rows := sqlmock.NewRows(eventCols).
		AddRow("1", now, "LATCH", "m1", string(js)).
		AddRow("2", now.Add(time.Hour), "ERROR", "m2", nil).
		AddRow("3", now.Add(2*time.Hour), "ERROR", "m3", "{broken")

	mock.ExpectQuery(regexp.QuoteMeta(selectEventSQL + " ORDER BY occurred_at ASC")).
		WillReturnRows(rows)

	got, err := repo.List(testCtx(t), time.Time{}, time.Time{}, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3, got %d", len(got))
	}
	b, _ := json.Marshal(got[0].Metadata)
	if string(b) != string(js) {
		t.Fatalf("metadata mismatch: %s vs %s", b, js)
	}
	if got[1].Metadata != nil {
		t.Fatalf("expected nil meta, got %#v", got[1].Metadata)
	}
	if got[2].Metadata != "{broken" {
		t.Fatalf("expected raw meta kept, got %#v", got[2].Metadata)
	}
}

func TestEventSQLite_List_WithFilters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	from := time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
	to := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows(eventCols).
		AddRow("2", from, "POWER", "b", nil).
		AddRow("3", to, "POWER", "c", nil)

	mock.ExpectQuery(regexp.QuoteMeta(selectEventSQL+" WHERE occurred_at >= ? AND occurred_at <= ? AND type = ? ORDER BY occurred_at ASC")).
		WithArgs("2025-01-01 11:00:00", "2025-01-01 12:00:00", "POWER").
		WillReturnRows(rows)

	got, err := repo.List(testCtx(t), from, to, " power ")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].EventID != "2" || got[1].EventID != "3" {
		t.Fatalf("unexpected results: %+v", got)
	}
}

func TestEventSQLite_List_ScanError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewEventSQLite(db)

	rows := sqlmock.NewRows(eventCols).AddRow("x", 123, "POWER", "msg", nil)
	mock.ExpectQuery(regexp.QuoteMeta(selectEventSQL)).WillReturnRows(rows)

	if _, err := repo.List(testCtx(t), time.Time{}, time.Time{}, ""); err == nil {
		t.Fatalf("expected scan error")
	}
}
