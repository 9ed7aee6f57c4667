package service

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"greencure/internal/logger"
	"greencure/internal/models"
)

// ErrInvalidTransition is returned when a mutation would break a state
// invariant: toggling harvest mode while unpowered, clearing a latch, or
// rewinding the start time of an unpowered machine.
var ErrInvalidTransition = errors.New("invalid state transition")

// Trigger origins recorded with harvest toggles.
const (
	OriginRemote = "remote"
	OriginAPI    = "api"
)

// StateSink receives every snapshot and event the machine produces.
// Implementations must not block; they are called with the state lock held
// so snapshots arrive in version order.
type StateSink interface {
	PushState(s models.MachineState)
	RecordEvent(e models.MachineEvent)
}

type nopSink struct{}

func (nopSink) PushState(models.MachineState)   {}
func (nopSink) RecordEvent(models.MachineEvent) {}

// Machine owns the enclosure's shared state. Every entry point runs under
// one mutex, so the loop, the button and the remote trigger can call in
// concurrently without tearing the record.
type Machine struct {
	log  *logger.Logger
	sink StateSink
	now  func() time.Time

	mu           sync.Mutex
	power        bool
	harvest      bool
	npkFailed    bool
	harvestReady bool
	lastStart    time.Time
	// powerEdge is set when power goes on and consumed by RecordPowerOnIfNeeded.
	powerEdge bool
	version   uint64
	updatedAt time.Time
}

// NewMachine returns an unpowered machine. A nil sink discards output.
func NewMachine(log *logger.Logger, sink StateSink) *Machine {
	if sink == nil {
		sink = nopSink{}
	}
	return &Machine{
		log:  log.Named("machine"),
		sink: sink,
		now:  time.Now,
	}
}

// SeedVersion continues version numbering from a previously persisted
// snapshot so mirrors that keep the newest version accept new output.
func (m *Machine) SeedVersion(v uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v > m.version {
		m.version = v
	}
}

// Snapshot returns a consistent copy of the state.
func (m *Machine) Snapshot() models.MachineState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() models.MachineState {
	return models.MachineState{
		Power:        m.power,
		HarvestMode:  m.harvest,
		NPKFailed:    m.npkFailed,
		HarvestReady: m.harvestReady,
		LastStart:    m.lastStart,
		Version:      m.version,
		UpdatedAt:    m.updatedAt,
	}
}

// commitLocked bumps the version and hands the snapshot and its event to
// the sink.
func (m *Machine) commitLocked(typ, description string, meta map[string]any) models.MachineState {
	now := m.now().UTC()
	m.version++
	m.updatedAt = now
	s := m.snapshotLocked()

	if meta == nil {
		meta = map[string]any{}
	}
	meta["version"] = s.Version
	m.sink.PushState(s)
	m.sink.RecordEvent(models.MachineEvent{
		EventID:     uuid.NewString(),
		OccurredAt:  now,
		Type:        typ,
		Description: description,
		Metadata:    meta,
	})
	return s
}

// TogglePower flips power. Turning power off also clears harvest mode.
func (m *Machine) TogglePower() models.MachineState {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.power = !m.power
	desc := "power on"
	if m.power {
		m.powerEdge = true
	} else {
		desc = "power off"
		m.powerEdge = false
		m.harvest = false
	}
	s := m.commitLocked(models.EventPower, desc, map[string]any{"power": m.power})
	m.log.Infow("power_toggled", "power", s.Power, "harvest", s.HarvestMode, "version", s.Version)
	return s
}

// ToggleHarvestMode flips harvest mode. It fails with ErrInvalidTransition,
// leaving the state untouched, while the machine is unpowered.
func (m *Machine) ToggleHarvestMode(origin string) (models.MachineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.power {
		m.log.Warnw("harvest_toggle_rejected", "origin", origin, "reason", "unpowered")
		return m.snapshotLocked(), ErrInvalidTransition
	}
	m.harvest = !m.harvest
	desc := "harvest mode off"
	if m.harvest {
		desc = "harvest mode on"
	}
	s := m.commitLocked(models.EventHarvest, desc, map[string]any{"harvest": m.harvest, "origin": origin})
	m.log.Infow("harvest_toggled", "origin", origin, "harvest", s.HarvestMode, "version", s.Version)
	return s, nil
}

// SetNPKFailed latches the nutrient failure flag.
func (m *Machine) SetNPKFailed(v bool) (models.MachineState, error) {
	return m.setLatch(&m.npkFailed, "npk_failed", v)
}

// SetHarvestReady latches the harvest readiness flag.
func (m *Machine) SetHarvestReady(v bool) (models.MachineState, error) {
	return m.setLatch(&m.harvestReady, "harvest_ready", v)
}

// setLatch sets a one-way flag. Setting an already set latch and clearing
// an unset one are no-ops; clearing a set latch is rejected.
func (m *Machine) setLatch(flag *bool, name string, v bool) (models.MachineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case *flag == v:
		return m.snapshotLocked(), nil
	case !v:
		m.log.Warnw("latch_clear_rejected", "latch", name)
		return m.snapshotLocked(), ErrInvalidTransition
	}
	*flag = true
	s := m.commitLocked(models.EventLatch, name+" latched", map[string]any{"latch": name})
	m.log.Infow("latch_set", "latch", name, "version", s.Version)
	return s, nil
}

// RecordPowerOnIfNeeded stamps lastStart the first time it is called after
// power went on and reports whether it did. While unpowered lastStart is
// left alone.
func (m *Machine) RecordPowerOnIfNeeded() (models.MachineState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.power || !m.powerEdge {
		return m.snapshotLocked(), false
	}
	m.powerEdge = false
	m.lastStart = m.now().UTC()
	s := m.commitLocked(models.EventPower, "powered session started", map[string]any{"last_start": m.lastStart})
	return s, true
}

// RewindStart moves lastStart back by d. Only valid while powered.
func (m *Machine) RewindStart(d time.Duration) (models.MachineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.power {
		return m.snapshotLocked(), ErrInvalidTransition
	}
	m.lastStart = m.lastStart.Add(-d)
	return m.commitLocked(models.EventCalibration, "start re-anchored", map[string]any{"rewind": d.String()}), nil
}

// CompleteCalibration re-anchors lastStart after a calibration run that
// finished at "at". The anchor is set to at and then rewound by however
// far the run overshot its period, keeping later runs period-aligned.
func (m *Machine) CompleteCalibration(at time.Time, period time.Duration) (models.MachineState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.power {
		return m.snapshotLocked(), ErrInvalidTransition
	}
	overshoot := at.Sub(m.lastStart) - period
	if overshoot < 0 || m.lastStart.IsZero() {
		overshoot = 0
	}
	if period > 0 {
		overshoot %= period
	}
	m.lastStart = at.UTC().Add(-overshoot)
	s := m.commitLocked(models.EventCalibration, "calibration completed",
		map[string]any{"overshoot": overshoot.String()})
	m.log.Infow("calibration_anchored", "last_start", s.LastStart, "overshoot", overshoot)
	return s, nil
}
