package service

import (
	"context"
	"sync"
	"time"

	"greencure/internal/logger"
	"greencure/internal/models"
	"greencure/internal/repository"
)

// RemoteStore is the outward-facing parameter store and notification sink.
type RemoteStore interface {
	PublishState(ctx context.Context, doc models.StateDocument) error
	PublishTelemetry(ctx context.Context, r models.SensorReading) error
	Notify(ctx context.Context, n models.Notification) error
}

const (
	mirrorQueueSize = 1024
	mirrorOpTimeout = 10 * time.Second
)

type mirrorJob struct {
	event        *models.MachineEvent
	reading      *models.SensorReading
	notification *models.Notification
}

// Mirror copies state snapshots, events, telemetry and notifications to
// the local store and the remote store from a single worker goroutine.
// Producers never block: pending snapshots collapse to the newest version
// and other records queue up to mirrorQueueSize, oldest dropped first.
// Every downstream failure is logged and dropped.
type Mirror struct {
	log        *logger.Logger
	states     repository.StateRepo
	telemetry  repository.TelemetryRepo
	events     repository.EventRepo
	recipients repository.Recipients
	remote     RemoteStore

	mu      sync.Mutex
	pending *models.MachineState
	pushed  uint64
	queue   []mirrorJob
	wake    chan struct{}
}

func NewMirror(
	log *logger.Logger,
	repos *repository.Repository,
	recipients repository.Recipients,
	remote RemoteStore,
) *Mirror {
	return &Mirror{
		log:        log.Named("mirror"),
		states:     repos.StateRepo,
		telemetry:  repos.TelemetryRepo,
		events:     repos.EventRepo,
		recipients: recipients,
		remote:     remote,
		wake:       make(chan struct{}, 1),
	}
}

var (
	_ StateSink = (*Mirror)(nil)
	_ Outbox    = (*Mirror)(nil)
)

func (m *Mirror) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// PushState schedules s for mirroring unless a newer snapshot is already
// pending or was already pushed.
func (m *Mirror) PushState(s models.MachineState) {
	m.mu.Lock()
	if s.Version > m.pushed && (m.pending == nil || s.Version > m.pending.Version) {
		m.pending = &s
	}
	m.mu.Unlock()
	m.signal()
}

func (m *Mirror) enqueue(j mirrorJob) {
	m.mu.Lock()
	if len(m.queue) >= mirrorQueueSize {
		m.queue = m.queue[1:]
		m.log.Warnw("mirror_queue_overflow", "dropped", 1)
	}
	m.queue = append(m.queue, j)
	m.mu.Unlock()
	m.signal()
}

func (m *Mirror) RecordEvent(e models.MachineEvent) { m.enqueue(mirrorJob{event: &e}) }

func (m *Mirror) RecordTelemetry(r models.SensorReading) { m.enqueue(mirrorJob{reading: &r}) }

func (m *Mirror) Notify(title, body string) {
	m.enqueue(mirrorJob{notification: &models.Notification{Title: title, Body: body}})
}

// Pushed returns the newest version handed to the stores.
func (m *Mirror) Pushed() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushed
}

// Run mirrors until ctx ends, then flushes what is still pending.
func (m *Mirror) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.Flush(context.WithoutCancel(ctx))
			return
		case <-m.wake:
			m.Flush(ctx)
		}
	}
}

// Flush mirrors everything pending at the time of the call.
func (m *Mirror) Flush(ctx context.Context) {
	m.mu.Lock()
	state := m.pending
	m.pending = nil
	jobs := m.queue
	m.queue = nil
	if state != nil {
		m.pushed = state.Version
	}
	m.mu.Unlock()

	if state != nil {
		m.mirrorState(ctx, *state)
	}
	for _, j := range jobs {
		switch {
		case j.event != nil:
			m.mirrorEvent(ctx, *j.event)
		case j.reading != nil:
			m.mirrorReading(ctx, *j.reading)
		case j.notification != nil:
			m.deliver(ctx, *j.notification)
		}
	}
}

func (m *Mirror) mirrorState(ctx context.Context, s models.MachineState) {
	opCtx, cancel := context.WithTimeout(ctx, mirrorOpTimeout)
	defer cancel()

	if err := m.states.Save(opCtx, s); err != nil {
		m.log.Errorw("state_save_failed", "version", s.Version, "err", err)
	}
	if m.remote == nil {
		return
	}
	if err := m.remote.PublishState(opCtx, s.Document()); err != nil {
		m.log.Warnw("state_publish_failed", "version", s.Version, "err", err)
	}
}

func (m *Mirror) mirrorEvent(ctx context.Context, e models.MachineEvent) {
	opCtx, cancel := context.WithTimeout(ctx, mirrorOpTimeout)
	defer cancel()
	if err := m.events.Append(opCtx, e); err != nil {
		m.log.Errorw("event_append_failed", "type", e.Type, "err", err)
	}
}

func (m *Mirror) mirrorReading(ctx context.Context, r models.SensorReading) {
	opCtx, cancel := context.WithTimeout(ctx, mirrorOpTimeout)
	defer cancel()

	if err := m.telemetry.Append(opCtx, r); err != nil {
		m.log.Errorw("telemetry_append_failed", "err", err)
	}
	if m.remote == nil {
		return
	}
	if err := m.remote.PublishTelemetry(opCtx, r); err != nil {
		m.log.Warnw("telemetry_publish_failed", "err", err)
	}
}

func (m *Mirror) deliver(ctx context.Context, n models.Notification) {
	opCtx, cancel := context.WithTimeout(ctx, mirrorOpTimeout)
	defer cancel()

	users, err := m.recipients.Usernames(opCtx)
	if err != nil {
		m.log.Errorw("recipients_lookup_failed", "title", n.Title, "err", err)
		return
	}
	if len(users) == 0 {
		m.log.Infow("notification_skipped", "title", n.Title, "reason", "no recipients")
		return
	}
	n.Recipients = users
	if m.remote == nil {
		m.log.Infow("notification_unsent", "title", n.Title, "reason", "no remote store")
		return
	}
	if err := m.remote.Notify(opCtx, n); err != nil {
		m.log.Warnw("notification_failed", "title", n.Title, "err", err)
		return
	}
	m.log.Infow("notification_sent", "title", n.Title, "recipients", len(users))
}
