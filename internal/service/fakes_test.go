package service

import (
	"context"
	"sync"
	"time"

	"greencure/internal/device"
	"greencure/internal/models"
	"greencure/internal/repository"
)

type fakeStateRepo struct {
	mu    sync.Mutex
	saved []models.MachineState
	err   error
}

func (f *fakeStateRepo) Save(ctx context.Context, s models.MachineState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, s)
	return f.err
}

func (f *fakeStateRepo) Load(ctx context.Context) (models.MachineState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return models.MachineState{}, f.err
	}
	return f.saved[len(f.saved)-1], f.err
}

func (f *fakeStateRepo) versions() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]uint64, 0, len(f.saved))
	for _, s := range f.saved {
		out = append(out, s.Version)
	}
	return out
}

type fakeTelemetryRepo struct {
	mu       sync.Mutex
	appended []models.SensorReading
	err      error

	gotFrom, gotTo time.Time
	gotLimit       int
	calls          int
}

func (f *fakeTelemetryRepo) Append(ctx context.Context, r models.SensorReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, r)
	return f.err
}

func (f *fakeTelemetryRepo) List(ctx context.Context, from, to time.Time, limit int) ([]models.SensorReading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFrom, f.gotTo, f.gotLimit = from, to, limit
	return f.appended, f.err
}

func (f *fakeTelemetryRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.appended)
}

type fakeEventRepo struct {
	mu       sync.Mutex
	appended []models.MachineEvent
	events   []models.MachineEvent
	err      error

	gotFrom, gotTo time.Time
	gotType        string
	calls          int
}

func (f *fakeEventRepo) Append(ctx context.Context, e models.MachineEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, e)
	return f.err
}

func (f *fakeEventRepo) List(ctx context.Context, from, to time.Time, typ string) ([]models.MachineEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotFrom, f.gotTo, f.gotType = from, to, typ
	return f.events, f.err
}

func (f *fakeEventRepo) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.appended))
	for _, e := range f.appended {
		out = append(out, e.Type)
	}
	return out
}

type fakeRecipients struct {
	users []string
	err   error
}

func (f fakeRecipients) Usernames(ctx context.Context) ([]string, error) { return f.users, f.err }

type fakeRemote struct {
	mu            sync.Mutex
	states        []models.StateDocument
	readings      []models.SensorReading
	notifications []models.Notification
	err           error
}

func (f *fakeRemote) PublishState(ctx context.Context, doc models.StateDocument) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, doc)
	return f.err
}

func (f *fakeRemote) PublishTelemetry(ctx context.Context, r models.SensorReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readings = append(f.readings, r)
	return f.err
}

func (f *fakeRemote) Notify(ctx context.Context, n models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications = append(f.notifications, n)
	return f.err
}

func (f *fakeRemote) sentNotifications() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Notification(nil), f.notifications...)
}

func newFakeRepos() (*repository.Repository, *fakeStateRepo, *fakeTelemetryRepo, *fakeEventRepo) {
	st, tel, ev := &fakeStateRepo{}, &fakeTelemetryRepo{}, &fakeEventRepo{}
	return &repository.Repository{StateRepo: st, TelemetryRepo: tel, EventRepo: ev}, st, tel, ev
}

// recordingSink keeps everything a Machine hands out.
type recordingSink struct {
	mu     sync.Mutex
	states []models.MachineState
	events []models.MachineEvent
}

func (r *recordingSink) PushState(s models.MachineState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingSink) RecordEvent(e models.MachineEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// fakeActuators records Set calls and tracks state like the device
// controller: unchanged requests are no-ops.
type fakeActuators struct {
	mu    sync.Mutex
	state map[device.Actuator]bool
	calls []string
	err   map[device.Actuator]error
}

func newFakeActuators() *fakeActuators {
	return &fakeActuators{state: map[device.Actuator]bool{}, err: map[device.Actuator]error{}}
}

func (f *fakeActuators) Set(ctx context.Context, a device.Actuator, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state[a] == on {
		return nil
	}
	if err := f.err[a]; err != nil {
		return err
	}
	f.state[a] = on
	verb := "off"
	if on {
		verb = "on"
	}
	f.calls = append(f.calls, a.String()+":"+verb)
	return nil
}

func (f *fakeActuators) AllOff(ctx context.Context) error {
	for _, a := range []device.Actuator{device.Fan, device.Pump, device.Stepper, device.DCMotor, device.Hatch} {
		if err := f.Set(ctx, a, false); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeActuators) States() models.ActuatorStates {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.ActuatorStates{
		FanOn:     f.state[device.Fan],
		PumpOn:    f.state[device.Pump],
		HatchOpen: f.state[device.Hatch],
		StepperOn: f.state[device.Stepper],
		DCMotorOn: f.state[device.DCMotor],
	}
}

func (f *fakeActuators) takeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.calls
	f.calls = nil
	return out
}

type fakeSensors struct {
	readings []models.SensorReading
	err      error
	calls    int
}

func (f *fakeSensors) ReadAll(ctx context.Context) (models.SensorReading, error) {
	f.calls++
	if f.err != nil {
		return models.SensorReading{}, f.err
	}
	if len(f.readings) == 0 {
		return models.SensorReading{}, nil
	}
	r := f.readings[0]
	if len(f.readings) > 1 {
		f.readings = f.readings[1:]
	}
	return r, nil
}

type fakeDisplay struct {
	refreshes int
	err       error
}

func (f *fakeDisplay) Refresh(ctx context.Context) error {
	f.refreshes++
	return f.err
}

type fakeOutbox struct {
	readings      []models.SensorReading
	notifications []models.Notification
}

func (f *fakeOutbox) RecordTelemetry(r models.SensorReading) { f.readings = append(f.readings, r) }

func (f *fakeOutbox) Notify(title, body string) {
	f.notifications = append(f.notifications, models.Notification{Title: title, Body: body})
}

// manualClock is a settable time source.
type manualClock struct {
	mu sync.Mutex
	t  time.Time
}

func newManualClock(t time.Time) *manualClock { return &manualClock{t: t} }

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
