package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"greencure/internal/logger"
	"greencure/internal/models"
)

// Sender sends an acknowledged command on a link.
type Sender interface {
	Send(ctx context.Context, cmd int) error
}

// Actuator identifies a controllable output.
type Actuator int

const (
	Fan Actuator = iota
	Pump
	Hatch
	Stepper
	DCMotor
)

func (a Actuator) String() string {
	switch a {
	case Fan:
		return "fan"
	case Pump:
		return "pump"
	case Hatch:
		return "hatch"
	case Stepper:
		return "stepper"
	case DCMotor:
		return "dc_motor"
	default:
		return fmt.Sprintf("actuator(%d)", int(a))
	}
}

type binding struct {
	link    Sender
	onCmd   int
	offCmd  int
	onVerb  string
	offVerb string
}

// Controller drives actuators idempotently. The tracked state of each
// actuator only changes after the board acknowledged the command.
type Controller struct {
	log      *logger.Logger
	bindings map[Actuator]binding

	// ops serializes commands; mu guards state so readers never wait on I/O.
	ops   sync.Mutex
	mu    sync.RWMutex
	state map[Actuator]bool
}

// NewController binds fan and pump to linkA and the mechanics to linkB.
// All actuators start off, matching a freshly reset board.
func NewController(linkA, linkB Sender, log *logger.Logger) *Controller {
	return &Controller{
		log: log.Named("actuators"),
		bindings: map[Actuator]binding{
			Fan:     {linkA, CmdFanOn, CmdFanOff, "on", "off"},
			Pump:    {linkA, CmdPumpOn, CmdPumpOff, "on", "off"},
			Hatch:   {linkB, CmdHatchOpen, CmdHatchClose, "open", "close"},
			Stepper: {linkB, CmdStepperStart, CmdStepperStop, "start", "stop"},
			DCMotor: {linkB, CmdDCMotorStart, CmdDCMotorStop, "start", "stop"},
		},
		state: make(map[Actuator]bool, 5),
	}
}

// Set moves the actuator to on. It is a no-op when already there.
func (c *Controller) Set(ctx context.Context, a Actuator, on bool) error {
	b, ok := c.bindings[a]
	if !ok {
		return fmt.Errorf("unknown actuator %s", a)
	}

	c.ops.Lock()
	defer c.ops.Unlock()

	if c.IsOn(a) == on {
		return nil
	}

	cmd, verb := b.offCmd, b.offVerb
	if on {
		cmd, verb = b.onCmd, b.onVerb
	}
	if err := b.link.Send(ctx, cmd); err != nil {
		return fmt.Errorf("%s %s: %w", a, verb, err)
	}

	c.mu.Lock()
	c.state[a] = on
	c.mu.Unlock()

	c.log.Infow("actuator_changed", "actuator", a.String(), "action", verb)
	return nil
}

// AllOff stops every running actuator and closes the hatch. Every actuator
// is attempted even if an earlier one fails.
func (c *Controller) AllOff(ctx context.Context) error {
	var errs []error
	for _, a := range []Actuator{Fan, Pump, Stepper, DCMotor, Hatch} {
		if err := c.Set(ctx, a, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsOn reports the last acknowledged state of a.
func (c *Controller) IsOn(a Actuator) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state[a]
}

// States returns a copy of all tracked actuator states.
func (c *Controller) States() models.ActuatorStates {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.ActuatorStates{
		FanOn:     c.state[Fan],
		PumpOn:    c.state[Pump],
		HatchOpen: c.state[Hatch],
		StepperOn: c.state[Stepper],
		DCMotorOn: c.state[DCMotor],
	}
}

func (c *Controller) FanOn(ctx context.Context) error        { return c.Set(ctx, Fan, true) }
func (c *Controller) FanOff(ctx context.Context) error       { return c.Set(ctx, Fan, false) }
func (c *Controller) PumpOn(ctx context.Context) error       { return c.Set(ctx, Pump, true) }
func (c *Controller) PumpOff(ctx context.Context) error      { return c.Set(ctx, Pump, false) }
func (c *Controller) OpenHatch(ctx context.Context) error    { return c.Set(ctx, Hatch, true) }
func (c *Controller) CloseHatch(ctx context.Context) error   { return c.Set(ctx, Hatch, false) }
func (c *Controller) StartStepper(ctx context.Context) error { return c.Set(ctx, Stepper, true) }
func (c *Controller) StopStepper(ctx context.Context) error  { return c.Set(ctx, Stepper, false) }
func (c *Controller) StartDCMotor(ctx context.Context) error { return c.Set(ctx, DCMotor, true) }
func (c *Controller) StopDCMotor(ctx context.Context) error  { return c.Set(ctx, DCMotor, false) }

// Displays drives the LCDs on both boards.
type Displays struct {
	linkA, linkB Sender
}

func NewDisplays(linkA, linkB Sender) *Displays {
	return &Displays{linkA: linkA, linkB: linkB}
}

// Refresh asks both boards to show their latest readings.
func (d *Displays) Refresh(ctx context.Context) error {
	if err := d.linkB.Send(ctx, CmdDisplayNPK); err != nil {
		return fmt.Errorf("display npk: %w", err)
	}
	if err := d.linkA.Send(ctx, CmdDisplayClimate); err != nil {
		return fmt.Errorf("display climate: %w", err)
	}
	return nil
}
