package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"greencure/internal/config"
	"greencure/internal/device"
	"greencure/internal/logger"
	"greencure/internal/models"
)

// ErrInvalidReading is returned for a cycle whose readings are not all
// finite numbers. Nothing from such a cycle is stored or acted on.
var ErrInvalidReading = errors.New("invalid sensor reading")

// SensorSource reads one full set of measurements.
type SensorSource interface {
	ReadAll(ctx context.Context) (models.SensorReading, error)
}

// Actuators drives the enclosure outputs idempotently.
type Actuators interface {
	Set(ctx context.Context, a device.Actuator, on bool) error
	AllOff(ctx context.Context) error
	States() models.ActuatorStates
}

// Display refreshes the board LCDs.
type Display interface {
	Refresh(ctx context.Context) error
}

// Outbox takes telemetry and notifications off the loop's hands. It must
// not block.
type Outbox interface {
	RecordTelemetry(r models.SensorReading)
	Notify(title, body string)
}

// ControlService runs the sensing and actuation cycle.
type ControlService struct {
	log     *logger.Logger
	cfg     config.ControlConfig
	machine *Machine
	sensors SensorSource
	act     Actuators
	display Display
	out     Outbox
	now     func() time.Time
	pause   func(ctx context.Context, d time.Duration) error

	// loop-local state, touched only by the goroutine running cycles
	calibrated   bool
	harvestInit  bool
	windowStart  time.Time
	npkEvaluated bool
}

func NewControlService(
	log *logger.Logger,
	cfg config.ControlConfig,
	machine *Machine,
	sensors SensorSource,
	act Actuators,
	display Display,
	out Outbox,
) *ControlService {
	return &ControlService{
		log:     log.Named("control"),
		cfg:     cfg,
		machine: machine,
		sensors: sensors,
		act:     act,
		display: display,
		out:     out,
		now:     time.Now,
		pause:   sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes a cycle every tick until ctx is canceled. A failed cycle
// is logged and skipped; the next tick retries from fresh readings.
func (c *ControlService) Run(ctx context.Context, tick time.Duration) {
	t := time.NewTicker(tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.Cycle(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				c.log.Warnw("cycle_skipped", "err", err)
			}
		}
	}
}

// Cycle performs one pass of the control loop.
func (c *ControlService) Cycle(ctx context.Context) error {
	s := c.machine.Snapshot()
	if !s.Power {
		return c.powerDown(ctx)
	}

	if started, ok := c.machine.RecordPowerOnIfNeeded(); ok {
		c.windowStart = started.LastStart
		c.npkEvaluated = false
		c.log.Infow("session_started", "last_start", started.LastStart)
	}

	if !c.calibrated {
		if err := c.calibrate(ctx); err != nil {
			return fmt.Errorf("startup calibration: %w", err)
		}
		c.calibrated = true
	}

	// routing decisions below all come from this one snapshot
	s = c.machine.Snapshot()
	if !s.Power {
		return nil
	}

	if s.HarvestMode {
		if !c.harvestInit {
			if err := c.enterHarvest(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	if c.harvestInit {
		if err := c.exitHarvest(ctx); err != nil {
			return err
		}
	}

	reading, err := c.sensors.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read sensors: %w", err)
	}
	if !reading.Valid() {
		c.log.Warnw("reading_rejected", "reading", reading)
		return ErrInvalidReading
	}

	if err := c.act.Set(ctx, device.Fan, reading.Temperature > c.cfg.TemperatureThreshold); err != nil {
		return err
	}
	if err := c.act.Set(ctx, device.Pump, reading.Moisture < c.cfg.MoistureThreshold); err != nil {
		return err
	}
	c.out.RecordTelemetry(reading)

	if err := c.periodicCalibration(ctx, s); err != nil {
		return err
	}
	c.evaluateNPK(reading)

	if err := c.display.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh displays: %w", err)
	}
	return nil
}

// powerDown leaves the enclosure safe while unpowered. Actuators that are
// already off cost nothing.
func (c *ControlService) powerDown(ctx context.Context) error {
	c.harvestInit = false
	if err := c.act.AllOff(ctx); err != nil {
		return fmt.Errorf("power down: %w", err)
	}
	return nil
}

func (c *ControlService) enterHarvest(ctx context.Context) error {
	if err := c.act.Set(ctx, device.Hatch, true); err != nil {
		return fmt.Errorf("enter harvest: %w", err)
	}
	if err := c.act.Set(ctx, device.DCMotor, true); err != nil {
		return fmt.Errorf("enter harvest: %w", err)
	}
	c.harvestInit = true
	c.log.Infow("harvest_started")
	return nil
}

func (c *ControlService) exitHarvest(ctx context.Context) error {
	if err := c.act.Set(ctx, device.Hatch, false); err != nil {
		return fmt.Errorf("exit harvest: %w", err)
	}
	if err := c.act.Set(ctx, device.DCMotor, false); err != nil {
		return fmt.Errorf("exit harvest: %w", err)
	}
	c.harvestInit = false
	c.log.Infow("harvest_stopped")
	return nil
}

// calibrate runs the stepper for the configured duration. The stepper is
// stopped even when ctx ends mid-run.
func (c *ControlService) calibrate(ctx context.Context) error {
	if err := c.act.Set(ctx, device.Stepper, true); err != nil {
		return err
	}
	c.log.Infow("calibration_started", "duration", c.cfg.CalibrationDuration)
	waitErr := c.pause(ctx, c.cfg.CalibrationDuration)
	if err := c.act.Set(context.WithoutCancel(ctx), device.Stepper, false); err != nil {
		return err
	}
	return waitErr
}

func (c *ControlService) periodicCalibration(ctx context.Context, s models.MachineState) error {
	if c.cfg.CalibrationPeriod <= 0 || c.now().Sub(s.LastStart) < c.cfg.CalibrationPeriod {
		return nil
	}
	if err := c.calibrate(ctx); err != nil {
		return fmt.Errorf("periodic calibration: %w", err)
	}
	if _, err := c.machine.CompleteCalibration(c.now(), c.cfg.CalibrationPeriod); err != nil {
		// power went off during the run; the next session re-anchors
		c.log.Infow("calibration_anchor_skipped", "err", err)
	}
	return nil
}

func (c *ControlService) npkMet(r models.SensorReading) bool {
	return r.Nitrogen >= c.cfg.NitrogenMin &&
		r.Phosphorus >= c.cfg.PhosphorusMin &&
		r.Potassium >= c.cfg.PotassiumMin
}

// evaluateNPK latches harvestReady whenever every nutrient meets its
// minimum, and checks for failure once when the monitoring window closes.
func (c *ControlService) evaluateNPK(r models.SensorReading) {
	met := c.npkMet(r)

	if !c.npkEvaluated && !c.windowStart.IsZero() && c.now().Sub(c.windowStart) >= c.cfg.NPKWindow {
		c.npkEvaluated = true
		if !met {
			c.latch(c.machine.SetNPKFailed, func(s models.MachineState) bool { return s.NPKFailed },
				"Nutrient levels low",
				fmt.Sprintf("N=%.1f P=%.1f K=%.1f after the monitoring window (minimums %.0f/%.0f/%.0f)",
					r.Nitrogen, r.Phosphorus, r.Potassium, c.cfg.NitrogenMin, c.cfg.PhosphorusMin, c.cfg.PotassiumMin))
		}
	}

	if met {
		c.latch(c.machine.SetHarvestReady, func(s models.MachineState) bool { return s.HarvestReady },
			"Ready for harvest",
			fmt.Sprintf("N=%.1f P=%.1f K=%.1f meet all nutrient minimums", r.Nitrogen, r.Phosphorus, r.Potassium))
	}
}

// latch sets a flag and notifies only when this call is what set it.
func (c *ControlService) latch(set func(bool) (models.MachineState, error), get func(models.MachineState) bool, title, body string) {
	if get(c.machine.Snapshot()) {
		return
	}
	s, err := set(true)
	if err != nil {
		c.log.Errorw("latch_failed", "title", title, "err", err)
		return
	}
	if get(s) {
		c.out.Notify(title, body)
	}
}
