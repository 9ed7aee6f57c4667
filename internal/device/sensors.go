package device

import (
	"context"
	"fmt"
	"time"

	"greencure/internal/models"
)

// NumericReader issues a read command and returns the value the board
// reports on the same link.
type NumericReader interface {
	ReadNumeric(ctx context.Context, cmd int) (float64, error)
}

// Measurement identifies one of the six sensor values.
type Measurement int

const (
	Temperature Measurement = iota
	Humidity
	Moisture
	Nitrogen
	Phosphorus
	Potassium
)

var measurementNames = [...]string{"temperature", "humidity", "moisture", "nitrogen", "phosphorus", "potassium"}

func (m Measurement) String() string {
	if m < 0 || int(m) >= len(measurementNames) {
		return fmt.Sprintf("measurement(%d)", int(m))
	}
	return measurementNames[m]
}

type route struct {
	link NumericReader
	cmd  int
}

// SensorReader reads measurements, each from the link that owns its command.
type SensorReader struct {
	routes map[Measurement]route
	now    func() time.Time
}

// NewSensorReader routes climate measurements to linkA and soil nutrient
// measurements to linkB.
func NewSensorReader(linkA, linkB NumericReader) *SensorReader {
	return &SensorReader{
		routes: map[Measurement]route{
			Temperature: {linkA, CmdReadTemperature},
			Humidity:    {linkA, CmdReadHumidity},
			Moisture:    {linkA, CmdReadMoisture},
			Nitrogen:    {linkB, CmdReadNitrogen},
			Phosphorus:  {linkB, CmdReadPhosphorus},
			Potassium:   {linkB, CmdReadPotassium},
		},
		now: time.Now,
	}
}

// Read returns a single measurement.
func (r *SensorReader) Read(ctx context.Context, m Measurement) (float64, error) {
	rt, ok := r.routes[m]
	if !ok {
		return 0, fmt.Errorf("no route for %s", m)
	}
	v, err := rt.link.ReadNumeric(ctx, rt.cmd)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", m, err)
	}
	return v, nil
}

// ReadAll reads all six measurements. Values are not validated here.
func (r *SensorReader) ReadAll(ctx context.Context) (models.SensorReading, error) {
	var vals [len(measurementNames)]float64
	for m := Temperature; m <= Potassium; m++ {
		v, err := r.Read(ctx, m)
		if err != nil {
			return models.SensorReading{}, err
		}
		vals[m] = v
	}
	return models.SensorReading{
		Temperature: vals[Temperature],
		Humidity:    vals[Humidity],
		Moisture:    vals[Moisture],
		Nitrogen:    vals[Nitrogen],
		Phosphorus:  vals[Phosphorus],
		Potassium:   vals[Potassium],
		CreatedAt:   r.now().UTC(),
	}, nil
}
