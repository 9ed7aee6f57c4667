package models

import (
	"math"
	"time"
)

// SensorReading is one poll cycle's worth of measurements.
type SensorReading struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Moisture    float64   `json:"moisture"`
	Nitrogen    float64   `json:"nitrogen"`
	Phosphorus  float64   `json:"phosphorus"`
	Potassium   float64   `json:"potassium"`
	CreatedAt   time.Time `json:"created_at"`
}

// Valid reports whether every value is a finite number.
func (r SensorReading) Valid() bool {
	for _, v := range [...]float64{r.Temperature, r.Humidity, r.Moisture, r.Nitrogen, r.Phosphorus, r.Potassium} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
