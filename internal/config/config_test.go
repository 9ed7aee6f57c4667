package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.LinkA.Baud != 9600 || cfg.LinkB.Baud != 115200 {
		t.Fatalf("unexpected baud rates: %d/%d", cfg.LinkA.Baud, cfg.LinkB.Baud)
	}
	if cfg.Control.NitrogenMin != 200 || cfg.Control.PhosphorusMin != 100 || cfg.Control.PotassiumMin != 100 {
		t.Fatalf("unexpected npk minimums: %+v", cfg.Control)
	}
	if cfg.Button.Debounce != 2*time.Second {
		t.Fatalf("expected 2s debounce, got %v", cfg.Button.Debounce)
	}
	if cfg.Control.CalibrationPeriod != 24*time.Hour {
		t.Fatalf("expected 24h calibration period, got %v", cfg.Control.CalibrationPeriod)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	body := []byte(`
control:
  poll_interval: 10s
  npk_window: 1h
  temperature_threshold: 27.5
link_b:
  port: /dev/ttyACM1
`)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Control.PollInterval != 10*time.Second {
		t.Errorf("poll_interval = %v", cfg.Control.PollInterval)
	}
	if cfg.Control.NPKWindow != time.Hour {
		t.Errorf("npk_window = %v", cfg.Control.NPKWindow)
	}
	if cfg.Control.TemperatureThreshold != 27.5 {
		t.Errorf("temperature_threshold = %v", cfg.Control.TemperatureThreshold)
	}
	if cfg.LinkB.Port != "/dev/ttyACM1" || cfg.LinkB.Baud != 115200 {
		t.Errorf("link_b = %+v", cfg.LinkB)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("GREENCURE_MQTT_BROKER", "tcp://broker:1883")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Fatalf("expected env override, got %q", cfg.MQTT.Broker)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yml")); err == nil {
		t.Fatalf("expected error for explicit missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero poll interval", func(c *Config) { c.Control.PollInterval = 0 }},
		{"zero calibration period", func(c *Config) { c.Control.CalibrationPeriod = 0 }},
		{"zero npk window", func(c *Config) { c.Control.NPKWindow = 0 }},
		{"zero response timeout", func(c *Config) { c.Device.ResponseTimeout = 0 }},
		{"zero baud", func(c *Config) { c.LinkA.Baud = 0 }},
		{"mqtt without broker", func(c *Config) { c.MQTT.Broker = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestValidate_MQTTDisabledNeedsNoBroker(t *testing.T) {
	cfg := Default()
	cfg.MQTT.Enabled = false
	cfg.MQTT.Broker = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
