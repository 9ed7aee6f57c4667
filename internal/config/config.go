// Package config loads service configuration from configs/config.yml and
// GREENCURE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "GREENCURE"

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	DB      DBConfig      `mapstructure:"db"`
	LinkA   LinkConfig    `mapstructure:"link_a"`
	LinkB   LinkConfig    `mapstructure:"link_b"`
	Device  DeviceConfig  `mapstructure:"device"`
	Button  ButtonConfig  `mapstructure:"button"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Control ControlConfig `mapstructure:"control"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type HTTPConfig struct {
	Port       string        `mapstructure:"port"`
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// LinkConfig describes one microcontroller serial link.
type LinkConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

type DeviceConfig struct {
	// ResponseTimeout bounds every acknowledge and numeric-read wait.
	ResponseTimeout time.Duration `mapstructure:"response_timeout"`
}

type ButtonConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Chip     string        `mapstructure:"chip"`
	Line     int           `mapstructure:"line"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// MQTTConfig describes the remote parameter store. With Enabled false the
// machine runs with local persistence only.
type MQTTConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Broker         string        `mapstructure:"broker"`
	ClientID       string        `mapstructure:"client_id"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// ControlConfig holds the poll loop thresholds and timing.
type ControlConfig struct {
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	TemperatureThreshold float64       `mapstructure:"temperature_threshold"`
	MoistureThreshold    float64       `mapstructure:"moisture_threshold"`
	CalibrationDuration  time.Duration `mapstructure:"calibration_duration"`
	CalibrationPeriod    time.Duration `mapstructure:"calibration_period"`
	NPKWindow            time.Duration `mapstructure:"npk_window"`
	NitrogenMin          float64       `mapstructure:"nitrogen_min"`
	PhosphorusMin        float64       `mapstructure:"phosphorus_min"`
	PotassiumMin         float64       `mapstructure:"potassium_min"`
}

var defaults = map[string]any{
	"log.level": "info",

	"http.port":        "8080",
	"http.signing_key": "change-me",
	"http.token_ttl":   time.Hour,

	"db.path": "greencure.db",

	"link_a.port": "/dev/ttyUSB0",
	"link_a.baud": 9600,
	"link_b.port": "/dev/ttyACM0",
	"link_b.baud": 115200,

	"device.response_timeout": 30 * time.Second,

	"button.enabled":  true,
	"button.chip":     "gpiochip0",
	"button.line":     17,
	"button.debounce": 2 * time.Second,

	"mqtt.enabled":         true,
	"mqtt.broker":          "tcp://localhost:1883",
	"mqtt.client_id":       "greencure-machine",
	"mqtt.topic_prefix":    "greencure",
	"mqtt.connect_timeout": 10 * time.Second,

	"control.poll_interval":         5 * time.Second,
	"control.temperature_threshold": 30.0,
	"control.moisture_threshold":    50.0,
	"control.calibration_duration":  30 * time.Second,
	"control.calibration_period":    24 * time.Hour,
	"control.npk_window":            240 * time.Hour,
	"control.nitrogen_min":          200.0,
	"control.phosphorus_min":        100.0,
	"control.potassium_min":         100.0,
}

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Default returns the configuration with no file or environment applied.
func Default() Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var cfg Config
	// defaults are static and always decode
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads the config file at path (if it exists) and environment
// overrides on top of the defaults. An empty path looks for
// configs/config.yml relative to the working directory.
func Load(path string) (Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("configs")
		v.SetConfigName("config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the control loop cannot run with.
func (c Config) Validate() error {
	switch {
	case c.Control.PollInterval <= 0:
		return errors.New("control.poll_interval must be positive")
	case c.Control.CalibrationPeriod <= 0:
		return errors.New("control.calibration_period must be positive")
	case c.Control.CalibrationDuration < 0:
		return errors.New("control.calibration_duration must not be negative")
	case c.Control.NPKWindow <= 0:
		return errors.New("control.npk_window must be positive")
	case c.Device.ResponseTimeout <= 0:
		return errors.New("device.response_timeout must be positive")
	case c.LinkA.Baud <= 0 || c.LinkB.Baud <= 0:
		return errors.New("link baud rates must be positive")
	case c.Button.Debounce < 0:
		return errors.New("button.debounce must not be negative")
	case c.MQTT.Enabled && c.MQTT.Broker == "":
		return errors.New("mqtt.broker is required when mqtt is enabled")
	case c.MQTT.Enabled && c.MQTT.ConnectTimeout <= 0:
		return errors.New("mqtt.connect_timeout must be positive")
	}
	return nil
}
