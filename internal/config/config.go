// Package config loads smartbin configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// SMARTBIN_* environment variables (a .env file in the working directory is
// read first if present).
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/teslashibe/smartbin/pkg/calibration"
	"github.com/teslashibe/smartbin/pkg/camera"
	"github.com/teslashibe/smartbin/pkg/dispatch"
	"github.com/teslashibe/smartbin/pkg/inference"
	"github.com/teslashibe/smartbin/pkg/metrics"
	"github.com/teslashibe/smartbin/pkg/servo"
	"gopkg.in/yaml.v3"
)

// Default file locations.
const (
	DefaultLabelsPath = "data/labels.txt"
	DefaultEnvFile    = ".env"
)

// ErrInvalid is returned when the loaded configuration is unusable.
var ErrInvalid = errors.New("config: invalid")

// Config is the full controller configuration.
type Config struct {
	LogLevel   string `yaml:"log_level" json:"log_level" mapstructure:"log_level"`
	LabelsPath string `yaml:"labels_path" json:"labels_path" mapstructure:"labels_path"`

	// Debug enables the preview window.
	Debug bool `yaml:"debug" json:"debug" mapstructure:"debug"`

	Camera      camera.Config      `yaml:"camera" json:"camera" mapstructure:"camera"`
	Inference   inference.Config   `yaml:"inference" json:"inference" mapstructure:"inference"`
	Servo       servo.Config       `yaml:"servo" json:"servo" mapstructure:"servo"`
	Calibration calibration.Config `yaml:"calibration" json:"calibration" mapstructure:"calibration"`
	Dispatch    dispatch.Config    `yaml:"dispatch" json:"dispatch" mapstructure:"dispatch"`
	Metrics     metrics.Config     `yaml:"metrics" json:"metrics" mapstructure:"metrics"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		LogLevel:    "info",
		LabelsPath:  DefaultLabelsPath,
		Camera:      camera.DefaultConfig(),
		Inference:   inference.DefaultConfig(),
		Servo:       servo.DefaultConfig(),
		Calibration: calibration.DefaultConfig(),
		Dispatch:    dispatch.DefaultConfig(),
		Metrics:     metrics.DefaultConfig(),
	}
}

// envKeys maps environment variables onto config paths.
var envKeys = map[string][]string{
	"SMARTBIN_LOG_LEVEL":             {"log_level"},
	"SMARTBIN_LABELS":                {"labels_path"},
	"SMARTBIN_DEBUG":                 {"debug"},
	"SMARTBIN_CAMERA_DEVICE":         {"camera", "device"},
	"SMARTBIN_MODEL":                 {"inference", "model_path"},
	"SMARTBIN_MODEL_DTYPE":           {"inference", "dtype"},
	"SMARTBIN_MODEL_LAYOUT":          {"inference", "layout"},
	"SMARTBIN_SERVO_BACKEND":         {"servo", "backend"},
	"SMARTBIN_SERVO_PORT":            {"servo", "port"},
	"SMARTBIN_SERVO_DWELL":           {"servo", "dwell"},
	"SMARTBIN_SERVO_CONNECT_TIMEOUT": {"servo", "connect_timeout"},
	"SMARTBIN_CALIBRATION_BACKEND":   {"calibration", "backend"},
	"SMARTBIN_CALIBRATION_PATH":      {"calibration", "path"},
	"SMARTBIN_REDIS_ADDR":            {"calibration", "redis_addr"},
	"SMARTBIN_IDLE_INTERVAL":         {"dispatch", "idle_interval"},
	"SMARTBIN_MAX_CONSECUTIVE_DROPS": {"dispatch", "max_consecutive_drops"},
	"SMARTBIN_METRICS_ADDR":          {"metrics", "addr"},
}

// Load reads path (if non-empty) on top of the defaults and applies
// environment overrides.
func Load(path string) (Config, error) {
	if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", DefaultEnvFile, err)
	}

	raw := map[string]any{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}
	applyEnv(raw, os.LookupEnv)

	return Decode(raw)
}

// Decode merges raw over the defaults.
func Decode(raw map[string]any) (Config, error) {
	cfg := Default()

	// Lists and class maps replace the defaults rather than merging into
	// them.
	if s, ok := raw["servo"].(map[string]any); ok {
		if _, ok := s["actuators"]; ok {
			cfg.Servo.Actuators = nil
		}
		if _, ok := s["classes"]; ok {
			cfg.Servo.Classes = nil
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			stringToNamedString,
		),
	})
	if err != nil {
		return Config{}, err
	}
	if err := dec.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	for i := range cfg.Servo.Actuators {
		a := &cfg.Servo.Actuators[i]
		if a.MinAngle == 0 && a.MaxAngle == 0 {
			a.MinAngle, a.MaxAngle = -180, 180
		}
	}
	return cfg, nil
}

// stringToNamedString lower-cases values bound for string-kinded enums such
// as servo.Backend or inference.DType.
func stringToNamedString(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.String || to.PkgPath() == "" {
		return data, nil
	}
	return strings.ToLower(strings.TrimSpace(data.(string))), nil
}

func applyEnv(raw map[string]any, lookup func(string) (string, bool)) {
	for key, path := range envKeys {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		m := raw
		for _, p := range path[:len(path)-1] {
			next, ok := m[p].(map[string]any)
			if !ok {
				next = map[string]any{}
				m[p] = next
			}
			m = next
		}
		m[path[len(path)-1]] = v
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	var errs []string
	errs = append(errs, c.Camera.Validate()...)

	if c.LabelsPath == "" {
		errs = append(errs, "labels_path must not be empty")
	}
	if c.Inference.ModelPath == "" {
		errs = append(errs, "inference model_path must not be empty")
	}
	if _, err := c.Inference.Contract(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Servo.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.Calibration.Backend {
	case calibration.BackendFile:
		if c.Calibration.Path == "" {
			errs = append(errs, "calibration path must not be empty")
		}
	case calibration.BackendRedis:
		if c.Calibration.RedisAddr == "" {
			errs = append(errs, "calibration redis_addr must not be empty")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown calibration backend %q", c.Calibration.Backend))
	}
	if c.Dispatch.IdleInterval < 0 {
		errs = append(errs, "dispatch idle_interval must not be negative")
	}
	if c.Dispatch.MaxConsecutiveDrops < 0 {
		errs = append(errs, "dispatch max_consecutive_drops must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}
