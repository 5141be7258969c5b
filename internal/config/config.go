package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/danmuck/crgctl/internal/clock"
	"github.com/danmuck/crgctl/internal/crg"
)

var ErrInvalidValue = errors.New("config: invalid value")

type fileConfig struct {
	Name                   string         `toml:"name"`
	ReferenceHz            float64        `toml:"reference_hz"`
	SystemClockHz          float64        `toml:"system_clock_hz"`
	BringUpClockHz         float64        `toml:"bringup_clock_hz"`
	WithCalibration        bool           `toml:"with_calibration"`
	Stage1Delay            int64          `toml:"stage1_delay"`
	Stage2Delay            int64          `toml:"stage2_delay"`
	CalibrationSettleTicks int64          `toml:"calibration_settle_ticks"`
	LockTicks              int64          `toml:"lock_ticks"`
	MaxOutputHz            float64        `toml:"max_output_hz"`
	BringUpDomain          string         `toml:"bringup_domain"`
	PrimaryDomain          string         `toml:"primary_domain"`
	HandoffDomain          string         `toml:"handoff_domain"`
	Domains                []domainConfig `toml:"domains"`
}

type domainConfig struct {
	Name      string  `toml:"name"`
	Hz        float64 `toml:"hz"`
	WithReset bool    `toml:"with_reset"`
	ResetLess bool    `toml:"reset_less"`
	Source    string  `toml:"source"`
	Divide    int     `toml:"divide"`
}

// envConfig holds CRGCTL_* overrides, one per scalar file key. Unset variables
// leave fields nil. The [[domains]] table can only come from a file.
type envConfig struct {
	Name                   *string  `env:"CRGCTL_NAME"`
	ReferenceHz            *float64 `env:"CRGCTL_REFERENCE_HZ"`
	SystemClockHz          *float64 `env:"CRGCTL_SYSTEM_CLOCK_HZ"`
	BringUpClockHz         *float64 `env:"CRGCTL_BRINGUP_CLOCK_HZ"`
	WithCalibration        *bool    `env:"CRGCTL_WITH_CALIBRATION"`
	Stage1Delay            *uint32  `env:"CRGCTL_STAGE1_DELAY"`
	Stage2Delay            *uint32  `env:"CRGCTL_STAGE2_DELAY"`
	CalibrationSettleTicks *int64   `env:"CRGCTL_CALIBRATION_SETTLE_TICKS"`
	LockTicks              *int64   `env:"CRGCTL_LOCK_TICKS"`
	MaxOutputHz            *float64 `env:"CRGCTL_MAX_OUTPUT_HZ"`
	BringUpDomain          *string  `env:"CRGCTL_BRINGUP_DOMAIN"`
	PrimaryDomain          *string  `env:"CRGCTL_PRIMARY_DOMAIN"`
	HandoffDomain          *string  `env:"CRGCTL_HANDOFF_DOMAIN"`
}

// Load resolves defaults, then the TOML file at path (if any), then the
// environment, and validates the result.
func Load(path string) (crg.Config, error) {
	cfg := crg.DefaultConfig()
	if strings.TrimSpace(path) != "" {
		var err error
		cfg, err = LoadFile(path, cfg)
		if err != nil {
			return crg.Config{}, err
		}
	}
	cfg, err := ApplyEnv(cfg)
	if err != nil {
		return crg.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return crg.Config{}, err
	}
	return cfg, nil
}

// LoadFile overlays the keys defined in the TOML file at path onto base.
func LoadFile(path string, base crg.Config) (crg.Config, error) {
	cfg := base

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return crg.Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return crg.Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidValue, undecoded[0].String(), path)
	}

	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("reference_hz") {
		cfg.ReferenceHz = clock.Hz(raw.ReferenceHz)
	}
	if meta.IsDefined("system_clock_hz") {
		cfg.SystemClockHz = clock.Hz(raw.SystemClockHz)
	}
	if meta.IsDefined("bringup_clock_hz") {
		cfg.BringUpClockHz = clock.Hz(raw.BringUpClockHz)
	}
	if meta.IsDefined("with_calibration") {
		cfg.WithCalibration = raw.WithCalibration
	}
	if meta.IsDefined("stage1_delay") {
		v, err := parseDelay("stage1_delay", raw.Stage1Delay)
		if err != nil {
			return crg.Config{}, err
		}
		cfg.Stage1Delay = v
	}
	if meta.IsDefined("stage2_delay") {
		v, err := parseDelay("stage2_delay", raw.Stage2Delay)
		if err != nil {
			return crg.Config{}, err
		}
		cfg.Stage2Delay = v
	}
	if meta.IsDefined("calibration_settle_ticks") {
		cfg.CalibrationSettleTicks = raw.CalibrationSettleTicks
	}
	if meta.IsDefined("lock_ticks") {
		cfg.LockTicks = raw.LockTicks
	}
	if meta.IsDefined("max_output_hz") {
		cfg.MaxOutputHz = clock.Hz(raw.MaxOutputHz)
	}
	if meta.IsDefined("bringup_domain") {
		cfg.BringUpDomain = strings.TrimSpace(raw.BringUpDomain)
	}
	if meta.IsDefined("primary_domain") {
		cfg.PrimaryDomain = strings.TrimSpace(raw.PrimaryDomain)
	}
	if meta.IsDefined("handoff_domain") {
		cfg.HandoffDomain = strings.TrimSpace(raw.HandoffDomain)
	}
	if meta.IsDefined("domains") {
		domains, err := parseDomains(raw.Domains)
		if err != nil {
			return crg.Config{}, err
		}
		cfg.Domains = domains
	}
	return cfg, nil
}

// ApplyEnv overlays CRGCTL_* environment variables onto cfg.
func ApplyEnv(cfg crg.Config) (crg.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return crg.Config{}, fmt.Errorf("parse env: %w", err)
	}
	if raw.Name != nil {
		cfg.Name = strings.TrimSpace(*raw.Name)
	}
	if raw.ReferenceHz != nil {
		cfg.ReferenceHz = clock.Hz(*raw.ReferenceHz)
	}
	if raw.SystemClockHz != nil {
		cfg.SystemClockHz = clock.Hz(*raw.SystemClockHz)
	}
	if raw.BringUpClockHz != nil {
		cfg.BringUpClockHz = clock.Hz(*raw.BringUpClockHz)
	}
	if raw.WithCalibration != nil {
		cfg.WithCalibration = *raw.WithCalibration
	}
	if raw.Stage1Delay != nil {
		cfg.Stage1Delay = *raw.Stage1Delay
	}
	if raw.Stage2Delay != nil {
		cfg.Stage2Delay = *raw.Stage2Delay
	}
	if raw.CalibrationSettleTicks != nil {
		cfg.CalibrationSettleTicks = *raw.CalibrationSettleTicks
	}
	if raw.LockTicks != nil {
		cfg.LockTicks = *raw.LockTicks
	}
	if raw.MaxOutputHz != nil {
		cfg.MaxOutputHz = clock.Hz(*raw.MaxOutputHz)
	}
	if raw.BringUpDomain != nil {
		cfg.BringUpDomain = strings.TrimSpace(*raw.BringUpDomain)
	}
	if raw.PrimaryDomain != nil {
		cfg.PrimaryDomain = strings.TrimSpace(*raw.PrimaryDomain)
	}
	if raw.HandoffDomain != nil {
		cfg.HandoffDomain = strings.TrimSpace(*raw.HandoffDomain)
	}
	return cfg, nil
}

func parseDelay(key string, v int64) (uint32, error) {
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s=%d", ErrInvalidValue, key, v)
	}
	return uint32(v), nil
}

func parseDomains(in []domainConfig) ([]clock.OutputSpec, error) {
	out := make([]clock.OutputSpec, 0, len(in))
	for i, d := range in {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: domains[%d] missing name", ErrInvalidValue, i)
		}
		if d.Divide < 0 {
			return nil, fmt.Errorf("%w: domains[%d] divide=%d", ErrInvalidValue, i, d.Divide)
		}
		out = append(out, clock.OutputSpec{
			Name:      name,
			Frequency: clock.Hz(d.Hz),
			WithReset: d.WithReset,
			ResetLess: d.ResetLess,
			Source:    strings.TrimSpace(d.Source),
			Divide:    d.Divide,
		})
	}
	return out, nil
}
