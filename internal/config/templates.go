package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "bypass":
		return bypassTemplate, nil
	case "calibration":
		return calibrationTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o644)
}

const bypassTemplate = `name = "crg"
reference_hz = 125e6
system_clock_hz = 125e6
bringup_clock_hz = 200e6
with_calibration = false
stage1_delay = 63
stage2_delay = 63
lock_ticks = 100
`

const calibrationTemplate = `name = "crg"
reference_hz = 125e6
system_clock_hz = 125e6
bringup_clock_hz = 200e6
with_calibration = true
calibration_settle_ticks = 32
stage1_delay = 63
stage2_delay = 63
lock_ticks = 100
max_output_hz = 1440e6
bringup_domain = "clk200"
primary_domain = "sys"
handoff_domain = "ic"

[[domains]]
name = "sys4x"
hz = 500e6
reset_less = true

[[domains]]
name = "clk200"
hz = 200e6
with_reset = true

[[domains]]
name = "sys"
source = "sys4x"
divide = 4

[[domains]]
name = "ic"
source = "sys4x"
divide = 4
`
