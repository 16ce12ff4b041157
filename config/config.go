// Package config defines the drivetrain and controller configuration.
package config

import (
	"math"

	"github.com/pkg/errors"

	"github.com/drivecore/drivecore/components/drivetrain"
	"github.com/drivecore/drivecore/control"
	"github.com/drivecore/drivecore/motion"
	"github.com/drivecore/drivecore/odometry"
)

// Config describes the robot geometry, the control loop and the gains of every axis.
type Config struct {
	// TrackWidth is the track parameter L in inches: a wheel difference of d inches turns
	// the robot by d/(2L) radians.
	TrackWidth     float64      `json:"track_width"`
	TicksPerInch   float64      `json:"ticks_per_inch"`
	FrequencyHz    float64      `json:"frequency_hz"`
	TurnPowerLimit int          `json:"turn_power_limit"`
	SlewRate       float64      `json:"slew_rate"`
	InitialHeading float64      `json:"initial_heading"`
	XAxisDir       int          `json:"x_axis_dir"`
	RotationDir    int          `json:"rotation_dir"`
	PIDs           motion.Gains `json:"pids"`
	Sim            Sim          `json:"sim"`

	ConfigFilePath string `json:"-"`
}

// Sim configures the simulated drivetrain.
type Sim struct {
	MaxSpeed float64 `json:"max_speed_in_per_sec"`
}

// Default returns the configuration used when a file leaves a field out.
func Default() Config {
	return Config{
		TrackWidth:     6.982698,
		TicksPerInch:   41.69,
		FrequencyHz:    100,
		TurnPowerLimit: motion.DefaultTurnLimit,
		SlewRate:       control.DefaultSlewRate,
		InitialHeading: odometry.DefaultInitialHeading,
		XAxisDir:       1,
		RotationDir:    1,
		PIDs:           motion.DefaultGains(),
		Sim:            Sim{MaxSpeed: 40},
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.TrackWidth <= 0 {
		return fieldRequiredError(path, "track_width")
	}
	if cfg.TicksPerInch <= 0 {
		return fieldRequiredError(path, "ticks_per_inch")
	}
	if !(cfg.FrequencyHz > 0 && cfg.FrequencyHz <= motion.MaxFrequency) {
		return validationError(path, errors.Errorf("frequency_hz must be in (0, %v], got %v", motion.MaxFrequency, cfg.FrequencyHz))
	}
	if cfg.TurnPowerLimit <= 0 || cfg.TurnPowerLimit > drivetrain.MaxPower {
		return validationError(path, errors.Errorf("turn_power_limit must be in (0, %d], got %d", drivetrain.MaxPower, cfg.TurnPowerLimit))
	}
	if cfg.SlewRate < 0 || math.IsNaN(cfg.SlewRate) {
		return validationError(path, errors.Errorf("slew_rate must not be negative, got %v", cfg.SlewRate))
	}
	if math.IsNaN(cfg.InitialHeading) || math.IsInf(cfg.InitialHeading, 0) {
		return validationError(path, errors.New("initial_heading must be finite"))
	}
	for name, dir := range map[string]int{"x_axis_dir": cfg.XAxisDir, "rotation_dir": cfg.RotationDir} {
		if dir != 1 && dir != -1 {
			return validationError(path, errors.Errorf("%s must be 1 or -1, got %d", name, dir))
		}
	}
	if err := cfg.PIDs.Validate(); err != nil {
		return validationError(path+".pids", err)
	}
	if cfg.Sim.MaxSpeed < 0 {
		return validationError(path+".sim", errors.Errorf("max_speed_in_per_sec must not be negative, got %v", cfg.Sim.MaxSpeed))
	}
	return nil
}

func validationError(path string, err error) error {
	return errors.Wrapf(err, "error validating %q", path)
}

func fieldRequiredError(path, field string) error {
	return validationError(path, errors.Errorf("%q is required and must be positive", field))
}
