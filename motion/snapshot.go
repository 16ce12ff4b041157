package motion

import (
	"fmt"
	"time"

	"github.com/edaniels/golog"
	"github.com/golang/geo/r2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/drivecore/drivecore/odometry"
)

// Snapshot is a diagnostic record of an arc drive and the controllers it runs.
type Snapshot struct {
	Time         time.Time
	LeftVoltage  float64
	RightVoltage float64
	DriveSensed  float64
	DriveTarget  float64
	CurveSensed  float64
	CurveTarget  float64
	Radius       float64
	TargetRadius float64
	Pose         odometry.Pose
	TargetPoint  r2.Point
}

// String formats the snapshot on one line: time, voltages, drive sensed/target,
// curve sensed/target, radius actual/target, x and y actual/target, heading.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"%.1f DL%.1f DR%.1f drive %3.1f/%3.1f curve %2.3f/%2.3f R %.1f/%.1f x %3.1f/%3.1f y %3.1f/%3.1f a %.1f",
		float64(s.Time.UnixMilli())/1000,
		s.LeftVoltage, s.RightVoltage,
		s.DriveSensed, s.DriveTarget,
		s.CurveSensed, s.CurveTarget,
		s.Radius, s.TargetRadius,
		s.Pose.X, s.TargetPoint.X,
		s.Pose.Y, s.TargetPoint.Y,
		s.Pose.Heading,
	)
}

// MarshalLogObject implements zapcore.ObjectMarshaler.
func (s Snapshot) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddTime("time", s.Time)
	enc.AddFloat64("left_voltage", s.LeftVoltage)
	enc.AddFloat64("right_voltage", s.RightVoltage)
	enc.AddFloat64("drive_sensed", s.DriveSensed)
	enc.AddFloat64("drive_target", s.DriveTarget)
	enc.AddFloat64("curve_sensed", s.CurveSensed)
	enc.AddFloat64("curve_target", s.CurveTarget)
	enc.AddFloat64("radius", s.Radius)
	enc.AddFloat64("target_radius", s.TargetRadius)
	enc.AddFloat64("x", s.Pose.X)
	enc.AddFloat64("target_x", s.TargetPoint.X)
	enc.AddFloat64("y", s.Pose.Y)
	enc.AddFloat64("target_y", s.TargetPoint.Y)
	enc.AddFloat64("heading", s.Pose.Heading)
	return nil
}

// LogSnapshot writes s at debug level.
func LogSnapshot(logger golog.Logger, s Snapshot) {
	logger.Desugar().Debug(s.String(), zap.Object("arc", s))
}
