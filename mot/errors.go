package mot

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidDetection is returned for detections which must not reach association (degenerate or out-of-frame boxes, bad confidence)
	ErrInvalidDetection = errors.New("invalid detection")
	// ErrInvalidMeasurement is returned by MotionModel.Update for non-positive area measurements
	ErrInvalidMeasurement = errors.New("invalid measurement")
	// ErrDegeneratePrediction is returned by MotionModel.Predict when predicted scale collapses
	ErrDegeneratePrediction = errors.New("degenerate prediction")
	// ErrOutOfOrderFrame is returned when frame index is not greater than previous one
	ErrOutOfOrderFrame = errors.New("out of order frame")
	// ErrUnknownMotionModel is returned for unsupported motion model kinds
	ErrUnknownMotionModel = errors.New("unknown motion model")
	// ErrInvalidConfig is returned when tracker configuration can't be used
	ErrInvalidConfig = errors.New("invalid tracker config")
	// ErrInvalidCheckpoint is returned when checkpoint can't be restored
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
)
