package mot

import (
	"github.com/pkg/errors"
)

// MotionModelKind is for choosing motion model of tracks
type MotionModelKind string

const (
	// MotionModelSORT is 7-D constant velocity Kalman filter over [cx, cy, area, aspect ratio] (classic SORT)
	MotionModelSORT MotionModelKind = "sort"
	// MotionModelBBox is 8-D Kalman filter over [cx, cy, w, h] and their velocities
	MotionModelBBox MotionModelKind = "bbox"
)

// MotionModel is per-track state estimator with predict/update cycle.
type MotionModel interface {
	// Predict advances state by one time step.
	// When predicted box collapses it returns ErrDegeneratePrediction alongside the degenerate box.
	Predict() (Rectangle, error)
	// Update fuses measurement into the state. Returns ErrInvalidMeasurement for non-positive area boxes.
	Update(measurement Rectangle) error
	// BBox returns bounding box derived from current state
	BBox() Rectangle
	// Velocity returns current velocity estimate of the center
	Velocity() Point
	// State returns copy of internal state vector and covariance
	State() MotionState
}

// MotionState is a serializable snapshot of motion model internals.
// Covariance is row-major and may be empty when model does not expose it.
type MotionState struct {
	Kind       MotionModelKind `json:"kind"`
	Mean       []float64       `json:"mean"`
	Covariance []float64       `json:"covariance,omitempty"`
}

// NewMotionModel creates motion model of given kind initialized from first detection box
func NewMotionModel(kind MotionModelKind, bbox Rectangle, dt float64) (MotionModel, error) {
	if !bbox.IsValid() {
		return nil, errors.Wrapf(ErrInvalidMeasurement, "can't initialize motion model from %+v", bbox)
	}
	switch kind {
	case MotionModelSORT, "":
		return NewKalmanSORTWithTime(bbox, dt), nil
	case MotionModelBBox:
		return NewKalmanBBoxModelWithTime(bbox, dt), nil
	default:
		return nil, errors.Wrapf(ErrUnknownMotionModel, "kind '%s'", kind)
	}
}

// RestoreMotionModel creates motion model from previously saved state
func RestoreMotionModel(state MotionState, dt float64) (MotionModel, error) {
	switch state.Kind {
	case MotionModelSORT, "":
		return restoreKalmanSORT(state, dt)
	case MotionModelBBox:
		return restoreKalmanBBoxModel(state, dt)
	default:
		return nil, errors.Wrapf(ErrUnknownMotionModel, "kind '%s'", state.Kind)
	}
}
