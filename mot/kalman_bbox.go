package mot

import (
	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/pkg/errors"
)

const bboxStateDim = 8

// KalmanBBoxModel is a motion model using 8-D Kalman filter for full bounding box dynamics.
// State vector: [cx, cy, w, h, vx, vy, vw, vh] - center position, size, and velocities.
// It implements MotionModel interface.
type KalmanBBoxModel struct {
	bbox    Rectangle
	tracker *kalman_filter.KalmanBBox
}

// NewKalmanBBoxModel creates a new KalmanBBoxModel with default time step of 1.0.
func NewKalmanBBoxModel(bbox Rectangle) *KalmanBBoxModel {
	return NewKalmanBBoxModelWithTime(bbox, 1.0)
}

// NewKalmanBBoxModelWithTime creates a new KalmanBBoxModel with specified time step.
func NewKalmanBBoxModelWithTime(bbox Rectangle, dt float64) *KalmanBBoxModel {
	center := bbox.Center()
	return &KalmanBBoxModel{
		bbox:    bbox,
		tracker: newKalmanBBox(center.X, center.Y, bbox.Width, bbox.Height, dt),
	}
}

func newKalmanBBox(cx, cy, w, h, dt float64) *kalman_filter.KalmanBBox {
	// Kalman filter props
	uCx := 0.0
	uCy := 0.0
	uW := 0.0
	uH := 0.0
	stdDevA := 2.0
	stdDevMCx := 0.1
	stdDevMCy := 0.1
	stdDevMW := 0.1
	stdDevMH := 0.1
	return kalman_filter.NewKalmanBBox(
		dt, uCx, uCy, uW, uH,
		stdDevA, stdDevMCx, stdDevMCy, stdDevMW, stdDevMH,
		kalman_filter.WithStateBBox(cx, cy, w, h),
	)
}

// restoreKalmanBBoxModel re-seeds filter with saved center and size.
// Velocities and covariance are not restored: the underlying filter does not expose setters for them.
func restoreKalmanBBoxModel(state MotionState, dt float64) (*KalmanBBoxModel, error) {
	if len(state.Mean) < 4 {
		return nil, errors.Wrapf(ErrInvalidCheckpoint, "bbox state must have at least 4 elements, got %d", len(state.Mean))
	}
	cx, cy, w, h := state.Mean[0], state.Mean[1], state.Mean[2], state.Mean[3]
	bbox := newRectCenter(cx, cy, w, h)
	if !bbox.IsValid() {
		return nil, errors.Wrapf(ErrInvalidCheckpoint, "bbox state describes degenerate box %+v", bbox)
	}
	return NewKalmanBBoxModelWithTime(bbox, dt), nil
}

// Predict executes Kalman filter prediction step
func (model *KalmanBBoxModel) Predict() (Rectangle, error) {
	model.tracker.Predict()
	cx, cy, w, h := model.tracker.GetState()
	model.bbox = newRectCenter(cx, cy, w, h)
	if !model.bbox.IsValid() {
		return model.bbox, errors.Wrapf(ErrDegeneratePrediction, "width %f, height %f", w, h)
	}
	return model.bbox, nil
}

// Update executes Kalman filter update step with full bbox measurement
func (model *KalmanBBoxModel) Update(measurement Rectangle) error {
	if !measurement.IsValid() {
		return errors.Wrapf(ErrInvalidMeasurement, "box %+v", measurement)
	}
	center := measurement.Center()
	err := model.tracker.Update(center.X, center.Y, measurement.Width, measurement.Height)
	if err != nil {
		return errors.Wrap(err, "Can't update object tracker")
	}
	cx, cy, w, h := model.tracker.GetState()
	model.bbox = newRectCenter(cx, cy, w, h)
	return nil
}

// BBox returns smoothed bounding box
func (model *KalmanBBoxModel) BBox() Rectangle {
	return model.bbox
}

// Velocity returns center velocity estimate from Kalman filter
func (model *KalmanBBoxModel) Velocity() Point {
	vx, vy, _, _ := model.tracker.GetVelocity()
	return Point{X: vx, Y: vy}
}

// State returns [cx, cy, w, h, vx, vy, vw, vh]. Covariance is not exposed by the underlying filter.
func (model *KalmanBBoxModel) State() MotionState {
	cx, cy, w, h := model.tracker.GetState()
	vx, vy, vw, vh := model.tracker.GetVelocity()
	mean := make([]float64, 0, bboxStateDim)
	mean = append(mean, cx, cy, w, h, vx, vy, vw, vh)
	return MotionState{
		Kind: MotionModelBBox,
		Mean: mean,
	}
}
