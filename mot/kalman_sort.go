package mot

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	sortStateDim       = 7
	sortMeasurementDim = 4
)

var (
	// Measurement noise: scale and aspect ratio are much less reliable than center
	sortMeasurementNoise = mat.NewDiagDense(sortMeasurementDim, []float64{1, 1, 10, 10})
	// Process noise
	sortProcessNoise = mat.NewDiagDense(sortStateDim, []float64{1, 1, 1, 1, 0.01, 0.01, 0.0001})
	// Initial covariance: low uncertainty for observed terms, high for unobserved velocities
	sortInitialCovariance = []float64{10, 10, 10, 10, 10000, 10000, 10000}
	sortMeasurementMatrix = newSORTMeasurementMatrix()
	sortIdentity          = newIdentity(sortStateDim)
)

// KalmanSORT is constant velocity Kalman filter from SORT paper.
// State vector: [cx, cy, s, r, vcx, vcy, vs] - center, area (scale), aspect ratio and velocities.
// Aspect ratio is assumed to be constant. It implements MotionModel interface.
type KalmanSORT struct {
	x *mat.VecDense
	p *mat.Dense
	f *mat.Dense
}

// NewKalmanSORT creates a new KalmanSORT with default time step of 1.0.
func NewKalmanSORT(bbox Rectangle) *KalmanSORT {
	return NewKalmanSORTWithTime(bbox, 1.0)
}

// NewKalmanSORTWithTime creates a new KalmanSORT with specified time step.
// Velocities are initialized with zeros.
func NewKalmanSORTWithTime(bbox Rectangle, dt float64) *KalmanSORT {
	z := bboxToMeasurement(bbox)
	x := mat.NewVecDense(sortStateDim, []float64{z[0], z[1], z[2], z[3], 0, 0, 0})
	p := mat.NewDense(sortStateDim, sortStateDim, nil)
	for i, v := range sortInitialCovariance {
		p.Set(i, i, v)
	}
	return &KalmanSORT{
		x: x,
		p: p,
		f: newSORTTransition(dt),
	}
}

func restoreKalmanSORT(state MotionState, dt float64) (*KalmanSORT, error) {
	if len(state.Mean) != sortStateDim {
		return nil, errors.Wrapf(ErrInvalidCheckpoint, "SORT state must have %d elements, got %d", sortStateDim, len(state.Mean))
	}
	if len(state.Covariance) != sortStateDim*sortStateDim {
		return nil, errors.Wrapf(ErrInvalidCheckpoint, "SORT covariance must have %d elements, got %d", sortStateDim*sortStateDim, len(state.Covariance))
	}
	mean := make([]float64, sortStateDim)
	copy(mean, state.Mean)
	cov := make([]float64, sortStateDim*sortStateDim)
	copy(cov, state.Covariance)
	return &KalmanSORT{
		x: mat.NewVecDense(sortStateDim, mean),
		p: mat.NewDense(sortStateDim, sortStateDim, cov),
		f: newSORTTransition(dt),
	}, nil
}

// Predict executes Kalman filter prediction step: x = F*x, P = F*P*F^T + Q
func (kf *KalmanSORT) Predict() (Rectangle, error) {
	var x mat.VecDense
	x.MulVec(kf.f, kf.x)

	var fp, fpf, p mat.Dense
	fp.Mul(kf.f, kf.p)
	fpf.Mul(&fp, kf.f.T())
	p.Add(&fpf, sortProcessNoise)

	kf.x = &x
	kf.p = &p

	bbox := kf.BBox()
	if !bbox.IsValid() {
		return bbox, errors.Wrapf(ErrDegeneratePrediction, "scale %f, aspect ratio %f", kf.x.AtVec(2), kf.x.AtVec(3))
	}
	return bbox, nil
}

// Update executes Kalman filter correction step with the measured bounding box
func (kf *KalmanSORT) Update(measurement Rectangle) error {
	if !measurement.IsValid() {
		return errors.Wrapf(ErrInvalidMeasurement, "box %+v", measurement)
	}
	z := mat.NewVecDense(sortMeasurementDim, bboxToMeasurement(measurement))

	// Innovation y = z - H*x
	var hx, y mat.VecDense
	hx.MulVec(sortMeasurementMatrix, kf.x)
	y.SubVec(z, &hx)

	// Innovation covariance S = H*P*H^T + R
	var pht, hpht, s mat.Dense
	pht.Mul(kf.p, sortMeasurementMatrix.T())
	hpht.Mul(sortMeasurementMatrix, &pht)
	s.Add(&hpht, sortMeasurementNoise)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		if _, illConditioned := err.(mat.Condition); !illConditioned {
			return errors.Wrap(err, "Can't invert innovation covariance")
		}
	}

	// Kalman gain K = P*H^T*S^-1
	var k mat.Dense
	k.Mul(&pht, &sInv)

	var ky, x mat.VecDense
	ky.MulVec(&k, &y)
	x.AddVec(kf.x, &ky)

	// P = (I - K*H)*P
	var kh, ikh, p mat.Dense
	kh.Mul(&k, sortMeasurementMatrix)
	ikh.Sub(sortIdentity, &kh)
	p.Mul(&ikh, kf.p)

	for i := 0; i < sortStateDim; i++ {
		if !isFinite(x.AtVec(i)) {
			return errors.Wrap(ErrInvalidMeasurement, "non-finite state after correction")
		}
	}
	kf.x = &x
	kf.p = &p
	return nil
}

// BBox returns bounding box derived from current state.
// Zero-sized box is returned when scale or aspect ratio is not positive.
func (kf *KalmanSORT) BBox() Rectangle {
	return measurementToBBox(kf.x.AtVec(0), kf.x.AtVec(1), kf.x.AtVec(2), kf.x.AtVec(3))
}

// Velocity returns velocity of the center
func (kf *KalmanSORT) Velocity() Point {
	return Point{X: kf.x.AtVec(4), Y: kf.x.AtVec(5)}
}

// State returns copy of state vector and row-major covariance
func (kf *KalmanSORT) State() MotionState {
	mean := make([]float64, sortStateDim)
	for i := range mean {
		mean[i] = kf.x.AtVec(i)
	}
	cov := make([]float64, 0, sortStateDim*sortStateDim)
	for i := 0; i < sortStateDim; i++ {
		cov = append(cov, mat.Row(nil, i, kf.p)...)
	}
	return MotionState{
		Kind:       MotionModelSORT,
		Mean:       mean,
		Covariance: cov,
	}
}

// bboxToMeasurement converts box to [cx, cy, s, r]
func bboxToMeasurement(bbox Rectangle) []float64 {
	center := bbox.Center()
	return []float64{center.X, center.Y, bbox.Width * bbox.Height, bbox.Width / bbox.Height}
}

// measurementToBBox converts [cx, cy, s, r] back to box
func measurementToBBox(cx, cy, s, r float64) Rectangle {
	if !(s > 0) || !(r > 0) {
		return Rectangle{X: cx, Y: cy}
	}
	w := math.Sqrt(s * r)
	h := s / w
	return newRectCenter(cx, cy, w, h)
}

func newSORTTransition(dt float64) *mat.Dense {
	f := newIdentity(sortStateDim)
	f.Set(0, 4, dt)
	f.Set(1, 5, dt)
	f.Set(2, 6, dt)
	return f
}

func newSORTMeasurementMatrix() *mat.Dense {
	h := mat.NewDense(sortMeasurementDim, sortStateDim, nil)
	for i := 0; i < sortMeasurementDim; i++ {
		h.Set(i, i, 1)
	}
	return h
}

func newIdentity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}
