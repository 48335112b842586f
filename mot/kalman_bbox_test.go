package mot

import (
	"math"
	"testing"

	"github.com/pkg/errors"
)

func TestKalmanBBoxModelStationary(t *testing.T) {
	bbox := NewRect(100, 100, 50, 80)
	model := NewKalmanBBoxModel(bbox)
	for i := 0; i < 10; i++ {
		predicted, err := model.Predict()
		if err != nil {
			t.Fatalf("Iteration %d: %v", i, err)
		}
		if !rectsAlmostEqual(predicted, bbox, 1.0) {
			t.Fatalf("Iteration %d: prediction drifted: %+v", i, predicted)
		}
		if err := model.Update(bbox); err != nil {
			t.Fatalf("Iteration %d: %v", i, err)
		}
	}
	if !rectsAlmostEqual(model.BBox(), bbox, 1.0) {
		t.Errorf("Expected %+v, got %+v", bbox, model.BBox())
	}
}

func TestKalmanBBoxModelSizeTracking(t *testing.T) {
	model := NewKalmanBBoxModel(NewRect(100, 100, 50, 50))
	for i := 1; i <= 10; i++ {
		size := 50.0 + float64(i)*5
		model.Predict()
		if err := model.Update(NewRect(100, 100, size, size)); err != nil {
			t.Fatal(err)
		}
	}
	state := model.State()
	if len(state.Mean) != 8 {
		t.Fatalf("Expected 8 elements in state, got %d", len(state.Mean))
	}
	vw, vh := state.Mean[6], state.Mean[7]
	if vw <= 0 || vh <= 0 {
		t.Errorf("Growing box must have positive size velocity, got vw=%f, vh=%f", vw, vh)
	}
	if math.Abs(model.BBox().Width-100) > 10 {
		t.Errorf("Expected width close to 100, got %f", model.BBox().Width)
	}
}

func TestKalmanBBoxModelInvalidMeasurement(t *testing.T) {
	model := NewKalmanBBoxModel(NewRect(0, 0, 10, 10))
	err := model.Update(NewRect(0, 0, 10, 0))
	if !errors.Is(err, ErrInvalidMeasurement) {
		t.Fatalf("Expected ErrInvalidMeasurement, got %v", err)
	}
}

func TestKalmanBBoxModelRestore(t *testing.T) {
	model := NewKalmanBBoxModel(NewRect(10, 20, 30, 40))
	restored, err := RestoreMotionModel(model.State(), 1.0)
	if err != nil {
		t.Fatal(err)
	}
	if !rectsAlmostEqual(restored.BBox(), model.BBox(), eps) {
		t.Errorf("Expected %+v, got %+v", model.BBox(), restored.BBox())
	}
	_, err = RestoreMotionModel(MotionState{Kind: MotionModelBBox, Mean: []float64{0, 0, -1, 5}}, 1.0)
	if !errors.Is(err, ErrInvalidCheckpoint) {
		t.Errorf("Expected ErrInvalidCheckpoint, got %v", err)
	}
}
