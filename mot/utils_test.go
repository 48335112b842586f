package mot

import (
	"math"
	"math/rand"
	"testing"
)

func TestIoUIdentical(t *testing.T) {
	rect := NewRectXYXY(10, 10, 50, 50)
	if iou := IoU(rect, rect); math.Abs(iou-1.0) > eps {
		t.Errorf("IoU of identical boxes must be 1, got %f", iou)
	}
}

func TestIoUDisjoint(t *testing.T) {
	r1 := NewRectXYXY(0, 0, 10, 10)
	r2 := NewRectXYXY(20, 20, 30, 30)
	if iou := IoU(r1, r2); iou != 0 {
		t.Errorf("IoU of disjoint boxes must be 0, got %f", iou)
	}
	// Touching edges do not overlap
	r3 := NewRectXYXY(10, 0, 20, 10)
	if iou := IoU(r1, r3); iou != 0 {
		t.Errorf("IoU of touching boxes must be 0, got %f", iou)
	}
}

func TestIoUKnownValue(t *testing.T) {
	r1 := NewRectXYXY(0, 0, 100, 100)
	r2 := NewRectXYXY(0, 0, 100, 80)
	if iou := IoU(r1, r2); math.Abs(iou-0.8) > eps {
		t.Errorf("Expected IoU 0.8, got %f", iou)
	}
	// Intersection 50x100 = 5000, union 15000
	r3 := NewRectXYXY(50, 0, 150, 100)
	if iou := IoU(r1, r3); math.Abs(iou-1.0/3.0) > eps {
		t.Errorf("Expected IoU 0.3333, got %f", iou)
	}
}

func TestIoUDegenerate(t *testing.T) {
	r1 := NewRectXYXY(0, 0, 100, 100)
	zero := NewRect(10, 10, 0, 0)
	if iou := IoU(r1, zero); iou != 0 {
		t.Errorf("IoU with zero-area box must be 0, got %f", iou)
	}
	if iou := IoU(zero, zero); iou != 0 {
		t.Errorf("IoU of two zero-area boxes must be 0, got %f", iou)
	}
}

func TestIoUSymmetricAndBounded(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	randomRect := func() Rectangle {
		return NewRect(rnd.Float64()*200-50, rnd.Float64()*200-50, rnd.Float64()*100, rnd.Float64()*100)
	}
	for i := 0; i < 1000; i++ {
		r1 := randomRect()
		r2 := randomRect()
		iou12 := IoU(r1, r2)
		iou21 := IoU(r2, r1)
		if iou12 != iou21 {
			t.Fatalf("IoU is not symmetric for %+v and %+v: %f vs %f", r1, r2, iou12, iou21)
		}
		if iou12 < 0 || iou12 > 1 {
			t.Fatalf("IoU %f out of [0, 1] for %+v and %+v", iou12, r1, r2)
		}
	}
}
