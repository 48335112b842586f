package mot

import (
	"math"

	"github.com/pkg/errors"
)

// Detection is a single object found by an external detector on one frame.
// Tracker does not care which detector produced it.
type Detection struct {
	BBox       Rectangle
	Confidence float64
	ClassID    int
	ClassName  string
}

// NewDetection creates detection from corners (x1, y1, x2, y2)
func NewDetection(x1, y1, x2, y2, confidence float64, classID int, className string) Detection {
	return Detection{
		BBox:       NewRectXYXY(x1, y1, x2, y2),
		Confidence: confidence,
		ClassID:    classID,
		ClassName:  className,
	}
}

// Validate checks whether detection could be passed to association step.
// Frame bounds are checked only when both frameWidth and frameHeight are positive.
func (det Detection) Validate(frameWidth, frameHeight float64) error {
	if !det.BBox.IsValid() {
		return errors.Wrapf(ErrInvalidDetection, "degenerate box %+v", det.BBox)
	}
	if math.IsNaN(det.Confidence) || det.Confidence < 0 || det.Confidence > 1 {
		return errors.Wrapf(ErrInvalidDetection, "confidence %f out of [0, 1]", det.Confidence)
	}
	if frameWidth > 0 && frameHeight > 0 {
		x1, y1, x2, y2 := det.BBox.XYXY()
		if x2 <= 0 || y2 <= 0 || x1 >= frameWidth || y1 >= frameHeight {
			return errors.Wrapf(ErrInvalidDetection, "box %+v is outside of %.0fx%.0f frame", det.BBox, frameWidth, frameHeight)
		}
	}
	return nil
}
