package mot

// track is a single object hypothesis owned by SORTTracker. It is never handed out by reference.
type track struct {
	id         uint64
	model      MotionModel
	lifecycle  Lifecycle
	classID    int
	className  string
	confidence float64
	trail      []Point
	maxTrail   int
}

func newTrack(id uint64, det Detection, model MotionModel, minHits, maxTrail int) *track {
	trk := &track{
		id:         id,
		model:      model,
		lifecycle:  NewLifecycle(minHits),
		classID:    det.ClassID,
		className:  det.ClassName,
		confidence: det.Confidence,
		trail:      make([]Point, 0, maxInt(maxTrail, 0)),
		maxTrail:   maxTrail,
	}
	trk.appendTrail(model.BBox().Center())
	return trk
}

// update fuses detection into the motion model and inherits its class
func (trk *track) update(det Detection) error {
	err := trk.model.Update(det.BBox)
	if err != nil {
		return err
	}
	trk.classID = det.ClassID
	trk.className = det.ClassName
	trk.confidence = det.Confidence
	trk.appendTrail(trk.model.BBox().Center())
	return nil
}

func (trk *track) appendTrail(pt Point) {
	if trk.maxTrail <= 0 {
		return
	}
	trk.trail = append(trk.trail, pt)
	if len(trk.trail) > trk.maxTrail {
		trk.trail = trk.trail[1:]
	}
}

// snapshot returns value copy of the track for downstream consumers
func (trk *track) snapshot(frameIndex int64) TrackedObject {
	trail := make([]Point, len(trk.trail))
	copy(trail, trk.trail)
	return TrackedObject{
		ID:              trk.id,
		BBox:            trk.model.BBox(),
		ClassID:         trk.classID,
		ClassName:       trk.className,
		Confidence:      trk.confidence,
		FrameIndex:      frameIndex,
		Status:          trk.lifecycle.Status,
		Hits:            trk.lifecycle.Hits,
		Age:             trk.lifecycle.Age,
		TimeSinceUpdate: trk.lifecycle.TimeSinceUpdate,
		Velocity:        trk.model.Velocity(),
		Trail:           trail,
	}
}

// TrackedObject is an immutable snapshot of a confirmed track emitted after each frame
type TrackedObject struct {
	ID              uint64      `json:"id"`
	BBox            Rectangle   `json:"bbox"`
	ClassID         int         `json:"class_id"`
	ClassName       string      `json:"class_name,omitempty"`
	Confidence      float64     `json:"confidence"`
	FrameIndex      int64       `json:"frame"`
	Status          TrackStatus `json:"status"`
	Hits            int         `json:"hits"`
	Age             int         `json:"age"`
	TimeSinceUpdate int         `json:"time_since_update"`
	Velocity        Point       `json:"velocity"`
	Trail           []Point     `json:"trail,omitempty"`
}

// PathLength returns length of the polyline through trail points
func (obj TrackedObject) PathLength() float64 {
	length := 0.0
	for i := 1; i < len(obj.Trail); i++ {
		length += euclideanDistance(obj.Trail[i-1], obj.Trail[i])
	}
	return length
}
