package mot

import (
	"github.com/pkg/errors"
)

// CheckpointVersion is the version of checkpoint layout produced by this package
const CheckpointVersion = 1

// Checkpoint is serializable state of SORTTracker: configuration, identifier counter and every active track.
type Checkpoint struct {
	Version   int               `json:"version"`
	Config    Config            `json:"config"`
	NextID    uint64            `json:"next_id"`
	LastFrame int64             `json:"last_frame"`
	Started   bool              `json:"started"`
	Stats     TrackerStats      `json:"stats"`
	Tracks    []TrackCheckpoint `json:"tracks"`
}

// TrackCheckpoint is serializable state of a single track
type TrackCheckpoint struct {
	ID              uint64      `json:"id"`
	Status          string      `json:"status"`
	Hits            int         `json:"hits"`
	Age             int         `json:"age"`
	TimeSinceUpdate int         `json:"time_since_update"`
	ClassID         int         `json:"class_id"`
	ClassName       string      `json:"class_name,omitempty"`
	Confidence      float64     `json:"confidence"`
	Trail           []Point     `json:"trail,omitempty"`
	Motion          MotionState `json:"motion"`
}

// Checkpoint returns snapshot of full tracker state. It is taken between frame cycles
func (tracker *SORTTracker) Checkpoint() Checkpoint {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	cp := Checkpoint{
		Version:   CheckpointVersion,
		Config:    tracker.config,
		NextID:    tracker.nextID,
		LastFrame: tracker.lastFrame,
		Started:   tracker.started,
		Stats:     tracker.stats,
		Tracks:    make([]TrackCheckpoint, 0, len(tracker.tracks)),
	}
	for _, trk := range tracker.tracks {
		trail := make([]Point, len(trk.trail))
		copy(trail, trk.trail)
		cp.Tracks = append(cp.Tracks, TrackCheckpoint{
			ID:              trk.id,
			Status:          trk.lifecycle.Status.String(),
			Hits:            trk.lifecycle.Hits,
			Age:             trk.lifecycle.Age,
			TimeSinceUpdate: trk.lifecycle.TimeSinceUpdate,
			ClassID:         trk.classID,
			ClassName:       trk.className,
			Confidence:      trk.confidence,
			Trail:           trail,
			Motion:          trk.model.State(),
		})
	}
	return cp
}

// RestoreSORTTracker creates tracker from checkpoint. Tracker continues issuing identifiers from checkpoint's counter
func RestoreSORTTracker(cp Checkpoint) (*SORTTracker, error) {
	if cp.Version != CheckpointVersion {
		return nil, errors.Wrapf(ErrInvalidCheckpoint, "unsupported version %d", cp.Version)
	}
	if err := cp.Config.Validate(); err != nil {
		return nil, errors.Wrap(err, "Can't restore tracker config")
	}
	if cp.NextID == 0 {
		return nil, errors.Wrap(ErrInvalidCheckpoint, "next identifier must be positive")
	}
	tracker := newSORTTracker(cp.Config)
	tracker.nextID = cp.NextID
	tracker.lastFrame = cp.LastFrame
	tracker.started = cp.Started
	tracker.stats = cp.Stats
	var prevID uint64
	for i, saved := range cp.Tracks {
		if saved.ID == 0 || saved.ID >= cp.NextID {
			return nil, errors.Wrapf(ErrInvalidCheckpoint, "track identifier %d is out of range [1, %d)", saved.ID, cp.NextID)
		}
		if i > 0 && saved.ID <= prevID {
			return nil, errors.Wrapf(ErrInvalidCheckpoint, "track identifiers must be strictly increasing: %d after %d", saved.ID, prevID)
		}
		prevID = saved.ID
		status, ok := ParseTrackStatus(saved.Status)
		if !ok || status == TrackDeleted {
			return nil, errors.Wrapf(ErrInvalidCheckpoint, "track %d has unexpected status '%s'", saved.ID, saved.Status)
		}
		model, err := RestoreMotionModel(saved.Motion, cp.Config.Dt)
		if err != nil {
			return nil, errors.Wrapf(err, "Can't restore motion model of track %d", saved.ID)
		}
		trail := make([]Point, len(saved.Trail))
		copy(trail, saved.Trail)
		tracker.tracks = append(tracker.tracks, &track{
			id:    saved.ID,
			model: model,
			lifecycle: Lifecycle{
				Status:          status,
				Hits:            saved.Hits,
				Age:             saved.Age,
				TimeSinceUpdate: saved.TimeSinceUpdate,
			},
			classID:    saved.ClassID,
			className:  saved.ClassName,
			confidence: saved.Confidence,
			trail:      trail,
			maxTrail:   cp.Config.MaxTrackLen,
		})
	}
	return tracker, nil
}
