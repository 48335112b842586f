package mot

import (
	"github.com/pkg/errors"
)

// TrackStatus is the lifecycle state of a track
type TrackStatus uint8

const (
	// TrackTentative is a new track which has not collected enough hits yet. It is not reported
	TrackTentative TrackStatus = iota
	// TrackConfirmed is a stable track which is reported downstream
	TrackConfirmed
	// TrackDeleted is terminal state: track is removed at the end of the frame cycle
	TrackDeleted
)

// String returns lower-case status name
func (status TrackStatus) String() string {
	switch status {
	case TrackTentative:
		return "tentative"
	case TrackConfirmed:
		return "confirmed"
	case TrackDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// ParseTrackStatus converts status name into TrackStatus
func ParseTrackStatus(name string) (TrackStatus, bool) {
	switch name {
	case "tentative":
		return TrackTentative, true
	case "confirmed":
		return TrackConfirmed, true
	case "deleted":
		return TrackDeleted, true
	default:
		return TrackTentative, false
	}
}

// Lifecycle holds counters which drive Tentative -> Confirmed -> Deleted transitions
type Lifecycle struct {
	Status TrackStatus
	// Consecutive successful updates since creation or last miss
	Hits int
	// Frames since creation. Diagnostics only
	Age int
	// Frames since last successful update
	TimeSinceUpdate int
}

// NewLifecycle returns lifecycle of a track just created from a detection.
// Creation counts as the first hit.
func NewLifecycle(minHits int) Lifecycle {
	lc := Lifecycle{
		Status: TrackTentative,
		Hits:   1,
	}
	if lc.Hits >= minHits {
		lc.Status = TrackConfirmed
	}
	return lc
}

// Tick increments age. Must be called once per frame regardless of match outcome
func (lc *Lifecycle) Tick() {
	lc.Age++
}

// MarkHit registers successful match-update. Returns true if track has been confirmed by this hit
func (lc *Lifecycle) MarkHit(minHits int) bool {
	if lc.Status == TrackDeleted {
		return false
	}
	lc.Hits++
	lc.TimeSinceUpdate = 0
	if lc.Status == TrackTentative && lc.Hits >= minHits {
		lc.Status = TrackConfirmed
		return true
	}
	return false
}

// MarkMissed registers frame without match. Returns true if track has been deleted by this miss
func (lc *Lifecycle) MarkMissed(maxAge int) bool {
	if lc.Status == TrackDeleted {
		return false
	}
	lc.TimeSinceUpdate++
	lc.Hits = 0
	if lc.TimeSinceUpdate > maxAge {
		lc.Status = TrackDeleted
		return true
	}
	return false
}

// MarkDeleted moves track into terminal state. Returns false if track has been deleted already
func (lc *Lifecycle) MarkDeleted() bool {
	if lc.Status == TrackDeleted {
		return false
	}
	lc.Status = TrackDeleted
	return true
}

// IsConfirmed returns true for confirmed tracks
func (lc *Lifecycle) IsConfirmed() bool {
	return lc.Status == TrackConfirmed
}

// IsDeleted returns true for deleted tracks
func (lc *Lifecycle) IsDeleted() bool {
	return lc.Status == TrackDeleted
}

// MarshalText implements encoding.TextMarshaler
func (status TrackStatus) MarshalText() ([]byte, error) {
	return []byte(status.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (status *TrackStatus) UnmarshalText(text []byte) error {
	parsed, ok := ParseTrackStatus(string(text))
	if !ok {
		return errors.Errorf("unknown track status '%s'", string(text))
	}
	*status = parsed
	return nil
}
