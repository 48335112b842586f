package mot

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// SORTTracker is implementation of Multi-object tracker (MOT) called SORT (Simple Online and Realtime Tracking).
// Tracks are predicted by motion model, matched with detections by IoU and optimal assignment,
// and driven through Tentative -> Confirmed -> Deleted lifecycle.
//
// One call of Update is atomic: tracker is safe for concurrent use, but frames must come in order.
type SORTTracker struct {
	mu     sync.Mutex
	config Config
	engine *AssociationEngine
	// Active tracks sorted by identifier
	tracks    []*track
	nextID    uint64
	lastFrame int64
	started   bool
	stats     TrackerStats
	logger    *zap.Logger
}

// TrackerStats holds cumulative counters of the tracker
type TrackerStats struct {
	Frames             int64 `json:"frames"`
	RejectedFrames     int64 `json:"rejected_frames"`
	Detections         int64 `json:"detections"`
	InvalidDetections  int64 `json:"invalid_detections"`
	FilteredDetections int64 `json:"filtered_detections"`
	TracksCreated      int64 `json:"tracks_created"`
	TracksConfirmed    int64 `json:"tracks_confirmed"`
	TracksDeleted      int64 `json:"tracks_deleted"`
	ActiveTracks       int   `json:"active_tracks"`
	ConfirmedTracks    int   `json:"confirmed_tracks"`
}

// DefaultSORTTracker creates a SORTTracker with default parameters.
func DefaultSORTTracker() *SORTTracker {
	return newSORTTracker(DefaultConfig())
}

// NewSORTTracker creates a new instance of SORTTracker with specified parameters.
func NewSORTTracker(cfg Config) (*SORTTracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newSORTTracker(cfg), nil
}

func newSORTTracker(cfg Config) *SORTTracker {
	return &SORTTracker{
		config: cfg,
		engine: NewAssociationEngine(cfg.IoUThreshold, cfg.Algorithm),
		tracks: make([]*track, 0),
		nextID: 1,
		logger: zap.NewNop(),
	}
}

// SetLogger sets logger for tracker events. Nil disables logging
func (tracker *SORTTracker) SetLogger(logger *zap.Logger) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	if logger == nil {
		logger = zap.NewNop()
	}
	tracker.logger = logger
}

// Config returns tracker's configuration
func (tracker *SORTTracker) Config() Config {
	return tracker.config
}

// LastFrame returns index of last processed frame and false if no frames have been processed yet
func (tracker *SORTTracker) LastFrame() (int64, bool) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.lastFrame, tracker.started
}

// Stats returns copy of tracker's counters
func (tracker *SORTTracker) Stats() TrackerStats {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	stats := tracker.stats
	stats.ActiveTracks = len(tracker.tracks)
	for _, trk := range tracker.tracks {
		if trk.lifecycle.IsConfirmed() {
			stats.ConfirmedTracks++
		}
	}
	return stats
}

// MatchObjects processes detections as the frame next to the last processed one.
func (tracker *SORTTracker) MatchObjects(detections []Detection) ([]TrackedObject, error) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.update(tracker.lastFrame+1, detections)
}

// Update runs one full tracking cycle for the frame and returns confirmed tracks sorted by identifier.
// Frame index must be greater than index of previous frame, otherwise ErrOutOfOrderFrame is returned and state is not changed.
func (tracker *SORTTracker) Update(frameIndex int64, detections []Detection) ([]TrackedObject, error) {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	return tracker.update(frameIndex, detections)
}

func (tracker *SORTTracker) update(frameIndex int64, detections []Detection) ([]TrackedObject, error) {
	if tracker.started && frameIndex <= tracker.lastFrame {
		tracker.stats.RejectedFrames++
		tracker.logger.Warn("reject out of order frame", zap.Int64("frame", frameIndex), zap.Int64("last_frame", tracker.lastFrame))
		return nil, errors.Wrapf(ErrOutOfOrderFrame, "got frame %d after frame %d", frameIndex, tracker.lastFrame)
	}
	tracker.started = true
	tracker.lastFrame = frameIndex
	tracker.stats.Frames++

	valid := tracker.filterDetections(frameIndex, detections)

	// 1. Predict next positions for all existing tracks
	candidates := make([]*track, 0, len(tracker.tracks))
	predictedBBoxes := make([]Rectangle, 0, len(tracker.tracks))
	for _, trk := range tracker.tracks {
		trk.lifecycle.Tick()
		predicted, err := trk.model.Predict()
		if err != nil {
			// Degenerate tracks can't be matched: miss path and deletion right away
			tracker.logger.Debug("drop track with degenerate prediction", zap.Uint64("track_id", trk.id), zap.Int64("frame", frameIndex), zap.Error(err))
			trk.lifecycle.MarkMissed(tracker.config.MaxAge)
			trk.lifecycle.MarkDeleted()
			continue
		}
		candidates = append(candidates, trk)
		predictedBBoxes = append(predictedBBoxes, predicted)
	}

	// 2. Associate predictions with detections
	detectionBBoxes := make([]Rectangle, len(valid))
	for i := range valid {
		detectionBBoxes[i] = valid[i].BBox
	}
	association := tracker.engine.Associate(predictedBBoxes, detectionBBoxes)
	unmatchedTracks := append([]int{}, association.UnmatchedTracks...)
	unmatchedDetections := append([]int{}, association.UnmatchedDetections...)

	// 3. Update matched tracks
	for _, match := range association.Matches {
		trk := candidates[match.TrackIndex]
		err := trk.update(valid[match.DetectionIndex])
		if err != nil {
			tracker.logger.Debug("skip measurement", zap.Uint64("track_id", trk.id), zap.Int64("frame", frameIndex), zap.Error(err))
			unmatchedTracks = append(unmatchedTracks, match.TrackIndex)
			unmatchedDetections = append(unmatchedDetections, match.DetectionIndex)
			continue
		}
		if trk.lifecycle.MarkHit(tracker.config.MinHits) {
			tracker.stats.TracksConfirmed++
			tracker.logger.Debug("track confirmed", zap.Uint64("track_id", trk.id), zap.Int64("frame", frameIndex))
		}
	}

	// 4. Spawn new tracks for unmatched detections
	sort.Ints(unmatchedDetections)
	for _, detIdx := range unmatchedDetections {
		tracker.spawn(valid[detIdx], frameIndex)
	}

	// 5. Age unmatched tracks
	for _, trkIdx := range unmatchedTracks {
		trk := candidates[trkIdx]
		if trk.lifecycle.MarkMissed(tracker.config.MaxAge) {
			tracker.logger.Debug("track lost", zap.Uint64("track_id", trk.id), zap.Int64("frame", frameIndex), zap.Int("time_since_update", trk.lifecycle.TimeSinceUpdate))
		}
	}

	// 6. Remove deleted tracks
	alive := tracker.tracks[:0]
	for _, trk := range tracker.tracks {
		if trk.lifecycle.IsDeleted() {
			tracker.stats.TracksDeleted++
			continue
		}
		alive = append(alive, trk)
	}
	for i := len(alive); i < len(tracker.tracks); i++ {
		tracker.tracks[i] = nil
	}
	tracker.tracks = alive

	// 7. Emit confirmed tracks
	return tracker.confirmedSnapshot(frameIndex), nil
}

// filterDetections drops invalid and low-confidence detections
func (tracker *SORTTracker) filterDetections(frameIndex int64, detections []Detection) []Detection {
	valid := make([]Detection, 0, len(detections))
	for _, det := range detections {
		tracker.stats.Detections++
		if err := det.Validate(tracker.config.FrameWidth, tracker.config.FrameHeight); err != nil {
			tracker.stats.InvalidDetections++
			tracker.logger.Debug("skip invalid detection", zap.Int64("frame", frameIndex), zap.Error(err))
			continue
		}
		if det.Confidence < tracker.config.MinConfidence {
			tracker.stats.FilteredDetections++
			continue
		}
		valid = append(valid, det)
	}
	return valid
}

// spawn registers new tentative track. Identifiers are never reused
func (tracker *SORTTracker) spawn(det Detection, frameIndex int64) {
	model, err := NewMotionModel(tracker.config.MotionModel, det.BBox, tracker.config.Dt)
	if err != nil {
		tracker.logger.Debug("can't create track", zap.Int64("frame", frameIndex), zap.Error(err))
		return
	}
	trk := newTrack(tracker.nextID, det, model, tracker.config.MinHits, tracker.config.MaxTrackLen)
	tracker.nextID++
	tracker.tracks = append(tracker.tracks, trk)
	tracker.stats.TracksCreated++
	if trk.lifecycle.IsConfirmed() {
		tracker.stats.TracksConfirmed++
	}
	tracker.logger.Debug("track created", zap.Uint64("track_id", trk.id), zap.Int64("frame", frameIndex), zap.Int("class_id", det.ClassID))
}

func (tracker *SORTTracker) confirmedSnapshot(frameIndex int64) []TrackedObject {
	result := make([]TrackedObject, 0, len(tracker.tracks))
	for _, trk := range tracker.tracks {
		if trk.lifecycle.IsConfirmed() {
			result = append(result, trk.snapshot(frameIndex))
		}
	}
	return result
}

// GetActiveTracks returns snapshots of every non-deleted track (tentative included) sorted by identifier.
func (tracker *SORTTracker) GetActiveTracks() []TrackedObject {
	tracker.mu.Lock()
	defer tracker.mu.Unlock()
	result := make([]TrackedObject, 0, len(tracker.tracks))
	for _, trk := range tracker.tracks {
		result = append(result, trk.snapshot(tracker.lastFrame))
	}
	return result
}
