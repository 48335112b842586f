package mot

import (
	"math"

	"github.com/pkg/errors"
)

// Config holds parameters of SORTTracker
type Config struct {
	// Maximum number of consecutive frames without match before track is deleted
	MaxAge int `json:"max_age"`
	// Number of hits needed to confirm track
	MinHits int `json:"min_hits"`
	// Minimum IoU between predicted box and detection to be matched
	IoUThreshold float64 `json:"iou_threshold"`
	// Algorithm to use for matching
	Algorithm MatchingAlgorithm `json:"algorithm"`
	// Motion model of every track
	MotionModel MotionModelKind `json:"motion_model"`
	// Time step between frames
	Dt float64 `json:"dt"`
	// Detections with lower confidence are dropped before association
	MinConfidence float64 `json:"min_confidence"`
	// Frame size. When both are positive, detections outside of frame are rejected
	FrameWidth  float64 `json:"frame_width"`
	FrameHeight float64 `json:"frame_height"`
	// Max length of center trail stored per track. Zero disables trails
	MaxTrackLen int `json:"max_track_len"`
}

// DefaultConfig returns default parameters: max_age=1, min_hits=3, iou_threshold=0.3, Hungarian matching
func DefaultConfig() Config {
	return Config{
		MaxAge:        1,
		MinHits:       3,
		IoUThreshold:  0.3,
		Algorithm:     MatchingAlgorithmHungarian,
		MotionModel:   MotionModelSORT,
		Dt:            1.0,
		MinConfidence: 0.0,
		MaxTrackLen:   150,
	}
}

// Validate checks that configuration could be used by tracker
func (cfg Config) Validate() error {
	if cfg.MaxAge < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_age must be non-negative, got %d", cfg.MaxAge)
	}
	if cfg.MinHits < 1 {
		return errors.Wrapf(ErrInvalidConfig, "min_hits must be at least 1, got %d", cfg.MinHits)
	}
	if math.IsNaN(cfg.IoUThreshold) || cfg.IoUThreshold < 0 || cfg.IoUThreshold > 1 {
		return errors.Wrapf(ErrInvalidConfig, "iou_threshold must be in [0, 1], got %f", cfg.IoUThreshold)
	}
	if cfg.Algorithm != MatchingAlgorithmHungarian && cfg.Algorithm != MatchingAlgorithmGreedy {
		return errors.Wrapf(ErrInvalidConfig, "unknown matching algorithm %d", cfg.Algorithm)
	}
	if cfg.MotionModel != MotionModelSORT && cfg.MotionModel != MotionModelBBox {
		return errors.Wrapf(ErrUnknownMotionModel, "kind '%s'", cfg.MotionModel)
	}
	if !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 0) {
		return errors.Wrapf(ErrInvalidConfig, "dt must be positive, got %f", cfg.Dt)
	}
	if math.IsNaN(cfg.MinConfidence) || cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return errors.Wrapf(ErrInvalidConfig, "min_confidence must be in [0, 1], got %f", cfg.MinConfidence)
	}
	if cfg.FrameWidth < 0 || cfg.FrameHeight < 0 {
		return errors.Wrapf(ErrInvalidConfig, "frame size must be non-negative, got %fx%f", cfg.FrameWidth, cfg.FrameHeight)
	}
	if cfg.MaxTrackLen < 0 {
		return errors.Wrapf(ErrInvalidConfig, "max_track_len must be non-negative, got %d", cfg.MaxTrackLen)
	}
	return nil
}
