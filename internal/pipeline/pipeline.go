package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/LdDl/sort-go/internal/metrics"
	"github.com/LdDl/sort-go/mot"
)

// Frame is a set of detections found on a single frame
type Frame struct {
	Index      int64
	Detections []mot.Detection
}

// Result is the tracker output for a single frame
type Result struct {
	RunID   string
	Frame   int64
	Objects []mot.TrackedObject
}

// outcome carries tracker output to the sink stage. Either field may be nil
type outcome struct {
	result     *Result
	checkpoint *mot.Checkpoint
}

// Source produces frames in order. io.EOF terminates the stream
type Source interface {
	Next(ctx context.Context) (Frame, error)
}

// Sink consumes tracker results
type Sink interface {
	Consume(ctx context.Context, result Result) error
}

// Checkpointer persists tracker state
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, runID string, cp mot.Checkpoint) error
}

// Options of the pipeline. Zero values are replaced with defaults
type Options struct {
	RunID           string
	BufferSize      int
	CheckpointEvery int
	Checkpointer    Checkpointer
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
}

// Summary describes finished run
type Summary struct {
	RunID          string
	Frames         int64
	RejectedFrames int64
	Detections     int64
	Emitted        int64
	Checkpoints    int
	Elapsed        time.Duration
	FPS            float64
	Tracker        mot.TrackerStats
}

// Pipeline moves frames from Source through SORTTracker into Sink.
// Source, tracker and sink run in separate goroutines connected by buffered channels.
type Pipeline struct {
	tracker *mot.SORTTracker
	source  Source
	sink    Sink
	opts    Options
	logger  *zap.Logger
}

// New creates pipeline. Tracker may already hold state restored from checkpoint
func New(tracker *mot.SORTTracker, source Source, sink Sink, opts Options) *Pipeline {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		tracker: tracker,
		source:  source,
		sink:    sink,
		opts:    opts,
		logger:  logger.With(zap.String("run_id", opts.RunID)),
	}
}

// RunID returns identifier of the run used for checkpoints and published results
func (p *Pipeline) RunID() string {
	return p.opts.RunID
}

// Run processes frames until source is exhausted, context is cancelled or any stage fails.
// Checkpoints are saved by the sink stage once results up to their frame are consumed.
// The final checkpoint is saved after the last frame.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	summary := Summary{RunID: p.opts.RunID}
	started := time.Now()

	if p.opts.Metrics != nil {
		p.opts.Metrics.Baseline(p.tracker.Stats())
	}

	g, gctx := errgroup.WithContext(ctx)
	frames := make(chan Frame, p.opts.BufferSize)
	results := make(chan outcome, p.opts.BufferSize)

	g.Go(func() error {
		defer close(frames)
		for {
			frame, err := p.source.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read frame: %w", err)
			}
			select {
			case frames <- frame:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	g.Go(func() error {
		defer close(results)
		sinceCheckpoint := 0
		for frame := range frames {
			summary.Detections += int64(len(frame.Detections))
			begin := time.Now()
			objects, err := p.tracker.Update(frame.Index, frame.Detections)
			if errors.Is(err, mot.ErrOutOfOrderFrame) {
				summary.RejectedFrames++
				p.logger.Warn("skip frame", zap.Int64("frame", frame.Index), zap.Error(err))
				if p.opts.Metrics != nil {
					p.opts.Metrics.ObserveRejected(p.tracker.Stats())
				}
				continue
			}
			if err != nil {
				return fmt.Errorf("update tracker on frame %d: %w", frame.Index, err)
			}
			summary.Frames++
			summary.Emitted += int64(len(objects))
			if p.opts.Metrics != nil {
				p.opts.Metrics.ObserveFrame(p.tracker.Stats(), time.Since(begin))
			}

			out := outcome{result: &Result{RunID: p.opts.RunID, Frame: frame.Index, Objects: objects}}
			sinceCheckpoint++
			if p.opts.Checkpointer != nil && p.opts.CheckpointEvery > 0 && sinceCheckpoint >= p.opts.CheckpointEvery {
				cp := p.tracker.Checkpoint()
				out.checkpoint = &cp
				sinceCheckpoint = 0
			}
			select {
			case results <- out:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}
		if p.opts.Checkpointer != nil && sinceCheckpoint > 0 {
			cp := p.tracker.Checkpoint()
			select {
			case results <- outcome{checkpoint: &cp}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	// Checkpoint is persisted only after every result up to its frame has been consumed
	g.Go(func() error {
		for out := range results {
			if out.result != nil {
				if err := p.sink.Consume(gctx, *out.result); err != nil {
					if p.opts.Metrics != nil {
						p.opts.Metrics.PublishErrors.Inc()
					}
					return fmt.Errorf("consume frame %d: %w", out.result.Frame, err)
				}
			}
			if out.checkpoint != nil {
				if err := p.saveCheckpoint(gctx, *out.checkpoint); err != nil {
					return err
				}
				summary.Checkpoints++
			}
		}
		return nil
	})

	err := g.Wait()
	summary.Elapsed = time.Since(started)
	if summary.Elapsed > 0 {
		summary.FPS = float64(summary.Frames) / summary.Elapsed.Seconds()
	}
	summary.Tracker = p.tracker.Stats()
	if err != nil {
		return summary, err
	}
	p.logger.Info("pipeline finished",
		zap.Int64("frames", summary.Frames),
		zap.Int64("rejected_frames", summary.RejectedFrames),
		zap.Int64("emitted", summary.Emitted),
		zap.Float64("fps", summary.FPS),
	)
	return summary, nil
}

func (p *Pipeline) saveCheckpoint(ctx context.Context, cp mot.Checkpoint) error {
	if err := p.opts.Checkpointer.SaveCheckpoint(ctx, p.opts.RunID, cp); err != nil {
		return fmt.Errorf("save checkpoint at frame %d: %w", cp.LastFrame, err)
	}
	if p.opts.Metrics != nil {
		p.opts.Metrics.CheckpointsSaved.Inc()
	}
	p.logger.Debug("checkpoint saved", zap.Int64("frame", cp.LastFrame), zap.Int("tracks", len(cp.Tracks)))
	return nil
}

// MultiSink fans result out to every sink in order
type MultiSink []Sink

// Consume implements Sink
func (sinks MultiSink) Consume(ctx context.Context, result Result) error {
	for _, sink := range sinks {
		if err := sink.Consume(ctx, result); err != nil {
			return err
		}
	}
	return nil
}

// SkipThrough drops frames with index not greater than last. It is used when resuming from checkpoint
func SkipThrough(src Source, last int64) Source {
	return &skipSource{src: src, last: last}
}

type skipSource struct {
	src  Source
	last int64
}

func (s *skipSource) Next(ctx context.Context) (Frame, error) {
	for {
		frame, err := s.src.Next(ctx)
		if err != nil {
			return frame, err
		}
		if frame.Index > s.last {
			return frame, nil
		}
	}
}

// SliceSource replays prepared frames
type SliceSource struct {
	frames []Frame
	pos    int
}

// NewSliceSource creates source over frames
func NewSliceSource(frames []Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next implements Source
func (src *SliceSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if src.pos >= len(src.frames) {
		return Frame{}, io.EOF
	}
	frame := src.frames[src.pos]
	src.pos++
	return frame, nil
}
