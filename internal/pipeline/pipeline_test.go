package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/sort-go/internal/metrics"
	"github.com/LdDl/sort-go/mot"
)

type collectSink struct {
	mu      sync.Mutex
	results []Result
	failOn  int64
}

func (sink *collectSink) Consume(ctx context.Context, result Result) error {
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if sink.failOn != 0 && result.Frame == sink.failOn {
		return errors.New("sink is closed")
	}
	sink.results = append(sink.results, result)
	return nil
}

type memoryCheckpointer struct {
	mu     sync.Mutex
	saved  []mot.Checkpoint
	runIDs []string
}

func (m *memoryCheckpointer) SaveCheckpoint(ctx context.Context, runID string, cp mot.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, cp)
	m.runIDs = append(m.runIDs, runID)
	return nil
}

func stationaryFrames(from, to int64) []Frame {
	frames := make([]Frame, 0, to-from+1)
	for i := from; i <= to; i++ {
		frames = append(frames, Frame{
			Index: i,
			Detections: []mot.Detection{
				mot.NewDetection(10, 10, 50, 50, 0.9, 0, "person"),
				mot.NewDetection(200, 200, 260, 300, 0.8, 2, "car"),
			},
		})
	}
	return frames
}

func TestPipelineRun(t *testing.T) {
	tracker := mot.DefaultSORTTracker()
	sink := &collectSink{}
	checkpointer := &memoryCheckpointer{}
	m := metrics.New()

	p := New(tracker, NewSliceSource(stationaryFrames(1, 10)), sink, Options{
		RunID:           "run-1",
		BufferSize:      2,
		CheckpointEvery: 4,
		Checkpointer:    checkpointer,
		Metrics:         m,
	})
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.EqualValues(t, 10, summary.Frames)
	assert.EqualValues(t, 20, summary.Detections)
	// Both tracks are confirmed from the third frame on
	assert.EqualValues(t, 16, summary.Emitted)
	assert.Equal(t, 3, summary.Checkpoints)
	assert.EqualValues(t, 2, summary.Tracker.TracksCreated)

	require.Len(t, sink.results, 10)
	for i, result := range sink.results {
		assert.EqualValues(t, i+1, result.Frame)
		assert.Equal(t, "run-1", result.RunID)
	}
	assert.Empty(t, sink.results[1].Objects)
	require.Len(t, sink.results[2].Objects, 2)
	assert.EqualValues(t, 1, sink.results[2].Objects[0].ID)

	require.Len(t, checkpointer.saved, 3)
	assert.EqualValues(t, 4, checkpointer.saved[0].LastFrame)
	assert.EqualValues(t, 8, checkpointer.saved[1].LastFrame)
	assert.EqualValues(t, 10, checkpointer.saved[2].LastFrame)
	assert.Equal(t, []string{"run-1", "run-1", "run-1"}, checkpointer.runIDs)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.FramesProcessed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CheckpointsSaved))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConfirmedTracks))
}

func TestPipelineSkipsOutOfOrderFrames(t *testing.T) {
	frames := stationaryFrames(1, 3)
	frames = append(frames, Frame{Index: 2}, Frame{Index: 3})
	frames = append(frames, stationaryFrames(4, 5)...)

	sink := &collectSink{}
	p := New(mot.DefaultSORTTracker(), NewSliceSource(frames), sink, Options{})
	summary, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.EqualValues(t, 5, summary.Frames)
	assert.EqualValues(t, 2, summary.RejectedFrames)
	require.Len(t, sink.results, 5)
	assert.EqualValues(t, 5, sink.results[4].Frame)
	assert.Len(t, sink.results[4].Objects, 2)
}

func TestPipelineSinkError(t *testing.T) {
	sink := &collectSink{failOn: 3}
	p := New(mot.DefaultSORTTracker(), NewSliceSource(stationaryFrames(1, 100)), sink, Options{BufferSize: 1})
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sink is closed")
	assert.Len(t, sink.results, 2)
}

func TestPipelineSinkErrorKeepsCheckpointsBehindOutput(t *testing.T) {
	t.Run("periodic checkpoints", func(t *testing.T) {
		sink := &collectSink{failOn: 3}
		checkpointer := &memoryCheckpointer{}
		p := New(mot.DefaultSORTTracker(), NewSliceSource(stationaryFrames(1, 50)), sink, Options{
			BufferSize:      64,
			CheckpointEvery: 1,
			Checkpointer:    checkpointer,
		})
		summary, err := p.Run(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "consume frame 3")

		require.Len(t, sink.results, 2)
		require.Len(t, checkpointer.saved, 2)
		assert.EqualValues(t, 1, checkpointer.saved[0].LastFrame)
		assert.EqualValues(t, 2, checkpointer.saved[1].LastFrame)
		assert.Equal(t, 2, summary.Checkpoints)
	})
	t.Run("final checkpoint only", func(t *testing.T) {
		sink := &collectSink{failOn: 3}
		checkpointer := &memoryCheckpointer{}
		p := New(mot.DefaultSORTTracker(), NewSliceSource(stationaryFrames(1, 10)), sink, Options{
			BufferSize:   64,
			Checkpointer: checkpointer,
		})
		_, err := p.Run(context.Background())
		require.Error(t, err)
		assert.Len(t, sink.results, 2)
		assert.Empty(t, checkpointer.saved)
	})
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(mot.DefaultSORTTracker(), NewSliceSource(stationaryFrames(1, 10)), &collectSink{}, Options{})
	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipelineResume(t *testing.T) {
	checkpointer := &memoryCheckpointer{}
	first := New(mot.DefaultSORTTracker(), NewSliceSource(stationaryFrames(1, 5)), &collectSink{}, Options{Checkpointer: checkpointer})
	_, err := first.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, checkpointer.saved, 1)

	restored, err := mot.RestoreSORTTracker(checkpointer.saved[0])
	require.NoError(t, err)
	sink := &collectSink{}
	second := New(restored, NewSliceSource(stationaryFrames(6, 7)), sink, Options{})
	_, err = second.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sink.results, 2)
	require.Len(t, sink.results[0].Objects, 2)
	assert.EqualValues(t, 1, sink.results[0].Objects[0].ID)
	assert.EqualValues(t, 2, sink.results[0].Objects[1].ID)
}

func TestMultiSink(t *testing.T) {
	first := &collectSink{}
	second := &collectSink{}
	sinks := MultiSink{first, second}
	require.NoError(t, sinks.Consume(context.Background(), Result{Frame: 1}))
	assert.Len(t, first.results, 1)
	assert.Len(t, second.results, 1)
}

func TestSkipThrough(t *testing.T) {
	src := SkipThrough(NewSliceSource(stationaryFrames(1, 5)), 3)
	frame, err := src.Next(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, frame.Index)
	frame, err = src.Next(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 5, frame.Index)
	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
