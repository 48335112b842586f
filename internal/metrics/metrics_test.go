package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/sort-go/mot"
)

func TestObserveFrame(t *testing.T) {
	m := New()
	m.ObserveFrame(mot.TrackerStats{Detections: 3, TracksCreated: 3, ActiveTracks: 3}, time.Millisecond)
	m.ObserveFrame(mot.TrackerStats{Detections: 5, InvalidDetections: 1, TracksCreated: 4, TracksDeleted: 1, ActiveTracks: 3, ConfirmedTracks: 2}, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.FramesProcessed))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DetectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DetectionsDropped.WithLabelValues("invalid")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.TracksCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TracksDeleted))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ActiveTracks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ConfirmedTracks))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FrameDuration))
}

func TestBaseline(t *testing.T) {
	m := New()
	m.Baseline(mot.TrackerStats{Detections: 100, TracksCreated: 10, RejectedFrames: 2})
	m.ObserveRejected(mot.TrackerStats{Detections: 100, TracksCreated: 10, RejectedFrames: 3})
	m.ObserveFrame(mot.TrackerStats{Detections: 102, TracksCreated: 11, RejectedFrames: 3}, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DetectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TracksCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesRejected))
}

func TestHandler(t *testing.T) {
	m := New()
	m.CheckpointsSaved.Inc()

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := server.Client().Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "sort_checkpoints_saved_total 1")
	assert.Contains(t, string(body), "sort_frames_processed_total 0")
}
