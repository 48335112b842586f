package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LdDl/sort-go/mot"
)

func openTestStore(t *testing.T) *CheckpointStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "checkpoints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func trackerAtFrame(t *testing.T, frames int64) *mot.SORTTracker {
	t.Helper()
	tracker := mot.DefaultSORTTracker()
	for frame := int64(1); frame <= frames; frame++ {
		_, err := tracker.Update(frame, []mot.Detection{
			mot.NewDetection(10, 10, 50, 50, 0.9, 0, "person"),
		})
		require.NoError(t, err)
	}
	return tracker
}

func TestSaveAndLatest(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, _, err := store.Latest(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	tracker := trackerAtFrame(t, 3)
	require.NoError(t, store.SaveCheckpoint(ctx, "run-a", tracker.Checkpoint()))
	_, err = tracker.Update(4, nil)
	require.NoError(t, err)
	require.NoError(t, store.SaveCheckpoint(ctx, "run-a", tracker.Checkpoint()))
	require.NoError(t, store.SaveCheckpoint(ctx, "run-b", trackerAtFrame(t, 1).Checkpoint()))

	cp, info, err := store.Latest(ctx, "run-a")
	require.NoError(t, err)
	assert.Equal(t, "run-a", info.RunID)
	assert.EqualValues(t, 4, info.Frame)
	assert.EqualValues(t, 4, cp.LastFrame)
	assert.Equal(t, 1, info.Tracks)
	assert.EqualValues(t, 2, info.NextID)
	assert.NotEmpty(t, info.ID)

	restored, err := mot.RestoreSORTTracker(cp)
	require.NoError(t, err)
	objects, err := restored.Update(5, []mot.Detection{mot.NewDetection(10, 10, 50, 50, 0.9, 0, "person")})
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.EqualValues(t, 1, objects[0].ID)

	_, info, err = store.Latest(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "run-b", info.RunID)

	_, _, err = store.Latest(ctx, "run-c")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAndPrune(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	tracker := mot.DefaultSORTTracker()
	for frame := int64(1); frame <= 5; frame++ {
		_, err := tracker.Update(frame, nil)
		require.NoError(t, err)
		require.NoError(t, store.SaveCheckpoint(ctx, "run", tracker.Checkpoint()))
	}

	infos, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 5)
	assert.EqualValues(t, 5, infos[0].Frame)
	assert.EqualValues(t, 1, infos[4].Frame)

	removed, err := store.Prune(ctx, "run", 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, removed)

	infos, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.EqualValues(t, 5, infos[0].Frame)
	assert.EqualValues(t, 4, infos[1].Frame)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SaveCheckpoint(ctx, "run", trackerAtFrame(t, 2).Checkpoint()))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	_, info, err := store.Latest(ctx, "run")
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.Frame)
}
