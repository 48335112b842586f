package mot

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
)

func TestCheckpointRestore(t *testing.T) {
	tracker := newTestTracker(t, 2, 2, 0.3)
	detections := []Detection{
		NewDetection(0, 0, 40, 40, 0.8, 0, "person"),
		NewDetection(200, 200, 260, 280, 0.7, 2, "car"),
	}
	for frame := int64(1); frame <= 4; frame++ {
		moved := make([]Detection, len(detections))
		for i, det := range detections {
			det.BBox.X += float64(frame) * 2
			moved[i] = det
		}
		if _, err := tracker.Update(frame, moved); err != nil {
			t.Fatal(err)
		}
	}

	data, err := json.Marshal(tracker.Checkpoint())
	if err != nil {
		t.Fatal(err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		t.Fatal(err)
	}
	restored, err := RestoreSORTTracker(cp)
	if err != nil {
		t.Fatal(err)
	}
	if last, ok := restored.LastFrame(); !ok || last != 4 {
		t.Errorf("Expected last frame 4, got %d", last)
	}

	next := []Detection{
		NewDetection(10, 0, 50, 40, 0.8, 0, "person"),
		NewDetection(210, 200, 270, 280, 0.7, 2, "car"),
		NewDetection(500, 500, 540, 540, 0.9, 1, "bicycle"),
	}
	expected, err := tracker.Update(5, next)
	if err != nil {
		t.Fatal(err)
	}
	actual, err := restored.Update(5, next)
	if err != nil {
		t.Fatal(err)
	}
	if len(expected) != len(actual) {
		t.Fatalf("Expected %d objects, got %d", len(expected), len(actual))
	}
	for i := range expected {
		if expected[i].ID != actual[i].ID || expected[i].BBox != actual[i].BBox || expected[i].Hits != actual[i].Hits {
			t.Errorf("Object %d differs: %+v vs %+v", i, expected[i], actual[i])
		}
	}
	// New identifiers continue from the saved counter
	activeExpected := tracker.GetActiveTracks()
	activeActual := restored.GetActiveTracks()
	if len(activeActual) != 3 || activeActual[2].ID != activeExpected[2].ID || activeActual[2].ID != 3 {
		t.Errorf("Unexpected active tracks: %+v", activeActual)
	}
	if activeActual[1].ClassName != "car" {
		t.Errorf("Class must survive checkpoint, got '%s'", activeActual[1].ClassName)
	}
}

func TestRestoreInvalidCheckpoint(t *testing.T) {
	tracker := newTestTracker(t, 1, 1, 0.3)
	if _, err := tracker.Update(1, []Detection{NewDetection(0, 0, 10, 10, 0.9, 0, "")}); err != nil {
		t.Fatal(err)
	}
	valid := tracker.Checkpoint()

	mutations := []func(cp *Checkpoint){
		func(cp *Checkpoint) { cp.Version = 99 },
		func(cp *Checkpoint) { cp.NextID = 0 },
		func(cp *Checkpoint) { cp.NextID = 1 },
		func(cp *Checkpoint) { cp.Tracks[0].Status = "deleted" },
		func(cp *Checkpoint) { cp.Tracks = append(cp.Tracks, cp.Tracks[0]) },
		func(cp *Checkpoint) { cp.Tracks[0].Motion.Mean = []float64{1} },
	}
	for i, mutate := range mutations {
		cp := valid
		cp.Tracks = append([]TrackCheckpoint{}, valid.Tracks...)
		mutate(&cp)
		if _, err := RestoreSORTTracker(cp); !errors.Is(err, ErrInvalidCheckpoint) {
			t.Errorf("Mutation %d: expected ErrInvalidCheckpoint, got %v", i, err)
		}
	}

	cp := valid
	cp.Config.MinHits = 0
	if _, err := RestoreSORTTracker(cp); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
}
