package model

import (
	"testing"
	"time"
)

func TestIdentity_Key(t *testing.T) {
	tests := []struct {
		identity Identity
		expected string
	}{
		{Identity{CourseID: "c1", VideoID: 42, VideoType: "vga", StartedAt: "2024-03-01"}, "c1|42|vga|2024-03-01"},
		{Identity{CourseID: "c1", VideoID: 42, VideoType: "main", StartedAt: "2024-03-01"}, "c1|42|main|2024-03-01"},
		{Identity{}, "|0||"},
	}

	for _, test := range tests {
		result := test.identity.Key()
		if result != test.expected {
			t.Errorf("Key() = %q, expected %q", result, test.expected)
		}
	}
}

func TestIdentity_DisplayTitle(t *testing.T) {
	tests := []struct {
		identity Identity
		expected string
	}{
		{Identity{CourseID: "c1", CourseName: "Signals", CourseTitle: "Lecture 3"}, "Lecture 3"},
		{Identity{CourseID: "c1", CourseName: "Signals"}, "Signals"},
		{Identity{CourseID: "c1"}, "c1"},
	}

	for _, test := range tests {
		result := test.identity.DisplayTitle()
		if result != test.expected {
			t.Errorf("DisplayTitle() = %q, expected %q", result, test.expected)
		}
	}
}

func TestState_Predicates(t *testing.T) {
	tests := []struct {
		name      string
		state     State
		active    bool
		terminal  bool
		cancelled bool
	}{
		{"waiting check", StateWaiting(WaitCheck, ""), true, false, false},
		{"uploading", StateUploading(0.5), true, false, false},
		{"transcoding", StateTranscoding(0.3, "MERGING"), true, false, false},
		{"finished", StateFinished("/download/abc", CheckpointMerged), false, true, false},
		{"error upload", StateError(ErrorUpload, "boom"), false, true, false},
		{"error cancelled", StateError(ErrorCancelled, "cancelled"), false, true, true},
	}

	for _, test := range tests {
		if got := test.state.Active(); got != test.active {
			t.Errorf("%s: Active() = %v, expected %v", test.name, got, test.active)
		}
		if got := test.state.Terminal(); got != test.terminal {
			t.Errorf("%s: Terminal() = %v, expected %v", test.name, got, test.terminal)
		}
		if got := test.state.Cancelled(); got != test.cancelled {
			t.Errorf("%s: Cancelled() = %v, expected %v", test.name, got, test.cancelled)
		}
	}
}

func TestStateFinished_Checkpoint(t *testing.T) {
	first := StateFinished("/download/abc", CheckpointMerged)
	if first.Checkpoint != CheckpointMerged {
		t.Errorf("Expected CheckpointMerged, got %v", first.Checkpoint)
	}
	if first.Progress != 1.0 {
		t.Errorf("Expected progress 1.0, got %v", first.Progress)
	}

	second := StateFinished("/download/abc", CheckpointDeepDone)
	if second.Checkpoint != CheckpointDeepDone {
		t.Errorf("Expected CheckpointDeepDone, got %v", second.Checkpoint)
	}
}

func TestTask_Creation(t *testing.T) {
	now := time.Now()
	task := &Task{
		ID:        "task-123",
		Identity:  Identity{CourseID: "c1", VideoID: 7},
		PartSize:  4 << 20,
		State:     StateWaiting(WaitCheck, ""),
		StartedAt: now,
	}

	if task.ID != "task-123" {
		t.Errorf("Expected ID to be 'task-123', got '%s'", task.ID)
	}

	if task.State.Phase != PhaseWaiting || task.State.Wait != WaitCheck {
		t.Errorf("Expected initial state Waiting{check}, got %+v", task.State)
	}

	if !task.StartedAt.Equal(now) {
		t.Errorf("Expected StartedAt to be %v, got %v", now, task.StartedAt)
	}
}
