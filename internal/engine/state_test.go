package engine

import "testing"

func TestNoteRepeatReads(t *testing.T) {
	st := NewRunState(NewDocument("req"), 0)
	read := Action{Kind: KindReadFile, TargetPath: "a.go"}

	// First proposal: path not read yet, nothing counted.
	if st.NoteRepeatReads([]Action{read}) {
		t.Fatal("tripped before the path was ever read")
	}
	st.ReadFiles["a.go"] = true

	// Second batch re-requesting the same path.
	if st.NoteRepeatReads([]Action{read}) {
		t.Fatal("tripped after one repeat")
	}
	// Third batch trips the limit.
	if !st.NoteRepeatReads([]Action{read}) {
		t.Fatal("did not trip after the limit was reached")
	}
}

func TestNoteRepeatReads_IgnoresOtherKinds(t *testing.T) {
	st := NewRunState(NewDocument("req"), 0)
	st.ReadFiles["a.go"] = true

	edit := Action{Kind: KindEditFile, TargetPath: "a.go", Content: "x"}
	for i := 0; i < 5; i++ {
		if st.NoteRepeatReads([]Action{edit}) {
			t.Fatal("non-read actions must never trip the duplicate-read limit")
		}
	}
}

func TestConfigThresholds(t *testing.T) {
	cfg := DefaultConfig("p")
	if cfg.MaxIterations != DefaultMaxIterations {
		t.Errorf("MaxIterations = %d, want %d", cfg.MaxIterations, DefaultMaxIterations)
	}
	if got := cfg.warnThreshold(); got != 15 {
		t.Errorf("warnThreshold() = %d, want 15", got)
	}
	if got := cfg.forceThreshold(); got != 20 {
		t.Errorf("forceThreshold() = %d, want 20", got)
	}
}
