package testfixtures

import "testing"

func TestIDGenerator(t *testing.T) {
	t.Parallel()

	t.Run("sequential", func(t *testing.T) {
		t.Parallel()
		gen := NewIDGenerator("meeting")
		if peek := gen.Peek(); peek != "meeting-1" {
			t.Fatalf("expected peek meeting-1, got %q", peek)
		}
		if first, second := gen.Next(), gen.Next(); first != "meeting-1" || second != "meeting-2" {
			t.Fatalf("unexpected identifiers: %q, %q", first, second)
		}
	})

	t.Run("reset", func(t *testing.T) {
		t.Parallel()
		gen := NewIDGenerator("")
		_ = gen.Next()
		gen.SetCounter(0)
		gen.SetPrefix("block")
		if next := gen.NextFunc()(); next != "block-1" {
			t.Fatalf("expected block-1 after reset, got %q", next)
		}
	})
}
