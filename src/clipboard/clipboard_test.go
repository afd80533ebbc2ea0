package clipboard

import (
	"errors"
	"testing"
)

func TestWrite(t *testing.T) {
	// Requires a desktop session; headless runners report ErrUnavailable.
	if err := Write("test text"); err != nil {
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("unexpected error: %v", err)
		}
		t.Logf("clipboard not available: %v", err)
	}
}

func TestWriteImageRejectsEmpty(t *testing.T) {
	if err := WriteImage(nil); err == nil {
		t.Fatal("expected error for empty image")
	}
}
