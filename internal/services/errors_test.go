package services_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/svidal-nlive/instrumental-audio-pipeline/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "splitting", "separate", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"splitting", "separate", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapNilMarkerDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "organizing", "move", "rename failed", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestDetailsStripsMarkerPrefix(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "upload", "validate", "file too large", nil)
	details := services.Details(err)
	if strings.Contains(details.Message, "validation error") {
		t.Fatalf("expected marker prefix stripped, got %q", details.Message)
	}
	if !strings.Contains(details.Message, "file too large") {
		t.Fatalf("expected message retained, got %q", details.Message)
	}
}

func TestDetailsNilError(t *testing.T) {
	if details := services.Details(nil); details.Message != "" {
		t.Fatalf("expected empty message for nil error, got %q", details.Message)
	}
}
