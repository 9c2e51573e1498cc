package domain

import (
	"strings"
	"testing"
)

func TestJobStatusTerminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusQueued, false},
		{JobStatusProcessing, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestTruncateError(t *testing.T) {
	short := "it broke"
	if got := TruncateError(short); got != short {
		t.Errorf("TruncateError(short) = %q", got)
	}

	long := strings.Repeat("e", MaxErrorDetailLen+100)
	if got := TruncateError(long); len([]rune(got)) != MaxErrorDetailLen {
		t.Errorf("truncated length = %d, want %d", len([]rune(got)), MaxErrorDetailLen)
	}

	// Truncation counts runes, not bytes.
	wide := strings.Repeat("界", MaxErrorDetailLen+5)
	if got := TruncateError(wide); len([]rune(got)) != MaxErrorDetailLen {
		t.Errorf("wide truncated rune length = %d, want %d", len([]rune(got)), MaxErrorDetailLen)
	}
}

func TestArtifactKey(t *testing.T) {
	got := ArtifactKey("abc-123", ViewRear)
	if got != "simulations/abc-123_rear.jpg" {
		t.Errorf("ArtifactKey = %q", got)
	}
}

func TestParameterValidation(t *testing.T) {
	if !ValidRegion("gluteal") || ValidRegion("femoral") {
		t.Error("ValidRegion misbehaves")
	}
	for _, s := range []string{ScenarioProjectionLevel1, ScenarioProjectionLevel2, ScenarioProjectionLevel3} {
		if !ValidScenario(s) {
			t.Errorf("ValidScenario(%q) = false", s)
		}
	}
	if ValidScenario("projection-level-4") {
		t.Error("ValidScenario accepted an unknown level")
	}
	if !ValidView(ViewRear) || !ValidView(ViewSide) || ValidView("top") {
		t.Error("ValidView misbehaves")
	}
}

func TestStringArrayRoundTrip(t *testing.T) {
	views := StringArray{"rear", "side"}
	v, err := views.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var decoded StringArray
	if err := decoded.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(decoded) != 2 || decoded[0] != "rear" || decoded[1] != "side" {
		t.Fatalf("decoded = %v", decoded)
	}

	var fromNil StringArray
	if err := fromNil.Scan(nil); err != nil {
		t.Fatalf("Scan(nil): %v", err)
	}
	if fromNil == nil || len(fromNil) != 0 {
		t.Fatalf("Scan(nil) = %v, want empty slice", fromNil)
	}
}

func TestArtifactMapRoundTrip(t *testing.T) {
	m := ArtifactMap{"rear": "simulations/j_rear.jpg"}
	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}

	var decoded ArtifactMap
	if err := decoded.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if decoded["rear"] != "simulations/j_rear.jpg" {
		t.Fatalf("decoded = %v", decoded)
	}
}
