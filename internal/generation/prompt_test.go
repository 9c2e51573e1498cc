package generation

import (
	"strings"
	"testing"
)

func TestBuildPromptStrengthPerScenario(t *testing.T) {
	tests := []struct {
		scenario string
		want     float64
	}{
		{"projection-level-1", 0.40},
		{"projection-level-2", 0.50},
		{"projection-level-3", 0.60},
		{"unknown", defaultStrength},
	}
	for _, tt := range tests {
		got := buildPrompt(&Request{Region: "gluteal", Scenario: tt.scenario, View: "rear"})
		if got.Strength != tt.want {
			t.Errorf("strength for %s = %v, want %v", tt.scenario, got.Strength, tt.want)
		}
	}
}

func TestBuildPromptContent(t *testing.T) {
	cfg := buildPrompt(&Request{Region: "gluteal", Scenario: "projection-level-2", View: "side"})

	if !strings.Contains(cfg.Prompt, "gluteal") {
		t.Errorf("prompt missing region: %q", cfg.Prompt)
	}
	if !strings.Contains(cfg.Prompt, viewDescription["side"]) {
		t.Errorf("prompt missing view description: %q", cfg.Prompt)
	}
	if strings.Contains(cfg.Prompt, "\n") || strings.Contains(cfg.Prompt, "  ") {
		t.Errorf("prompt not whitespace-collapsed: %q", cfg.Prompt)
	}
	if cfg.NegativePrompt == "" {
		t.Error("negative prompt empty")
	}
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		name     string
		logs     string
		wantStep int
		wantTot  int
	}{
		{"empty", "", 0, 30},
		{"single", "5/30", 5, 30},
		{"latest wins", "1/30\n2/30\n17/30", 17, 30},
		{"noise ignored", "loading weights\n3/30\ndone batch", 3, 30},
		{"zero total skipped", "4/0", 0, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, total := parseProgress(tt.logs, 30)
			if step != tt.wantStep || total != tt.wantTot {
				t.Fatalf("parseProgress = (%d, %d), want (%d, %d)", step, total, tt.wantStep, tt.wantTot)
			}
		})
	}
}
