package styles

import (
	"strings"
	"testing"
)

func TestPhaseColor(t *testing.T) {
	tests := []struct {
		phase    string
		expected string
	}{
		{"uploading", "#60A5FA"},
		{"processing", "#10B981"},
		{"waiting_for_input", "#F59E0B"},
		{"completed", "#A78BFA"},
		{"requires_review", "#FB923C"},
		{"error", "#F87171"},
		{"deleted", "#6B7280"},
		{"unknown", "#9CA3AF"}, // Should fall back to MutedColor
	}

	for _, tt := range tests {
		t.Run(tt.phase, func(t *testing.T) {
			got := PhaseColor(tt.phase)
			if string(got) != tt.expected {
				t.Errorf("PhaseColor(%q) = %q, want %q", tt.phase, got, tt.expected)
			}
		})
	}
}

func TestPhaseIconAndLabel(t *testing.T) {
	tests := []struct {
		phase string
		icon  string
		label string
	}{
		{"uploading", "↑", "Uploading"},
		{"processing", "●", "Processing"},
		{"waiting_for_input", "?", "Waiting for input"},
		{"completed", "✓", "Completed"},
		{"requires_review", "!", "Requires review"},
		{"error", "✗", "Failed"},
		{"deleted", "⌫", "Deleted"},
		{"", "○", "Connecting"},
		{"bogus", "○", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.phase, func(t *testing.T) {
			if got := PhaseIcon(tt.phase); got != tt.icon {
				t.Errorf("PhaseIcon(%q) = %q, want %q", tt.phase, got, tt.icon)
			}
			if got := PhaseLabel(tt.phase); got != tt.label {
				t.Errorf("PhaseLabel(%q) = %q, want %q", tt.phase, got, tt.label)
			}
		})
	}
}

func TestBadge(t *testing.T) {
	got := Badge("completed")
	if !strings.Contains(got, "✓ Completed") {
		t.Errorf("Badge(completed) = %q, want it to contain the icon and label", got)
	}
}
