package record

import "testing"

func TestStatusIsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusQueued, false},
		{StatusProcessing, false},
		{StatusCompleted, true},
		{StatusFailed, true},
	}

	for _, tt := range tests {
		if got := tt.status.IsTerminal(); got != tt.terminal {
			t.Errorf("IsTerminal(%q) = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"queued to processing", StatusQueued, StatusProcessing, true},
		{"processing to queued", StatusProcessing, StatusQueued, true},
		{"processing to completed", StatusProcessing, StatusCompleted, true},
		{"queued to failed", StatusQueued, StatusFailed, true},
		{"completed to processing", StatusCompleted, StatusProcessing, false},
		{"completed to failed", StatusCompleted, StatusFailed, false},
		{"failed to queued", StatusFailed, StatusQueued, false},
		{"failed to completed", StatusFailed, StatusCompleted, false},
		{"processing to processing", StatusProcessing, StatusProcessing, true},
		{"completed to completed", StatusCompleted, StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
