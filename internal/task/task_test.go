package task

import (
	"testing"
)

func TestStatusIsValid(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{StatusPlanning, true},
		{StatusInProgress, true},
		{StatusReview, true},
		{StatusCompleted, true},
		{Status("done"), false},
		{Status(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.want {
				t.Errorf("Status(%q).IsValid() = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	if !StatusCompleted.IsTerminal() {
		t.Error("StatusCompleted.IsTerminal() = false, want true")
	}
	for _, s := range []Status{StatusPlanning, StatusInProgress, StatusReview} {
		if s.IsTerminal() {
			t.Errorf("Status(%q).IsTerminal() = true, want false", s)
		}
	}
}

func TestValidStatuses(t *testing.T) {
	statuses := ValidStatuses()
	if len(statuses) != 4 {
		t.Fatalf("ValidStatuses() returned %d statuses, want 4", len(statuses))
	}
	if statuses[0] != StatusPlanning || statuses[3] != StatusCompleted {
		t.Errorf("ValidStatuses() = %v, want lifecycle order planning..completed", statuses)
	}
}

func TestDevTypeIsValid(t *testing.T) {
	tests := []struct {
		devType DevType
		want    bool
	}{
		{DevType(""), true},
		{DevTypeBackend, true},
		{DevTypeFrontend, true},
		{DevTypeFullstack, true},
		{DevTypeTest, true},
		{DevType("devops"), false},
		{DevType("Backend"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.devType), func(t *testing.T) {
			if got := tt.devType.IsValid(); got != tt.want {
				t.Errorf("DevType(%q).IsValid() = %v, want %v", tt.devType, got, tt.want)
			}
		})
	}
}

func TestDevTypeComposition(t *testing.T) {
	tests := []struct {
		devType      DevType
		wantBackend  bool
		wantFrontend bool
	}{
		{DevTypeBackend, true, false},
		{DevTypeTest, true, false},
		{DevTypeFrontend, false, true},
		{DevTypeFullstack, true, true},
		{DevType(""), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.devType), func(t *testing.T) {
			if got := tt.devType.NeedsBackend(); got != tt.wantBackend {
				t.Errorf("DevType(%q).NeedsBackend() = %v, want %v", tt.devType, got, tt.wantBackend)
			}
			if got := tt.devType.NeedsFrontend(); got != tt.wantFrontend {
				t.Errorf("DevType(%q).NeedsFrontend() = %v, want %v", tt.devType, got, tt.wantFrontend)
			}
		})
	}
}

func TestTaskPhase(t *testing.T) {
	plan := []string{"implement", "check", "debug"}
	tests := []struct {
		name         string
		currentPhase int
		nextAction   []string
		want         string
	}{
		{"first phase", 0, plan, "implement"},
		{"middle phase", 1, plan, "check"},
		{"last phase", 2, plan, "debug"},
		{"past the end", 3, plan, ""},
		{"negative", -1, plan, ""},
		{"empty plan", 0, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &Task{CurrentPhase: tt.currentPhase, NextAction: tt.nextAction}
			if got := task.Phase(); got != tt.want {
				t.Errorf("Phase() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTaskSlug(t *testing.T) {
	task := &Task{ID: "08-21-fix-login-bug"}
	if got := task.Slug(); got != "fix-login-bug" {
		t.Errorf("Slug() = %q, want %q", got, "fix-login-bug")
	}
}
