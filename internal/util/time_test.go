package util

import (
	"testing"
	"time"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		expected string
	}{
		{"zero", 0, "0s"},
		{"negative clamps to zero", -5 * time.Second, "0s"},
		{"seconds", 45 * time.Second, "45s"},
		{"whole minutes", 12 * time.Minute, "12m"},
		{"minutes drop seconds", 2*time.Minute + 30*time.Second, "2m"},
		{"hours with minutes", 2*time.Hour + 15*time.Minute, "2h15m"},
		{"whole hours", 3 * time.Hour, "3h"},
		{"days with hours", 3*24*time.Hour + 4*time.Hour, "3d4h"},
		{"whole days", 2 * 24 * time.Hour, "2d"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatDuration(tt.d)
			if got != tt.expected {
				t.Errorf("FormatDuration(%v) = %q, want %q", tt.d, got, tt.expected)
			}
		})
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		t        time.Time
		expected string
	}{
		{"zero time", time.Time{}, "never"},
		{"just now", now.Add(-2 * time.Second), "just now"},
		{"seconds ago", now.Add(-30 * time.Second), "30s ago"},
		{"minutes ago", now.Add(-12 * time.Minute), "12m ago"},
		{"hours ago", now.Add(-3 * time.Hour), "3h ago"},
		{"days ago", now.Add(-49 * time.Hour), "2d ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatRelativeTime(tt.t)
			if got != tt.expected {
				t.Errorf("FormatRelativeTime(%v) = %q, want %q", tt.t, got, tt.expected)
			}
		})
	}
}

func TestFormatRelativeTime_OldDate(t *testing.T) {
	old := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	got := FormatRelativeTime(old)
	if got != "2024-01-15" {
		t.Errorf("FormatRelativeTime(%v) = %q, want %q", old, got, "2024-01-15")
	}
}
