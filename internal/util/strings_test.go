package util

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string truncated", "hello world", 8, "hello..."},
		{"tiny budget is all ellipsis", "hello", 3, "..."},
		{"zero budget is all ellipsis", "hello", 0, "..."},
		{"empty string unchanged", "", 10, ""},
		{"runes counted not bytes", "日本語テスト", 5, "日本..."},
		{"mixed ascii and unicode", "hello日本語world", 10, "hello日本..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateANSI(t *testing.T) {
	styled := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))

	tests := []struct {
		name     string
		input    string
		maxWidth int
		want     string
	}{
		{"short plain string unchanged", "hello", 10, "hello"},
		{"plain string truncated", "hello world", 8, "hello..."},
		{"tiny budget is all ellipsis", "hello", 3, "..."},
		{"empty string unchanged", "", 10, ""},
		{"fitting styled string untouched", styled.Render("hi"), 10, styled.Render("hi")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateANSI(tt.input, tt.maxWidth); got != tt.want {
				t.Errorf("TruncateANSI(%q, %d) = %q, want %q", tt.input, tt.maxWidth, got, tt.want)
			}
		})
	}
}

func TestTruncateANSI_WidthBudget(t *testing.T) {
	// A styled agent event line must never exceed the column budget,
	// whatever escape sequences it carries.
	styled := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))

	inputs := []string{
		styled.Render("running go test ./... with a very long tail of arguments"),
		"日本語テストの長い行です",
		styled.Render("short"),
	}
	for _, input := range inputs {
		got := TruncateANSI(input, 12)
		if width := lipgloss.Width(got); width > 12 {
			t.Errorf("TruncateANSI(%q, 12) rendered %d columns", input, width)
		}
	}
}
