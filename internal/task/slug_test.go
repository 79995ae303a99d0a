package task

import (
	"strings"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{"simple title", "Fix login bug", "fix-login-bug"},
		{"punctuation stripped", "Fix login bug!", "fix-login-bug"},
		{"mixed case", "Add OAuth2 Support", "add-oauth2-support"},
		{"leading and trailing spaces", "  trim me  ", "trim-me"},
		{"consecutive separators", "a -- b__c", "a-b-c"},
		{"numbers kept", "123 go", "123-go"},
		{"only punctuation", "!!!", ""},
		{"empty title", "", ""},
		{"unicode treated as separator", "café menu", "caf-menu"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Slugify(tt.title); got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSlugify_LongTitle(t *testing.T) {
	title := strings.Repeat("a", maxSlugLength+20)
	got := Slugify(title)
	if len(got) != maxSlugLength {
		t.Errorf("Slugify() length = %d, want %d", len(got), maxSlugLength)
	}

	// A cut that lands on a hyphen must not leave a trailing hyphen.
	title = strings.Repeat("a", maxSlugLength-1) + " bcd"
	got = Slugify(title)
	if strings.HasSuffix(got, "-") {
		t.Errorf("Slugify() = %q, want no trailing hyphen", got)
	}
	if got != strings.Repeat("a", maxSlugLength-1) {
		t.Errorf("Slugify() = %q, want %q", got, strings.Repeat("a", maxSlugLength-1))
	}
}

func TestDirName(t *testing.T) {
	created := time.Date(2025, 8, 21, 14, 30, 0, 0, time.UTC)
	got := DirName(created, "fix-login-bug")
	want := "08-21-fix-login-bug"
	if got != want {
		t.Errorf("DirName() = %q, want %q", got, want)
	}
}

func TestSlugFromDir(t *testing.T) {
	tests := []struct {
		name string
		dir  string
		want string
	}{
		{"date prefix stripped", "08-21-fix-login-bug", "fix-login-bug"},
		{"december date", "12-31-year-end", "year-end"},
		{"no date prefix", "fix-login-bug", "fix-login-bug"},
		{"letters where digits expected", "ab-cd-task", "ab-cd-task"},
		{"too short", "08-21-", "08-21-"},
		{"single char slug", "01-02-x", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SlugFromDir(tt.dir); got != tt.want {
				t.Errorf("SlugFromDir(%q) = %q, want %q", tt.dir, got, tt.want)
			}
		})
	}
}
