package developer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gantryhq/gantry/internal/errors"
)

func TestInit(t *testing.T) {
	dataDir := t.TempDir()

	dev, err := Init(dataDir, "alice")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if dev.Name != "alice" {
		t.Errorf("Name = %q, want %q", dev.Name, "alice")
	}
	if dev.InitializedAt.IsZero() {
		t.Error("InitializedAt should be set")
	}

	data, err := os.ReadFile(filepath.Join(dataDir, FileName))
	if err != nil {
		t.Fatalf("failed to read identity file: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("identity file has %d lines, want 2:\n%s", len(lines), data)
	}
	if lines[0] != "name=alice" {
		t.Errorf("first line = %q, want %q", lines[0], "name=alice")
	}
	if !strings.HasPrefix(lines[1], "initialized_at=") {
		t.Errorf("second line = %q, want initialized_at prefix", lines[1])
	}

	ts := strings.TrimPrefix(lines[1], "initialized_at=")
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("initialized_at %q is not RFC 3339: %v", ts, err)
	}
}

func TestInit_CreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), ".gantry")

	if _, err := Init(dataDir, "alice"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	if _, err := os.Stat(filepath.Join(dataDir, FileName)); err != nil {
		t.Errorf("identity file was not created: %v", err)
	}
}

func TestInit_AlreadyExists(t *testing.T) {
	dataDir := t.TempDir()

	if _, err := Init(dataDir, "alice"); err != nil {
		t.Fatalf("first Init() error = %v", err)
	}

	_, err := Init(dataDir, "bob")
	if err == nil {
		t.Fatal("second Init() succeeded, want already-exists error")
	}

	var existsErr *errors.AlreadyExistsError
	if !errors.As(err, &existsErr) {
		t.Errorf("error type = %T, want *AlreadyExistsError", err)
	}

	// The original identity must be untouched.
	dev, err := Load(dataDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if dev.Name != "alice" {
		t.Errorf("Name after failed re-init = %q, want %q", dev.Name, "alice")
	}
}

func TestInit_InvalidName(t *testing.T) {
	tests := []struct {
		name    string
		devName string
	}{
		{"empty", ""},
		{"starts with digit", "1alice"},
		{"contains slash", "alice/bob"},
		{"contains space", "alice smith"},
		{"contains equals", "alice=admin"},
		{"too long", strings.Repeat("a", 51)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataDir := t.TempDir()

			_, err := Init(dataDir, tt.devName)
			if err == nil {
				t.Fatalf("Init(%q) succeeded, want validation error", tt.devName)
			}

			var validationErr *errors.ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("error type = %T, want *ValidationError", err)
			}
		})
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	dataDir := t.TempDir()

	created, err := Init(dataDir, "dev-two")
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	loaded, err := Load(dataDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded == nil {
		t.Fatal("Load() returned nil for existing identity")
	}

	if loaded.Name != created.Name {
		t.Errorf("Name = %q, want %q", loaded.Name, created.Name)
	}
	if !loaded.InitializedAt.Equal(created.InitializedAt) {
		t.Errorf("InitializedAt = %v, want %v", loaded.InitializedAt, created.InitializedAt)
	}
}

func TestLoad_Missing(t *testing.T) {
	dev, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v, want nil for missing file", err)
	}
	if dev != nil {
		t.Errorf("Load() = %+v, want nil for missing file", dev)
	}
}

func TestLoad_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"no separator", "alice\n"},
		{"missing name", "initialized_at=2025-08-21T10:00:00Z\n"},
		{"bad timestamp", "name=alice\ninitialized_at=yesterday\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dataDir := t.TempDir()
			path := filepath.Join(dataDir, FileName)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatalf("failed to seed identity file: %v", err)
			}

			_, err := Load(dataDir)
			if err == nil {
				t.Fatal("Load() succeeded, want validation error")
			}

			var validationErr *errors.ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("error type = %T, want *ValidationError", err)
			}
		})
	}
}

func TestLoad_IgnoresUnknownKeys(t *testing.T) {
	dataDir := t.TempDir()
	content := "name=alice\ninitialized_at=2025-08-21T10:00:00Z\nteam=platform\n"
	if err := os.WriteFile(filepath.Join(dataDir, FileName), []byte(content), 0644); err != nil {
		t.Fatalf("failed to seed identity file: %v", err)
	}

	dev, err := Load(dataDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if dev.Name != "alice" {
		t.Errorf("Name = %q, want %q", dev.Name, "alice")
	}
}

func TestRequire(t *testing.T) {
	t.Run("present", func(t *testing.T) {
		dataDir := t.TempDir()
		if _, err := Init(dataDir, "alice"); err != nil {
			t.Fatalf("Init() error = %v", err)
		}

		dev, err := Require(dataDir)
		if err != nil {
			t.Fatalf("Require() error = %v", err)
		}
		if dev.Name != "alice" {
			t.Errorf("Name = %q, want %q", dev.Name, "alice")
		}
	})

	t.Run("absent", func(t *testing.T) {
		_, err := Require(t.TempDir())
		if !errors.Is(err, errors.ErrNoDeveloper) {
			t.Errorf("Require() error = %v, want ErrNoDeveloper", err)
		}
	})
}

func TestValidateName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"alice", true},
		{"dev-two", true},
		{"a_b_c", true},
		{"A1", true},
		{"", false},
		{"9lives", false},
		{"has space", false},
		{"path/seg", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateName(tt.name)
			if tt.valid && err != nil {
				t.Errorf("ValidateName(%q) = %v, want nil", tt.name, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("ValidateName(%q) = nil, want error", tt.name)
			}
		})
	}
}
