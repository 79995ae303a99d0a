package worktree

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestCopyFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		mode    os.FileMode
	}{
		{"plain text", "HOST=localhost\nPORT=5432\n", 0644},
		{"empty file", "", 0644},
		{"unicode content", "greeting = \"héllo wörld\" # ünïcödé\n", 0644},
		{"restricted mode", "secret-token\n", 0600},
		{"executable", "#!/bin/sh\necho ok\n", 0755},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "src")
			dst := filepath.Join(dir, "dst")
			if err := os.WriteFile(src, []byte(tt.content), tt.mode); err != nil {
				t.Fatalf("write source: %v", err)
			}

			if err := copyFile(src, dst); err != nil {
				t.Fatalf("copyFile() error = %v", err)
			}

			data, err := os.ReadFile(dst)
			if err != nil {
				t.Fatalf("read copy: %v", err)
			}
			if string(data) != tt.content {
				t.Errorf("copied content = %q, want %q", data, tt.content)
			}

			if runtime.GOOS != "windows" {
				info, err := os.Stat(dst)
				if err != nil {
					t.Fatalf("stat copy: %v", err)
				}
				if info.Mode().Perm() != tt.mode {
					t.Errorf("copied mode = %v, want %v", info.Mode().Perm(), tt.mode)
				}
			}
		})
	}
}

func TestCopyFile_OverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("new"), 0644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if err := os.WriteFile(dst, []byte("old content that is longer"), 0644); err != nil {
		t.Fatalf("write existing: %v", err)
	}

	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile() error = %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read copy: %v", err)
	}
	if string(data) != "new" {
		t.Errorf("copied content = %q, want truncated replacement", data)
	}
}

func TestCopyFile_MissingSource(t *testing.T) {
	dir := t.TempDir()

	err := copyFile(filepath.Join(dir, "absent"), filepath.Join(dir, "dst"))
	if !os.IsNotExist(err) {
		t.Errorf("copyFile() error = %v, want IsNotExist", err)
	}
}

func TestCopyFile_MissingDestinationDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := copyFile(src, filepath.Join(dir, "nope", "dst")); err == nil {
		t.Error("copyFile() error = nil, want failure for missing destination directory")
	}
}
