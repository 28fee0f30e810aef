package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestValidatePath(t *testing.T) {
	allowedDir := t.TempDir()
	otherDir := t.TempDir()

	subDir := filepath.Join(allowedDir, "subdir")
	if err := os.MkdirAll(subDir, 0700); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	tests := []struct {
		name        string
		path        string
		allowedDirs []string
		wantErr     bool
		errContains string
	}{
		{"inside allowed dir", filepath.Join(allowedDir, "b.jsonl.gz"), []string{allowedDir}, false, ""},
		{"in subdirectory", filepath.Join(subDir, "b.jsonl.gz"), []string{allowedDir}, false, ""},
		{"in directory that does not exist yet", filepath.Join(allowedDir, "new", "deeper", "b.jsonl.gz"), []string{allowedDir}, false, ""},
		{"exactly the allowed dir", allowedDir, []string{allowedDir}, false, ""},
		{"traversal with dot-dot", filepath.Join(allowedDir, "..", "etc", "passwd"), []string{allowedDir}, true, "outside allowed directories"},
		{"embedded dot-dot", filepath.Join(allowedDir, "subdir", "..", "..", "etc", "passwd"), []string{allowedDir}, true, "outside allowed directories"},
		{"sibling with shared prefix", allowedDir + "-evil/b.jsonl.gz", []string{allowedDir}, true, "outside allowed directories"},
		{"other dir", filepath.Join(otherDir, "b.jsonl.gz"), []string{allowedDir}, true, "outside allowed directories"},
		{"matches second allowed dir", filepath.Join(otherDir, "b.jsonl.gz"), []string{allowedDir, otherDir}, false, ""},
		{"null byte", filepath.Join(allowedDir, "b\x00.gz"), []string{allowedDir}, true, "null byte"},
		{"empty path", "", []string{allowedDir}, true, "empty"},
		{"no allowed dirs", filepath.Join(allowedDir, "b.jsonl.gz"), nil, true, "no allowed directories"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path, tt.allowedDirs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("ValidatePath() error = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestValidatePath_OutsideIsSentinel(t *testing.T) {
	err := ValidatePath(filepath.Join(t.TempDir(), "x"), []string{t.TempDir()})
	if !errors.Is(err, ErrOutsideAllowed) {
		t.Errorf("error = %v, want ErrOutsideAllowed", err)
	}
}

func TestValidatePath_Symlinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not supported on Windows")
	}

	allowedDir := t.TempDir()
	outsideDir := t.TempDir()
	realSubDir := filepath.Join(allowedDir, "real")
	if err := os.MkdirAll(realSubDir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(outsideDir, filepath.Join(allowedDir, "escape")); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(realSubDir, filepath.Join(allowedDir, "link")); err != nil {
		t.Fatal(err)
	}

	if err := ValidatePath(filepath.Join(allowedDir, "escape", "b.jsonl.gz"), []string{allowedDir}); !errors.Is(err, ErrOutsideAllowed) {
		t.Errorf("symlink escaping the allowed dir: error = %v", err)
	}
	if err := ValidatePath(filepath.Join(allowedDir, "link", "b.jsonl.gz"), []string{allowedDir}); err != nil {
		t.Errorf("symlink staying inside the allowed dir: error = %v", err)
	}
}

func TestRedactPath(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"simple", "/home/user/.epigraph/config.yaml", ".../.epigraph/config.yaml"},
		{"deep", "/a/b/c/d/e.txt", ".../d/e.txt"},
		{"root file", "/file.txt", "file.txt"},
		{"relative", "dir/file.txt", ".../dir/file.txt"},
		{"just filename", "file.txt", "file.txt"},
		{"trailing slash cleaned", "/home/user/.epigraph/", ".../user/.epigraph"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactPath(tt.input); got != tt.want {
				t.Errorf("RedactPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
