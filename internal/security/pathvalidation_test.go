package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	base := t.TempDir()
	out := filepath.Join(base, "restored")
	dataset := filepath.Join(base, "dataset")
	for _, dir := range []string{filepath.Join(out, "00"), dataset} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	// A sequence directory in the output tree that points back at the inputs.
	linked := filepath.Join(out, "01")
	if err := os.Symlink(dataset, linked); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"root itself", out, false},
		{"existing sequence dir", filepath.Join(out, "00"), false},
		{"new scan in existing dir", filepath.Join(out, "00", "000001.bin"), false},
		{"new scan in new dir", filepath.Join(out, "02", "velodyne", "000001.bin"), false},
		{"dotdot into sibling tree", filepath.Join(out, "..", "dataset", "a.bin"), true},
		{"relative climb", "../../../etc/passwd", true},
		{"absolute outside", "/etc/passwd", true},
		{"symlinked dir itself", linked, true},
		{"new file below symlinked dir", filepath.Join(linked, "000001.bin"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.path, out)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidatePathWithinDirectory(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrPathEscape) {
				t.Errorf("error %v does not wrap ErrPathEscape", err)
			}
		})
	}
}

func TestValidatePathWithinDirectoryMissingRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	err := ValidatePathWithinDirectory(filepath.Join(missing, "a.bin"), missing)
	if err == nil {
		t.Fatal("expected an error for a root that does not exist")
	}
	if errors.Is(err, ErrPathEscape) {
		t.Errorf("missing root reported as an escape: %v", err)
	}
}

func TestMirrorPath(t *testing.T) {
	tests := []struct {
		name    string
		rel     string
		ext     string
		want    string
		wantErr bool
	}{
		{"swap extension", filepath.Join("00", "velodyne", "000001.bin"), ".ply", filepath.Join("/out", "00", "velodyne", "000001.ply"), false},
		{"extension without dot", "a.bin", "ply", filepath.Join("/out", "a.ply"), false},
		{"keep extension", "a.bin", "", filepath.Join("/out", "a.bin"), false},
		{"inner dotdot stays local", filepath.Join("a", "..", "b.bin"), "", filepath.Join("/out", "b.bin"), false},
		{"climbs out", filepath.Join("..", "b.bin"), "", "", true},
		{"absolute", "/etc/passwd", "", "", true},
		{"empty", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MirrorPath("/out", tt.rel, tt.ext)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MirrorPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrPathEscape) {
					t.Errorf("error %v does not wrap ErrPathEscape", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("MirrorPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSafeMirrorPath(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}

	if _, err := SafeMirrorPath(root, filepath.Join("seq", "x.bin"), ".ply"); err != nil {
		t.Errorf("SafeMirrorPath() inside root: %v", err)
	}
	if _, err := SafeMirrorPath(root, filepath.Join("link", "x.bin"), ".ply"); err == nil {
		t.Error("SafeMirrorPath() followed a symlink out of the root")
	}
}
