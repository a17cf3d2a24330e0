package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestScanMounts(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"usb0", "alice/STICK", "alice/notmounted", "bob"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "README"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	mounted := map[string]bool{
		filepath.Join(root, "usb0"):        true,
		filepath.Join(root, "alice/STICK"): true,
	}
	got := scanMounts([]string{root, filepath.Join(root, "missing")}, func(p string) bool { return mounted[p] })

	if len(got) != 2 {
		t.Fatalf("scanMounts() = %v, want 2 mounts", got)
	}
	for _, p := range got {
		if !mounted[p] {
			t.Errorf("unexpected mount %s", p)
		}
	}
}

func TestRemovableDrives_DoesNotFail(t *testing.T) {
	// Host dependent; only checks that enumeration returns usable paths.
	for _, d := range RemovableDrives() {
		if d == "" {
			t.Error("empty drive path")
		}
	}
}
