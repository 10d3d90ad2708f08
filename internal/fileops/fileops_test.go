package fileops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/larsmagnus/tfm/internal/task"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func processAll(t *testing.T, op task.Operation, overwrite bool) []task.Unit {
	t.Helper()
	units, err := op.EnumerateUnits()
	if err != nil {
		t.Fatalf("EnumerateUnits: %v", err)
	}
	for _, u := range units {
		if err := op.ProcessUnit(u, overwrite); err != nil {
			t.Fatalf("ProcessUnit(%s): %v", u.Source, err)
		}
	}
	return units
}

func TestCopyExpandsDirectories(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "a")
	writeFile(t, filepath.Join(src, "sub", "b.txt"), "b")

	dest := t.TempDir()
	op := &CopyOperation{
		Sources: []string{filepath.Join(src, "a.txt"), filepath.Join(src, "sub")},
		Dest:    dest,
		Logger:  zerolog.Nop(),
	}

	units := processAll(t, op, false)
	// a.txt, sub/, sub/b.txt
	if len(units) != 3 {
		t.Fatalf("units = %d, want 3", len(units))
	}

	got, err := os.ReadFile(filepath.Join(dest, "sub", "b.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "b" {
		t.Errorf("b.txt = %q, want b", got)
	}
	if _, err := os.Stat(filepath.Join(src, "a.txt")); err != nil {
		t.Errorf("copy removed the source: %v", err)
	}
}

func TestCopyRefusesOverwriteWithoutPolicy(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "new")
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "a.txt"), "old")

	op := &CopyOperation{
		Sources: []string{filepath.Join(src, "a.txt")},
		Dest:    dest,
		Logger:  zerolog.Nop(),
	}
	units, err := op.EnumerateUnits()
	if err != nil {
		t.Fatal(err)
	}

	if err := op.ProcessUnit(units[0], false); err == nil {
		t.Fatal("overwrote without policy")
	}
	if got, _ := os.ReadFile(filepath.Join(dest, "a.txt")); string(got) != "old" {
		t.Errorf("target clobbered: %q", got)
	}

	if err := op.ProcessUnit(units[0], true); err != nil {
		t.Fatal(err)
	}
	if got, _ := os.ReadFile(filepath.Join(dest, "a.txt")); string(got) != "new" {
		t.Errorf("overwrite produced %q, want new", got)
	}
}

func TestCopyPreservesSymlinks(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "real.txt"), "data")
	if err := os.Symlink("real.txt", filepath.Join(src, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	dest := t.TempDir()
	op := &CopyOperation{
		Sources: []string{filepath.Join(src, "link")},
		Dest:    dest,
		Logger:  zerolog.Nop(),
	}
	processAll(t, op, false)

	target, err := os.Readlink(filepath.Join(dest, "link"))
	if err != nil {
		t.Fatalf("copied link is not a symlink: %v", err)
	}
	if target != "real.txt" {
		t.Errorf("link target = %q, want real.txt", target)
	}
}

func TestMoveRenamesSelection(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "dir", "inner.txt"), "x")
	writeFile(t, filepath.Join(src, "solo.txt"), "y")

	dest := t.TempDir()
	op := &MoveOperation{
		Sources: []string{filepath.Join(src, "dir"), filepath.Join(src, "solo.txt")},
		Dest:    dest,
		Logger:  zerolog.Nop(),
	}

	units := processAll(t, op, false)
	if len(units) != 2 {
		t.Fatalf("units = %d, want 2 (one per selected item)", len(units))
	}

	if _, err := os.Stat(filepath.Join(dest, "dir", "inner.txt")); err != nil {
		t.Errorf("moved tree missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(src, "dir")); !os.IsNotExist(err) {
		t.Errorf("move left source directory behind")
	}
	if _, err := os.Stat(filepath.Join(src, "solo.txt")); !os.IsNotExist(err) {
		t.Errorf("move left source file behind")
	}
}

func TestMoveRefusesOverwriteWithoutPolicy(t *testing.T) {
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "new")
	dest := t.TempDir()
	writeFile(t, filepath.Join(dest, "a.txt"), "old")

	op := &MoveOperation{
		Sources: []string{filepath.Join(src, "a.txt")},
		Dest:    dest,
		Logger:  zerolog.Nop(),
	}
	units, err := op.EnumerateUnits()
	if err != nil {
		t.Fatal(err)
	}

	if err := op.ProcessUnit(units[0], false); err == nil {
		t.Fatal("overwrote without policy")
	}
	if _, err := os.Stat(filepath.Join(src, "a.txt")); err != nil {
		t.Errorf("refused move still consumed the source: %v", err)
	}
}

func TestDeleteUnits(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "f.txt"), "x")
	writeFile(t, filepath.Join(root, "d", "inner.txt"), "y")

	op := &DeleteOperation{
		Sources: []string{filepath.Join(root, "f.txt"), filepath.Join(root, "d")},
		Logger:  zerolog.Nop(),
	}
	units := processAll(t, op, false)
	if len(units) != 2 {
		t.Fatalf("units = %d, want 2", len(units))
	}

	if _, err := os.Stat(filepath.Join(root, "f.txt")); !os.IsNotExist(err) {
		t.Errorf("file still present")
	}
	if _, err := os.Stat(filepath.Join(root, "d")); !os.IsNotExist(err) {
		t.Errorf("directory still present")
	}
}

func TestEnumerateFailsOnMissingSource(t *testing.T) {
	op := &CopyOperation{
		Sources: []string{filepath.Join(t.TempDir(), "ghost")},
		Dest:    t.TempDir(),
		Logger:  zerolog.Nop(),
	}
	if _, err := op.EnumerateUnits(); err == nil {
		t.Fatal("enumeration succeeded for a missing source")
	}
}
