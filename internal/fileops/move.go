package fileops

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/larsmagnus/tfm/internal/task"
)

// MoveOperation relocates a selection into a destination directory. Each
// selected item is one unit: rename is atomic per item, and a cross-device
// rename falls back to copy-then-delete.
type MoveOperation struct {
	Sources []string
	Dest    string
	Logger  zerolog.Logger
}

func (o *MoveOperation) Verb() task.Verb { return task.VerbMove }

func (o *MoveOperation) Destination() string { return o.Dest }

func (o *MoveOperation) Summary() string {
	return fmt.Sprintf("Move %s to %s?", describeSelection(o.Sources, "files"), o.Dest)
}

func (o *MoveOperation) Label() string {
	return fmt.Sprintf("Moving to %s", filepath.Base(o.Dest))
}

func (o *MoveOperation) EnumerateUnits() ([]task.Unit, error) {
	units := make([]task.Unit, 0, len(o.Sources))
	for _, source := range o.Sources {
		info, err := os.Lstat(source)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", source, err)
		}
		u := task.Unit{
			Source: source,
			Target: filepath.Join(o.Dest, filepath.Base(source)),
			IsDir:  info.IsDir(),
		}
		if !info.IsDir() {
			u.Size = info.Size()
		}
		units = append(units, u)
	}
	return units, nil
}

func (o *MoveOperation) ProcessUnit(u task.Unit, overwrite bool) error {
	if _, err := os.Lstat(u.Target); err == nil {
		if !overwrite {
			return fmt.Errorf("refusing to overwrite %s: %w", u.Target, os.ErrExist)
		}
		if err := os.RemoveAll(u.Target); err != nil {
			return err
		}
	}

	err := os.Rename(u.Source, u.Target)
	if err == nil {
		o.Logger.Debug().Str("source", u.Source).Str("target", u.Target).Msg("moved")
		return nil
	}
	if !crossDevice(err) {
		return err
	}

	// Different filesystem: stage a full copy, then drop the source.
	if err := copyAny(u.Source, u.Target); err != nil {
		return fmt.Errorf("cross-device copy %s: %w", u.Source, err)
	}
	if err := os.RemoveAll(u.Source); err != nil {
		return fmt.Errorf("remove source %s: %w", u.Source, err)
	}
	o.Logger.Debug().Str("source", u.Source).Str("target", u.Target).Msg("moved across devices")
	return nil
}
