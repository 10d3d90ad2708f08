package fileops

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/larsmagnus/tfm/internal/task"
)

// CopyOperation copies a selection into a destination directory. Directories
// are expanded into per-file units so progress, conflicts and cancellation
// all work at file granularity.
type CopyOperation struct {
	Sources []string
	Dest    string
	Logger  zerolog.Logger
}

func (o *CopyOperation) Verb() task.Verb { return task.VerbCopy }

func (o *CopyOperation) Destination() string { return o.Dest }

func (o *CopyOperation) Summary() string {
	return fmt.Sprintf("Copy %s to %s?", describeSelection(o.Sources, "files"), o.Dest)
}

func (o *CopyOperation) Label() string {
	return fmt.Sprintf("Copying to %s", filepath.Base(o.Dest))
}

func (o *CopyOperation) EnumerateUnits() ([]task.Unit, error) {
	var units []task.Unit
	for _, source := range o.Sources {
		info, err := os.Lstat(source)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", source, err)
		}

		if !info.IsDir() {
			units = append(units, task.Unit{
				Source: source,
				Target: filepath.Join(o.Dest, filepath.Base(source)),
				Size:   info.Size(),
			})
			continue
		}

		base := filepath.Dir(source)
		err = filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(base, path)
			if err != nil {
				return err
			}
			u := task.Unit{
				Source: path,
				Target: filepath.Join(o.Dest, rel),
				IsDir:  d.IsDir(),
			}
			if !d.IsDir() {
				if info, err := d.Info(); err == nil {
					u.Size = info.Size()
				}
			}
			units = append(units, u)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", source, err)
		}
	}
	return units, nil
}

func (o *CopyOperation) ProcessUnit(u task.Unit, overwrite bool) error {
	if u.IsDir {
		info, err := os.Lstat(u.Source)
		if err != nil {
			return err
		}
		return os.MkdirAll(u.Target, info.Mode().Perm())
	}

	if _, err := os.Lstat(u.Target); err == nil {
		if !overwrite {
			return fmt.Errorf("refusing to overwrite %s: %w", u.Target, os.ErrExist)
		}
		if err := os.Remove(u.Target); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(u.Target), 0755); err != nil {
		return err
	}
	if err := copyAny(u.Source, u.Target); err != nil {
		return err
	}
	o.Logger.Debug().Str("source", u.Source).Str("target", u.Target).Msg("copied")
	return nil
}
