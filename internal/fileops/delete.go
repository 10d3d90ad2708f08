package fileops

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/larsmagnus/tfm/internal/task"
)

// DeleteOperation removes a selection. Each selected item is one unit, so a
// cancelled run stops between items with everything before the boundary gone
// and everything after it untouched.
type DeleteOperation struct {
	Sources []string
	Logger  zerolog.Logger
}

func (o *DeleteOperation) Verb() task.Verb { return task.VerbDelete }

func (o *DeleteOperation) Destination() string { return "" }

func (o *DeleteOperation) Summary() string {
	return fmt.Sprintf("Delete %s?", describeSelection(o.Sources, "files"))
}

func (o *DeleteOperation) Label() string { return "Deleting" }

func (o *DeleteOperation) EnumerateUnits() ([]task.Unit, error) {
	units := make([]task.Unit, 0, len(o.Sources))
	for _, source := range o.Sources {
		info, err := os.Lstat(source)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", source, err)
		}
		u := task.Unit{Source: source, Target: source, IsDir: info.IsDir()}
		if !info.IsDir() {
			u.Size = info.Size()
		}
		units = append(units, u)
	}
	return units, nil
}

func (o *DeleteOperation) ProcessUnit(u task.Unit, overwrite bool) error {
	var err error
	if u.IsDir {
		err = os.RemoveAll(u.Source)
	} else {
		err = os.Remove(u.Source)
	}
	if err != nil {
		return err
	}
	o.Logger.Debug().Str("path", u.Source).Msg("deleted")
	return nil
}
