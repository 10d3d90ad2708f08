package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/larsmagnus/tfm/internal/task"
)

// CreateOperation packs a selection of files and directories into a new
// archive. It implements task.Operation: enumeration walks the sources into
// per-file units, processing appends one unit to the archive writer, and
// Finalize closes the writer — removing a partial archive when the run was
// cancelled.
type CreateOperation struct {
	Sources []string
	Archive string
	Logger  zerolog.Logger

	format   Format
	arcnames map[string]string

	file *os.File
	gzw  *gzip.Writer
	tw   *tar.Writer
	zw   *zip.Writer
}

// NewCreateOperation validates the destination's format and prepares the
// operation. No I/O beyond format parsing happens until execution.
func NewCreateOperation(sources []string, archivePath string, logger zerolog.Logger) (*CreateOperation, error) {
	format, err := DetectFormat(filepath.Base(archivePath))
	if err != nil {
		return nil, err
	}
	if !format.writable() {
		return nil, fmt.Errorf("cannot create %s archives: bzip2 is extract-only", format)
	}
	return &CreateOperation{
		Sources: sources,
		Archive: archivePath,
		Logger:  logger,
		format:  format,
	}, nil
}

func (o *CreateOperation) Verb() task.Verb { return task.VerbCreate }

func (o *CreateOperation) Destination() string { return o.Archive }

func (o *CreateOperation) Format() string { return o.format.String() }

func (o *CreateOperation) Summary() string {
	name := filepath.Base(o.Archive)
	if len(o.Sources) == 1 {
		return fmt.Sprintf("Create archive '%s' from '%s'?", name, filepath.Base(o.Sources[0]))
	}
	return fmt.Sprintf("Create archive '%s' from %d files?", name, len(o.Sources))
}

func (o *CreateOperation) Label() string {
	return fmt.Sprintf("Packing %s", filepath.Base(o.Archive))
}

// EnumerateUnits expands the selection into one unit per file, directories
// walked recursively. The in-archive name of each unit is the path relative
// to its selection's parent, so a packed directory keeps its top-level name.
func (o *CreateOperation) EnumerateUnits() ([]task.Unit, error) {
	o.arcnames = map[string]string{}
	var units []task.Unit

	add := func(path, arcname string, info fs.FileInfo) {
		o.arcnames[path] = arcname
		u := task.Unit{Source: path, Target: o.Archive, IsDir: info.IsDir()}
		if !info.IsDir() {
			u.Size = info.Size()
		}
		units = append(units, u)
	}

	for _, source := range o.Sources {
		info, err := os.Lstat(source)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", source, err)
		}

		if !info.IsDir() {
			add(source, filepath.Base(source), info)
			continue
		}

		base := filepath.Dir(source)
		err = filepath.WalkDir(source, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(base, path)
			if err != nil {
				return err
			}
			add(path, filepath.ToSlash(rel), info)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", source, err)
		}
	}

	return units, nil
}

// ProcessUnit appends one file or directory header to the archive. The
// writer opens lazily on the first unit; failing to open it is fatal since
// no later unit can succeed either.
func (o *CreateOperation) ProcessUnit(u task.Unit, overwrite bool) error {
	if o.file == nil {
		if err := o.open(); err != nil {
			return task.Fatal(err)
		}
	}

	arcname := o.arcnames[u.Source]
	if err := o.append(u, arcname); err != nil {
		return fmt.Errorf("append %s: %w", arcname, err)
	}
	o.Logger.Debug().Str("entry", arcname).Msg("added to archive")
	return nil
}

// Finalize closes the writer chain. A cancelled run leaves no partial
// archive behind.
func (o *CreateOperation) Finalize(cancelled bool) error {
	if o.file == nil {
		return nil
	}

	var firstErr error
	closers := []io.Closer{}
	if o.tw != nil {
		closers = append(closers, o.tw)
	}
	if o.zw != nil {
		closers = append(closers, o.zw)
	}
	if o.gzw != nil {
		closers = append(closers, o.gzw)
	}
	closers = append(closers, o.file)
	for _, c := range closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	o.file, o.gzw, o.tw, o.zw = nil, nil, nil, nil

	if cancelled {
		if err := os.Remove(o.Archive); err != nil {
			o.Logger.Warn().Err(err).Str("path", o.Archive).Msg("could not remove partial archive")
		} else {
			o.Logger.Info().Str("path", o.Archive).Msg("removed partial archive")
		}
		return firstErr
	}
	if firstErr != nil {
		return fmt.Errorf("close archive: %w", firstErr)
	}
	return nil
}

func (o *CreateOperation) open() error {
	file, err := os.Create(o.Archive)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", o.Archive, err)
	}
	o.file = file

	switch o.format.Kind {
	case KindZip:
		o.zw = zip.NewWriter(file)
	default:
		var w io.Writer = file
		if o.format.Compression == "gz" {
			o.gzw = gzip.NewWriter(file)
			w = o.gzw
		}
		o.tw = tar.NewWriter(w)
	}
	return nil
}

func (o *CreateOperation) append(u task.Unit, arcname string) error {
	info, err := os.Lstat(u.Source)
	if err != nil {
		return err
	}

	if o.format.Kind == KindZip {
		return o.appendZip(u, arcname, info)
	}
	return o.appendTar(u, arcname, info)
}

func (o *CreateOperation) appendTar(u task.Unit, arcname string, info fs.FileInfo) error {
	link := ""
	if info.Mode()&fs.ModeSymlink != 0 {
		var err error
		if link, err = os.Readlink(u.Source); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = arcname
	if info.IsDir() {
		hdr.Name += "/"
	}
	if err := o.tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(u.Source)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(o.tw, f)
	return err
}

func (o *CreateOperation) appendZip(u task.Unit, arcname string, info fs.FileInfo) error {
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = arcname
	if info.IsDir() {
		hdr.Name += "/"
	} else {
		hdr.Method = zip.Deflate
	}

	w, err := o.zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(u.Source)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
