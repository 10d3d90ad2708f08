package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/larsmagnus/tfm/internal/task"
)

// ExtractOperation unpacks an archive into a destination directory. Units
// are the archive's entries in container order, directory entries included
// so empty directories are recreated. Entries are written at most once each,
// and entries whose paths would escape the destination are rejected.
type ExtractOperation struct {
	Archive string
	Dest    string
	Logger  zerolog.Logger

	format Format
	reader entryReader
}

// NewExtractOperation validates the archive's format. The archive itself is
// first opened during unit enumeration.
func NewExtractOperation(archivePath, dest string, logger zerolog.Logger) (*ExtractOperation, error) {
	format, err := DetectFormat(filepath.Base(archivePath))
	if err != nil {
		return nil, err
	}
	return &ExtractOperation{
		Archive: archivePath,
		Dest:    dest,
		Logger:  logger,
		format:  format,
	}, nil
}

func (o *ExtractOperation) Verb() task.Verb { return task.VerbExtract }

func (o *ExtractOperation) Destination() string { return o.Dest }

func (o *ExtractOperation) Format() string { return o.format.String() }

func (o *ExtractOperation) Summary() string {
	return fmt.Sprintf("Extract '%s' to %s?", filepath.Base(o.Archive), o.Dest)
}

func (o *ExtractOperation) Label() string {
	return fmt.Sprintf("Extracting %s", filepath.Base(o.Archive))
}

// EnumerateUnits lists the archive's entries in container order. Unsafe
// entry paths fail enumeration so the operation never reaches execution.
func (o *ExtractOperation) EnumerateUnits() ([]task.Unit, error) {
	entries, err := ListEntries(o.Archive)
	if err != nil {
		return nil, err
	}

	units := make([]task.Unit, 0, len(entries))
	for _, e := range entries {
		target, err := secureJoin(o.Dest, e.Name)
		if err != nil {
			return nil, err
		}
		u := task.Unit{
			Source: e.Name,
			Target: target,
			IsDir:  e.IsDir,
		}
		if !e.IsDir {
			u.Size = e.Size
		}
		units = append(units, u)
	}
	return units, nil
}

// ProcessUnit writes one entry to its target path. An existing target is
// only replaced when the resolved conflict policy says so; a file that
// appeared after conflict detection surfaces as a recoverable error.
func (o *ExtractOperation) ProcessUnit(u task.Unit, overwrite bool) error {
	// Directory entries never touch the reader; a directory that already
	// exists is merged into.
	if u.IsDir {
		return os.MkdirAll(u.Target, 0755)
	}

	if o.reader == nil {
		r, err := openEntryReader(o.Archive, o.format)
		if err != nil {
			return task.Fatal(err)
		}
		o.reader = r
	}

	if !overwrite {
		if _, err := os.Lstat(u.Target); err == nil {
			return fmt.Errorf("refusing to overwrite %s: %w", u.Target, os.ErrExist)
		}
	}

	rc, mode, err := o.reader.Open(u.Source)
	if err != nil {
		return fmt.Errorf("read entry %s: %w", u.Source, err)
	}
	defer rc.Close()

	if err := os.MkdirAll(filepath.Dir(u.Target), 0755); err != nil {
		return err
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0644
	}
	f, err := os.OpenFile(u.Target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	o.Logger.Debug().Str("entry", u.Source).Msg("extracted")
	return nil
}

// Finalize releases the archive reader.
func (o *ExtractOperation) Finalize(bool) error {
	if o.reader == nil {
		return nil
	}
	err := o.reader.Close()
	o.reader = nil
	return err
}

// Entry is one archive member, as seen by listing.
type Entry struct {
	Name  string
	Size  int64
	IsDir bool
}

// ListEntries returns the archive's members in container order.
func ListEntries(archivePath string) ([]Entry, error) {
	format, err := DetectFormat(filepath.Base(archivePath))
	if err != nil {
		return nil, err
	}

	if format.Kind == KindZip {
		zr, err := zip.OpenReader(archivePath)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", archivePath, err)
		}
		defer zr.Close()

		entries := make([]Entry, 0, len(zr.File))
		for _, f := range zr.File {
			entries = append(entries, Entry{
				Name:  f.Name,
				Size:  int64(f.UncompressedSize64),
				IsDir: strings.HasSuffix(f.Name, "/"),
			})
		}
		return entries, nil
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer f.Close()

	r, err := decompress(f, format)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", archivePath, err)
		}
		entries = append(entries, Entry{
			Name:  hdr.Name,
			Size:  hdr.Size,
			IsDir: hdr.Typeflag == tar.TypeDir,
		})
	}
	return entries, nil
}

func decompress(r io.Reader, format Format) (io.Reader, error) {
	switch format.Compression {
	case "gz":
		return gzip.NewReader(r)
	case "bz2":
		return bzip2.NewReader(r), nil
	default:
		return r, nil
	}
}

// secureJoin resolves an entry name under dest, rejecting absolute paths and
// traversal outside dest.
func secureJoin(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("unsafe entry path: %s", name)
	}
	return filepath.Join(dest, clean), nil
}

// entryReader yields entry contents by name. The tar implementation only
// scans forward, which is enough: the executor requests entries in
// enumeration order.
type entryReader interface {
	Open(name string) (io.ReadCloser, os.FileMode, error)
	Close() error
}

func openEntryReader(archivePath string, format Format) (entryReader, error) {
	if format.Kind == KindZip {
		zr, err := zip.OpenReader(archivePath)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", archivePath, err)
		}
		return &zipEntryReader{zr: zr}, nil
	}

	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", archivePath, err)
	}
	r, err := decompress(f, format)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &tarEntryReader{file: f, tr: tar.NewReader(r)}, nil
}

type zipEntryReader struct {
	zr *zip.ReadCloser
}

func (z *zipEntryReader) Open(name string) (io.ReadCloser, os.FileMode, error) {
	for _, f := range z.zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, 0, err
			}
			return rc, f.Mode(), nil
		}
	}
	return nil, 0, fmt.Errorf("entry not found: %s", name)
}

func (z *zipEntryReader) Close() error { return z.zr.Close() }

type tarEntryReader struct {
	file *os.File
	tr   *tar.Reader
}

func (t *tarEntryReader) Open(name string) (io.ReadCloser, os.FileMode, error) {
	for {
		hdr, err := t.tr.Next()
		if err == io.EOF {
			return nil, 0, fmt.Errorf("entry not found: %s", name)
		}
		if err != nil {
			return nil, 0, err
		}
		if hdr.Name == name {
			return io.NopCloser(t.tr), hdr.FileInfo().Mode(), nil
		}
	}
}

func (t *tarEntryReader) Close() error { return t.file.Close() }
