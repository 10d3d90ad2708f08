// Package archive is the domain backend for archive operations: format
// detection, entry listing, creation and extraction. It performs the actual
// I/O behind the task framework's Operation interface and knows nothing
// about states, conflicts or dialogs.
package archive

import (
	"fmt"
	"strings"
)

// Kind is the container type of an archive.
type Kind int

const (
	KindTar Kind = iota
	KindZip
)

// Format describes one supported archive format.
type Format struct {
	Kind        Kind
	Compression string // "gz", "bz2" or ""
	Ext         string
}

func (f Format) String() string {
	return strings.TrimPrefix(f.Ext, ".")
}

var formats = []Format{
	{Kind: KindTar, Compression: "gz", Ext: ".tar.gz"},
	{Kind: KindTar, Compression: "gz", Ext: ".tgz"},
	{Kind: KindTar, Compression: "bz2", Ext: ".tar.bz2"},
	{Kind: KindTar, Compression: "bz2", Ext: ".tbz2"},
	{Kind: KindTar, Compression: "", Ext: ".tar"},
	{Kind: KindZip, Compression: "", Ext: ".zip"},
}

// DetectFormat resolves a format from a filename, checking multi-part
// extensions before single ones.
func DetectFormat(filename string) (Format, error) {
	lower := strings.ToLower(filename)
	for _, f := range formats {
		if strings.HasSuffix(lower, f.Ext) {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("unsupported archive format: %s", filename)
}

// ParseFormat resolves a format from a user-supplied name like "tar.gz" or
// ".zip".
func ParseFormat(name string) (Format, error) {
	want := "." + strings.TrimPrefix(strings.ToLower(name), ".")
	for _, f := range formats {
		if f.Ext == want {
			return f, nil
		}
	}
	return Format{}, fmt.Errorf("unsupported archive format: %s", name)
}

// IsArchive reports whether filename has a supported archive extension.
func IsArchive(filename string) bool {
	_, err := DetectFormat(filename)
	return err == nil
}

// writable reports whether the format can be created. bzip2 is read-only:
// the standard library ships a decompressor but no compressor.
func (f Format) writable() bool {
	return f.Compression != "bz2"
}
