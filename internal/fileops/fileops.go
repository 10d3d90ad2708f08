// Package fileops implements the copy, move and delete operations behind the
// task framework. They share the archive operations' lifecycle: the state
// machine and executor are identical, only the per-unit I/O differs.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
)

// copyFile copies a regular file's contents and permissions.
func copyFile(src, dst string, info fs.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// copyAny copies a file, directory tree or symlink.
func copyAny(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&fs.ModeSymlink != 0:
		link, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(link, dst)

	case info.IsDir():
		if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if err := copyAny(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
				return err
			}
		}
		return nil

	default:
		return copyFile(src, dst, info)
	}
}

// crossDevice reports whether err is the rename failure that means source
// and destination live on different filesystems.
func crossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func describeSelection(sources []string, plural string) string {
	if len(sources) == 1 {
		return fmt.Sprintf("'%s'", filepath.Base(sources[0]))
	}
	return fmt.Sprintf("%d %s", len(sources), plural)
}
