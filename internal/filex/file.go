// Package filex writes downloaded blobs to disk.
package filex

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrExists is returned when the destination exists and overwriting was not requested.
var ErrExists = errors.New("destination exists")

// SafeName reduces a server-provided file name to a plain base name.
// It returns fallback when nothing usable is left.
func SafeName(name, fallback string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch name {
	case "", ".", "..", "/":
		return fallback
	}
	return name
}

// Output is a file being written. Content goes to a temporary file next to
// the destination and only replaces it on Commit.
type Output struct {
	*os.File
	path string
}

// CreateOutput prepares path for writing, creating parent directories.
func CreateOutput(path string, overwrite bool) (*Output, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("%s: %w", path, ErrExists)
		}
	}

	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".part-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &Output{File: f, path: path}, nil
}

func (o *Output) Path() string { return o.path }

// Commit closes the temporary file and moves it into place.
func (o *Output) Commit() error {
	if err := o.File.Close(); err != nil {
		_ = os.Remove(o.File.Name())
		return err
	}
	if err := os.Rename(o.File.Name(), o.path); err != nil {
		_ = os.Remove(o.File.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Abort discards everything written so far.
func (o *Output) Abort() {
	_ = o.File.Close()
	_ = os.Remove(o.File.Name())
}
