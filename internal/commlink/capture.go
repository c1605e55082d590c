package commlink

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"lmsdisasm/internal/common"
)

// CaptureSink collects download payloads into one file. The target is the
// base name of the path the brick was told to write, placed in a local
// directory.
type CaptureSink struct {
	Name string // base file name
	Path string // local file written
}

// NewCaptureSink strips target to its base name, removes any previous file
// of that name in dir and returns a sink appending to it.
func NewCaptureSink(dir, target string) (*CaptureSink, error) {
	name := path.Base(strings.ReplaceAll(target, `\`, "/"))
	if name == "." || name == "/" || name == ".." {
		return nil, common.FormatError(0, "capture target %q has no file name", target)
	}
	p := filepath.Join(dir, name)
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, common.FileError(p, err)
	}
	return &CaptureSink{Name: name, Path: p}, nil
}

// Append adds data to the end of the capture file, creating it if needed.
func (s *CaptureSink) Append(data []byte) error {
	f, err := os.OpenFile(s.Path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return common.FileError(s.Path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return common.FileError(s.Path, err)
	}
	if err := f.Close(); err != nil {
		return common.FileError(s.Path, err)
	}
	return nil
}
