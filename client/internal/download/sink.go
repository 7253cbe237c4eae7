package download

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"
)

// Sink creates local copies under Dir.
type Sink struct {
	fs  afero.Fs
	dir string
}

func NewSink(fs afero.Fs, dir string) *Sink {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if dir == "" {
		dir = "."
	}
	return &Sink{fs: fs, dir: dir}
}

// Create truncates or creates the local file for name.
func (s *Sink) Create(name string) (*LocalFile, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(s.dir, name)
	f, err := s.fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &LocalFile{fs: s.fs, f: f, Path: path}, nil
}

// LocalFile is a download in progress. It must end in Commit or Discard.
type LocalFile struct {
	fs      afero.Fs
	f       afero.File
	Path    string
	Written int64
}

func (l *LocalFile) Write(p []byte) (int, error) {
	n, err := l.f.Write(p)
	l.Written += int64(n)
	return n, err
}

func (l *LocalFile) Commit() error {
	if err := l.f.Close(); err != nil {
		_ = l.fs.Remove(l.Path)
		return fmt.Errorf("close %s: %w", l.Path, err)
	}
	return nil
}

// Discard closes and removes the partial file.
func (l *LocalFile) Discard() {
	_ = l.f.Close()
	_ = l.fs.Remove(l.Path)
}
