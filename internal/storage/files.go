package storage

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"

	"github.com/spf13/afero"
)

// Files is an ItemStore keeping one file per key under a root directory of
// an afero filesystem. Keys are path-escaped so the layout stays flat.
type Files struct {
	fs   afero.Fs
	root string
}

// NewFiles returns a Files store rooted at root on fs, creating root if needed.
func NewFiles(fs afero.Fs, root string) (*Files, error) {
	if err := fs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Files{fs: fs, root: root}, nil
}

// OpenFiles returns an Adapter over files in dir on the OS filesystem.
func OpenFiles(dir string) (Adapter, error) {
	files, err := NewFiles(afero.NewOsFs(), dir)
	if err != nil {
		return nil, err
	}
	return FromItems(files), nil
}

func (f *Files) pathOf(key string) string {
	return path.Join(f.root, url.PathEscape(key))
}

func (f *Files) GetItem(key string) (string, bool, error) {
	data, err := afero.ReadFile(f.fs, f.pathOf(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// SetItem writes through a temporary file and renames it into place, so a
// reader never observes a partial value. Temporary names start with ".",
// which no escaped key does.
func (f *Files) SetItem(key, value string) error {
	tmp, err := afero.TempFile(f.fs, f.root, ".stash-*")
	if err != nil {
		return err
	}
	_, err = tmp.WriteString(value)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = f.fs.Rename(tmp.Name(), f.pathOf(key))
	}
	if err != nil {
		_ = f.fs.Remove(tmp.Name())
		return err
	}
	return nil
}

func (f *Files) RemoveItem(key string) error {
	err := f.fs.Remove(f.pathOf(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
