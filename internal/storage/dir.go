package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Dir is a filesystem-backed Archive rooted at a base directory.
type Dir struct{ base string }

func NewDir(base string) (*Dir, error) {
	if base == "" {
		base = "data"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	return &Dir{base: base}, nil
}

func (d *Dir) Save(key string, r io.Reader) error {
	dst, err := d.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func (d *Dir) Open(key string) (io.ReadCloser, error) {
	p, err := d.path(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// path resolves key under base, refusing keys that would escape it.
func (d *Dir) path(key string) (string, error) {
	if key == "" {
		return "", errors.New("empty archive key")
	}
	if !filepath.IsLocal(key) {
		return "", errors.New("archive key escapes base directory: " + key)
	}
	return filepath.Join(d.base, key), nil
}
