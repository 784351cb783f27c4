// Package fotostore keeps attendance capture photos as JPEG files on disk.
package fotostore

import (
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/hudhuria/core/attendance"
)

const jpegQuality = 90

type Store struct {
	dir string
}

var _ attendance.PhotoStore = (*Store)(nil)

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating photo dir")
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Save(filename string, img image.Image) error {
	path, err := s.safePath(filename)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating photo file")
	}
	defer func() { _ = f.Close() }()

	if err = jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return errors.Wrap(err, "encoding photo")
	}
	return nil
}

// Path returns the on-disk location of a stored photo, or
// attendance.ErrPhotoNotFound.
func (s *Store) Path(filename string) (string, error) {
	path, err := s.safePath(filename)
	if err != nil {
		return "", err
	}
	if _, err = os.Stat(path); err != nil {
		return "", attendance.ErrPhotoNotFound
	}
	return path, nil
}

// safePath rejects filenames that escape the photo dir.
func (s *Store) safePath(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", attendance.ErrPhotoNotFound
	}
	return filepath.Join(s.dir, filename), nil
}
