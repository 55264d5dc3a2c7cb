package objectstore

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/invoicer/internal/domain/invoice"
)

var _ invoice.ObjectStore = (*FS)(nil)

// FS stores objects as files in a single directory. Writes go through a
// temporary file and a rename, so readers never observe a partial object.
type FS struct {
	dir     string
	baseURL string
}

// NewFS creates the directory if needed and returns a store rooted at it.
// A non-empty publicBaseURL is used to build object URLs.
func NewFS(dir, publicBaseURL string) (*FS, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create storage dir")
	}
	return &FS{dir: dir, baseURL: publicBaseURL}, nil
}

// Put writes body under key, replacing any existing object.
func (s *FS) Put(ctx context.Context, key string, body []byte, _ string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return invoice.Unavailable(errors.Wrap(err, "create temp file"))
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(body); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write object")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync object")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close object")
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrap(err, "chmod object")
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, key)); err != nil {
		return errors.Wrap(err, "rename object")
	}
	return nil
}

// Get opens the object stored under key.
func (s *FS) Get(_ context.Context, key string) (io.ReadCloser, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, invoice.ErrObjectNotFound
		}
		return nil, errors.Wrap(err, "open object")
	}
	return f, nil
}

// PublicURL returns the object URL when a public base URL is configured.
func (s *FS) PublicURL(key string) (string, bool) {
	return publicURL(s.baseURL, key)
}

// Ping reports whether the storage directory is accessible.
func (s *FS) Ping(context.Context) error {
	info, err := os.Stat(s.dir)
	if err != nil {
		return invoice.Unavailable(err)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", s.dir)
	}
	return nil
}
