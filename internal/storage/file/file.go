package file

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"syscall"

	"github.com/DMarby/thumbs/internal/storage"
)

// Provider implements a file-based image storage rooted at a directory
type Provider struct {
	path string
}

// New returns a new Provider instance
func New(path string) (*Provider, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		return nil, &os.PathError{Op: "open", Path: path, Err: syscall.ENOTDIR}
	}

	return &Provider{
		path,
	}, nil
}

// Get returns the image data for an identifier, a slash separated path relative to the storage root
// The identifier is cleaned as a rooted path, so it can't refer to files outside of the root
func (p *Provider) Get(ctx context.Context, id string) ([]byte, error) {
	imageData, err := os.ReadFile(p.resolve(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.EISDIR) || errors.Is(err, syscall.ENOTDIR) {
			return nil, storage.ErrNotFound
		}

		return nil, err
	}

	return imageData, nil
}

func (p *Provider) resolve(id string) string {
	return filepath.Join(p.path, filepath.FromSlash(path.Clean("/"+id)))
}
