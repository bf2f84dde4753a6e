package mock

import (
	"context"
)

// Provider implements a mock image storage that returns data that isn't an image
type Provider struct {
}

// Get returns the image data for an identifier
func (p *Provider) Get(ctx context.Context, id string) ([]byte, error) {
	return []byte("foo"), nil
}
