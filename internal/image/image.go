package image

import (
	"context"
	"errors"
)

// Processor is an image processor
type Processor interface {
	ProcessImage(ctx context.Context, task *Task) (processedImage []byte, err error)
}

// Errors
var (
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrSourceNotFound    = errors.New("image does not exist")
	ErrDecode            = errors.New("error decoding image")
	ErrEncode            = errors.New("error encoding image")
	ErrWorkContext       = errors.New("error running image task")
)
