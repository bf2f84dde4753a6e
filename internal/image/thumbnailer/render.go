package thumbnailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/DMarby/thumbs/internal/image"
	"github.com/DMarby/thumbs/internal/storage"
	"github.com/disintegration/imaging"

	// Additional source formats, imaging registers jpeg, png, gif, tiff and bmp
	_ "golang.org/x/image/webp"
)

// render resolves, decodes, resizes, adjusts and encodes a single thumbnail
func render(ctx context.Context, storageProvider storage.Provider, task *image.Task) ([]byte, error) {
	if err := task.Validate(); err != nil {
		return nil, err
	}

	source, err := storageProvider.Get(ctx, task.ImageID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", image.ErrSourceNotFound, task.ImageID)
		}

		return nil, fmt.Errorf("error getting image from storage: %w", err)
	}

	decoded, err := imaging.Decode(bytes.NewReader(source), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", image.ErrDecode, err)
	}

	// Fit scales down to fit within the bounds, preserving the aspect ratio
	thumbnail := imaging.Fit(decoded, task.Width, task.Height, imaging.Lanczos)

	if task.Toned() {
		thumbnail = adjustTone(thumbnail, task)
	}

	var buffer bytes.Buffer
	if err := imaging.Encode(&buffer, thumbnail, imaging.PNG); err != nil {
		return nil, fmt.Errorf("%w: %s", image.ErrEncode, err)
	}

	return buffer.Bytes(), nil
}
