package thumbapi

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/DMarby/thumbs/internal/fingerprint"
	"github.com/DMarby/thumbs/internal/handler"
	"github.com/DMarby/thumbs/internal/image"
	"github.com/DMarby/thumbs/internal/params"
	"github.com/DMarby/thumbs/internal/tracing"
	"github.com/twmb/murmur3"
)

func (a *API) thumbnailHandler(w http.ResponseWriter, r *http.Request) *handler.Error {
	// Get the path and query parameters
	p, err := params.GetParams(r)
	if err != nil {
		return handler.BadRequest(err.Error())
	}

	// Validate the parameters before touching the cache
	task := p.Task()
	if err := task.Validate(); err != nil {
		return handler.BadRequest("Invalid parameters")
	}

	key := fingerprint.Generate(task).String()

	ctx, span := a.Tracer.Start(r.Context(), "thumbapi.thumbnailHandler")
	defer span.End()
	span.SetAttributes(tracing.KeyAttribute(key))

	// Get the thumbnail from the cache, rendering it on a miss
	thumbnail, err := a.Cache.Get(ctx, key, func(ctx context.Context, key string) ([]byte, error) {
		return a.ImageProcessor.ProcessImage(ctx, task)
	})
	if err != nil {
		return a.thumbnailError(r, err)
	}

	etag := fmt.Sprintf("\"%016x\"", murmur3.Sum64(thumbnail))

	// Set the headers
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": buildFilename(task)}))
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("ETag", etag)

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	// Return the thumbnail, the client may already be gone
	if _, err := w.Write(thumbnail); err != nil {
		a.logDebug(r, "error writing thumbnail", err)
	}

	return nil
}

// thumbnailError maps rendering errors to responses, without exposing the underlying error
func (a *API) thumbnailError(r *http.Request, err error) *handler.Error {
	switch {
	case errors.Is(err, image.ErrInvalidParameters):
		return handler.BadRequest("Invalid parameters")
	case errors.Is(err, image.ErrSourceNotFound):
		a.logDebug(r, "image not found", err)
		return handler.NotFound("Image does not exist")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// The client went away or the handler timed out, the render continues in the background
		a.logDebug(r, "request ended before the thumbnail was rendered", err)
		return handler.InternalServerError()
	default:
		a.logError(r, "error processing image", err)
		return handler.InternalServerError()
	}
}

func buildFilename(task *image.Task) string {
	base := path.Base(task.ImageID)
	base = strings.TrimSuffix(base, path.Ext(base))

	filename := fmt.Sprintf("%s-%dx%d", base, task.Width, task.Height)

	if low, ok := task.Min.Get(); ok {
		filename += fmt.Sprintf("-min_%d", low)
	}

	if high, ok := task.Max.Get(); ok {
		filename += fmt.Sprintf("-max_%d", high)
	}

	if autoContrast, ok := task.AutoContrast.Get(); ok && autoContrast {
		filename += "-autocontrast"
	}

	return filename + ".png"
}
