package params

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"

	"github.com/DMarby/thumbs/internal/image"
	"github.com/gorilla/mux"
)

// Errors
var (
	ErrInvalidIdentifier   = fmt.Errorf("Invalid image identifier")
	ErrInvalidSize         = fmt.Errorf("Invalid size")
	ErrInvalidBounds       = fmt.Errorf("Invalid min/max bounds")
	ErrInvalidAutoContrast = fmt.Errorf("Invalid autocontrast value")
)

// Params contains all the parameters for a request
type Params struct {
	Identifier   string
	Width        int
	Height       int
	Min          image.Option[uint8]
	Max          image.Option[uint8]
	AutoContrast image.Option[bool]
}

// GetParams parses and returns all the path and query parameters
func GetParams(r *http.Request) (*Params, error) {
	identifier := mux.Vars(r)["identifier"]
	if identifier == "" {
		return nil, ErrInvalidIdentifier
	}

	query := r.URL.Query()

	// Get and validate the width and height
	width, height, err := getSize(query)
	if err != nil {
		return nil, err
	}

	// Get the optional tonal adjustment parameters
	low, err := byteParam(query, "min")
	if err != nil {
		return nil, err
	}

	high, err := byteParam(query, "max")
	if err != nil {
		return nil, err
	}

	if l, ok := low.Get(); ok {
		if h, ok := high.Get(); ok && l > h {
			return nil, ErrInvalidBounds
		}
	}

	autoContrast, err := getAutoContrast(query)
	if err != nil {
		return nil, err
	}

	params := &Params{
		Identifier:   identifier,
		Width:        width,
		Height:       height,
		Min:          low,
		Max:          high,
		AutoContrast: autoContrast,
	}

	return params, nil
}

// Task builds the image task for the parameters
func (p *Params) Task() *image.Task {
	return &image.Task{
		ImageID:      p.Identifier,
		Width:        p.Width,
		Height:       p.Height,
		Min:          p.Min,
		Max:          p.Max,
		AutoContrast: p.AutoContrast,
	}
}

// getSize gets the image size from the width/height query params, and validates it
func getSize(query url.Values) (width int, height int, err error) {
	width, ok := dimensionParam(query, "width")
	if !ok {
		return -1, -1, ErrInvalidSize
	}

	height, ok = dimensionParam(query, "height")
	if !ok {
		return -1, -1, ErrInvalidSize
	}

	return
}

// dimensionParam tries to get a param and convert it to a positive integer that fits in 32 bits
func dimensionParam(query url.Values, name string) (int, bool) {
	val, err := strconv.ParseUint(query.Get(name), 10, 32)
	if err != nil || val == 0 || val > math.MaxInt32 {
		return -1, false
	}

	return int(val), true
}

// byteParam gets an optional param in the range [0, 255]
func byteParam(query url.Values, name string) (image.Option[uint8], error) {
	if _, ok := query[name]; !ok {
		return image.None[uint8](), nil
	}

	val, err := strconv.ParseUint(query.Get(name), 10, 8)
	if err != nil {
		return image.None[uint8](), ErrInvalidBounds
	}

	return image.Some(uint8(val)), nil
}

// getAutoContrast returns the optional autocontrast param, a bare ?autocontrast enables it
func getAutoContrast(query url.Values) (image.Option[bool], error) {
	if _, ok := query["autocontrast"]; !ok {
		return image.None[bool](), nil
	}

	val := query.Get("autocontrast")
	if val == "" {
		return image.Some(true), nil
	}

	enabled, err := strconv.ParseBool(val)
	if err != nil {
		return image.None[bool](), ErrInvalidAutoContrast
	}

	return image.Some(enabled), nil
}
