package image

import (
	"fmt"
	"math"
)

// Option is an optional task parameter
type Option[T any] struct {
	value T
	set   bool
}

// Some returns an Option holding value
func Some[T any](value T) Option[T] {
	return Option[T]{value: value, set: true}
}

// None returns an empty Option
func None[T any]() Option[T] {
	return Option[T]{}
}

// Get returns the value and whether it is set
func (o Option[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the option holds a value
func (o Option[T]) IsSet() bool {
	return o.set
}

// Task is a thumbnail rendering task
type Task struct {
	ImageID      string
	Width        int
	Height       int
	Min          Option[uint8]
	Max          Option[uint8]
	AutoContrast Option[bool]
}

// NewTask creates a new thumbnail task
func NewTask(imageID string, width int, height int) *Task {
	return &Task{
		ImageID: imageID,
		Width:   width,
		Height:  height,
	}
}

// WithMin sets the lower bound of the output intensity range
func (t *Task) WithMin(low uint8) *Task {
	t.Min = Some(low)
	return t
}

// WithMax sets the upper bound of the output intensity range
func (t *Task) WithMax(high uint8) *Task {
	t.Max = Some(high)
	return t
}

// WithAutoContrast sets whether the intensity histogram is stretched to the output range
func (t *Task) WithAutoContrast(enabled bool) *Task {
	t.AutoContrast = Some(enabled)
	return t
}

// Toned reports whether any tonal adjustment parameter is present
func (t *Task) Toned() bool {
	return t.Min.IsSet() || t.Max.IsSet() || t.AutoContrast.IsSet()
}

// OutputRange returns the output intensity range, defaulting to [0, 255]
func (t *Task) OutputRange() (low uint8, high uint8) {
	low, high = 0, math.MaxUint8
	if v, ok := t.Min.Get(); ok {
		low = v
	}
	if v, ok := t.Max.Get(); ok {
		high = v
	}
	return
}

// Validate checks that the task can be rendered
func (t *Task) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("%w: width and height must be positive", ErrInvalidParameters)
	}

	if uint64(t.Width) > math.MaxUint32 || uint64(t.Height) > math.MaxUint32 {
		return fmt.Errorf("%w: width and height out of range", ErrInvalidParameters)
	}

	if low, high := t.OutputRange(); low > high {
		return fmt.Errorf("%w: min must not exceed max", ErrInvalidParameters)
	}

	return nil
}
