package container

import "errors"

var (
	// ErrUnsupportedFormat is returned when a stream or source image cannot
	// be represented in the requested container.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNotPopulated is returned when a reference is still zero after a
	// container has been written, or is zero in a parsed image.
	ErrNotPopulated = errors.New("reference not populated")
)
