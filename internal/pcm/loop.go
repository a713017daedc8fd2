package pcm

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLoop parses a loop spec of the form "start" or "start-end". An end
// of 0, or no end at all, loops to the end of the stream.
func ParseLoop(spec string) (start, end int, err error) {
	startStr, endStr, hasEnd := strings.Cut(strings.TrimSpace(spec), "-")
	start, err = parseFrame(startStr)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: loop %q: %w", ErrInvalidInput, spec, err)
	}
	if hasEnd {
		end, err = parseFrame(endStr)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: loop %q: %w", ErrInvalidInput, spec, err)
		}
	}
	return start, end, nil
}

func parseFrame(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("bad frame %q", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative frame %d", n)
	}
	return n, nil
}
