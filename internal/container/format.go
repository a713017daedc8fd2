// Package container serialises encoded DSP-ADPCM streams into the RSTM
// (.brstm), CSTM (.bcstm) and CWAV (.bcwav) binary containers and reads them
// back for inspection.
//
// Every builder sizes the whole image first with a Plan, allocates it once
// and then fills it in place. References are written as offsets from the
// base each format defines and are checked once the image is complete.
package container

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/example/go-dspstream/internal/encoder"
)

// Format identifies a container family.
type Format int

const (
	BRSTM Format = iota + 1
	BCSTM
	BCWAV
)

// Formats lists the supported formats in a stable order.
var Formats = []Format{BRSTM, BCSTM, BCWAV}

func (f Format) String() string {
	switch f {
	case BRSTM:
		return "brstm"
	case BCSTM:
		return "bcstm"
	case BCWAV:
		return "bcwav"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Extension returns the conventional file extension, including the dot.
func (f Format) Extension() string { return "." + f.String() }

// Tag returns the four-byte file magic.
func (f Format) Tag() string {
	switch f {
	case BRSTM:
		return "RSTM"
	case BCSTM:
		return "CSTM"
	case BCWAV:
		return "CWAV"
	}
	return ""
}

// ParseFormat accepts a format name with or without the leading "b" or dot,
// case insensitively: "brstm", "RSTM" and ".bcstm" are all valid.
func ParseFormat(s string) (Format, error) {
	name := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	switch name {
	case "brstm", "rstm":
		return BRSTM, nil
	case "bcstm", "cstm":
		return BCSTM, nil
	case "bcwav", "cwav":
		return BCWAV, nil
	}
	return 0, fmt.Errorf("%w: unknown container format %q", ErrUnsupportedFormat, s)
}

// FormatFromPath picks the format from a file name's extension.
func FormatFromPath(path string) (Format, error) {
	ext := filepath.Ext(path)
	if ext == "" {
		return 0, fmt.Errorf("%w: %q has no extension", ErrUnsupportedFormat, path)
	}
	return ParseFormat(ext)
}

// Build serialises s as format f.
func Build(f Format, s *encoder.Stream) ([]byte, error) {
	switch f {
	case BRSTM:
		return BuildRSTM(s)
	case BCSTM:
		return BuildCSTM(s)
	case BCWAV:
		return BuildCWAV(s)
	}
	return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, f)
}
