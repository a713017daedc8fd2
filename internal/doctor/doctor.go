// Package doctor runs structural checks over a built stream container and
// reports each one as a pass or fail line.
package doctor

import (
	"fmt"
	"io"

	"github.com/example/go-dspstream/internal/container"
	"github.com/example/go-dspstream/internal/dspadpcm"
	"github.com/example/go-dspstream/internal/encoder"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// checker writes one line per check and records failures.
type checker struct {
	w   io.Writer
	res *Result
}

func (c checker) pass(format string, args ...any) {
	fmt.Fprintf(c.w, "%s %s\n", PassMark, fmt.Sprintf(format, args...))
}

func (c checker) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.res.fail(msg)
	fmt.Fprintf(c.w, "%s %s\n", FailMark, msg)
}

// Check parses buf as a stream container and verifies the header against
// the payload. Output lines go to w.
func Check(buf []byte, w io.Writer) Result {
	var res Result
	c := checker{w: w, res: &res}

	info, err := container.Inspect(buf)
	if err != nil {
		c.fail("header: %v", err)
		return res
	}
	c.pass("header: %s, %d channel(s), %d Hz, %d samples", info.Format, info.Channels, info.SampleRate, info.Samples())

	checkLength(c, info, len(buf))
	checkLoop(c, info)
	checkSeek(c, info)
	for ch := range info.Channels {
		checkChannel(c, info, ch)
	}
	return res
}

func checkLength(c checker, info *container.Info, size int) {
	sum := 0x40
	for _, s := range info.Sections {
		sum += s.Size
	}
	switch {
	case info.Length != size:
		c.fail("length: header says %d bytes, file is %d", info.Length, size)
	case sum != info.Length:
		c.fail("length: sections add up to %d bytes, header says %d", sum, info.Length)
	default:
		c.pass("length: %d bytes in %d sections", info.Length, len(info.Sections))
	}
}

func checkLoop(c checker, info *container.Info) {
	if !info.Looping {
		c.pass("loop: none")
		return
	}
	switch {
	case info.LoopStart%encoder.SamplesPerBlock != 0:
		c.fail("loop: start %d is not on a block boundary", info.LoopStart)
	case info.LoopStart >= info.Samples():
		c.fail("loop: start %d is past the last sample %d", info.LoopStart, info.Samples())
	default:
		c.pass("loop: %d..%d", info.LoopStart, info.Samples())
	}
}

func checkSeek(c checker, info *container.Info) {
	if info.Format == container.BCWAV {
		return
	}
	want := info.Blocks.SeekEntries() * info.Channels * 4
	if len(info.Seek) < want {
		c.fail("seek table: %d bytes, want at least %d", len(info.Seek), want)
		return
	}
	c.pass("seek table: %d entries per channel", info.Blocks.SeekEntries())
}

// checkChannel compares the stored predictor/scale bytes against the frames
// they describe and checks every frame header.
func checkChannel(c checker, info *container.Info, ch int) {
	data := info.ChannelData(ch)
	ci := info.Channel[ch]

	if len(data) == 0 || data[0] != ci.PS {
		c.fail("channel %d: initial ps %#02x does not match first frame", ch, ci.PS)
		return
	}
	if info.Looping {
		off := info.LoopStart / encoder.SamplesPerBlock * encoder.BytesPerBlock
		if off >= len(data) || data[off] != ci.LPS {
			c.fail("channel %d: loop ps %#02x does not match loop frame", ch, ci.LPS)
			return
		}
	}

	base := 0
	for b := range info.Blocks.Count {
		frames := dspadpcm.FrameCount(info.Blocks.Samples(b))
		for f := range frames {
			hdr := data[base+f*dspadpcm.BytesPerFrame]
			if int(hdr>>4) >= dspadpcm.NumPredictors {
				c.fail("channel %d: block %d frame %d uses predictor %d", ch, b, f, hdr>>4)
				return
			}
		}
		base += info.Blocks.Size(b)
	}
	c.pass("channel %d: ps %#02x, %d frames", ch, ci.PS, dspadpcm.FrameCount(info.Samples()))
}
