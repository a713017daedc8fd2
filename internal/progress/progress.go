// Package progress defines the one-way progress callback used by long
// running encodes, with a no-op default, a terminal bar and a recorder.
package progress

import (
	"io"
	"strings"
	"sync"
)

// Reporter receives monotonic progress ticks. Implementations must not
// affect the work being reported.
type Reporter interface {
	Begin(min, max, current float64)
	Update(value float64)
	Finish()
	Cancel()
}

// Nop discards all progress.
type Nop struct{}

func (Nop) Begin(float64, float64, float64) {}
func (Nop) Update(float64)                  {}
func (Nop) Finish()                         {}
func (Nop) Cancel()                         {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop{}
	}
	return r
}

// BarWidth is the number of cells between the brackets of a Bar.
const BarWidth = 77

// Bar draws a single-line text bar, redrawn in place with a carriage return.
// Updates after Cancel are ignored.
type Bar struct {
	w io.Writer

	mu        sync.Mutex
	min, max  float64
	cancelled bool
}

// NewBar returns a Bar writing to w, usually os.Stderr.
func NewBar(w io.Writer) *Bar {
	return &Bar{w: w}
}

func (b *Bar) Begin(min, max, current float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.min, b.max = min, max
	b.cancelled = false
	_, _ = io.WriteString(b.w, "\r["+strings.Repeat(" ", BarWidth)+"]")
	b.draw(current)
}

func (b *Bar) Update(value float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancelled {
		return
	}
	b.draw(value)
}

func (b *Bar) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, _ = io.WriteString(b.w, "\n")
}

func (b *Bar) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancelled = true
	_, _ = io.WriteString(b.w, "\n")
}

func (b *Bar) draw(value float64) {
	span := b.max - b.min
	if span <= 0 {
		return
	}
	cells := int(float64(BarWidth) * (value - b.min) / span)
	cells = max(0, min(BarWidth, cells))
	_, _ = io.WriteString(b.w, "\r["+strings.Repeat("#", cells))
}

// Event is one call captured by a Recorder.
type Event struct {
	Kind  string // "begin", "update", "finish" or "cancel"
	Value float64
	Max   float64
}

// Recorder keeps every call it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Begin(_, max, current float64) {
	r.add(Event{Kind: "begin", Value: current, Max: max})
}

func (r *Recorder) Update(value float64) { r.add(Event{Kind: "update", Value: value}) }

func (r *Recorder) Finish() { r.add(Event{Kind: "finish"}) }

func (r *Recorder) Cancel() { r.add(Event{Kind: "cancel"}) }

func (r *Recorder) add(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the captured calls.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}
