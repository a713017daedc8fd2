package container

import (
	"fmt"

	"github.com/example/go-dspstream/internal/binio"
)

// Region is a named, contiguous part of a container image.
type Region struct {
	Name   string
	Offset int
	Size   int
}

// End returns the offset just past the region.
func (r Region) End() int { return r.Offset + r.Size }

// Plan lays regions out back to back. Sizes are fixed when a region is added,
// so every offset is known before the first byte of the image is written.
type Plan struct {
	regions  []Region
	resolved bool
}

// Add appends a region of size bytes rounded up to align.
func (p *Plan) Add(name string, size, align int) {
	if p.resolved {
		panic(fmt.Sprintf("container: region %q added to a resolved plan", name))
	}
	p.regions = append(p.regions, Region{Name: name, Size: binio.RoundUp(size, align)})
}

// Resolve assigns offsets in insertion order and returns the total size.
func (p *Plan) Resolve() int {
	off := 0
	for i := range p.regions {
		p.regions[i].Offset = off
		off += p.regions[i].Size
	}
	p.resolved = true
	return off
}

// Region returns the named region. Asking for a region before Resolve, or
// for one that was never added, is a layout bug.
func (p *Plan) Region(name string) Region {
	if !p.resolved {
		panic(fmt.Sprintf("container: region %q read before the plan was resolved", name))
	}
	for _, r := range p.regions {
		if r.Name == name {
			return r
		}
	}
	panic(fmt.Sprintf("container: no region %q in plan", name))
}

// Regions returns the resolved regions in file order.
func (p *Plan) Regions() []Region {
	return append([]Region(nil), p.regions...)
}
