package container

import (
	"fmt"

	"github.com/example/go-dspstream/internal/binio"
)

// Reference type tags of the little-endian formats.
const (
	refByteTable      = 0x0100
	refReferenceTable = 0x0101
	refSampleData     = 0x1F00
	refDSPADPCMInfo   = 0x0300

	refCSTMInfo        = 0x4000
	refCSTMSeek        = 0x4001
	refCSTMData        = 0x4002
	refCSTMStreamInfo  = 0x4100
	refCSTMTrackInfo   = 0x4101
	refCSTMChannelInfo = 0x4102

	refCWAVInfo         = 0x7000
	refCWAVData         = 0x7001
	refCWAVChannelTable = 0x7100
)

// ruintOffset marks an RSTM reference as an offset from its base rather than
// an absolute address.
const ruintOffset = 1

// refSize is the encoded size of both reference flavours.
const refSize = 8

type refSlot struct {
	sec binio.Section
	off int
}

// refWriter writes references and remembers where, so that a finished image
// can be checked for references that were never given a target.
type refWriter struct {
	slots []refSlot
	names []string
}

// ruint writes an RSTM reference: offset type, data type, reserved, offset.
func (w *refWriter) ruint(name string, sec binio.Section, off, target int) {
	sec.PutU8(off, ruintOffset)
	sec.PutU32(off+4, uint32(target))
	w.track(name, sec, off+4)
}

// ref writes a CSTM/CWAV reference: type, padding, offset.
func (w *refWriter) ref(name string, sec binio.Section, off int, typ uint16, target int) {
	sec.PutU16(off, typ)
	sec.PutI32(off+4, int32(target))
	w.track(name, sec, off+4)
}

func (w *refWriter) track(name string, sec binio.Section, off int) {
	w.slots = append(w.slots, refSlot{sec: sec, off: off})
	w.names = append(w.names, name)
}

// verify re-reads every written reference from the finished image.
func (w *refWriter) verify(img []byte) error {
	for i, s := range w.slots {
		b := img[s.sec.Base()+s.off : s.sec.Base()+s.off+4]
		if b[0]|b[1]|b[2]|b[3] == 0 {
			return fmt.Errorf("%w: %s", ErrNotPopulated, w.names[i])
		}
	}
	return nil
}
