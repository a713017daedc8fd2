// Package binio provides fixed-width big- and little-endian access to byte
// images. Writers address an owned, zero-initialised buffer and treat an out
// of range write as a layout bug; readers address untrusted input and report
// out of range reads as errors.
package binio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfRange is returned by View accessors when a read would cross the end
// of the underlying buffer.
var ErrOutOfRange = errors.New("offset out of range")

// Image is a fixed-size output buffer. Its size is decided once, before any
// field is written.
type Image struct {
	buf   []byte
	order binary.ByteOrder
}

// NewImage allocates a zeroed image of size bytes using order as the default
// byte order for multi-byte fields.
func NewImage(size int, order binary.ByteOrder) *Image {
	if size < 0 {
		panic(fmt.Sprintf("binio: negative image size %d", size))
	}
	return &Image{buf: make([]byte, size), order: order}
}

// Bytes returns the image contents. The caller takes ownership.
func (m *Image) Bytes() []byte { return m.buf }

// Len returns the image size in bytes.
func (m *Image) Len() int { return len(m.buf) }

// At returns a section writer whose offsets are relative to base.
func (m *Image) At(base int) Section {
	return Section{img: m, base: base, order: m.order}
}

func (m *Image) span(off, n int) []byte {
	if off < 0 || n < 0 || off+n > len(m.buf) {
		panic(fmt.Sprintf("binio: %d-byte write at %#x outside %#x-byte image", n, off, len(m.buf)))
	}
	return m.buf[off : off+n]
}

// Section writes fields at offsets relative to a base inside an Image.
type Section struct {
	img   *Image
	base  int
	order binary.ByteOrder
}

// Base returns the absolute offset of the section.
func (s Section) Base() int { return s.base }

// At returns a nested section at off relative to s.
func (s Section) At(off int) Section {
	return Section{img: s.img, base: s.base + off, order: s.order}
}

// WithOrder returns a view of the same section using a different byte order.
func (s Section) WithOrder(order binary.ByteOrder) Section {
	s.order = order
	return s
}

func (s Section) PutU8(off int, v uint8) { s.img.span(s.base+off, 1)[0] = v }

func (s Section) PutU16(off int, v uint16) { s.order.PutUint16(s.img.span(s.base+off, 2), v) }

func (s Section) PutU32(off int, v uint32) { s.order.PutUint32(s.img.span(s.base+off, 4), v) }

func (s Section) PutI16(off int, v int16) { s.PutU16(off, uint16(v)) }

func (s Section) PutI32(off int, v int32) { s.PutU32(off, uint32(v)) }

// PutTag writes a four-character section magic.
func (s Section) PutTag(off int, tag string) {
	if len(tag) != 4 {
		panic(fmt.Sprintf("binio: tag %q is not four bytes", tag))
	}
	copy(s.img.span(s.base+off, 4), tag)
}

// Copy writes src verbatim at off.
func (s Section) Copy(off int, src []byte) {
	copy(s.img.span(s.base+off, len(src)), src)
}

// View reads fields from a byte slice it does not own.
type View struct {
	buf   []byte
	order binary.ByteOrder
}

// NewView wraps buf for reads in the given byte order.
func NewView(buf []byte, order binary.ByteOrder) View {
	return View{buf: buf, order: order}
}

// Len returns the size of the viewed buffer.
func (v View) Len() int { return len(v.buf) }

// WithOrder returns the same view using a different byte order.
func (v View) WithOrder(order binary.ByteOrder) View {
	v.order = order
	return v
}

// Slice returns n bytes at off without copying.
func (v View) Slice(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off > len(v.buf) || n > len(v.buf)-off {
		return nil, fmt.Errorf("%w: %d bytes at %#x of %#x", ErrOutOfRange, n, off, len(v.buf))
	}
	return v.buf[off : off+n], nil
}

func (v View) U8(off int) (uint8, error) {
	b, err := v.Slice(off, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (v View) U16(off int) (uint16, error) {
	b, err := v.Slice(off, 2)
	if err != nil {
		return 0, err
	}
	return v.order.Uint16(b), nil
}

func (v View) U32(off int) (uint32, error) {
	b, err := v.Slice(off, 4)
	if err != nil {
		return 0, err
	}
	return v.order.Uint32(b), nil
}

func (v View) I16(off int) (int16, error) {
	u, err := v.U16(off)
	return int16(u), err
}

func (v View) I32(off int) (int32, error) {
	u, err := v.U32(off)
	return int32(u), err
}

// Tag returns the four bytes at off as a string.
func (v View) Tag(off int) (string, error) {
	b, err := v.Slice(off, 4)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// RoundUp rounds n up to the next multiple of align, which must be a power of
// two.
func RoundUp(n, align int) int {
	return (n + align - 1) &^ (align - 1)
}
