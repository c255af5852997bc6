package wire

import "encoding/binary"

// Builder accumulates bytes for a wire codec the way the teacher's
// serializers build up a byte slice field by field, but centralizes the
// big-endian put calls so every codec in frame/netpkt uses one convention.
type Builder struct {
	buf []byte
}

// NewBuilder returns a Builder with capacity hinted by size.
func NewBuilder(size int) *Builder {
	return &Builder{buf: make([]byte, 0, size)}
}

// PutByte appends a single byte.
func (b *Builder) PutByte(v byte) *Builder {
	b.buf = append(b.buf, v)
	return b
}

// PutUint16 appends v big-endian.
func (b *Builder) PutUint16(v uint16) *Builder {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

// PutUint32 appends v big-endian.
func (b *Builder) PutUint32(v uint32) *Builder {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	b.buf = append(b.buf, tmp[:]...)
	return b
}

// PutBytes appends raw bytes verbatim.
func (b *Builder) PutBytes(v []byte) *Builder {
	b.buf = append(b.buf, v...)
	return b
}

// Bytes returns the accumulated byte slice.
func (b *Builder) Bytes() []byte {
	return b.buf
}

// Reader walks a byte slice the way the codecs' deserializers consume one,
// field by field, returning ErrInvalidFormat (via ok=false) once the slice
// is exhausted instead of panicking on a short buffer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential field extraction.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports how many unread bytes remain.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

// Byte reads one byte.
func (r *Reader) Byte() (byte, bool) {
	if r.Remaining() < 1 {
		return 0, false
	}
	v := r.buf[r.pos]
	r.pos++
	return v, true
}

// Uint16 reads a big-endian uint16.
func (r *Reader) Uint16() (uint16, bool) {
	if r.Remaining() < 2 {
		return 0, false
	}
	v := binary.BigEndian.Uint16(r.buf[r.pos : r.pos+2])
	r.pos += 2
	return v, true
}

// Uint32 reads a big-endian uint32.
func (r *Reader) Uint32() (uint32, bool) {
	if r.Remaining() < 4 {
		return 0, false
	}
	v := binary.BigEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, true
}

// Bytes reads n raw bytes.
func (r *Reader) Bytes(n int) ([]byte, bool) {
	if r.Remaining() < n {
		return nil, false
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, true
}

// Rest returns every byte not yet consumed.
func (r *Reader) Rest() []byte {
	v := r.buf[r.pos:]
	r.pos = len(r.buf)
	return v
}
