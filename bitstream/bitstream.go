// Package bitstream is the runtime used by code that gen-bitpack emits.
//
// A State walks a fixed byte buffer one bit at a time, most significant
// bit first within each byte. Every value is stored in exactly the number
// of bits requested by the caller. Reads past the end of the buffer yield
// zero bits and writes past the end are dropped; callers are expected to
// size sector buffers from the generator's configuration.
package bitstream

import (
	"unsafe"
)

// State is a cursor over one sector buffer.
type State struct {
	buf []byte
	pos int
}

// New returns a State positioned at the first bit of buf.
func New(buf []byte) *State {
	return &State{buf: buf}
}

// Offset returns the number of bits consumed so far.
func (s *State) Offset() int {
	return s.pos
}

// Len returns the buffer capacity in bits.
func (s *State) Len() int {
	return len(s.buf) * 8
}

func (s *State) readBits(bits int) uint64 {
	var v uint64
	for i := 0; i < bits; i++ {
		v <<= 1
		byteIdx := s.pos >> 3
		if byteIdx < len(s.buf) {
			shift := 7 - uint(s.pos&7)
			v |= uint64(s.buf[byteIdx]>>shift) & 1
		}
		s.pos++
	}
	return v
}

func (s *State) writeBits(v uint64, bits int) {
	for i := bits - 1; i >= 0; i-- {
		byteIdx := s.pos >> 3
		if byteIdx < len(s.buf) {
			shift := 7 - uint(s.pos&7)
			mask := byte(1) << shift
			if (v>>uint(i))&1 != 0 {
				s.buf[byteIdx] |= mask
			} else {
				s.buf[byteIdx] &^= mask
			}
		}
		s.pos++
	}
}

func clampBits(bits, width int) int {
	if bits < 0 {
		return 0
	}
	if bits > width {
		return width
	}
	return bits
}

func signExtend(v uint64, bits int) int64 {
	if bits <= 0 || bits >= 64 {
		return int64(v)
	}
	shift := uint(64 - bits)
	return int64(v<<shift) >> shift
}

// ReadBool reads one bit.
func ReadBool(s *State) bool {
	return s.readBits(1) != 0
}

// WriteBool writes one bit.
func WriteBool(s *State, v bool) {
	if v {
		s.writeBits(1, 1)
		return
	}
	s.writeBits(0, 1)
}

// ReadU8 reads an unsigned value of up to 8 bits.
func ReadU8(s *State, bits int) uint8 {
	return uint8(s.readBits(clampBits(bits, 8)))
}

// ReadU16 reads an unsigned value of up to 16 bits.
func ReadU16(s *State, bits int) uint16 {
	return uint16(s.readBits(clampBits(bits, 16)))
}

// ReadU32 reads an unsigned value of up to 32 bits.
func ReadU32(s *State, bits int) uint32 {
	return uint32(s.readBits(clampBits(bits, 32)))
}

// ReadU64 reads an unsigned value of up to 64 bits.
func ReadU64(s *State, bits int) uint64 {
	return s.readBits(clampBits(bits, 64))
}

// ReadS8 reads a two's complement value of up to 8 bits, sign-extending it.
func ReadS8(s *State, bits int) int8 {
	bits = clampBits(bits, 8)
	return int8(signExtend(s.readBits(bits), bits))
}

// ReadS16 reads a two's complement value of up to 16 bits, sign-extending it.
func ReadS16(s *State, bits int) int16 {
	bits = clampBits(bits, 16)
	return int16(signExtend(s.readBits(bits), bits))
}

// ReadS32 reads a two's complement value of up to 32 bits, sign-extending it.
func ReadS32(s *State, bits int) int32 {
	bits = clampBits(bits, 32)
	return int32(signExtend(s.readBits(bits), bits))
}

// ReadS64 reads a two's complement value of up to 64 bits, sign-extending it.
func ReadS64(s *State, bits int) int64 {
	bits = clampBits(bits, 64)
	return signExtend(s.readBits(bits), bits)
}

// WriteU8 writes the low bits of v.
func WriteU8(s *State, v uint8, bits int) {
	s.writeBits(uint64(v), clampBits(bits, 8))
}

// WriteU16 writes the low bits of v.
func WriteU16(s *State, v uint16, bits int) {
	s.writeBits(uint64(v), clampBits(bits, 16))
}

// WriteU32 writes the low bits of v.
func WriteU32(s *State, v uint32, bits int) {
	s.writeBits(uint64(v), clampBits(bits, 32))
}

// WriteU64 writes the low bits of v.
func WriteU64(s *State, v uint64, bits int) {
	s.writeBits(v, clampBits(bits, 64))
}

// WriteS8 writes the low bits of v's two's complement form.
func WriteS8(s *State, v int8, bits int) {
	s.writeBits(uint64(uint8(v)), clampBits(bits, 8))
}

// WriteS16 writes the low bits of v's two's complement form.
func WriteS16(s *State, v int16, bits int) {
	s.writeBits(uint64(uint16(v)), clampBits(bits, 16))
}

// WriteS32 writes the low bits of v's two's complement form.
func WriteS32(s *State, v int32, bits int) {
	s.writeBits(uint64(uint32(v)), clampBits(bits, 32))
}

// WriteS64 writes the low bits of v's two's complement form.
func WriteS64(s *State, v int64, bits int) {
	s.writeBits(uint64(v), clampBits(bits, 64))
}

// ReadString reads length characters into dst. Characters beyond
// len(dst) are consumed and discarded.
func ReadString(s *State, dst []byte, length int) {
	for i := 0; i < length; i++ {
		c := byte(s.readBits(8))
		if i < len(dst) {
			dst[i] = c
		}
	}
}

// ReadStringTerminated reads length characters into dst and stores a
// terminating zero right after them.
func ReadStringTerminated(s *State, dst []byte, length int) {
	ReadString(s, dst, length)
	if length < len(dst) {
		dst[length] = 0
	}
}

// WriteString writes length characters of src, padding with zeros when
// src is shorter.
func WriteString(s *State, src []byte, length int) {
	for i := 0; i < length; i++ {
		var c byte
		if i < len(src) {
			c = src[i]
		}
		s.writeBits(uint64(c), 8)
	}
}

// WriteStringTerminated writes length characters of src. The terminator
// itself is implied by the fixed length and is not stored.
func WriteStringTerminated(s *State, src []byte, length int) {
	WriteString(s, src, length)
}

// ReadBuffer reads bytecount raw bytes into dst.
func ReadBuffer(s *State, dst []byte, bytecount int) {
	ReadString(s, dst, bytecount)
}

// WriteBuffer writes bytecount raw bytes from src.
func WriteBuffer(s *State, src []byte, bytecount int) {
	WriteString(s, src, bytecount)
}

// AsBytes reinterprets a slice of a named byte type as []byte.
func AsBytes[T ~uint8](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(unsafe.SliceData(s))), len(s))
}

// BytesOf exposes the memory of *p as a byte slice. T must not contain
// Go pointers.
func BytesOf[T any](p *T) []byte {
	var zero T
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), unsafe.Sizeof(zero))
}
