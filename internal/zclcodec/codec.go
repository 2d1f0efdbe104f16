// Package zclcodec encodes and decodes ZCL primitive streams and validates
// OTA Upgrade cluster frames (§4.A). It uses only the standard library:
// it owns the raw little-endian byte-stream helpers the source's OTA
// validators need directly.
package zclcodec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
)

// ErrShortBuffer is returned by the get* helpers when the buffer doesn't
// have enough remaining bytes.
var ErrShortBuffer = errors.New("zclcodec: short buffer")

// Reader decodes a little-endian ZCL primitive stream.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// GetRemaining reports how many bytes are left to read.
func (r *Reader) GetRemaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) take(n int) ([]byte, error) {
	if r.GetRemaining() < n {
		return nil, ErrShortBuffer
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) GetU8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) GetI8() (int8, error) {
	v, err := r.GetU8()
	return int8(v), err
}

func (r *Reader) GetU16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) GetI16() (int16, error) {
	v, err := r.GetU16()
	return int16(v), err
}

func (r *Reader) GetU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) GetI32() (int32, error) {
	v, err := r.GetU32()
	return int32(v), err
}

func (r *Reader) GetU64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// GetString reads a length-prefixed, single-byte-counted string.
func (r *Reader) GetString() (string, error) {
	n, err := r.GetU8()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Writer encodes a little-endian ZCL primitive stream.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the bytes written so far.
func (w *Writer) Bytes() []byte {
	return w.buf
}

func (w *Writer) PutU8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *Writer) PutI8(v int8) {
	w.PutU8(uint8(v))
}

func (w *Writer) PutU16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutI16(v int16) {
	w.PutU16(uint16(v))
}

func (w *Writer) PutU32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

func (w *Writer) PutI32(v int32) {
	w.PutU32(uint32(v))
}

func (w *Writer) PutU64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}

// PutString writes a length-prefixed, single-byte-counted string.
func (w *Writer) PutString(s string) error {
	if len(s) > 0xff {
		return fmt.Errorf("zclcodec: string too long (%d bytes)", len(s))
	}
	w.PutU8(uint8(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// FormatFirmwareVersion renders a 32-bit firmware version the way the
// source displays it: fixed "0x%08x" lower-hex.
func FormatFirmwareVersion(v uint32) string {
	return fmt.Sprintf("0x%08x", v)
}

// ParseFirmwareVersion accepts the canonical "0x%08x" form plus any
// strtoul-compatible prefix: base is auto-detected from a 0x/0 prefix,
// matching the source's use of strtoul.
func ParseFirmwareVersion(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("zclcodec: invalid firmware version %q: %w", s, err)
	}
	return uint32(v), nil
}
