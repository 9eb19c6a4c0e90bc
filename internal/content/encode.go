package content

import (
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Encoder accumulates a canonical byte encoding.
// The zero value is ready to use. Encoding is total - no method can fail.
type Encoder struct {
	buf []byte
}

// NewEncoder creates an encoder with a small preallocated buffer.
func NewEncoder() *Encoder {
	return &Encoder{buf: make([]byte, 0, 128)}
}

// Bytes returns the accumulated encoding.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Tag appends a single variant tag byte.
func (e *Encoder) Tag(t byte) {
	e.buf = append(e.buf, t)
}

// Bool appends a boolean as a single byte (0x00 or 0x01).
func (e *Encoder) Bool(b bool) {
	if b {
		e.buf = append(e.buf, 0x01)
	} else {
		e.buf = append(e.buf, 0x00)
	}
}

// U32 appends a fixed-width little-endian uint32.
func (e *Encoder) U32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

// U64 appends a fixed-width little-endian uint64.
func (e *Encoder) U64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

// I64 appends a fixed-width little-endian int64 (two's complement).
func (e *Encoder) I64(v int64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, uint64(v))
}

// U128 appends a 128-bit quantity as lo then hi little-endian words.
func (e *Encoder) U128(lo, hi uint64) {
	e.U64(lo)
	e.U64(hi)
}

// Bytes32 appends a fixed 32-byte hash with no length prefix.
func (e *Encoder) Bytes32(h Hash) {
	e.buf = append(e.buf, h[:]...)
}

// LenBytes appends a u32 length prefix followed by the raw bytes.
func (e *Encoder) LenBytes(b []byte) {
	e.U32(uint32(len(b)))
	e.buf = append(e.buf, b...)
}

// String NFC-normalizes s and appends it length-prefixed.
// Normalization happens at the encoding boundary so that structurally
// equal values share one identity regardless of input composition form.
func (e *Encoder) String(s string) {
	e.LenBytes([]byte(norm.NFC.String(s)))
}

// StringMap appends a map[string]string as a u32 count followed by
// (key, value) pairs in ascending key order.
func (e *Encoder) StringMap(m map[string]string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	e.U32(uint32(len(keys)))
	for _, k := range keys {
		e.String(k)
		e.String(m[k])
	}
}

// Decoder reads a canonical encoding produced by Encoder.
// All methods return an error on truncated or malformed input.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder creates a decoder over b.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.off
}

// Done reports whether the input is fully consumed.
// Decoders should check this after the outermost value to reject
// trailing garbage.
func (d *Decoder) Done() bool {
	return d.off == len(d.buf)
}

func (d *Decoder) take(n int) ([]byte, error) {
	if d.Remaining() < n {
		return nil, fmt.Errorf("decode: need %d bytes, have %d", n, d.Remaining())
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b, nil
}

// Tag reads a variant tag byte.
func (d *Decoder) Tag() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Bool reads a boolean byte, rejecting values other than 0x00/0x01.
func (d *Decoder) Bool() (bool, error) {
	b, err := d.take(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, fmt.Errorf("decode: invalid bool byte 0x%02x", b[0])
	}
}

// U32 reads a little-endian uint32.
func (d *Decoder) U32() (uint32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a little-endian uint64.
func (d *Decoder) U64() (uint64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// I64 reads a little-endian int64.
func (d *Decoder) I64() (int64, error) {
	v, err := d.U64()
	return int64(v), err
}

// U128 reads a 128-bit quantity as lo then hi words.
func (d *Decoder) U128() (lo, hi uint64, err error) {
	if lo, err = d.U64(); err != nil {
		return 0, 0, err
	}
	if hi, err = d.U64(); err != nil {
		return 0, 0, err
	}
	return lo, hi, nil
}

// Bytes32 reads a fixed 32-byte hash.
func (d *Decoder) Bytes32() (Hash, error) {
	b, err := d.take(HashSize)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// LenBytes reads a u32 length prefix followed by that many bytes.
// The returned slice aliases the decoder's buffer.
func (d *Decoder) LenBytes() ([]byte, error) {
	n, err := d.U32()
	if err != nil {
		return nil, err
	}
	return d.take(int(n))
}

// String reads a length-prefixed string.
func (d *Decoder) String() (string, error) {
	b, err := d.LenBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// StringMap reads a map encoded by Encoder.StringMap.
// Rejects unsorted or duplicate keys - the encoding is canonical, so a
// non-canonical input is malformed by definition.
func (d *Decoder) StringMap() (map[string]string, error) {
	n, err := d.U32()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, n)
	prev := ""
	for i := uint32(0); i < n; i++ {
		k, err := d.String()
		if err != nil {
			return nil, err
		}
		if i > 0 && k <= prev {
			return nil, fmt.Errorf("decode: map keys not in canonical order (%q after %q)", k, prev)
		}
		v, err := d.String()
		if err != nil {
			return nil, err
		}
		m[k] = v
		prev = k
	}
	return m, nil
}
