package value

import (
	"fmt"

	"github.com/weftlabs/weft/internal/content"
)

// Variant tag bytes for the canonical encoding.
// The tag space is closed; adding a variant requires a new domain version.
const (
	tagUnit     byte = 0x00
	tagBool     byte = 0x01
	tagInt      byte = 0x02
	tagPair     byte = 0x03
	tagSum      byte = 0x04
	tagResource byte = 0x05
	tagChannel  byte = 0x06
)

// Encode appends the canonical encoding of v to e.
// Encoding is total: every Value has exactly one encoding.
func Encode(e *content.Encoder, v Value) {
	switch val := v.(type) {
	case Unit:
		e.Tag(tagUnit)
	case Bool:
		e.Tag(tagBool)
		e.Bool(bool(val))
	case Int:
		e.Tag(tagInt)
		e.I64(int64(val))
	case Pair:
		e.Tag(tagPair)
		Encode(e, val.First)
		Encode(e, val.Second)
	case Sum:
		e.Tag(tagSum)
		e.Bool(val.Side == Right)
		Encode(e, val.Inner)
	case ResourceRef:
		e.Tag(tagResource)
		e.Bytes32(val.ID)
	case ChannelID:
		e.Tag(tagChannel)
		e.U64(uint64(val))
	default:
		// Unreachable: Value is sealed.
		panic(fmt.Sprintf("value: unknown variant %T", v))
	}
}

// EncodeBytes returns the canonical encoding of v as a fresh byte slice.
func EncodeBytes(v Value) []byte {
	e := content.NewEncoder()
	Encode(e, v)
	return e.Bytes()
}

// ContentID returns the content address of v.
func ContentID(v Value) content.Hash {
	return content.Sum(content.DomainValue, EncodeBytes(v))
}

// Decode reads one canonically encoded value from d.
func Decode(d *content.Decoder) (Value, error) {
	tag, err := d.Tag()
	if err != nil {
		return nil, err
	}
	switch tag {
	case tagUnit:
		return Unit{}, nil
	case tagBool:
		b, err := d.Bool()
		if err != nil {
			return nil, err
		}
		return Bool(b), nil
	case tagInt:
		n, err := d.I64()
		if err != nil {
			return nil, err
		}
		return Int(n), nil
	case tagPair:
		first, err := Decode(d)
		if err != nil {
			return nil, err
		}
		second, err := Decode(d)
		if err != nil {
			return nil, err
		}
		return Pair{First: first, Second: second}, nil
	case tagSum:
		right, err := d.Bool()
		if err != nil {
			return nil, err
		}
		inner, err := Decode(d)
		if err != nil {
			return nil, err
		}
		side := Left
		if right {
			side = Right
		}
		return Sum{Side: side, Inner: inner}, nil
	case tagResource:
		id, err := d.Bytes32()
		if err != nil {
			return nil, err
		}
		return ResourceRef{ID: id}, nil
	case tagChannel:
		ch, err := d.U64()
		if err != nil {
			return nil, err
		}
		return ChannelID(ch), nil
	default:
		return nil, fmt.Errorf("value: unknown variant tag 0x%02x", tag)
	}
}

// DecodeBytes decodes exactly one value from b, rejecting trailing bytes.
func DecodeBytes(b []byte) (Value, error) {
	d := content.NewDecoder(b)
	v, err := Decode(d)
	if err != nil {
		return nil, err
	}
	if !d.Done() {
		return nil, fmt.Errorf("value: %d trailing bytes after value", d.Remaining())
	}
	return v, nil
}
