package keycodec

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// DefaultTextWidth is the encoded width of Text keys when none is configured.
const DefaultTextWidth = 20

var (
	// ErrKeyType is returned when a value cannot be used as a key of the codec's kind.
	ErrKeyType = errors.New("keycodec: key type mismatch")
	// ErrKeyRange is returned when a numeric key does not fit the encoded type.
	ErrKeyRange = errors.New("keycodec: key out of range")
	// ErrKeyTooLong is returned when a text key exceeds the configured width.
	ErrKeyTooLong = errors.New("keycodec: text key too long")
	// ErrInvalidKind is returned for unknown kinds or kind names.
	ErrInvalidKind = errors.New("keycodec: invalid kind")
	// ErrInvalidWidth is returned when a Text codec is configured with a non-positive width.
	ErrInvalidWidth = errors.New("keycodec: invalid text width")
)

// Kind is the scalar type of a key.
type Kind uint8

const (
	Int Kind = iota + 1
	Float
	Text
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	case Text:
		return "text"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ParseKind maps an attribute type name to a Kind.
// Accepted names are int, serial, float, str and text (case-insensitive).
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "serial":
		return Int, nil
	case "float":
		return Float, nil
	case "str", "text":
		return Text, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidKind, name)
	}
}

// Codec encodes and compares keys of one kind. A Codec is immutable and safe
// for concurrent use.
type Codec struct {
	kind  Kind
	width int
}

// New creates a codec. textWidth is only used for Text; zero selects
// DefaultTextWidth.
func New(kind Kind, textWidth int) (*Codec, error) {
	switch kind {
	case Int, Float:
		return &Codec{kind: kind, width: 4}, nil
	case Text:
		if textWidth == 0 {
			textWidth = DefaultTextWidth
		}
		if textWidth < 0 {
			return nil, fmt.Errorf("%w: %d", ErrInvalidWidth, textWidth)
		}
		return &Codec{kind: kind, width: textWidth}, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidKind, kind)
	}
}

// MustNew is like New but panics on error.
func MustNew(kind Kind, textWidth int) *Codec {
	c, err := New(kind, textWidth)
	if err != nil {
		panic(err)
	}
	return c
}

// Kind returns the codec's key kind.
func (c *Codec) Kind() Kind { return c.kind }

// Width returns the encoded size of every key in bytes.
func (c *Codec) Width() int { return c.width }

// String describes the codec, e.g. "text(20)".
func (c *Codec) String() string {
	if c.kind == Text {
		return fmt.Sprintf("text(%d)", c.width)
	}
	return c.kind.String()
}

// Normalize converts v to the codec's canonical Go type (int32, float32 or string).
func (c *Codec) Normalize(v any) (any, error) {
	switch c.kind {
	case Int:
		return toInt32(v)
	case Float:
		return toFloat32(v)
	default:
		s, err := toText(v)
		if err != nil {
			return nil, err
		}
		if len(s) > c.width {
			return nil, fmt.Errorf("%w: %d bytes, width %d", ErrKeyTooLong, len(s), c.width)
		}
		return strings.TrimRight(s, "\x00"), nil
	}
}

// Encode returns the fixed-width encoding of v.
func (c *Codec) Encode(v any) ([]byte, error) {
	b := make([]byte, c.width)
	if err := c.EncodeTo(b, v); err != nil {
		return nil, err
	}
	return b, nil
}

// EncodeTo writes the encoding of v into dst, which must be at least Width bytes.
func (c *Codec) EncodeTo(dst []byte, v any) error {
	if len(dst) < c.width {
		return fmt.Errorf("keycodec: destination too small: %d < %d", len(dst), c.width)
	}
	dst = dst[:c.width]
	switch c.kind {
	case Int:
		i, err := toInt32(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, uint32(i))
	case Float:
		f, err := toFloat32(v)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint32(dst, floatBits(f))
	default:
		s, err := toText(v)
		if err != nil {
			return err
		}
		if len(s) > c.width {
			return fmt.Errorf("%w: %d bytes, width %d", ErrKeyTooLong, len(s), c.width)
		}
		n := copy(dst, s)
		clear(dst[n:])
	}
	return nil
}

// canonicalNaN is the single bit pattern stored for every NaN key.
const canonicalNaN = 0x7fc00000

// floatBits returns the stored bits of f. Negative zero is stored as zero
// and every NaN as canonicalNaN, so keys that compare equal encode equally.
func floatBits(f float32) uint32 {
	switch {
	case f != f:
		return canonicalNaN
	case f == 0:
		return 0
	}
	return math.Float32bits(f)
}

// Decode returns the Go value of an encoded key. b must be exactly Width bytes.
func (c *Codec) Decode(b []byte) any {
	switch c.kind {
	case Int:
		return int32(binary.LittleEndian.Uint32(b))
	case Float:
		return math.Float32frombits(binary.LittleEndian.Uint32(b))
	default:
		return string(bytes.TrimRight(b[:c.width], "\x00"))
	}
}

// Compare orders two key values. It fails when either value cannot be
// encoded with c.
func (c *Codec) Compare(a, b any) (int, error) {
	ea, err := c.Encode(a)
	if err != nil {
		return 0, err
	}
	eb, err := c.Encode(b)
	if err != nil {
		return 0, err
	}
	return c.CompareEncoded(ea, eb), nil
}

// CompareEncoded orders two encoded keys and returns -1, 0 or +1.
// Floats use a total order in which NaN sorts first.
func (c *Codec) CompareEncoded(a, b []byte) int {
	switch c.kind {
	case Int:
		return cmp.Compare(int32(binary.LittleEndian.Uint32(a)), int32(binary.LittleEndian.Uint32(b)))
	case Float:
		return cmp.Compare(math.Float32frombits(binary.LittleEndian.Uint32(a)), math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return bytes.Compare(bytes.TrimRight(a, "\x00"), bytes.TrimRight(b, "\x00"))
	}
}

// Format renders an encoded key for diagnostics.
func (c *Codec) Format(b []byte) string {
	if c.kind == Text {
		return fmt.Sprintf("%q", c.Decode(b))
	}
	return fmt.Sprint(c.Decode(b))
}

func toInt32(v any) (int32, error) {
	var i int64
	switch x := v.(type) {
	case int:
		i = int64(x)
	case int8:
		i = int64(x)
	case int16:
		i = int64(x)
	case int32:
		return x, nil
	case int64:
		i = x
	case uint8:
		i = int64(x)
	case uint16:
		i = int64(x)
	case uint32:
		i = int64(x)
	default:
		return 0, fmt.Errorf("%w: int key from %T", ErrKeyType, v)
	}
	if i < math.MinInt32 || i > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d does not fit int32", ErrKeyRange, i)
	}
	return int32(i), nil
}

func toFloat32(v any) (float32, error) {
	var f float64
	switch x := v.(type) {
	case float32:
		return x, nil
	case float64:
		f = x
	case int:
		f = float64(x)
	case int8:
		f = float64(x)
	case int16:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint8:
		f = float64(x)
	case uint16:
		f = float64(x)
	case uint32:
		f = float64(x)
	default:
		return 0, fmt.Errorf("%w: float key from %T", ErrKeyType, v)
	}
	if !math.IsNaN(f) && !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
		return 0, fmt.Errorf("%w: %g does not fit float32", ErrKeyRange, f)
	}
	return float32(f), nil
}

func toText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []byte:
		return string(x), nil
	default:
		return "", fmt.Errorf("%w: text key from %T", ErrKeyType, v)
	}
}
