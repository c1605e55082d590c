// Package param decodes lms2012 instruction parameters into tagged values.
// Decoding and text rendering are separate: every Value renders itself with
// String().
package param

import (
	"math"
	"strconv"
	"strings"

	"lmsdisasm/internal/catalog"
	"lmsdisasm/internal/common"
	"lmsdisasm/internal/cursor"
	"lmsdisasm/internal/lms"
)

// Value is one decoded parameter.
type Value interface {
	String() string
	isValue()
}

// Immediate is an unsigned constant.
type Immediate struct{ V uint32 }

// SignedImmediate is a short-form negative constant.
type SignedImmediate struct{ V int32 }

// FloatImmediate is a 4-byte IEEE-754 constant kept as its raw bit pattern.
type FloatImmediate struct{ Bits uint32 }

// StringLiteral holds the raw bytes of a zero-terminated string, without the
// terminator.
type StringLiteral struct{ Raw []byte }

// VariableRef names a local or global slot. Handle marks an array handle
// reference.
type VariableRef struct {
	Global bool
	Handle bool
	Index  uint32
}

// LabelRef is a constant carrying a label index.
type LabelRef struct{ Index uint8 }

// ObjectRef is a call target.
type ObjectRef struct{ ID uint32 }

// OffsetRef is a resolved jump target inside an object.
type OffsetRef struct {
	Object int
	Offset int
}

// SubcodeName is the resolved name of a subcode discriminator.
type SubcodeName struct{ Name string }

// UnknownSubcode marks a discriminator with no entry in its table. Raw is the
// decoded discriminator.
type UnknownSubcode struct{ Raw Value }

func (Immediate) isValue()       {}
func (SignedImmediate) isValue() {}
func (FloatImmediate) isValue()  {}
func (StringLiteral) isValue()   {}
func (VariableRef) isValue()     {}
func (LabelRef) isValue()        {}
func (ObjectRef) isValue()       {}
func (OffsetRef) isValue()       {}
func (SubcodeName) isValue()     {}
func (UnknownSubcode) isValue()  {}

func (v Immediate) String() string       { return strconv.FormatUint(uint64(v.V), 10) }
func (v SignedImmediate) String() string { return strconv.FormatInt(int64(v.V), 10) }
func (v LabelRef) String() string        { return "LABEL" + strconv.Itoa(int(v.Index)) }
func (v ObjectRef) String() string       { return "OBJECT" + strconv.FormatUint(uint64(v.ID), 10) }
func (v SubcodeName) String() string     { return v.Name }

func (v OffsetRef) String() string {
	return "OFFSET" + strconv.Itoa(v.Object) + "_" + strconv.Itoa(v.Offset)
}

func (v UnknownSubcode) String() string {
	return "UNKNOWN_SUBCODE_" + v.Raw.String()
}

func (v VariableRef) String() string {
	var sb strings.Builder
	if v.Handle {
		sb.WriteByte('@')
	}
	if v.Global {
		sb.WriteString("GLOBAL")
	} else {
		sb.WriteString("LOCAL")
	}
	sb.WriteString(strconv.FormatUint(uint64(v.Index), 10))
	return sb.String()
}

// String renders the sentinel name or the value with an F suffix.
func (v FloatImmediate) String() string {
	switch v.Bits {
	case lms.DataFMax:
		return "DATAF_MAX"
	case lms.DataFMin:
		return "DATAF_MIN"
	case lms.DataFNaN:
		return "DATAF_NAN"
	}
	return FormatFloat(math.Float32frombits(v.Bits)) + "F"
}

// Float returns the numeric value.
func (v FloatImmediate) Float() float32 { return math.Float32frombits(v.Bits) }

// FormatFloat renders the shortest decimal that reads back as f. Whole
// numbers keep a trailing ".0".
func FormatFloat(f float32) string {
	switch {
	case math.IsNaN(float64(f)):
		return "nan"
	case math.IsInf(float64(f), 1):
		return "inf"
	case math.IsInf(float64(f), -1):
		return "-inf"
	}
	abs := math.Abs(float64(f))
	format := byte('f')
	if abs != 0 && (abs < 1e-5 || abs >= 1e16) {
		format = 'e'
	}
	s := strconv.FormatFloat(float64(f), format, -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

// String quotes the literal, escaping tab, CR, LF and the quote character.
func (v StringLiteral) String() string {
	return Quote(v.Raw)
}

var quoteReplacer = strings.NewReplacer(
	"\t", `\t`,
	"\r", `\r`,
	"\n", `\n`,
	"'", `\q`,
)

// Quote renders raw string bytes as an lms string literal.
func Quote(raw []byte) string {
	return "'" + quoteReplacer.Replace(string(raw)) + "'"
}

// Int returns the integer carried by an immediate. ok is false for any other
// value.
func Int(v Value) (n int64, ok bool) {
	switch x := v.(type) {
	case Immediate:
		return int64(x.V), true
	case SignedImmediate:
		return int64(x.V), true
	}
	return 0, false
}

// DecodeScalar reads a size-coded scalar with no flag byte: a 1, 2 or 4 byte
// little-endian unsigned value or a zero-terminated string.
func DecodeScalar(sc lms.SizeCode, c *cursor.Cursor) (Value, error) {
	switch sc {
	case lms.Size1Byte:
		v, err := c.U8()
		if err != nil {
			return nil, err
		}
		return Immediate{V: uint32(v)}, nil
	case lms.Size2Bytes:
		v, err := c.U16()
		if err != nil {
			return nil, err
		}
		return Immediate{V: uint32(v)}, nil
	case lms.Size4Bytes:
		v, err := c.U32()
		if err != nil {
			return nil, err
		}
		return Immediate{V: v}, nil
	case lms.SizeString, lms.SizeStringOld:
		s, err := c.CString()
		if err != nil {
			return nil, err
		}
		return StringLiteral{Raw: s}, nil
	}
	return nil, common.FormatError(c.Tell(), "unexpected size code %d", sc)
}

// Decode reads one flag-byte encoded parameter of the declared kind.
func Decode(kind catalog.Kind, c *cursor.Cursor) (Value, error) {
	at := c.Tell()
	b, err := c.U8()
	if err != nil {
		return nil, err
	}

	if b&lms.PrimparLong == 0 {
		if b&lms.PrimparVariable != 0 {
			return VariableRef{
				Global: b&lms.PrimparGlobal != 0,
				Index:  uint32(b & lms.PrimparIndex),
			}, nil
		}
		if b&lms.PrimparConstSign != 0 {
			return SignedImmediate{V: int32(b&lms.PrimparValue) - int32(lms.PrimparValue) - 1}, nil
		}
		return Immediate{V: uint32(b & lms.PrimparValue)}, nil
	}

	size := lms.SizeCode(b & lms.PrimparBytes)

	if b&lms.PrimparVariable != 0 {
		ref := VariableRef{Global: b&lms.PrimparGlobal != 0}
		switch {
		case b&lms.PrimparHandle != 0:
			ref.Handle = true
		case b&lms.PrimparAddr != 0:
			return nil, common.UnsupportedEncodingError(at, "variable address parameter 0x%02X", b)
		}
		idx, err := DecodeScalar(size, c)
		if err != nil {
			return nil, err
		}
		n, ok := idx.(Immediate)
		if !ok {
			return nil, common.FormatError(at, "variable index encoded as %s", size)
		}
		ref.Index = n.V
		return ref, nil
	}

	if b&lms.PrimparLabel != 0 {
		l, err := c.U8()
		if err != nil {
			return nil, err
		}
		return LabelRef{Index: l}, nil
	}

	if kind == catalog.ParF {
		if size != lms.Size4Bytes {
			return nil, common.FormatError(at, "expecting float value, got size code %s", size)
		}
		bits, err := c.U32()
		if err != nil {
			return nil, err
		}
		return FloatImmediate{Bits: bits}, nil
	}
	return DecodeScalar(size, c)
}
