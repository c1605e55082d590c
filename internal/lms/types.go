package lms

// Byte Indexing

// Index is a byte position within a decoded buffer.
type Index uint64

// BadIndex is an invalid byte index value
const BadIndex Index = ^Index(0)

// General Library Return and Error Codes

// Err represents library error return type
type Err uint32

const (
	OK                     Err = 0
	ErrFail                Err = 1
	ErrFormat              Err = 2
	ErrUnsupportedEncoding Err = 3
	ErrTruncatedInput      Err = 4
	ErrFileError           Err = 5
	ErrCatalog             Err = 6
	ErrLast                Err = 7
)

// ErrSeverity used to indicate the severity of an error or logger verbosity
type ErrSeverity uint32

const (
	ErrSevNone  ErrSeverity = 0
	ErrSevError ErrSeverity = 1
	ErrSevWarn  ErrSeverity = 2
	ErrSevInfo  ErrSeverity = 3
)

// Reserved Opcodes

const (
	OpReturn    byte = 0x08
	OpObjectEnd byte = 0x0A
)

// Parameter Flag Byte
//
// Bit 7 selects the long form. In the short form bit 6 selects a variable
// (bit 5 global, bits 4:0 index) or a constant (bit 5 sign, bits 5:0 value).
// In the long form bits 2:0 hold the size code of the following scalar.

const (
	PrimparShort byte = 0x00
	PrimparLong  byte = 0x80

	PrimparConst    byte = 0x00
	PrimparVariable byte = 0x40
	PrimparLocal    byte = 0x00
	PrimparGlobal   byte = 0x20
	PrimparHandle   byte = 0x10
	PrimparAddr     byte = 0x08

	PrimparIndex     byte = 0x1F
	PrimparConstSign byte = 0x20
	PrimparValue     byte = 0x3F

	PrimparBytes byte = 0x07
	PrimparLabel byte = 0x20
)

// SizeCode selects the width of a long-form scalar.
type SizeCode byte

const (
	SizeStringOld SizeCode = 0
	Size1Byte     SizeCode = 1
	Size2Bytes    SizeCode = 2
	Size4Bytes    SizeCode = 3
	SizeString    SizeCode = 4
)

func (s SizeCode) String() string {
	switch s {
	case SizeStringOld:
		return "STRING_OLD"
	case Size1Byte:
		return "1_BYTE"
	case Size2Bytes:
		return "2_BYTES"
	case Size4Bytes:
		return "4_BYTES"
	case SizeString:
		return "STRING"
	}
	return "UNKNOWN"
}

// Float Sentinels

const (
	DataFMax uint32 = 0x7F7FFFFF
	DataFMin uint32 = 0xFF7FFFFF
	DataFNaN uint32 = 0x7FC00000
)

// Data Formats

// DataFormat is the storage format of a local or global slot.
type DataFormat byte

const (
	Data8  DataFormat = 0x00
	Data16 DataFormat = 0x01
	Data32 DataFormat = 0x02
	DataF  DataFormat = 0x03
	DataS  DataFormat = 0x04
	DataA  DataFormat = 0x05
)

// Size returns the fixed storage size of the format, or 0 for strings whose
// size is carried separately.
func (f DataFormat) Size() int {
	switch f {
	case Data8:
		return 1
	case Data16, DataA:
		return 2
	case Data32, DataF:
		return 4
	}
	return 0
}

func (f DataFormat) suffix() string {
	switch f {
	case Data8:
		return "8"
	case Data16:
		return "16"
	case Data32:
		return "32"
	case DataF:
		return "F"
	case DataS:
		return "S"
	case DataA:
		return "A"
	}
	return ""
}

// Sub-call Parameter Types

const (
	CallparIn       byte = 0x80
	CallparOut      byte = 0x40
	CallparDirMask  byte = 0xC0
	CallparTypeMask byte = 0x07
)

// CallParam is the type byte of one subcall argument.
type CallParam byte

// Format returns the storage format of the argument.
func (c CallParam) Format() DataFormat {
	return DataFormat(byte(c) & CallparTypeMask)
}

// Valid reports whether the argument has a direction and a known format.
func (c CallParam) Valid() bool {
	if byte(c)&CallparDirMask == 0 || byte(c)&^(CallparDirMask|CallparTypeMask) != 0 {
		return false
	}
	return c.Format().suffix() != ""
}

// Name returns the declaration keyword, e.g. IN_8 or IO_S.
func (c CallParam) Name() string {
	var dir string
	switch byte(c) & CallparDirMask {
	case CallparIn:
		dir = "IN"
	case CallparOut:
		dir = "OUT"
	case CallparIn | CallparOut:
		dir = "IO"
	default:
		return "UNKNOWN"
	}
	return dir + "_" + c.Format().suffix()
}

// Communication Message Types

// MsgType is the type byte of a command or reply packet.
type MsgType byte

const (
	DirectCommandReply   MsgType = 0x00
	DirectCommandNoReply MsgType = 0x80
	SystemCommandReply   MsgType = 0x01
	SystemCommandNoReply MsgType = 0x81

	DirectReply      MsgType = 0x02
	SystemReply      MsgType = 0x03
	DirectReplyError MsgType = 0x04
	SystemReplyError MsgType = 0x05
)

func (t MsgType) IsDirectCommand() bool {
	return t == DirectCommandReply || t == DirectCommandNoReply
}

func (t MsgType) IsSystemCommand() bool {
	return t == SystemCommandReply || t == SystemCommandNoReply
}

// Direct command header: bits 15:10 local bytes, bits 9:0 global bytes.
const (
	DirectLocalShift  = 10
	DirectGlobalMask  = 0x3FF
	PacketHeaderBytes = 5 // length, id and type fields
)

// DirectObjectID is the object id named by jump labels inside direct
// commands, which belong to no object of a program.
const DirectObjectID = 42
