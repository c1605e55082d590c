// Package lmstest assembles byte code, program images and communication
// packets for tests.
package lmstest

import (
	"encoding/binary"
	"math"
)

// StreamBuilder appends encoded parameters and opcodes to a byte slice.
type StreamBuilder struct {
	data []byte
}

func (b *StreamBuilder) Bytes() []byte { return b.data }

func (b *StreamBuilder) Len() int { return len(b.data) }

func (b *StreamBuilder) AddBytes(v ...byte) *StreamBuilder {
	b.data = append(b.data, v...)
	return b
}

func (b *StreamBuilder) Op(code byte) *StreamBuilder { return b.AddBytes(code) }

// Short adds a short-form constant in -32..31.
func (b *StreamBuilder) Short(v int) *StreamBuilder {
	return b.AddBytes(byte(v) & 0x3F)
}

// LC1, LC2 and LC4 add long-form constants.
func (b *StreamBuilder) LC1(v uint8) *StreamBuilder { return b.AddBytes(0x81, v) }

func (b *StreamBuilder) LC2(v uint16) *StreamBuilder {
	b.AddBytes(0x82)
	return b.U16(v)
}

func (b *StreamBuilder) LC4(v uint32) *StreamBuilder {
	b.AddBytes(0x83)
	return b.U32(v)
}

// LCF adds a long-form 4-byte float constant.
func (b *StreamBuilder) LCF(f float32) *StreamBuilder {
	return b.LC4(math.Float32bits(f))
}

// LCS adds a long-form string constant.
func (b *StreamBuilder) LCS(s string) *StreamBuilder {
	b.AddBytes(0x84)
	return b.CString(s)
}

// Label adds a label constant.
func (b *StreamBuilder) Label(n uint8) *StreamBuilder { return b.AddBytes(0xA0, n) }

// LV0 and GV0 add short-form local and global variable references.
func (b *StreamBuilder) LV0(i uint8) *StreamBuilder { return b.AddBytes(0x40 | i&0x1F) }
func (b *StreamBuilder) GV0(i uint8) *StreamBuilder { return b.AddBytes(0x60 | i&0x1F) }

// LV1 and GV1 add long-form variable references with a 1-byte index.
func (b *StreamBuilder) LV1(i uint8) *StreamBuilder { return b.AddBytes(0xC1, i) }
func (b *StreamBuilder) GV1(i uint8) *StreamBuilder { return b.AddBytes(0xE1, i) }

// LV2 adds a long-form local reference with a 2-byte index.
func (b *StreamBuilder) LV2(i uint16) *StreamBuilder {
	b.AddBytes(0xC2)
	return b.U16(i)
}

// HND1 adds a local handle reference with a 1-byte index.
func (b *StreamBuilder) HND1(i uint8) *StreamBuilder { return b.AddBytes(0xD1, i) }

func (b *StreamBuilder) U16(v uint16) *StreamBuilder {
	b.data = binary.LittleEndian.AppendUint16(b.data, v)
	return b
}

func (b *StreamBuilder) U32(v uint32) *StreamBuilder {
	b.data = binary.LittleEndian.AppendUint32(b.data, v)
	return b
}

func (b *StreamBuilder) CString(s string) *StreamBuilder {
	b.data = append(b.data, s...)
	return b.AddBytes(0)
}

// Object is one entry of a program image.
type Object struct {
	Owner    uint16
	Triggers uint16
	Locals   uint32
	Code     []byte
}

func VMThread(locals uint32, code []byte) Object {
	return Object{Locals: locals, Code: code}
}

func Subcall(locals uint32, code []byte) Object {
	return Object{Triggers: 1, Locals: locals, Code: code}
}

func Block(owner uint16, code []byte) Object {
	return Object{Owner: owner, Code: code}
}

// Program lays out a program image: header, object table, then each
// object's code in order.
func Program(version uint16, globals uint32, objs ...Object) []byte {
	size := 16 + 12*len(objs)
	for _, o := range objs {
		size += len(o.Code)
	}

	var b StreamBuilder
	b.AddBytes('L', 'E', 'G', 'O')
	b.U32(uint32(size))
	b.U16(version)
	b.U16(uint16(len(objs)))
	b.U32(globals)

	offset := 16 + 12*len(objs)
	for _, o := range objs {
		b.U32(uint32(offset))
		b.U16(o.Owner)
		b.U16(o.Triggers)
		b.U32(o.Locals)
		offset += len(o.Code)
	}
	for _, o := range objs {
		b.AddBytes(o.Code...)
	}
	return b.Bytes()
}

// Packet frames a message: 2-byte length, 2-byte id, type, body.
func Packet(id uint16, typ byte, body []byte) []byte {
	var b StreamBuilder
	b.U16(uint16(3 + len(body)))
	b.U16(id)
	b.AddBytes(typ)
	b.AddBytes(body...)
	return b.Bytes()
}

// DirectHeader encodes the local/global reservation of a direct command.
func DirectHeader(locals, globals uint16) []byte {
	var b StreamBuilder
	return b.U16(locals<<10 | globals&0x3FF).Bytes()
}
