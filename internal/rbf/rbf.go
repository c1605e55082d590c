// Package rbf reads the lms2012 program container: a program header, a
// table of object headers and the object instruction streams.
package rbf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"

	"lmsdisasm/internal/common"
)

// Signature is the magic at the start of every program image.
var Signature = [4]byte{'L', 'E', 'G', 'O'}

const (
	ProgramHeaderSize = 16
	ObjectHeaderSize  = 12
)

// A ProgramHeader is the fixed record at the start of a program image.
type ProgramHeader struct {
	Signature   [4]byte // "LEGO"
	ImageSize   uint32  // total image size in bytes
	Version     uint16  // byte code version
	NumObjects  uint16  // entries in the object table
	GlobalBytes uint32  // global arena size
}

// An ObjectHeader is one entry of the object table.
type ObjectHeader struct {
	Offset        uint32 // absolute offset of the instruction stream
	OwnerObjectID uint16 // non-zero for blocks
	TriggerCount  uint16 // 1 for subcalls
	LocalBytes    uint32 // local arena size
}

// A Kind is the role of an object.
type Kind int

const (
	KindVMThread Kind = iota
	KindSubcall
	KindBlock
)

func (k Kind) String() string {
	switch k {
	case KindVMThread:
		return "vmthread"
	case KindSubcall:
		return "subcall"
	case KindBlock:
		return "block"
	}
	return "unknown"
}

// Kind classifies the header. ok is false when no kind applies.
func (h ObjectHeader) Kind() (k Kind, ok bool) {
	switch {
	case h.OwnerObjectID != 0:
		return KindBlock, true
	case h.TriggerCount == 0:
		return KindVMThread, true
	case h.TriggerCount == 1:
		return KindSubcall, true
	}
	return 0, false
}

// An Object is one instruction stream. ID is 1-based in table order. Its end
// is found while decoding, at the object end marker.
type Object struct {
	ObjectHeader
	ID   int
	Kind Kind
}

// A Program is a parsed image. Image holds the raw bytes the objects point
// into.
type Program struct {
	ProgramHeader
	Objects []*Object
	Image   []byte
}

// Parse reads the program and object headers from a complete image.
func Parse(image []byte) (*Program, error) {
	r := bytes.NewReader(image)
	p := &Program{Image: image}
	if err := binary.Read(r, binary.LittleEndian, &p.ProgramHeader); err != nil {
		return nil, readError(0, ProgramHeaderSize, len(image), err)
	}
	if p.Signature != Signature {
		return nil, common.FormatError(0, "bad file: signature %q, expected %q", p.Signature[:], Signature[:])
	}
	if int(p.ImageSize) != len(image) {
		return nil, common.FormatError(4, "bad file: declared size %d, actual size %d", p.ImageSize, len(image))
	}

	hdrs := make([]ObjectHeader, p.NumObjects)
	if err := binary.Read(r, binary.LittleEndian, hdrs); err != nil {
		want := ObjectHeaderSize * int(p.NumObjects)
		return nil, readError(ProgramHeaderSize, want, len(image)-ProgramHeaderSize, err)
	}

	p.Objects = make([]*Object, len(hdrs))
	for i, h := range hdrs {
		at := ProgramHeaderSize + i*ObjectHeaderSize
		kind, ok := h.Kind()
		if !ok {
			return nil, common.FormatError(at, "object %d: unknown object type (owner %d, triggers %d)",
				i+1, h.OwnerObjectID, h.TriggerCount)
		}
		if int(h.Offset) >= len(image) {
			return nil, common.FormatError(at, "object %d: offset %d is out of bounds", i+1, h.Offset)
		}
		p.Objects[i] = &Object{ObjectHeader: h, ID: i + 1, Kind: kind}
	}
	return p, nil
}

func readError(idx, want, have int, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return common.TruncatedInputError(idx, want, have)
	}
	return err
}

// Open reads and parses the named program file.
func Open(name string) (*Program, error) {
	image, err := os.ReadFile(name)
	if err != nil {
		return nil, common.FileError(name, err)
	}
	return Parse(image)
}
