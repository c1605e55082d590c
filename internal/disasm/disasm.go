// Package disasm decodes the objects of a program image into blocks of
// declarations and instructions ready for printing.
package disasm

import (
	"fmt"

	"lmsdisasm/internal/common"
	"lmsdisasm/internal/cursor"
	"lmsdisasm/internal/idec"
	"lmsdisasm/internal/lms"
	"lmsdisasm/internal/rbf"
)

// Decl is one local slot declaration. Size is set for string arguments only.
type Decl struct {
	Type  string
	Index int
	Size  int
}

func (d Decl) String() string {
	if d.Size > 0 {
		return fmt.Sprintf("%s LOCAL%d %d", d.Type, d.Index, d.Size)
	}
	return fmt.Sprintf("%s LOCAL%d", d.Type, d.Index)
}

// Line is a decoded instruction. A suppressed line keeps its label but
// prints no instruction text.
type Line struct {
	idec.Instruction
	Suppressed bool
}

// Block is one decoded object.
type Block struct {
	ID      int
	Kind    rbf.Kind
	Args    []Decl // subcall arguments
	Fillers []Decl // anonymous slots padding the local arena
	Lines   []Line
	// End is the absolute offset just past the object end marker.
	End int
}

// Disassembler decodes objects with a shared instruction decoder.
type Disassembler struct {
	dec    *idec.Decoder
	logger common.Logger
}

func New(dec *idec.Decoder, logger common.Logger) *Disassembler {
	if logger == nil {
		logger = common.NewNoOpLogger()
	}
	return &Disassembler{dec: dec, logger: logger}
}

// Program decodes every object in table order.
func (d *Disassembler) Program(p *rbf.Program) ([]*Block, error) {
	blocks := make([]*Block, 0, len(p.Objects))
	for _, obj := range p.Objects {
		b, err := d.Object(p.Image, obj)
		if err != nil {
			return nil, fmt.Errorf("OBJECT%d: %w", obj.ID, err)
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Object decodes one object and applies trailing return suppression.
func (d *Disassembler) Object(image []byte, obj *rbf.Object) (*Block, error) {
	c := cursor.New(image)
	if err := c.Seek(int(obj.Offset)); err != nil {
		return nil, err
	}
	b := &Block{ID: obj.ID, Kind: obj.Kind}

	argBytes := 0
	if obj.Kind == rbf.KindSubcall {
		args, n, err := readArgs(c)
		if err != nil {
			return nil, err
		}
		b.Args = args
		argBytes = n
	}
	for i := argBytes; i < int(obj.LocalBytes); i++ {
		b.Fillers = append(b.Fillers, Decl{Type: "DATA8", Index: i})
	}

	start := int(obj.Offset)
	for {
		in, ok, err := d.dec.DecodeOne(c, start, obj.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		b.Lines = append(b.Lines, Line{Instruction: in})
	}
	b.End = c.Tell()

	SuppressTrailingReturn(b)
	d.logger.Logf(common.SeverityDebug, "decoded %s OBJECT%d: %d instructions, bytes %d..%d",
		b.Kind, b.ID, len(b.Lines), start, b.End)
	return b, nil
}

// readArgs reads the subcall argument list and returns the declarations and
// the number of local bytes they occupy.
func readArgs(c *cursor.Cursor) ([]Decl, int, error) {
	count, err := c.U8()
	if err != nil {
		return nil, 0, err
	}
	var (
		args []Decl
		used int
	)
	for i := 0; i < int(count); i++ {
		at := c.Tell()
		t, err := c.U8()
		if err != nil {
			return nil, 0, err
		}
		cp := lms.CallParam(t)
		if !cp.Valid() {
			return nil, 0, common.FormatError(at, "argument %d: invalid type 0x%02X", i, t)
		}
		decl := Decl{Type: cp.Name(), Index: used}
		size := cp.Format().Size()
		if cp.Format() == lms.DataS {
			n, err := c.U8()
			if err != nil {
				return nil, 0, err
			}
			decl.Size = int(n)
			size = int(n)
		}
		args = append(args, decl)
		used += size
	}
	return args, used, nil
}

// SuppressTrailingReturn marks a bare RETURN that is the last instruction
// before the object end marker.
func SuppressTrailingReturn(b *Block) {
	if n := len(b.Lines); n > 0 && b.Lines[n-1].IsReturn() {
		b.Lines[n-1].Suppressed = true
	}
}
