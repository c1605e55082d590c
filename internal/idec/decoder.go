// Package idec decodes lms2012 instructions and system commands using the
// signatures held in a catalog.
package idec

import (
	"fmt"
	"strings"

	"lmsdisasm/internal/catalog"
	"lmsdisasm/internal/common"
	"lmsdisasm/internal/cursor"
	"lmsdisasm/internal/lms"
	"lmsdisasm/internal/param"
)

// Instruction is one decoded opcode with its parameters. Offset is relative
// to the start of the enclosing object or packet.
type Instruction struct {
	Offset int
	Opcode byte
	Name   string
	Params []param.Value
}

// String renders NAME(p1,p2,...).
func (in Instruction) String() string {
	var sb strings.Builder
	sb.WriteString(in.Name)
	sb.WriteByte('(')
	for i, p := range in.Params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// IsReturn reports whether the instruction is a bare RETURN().
func (in Instruction) IsReturn() bool {
	return in.Opcode == lms.OpReturn && len(in.Params) == 0
}

// Decoder is table driven; all opcode knowledge lives in the catalog.
type Decoder struct {
	cat    *catalog.Catalog
	logger common.Logger
}

func NewDecoder(cat *catalog.Catalog, logger common.Logger) *Decoder {
	if logger == nil {
		logger = common.NewNoOpLogger()
	}
	return &Decoder{cat: cat, logger: logger}
}

func (d *Decoder) Catalog() *catalog.Catalog { return d.cat }

// DecodeOne decodes the instruction at the cursor. ok is false when the
// opcode is the object end marker. objStart is the absolute offset that
// instruction and jump target offsets are relative to; objID names the
// object in jump labels.
func (d *Decoder) DecodeOne(c *cursor.Cursor, objStart, objID int) (in Instruction, ok bool, err error) {
	at := c.Tell()
	code, err := c.U8()
	if err != nil {
		return in, false, err
	}
	if code == lms.OpObjectEnd {
		return in, false, nil
	}
	op, found := d.cat.Opcode(code)
	if !found {
		return in, false, common.FormatError(at, "unknown opcode 0x%02X", code)
	}

	in = Instruction{Offset: at - objStart, Opcode: code, Name: op.Name}
	if _, err := d.decodeParams(c, op.Params, false, &in.Params); err != nil {
		return in, false, fmt.Errorf("%s at offset %d: %w", op.Name, in.Offset, err)
	}

	if op.Jump {
		last := len(in.Params) - 1
		disp, isInt := param.Int(in.Params[last])
		if !isInt {
			return in, false, common.FormatError(at, "%s: jump displacement %s is not a constant", op.Name, in.Params[last])
		}
		in.Params[last] = param.OffsetRef{
			Object: objID,
			Offset: c.Tell() - objStart + displacement16(disp),
		}
	}
	return in, true, nil
}

// displacement16 reduces a jump displacement to a signed 16-bit value
// whatever width it was encoded with.
func displacement16(v int64) int {
	d := ((v % 65536) + 65536) % 65536
	if d >= 32768 {
		d -= 65536
	}
	return int(d)
}

// decodeParams appends the decoded parameters of one signature to out.
// stopped is true when an unknown subcode cut the instruction short.
func (d *Decoder) decodeParams(c *cursor.Cursor, params []catalog.Param, inSubcode bool, out *[]param.Value) (stopped bool, err error) {
	repeat := -1
	for _, p := range params {
		if p.Kind == catalog.ParValues {
			n, ok := param.Int((*out)[len(*out)-1])
			if !ok || n < 0 {
				return false, common.FormatError(c.Tell(), "array value count %s is not a constant", (*out)[len(*out)-1])
			}
			repeat = int(n)
			continue
		}
		if repeat >= 0 {
			for ; repeat > 0; repeat-- {
				v, err := param.Decode(p.Kind, c)
				if err != nil {
					return false, err
				}
				*out = append(*out, v)
			}
			repeat = -1
			continue
		}

		at := c.Tell()
		v, err := param.Decode(p.Kind, c)
		if err != nil {
			return false, err
		}

		switch p.Kind {
		case catalog.Subp:
			sub, known := d.lookupSubcode(p.Table, v)
			if !known {
				d.logger.Logf(common.SeverityWarning, "unknown %s subcode %s at byte %d", p.Table.Name, v, at)
				*out = append(*out, param.UnknownSubcode{Raw: v})
				return true, nil
			}
			*out = append(*out, param.SubcodeName{Name: sub.Name})
			if stopped, err := d.decodeParams(c, sub.Params, true, out); stopped || err != nil {
				return stopped, err
			}

		case catalog.ParNo:
			n, ok := param.Int(v)
			if !ok || n < 0 {
				return false, common.FormatError(at, "argument count %s is not a constant", v)
			}
			if inSubcode && n != 0 {
				*out = append(*out, v)
			}
			for i := int64(0); i < n; i++ {
				arg, err := param.Decode(catalog.ParV, c)
				if err != nil {
					return false, err
				}
				*out = append(*out, arg)
			}

		case catalog.Obj:
			id, ok := param.Int(v)
			if !ok || id < 0 {
				return false, common.FormatError(at, "call target %s is not a constant", v)
			}
			*out = append(*out, param.ObjectRef{ID: uint32(id)})

		default:
			*out = append(*out, v)
		}
	}
	return false, nil
}

func (d *Decoder) lookupSubcode(t *catalog.SubcodeTable, v param.Value) (*catalog.Subcode, bool) {
	n, ok := param.Int(v)
	if !ok || n < 0 {
		return nil, false
	}
	return t.Lookup(uint32(n))
}

// DecodeSysOp decodes one system command. Its parameters are raw size-coded
// scalars. An opcode missing from the catalog yields a SYSOP_0x<hh>
// instruction with no parameters and a nil SysOp.
func (d *Decoder) DecodeSysOp(c *cursor.Cursor, start int) (Instruction, *catalog.SysOp, error) {
	at := c.Tell()
	code, err := c.U8()
	if err != nil {
		return Instruction{}, nil, err
	}
	in := Instruction{Offset: at - start, Opcode: code, Name: d.cat.SysOpName(code)}
	op, found := d.cat.SysOp(code)
	if !found {
		return in, nil, nil
	}
	for _, sc := range op.Params {
		v, err := param.DecodeScalar(sc, c)
		if err != nil {
			return in, op, fmt.Errorf("%s: %w", op.Name, err)
		}
		in.Params = append(in.Params, v)
	}
	return in, op, nil
}
