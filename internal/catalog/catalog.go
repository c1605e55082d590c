// Package catalog holds the opcode, subcode and system command signatures
// the decoders look up by code. The built-in table is embedded TOML; override
// files are merged over it entry by entry.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"

	"lmsdisasm/internal/common"
	"lmsdisasm/internal/lms"
)

//go:embed lms2012.toml
var builtin []byte

// Kind is the declared kind of one instruction parameter.
type Kind uint8

const (
	Par8 Kind = iota
	Par16
	Par32
	ParF
	ParS
	ParV
	ParNo     // vararg count, followed by that many ParV values
	ParValues // repeats the next kind by the previous value
	Obj       // call target object index
	Subp      // subcode discriminator
)

var kindNames = map[string]Kind{
	"PAR8":      Par8,
	"PAR16":     Par16,
	"PAR32":     Par32,
	"PARF":      ParF,
	"PARS":      ParS,
	"PARV":      ParV,
	"PARNO":     ParNo,
	"PARVALUES": ParValues,
	"OBJ":       Obj,
	"SUBP":      Subp,
}

func (k Kind) String() string {
	for name, v := range kindNames {
		if v == k {
			return name
		}
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Param is one declared parameter. Table is set for Subp only.
type Param struct {
	Kind  Kind
	Table *SubcodeTable
}

type Opcode struct {
	Code   byte
	Name   string
	Params []Param
	// Jump marks the relative jump family; the last parameter is the displacement.
	Jump bool
}

type Subcode struct {
	Code   uint32
	Name   string
	Params []Param
}

// SubcodeTable maps a discriminator value to a nested signature.
type SubcodeTable struct {
	Name    string
	entries map[uint32]*Subcode
}

// Lookup resolves a discriminator value.
func (t *SubcodeTable) Lookup(code uint32) (*Subcode, bool) {
	s, ok := t.entries[code]
	return s, ok
}

// Len returns the number of subcodes in the table.
func (t *SubcodeTable) Len() int { return len(t.entries) }

// CaptureRole designates the system commands that feed a capture sink.
type CaptureRole uint8

const (
	CaptureNone CaptureRole = iota
	CaptureBegin
	CaptureContinue
)

// SysOp is a system command. Its parameters are raw size-coded scalars
// without flag bytes.
type SysOp struct {
	Code    byte
	Name    string
	Params  []lms.SizeCode
	Capture CaptureRole
}

// Catalog is an immutable set of signatures.
type Catalog struct {
	opcodes  map[byte]*Opcode
	sysops   map[byte]*SysOp
	tables   map[string]*SubcodeTable
	statuses map[byte]string
}

// Opcode looks up a direct command opcode.
func (c *Catalog) Opcode(code byte) (*Opcode, bool) {
	op, ok := c.opcodes[code]
	return op, ok
}

// SysOp looks up a system command.
func (c *Catalog) SysOp(code byte) (*SysOp, bool) {
	op, ok := c.sysops[code]
	return op, ok
}

// Table returns a subcode table by name.
func (c *Catalog) Table(name string) (*SubcodeTable, bool) {
	t, ok := c.tables[name]
	return t, ok
}

// Status returns the name of a system reply status.
func (c *Catalog) Status(code byte) (string, bool) {
	s, ok := c.statuses[code]
	return s, ok
}

// SysOpName names a system command, falling back to its raw code.
func (c *Catalog) SysOpName(code byte) string {
	if op, ok := c.sysops[code]; ok {
		return op.Name
	}
	return fmt.Sprintf("SYSOP_0x%02x", code)
}

// StatusName names a reply status, falling back to its raw code.
func (c *Catalog) StatusName(code byte) string {
	if s, ok := c.statuses[code]; ok {
		return s
	}
	return fmt.Sprintf("0x%02x", code)
}

// NumOpcodes returns the number of direct command opcodes.
func (c *Catalog) NumOpcodes() int { return len(c.opcodes) }

// file is the on-disk shape of a catalog.
type file struct {
	Opcode  []fileOpcode  `toml:"opcode"`
	Subcode []fileSubcode `toml:"subcode"`
	Tables  []string      `toml:"tables"`
	SysOp   []fileSysOp   `toml:"sysop"`
	Status  []fileStatus  `toml:"status"`
}

type fileOpcode struct {
	Code   int      `toml:"code"`
	Name   string   `toml:"name"`
	Params []string `toml:"params"`
	Jump   bool     `toml:"jump"`
}

type fileSubcode struct {
	Table  string   `toml:"table"`
	Code   int      `toml:"code"`
	Name   string   `toml:"name"`
	Params []string `toml:"params"`
}

type fileSysOp struct {
	Code    int      `toml:"code"`
	Name    string   `toml:"name"`
	Params  []string `toml:"params"`
	Capture string   `toml:"capture"`
}

type fileStatus struct {
	Code int    `toml:"code"`
	Name string `toml:"name"`
}

func decode(name string, data []byte) (*file, error) {
	var f file
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, common.CatalogError("%s: %v", name, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		keys := make([]string, len(undec))
		for i, k := range undec {
			keys[i] = k.String()
		}
		return nil, common.CatalogError("%s: unknown keys %s", name, strings.Join(keys, ", "))
	}
	return &f, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the built-in lms2012 catalog.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Parse(builtin)
	})
	if defaultErr != nil {
		panic(defaultErr)
	}
	return defaultCat
}

// Parse builds a catalog from TOML text.
func Parse(data []byte) (*Catalog, error) {
	f, err := decode("catalog", data)
	if err != nil {
		return nil, err
	}
	return build(f)
}

// Load reads the override files in order and merges each over the built-in
// table.
func Load(paths ...string) (*Catalog, error) {
	base, err := decode("builtin", builtin)
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, common.FileError(path, err)
		}
		over, err := decode(path, data)
		if err != nil {
			return nil, err
		}
		base = merge(base, over)
	}
	return build(base)
}

// Merge parses override TOML and merges it over the built-in table.
func Merge(override []byte) (*Catalog, error) {
	base, err := decode("builtin", builtin)
	if err != nil {
		return nil, err
	}
	over, err := decode("override", override)
	if err != nil {
		return nil, err
	}
	return build(merge(base, over))
}

// merge replaces entries of base that share a code with over and appends the
// rest.
func merge(base, over *file) *file {
	out := &file{}

	ops := map[int]int{}
	for _, op := range base.Opcode {
		ops[op.Code] = len(out.Opcode)
		out.Opcode = append(out.Opcode, op)
	}
	for _, op := range over.Opcode {
		if i, ok := ops[op.Code]; ok {
			out.Opcode[i] = op
			continue
		}
		ops[op.Code] = len(out.Opcode)
		out.Opcode = append(out.Opcode, op)
	}

	type subKey struct {
		table string
		code  int
	}
	subs := map[subKey]int{}
	for _, s := range append(base.Subcode, over.Subcode...) {
		k := subKey{s.Table, s.Code}
		if i, ok := subs[k]; ok {
			out.Subcode[i] = s
			continue
		}
		subs[k] = len(out.Subcode)
		out.Subcode = append(out.Subcode, s)
	}

	out.Tables = append(append(out.Tables, base.Tables...), over.Tables...)

	sys := map[int]int{}
	for _, s := range append(base.SysOp, over.SysOp...) {
		if i, ok := sys[s.Code]; ok {
			out.SysOp[i] = s
			continue
		}
		sys[s.Code] = len(out.SysOp)
		out.SysOp = append(out.SysOp, s)
	}

	st := map[int]int{}
	for _, s := range append(base.Status, over.Status...) {
		if i, ok := st[s.Code]; ok {
			out.Status[i] = s
			continue
		}
		st[s.Code] = len(out.Status)
		out.Status = append(out.Status, s)
	}
	return out
}

func build(f *file) (*Catalog, error) {
	c := &Catalog{
		opcodes:  make(map[byte]*Opcode, len(f.Opcode)),
		sysops:   make(map[byte]*SysOp, len(f.SysOp)),
		tables:   make(map[string]*SubcodeTable),
		statuses: make(map[byte]string, len(f.Status)),
	}

	table := func(name string) *SubcodeTable {
		t, ok := c.tables[name]
		if !ok {
			t = &SubcodeTable{Name: name, entries: map[uint32]*Subcode{}}
			c.tables[name] = t
		}
		return t
	}
	for _, name := range f.Tables {
		table(name)
	}
	for _, s := range f.Subcode {
		if s.Table == "" || s.Name == "" {
			return nil, common.CatalogError("subcode %d: missing table or name", s.Code)
		}
		if s.Code < 0 {
			return nil, common.CatalogError("subcode %s.%s: negative code", s.Table, s.Name)
		}
		t := table(s.Table)
		if _, dup := t.entries[uint32(s.Code)]; dup {
			return nil, common.CatalogError("subcode %s.%d: duplicate code", s.Table, s.Code)
		}
		t.entries[uint32(s.Code)] = &Subcode{Code: uint32(s.Code), Name: s.Name}
	}
	// Subcode parameters may name tables, so resolve them after every table exists.
	for _, s := range f.Subcode {
		sub := c.tables[s.Table].entries[uint32(s.Code)]
		params, err := c.params(s.Params, true)
		if err != nil {
			return nil, common.CatalogError("subcode %s.%s: %v", s.Table, s.Name, err)
		}
		sub.Params = params
	}

	for _, o := range f.Opcode {
		if o.Code < 0 || o.Code > 0xFF || o.Name == "" {
			return nil, common.CatalogError("opcode %d %q: invalid code or name", o.Code, o.Name)
		}
		code := byte(o.Code)
		if _, dup := c.opcodes[code]; dup {
			return nil, common.CatalogError("opcode 0x%02X: duplicate code", code)
		}
		params, err := c.params(o.Params, false)
		if err != nil {
			return nil, common.CatalogError("opcode %s: %v", o.Name, err)
		}
		if o.Jump {
			if len(params) == 0 {
				return nil, common.CatalogError("opcode %s: jump without displacement parameter", o.Name)
			}
			switch params[len(params)-1].Kind {
			case Par8, Par16, Par32:
			default:
				return nil, common.CatalogError("opcode %s: jump displacement must be PAR8, PAR16 or PAR32", o.Name)
			}
		}
		c.opcodes[code] = &Opcode{Code: code, Name: o.Name, Params: params, Jump: o.Jump}
	}

	for _, s := range f.SysOp {
		if s.Code < 0 || s.Code > 0xFF || s.Name == "" {
			return nil, common.CatalogError("sysop %d %q: invalid code or name", s.Code, s.Name)
		}
		code := byte(s.Code)
		if _, dup := c.sysops[code]; dup {
			return nil, common.CatalogError("sysop 0x%02X: duplicate code", code)
		}
		op := &SysOp{Code: code, Name: s.Name}
		for _, p := range s.Params {
			sc, err := sizeCode(p)
			if err != nil {
				return nil, common.CatalogError("sysop %s: %v", s.Name, err)
			}
			op.Params = append(op.Params, sc)
		}
		switch s.Capture {
		case "":
		case "begin":
			op.Capture = CaptureBegin
			if !hasString(op.Params) {
				return nil, common.CatalogError("sysop %s: capture begin needs a STRING parameter", s.Name)
			}
		case "continue":
			op.Capture = CaptureContinue
		default:
			return nil, common.CatalogError("sysop %s: unknown capture role %q", s.Name, s.Capture)
		}
		c.sysops[code] = op
	}

	for _, s := range f.Status {
		if s.Code < 0 || s.Code > 0xFF {
			return nil, common.CatalogError("status %q: invalid code %d", s.Name, s.Code)
		}
		c.statuses[byte(s.Code)] = s.Name
	}
	return c, nil
}

func (c *Catalog) params(names []string, inSubcode bool) ([]Param, error) {
	params := make([]Param, 0, len(names))
	for i, n := range names {
		if table, ok := strings.CutPrefix(n, "SUBP:"); ok {
			t, found := c.tables[table]
			if !found {
				return nil, fmt.Errorf("unknown subcode table %q", table)
			}
			params = append(params, Param{Kind: Subp, Table: t})
			continue
		}
		k, ok := kindNames[n]
		if !ok || k == Subp {
			return nil, fmt.Errorf("unknown parameter kind %q", n)
		}
		if k == ParValues {
			if !inSubcode {
				return nil, fmt.Errorf("PARVALUES outside a subcode signature")
			}
			if i == 0 || i == len(names)-1 {
				return nil, fmt.Errorf("PARVALUES needs a preceding count and a following kind")
			}
		}
		params = append(params, Param{Kind: k})
	}
	return params, nil
}

func sizeCode(name string) (lms.SizeCode, error) {
	for _, sc := range []lms.SizeCode{lms.Size1Byte, lms.Size2Bytes, lms.Size4Bytes, lms.SizeString} {
		if sc.String() == name {
			return sc, nil
		}
	}
	return 0, fmt.Errorf("unknown size code %q", name)
}

func hasString(params []lms.SizeCode) bool {
	for _, p := range params {
		if p == lms.SizeString {
			return true
		}
	}
	return false
}

// Opcodes returns every direct command opcode in code order.
func (c *Catalog) Opcodes() []*Opcode {
	out := make([]*Opcode, 0, len(c.opcodes))
	for _, op := range c.opcodes {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
