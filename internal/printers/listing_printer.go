package printers

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"lmsdisasm/internal/disasm"
	"lmsdisasm/internal/rbf"
)

// ListingPrinter writes a program listing: a comment preamble, the global
// declarations and one block per object.
type ListingPrinter struct {
	ItemPrinter
	collectStats bool
	opCounts     map[string]int
}

func NewListingPrinter(writer io.Writer) *ListingPrinter {
	return &ListingPrinter{
		ItemPrinter: *NewItemPrinter(writer),
		opCounts:    make(map[string]int),
	}
}

// PrintPreamble writes the header comments and one DATA8 line per global
// byte.
func (p *ListingPrinter) PrintPreamble(name string, hdr rbf.ProgramHeader) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "// Disassembly of %s\n", name)
	sb.WriteString("//\n")
	fmt.Fprintf(&sb, "// Byte code version: %d\n", hdr.Version)
	sb.WriteString("\n")
	for i := 0; i < int(hdr.GlobalBytes); i++ {
		fmt.Fprintf(&sb, "DATA8 GLOBAL%d\n", i)
	}
	p.ItemPrintLine(sb.String())
}

// PrintBlock writes one object. Every instruction gets a label line; a
// suppressed instruction keeps its label and loses its text.
func (p *ListingPrinter) PrintBlock(b *disasm.Block) {
	var sb strings.Builder
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "%s OBJECT%d\n", b.Kind, b.ID)
	sb.WriteString("{\n")
	if len(b.Args) > 0 {
		for _, d := range b.Args {
			fmt.Fprintf(&sb, "\t%s\n", d)
		}
		sb.WriteString("\n")
	}
	if len(b.Fillers) > 0 {
		for _, d := range b.Fillers {
			fmt.Fprintf(&sb, "\t%s\n", d)
		}
		sb.WriteString("\n")
	}
	for _, l := range b.Lines {
		fmt.Fprintf(&sb, "OFFSET%d_%d:\n", b.ID, l.Offset)
		if l.Suppressed {
			continue
		}
		fmt.Fprintf(&sb, "\t%s\n", l.Instruction)
		if p.collectStats {
			p.opCounts[l.Name]++
		}
	}
	sb.WriteString("}\n")
	p.ItemPrintLine(sb.String())
}

// SetCollectStats turns on opcode counting.
func (p *ListingPrinter) SetCollectStats() { p.collectStats = true }

// PrintStats writes the opcode counts as listing comments, most used first.
func (p *ListingPrinter) PrintStats() {
	names := make([]string, 0, len(p.opCounts))
	for name := range p.opCounts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if p.opCounts[names[i]] != p.opCounts[names[j]] {
			return p.opCounts[names[i]] > p.opCounts[names[j]]
		}
		return names[i] < names[j]
	})

	var sb strings.Builder
	sb.WriteString("\n// Opcodes used:-\n")
	for _, name := range names {
		fmt.Fprintf(&sb, "// %s : %d\n", name, p.opCounts[name])
	}
	p.ItemPrintLine(sb.String())
}
