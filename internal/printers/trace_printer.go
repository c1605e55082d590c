package printers

import (
	"fmt"
	"io"
	"strings"

	"lmsdisasm/internal/catalog"
	"lmsdisasm/internal/commlink"
	"lmsdisasm/internal/lms"
	"lmsdisasm/internal/param"
)

// TracePrinter writes one DATA line per record followed by indented
// comment lines describing what was decoded.
type TracePrinter struct {
	ItemPrinter
	cat *catalog.Catalog
}

// NewTracePrinter creates a printer that names reply commands and statuses
// from cat.
func NewTracePrinter(writer io.Writer, cat *catalog.Catalog) *TracePrinter {
	return &TracePrinter{
		ItemPrinter: *NewItemPrinter(writer),
		cat:         cat,
	}
}

// PrintReport writes a report. It fits commlink.Parser.Run as the emit
// callback.
func (p *TracePrinter) PrintReport(r *commlink.Report) {
	var sb strings.Builder
	sb.WriteString("DATA")
	for _, b := range r.Data {
		fmt.Fprintf(&sb, " %02x", b)
	}
	sb.WriteString("\n")

	note := func(format string, args ...any) {
		sb.WriteString("\t# ")
		fmt.Fprintf(&sb, format, args...)
		sb.WriteString("\n")
	}

	switch {
	case r.Incomplete != nil:
		if r.Incomplete.Wanted < 0 {
			note("INCOMPLETE packet, ignoring. wanted unknown actual %d", r.Incomplete.Actual)
		} else {
			note("INCOMPLETE packet, ignoring. wanted %d actual %d", r.Incomplete.Wanted, r.Incomplete.Actual)
		}

	case r.Sent:
		note("MSG #%d", r.MsgID)
		switch {
		case r.Type.IsDirectCommand():
			note("LOCAL: %d, GLOBAL: %d", r.Locals, r.Globals)
		case r.Type.IsSystemCommand():
			note("SYSOP")
		case r.Err == nil:
			note("#%d", byte(r.Type))
		}
		for _, in := range r.Instructions {
			fmt.Fprintf(&sb, "\t%s\n", in)
		}
		if r.Dump != nil {
			note("DUMPING %d bytes to %s", r.Dump.Bytes, r.Dump.File)
		}
		if r.Dropped > 0 {
			note("NO CAPTURE FILE, dropping %d bytes", r.Dropped)
		}

	case r.Reply != nil:
		note("FOR #%d", r.MsgID)
		p.reply(r.Reply, note)
	}

	if r.Err != nil {
		note("DECODE ERROR: %v", r.Err)
	}
	p.ItemPrintLine(sb.String())
}

func (p *TracePrinter) reply(rp *commlink.Reply, note func(string, ...any)) {
	switch rp.Type {
	case lms.DirectReply:
		note("OK")
	case lms.DirectReplyError:
		note("ERROR")
	case lms.SystemReply:
		note("SYSTEM OK")
	case lms.SystemReplyError:
		note("SYSTEM ERROR")
	default:
		note("unknown type 0x%02x", byte(rp.Type))
		return
	}

	switch rp.Type {
	case lms.DirectReply, lms.DirectReplyError:
		if rp.Value != nil {
			note("FLOAT? %s", param.FormatFloat(rp.Value.Float()))
		} else if rp.BodyBytes > 0 {
			note("short reply, %d bytes", rp.BodyBytes)
		}
	default:
		note("cmd was %s, status %s", p.cat.SysOpName(rp.Command), p.cat.StatusName(rp.Status))
	}
}
