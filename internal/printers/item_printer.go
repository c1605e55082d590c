// Package printers renders decoded programs and communication traces as
// text.
package printers

import (
	"io"
	"os"

	"lmsdisasm/internal/common"
)

// ItemPrinter is the shared base of the printers: an output writer, an
// optional message logger and a mute switch. The first write error is kept.
type ItemPrinter struct {
	writer io.Writer
	logger common.Logger
	muted  bool
	err    error
}

// NewItemPrinter constructs an ItemPrinter writing to writer, or to stdout
// when writer is nil.
func NewItemPrinter(writer io.Writer) *ItemPrinter {
	if writer == nil {
		writer = os.Stdout
	}
	return &ItemPrinter{writer: writer}
}

// SetMessageLogger sets the optional logger that receives a debug copy of
// every printed line.
func (p *ItemPrinter) SetMessageLogger(logger common.Logger) {
	p.logger = logger
}

// ItemPrintLine writes msg unless the printer is muted.
func (p *ItemPrinter) ItemPrintLine(msg string) {
	if p.muted {
		return
	}
	if p.err == nil {
		_, p.err = io.WriteString(p.writer, msg)
	}
	if p.logger != nil {
		p.logger.Debug(msg)
	}
}

// SetMute sets the printer to mute (avoids output).
func (p *ItemPrinter) SetMute(mute bool) { p.muted = mute }

// Err returns the first write error, if any.
func (p *ItemPrinter) Err() error { return p.err }
