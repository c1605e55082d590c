// Package commlink decodes a recorded exchange of command and reply packets
// between a host and an lms2012 brick.
package commlink

import (
	"encoding/binary"

	"lmsdisasm/internal/catalog"
	"lmsdisasm/internal/common"
	"lmsdisasm/internal/cursor"
	"lmsdisasm/internal/idec"
	"lmsdisasm/internal/lms"
	"lmsdisasm/internal/param"
)

// Record is one logged transfer, in capture order.
type Record struct {
	Sent bool
	Data []byte
}

// Incomplete describes a sent packet whose length field does not match the
// bytes gathered so far. Wanted is -1 when the length field itself is
// missing.
type Incomplete struct {
	Wanted int
	Actual int
}

// Reply is a decoded reply packet.
type Reply struct {
	Type lms.MsgType
	// Direct replies carry a float. Value is nil when the body is shorter
	// than 4 bytes; BodyBytes holds the body length.
	Value     *param.FloatImmediate
	BodyBytes int
	// System replies echo the command and carry a status.
	Command byte
	Status  byte
}

// Dump records payload bytes appended to a capture file.
type Dump struct {
	Bytes int
	File  string
}

// Report is everything decoded from one record.
type Report struct {
	Record
	Incomplete *Incomplete

	MsgID uint16
	Type  lms.MsgType

	// Direct command reservations.
	Locals  int
	Globals int

	Instructions []idec.Instruction
	Reply        *Reply
	Dump         *Dump
	// Dropped counts payload bytes of a continue download seen with no
	// capture file open.
	Dropped int

	Err error
}

// Parser holds the state threaded across records: the pending fragment of
// an incomplete sent packet and the active capture sink.
type Parser struct {
	dec        *idec.Decoder
	captureDir string
	logger     common.Logger

	pending []byte
	sink    *CaptureSink
}

func NewParser(dec *idec.Decoder, captureDir string, logger common.Logger) *Parser {
	if logger == nil {
		logger = common.NewNoOpLogger()
	}
	if captureDir == "" {
		captureDir = "."
	}
	return &Parser{dec: dec, captureDir: captureDir, logger: logger}
}

// Sink returns the active capture sink, or nil.
func (p *Parser) Sink() *CaptureSink { return p.sink }

// Run feeds records in order and hands each report to emit.
func (p *Parser) Run(records []Record, emit func(*Report)) {
	for _, rec := range records {
		emit(p.Feed(rec))
	}
}

// Feed decodes one record. Decode failures are carried on the report.
func (p *Parser) Feed(rec Record) *Report {
	r := &Report{Record: rec}
	if rec.Sent {
		p.sent(r)
	} else {
		p.received(r)
	}
	if r.Err != nil {
		p.logger.Logf(common.SeverityWarning, "record decode failed: %v", r.Err)
	}
	return r
}

func (p *Parser) sent(r *Report) {
	packet := make([]byte, 0, len(p.pending)+len(r.Data))
	packet = append(append(packet, p.pending...), r.Data...)

	if len(packet) < 2 {
		r.Incomplete = &Incomplete{Wanted: -1, Actual: len(packet)}
		p.pending = r.Data
		return
	}
	if size := int(binary.LittleEndian.Uint16(packet)); size != len(packet)-2 {
		r.Incomplete = &Incomplete{Wanted: size, Actual: len(packet) - 2}
		p.logger.Logf(common.SeverityDebug, "incomplete packet: wanted %d, have %d", size, len(packet)-2)
		// only the newest fragment is kept
		p.pending = r.Data
		return
	}
	p.pending = nil

	c, err := p.header(r, packet)
	if err != nil {
		r.Err = err
		return
	}

	switch {
	case r.Type.IsDirectCommand():
		r.Err = p.direct(r, c)
	case r.Type.IsSystemCommand():
		r.Err = p.system(r, c)
	}
}

// direct decodes instructions until the packet is used up. Offsets count
// from the start of the packet, length field included, and jump labels all
// name lms.DirectObjectID.
func (p *Parser) direct(r *Report, c *cursor.Cursor) error {
	hdr, err := c.U16()
	if err != nil {
		return err
	}
	r.Locals = int(hdr >> lms.DirectLocalShift)
	r.Globals = int(hdr & lms.DirectGlobalMask)

	for c.Remaining() > 0 {
		in, ok, err := p.dec.DecodeOne(c, 0, lms.DirectObjectID)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		r.Instructions = append(r.Instructions, in)
	}
	return nil
}

// system decodes exactly one system command; whatever follows it is payload.
func (p *Parser) system(r *Report, c *cursor.Cursor) error {
	in, op, err := p.dec.DecodeSysOp(c, c.Tell())
	if err != nil {
		return err
	}
	r.Instructions = append(r.Instructions, in)
	if op == nil {
		return nil
	}

	switch op.Capture {
	case catalog.CaptureBegin:
		// a rejected target still ends the previous capture
		p.sink = nil
		target, ok := firstString(in.Params)
		if !ok {
			return common.FormatError(c.Tell(), "%s without a file name", op.Name)
		}
		sink, err := NewCaptureSink(p.captureDir, string(target))
		if err != nil {
			return err
		}
		p.sink = sink
		p.logger.Logf(common.SeverityInfo, "capturing download of %q to %s", target, sink.Path)

	case catalog.CaptureContinue:
		payload := c.Rest()
		if p.sink == nil {
			r.Dropped = len(payload)
			return nil
		}
		if err := p.sink.Append(payload); err != nil {
			return err
		}
		r.Dump = &Dump{Bytes: len(payload), File: p.sink.Name}
		p.logger.Logf(common.SeverityInfo, "appended %d bytes to %s", len(payload), p.sink.Path)
	}
	return nil
}

func firstString(params []param.Value) ([]byte, bool) {
	for _, v := range params {
		if s, ok := v.(param.StringLiteral); ok {
			return s.Raw, true
		}
	}
	return nil, false
}

// header reads the length, id and type fields into r and returns a cursor
// positioned at the body.
func (p *Parser) header(r *Report, packet []byte) (*cursor.Cursor, error) {
	if len(packet) < lms.PacketHeaderBytes {
		return nil, common.TruncatedInputError(len(packet), lms.PacketHeaderBytes, len(packet))
	}
	r.MsgID = binary.LittleEndian.Uint16(packet[2:])
	r.Type = lms.MsgType(packet[4])

	c := cursor.New(packet)
	if err := c.Seek(lms.PacketHeaderBytes); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *Parser) received(r *Report) {
	// the length field is not checked; replies are never fragmented
	c, err := p.header(r, r.Data)
	if err != nil {
		r.Err = err
		return
	}
	reply := &Reply{Type: r.Type, BodyBytes: c.Remaining()}
	r.Reply = reply

	switch r.Type {
	case lms.DirectReply, lms.DirectReplyError:
		if c.Remaining() >= 4 {
			bits, _ := c.U32()
			reply.Value = &param.FloatImmediate{Bits: bits}
		}
	case lms.SystemReply, lms.SystemReplyError:
		cmd, err := c.U8()
		if err != nil {
			r.Err = err
			return
		}
		status, err := c.U8()
		if err != nil {
			r.Err = err
			return
		}
		reply.Command = cmd
		reply.Status = status
	}
}
