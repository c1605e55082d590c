package commlink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lmsdisasm/internal/catalog"
	"lmsdisasm/internal/common"
	"lmsdisasm/internal/idec"
	"lmsdisasm/internal/lms"
	"lmsdisasm/internal/lmstest"
)

func newTestParser(t *testing.T) (*Parser, string) {
	dir := t.TempDir()
	return NewParser(idec.NewDecoder(catalog.Default(), nil), dir, nil), dir
}

func instructionText(r *Report) []string {
	var out []string
	for _, in := range r.Instructions {
		out = append(out, in.String())
	}
	return out
}

func directCommand(id uint16) []byte {
	var body lmstest.StreamBuilder
	body.AddBytes(lmstest.DirectHeader(2, 4)...)
	body.Op(0x84).Short(19).Short(0).Short(0).Short(0) // UI_DRAW(FILLWINDOW,0,0,0)
	body.Op(0x84).Short(0)                             // UI_DRAW(UPDATE)
	return lmstest.Packet(id, byte(lms.DirectCommandReply), body.Bytes())
}

func systemCommand(id uint16, build func(b *lmstest.StreamBuilder)) []byte {
	var body lmstest.StreamBuilder
	build(&body)
	return lmstest.Packet(id, byte(lms.SystemCommandReply), body.Bytes())
}

func TestDirectCommand(t *testing.T) {
	p, _ := newTestParser(t)

	r := p.Feed(Record{Sent: true, Data: directCommand(7)})
	require.NoError(t, r.Err)
	require.Nil(t, r.Incomplete)
	require.Equal(t, uint16(7), r.MsgID)
	require.Equal(t, 2, r.Locals)
	require.Equal(t, 4, r.Globals)
	require.Equal(t, []string{"UI_DRAW(FILLWINDOW,0,0,0)", "UI_DRAW(UPDATE)"}, instructionText(r))
}

func TestDirectCommandJumpLabel(t *testing.T) {
	p, _ := newTestParser(t)

	var body lmstest.StreamBuilder
	body.AddBytes(lmstest.DirectHeader(0, 0)...)
	body.Op(0x01).Op(0x40).Short(-3)
	r := p.Feed(Record{Sent: true, Data: lmstest.Packet(9, byte(lms.DirectCommandNoReply), body.Bytes())})
	require.NoError(t, r.Err)
	// offsets count from the length field; labels do not depend on the message id
	require.Equal(t, []string{"NOP()", "JR(OFFSET42_7)"}, instructionText(r))
	require.Equal(t, 7, r.Instructions[0].Offset)
	require.Equal(t, 8, r.Instructions[1].Offset)
}

func TestSentReassembly(t *testing.T) {
	p, _ := newTestParser(t)
	full := directCommand(3)

	a := p.Feed(Record{Sent: true, Data: full[:6]})
	require.NotNil(t, a.Incomplete)
	require.Equal(t, Incomplete{Wanted: len(full) - 2, Actual: 4}, *a.Incomplete)
	require.Empty(t, a.Instructions)

	b := p.Feed(Record{Sent: true, Data: full[6:]})
	require.Nil(t, b.Incomplete)
	require.NoError(t, b.Err)
	require.Equal(t, uint16(3), b.MsgID)
	require.Len(t, b.Instructions, 2)

	// the buffer is cleared once a packet completes
	c := p.Feed(Record{Sent: true, Data: directCommand(4)})
	require.Nil(t, c.Incomplete)
	require.Equal(t, uint16(4), c.MsgID)
}

func TestSentPendingKeepsNewestFragment(t *testing.T) {
	p, _ := newTestParser(t)
	full := directCommand(5)

	require.NotNil(t, p.Feed(Record{Sent: true, Data: []byte{0x40}}).Incomplete)
	// one byte plus the stray byte still fails, leaving only the newest fragment pending
	r := p.Feed(Record{Sent: true, Data: full[:3]})
	require.NotNil(t, r.Incomplete)
	r = p.Feed(Record{Sent: true, Data: full[3:]})
	require.Nil(t, r.Incomplete)
	require.NoError(t, r.Err)
	require.Equal(t, uint16(5), r.MsgID)
}

func TestReceivedIgnoresPending(t *testing.T) {
	p, _ := newTestParser(t)
	full := directCommand(1)
	require.NotNil(t, p.Feed(Record{Sent: true, Data: full[:4]}).Incomplete)

	var reply lmstest.StreamBuilder
	reply.U16(7).U16(1).AddBytes(byte(lms.DirectReply)).LCF(2.5)
	// LCF prefixes a flag byte; drop it to get a raw float body
	data := append(reply.Bytes()[:5:5], reply.Bytes()[6:]...)

	r := p.Feed(Record{Data: data})
	require.NoError(t, r.Err)
	require.Equal(t, uint16(1), r.MsgID)
	require.NotNil(t, r.Reply.Value)
	require.Equal(t, float32(2.5), r.Reply.Value.Float())

	// the earlier fragment is still pending for the next sent record
	r = p.Feed(Record{Sent: true, Data: full[4:]})
	require.Nil(t, r.Incomplete)
	require.Equal(t, uint16(1), r.MsgID)
}

func TestReplies(t *testing.T) {
	p, _ := newTestParser(t)

	sys := p.Feed(Record{Data: []byte{0x05, 0x00, 0x02, 0x00, byte(lms.SystemReplyError), 0x92, 0x06}})
	require.NoError(t, sys.Err)
	require.Equal(t, lms.SystemReplyError, sys.Reply.Type)
	require.Equal(t, byte(0x92), sys.Reply.Command)
	require.Equal(t, byte(0x06), sys.Reply.Status)

	short := p.Feed(Record{Data: []byte{0x04, 0x00, 0x03, 0x00, byte(lms.DirectReply), 0x01}})
	require.NoError(t, short.Err)
	require.Nil(t, short.Reply.Value)
	require.Equal(t, 1, short.Reply.BodyBytes)

	unknown := p.Feed(Record{Data: []byte{0x03, 0x00, 0x04, 0x00, 0x77}})
	require.NoError(t, unknown.Err)
	require.Equal(t, lms.MsgType(0x77), unknown.Reply.Type)

	truncated := p.Feed(Record{Data: []byte{0x04, 0x00, 0x05, 0x00, byte(lms.SystemReply), 0x92}})
	require.ErrorIs(t, truncated.Err, common.ErrTruncatedInputErr)

	tiny := p.Feed(Record{Data: []byte{0x01}})
	require.ErrorIs(t, tiny.Err, common.ErrTruncatedInputErr)
}

func TestUnknownTypes(t *testing.T) {
	p, _ := newTestParser(t)

	r := p.Feed(Record{Sent: true, Data: lmstest.Packet(2, 0x42, []byte{0x01})})
	require.NoError(t, r.Err)
	require.Equal(t, lms.MsgType(0x42), r.Type)
	require.Empty(t, r.Instructions)

	r = p.Feed(Record{Sent: true, Data: systemCommand(3, func(b *lmstest.StreamBuilder) { b.AddBytes(0x50, 0x01) })})
	require.NoError(t, r.Err)
	require.Equal(t, []string{"SYSOP_0x50()"}, instructionText(r))
}

func TestDecodeErrorContinues(t *testing.T) {
	p, _ := newTestParser(t)

	bad := lmstest.Packet(1, byte(lms.DirectCommandReply), append(lmstest.DirectHeader(0, 0), 0xFE))
	r := p.Feed(Record{Sent: true, Data: bad})
	require.ErrorIs(t, r.Err, common.ErrFormatErr)

	r = p.Feed(Record{Sent: true, Data: directCommand(2)})
	require.NoError(t, r.Err)
	require.Len(t, r.Instructions, 2)
}

func beginDownload(id uint16, name string) []byte {
	return systemCommand(id, func(b *lmstest.StreamBuilder) { b.Op(0x92).U32(100).CString(name) })
}

func continueDownload(id uint16, handle byte, payload []byte) []byte {
	return systemCommand(id, func(b *lmstest.StreamBuilder) { b.Op(0x93).AddBytes(handle).AddBytes(payload...) })
}

func TestDownloadCapture(t *testing.T) {
	p, dir := newTestParser(t)
	p1 := []byte("first chunk ")
	p2 := []byte{0x00, 0x01, 0xFF}

	// leftovers from an earlier run are replaced
	require.NoError(t, os.WriteFile(filepath.Join(dir, "foo.bin"), []byte("stale"), 0o644))

	var reports []*Report
	p.Run([]Record{
		{Sent: true, Data: beginDownload(1, "../prjs/demo/foo.bin")},
		{Sent: true, Data: continueDownload(2, 0, p1)},
		{Sent: true, Data: continueDownload(3, 0, p2)},
		{Sent: true, Data: beginDownload(4, "/media/card/bar.bin")},
		{Sent: true, Data: continueDownload(5, 0, []byte("bar"))},
	}, func(r *Report) { reports = append(reports, r) })

	require.Len(t, reports, 5)
	for _, r := range reports {
		require.NoError(t, r.Err)
	}
	require.Equal(t, []string{"BEGIN_DOWNLOAD(100,'../prjs/demo/foo.bin')"}, instructionText(reports[0]))
	require.Equal(t, &Dump{Bytes: len(p1), File: "foo.bin"}, reports[1].Dump)
	require.Equal(t, &Dump{Bytes: len(p2), File: "foo.bin"}, reports[2].Dump)

	foo, err := os.ReadFile(filepath.Join(dir, "foo.bin"))
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, p1...), p2...), foo)

	bar, err := os.ReadFile(filepath.Join(dir, "bar.bin"))
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), bar)
	require.Equal(t, "bar.bin", p.Sink().Name)
}

func TestRejectedBeginEndsCapture(t *testing.T) {
	p, dir := newTestParser(t)

	var reports []*Report
	p.Run([]Record{
		{Sent: true, Data: beginDownload(1, "../prjs/demo/foo.bin")},
		{Sent: true, Data: continueDownload(2, 0, []byte("keep"))},
		{Sent: true, Data: beginDownload(3, "../")},
		{Sent: true, Data: continueDownload(4, 0, []byte("lost"))},
	}, func(r *Report) { reports = append(reports, r) })

	require.ErrorIs(t, reports[2].Err, common.ErrFormatErr)
	require.Nil(t, p.Sink())
	require.Nil(t, reports[3].Dump)
	require.Equal(t, 4, reports[3].Dropped)

	foo, err := os.ReadFile(filepath.Join(dir, "foo.bin"))
	require.NoError(t, err)
	require.Equal(t, "keep", string(foo))
}

func TestShortSentPacket(t *testing.T) {
	p, _ := newTestParser(t)

	// length field satisfied but no room for id and type
	r := p.Feed(Record{Sent: true, Data: []byte{0x01, 0x00, 0x07}})
	require.Nil(t, r.Incomplete)
	require.ErrorIs(t, r.Err, common.ErrTruncatedInputErr)
}

func TestContinueWithoutCapture(t *testing.T) {
	p, dir := newTestParser(t)

	r := p.Feed(Record{Sent: true, Data: continueDownload(1, 0, []byte{1, 2, 3})})
	require.NoError(t, r.Err)
	require.Nil(t, r.Dump)
	require.Equal(t, 3, r.Dropped)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestNewCaptureSink(t *testing.T) {
	dir := t.TempDir()

	s, err := NewCaptureSink(dir, `..\prjs\win.rbf`)
	require.NoError(t, err)
	require.Equal(t, "win.rbf", s.Name)
	require.Equal(t, filepath.Join(dir, "win.rbf"), s.Path)

	_, err = NewCaptureSink(dir, "../")
	require.ErrorIs(t, err, common.ErrFormatErr)

	require.NoError(t, s.Append([]byte("a")))
	require.NoError(t, s.Append([]byte("b")))
	got, err := os.ReadFile(s.Path)
	require.NoError(t, err)
	require.Equal(t, "ab", string(got))
}
