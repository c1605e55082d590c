package lister

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lmsdisasm/internal/commlink"
	"lmsdisasm/internal/common"
	"lmsdisasm/internal/lms"
	"lmsdisasm/internal/lmstest"
	"lmsdisasm/internal/tracelog"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func testProgram() []byte {
	var main lmstest.StreamBuilder
	main.Op(0x30).Short(5).LV0(0).Op(0x08).Op(0x0A)

	var sub lmstest.StreamBuilder
	sub.AddBytes(1, lms.CallparIn) // one IN_8 argument
	sub.Op(0x01).Op(0x08).Op(0x0A)

	return lmstest.Program(104, 1,
		lmstest.VMThread(1, main.Bytes()),
		lmstest.Subcall(2, sub.Bytes()),
	)
}

func TestRunProgram(t *testing.T) {
	path := writeFile(t, "demo.rbf", testProgram())

	var out bytes.Buffer
	require.NoError(t, Run(Config{Input: path, Output: &out}))

	want := "// Disassembly of " + path + "\n" +
		"//\n" +
		"// Byte code version: 104\n" +
		"\n" +
		"DATA8 GLOBAL0\n" +
		"\n" +
		"vmthread OBJECT1\n" +
		"{\n" +
		"\tDATA8 LOCAL0\n" +
		"\n" +
		"OFFSET1_0:\n" +
		"\tMOVE8_8(5,LOCAL0)\n" +
		"OFFSET1_3:\n" +
		"}\n" +
		"\n" +
		"subcall OBJECT2\n" +
		"{\n" +
		"\tIN_8 LOCAL0\n" +
		"\n" +
		"\tDATA8 LOCAL1\n" +
		"\n" +
		"OFFSET2_2:\n" +
		"\tNOP()\n" +
		"OFFSET2_3:\n" +
		"}\n"
	require.Equal(t, want, out.String())
}

func TestRunProgramStats(t *testing.T) {
	path := writeFile(t, "demo.rbf", testProgram())

	var out bytes.Buffer
	require.NoError(t, Run(Config{Input: path, Output: &out, Stats: true}))
	require.True(t, strings.HasSuffix(out.String(), "\n// Opcodes used:-\n// MOVE8_8 : 1\n// NOP : 1\n"), out.String())
}

func TestRunProgramCatalogOverride(t *testing.T) {
	path := writeFile(t, "demo.rbf", testProgram())
	override := writeFile(t, "vendor.toml", []byte(`opcode = [ { code = 0x01, name = "NOOP" } ]`))

	var out bytes.Buffer
	require.NoError(t, Run(Config{Input: path, Output: &out, CatalogPaths: []string{override}}))
	require.Contains(t, out.String(), "\tNOOP()\n")
}

func TestRunProgramOutputFile(t *testing.T) {
	path := writeFile(t, "demo.rbf", testProgram())
	dir := t.TempDir()

	listing := filepath.Join(dir, "demo.lms")
	require.NoError(t, Run(Config{Input: path, OutputPath: listing}))
	got, err := os.ReadFile(listing)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(got), "// Disassembly of "+path+"\n"), string(got))
	require.True(t, strings.HasSuffix(string(got), "OFFSET2_3:\n}\n"), string(got))

	// the listing file is only created once decoding has succeeded
	bad := testProgram()
	bad[0] = 'X'
	badPath := writeFile(t, "bad.rbf", bad)
	skipped := filepath.Join(dir, "bad.lms")
	require.ErrorIs(t, Run(Config{Input: badPath, OutputPath: skipped}), common.ErrFormatErr)
	_, err = os.Stat(skipped)
	require.True(t, os.IsNotExist(err), "unexpected listing file: %v", err)

	err = Run(Config{Input: path, OutputPath: filepath.Join(dir, "missing", "demo.lms")})
	require.ErrorIs(t, err, common.ErrFileErr)
}

func TestRunProgramErrors(t *testing.T) {
	bad := testProgram()
	bad[0] = 'X'
	badSig := writeFile(t, "bad.rbf", bad)

	var code lmstest.StreamBuilder
	code.Op(0x01).Op(0xFF).Op(0x0A)
	badOp := writeFile(t, "op.rbf", lmstest.Program(1, 0, lmstest.VMThread(0, code.Bytes())))

	tests := []struct {
		name  string
		input string
		want  error
	}{
		{"signature", badSig, common.ErrFormatErr},
		{"unknown opcode", badOp, common.ErrFormatErr},
		{"missing file", filepath.Join(t.TempDir(), "none.rbf"), common.ErrFileErr},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			err := Run(Config{Input: tc.input, Output: &out})
			require.ErrorIs(t, err, tc.want)
			require.Empty(t, out.String(), "no partial listing on error")
		})
	}
}

func TestRunTrace(t *testing.T) {
	var begin lmstest.StreamBuilder
	begin.Op(0x92).U32(2).CString("../prjs/x/prog.rbf")

	records := []commlink.Record{
		{Sent: true, Data: lmstest.Packet(1, byte(lms.SystemCommandReply), begin.Bytes())},
		{Data: []byte{0x06, 0x00, 0x01, 0x00, byte(lms.SystemReply), 0x92, 0x00, 0x00}},
		{Sent: true, Data: lmstest.Packet(2, byte(lms.SystemCommandReply), []byte{0x93, 0x00, 'h', 'i'})},
		{Sent: true, Data: lmstest.Packet(3, byte(lms.DirectCommandNoReply), []byte{0x00, 0x00, 0xFF})},
		{Sent: true, Data: lmstest.Packet(4, byte(lms.DirectCommandNoReply), []byte{0x00, 0x00, 0x01})},
	}
	var log bytes.Buffer
	require.NoError(t, tracelog.Write(&log, records))
	input := writeFile(t, "comm.yaml", log.Bytes())
	captureDir := t.TempDir()

	var stdout, listing bytes.Buffer
	err := Run(Config{Input: input, Output: &listing, Trace: true, CaptureDir: captureDir, Stdout: &stdout})
	require.NoError(t, err)
	require.Empty(t, listing.String(), "trace output ignores the listing destination")

	got := stdout.String()
	require.Equal(t, 5, strings.Count(got, "DATA "))
	require.Contains(t, got, "\tBEGIN_DOWNLOAD(2,'../prjs/x/prog.rbf')\n")
	require.Contains(t, got, "\t# cmd was BEGIN_DOWNLOAD, status SUCCESS\n")
	require.Contains(t, got, "\t# DUMPING 2 bytes to prog.rbf\n")
	require.Contains(t, got, "\t# DECODE ERROR: ")
	require.True(t, strings.HasSuffix(got, "\t# MSG #4\n\t# LOCAL: 0, GLOBAL: 0\n\tNOP()\n"), got)

	captured, err := os.ReadFile(filepath.Join(captureDir, "prog.rbf"))
	require.NoError(t, err)
	require.Equal(t, "hi", string(captured))
}

func TestRunTraceBadLog(t *testing.T) {
	input := writeFile(t, "comm.yaml", []byte("- sent: true\n  hexdata: zz\n"))
	err := Run(Config{Input: input, Trace: true, Stdout: &bytes.Buffer{}})
	require.ErrorIs(t, err, common.ErrFormatErr)
}
