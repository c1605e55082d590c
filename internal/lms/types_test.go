package lms

import "testing"

func TestFlagByteMasks(t *testing.T) {
	if PrimparValue != PrimparConstSign|PrimparIndex {
		t.Errorf("expected PrimparValue=sign|index, got 0x%X", PrimparValue)
	}
	if PrimparBytes&PrimparAddr != 0 {
		t.Error("size code field must not overlap the address bit")
	}
	if PrimparLong&PrimparVariable != 0 {
		t.Error("long and variable bits overlap")
	}
}

func TestCallParamNames(t *testing.T) {
	tests := []struct {
		cp    CallParam
		name  string
		size  int
		valid bool
	}{
		{CallParam(0x80), "IN_8", 1, true},
		{CallParam(0x81), "IN_16", 2, true},
		{CallParam(0x42), "OUT_32", 4, true},
		{CallParam(0xC3), "IO_F", 4, true},
		{CallParam(0x84), "IN_S", 0, true},
		{CallParam(0x45), "OUT_A", 2, true},
		{CallParam(0x03), "UNKNOWN", 4, false},
		{CallParam(0x87), "IN_", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cp.Name(); got != tc.name {
				t.Errorf("Name() = %q, want %q", got, tc.name)
			}
			if got := tc.cp.Format().Size(); got != tc.size {
				t.Errorf("Size() = %d, want %d", got, tc.size)
			}
			if got := tc.cp.Valid(); got != tc.valid {
				t.Errorf("Valid() = %v, want %v", got, tc.valid)
			}
		})
	}
}

func TestMsgTypeClassification(t *testing.T) {
	for _, mt := range []MsgType{DirectCommandReply, DirectCommandNoReply} {
		if !mt.IsDirectCommand() || mt.IsSystemCommand() {
			t.Errorf("0x%02X should classify as direct command", byte(mt))
		}
	}
	for _, mt := range []MsgType{SystemCommandReply, SystemCommandNoReply} {
		if !mt.IsSystemCommand() || mt.IsDirectCommand() {
			t.Errorf("0x%02X should classify as system command", byte(mt))
		}
	}
	if DirectReply.IsDirectCommand() || SystemReply.IsSystemCommand() {
		t.Error("reply types must not classify as commands")
	}
}

func TestSizeCodeString(t *testing.T) {
	if Size4Bytes.String() != "4_BYTES" || SizeString.String() != "STRING" {
		t.Error("SizeCode names mismatch")
	}
	if SizeCode(7).String() != "UNKNOWN" {
		t.Error("expected UNKNOWN for out of range size code")
	}
}
