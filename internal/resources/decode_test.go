package resources

import "testing"

func TestDecodeLine_DefaultUTF8PassesValidInputThrough(t *testing.T) {
	got := decodeLine("hunter2", "")
	if got != "hunter2" {
		t.Fatalf("got %q, want %q", got, "hunter2")
	}
}

func TestDecodeLine_ReplacesInvalidUTF8WhenEncodingIsUTF8(t *testing.T) {
	invalid := "abc\xffdef"
	got := decodeLine(invalid, "utf-8")
	if got == invalid {
		t.Fatalf("expected invalid UTF-8 to be replaced, got unchanged %q", got)
	}
}

func TestDecodeLine_DecodesWindows1252ByteSequence(t *testing.T) {
	// 0x93/0x94 are smart quotes in windows-1252; invalid as standalone UTF-8.
	raw := string([]byte{0x93, 'h', 'i', 0x94})
	got := decodeLine(raw, "windows-1252")
	if got == raw {
		t.Fatalf("expected windows-1252 decoding to change the byte sequence, got unchanged %q", got)
	}
}

func TestDecodeLine_UnrecognizedEncodingFallsBackToUTF8Replace(t *testing.T) {
	invalid := "abc\xffdef"
	got := decodeLine(invalid, "not-a-real-encoding")
	if got == invalid {
		t.Fatalf("expected fallback replace-on-error for unrecognized encoding, got unchanged %q", got)
	}
}
