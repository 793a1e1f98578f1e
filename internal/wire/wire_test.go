package wire

import (
	"bytes"
	"testing"
)

func TestClassifyTerminator(t *testing.T) {
	cases := []struct {
		name      string
		buf       string
		expectEnd bool
		want      Terminator
	}{
		{"ok bare", "D 2.4.8\nOK\n", false, TerminatorOK},
		{"ok with rest", "OK Pleased to meet you\n", false, TerminatorOK},
		{"err", "ERR 1 No such command\n", false, TerminatorErr},
		{"inquire", "INQUIRE HASHVAL\n", false, TerminatorInquire},
		{"embedded ok in data", "S STATUS: OK so far\nOK\n", false, TerminatorOK},
		{"intermediate only", "S PROGRESS 1 2\n", false, TerminatorNone},
		{"end without inquiry context", "D ABCDEF\nEND\n", false, TerminatorNone},
		{"end with inquiry context", "D ABCDEF\nEND\n", true, TerminatorEnd},
		{"end embedded without own newline", "D prefix END suffix\n", true, TerminatorNone},
		{"empty", "", false, TerminatorNone},
		{"trailing blank lines ignored", "OK\n\n\n", false, TerminatorOK},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := ClassifyTerminator([]byte(c.buf), c.expectEnd)
			if got != c.want {
				t.Errorf("ClassifyTerminator(%q, %v) = %v, want %v", c.buf, c.expectEnd, got, c.want)
			}
		})
	}
}

func TestClassifyTerminatorSplitChunks(t *testing.T) {
	full := "OK\n"
	var buf bytes.Buffer
	fires := 0
	for _, ch := range []byte(full) {
		buf.WriteByte(ch)
		if ClassifyTerminator(buf.Bytes(), false) != TerminatorNone {
			fires++
		}
	}
	if fires != 1 {
		t.Fatalf("expected exactly one completion signal across byte-by-byte feed, got %d", fires)
	}
	if buf.String() != full {
		t.Fatalf("aggregate buffer = %q, want %q", buf.String(), full)
	}
}

func TestExtractLine(t *testing.T) {
	line, rem, ok := ExtractLine([]byte("GETINFO version\nextra"))
	if !ok || string(line) != "GETINFO version\n" || string(rem) != "extra" {
		t.Fatalf("got line=%q rem=%q ok=%v", line, rem, ok)
	}
	_, rem, ok = ExtractLine([]byte("partial"))
	if ok || string(rem) != "partial" {
		t.Fatalf("expected no extraction for unterminated buffer, got ok=%v rem=%q", ok, rem)
	}
}

func TestExtractInquiryBlock(t *testing.T) {
	block, rem, ok := ExtractInquiryBlock([]byte("D ABCDEF\nEND\nnext"))
	if !ok || string(block) != "D ABCDEF\nEND\n" || string(rem) != "next" {
		t.Fatalf("got block=%q rem=%q ok=%v", block, rem, ok)
	}
	// "END" embedded in a data line without its own newline must not trigger.
	_, rem, ok = ExtractInquiryBlock([]byte("D contains END but not a terminator\n"))
	if ok {
		t.Fatalf("expected no extraction, got rem=%q", rem)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := make([]byte, 256)
	for i := range b {
		b[i] = byte(i)
	}
	enc, err := Encode(b)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	dec, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(dec, b) {
		t.Fatalf("round trip mismatch: got %v want %v", dec, b)
	}
}

func TestIsInquiryPayload(t *testing.T) {
	if !IsInquiryPayload([]byte("D ABCDEF\nEND\n")) {
		t.Fatal("expected D-prefixed block to be an inquiry payload")
	}
	if IsInquiryPayload([]byte("GETINFO version\n")) {
		t.Fatal("did not expect a command line to be an inquiry payload")
	}
}
