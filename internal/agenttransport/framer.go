package agenttransport

import "github.com/diablodale/gpg-windows-relay/internal/wire"

// framer accumulates agent ingress bytes for one in-flight response and
// decides, on every chunk, whether a logical response is complete. A
// response never holds bytes from two logical responses at once: the
// buffer is reset when the next response begins, and response() hands the
// caller a copy.
type framer struct {
	buf        []byte
	expectEnd  bool
	terminator wire.Terminator
}

// begin starts accumulating a new response. expectEnd is true when the
// outgoing block that triggered this response was itself an inquiry-data
// payload (its first two bytes are "D ").
func (f *framer) begin(expectEnd bool) {
	f.buf = f.buf[:0]
	f.expectEnd = expectEnd
	f.terminator = wire.TerminatorNone
}

// feed appends chunk to the accumulating buffer and re-classifies. It
// returns true once a terminator line has been observed.
func (f *framer) feed(chunk []byte) bool {
	f.buf = append(f.buf, chunk...)
	f.terminator = wire.ClassifyTerminator(f.buf, f.expectEnd)
	return f.terminator != wire.TerminatorNone
}

// response returns the full accumulated response buffer, valid only after
// feed has returned true.
func (f *framer) response() []byte {
	out := make([]byte, len(f.buf))
	copy(out, f.buf)
	return out
}
