package wire

import "bytes"

// Terminator identifies which kind of line closed out a logical response.
type Terminator int

const (
	// TerminatorNone means the accumulated buffer does not yet end in a
	// recognized terminator line; more bytes are needed.
	TerminatorNone Terminator = iota
	TerminatorOK
	TerminatorErr
	TerminatorInquire
	TerminatorEnd
)

// inquiryPrefix is the two bytes that mark an outgoing block as inquiry
// data (a response to an agent INQUIRE).
var inquiryPrefix = []byte("D ")

// IsInquiryPayload reports whether block is a `D `-prefixed data block, the
// shape of bytes a caller sends in reply to an agent INQUIRE.
func IsInquiryPayload(block []byte) bool {
	return bytes.HasPrefix(block, inquiryPrefix)
}

// LastNonEmptyLine returns the last `\n`-terminated (or trailing, unterminated)
// line in buf that is not itself empty. A line is the bytes between one `\n`
// and the next, exclusive of both separators. Returns nil if buf holds only
// empty lines (or is empty).
func LastNonEmptyLine(buf []byte) []byte {
	end := len(buf)
	for end > 0 {
		start := bytes.LastIndexByte(buf[:end], '\n')
		line := buf[start+1 : end]
		if len(line) > 0 {
			return line
		}
		if start < 0 {
			return nil
		}
		end = start
	}
	return nil
}

// ClassifyTerminator decides whether the accumulated agent response buf is
// complete. expectEnd is true when the outgoing request that triggered this
// response was itself an inquiry-data payload (so a lone `END` line also
// counts as a terminator). A buffer that does not end in `\n` is always
// incomplete: a terminator line counts only once its newline has arrived.
func ClassifyTerminator(buf []byte, expectEnd bool) Terminator {
	if len(buf) == 0 || buf[len(buf)-1] != '\n' {
		return TerminatorNone
	}
	line := LastNonEmptyLine(buf)
	if line == nil {
		return TerminatorNone
	}
	switch {
	case matchesOK(line):
		return TerminatorOK
	case bytes.HasPrefix(line, []byte("ERR ")):
		return TerminatorErr
	case bytes.HasPrefix(line, []byte("INQUIRE ")):
		return TerminatorInquire
	case expectEnd && bytes.Equal(line, []byte("END")):
		return TerminatorEnd
	default:
		return TerminatorNone
	}
}

// matchesOK accepts "OK", "OK <rest>" — both the bare and space-separated
// forms, the permissive interpretation.
func matchesOK(line []byte) bool {
	if !bytes.HasPrefix(line, []byte("OK")) {
		return false
	}
	if len(line) == 2 {
		return true
	}
	return line[2] == ' '
}

// ExtractLine implements CM.CmdExtractor's extract-command: if buf contains
// a `\n`, returns the prefix up to and including it and the remainder;
// otherwise ok is false and remainder is buf unchanged.
func ExtractLine(buf []byte) (line, remainder []byte, ok bool) {
	idx := bytes.IndexByte(buf, '\n')
	if idx < 0 {
		return nil, buf, false
	}
	return buf[:idx+1], buf[idx+1:], true
}

// endTerminator is the four-byte inquiry-data closing sequence.
var endTerminator = []byte("END\n")

// ExtractInquiryBlock implements CM.CmdExtractor's extract-inquiry-block:
// scans buf for the literal sequence "END\n" and, if found, returns the
// prefix up to and including it plus the remainder. A bare "END" without
// its own newline (e.g. embedded in a data line) does not match.
func ExtractInquiryBlock(buf []byte) (block, remainder []byte, ok bool) {
	idx := bytes.Index(buf, endTerminator)
	if idx < 0 {
		return nil, buf, false
	}
	end := idx + len(endTerminator)
	return buf[:end], buf[end:], true
}
