package clientmediator

import "github.com/diablodale/gpg-windows-relay/internal/wire"

// extractCommand pulls one complete `\n`-terminated command line off buf.
func extractCommand(buf []byte) (extracted, remainder []byte, ok bool) {
	return wire.ExtractLine(buf)
}

// extractInquiryBlock pulls one complete inquiry-data block (ending at the
// first occurrence of the bytes "END\n") off buf.
func extractInquiryBlock(buf []byte) (extracted, remainder []byte, ok bool) {
	return wire.ExtractInquiryBlock(buf)
}
