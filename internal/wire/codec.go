package wire

import (
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// latin1 is ISO-8859-1: an encoding whose 256 code points map one-to-one
// onto byte values 0x00-0xFF, making it a safe carrier for opaque binary
// payloads across transports (the inter-context API, logging diagnostics)
// that are typed as text. Using it keeps Encode/Decode byte-identity
// preserving without a hand-rolled byte<->rune loop.
var latin1 = charmap.ISO8859_1

// Encode maps an opaque byte sequence onto a string such that Decode(Encode(b))
// == b for every byte value 0-255.
func Encode(b []byte) (string, error) {
	out, _, err := transform.Bytes(latin1.NewDecoder(), b)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Decode reverses Encode.
func Decode(s string) ([]byte, error) {
	out, _, err := transform.Bytes(latin1.NewEncoder(), []byte(s))
	if err != nil {
		return nil, err
	}
	return out, nil
}
