package agenttransport

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
)

// cookieLen is the fixed size of the authentication cookie that follows the
// port line in a rendezvous file.
const cookieLen = 16

// maxPortLineScan bounds how far into the file we look for the newline that
// separates the decimal port from the cookie bytes.
const maxPortLineScan = 64

// RendezvousDescriptor is the parsed contents of an agent's rendezvous file:
// a loopback port and a 16-byte opaque authentication cookie.
type RendezvousDescriptor struct {
	Port   int
	Cookie [cookieLen]byte
}

// ParseRendezvousFile reads and parses the rendezvous file at path.
func ParseRendezvousFile(path string) (*RendezvousDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRendezvousMissing, path)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrRendezvousMalformed, path, err)
	}
	return ParseRendezvousBytes(data)
}

// ParseRendezvousBytes parses the in-memory contents of a rendezvous file.
func ParseRendezvousBytes(data []byte) (*RendezvousDescriptor, error) {
	scanLimit := len(data)
	if scanLimit > maxPortLineScan {
		scanLimit = maxPortLineScan
	}
	nl := bytes.IndexByte(data[:scanLimit], '\n')
	if nl < 0 {
		return nil, fmt.Errorf("%w: no newline within first %d bytes", ErrRendezvousMalformed, maxPortLineScan)
	}
	port, err := strconv.Atoi(string(data[:nl]))
	if err != nil || port < 0 {
		return nil, fmt.Errorf("%w: unparseable port %q", ErrRendezvousMalformed, data[:nl])
	}
	rest := data[nl+1:]
	if len(rest) < cookieLen {
		return nil, fmt.Errorf("%w: only %d bytes after newline, need %d", ErrRendezvousMalformed, len(rest), cookieLen)
	}
	d := &RendezvousDescriptor{Port: port}
	copy(d.Cookie[:], rest[:cookieLen])
	return d, nil
}
