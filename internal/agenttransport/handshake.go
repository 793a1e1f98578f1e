package agenttransport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// defaultConnectTimeout bounds the entire handshake — dial plus greeting
// read — measured from the moment the loopback socket begins opening. A
// Service may override it (config field connect_timeout) for agents known
// to greet more slowly; this is a default, not a hard ceiling.
const defaultConnectTimeout = 5 * time.Second

// dialFunc lets tests substitute a fake dialer without touching the network.
type dialFunc func(ctx context.Context, port int) (net.Conn, error)

func defaultDial(ctx context.Context, port int) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", fmt.Sprintf("127.0.0.1:%d", port))
}

// handshake completes a connect against an already-parsed rendezvous
// descriptor: dial, push the cookie, read the greeting line. It does not
// touch the SessionStore; the caller registers the resulting connection.
func handshake(ctx context.Context, dial dialFunc, rv *RendezvousDescriptor, timeout time.Duration) (conn net.Conn, greeting string, err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err = dial(ctx, rv.Port)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrConnectTimeout, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(rv.Cookie[:]); err != nil {
		conn.Close()
		return nil, "", fmt.Errorf("%w: %v", ErrAuthWriteFailed, err)
	}

	line, err := readGreetingLine(conn)
	if err != nil {
		conn.Close()
		if err == errSocketClosed {
			return nil, "", ErrGreetingAborted
		}
		return nil, "", fmt.Errorf("%w: %v", ErrConnectTimeout, err)
	}

	if len(line) < 2 || line[0] != 'O' || line[1] != 'K' {
		conn.Close()
		return nil, "", fmt.Errorf("%w: %q", ErrGreetingRejected, line)
	}

	conn.SetDeadline(time.Time{})
	return conn, line, nil
}

// errSocketClosed is a private sentinel distinguishing "peer closed before
// any newline arrived" from a generic read error, so handshake can map it
// to ErrGreetingAborted specifically.
var errSocketClosed = fmt.Errorf("socket closed before greeting")

// readGreetingLine reads bytes from conn until a `\n`-terminated line is
// available, returning it with the trailing newline stripped. Bytes may
// arrive one at a time; this loop accommodates that.
func readGreetingLine(conn net.Conn) (string, error) {
	var buf []byte
	chunk := make([]byte, 256)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			if idx := bytes.IndexByte(buf, '\n'); idx >= 0 {
				return string(buf[:idx]), nil
			}
		}
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return "", err
			}
			return "", errSocketClosed
		}
	}
}
