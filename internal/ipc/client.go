package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/diablodale/gpg-windows-relay/internal/wire"
)

// ErrUnknownSession is returned when the server reports errKindUnknownSession.
// clientmediator treats it like any other Send/Disconnect failure (CM never
// expects to see it by construction), but it is exported so tests and
// operator tooling can match on it with errors.Is.
var ErrUnknownSession = fmt.Errorf("unknown session")

// remoteError carries a server-reported Kind/Message back across the IPC
// boundary, preserving Is-matchability against the exported sentinels above.
type remoteError struct {
	kind    string
	message string
}

func (e *remoteError) Error() string { return e.message }

func (e *remoteError) Is(target error) bool {
	return target == ErrUnknownSession && e.kind == errKindUnknownSession
}

// Client implements clientmediator.AgentClient over the unix-socket HTTP API
// a Server exposes: a DialContext-over-unix-socket HTTP client re-purposed
// for connect/send/disconnect instead of generic task submission.
type Client struct {
	socketPath string
	http       *http.Client
}

func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

// Connect implements clientmediator.AgentClient.
func (c *Client) Connect(ctx context.Context) (sessionID, greeting string, err error) {
	resp, err := c.do(ctx, http.MethodPost, "/sessions", nil)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return "", "", err
	}
	var cr connectResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", "", fmt.Errorf("decode connect response: %w", err)
	}
	return cr.SessionID, cr.Greeting, nil
}

// Send implements clientmediator.AgentClient.
func (c *Client) Send(ctx context.Context, sessionID string, block []byte) ([]byte, error) {
	encoded, err := wire.Encode(block)
	if err != nil {
		return nil, fmt.Errorf("encode block: %w", err)
	}
	body, err := json.Marshal(sendRequest{Block: encoded})
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, "/sessions/"+sessionID+"/send", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode send response: %w", err)
	}
	decoded, err := wire.Decode(sr.Response)
	if err != nil {
		return nil, fmt.Errorf("decode response block: %w", err)
	}
	return decoded, nil
}

// Status is the reachability/liveness report for the "relay agent status"
// and "relay client status" subcommands.
type Status struct {
	PID           int
	UptimeSeconds float64
	SessionCount  int
}

// Status queries the AT process's /status endpoint over the same IPC
// connection used for connect/send/disconnect.
func (c *Client) Status(ctx context.Context) (Status, error) {
	resp, err := c.do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return Status{}, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return Status{}, err
	}
	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return Status{}, fmt.Errorf("decode status response: %w", err)
	}
	return Status{PID: sr.PID, UptimeSeconds: sr.UptimeSeconds, SessionCount: sr.SessionCount}, nil
}

// Disconnect implements clientmediator.AgentClient.
func (c *Client) Disconnect(ctx context.Context, sessionID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/sessions/"+sessionID, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, "http://ipc"+path, r)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("HTTP %d: undecodable error body", resp.StatusCode)
	}
	return &remoteError{kind: er.Kind, message: er.Message}
}
