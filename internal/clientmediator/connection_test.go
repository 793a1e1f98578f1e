package clientmediator

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"
)

func startConnection(t *testing.T, agent AgentClient) (peer net.Conn, br *bufio.Reader, cc *ClientConnection, done chan struct{}) {
	t.Helper()
	peer, server := net.Pipe()
	cc = newClientConnection("c-test", server, agent, discardLogger(), func(*ClientConnection) {})
	done = make(chan struct{})
	go func() {
		cc.run(context.Background())
		close(done)
	}()
	return peer, bufio.NewReader(peer), cc, done
}

func waitDone(t *testing.T, done chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection did not reach a terminal state in time")
	}
}

func TestConnectionGreetingAndCommandRoundTrip(t *testing.T) {
	agent := newFakeAgent()
	peer, br, cc, done := startConnection(t, agent)
	defer peer.Close()

	greeting := readLine(t, br)
	if greeting != "OK Pleased to meet you\n" {
		t.Fatalf("greeting = %q, want %q", greeting, "OK Pleased to meet you\n")
	}
	if cc.state != StateReady {
		t.Fatalf("state after greeting = %s, want READY", cc.state)
	}

	if _, err := peer.Write([]byte("GETINFO version\n")); err != nil {
		t.Fatalf("write command: %v", err)
	}
	resp := readLine(t, br)
	if resp != "OK\n" {
		t.Fatalf("response = %q, want %q", resp, "OK\n")
	}

	sends, _ := agent.calls()
	if sends != 1 {
		t.Fatalf("agent.Send calls = %d, want 1", sends)
	}
	if string(agent.sendCalls[0]) != "GETINFO version\n" {
		t.Fatalf("sent block = %q, want %q", agent.sendCalls[0], "GETINFO version\n")
	}

	peer.Close()
	waitDone(t, done)
	if cc.state != StateDisconnected {
		t.Fatalf("final state = %s, want DISCONNECTED", cc.state)
	}
	if _, disconnects := agent.calls(); disconnects != 1 {
		t.Fatalf("agent.Disconnect calls = %d, want 1", disconnects)
	}
}

func TestConnectionInquiryDialogue(t *testing.T) {
	agent := newFakeAgent()
	agent.responses = [][]byte{
		[]byte("INQUIRE CHALLENGE\n"),
		[]byte("OK\n"),
	}
	peer, br, cc, done := startConnection(t, agent)
	defer peer.Close()

	readLine(t, br) // greeting

	if _, err := peer.Write([]byte("PKSIGN\n")); err != nil {
		t.Fatalf("write command: %v", err)
	}
	inquire := readLine(t, br)
	if inquire != "INQUIRE CHALLENGE\n" {
		t.Fatalf("response = %q, want INQUIRE line", inquire)
	}
	if cc.state != StateBufferingInquire {
		t.Fatalf("state after INQUIRE = %s, want BUFFERING_INQUIRE", cc.state)
	}

	if _, err := peer.Write([]byte("D answerdata\nEND\n")); err != nil {
		t.Fatalf("write inquiry data: %v", err)
	}
	final := readLine(t, br)
	if final != "OK\n" {
		t.Fatalf("final response = %q, want OK", final)
	}
	if cc.state != StateReady {
		t.Fatalf("state after inquiry resolved = %s, want READY", cc.state)
	}

	sends, _ := agent.calls()
	if sends != 2 {
		t.Fatalf("agent.Send calls = %d, want 2", sends)
	}
	if string(agent.sendCalls[1]) != "D answerdata\nEND\n" {
		t.Fatalf("second sent block = %q, want the inquiry-data block", agent.sendCalls[1])
	}
}

func TestConnectionPipelinedCommands(t *testing.T) {
	agent := newFakeAgent()
	peer, br, _, done := startConnection(t, agent)
	defer peer.Close()

	readLine(t, br) // greeting

	// Both commands arrive in the client's single write, ahead of any
	// response: the second should be dispatched without further client
	// input once the first round trip completes.
	if _, err := peer.Write([]byte("CMD1\nCMD2\n")); err != nil {
		t.Fatalf("write commands: %v", err)
	}

	first := readLine(t, br)
	second := readLine(t, br)
	if first != "OK\n" || second != "OK\n" {
		t.Fatalf("responses = %q, %q, want two OK lines", first, second)
	}

	sends, _ := agent.calls()
	if sends != 2 {
		t.Fatalf("agent.Send calls = %d, want 2", sends)
	}
	if string(agent.sendCalls[0]) != "CMD1\n" || string(agent.sendCalls[1]) != "CMD2\n" {
		t.Fatalf("sent blocks = %q, %q", agent.sendCalls[0], agent.sendCalls[1])
	}

	peer.Close()
	waitDone(t, done)
}

func TestConnectionCleanupErrorIsFatal(t *testing.T) {
	agent := newFakeAgent()
	agent.disconnectErr = errProtocolViolation("disconnect boom")
	peer, br, cc, done := startConnection(t, agent)

	readLine(t, br) // greeting

	peer.Close()
	waitDone(t, done)

	if cc.state != StateFatal {
		t.Fatalf("final state = %s, want FATAL", cc.state)
	}
	if cc.cleanupErr == nil {
		t.Fatal("expected cleanupErr to be recorded")
	}
}

func TestConnectionAgentConnectErrorTearsDownCleanly(t *testing.T) {
	agent := newFakeAgent()
	agent.connectErr = errProtocolViolation("connect boom")
	peer, _, cc, done := startConnection(t, agent)
	defer peer.Close()

	waitDone(t, done)

	if cc.state != StateDisconnected {
		t.Fatalf("final state = %s, want DISCONNECTED", cc.state)
	}
	if sends, disconnects := agent.calls(); sends != 0 || disconnects != 0 {
		t.Fatalf("expected no Send/Disconnect calls after a failed Connect, got sends=%d disconnects=%d", sends, disconnects)
	}
}

func TestConnectionSendErrorStillDisconnectsCleanly(t *testing.T) {
	agent := newFakeAgent()
	agent.sendErr = errProtocolViolation("send boom")
	peer, br, cc, done := startConnection(t, agent)
	defer peer.Close()

	readLine(t, br) // greeting

	if _, err := peer.Write([]byte("GETINFO version\n")); err != nil {
		t.Fatalf("write command: %v", err)
	}

	waitDone(t, done)
	if cc.state != StateDisconnected {
		t.Fatalf("final state = %s, want DISCONNECTED (clean cleanup despite agent error)", cc.state)
	}
	if _, disconnects := agent.calls(); disconnects != 1 {
		t.Fatalf("expected best-effort Disconnect even after a Send failure, got %d calls", disconnects)
	}
}
