package telnet

import (
	"bufio"
	"context"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/S3OPS/ACOTAR-sub002/internal/config"
)

// echoHandler echoes each line until "quit" or the context ends.
type echoHandler struct {
	sessions atomic.Int32
}

func (h *echoHandler) HandleSession(ctx context.Context, conn *Conn) error {
	h.sessions.Add(1)
	for {
		line, err := conn.ReadLine()
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if line == "quit" {
			return conn.WriteLine("bye")
		}
		if err := conn.WriteLine("echo: " + line); err != nil {
			return err
		}
	}
}

func startAcceptor(t *testing.T, h SessionHandler) (*Acceptor, <-chan error) {
	t.Helper()
	cfg := config.ConsoleConfig{Host: "127.0.0.1", Port: 0, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}
	acc := NewAcceptor(cfg, h, zaptest.NewLogger(t))
	require.NoError(t, acc.Listen())
	require.NotEmpty(t, acc.Addr())
	errCh := make(chan error, 1)
	go func() { errCh <- acc.ListenAndServe() }()
	t.Cleanup(acc.Stop)
	return acc, errCh
}

func dial(t *testing.T, addr string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
	r := bufio.NewReader(conn)
	neg := make([]byte, 3)
	_, err = io.ReadFull(r, neg)
	require.NoError(t, err)
	require.Equal(t, []byte{IAC, WILL, OptSuppressGoAhead}, neg)
	return conn, r
}

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\r\n")
}

func TestAcceptor_EchoAndQuit(t *testing.T) {
	h := &echoHandler{}
	acc, errCh := startAcceptor(t, h)

	conn, r := dial(t, acc.Addr())
	_, err := conn.Write([]byte("hello\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", readLine(t, r))

	_, err = conn.Write([]byte("quit\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "bye", readLine(t, r))

	acc.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("acceptor did not stop")
	}
	assert.Equal(t, int32(1), h.sessions.Load())
}

func TestAcceptor_StopClosesIdleSessions(t *testing.T) {
	h := &echoHandler{}
	acc, errCh := startAcceptor(t, h)

	const clients = 3
	for i := 0; i < clients; i++ {
		dial(t, acc.Addr())
	}
	require.Eventually(t, func() bool { return acc.ActiveSessions() == clients }, 2*time.Second, 10*time.Millisecond)

	done := make(chan struct{})
	go func() {
		acc.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop blocked on idle sessions")
	}
	assert.NoError(t, <-errCh)
	assert.Equal(t, 0, acc.ActiveSessions())
	assert.Equal(t, int32(clients), h.sessions.Load())
}

func TestAcceptor_StopIsIdempotent(t *testing.T) {
	acc, _ := startAcceptor(t, &echoHandler{})
	acc.Stop()
	acc.Stop()
	assert.Error(t, acc.Listen())
}

func TestAcceptor_ListenFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	port := ln.Addr().(*net.TCPAddr).Port

	acc := NewAcceptor(config.ConsoleConfig{Host: "127.0.0.1", Port: port}, &echoHandler{}, zaptest.NewLogger(t))
	assert.Error(t, acc.ListenAndServe())
}
