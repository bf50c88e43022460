package testutil

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// ConsoleClient is a line-oriented TCP client for driving the admin console in tests.
type ConsoleClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

// DialConsole connects to addr, failing the test on error. The connection is closed by t.Cleanup.
func DialConsole(t *testing.T, addr string) *ConsoleClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &ConsoleClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

// Expect reads until substr has been seen or timeout elapses and returns everything read.
// Telnet negotiation bytes are passed through untouched.
func (c *ConsoleClient) Expect(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	var buf strings.Builder
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			c.t.Fatalf("waiting for %q: got %q: %v", substr, buf.String(), err)
		}
		buf.WriteByte(b)
		if strings.Contains(buf.String(), substr) {
			return buf.String()
		}
	}
}

// Send writes text followed by CRLF.
func (c *ConsoleClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", text); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Close closes the connection early.
func (c *ConsoleClient) Close() {
	_ = c.conn.Close()
}
