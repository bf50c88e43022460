package telnet

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// Telnet command bytes (RFC 854) the console recognises.
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	SE   byte = 240

	OptSuppressGoAhead byte = 3
)

// MaxLineLength bounds one console input line.
const MaxLineLength = 1024

// ErrLineTooLong is returned by ReadLine when a line exceeds MaxLineLength.
var ErrLineTooLong = errors.New("telnet: input line too long")

// iacState is the position of the negotiation filter within a command sequence.
type iacState uint8

const (
	stateData iacState = iota
	stateIAC           // saw IAC
	stateOption        // saw IAC WILL/WONT/DO/DONT, expecting the option byte
	stateSub           // inside IAC SB ... IAC SE
	stateSubIAC        // saw IAC inside a sub-negotiation
)

// iacFilter strips Telnet command sequences from a byte stream one byte at a time.
type iacFilter struct {
	state iacState
}

// feed consumes b and reports the data byte it yields, if any.
func (f *iacFilter) feed(b byte) (byte, bool) {
	switch f.state {
	case stateIAC:
		switch b {
		case IAC:
			f.state = stateData
			return IAC, true
		case WILL, WONT, DO, DONT:
			f.state = stateOption
		case SB:
			f.state = stateSub
		default:
			f.state = stateData
		}
		return 0, false
	case stateOption:
		f.state = stateData
		return 0, false
	case stateSub:
		if b == IAC {
			f.state = stateSubIAC
		}
		return 0, false
	case stateSubIAC:
		if b == SE {
			f.state = stateData
		} else {
			f.state = stateSub
		}
		return 0, false
	default:
		if b == IAC {
			f.state = stateIAC
			return 0, false
		}
		return b, true
	}
}

// FilterIAC returns input with every Telnet command sequence removed.
// An escaped IAC IAC yields one literal 0xFF.
func FilterIAC(input []byte) []byte {
	var f iacFilter
	out := make([]byte, 0, len(input))
	for _, b := range input {
		if d, ok := f.feed(b); ok {
			out = append(out, d)
		}
	}
	return out
}

// Conn is one console client connection. Writes are serialised so the session loop
// and an event watcher goroutine may both write.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader
	filter iacFilter

	mu           sync.Mutex
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps raw. A zero timeout disables the corresponding deadline.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Negotiate announces IAC WILL SUPPRESS-GO-AHEAD so clients do not wait for GA.
func (c *Conn) Negotiate() error {
	return c.Write([]byte{IAC, WILL, OptSuppressGoAhead})
}

// ReadLine returns the next input line without its terminator. CR, LF and CRLF all end
// a line; negotiation sequences and control bytes other than tab are dropped.
//
// Postcondition: on ErrLineTooLong the rest of the line has been discarded.
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	line := make([]byte, 0, 64)
	overflow := false
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return string(line), err
		}
		d, ok := c.filter.feed(b)
		if !ok {
			continue
		}
		switch {
		case d == '\n':
		case d == '\r':
			if next, err := c.reader.Peek(1); err == nil && next[0] == '\n' {
				_, _ = c.reader.ReadByte()
			}
		case d < 32 && d != '\t', d == 127:
			continue
		default:
			if len(line) >= MaxLineLength {
				overflow = true
				continue
			}
			line = append(line, d)
			continue
		}
		if overflow {
			return "", ErrLineTooLong
		}
		return string(line), nil
	}
}

// Write sends data verbatim.
func (c *Conn) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.raw.Write(data)
	return err
}

// WriteLine sends text followed by CRLF.
func (c *Conn) WriteLine(text string) error {
	return c.Write([]byte(text + "\r\n"))
}

// Writef formats and sends one line.
func (c *Conn) Writef(format string, args ...any) error {
	return c.WriteLine(fmt.Sprintf(format, args...))
}

// WritePrompt sends prompt with no line terminator.
func (c *Conn) WritePrompt(prompt string) error {
	return c.Write([]byte(prompt))
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the client's address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}
