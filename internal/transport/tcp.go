package transport

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// MaxLineLength bounds one protocol line, terminator included.
const MaxLineLength = 1024

// livenessWait is how long CheckAlive waits for the socket to report EOF.
const livenessWait = time.Millisecond

var ErrLineTooLong = errors.New("line exceeds maximum length")

// TCPConn is a newline-delimited text connection over a net.Conn.
type TCPConn struct {
	conn         net.Conn
	writeTimeout time.Duration

	readMu sync.Mutex
	reader *bufio.Reader

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// NewTCPConn wraps conn. A positive writeTimeout bounds every WriteLine.
func NewTCPConn(conn net.Conn, writeTimeout time.Duration) *TCPConn {
	return &TCPConn{
		conn:         conn,
		reader:       bufio.NewReaderSize(conn, MaxLineLength),
		writeTimeout: writeTimeout,
	}
}

// ReadLine returns the next line without its terminator. A final line that
// ends at EOF without a newline is still returned. A line longer than
// MaxLineLength fails with ErrLineTooLong and the connection should be dropped.
func (c *TCPConn) ReadLine() (string, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	data, err := c.reader.ReadSlice('\n')
	line := strings.TrimRight(string(data), "\r\n")
	switch {
	case err == nil:
		return line, nil
	case errors.Is(err, bufio.ErrBufferFull):
		return "", ErrLineTooLong
	case errors.Is(err, io.EOF) && len(data) > 0:
		return line, nil
	default:
		return "", err
	}
}

// CheckAlive reports io.EOF (or another read error) when the peer has gone away.
// Pending input stays buffered for the next ReadLine. While a ReadLine is in
// progress the peer is assumed present.
func (c *TCPConn) CheckAlive() error {
	if !c.readMu.TryLock() {
		return nil
	}
	defer c.readMu.Unlock()

	if c.reader.Buffered() > 0 {
		return nil
	}
	if err := c.conn.SetReadDeadline(time.Now().Add(livenessWait)); err != nil {
		return err
	}
	_, err := c.reader.Peek(1)
	if resetErr := c.conn.SetReadDeadline(time.Time{}); resetErr != nil && err == nil {
		return resetErr
	}

	var ne net.Error
	if err == nil || (errors.As(err, &ne) && ne.Timeout()) {
		return nil
	}
	return err
}

func (c *TCPConn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

// Close closes the socket once, which also fails any pending ReadLine.
func (c *TCPConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *TCPConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
