// Package listener provides the net.Listener wrappers used by the rankings API server:
// a listener that serves plain HTTP and TLS on the same port, and one that keeps
// accepting after transient errors.
package listener

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DefaultSniffTimeout bounds how long a client has to send its first bytes and finish
// the TLS handshake.
const DefaultSniffTimeout = 10 * time.Second

// peekedConn replays the sniffed bytes before reading from the connection.
type peekedConn struct {
	net.Conn
	reader io.Reader
}

func (c *peekedConn) Read(b []byte) (int, error) {
	return c.reader.Read(b)
}

// DualListener accepts plain and TLS connections on one port. Accept hands back every
// connection immediately; protocol detection happens on the connection's first Read or
// Write, so a client that never speaks only holds up its own serving goroutine.
type DualListener struct {
	net.Listener
	TLSConfig    *tls.Config
	SniffTimeout time.Duration
}

// NewDualListener wraps listener. A nil tlsConfig turns the wrapper into a pass-through.
func NewDualListener(listener net.Listener, tlsConfig *tls.Config) *DualListener {
	return &DualListener{
		Listener:     listener,
		TLSConfig:    tlsConfig,
		SniffTimeout: DefaultSniffTimeout,
	}
}

func (l *DualListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("accepting connection: %w", err)
	}
	if l.TLSConfig == nil {
		return conn, nil
	}
	timeout := l.SniffTimeout
	if timeout <= 0 {
		timeout = DefaultSniffTimeout
	}
	return &sniffConn{Conn: conn, tlsConfig: l.TLSConfig, timeout: timeout}, nil
}

// sniffConn decides between plain and TLS on first use. Until then, and whenever
// detection fails, I/O goes nowhere and returns the detection error.
// Deadlines set by the caller before detection are honoured during it and restored after.
type sniffConn struct {
	net.Conn
	tlsConfig *tls.Config
	timeout   time.Duration

	once   sync.Once
	active net.Conn
	err    error

	mu            sync.Mutex
	readDeadline  time.Time
	writeDeadline time.Time
}

func (c *sniffConn) Read(b []byte) (int, error) {
	if err := c.detect(); err != nil {
		return 0, err
	}
	return c.active.Read(b)
}

func (c *sniffConn) Write(b []byte) (int, error) {
	if err := c.detect(); err != nil {
		return 0, err
	}
	return c.active.Write(b)
}

func (c *sniffConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline, c.writeDeadline = t, t
	c.mu.Unlock()
	return c.Conn.SetDeadline(t)
}

func (c *sniffConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.readDeadline = t
	c.mu.Unlock()
	return c.Conn.SetReadDeadline(t)
}

func (c *sniffConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	c.writeDeadline = t
	c.mu.Unlock()
	return c.Conn.SetWriteDeadline(t)
}

// ConnectionState returns the negotiated TLS state, or false for plain connections and
// connections that have not been used yet.
func (c *sniffConn) ConnectionState() (tls.ConnectionState, bool) {
	if err := c.detect(); err != nil {
		return tls.ConnectionState{}, false
	}
	tlsConn, ok := c.active.(*tls.Conn)
	if !ok {
		return tls.ConnectionState{}, false
	}
	return tlsConn.ConnectionState(), true
}

func (c *sniffConn) detect() error {
	c.once.Do(func() {
		c.active, c.err = c.sniff()
		if c.err != nil {
			c.Conn.Close()
		}
	})
	return c.err
}

// bounded returns the earlier of the caller's deadline and the sniff deadline.
func (c *sniffConn) bounded(callerDeadline time.Time) time.Time {
	limit := time.Now().Add(c.timeout)
	if !callerDeadline.IsZero() && callerDeadline.Before(limit) {
		return callerDeadline
	}
	return limit
}

func (c *sniffConn) restoreDeadlines() error {
	c.mu.Lock()
	read, write := c.readDeadline, c.writeDeadline
	c.mu.Unlock()
	if err := c.Conn.SetReadDeadline(read); err != nil {
		return err
	}
	return c.Conn.SetWriteDeadline(write)
}

func (c *sniffConn) sniff() (net.Conn, error) {
	c.mu.Lock()
	readDeadline, writeDeadline := c.readDeadline, c.writeDeadline
	c.mu.Unlock()

	if err := c.Conn.SetReadDeadline(c.bounded(readDeadline)); err != nil {
		return nil, fmt.Errorf("setting read deadline for sniff: %w", err)
	}
	reader := bufio.NewReader(c.Conn)
	header, err := reader.Peek(5)
	if err != nil && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("sniffing initial bytes: %w", err)
	}
	replay := &peekedConn{Conn: c.Conn, reader: reader}

	if !isTLSHandshake(header) {
		if err := c.restoreDeadlines(); err != nil {
			return nil, fmt.Errorf("restoring deadlines after sniff: %w", err)
		}
		return replay, nil
	}

	if err := c.Conn.SetWriteDeadline(c.bounded(writeDeadline)); err != nil {
		return nil, fmt.Errorf("setting write deadline for handshake: %w", err)
	}
	tlsConn := tls.Server(replay, c.tlsConfig)
	if err := tlsConn.Handshake(); err != nil {
		return nil, fmt.Errorf("performing tls handshake: %w", err)
	}
	if err := c.restoreDeadlines(); err != nil {
		return nil, fmt.Errorf("restoring deadlines after handshake: %w", err)
	}
	return tlsConn, nil
}

// isTLSHandshake reports whether header starts a TLS handshake record (type 0x16, major version 3).
func isTLSHandshake(header []byte) bool {
	return len(header) >= 2 && header[0] == 0x16 && header[1] == 0x03
}

// ResilientListener keeps accepting after per-connection errors. Only a closed listener
// ends the accept loop, so a transient accept error never takes the server down.
type ResilientListener struct {
	net.Listener
	logger   *zap.Logger
	rejected atomic.Int64
}

// NewResilientListener wraps listener. A nil logger discards rejection logs.
func NewResilientListener(listener net.Listener, logger *zap.Logger) *ResilientListener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResilientListener{Listener: listener, logger: logger}
}

func (l *ResilientListener) Accept() (net.Conn, error) {
	for {
		conn, err := l.Listener.Accept()
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, err
		}
		l.rejected.Add(1)
		l.logger.Warn("connection rejected", zap.Error(err))
	}
}

// Rejected returns the number of connections dropped so far.
func (l *ResilientListener) Rejected() int64 {
	return l.rejected.Load()
}
