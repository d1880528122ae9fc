package upstream

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/cluster"
)

// Conn is one (worker, shard) socket: a lazily-established net.Conn plus
// the reply reader the scheduler drains on readability. Reader and the
// rest of Conn's bookkeeping are only ever touched by the owning worker
// goroutine (spec.md §5); the raw socket itself is also read by a
// dedicated per-connection reader goroutine (internal/scheduler's
// connReader), so netConn is guarded by netMu to make Close safe to call
// from the worker while that goroutine may be blocked in ReadRaw.
type Conn struct {
	Node   *cluster.Node
	Reader ReplyReader

	netMu   sync.Mutex
	netConn net.Conn
}

// IsAlive reports whether the socket has been established. A Conn that
// was never dialed, or was torn down after an IO error, is not alive.
func (c *Conn) IsAlive() bool {
	c.netMu.Lock()
	defer c.netMu.Unlock()
	return c.netConn != nil
}

// Dial establishes the TCP connection, sets the keepalive interval
// (spec.md §4.5: "TCP keepalive set to 15s"), and runs the AUTH
// handshake if a password is configured. On any failure the Conn is
// left not-alive and an error is returned.
func (c *Conn) Dial(addr string, keepalive time.Duration, auth string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("upstream: dial %s: %w", addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetKeepAlive(true)
		_ = tcp.SetKeepAlivePeriod(keepalive)
	}
	c.netMu.Lock()
	c.netConn = conn
	c.netMu.Unlock()
	c.Reader = ReplyReader{}

	if auth != "" {
		if err := c.authenticate(auth); err != nil {
			_ = conn.Close()
			c.netMu.Lock()
			c.netConn = nil
			c.netMu.Unlock()
			return err
		}
	}
	return nil
}

// authenticate sends "AUTH <password>" synchronously as the connection's
// first request, per spec.md §4.5; any non-+OK reply is a connection
// failure. This is the one place a worker blocks on upstream I/O outside
// the event loop, bounded by a 5-second read deadline set here.
func (c *Conn) authenticate(password string) error {
	cmd := fmt.Sprintf("*2\r\n$4\r\nAUTH\r\n$%d\r\n%s\r\n", len(password), password)
	if _, err := c.netConn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("upstream: AUTH write: %w", err)
	}
	buf := make([]byte, 512)
	deadline := time.Now().Add(5 * time.Second)
	_ = c.netConn.SetReadDeadline(deadline)
	defer c.netConn.SetReadDeadline(time.Time{})
	for {
		n, err := c.netConn.Read(buf)
		if err != nil {
			return fmt.Errorf("upstream: AUTH read: %w", err)
		}
		c.Reader.Append(buf[:n])
		reply, ok, err := c.Reader.Next()
		if err != nil {
			return fmt.Errorf("upstream: AUTH reply: %w", err)
		}
		if !ok {
			continue
		}
		c.Reader.Compact()
		if len(reply) == 0 || reply[0] != '+' {
			return fmt.Errorf("upstream: AUTH failed: %s", trimCRLF(reply))
		}
		return nil
	}
}

// Write writes raw to the socket, returning the number of bytes
// actually written (which may be less than requested on a non-blocking
// partial write in a real reactor; here net.Conn.Write already loops
// until done or error, matching a synchronous "as many bytes as the
// socket accepts" semantics for the scheduler's write-cursor bookkeeping).
func (c *Conn) Write(raw []byte) (int, error) {
	conn := c.currentConn()
	if conn == nil {
		return 0, fmt.Errorf("upstream: write on closed connection")
	}
	return conn.Write(raw)
}

// Read reads available bytes into the reply reader's buffer.
func (c *Conn) Read() error {
	conn := c.currentConn()
	if conn == nil {
		return fmt.Errorf("upstream: read on closed connection")
	}
	buf := make([]byte, 16*1024)
	n, err := conn.Read(buf)
	if n > 0 {
		c.Reader.Append(buf[:n])
	}
	if err != nil {
		return err
	}
	return nil
}

// ReadRaw reads directly off the socket into buf without touching
// Reader, so a dedicated reader goroutine can block in this call while
// the owning worker goroutine is the only one to ever append to or
// parse the Reader buffer (internal/scheduler's single-mutator rule).
// It takes a snapshot of the socket under netMu rather than holding the
// lock for the (possibly long) blocking read itself, so Close can run
// concurrently and unblock it.
func (c *Conn) ReadRaw(buf []byte) (int, error) {
	conn := c.currentConn()
	if conn == nil {
		return 0, fmt.Errorf("upstream: read on closed connection")
	}
	return conn.Read(buf)
}

func (c *Conn) currentConn() net.Conn {
	c.netMu.Lock()
	defer c.netMu.Unlock()
	return c.netConn
}

// Close tears down the socket; the Conn can be Dial'd again afterwards
// (the reconnect-once path in internal/scheduler does exactly that).
// Safe to call concurrently with a reader goroutine blocked in ReadRaw:
// closing the underlying socket unblocks its Read with an error.
func (c *Conn) Close() {
	c.netMu.Lock()
	conn := c.netConn
	c.netConn = nil
	c.netMu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func trimCRLF(b []byte) string {
	for len(b) > 0 && (b[len(b)-1] == '\r' || b[len(b)-1] == '\n') {
		b = b[:len(b)-1]
	}
	return string(b)
}
