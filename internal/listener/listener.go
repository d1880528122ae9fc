// Package listener owns the proxy's accept loop: it listens on the
// configured port, caps how many connections it accepts per tick so a
// connection storm cannot starve already-established clients, and hands
// each accepted socket to a worker chosen by client id modulo worker
// count (spec.md §4.6). Grounded on the accept-loop/dispatch shape of
// chuimengdaoxizhou-go-redis's tcp/server.go, generalized from "spawn a
// goroutine per connection" to "hand the connection to one of a fixed
// pool of workers", which is what spec.md's per-thread ownership model
// requires.
package listener

import (
	"errors"
	"net"
	"strconv"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/config"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/scheduler"
)

// acceptsPerTick caps how many pending connections a single Accept loop
// iteration drains before yielding, per spec.md §4.6 / config.MaxAcceptsPerTick.
const acceptsPerTick = config.MaxAcceptsPerTick

// Listener accepts client connections and dispatches them round-robin
// across a fixed worker pool.
type Listener struct {
	cfg     config.Config
	log     *logrus.Entry
	workers []*scheduler.Worker

	ln      net.Listener
	nextID  uint64
	closing int32
}

// New binds the configured port. It tries a dual-stack listener first
// and falls back to IPv4-only if the host has no IPv6 stack, matching
// spec.md §4.6's "dual-stack with graceful single-family fallback".
func New(cfg config.Config, workers []*scheduler.Worker, log *logrus.Entry) (*Listener, error) {
	addr := net.JoinHostPort("", strconv.Itoa(cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		ln, err = net.Listen("tcp4", addr)
		if err != nil {
			return nil, err
		}
	}
	return &Listener{cfg: cfg, log: log.WithField("component", "listener"), workers: workers, ln: ln}, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Serve runs the accept loop until Close is called. Each batch of up to
// acceptsPerTick connections is drained before Serve loops back to
// check for shutdown, so a connection storm never starves the check.
func (l *Listener) Serve() error {
	for {
		if atomic.LoadInt32(&l.closing) != 0 {
			return nil
		}
		for i := 0; i < acceptsPerTick; i++ {
			conn, err := l.ln.Accept()
			if err != nil {
				if atomic.LoadInt32(&l.closing) != 0 {
					return nil
				}
				if isTemporary(err) {
					break
				}
				return err
			}
			l.dispatch(conn)
		}
	}
}

// dispatch assigns the new connection a client id and hands it to the
// worker at id mod len(workers) (spec.md §4.6). Client ids start at 1:
// internal/scheduler's connKey reserves 0 for a shared, multiplexed
// upstream connection.
func (l *Listener) dispatch(conn net.Conn) {
	if len(l.workers) == 0 {
		_ = conn.Close()
		return
	}
	l.nextID++
	id := l.nextID
	w := l.workers[id%uint64(len(l.workers))]
	w.AcceptClient(id, conn)
}

// Close stops the accept loop and closes the listening socket. It does
// not touch already-accepted client connections; those belong to their
// worker until that worker is stopped.
func (l *Listener) Close() error {
	atomic.StoreInt32(&l.closing, 1)
	return l.ln.Close()
}

func isTemporary(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
