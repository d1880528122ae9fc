package scheduler

import (
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/yangbodong22011/redis-cluster-proxy/internal/cluster"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/config"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/proto"
	"github.com/yangbodong22011/redis-cluster-proxy/internal/upstream"
)

const readChunkSize = 16 * 1024

// Worker is one of the proxy's fixed pool of worker threads (spec.md
// §4.3/§5): a single goroutine that is the sole mutator of every piece
// of state reachable from it — its arena, its clients, its connections
// and their pending queues. Every other goroutine that touches a
// Worker's world (client/shard readers, the listener handing off a
// freshly accepted socket) does so only by posting a closure to
// mailbox, never by calling a Worker method directly. This is the Go
// reactor translation of the single aeEventLoop thread in
// _examples/original_source/src/proxy.c: one mutator, everyone else
// talks to it through a queue.
type Worker struct {
	id  int
	cfg config.Config
	log *logrus.Entry

	sharedSlotMap  *cluster.SlotMap
	sharedRegistry *upstream.Registry

	arena   *Arena
	clients map[uint64]*Client

	// sendQueue is the single per-worker FIFO of routed, not-yet-sent
	// request ids, spanning every client and every shard this worker
	// touches (spec.md §4.3: "requests_to_send ... across all shards and
	// all clients served by that thread").
	sendQueue *Queue

	sharedConns  map[connKey]*workerConn
	privateConns map[connKey]*workerConn

	mailbox chan func(*Worker)
	done    chan struct{}
}

// NewWorker builds a worker bound to the shared, process-wide cluster
// view. slotMap and registry are read-only from this point on; the
// bootstrap goroutine that built them must not mutate them again.
func NewWorker(id int, cfg config.Config, slotMap *cluster.SlotMap, registry *upstream.Registry, log *logrus.Entry) *Worker {
	return &Worker{
		id:             id,
		cfg:            cfg,
		log:            log.WithField("worker", id),
		sharedSlotMap:  slotMap,
		sharedRegistry: registry,
		arena:          NewArena(),
		clients:        make(map[uint64]*Client),
		sendQueue:      NewQueue(),
		sharedConns:    make(map[connKey]*workerConn),
		privateConns:   make(map[connKey]*workerConn),
		mailbox:        make(chan func(*Worker), 1024),
		done:           make(chan struct{}),
	}
}

// Start launches the worker's run loop goroutine.
func (w *Worker) Start() {
	go w.run()
}

// Stop ends the run loop. Client and upstream connections are neither
// closed nor drained; Stop is for process shutdown, not for quiescing
// traffic.
func (w *Worker) Stop() {
	close(w.done)
}

// Submit posts fn to be run on the worker goroutine. Safe to call from
// any goroutine.
func (w *Worker) Submit(fn func(*Worker)) {
	select {
	case w.mailbox <- fn:
	case <-w.done:
	}
}

func (w *Worker) run() {
	for {
		select {
		case fn := <-w.mailbox:
			fn(w)
		case <-w.done:
			return
		}
	}
}

// AcceptClient hands a freshly accepted client socket to this worker,
// called by the listener after it has chosen this worker by
// client_id mod worker_count (spec.md §4.6).
func (w *Worker) AcceptClient(id uint64, conn net.Conn) {
	w.Submit(func(w *Worker) { w.onAccept(id, conn) })
}

func (w *Worker) onAccept(id uint64, conn net.Conn) {
	c := newClient(id, conn.RemoteAddr().String(), conn)
	w.clients[id] = c
	if w.cfg.Multiplexing == config.MultiplexingAlways {
		w.switchToPrivate(c)
	}
	go w.clientReader(c)
}

// clientReader blocks on the client socket and forwards whatever it
// reads to the worker's mailbox; it never touches Worker or Client
// state directly.
func (w *Worker) clientReader(c *Client) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			id := c.ID
			w.Submit(func(w *Worker) { w.onClientData(id, data) })
		}
		if err != nil {
			id := c.ID
			w.Submit(func(w *Worker) { w.onClientClosed(id) })
			return
		}
	}
}

func (w *Worker) onClientClosed(clientID uint64) {
	c := w.clients[clientID]
	if c == nil {
		return
	}
	w.closeClient(c)
}

func (w *Worker) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true
	_ = c.conn.Close()
	delete(w.clients, c.ID)

	if req := w.arena.Get(c.parsingID); req != nil {
		w.unlinkAndFree(req)
	}
	c.parsingID = proto.NoID

	w.cancelQueued(c.ID)
	if c.IsPrivate() {
		w.teardownPrivateConns(c.ID)
	}
}

// cancelQueued drops every one of clientID's requests still sitting in
// sendQueue awaiting their first dispatch attempt. Queue.Remove/Each
// exist precisely so a disconnecting client's not-yet-sent requests can
// be cancelled immediately rather than waiting for their turn only to be
// discarded in pump() (spec.md §5); requests already sent on a shared
// connection are left alone, since removing one from the middle of a
// shared workerConn's pending queue would desync reply order for every
// other client still on it — those are freed as their replies arrive and
// find no client to deliver to (deliverReply).
func (w *Worker) cancelQueued(clientID uint64) {
	var stale []int
	w.sendQueue.Each(func(id int) bool {
		if req := w.arena.Get(id); req != nil && req.ClientID == clientID {
			stale = append(stale, id)
		}
		return true
	})
	for _, id := range stale {
		w.sendQueue.Remove(id)
		if req := w.arena.Get(id); req != nil {
			w.unlinkAndFree(req)
		}
	}
}

// teardownPrivateConns closes every private connection clientID owned
// and frees whatever was still waiting for a reply on them. Unlike a
// shared connection, a private one is never multiplexed across clients,
// so nothing else can be relying on its pending queue once the owning
// client is gone; leaving it open would leak the socket and its
// connReader goroutine forever.
func (w *Worker) teardownPrivateConns(clientID uint64) {
	for key, wc := range w.privateConns {
		if key.clientID != clientID {
			continue
		}
		delete(w.privateConns, key)
		wc.uc.Close()
		for {
			id, ok := wc.pending.PopFront()
			if !ok {
				break
			}
			if req := w.arena.Get(id); req != nil {
				w.unlinkAndFree(req)
			}
		}
	}
}

func (w *Worker) onClientData(clientID uint64, data []byte) {
	c := w.clients[clientID]
	if c == nil || c.closed {
		return
	}
	if c.parsingID == proto.NoID {
		req := w.arena.New(clientID)
		c.parsingID = req.ID
	}
	if w.cfg.DumpBuffer {
		w.log.WithField("client", clientID).Debugf("client buffer: %q", data)
	}
	req := w.arena.Get(c.parsingID)
	req.Raw = append(req.Raw, data...)
	w.drainParsed(c, req)
	w.pump()
}

// drainParsed repeatedly parses c's current request, reacting to each
// outcome and, on a pipeline split, continuing on into the successor
// request exactly as spec.md §4.1 describes, until it hits an
// incomplete command (wait for more bytes) or a protocol error (close
// the connection).
func (w *Worker) drainParsed(c *Client, req *proto.Request) {
	for {
		req.ResetArgs()
		tail := proto.Parse(req)
		switch req.State {
		case proto.StateIncomplete:
			return
		case proto.StateError:
			c.outbox = append(c.outbox, []byte("-ERR Protocol error\r\n")...)
			w.unlinkAndFree(req)
			c.parsingID = proto.NoID
			w.flushClient(c)
			w.closeClient(c)
			return
		case proto.StateOK:
			nextID := proto.NoID
			if tail != nil {
				next := w.arena.New(c.ID)
				next.Raw = tail
				next.Prev = req.ID
				req.Next = next.ID
				nextID = next.ID
			}
			w.onRequestParsed(c, req)
			if nextID == proto.NoID {
				c.parsingID = proto.NoID
				return
			}
			c.parsingID = nextID
			req = w.arena.Get(nextID)
		default:
			return
		}
	}
}

// onRequestParsed routes a fully parsed request and either answers it
// immediately (unknown/unsupported/cross-slot commands never reach a
// shard) or queues it for dispatch (spec.md §4.2, §4.3).
func (w *Worker) onRequestParsed(c *Client, req *proto.Request) {
	if w.cfg.DumpQueries {
		w.log.WithField("client", c.ID).Debugf("query: %q", req.Raw)
	}
	c.pendingReplies++
	if c.pendingReplies > w.cfg.MaxPendingPerConn {
		w.replyAndFree(c, req, "-ERR too many pending requests for this connection\r\n")
		return
	}

	routeRequest(req, w.slotMapFor(c))
	switch {
	case req.UnknownCmd, req.Unsupported:
		w.replyAndFree(c, req, fmt.Sprintf("-ERR Unsupported command: '%s'\r\n", string(req.CmdName)))
	case req.CrossSlotErr:
		w.replyAndFree(c, req, "-ERR Queries with keys belonging to different nodes are not supported\r\n")
	case req.NodeName == "":
		w.replyAndFree(c, req, "-ERR Could not find node for request's key\r\n")
	default:
		w.sendQueue.PushBack(req.ID)
		w.maybeSwitchToPrivate(c)
	}
}

func (w *Worker) slotMapFor(c *Client) *cluster.SlotMap {
	if c.IsPrivate() {
		return c.Private.SlotMap
	}
	return w.sharedSlotMap
}

// replyAndFree answers req immediately (no shard round trip) and
// retires it.
func (w *Worker) replyAndFree(c *Client, req *proto.Request, msg string) {
	c.outbox = append(c.outbox, []byte(msg)...)
	c.pendingReplies--
	w.unlinkAndFree(req)
	w.flushClient(c)
}

// unlinkAndFree detaches req from its pipeline neighbours before
// returning its slot to the arena, so no other Request is ever left
// holding a Prev/Next id that has been recycled for something else
// (spec.md §9 design notes).
func (w *Worker) unlinkAndFree(req *proto.Request) {
	if prev := w.arena.Get(req.Prev); prev != nil {
		prev.Next = proto.NoID
	}
	if next := w.arena.Get(req.Next); next != nil {
		next.Prev = proto.NoID
	}
	w.arena.Free(req.ID)
}

func (w *Worker) flushClient(c *Client) {
	if len(c.outbox) == 0 {
		return
	}
	n, err := c.conn.Write(c.outbox)
	if err != nil {
		w.closeClient(c)
		return
	}
	if n >= len(c.outbox) {
		c.outbox = c.outbox[:0]
	} else {
		c.outbox = c.outbox[n:]
	}
}

// pump tries to send every request currently at the front of sendQueue,
// in order, stopping the first time a request cannot be dispatched yet
// (spec.md §4.3 dispatch rules). Go's net.Conn.Write blocks until the
// whole write succeeds or the connection errors, which collapses the
// original's write-handler/partial-write bookkeeping into a single
// synchronous call per request; HasWriteHandler/HasReadHandler are kept
// only as a record of "already sent, awaiting reply" for diagnostics.
func (w *Worker) pump() {
	for {
		id, ok := w.sendQueue.Front()
		if !ok {
			return
		}
		req := w.arena.Get(id)
		if req == nil {
			w.sendQueue.PopFront()
			continue
		}
		c := w.clients[req.ClientID]
		if c == nil || c.closed {
			w.sendQueue.PopFront()
			w.unlinkAndFree(req)
			continue
		}

		wc, err := w.ensureConn(req.ClientID, req.NodeName, c.IsPrivate())
		if err != nil {
			w.sendQueue.PopFront()
			w.replyAndFree(c, req, fmt.Sprintf("-ERR Could not connect to node: %v\r\n", err))
			continue
		}

		if _, werr := wc.uc.Write(req.Raw); werr != nil {
			w.sendQueue.PopFront()
			key := wc.key
			w.failConn(key, werr)
			w.replyAndFree(c, req, "-ERR Failed to write to cluster node\r\n")
			continue
		}

		w.sendQueue.PopFront()
		req.HasWriteHandler = true
		req.HasReadHandler = true
		wc.pending.PushBack(id)
	}
}

// ensureConn returns the live connection this request should be sent
// on, dialing it (and starting its reader goroutine) on first use.
func (w *Worker) ensureConn(clientID uint64, nodeName string, private bool) (*workerConn, error) {
	key := connKey{node: nodeName}
	conns := w.sharedConns
	var pool *upstream.Pool
	if private {
		key.clientID = clientID
		conns = w.privateConns
		c := w.clients[clientID]
		if c == nil || c.Private == nil {
			return nil, fmt.Errorf("scheduler: client %d has no private connection set", clientID)
		}
		pool = c.Private.Registry.Pool(nodeName)
	} else {
		pool = w.sharedRegistry.Pool(nodeName)
	}
	if pool == nil {
		return nil, fmt.Errorf("scheduler: unknown shard %q", nodeName)
	}
	if err := pool.Ensure(w.id, w.cfg.TCPKeepAlive, w.cfg.Auth); err != nil {
		return nil, err
	}

	wc, ok := conns[key]
	if !ok {
		wc = &workerConn{key: key, uc: pool.Conn(w.id), pending: NewQueue()}
		conns[key] = wc
	}
	if !wc.readerStarted {
		wc.readerStarted = true
		go w.connReader(wc)
	}
	return wc, nil
}

// connReader blocks on one upstream socket and forwards raw bytes (or
// its terminal error) to the worker's mailbox, mirroring clientReader.
func (w *Worker) connReader(wc *workerConn) {
	buf := make([]byte, readChunkSize)
	for {
		n, err := wc.uc.ReadRaw(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			key := wc.key
			w.Submit(func(w *Worker) { w.onReplyData(key, data) })
		}
		if err != nil {
			key := wc.key
			w.Submit(func(w *Worker) { w.failConn(key, err) })
			return
		}
	}
}

func (w *Worker) connsFor(key connKey) map[connKey]*workerConn {
	if key.clientID == 0 {
		return w.sharedConns
	}
	return w.privateConns
}

func (w *Worker) onReplyData(key connKey, data []byte) {
	conns := w.connsFor(key)
	wc, ok := conns[key]
	if !ok {
		return // connection already torn down; drop stale bytes
	}
	wc.uc.Reader.Append(data)
	for {
		reply, ok, err := wc.uc.Reader.Next()
		if err != nil {
			w.failConn(key, err)
			return
		}
		if !ok {
			break
		}
		id, hasPending := wc.pending.PopFront()
		if !hasPending {
			continue
		}
		w.deliverReply(id, reply)
	}
	wc.uc.Reader.Compact()
}

func (w *Worker) deliverReply(id int, reply []byte) {
	req := w.arena.Get(id)
	if req == nil {
		return
	}
	c := w.clients[req.ClientID]
	if c != nil {
		c.outbox = append(c.outbox, reply...)
		c.pendingReplies--
	}
	w.unlinkAndFree(req)
	if c != nil {
		w.flushClient(c)
	}
}

// failConn tears down a connection after an IO/EOF error. The oldest
// request still awaiting a reply on it — the one actually "in flight"
// per spec.md §4.3 — gets exactly one retry on a freshly dialed
// connection (SPEC_FULL.md §14 item 1); every other queued request, and
// the retry itself if it also fails, is answered with an explicit
// disconnect error instead of being left to hang silently. The
// connection is then forgotten entirely.
func (w *Worker) failConn(key connKey, err error) {
	conns := w.connsFor(key)
	wc, ok := conns[key]
	if !ok {
		return
	}
	delete(conns, key)
	wc.uc.Close()
	w.log.WithError(err).WithField("node", key.node).Warn("upstream connection lost, draining pending requests")

	if headID, ok := wc.pending.PopFront(); ok {
		if !w.retryHead(key, headID) {
			w.deliverReply(headID, []byte("-ERR Cluster node disconnected\r\n"))
		}
	}
	for {
		id, ok := wc.pending.PopFront()
		if !ok {
			break
		}
		w.deliverReply(id, []byte("-ERR Cluster node disconnected\r\n"))
	}
}

// retryHead attempts the one allowed resend of the request that was in
// flight when its connection died, over a freshly dialed replacement
// connection, and reports whether the retry was dispatched. The caller
// answers the request with a disconnect error when this returns false.
func (w *Worker) retryHead(key connKey, id int) bool {
	req := w.arena.Get(id)
	if req == nil || req.Retried {
		return false
	}
	req.Retried = true

	c := w.clients[req.ClientID]
	if c == nil || c.closed {
		return false
	}
	wc, err := w.ensureConn(req.ClientID, key.node, c.IsPrivate())
	if err != nil {
		return false
	}
	if _, werr := wc.uc.Write(req.Raw); werr != nil {
		return false
	}
	wc.pending.PushBack(id)
	return true
}
