package reactor

import (
	"sync"

	"github.com/fagongzi/goetty/v2"
	goqueue "github.com/yireyun/go-queue"

	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/vmctx"
	"github.com/rayforcedb/rayforce/pkg/wire"
)

// txQueueCapacity bounds the per-connection pending-send FIFO (spec §4.9:
// "tx: ... a bounded FIFO of pending messages").
const txQueueCapacity = 256

// syncWaitTimeout is send_sync's busy-receive inactivity timeout (spec
// §4.9 and §5).
const syncWaitTimeout = 30

// pendingFrame is one fully-framed outbound message awaiting a socket
// write, tagged with its msg type per spec §4.9.
type pendingFrame struct {
	msgType wire.MsgType
	framed  []byte
}

// rxAssembly accumulates bytes for the frame currently being read: header
// first, then exactly header.PayloadSize more bytes.
type rxAssembly struct {
	buf []byte
}

func (a *rxAssembly) append(b []byte) { a.buf = append(a.buf, b...) }

// Conn is the per-connection "selector" state spec §4.9 describes.
type Conn struct {
	ID      int64
	Session goetty.IOSession
	State   ConnState

	// Ctx is this connection's own VM context: its query-context stack
	// and error record must not be shared across connections, since each
	// runs its Handler calls on its own goroutine (spec §6's "mixed
	// SYNC/ASYNC traffic" from concurrently connected peers) and
	// vmctx.Context's stack push/pop is not synchronized for concurrent
	// callers.
	Ctx *vmctx.Context

	HandshakeCompleted bool
	PeerVersion        byte

	rx rxAssembly

	txQueue *goqueue.EsQueue

	mu       sync.Mutex
	syncWait chan *syncResult // non-nil while a SendSync call is waiting on this connection
}

type syncResult struct {
	err error
	// value is carried as already-decoded bytes' owner (pkg/wire.DecodeFrame's
	// result); kept as `any` here so this file doesn't need to import
	// pkg/value just to name the type.
	value any
}

func newConn(session goetty.IOSession, h *heap.Heap) *Conn {
	return &Conn{
		Session: session,
		State:   StateAwaitHandshake,
		Ctx:     vmctx.New(h),
		txQueue: goqueue.NewQueue(txQueueCapacity),
	}
}

// Enqueue appends a fully-framed outbound message to the tx FIFO,
// reporting false if the bounded queue is full (spec §4.9's FIFO is
// bounded, not growable).
func (c *Conn) Enqueue(msgType wire.MsgType, framed []byte) bool {
	ok, _ := c.txQueue.Put(&pendingFrame{msgType: msgType, framed: framed})
	return ok
}

// dequeue pops the next pending frame, or nil if the FIFO is empty.
func (c *Conn) dequeue() *pendingFrame {
	v, ok, _ := c.txQueue.Get()
	if !ok {
		return nil
	}
	return v.(*pendingFrame)
}

// armSyncWait installs a fresh wait channel for an in-flight SendSync
// call and returns it; only one SendSync may be outstanding per
// connection at a time, matching spec §4.9's single busy-receive loop.
func (c *Conn) armSyncWait() chan *syncResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan *syncResult, 1)
	c.syncWait = ch
	return ch
}

func (c *Conn) disarmSyncWait() {
	c.mu.Lock()
	c.syncWait = nil
	c.mu.Unlock()
}

// deliverResp routes a RESP frame's payload to the waiting SendSync call,
// reporting whether one was waiting.
func (c *Conn) deliverResp(v any) bool {
	c.mu.Lock()
	ch := c.syncWait
	c.mu.Unlock()
	if ch == nil {
		return false
	}
	ch <- &syncResult{value: v}
	return true
}
