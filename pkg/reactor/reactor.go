package reactor

import (
	"sync"

	"github.com/fagongzi/goetty/v2"
	"go.uber.org/zap"

	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/heap"
	"github.com/rayforcedb/rayforce/pkg/symtab"
	"github.com/rayforcedb/rayforce/pkg/value"
	"github.com/rayforcedb/rayforce/pkg/vmctx"
	"github.com/rayforcedb/rayforce/pkg/wire"
)

// ProtocolMajor/ProtocolMinor are encoded into the handshake byte as
// (MAJOR<<3)|MINOR, per spec §6.
const (
	ProtocolMajor = 1
	ProtocolMinor = 0
)

// Eval resolves an evaluated frame's value tree, the same shape
// pkg/query.Evaluator uses; the reactor takes it as a dependency so it
// never needs to import pkg/vm directly (cmd/rayforced wires the two
// together, same reasoning as pkg/query.Evaluator).
type Eval func(ctx *vmctx.Context, expr *value.Value) (*value.Value, error)

// OpenHook and CloseHook are the user callbacks spec §4.9 names .z.po
// and .z.pc.
type OpenHook func(id int64)
type CloseHook func(id int64)

// Option configures a Reactor at construction.
type Option func(*Reactor)

func WithOpenHook(h OpenHook) Option   { return func(r *Reactor) { r.openHook = h } }
func WithCloseHook(h CloseHook) Option { return func(r *Reactor) { r.closeHook = h } }
func WithReactorLogger(l *zap.Logger) Option {
	return func(r *Reactor) { r.logger = l }
}

// Reactor is the connection/dispatch layer of spec §4.9. It is built to
// serve as goetty's session callback set (Created/Closed/Handler), the
// same triple pkg/frontend.RoutineManager implements for the MySQL
// protocol, adapted to RayforceDB's own handshake and frame shape.
type Reactor struct {
	heap *heap.Heap
	syms *symtab.Table
	eval Eval

	registry *Registry
	timers   *TimerQueue

	openHook  OpenHook
	closeHook CloseHook
	logger    *zap.Logger

	mu       sync.Mutex
	sessions map[goetty.IOSession]*Conn
}

// New creates a Reactor bound to h (the main thread's heap, since the
// reactor loop is single-threaded per spec §5) and syms (for wire's
// SYMBOL atom round trip).
func New(h *heap.Heap, syms *symtab.Table, eval Eval, opts ...Option) *Reactor {
	r := &Reactor{
		heap:     h,
		syms:     syms,
		eval:     eval,
		registry: NewRegistry(),
		timers:   NewTimerQueue(),
		logger:   zap.NewNop(),
		sessions: make(map[goetty.IOSession]*Conn),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reactor) Registry() *Registry { return r.registry }
func (r *Reactor) Timers() *TimerQueue { return r.timers }

// Created registers a newly accepted session in AWAIT_HANDSHAKE, per
// spec §4.9's state machine (CLOSED -> AWAIT_HANDSHAKE on accept).
func (r *Reactor) Created(rs goetty.IOSession) {
	conn := newConn(rs, r.heap)
	r.registry.Register(conn)

	r.mu.Lock()
	r.sessions[rs] = conn
	r.mu.Unlock()
}

// Closed fires the close hook (if the connection had completed its
// handshake) and returns the connection's id to the registry.
func (r *Reactor) Closed(rs goetty.IOSession) {
	r.mu.Lock()
	conn, ok := r.sessions[rs]
	delete(r.sessions, rs)
	r.mu.Unlock()
	if !ok {
		return
	}

	conn.deliverResp(nil) // wake any blocked SendSync with a closed connection

	if conn.HandshakeCompleted && r.closeHook != nil {
		r.closeHook(conn.ID)
	}
	conn.State = StateClosed
	r.registry.Unregister(conn.ID)
}

// Handler dispatches one arrival of bytes from rs, per spec §4.9's
// READY-state pseudocode (or the handshake exchange while still in
// AWAIT_HANDSHAKE). msg is the raw bytes goetty handed back from a
// byte-passthrough session codec.
func (r *Reactor) Handler(rs goetty.IOSession, msg interface{}, received uint64) error {
	r.mu.Lock()
	conn, ok := r.sessions[rs]
	r.mu.Unlock()
	if !ok {
		return rayerr.OS(errUnknownSession)
	}

	data, ok := msg.([]byte)
	if !ok {
		return rayerr.Type("[]byte", "?", 0, "reactor handler")
	}
	conn.rx.append(data)

	if !conn.HandshakeCompleted {
		if !r.tryHandshake(conn) {
			return nil // still waiting for the terminating NUL
		}
	}

	return r.drainFrames(conn)
}

// scanHandshake looks for the handshake's terminating NUL byte (spec §6:
// "peer byte before NUL is peer version"; an optional "username:password"
// prefix may precede it, spec §6 only fixes the version byte's position
// relative to the NUL). Returns found=false if buf doesn't yet hold a
// complete handshake.
func scanHandshake(buf []byte) (peerVersion byte, rest []byte, found bool) {
	nul := indexNUL(buf)
	if nul < 0 {
		return 0, buf, false
	}
	if nul == 0 {
		return scanHandshake(buf[1:])
	}
	return buf[nul-1], buf[nul+1:], true
}

// tryHandshake drives scanHandshake against conn's buffered bytes,
// completing the READY transition and firing the open hook on success.
func (r *Reactor) tryHandshake(conn *Conn) bool {
	peerVersion, rest, found := scanHandshake(conn.rx.buf)
	if !found {
		return false
	}
	conn.PeerVersion = peerVersion
	conn.rx.buf = rest
	conn.HandshakeCompleted = true
	conn.State = StateReady

	local := byte((ProtocolMajor << 3) | ProtocolMinor)
	_ = conn.Session.Write([]byte{local, 0}, goetty.WriteOptions{Flush: true})

	if r.openHook != nil {
		r.openHook(conn.ID)
	}
	return true
}

// extractFrame decodes one complete frame from the front of buf, per
// spec §4.9's "read header (16 bytes), read body (header.size bytes)".
// ok is false (with a nil error) when buf doesn't yet hold a full frame.
func extractFrame(h *heap.Heap, buf []byte, syms *symtab.Table) (v *value.Value, msgType wire.MsgType, rest []byte, ok bool, err error) {
	if len(buf) < wire.HeaderSize {
		return nil, 0, buf, false, nil
	}
	hdr, err := wire.DecodeHeader(buf)
	if err != nil {
		return nil, 0, buf, false, err
	}
	total := wire.HeaderSize + int(hdr.PayloadSize)
	if len(buf) < total {
		return nil, 0, buf, false, nil
	}
	v, msgType, used, err := wire.DecodeFrame(h, buf, syms)
	if err != nil {
		return nil, 0, buf[total:], false, err
	}
	return v, msgType, buf[used:], true, nil
}

// drainFrames extracts and dispatches every complete frame currently
// buffered for conn, leaving a partial trailing frame in place.
func (r *Reactor) drainFrames(conn *Conn) error {
	for {
		v, msgType, rest, ok, err := extractFrame(r.heap, conn.rx.buf, r.syms)
		conn.rx.buf = rest
		if err != nil {
			r.logger.Warn("frame decode failed", zap.Error(err))
			continue
		}
		if !ok {
			return nil
		}
		r.dispatch(conn, msgType, v)
	}
}

func (r *Reactor) dispatch(conn *Conn, msgType wire.MsgType, v *value.Value) {
	switch msgType {
	case wire.Sync:
		result, err := r.eval(conn.Ctx, v)
		if err != nil {
			result = value.ErrObj
		}
		r.reply(conn, result)
	case wire.Async:
		if _, err := r.eval(conn.Ctx, v); err != nil {
			r.logger.Warn("async eval failed", zap.Error(err))
		}
	case wire.Resp:
		if !conn.deliverResp(v) {
			r.logger.Warn("unexpected RESP frame with no waiting caller", zap.Int64("conn", conn.ID))
		}
	}
}

func (r *Reactor) reply(conn *Conn, v *value.Value) {
	out := newFrameBuf()
	if err := wire.EncodeFrame(out, v, wire.Resp, r.syms); err != nil {
		r.logger.Warn("resp encode failed", zap.Error(err))
		return
	}
	if !conn.Enqueue(wire.Resp, out.RawSlice(out.GetReadIndex(), out.GetWriteIndex())) {
		r.logger.Warn("tx queue full, dropping RESP", zap.Int64("conn", conn.ID))
		return
	}
	r.flushTx(conn)
}

// flushTx drains conn's pending FIFO to the socket. goetty's Write
// already buffers internally on backpressure, which is what spec §4.9's
// "arm OUT interest" describes at the epoll level — collapsing that into
// a direct Write call is this package's one deliberate simplification of
// the reactor's I/O path.
func (r *Reactor) flushTx(conn *Conn) {
	for {
		pf := conn.dequeue()
		if pf == nil {
			return
		}
		if err := conn.Session.Write(pf.framed, goetty.WriteOptions{Flush: true}); err != nil {
			r.logger.Warn("tx write failed", zap.Error(err), zap.Int64("conn", conn.ID))
			return
		}
	}
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}
