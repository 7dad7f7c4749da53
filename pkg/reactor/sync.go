package reactor

import (
	"errors"
	"time"

	"github.com/fagongzi/goetty/v2/buf"

	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/value"
	"github.com/rayforcedb/rayforce/pkg/wire"
)

var errUnknownSession = errors.New("reactor: unknown session")
var errSyncTimeout = errors.New("reactor: synchronous IPC wait timed out")
var errConnClosed = errors.New("reactor: connection closed while waiting for response")

func newFrameBuf() *buf.ByteBuf { return buf.NewByteBuf(64) }

// SendSync implements spec §4.9's send_sync(id, value): enqueue a SYNC
// frame, drain it to the socket, then busy-receive until the matching
// RESP arrives or syncWaitTimeout elapses. Frames other than the RESP
// this call is waiting for are dispatched normally by Handler running
// concurrently on the connection's own read goroutine — Go's goroutine
// model gives "processed as a nested request before continuing to wait"
// for free, where the original's single cooperative thread needs an
// explicit reentrant drain loop.
func (r *Reactor) SendSync(conn *Conn, v *value.Value) (*value.Value, error) {
	out := newFrameBuf()
	if err := wire.EncodeFrame(out, v, wire.Sync, r.syms); err != nil {
		return nil, err
	}
	framed := out.RawSlice(out.GetReadIndex(), out.GetWriteIndex())

	ch := conn.armSyncWait()
	defer conn.disarmSyncWait()

	if !conn.Enqueue(wire.Sync, framed) {
		return nil, rayerr.Limit("tx queue full")
	}
	r.flushTx(conn)

	select {
	case res := <-ch:
		if res == nil || res.value == nil {
			return nil, rayerr.OS(errConnClosed)
		}
		if res.err != nil {
			return nil, res.err
		}
		return res.value.(*value.Value), nil
	case <-time.After(syncWaitTimeout * time.Second):
		r.registry.Unregister(conn.ID)
		return nil, rayerr.OS(errSyncTimeout)
	}
}
