// Package reactor implements RayforceDB's connection/event layer (spec
// §4.9): per-connection handshake and frame dispatch, synchronous IPC,
// and a deadline-ordered timer queue. It runs atop goetty/v2 sessions,
// following the teacher's frontend package's shape — one goroutine per
// accepted connection running a blocking read loop that hands each
// message to a shared Created/Closed/Handler triple — rather than the
// spec's literal single-thread epoll loop: goetty already owns the
// syscall-level multiplexing, so the "single event loop" the spec
// describes is realized through goetty's session model plus this
// package's per-connection state machine and dispatch, the same
// division of labor pkg/frontend/server.go uses for the MySQL protocol.
package reactor

// ConnState is a connection's position in spec §4.9's state machine.
type ConnState int32

const (
	StateClosed ConnState = iota
	StateAwaitHandshake
	StateReady
)

func (s ConnState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateAwaitHandshake:
		return "await_handshake"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}
