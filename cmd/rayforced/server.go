package main

import (
	"github.com/fagongzi/goetty/v2"
	"github.com/fagongzi/goetty/v2/buf"

	"github.com/rayforcedb/rayforce/internal/rayerr"
	"github.com/rayforcedb/rayforce/pkg/reactor"
)

// rawCodec is a byte-passthrough goetty codec: it hands every arrived
// chunk straight to Reactor.Handler as a []byte and writes []byte
// payloads back unmodified. pkg/reactor already owns frame boundaries
// itself (spec §4.9's 16-byte header plus body-size read), so nothing
// downstream needs the codec layer to do any parsing of its own — unlike
// pkg/common/morpc's baseCodec, which frames on the codec's behalf
// because morpc messages don't carry their own length-prefixed header.
type rawCodec struct{}

func (rawCodec) Decode(in *buf.ByteBuf) (bool, interface{}, error) {
	data := in.GetMarkedRemindData()
	if len(data) == 0 {
		return false, nil, nil
	}
	chunk := make([]byte, len(data))
	copy(chunk, data)
	in.MarkedBytesReaded()
	return true, chunk, nil
}

func (rawCodec) Encode(data interface{}, out *buf.ByteBuf) error {
	b, ok := data.([]byte)
	if !ok {
		return rayerr.Type("[]byte", "?", 0, "rawCodec.Encode")
	}
	out.Write(b)
	return nil
}

// serveSession drives one accepted connection's read loop, the same
// shape pkg/frontend.MOServer.handleMessage uses: register the session
// with the reactor, then feed every arrival to Reactor.Handler until the
// peer disconnects or a handler error closes the session.
func serveSession(r *reactor.Reactor, rs goetty.IOSession) error {
	r.Created(rs)
	defer r.Closed(rs)

	received := uint64(0)
	for {
		msg, err := rs.Read(goetty.ReadOptions{})
		if err != nil {
			return nil
		}
		received++
		if err := r.Handler(rs, msg, received); err != nil {
			return err
		}
	}
}
