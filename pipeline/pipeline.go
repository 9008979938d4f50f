// Package pipeline implements the per-connection three-stage pipeline of
// spec §4.4: a reader decoding inbound frames onto a bounded command queue,
// a store handler applying each command and enqueuing a response, and a
// writer draining the response queue back onto the socket. The two queues
// are capacity 32 per spec §4.4/§9 ("suggested 32... unbounded queues are
// forbidden").
package pipeline

import (
	"errors"
	"io"
	"net"

	"github.com/docstore-io/docstore/cmn/nlog"
	"github.com/docstore-io/docstore/proto"
	"github.com/docstore-io/docstore/wire"
)

const queueCapacity = 32

// Applier applies a Command to shared state and returns the Response.
// store.Store satisfies this; tests can substitute a fake.
type Applier interface {
	Apply(cmd proto.Command) proto.Response
}

// queued is cmdQ's element type: either a decoded Command to apply, or a
// parseErr marker for a frame that failed to decode. Routing the
// decode failure through cmdQ (rather than pushing straight onto respQ)
// keeps it in the same FIFO as every other in-flight command, preserving
// the per-connection response ordering guarantee of spec §4.4/§8.
type queued struct {
	cmd      proto.Command
	parseErr bool
}

// Run drives one connection's pipeline to completion: it blocks until the
// socket is closed (by either side) and every in-flight command has been
// processed to completion against st (spec §5: in-flight commands at
// disconnect are still applied; their responses are written best-effort).
func Run(conn net.Conn, codec *wire.Codec, st Applier) {
	defer conn.Close()

	cmdQ := make(chan queued, queueCapacity)
	respQ := make(chan proto.Response, queueCapacity)

	storeDone := make(chan struct{})
	go func() {
		storeHandler(cmdQ, respQ, st)
		close(storeDone)
	}()

	writerDone := make(chan struct{})
	go func() {
		writer(conn, codec, respQ)
		close(writerDone)
	}()

	reader(conn, codec, cmdQ)
	<-storeDone
	<-writerDone
}

// reader drains inbound frames, decodes each to a Command, and enqueues it.
// On EOF or a read error it closes cmdQ and returns. A decode failure is
// enqueued as a parseErr marker, which the store handler answers with
// ERROR("parse error") (spec §4.4:
// "reports an error response via the store handler's response path").
func reader(conn net.Conn, codec *wire.Codec, cmdQ chan<- queued) {
	defer close(cmdQ)
	for {
		payload, err := wire.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !isClosedConnErr(err) {
				nlog.Warningf("read frame: %v", err)
			}
			return
		}
		cmd, err := codec.DecodeCommand(payload)
		if err != nil {
			nlog.Warningf("decode command: %v", err)
			cmdQ <- queued{parseErr: true}
			continue
		}
		cmdQ <- queued{cmd: cmd}
	}
}

// storeHandler dequeues items, applies each Command to st (or answers a
// parseErr marker with ERROR("parse error")), and enqueues the Response.
// When cmdQ closes it closes respQ and returns.
func storeHandler(cmdQ <-chan queued, respQ chan<- proto.Response, st Applier) {
	defer close(respQ)
	for q := range cmdQ {
		var resp proto.Response
		if q.parseErr {
			resp = proto.ErrorResp("parse error")
		} else {
			resp = applySafely(st, q.cmd)
		}
		respQ <- resp
	}
}

// applySafely converts a panic inside Apply into an ERROR response instead
// of letting it escape the store-handler goroutine (spec §7: "panics ...
// must be caught at the task boundary and converted to an ERROR response").
func applySafely(st Applier, cmd proto.Command) (resp proto.Response) {
	defer func() {
		if r := recover(); r != nil {
			nlog.Errorf("store handler panic: %v", r)
			resp = proto.ErrorResp("internal error")
		}
	}()
	return st.Apply(cmd)
}

// writer dequeues Responses, encodes each to a frame, and writes it to the
// socket. When respQ closes it returns, and Run's deferred Close then closes
// the connection. Write errors are logged and terminate the writer.
func writer(conn net.Conn, codec *wire.Codec, respQ <-chan proto.Response) {
	for resp := range respQ {
		payload, err := codec.EncodeResponse(resp)
		if err != nil {
			nlog.Errorf("encode response: %v", err)
			continue
		}
		if err := wire.WriteFrame(conn, payload); err != nil {
			if !isClosedConnErr(err) {
				nlog.Warningf("write frame: %v", err)
			}
			return
		}
	}
}

func isClosedConnErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
