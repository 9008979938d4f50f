// Package server implements the connection supervisor of spec §4.3: bind
// a listener, own the one process-wide Store, and spawn an independent
// pipeline per accepted connection. A connection's failures never
// propagate to the supervisor or to other connections (spec §7).
package server

import (
	"fmt"
	"net"

	"github.com/docstore-io/docstore/cmn/nlog"
	"github.com/docstore-io/docstore/pipeline"
	"github.com/docstore-io/docstore/stats"
	"github.com/docstore-io/docstore/store"
	"github.com/docstore-io/docstore/wire"
)

const DefaultPort = 6379

// Server owns the listener and the shared Store.
type Server struct {
	ln    net.Listener
	st    *store.Store
	codec *wire.Codec
	stats *stats.Stats
}

// New binds a TCP listener on 0.0.0.0:port (spec §4.3) and constructs the
// shared Store.
func New(port int, reg *stats.Stats) (*Server, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		return nil, err
	}
	codec, err := wire.NewCodec()
	if err != nil {
		ln.Close()
		return nil, err
	}
	return &Server{ln: ln, st: store.New(), codec: codec, stats: reg}, nil
}

// Addr returns the bound address, useful for tests that bind port 0.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve runs the accept loop until the listener is closed. Accept errors
// are logged and the loop continues (spec §4.3, §7 listener failures).
func (s *Server) Serve() error {
	nlog.Infof("docstore server listening on %s", s.ln.Addr())
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if isClosed(err) {
				return nil
			}
			nlog.Warningf("accept: %v", err)
			continue
		}
		s.stats.ConnOpened()
		go func() {
			defer s.stats.ConnClosed()
			pipeline.Run(conn, s.codec, &instrumentedStore{st: s.st, stats: s.stats})
		}()
	}
}

// Close stops accepting new connections.
func (s *Server) Close() error { return s.ln.Close() }

func isClosed(err error) bool {
	const suffix = "use of closed network connection"
	s := err.Error()
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
