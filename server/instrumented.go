package server

import (
	"time"

	"github.com/docstore-io/docstore/proto"
	"github.com/docstore-io/docstore/stats"
	"github.com/docstore-io/docstore/store"
)

// instrumentedStore adapts *store.Store to pipeline.Applier while recording
// per-verb counters and latency, keeping the store package itself free of
// any observability dependency.
type instrumentedStore struct {
	st    *store.Store
	stats *stats.Stats
}

func (i *instrumentedStore) Apply(cmd proto.Command) proto.Response {
	start := time.Now()
	resp := i.st.Apply(cmd)
	i.stats.Observe(cmd.Verb, outcome(resp), time.Since(start).Seconds())
	return resp
}

func outcome(resp proto.Response) string {
	if resp.Kind == proto.RespError {
		return "error"
	}
	return "ok"
}
