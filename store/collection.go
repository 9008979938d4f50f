// Package store implements the shared, concurrent collection/document map
// (spec §4.5, §9): a store-level registry of collections guarded by a
// read/write mutex with compare-and-insert semantics on first POST, and
// per-collection documents sharded by id hash so that PUT/PATCH/DELETE on
// ids in different shards do not contend, while same-id operations
// serialize correctly.
package store

import (
	"sort"
	"sync"

	"github.com/OneOfOne/xxhash"

	"github.com/docstore-io/docstore/cmn/debug"
	"github.com/docstore-io/docstore/proto"
)

const shardCount = 16

type shard struct {
	mu   sync.RWMutex
	docs map[string]any
}

// Collection is a mapping from DocumentId text to Document, sharded for
// concurrency. Iteration order (Entries) is ascending by id.
type Collection struct {
	shards [shardCount]*shard
}

func newCollection() *Collection {
	c := &Collection{}
	for i := range c.shards {
		c.shards[i] = &shard{docs: make(map[string]any)}
	}
	return c
}

func (c *Collection) shardFor(id string) *shard {
	h := xxhash.ChecksumString64(id)
	return c.shards[h%shardCount]
}

// Insert adds id->doc unconditionally (POST always creates a new id).
func (c *Collection) Insert(id string, doc any) {
	debug.Assertf(id != "", "insert with empty id into collection")
	s := c.shardFor(id)
	s.mu.Lock()
	debug.Assertf(!hasLocked(s, id), "id %s already present, POST must never reuse an id", id)
	s.docs[id] = doc
	s.mu.Unlock()
}

func hasLocked(s *shard, id string) bool {
	_, ok := s.docs[id]
	return ok
}

// Get returns the document at id, or ok=false if absent.
func (c *Collection) Get(id string) (doc any, ok bool) {
	s := c.shardFor(id)
	s.mu.RLock()
	doc, ok = s.docs[id]
	s.mu.RUnlock()
	return
}

// Replace overwrites the document at id with doc if present.
func (c *Collection) Replace(id string, doc any) (ok bool) {
	s := c.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok = s.docs[id]; !ok {
		return false
	}
	s.docs[id] = doc
	return true
}

// Merge shallow-merges patch into the document at id. The caller checks that
// the patch body is an object; Merge checks the stored document and reports
// typeErr, leaving it unchanged, if it is not a map[string]any.
// The merge runs under the shard lock so the read-modify-write is atomic.
func (c *Collection) Merge(id string, patch map[string]any) (merged any, ok bool, typeErr bool) {
	s := c.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, found := s.docs[id]
	if !found {
		return nil, false, false
	}
	obj, isObj := existing.(map[string]any)
	if !isObj {
		return nil, true, true
	}
	next := make(map[string]any, len(obj)+len(patch))
	for k, v := range obj {
		next[k] = v
	}
	for k, v := range patch {
		next[k] = v
	}
	s.docs[id] = next
	return next, true, false
}

// Delete removes id, reporting whether it was present.
func (c *Collection) Delete(id string) (ok bool) {
	s := c.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok = s.docs[id]; ok {
		delete(s.docs, id)
	}
	return
}

// Entries returns every (id, document) pair in ascending id order, a
// consistent-enough snapshot for GET-the-collection and DUMP (each shard is
// locked only for the duration of its own copy).
func (c *Collection) Entries() []proto.Envelope {
	out := make([]proto.Envelope, 0)
	for _, s := range c.shards {
		s.mu.RLock()
		for id, doc := range s.docs {
			out = append(out, proto.Envelope{ID: id, Value: doc})
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports the total number of documents across all shards.
func (c *Collection) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.docs)
		s.mu.RUnlock()
	}
	return n
}
