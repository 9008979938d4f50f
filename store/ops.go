package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/docstore-io/docstore/cmn/cos"
	"github.com/docstore-io/docstore/proto"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Apply executes cmd against the store and returns the Response to send
// back, implementing the per-command semantics of spec §4.5. It never
// returns an error: every failure mode is represented as an ERROR Response,
// matching the wire contract (a Response is always produced for a Command).
func (s *Store) Apply(cmd proto.Command) proto.Response {
	switch cmd.Verb {
	case proto.VerbPing:
		return proto.Pong()
	case proto.VerbPost:
		return s.applyPost(cmd)
	case proto.VerbGet:
		return s.applyGet(cmd)
	case proto.VerbPut:
		return s.applyPut(cmd)
	case proto.VerbPatch:
		return s.applyPatch(cmd)
	case proto.VerbDelete:
		return s.applyDelete(cmd)
	case proto.VerbDump:
		return s.applyDump(cmd)
	default:
		return proto.ErrorResp(fmt.Sprintf("unknown command: %s", cmd.Verb))
	}
}

func (s *Store) applyPost(cmd proto.Command) proto.Response {
	uri := proto.SplitURI(cmd.URI)
	if err := cos.CheckCollectionName(uri.Collection); err != nil {
		return proto.ErrorResp(err.Error())
	}
	id, err := proto.NewULID(time.Now().UnixMilli())
	if err != nil {
		return proto.ErrorResp("id generation failed: " + err.Error())
	}
	coll := s.getOrCreate(uri.Collection)
	coll.Insert(id.String(), cmd.Body)
	return proto.IDResp(id.String())
}

func (s *Store) applyGet(cmd proto.Command) proto.Response {
	uri := proto.SplitURI(cmd.URI)
	if uri.ID == "" {
		coll, ok := s.lookup(uri.Collection)
		if !ok {
			return proto.ErrorResp("collection not found")
		}
		return proto.CollectionResp(coll.Entries())
	}
	if _, err := proto.ParseULID(uri.ID); err != nil {
		return proto.ErrorResp("invalid id")
	}
	coll, ok := s.lookup(uri.Collection)
	if !ok {
		return proto.ErrorResp("collection not found")
	}
	doc, ok := coll.Get(uri.ID)
	if !ok {
		return proto.ErrorResp("object not found")
	}
	return proto.ObjectResp(proto.Envelope{ID: uri.ID, Value: doc})
}

func (s *Store) applyPut(cmd proto.Command) proto.Response {
	uri := proto.SplitURI(cmd.URI)
	if uri.Collection == "" || uri.ID == "" {
		return proto.ErrorResp("invalid path")
	}
	if _, err := proto.ParseULID(uri.ID); err != nil {
		return proto.ErrorResp("invalid id")
	}
	coll, ok := s.lookup(uri.Collection)
	if !ok {
		return proto.ErrorResp("collection not found")
	}
	if !coll.Replace(uri.ID, cmd.Body) {
		return proto.ErrorResp("object not found")
	}
	return proto.OKResp()
}

func (s *Store) applyPatch(cmd proto.Command) proto.Response {
	uri := proto.SplitURI(cmd.URI)
	if uri.Collection == "" || uri.ID == "" {
		return proto.ErrorResp("invalid path")
	}
	if _, err := proto.ParseULID(uri.ID); err != nil {
		return proto.ErrorResp("invalid id")
	}
	patch, isObj := cmd.Body.(map[string]any)
	if !isObj {
		return proto.ErrorResp("patch requires object")
	}
	coll, ok := s.lookup(uri.Collection)
	if !ok {
		return proto.ErrorResp("collection not found")
	}
	_, found, typeErr := coll.Merge(uri.ID, patch)
	if typeErr {
		return proto.ErrorResp("patch requires object")
	}
	if !found {
		return proto.ErrorResp("object not found")
	}
	return proto.OKResp()
}

func (s *Store) applyDelete(cmd proto.Command) proto.Response {
	uri := proto.SplitURI(cmd.URI)
	if uri.ID == "" {
		if !s.drop(uri.Collection) {
			return proto.ErrorResp("collection not found")
		}
		return proto.OKResp()
	}
	if _, err := proto.ParseULID(uri.ID); err != nil {
		return proto.ErrorResp("invalid id")
	}
	coll, ok := s.lookup(uri.Collection)
	if !ok {
		return proto.ErrorResp("collection not found")
	}
	if !coll.Delete(uri.ID) {
		return proto.ErrorResp("object not found")
	}
	return proto.OKResp()
}

func (s *Store) applyDump(cmd proto.Command) proto.Response {
	if err := s.dumpTo(cmd.File); err != nil {
		return proto.ErrorResp("dump failed: " + err.Error())
	}
	return proto.OKResp()
}

// dumpTo serializes the entire store as spec §4.5/§6 describes
// ({"<collection>": {"<id>": <doc>, ...}, ...}) and writes it atomically:
// write to a temp file in the same directory, then rename over the target.
// Each collection is marshaled independently so an unmarshalable document in
// one collection doesn't keep the rest from being diagnosed in a single
// pass; failures are accumulated and reported together via cos.Errs.
func (s *Store) dumpTo(path string) error {
	var errs cos.Errs
	out := make(map[string]map[string]any)
	for _, name := range s.Names() {
		coll, ok := s.Collection(name)
		if !ok {
			continue
		}
		docs := make(map[string]any)
		for _, e := range coll.Entries() {
			docs[e.ID] = e.Value
		}
		if _, err := json.Marshal(docs); err != nil {
			errs.Add(fmt.Errorf("collection %q: %w", name, err))
			continue
		}
		out[name] = docs
	}
	if err := errs.JoinErr(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".dump-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
