package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/docstore-io/docstore/proto"
)

func TestPingAlwaysPong(t *testing.T) {
	s := New()
	require.Equal(t, proto.Pong(), s.Apply(proto.Ping()))
}

func TestPostThenGet(t *testing.T) {
	s := New()
	body := map[string]any{"name": "ada"}
	resp := s.Apply(proto.Post("users", body))
	require.Equal(t, proto.RespID, resp.Kind)
	id := resp.ID

	got := s.Apply(proto.Get("users/" + id))
	require.Equal(t, proto.ObjectResp(proto.Envelope{ID: id, Value: body}), got)
}

func TestGetMissingCollection(t *testing.T) {
	s := New()
	require.Equal(t, proto.ErrorResp("collection not found"), s.Apply(proto.Get("nope")))
}

func TestGetInvalidID(t *testing.T) {
	s := New()
	s.Apply(proto.Post("c", map[string]any{}))
	require.Equal(t, proto.ErrorResp("invalid id"), s.Apply(proto.Get("c/not-a-ulid")))
}

func TestGetMissingObject(t *testing.T) {
	s := New()
	id := s.Apply(proto.Post("c", map[string]any{})).ID
	s.Apply(proto.Delete("c/" + id))
	require.Equal(t, proto.ErrorResp("object not found"), s.Apply(proto.Get("c/"+id)))
}

func TestPutReplaces(t *testing.T) {
	s := New()
	id := s.Apply(proto.Post("c", map[string]any{"x": float64(1)})).ID
	require.Equal(t, proto.OKResp(), s.Apply(proto.Put("c/"+id, map[string]any{"x": float64(2)})))
	got := s.Apply(proto.Get("c/" + id))
	require.Equal(t, map[string]any{"x": float64(2)}, got.Object.Value)
}

func TestPutMissingObject(t *testing.T) {
	s := New()
	s.Apply(proto.Post("c", map[string]any{}))
	fake, err := proto.NewULID(1)
	require.NoError(t, err)
	require.Equal(t, proto.ErrorResp("object not found"), s.Apply(proto.Put("c/"+fake.String(), map[string]any{})))
}

func TestPutInvalidPath(t *testing.T) {
	s := New()
	require.Equal(t, proto.ErrorResp("invalid path"), s.Apply(proto.Put("c", map[string]any{})))
	require.Equal(t, proto.ErrorResp("invalid path"), s.Apply(proto.Put("", map[string]any{})))
}

func TestPatchShallowMerge(t *testing.T) {
	s := New()
	id := s.Apply(proto.Post("c", map[string]any{"x": float64(1), "y": float64(9)})).ID
	require.Equal(t, proto.OKResp(), s.Apply(proto.Patch("c/"+id, map[string]any{"x": float64(42)})))
	got := s.Apply(proto.Get("c/" + id))
	require.Equal(t, map[string]any{"x": float64(42), "y": float64(9)}, got.Object.Value)
}

func TestPatchRequiresObjectBody(t *testing.T) {
	s := New()
	id := s.Apply(proto.Post("c", map[string]any{"x": float64(1)})).ID
	require.Equal(t, proto.ErrorResp("patch requires object"), s.Apply(proto.Patch("c/"+id, "not an object")))
}

func TestPatchRequiresObjectExisting(t *testing.T) {
	s := New()
	id := s.Apply(proto.Post("c", "a string document")).ID
	require.Equal(t, proto.ErrorResp("patch requires object"), s.Apply(proto.Patch("c/"+id, map[string]any{"x": float64(1)})))
}

func TestDeleteThenGet(t *testing.T) {
	s := New()
	id := s.Apply(proto.Post("c", map[string]any{})).ID
	require.Equal(t, proto.OKResp(), s.Apply(proto.Delete("c/"+id)))
	require.Equal(t, proto.ErrorResp("object not found"), s.Apply(proto.Get("c/"+id)))
}

func TestDeleteWholeCollection(t *testing.T) {
	s := New()
	s.Apply(proto.Post("c", map[string]any{}))
	require.Equal(t, proto.OKResp(), s.Apply(proto.Delete("c")))
	require.Equal(t, proto.ErrorResp("collection not found"), s.Apply(proto.Get("c")))
}

func TestDeleteMissingCollection(t *testing.T) {
	s := New()
	require.Equal(t, proto.ErrorResp("collection not found"), s.Apply(proto.Delete("nope")))
}

func TestPostInvalidPath(t *testing.T) {
	s := New()
	require.Equal(t, proto.ErrorResp("invalid path"), s.Apply(proto.Post("", map[string]any{})))
}

func TestDumpWritesJSONFile(t *testing.T) {
	s := New()
	id := s.Apply(proto.Post("c", map[string]any{"x": float64(1)})).ID

	dir := t.TempDir()
	path := filepath.Join(dir, "dump.json")
	require.Equal(t, proto.OKResp(), s.Apply(proto.Dump(path)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), id)
	require.Contains(t, string(data), `"c"`)
}

func TestDumpFailsOnBadPath(t *testing.T) {
	s := New()
	resp := s.Apply(proto.Dump("/does/not/exist/dump.json"))
	require.Equal(t, proto.RespError, resp.Kind)
	require.Contains(t, resp.Error, "dump failed")
}

func TestDumpAccumulatesPerCollectionErrors(t *testing.T) {
	s := New()
	// Documents only ever reach the store as already-decoded JSON values, so
	// an unmarshalable document can't arise through Apply; insert one
	// directly into two distinct collections to exercise dumpTo's per-
	// collection error accumulation.
	s.getOrCreate("a").Insert("01ARZ3NDEKTSV4RRFFQ69G5FAV", make(chan int))
	s.getOrCreate("b").Insert("01ARZ3NDEKTSV4RRFFQ69G5FAW", make(chan int))

	dir := t.TempDir()
	path := filepath.Join(dir, "dump.json")
	err := s.dumpTo(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), `collection "a"`)
	require.Contains(t, err.Error(), `collection "b"`)

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr), "dump must not write a file when any collection fails to serialize")
}
