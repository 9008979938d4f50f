package store_test

import (
	"sync"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/docstore-io/docstore/proto"
	"github.com/docstore-io/docstore/store"
)

var _ = Describe("concurrent access to the shared store", func() {
	var s *store.Store

	BeforeEach(func() {
		s = store.New()
	})

	It("gives every concurrent POST to a fresh collection a distinct id, and GET sees them all", func() {
		const perClient = 100
		const clients = 2

		var wg sync.WaitGroup
		ids := make(chan string, perClient*clients)
		for c := 0; c < clients; c++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perClient; i++ {
					resp := s.Apply(proto.Post("k", map[string]any{"i": i}))
					Expect(resp.Kind).To(Equal(proto.RespID))
					ids <- resp.ID
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := make(map[string]bool)
		for id := range ids {
			Expect(seen[id]).To(BeFalse(), "id %s generated twice", id)
			seen[id] = true
		}
		Expect(seen).To(HaveLen(perClient * clients))

		got := s.Apply(proto.Get("k"))
		Expect(got.Kind).To(Equal(proto.RespCollection))
		Expect(got.Collection).To(HaveLen(perClient * clients))
	})

	It("serializes concurrent PUTs to the same id so one consistently wins", func() {
		id := s.Apply(proto.Post("c", map[string]any{"x": 0})).ID

		var wg sync.WaitGroup
		for i := 1; i <= 50; i++ {
			wg.Add(1)
			go func(v int) {
				defer wg.Done()
				resp := s.Apply(proto.Put("c/"+id, map[string]any{"x": v}))
				Expect(resp.Kind).To(Equal(proto.RespOK))
			}(i)
		}
		wg.Wait()

		got := s.Apply(proto.Get("c/" + id))
		Expect(got.Kind).To(Equal(proto.RespObject))
		obj := got.Object.Value.(map[string]any)
		v, ok := obj["x"].(int)
		Expect(ok).To(BeTrue())
		Expect(v).To(BeNumerically(">=", 1))
		Expect(v).To(BeNumerically("<=", 50))
	})

	It("races to create the same collection name without losing any POST", func() {
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				resp := s.Apply(proto.Post("race", map[string]any{}))
				Expect(resp.Kind).To(Equal(proto.RespID))
			}()
		}
		wg.Wait()

		got := s.Apply(proto.Get("race"))
		Expect(got.Kind).To(Equal(proto.RespCollection))
		Expect(got.Collection).To(HaveLen(64))
	})
})
