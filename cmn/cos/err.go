// Package cos provides low-level helpers shared by every docstore package:
// typed sentinel errors, collection-name validation, and a small multi-error
// accumulator, in the style of the teacher's cmn/cos package.
package cos

import (
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

type (
	// ErrNotFound describes a collection or document that does not (or
	// no longer) exists. The store does not return it: its not-found
	// cases are reported as ERROR responses.
	ErrNotFound struct {
		what string
	}

	// Errs accumulates up to maxErrs distinct errors, used where a single
	// operation (e.g. a DUMP) may fail in more than one independent way.
	Errs struct {
		errs []error
		cnt  int64
		mu   sync.Mutex
	}
)

const maxErrs = 4

func NewErrNotFound(what string) *ErrNotFound { return &ErrNotFound{what} }

func (e *ErrNotFound) Error() string { return e.what + " not found" }

func IsErrNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}

func (e *Errs) Add(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, added := range e.errs {
		if added.Error() == err.Error() {
			return
		}
	}
	if len(e.errs) < maxErrs {
		e.errs = append(e.errs, err)
		atomic.StoreInt64(&e.cnt, int64(len(e.errs)))
	}
}

func (e *Errs) Cnt() int { return int(atomic.LoadInt64(&e.cnt)) }

// JoinErr returns the accumulated errors as one error, or nil if none were added.
func (e *Errs) JoinErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.errs) == 0 {
		return nil
	}
	if len(e.errs) == 1 {
		return e.errs[0]
	}
	joined := e.errs[0]
	for _, next := range e.errs[1:] {
		joined = errors.Wrap(joined, next.Error())
	}
	return joined
}
