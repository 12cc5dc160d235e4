// internal/testutil/source.go

// Package testutil holds in-process fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"libradesk/internal/pipeline"
	"libradesk/internal/records"
	"libradesk/internal/view"
)

// Constructor builds a record from create fields and a server-assigned id.
type Constructor[T any] func(id string, fields records.Patch) (T, error)

// Source is an in-memory pipeline.Source with failure injection. Calls can be
// held at a gate to simulate slow responses.
type Source[T records.Entity[T]] struct {
	mu     sync.Mutex
	prefix string
	seq    int
	build  Constructor[T]
	store  *records.Store[T]
	fail   map[string]error
	gates  map[string]chan struct{}
	held   map[string]int

	Calls []string
}

func NewSource[T records.Entity[T]](prefix string, build Constructor[T], seed ...T) *Source[T] {
	s := &Source[T]{
		prefix: prefix,
		build:  build,
		store:  records.NewStore[T](),
		fail:   map[string]error{},
		gates:  map[string]chan struct{}{},
		held:   map[string]int{},
	}
	for _, r := range seed {
		if err := s.store.Insert(r); err != nil {
			panic(err)
		}
	}
	return s
}

// FailNext makes the next call of op ("list", "create", "update", "delete") fail with err.
func (s *Source[T]) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

// Hold blocks the next call of op until the returned release func is called.
func (s *Source[T]) Hold(op string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gates[op] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Pending reports whether a call of op is currently blocked at its gate.
func (s *Source[T]) Pending(op string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[op] > 0
}

// Records returns the remote state.
func (s *Source[T]) Records() []T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.All()
}

// Put writes a record straight into remote state, bypassing the client.
func (s *Source[T]) Put(r T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store.Has(r.RecordID()) {
		_ = s.store.Replace(r)
		return
	}
	_ = s.store.Insert(r)
}

func (s *Source[T]) enter(ctx context.Context, op string) error {
	s.mu.Lock()
	s.Calls = append(s.Calls, op)
	gate := s.gates[op]
	delete(s.gates, op)
	err := s.fail[op]
	delete(s.fail, op)
	s.mu.Unlock()

	if gate != nil {
		s.mu.Lock()
		s.held[op]++
		s.mu.Unlock()
		defer func() {
			s.mu.Lock()
			s.held[op]--
			s.mu.Unlock()
		}()

		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (s *Source[T]) List(ctx context.Context, spec view.Spec) (view.Result[T], error) {
	if err := s.enter(ctx, "list"); err != nil {
		return view.Result[T]{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.store.All()
	return view.Result[T]{Items: all, TotalItems: len(all), TotalPages: 1}, nil
}

func (s *Source[T]) Create(ctx context.Context, fields records.Patch) (T, error) {
	var zero T
	if err := s.enter(ctx, "create"); err != nil {
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	r, err := s.build(fmt.Sprintf("%s-%d", s.prefix, s.seq), fields)
	if err != nil {
		return zero, &pipeline.RemoteError{Status: http.StatusUnprocessableEntity, Message: err.Error()}
	}
	if err := s.store.Insert(r); err != nil {
		return zero, &pipeline.RemoteError{Status: http.StatusConflict, Message: err.Error()}
	}
	return r, nil
}

func (s *Source[T]) Update(ctx context.Context, id string, patch records.Patch) (T, error) {
	var zero T
	if err := s.enter(ctx, "update"); err != nil {
		return zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.store.Update(id, patch)
	if errors.Is(err, records.ErrNotFound) {
		return zero, &pipeline.RemoteError{Status: http.StatusNotFound, Message: err.Error()}
	}
	if err != nil {
		return zero, &pipeline.RemoteError{Status: http.StatusUnprocessableEntity, Message: err.Error()}
	}
	return r, nil
}

func (s *Source[T]) Delete(ctx context.Context, id string) error {
	if err := s.enter(ctx, "delete"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.store.Remove(id); err != nil {
		return &pipeline.RemoteError{Status: http.StatusNotFound, Message: err.Error()}
	}
	return nil
}
