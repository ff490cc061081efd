package watch

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned for a job whose key received a newer job before
// the result was committed.
var ErrSuperseded = errors.New("superseded by a newer conversion")

// Supersede runs at most one live job per key. Starting a job cancels the
// running job for the same key, and a stale job never commits its result.
// The zero value is ready to use.
type Supersede struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	gen    uint64
	cancel context.CancelFunc
}

// Work produces a result and returns the function that applies it.
type Work func(ctx context.Context) (commit func() error, err error)

// Do runs work for key. commit is called only while the job is still the
// newest for key; commits are serialized.
func (s *Supersede) Do(ctx context.Context, key string, work Work) error {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.slots == nil {
		s.slots = make(map[string]*slot)
	}
	cur, ok := s.slots[key]
	if !ok {
		cur = &slot{}
		s.slots[key] = cur
	} else if cur.cancel != nil {
		cur.cancel()
	}
	cur.gen++
	gen := cur.gen
	cur.cancel = cancel
	s.mu.Unlock()

	commit, err := work(jobCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	latest := s.slots[key] == cur && cur.gen == gen
	if latest {
		delete(s.slots, key)
	}
	switch {
	case !latest:
		return ErrSuperseded
	case err != nil:
		return err
	case ctx.Err() != nil:
		return ctx.Err()
	case commit == nil:
		return nil
	}
	return commit()
}

// Pending reports how many keys have a job in flight.
func (s *Supersede) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}
