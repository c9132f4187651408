package tx

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/syssam/sqlstack"
)

// Unit is a unit of work run by the Serializer. It receives the context of
// the submitting caller with its cancellation removed: a queued unit always
// runs to completion.
type Unit func(ctx context.Context) error

// Pending is the handle of a submitted unit.
type Pending struct {
	done chan struct{}
	err  error
}

// Done returns a channel closed once the unit has run.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Err returns the unit's error. It must only be called after Done is closed.
func (p *Pending) Err() error { return p.err }

// Wait blocks until the unit has run and returns its error. If ctx ends
// first, Wait returns ctx.Err() and the unit still runs.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pending) wait() error {
	<-p.done
	return p.err
}

type job struct {
	ctx  context.Context
	unit Unit
	p    *Pending
}

// Serializer runs submitted units one at a time, in submission order, on a
// single worker goroutine. The queue is unbounded. A failing unit reports
// to its own caller only and the queue moves on.
//
// Thread Safety:
//   - CommitOnStack and Close are safe for concurrent use.
type Serializer struct {
	mu     sync.Mutex
	queue  []*job
	wake   chan struct{}
	closed bool
	done   chan struct{}
	log    *slog.Logger
}

// NewSerializer starts a serializer. A nil logger discards logs.
func NewSerializer(log *slog.Logger) *Serializer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Serializer{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		log:  log,
	}
	go s.run()
	return s
}

// CommitOnStack queues unit behind every unit submitted before it. The
// returned Pending completes when unit has run.
func (s *Serializer) CommitOnStack(ctx context.Context, unit Unit) *Pending {
	p := &Pending{done: make(chan struct{})}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		p.err = sqlstack.ErrClosed
		close(p.done)
		return p
	}
	s.queue = append(s.queue, &job{ctx: context.WithoutCancel(ctx), unit: unit, p: p})
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return p
}

// Len returns the number of queued units, excluding the running one.
func (s *Serializer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops accepting units, waits for the queued ones to run, then stops
// the worker.
func (s *Serializer) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *Serializer) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			<-s.wake
			continue
		}
		j := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		j.p.err = s.exec(j)
		if j.p.err != nil {
			s.log.Warn("commit unit failed", "error", j.p.err)
		}
		close(j.p.done)
	}
}

func (s *Serializer) exec(j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sqlstack: commit unit panicked: %v", r)
		}
	}()
	return j.unit(j.ctx)
}
