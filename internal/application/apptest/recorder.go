// Package apptest holds in-process fakes shared by the application tests.
package apptest

import (
	"context"
	"sync"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
)

// Recorder is a Publisher that keeps everything it is given.
type Recorder struct {
	mu     sync.Mutex
	events []outbox.Event
	// Err, when set, is returned by Publish after recording.
	Err error
}

func (r *Recorder) Publish(_ context.Context, e outbox.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

func (r *Recorder) Events() []outbox.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outbox.Event(nil), r.events...)
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Of returns the recorded events of type E in publish order.
func Of[E outbox.Event](r *Recorder) []E {
	var out []E
	for _, e := range r.Events() {
		if v, ok := e.(E); ok {
			out = append(out, v)
		}
	}
	return out
}

func (r *Recorder) Marks() []saga.TransactionMark {
	return Of[saga.TransactionMark](r)
}
