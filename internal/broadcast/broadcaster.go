// Package broadcast fans captured-event notifications out to live
// subscribers, one stream per project. Publishing never blocks: every
// subscriber owns a bounded buffer, and a subscriber that falls behind is
// disconnected instead of slowing intake down.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"faultline/internal/errs"
	"faultline/internal/metrics"
)

// DefaultBuffer is the per-subscriber queue length when the registry is
// built without an explicit one.
const DefaultBuffer = 64

var ErrRegistryClosed = errors.New("broadcast registry closed")

// SnapshotFunc supplies the current issue count for a project, delivered
// to new subscribers in their init envelope.
type SnapshotFunc func(ctx context.Context, projectID string) (int64, error)

// Options configures a Registry.
type Options struct {
	// Buffer is the per-subscriber queue length. Values below one fall
	// back to DefaultBuffer.
	Buffer int

	// Snapshot loads the init issue count. Nil sends zero.
	Snapshot SnapshotFunc

	// Tap, when set, receives a copy of every published envelope after
	// local fan-out. Used for the optional NATS relay.
	Tap func(Envelope)
}

// Registry is the per-project fan-out hub. The composition root owns the
// single instance and hands it to intake (publisher side) and to the
// subscription endpoint (consumer side).
type Registry struct {
	buffer   int
	snapshot SnapshotFunc
	tap      func(Envelope)

	mu       sync.Mutex
	projects map[string]map[*Subscriber]struct{}
	closed   bool
}

// Subscriber is one live consumer of a project stream. Read from C until
// it is closed; the registry closes it on overflow or shutdown, the
// transport calls Unsubscribe when the peer goes away.
type Subscriber struct {
	projectID string
	ch        chan Envelope
}

// C returns the receive side of the subscriber queue.
func (s *Subscriber) C() <-chan Envelope { return s.ch }

// ProjectID reports the stream this subscriber is attached to.
func (s *Subscriber) ProjectID() string { return s.projectID }

func NewRegistry(opts Options) *Registry {
	buffer := opts.Buffer
	if buffer < 1 {
		buffer = DefaultBuffer
	}
	return &Registry{
		buffer:   buffer,
		snapshot: opts.Snapshot,
		tap:      opts.Tap,
		projects: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe attaches a new consumer to the project stream. The init
// envelope is queued before the subscriber becomes visible to Publish, so
// consumers always observe init first, then live envelopes in publish
// order.
func (r *Registry) Subscribe(ctx context.Context, projectID string) (*Subscriber, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "subscribe aborted")
	}
	if projectID == "" {
		return nil, errors.New("project id is required")
	}

	var count int64
	if r.snapshot != nil {
		loaded, err := r.snapshot(ctx, projectID)
		if err != nil {
			return nil, errs.Wrap(err, "load init snapshot")
		}
		count = loaded
	}

	sub := &Subscriber{
		projectID: projectID,
		ch:        make(chan Envelope, r.buffer),
	}
	sub.ch <- initEnvelope(projectID, count, nowUTC())

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		close(sub.ch)
		return nil, ErrRegistryClosed
	}
	set, ok := r.projects[projectID]
	if !ok {
		set = make(map[*Subscriber]struct{})
		r.projects[projectID] = set
	}
	set[sub] = struct{}{}
	metrics.BroadcastSubscribers.Inc()
	return sub, nil
}

// Publish delivers env to every subscriber of env.ProjectID without ever
// blocking. A subscriber whose buffer is full is closed and removed; the
// envelope and everything after it are lost to that subscriber only.
func (r *Registry) Publish(env Envelope) {
	r.mu.Lock()
	for sub := range r.projects[env.ProjectID] {
		select {
		case sub.ch <- env:
			metrics.BroadcastPublished.Inc()
		default:
			r.removeLocked(sub)
			metrics.BroadcastDropped.Inc()
		}
	}
	r.mu.Unlock()

	if r.tap != nil {
		r.tap(env)
	}
}

// Unsubscribe detaches sub and closes its channel. Safe to call after an
// overflow disconnect already removed it.
func (r *Registry) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.projects[sub.projectID]; ok {
		if _, present := set[sub]; present {
			r.removeLocked(sub)
		}
	}
}

// Subscribers reports how many consumers a project stream currently has.
func (r *Registry) Subscribers(projectID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.projects[projectID])
}

// Close disconnects every subscriber and rejects future subscriptions.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, set := range r.projects {
		for sub := range set {
			r.removeLocked(sub)
		}
	}
}

// removeLocked drops sub from its project set and closes its channel.
// Callers hold r.mu, which is what makes closing safe: sends only target
// subscribers still present in the map, under the same lock.
func (r *Registry) removeLocked(sub *Subscriber) {
	set := r.projects[sub.projectID]
	delete(set, sub)
	if len(set) == 0 {
		delete(r.projects, sub.projectID)
	}
	close(sub.ch)
	metrics.BroadcastSubscribers.Dec()
}

func nowUTC() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000000Z")
}
