package flow

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
)

// Sink receives what an effect produces.
//
// Send and Fail may be called from any goroutine, at any time. After the
// subscription has been cancelled (or has failed) both are no-ops, and
// events already sent but not yet reduced are dropped.
type Sink[E any] interface {
	// Send delivers an event to the node that owns the feedback.
	Send(event E)

	// Fail ends the subscription abnormally. The node and its other
	// feedbacks are unaffected.
	Fail(err error)
}

// Effect starts the side effect for one query value.
//
// Effects must not block: long-running work belongs in a goroutine that
// watches ctx, which is cancelled when the subscription is cancelled or the
// node is disposed. A panic inside the call counts as Sink.Fail.
type Effect[Q, E any] func(ctx context.Context, query Q, sink Sink[E])

// Feedback manages effect subscriptions driven by a projection of the
// state. Build one with React or ReactSet.
type Feedback[S, E any] interface {
	feedbackName() string
	newRunner(host effectHost[E]) feedbackRunner[S]
}

// feedbackRunner is the per-node live side of a Feedback.
type feedbackRunner[S any] interface {
	// update is called with every published state, in order.
	update(state S)
	// stop cancels every subscription.
	stop()
}

// effectHost is what a runner needs from the node that owns it.
type effectHost[E any] interface {
	effectContext() context.Context
	effectStarted(sub *subscription, query any)
	effectCancelled(sub *subscription)
	effectEvent(sub *subscription, event E)
	effectFailed(sub *subscription, err error)
}

// subscription is one running effect.
type subscription struct {
	feedback string
	key      string
	cancel   context.CancelFunc
	ended    atomic.Bool
}

// end marks the subscription over. Returns false if it already was.
func (s *subscription) end() bool {
	if !s.ended.CompareAndSwap(false, true) {
		return false
	}
	s.cancel()
	return true
}

type effectSink[E any] struct {
	sub  *subscription
	host effectHost[E]
}

func (s *effectSink[E]) Send(event E) {
	if s.sub.ended.Load() {
		return
	}
	s.host.effectEvent(s.sub, event)
}

func (s *effectSink[E]) Fail(err error) {
	if !s.sub.end() {
		return
	}
	s.host.effectFailed(s.sub, err)
}

func startEffect[Q, E any](host effectHost[E], name string, query Q, effect Effect[Q, E]) *subscription {
	ctx, cancel := context.WithCancel(host.effectContext())
	sub := &subscription{
		feedback: name,
		key:      describe(query),
		cancel:   cancel,
	}
	host.effectStarted(sub, query)

	sink := &effectSink[E]{sub: sub, host: host}
	func() {
		defer func() {
			if r := recover(); r != nil {
				sink.Fail(fmt.Errorf("effect panicked: %v", r))
			}
		}()
		effect(ctx, query, sink)
	}()
	return sub
}

func stopEffect[E any](host effectHost[E], sub *subscription) {
	if sub != nil && sub.end() {
		host.effectCancelled(sub)
	}
}

// ReactOption configures React.
type ReactOption[Q any] func(*reactFeedback[Q])

// WithEquality replaces the default structural equality (reflect.DeepEqual)
// used to deduplicate consecutive query values.
func WithEquality[Q any](equal func(a, b Q) bool) ReactOption[Q] {
	return func(f *reactFeedback[Q]) {
		f.equal = equal
	}
}

type reactFeedback[Q any] struct {
	name  string
	equal func(a, b Q) bool
}

type react[S, E, Q any] struct {
	reactFeedback[Q]
	query  func(S) (Q, bool)
	effect Effect[Q, E]
}

// React builds a feedback with at most one live subscription.
//
// query projects the state to an optional query value (ok=false means
// none). Consecutive equal values are ignored; a different value or none
// cancels the running subscription before effect is started for the new
// value.
func React[S, E, Q any](name string, query func(S) (Q, bool), effect Effect[Q, E], opts ...ReactOption[Q]) Feedback[S, E] {
	f := &react[S, E, Q]{
		reactFeedback: reactFeedback[Q]{
			name: name,
			equal: func(a, b Q) bool {
				return reflect.DeepEqual(a, b)
			},
		},
		query:  query,
		effect: effect,
	}
	for _, opt := range opts {
		opt(&f.reactFeedback)
	}
	return f
}

func (f *react[S, E, Q]) feedbackName() string { return f.name }

func (f *react[S, E, Q]) newRunner(host effectHost[E]) feedbackRunner[S] {
	return &reactRunner[S, E, Q]{f: f, host: host}
}

type reactRunner[S, E, Q any] struct {
	f      *react[S, E, Q]
	host   effectHost[E]
	active bool
	last   Q
	sub    *subscription
}

func (r *reactRunner[S, E, Q]) update(state S) {
	q, ok := r.f.query(state)
	if !ok {
		r.stop()
		return
	}
	if r.active && r.f.equal(r.last, q) {
		return
	}
	r.stop()
	r.active = true
	r.last = q
	r.sub = startEffect(r.host, r.f.name, q, r.f.effect)
}

func (r *reactRunner[S, E, Q]) stop() {
	if !r.active {
		return
	}
	var zero Q
	r.active = false
	r.last = zero
	stopEffect(r.host, r.sub)
	r.sub = nil
}

type reactSet[S, E any, K comparable] struct {
	name   string
	query  func(S) []K
	effect Effect[K, E]
}

// ReactSet builds a feedback with one independent subscription per key.
//
// Keys that appear start an effect (in query order), keys that disappear
// are cancelled (in their previous order), keys that remain present keep
// their subscription untouched. Duplicate keys in one query result are
// ignored.
func ReactSet[S, E any, K comparable](name string, query func(S) []K, effect Effect[K, E]) Feedback[S, E] {
	return &reactSet[S, E, K]{name: name, query: query, effect: effect}
}

func (f *reactSet[S, E, K]) feedbackName() string { return f.name }

func (f *reactSet[S, E, K]) newRunner(host effectHost[E]) feedbackRunner[S] {
	return &reactSetRunner[S, E, K]{
		f:    f,
		host: host,
		subs: make(map[K]*subscription),
	}
}

type reactSetRunner[S, E any, K comparable] struct {
	f     *reactSet[S, E, K]
	host  effectHost[E]
	order []K
	subs  map[K]*subscription
}

func (r *reactSetRunner[S, E, K]) update(state S) {
	keys := r.f.query(state)

	present := make(map[K]struct{}, len(keys))
	for _, k := range keys {
		present[k] = struct{}{}
	}

	for _, k := range r.order {
		if _, ok := present[k]; !ok {
			stopEffect(r.host, r.subs[k])
			delete(r.subs, k)
		}
	}

	order := make([]K, 0, len(present))
	seen := make(map[K]struct{}, len(present))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		order = append(order, k)
		if _, running := r.subs[k]; !running {
			r.subs[k] = startEffect(r.host, r.f.name, k, r.f.effect)
		}
	}
	r.order = order
}

func (r *reactSetRunner[S, E, K]) stop() {
	for _, k := range r.order {
		stopEffect(r.host, r.subs[k])
	}
	r.order = nil
	clear(r.subs)
}
