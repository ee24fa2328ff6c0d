// Package debounce coalesces bursts of values per key: each Trigger cancels
// the key's pending timer and starts a new one, so only the last value
// reaches the fire callback once the quiet period has passed.
package debounce

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Pending is a value taken from the group before its timer fired.
type Pending[V any] struct {
	Key   string
	Value V
}

type entry[V any] struct {
	timer *time.Timer
	gen   uint64
	value V
}

// Group holds one timer per key. The zero value is not usable; use New.
type Group[V any] struct {
	fire func(key string, v V)

	mu      sync.Mutex
	gen     uint64
	entries map[string]*entry[V]
	stopped bool
}

// New returns a group that calls fire from the timer goroutine, outside the
// group's lock, whenever a key's quiet period elapses.
func New[V any](fire func(key string, v V)) *Group[V] {
	return &Group[V]{
		fire:    fire,
		entries: make(map[string]*entry[V]),
	}
}

// Trigger replaces the pending value for key and restarts its timer.
func (g *Group[V]) Trigger(key string, d time.Duration, v V) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped {
		return
	}
	if e, ok := g.entries[key]; ok {
		e.timer.Stop()
	}
	g.gen++
	gen := g.gen
	e := &entry[V]{gen: gen, value: v}
	e.timer = time.AfterFunc(d, func() { g.expire(key, gen) })
	g.entries[key] = e
}

func (g *Group[V]) expire(key string, gen uint64) {
	g.mu.Lock()
	e, ok := g.entries[key]
	if !ok || e.gen != gen {
		// Superseded, cancelled or taken in the meantime.
		g.mu.Unlock()
		return
	}
	delete(g.entries, key)
	g.mu.Unlock()
	g.fire(key, e.value)
}

// Take cancels key's timer and returns its pending value, if any.
func (g *Group[V]) Take(key string) (V, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	e.timer.Stop()
	delete(g.entries, key)
	return e.value, true
}

// TakePrefix cancels every key starting with prefix and returns their
// pending values sorted by key.
func (g *Group[V]) TakePrefix(prefix string) []Pending[V] {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Pending[V]
	for k, e := range g.entries {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		e.timer.Stop()
		delete(g.entries, k)
		out = append(out, Pending[V]{Key: k, Value: e.value})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Cancel drops key's pending value. It reports whether one existed.
func (g *Group[V]) Cancel(key string) bool {
	_, ok := g.Take(key)
	return ok
}

// CancelPrefix drops every pending value whose key starts with prefix.
func (g *Group[V]) CancelPrefix(prefix string) int {
	return len(g.TakePrefix(prefix))
}

// Pending reports whether key has a value waiting.
func (g *Group[V]) Pending(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.entries[key]
	return ok
}

// Stop cancels everything and makes further Triggers no-ops. Pending values
// are returned so the owner can decide whether to commit them.
func (g *Group[V]) Stop() []Pending[V] {
	out := g.TakePrefix("")
	g.mu.Lock()
	g.stopped = true
	g.mu.Unlock()
	return out
}
