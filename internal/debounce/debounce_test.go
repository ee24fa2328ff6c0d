package debounce

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu    sync.Mutex
	calls []Pending[string]
}

func (r *recorder) fire(key, v string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Pending[string]{Key: key, Value: v})
}

func (r *recorder) snapshot() []Pending[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Pending[string](nil), r.calls...)
}

func TestTrigger_CoalescesToLastValue(t *testing.T) {
	rec := &recorder{}
	g := New(rec.fire)

	g.Trigger("content", 30*time.Millisecond, "a")
	g.Trigger("content", 30*time.Millisecond, "ab")
	g.Trigger("content", 30*time.Millisecond, "abc")

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "abc", calls[0].Value)
	assert.False(t, g.Pending("content"))
}

func TestTrigger_KeysAreIndependent(t *testing.T) {
	rec := &recorder{}
	g := New(rec.fire)

	g.Trigger("n1/title", 10*time.Millisecond, "t")
	g.Trigger("n1/content", 10*time.Millisecond, "c")

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestCancel_PreventsFire(t *testing.T) {
	rec := &recorder{}
	g := New(rec.fire)

	g.Trigger("k", 20*time.Millisecond, "v")
	assert.True(t, g.Pending("k"))
	assert.True(t, g.Cancel("k"))
	assert.False(t, g.Cancel("k"))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestTake_ReturnsWithoutFiring(t *testing.T) {
	rec := &recorder{}
	g := New(rec.fire)

	g.Trigger("k", 20*time.Millisecond, "v")
	v, ok := g.Take("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
	_, ok = g.Take("k")
	assert.False(t, ok)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
}

func TestTakePrefix(t *testing.T) {
	rec := &recorder{}
	g := New(rec.fire)

	g.Trigger("note/a/title", time.Hour, "1")
	g.Trigger("note/a/content", time.Hour, "2")
	g.Trigger("note/b/title", time.Hour, "3")

	got := g.TakePrefix("note/a/")
	assert.Equal(t, []Pending[string]{
		{Key: "note/a/content", Value: "2"},
		{Key: "note/a/title", Value: "1"},
	}, got)
	assert.True(t, g.Pending("note/b/title"))
	assert.Equal(t, 1, g.CancelPrefix("note/"))
}

func TestStop_DisablesTrigger(t *testing.T) {
	rec := &recorder{}
	g := New(rec.fire)

	g.Trigger("k", time.Hour, "v")
	pending := g.Stop()
	require.Len(t, pending, 1)

	g.Trigger("k", time.Millisecond, "late")
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.snapshot())
	assert.False(t, g.Pending("k"))
}
