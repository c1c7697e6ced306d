package page

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, src, rawURL string) *HtmlPage {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	p, err := Parse(strings.NewReader(src), u)
	require.NoError(t, err)
	return p
}

func TestParse(t *testing.T) {
	p := mustParse(t, `<html><head><title> Hi </title><script>var a;</script></head>
<body><script>var b;</script></body></html>`, "http://example.com/dir/index.html")

	assert.Equal(t, "Hi", p.Title())
	assert.Len(t, p.Scripts(), 2)
	require.NotNil(t, p.Body())
	assert.NotEmpty(t, p.ID())
	assert.Nil(t, p.EnclosingWindow())

	resolved, err := p.ResolveURL("../other.html?x=1")
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/other.html?x=1", resolved.String())
}

func TestWebWindow_EnclosedPage(t *testing.T) {
	w := NewWebWindow("")
	assert.True(t, strings.HasPrefix(w.Name(), "window-"))

	first := mustParse(t, "<p>1</p>", "http://example.com/1")
	second := mustParse(t, "<p>2</p>", "http://example.com/2")

	w.SetEnclosedPage(first)
	assert.True(t, first.IsEnclosed())
	assert.Same(t, w, first.EnclosingWindow())

	w.Jobs().Add(first, time.Hour, 0, func() {})
	w.Jobs().Add(second, time.Hour, 0, func() {})

	w.SetEnclosedPage(second)
	assert.False(t, first.IsEnclosed())
	assert.True(t, second.IsEnclosed())
	assert.Equal(t, 1, w.Jobs().Len(), "jobs of the replaced page are dropped")

	w.Close()
	assert.True(t, w.IsClosed())
	assert.Nil(t, w.EnclosedPage())
	assert.Equal(t, 0, w.Jobs().Len())
}

func TestMonitor_Reentrant(t *testing.T) {
	var m Monitor
	a, b := new(int), new(int)

	m.Enter(a)
	m.Enter(a)
	assert.True(t, m.HeldBy(a))

	var entered atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Enter(b)
		entered.Store(true)
		m.Exit(b)
	}()

	time.Sleep(20 * time.Millisecond)
	assert.False(t, entered.Load(), "other owner must wait")

	m.Exit(a)
	time.Sleep(20 * time.Millisecond)
	assert.False(t, entered.Load(), "one exit per enter")

	m.Exit(a)
	<-done
	assert.True(t, entered.Load())
	assert.False(t, m.HeldBy(a))

	assert.Panics(t, func() { m.Exit(a) })
}

func TestMonitor_Serializes(t *testing.T) {
	var m Monitor
	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			owner := new(int)
			m.Enter(owner)
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			m.Exit(owner)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

// manualScheduler fires timers only when the test says so.
type manualScheduler struct {
	armed []*manualTimer
}

type manualTimer struct {
	delay, period time.Duration
	fire          func()
	cancelled     bool
}

func (s *manualScheduler) Schedule(delay, period time.Duration, fire func()) func() {
	t := &manualTimer{delay: delay, period: period, fire: fire}
	s.armed = append(s.armed, t)
	return func() { t.cancelled = true }
}

// fireAll runs every live timer once, in arming order.
func (s *manualScheduler) fireAll() {
	for _, t := range s.armed {
		if !t.cancelled {
			t.fire()
		}
	}
}

func TestJobQueue_ArmsWaitingJobsInOrder(t *testing.T) {
	w := NewWebWindow("jobs")
	q := w.Jobs()
	var ran []string

	q.Add(nil, time.Second, 0, func() { ran = append(ran, "first") })
	q.Add(nil, 0, 0, func() { ran = append(ran, "second") })
	cancelled := q.Add(nil, 0, 0, func() { ran = append(ran, "cancelled") })
	q.Remove(cancelled)
	q.Remove(9999)
	assert.Equal(t, 2, q.Len())

	s := &manualScheduler{}
	q.SetScheduler(s)
	require.Len(t, s.armed, 2)
	assert.Equal(t, time.Second, s.armed[0].delay)

	s.fireAll()
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, 0, q.Len(), "one-shot jobs are forgotten once fired")

	s.fireAll()
	assert.Equal(t, []string{"first", "second"}, ran, "a fired one-shot job never runs again")
}

func TestJobQueue_Periodic(t *testing.T) {
	var q JobQueue
	s := &manualScheduler{}
	q.SetScheduler(s)
	count := 0
	id := q.Add(nil, 10*time.Millisecond, 10*time.Millisecond, func() { count++ })

	s.fireAll()
	s.fireAll()
	assert.Equal(t, 2, count)
	assert.Equal(t, 1, q.Len(), "periodic jobs stay until removed")

	q.Remove(id)
	assert.True(t, s.armed[0].cancelled)
	assert.Equal(t, 0, q.Len())
}

func TestJobQueue_DetachingSchedulerDisarms(t *testing.T) {
	var q JobQueue
	first := &manualScheduler{}
	q.SetScheduler(first)
	ran := 0
	q.Add(nil, time.Millisecond, 0, func() { ran++ })

	q.SetScheduler(nil)
	assert.True(t, first.armed[0].cancelled)
	assert.Equal(t, 1, q.Len())

	second := &manualScheduler{}
	q.SetScheduler(second)
	second.fireAll()
	assert.Equal(t, 1, ran)

	q.Add(nil, time.Millisecond, 0, func() { ran++ })
	q.Clear()
	assert.True(t, second.armed[1].cancelled)
	assert.Equal(t, 0, q.Len())
}

func TestPostponedAction_Liveness(t *testing.T) {
	w := NewWebWindow("main")
	p := mustParse(t, "<p></p>", "http://example.com/")
	w.SetEnclosedPage(p)

	ran := false
	action := NewPostponedAction(p, "mark", func(context.Context) error {
		ran = true
		return nil
	})
	assert.True(t, action.IsStillAlive())
	require.NoError(t, action.Execute(context.Background()))
	assert.True(t, ran)

	w.SetEnclosedPage(mustParse(t, "<p></p>", "http://example.com/next"))
	assert.False(t, action.IsStillAlive())

	orphan := NewPostponedAction(nil, "always", func(context.Context) error { return nil })
	assert.True(t, orphan.IsStillAlive())
}
