package jsexec_test

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsexec"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

func TestPostponed_RunAfterScriptBeforeReturn(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	log := f.client.log
	f.set(t, "postpone", f.postponeFn(log))
	f.set(t, "mark", log.add)

	f.exec(context.Background(), `postpone('a'); postpone('b'); mark('script end');`)

	assert.Equal(t, []string{"script end", "load", "a", "b", "load"}, log.all())
}

func TestPostponed_LoadsResponsesBeforeEachBatch(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	log := f.client.log
	ctx := jsexec.WithCallContext(context.Background())

	f.engine.AddPostponedAction(ctx, page.NewPostponedAction(f.page, "first", func(ctx context.Context) error {
		log.add("first")
		f.engine.AddPostponedAction(ctx, page.NewPostponedAction(f.page, "second", func(context.Context) error {
			log.add("second")
			return nil
		}))
		return nil
	}))

	require.NoError(t, f.engine.ProcessPostponedActions(ctx))
	assert.Equal(t, []string{"load", "first", "load", "second", "load"}, log.all())
}

func TestPostponed_StaleActionSkipped(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	log := &eventLog{}
	f.set(t, "postpone", f.postponeFn(log))
	f.set(t, "unload", func() {
		f.window.SetEnclosedPage(blankPage(t))
	})

	f.exec(context.Background(), `postpone('dead'); unload();`)
	assert.Empty(t, log.all())
}

func TestPostponed_HoldThenProcess(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	log := &eventLog{}
	f.set(t, "postpone", f.postponeFn(log))

	ctx := jsexec.WithCallContext(context.Background())
	f.engine.HoldPostponedActions(ctx)
	for i := 0; i < 3; i++ {
		f.exec(ctx, `postpone('batch`+strconv.Itoa(i)+`-a'); postpone('batch`+strconv.Itoa(i)+`-b');`)
	}
	assert.Empty(t, log.all(), "held actions must not run")
	cc, ok := jsexec.CallContextFrom(ctx)
	require.True(t, ok)
	assert.True(t, cc.Held())
	assert.Equal(t, 6, cc.Pending())

	require.NoError(t, f.engine.ProcessPostponedActions(ctx))
	want := []string{"batch0-a", "batch0-b", "batch1-a", "batch1-b", "batch2-a", "batch2-b"}
	assert.Equal(t, want, log.all())
	assert.False(t, cc.Held())

	require.NoError(t, f.engine.ProcessPostponedActions(ctx))
	assert.Equal(t, want, log.all(), "each action runs exactly once")
}

func TestPostponed_ReentrantEnqueueStartsNewBatch(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	log := &eventLog{}
	ctx := jsexec.WithCallContext(context.Background())

	f.engine.AddPostponedAction(ctx, page.NewPostponedAction(f.page, "first", func(ctx context.Context) error {
		log.add("first")
		f.engine.AddPostponedAction(ctx, page.NewPostponedAction(f.page, "third", func(context.Context) error {
			log.add("third")
			return nil
		}))
		return nil
	}))
	f.engine.AddPostponedAction(ctx, page.NewPostponedAction(f.page, "second", func(context.Context) error {
		log.add("second")
		return nil
	}))

	require.NoError(t, f.engine.ProcessPostponedActions(ctx))
	assert.Equal(t, []string{"first", "second", "third"}, log.all())
}

func TestPostponed_ErrorsAreJoined(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	ctx := jsexec.WithCallContext(context.Background())
	boom := errors.New("boom")
	ran := false

	f.engine.AddPostponedAction(ctx, page.NewPostponedAction(f.page, "fails", func(context.Context) error { return boom }))
	f.engine.AddPostponedAction(ctx, page.NewPostponedAction(f.page, "runs", func(context.Context) error { ran = true; return nil }))

	err := f.engine.ProcessPostponedActions(ctx)
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran)
}

func TestPostponed_NoCallContextRunsImmediately(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	ran := false
	f.engine.AddPostponedAction(context.Background(), page.NewPostponedAction(f.page, "now", func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)
}

func blankPage(t *testing.T) *page.HtmlPage {
	t.Helper()
	p, err := page.Parse(strings.NewReader("<html></html>"), nil)
	require.NoError(t, err)
	return p
}

// -- Concurrency --

// gate blocks scripts inside probe() until released, reporting each entry.
type gate struct {
	entered  chan struct{}
	release  chan struct{}
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}, 8), release: make(chan struct{})}
}

func (g *gate) probe() {
	n := g.inFlight.Add(1)
	for {
		m := g.maxSeen.Load()
		if n <= m || g.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	g.entered <- struct{}{}
	<-g.release
	g.inFlight.Add(-1)
}

func TestConcurrency_SamePageIsSerialized(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	g := newGate()
	f.set(t, "probe", g.probe)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.exec(context.Background(), `probe()`)
		}()
	}

	<-g.entered
	select {
	case <-g.entered:
		t.Fatal("second script entered while the first held the page")
	case <-time.After(100 * time.Millisecond):
	}
	close(g.release)
	select {
	case <-g.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("second script never ran")
	}
	wg.Wait()
	assert.Equal(t, int32(1), g.maxSeen.Load())
}

func TestConcurrency_DifferentPagesRunInParallel(t *testing.T) {
	e, _ := newEngine(t, jsexec.Options{})
	g := newGate()

	var wg sync.WaitGroup
	for _, name := range []string{"one", "two"} {
		w := page.NewWebWindow(name)
		p, scope := loadPage(t, e, w, "<html></html>")
		require.NoError(t, scope.Runtime().Set("probe", g.probe))
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Execute(context.Background(), p, scope, `probe()`, name+".js")
		}()
	}

	for i := 0; i < 2; i++ {
		select {
		case <-g.entered:
		case <-time.After(5 * time.Second):
			close(g.release)
			t.Fatal("scripts on different pages were serialized")
		}
	}
	close(g.release)
	wg.Wait()
	assert.Equal(t, int32(2), g.maxSeen.Load())
}

func TestConcurrency_StalePageCallIsAbandoned(t *testing.T) {
	f := newFixture(t, jsexec.Options{ThrowExceptionOnScriptError: true})
	g := newGate()
	f.set(t, "probe", g.probe)
	var ran atomic.Bool
	f.set(t, "count", func() { ran.Store(true) })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		f.exec(context.Background(), `probe()`)
	}()
	<-g.entered

	waiting := make(chan jsexec.Result[any], 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res := f.exec(context.Background(), `count(); 'ran'`)
		waiting <- jsexec.Result[any]{Value: res.Value, Err: res.Err}
	}()

	// Let the second call reach the lock, then navigate away.
	time.Sleep(50 * time.Millisecond)
	f.window.SetEnclosedPage(blankPage(t))
	close(g.release)
	wg.Wait()

	res := <-waiting
	assert.Nil(t, res.Value)
	assert.NoError(t, res.Err)
	assert.False(t, ran.Load())
}

// -- Timers --

func TestTimers_RunThroughExecutor(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	f.engine.RegisterWindowAndMaybeStartEventLoop(f.window)

	f.exec(context.Background(), `
		var cancelled = setTimeout(function () { alert('cancelled'); }, 10);
		clearTimeout(cancelled);
		setTimeout(function (msg) { alert(msg); }, 10, 'fired');
		var ticks = 0;
		var id = setInterval(function () { if (++ticks === 3) { clearInterval(id); alert('ticked'); } }, 5);
	`)

	require.Eventually(t, func() bool {
		return len(f.client.Alerts()) == 2
	}, 5*time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []string{"fired", "ticked"}, f.client.Alerts())

	f.engine.Shutdown()
	assert.Equal(t, 0, f.window.Jobs().Len())
}

func TestTimers_StringHandlerAndStalePage(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	f.engine.RegisterWindowAndMaybeStartEventLoop(f.window)

	f.exec(context.Background(), `setTimeout("alert('from string')", 1);`)
	require.Eventually(t, func() bool {
		return len(f.client.Alerts()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	f.exec(context.Background(), `setTimeout(function () { alert('stale'); }, 50);`)
	f.window.SetEnclosedPage(blankPage(t))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, []string{"from string"}, f.client.Alerts())
}
