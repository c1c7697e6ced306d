package jsexec_test

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
	"github.com/duonglaiquang/htmlunit/internal/browser/host"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsexec"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

// -- Recording client --

type recordingClient struct {
	mu         sync.Mutex
	exceptions []*jsexec.ScriptException
	timeouts   []time.Duration
	alerts     []string
	requests   []page.Request
	log        *eventLog
}

func (c *recordingClient) ScriptException(_ *page.HtmlPage, exc *jsexec.ScriptException) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exceptions = append(c.exceptions, exc)
}

func (c *recordingClient) TimeoutError(_ *page.HtmlPage, allowed, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeouts = append(c.timeouts, allowed)
}

func (c *recordingClient) LoadDownloadedResponses(context.Context) error {
	if c.log != nil {
		c.log.add("load")
	}
	return nil
}

func (c *recordingClient) Navigate(_ context.Context, _ *page.WebWindow, req page.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	return nil
}

func (c *recordingClient) Alert(_ *page.HtmlPage, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, message)
}

func (c *recordingClient) Exceptions() []*jsexec.ScriptException {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*jsexec.ScriptException(nil), c.exceptions...)
}

func (c *recordingClient) Timeouts() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.timeouts...)
}

func (c *recordingClient) Alerts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.alerts...)
}

type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, s)
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

// -- Fixtures --

type fixture struct {
	engine *jsexec.Engine
	client *recordingClient
	window *page.WebWindow
	page   *page.HtmlPage
	scope  *host.Window
}

func newEngine(t *testing.T, opts jsexec.Options) (*jsexec.Engine, *recordingClient) {
	t.Helper()
	client := &recordingClient{log: &eventLog{}}
	e := jsexec.New(features.Chrome, client, zaptest.NewLogger(t), opts)
	t.Cleanup(e.Shutdown)
	return e, client
}

func loadPage(t *testing.T, e *jsexec.Engine, w *page.WebWindow, src string) (*page.HtmlPage, *host.Window) {
	t.Helper()
	u, err := url.Parse("http://example.com/index.html")
	require.NoError(t, err)
	p, err := page.Parse(strings.NewReader(src), u)
	require.NoError(t, err)
	w.SetEnclosedPage(p)
	scope, err := e.Initialize(w, p)
	require.NoError(t, err)
	require.NotNil(t, scope)
	return p, scope
}

func newFixture(t *testing.T, opts jsexec.Options) *fixture {
	t.Helper()
	e, client := newEngine(t, opts)
	w := page.NewWebWindow("main")
	p, scope := loadPage(t, e, w, "<html><body></body></html>")
	return &fixture{engine: e, client: client, window: w, page: p, scope: scope}
}

func (f *fixture) exec(ctx context.Context, src string) jsexec.Result[goja.Value] {
	return f.engine.Execute(ctx, f.page, f.scope, src, "test.js")
}

// set installs a Go function on the scope's global object.
func (f *fixture) set(t *testing.T, name string, fn any) {
	t.Helper()
	require.NoError(t, f.scope.Runtime().Set(name, fn))
}

// postponeFn lets scripts queue a postponed action that records its name.
func (f *fixture) postponeFn(log *eventLog) func(string) {
	return func(name string) {
		f.engine.AddPostponedAction(f.scope.Context(), page.NewPostponedAction(f.page, name, func(context.Context) error {
			log.add(name)
			return nil
		}))
	}
}

// -- Execution --

func TestExecute_Basic(t *testing.T) {
	f := newFixture(t, jsexec.Options{})

	res := f.exec(context.Background(), `(5 + 5) * 2`)
	require.False(t, res.Failed())
	assert.Equal(t, int64(20), res.Value.Export())
}

func TestExecute_HostClassesAvailable(t *testing.T) {
	f := newFixture(t, jsexec.Options{})

	res := f.exec(context.Background(), `document.body.tagName + ':' + (window instanceof Window)`)
	require.False(t, res.Failed())
	assert.Equal(t, "BODY:true", res.Value.String())
}

func TestExecute_ErrorSwallowedByDefault(t *testing.T) {
	f := newFixture(t, jsexec.Options{})

	res := f.exec(context.Background(), `throw new TypeError('boom')`)
	assert.True(t, res.Failed())
	assert.False(t, res.Rethrow)

	v, err := res.Unwrap()
	assert.NoError(t, err)
	assert.Nil(t, v)

	exceptions := f.client.Exceptions()
	require.Len(t, exceptions, 1)
	assert.Contains(t, exceptions[0].Message, "TypeError: boom")
	assert.Same(t, f.page, exceptions[0].Page)
	assert.Equal(t, `throw new TypeError('boom')`, exceptions[0].Source)
	assert.NotNil(t, exceptions[0].Thrown)
}

func TestExecute_ErrorRethrownWhenConfigured(t *testing.T) {
	f := newFixture(t, jsexec.Options{ThrowExceptionOnScriptError: true})

	_, err := f.exec(context.Background(), `undefinedFunction()`).Unwrap()
	require.Error(t, err)

	var exc *jsexec.ScriptException
	require.True(t, errors.As(err, &exc))
	assert.Contains(t, exc.Message, "ReferenceError")
	assert.Equal(t, 1, exc.Line)
	assert.Equal(t, "test.js", exc.SourceName)

	var gojaExc *goja.Exception
	assert.True(t, errors.As(err, &gojaExc), "the engine error stays reachable through Unwrap")
	assert.Len(t, f.client.Exceptions(), 1)
}

func TestCompile_SyntaxError(t *testing.T) {
	t.Run("swallowed", func(t *testing.T) {
		f := newFixture(t, jsexec.Options{})
		res := f.engine.Compile(context.Background(), f.page, f.scope, "var = ;", "broken.js", 1)

		script, err := res.Unwrap()
		assert.NoError(t, err)
		assert.Nil(t, script)
		require.Len(t, f.client.Exceptions(), 1)
		assert.Contains(t, f.client.Exceptions()[0].Message, "SyntaxError")
	})

	t.Run("thrown", func(t *testing.T) {
		f := newFixture(t, jsexec.Options{ThrowExceptionOnScriptError: true})
		_, err := f.engine.Compile(context.Background(), f.page, f.scope, "var = ;", "broken.js", 1).Unwrap()
		var exc *jsexec.ScriptException
		require.True(t, errors.As(err, &exc))
	})
}

func TestCompile_StartLineOffsetsPositions(t *testing.T) {
	f := newFixture(t, jsexec.Options{})

	res := f.engine.Compile(context.Background(), f.page, f.scope, "var a = 1;\n\nthrow new Error('x');", "page.html", 10)
	script, err := res.Unwrap()
	require.NoError(t, err)
	require.NotNil(t, script)

	f.engine.ExecuteScript(context.Background(), f.page, f.scope, script)
	exceptions := f.client.Exceptions()
	require.Len(t, exceptions, 1)
	assert.Equal(t, 12, exceptions[0].Line)
	assert.Equal(t, "page.html", exceptions[0].SourceName)
}

func TestExecuteScript_RunsAgainstAnyScope(t *testing.T) {
	e, _ := newEngine(t, jsexec.Options{})
	w1, w2 := page.NewWebWindow("one"), page.NewWebWindow("two")
	p1, s1 := loadPage(t, e, w1, "<html><head><title>one</title></head></html>")
	p2, s2 := loadPage(t, e, w2, "<html><head><title>two</title></head></html>")

	script, err := e.Compile(context.Background(), p1, s1, "document.title", "title.js", 1).Unwrap()
	require.NoError(t, err)

	v1, err := e.ExecuteScript(context.Background(), p1, s1, script).Unwrap()
	require.NoError(t, err)
	v2, err := e.ExecuteScript(context.Background(), p2, s2, script).Unwrap()
	require.NoError(t, err)
	assert.Equal(t, "one", v1.String())
	assert.Equal(t, "two", v2.String())
}

func TestCallFunction(t *testing.T) {
	f := newFixture(t, jsexec.Options{})

	fnVal := f.exec(context.Background(), `(function (a, b) { return this.base + a + b; })`).Value
	fn, ok := fnVal.(*goja.Object)
	require.True(t, ok)

	this := f.scope.Runtime().NewObject()
	require.NoError(t, this.Set("base", 1))
	res := f.engine.CallFunction(context.Background(), f.page, fn, f.scope, this,
		[]goja.Value{f.scope.Runtime().ToValue(2), f.scope.Runtime().ToValue(3)})
	require.False(t, res.Failed())
	assert.Equal(t, int64(6), res.Value.ToInteger())
}

func TestCallFunction_ScopeFromPage(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	fn := f.exec(context.Background(), `(function () { return document.URL; })`).Value.(*goja.Object)

	res := f.engine.CallFunction(context.Background(), f.page, fn, nil, nil, nil)
	require.False(t, res.Failed())
	assert.Equal(t, "http://example.com/index.html", res.Value.String())
}

// -- Error delivery --

func TestFireEvent(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	f.exec(context.Background(), `
		var seen = [];
		window.addEventListener('load', function (e) { seen.push(e.type + ':' + e.bubbles); });
		document.body.addEventListener('custom', function (e) { e.preventDefault(); seen.push('custom'); });
	`)

	res := f.engine.FireEvent(context.Background(), f.page, f.scope, nil, "load")
	require.False(t, res.Failed())
	assert.True(t, res.Value)

	res = f.engine.FireEvent(context.Background(), f.page, nil, f.page.Body(), "custom")
	require.False(t, res.Failed())
	assert.True(t, res.Value, "non-cancelable events ignore preventDefault")

	assert.Equal(t, "load:false,custom", f.exec(context.Background(), `seen.join()`).Value.String())
}

func TestErrorDelivery_OnErrorBeforeListener(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	ctx := context.Background()

	f.exec(ctx, `var seen = []; window.onerror = function (msg, src, line) { seen.push(msg + '@' + line); };`)
	f.exec(ctx, `null.x`)

	require.Len(t, f.client.Exceptions(), 1)
	seen := f.exec(ctx, `seen.join('|')`).Value.String()
	assert.Contains(t, seen, "TypeError")
	assert.Contains(t, seen, "@1")
}

func TestErrorDelivery_FailingHandlerIsReportedOnce(t *testing.T) {
	f := newFixture(t, jsexec.Options{ThrowExceptionOnScriptError: true})
	ctx := context.Background()

	f.exec(ctx, `var calls = 0; window.onerror = function () { calls++; throw new Error('handler failed'); };`)
	_, err := f.exec(ctx, `throw new Error('original')`).Unwrap()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler failed")

	exceptions := f.client.Exceptions()
	require.Len(t, exceptions, 1)
	assert.Contains(t, exceptions[0].Message, "handler failed")
	assert.Equal(t, int64(1), f.exec(ctx, `calls`).Value.ToInteger())
}

func TestErrorDelivery_MicrotaskFailure(t *testing.T) {
	f := newFixture(t, jsexec.Options{})

	res := f.exec(context.Background(), `var order = []; queueMicrotask(function () { order.push('micro'); throw new Error('late'); }); order.push('body'); 'done'`)
	require.False(t, res.Failed())
	assert.Equal(t, "done", res.Value.String())
	assert.Equal(t, "body,micro", f.exec(context.Background(), `order.join()`).Value.String())

	exceptions := f.client.Exceptions()
	require.Len(t, exceptions, 1)
	assert.Contains(t, exceptions[0].Message, "late")
}

func TestTimeout(t *testing.T) {
	f := newFixture(t, jsexec.Options{JavaScriptTimeout: 50 * time.Millisecond})
	assert.Equal(t, 50*time.Millisecond, f.engine.JavaScriptTimeout())

	res := f.exec(context.Background(), `while (true) {}`)
	require.True(t, res.Failed())
	var te *jsexec.TimeoutError
	require.True(t, errors.As(res.Err, &te))
	assert.Equal(t, 50*time.Millisecond, te.Allowed)
	assert.GreaterOrEqual(t, te.Elapsed, 50*time.Millisecond)
	assert.Empty(t, f.client.Exceptions(), "a timeout is not a script exception")
	assert.Len(t, f.client.Timeouts(), 1)

	// The runtime is usable again.
	f.engine.SetJavaScriptTimeout(0)
	res = f.exec(context.Background(), `1 + 1`)
	require.False(t, res.Failed())
	assert.Equal(t, int64(2), res.Value.ToInteger())
}

func TestTimeout_EndlessMicrotask(t *testing.T) {
	f := newFixture(t, jsexec.Options{JavaScriptTimeout: 50 * time.Millisecond})

	done := make(chan jsexec.Result[goja.Value], 1)
	go func() {
		done <- f.exec(context.Background(), `queueMicrotask(function () { while (true) {} }); queueMicrotask(function () { alert('never'); }); 'body'`)
	}()

	var res jsexec.Result[goja.Value]
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("endless microtask was not interrupted")
	}
	var te *jsexec.TimeoutError
	require.ErrorAs(t, res.Err, &te)
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, f.client.Timeouts())
	assert.Empty(t, f.client.Exceptions())
	assert.Empty(t, f.client.Alerts(), "tasks queued behind the timed out one are dropped")

	f.engine.SetJavaScriptTimeout(0)
	assert.Equal(t, int64(3), f.exec(context.Background(), `1 + 2`).Value.ToInteger())
}

func TestTimeout_BodyTimeoutDropsMicrotasks(t *testing.T) {
	f := newFixture(t, jsexec.Options{JavaScriptTimeout: 50 * time.Millisecond})

	res := f.exec(context.Background(), `queueMicrotask(function () { alert('late'); }); while (true) {}`)
	require.True(t, res.Failed())
	assert.Len(t, f.client.Timeouts(), 1)
	assert.Empty(t, f.client.Alerts())
}

func TestTimeout_NestedListenerReportedOnce(t *testing.T) {
	f := newFixture(t, jsexec.Options{JavaScriptTimeout: 50 * time.Millisecond})

	done := make(chan jsexec.Result[goja.Value], 1)
	go func() {
		done <- f.exec(context.Background(), `
			var after = 0;
			window.addEventListener('spin', function () { while (true) {} });
			for (;;) { window.dispatchEvent(new Event('spin')); after++; }`)
	}()

	var res jsexec.Result[goja.Value]
	select {
	case res = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("outer script kept running after its listener timed out")
	}
	var te *jsexec.TimeoutError
	require.ErrorAs(t, res.Err, &te)
	assert.Equal(t, []time.Duration{50 * time.Millisecond}, f.client.Timeouts())
	assert.Empty(t, f.client.Exceptions())

	f.engine.SetJavaScriptTimeout(0)
	assert.Equal(t, int64(0), f.exec(context.Background(), `after`).Value.ToInteger())
}

func TestCallFunction_NilFunction(t *testing.T) {
	f := newFixture(t, jsexec.Options{ThrowExceptionOnScriptError: true})

	var res jsexec.Result[goja.Value]
	require.NotPanics(t, func() {
		res = f.engine.CallFunction(context.Background(), f.page, nil, f.scope, nil, nil)
	})
	_, err := res.Unwrap()
	var exc *jsexec.ScriptException
	require.ErrorAs(t, err, &exc)
	assert.Contains(t, exc.Message, "TypeError")
}

func TestHostTypeErrors(t *testing.T) {
	f := newFixture(t, jsexec.Options{})

	res := f.exec(context.Background(), `
		var msg;
		try { new Event(); } catch (e) { msg = (e instanceof TypeError) + ':' + e.message; }
		msg`)
	require.False(t, res.Failed())
	assert.Equal(t, "true:Failed to construct 'Event': 1 argument required, but only 0 present.", res.Value.String())

	res = f.exec(context.Background(), `queueMicrotask(42)`)
	require.True(t, res.Failed())
	assert.Contains(t, res.Err.Error(), "Failed to execute 'queueMicrotask' on 'Window'")
}

// -- Shutdown --

func TestShutdown_CallsBecomeNoOps(t *testing.T) {
	f := newFixture(t, jsexec.Options{ThrowExceptionOnScriptError: true})
	fn := f.exec(context.Background(), `(function () { alert('called'); })`).Value.(*goja.Object)

	f.engine.Shutdown()
	f.engine.Shutdown()

	assert.NotPanics(t, func() {
		v, err := f.exec(context.Background(), `alert('after')`).Unwrap()
		assert.NoError(t, err)
		assert.Nil(t, v)

		v, err = f.engine.CallFunction(context.Background(), f.page, fn, f.scope, nil, nil).Unwrap()
		assert.NoError(t, err)
		assert.Nil(t, v)

		ran := false
		f.engine.AddPostponedAction(jsexec.WithCallContext(context.Background()),
			page.NewPostponedAction(f.page, "late", func(context.Context) error { ran = true; return nil }))
		assert.False(t, ran)

		scope, err := f.engine.Initialize(f.window, f.page)
		assert.NoError(t, err)
		assert.Nil(t, scope)

		f.engine.RegisterWindowAndMaybeStartEventLoop(f.window)
	})
	assert.Empty(t, f.client.Alerts())
}

func TestPrepareShutdown_DropsPostponedActions(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	log := &eventLog{}
	f.set(t, "postpone", f.postponeFn(log))

	f.engine.PrepareShutdown()
	res := f.exec(context.Background(), `postpone('a'); 'still runs'`)
	require.False(t, res.Failed())
	assert.Equal(t, "still runs", res.Value.String())
	assert.Empty(t, log.all())
}

// -- Misc --

func TestJavaScriptClass(t *testing.T) {
	e, _ := newEngine(t, jsexec.Options{})

	c, ok := e.JavaScriptClass(reflect.TypeOf((*host.HTMLFormElement)(nil)))
	require.True(t, ok)
	assert.Equal(t, "HTMLFormElement", c.ClassName)
	assert.Equal(t, "HTMLElement", c.ExtendedClassName)

	_, ok = e.JavaScriptClass(reflect.TypeOf(0))
	assert.False(t, ok)
	assert.NotNil(t, e.Registry())
}

func TestIsScriptRunning(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	var during bool
	f.set(t, "probe", func() { during = f.engine.IsScriptRunning() })

	assert.False(t, f.engine.IsScriptRunning())
	f.exec(context.Background(), `probe()`)
	assert.True(t, during)
	assert.False(t, f.engine.IsScriptRunning())
}

func TestNestedCallReentersPageLock(t *testing.T) {
	f := newFixture(t, jsexec.Options{})
	var starting *page.HtmlPage
	f.set(t, "nested", func(fn *goja.Object) goja.Value {
		ctx := f.scope.Context()
		if cc, ok := jsexec.CallContextFrom(ctx); ok {
			starting = cc.StartingPage()
		}
		return f.engine.CallFunction(ctx, f.page, fn, f.scope, nil, nil).Value
	})

	done := make(chan goja.Value, 1)
	go func() {
		done <- f.exec(context.Background(), `nested(function () { return 41; }) + 1`).Value
	}()
	select {
	case v := <-done:
		assert.Equal(t, int64(42), v.ToInteger())
	case <-time.After(5 * time.Second):
		t.Fatal("nested call deadlocked on the page lock")
	}
	assert.Same(t, f.page, starting)
}
