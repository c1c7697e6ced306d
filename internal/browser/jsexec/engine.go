// internal/browser/jsexec/engine.go
package jsexec

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
	"github.com/duonglaiquang/htmlunit/internal/browser/host"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsbind"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

var errNoScope = errors.New("no window scope for the call")

// ErrorListener receives every script failure the engine reports.
type ErrorListener interface {
	ScriptException(p *page.HtmlPage, exc *ScriptException)
	TimeoutError(p *page.HtmlPage, allowed, elapsed time.Duration)
}

// Client is the browser side of the engine.
type Client interface {
	ErrorListener
	// LoadDownloadedResponses hands completed background downloads to their pages. It
	// runs before postponed actions are drained.
	LoadDownloadedResponses(ctx context.Context) error
	Navigate(ctx context.Context, w *page.WebWindow, req page.Request) error
	Alert(p *page.HtmlPage, message string)
}

// Options configure an Engine.
type Options struct {
	// ThrowExceptionOnScriptError makes Result.Unwrap return script failures instead of
	// swallowing them after they are reported.
	ThrowExceptionOnScriptError bool
	// JavaScriptTimeout bounds a single top-level call. Zero means no limit.
	JavaScriptTimeout time.Duration
	MaxCallStackSize  int
	Bootstrap         jsbind.Options
	// Registry overrides the host class table.
	Registry *jsconfig.Registry
}

// Script is a compiled script, ready to be executed against any scope.
type Script struct {
	program    *goja.Program
	Source     string
	SourceName string
	StartLine  int
}

// Engine coordinates every script execution of one client: it builds window scopes,
// serializes calls per page, converts and reports failures, and drains postponed
// actions.
type Engine struct {
	version      *features.BrowserVersion
	client       Client
	logger       *zap.Logger
	opts         Options
	registry     *jsconfig.Registry
	bootstrapper *jsbind.Bootstrapper
	env          *environment

	timeout         atomic.Int64
	running         atomic.Int32
	shutdownPending atomic.Bool
	shutdown        atomic.Bool

	mu       sync.Mutex
	windows  map[*page.WebWindow]struct{}
	executor *executor
}

// New creates an engine for a browser version. A nil client is allowed; failures are
// then only logged.
func New(version *features.BrowserVersion, client Client, logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("jsexec")
	registry := opts.Registry
	if registry == nil {
		registry = host.NewRegistry(logger)
	}
	e := &Engine{
		version:      version,
		client:       client,
		logger:       log,
		opts:         opts,
		registry:     registry,
		bootstrapper: jsbind.NewBootstrapper(registry, logger, opts.Bootstrap),
		windows:      make(map[*page.WebWindow]struct{}),
	}
	e.env = &environment{e: e}
	e.timeout.Store(int64(opts.JavaScriptTimeout))
	return e
}

func (e *Engine) Registry() *jsconfig.Registry { return e.registry }

func (e *Engine) BrowserVersion() *features.BrowserVersion { return e.version }

// JavaScriptClass returns the class configuration exposing instances of t.
func (e *Engine) JavaScriptClass(t reflect.Type) (*jsconfig.ClassConfiguration, bool) {
	set, err := e.registry.Configuration(e.version)
	if err != nil {
		e.logger.Error("Class configuration unavailable", zap.Error(err))
		return nil, false
	}
	return set.ByNative(t)
}

func (e *Engine) JavaScriptTimeout() time.Duration { return time.Duration(e.timeout.Load()) }

func (e *Engine) SetJavaScriptTimeout(d time.Duration) { e.timeout.Store(int64(d)) }

// IsScriptRunning reports whether any call is executing script right now.
func (e *Engine) IsScriptRunning() bool { return e.running.Load() > 0 }

func (e *Engine) isShutdown() bool { return e.shutdown.Load() }

// Initialize builds the window scope for p on a fresh runtime and binds it to window.
// After shutdown it does nothing and returns nil.
func (e *Engine) Initialize(window *page.WebWindow, p *page.HtmlPage) (*host.Window, error) {
	if e.isShutdown() {
		e.logger.Debug("Initialize called after shutdown")
		return nil, nil
	}
	rt := goja.New()
	if e.opts.MaxCallStackSize > 0 {
		rt.SetMaxCallStackSize(e.opts.MaxCallStackSize)
	}
	scope, err := e.bootstrapper.Bootstrap(rt, e.version, window, p, e.env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize window scope: %w", err)
	}
	return scope.Window, nil
}

// Compile compiles source for later execution. startLine is the line the source starts
// at in its document, so reported positions match the page. A syntax error is reported
// like any script failure; when swallowed the result holds no script.
func (e *Engine) Compile(ctx context.Context, p *page.HtmlPage, scope *host.Window, source, sourceName string, startLine int) Result[*Script] {
	return invoke(ctx, e, p, scope, source, sourceName, func(*goja.Runtime) (*Script, error) {
		return compile(source, sourceName, startLine)
	})
}

// Execute compiles and runs source against scope.
func (e *Engine) Execute(ctx context.Context, p *page.HtmlPage, scope *host.Window, source, sourceName string) Result[goja.Value] {
	return invoke(ctx, e, p, scope, source, sourceName, func(rt *goja.Runtime) (goja.Value, error) {
		script, err := compile(source, sourceName, 1)
		if err != nil {
			return nil, err
		}
		return rt.RunProgram(script.program)
	})
}

// ExecuteScript runs a compiled script against scope.
func (e *Engine) ExecuteScript(ctx context.Context, p *page.HtmlPage, scope *host.Window, script *Script) Result[goja.Value] {
	if script == nil {
		return Result[goja.Value]{}
	}
	return invoke(ctx, e, p, scope, script.Source, script.SourceName, func(rt *goja.Runtime) (goja.Value, error) {
		return rt.RunProgram(script.program)
	})
}

// CallFunction calls fn with this and args under the same guarantees as Execute.
func (e *Engine) CallFunction(ctx context.Context, p *page.HtmlPage, fn *goja.Object, scope *host.Window, this goja.Value, args []goja.Value) Result[goja.Value] {
	if fn == nil {
		err := convert(errors.New("TypeError: undefined is not a function"), p, "", "")
		return Result[goja.Value]{Err: err, Rethrow: e.opts.ThrowExceptionOnScriptError}
	}
	return invoke(ctx, e, p, scope, fn.String(), "", func(rt *goja.Runtime) (goja.Value, error) {
		call, ok := goja.AssertFunction(fn)
		if !ok {
			return nil, fmt.Errorf("TypeError: %s is not a function", fn)
		}
		if this == nil {
			this = goja.Undefined()
		}
		return call(this, args...)
	})
}

// FireEvent dispatches a plain, non-bubbling event of type typ at n, or at the window
// when n is nil. Listeners run serialized with page scripts like any other call; the
// result reports whether the default action is still allowed.
func (e *Engine) FireEvent(ctx context.Context, p *page.HtmlPage, scope *host.Window, n *html.Node, typ string) Result[bool] {
	target := scopeFor(p, scope)
	return invoke(ctx, e, p, target, "", typ, func(*goja.Runtime) (bool, error) {
		return target.Fire(n, typ, false, false), nil
	})
}

func compile(source, sourceName string, startLine int) (*Script, error) {
	text := source
	if startLine > 1 {
		text = strings.Repeat("\n", startLine-1) + source
	}
	prg, err := goja.Compile(sourceName, text, false)
	if err != nil {
		return nil, err
	}
	return &Script{program: prg, Source: source, SourceName: sourceName, StartLine: startLine}, nil
}

// scopeFor falls back to the scope bound to the page's window.
func scopeFor(p *page.HtmlPage, scope *host.Window) *host.Window {
	if scope != nil || p == nil || p.EnclosingWindow() == nil {
		return scope
	}
	w, _ := p.EnclosingWindow().ScriptableObject().(*host.Window)
	return w
}

// invoke is the guarded call every entry point goes through. It holds the page lock for
// the body and the microtasks it queues, converts and reports failures, and drains the
// postponed actions once the outermost call has returned.
func invoke[T any](ctx context.Context, e *Engine, p *page.HtmlPage, scope *host.Window, source, sourceName string, body func(rt *goja.Runtime) (T, error)) Result[T] {
	if e.isShutdown() {
		e.logger.Debug("Script call ignored after shutdown", zap.String("source", sourceName))
		return Result[T]{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = WithCallContext(ctx)
	cc, _ := CallContextFrom(ctx)

	scope = scopeFor(p, scope)
	if scope == nil {
		return Result[T]{Err: errNoScope, Rethrow: e.opts.ThrowExceptionOnScriptError}
	}

	res := guarded(ctx, e, cc, p, scope, source, sourceName, body)

	if cc.Depth() == 0 && !cc.hold {
		if err := e.ProcessPostponedActions(ctx); err != nil {
			e.logger.Warn("Postponed action failed", zap.Error(err))
		}
	}
	return res
}

func guarded[T any](ctx context.Context, e *Engine, cc *CallContext, p *page.HtmlPage, scope *host.Window, source, sourceName string, body func(rt *goja.Runtime) (T, error)) Result[T] {
	if p != nil {
		mon := p.Monitor()
		mon.Enter(cc)
		defer mon.Exit(cc)
		// The page may have been replaced while we waited.
		if !p.IsEnclosed() {
			e.logger.Debug("Script call abandoned for a page that is no longer enclosed", zap.Stringer("page", p))
			return Result[T]{}
		}
	}

	cc.push(scope, p)
	defer cc.pop()
	restore := scope.BindContext(ctx)
	defer restore()
	e.running.Add(1)
	defer e.running.Add(-1)

	rt := scope.Runtime()
	stop := e.watchdog(cc, rt)
	defer stop()

	value, err := body(rt)
	if err != nil {
		err = convert(err, p, source, sourceName)
	}

	// The watchdog stays armed while microtasks drain. Nothing runs after a timeout.
	timeout, _ := err.(*TimeoutError)
	if timeout != nil {
		scope.DiscardMicrotasks()
	} else {
		for _, taskErr := range scope.RunMicrotasks(isTimeout) {
			taskErr = convert(taskErr, p, "", "microtask")
			if te, ok := taskErr.(*TimeoutError); ok {
				timeout = te
				break
			}
			e.handleError(p, scope, taskErr, true)
		}
	}
	if timeout == nil {
		timeout = cc.timeout
	}

	if timeout != nil {
		return interrupted[T](e, cc, p, timeout)
	}
	if err != nil {
		var zero T
		return Result[T]{Value: zero, Err: e.handleError(p, scope, err, true), Rethrow: e.opts.ThrowExceptionOnScriptError}
	}
	return Result[T]{Value: value}
}

// interrupted ends a call the watchdog stopped. A nested call does not report: host code
// between it and the outermost call may swallow the error, so the interrupt is raised
// again on the outermost runtime and the outermost call reports the timeout once.
func interrupted[T any](e *Engine, cc *CallContext, p *page.HtmlPage, te *TimeoutError) Result[T] {
	if cc.Depth() > 1 {
		cc.timeout = te
		cc.StartingScope().Runtime().Interrupt(te)
		return Result[T]{Err: te, Rethrow: true}
	}
	cc.timeout = nil
	return Result[T]{Err: e.handleError(p, nil, te, false), Rethrow: e.opts.ThrowExceptionOnScriptError}
}

// isTimeout reports whether err is the watchdog's interrupt.
func isTimeout(err error) bool {
	var (
		te        *TimeoutError
		interrupt *goja.InterruptedError
	)
	if errors.As(err, &te) {
		return true
	}
	if errors.As(err, &interrupt) {
		_, ok := interrupt.Value().(*TimeoutError)
		return ok
	}
	return false
}

// watchdog interrupts the runtime once the outermost call exceeds the timeout. The
// returned func disarms it and clears any interrupt that fired too late to matter.
func (e *Engine) watchdog(cc *CallContext, rt *goja.Runtime) (stop func()) {
	allowed := e.JavaScriptTimeout()
	if allowed <= 0 || cc.Depth() > 1 {
		return func() {}
	}
	var (
		mu   sync.Mutex
		done bool
	)
	start := time.Now()
	timer := time.AfterFunc(allowed, func() {
		mu.Lock()
		defer mu.Unlock()
		if !done {
			rt.Interrupt(&TimeoutError{Allowed: allowed, Elapsed: time.Since(start)})
		}
	})
	return func() {
		timer.Stop()
		mu.Lock()
		done = true
		mu.Unlock()
		rt.ClearInterrupt()
	}
}

// handleError delivers a converted failure: the window's onerror handler first when
// asked, then the listener. A failing handler replaces the original failure and is
// reported without triggering the handler again. The returned error is the one that was
// reported.
func (e *Engine) handleError(p *page.HtmlPage, scope *host.Window, err error, triggerOnError bool) error {
	if te, ok := err.(*TimeoutError); ok {
		e.logger.Info("Script timed out",
			zap.Duration("allowed", te.Allowed),
			zap.Duration("elapsed", te.Elapsed))
		if e.client != nil {
			e.client.TimeoutError(p, te.Allowed, te.Elapsed)
		}
		return te
	}

	exc, ok := err.(*ScriptException)
	if !ok {
		exc = &ScriptException{Page: p, Message: err.Error(), Err: err}
	}
	if triggerOnError && scope != nil {
		if handlerErr := scope.TriggerOnError(exc); handlerErr != nil {
			return e.handleError(p, scope, convert(handlerErr, p, "", "onerror"), false)
		}
	}
	if e.client != nil {
		e.client.ScriptException(p, exc)
	} else {
		e.logger.Error("Script error", zap.Error(exc))
	}
	return exc
}

// RegisterWindowAndMaybeStartEventLoop makes window's timers run, starting the job
// executor on first use.
func (e *Engine) RegisterWindowAndMaybeStartEventLoop(window *page.WebWindow) {
	if e.isShutdown() || e.shutdownPending.Load() {
		e.logger.Debug("Window registration ignored after shutdown")
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.executor == nil {
		e.executor = newExecutor(e)
		e.executor.start()
	}
	e.windows[window] = struct{}{}
	window.Jobs().SetScheduler(e.executor)
}

// PrepareShutdown stops accepting postponed actions and window registrations. Calls
// already in flight finish normally.
func (e *Engine) PrepareShutdown() {
	e.shutdownPending.Store(true)
}

// Shutdown latches the engine off and stops the job executor. Every later call is a
// no-op. Shutdown is idempotent.
func (e *Engine) Shutdown() {
	e.shutdownPending.Store(true)
	if e.shutdown.Swap(true) {
		return
	}
	e.mu.Lock()
	exec := e.executor
	e.executor = nil
	for w := range e.windows {
		w.Jobs().SetScheduler(nil)
		w.Jobs().Clear()
	}
	e.windows = make(map[*page.WebWindow]struct{})
	e.mu.Unlock()

	if exec != nil {
		exec.stop()
	}
	e.logger.Debug("Engine shut down")
}
