// internal/browser/host/window.go
package host

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

// Environment is the execution side a window scope calls back into. It is implemented by
// the script engine; host code never runs script without going through it.
type Environment interface {
	// CallFunction invokes fn the same way the engine invokes any top-level function:
	// serialized on the page, with errors reported before they are returned.
	CallFunction(ctx context.Context, p *page.HtmlPage, fn *goja.Object, scope *Window, this goja.Value, args []goja.Value) (goja.Value, error)
	// Evaluate runs source text against the scope.
	Evaluate(ctx context.Context, p *page.HtmlPage, scope *Window, source, sourceName string) (goja.Value, error)
	AddPostponedAction(ctx context.Context, action page.PostponedAction)
	// StartingPage is the page of the scope that began the outermost call on ctx.
	StartingPage(ctx context.Context) *page.HtmlPage
	Navigate(ctx context.Context, w *page.WebWindow, req page.Request) error
	Alert(p *page.HtmlPage, message string)
}

// ErrorReport is what the window's error handler receives about a failed script.
type ErrorReport struct {
	Message    string
	SourceName string
	Line       int
	Column     int
	// Error is the thrown script value, or nil when the failure was not a throw.
	Error goja.Value
}

var (
	errNoPage     = errors.New("scope has no page")
	errNoIterator = errors.New("engine has no array iterator")

	errNoConstructor = errors.New("engine has no such constructor")
)

type errorReporter interface {
	Report() ErrorReport
}

// Window is the root scope of one page: the global object, the prototypes of every host
// class keyed by class name and by native type, the browser version the scope was built
// for, and the identity map between Go natives and their script objects.
type Window struct {
	EventTarget

	rt      *goja.Runtime
	logger  *zap.Logger
	version *features.BrowserVersion
	global  *Object

	protoByName   map[string]*goja.Object
	protoByNative map[reflect.Type]*goja.Object

	webWindow *page.WebWindow
	page      *page.HtmlPage
	env       Environment

	objects  map[any]*goja.Object
	natives  map[*goja.Object]any
	domNodes map[*html.Node]any

	liveLists map[liveKey]any

	iteratorProtos map[string]*goja.Object

	ctx        context.Context
	microtasks []func() error

	document  *HTMLDocument
	location  *Location
	console   *Console
	navigator *Navigator
	onerror   goja.Value

	initOnce sync.Once
}

// NewWindow wraps rt's global object as a window scope for version. The browser version
// is fixed for the lifetime of the scope.
func NewWindow(rt *goja.Runtime, version *features.BrowserVersion, logger *zap.Logger) *Window {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Window{
		rt:             rt,
		logger:         logger.Named("window"),
		version:        version,
		protoByName:    make(map[string]*goja.Object),
		protoByNative:  make(map[reflect.Type]*goja.Object),
		objects:        make(map[any]*goja.Object),
		natives:        make(map[*goja.Object]any),
		domNodes:       make(map[*html.Node]any),
		liveLists:      make(map[liveKey]any),
		iteratorProtos: make(map[string]*goja.Object),
		navigator:      &Navigator{},
		onerror:        goja.Null(),
	}
	w.global = NewObject(rt.GlobalObject(), "Window", w)
	w.bind(w.global.JS(), w)
	return w
}

func (w *Window) Runtime() *goja.Runtime { return w.rt }

func (w *Window) BrowserVersion() *features.BrowserVersion { return w.version }

func (w *Window) Logger() *zap.Logger { return w.logger }

// Global is the root host object.
func (w *Window) Global() *Object { return w.global }

func (w *Window) WebWindow() *page.WebWindow { return w.webWindow }

func (w *Window) Page() *page.HtmlPage { return w.page }

// SetPrototypes attaches the lookup tables built during bootstrap. Both maps index the
// same prototype objects.
func (w *Window) SetPrototypes(byName map[string]*goja.Object, byNative map[reflect.Type]*goja.Object) {
	w.protoByName = byName
	w.protoByNative = byNative
}

// Prototype returns the prototype registered for a class name.
func (w *Window) Prototype(className string) (*goja.Object, bool) {
	p, ok := w.protoByName[className]
	return p, ok
}

// PrototypeOf returns the prototype registered for a native type.
func (w *Window) PrototypeOf(t reflect.Type) (*goja.Object, bool) {
	p, ok := w.protoByNative[t]
	return p, ok
}

// Initialize binds the scope to its window and page. Only the first call has any effect.
func (w *Window) Initialize(webWindow *page.WebWindow, p *page.HtmlPage, env Environment) {
	w.initOnce.Do(func() {
		w.webWindow = webWindow
		w.page = p
		w.env = env
		if p != nil {
			w.document = &HTMLDocument{Node: Node{node: p.Root()}}
			w.domNodes[p.Root()] = w.document
			w.location = &Location{window: w}
		}
		w.console = &Console{}
		if webWindow != nil {
			webWindow.SetScriptableObject(w)
		}
	})
}

// -- Context binding --

// BindContext records the call context of the script currently running in this scope, so
// host code triggered by that script can reach it. The returned func restores the
// previous binding.
func (w *Window) BindContext(ctx context.Context) (restore func()) {
	prev := w.ctx
	w.ctx = ctx
	return func() { w.ctx = prev }
}

// Context is the bound call context, or a background context outside any call.
func (w *Window) Context() context.Context {
	if w.ctx == nil {
		return context.Background()
	}
	return w.ctx
}

// -- Identity map --

func (w *Window) bind(obj *goja.Object, native any) {
	w.objects[native] = obj
	w.natives[obj] = native
}

// Unwrap returns the native behind a script value, or nil.
func (w *Window) Unwrap(v goja.Value) any {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	return w.natives[obj]
}

// Wrap returns the script object for native, creating it on first use with the prototype
// registered for the native's type. Indexed natives get an object that also answers
// index and name lookups.
func (w *Window) Wrap(native any) goja.Value {
	if native == nil {
		return goja.Null()
	}
	if obj, ok := w.objects[native]; ok {
		return obj
	}
	var obj *goja.Object
	_, isIndexed := native.(indexed)
	_, isNamed := native.(named)
	if isIndexed || isNamed {
		h := &indexedHandler{w: w, target: native, expando: make(map[string]goja.Value)}
		obj = w.rt.NewDynamicObject(h)
		h.obj = obj
	} else {
		obj = w.rt.NewObject()
	}
	if proto, ok := w.protoByNative[reflect.TypeOf(native)]; ok {
		if err := obj.SetPrototype(proto); err != nil {
			w.logger.Warn("Failed to link wrapper prototype", zap.String("native", reflect.TypeOf(native).String()), zap.Error(err))
		}
	}
	w.bind(obj, native)
	return obj
}

// WrapNode returns the script object for a DOM node.
func (w *Window) WrapNode(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	return w.Wrap(w.nodeNative(n))
}

// nodeNative returns the native for n, creating one of the right type on first use.
func (w *Window) nodeNative(n *html.Node) any {
	if native, ok := w.domNodes[n]; ok {
		return native
	}
	var native any
	switch n.Type {
	case html.ElementNode:
		base := HTMLElement{Node: Node{node: n}}
		switch n.Data {
		case "form":
			native = &HTMLFormElement{HTMLElement: base}
		case "input":
			native = &HTMLInputElement{HTMLElement: base}
		case "img":
			native = &HTMLImageElement{HTMLElement: base}
		case "option":
			native = &HTMLOptionElement{HTMLElement: base}
		default:
			native = &base
		}
	case html.TextNode:
		native = &Text{Node: Node{node: n}}
	case html.DocumentNode:
		native = &HTMLDocument{Node: Node{node: n}}
	default:
		native = &Node{node: n}
	}
	w.domNodes[n] = native
	return native
}

// adoptNode registers a native created by a script constructor.
func (w *Window) adoptNode(obj *goja.Object, native domNode) {
	w.domNodes[native.DomNode()] = native
	w.bind(obj, native)
}

// -- Microtasks --

// QueueMicrotask appends a task run when the current script returns.
func (w *Window) QueueMicrotask(task func() error) {
	w.microtasks = append(w.microtasks, task)
}

// RunMicrotasks drains the microtask queue, including tasks queued while draining, and
// returns the failures in order. A failure for which abort reports true ends the drain
// and discards the tasks still queued.
func (w *Window) RunMicrotasks(abort func(error) bool) []error {
	var errs []error
	for len(w.microtasks) > 0 {
		task := w.microtasks[0]
		w.microtasks = w.microtasks[1:]
		if err := task(); err != nil {
			errs = append(errs, err)
			if abort != nil && abort(err) {
				break
			}
		}
	}
	w.microtasks = nil
	return errs
}

// DiscardMicrotasks empties the microtask queue without running it.
func (w *Window) DiscardMicrotasks() {
	w.microtasks = nil
}

// -- Error handler --

// TriggerOnError invokes window.onerror for a failed script. It returns the handler's
// own failure, if any; the caller must not route that failure back here.
func (w *Window) TriggerOnError(err error) error {
	fn, ok := goja.AssertFunction(w.onerror)
	if !ok {
		return nil
	}
	rep := ErrorReport{Message: err.Error()}
	var r errorReporter
	if errors.As(err, &r) {
		rep = r.Report()
	}
	thrown := rep.Error
	if thrown == nil {
		thrown = goja.Null()
	}
	_, callErr := fn(w.global.JS(),
		w.rt.ToValue(rep.Message),
		w.rt.ToValue(rep.SourceName),
		w.rt.ToValue(rep.Line),
		w.rt.ToValue(rep.Column),
		thrown)
	return callErr
}

// -- Helpers for member implementations --

func (w *Window) throwTypeError(format string, args ...any) {
	panic(w.rt.NewTypeError("%s", fmt.Sprintf(format, args...)))
}

func (w *Window) postpone(description string, fn func(ctx context.Context) error) {
	if w.env == nil {
		return
	}
	w.env.AddPostponedAction(w.Context(), page.NewPostponedAction(w.page, description, fn))
}

// startingPage is the page relative URLs resolve against: the page of the scope that
// began the running call, falling back to this scope's page.
func (w *Window) startingPage() *page.HtmlPage {
	if w.env != nil {
		if p := w.env.StartingPage(w.Context()); p != nil {
			return p
		}
	}
	return w.page
}

// callback runs a script function through the engine when one is attached, directly
// otherwise.
func (w *Window) callback(fn *goja.Object, this goja.Value, args ...goja.Value) (goja.Value, error) {
	if w.env != nil {
		return w.env.CallFunction(w.Context(), w.page, fn, w, this, args)
	}
	call, ok := goja.AssertFunction(fn)
	if !ok {
		return goja.Undefined(), nil
	}
	return call(this, args...)
}

func scopeOf(s jsconfig.Scope) *Window {
	w, ok := s.(*Window)
	if !ok {
		panic("host: member invoked outside a window scope")
	}
	return w
}

// native unwraps this as a T or throws "Illegal invocation".
func native[T any](w *Window, this goja.Value) T {
	if n, ok := w.Unwrap(this).(T); ok {
		return n
	}
	panic(w.rt.NewTypeError("Illegal invocation"))
}
