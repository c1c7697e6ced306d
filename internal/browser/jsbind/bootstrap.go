// internal/browser/jsbind/bootstrap.go
package jsbind

import (
	"bytes"
	"fmt"
	"reflect"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
	"github.com/duonglaiquang/htmlunit/internal/browser/host"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

const windowClassName = "Window"

// Options are the client settings that change what a scope exposes.
type Options struct {
	// WebSocketEnabled keeps the WebSocket global when the engine provides one.
	WebSocketEnabled bool
	// FetchPolyfillEnabled installs the fetch polyfill.
	FetchPolyfillEnabled bool
	// Polyfills run after the scope is fully wired, in order.
	Polyfills []Polyfill
}

// DefaultOptions mirror the defaults of a freshly created client.
func DefaultOptions() Options {
	return Options{WebSocketEnabled: true}
}

// Bootstrapper builds window scopes from the class registry.
type Bootstrapper struct {
	registry *jsconfig.Registry
	logger   *zap.Logger
	opts     Options
}

// NewBootstrapper creates a bootstrapper. A nil registry uses the host class table.
func NewBootstrapper(registry *jsconfig.Registry, logger *zap.Logger, opts Options) *Bootstrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = host.NewRegistry(logger)
	}
	return &Bootstrapper{
		registry: registry,
		logger:   logger.Named("bootstrap"),
		opts:     opts,
	}
}

func (b *Bootstrapper) Registry() *jsconfig.Registry { return b.registry }

// Scope is the outcome of one bootstrap: the wired window and the class table it was
// built from.
type Scope struct {
	Window  *host.Window
	Classes *jsconfig.ClassSet
	// WiringFailures counts members that could not be wired and were skipped.
	WiringFailures int
}

// build carries the state shared by the bootstrap steps.
type build struct {
	*wirer
	set     *jsconfig.ClassSet
	version *features.BrowserVersion
	opts    Options

	root        *host.Object
	windowCtor  *goja.Object
	protos      map[string]*host.Object
	ctors       map[string]*goja.Object
	protoByName map[string]*goja.Object
	protoByType map[reflect.Type]*goja.Object
}

// Bootstrap builds a fresh scope for one window on rt. Configuration errors are fatal
// and returned; problems wiring individual members are logged and skipped.
func (b *Bootstrapper) Bootstrap(rt *goja.Runtime, version *features.BrowserVersion, webWindow *page.WebWindow, p *page.HtmlPage, env host.Environment) (*Scope, error) {
	set, err := b.registry.Configuration(version)
	if err != nil {
		return nil, fmt.Errorf("failed to load class configuration for %s: %w", version, err)
	}

	bs := &build{
		set:         set,
		version:     version,
		opts:        b.opts,
		protos:      make(map[string]*host.Object, set.Len()),
		ctors:       make(map[string]*goja.Object, set.Len()),
		protoByName: make(map[string]*goja.Object, set.Len()),
		protoByType: make(map[reflect.Type]*goja.Object, set.Len()),
	}

	// 1. Root object over the engine's standard global scope.
	w := host.NewWindow(rt, version, b.logger)
	bs.wirer = &wirer{w: w, rt: rt, logger: b.logger}
	bs.root = w.Global()
	bs.initRoot()

	// 2. Engine globals the browser does not have.
	bs.patchStandardScope()

	// 3. Iterator prototypes.
	if err := host.InstallIteratorPrototypes(w); err != nil {
		bs.warn("Iterator", "prototype", err)
	}

	// 4. Intl.
	if err := host.InstallIntl(w); err != nil {
		bs.warn("Intl", "Intl", err)
	}

	// 5. Prototypes and their members.
	bs.configurePrototypes()

	// 6. Constructor namespace objects.
	bs.configureCompanions()

	// 7. Constructors.
	bs.configureConstructors()

	// 8. Constructors with fixed signatures.
	bs.configureAliasConstructors()

	// 9. Prototype chains.
	bs.linkPrototypes()

	// 10. Engine cleanup and overrides.
	bs.cleanup()

	// 11. Lookup tables, then bind the scope to its window and page.
	w.SetPrototypes(bs.protoByName, bs.protoByType)
	w.Initialize(webWindow, p, env)

	// 12. Polyfills.
	bs.applyPolyfills()

	if bs.failed > 0 {
		b.logger.Warn("Scope bootstrapped with wiring failures",
			zap.String("browser", version.Nickname()),
			zap.Int("failures", bs.failed))
	} else {
		b.logger.Debug("Scope bootstrapped",
			zap.String("browser", version.Nickname()),
			zap.Int("classes", set.Len()))
	}
	return &Scope{Window: w, Classes: set, WiringFailures: bs.failed}, nil
}

func (bs *build) initRoot() {
	if err := bs.root.SetClassName(windowClassName); err != nil {
		bs.warn(windowClassName, "Symbol.toStringTag", err)
	}
	ctor, err := bs.illegalConstructor(windowClassName)
	if err != nil {
		bs.warn(windowClassName, "constructor", err)
		return
	}
	bs.windowCtor = ctor
	if err := bs.root.DefineProperty("constructor", ctor, jsconfig.DontEnum|jsconfig.Permanent|jsconfig.ReadOnly); err != nil {
		bs.warn(windowClassName, "constructor", err)
	}
	if err := bs.root.DefineProperty(windowClassName, ctor, jsconfig.DontEnum); err != nil {
		bs.warn(windowClassName, windowClassName, err)
	}
}

// patchStandardScope removes engine globals with no browser equivalent and applies the
// Error extensions of the emulated browser.
func (bs *build) patchStandardScope() {
	for _, name := range []string{"Continuation", "Iterator", "StopIteration", "BigInt", "require", "module", "exports", "process"} {
		if err := bs.root.Delete(name); err != nil {
			bs.warn(windowClassName, name, err)
		}
	}

	errorCtor, ok := bs.rt.Get("Error").(*goja.Object)
	if !ok {
		bs.warn("Error", "Error", fmt.Errorf("engine has no Error constructor"))
		return
	}
	errObj := host.NewObject(errorCtor, "Error", bs.w)
	if bs.version.HasFeature(features.JSErrorStackTraceLimit) {
		if err := errObj.DefineProperty("stackTraceLimit", bs.rt.ToValue(10), jsconfig.Empty); err != nil {
			bs.warn("Error", "stackTraceLimit", err)
		}
	} else if err := errObj.Delete("stackTraceLimit"); err != nil {
		bs.warn("Error", "stackTraceLimit", err)
	}

	if bs.version.HasFeature(features.JSErrorCaptureStackTrace) {
		if _, exists := goja.AssertFunction(errorCtor.Get("captureStackTrace")); !exists {
			fn, err := bs.function("captureStackTrace", 2, captureStackTrace)
			if err == nil {
				err = errObj.DefineProperty("captureStackTrace", fn, jsconfig.DontEnum)
			}
			if err != nil {
				bs.warn("Error", "captureStackTrace", err)
			}
		}
	} else if err := errObj.Delete("captureStackTrace"); err != nil {
		bs.warn("Error", "captureStackTrace", err)
	}

	if bs.version.HasFeature(features.JSWindowInstallTriggerNull) {
		if err := bs.root.DefineProperty("InstallTrigger", goja.Null(), jsconfig.Empty); err != nil {
			bs.warn(windowClassName, "InstallTrigger", err)
		}
	}
}

// captureStackTrace implements Error.captureStackTrace(target) by installing the current
// call stack as target.stack.
func captureStackTrace(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
	rt := s.Runtime()
	target, ok := call.Argument(0).(*goja.Object)
	if !ok {
		panic(rt.NewTypeError("Invalid argument"))
	}
	var buf bytes.Buffer
	buf.WriteString(target.Get("name").String())
	if msg := target.Get("message"); msg != nil && !goja.IsUndefined(msg) && msg.String() != "" {
		buf.WriteString(": ")
		buf.WriteString(msg.String())
	}
	frames := rt.CaptureCallStack(0, nil)
	// The first frame is captureStackTrace itself.
	if len(frames) > 0 {
		frames = frames[1:]
	}
	for i := range frames {
		buf.WriteString("\n    at ")
		frames[i].Write(&buf)
	}
	if err := target.DefineDataProperty("stack", rt.ToValue(buf.String()), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		panic(rt.NewGoError(err))
	}
	return goja.Undefined()
}

// configurePrototypes creates one prototype per class and wires its members. The
// Window class's members also go directly onto the root.
func (bs *build) configurePrototypes() {
	for _, c := range bs.set.Classes() {
		proto := host.NewObject(bs.rt.NewObject(), c.ClassName, bs.w)
		if err := proto.SetClassName(c.ClassName); err != nil {
			bs.warn(c.ClassName, "Symbol.toStringTag", err)
		}
		bs.instanceMembers(c, proto)
		if c.ClassName == windowClassName {
			bs.instanceMembers(c, bs.root)
		}
		bs.protos[c.ClassName] = proto
		bs.protoByName[c.ClassName] = proto.JS()
		if c.Native != nil {
			bs.protoByType[c.Native] = proto.JS()
		}
	}
}

// configureCompanions publishes a namespace object for every exposed class so its
// constants are reachable before any constructor exists.
func (bs *build) configureCompanions() {
	for _, c := range bs.set.Classes() {
		if c.ClassName == windowClassName || !c.IsJSObject {
			continue
		}
		companion := host.NewObject(bs.rt.NewObject(), c.ClassName, bs.w)
		if err := companion.DefineProperty("prototype", bs.protos[c.ClassName].JS(), jsconfig.DontEnum); err != nil {
			bs.warn(c.ClassName, "prototype", err)
		}
		bs.constants(c, companion)
		if err := bs.root.DefineProperty(c.ClassName, companion.JS(), jsconfig.DontEnum); err != nil {
			bs.warn(c.ClassName, c.ClassName, err)
		}
	}
}

// configureConstructors installs the real constructor of every class and links it with
// its prototype in both directions.
func (bs *build) configureConstructors() {
	for _, c := range bs.set.Classes() {
		proto := bs.protos[c.ClassName]

		var (
			fn  *goja.Object
			err error
		)
		switch {
		case c.ClassName == windowClassName:
			fn = bs.windowCtor
			if fn == nil {
				continue
			}
		case c.HasConstructor():
			fn, err = bs.constructor(c.ClassName, 0, c.Constructor)
		default:
			fn, err = bs.illegalConstructor(c.ClassName)
		}
		if err != nil {
			bs.warn(c.ClassName, "constructor", err)
			continue
		}
		bs.ctors[c.ClassName] = fn
		ctor := host.NewObject(fn, c.ClassName, bs.w)

		// Two independent links; one failing does not stop the other.
		if err := ctor.DefineProperty("prototype", proto.JS(), jsconfig.DontEnum|jsconfig.Permanent|jsconfig.ReadOnly); err != nil {
			bs.warn(c.ClassName, "prototype", err)
		}
		if err := proto.DefineProperty("constructor", fn, jsconfig.DontEnum); err != nil {
			bs.warn(c.ClassName, "constructor", err)
		}

		bs.constants(c, ctor)
		bs.staticMembers(c, ctor)

		if !c.IsJSObject {
			continue
		}
		if err := bs.root.DefineProperty(c.ClassName, fn, jsconfig.DontEnum); err != nil {
			bs.warn(c.ClassName, c.ClassName, err)
		}
		if c.ConstructorAlias != "" {
			if err := bs.root.DefineProperty(c.ConstructorAlias, fn, jsconfig.DontEnum); err != nil {
				bs.warn(c.ClassName, c.ConstructorAlias, err)
			}
		}
	}
}

// configureAliasConstructors installs Image and Option, whose instances share the
// prototype of another class.
func (bs *build) configureAliasConstructors() {
	for _, ac := range host.AliasConstructors() {
		proto, ok := bs.protos[ac.Class]
		if !ok {
			continue
		}
		fn, err := bs.constructor(ac.Alias, ac.Length, ac.Construct)
		if err != nil {
			bs.warn(ac.Class, ac.Alias, err)
			continue
		}
		ctor := host.NewObject(fn, ac.Alias, bs.w)
		if err := ctor.DefineProperty("prototype", proto.JS(), jsconfig.DontEnum|jsconfig.Permanent|jsconfig.ReadOnly); err != nil {
			bs.warn(ac.Class, ac.Alias+".prototype", err)
		}
		if err := bs.root.DefineProperty(ac.Alias, fn, jsconfig.DontEnum); err != nil {
			bs.warn(ac.Class, ac.Alias, err)
		}
	}
}

// linkPrototypes chains every prototype to its superclass prototype, or to
// Object.prototype for root classes. Constructors are chained the same way so static
// constants are inherited.
func (bs *build) linkPrototypes() {
	objectProto := bs.rt.NewObject().Prototype()
	for _, c := range bs.set.Classes() {
		proto := bs.protos[c.ClassName]
		parent := objectProto
		if super := bs.set.Super(c); super != nil {
			parent = bs.protos[super.ClassName].JS()
			if fn, ok := bs.ctors[c.ClassName]; ok {
				if superFn, ok := bs.ctors[super.ClassName]; ok {
					if err := fn.SetPrototype(superFn); err != nil {
						bs.warn(c.ClassName, "constructor [[Prototype]]", err)
					}
				}
			}
		}
		if err := proto.SetPrototype(parent); err != nil {
			bs.warn(c.ClassName, "[[Prototype]]", err)
		}
	}
	if windowProto, ok := bs.protos[windowClassName]; ok {
		if err := bs.root.SetPrototype(windowProto.JS()); err != nil {
			bs.warn(windowClassName, "[[Prototype]]", err)
		}
	}
}

// cleanup removes non-standard engine methods and installs the browser's overrides.
func (bs *build) cleanup() {
	objectProto := host.NewObject(bs.rt.NewObject().Prototype(), "Object", bs.w)
	for _, name := range []string{"toSource", "uneval", "isXMLName"} {
		if err := bs.root.Delete(name); err != nil {
			bs.warn(windowClassName, name, err)
		}
		if err := objectProto.Delete(name); err != nil {
			bs.warn("Object", name, err)
		}
	}

	if consoleProto, ok := bs.protos["Console"]; ok {
		fn, err := bs.function("timeStamp", 0, host.ConsoleTimeStamp)
		if err == nil {
			err = consoleProto.DefineProperty("timeStamp", fn, jsconfig.Empty)
		}
		if err != nil {
			bs.warn("Console", "timeStamp", err)
		}
	}

	if err := host.InstallLocaleOverrides(bs.w); err != nil {
		bs.warn("Date", "toLocaleString", err)
	}

	if !bs.opts.WebSocketEnabled {
		if err := bs.root.Delete("WebSocket"); err != nil {
			bs.warn(windowClassName, "WebSocket", err)
		}
	}
}

func (bs *build) applyPolyfills() {
	polyfills := bs.opts.Polyfills
	if bs.opts.FetchPolyfillEnabled {
		polyfills = append([]Polyfill{FetchPolyfill}, polyfills...)
	}
	for _, pf := range polyfills {
		if !pf.Gate.Allows(bs.version) {
			continue
		}
		if err := pf.apply(bs.rt); err != nil {
			bs.logger.Warn("Failed to apply polyfill", zap.String("polyfill", pf.Name), zap.Error(err))
		}
	}
}
