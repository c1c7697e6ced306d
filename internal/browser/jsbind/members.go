// internal/browser/jsbind/members.go
package jsbind

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/duonglaiquang/htmlunit/internal/browser/host"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

var errNoImplementation = errors.New("member has no implementation")

// wirer defines configured members on host objects of one scope. Every failure is
// logged with the class and member it concerns and then skipped.
type wirer struct {
	w      *host.Window
	rt     *goja.Runtime
	logger *zap.Logger
	failed int
}

func (b *wirer) warn(class, member string, err error) {
	b.failed++
	b.logger.Warn("Failed to wire member",
		zap.String("class", class),
		zap.String("member", member),
		zap.Error(err))
}

// rename gives a native function the name and arity scripts expect. Both are
// non-writable, configurable own properties of every function.
func (b *wirer) rename(fn *goja.Object, name string, length int) error {
	if err := fn.DefineDataProperty("name", b.rt.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return err
	}
	return fn.DefineDataProperty("length", b.rt.ToValue(length), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

func (b *wirer) function(name string, length int, fn jsconfig.FunctionFunc) (*goja.Object, error) {
	if fn == nil {
		return nil, errNoImplementation
	}
	w := b.w
	obj := b.rt.ToValue(func(call goja.FunctionCall) goja.Value {
		return fn(w, call)
	}).(*goja.Object)
	if err := b.rename(obj, name, length); err != nil {
		return nil, err
	}
	return obj, nil
}

func (b *wirer) accessor(name string, get jsconfig.GetterFunc, set jsconfig.SetterFunc) (getter, setter goja.Value, err error) {
	if get == nil {
		return nil, nil, errNoImplementation
	}
	w := b.w
	g := b.rt.ToValue(func(call goja.FunctionCall) goja.Value {
		return get(w, call.This)
	}).(*goja.Object)
	if err := b.rename(g, "get "+name, 0); err != nil {
		return nil, nil, err
	}
	if set == nil {
		return g, nil, nil
	}
	s := b.rt.ToValue(func(call goja.FunctionCall) goja.Value {
		set(w, call.This, call.Argument(0))
		return goja.Undefined()
	}).(*goja.Object)
	if err := b.rename(s, "set "+name, 1); err != nil {
		return nil, nil, err
	}
	return g, s, nil
}

func symbolOf(k jsconfig.SymbolKey) (*goja.Symbol, error) {
	switch k {
	case jsconfig.SymbolIterator:
		return goja.SymIterator, nil
	case jsconfig.SymbolToStringTag:
		return goja.SymToStringTag, nil
	default:
		return nil, fmt.Errorf("unsupported symbol %s", k)
	}
}

// constants defines the class's constants on target.
func (b *wirer) constants(c *jsconfig.ClassConfiguration, target *host.Object) {
	for _, k := range c.Constants {
		if err := target.DefineProperty(k.Name, b.rt.ToValue(k.Value), k.Attrs); err != nil {
			b.warn(c.ClassName, k.Name, err)
		}
	}
}

// instanceMembers defines everything a prototype carries: constants, properties,
// functions and symbol-keyed members, in that order.
func (b *wirer) instanceMembers(c *jsconfig.ClassConfiguration, target *host.Object) {
	b.constants(c, target)
	b.properties(c.ClassName, c.Properties, target)
	b.functions(c.ClassName, c.Functions, target)

	for _, sc := range c.SymbolConstants {
		sym, err := symbolOf(sc.Symbol)
		if err != nil {
			b.warn(c.ClassName, sc.Symbol.String(), err)
			continue
		}
		if err := target.DefineSymbolProperty(sym, b.rt.ToValue(sc.Value), jsconfig.ReadOnly|jsconfig.DontEnum); err != nil {
			b.warn(c.ClassName, sc.Symbol.String(), err)
		}
	}
	for _, si := range c.Symbols {
		sym, err := symbolOf(si.Symbol)
		if err != nil {
			b.warn(c.ClassName, si.Symbol.String(), err)
			continue
		}
		var fn goja.Value
		// Symbol.iterator and friends alias an existing method when one is named, so
		// proto[Symbol.iterator] === proto.entries holds.
		if si.Name != "" {
			if existing, ok := target.JS().Get(si.Name).(*goja.Object); ok {
				if _, isFn := goja.AssertFunction(existing); isFn {
					fn = existing
				}
			}
		}
		if fn == nil {
			name := si.Name
			if name == "" {
				name = "[" + si.Symbol.String() + "]"
			}
			obj, err := b.function(name, 0, si.Function)
			if err != nil {
				b.warn(c.ClassName, si.Symbol.String(), err)
				continue
			}
			fn = obj
		}
		if err := target.DefineSymbolProperty(sym, fn, jsconfig.DontEnum); err != nil {
			b.warn(c.ClassName, si.Symbol.String(), err)
		}
	}
}

// staticMembers copies static properties and functions onto a constructor.
func (b *wirer) staticMembers(c *jsconfig.ClassConfiguration, target *host.Object) {
	b.properties(c.ClassName, c.StaticProperties, target)
	b.functions(c.ClassName, c.StaticFunctions, target)
}

func (b *wirer) properties(class string, props []jsconfig.PropertyInfo, target *host.Object) {
	for _, p := range props {
		g, s, err := b.accessor(p.Name, p.Getter, p.Setter)
		if err != nil {
			b.warn(class, p.Name, err)
			continue
		}
		if err := target.DefineAccessor(p.Name, g, s, jsconfig.Empty); err != nil {
			b.warn(class, p.Name, err)
		}
	}
}

func (b *wirer) functions(class string, fns []jsconfig.FunctionInfo, target *host.Object) {
	for _, f := range fns {
		obj, err := b.function(f.Name, f.Length, f.Function)
		if err != nil {
			b.warn(class, f.Name, err)
			continue
		}
		if err := target.DefineProperty(f.Name, obj, jsconfig.Empty); err != nil {
			b.warn(class, f.Name, err)
		}
	}
}

// constructor wraps a configured constructor in a native constructor function bound to
// the scope.
func (b *wirer) constructor(name string, length int, ctor jsconfig.ConstructorFunc) (*goja.Object, error) {
	if ctor == nil {
		return nil, errNoImplementation
	}
	w := b.w
	fn := b.rt.ToValue(func(call goja.ConstructorCall) *goja.Object {
		return ctor(w, call)
	}).(*goja.Object)
	if err := b.rename(fn, name, length); err != nil {
		return nil, err
	}
	return fn, nil
}

// illegalConstructor is the constructor of classes scripts cannot instantiate.
func (b *wirer) illegalConstructor(name string) (*goja.Object, error) {
	rt := b.rt
	fn := rt.ToValue(func(goja.ConstructorCall) *goja.Object {
		panic(rt.NewTypeError("Illegal constructor"))
	}).(*goja.Object)
	if err := b.rename(fn, name, 0); err != nil {
		return nil, err
	}
	return fn, nil
}
