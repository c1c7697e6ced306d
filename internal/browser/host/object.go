// internal/browser/host/object.go
package host

import (
	"fmt"

	"github.com/dop251/goja"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

// WiringError reports a single member that could not be installed on a host object.
// Wiring errors are recoverable: the caller logs them and moves on.
type WiringError struct {
	Class  string
	Member string
	Err    error
}

func (e *WiringError) Error() string {
	return fmt.Sprintf("failed to wire %s.%s: %v", e.Class, e.Member, e.Err)
}

func (e *WiringError) Unwrap() error { return e.Err }

// Object is a host object: a script object with a class name and a back reference to
// the window scope it lives in.
type Object struct {
	obj       *goja.Object
	className string
	parent    *Window
}

// NewObject wraps obj. The parent scope is not owned.
func NewObject(obj *goja.Object, className string, parent *Window) *Object {
	return &Object{obj: obj, className: className, parent: parent}
}

// JS is the underlying script object.
func (o *Object) JS() *goja.Object { return o.obj }

func (o *Object) ClassName() string { return o.className }

// SetClassName renames the object for identity checks and installs the matching
// Symbol.toStringTag so Object.prototype.toString reports it.
func (o *Object) SetClassName(name string) error {
	o.className = name
	if name == "" || o.obj == nil {
		return nil
	}
	return o.DefineSymbolProperty(goja.SymToStringTag, o.runtime().ToValue(name), jsconfig.ReadOnly|jsconfig.DontEnum)
}

func (o *Object) ParentScope() *Window { return o.parent }

func (o *Object) SetParentScope(w *Window) { o.parent = w }

// Prototype is the current prototype link, nil for a null prototype.
func (o *Object) Prototype() *goja.Object { return o.obj.Prototype() }

// SetPrototype relinks the object. Cycles are rejected by the engine.
func (o *Object) SetPrototype(proto *goja.Object) error {
	if err := o.obj.SetPrototype(proto); err != nil {
		return &WiringError{Class: o.className, Member: "[[Prototype]]", Err: err}
	}
	return nil
}

// DefineProperty defines a data property. Redefining a property the engine refuses to
// reconfigure falls back to a plain assignment when the existing property is writable,
// so the last write stays observable. Any remaining failure is returned, never thrown.
func (o *Object) DefineProperty(name string, value goja.Value, attrs jsconfig.Attr) (err error) {
	defer o.recoverInto(name, &err)
	w, e, c := attrs.Flags()
	if defErr := o.obj.DefineDataProperty(name, value, w, c, e); defErr != nil {
		if setErr := o.obj.Set(name, value); setErr == nil && o.obj.Get(name) == value {
			return nil
		}
		return &WiringError{Class: o.className, Member: name, Err: defErr}
	}
	return nil
}

// DefineAccessor defines a getter/setter pair. A nil setter makes the property read-only.
func (o *Object) DefineAccessor(name string, getter, setter goja.Value, attrs jsconfig.Attr) (err error) {
	defer o.recoverInto(name, &err)
	_, e, c := attrs.Flags()
	if setter == nil {
		setter = goja.Undefined()
	}
	if defErr := o.obj.DefineAccessorProperty(name, getter, setter, c, e); defErr != nil {
		return &WiringError{Class: o.className, Member: name, Err: defErr}
	}
	return nil
}

// DefineSymbolProperty is DefineProperty keyed by a symbol.
func (o *Object) DefineSymbolProperty(sym *goja.Symbol, value goja.Value, attrs jsconfig.Attr) (err error) {
	defer o.recoverInto(sym.String(), &err)
	w, e, c := attrs.Flags()
	if defErr := o.obj.DefineDataPropertySymbol(sym, value, w, c, e); defErr != nil {
		if setErr := o.obj.SetSymbol(sym, value); setErr == nil {
			return nil
		}
		return &WiringError{Class: o.className, Member: sym.String(), Err: defErr}
	}
	return nil
}

// Delete removes a property. Deleting a missing property succeeds.
func (o *Object) Delete(name string) error {
	if err := o.obj.Delete(name); err != nil {
		return &WiringError{Class: o.className, Member: name, Err: err}
	}
	return nil
}

// DeleteSymbol removes a symbol-keyed property.
func (o *Object) DeleteSymbol(sym *goja.Symbol) error {
	if err := o.obj.DeleteSymbol(sym); err != nil {
		return &WiringError{Class: o.className, Member: sym.String(), Err: err}
	}
	return nil
}

func (o *Object) Get(name string) goja.Value { return o.obj.Get(name) }

func (o *Object) runtime() *goja.Runtime {
	if o.parent != nil {
		return o.parent.rt
	}
	panic("host: object without parent scope")
}

// recoverInto turns an engine panic during definition into a WiringError.
func (o *Object) recoverInto(member string, err *error) {
	if r := recover(); r != nil {
		*err = &WiringError{Class: o.className, Member: member, Err: fmt.Errorf("%v", r)}
	}
}
