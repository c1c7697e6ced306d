// internal/browser/host/events.go
package host

import (
	"reflect"
	"time"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

// Event phases.
const (
	PhaseNone      = 0
	PhaseCapturing = 1
	PhaseAtTarget  = 2
	PhaseBubbling  = 3
)

// EventTarget holds the listeners registered on one target.
type EventTarget struct {
	listeners map[string][]*goja.Object
}

func (t *EventTarget) eventTarget() *EventTarget { return t }

type eventTargetLike interface {
	eventTarget() *EventTarget
}

func (t *EventTarget) add(typ string, fn *goja.Object) {
	if t.listeners == nil {
		t.listeners = make(map[string][]*goja.Object)
	}
	for _, l := range t.listeners[typ] {
		if l == fn {
			return
		}
	}
	t.listeners[typ] = append(t.listeners[typ], fn)
}

func (t *EventTarget) remove(typ string, fn *goja.Object) {
	list := t.listeners[typ]
	for i, l := range list {
		if l == fn {
			t.listeners[typ] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Event is a DOM event.
type Event struct {
	Type       string
	Bubbles    bool
	Cancelable bool

	target        goja.Value
	currentTarget goja.Value
	phase         int
	timeStamp     float64

	defaultPrevented bool
	stopped          bool
	stoppedNow       bool
}

func (e *Event) event() *Event { return e }

type eventLike interface {
	event() *Event
}

// WebGLContextEvent is fired on WebGL context loss and restoration.
type WebGLContextEvent struct {
	Event
	StatusMessage string
}

func newEvent(w *Window, call goja.ConstructorCall, className string) Event {
	if len(call.Arguments) == 0 {
		w.throwTypeError("Failed to construct '%s': 1 argument required, but only 0 present.", className)
	}
	ev := Event{
		Type:      call.Argument(0).String(),
		timeStamp: float64(time.Now().UnixNano()) / float64(time.Millisecond),
		target:    goja.Null(),
	}
	ev.currentTarget = goja.Null()
	if init, ok := call.Argument(1).(*goja.Object); ok {
		ev.Bubbles = init.Get("bubbles") != nil && init.Get("bubbles").ToBoolean()
		ev.Cancelable = init.Get("cancelable") != nil && init.Get("cancelable").ToBoolean()
	}
	return ev
}

func constructEvent(s jsconfig.Scope, call goja.ConstructorCall) *goja.Object {
	w := scopeOf(s)
	ev := newEvent(w, call, "Event")
	w.bind(call.This, &ev)
	return nil
}

func constructWebGLContextEvent(s jsconfig.Scope, call goja.ConstructorCall) *goja.Object {
	w := scopeOf(s)
	ev := &WebGLContextEvent{Event: newEvent(w, call, "WebGLContextEvent")}
	if init, ok := call.Argument(1).(*goja.Object); ok {
		if msg := init.Get("statusMessage"); msg != nil && !goja.IsUndefined(msg) {
			ev.StatusMessage = msg.String()
		}
	}
	w.bind(call.This, ev)
	return nil
}

func constructEventTarget(s jsconfig.Scope, call goja.ConstructorCall) *goja.Object {
	w := scopeOf(s)
	w.bind(call.This, &EventTarget{})
	return nil
}

// targetOf resolves the receiver of an EventTarget method. Unqualified calls from
// scripts arrive with an undefined receiver and target the window.
func targetOf(w *Window, this goja.Value) (eventTargetLike, goja.Value) {
	if this == nil || goja.IsUndefined(this) || goja.IsNull(this) {
		return w, w.global.JS()
	}
	return native[eventTargetLike](w, this), this
}

func addEventListener(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
	w := scopeOf(s)
	t, _ := targetOf(w, call.This)
	if fn, ok := call.Argument(1).(*goja.Object); ok {
		t.eventTarget().add(call.Argument(0).String(), fn)
	}
	return goja.Undefined()
}

func removeEventListener(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
	w := scopeOf(s)
	t, _ := targetOf(w, call.This)
	if fn, ok := call.Argument(1).(*goja.Object); ok {
		t.eventTarget().remove(call.Argument(0).String(), fn)
	}
	return goja.Undefined()
}

func dispatchEvent(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
	w := scopeOf(s)
	t, thisObj := targetOf(w, call.This)
	evObj := call.Argument(0)
	ev, ok := w.Unwrap(evObj).(eventLike)
	if !ok {
		w.throwTypeError("Failed to execute 'dispatchEvent' on 'EventTarget': parameter 1 is not of type 'Event'.")
	}
	return w.rt.ToValue(w.dispatch(t, thisObj, evObj, ev.event()))
}

// dispatch delivers ev to target and, for bubbling events on DOM nodes, to each ancestor.
// It reports whether the default action is still allowed.
func (w *Window) dispatch(target eventTargetLike, targetObj, evObj goja.Value, ev *Event) bool {
	ev.target = targetObj
	ev.stopped, ev.stoppedNow = false, false

	ev.phase = PhaseAtTarget
	w.invokeListeners(target, targetObj, evObj, ev)

	if n, ok := target.(domNode); ok && ev.Bubbles {
		ev.phase = PhaseBubbling
		for p := n.DomNode().Parent; p != nil && !ev.stopped; p = p.Parent {
			pt, ok := w.nodeNative(p).(eventTargetLike)
			if !ok {
				continue
			}
			w.invokeListeners(pt, w.WrapNode(p), evObj, ev)
			if p.Type == html.DocumentNode && !ev.stopped {
				w.invokeListeners(w, w.global.JS(), evObj, ev)
			}
		}
	}

	ev.phase = PhaseNone
	ev.currentTarget = goja.Null()
	return !ev.defaultPrevented
}

func (w *Window) invokeListeners(t eventTargetLike, current, evObj goja.Value, ev *Event) {
	ev.currentTarget = current
	if obj, ok := current.(*goja.Object); ok {
		if handler, ok := obj.Get("on" + ev.Type).(*goja.Object); ok {
			if _, isFn := goja.AssertFunction(handler); isFn {
				w.runListener(handler, current, evObj)
			}
		}
	}
	// Listeners added during dispatch do not run in this pass.
	list := append([]*goja.Object(nil), t.eventTarget().listeners[ev.Type]...)
	for _, l := range list {
		if ev.stoppedNow {
			return
		}
		if _, isFn := goja.AssertFunction(l); isFn {
			w.runListener(l, current, evObj)
			continue
		}
		if h, ok := l.Get("handleEvent").(*goja.Object); ok {
			w.runListener(h, l, evObj)
		}
	}
}

// runListener calls a listener. Failures are reported by the engine and do not stop
// delivery to the remaining listeners.
func (w *Window) runListener(fn *goja.Object, this, evObj goja.Value) {
	_, _ = w.callback(fn, this, evObj)
}

// Fire creates a plain event of the given type and dispatches it on the node's script
// object, or on the window for a nil node. It reports whether the default action is
// still allowed.
func (w *Window) Fire(n *html.Node, typ string, bubbles, cancelable bool) bool {
	evObj := w.newEventObject(typ, bubbles, cancelable)
	ev := w.Unwrap(evObj).(*Event)
	if n == nil {
		return w.dispatch(w, w.global.JS(), evObj, ev)
	}
	target, ok := w.nodeNative(n).(eventTargetLike)
	if !ok {
		return true
	}
	return w.dispatch(target, w.WrapNode(n), evObj, ev)
}

func (w *Window) newEventObject(typ string, bubbles, cancelable bool) goja.Value {
	ev := &Event{Type: typ, Bubbles: bubbles, Cancelable: cancelable, target: goja.Null(), currentTarget: goja.Null(),
		timeStamp: float64(time.Now().UnixNano()) / float64(time.Millisecond)}
	return w.Wrap(ev)
}

func eventGetter(get func(w *Window, ev *Event) goja.Value) jsconfig.GetterFunc {
	return func(s jsconfig.Scope, this goja.Value) goja.Value {
		w := scopeOf(s)
		return get(w, native[eventLike](w, this).event())
	}
}

func eventTargetClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:        "EventTarget",
		Native:      reflect.TypeOf((*EventTarget)(nil)),
		JSObject:    true,
		Constructor: constructEventTarget,
		Members: []jsconfig.Member{
			jsconfig.Function("addEventListener", addEventListener).WithLength(2),
			jsconfig.Function("removeEventListener", removeEventListener).WithLength(2),
			jsconfig.Function("dispatchEvent", dispatchEvent).WithLength(1),
		},
	}
}

func eventClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:        "Event",
		Native:      reflect.TypeOf((*Event)(nil)),
		JSObject:    true,
		Constructor: constructEvent,
		Members: []jsconfig.Member{
			jsconfig.Constant("NONE", PhaseNone),
			jsconfig.Constant("CAPTURING_PHASE", PhaseCapturing),
			jsconfig.Constant("AT_TARGET", PhaseAtTarget),
			jsconfig.Constant("BUBBLING_PHASE", PhaseBubbling),
			jsconfig.Property("type", eventGetter(func(w *Window, ev *Event) goja.Value {
				return w.rt.ToValue(ev.Type)
			}), nil),
			jsconfig.Property("target", eventGetter(func(_ *Window, ev *Event) goja.Value { return ev.target }), nil),
			jsconfig.Property("currentTarget", eventGetter(func(_ *Window, ev *Event) goja.Value { return ev.currentTarget }), nil),
			jsconfig.Property("eventPhase", eventGetter(func(w *Window, ev *Event) goja.Value {
				return w.rt.ToValue(ev.phase)
			}), nil),
			jsconfig.Property("bubbles", eventGetter(func(w *Window, ev *Event) goja.Value {
				return w.rt.ToValue(ev.Bubbles)
			}), nil),
			jsconfig.Property("cancelable", eventGetter(func(w *Window, ev *Event) goja.Value {
				return w.rt.ToValue(ev.Cancelable)
			}), nil),
			jsconfig.Property("defaultPrevented", eventGetter(func(w *Window, ev *Event) goja.Value {
				return w.rt.ToValue(ev.defaultPrevented)
			}), nil),
			jsconfig.Property("timeStamp", eventGetter(func(w *Window, ev *Event) goja.Value {
				return w.rt.ToValue(ev.timeStamp)
			}), nil),
			jsconfig.Function("preventDefault", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				ev := native[eventLike](scopeOf(s), call.This).event()
				if ev.Cancelable {
					ev.defaultPrevented = true
				}
				return goja.Undefined()
			}),
			jsconfig.Function("stopPropagation", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				native[eventLike](scopeOf(s), call.This).event().stopped = true
				return goja.Undefined()
			}),
			jsconfig.Function("stopImmediatePropagation", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				ev := native[eventLike](scopeOf(s), call.This).event()
				ev.stopped, ev.stoppedNow = true, true
				return goja.Undefined()
			}),
		},
	}
}

func webGLContextEventClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:        "WebGLContextEvent",
		Extends:     "Event",
		Native:      reflect.TypeOf((*WebGLContextEvent)(nil)),
		JSObject:    true,
		Constructor: constructWebGLContextEvent,
		Members: []jsconfig.Member{
			jsconfig.Property("statusMessage", func(s jsconfig.Scope, this goja.Value) goja.Value {
				w := scopeOf(s)
				return w.rt.ToValue(native[*WebGLContextEvent](w, this).StatusMessage)
			}, nil).When(features.Has(features.JSWebGLContextEventStatusMessage)),
		},
	}
}
