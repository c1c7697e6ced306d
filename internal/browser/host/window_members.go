// internal/browser/host/window_members.go
package host

import (
	"context"
	"reflect"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

// Navigator is window.navigator. It reports the identity of the emulated browser.
type Navigator struct{}

// schedule registers a timer on the window's job queue. handler is either a function,
// called with the extra arguments, or source text evaluated in the scope.
func (w *Window) schedule(call goja.FunctionCall, repeat bool) int {
	if w.webWindow == nil {
		return 0
	}
	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	var period time.Duration
	if repeat {
		period = max(delay, time.Millisecond)
	}

	handler := call.Argument(0)
	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}
	p := w.page
	run := func() {
		if w.env == nil {
			return
		}
		ctx := context.Background()
		if fn, ok := handler.(*goja.Object); ok {
			if _, isFn := goja.AssertFunction(fn); isFn {
				_, _ = w.env.CallFunction(ctx, p, fn, w, w.global.JS(), args)
				return
			}
		}
		_, _ = w.env.Evaluate(ctx, p, w, handler.String(), "timer")
	}
	return w.webWindow.Jobs().Add(p, delay, period, run)
}

func (w *Window) clearTimer(call goja.FunctionCall) {
	if w.webWindow == nil {
		return
	}
	w.webWindow.Jobs().Remove(int(call.Argument(0).ToInteger()))
}

func windowGetter(get func(w *Window) goja.Value) jsconfig.GetterFunc {
	return func(s jsconfig.Scope, _ goja.Value) goja.Value {
		return get(scopeOf(s))
	}
}

func self(w *Window) goja.Value { return w.global.JS() }

func windowClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "Window",
		Extends:  "EventTarget",
		Native:   reflect.TypeOf((*Window)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			jsconfig.Property("window", windowGetter(self), nil),
			jsconfig.Property("self", windowGetter(self), nil),
			jsconfig.Property("frames", windowGetter(self), nil),
			jsconfig.Property("top", windowGetter(self), nil),
			jsconfig.Property("parent", windowGetter(self), nil),
			jsconfig.Property("document", windowGetter(func(w *Window) goja.Value {
				if w.document == nil {
					return goja.Null()
				}
				return w.Wrap(w.document)
			}), nil),
			jsconfig.Property("location", windowGetter(func(w *Window) goja.Value {
				if w.location == nil {
					return goja.Null()
				}
				return w.Wrap(w.location)
			}), func(s jsconfig.Scope, _ goja.Value, v goja.Value) {
				w := scopeOf(s)
				if w.location != nil {
					w.location.assign(v.String(), "window.location")
				}
			}),
			jsconfig.Property("console", windowGetter(func(w *Window) goja.Value {
				return w.Wrap(w.console)
			}), nil),
			jsconfig.Property("navigator", windowGetter(func(w *Window) goja.Value {
				return w.Wrap(w.navigator)
			}), nil),
			jsconfig.Property("name", windowGetter(func(w *Window) goja.Value {
				if w.webWindow == nil {
					return w.rt.ToValue("")
				}
				return w.rt.ToValue(w.webWindow.Name())
			}), nil),
			jsconfig.Property("closed", windowGetter(func(w *Window) goja.Value {
				return w.rt.ToValue(w.webWindow != nil && w.webWindow.IsClosed())
			}), nil),
			jsconfig.Property("innerWidth", windowGetter(func(w *Window) goja.Value { return w.rt.ToValue(1256) }), nil),
			jsconfig.Property("innerHeight", windowGetter(func(w *Window) goja.Value { return w.rt.ToValue(605) }), nil),
			jsconfig.Property("onerror", windowGetter(func(w *Window) goja.Value {
				return w.onerror
			}), func(s jsconfig.Scope, _ goja.Value, v goja.Value) {
				w := scopeOf(s)
				if _, ok := goja.AssertFunction(v); ok {
					w.onerror = v
					return
				}
				w.onerror = goja.Null()
			}),

			jsconfig.Function("alert", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				w := scopeOf(s)
				msg := ""
				if len(call.Arguments) > 0 {
					msg = call.Argument(0).String()
				}
				if w.env != nil {
					w.env.Alert(w.page, msg)
				} else {
					w.logger.Info("Alert without a client", zap.String("message", msg))
				}
				return goja.Undefined()
			}).WithLength(1),
			jsconfig.Function("setTimeout", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				w := scopeOf(s)
				return w.rt.ToValue(w.schedule(call, false))
			}).WithLength(1),
			jsconfig.Function("setInterval", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				w := scopeOf(s)
				return w.rt.ToValue(w.schedule(call, true))
			}).WithLength(1),
			jsconfig.Function("clearTimeout", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				scopeOf(s).clearTimer(call)
				return goja.Undefined()
			}),
			jsconfig.Function("clearInterval", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				scopeOf(s).clearTimer(call)
				return goja.Undefined()
			}),
			jsconfig.Function("queueMicrotask", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				w := scopeOf(s)
				fn, ok := goja.AssertFunction(call.Argument(0))
				if !ok {
					w.throwTypeError("Failed to execute 'queueMicrotask' on 'Window': The callback provided as parameter 1 is not a function.")
				}
				w.QueueMicrotask(func() error {
					_, err := fn(goja.Undefined())
					return err
				})
				return goja.Undefined()
			}).WithLength(1),
		},
	}
}

func navigatorGetter(get func(w *Window) string) jsconfig.GetterFunc {
	return func(s jsconfig.Scope, this goja.Value) goja.Value {
		w := scopeOf(s)
		native[*Navigator](w, this)
		return w.rt.ToValue(get(w))
	}
}

func navigatorClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "Navigator",
		Native:   reflect.TypeOf((*Navigator)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			jsconfig.Property("userAgent", navigatorGetter(func(w *Window) string {
				return w.version.UserAgent()
			}), nil),
			jsconfig.Property("appVersion", navigatorGetter(func(w *Window) string {
				return strings.TrimPrefix(w.version.UserAgent(), "Mozilla/")
			}), nil),
			jsconfig.Property("appName", navigatorGetter(func(*Window) string { return "Netscape" }), nil),
			jsconfig.Property("appCodeName", navigatorGetter(func(*Window) string { return "Mozilla" }), nil),
			jsconfig.Property("product", navigatorGetter(func(*Window) string { return "Gecko" }), nil),
			jsconfig.Property("platform", navigatorGetter(func(*Window) string { return "Win32" }), nil),
			jsconfig.Property("language", navigatorGetter(func(*Window) string { return DefaultLocale }), nil),
			jsconfig.Property("vendor", navigatorGetter(func(w *Window) string {
				if w.version.IsFirefox() {
					return ""
				}
				return "Google Inc."
			}), nil),
			jsconfig.Property("languages", func(s jsconfig.Scope, this goja.Value) goja.Value {
				w := scopeOf(s)
				native[*Navigator](w, this)
				return w.rt.NewArray(DefaultLocale, "en")
			}, nil),
			jsconfig.Property("cookieEnabled", func(s jsconfig.Scope, this goja.Value) goja.Value {
				return scopeOf(s).rt.ToValue(true)
			}, nil),
			jsconfig.Property("onLine", func(s jsconfig.Scope, this goja.Value) goja.Value {
				return scopeOf(s).rt.ToValue(true)
			}, nil),
			jsconfig.Property("webdriver", func(s jsconfig.Scope, this goja.Value) goja.Value {
				return scopeOf(s).rt.ToValue(false)
			}, nil),
			jsconfig.Function("javaEnabled", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				return scopeOf(s).rt.ToValue(false)
			}),
		},
	}
}
