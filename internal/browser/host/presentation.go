// internal/browser/host/presentation.go
package host

import (
	"reflect"

	"github.com/dop251/goja"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

// PresentationRequest is a request to present content on a second screen. No screens are
// ever available, so every operation rejects.
type PresentationRequest struct {
	EventTarget
	urls []string
}

func constructPresentationRequest(s jsconfig.Scope, call goja.ConstructorCall) *goja.Object {
	w := scopeOf(s)
	if len(call.Arguments) == 0 {
		w.throwTypeError("Failed to construct 'PresentationRequest': 1 argument required, but only 0 present.")
	}
	req := &PresentationRequest{}
	arg := call.Argument(0)
	if obj, ok := arg.(*goja.Object); ok && obj.ClassName() == "Array" {
		list, _ := obj.Export().([]any)
		for _, u := range list {
			req.urls = append(req.urls, w.rt.ToValue(u).String())
		}
	} else {
		req.urls = []string{arg.String()}
	}
	if len(req.urls) == 0 {
		w.throwTypeError("Failed to construct 'PresentationRequest': An empty sequence of URLs is not supported.")
	}
	if w.page != nil {
		for i, u := range req.urls {
			if resolved, err := w.page.ResolveURL(u); err == nil {
				req.urls[i] = resolved.String()
			}
		}
	}
	w.bind(call.This, req)
	return nil
}

func (w *Window) rejected(message string) goja.Value {
	promise, _, reject := w.rt.NewPromise()
	_ = reject(w.rt.NewTypeError(message))
	return w.rt.ToValue(promise)
}

func presentationFunc(message string) jsconfig.FunctionFunc {
	return func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
		w := scopeOf(s)
		native[*PresentationRequest](w, call.This)
		return w.rejected(message)
	}
}

func presentationRequestClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:        "PresentationRequest",
		Extends:     "EventTarget",
		Native:      reflect.TypeOf((*PresentationRequest)(nil)),
		JSObject:    true,
		Gate:        features.Has(features.JSPresentationRequest),
		Constructor: constructPresentationRequest,
		Members: []jsconfig.Member{
			jsconfig.Function("start", presentationFunc("No screens found.")),
			jsconfig.Function("reconnect", presentationFunc("No presentation found.")).WithLength(1),
			jsconfig.Function("getAvailability", presentationFunc("Getting availability is not supported.")),
		},
	}
}
