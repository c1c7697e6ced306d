// internal/browser/host/iterators.go
package host

import (
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/dop251/goja"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

// Iterator prototype names, as reported by Object.prototype.toString.
const (
	URLSearchParamsIterator = "URLSearchParams Iterator"
	FormDataIterator        = "FormData Iterator"
)

// paramList is an ordered multimap of name/value pairs.
type paramList struct {
	pairs [][2]string
}

func (l *paramList) params() *paramList { return l }

type paramsLike interface {
	params() *paramList
}

func (l *paramList) append(name, value string) {
	l.pairs = append(l.pairs, [2]string{name, value})
}

func (l *paramList) delete(name string) {
	kept := l.pairs[:0]
	for _, p := range l.pairs {
		if p[0] != name {
			kept = append(kept, p)
		}
	}
	l.pairs = kept
}

func (l *paramList) get(name string) (string, bool) {
	for _, p := range l.pairs {
		if p[0] == name {
			return p[1], true
		}
	}
	return "", false
}

func (l *paramList) getAll(name string) []any {
	out := []any{}
	for _, p := range l.pairs {
		if p[0] == name {
			out = append(out, p[1])
		}
	}
	return out
}

// set replaces the first pair named name and drops the others, or appends when absent.
func (l *paramList) set(name, value string) {
	found := false
	kept := l.pairs[:0]
	for _, p := range l.pairs {
		if p[0] != name {
			kept = append(kept, p)
			continue
		}
		if !found {
			kept = append(kept, [2]string{name, value})
			found = true
		}
	}
	l.pairs = kept
	if !found {
		l.append(name, value)
	}
}

func parseQuery(s string) [][2]string {
	s = strings.TrimPrefix(s, "?")
	var out [][2]string
	for _, part := range strings.Split(s, "&") {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		out = append(out, [2]string{unescapeQuery(name), unescapeQuery(value)})
	}
	return out
}

func unescapeQuery(s string) string {
	if v, err := url.QueryUnescape(s); err == nil {
		return v
	}
	return strings.ReplaceAll(s, "+", " ")
}

// URLSearchParams is the query string of a URL as a list of pairs.
type URLSearchParams struct {
	paramList
}

// FormData holds the pairs a form would submit.
type FormData struct {
	paramList
}

// pairIterator walks a live paramList. kind is "entries", "keys" or "values".
type pairIterator struct {
	list  *paramList
	kind  string
	index int
}

func constructURLSearchParams(s jsconfig.Scope, call goja.ConstructorCall) *goja.Object {
	w := scopeOf(s)
	p := &URLSearchParams{}
	init := call.Argument(0)
	switch {
	case goja.IsUndefined(init) || goja.IsNull(init):
	case isObject(init):
		obj := init.(*goja.Object)
		if other, ok := w.Unwrap(obj).(paramsLike); ok {
			p.pairs = append(p.pairs, other.params().pairs...)
			break
		}
		if obj.ClassName() == "Array" {
			for _, item := range obj.Export().([]any) {
				pair, ok := item.([]any)
				if !ok || len(pair) != 2 {
					w.throwTypeError("Failed to construct 'URLSearchParams': Sequence initializer must only contain pair elements")
				}
				p.append(w.rt.ToValue(pair[0]).String(), w.rt.ToValue(pair[1]).String())
			}
			break
		}
		for _, k := range obj.Keys() {
			p.append(k, obj.Get(k).String())
		}
	default:
		p.pairs = parseQuery(init.String())
	}
	w.bind(call.This, p)
	return nil
}

func constructFormData(s jsconfig.Scope, call goja.ConstructorCall) *goja.Object {
	w := scopeOf(s)
	fd := &FormData{}
	if arg := call.Argument(0); !goja.IsUndefined(arg) {
		form, ok := w.Unwrap(arg).(*HTMLFormElement)
		if !ok {
			w.throwTypeError("Failed to construct 'FormData': parameter 1 is not of type 'HTMLFormElement'.")
		}
		for _, p := range w.formPairs(form, nil) {
			fd.append(p[0], p[1])
		}
	}
	w.bind(call.This, fd)
	return nil
}

func isObject(v goja.Value) bool {
	_, ok := v.(*goja.Object)
	return ok
}

// InstallIteratorPrototypes creates the prototypes shared by the pair iterators of the
// scope. Each inherits from the engine's %IteratorPrototype%, has a next method and
// reports its name through Symbol.toStringTag.
func InstallIteratorPrototypes(w *Window) error {
	iterProto, err := iteratorPrototype(w.rt)
	if err != nil {
		return err
	}
	for _, name := range []string{URLSearchParamsIterator, FormDataIterator} {
		proto := w.rt.NewObject()
		if err := proto.SetPrototype(iterProto); err != nil {
			return &WiringError{Class: name, Member: "prototype", Err: err}
		}
		next := w.rt.ToValue(func(call goja.FunctionCall) goja.Value {
			return w.nextPair(call.This)
		})
		if err := proto.DefineDataProperty("next", next, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
			return &WiringError{Class: name, Member: "next", Err: err}
		}
		if err := proto.DefineDataPropertySymbol(goja.SymToStringTag, w.rt.ToValue(name), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
			return &WiringError{Class: name, Member: "Symbol.toStringTag", Err: err}
		}
		w.iteratorProtos[name] = proto
	}
	return nil
}

// iteratorPrototype digs %IteratorPrototype% out of an array iterator.
func iteratorPrototype(rt *goja.Runtime) (*goja.Object, error) {
	arr := rt.NewArray()
	values, ok := goja.AssertFunction(arr.Get("values"))
	if !ok {
		return nil, &WiringError{Class: "Array", Member: "values", Err: errNoIterator}
	}
	it, err := values(arr)
	if err != nil {
		return nil, err
	}
	arrayIterProto := it.ToObject(rt).Prototype()
	if arrayIterProto == nil || arrayIterProto.Prototype() == nil {
		return nil, &WiringError{Class: "Array Iterator", Member: "prototype", Err: errNoIterator}
	}
	return arrayIterProto.Prototype(), nil
}

func (w *Window) newPairIterator(list *paramList, kind, protoName string) goja.Value {
	obj := w.rt.NewObject()
	if proto, ok := w.iteratorProtos[protoName]; ok {
		_ = obj.SetPrototype(proto)
	}
	w.bind(obj, &pairIterator{list: list, kind: kind})
	return obj
}

func (w *Window) nextPair(this goja.Value) goja.Value {
	it := native[*pairIterator](w, this)
	res := w.rt.NewObject()
	if it.index >= len(it.list.pairs) {
		_ = res.Set("value", goja.Undefined())
		_ = res.Set("done", true)
		return res
	}
	p := it.list.pairs[it.index]
	it.index++
	switch it.kind {
	case "keys":
		_ = res.Set("value", p[0])
	case "values":
		_ = res.Set("value", p[1])
	default:
		_ = res.Set("value", w.rt.NewArray(p[0], p[1]))
	}
	_ = res.Set("done", false)
	return res
}

func paramsFunc(fn func(w *Window, l *paramList, call goja.FunctionCall) goja.Value) jsconfig.FunctionFunc {
	return func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
		w := scopeOf(s)
		return fn(w, native[paramsLike](w, call.This).params(), call)
	}
}

func iteratorFunc(kind, protoName string) jsconfig.FunctionFunc {
	return paramsFunc(func(w *Window, l *paramList, _ goja.FunctionCall) goja.Value {
		return w.newPairIterator(l, kind, protoName)
	})
}

// pairMembers are the members URLSearchParams and FormData share.
func pairMembers(className, iteratorName string) []jsconfig.Member {
	return []jsconfig.Member{
		jsconfig.Function("append", paramsFunc(func(w *Window, l *paramList, call goja.FunctionCall) goja.Value {
			l.append(call.Argument(0).String(), call.Argument(1).String())
			return goja.Undefined()
		})).WithLength(2),
		jsconfig.Function("delete", paramsFunc(func(w *Window, l *paramList, call goja.FunctionCall) goja.Value {
			l.delete(call.Argument(0).String())
			return goja.Undefined()
		})).WithLength(1),
		jsconfig.Function("get", paramsFunc(func(w *Window, l *paramList, call goja.FunctionCall) goja.Value {
			if v, ok := l.get(call.Argument(0).String()); ok {
				return w.rt.ToValue(v)
			}
			return goja.Null()
		})).WithLength(1),
		jsconfig.Function("getAll", paramsFunc(func(w *Window, l *paramList, call goja.FunctionCall) goja.Value {
			return w.rt.NewArray(l.getAll(call.Argument(0).String())...)
		})).WithLength(1),
		jsconfig.Function("has", paramsFunc(func(w *Window, l *paramList, call goja.FunctionCall) goja.Value {
			_, ok := l.get(call.Argument(0).String())
			return w.rt.ToValue(ok)
		})).WithLength(1),
		jsconfig.Function("set", paramsFunc(func(w *Window, l *paramList, call goja.FunctionCall) goja.Value {
			l.set(call.Argument(0).String(), call.Argument(1).String())
			return goja.Undefined()
		})).WithLength(2),
		jsconfig.Function("forEach", paramsFunc(func(w *Window, l *paramList, call goja.FunctionCall) goja.Value {
			fn, ok := goja.AssertFunction(call.Argument(0))
			if !ok {
				w.throwTypeError("Failed to execute 'forEach' on '%s': The callback provided as parameter 1 is not a function.", className)
			}
			for i := 0; i < len(l.pairs); i++ {
				p := l.pairs[i]
				if _, err := fn(call.Argument(1), w.rt.ToValue(p[1]), w.rt.ToValue(p[0]), call.This); err != nil {
					panic(err)
				}
			}
			return goja.Undefined()
		})).WithLength(1),
		jsconfig.Function("entries", iteratorFunc("entries", iteratorName)),
		jsconfig.Function("keys", iteratorFunc("keys", iteratorName)),
		jsconfig.Function("values", iteratorFunc("values", iteratorName)),
		jsconfig.Symbol(jsconfig.SymbolIterator, "entries", iteratorFunc("entries", iteratorName)),
	}
}

func urlSearchParamsClass() jsconfig.ClassDefinition {
	members := append(pairMembers("URLSearchParams", URLSearchParamsIterator),
		jsconfig.Function("sort", paramsFunc(func(w *Window, l *paramList, _ goja.FunctionCall) goja.Value {
			sort.SliceStable(l.pairs, func(i, j int) bool { return l.pairs[i][0] < l.pairs[j][0] })
			return goja.Undefined()
		})),
		jsconfig.Function("toString", paramsFunc(func(w *Window, l *paramList, _ goja.FunctionCall) goja.Value {
			return w.rt.ToValue(encodeForm(l.pairs))
		})),
		jsconfig.Property("size", func(s jsconfig.Scope, this goja.Value) goja.Value {
			w := scopeOf(s)
			return w.rt.ToValue(len(native[paramsLike](w, this).params().pairs))
		}, nil).When(features.Has(features.JSURLSearchParamsSize)),
	)
	return jsconfig.ClassDefinition{
		Name:        "URLSearchParams",
		Native:      reflect.TypeOf((*URLSearchParams)(nil)),
		JSObject:    true,
		Constructor: constructURLSearchParams,
		Members:     members,
	}
}

func formDataClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:        "FormData",
		Native:      reflect.TypeOf((*FormData)(nil)),
		JSObject:    true,
		Constructor: constructFormData,
		Members:     pairMembers("FormData", FormDataIterator),
	}
}
