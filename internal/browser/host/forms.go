// internal/browser/host/forms.go
package host

import (
	"context"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

// DefaultSubmitValue is what a submit button without a value attribute submits.
const DefaultSubmitValue = "Submit Query"

// HTMLFormElement is a form.
type HTMLFormElement struct {
	HTMLElement
}

// HTMLInputElement is an input control. Its value and checkedness become dirty once a
// script or a click changes them; until then they follow the attributes.
type HTMLInputElement struct {
	HTMLElement
	value   *string
	checked *bool
}

func (in *HTMLInputElement) inputType() string {
	switch t := strings.ToLower(attrOr(in.node, "type", "text")); t {
	case "checkbox", "radio", "submit", "reset", "button", "image", "hidden", "password",
		"file", "email", "number", "search", "tel", "url", "date", "color", "range":
		return t
	default:
		return "text"
	}
}

func (in *HTMLInputElement) isChecked() bool {
	if in.checked != nil {
		return *in.checked
	}
	_, ok := attr(in.node, "checked")
	return ok
}

// setChecked updates checkedness; checking a radio button unchecks the others of its
// group.
func (in *HTMLInputElement) setChecked(w *Window, checked bool) {
	in.checked = &checked
	if !checked || in.inputType() != "radio" {
		return
	}
	name, ok := attr(in.node, "name")
	if !ok || name == "" {
		return
	}
	scope := formAncestor(in.node)
	if scope == nil {
		scope = rootOf(in.node)
	}
	for _, n := range collect(scope, isElement("input")) {
		if n == in.node || attrOr(n, "name", "") != name || formAncestor(n) != formAncestor(in.node) {
			continue
		}
		if other, ok := w.nodeNative(n).(*HTMLInputElement); ok && other.inputType() == "radio" {
			off := false
			other.checked = &off
		}
	}
}

func (w *Window) inputValue(in *HTMLInputElement) string {
	if in.value != nil {
		return *in.value
	}
	if v, ok := attr(in.node, "value"); ok {
		return v
	}
	switch in.inputType() {
	case "checkbox", "radio":
		return "on"
	case "submit":
		if w.version.HasFeature(features.SubmitInputDefaultValueIfValueNotDefined) {
			return DefaultSubmitValue
		}
	}
	return ""
}

// HTMLImageElement is an img element.
type HTMLImageElement struct {
	HTMLElement
}

// HTMLOptionElement is an option of a select element.
type HTMLOptionElement struct {
	HTMLElement
	selected *bool
}

func (o *HTMLOptionElement) isSelected() bool {
	if o.selected != nil {
		return *o.selected
	}
	_, ok := attr(o.node, "selected")
	return ok
}

func optionValue(n *html.Node) string {
	if v, ok := attr(n, "value"); ok {
		return v
	}
	return strings.Join(strings.Fields(textContent(n)), " ")
}

func formAncestor(n *html.Node) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "form" {
			return p
		}
	}
	return nil
}

func rootOf(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

// formOf is the form owning a control, or nil.
func (w *Window) formOf(el domNode) *HTMLFormElement {
	f := formAncestor(el.DomNode())
	if f == nil {
		return nil
	}
	form, _ := w.nodeNative(f).(*HTMLFormElement)
	return form
}

func isListedControl(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.Data {
	case "button", "fieldset", "object", "output", "select", "textarea":
		return true
	case "input":
		return !strings.EqualFold(attrOr(n, "type", ""), "image")
	}
	return false
}

// elements is the form's control collection; the same collection is returned each time.
func (w *Window) elements(form *HTMLFormElement) *HTMLFormControlsCollection {
	key := liveKey{node: form.node, kind: "elements"}
	if c, ok := w.liveLists[key].(*HTMLFormControlsCollection); ok {
		return c
	}
	c := &HTMLFormControlsCollection{HTMLCollection: HTMLCollection{root: form.node, match: isListedControl}}
	w.liveLists[key] = c
	return c
}

// formPairs lists the name/value pairs the form submits, in tree order. submitter is the
// button that triggered the submission, or nil for form.submit().
func (w *Window) formPairs(form *HTMLFormElement, submitter *HTMLInputElement) [][2]string {
	var pairs [][2]string
	for _, n := range w.elements(form).elements() {
		name, ok := attr(n, "name")
		if !ok || name == "" {
			continue
		}
		if _, disabled := attr(n, "disabled"); disabled {
			continue
		}
		switch n.Data {
		case "input":
			in, ok := w.nodeNative(n).(*HTMLInputElement)
			if !ok {
				continue
			}
			switch in.inputType() {
			case "checkbox", "radio":
				if in.isChecked() {
					pairs = append(pairs, [2]string{name, w.inputValue(in)})
				}
			case "submit":
				if in == submitter {
					pairs = append(pairs, [2]string{name, attrOr(n, "value", DefaultSubmitValue)})
				}
			case "reset", "button", "file":
			default:
				pairs = append(pairs, [2]string{name, w.inputValue(in)})
			}
		case "textarea":
			pairs = append(pairs, [2]string{name, textContent(n)})
		case "select":
			opts := collect(n, isElement("option"))
			var picked bool
			for _, o := range opts {
				if opt, ok := w.nodeNative(o).(*HTMLOptionElement); ok && opt.isSelected() {
					pairs = append(pairs, [2]string{name, optionValue(o)})
					picked = true
				}
			}
			if _, multiple := attr(n, "multiple"); !picked && !multiple && len(opts) > 0 {
				pairs = append(pairs, [2]string{name, optionValue(opts[0])})
			}
		}
	}
	return pairs
}

// encodeForm serializes pairs as application/x-www-form-urlencoded, keeping their order.
func encodeForm(pairs [][2]string) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = url.QueryEscape(p[0]) + "=" + url.QueryEscape(p[1])
	}
	return strings.Join(parts, "&")
}

// submitForm schedules the navigation a form submission causes. A submission triggered
// by a button fires a cancelable submit event first.
func (w *Window) submitForm(form *HTMLFormElement, submitter *HTMLInputElement) {
	if submitter != nil && !w.Fire(form.node, "submit", true, true) {
		return
	}
	req, err := w.formRequest(form, submitter)
	if err != nil {
		w.logger.Warn("Form submission skipped", zap.Error(err))
		return
	}
	w.navigate("form submit", req)
}

func (w *Window) formRequest(form *HTMLFormElement, submitter *HTMLInputElement) (page.Request, error) {
	base := w.startingPage()
	if base == nil {
		return page.Request{}, errNoPage
	}
	target, err := base.ResolveURL(attrOr(form.node, "action", ""))
	if err != nil {
		return page.Request{}, err
	}
	body := encodeForm(w.formPairs(form, submitter))
	if strings.EqualFold(attrOr(form.node, "method", "get"), "post") {
		return page.Request{URL: target, Method: "POST", Body: body, ContentType: "application/x-www-form-urlencoded"}, nil
	}
	u := *target
	u.RawQuery = body
	u.Fragment = ""
	return page.Request{URL: &u, Method: "GET"}, nil
}

func (w *Window) resetForm(form *HTMLFormElement) {
	if !w.Fire(form.node, "reset", true, true) {
		return
	}
	for _, n := range w.elements(form).elements() {
		switch native := w.nodeNative(n).(type) {
		case *HTMLInputElement:
			native.value, native.checked = nil, nil
		}
		for _, o := range collect(n, isElement("option")) {
			if opt, ok := w.nodeNative(o).(*HTMLOptionElement); ok {
				opt.selected = nil
			}
		}
	}
}

// navigate schedules a navigation of this scope's window once the running script has
// returned.
func (w *Window) navigate(description string, req page.Request) {
	if w.env == nil || w.webWindow == nil {
		return
	}
	ww := w.webWindow
	w.postpone(description+" "+req.URL.String(), func(ctx context.Context) error {
		return w.env.Navigate(ctx, ww, req)
	})
}

// -- Constructors with fixed signatures --

// AliasConstructor is a constructor published under an alias name whose instances use the
// prototype of Class.
type AliasConstructor struct {
	Alias     string
	Class     string
	Length    int
	Construct jsconfig.ConstructorFunc
}

// AliasConstructors are the Image and Option constructors.
func AliasConstructors() []AliasConstructor {
	return []AliasConstructor{
		{Alias: "Image", Class: "HTMLImageElement", Length: 0, Construct: constructImage},
		{Alias: "Option", Class: "HTMLOptionElement", Length: 0, Construct: constructOption},
	}
}

// constructImage implements new Image(width, height).
func constructImage(s jsconfig.Scope, call goja.ConstructorCall) *goja.Object {
	w := scopeOf(s)
	n := newElement("img")
	if v := call.Argument(0); !goja.IsUndefined(v) {
		setAttr(n, "width", strconv.FormatInt(v.ToInteger(), 10))
	}
	if v := call.Argument(1); !goja.IsUndefined(v) {
		setAttr(n, "height", strconv.FormatInt(v.ToInteger(), 10))
	}
	w.adoptNode(call.This, &HTMLImageElement{HTMLElement: HTMLElement{Node: Node{node: n}}})
	return nil
}

// constructOption implements new Option(text, value, defaultSelected, selected).
func constructOption(s jsconfig.Scope, call goja.ConstructorCall) *goja.Object {
	w := scopeOf(s)
	n := newElement("option")
	if v := call.Argument(0); !goja.IsUndefined(v) {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: v.String()})
	}
	if v := call.Argument(1); !goja.IsUndefined(v) {
		setAttr(n, "value", v.String())
	}
	if call.Argument(2).ToBoolean() {
		setAttr(n, "selected", "")
	}
	opt := &HTMLOptionElement{HTMLElement: HTMLElement{Node: Node{node: n}}}
	if v := call.Argument(3); !goja.IsUndefined(v) {
		selected := v.ToBoolean()
		opt.selected = &selected
	}
	w.adoptNode(call.This, opt)
	return nil
}

// -- Members --

func formFunc(fn func(w *Window, f *HTMLFormElement) goja.Value) jsconfig.FunctionFunc {
	return func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
		w := scopeOf(s)
		return fn(w, native[*HTMLFormElement](w, call.This))
	}
}

func formGetter(fn func(w *Window, f *HTMLFormElement) goja.Value) jsconfig.GetterFunc {
	return func(s jsconfig.Scope, this goja.Value) goja.Value {
		w := scopeOf(s)
		return fn(w, native[*HTMLFormElement](w, this))
	}
}

func htmlFormElementClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "HTMLFormElement",
		Extends:  "HTMLElement",
		Native:   reflect.TypeOf((*HTMLFormElement)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			reflectAttr("name"),
			reflectAttr("target"),
			jsconfig.Property("elements", formGetter(func(w *Window, f *HTMLFormElement) goja.Value {
				return w.Wrap(w.elements(f))
			}), nil),
			jsconfig.Property("length", formGetter(func(w *Window, f *HTMLFormElement) goja.Value {
				return w.rt.ToValue(w.elements(f).size())
			}), nil),
			jsconfig.Property("action", formGetter(func(w *Window, f *HTMLFormElement) goja.Value {
				if w.page == nil {
					return w.rt.ToValue(attrOr(f.node, "action", ""))
				}
				u, err := w.page.ResolveURL(attrOr(f.node, "action", ""))
				if err != nil {
					return w.rt.ToValue(attrOr(f.node, "action", ""))
				}
				return w.rt.ToValue(u.String())
			}), func(s jsconfig.Scope, this, v goja.Value) {
				setAttr(native[*HTMLFormElement](scopeOf(s), this).node, "action", v.String())
			}),
			jsconfig.Property("method", formGetter(func(w *Window, f *HTMLFormElement) goja.Value {
				if strings.EqualFold(attrOr(f.node, "method", ""), "post") {
					return w.rt.ToValue("post")
				}
				return w.rt.ToValue("get")
			}), func(s jsconfig.Scope, this, v goja.Value) {
				setAttr(native[*HTMLFormElement](scopeOf(s), this).node, "method", v.String())
			}),
			jsconfig.Function("submit", formFunc(func(w *Window, f *HTMLFormElement) goja.Value {
				w.submitForm(f, nil)
				return goja.Undefined()
			})),
			jsconfig.Function("reset", formFunc(func(w *Window, f *HTMLFormElement) goja.Value {
				w.resetForm(f)
				return goja.Undefined()
			})),
		},
	}
}

func inputGetter(fn func(w *Window, in *HTMLInputElement) goja.Value) jsconfig.GetterFunc {
	return func(s jsconfig.Scope, this goja.Value) goja.Value {
		w := scopeOf(s)
		return fn(w, native[*HTMLInputElement](w, this))
	}
}

func inputSetter(fn func(w *Window, in *HTMLInputElement, v goja.Value)) jsconfig.SetterFunc {
	return func(s jsconfig.Scope, this, v goja.Value) {
		w := scopeOf(s)
		fn(w, native[*HTMLInputElement](w, this), v)
	}
}

func htmlInputElementClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "HTMLInputElement",
		Extends:  "HTMLElement",
		Native:   reflect.TypeOf((*HTMLInputElement)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			reflectAttr("name"),
			jsconfig.Property("type", inputGetter(func(w *Window, in *HTMLInputElement) goja.Value {
				return w.rt.ToValue(in.inputType())
			}), inputSetter(func(w *Window, in *HTMLInputElement, v goja.Value) {
				setAttr(in.node, "type", v.String())
			})),
			jsconfig.Property("value", inputGetter(func(w *Window, in *HTMLInputElement) goja.Value {
				return w.rt.ToValue(w.inputValue(in))
			}), inputSetter(func(w *Window, in *HTMLInputElement, v goja.Value) {
				switch in.inputType() {
				case "checkbox", "radio", "submit", "reset", "button", "hidden", "image":
					setAttr(in.node, "value", v.String())
				default:
					s := v.String()
					in.value = &s
				}
			})),
			jsconfig.Property("defaultValue", inputGetter(func(w *Window, in *HTMLInputElement) goja.Value {
				return w.rt.ToValue(attrOr(in.node, "value", ""))
			}), inputSetter(func(w *Window, in *HTMLInputElement, v goja.Value) {
				setAttr(in.node, "value", v.String())
			})),
			jsconfig.Property("checked", inputGetter(func(w *Window, in *HTMLInputElement) goja.Value {
				return w.rt.ToValue(in.isChecked())
			}), inputSetter(func(w *Window, in *HTMLInputElement, v goja.Value) {
				in.setChecked(w, v.ToBoolean())
			})),
			jsconfig.Property("defaultChecked", inputGetter(func(w *Window, in *HTMLInputElement) goja.Value {
				_, ok := attr(in.node, "checked")
				return w.rt.ToValue(ok)
			}), nil),
			jsconfig.Property("disabled", inputGetter(func(w *Window, in *HTMLInputElement) goja.Value {
				_, ok := attr(in.node, "disabled")
				return w.rt.ToValue(ok)
			}), inputSetter(func(w *Window, in *HTMLInputElement, v goja.Value) {
				if v.ToBoolean() {
					setAttr(in.node, "disabled", "")
				} else {
					removeAttr(in.node, "disabled")
				}
			})),
			jsconfig.Property("form", inputGetter(func(w *Window, in *HTMLInputElement) goja.Value {
				if f := w.formOf(in); f != nil {
					return w.Wrap(f)
				}
				return goja.Null()
			}), nil),
		},
	}
}

func htmlImageElementClass() jsconfig.ClassDefinition {
	dimension := func(name string) jsconfig.Member {
		return jsconfig.Property(name, elementGetter(func(w *Window, n *html.Node) goja.Value {
			v, _ := strconv.Atoi(attrOr(n, name, "0"))
			return w.rt.ToValue(v)
		}), func(s jsconfig.Scope, this, v goja.Value) {
			setAttr(native[*HTMLImageElement](scopeOf(s), this).node, name, strconv.FormatInt(v.ToInteger(), 10))
		})
	}
	return jsconfig.ClassDefinition{
		Name:     "HTMLImageElement",
		Extends:  "HTMLElement",
		Native:   reflect.TypeOf((*HTMLImageElement)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			reflectAttr("alt"),
			reflectAttr("name"),
			dimension("width"),
			dimension("height"),
			jsconfig.Property("src", elementGetter(func(w *Window, n *html.Node) goja.Value {
				src, ok := attr(n, "src")
				if !ok || w.page == nil {
					return w.rt.ToValue(src)
				}
				u, err := w.page.ResolveURL(src)
				if err != nil {
					return w.rt.ToValue(src)
				}
				return w.rt.ToValue(u.String())
			}), func(s jsconfig.Scope, this, v goja.Value) {
				setAttr(native[*HTMLImageElement](scopeOf(s), this).node, "src", v.String())
			}),
			jsconfig.Property("complete", elementGetter(func(w *Window, _ *html.Node) goja.Value {
				return w.rt.ToValue(true)
			}), nil),
		},
	}
}

func htmlOptionElementClass() jsconfig.ClassDefinition {
	optionGetter := func(fn func(w *Window, o *HTMLOptionElement) goja.Value) jsconfig.GetterFunc {
		return func(s jsconfig.Scope, this goja.Value) goja.Value {
			w := scopeOf(s)
			return fn(w, native[*HTMLOptionElement](w, this))
		}
	}
	return jsconfig.ClassDefinition{
		Name:     "HTMLOptionElement",
		Extends:  "HTMLElement",
		Native:   reflect.TypeOf((*HTMLOptionElement)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			jsconfig.Property("text", optionGetter(func(w *Window, o *HTMLOptionElement) goja.Value {
				return w.rt.ToValue(strings.Join(strings.Fields(textContent(o.node)), " "))
			}), func(s jsconfig.Scope, this, v goja.Value) {
				o := native[*HTMLOptionElement](scopeOf(s), this)
				removeChildren(o.node)
				o.node.AppendChild(&html.Node{Type: html.TextNode, Data: v.String()})
			}),
			jsconfig.Property("value", optionGetter(func(w *Window, o *HTMLOptionElement) goja.Value {
				return w.rt.ToValue(optionValue(o.node))
			}), func(s jsconfig.Scope, this, v goja.Value) {
				setAttr(native[*HTMLOptionElement](scopeOf(s), this).node, "value", v.String())
			}),
			jsconfig.Property("selected", optionGetter(func(w *Window, o *HTMLOptionElement) goja.Value {
				return w.rt.ToValue(o.isSelected())
			}), func(s jsconfig.Scope, this, v goja.Value) {
				selected := v.ToBoolean()
				native[*HTMLOptionElement](scopeOf(s), this).selected = &selected
			}),
			jsconfig.Property("defaultSelected", optionGetter(func(w *Window, o *HTMLOptionElement) goja.Value {
				_, ok := attr(o.node, "selected")
				return w.rt.ToValue(ok)
			}), nil),
			jsconfig.Property("form", optionGetter(func(w *Window, o *HTMLOptionElement) goja.Value {
				if f := w.formOf(o); f != nil {
					return w.Wrap(f)
				}
				return goja.Null()
			}), nil),
		},
	}
}
