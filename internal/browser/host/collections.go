// internal/browser/host/collections.go
package host

import (
	"reflect"
	"strconv"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

// indexed natives answer integer property keys.
type indexed interface {
	size() int
	item(w *Window, i int) goja.Value
}

// named natives answer property keys that are not on their prototype chain.
type named interface {
	lookupName(w *Window, name string) goja.Value
}

// HTMLCollection is a live, filtered view of the elements below a root.
type HTMLCollection struct {
	root  *html.Node
	match func(*html.Node) bool
}

func newHTMLCollection(root *html.Node, match func(*html.Node) bool) *HTMLCollection {
	return &HTMLCollection{root: root, match: match}
}

func (c *HTMLCollection) collection() *HTMLCollection { return c }

func (c *HTMLCollection) elements() []*html.Node {
	if c.root == nil {
		return nil
	}
	return collect(c.root, c.match)
}

func (c *HTMLCollection) size() int { return len(c.elements()) }

func (c *HTMLCollection) item(w *Window, i int) goja.Value {
	els := c.elements()
	if i < 0 || i >= len(els) {
		return nil
	}
	return w.WrapNode(els[i])
}

// namedItem returns the first element whose id, or failing that name, matches.
func (c *HTMLCollection) namedItem(w *Window, name string) goja.Value {
	if name == "" {
		return nil
	}
	els := c.elements()
	for _, n := range els {
		if id, ok := attr(n, "id"); ok && id == name {
			return w.WrapNode(n)
		}
	}
	for _, n := range els {
		if nm, ok := attr(n, "name"); ok && nm == name {
			return w.WrapNode(n)
		}
	}
	return nil
}

func (c *HTMLCollection) lookupName(w *Window, name string) goja.Value { return c.namedItem(w, name) }

type collectionLike interface {
	indexed
	collection() *HTMLCollection
	namedItem(w *Window, name string) goja.Value
}

// HTMLFormControlsCollection is the elements collection of a form.
type HTMLFormControlsCollection struct {
	HTMLCollection
}

// namedItem returns null for an empty name or no match, the element itself for a single
// match, and a RadioNodeList when several controls share the name or id.
func (c *HTMLFormControlsCollection) namedItem(w *Window, name string) goja.Value {
	if name == "" {
		return nil
	}
	matches := c.matching(name)
	switch len(matches) {
	case 0:
		return nil
	case 1:
		return w.WrapNode(matches[0])
	default:
		return w.Wrap(c.radioNodeList(w, name))
	}
}

func (c *HTMLFormControlsCollection) lookupName(w *Window, name string) goja.Value {
	return c.namedItem(w, name)
}

func (c *HTMLFormControlsCollection) matching(name string) []*html.Node {
	var out []*html.Node
	for _, n := range c.elements() {
		if nm, ok := attr(n, "name"); ok && nm == name {
			out = append(out, n)
			continue
		}
		if id, ok := attr(n, "id"); ok && id == name {
			out = append(out, n)
		}
	}
	return out
}

// radioNodeList returns the live list for name, reusing it across lookups so repeated
// access yields the same object.
func (c *HTMLFormControlsCollection) radioNodeList(w *Window, name string) *RadioNodeList {
	key := liveKey{node: c.root, kind: "radio:" + name}
	if l, ok := w.liveLists[key].(*RadioNodeList); ok {
		return l
	}
	l := &RadioNodeList{NodeList: NodeList{source: func() []*html.Node { return c.matching(name) }}}
	w.liveLists[key] = l
	return l
}

// NodeList is an ordered list of nodes, either live (backed by a source function) or a
// static snapshot.
type NodeList struct {
	source func() []*html.Node
}

func staticNodeList(nodes []*html.Node) *NodeList {
	return &NodeList{source: func() []*html.Node { return nodes }}
}

func (l *NodeList) nodeList() *NodeList { return l }

func (l *NodeList) nodes() []*html.Node { return l.source() }

func (l *NodeList) size() int { return len(l.nodes()) }

func (l *NodeList) item(w *Window, i int) goja.Value {
	ns := l.nodes()
	if i < 0 || i >= len(ns) {
		return nil
	}
	return w.WrapNode(ns[i])
}

type nodeListLike interface {
	indexed
	nodeList() *NodeList
}

// RadioNodeList is the list namedItem returns for controls sharing a name.
type RadioNodeList struct {
	NodeList
}

// value is the value of the first checked radio button, or "" when none is checked.
func (w *Window) radioValue(l *RadioNodeList) string {
	for _, n := range l.nodes() {
		in, ok := w.nodeNative(n).(*HTMLInputElement)
		if !ok || in.inputType() != "radio" {
			continue
		}
		if in.isChecked() {
			return attrOr(n, "value", "on")
		}
	}
	return ""
}

// setRadioValue checks the first radio button whose value equals v.
func (w *Window) setRadioValue(l *RadioNodeList, v string) {
	for _, n := range l.nodes() {
		in, ok := w.nodeNative(n).(*HTMLInputElement)
		if !ok || in.inputType() != "radio" {
			continue
		}
		if attrOr(n, "value", "on") == v {
			in.setChecked(w, true)
			return
		}
	}
}

type liveKey struct {
	node *html.Node
	kind string
}

// childNodes is the live child list of n. The same list is returned on every call.
func (w *Window) childNodes(n *html.Node) *NodeList {
	key := liveKey{node: n, kind: "childNodes"}
	if l, ok := w.liveLists[key].(*NodeList); ok {
		return l
	}
	l := &NodeList{source: func() []*html.Node {
		var out []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			out = append(out, c)
		}
		return out
	}}
	w.liveLists[key] = l
	return l
}

// children is the live element child collection of n.
func (w *Window) children(n *html.Node) *HTMLCollection {
	return w.liveCollection(n, "children", func(c *html.Node) bool {
		return c.Parent == n && c.Type == html.ElementNode
	})
}

// liveCollection returns the collection of kind under root, creating it on first use so
// every lookup of the same kind yields the same object.
func (w *Window) liveCollection(root *html.Node, kind string, match func(*html.Node) bool) *HTMLCollection {
	key := liveKey{node: root, kind: kind}
	if c, ok := w.liveLists[key].(*HTMLCollection); ok {
		return c
	}
	c := newHTMLCollection(root, match)
	w.liveLists[key] = c
	return c
}

// -- Dynamic object handler --

// indexedHandler backs the script object of an indexed or named native. Index keys and
// names resolve against the native; anything the prototype chain defines is left to the
// prototype; other keys are ordinary expando properties.
type indexedHandler struct {
	w       *Window
	obj     *goja.Object
	target  any
	expando map[string]goja.Value
	order   []string
}

func arrayIndex(key string) (int, bool) {
	if key == "" || (len(key) > 1 && key[0] == '0') {
		return 0, false
	}
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// onPrototype reports whether key is an own property of any object on the prototype
// chain. Property descriptors are inspected by name only, so no getter runs.
func (h *indexedHandler) onPrototype(key string) bool {
	for p := h.obj.Prototype(); p != nil; p = p.Prototype() {
		for _, k := range p.GetOwnPropertyNames() {
			if k == key {
				return true
			}
		}
	}
	return false
}

func (h *indexedHandler) Get(key string) goja.Value {
	if i, ok := arrayIndex(key); ok {
		if ix, ok := h.target.(indexed); ok {
			return ix.item(h.w, i)
		}
		return nil
	}
	if v, ok := h.expando[key]; ok {
		return v
	}
	if nm, ok := h.target.(named); ok && !h.onPrototype(key) {
		return nm.lookupName(h.w, key)
	}
	return nil
}

func (h *indexedHandler) Set(key string, val goja.Value) bool {
	if _, ok := arrayIndex(key); ok {
		if _, isIndexed := h.target.(indexed); isIndexed {
			return false
		}
	}
	if _, ok := h.expando[key]; !ok {
		h.order = append(h.order, key)
	}
	h.expando[key] = val
	return true
}

func (h *indexedHandler) Has(key string) bool {
	if i, ok := arrayIndex(key); ok {
		if ix, ok := h.target.(indexed); ok {
			return i < ix.size()
		}
	}
	if _, ok := h.expando[key]; ok {
		return true
	}
	if nm, ok := h.target.(named); ok && !h.onPrototype(key) {
		return nm.lookupName(h.w, key) != nil
	}
	return false
}

func (h *indexedHandler) Delete(key string) bool {
	if i, ok := arrayIndex(key); ok {
		if ix, ok := h.target.(indexed); ok && i < ix.size() {
			return false
		}
	}
	if _, ok := h.expando[key]; ok {
		delete(h.expando, key)
		for i, k := range h.order {
			if k == key {
				h.order = append(h.order[:i], h.order[i+1:]...)
				break
			}
		}
	}
	return true
}

func (h *indexedHandler) Keys() []string {
	var keys []string
	if ix, ok := h.target.(indexed); ok {
		n := ix.size()
		keys = make([]string, 0, n+len(h.order))
		for i := 0; i < n; i++ {
			keys = append(keys, strconv.Itoa(i))
		}
	}
	return append(keys, h.order...)
}

// -- Members --

// snapshot converts the current contents of an indexed native to a script array.
func snapshot(w *Window, ix indexed) *goja.Object {
	n := ix.size()
	vals := make([]any, n)
	for i := 0; i < n; i++ {
		vals[i] = ix.item(w, i)
	}
	return w.rt.NewArray(vals...)
}

// arrayIteratorFunc returns a member that delegates to the named Array.prototype
// iterator method over a snapshot of the receiver.
func arrayIteratorFunc(method string) jsconfig.FunctionFunc {
	return func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
		w := scopeOf(s)
		arr := snapshot(w, native[indexed](w, call.This))
		fn, ok := goja.AssertFunction(arr.Get(method))
		if !ok {
			w.throwTypeError("Array.prototype.%s is not a function", method)
		}
		it, err := fn(arr)
		if err != nil {
			panic(err)
		}
		return it
	}
}

func lengthProperty() jsconfig.Member {
	return jsconfig.Property("length", func(s jsconfig.Scope, this goja.Value) goja.Value {
		w := scopeOf(s)
		return w.rt.ToValue(native[indexed](w, this).size())
	}, nil)
}

func itemFunction() jsconfig.Member {
	return jsconfig.Function("item", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
		w := scopeOf(s)
		ix := native[indexed](w, call.This)
		if v := ix.item(w, int(call.Argument(0).ToInteger())); v != nil {
			return v
		}
		return goja.Null()
	}).WithLength(1)
}

func namedItemFunction() jsconfig.Member {
	return jsconfig.Function("namedItem", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
		w := scopeOf(s)
		c := native[collectionLike](w, call.This)
		if v := c.namedItem(w, call.Argument(0).String()); v != nil {
			return v
		}
		return goja.Null()
	}).WithLength(1)
}

func htmlCollectionClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "HTMLCollection",
		Native:   reflect.TypeOf((*HTMLCollection)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			lengthProperty(),
			itemFunction(),
			namedItemFunction(),
			jsconfig.Symbol(jsconfig.SymbolIterator, "", arrayIteratorFunc("values")),
		},
	}
}

func htmlFormControlsCollectionClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "HTMLFormControlsCollection",
		Extends:  "HTMLCollection",
		Native:   reflect.TypeOf((*HTMLFormControlsCollection)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			namedItemFunction(),
		},
	}
}

func nodeListClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "NodeList",
		Native:   reflect.TypeOf((*NodeList)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			lengthProperty(),
			itemFunction(),
			jsconfig.Function("entries", arrayIteratorFunc("entries")),
			jsconfig.Function("keys", arrayIteratorFunc("keys")),
			jsconfig.Function("values", arrayIteratorFunc("values")),
			jsconfig.Function("forEach", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				w := scopeOf(s)
				l := native[nodeListLike](w, call.This)
				fn, ok := goja.AssertFunction(call.Argument(0))
				if !ok {
					w.throwTypeError("Failed to execute 'forEach' on 'NodeList': The callback provided as parameter 1 is not a function.")
				}
				for i, n := range l.nodeList().nodes() {
					if _, err := fn(call.Argument(1), w.WrapNode(n), w.rt.ToValue(i), call.This); err != nil {
						panic(err)
					}
				}
				return goja.Undefined()
			}).WithLength(1),
			jsconfig.Symbol(jsconfig.SymbolIterator, "values", arrayIteratorFunc("values")),
		},
	}
}

func radioNodeListClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "RadioNodeList",
		Extends:  "NodeList",
		Native:   reflect.TypeOf((*RadioNodeList)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			jsconfig.Property("value", func(s jsconfig.Scope, this goja.Value) goja.Value {
				w := scopeOf(s)
				return w.rt.ToValue(w.radioValue(native[*RadioNodeList](w, this)))
			}, func(s jsconfig.Scope, this, v goja.Value) {
				w := scopeOf(s)
				w.setRadioValue(native[*RadioNodeList](w, this), v.String())
			}),
		},
	}
}
