// internal/browser/host/dom.go
package host

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

// Node type constants.
const (
	ElementNode          = 1
	AttributeNode        = 2
	TextNode             = 3
	CommentNode          = 8
	DocumentNode         = 9
	DocumentFragmentNode = 11
)

// Node is the native behind every DOM node script object.
type Node struct {
	EventTarget
	node *html.Node
}

// DomNode is the underlying parsed node.
func (n *Node) DomNode() *html.Node { return n.node }

type domNode interface {
	DomNode() *html.Node
}

// HTMLElement is the native for elements without a more specific class.
type HTMLElement struct {
	Node
}

func (e *HTMLElement) element() *HTMLElement { return e }

type elementLike interface {
	domNode
	element() *HTMLElement
}

// Text is a text node.
type Text struct {
	Node
}

// -- Tree helpers --

// walk visits the descendants of root in document order until visit returns false.
func walk(root *html.Node, visit func(*html.Node) bool) bool {
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if !visit(c) || !walk(c, visit) {
			return false
		}
	}
	return true
}

func collect(root *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	walk(root, func(n *html.Node) bool {
		if match(n) {
			out = append(out, n)
		}
		return true
	})
	return out
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrOr(n *html.Node, key, def string) string {
	if v, ok := attr(n, key); ok {
		return v
	}
	return def
}

func setAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
}

func removeAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

func isElement(tags ...string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		if len(tags) == 0 {
			return true
		}
		for _, t := range tags {
			if t == "*" || strings.EqualFold(n.Data, t) {
				return true
			}
		}
		return false
	}
}

func hasClass(name string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, c := range strings.Fields(attrOr(n, "class", "")) {
			if c == name {
				return true
			}
		}
		return false
	}
}

func findByID(root *html.Node, id string) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if v, ok := attr(n, "id"); ok && n.Type == html.ElementNode && v == id {
			found = n
			return false
		}
		return true
	})
	return found
}

func removeChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
}

func cloneNode(n *html.Node, deep bool) *html.Node {
	clone := &html.Node{
		Type:      n.Type,
		DataAtom:  n.DataAtom,
		Data:      n.Data,
		Namespace: n.Namespace,
		Attr:      make([]html.Attribute, len(n.Attr)),
	}
	copy(clone.Attr, n.Attr)
	if deep {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			clone.AppendChild(cloneNode(c, true))
		}
	}
	return clone
}

func nodeType(n *html.Node) int {
	switch n.Type {
	case html.ElementNode:
		return ElementNode
	case html.TextNode:
		return TextNode
	case html.CommentNode:
		return CommentNode
	case html.DocumentNode:
		return DocumentNode
	default:
		return 0
	}
}

func nodeName(n *html.Node) string {
	switch n.Type {
	case html.ElementNode:
		return strings.ToUpper(n.Data)
	case html.TextNode:
		return "#text"
	case html.CommentNode:
		return "#comment"
	case html.DocumentNode:
		return "#document"
	default:
		return ""
	}
}

func newElement(tag string) *html.Node {
	tag = strings.ToLower(tag)
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// translateCSSToXPath translates the simple selectors scripts use most (tags, ids,
// classes, descendant combinators) to XPath. Anything starting like an XPath expression
// is passed through.
func translateCSSToXPath(css string) string {
	css = strings.TrimSpace(css)
	if css == "*" {
		return "//*"
	}
	if strings.HasPrefix(css, "/") || strings.HasPrefix(css, "./") || strings.HasPrefix(css, "(") {
		return css
	}

	var xpath strings.Builder
	xpath.WriteString("//")
	for i, part := range strings.Fields(css) {
		if i > 0 {
			xpath.WriteString("//")
		}
		tag := "*"
		var predicates []string
		explicitTag := false
		rest := part
		for len(rest) > 0 {
			switch {
			case rest[0] == '#' || rest[0] == '.':
				end := strings.IndexAny(rest[1:], ".#")
				if end == -1 {
					end = len(rest)
				} else {
					end++
				}
				name := rest[1:end]
				if !strings.Contains(name, "'") {
					if rest[0] == '#' {
						predicates = append(predicates, fmt.Sprintf("@id='%s'", name))
					} else {
						predicates = append(predicates, fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", name))
					}
				}
				rest = rest[end:]
			case !explicitTag:
				end := strings.IndexAny(rest, ".#")
				if end == -1 {
					end = len(rest)
				}
				tag = rest[:end]
				explicitTag = true
				rest = rest[end:]
			default:
				rest = ""
			}
		}
		xpath.WriteString(tag)
		if len(predicates) > 0 {
			xpath.WriteString("[" + strings.Join(predicates, " and ") + "]")
		}
	}
	return xpath.String()
}

func querySelectorAll(w *Window, root *html.Node, selector string) []*html.Node {
	xpath := translateCSSToXPath(selector)
	if root.Type != html.DocumentNode && !strings.HasPrefix(xpath, ".") {
		xpath = "." + xpath
	}
	nodes, err := htmlquery.QueryAll(root, xpath)
	if err != nil {
		panic(w.rt.NewGoError(fmt.Errorf("'%s' is not a valid selector", selector)))
	}
	return nodes
}

// -- Members --

func nodeGetter(get func(w *Window, n *html.Node) goja.Value) jsconfig.GetterFunc {
	return func(s jsconfig.Scope, this goja.Value) goja.Value {
		w := scopeOf(s)
		return get(w, native[domNode](w, this).DomNode())
	}
}

func nodeFunc(fn func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value) jsconfig.FunctionFunc {
	return func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
		w := scopeOf(s)
		return fn(w, native[domNode](w, call.This).DomNode(), call)
	}
}

func argNode(w *Window, v goja.Value, method string) *html.Node {
	n, ok := w.Unwrap(v).(domNode)
	if !ok {
		w.throwTypeError("Failed to execute '%s' on 'Node': parameter 1 is not of type 'Node'.", method)
	}
	return n.DomNode()
}

func textContent(n *html.Node) string {
	switch n.Type {
	case html.TextNode, html.CommentNode:
		return n.Data
	default:
		return htmlquery.InnerText(n)
	}
}

func nodeClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "Node",
		Extends:  "EventTarget",
		Native:   reflect.TypeOf((*Node)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			jsconfig.Constant("ELEMENT_NODE", ElementNode),
			jsconfig.Constant("ATTRIBUTE_NODE", AttributeNode),
			jsconfig.Constant("TEXT_NODE", TextNode),
			jsconfig.Constant("COMMENT_NODE", CommentNode),
			jsconfig.Constant("DOCUMENT_NODE", DocumentNode),
			jsconfig.Constant("DOCUMENT_FRAGMENT_NODE", DocumentFragmentNode),

			jsconfig.Property("nodeType", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				return w.rt.ToValue(nodeType(n))
			}), nil),
			jsconfig.Property("nodeName", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				return w.rt.ToValue(nodeName(n))
			}), nil),
			jsconfig.Property("nodeValue", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				if n.Type == html.TextNode || n.Type == html.CommentNode {
					return w.rt.ToValue(n.Data)
				}
				return goja.Null()
			}), func(s jsconfig.Scope, this, v goja.Value) {
				n := native[domNode](scopeOf(s), this).DomNode()
				if n.Type == html.TextNode || n.Type == html.CommentNode {
					n.Data = v.String()
				}
			}),
			jsconfig.Property("parentNode", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				return w.WrapNode(n.Parent)
			}), nil),
			jsconfig.Property("parentElement", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				if n.Parent != nil && n.Parent.Type == html.ElementNode {
					return w.WrapNode(n.Parent)
				}
				return goja.Null()
			}), nil),
			jsconfig.Property("childNodes", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				return w.Wrap(w.childNodes(n))
			}), nil),
			jsconfig.Property("firstChild", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				return w.WrapNode(n.FirstChild)
			}), nil),
			jsconfig.Property("lastChild", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				return w.WrapNode(n.LastChild)
			}), nil),
			jsconfig.Property("nextSibling", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				return w.WrapNode(n.NextSibling)
			}), nil),
			jsconfig.Property("previousSibling", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				return w.WrapNode(n.PrevSibling)
			}), nil),
			jsconfig.Property("ownerDocument", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				if n.Type == html.DocumentNode || w.document == nil {
					return goja.Null()
				}
				return w.Wrap(w.document)
			}), nil),
			jsconfig.Property("textContent", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				if n.Type == html.DocumentNode {
					return goja.Null()
				}
				return w.rt.ToValue(textContent(n))
			}), func(s jsconfig.Scope, this, v goja.Value) {
				n := native[domNode](scopeOf(s), this).DomNode()
				switch n.Type {
				case html.TextNode, html.CommentNode:
					n.Data = v.String()
				case html.ElementNode:
					removeChildren(n)
					n.AppendChild(&html.Node{Type: html.TextNode, Data: v.String()})
				}
			}),

			jsconfig.Function("hasChildNodes", nodeFunc(func(w *Window, n *html.Node, _ goja.FunctionCall) goja.Value {
				return w.rt.ToValue(n.FirstChild != nil)
			})),
			jsconfig.Function("appendChild", nodeFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				child := argNode(w, call.Argument(0), "appendChild")
				if child.Parent != nil {
					child.Parent.RemoveChild(child)
				}
				n.AppendChild(child)
				return call.Argument(0)
			})).WithLength(1),
			jsconfig.Function("removeChild", nodeFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				child := argNode(w, call.Argument(0), "removeChild")
				if child.Parent != n {
					panic(w.rt.NewGoError(fmt.Errorf("failed to execute 'removeChild' on 'Node': the node to be removed is not a child of this node")))
				}
				n.RemoveChild(child)
				return call.Argument(0)
			})).WithLength(1),
			jsconfig.Function("insertBefore", nodeFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				child := argNode(w, call.Argument(0), "insertBefore")
				var ref *html.Node
				if r := call.Argument(1); !goja.IsNull(r) && !goja.IsUndefined(r) {
					ref = argNode(w, r, "insertBefore")
					if ref.Parent != n {
						panic(w.rt.NewGoError(fmt.Errorf("failed to execute 'insertBefore' on 'Node': the node before which the new node is to be inserted is not a child of this node")))
					}
				}
				if child.Parent != nil {
					child.Parent.RemoveChild(child)
				}
				n.InsertBefore(child, ref)
				return call.Argument(0)
			})).WithLength(2),
			jsconfig.Function("cloneNode", nodeFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				return w.WrapNode(cloneNode(n, call.Argument(0).ToBoolean()))
			})),
			jsconfig.Function("contains", nodeFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				other, ok := w.Unwrap(call.Argument(0)).(domNode)
				if !ok {
					return w.rt.ToValue(false)
				}
				for p := other.DomNode(); p != nil; p = p.Parent {
					if p == n {
						return w.rt.ToValue(true)
					}
				}
				return w.rt.ToValue(false)
			})).WithLength(1),
		},
	}
}

func characterDataClass() jsconfig.ClassDefinition {
	data := jsconfig.Property("data", nodeGetter(func(w *Window, n *html.Node) goja.Value {
		return w.rt.ToValue(n.Data)
	}), func(s jsconfig.Scope, this, v goja.Value) {
		native[domNode](scopeOf(s), this).DomNode().Data = v.String()
	})
	return jsconfig.ClassDefinition{
		Name:     "CharacterData",
		Extends:  "Node",
		JSObject: true,
		Members: []jsconfig.Member{
			data,
			jsconfig.Property("length", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				return w.rt.ToValue(len([]rune(n.Data)))
			}), nil),
		},
	}
}

func textClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "Text",
		Extends:  "CharacterData",
		Native:   reflect.TypeOf((*Text)(nil)),
		JSObject: true,
		Constructor: func(s jsconfig.Scope, call goja.ConstructorCall) *goja.Object {
			w := scopeOf(s)
			data := ""
			if v := call.Argument(0); !goja.IsUndefined(v) {
				data = v.String()
			}
			w.adoptNode(call.This, &Text{Node: Node{node: &html.Node{Type: html.TextNode, Data: data}}})
			return nil
		},
		Members: []jsconfig.Member{
			jsconfig.Property("wholeText", nodeGetter(func(w *Window, n *html.Node) goja.Value {
				return w.rt.ToValue(n.Data)
			}), nil),
		},
	}
}

func elementGetter(get func(w *Window, n *html.Node) goja.Value) jsconfig.GetterFunc {
	return func(s jsconfig.Scope, this goja.Value) goja.Value {
		w := scopeOf(s)
		return get(w, native[elementLike](w, this).DomNode())
	}
}

func reflectAttr(name string) jsconfig.Member {
	return jsconfig.Property(name, elementGetter(func(w *Window, n *html.Node) goja.Value {
		return w.rt.ToValue(attrOr(n, name, ""))
	}), func(s jsconfig.Scope, this, v goja.Value) {
		setAttr(native[elementLike](scopeOf(s), this).DomNode(), name, v.String())
	})
}

func elementFunc(fn func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value) jsconfig.FunctionFunc {
	return func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
		w := scopeOf(s)
		return fn(w, native[elementLike](w, call.This).DomNode(), call)
	}
}

func elementClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "Element",
		Extends:  "Node",
		JSObject: true,
		Members: []jsconfig.Member{
			reflectAttr("id"),
			jsconfig.Property("className", elementGetter(func(w *Window, n *html.Node) goja.Value {
				return w.rt.ToValue(attrOr(n, "class", ""))
			}), func(s jsconfig.Scope, this, v goja.Value) {
				setAttr(native[elementLike](scopeOf(s), this).DomNode(), "class", v.String())
			}),
			jsconfig.Property("tagName", elementGetter(func(w *Window, n *html.Node) goja.Value {
				return w.rt.ToValue(strings.ToUpper(n.Data))
			}), nil),
			jsconfig.Property("innerHTML", elementGetter(func(w *Window, n *html.Node) goja.Value {
				return w.rt.ToValue(htmlquery.OutputHTML(n, false))
			}), func(s jsconfig.Scope, this, v goja.Value) {
				w := scopeOf(s)
				n := native[elementLike](w, this).DomNode()
				nodes, err := html.ParseFragment(strings.NewReader(v.String()), n)
				if err != nil {
					panic(w.rt.NewGoError(fmt.Errorf("failed to parse html: %w", err)))
				}
				removeChildren(n)
				for _, c := range nodes {
					n.AppendChild(c)
				}
			}),
			jsconfig.Property("outerHTML", elementGetter(func(w *Window, n *html.Node) goja.Value {
				return w.rt.ToValue(htmlquery.OutputHTML(n, true))
			}), nil),
			jsconfig.Property("children", elementGetter(func(w *Window, n *html.Node) goja.Value {
				return w.Wrap(w.children(n))
			}), nil),

			jsconfig.Function("getAttribute", elementFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				if v, ok := attr(n, strings.ToLower(call.Argument(0).String())); ok {
					return w.rt.ToValue(v)
				}
				return goja.Null()
			})).WithLength(1),
			jsconfig.Function("setAttribute", elementFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				setAttr(n, strings.ToLower(call.Argument(0).String()), call.Argument(1).String())
				return goja.Undefined()
			})).WithLength(2),
			jsconfig.Function("hasAttribute", elementFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				_, ok := attr(n, strings.ToLower(call.Argument(0).String()))
				return w.rt.ToValue(ok)
			})).WithLength(1),
			jsconfig.Function("removeAttribute", elementFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				removeAttr(n, strings.ToLower(call.Argument(0).String()))
				return goja.Undefined()
			})).WithLength(1),
			jsconfig.Function("getElementsByTagName", elementFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				return w.Wrap(newHTMLCollection(n, isElement(call.Argument(0).String())))
			})).WithLength(1),
			jsconfig.Function("getElementsByClassName", elementFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				return w.Wrap(newHTMLCollection(n, hasClass(call.Argument(0).String())))
			})).WithLength(1),
			jsconfig.Function("querySelector", elementFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				nodes := querySelectorAll(w, n, call.Argument(0).String())
				if len(nodes) == 0 {
					return goja.Null()
				}
				return w.WrapNode(nodes[0])
			})).WithLength(1),
			jsconfig.Function("querySelectorAll", elementFunc(func(w *Window, n *html.Node, call goja.FunctionCall) goja.Value {
				return w.Wrap(staticNodeList(querySelectorAll(w, n, call.Argument(0).String())))
			})).WithLength(1),
		},
	}
}

// click runs an element's activation behaviour: it fires the click event and then
// performs the default action unless a listener prevented it.
func (w *Window) click(el elementLike) {
	input, isInput := el.(*HTMLInputElement)
	var wasChecked bool
	if isInput {
		wasChecked = input.isChecked()
		switch input.inputType() {
		case "checkbox":
			input.setChecked(w, !wasChecked)
		case "radio":
			input.setChecked(w, true)
		}
	}

	if !w.Fire(el.DomNode(), "click", true, true) {
		if isInput && (input.inputType() == "checkbox" || input.inputType() == "radio") {
			input.setChecked(w, wasChecked)
		}
		return
	}
	if !isInput {
		return
	}
	form := w.formOf(input)
	if form == nil {
		return
	}
	switch input.inputType() {
	case "submit", "image":
		w.submitForm(form, input)
	case "reset":
		w.resetForm(form)
	}
}

func htmlElementClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "HTMLElement",
		Extends:  "Element",
		Native:   reflect.TypeOf((*HTMLElement)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			reflectAttr("title"),
			reflectAttr("lang"),
			jsconfig.Property("hidden", elementGetter(func(w *Window, n *html.Node) goja.Value {
				_, ok := attr(n, "hidden")
				return w.rt.ToValue(ok)
			}), func(s jsconfig.Scope, this, v goja.Value) {
				n := native[elementLike](scopeOf(s), this).DomNode()
				if v.ToBoolean() {
					setAttr(n, "hidden", "")
				} else {
					removeAttr(n, "hidden")
				}
			}),
			jsconfig.Function("click", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				w := scopeOf(s)
				w.click(native[elementLike](w, call.This))
				return goja.Undefined()
			}),
		},
	}
}
