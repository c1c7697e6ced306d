// internal/browser/host/document.go
package host

import (
	"reflect"
	"strings"

	"github.com/dop251/goja"
	"golang.org/x/net/html"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

// HTMLDocument is the document node of a page.
type HTMLDocument struct {
	Node
}

// lookupName resolves document.<name> to the forms and images carrying that name. One
// match yields the element, several a collection.
func (d *HTMLDocument) lookupName(w *Window, name string) goja.Value {
	if name == "" {
		return nil
	}
	matches := collect(d.node, func(n *html.Node) bool {
		return isElement("form", "img")(n) && attrOr(n, "name", "") == name
	})
	switch len(matches) {
	case 0:
		return nil
	case 1:
		return w.WrapNode(matches[0])
	default:
		return w.Wrap(staticNodeList(matches))
	}
}

func (d *HTMLDocument) documentElement() *html.Node {
	for c := d.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

func (d *HTMLDocument) first(tag string) *html.Node {
	nodes := collect(d.node, isElement(tag))
	if len(nodes) == 0 {
		return nil
	}
	return nodes[0]
}

func (d *HTMLDocument) title() string {
	if t := d.first("title"); t != nil {
		return strings.Join(strings.Fields(textContent(t)), " ")
	}
	return ""
}

func (d *HTMLDocument) setTitle(title string) {
	t := d.first("title")
	if t == nil {
		head := d.first("head")
		if head == nil {
			return
		}
		t = newElement("title")
		head.AppendChild(t)
	}
	removeChildren(t)
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
}

func docGetter(get func(w *Window, d *HTMLDocument) goja.Value) jsconfig.GetterFunc {
	return func(s jsconfig.Scope, this goja.Value) goja.Value {
		w := scopeOf(s)
		return get(w, native[*HTMLDocument](w, this))
	}
}

func docFunc(fn func(w *Window, d *HTMLDocument, call goja.FunctionCall) goja.Value) jsconfig.FunctionFunc {
	return func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
		w := scopeOf(s)
		return fn(w, native[*HTMLDocument](w, call.This), call)
	}
}

func documentClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "Document",
		Extends:  "Node",
		JSObject: true,
		Members: []jsconfig.Member{
			jsconfig.Property("documentElement", docGetter(func(w *Window, d *HTMLDocument) goja.Value {
				return w.WrapNode(d.documentElement())
			}), nil),
			jsconfig.Property("head", docGetter(func(w *Window, d *HTMLDocument) goja.Value {
				return w.WrapNode(d.first("head"))
			}), nil),
			jsconfig.Property("body", docGetter(func(w *Window, d *HTMLDocument) goja.Value {
				return w.WrapNode(d.first("body"))
			}), nil),
			jsconfig.Property("title", docGetter(func(w *Window, d *HTMLDocument) goja.Value {
				return w.rt.ToValue(d.title())
			}), func(s jsconfig.Scope, this, v goja.Value) {
				native[*HTMLDocument](scopeOf(s), this).setTitle(v.String())
			}),
			jsconfig.Property("URL", docGetter(func(w *Window, _ *HTMLDocument) goja.Value {
				if w.page == nil || w.page.URL() == nil {
					return w.rt.ToValue("about:blank")
				}
				return w.rt.ToValue(w.page.URL().String())
			}), nil),
			jsconfig.Property("readyState", docGetter(func(w *Window, _ *HTMLDocument) goja.Value {
				return w.rt.ToValue("complete")
			}), nil),
			jsconfig.Property("location", docGetter(func(w *Window, _ *HTMLDocument) goja.Value {
				if w.location == nil {
					return goja.Null()
				}
				return w.Wrap(w.location)
			}), func(s jsconfig.Scope, _ goja.Value, v goja.Value) {
				w := scopeOf(s)
				if w.location != nil {
					w.location.assign(v.String(), "document.location")
				}
			}),
			jsconfig.Property("defaultView", docGetter(func(w *Window, _ *HTMLDocument) goja.Value {
				return w.global.JS()
			}), nil),
			jsconfig.Property("forms", docGetter(func(w *Window, d *HTMLDocument) goja.Value {
				return w.Wrap(w.liveCollection(d.node, "forms", isElement("form")))
			}), nil),
			jsconfig.Property("images", docGetter(func(w *Window, d *HTMLDocument) goja.Value {
				return w.Wrap(w.liveCollection(d.node, "images", isElement("img")))
			}), nil),

			jsconfig.Function("getElementById", docFunc(func(w *Window, d *HTMLDocument, call goja.FunctionCall) goja.Value {
				return w.WrapNode(findByID(d.node, call.Argument(0).String()))
			})).WithLength(1),
			jsconfig.Function("getElementsByTagName", docFunc(func(w *Window, d *HTMLDocument, call goja.FunctionCall) goja.Value {
				return w.Wrap(newHTMLCollection(d.node, isElement(call.Argument(0).String())))
			})).WithLength(1),
			jsconfig.Function("getElementsByClassName", docFunc(func(w *Window, d *HTMLDocument, call goja.FunctionCall) goja.Value {
				return w.Wrap(newHTMLCollection(d.node, hasClass(call.Argument(0).String())))
			})).WithLength(1),
			jsconfig.Function("getElementsByName", docFunc(func(w *Window, d *HTMLDocument, call goja.FunctionCall) goja.Value {
				name := call.Argument(0).String()
				root := d.node
				return w.Wrap(&NodeList{source: func() []*html.Node {
					return collect(root, func(n *html.Node) bool {
						return n.Type == html.ElementNode && attrOr(n, "name", "") == name
					})
				}})
			})).WithLength(1),
			jsconfig.Function("querySelector", docFunc(func(w *Window, d *HTMLDocument, call goja.FunctionCall) goja.Value {
				nodes := querySelectorAll(w, d.node, call.Argument(0).String())
				if len(nodes) == 0 {
					return goja.Null()
				}
				return w.WrapNode(nodes[0])
			})).WithLength(1),
			jsconfig.Function("querySelectorAll", docFunc(func(w *Window, d *HTMLDocument, call goja.FunctionCall) goja.Value {
				return w.Wrap(staticNodeList(querySelectorAll(w, d.node, call.Argument(0).String())))
			})).WithLength(1),
			jsconfig.Function("createElement", docFunc(func(w *Window, _ *HTMLDocument, call goja.FunctionCall) goja.Value {
				tag := call.Argument(0).String()
				if tag == "" || strings.ContainsAny(tag, " <>/\"'=") {
					w.throwTypeError("Failed to execute 'createElement' on 'Document': The tag name provided ('%s') is not a valid name.", tag)
				}
				return w.WrapNode(newElement(tag))
			})).WithLength(1),
			jsconfig.Function("createTextNode", docFunc(func(w *Window, _ *HTMLDocument, call goja.FunctionCall) goja.Value {
				return w.WrapNode(&html.Node{Type: html.TextNode, Data: call.Argument(0).String()})
			})).WithLength(1),
		},
	}
}

func htmlDocumentClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "HTMLDocument",
		Extends:  "Document",
		Native:   reflect.TypeOf((*HTMLDocument)(nil)),
		JSObject: true,
	}
}
