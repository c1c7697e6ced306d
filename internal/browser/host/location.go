// internal/browser/host/location.go
package host

import (
	"net/url"
	"reflect"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

// Location is window.location. Assignments navigate the window through the postponed
// action queue; fragment-only changes stay on the page.
type Location struct {
	window   *Window
	fragment *string
}

func (l *Location) current() *url.URL {
	if l.window == nil || l.window.page == nil || l.window.page.URL() == nil {
		u, _ := url.Parse("about:blank")
		return u
	}
	u := *l.window.page.URL()
	if l.fragment != nil {
		u.Fragment = *l.fragment
	}
	return &u
}

// assign resolves ref against the page of the scope that started the running call and
// schedules the navigation.
func (l *Location) assign(ref, description string) {
	w := l.window
	base := w.startingPage()
	if base == nil {
		return
	}
	target, err := base.ResolveURL(ref)
	if err != nil {
		w.logger.Warn("Ignoring navigation to malformed URL", zap.String("url", ref), zap.Error(err))
		return
	}
	cur := l.current()
	if target.Fragment != "" && sameDocument(cur, target) {
		frag := target.Fragment
		l.fragment = &frag
		w.Fire(nil, "hashchange", false, false)
		return
	}
	w.navigate(description, page.Request{URL: target, Method: "GET"})
}

func sameDocument(a, b *url.URL) bool {
	x, y := *a, *b
	x.Fragment, y.Fragment = "", ""
	return x.String() == y.String()
}

func (l *Location) setPart(part, value string) {
	u := l.current()
	switch part {
	case "protocol":
		u.Scheme = strings.TrimSuffix(value, ":")
	case "host":
		u.Host = value
	case "hostname":
		if port := u.Port(); port != "" {
			u.Host = value + ":" + port
		} else {
			u.Host = value
		}
	case "port":
		if value == "" {
			u.Host = u.Hostname()
		} else {
			u.Host = u.Hostname() + ":" + value
		}
	case "pathname":
		u.Path = value
		u.RawPath = ""
	case "search":
		u.RawQuery = strings.TrimPrefix(value, "?")
	case "hash":
		u.Fragment = strings.TrimPrefix(value, "#")
	}
	l.assign(u.String(), "location."+part)
}

func locationPart(name string, get func(u *url.URL) string) jsconfig.Member {
	return jsconfig.Property(name, func(s jsconfig.Scope, this goja.Value) goja.Value {
		w := scopeOf(s)
		return w.rt.ToValue(get(native[*Location](w, this).current()))
	}, func(s jsconfig.Scope, this, v goja.Value) {
		native[*Location](scopeOf(s), this).setPart(name, v.String())
	})
}

func locationHref(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
	w := scopeOf(s)
	return w.rt.ToValue(native[*Location](w, call.This).current().String())
}

func locationClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:     "Location",
		Native:   reflect.TypeOf((*Location)(nil)),
		JSObject: true,
		Members: []jsconfig.Member{
			jsconfig.Property("href", func(s jsconfig.Scope, this goja.Value) goja.Value {
				w := scopeOf(s)
				return w.rt.ToValue(native[*Location](w, this).current().String())
			}, func(s jsconfig.Scope, this, v goja.Value) {
				native[*Location](scopeOf(s), this).assign(v.String(), "location.href")
			}),
			locationPart("protocol", func(u *url.URL) string { return u.Scheme + ":" }),
			locationPart("host", func(u *url.URL) string { return u.Host }),
			locationPart("hostname", func(u *url.URL) string { return u.Hostname() }),
			locationPart("port", func(u *url.URL) string { return u.Port() }),
			locationPart("pathname", func(u *url.URL) string {
				if u.Path == "" && u.Opaque == "" {
					return "/"
				}
				if u.Opaque != "" {
					return u.Opaque
				}
				return u.EscapedPath()
			}),
			locationPart("search", func(u *url.URL) string {
				if u.RawQuery == "" {
					return ""
				}
				return "?" + u.RawQuery
			}),
			locationPart("hash", func(u *url.URL) string {
				if u.Fragment == "" {
					return ""
				}
				return "#" + u.EscapedFragment()
			}),
			jsconfig.Property("origin", func(s jsconfig.Scope, this goja.Value) goja.Value {
				w := scopeOf(s)
				u := native[*Location](w, this).current()
				if u.Host == "" {
					return w.rt.ToValue("null")
				}
				return w.rt.ToValue(u.Scheme + "://" + u.Host)
			}, nil),
			jsconfig.Function("assign", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				native[*Location](scopeOf(s), call.This).assign(call.Argument(0).String(), "location.assign")
				return goja.Undefined()
			}).WithLength(1),
			jsconfig.Function("replace", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				native[*Location](scopeOf(s), call.This).assign(call.Argument(0).String(), "location.replace")
				return goja.Undefined()
			}).WithLength(1),
			jsconfig.Function("reload", func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
				w := scopeOf(s)
				l := native[*Location](w, call.This)
				u := l.current()
				u.Fragment = ""
				w.navigate("location.reload", page.Request{URL: u, Method: "GET"})
				return goja.Undefined()
			}),
			jsconfig.Function("toString", locationHref),
		},
	}
}
