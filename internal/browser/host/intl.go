// internal/browser/host/intl.go
package host

import (
	"strings"
	"time"
	"unicode"

	"github.com/dop251/goja"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/duonglaiquang/htmlunit/internal/browser/features"
)

// DefaultLocale is the locale scripts see when they do not ask for one.
const DefaultLocale = "en-US"

func (w *Window) throwRangeError(msg string) {
	ctor := w.rt.Get("RangeError")
	obj, err := w.rt.New(ctor, w.rt.ToValue(msg))
	if err != nil {
		panic(w.rt.NewTypeError(msg))
	}
	panic(obj)
}

// localeArg reads a locales argument (a tag or a list of tags) and returns the first
// one, or the default locale.
func (w *Window) localeArg(v goja.Value) language.Tag {
	var raw string
	switch {
	case v == nil || goja.IsUndefined(v) || goja.IsNull(v):
		raw = DefaultLocale
	case isObject(v) && v.(*goja.Object).ClassName() == "Array":
		list, _ := v.Export().([]any)
		if len(list) == 0 {
			raw = DefaultLocale
		} else {
			raw = w.rt.ToValue(list[0]).String()
		}
	default:
		raw = v.String()
	}
	tag, err := language.Parse(raw)
	if err != nil {
		w.throwRangeError("Incorrect locale information provided")
	}
	return tag
}

func dateLayout(tag language.Tag) string {
	base, _ := tag.Base()
	switch base.String() {
	case "en":
		if region, _ := tag.Region(); region.String() == "GB" {
			return "02/01/2006"
		}
		return "1/2/2006"
	case "de", "ru", "pl", "cs":
		return "2.1.2006"
	case "fr", "es", "it", "pt":
		return "02/01/2006"
	case "ja", "zh":
		return "2006/1/2"
	case "nl":
		return "2-1-2006"
	default:
		return "2006-01-02"
	}
}

func timeLayout(tag language.Tag) string {
	base, _ := tag.Base()
	if base.String() == "en" {
		if region, _ := tag.Region(); region.String() != "GB" {
			return "3:04:05 PM"
		}
	}
	return "15:04:05"
}

// thisTime reads the receiver of a Date method.
func (w *Window) thisTime(this goja.Value, method string) (time.Time, bool) {
	obj, ok := this.(*goja.Object)
	if !ok || obj.ClassName() != "Date" {
		w.throwTypeError("Date.prototype.%s called on incompatible receiver", method)
	}
	t, ok := obj.Export().(time.Time)
	return t.Local(), ok
}

func (w *Window) formatNumber(tag language.Tag, v float64, opts *goja.Object) string {
	p := message.NewPrinter(tag)
	var numOpts []number.Option
	if opts != nil {
		if d := opts.Get("maximumFractionDigits"); d != nil && !goja.IsUndefined(d) {
			numOpts = append(numOpts, number.MaxFractionDigits(int(d.ToInteger())))
		}
		if d := opts.Get("minimumFractionDigits"); d != nil && !goja.IsUndefined(d) {
			numOpts = append(numOpts, number.MinFractionDigits(int(d.ToInteger())))
		}
		if style := opts.Get("style"); style != nil && !goja.IsUndefined(style) {
			switch style.String() {
			case "percent":
				return p.Sprint(number.Percent(v, numOpts...))
			case "currency":
				code := "USD"
				if c := opts.Get("currency"); c != nil && !goja.IsUndefined(c) {
					code = strings.ToUpper(c.String())
				}
				numOpts = append(numOpts, number.MinFractionDigits(2), number.MaxFractionDigits(2))
				return code + " " + p.Sprint(number.Decimal(v, numOpts...))
			}
		}
	}
	if len(numOpts) == 0 {
		numOpts = append(numOpts, number.MaxFractionDigits(3))
	}
	return p.Sprint(number.Decimal(v, numOpts...))
}

func optionsArg(v goja.Value) *goja.Object {
	obj, _ := v.(*goja.Object)
	return obj
}

// InstallIntl defines the non-enumerable Intl namespace on the root.
func InstallIntl(w *Window) error {
	intl := w.rt.NewObject()

	dtf := func(call goja.ConstructorCall) *goja.Object {
		tag := w.localeArg(call.Argument(0))
		withTime := false
		if opts := optionsArg(call.Argument(1)); opts != nil {
			if v := opts.Get("timeStyle"); v != nil && !goja.IsUndefined(v) {
				withTime = true
			}
			if v := opts.Get("hour"); v != nil && !goja.IsUndefined(v) {
				withTime = true
			}
		}
		layout := dateLayout(tag)
		if withTime {
			layout += ", " + timeLayout(tag)
		}
		_ = call.This.Set("format", func(fc goja.FunctionCall) goja.Value {
			t := time.Now()
			if arg := fc.Argument(0); !goja.IsUndefined(arg) {
				if obj, ok := arg.(*goja.Object); ok && obj.ClassName() == "Date" {
					if exported, ok := obj.Export().(time.Time); ok {
						t = exported
					}
				} else {
					t = time.UnixMilli(arg.ToInteger())
				}
			}
			return w.rt.ToValue(t.Local().Format(layout))
		})
		_ = call.This.Set("resolvedOptions", func(goja.FunctionCall) goja.Value {
			res := w.rt.NewObject()
			_ = res.Set("locale", tag.String())
			_ = res.Set("calendar", "gregory")
			_ = res.Set("numberingSystem", "latn")
			_ = res.Set("timeZone", time.Local.String())
			return res
		})
		return nil
	}
	if err := intl.Set("DateTimeFormat", dtf); err != nil {
		return &WiringError{Class: "Intl", Member: "DateTimeFormat", Err: err}
	}

	nf := func(call goja.ConstructorCall) *goja.Object {
		tag := w.localeArg(call.Argument(0))
		opts := optionsArg(call.Argument(1))
		_ = call.This.Set("format", func(fc goja.FunctionCall) goja.Value {
			return w.rt.ToValue(w.formatNumber(tag, fc.Argument(0).ToFloat(), opts))
		})
		_ = call.This.Set("resolvedOptions", func(goja.FunctionCall) goja.Value {
			res := w.rt.NewObject()
			_ = res.Set("locale", tag.String())
			_ = res.Set("numberingSystem", "latn")
			return res
		})
		return nil
	}
	if err := intl.Set("NumberFormat", nf); err != nil {
		return &WiringError{Class: "Intl", Member: "NumberFormat", Err: err}
	}

	canonical := func(call goja.FunctionCall) goja.Value {
		arg := call.Argument(0)
		var raw []any
		switch {
		case goja.IsUndefined(arg):
		case isObject(arg) && arg.(*goja.Object).ClassName() == "Array":
			raw, _ = arg.Export().([]any)
		default:
			raw = []any{arg.String()}
		}
		seen := make(map[string]bool)
		out := []any{}
		for _, r := range raw {
			tag, err := language.Parse(w.rt.ToValue(r).String())
			if err != nil {
				w.throwRangeError("Incorrect locale information provided")
			}
			if s := tag.String(); !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
		return w.rt.NewArray(out...)
	}
	if err := intl.Set("getCanonicalLocales", canonical); err != nil {
		return &WiringError{Class: "Intl", Member: "getCanonicalLocales", Err: err}
	}

	if w.version.HasFeature(features.JSIntlV8BreakIterator) {
		if err := intl.Set("v8BreakIterator", w.v8BreakIterator); err != nil {
			return &WiringError{Class: "Intl", Member: "v8BreakIterator", Err: err}
		}
	}
	if err := intl.DefineDataPropertySymbol(goja.SymToStringTag, w.rt.ToValue("Intl"), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return &WiringError{Class: "Intl", Member: "Symbol.toStringTag", Err: err}
	}
	return w.global.JS().DefineDataProperty("Intl", intl, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE)
}

// v8BreakIterator segments adopted text at word boundaries.
func (w *Window) v8BreakIterator(call goja.ConstructorCall) *goja.Object {
	var (
		text   []rune
		breaks []int
		pos    int
	)
	kindOf := func(r rune) int {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return 1
		case unicode.IsSpace(r):
			return 2
		default:
			return 3
		}
	}
	_ = call.This.Set("adoptText", func(fc goja.FunctionCall) goja.Value {
		text = []rune(fc.Argument(0).String())
		breaks = breaks[:0]
		breaks = append(breaks, 0)
		for i := 1; i < len(text); i++ {
			if k := kindOf(text[i]); k != kindOf(text[i-1]) || k == 3 {
				breaks = append(breaks, i)
			}
		}
		if len(text) > 0 {
			breaks = append(breaks, len(text))
		}
		pos = 0
		return goja.Undefined()
	})
	_ = call.This.Set("first", func(goja.FunctionCall) goja.Value {
		pos = 0
		return w.rt.ToValue(0)
	})
	_ = call.This.Set("next", func(goja.FunctionCall) goja.Value {
		if pos+1 >= len(breaks) {
			return w.rt.ToValue(-1)
		}
		pos++
		return w.rt.ToValue(breaks[pos])
	})
	_ = call.This.Set("current", func(goja.FunctionCall) goja.Value {
		if len(breaks) == 0 {
			return w.rt.ToValue(0)
		}
		return w.rt.ToValue(breaks[pos])
	})
	_ = call.This.Set("breakType", func(goja.FunctionCall) goja.Value {
		if pos == 0 || pos >= len(breaks) {
			return w.rt.ToValue("none")
		}
		if kindOf(text[breaks[pos-1]]) == 1 {
			return w.rt.ToValue("letter")
		}
		return w.rt.ToValue("none")
	})
	return nil
}

// InstallLocaleOverrides replaces the engine's locale formatting with locale-aware
// versions.
func InstallLocaleOverrides(w *Window) error {
	define := func(ctorName, method string, fn func(goja.FunctionCall) goja.Value) error {
		ctor, ok := w.rt.Get(ctorName).(*goja.Object)
		if !ok {
			return &WiringError{Class: ctorName, Member: method, Err: errNoConstructor}
		}
		proto, ok := ctor.Get("prototype").(*goja.Object)
		if !ok {
			return &WiringError{Class: ctorName, Member: method, Err: errNoConstructor}
		}
		if err := proto.DefineDataProperty(method, w.rt.ToValue(fn), goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
			return &WiringError{Class: ctorName, Member: method, Err: err}
		}
		return nil
	}

	if err := define("Date", "toLocaleDateString", func(call goja.FunctionCall) goja.Value {
		t, ok := w.thisTime(call.This, "toLocaleDateString")
		if !ok {
			return w.rt.ToValue("Invalid Date")
		}
		return w.rt.ToValue(t.Format(dateLayout(w.localeArg(call.Argument(0)))))
	}); err != nil {
		return err
	}
	if err := define("Date", "toLocaleTimeString", func(call goja.FunctionCall) goja.Value {
		t, ok := w.thisTime(call.This, "toLocaleTimeString")
		if !ok {
			return w.rt.ToValue("Invalid Date")
		}
		return w.rt.ToValue(t.Format(timeLayout(w.localeArg(call.Argument(0)))))
	}); err != nil {
		return err
	}
	return define("Number", "toLocaleString", func(call goja.FunctionCall) goja.Value {
		v := call.This.ToNumber().ToFloat()
		return w.rt.ToValue(w.formatNumber(w.localeArg(call.Argument(0)), v, optionsArg(call.Argument(1))))
	})
}
