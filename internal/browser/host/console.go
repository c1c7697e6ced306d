// internal/browser/host/console.go
package host

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/dop251/goja"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsconfig"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Console is window.console. Messages go to the window's logger under "console".
type Console struct{}

// formatValue renders one console argument. Plain objects and arrays are printed as JSON.
func formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.String()
	}
	if _, isFn := goja.AssertFunction(obj); isFn {
		return v.String()
	}
	switch obj.ClassName() {
	case "Object", "Array":
		if b, err := json.Marshal(obj.Export()); err == nil {
			return string(b)
		}
	}
	return v.String()
}

// formatConsole applies printf-style substitutions when the first argument is a string,
// then appends the remaining arguments separated by spaces.
func formatConsole(args []goja.Value) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	rest := args
	if first, ok := args[0].Export().(string); ok {
		rest = args[1:]
		for i := 0; i < len(first); i++ {
			c := first[i]
			if c != '%' || i+1 == len(first) {
				b.WriteByte(c)
				continue
			}
			verb := first[i+1]
			switch verb {
			case '%':
				b.WriteByte('%')
			case 's', 'o', 'O':
				if len(rest) == 0 {
					b.WriteByte('%')
					b.WriteByte(verb)
					break
				}
				if verb == 's' {
					b.WriteString(rest[0].String())
				} else {
					b.WriteString(formatValue(rest[0]))
				}
				rest = rest[1:]
			case 'd', 'i':
				if len(rest) == 0 {
					b.WriteByte('%')
					b.WriteByte(verb)
					break
				}
				b.WriteString(strconv.FormatInt(rest[0].ToInteger(), 10))
				rest = rest[1:]
			case 'f':
				if len(rest) == 0 {
					b.WriteString("%f")
					break
				}
				b.WriteString(strconv.FormatFloat(rest[0].ToFloat(), 'f', -1, 64))
				rest = rest[1:]
			case 'c':
				if len(rest) > 0 {
					rest = rest[1:]
				}
			default:
				b.WriteByte('%')
				b.WriteByte(verb)
			}
			i++
		}
	}
	for _, v := range rest {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(formatValue(v))
	}
	return b.String()
}

func (w *Window) consoleLog(level zapcore.Level, args []goja.Value) {
	logger := w.logger.Named("console")
	if w.page != nil {
		logger = logger.With(zap.String("page", w.page.ID()))
	}
	if ce := logger.Check(level, formatConsole(args)); ce != nil {
		ce.Write()
	}
}

func consoleFunc(level zapcore.Level) jsconfig.FunctionFunc {
	return func(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
		scopeOf(s).consoleLog(level, call.Arguments)
		return goja.Undefined()
	}
}

// ConsoleTimeStamp implements console.timeStamp(label). It records a marker in the log.
func ConsoleTimeStamp(s jsconfig.Scope, call goja.FunctionCall) goja.Value {
	w := scopeOf(s)
	label := "console.timeStamp"
	if len(call.Arguments) > 0 {
		label = call.Argument(0).String()
	}
	w.logger.Named("console").Debug("Timestamp", zap.String("label", label))
	return goja.Undefined()
}

func consoleClass() jsconfig.ClassDefinition {
	return jsconfig.ClassDefinition{
		Name:   "Console",
		Native: reflect.TypeOf((*Console)(nil)),
		Members: []jsconfig.Member{
			jsconfig.Function("log", consoleFunc(zapcore.InfoLevel)),
			jsconfig.Function("info", consoleFunc(zapcore.InfoLevel)),
			jsconfig.Function("warn", consoleFunc(zapcore.WarnLevel)),
			jsconfig.Function("error", consoleFunc(zapcore.ErrorLevel)),
			jsconfig.Function("debug", consoleFunc(zapcore.DebugLevel)),
			jsconfig.Function("trace", consoleFunc(zapcore.DebugLevel)),
		},
	}
}
