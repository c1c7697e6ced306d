// internal/browser/jsexec/errors.go
package jsexec

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/dop251/goja"

	"github.com/duonglaiquang/htmlunit/internal/browser/host"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

// Engine failures never leave this package raw. Every goja error is converted into one
// of the typed errors below so callers can classify them with errors.As without knowing
// the engine.

// ScriptException is a script failure: a thrown value, a syntax error or a failure in
// host code called by the script.
type ScriptException struct {
	Page *page.HtmlPage
	// Source is the script text when it is known.
	Source     string
	SourceName string
	Line       int
	Column     int
	Message    string
	// Thrown is the value the script threw, nil when nothing was thrown.
	Thrown goja.Value
	Err    error
}

func (e *ScriptException) Error() string {
	if e.SourceName == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s#%d)", e.Message, e.SourceName, e.Line)
}

// Unwrap provides the underlying engine error.
func (e *ScriptException) Unwrap() error {
	return e.Err
}

// Report describes the failure to the window's error handler.
func (e *ScriptException) Report() host.ErrorReport {
	return host.ErrorReport{
		Message:    e.Message,
		SourceName: e.SourceName,
		Line:       e.Line,
		Column:     e.Column,
		Error:      e.Thrown,
	}
}

// TimeoutError is raised when a script runs longer than the engine allows.
type TimeoutError struct {
	Allowed time.Duration
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("javascript execution took %s, longer than the allowed %s", e.Elapsed, e.Allowed)
}

var syntaxPosition = regexp.MustCompile(`Line (\d+):(\d+)`)

// convert maps an engine error to a ScriptException or TimeoutError.
func convert(err error, p *page.HtmlPage, source, sourceName string) error {
	var (
		timeout   *TimeoutError
		interrupt *goja.InterruptedError
		overflow  *goja.StackOverflowError
		syntax    *goja.CompilerSyntaxError
		exc       *goja.Exception
		existing  *ScriptException
	)
	se := &ScriptException{Page: p, Source: source, SourceName: sourceName, Message: err.Error(), Err: err}

	switch {
	case errors.As(err, &timeout):
		return timeout
	case errors.As(err, &interrupt):
		if t, ok := interrupt.Value().(*TimeoutError); ok {
			return t
		}
		se.Message = fmt.Sprintf("execution interrupted: %v", interrupt.Value())
		se.locate(interrupt.Stack())
	case errors.As(err, &overflow):
		se.Message = "RangeError: Maximum call stack size exceeded"
		se.locate(overflow.Stack())
	case errors.As(err, &syntax):
		se.Message = syntax.Error()
		if syntax.File != nil {
			pos := syntax.File.Position(syntax.Offset)
			se.Line, se.Column = pos.Line, pos.Column
		} else if m := syntaxPosition.FindStringSubmatch(syntax.Message); m != nil {
			se.Line, _ = strconv.Atoi(m[1])
			se.Column, _ = strconv.Atoi(m[2])
		}
	case errors.As(err, &exc):
		se.Thrown = exc.Value()
		if se.Thrown != nil {
			se.Message = se.Thrown.String()
		}
		se.locate(exc.Stack())
	case errors.As(err, &existing):
		return existing
	}
	return se
}

// locate takes the position of the innermost frame that has one.
func (e *ScriptException) locate(frames []goja.StackFrame) {
	for i := range frames {
		pos := frames[i].Position()
		if pos.Line == 0 {
			continue
		}
		e.Line, e.Column = pos.Line, pos.Column
		if name := frames[i].SrcName(); name != "" {
			e.SourceName = name
		}
		return
	}
}
