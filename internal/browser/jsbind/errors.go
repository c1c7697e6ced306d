// internal/browser/jsbind/errors.go
package jsbind

import "fmt"

// Typed errors let callers classify bootstrap failures with errors.As instead of string
// matching.

// PolyfillError is returned when a polyfill fails to compile or run.
type PolyfillError struct {
	Name string
	Err  error
}

func (e *PolyfillError) Error() string {
	return fmt.Sprintf("polyfill %q failed: %v", e.Name, e.Err)
}

// Unwrap provides the underlying script error.
func (e *PolyfillError) Unwrap() error {
	return e.Err
}
