// internal/browser/jsexec/result.go
package jsexec

// Result is the outcome of one engine call. A failed call has Err set whether or not the
// failure is surfaced; Rethrow records the client's throw-on-script-error policy at the
// time of the call.
type Result[T any] struct {
	Value   T
	Err     error
	Rethrow bool
}

// Unwrap applies the policy: the error is returned only when the client asked for
// script errors to be thrown. Swallowed failures yield the zero value.
func (r Result[T]) Unwrap() (T, error) {
	if r.Err != nil && r.Rethrow {
		var zero T
		return zero, r.Err
	}
	return r.Value, nil
}

// Failed reports whether the call failed, regardless of policy.
func (r Result[T]) Failed() bool { return r.Err != nil }
