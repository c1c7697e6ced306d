// internal/browser/jsexec/callcontext.go
package jsexec

import (
	"context"

	"github.com/duonglaiquang/htmlunit/internal/browser/host"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

// CallContext is the per-caller state of the engine: the stack of scopes and pages of
// the calls in progress, the postponed actions they queued and the hold switch. It
// travels in a context.Context and must not be shared between goroutines; it also
// identifies its owner to the page lock, so nested calls on the same page re-enter.
type CallContext struct {
	scopes    []*host.Window
	pages     []*page.HtmlPage
	postponed []page.PostponedAction
	hold      bool
	// timeout is set by a nested call the watchdog interrupted, for the outermost call.
	timeout *TimeoutError
}

type callContextKey struct{}

// WithCallContext returns ctx carrying a call context, reusing the one ctx already has.
// Callers that want to batch several executions, for example under
// HoldPostponedActions, pass the returned context to each of them.
func WithCallContext(ctx context.Context) context.Context {
	if _, ok := CallContextFrom(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, callContextKey{}, &CallContext{})
}

// CallContextFrom returns the call context carried by ctx.
func CallContextFrom(ctx context.Context) (*CallContext, bool) {
	if ctx == nil {
		return nil, false
	}
	cc, ok := ctx.Value(callContextKey{}).(*CallContext)
	return cc, ok
}

func (c *CallContext) push(scope *host.Window, p *page.HtmlPage) {
	c.scopes = append(c.scopes, scope)
	c.pages = append(c.pages, p)
}

func (c *CallContext) pop() {
	c.scopes = c.scopes[:len(c.scopes)-1]
	c.pages = c.pages[:len(c.pages)-1]
}

// Depth is the number of nested calls in progress.
func (c *CallContext) Depth() int { return len(c.scopes) }

// StartingScope is the scope of the outermost call in progress.
func (c *CallContext) StartingScope() *host.Window {
	if len(c.scopes) == 0 {
		return nil
	}
	return c.scopes[0]
}

// StartingPage is the page of the outermost call in progress. Relative URLs used by
// nested calls resolve against it.
func (c *CallContext) StartingPage() *page.HtmlPage {
	for _, p := range c.pages {
		if p != nil {
			return p
		}
	}
	return nil
}

// Held reports whether draining is currently suspended.
func (c *CallContext) Held() bool { return c.hold }

// Pending is the number of queued postponed actions.
func (c *CallContext) Pending() int { return len(c.postponed) }

func (c *CallContext) add(a page.PostponedAction) {
	c.postponed = append(c.postponed, a)
}

// take hands over the queued actions and starts a fresh batch.
func (c *CallContext) take() []page.PostponedAction {
	actions := c.postponed
	c.postponed = nil
	return actions
}
