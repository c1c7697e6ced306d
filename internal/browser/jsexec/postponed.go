// internal/browser/jsexec/postponed.go
package jsexec

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

// AddPostponedAction queues action on the call context of ctx. It runs once the
// outermost call has returned. Actions added once shutdown is pending are dropped. With
// no call context there is no call to wait for, so a live action runs immediately.
func (e *Engine) AddPostponedAction(ctx context.Context, action page.PostponedAction) {
	if e.shutdownPending.Load() || e.isShutdown() {
		e.logger.Debug("Postponed action dropped during shutdown", zap.Stringer("action", describe(action)))
		return
	}
	cc, ok := CallContextFrom(ctx)
	if !ok {
		if action.IsStillAlive() {
			if err := action.Execute(ctx); err != nil {
				e.logger.Warn("Postponed action failed", zap.Stringer("action", describe(action)), zap.Error(err))
			}
		}
		return
	}
	cc.add(action)
}

// HoldPostponedActions suspends draining on the call context of ctx until the next
// ProcessPostponedActions.
func (e *Engine) HoldPostponedActions(ctx context.Context) {
	cc, ok := CallContextFrom(ctx)
	if !ok {
		e.logger.Debug("HoldPostponedActions called without a call context")
		return
	}
	cc.hold = true
}

// ProcessPostponedActions releases the hold and drains the queue of ctx. Downloaded
// responses are loaded first. Actions queued while draining form a new batch that is
// drained after the current one. Dead actions are skipped.
func (e *Engine) ProcessPostponedActions(ctx context.Context) error {
	cc, ok := CallContextFrom(ctx)
	if !ok {
		return nil
	}
	cc.hold = false
	if e.isShutdown() {
		return nil
	}

	var errs []error
	for {
		// Responses that arrived while the previous batch ran may queue more actions.
		e.loadDownloadedResponses(ctx)
		batch := cc.take()
		if len(batch) == 0 {
			break
		}
		for _, action := range batch {
			if !action.IsStillAlive() {
				continue
			}
			if err := action.Execute(ctx); err != nil {
				errs = append(errs, fmt.Errorf("postponed action %s: %w", describe(action), err))
			}
			if e.isShutdown() {
				return errors.Join(errs...)
			}
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) loadDownloadedResponses(ctx context.Context) {
	if e.client == nil {
		return
	}
	if err := e.client.LoadDownloadedResponses(ctx); err != nil {
		e.logger.Warn("Failed to load downloaded responses", zap.Error(err))
	}
}

type actionName struct{ a page.PostponedAction }

func (n actionName) String() string {
	if s, ok := n.a.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", n.a)
}

func describe(a page.PostponedAction) fmt.Stringer { return actionName{a} }
