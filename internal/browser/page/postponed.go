package page

import (
	"context"
	"net/url"
)

// PostponedAction is work deferred until the script that scheduled it has returned.
type PostponedAction interface {
	Execute(ctx context.Context) error
	// IsStillAlive reports whether the action should still run. Dead actions are
	// skipped silently.
	IsStillAlive() bool
}

type postponedAction struct {
	owner       *HtmlPage
	description string
	fn          func(ctx context.Context) error
}

// NewPostponedAction binds fn to owner: the action stays alive while owner is the
// enclosed page of its window. A nil owner never goes stale.
func NewPostponedAction(owner *HtmlPage, description string, fn func(ctx context.Context) error) PostponedAction {
	return &postponedAction{owner: owner, description: description, fn: fn}
}

func (a *postponedAction) Execute(ctx context.Context) error { return a.fn(ctx) }

func (a *postponedAction) IsStillAlive() bool {
	return a.owner == nil || a.owner.IsEnclosed()
}

func (a *postponedAction) String() string { return a.description }

// Request describes a navigation triggered by a script.
type Request struct {
	URL         *url.URL
	Method      string
	Body        string
	ContentType string
}
