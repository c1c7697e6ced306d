// internal/browser/jsexec/environment.go
package jsexec

import (
	"context"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/duonglaiquang/htmlunit/internal/browser/host"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

// environment is the engine as seen by host code.
type environment struct {
	e *Engine
}

var _ host.Environment = (*environment)(nil)

func (v *environment) CallFunction(ctx context.Context, p *page.HtmlPage, fn *goja.Object, scope *host.Window, this goja.Value, args []goja.Value) (goja.Value, error) {
	return v.e.CallFunction(ctx, p, fn, scope, this, args).Unwrap()
}

func (v *environment) Evaluate(ctx context.Context, p *page.HtmlPage, scope *host.Window, source, sourceName string) (goja.Value, error) {
	return v.e.Execute(ctx, p, scope, source, sourceName).Unwrap()
}

func (v *environment) AddPostponedAction(ctx context.Context, action page.PostponedAction) {
	v.e.AddPostponedAction(ctx, action)
}

func (v *environment) StartingPage(ctx context.Context) *page.HtmlPage {
	if cc, ok := CallContextFrom(ctx); ok {
		return cc.StartingPage()
	}
	return nil
}

func (v *environment) Navigate(ctx context.Context, w *page.WebWindow, req page.Request) error {
	if v.e.client == nil {
		v.e.logger.Debug("Navigation without a client", zap.Stringer("url", req.URL))
		return nil
	}
	return v.e.client.Navigate(ctx, w, req)
}

func (v *environment) Alert(p *page.HtmlPage, message string) {
	if v.e.client == nil {
		v.e.logger.Info("Alert without a client", zap.String("message", message))
		return
	}
	v.e.client.Alert(p, message)
}
