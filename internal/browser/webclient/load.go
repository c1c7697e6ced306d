// internal/browser/webclient/load.go
package webclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/duonglaiquang/htmlunit/internal/browser/host"
	"github.com/duonglaiquang/htmlunit/internal/browser/jsexec"
	"github.com/duonglaiquang/htmlunit/internal/browser/network"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

var scriptTypes = map[string]bool{
	"":                         true,
	"text/javascript":          true,
	"application/javascript":   true,
	"text/ecmascript":          true,
	"application/ecmascript":   true,
	"application/x-javascript": true,
	"text/jscript":             true,
}

// LoadHTML parses source as the document at u and makes it the page of w (the current
// window when nil). With scripting enabled it then runs the page's scripts in document
// order, fires DOMContentLoaded and load, runs the body onload handler and finally the
// actions the page postponed on the way.
//
// Script failures are reported to the error listener. When the client throws on script
// errors the first failure aborts the load and is returned with the page.
func (c *WebClient) LoadHTML(ctx context.Context, w *page.WebWindow, u *url.URL, source string) (*page.HtmlPage, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if w == nil {
		w = c.CurrentWindow()
	}
	p, err := page.Parse(strings.NewReader(source), u)
	if err != nil {
		return nil, err
	}
	w.SetEnclosedPage(p)
	c.logger.Debug("Page attached", zap.String("window", w.Name()), zap.Stringer("url", p.URL()))

	if !c.opts.JavaScriptEnabled {
		return p, nil
	}
	scope, err := c.engine.Initialize(w, p)
	if err != nil {
		return p, fmt.Errorf("loading %s: %w", p.URL(), err)
	}
	if scope == nil {
		return p, nil
	}
	c.engine.RegisterWindowAndMaybeStartEventLoop(w)

	ctx = jsexec.WithCallContext(ctx)
	c.engine.HoldPostponedActions(ctx)
	l := &loader{c: c, p: p, scope: scope, source: source}
	err = l.run(ctx)
	if perr := c.engine.ProcessPostponedActions(ctx); perr != nil {
		c.logger.Warn("Postponed action failed", zap.Stringer("page", p), zap.Error(perr))
	}
	return p, err
}

// loader runs one page's load sequence.
type loader struct {
	c      *WebClient
	p      *page.HtmlPage
	scope  *host.Window
	source string
	// offset is where the search for the next inline script's text starts.
	offset int
}

func (l *loader) run(ctx context.Context) error {
	for _, n := range l.p.Scripts() {
		if !l.p.IsEnclosed() {
			return nil
		}
		if err := l.script(ctx, n); err != nil {
			return err
		}
	}
	if !l.p.IsEnclosed() {
		return nil
	}
	if _, err := l.c.engine.FireEvent(ctx, l.p, l.scope, l.p.Root(), "DOMContentLoaded").Unwrap(); err != nil {
		return err
	}
	if _, err := l.c.engine.FireEvent(ctx, l.p, l.scope, nil, "load").Unwrap(); err != nil {
		return err
	}
	if body := l.p.Body(); body != nil {
		if handler := strings.TrimSpace(htmlquery.SelectAttr(body, "onload")); handler != "" {
			return l.exec(ctx, handler, l.p.URL().String()+" body onload", 1)
		}
	}
	return nil
}

func (l *loader) script(ctx context.Context, n *html.Node) error {
	typ := strings.ToLower(strings.TrimSpace(htmlquery.SelectAttr(n, "type")))
	if !scriptTypes[typ] {
		l.c.logger.Debug("Skipping script", zap.String("type", typ))
		return nil
	}
	src := strings.TrimSpace(htmlquery.SelectAttr(n, "src"))
	if src == "" {
		text := htmlquery.InnerText(n)
		return l.exec(ctx, text, l.p.URL().String(), l.lineOf(text))
	}

	u, err := l.p.ResolveURL(src)
	if err != nil {
		l.c.logger.Warn("Bad script url", zap.String("src", src), zap.Error(err))
		return nil
	}
	if hasAttr(n, "async") {
		return l.async(u)
	}
	resp, err := l.c.downloader.Get(ctx, u)
	if err != nil {
		l.c.logger.Warn("Script download failed", zap.Stringer("url", u), zap.Error(err))
		return nil
	}
	if !resp.OK() {
		l.c.logger.Warn("Script download failed", zap.Stringer("url", u), zap.Int("status", resp.StatusCode))
		return nil
	}
	return l.exec(ctx, string(resp.Body), u.String(), 1)
}

// async starts the download and runs the script when the client next loads completed
// downloads, provided the page is still current.
func (l *loader) async(u *url.URL) error {
	p, scope, c := l.p, l.scope, l.c
	err := c.downloader.Start(u, func(ctx context.Context, resp *network.Response, err error) error {
		if err != nil {
			c.logger.Warn("Script download failed", zap.Stringer("url", u), zap.Error(err))
			return nil
		}
		if !p.IsEnclosed() || !resp.OK() {
			return nil
		}
		_, err = c.engine.Execute(ctx, p, scope, string(resp.Body), u.String()).Unwrap()
		return err
	})
	if err != nil {
		c.logger.Debug("Async script not started", zap.Stringer("url", u), zap.Error(err))
	}
	return nil
}

func (l *loader) exec(ctx context.Context, source, sourceName string, startLine int) error {
	script, err := l.c.engine.Compile(ctx, l.p, l.scope, source, sourceName, startLine).Unwrap()
	if err != nil || script == nil {
		return err
	}
	_, err = l.c.engine.ExecuteScript(ctx, l.p, l.scope, script).Unwrap()
	return err
}

// lineOf is the 1-based line of the page source at which the inline script text starts.
func (l *loader) lineOf(text string) int {
	if text == "" {
		return 1
	}
	i := strings.Index(l.source[l.offset:], text)
	if i < 0 {
		return 1
	}
	start := l.offset + i
	l.offset = start + len(text)
	return strings.Count(l.source[:start], "\n") + 1
}

func hasAttr(n *html.Node, name string) bool {
	for _, a := range n.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}
