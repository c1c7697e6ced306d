// internal/browser/webclient/webclient.go
package webclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duonglaiquang/htmlunit/internal/browser/jsexec"
	"github.com/duonglaiquang/htmlunit/internal/browser/network"
	"github.com/duonglaiquang/htmlunit/internal/browser/page"
)

// ErrClosed is returned by loads attempted after Close.
var ErrClosed = errors.New("web client closed")

// WebClient is the browser: it owns the script engine, the downloader and every window,
// and it receives what scripts report back (errors, alerts, navigations).
type WebClient struct {
	opts       Options
	logger     *zap.Logger
	engine     *jsexec.Engine
	downloader *network.Downloader

	mu       sync.Mutex
	windows  []*page.WebWindow
	current  *page.WebWindow
	listener ErrorListener
	alerts   AlertHandler
	closed   bool
}

var _ jsexec.Client = (*WebClient)(nil)

// New creates a client with a single empty top-level window.
func New(opts Options, logger *zap.Logger) *WebClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Version == nil {
		opts.Version = DefaultOptions().Version
	}
	c := &WebClient{
		opts:     opts,
		logger:   logger.Named("webclient"),
		listener: LoggingErrorListener{Logger: logger.Named("webclient")},
	}
	c.downloader = network.NewDownloader(opts.networkConfig(), nil, logger)
	c.engine = jsexec.New(opts.Version, c, logger, opts.engineOptions())
	c.current = c.OpenWindow("")
	return c
}

func (c *WebClient) Options() Options { return c.opts }

func (c *WebClient) Engine() *jsexec.Engine { return c.engine }

func (c *WebClient) Downloader() *network.Downloader { return c.downloader }

// SetErrorListener replaces the listener; nil restores the logging listener.
func (c *WebClient) SetErrorListener(l ErrorListener) {
	if l == nil {
		l = LoggingErrorListener{Logger: c.logger}
	}
	c.mu.Lock()
	c.listener = l
	c.mu.Unlock()
}

func (c *WebClient) SetAlertHandler(h AlertHandler) {
	c.mu.Lock()
	c.alerts = h
	c.mu.Unlock()
}

// OpenWindow creates a new top-level window. An empty name gets a generated one.
func (c *WebClient) OpenWindow(name string) *page.WebWindow {
	if name == "" {
		name = "window-" + uuid.NewString()[:8]
	}
	w := page.NewWebWindow(name)
	c.mu.Lock()
	c.windows = append(c.windows, w)
	c.mu.Unlock()
	c.logger.Debug("Window opened", zap.String("name", name))
	return w
}

// CurrentWindow is the window loads go to when none is given.
func (c *WebClient) CurrentWindow() *page.WebWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Windows lists the open windows in creation order.
func (c *WebClient) Windows() []*page.WebWindow {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*page.WebWindow, 0, len(c.windows))
	for _, w := range c.windows {
		if !w.IsClosed() {
			out = append(out, w)
		}
	}
	return out
}

// WindowByName finds an open window.
func (c *WebClient) WindowByName(name string) (*page.WebWindow, bool) {
	for _, w := range c.Windows() {
		if w.Name() == name {
			return w, true
		}
	}
	return nil, false
}

func (c *WebClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// GetPage downloads u and loads it into w (the current window when nil).
func (c *WebClient) GetPage(ctx context.Context, w *page.WebWindow, u *url.URL) (*page.HtmlPage, error) {
	return c.request(ctx, w, page.Request{URL: u, Method: "GET"})
}

func (c *WebClient) request(ctx context.Context, w *page.WebWindow, req page.Request) (*page.HtmlPage, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}
	if w == nil {
		w = c.CurrentWindow()
	}
	if req.URL.Scheme == "about" {
		return c.LoadHTML(ctx, w, req.URL, "")
	}
	resp, err := c.downloader.Do(ctx, req.Method, req.URL, req.Body, req.ContentType)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		c.logger.Info("Page loaded with error status",
			zap.Stringer("url", resp.URL),
			zap.Int("status", resp.StatusCode))
	}
	return c.LoadHTML(ctx, w, resp.URL, string(resp.Body))
}

// Close shuts the engine down, cancels downloads and closes every window. Script calls
// made after Close do nothing.
func (c *WebClient) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	windows := c.windows
	c.windows = nil
	c.mu.Unlock()

	c.engine.PrepareShutdown()
	c.downloader.Close()
	c.engine.Shutdown()
	for _, w := range windows {
		w.Close()
	}
	c.logger.Debug("Web client closed", zap.Int("windows", len(windows)))
}

// -- jsexec.Client --

func (c *WebClient) errorListener() ErrorListener {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listener
}

func (c *WebClient) ScriptException(p *page.HtmlPage, exc *jsexec.ScriptException) {
	c.errorListener().ScriptException(p, exc)
}

func (c *WebClient) TimeoutError(p *page.HtmlPage, allowed, elapsed time.Duration) {
	c.errorListener().TimeoutError(p, allowed, elapsed)
}

func (c *WebClient) LoadDownloadedResponses(ctx context.Context) error {
	return c.downloader.LoadCompleted(ctx)
}

func (c *WebClient) Alert(p *page.HtmlPage, message string) {
	c.mu.Lock()
	h := c.alerts
	c.mu.Unlock()
	if h == nil {
		c.logger.Info("Alert", zap.Stringer("page", p), zap.String("message", message))
		return
	}
	h.HandleAlert(p, message)
}

// Navigate loads the target of a script navigation into w. javascript: URLs run in the
// window's current page instead.
func (c *WebClient) Navigate(ctx context.Context, w *page.WebWindow, req page.Request) error {
	if w.IsClosed() {
		return nil
	}
	if req.URL.Scheme == "javascript" {
		return c.runJavaScriptURL(ctx, w, req.URL)
	}
	c.logger.Debug("Navigating", zap.String("window", w.Name()), zap.Stringer("url", req.URL))
	if _, err := c.request(ctx, w, req); err != nil {
		return fmt.Errorf("navigating %s to %s: %w", w.Name(), req.URL, err)
	}
	return nil
}

func (c *WebClient) runJavaScriptURL(ctx context.Context, w *page.WebWindow, u *url.URL) error {
	p := w.EnclosedPage()
	if p == nil {
		return nil
	}
	src := u.Opaque
	if decoded, err := url.PathUnescape(src); err == nil {
		src = decoded
	}
	_, err := c.engine.Execute(ctx, p, nil, src, "javascript:").Unwrap()
	return err
}
