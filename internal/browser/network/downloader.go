// internal/browser/network/downloader.go
package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout = 30 * time.Second
	// MaxBodySize caps how much of a response body is kept in memory.
	MaxBodySize = 32 << 20
)

// ErrClosed is returned by downloads started after Close.
var ErrClosed = errors.New("downloader closed")

// Config controls the HTTP client and the download throttle.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond throttles every request the downloader makes. Zero or less
	// disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// NewClient builds the client used for page and script loads. Redirects follow net/http
// defaults; file URLs are served from the local filesystem so pages loaded from disk can
// reference sibling scripts.
func NewClient(cfg Config) *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DisableCompression = true
	base.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var rt http.RoundTripper = NewDecodingTransport(base)
	if cfg.UserAgent != "" {
		rt = &userAgentTransport{next: rt, agent: cfg.UserAgent}
	}
	return &http.Client{Transport: rt, Timeout: timeout}
}

type userAgentTransport struct {
	next  http.RoundTripper
	agent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	return t.next.RoundTrip(req)
}

// Response is a fully read, decoded response.
type Response struct {
	URL         *url.URL
	StatusCode  int
	Header      http.Header
	Body        []byte
	ContentType string
}

// OK reports a 2xx status. Local files carry no status line and count as OK.
func (r *Response) OK() bool {
	return r.StatusCode == 0 || (r.StatusCode >= 200 && r.StatusCode < 300)
}

// Handler receives a finished background download. err is non-nil when the request
// failed; resp is nil in that case.
type Handler func(ctx context.Context, resp *Response, err error) error

type completed struct {
	resp    *Response
	err     error
	handler Handler
}

// Downloader performs throttled GETs. Synchronous fetches return their response
// directly; background fetches park their response until LoadCompleted hands it to its
// handler on the caller's goroutine.
type Downloader struct {
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	inFlight  int
	completed []completed
	closed    bool
}

// NewDownloader creates a downloader around client (NewClient(cfg) when nil).
func NewDownloader(cfg Config, client *http.Client, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = NewClient(cfg)
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Downloader{
		client:  client,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.Named("downloader"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Get fetches u and reads its whole body.
func (d *Downloader) Get(ctx context.Context, u *url.URL) (*Response, error) {
	return d.Do(ctx, http.MethodGet, u, "", "")
}

// Do sends a request with an optional body and reads the whole response.
func (d *Downloader) Do(ctx context.Context, method string, u *url.URL, body, contentType string) (*Response, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting to fetch %s: %w", u, err)
	}
	if method == "" {
		method = http.MethodGet
	}
	var payload io.Reader
	if body != "" {
		payload = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), payload)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", u, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", u, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", u, err)
	}
	d.logger.Debug("Fetched",
		zap.Stringer("url", u),
		zap.Int("status", resp.StatusCode),
		zap.String("method", method),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)))

	final := u
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL
	}
	status := resp.StatusCode
	if u.Scheme == "file" {
		status = 0
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetching %s: %s", u, resp.Status)
		}
	}
	return &Response{
		URL:         final,
		StatusCode:  status,
		Header:      resp.Header,
		Body:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Start fetches u in the background. h runs later, from LoadCompleted.
func (d *Downloader) Start(u *url.URL, h Handler) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.inFlight++
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		resp, err := d.Get(d.ctx, u)
		d.mu.Lock()
		defer d.mu.Unlock()
		d.inFlight--
		if d.closed {
			return
		}
		d.completed = append(d.completed, completed{resp: resp, err: err, handler: h})
	}()
	return nil
}

// Pending is the number of background downloads not yet handed over.
func (d *Downloader) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight + len(d.completed)
}

// LoadCompleted runs the handlers of every finished download in completion order.
// Downloads still in flight stay pending.
func (d *Downloader) LoadCompleted(ctx context.Context) error {
	d.mu.Lock()
	batch := d.completed
	d.completed = nil
	d.mu.Unlock()

	var errs []error
	for _, c := range batch {
		if err := c.handler(ctx, c.resp, c.err); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until no background download is in flight or ctx is done.
func (d *Downloader) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels in-flight downloads, waits for them and drops undelivered responses.
func (d *Downloader) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	dropped := len(d.completed)
	d.completed = nil
	d.mu.Unlock()

	d.cancel()
	d.wg.Wait()
	d.client.CloseIdleConnections()
	if dropped > 0 {
		d.logger.Debug("Dropped undelivered downloads", zap.Int("count", dropped))
	}
}
