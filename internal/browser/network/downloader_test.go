package network

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func newTestDownloader(t *testing.T, cfg Config) *Downloader {
	t.Helper()
	d := NewDownloader(cfg, nil, zaptest.NewLogger(t))
	t.Cleanup(d.Close)
	return d
}

func scriptServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript")
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(gzipped(t, []byte(payload)))
	})
	mux.HandleFunc("/agent", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.UserAgent()))
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_, _ = fmt.Fprintf(w, "%s %s %s", r.Method, r.Header.Get("Content-Type"), b)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/app.js", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownloader_Get(t *testing.T) {
	srv := scriptServer(t)
	d := newTestDownloader(t, Config{})

	resp, err := d.Get(context.Background(), mustParse(t, srv.URL+"/app.js"))
	require.NoError(t, err)
	assert.Equal(t, payload, string(resp.Body))
	assert.Equal(t, "text/javascript", resp.ContentType)
	assert.True(t, resp.OK())

	resp, err = d.Get(context.Background(), mustParse(t, srv.URL+"/missing"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, resp.OK())
}

func TestDownloader_Post(t *testing.T) {
	srv := scriptServer(t)
	d := newTestDownloader(t, Config{})

	resp, err := d.Do(context.Background(), http.MethodPost, mustParse(t, srv.URL+"/echo"), "q=1", "application/x-www-form-urlencoded")
	require.NoError(t, err)
	assert.Equal(t, "POST application/x-www-form-urlencoded q=1", string(resp.Body))
}

func TestDownloader_FollowsRedirects(t *testing.T) {
	srv := scriptServer(t)
	d := newTestDownloader(t, Config{})

	resp, err := d.Get(context.Background(), mustParse(t, srv.URL+"/moved"))
	require.NoError(t, err)
	assert.Equal(t, "/app.js", resp.URL.Path)
	assert.Equal(t, payload, string(resp.Body))
}

func TestDownloader_UserAgent(t *testing.T) {
	srv := scriptServer(t)
	d := newTestDownloader(t, Config{UserAgent: "htmlunit-test/1.0"})

	resp, err := d.Get(context.Background(), mustParse(t, srv.URL+"/agent"))
	require.NoError(t, err)
	assert.Equal(t, "htmlunit-test/1.0", string(resp.Body))
}

func TestDownloader_FileURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "local.js")
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))
	d := newTestDownloader(t, Config{})

	resp, err := d.Get(context.Background(), &url.URL{Scheme: "file", Path: filepath.ToSlash(path)})
	require.NoError(t, err)
	assert.Equal(t, payload, string(resp.Body))
	assert.True(t, resp.OK())

	_, err = d.Get(context.Background(), &url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(dir, "nope.js"))})
	assert.Error(t, err)
}

func TestDownloader_Throttle(t *testing.T) {
	srv := scriptServer(t)
	d := newTestDownloader(t, Config{RequestsPerSecond: 20, Burst: 1})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := d.Get(context.Background(), mustParse(t, srv.URL+"/app.js"))
		require.NoError(t, err)
	}
	// Two waits of 50ms after the initial burst token.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestDownloader_ThrottleHonoursContext(t *testing.T) {
	srv := scriptServer(t)
	d := newTestDownloader(t, Config{RequestsPerSecond: 0.1, Burst: 1})
	_, err := d.Get(context.Background(), mustParse(t, srv.URL+"/app.js"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Get(ctx, mustParse(t, srv.URL+"/app.js"))
	assert.Error(t, err)
}

func TestDownloader_BackgroundHandOver(t *testing.T) {
	srv := scriptServer(t)
	d := newTestDownloader(t, Config{})
	var got []string

	require.NoError(t, d.Start(mustParse(t, srv.URL+"/app.js"), func(_ context.Context, resp *Response, err error) error {
		require.NoError(t, err)
		got = append(got, string(resp.Body))
		return nil
	}))
	require.NoError(t, d.Wait(context.Background()))

	assert.Empty(t, got, "handlers run only from LoadCompleted")
	assert.Equal(t, 1, d.Pending())

	require.NoError(t, d.LoadCompleted(context.Background()))
	assert.Equal(t, []string{payload}, got)
	assert.Equal(t, 0, d.Pending())

	require.NoError(t, d.LoadCompleted(context.Background()))
	assert.Len(t, got, 1, "each download is delivered once")
}

func TestDownloader_BackgroundFailuresAreJoined(t *testing.T) {
	d := newTestDownloader(t, Config{Timeout: time.Second})
	boom := errors.New("handler failed")
	var sawErr atomic.Bool

	unreachable := &url.URL{Scheme: "http", Host: "127.0.0.1:1", Path: "/x.js"}
	require.NoError(t, d.Start(unreachable, func(_ context.Context, resp *Response, err error) error {
		sawErr.Store(err != nil && resp == nil)
		return boom
	}))
	require.NoError(t, d.Wait(context.Background()))

	err := d.LoadCompleted(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, sawErr.Load())
}

func TestDownloader_Close(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	d := NewDownloader(Config{}, nil, zaptest.NewLogger(t))
	called := false
	require.NoError(t, d.Start(mustParse(t, srv.URL), func(context.Context, *Response, error) error {
		called = true
		return nil
	}))

	d.Close()
	d.Close()
	assert.Equal(t, 0, d.Pending())
	require.NoError(t, d.LoadCompleted(context.Background()))
	assert.False(t, called)
	assert.ErrorIs(t, d.Start(mustParse(t, srv.URL), nil), ErrClosed)
}
