// internal/browser/network/compression.go
package network

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// AcceptEncoding is advertised on every request that does not set its own.
const AcceptEncoding = "br, gzip, deflate"

var (
	gzipPool   = sync.Pool{New: func() any { return new(gzip.Reader) }}
	brotliPool = sync.Pool{New: func() any { return brotli.NewReader(nil) }}
)

// Resetting pooled readers onto an empty source releases the previous body.
var emptyReader = strings.NewReader("")

func acquireGzip(r io.Reader) (*gzip.Reader, error) {
	zr := gzipPool.Get().(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		gzipPool.Put(zr)
		return nil, err
	}
	return zr, nil
}

func releaseGzip(zr *gzip.Reader) {
	_ = zr.Reset(emptyReader)
	gzipPool.Put(zr)
}

func acquireBrotli(r io.Reader) (*brotli.Reader, error) {
	br := brotliPool.Get().(*brotli.Reader)
	if err := br.Reset(r); err != nil {
		brotliPool.Put(br)
		return nil, err
	}
	return br, nil
}

func releaseBrotli(br *brotli.Reader) {
	_ = br.Reset(emptyReader)
	brotliPool.Put(br)
}

// decodingTransport asks servers for compressed bodies and decodes them before the
// response reaches the caller.
type decodingTransport struct {
	next http.RoundTripper
}

// NewDecodingTransport wraps next (http.DefaultTransport when nil).
func NewDecodingTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &decodingTransport{next: next}
}

func (t *decodingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", AcceptEncoding)
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if err := DecompressResponse(resp); err != nil {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("decoding response from %s: %w", req.URL, err)
	}
	return resp, nil
}

// layer closes a decoder, hands pooled readers back, then closes the body it wraps.
type layer struct {
	io.ReadCloser
	inner   io.ReadCloser
	release func()
}

func (l *layer) Close() error {
	if l.release != nil {
		l.release()
		l.release = nil
	}
	return errors.Join(l.ReadCloser.Close(), l.inner.Close())
}

// DecompressResponse replaces resp.Body with a decoding reader for every layer listed in
// Content-Encoding, last applied first. On success the encoding and length headers are
// dropped and resp.Uncompressed is set. On failure the body may be partly consumed and
// the response should be discarded.
func DecompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}
	encodings := encodingsOf(resp.Header)
	if len(encodings) == 0 {
		return nil
	}

	for i := len(encodings) - 1; i >= 0; i-- {
		var (
			r       io.ReadCloser
			release func()
		)
		switch encodings[i] {
		case "gzip", "x-gzip":
			zr, err := acquireGzip(resp.Body)
			if err != nil {
				return fmt.Errorf("gzip: %w", err)
			}
			r, release = zr, func() { releaseGzip(zr) }
		case "deflate":
			r = openDeflate(resp.Body)
		case "br":
			br, err := acquireBrotli(resp.Body)
			if err != nil {
				return fmt.Errorf("brotli: %w", err)
			}
			r, release = io.NopCloser(br), func() { releaseBrotli(br) }
		case "identity":
			continue
		default:
			return fmt.Errorf("unsupported content encoding %q", encodings[i])
		}
		resp.Body = &layer{ReadCloser: r, inner: resp.Body, release: release}
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// encodingsOf flattens both repeated headers and comma separated lists.
func encodingsOf(h http.Header) []string {
	var out []string
	for _, v := range h.Values("Content-Encoding") {
		for _, e := range strings.Split(v, ",") {
			if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
				out = append(out, e)
			}
		}
	}
	return out
}

// rewindable records what zlib consumed so raw deflate can start over.
type rewindable struct {
	r      io.Reader
	seen   bytes.Buffer
	source io.Reader
}

func (rw *rewindable) Read(p []byte) (int, error) { return rw.r.Read(p) }

func (rw *rewindable) rewind() {
	rw.r = io.MultiReader(bytes.NewReader(rw.seen.Bytes()), rw.source)
}

// openDeflate accepts both zlib wrapped (RFC 1950) and raw (RFC 1951) streams; servers
// send either under the same name.
func openDeflate(r io.Reader) io.ReadCloser {
	rw := &rewindable{source: r}
	rw.r = io.TeeReader(r, &rw.seen)
	if zr, err := zlib.NewReader(rw); err == nil {
		rw.r, rw.seen = rw.source, bytes.Buffer{}
		return zr
	}
	rw.rewind()
	return flate.NewReader(rw)
}
