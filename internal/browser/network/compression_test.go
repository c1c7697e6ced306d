package network

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const payload = "document.title = 'decoded';"

func gzipped(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(b)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func zlibbed(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, err := w.Write(b)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func rawDeflated(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write(b)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func brotlied(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	_, err := w.Write(b)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func encodedResponse(body []byte, encodings ...string) *http.Response {
	h := http.Header{}
	for _, e := range encodings {
		h.Add("Content-Encoding", e)
	}
	h.Set("Content-Length", "999")
	return &http.Response{
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

func readDecoded(t *testing.T, resp *http.Response) string {
	t.Helper()
	require.NoError(t, DecompressResponse(resp))
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return string(b)
}

func TestDecompressResponse_Encodings(t *testing.T) {
	raw := []byte(payload)
	tests := []struct {
		name     string
		body     []byte
		encoding []string
	}{
		{"gzip", gzipped(t, raw), []string{"gzip"}},
		{"zlib deflate", zlibbed(t, raw), []string{"deflate"}},
		{"raw deflate", rawDeflated(t, raw), []string{"deflate"}},
		{"brotli", brotlied(t, raw), []string{"br"}},
		{"upper case", gzipped(t, raw), []string{"GZIP"}},
		{"identity", raw, []string{"identity"}},
		{"layered headers", brotlied(t, gzipped(t, raw)), []string{"gzip", "br"}},
		{"layered list", gzipped(t, zlibbed(t, raw)), []string{"deflate, gzip"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := encodedResponse(tt.body, tt.encoding...)
			assert.Equal(t, payload, readDecoded(t, resp))
			assert.Empty(t, resp.Header.Get("Content-Encoding"))
			assert.Empty(t, resp.Header.Get("Content-Length"))
			assert.Equal(t, int64(-1), resp.ContentLength)
			assert.True(t, resp.Uncompressed)
		})
	}
}

func TestDecompressResponse_NoEncodingIsUntouched(t *testing.T) {
	resp := encodedResponse([]byte(payload))
	require.NoError(t, DecompressResponse(resp))
	assert.False(t, resp.Uncompressed)
	assert.Equal(t, "999", resp.Header.Get("Content-Length"))
	assert.NoError(t, DecompressResponse(nil))
}

func TestDecompressResponse_Failures(t *testing.T) {
	err := DecompressResponse(encodedResponse([]byte(payload), "compress"))
	assert.ErrorContains(t, err, `unsupported content encoding "compress"`)

	err = DecompressResponse(encodedResponse([]byte("not gzip at all"), "gzip"))
	assert.ErrorContains(t, err, "gzip")
}

func TestDecompressResponse_PooledReadersAreReusable(t *testing.T) {
	for i := 0; i < 5; i++ {
		assert.Equal(t, payload, readDecoded(t, encodedResponse(gzipped(t, []byte(payload)), "gzip")))
		assert.Equal(t, payload, readDecoded(t, encodedResponse(brotlied(t, []byte(payload)), "br")))
	}
}

func TestDecodingTransport(t *testing.T) {
	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept-Encoding")
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(brotlied(t, []byte(payload)))
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewDecodingTransport(&http.Transport{DisableCompression: true})}
	defer client.CloseIdleConnections()
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(b))
	assert.Equal(t, AcceptEncoding, gotAccept)
}

func TestDecodingTransport_BrokenBodyFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = io.Copy(w, strings.NewReader("plain text"))
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewDecodingTransport(&http.Transport{DisableCompression: true})}
	defer client.CloseIdleConnections()
	_, err := client.Get(srv.URL)
	assert.ErrorContains(t, err, "decoding response")
}
