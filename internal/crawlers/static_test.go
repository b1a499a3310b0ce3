package crawlers

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHeaders http.Header

func (h staticHeaders) GetHeaders() (http.Header, error) { return http.Header(h), nil }

func TestDecompressResponse(t *testing.T) {
	plain := []byte(`{"swagger":"2.0"}`)

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write(plain)
	require.NoError(t, zw.Close())

	var br bytes.Buffer
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write(plain)
	require.NoError(t, bw.Close())

	tests := []struct {
		name     string
		encoding string
		body     []byte
	}{
		{"无编码", "", plain},
		{"identity", "identity", plain},
		{"gzip", "gzip", gz.Bytes()},
		{"gzip已被解压", "gzip", plain},
		{"brotli", "br", br.Bytes()},
		{"未知编码", "zstd", plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decompressResponse(tt.encoding, tt.body)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		})
	}
}

func TestSpecFetcher_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/spec.json":
			if r.Header.Get("X-Test") != "yes" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"swagger":"2.0"}`))
		case "/slow":
			time.Sleep(500 * time.Millisecond)
			_, _ = w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	fetcher := NewSpecFetcher(staticHeaders{"X-Test": {"yes"}})
	ctx := context.Background()

	body, err := fetcher.Get(ctx, server.URL+"/spec.json", time.Second)
	require.NoError(t, err)
	assert.JSONEq(t, `{"swagger":"2.0"}`, string(body))

	_, err = fetcher.Get(ctx, server.URL+"/missing", time.Second)
	assert.Error(t, err, "非200响应应返回错误")

	_, err = fetcher.Get(ctx, server.URL+"/slow", 50*time.Millisecond)
	assert.Error(t, err, "超时应返回错误")
}
