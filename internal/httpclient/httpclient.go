package httpclient

import (
	"crypto/tls"
	"io"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
)

const (
	DefaultTimeout         = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	MaxIdleConnsPerHost    = 16

	// UserAgent mimics a desktop browser; several providers reject
	// unrecognised agents outright.
	UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

var defaultClient *http.Client

func init() {
	defaultClient = &http.Client{
		Timeout:   DefaultTimeout,
		Transport: newTransport(),
	}
}

// newTransport builds the shared transport. Certificate verification is
// disabled on purpose: IPTV providers overwhelmingly serve self-signed or
// expired certificates, and refusing them would make the engine useless
// against real deployments. This is a documented trust boundary, not a bug.
func newTransport() http.RoundTripper {
	t := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: MaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: true},
	}
	return &brotliTransport{base: t}
}

// brotliTransport advertises brotli alongside gzip and decodes br responses.
// The stdlib transport only auto-decodes gzip; CDN-fronted providers often
// answer with Content-Encoding: br when the header allows it.
type brotliTransport struct {
	base http.RoundTripper
}

func (t *brotliTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req = req.Clone(req.Context())
		req.Header.Set("Accept-Encoding", "gzip, br")
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.Header.Get("Content-Encoding") == "br" {
		resp.Body = &brotliReader{r: brotli.NewReader(resp.Body), underlying: resp.Body}
		resp.Header.Del("Content-Encoding")
		resp.Header.Del("Content-Length")
		resp.ContentLength = -1
		resp.Uncompressed = true
	}
	return resp, nil
}

type brotliReader struct {
	r          io.Reader
	underlying io.ReadCloser
}

func (b *brotliReader) Read(p []byte) (int, error) { return b.r.Read(p) }
func (b *brotliReader) Close() error               { return b.underlying.Close() }

// Default returns the shared tuned HTTP client for probe, listing fetches,
// enrichment and guide download.
func Default() *http.Client {
	return defaultClient
}

// WithTimeout returns a client with the given timeout and the same transport as Default.
func WithTimeout(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: defaultClient.Transport,
	}
}
