package httpx

import (
	"net"
	"net/http"
	"net/http/cookiejar"
	"time"
)

const userAgent = "Wget/1.21.4"

// headerTransport applies the fixed request headers some feed mirrors insist
// on: a wget-style user agent, a permissive Accept, and identity transfer
// encoding (mirror hosts have been seen rejecting default gzip negotiation).
type headerTransport struct {
	base http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", userAgent)
	}
	if r.Header.Get("Accept") == "" {
		r.Header.Set("Accept", "*/*")
	}
	if r.Header.Get("Accept-Encoding") == "" {
		r.Header.Set("Accept-Encoding", "identity")
	}
	return t.base.RoundTrip(r)
}

// NewClient builds the HTTP client shared by the feed resolver and the
// artifact downloader. It keeps cookies across requests (mirror redirects
// depend on them), enforces only a connect timeout, and sets no total
// request timeout so a large transfer is never cut off mid-stream.
func NewClient() *http.Client {
	jar, _ := cookiejar.New(nil)

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,

		// Compression is negotiated away explicitly via Accept-Encoding.
		DisableCompression: true,
	}

	return &http.Client{
		Transport: &headerTransport{base: transport},
		Jar:       jar,
		Timeout:   0,
	}
}
