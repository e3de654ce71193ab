// Package httpclient builds the one HTTP client the animator shares
// across all generation calls.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Options tunes the shared client. Timeout bounds a whole exchange,
// including the time the model spends rendering before the first
// response byte arrives.
type Options struct {
	PreferIPv4 bool
	Timeout    time.Duration
}

const defaultTimeout = 180 * time.Second

// New builds a client shaped for image generation traffic: a handful
// of concurrent calls to a single API host, each of which can sit
// without response headers for the full render. The header timeout
// therefore shares the overall deadline instead of a short fixed cap.
func New(opts Options) *http.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	dialer := &net.Dialer{
		Timeout:   15 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	dial := dialer.DialContext
	if opts.PreferIPv4 {
		dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.DialContext(ctx, "tcp4", addr)
		}
	}

	transport := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: dial,

		// A batch keeps at most a few frames in flight against one
		// host; a small warm pool must survive the stagger and the
		// render time between batches.
		MaxIdleConns:        8,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     4 * time.Minute,

		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
