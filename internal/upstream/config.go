// Package upstream holds the network boundary: thin HTTP clients for
// the chat-completion and text-to-speech providers. Neither client
// retries; a failure is reported once and the caller decides.
package upstream

import (
	"net"
	"net/http"
	"time"
)

const defaultTimeout = 30 * time.Second

// newHTTPClient builds a pooled HTTP client shared by both upstream
// clients. timeout caps each request end to end.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}
