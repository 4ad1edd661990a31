// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

// NewClient returns the outbound HTTP client used for provider calls. The
// transport keeps connections to the completion endpoint warm so retries do
// not pay a fresh TLS handshake; the overall timeout is a backstop behind
// the per-call context deadlines.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
