package connectors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
	defaultTimeout         = 15 * time.Second
)

// ErrNotFound is returned for 404 responses so callers can tell "no such
// order/position" from transport failures.
var ErrNotFound = errors.New("resource not found")

// HTTPError carries a non-2xx response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error {
	if e.StatusCode == 404 {
		return ErrNotFound
	}
	return nil
}

// idempotent methods may be replayed after a lost response. Order submission
// and position close are not: the venue may already have acted on them.
func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func isRetryableResp(r *resty.Response, err error) bool {
	if r != nil && r.Request != nil && !idempotent(r.Request.Method) {
		// 429 is refused before the venue acts on the request
		return err == nil && r.StatusCode() == http.StatusTooManyRequests
	}

	if err != nil {
		return true
	}

	if r == nil {
		return false
	}

	code := r.StatusCode()

	if code >= 500 && code <= 599 {
		return true
	}
	if code == 429 {
		return true
	}
	if code == 408 {
		return true
	}
	return false
}

func newRestClient(baseURL string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetRetryCount(defaultRetryAttempts - 1).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)
}

func checkResponse(component string, resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("%s request failed: %w", component, err)
	}
	if resp.IsError() {
		logger.WithFields(map[string]interface{}{
			"component": component,
			"status":    resp.StatusCode(),
			"url":       resp.Request.URL,
		}).Warn("Non-2xx response")
		return &HTTPError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}
