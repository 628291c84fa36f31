// Package resilience retries page operations that fail for transient reasons.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/sells-group/maps-cli/internal/browser"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err so IsTransient reports true for it.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// chromeNetErrors are Chrome load failures caused by a flaky connection
// rather than a bad URL.
var chromeNetErrors = []string{
	"net::err_timed_out",
	"net::err_connection_reset",
	"net::err_connection_closed",
	"net::err_network_changed",
	"net::err_internet_disconnected",
	"net::err_empty_response",
}

var retryableErrnos = []error{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED}

// IsTransient reports whether err is worth retrying. Navigation timeouts are
// transient. Wait timeouts are not: the page loaded but lacks the element.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) || errors.Is(err, browser.ErrNavigationTimeout) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, errno := range retryableErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection reset by peer") || strings.Contains(msg, "broken pipe") {
		return true
	}
	for _, code := range chromeNetErrors {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}
