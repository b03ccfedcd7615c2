package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// UpstreamError marks a failure from an upstream server that another attempt,
// or another mirror, may not repeat.
type UpstreamError struct {
	Upstream   string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Upstream, e.Err)
	}
	return fmt.Sprintf("%s: status %d: %v", e.Upstream, e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable upstream failure. statusCode is 0 when
// no response was received.
func Transient(upstream string, statusCode int, err error) error {
	return &UpstreamError{Upstream: upstream, StatusCode: statusCode, Err: err}
}

// retryableStatus lists the HTTP statuses that signal an overloaded or
// restarting server.
var retryableStatus = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// RetryableStatus reports whether an HTTP status is worth another attempt.
func RetryableStatus(code int) bool {
	return retryableStatus[code]
}

// networkFailures are substrings of dial and transport errors that arrive
// without a typed cause.
var networkFailures = []string{
	"connection reset by peer",
	"broken pipe",
	"no such host",
	"temporary failure in name resolution",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"unexpected eof",
}

// IsTransient reports whether err is an UpstreamError or a network failure
// that a retry could clear.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if errors.Is(err, errno) {
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, s := range networkFailures {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
