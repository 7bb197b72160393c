package esp

import (
	"context"
	"errors"
	"fmt"
	"net"
)

type ErrorKind string

const (
	// Remote API error envelope.
	KindBadRequest      ErrorKind = "bad_request"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindTooManyRequests ErrorKind = "too_many_requests"
	KindServerError     ErrorKind = "server_error"

	// Transport level.
	KindTimeout      ErrorKind = "timeout"
	KindNoInternet   ErrorKind = "no_internet"
	KindUnknown      ErrorKind = "unknown"
	KindUnknownError ErrorKind = "unknown_error"

	// The goroutine running the call died before producing a result.
	KindWorkerPanic ErrorKind = "worker_panic"
)

// Error is returned by every Client call.
type Error struct {
	Kind       ErrorKind
	Operation  string
	StatusCode int
	Detail     string // remote "error" field or transport detail
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return "esp error"
	}
	base := fmt.Sprintf("esp %s", e.Kind)
	if e.Operation != "" {
		base = fmt.Sprintf("%s during %s", base, e.Operation)
	}
	if e.StatusCode > 0 {
		base = fmt.Sprintf("%s (status %d)", base, e.StatusCode)
	}
	if e.Detail != "" {
		base = fmt.Sprintf("%s: %s", base, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", base, e.Err)
	}
	return base
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Transient reports whether retrying on the next cadence may succeed.
// Only a rejected token is considered permanent.
func Transient(err error) bool {
	return err != nil && KindOf(err) != KindForbidden
}

func kindForStatus(code int) ErrorKind {
	switch {
	case code == 400:
		return KindBadRequest
	case code == 401 || code == 403:
		return KindForbidden
	case code == 404:
		return KindNotFound
	case code == 408:
		return KindTimeout
	case code == 429:
		return KindTooManyRequests
	case code >= 500:
		return KindServerError
	default:
		return KindUnknownError
	}
}

// classifyTransport maps an http.Client.Do failure onto a transport kind.
func classifyTransport(op string, err error) *Error {
	e := &Error{Kind: KindUnknown, Operation: op, Err: err}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Kind = KindTimeout
	case isOffline(err):
		e.Kind = KindNoInternet
	}
	return e
}

func isOffline(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
