package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

var (
	// ErrTransient marks failures worth retrying: timeouts, dropped
	// connections, rate limiting, server-side errors
	ErrTransient = errors.New("transient generation error")
	// ErrPermanent marks failures that retrying cannot fix: malformed
	// requests, unsupported content, validation failures
	ErrPermanent = errors.New("permanent generation error")
	// ErrInvalidRequest is returned for requests rejected before any call
	ErrInvalidRequest = errors.New("invalid generation request")
)

// Kind is the retry classification of an Error
type Kind int

const (
	KindTransient Kind = iota
	KindPermanent
)

func (k Kind) String() string {
	if k == KindTransient {
		return "transient"
	}
	return "permanent"
}

// Error is a classified generation failure. It matches ErrTransient or
// ErrPermanent depending on Kind.
type Error struct {
	Kind       Kind
	Op         string // "question", "answer", "init"
	StatusCode int    // HTTP status when the backend answered, else 0
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s error (status %d): %v", e.Kind, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s error: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransient:
		return e.Kind == KindTransient
	case ErrPermanent:
		return e.Kind == KindPermanent
	}
	return false
}

// Transient wraps err as a retryable failure
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Permanent wraps err as a non-retryable failure
func Permanent(op string, err error) error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// IsTransient reports whether err should be retried
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsPermanent reports whether err must not be retried
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// StatusError classifies an HTTP error response. 408, 425, 429 and 5xx are
// transient; every other status is permanent.
func StatusError(op string, status int, body string) error {
	err := &Error{Kind: KindPermanent, Op: op, StatusCode: status, Err: fmt.Errorf("api error: %s", body)}
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooEarly,
		status == http.StatusTooManyRequests,
		status >= 500:
		err.Kind = KindTransient
	}
	return err
}

// TransportError classifies a failure to complete an HTTP exchange. The
// caller's own cancellation is returned unchanged so it is never retried.
func TransportError(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return ctx.Err()
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout(),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return Transient(op, err)
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return Transient(op, err)
	}
	return Permanent(op, err)
}
