// Package errs defines the error kinds shared by the archive clients and the
// tool handlers, and converts them into the uniform error envelope.
package errs

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrRateLimited matches any RemoteAPIError caused by a 429 response.
var ErrRateLimited = errors.New("rate limited by remote API")

// RemoteAPIError is returned for non-2xx responses, malformed bodies and
// transport failures when talking to a remote archive API.
type RemoteAPIError struct {
	Op         string
	URL        string
	Status     int
	RetryAfter time.Duration
	Body       string
	Err        error
}

func (e *RemoteAPIError) Error() string {
	msg := e.Op
	if msg == "" {
		msg = "remote request"
	}
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("%s: HTTP %d: %v", msg, e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("%s: HTTP %d %s", msg, e.Status, http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg + ": failed"
}

func (e *RemoteAPIError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrRateLimited) match 429 responses.
func (e *RemoteAPIError) Is(target error) bool {
	return target == ErrRateLimited && e.Status == http.StatusTooManyRequests
}

// Temporary reports whether retrying the request could succeed.
func (e *RemoteAPIError) Temporary() bool {
	switch {
	case e.Status == 0:
		return e.Err != nil
	case e.Status == http.StatusTooManyRequests, e.Status == http.StatusRequestTimeout:
		return true
	case e.Status >= 500 && e.Status != http.StatusNotImplemented:
		return true
	}
	return false
}

// CacheCorruptionError describes an unreadable cache entry. It is recovered
// locally by deleting the entry and never reaches a tool caller.
type CacheCorruptionError struct {
	Path string
	Err  error
}

func (e *CacheCorruptionError) Error() string {
	return fmt.Sprintf("corrupt cache entry %s: %v", e.Path, e.Err)
}

func (e *CacheCorruptionError) Unwrap() error { return e.Err }

// NotFoundError is returned for unknown reference codes, pages and guide files.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.Kind, e.ID)
}

// InvalidParameterError is returned when caller input fails validation.
type InvalidParameterError struct {
	Param  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	if e.Param == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// Invalid is shorthand for constructing an InvalidParameterError.
func Invalid(param, format string, args ...any) error {
	return &InvalidParameterError{Param: param, Reason: fmt.Sprintf(format, args...)}
}

// NotFound is shorthand for constructing a NotFoundError.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}
