package errs

import (
	"errors"
	"fmt"
	"math"

	"github.com/briangreenhill/ramcp/internal/format"
)

// Envelope renders err as the uniform error envelope. The message prefix
// names the failed operation ("Search failed"); fallback suggestions are
// used when the error kind has none of its own.
func Envelope(prefix string, err error, fallback ...string) string {
	msg := err.Error()
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	return format.ErrorMessage(msg, Suggestions(err, fallback...)...)
}

// Suggestions returns the actionable hints for an error kind.
func Suggestions(err error, fallback ...string) []string {
	var (
		remote   *RemoteAPIError
		notFound *NotFoundError
		invalid  *InvalidParameterError
	)
	switch {
	case errors.As(err, &invalid):
		return append([]string{"Check the value of " + paramName(invalid)}, fallback...)
	case errors.As(err, &notFound):
		return append([]string{
			fmt.Sprintf("Check the %s spelling", notFound.Kind),
			"Use the search tools to find valid identifiers",
		}, fallback...)
	case errors.As(err, &remote):
		var out []string
		if remote.RetryAfter > 0 {
			secs := int(math.Ceil(remote.RetryAfter.Seconds()))
			out = append(out, fmt.Sprintf("Retry after %d seconds", secs))
		} else if remote.Temporary() {
			out = append(out, "Retry the request in a moment")
		}
		out = append(out, "Check if the Riksarkivet service is available")
		return append(out, fallback...)
	}
	return fallback
}

func paramName(e *InvalidParameterError) string {
	if e.Param == "" {
		return "the input parameters"
	}
	return "'" + e.Param + "'"
}
