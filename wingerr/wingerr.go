// Package wingerr defines the typed error kinds the wing client surfaces to
// callers, per the error handling design: Io, InvalidData, ConnectionError
// and DiscoveryError. Errors are wrapped with github.com/pkg/errors so the
// original cause survives and can still be inspected with errors.Cause.
package wingerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies which of the four error categories an error belongs to.
type Kind int

const (
	// Io covers any underlying socket error not matched by a more specific kind.
	Io Kind = iota
	// InvalidData covers malformed utf8 or a decoder-level inconsistency.
	InvalidData
	// ConnectionError covers a zero-length TCP read or a meter recv failure
	// other than a would-block transient.
	ConnectionError
	// DiscoveryError covers connect(nil) when scan returns no consoles.
	DiscoveryError
)

func (k Kind) String() string {
	switch k {
	case Io:
		return "io"
	case InvalidData:
		return "invalid data"
	case ConnectionError:
		return "connection error"
	case DiscoveryError:
		return "discovery error"
	default:
		return "unknown"
	}
}

// wingError pairs a Kind with the wrapped cause.
type wingError struct {
	kind  Kind
	cause error
}

func (e *wingError) Error() string {
	if e.cause == nil {
		return e.kind.String()
	}
	return fmt.Sprintf("%s: %v", e.kind, e.cause)
}

func (e *wingError) Unwrap() error { return e.cause }

// Cause lets github.com/pkg/errors.Cause walk through a wingError to the
// wrapped cause, and from there down to the original error it stacked.
func (e *wingError) Cause() error { return e.cause }

// New builds an error of the given kind wrapping cause. cause may be nil,
// in which case the error text is just the kind's description.
func New(kind Kind, cause error) error {
	if cause == nil {
		return &wingError{kind: kind}
	}
	return &wingError{kind: kind, cause: errors.WithStack(cause)}
}

// Is reports whether err (or any error it wraps) is of the given kind.
func Is(err error, kind Kind) bool {
	for err != nil {
		if w, ok := err.(*wingError); ok && w.kind == kind {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// Cause returns the innermost wrapped error, or err itself if it is not a
// wingError or wraps nothing further.
func Cause(err error) error {
	if c := errors.Cause(err); c != nil {
		return c
	}
	return err
}
