package exchange

import (
	"errors"
	"fmt"
)

// ErrorKind classifies connector failures so callers can branch on the
// failure class instead of matching message strings.
type ErrorKind int

const (
	// KindConnectivity covers network failures and exchange outages.
	KindConnectivity ErrorKind = iota
	// KindAuth covers bad or expired credentials.
	KindAuth
	// KindRejected means the exchange refused the request (bad order,
	// insufficient balance, closed market).
	KindRejected
	// KindValidation means the request failed local checks before any
	// network call was made.
	KindValidation
	// KindNotFound means the referenced order or symbol does not exist.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindAuth:
		return "auth"
	case KindRejected:
		return "rejected"
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the failure type returned by every Connector method.
type Error struct {
	Kind ErrorKind
	Op   string // connector operation, e.g. "create_order"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exchange: %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("exchange: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with an operation name and a failure kind.
func NewError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an Error from a format string.
func Errorf(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the ErrorKind from err, defaulting to KindConnectivity
// for errors that did not originate in a connector.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindConnectivity
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
