package gql

import (
	"errors"
	"fmt"
)

// AuthReason says which claim prerequisite the session is missing.
type AuthReason int

const (
	NotSignedIn AuthReason = iota
	NotPrimeMember
	PrimeAccountNotLinked
)

// AuthError is fatal: no retry can repair an invalid session.
type AuthError struct {
	Reason AuthReason
}

func (e *AuthError) Error() string {
	switch e.Reason {
	case NotSignedIn:
		return "authentication: not signed in (recreate the cookie file)"
	case NotPrimeMember:
		return "authentication: not a Prime member (loot can only be redeemed with a Prime membership)"
	case PrimeAccountNotLinked:
		return "authentication: Prime gaming account not linked (loot requires a connected gaming account)"
	default:
		return fmt.Sprintf("authentication: reason %d", int(e.Reason))
	}
}

// IsAuthError reports whether err carries an *AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// ProtocolError reports a response that does not have the expected shape.
// The current pass is aborted; the outer loop may try again later.
type ProtocolError struct {
	Op  string
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gql: %s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("gql: %s: %s", e.Op, e.Msg)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// OrderError is the structured error field of a placeOrders response.
type OrderError struct {
	Code string `json:"code"`
}

func (e *OrderError) Error() string {
	return "placeOrders: " + e.Code
}
