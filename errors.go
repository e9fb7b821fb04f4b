package regsync

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingConfiguration is returned when a required credential or the endpoint is unset.
	ErrMissingConfiguration = errors.New("regsync: missing configuration")
	// ErrAuthentication is returned when login to the destination registry fails.
	ErrAuthentication = errors.New("regsync: authentication failed")
	// ErrProtocol is returned when an input line is not a valid record.
	ErrProtocol = errors.New("regsync: malformed input record")
)

// ProtocolError reports an input line that could not be decoded into an
// InputRecord. It matches ErrProtocol with errors.Is.
type ProtocolError struct {
	Line int
	Err  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: line %d: %v", ErrProtocol, e.Line, e.Err)
}

func (e *ProtocolError) Unwrap() []error { return []error{ErrProtocol, e.Err} }
