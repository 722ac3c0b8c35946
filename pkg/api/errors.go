package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed request: the endpoint could not be
// reached or answered badly, or it answered 2xx with a body we could
// not decode.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Error describes a failed backend or market-data request.
type Error struct {
	Kind     ErrorKind
	Endpoint string
	Status   int // HTTP status, when the server answered
	Err      error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s error on %s (status %d): %v", e.Kind, e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("%s error on %s: %v", e.Kind, e.Endpoint, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsNetwork reports whether err is a transport, timeout or HTTP status failure.
func IsNetwork(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindNetwork
}

// IsParse reports whether err is a malformed response body.
func IsParse(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindParse
}
