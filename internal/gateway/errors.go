package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrTransport        = errors.New("gateway_transport_error")
	ErrParse            = errors.New("gateway_parse_error")
	ErrUnknownOperation = errors.New("unknown_gateway_operation")
	ErrReplyTooLarge    = errors.New("gateway_reply_too_large")
)

// TransportError means the call did not produce a gateway reply at all.
type TransportError struct {
	Operation Operation
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway %s: transport: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() []error { return []error{ErrTransport, e.Err} }

// ParseError means the reply body is not a JSON object.
type ParseError struct {
	Operation Operation
	RawBody   string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gateway %s: malformed reply: %v", e.Operation, e.Err)
}

func (e *ParseError) Unwrap() []error { return []error{ErrParse, e.Err} }
