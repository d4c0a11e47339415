package transport

import (
	"errors"
	"fmt"
)

var (
	ErrClosed      = errors.New("transport: connection closed")
	ErrTimeout     = errors.New("transport: response timeout")
	ErrMissingID   = errors.New("transport: request has no id")
	ErrDuplicateID = errors.New("transport: request id already in flight")
)

// IQError is an IQ answered with type="error".
type IQError struct {
	Code int
	Text string
}

func (e *IQError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("transport: iq error %d", e.Code)
	}
	return fmt.Sprintf("transport: iq error %d: %s", e.Code, e.Text)
}
