package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedResponse = errors.New("protocol: malformed response")
	ErrNumericCoercion   = errors.New("protocol: numeric coercion failed")
	ErrDecryption        = errors.New("protocol: decryption failed")
	ErrUnknownQuery      = errors.New("protocol: unknown query id")
	ErrInvalidTarget     = errors.New("protocol: invalid target")
)

// ParseError reports where a response stopped matching its expected shape.
// Kind is ErrMalformedResponse or ErrNumericCoercion.
type ParseError struct {
	Kind   error
	Path   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%v: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("%v: %s: %s", e.Kind, e.Path, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

// Malformed builds a ParseError of kind ErrMalformedResponse.
func Malformed(path, reason string) error {
	return &ParseError{Kind: ErrMalformedResponse, Path: path, Reason: reason}
}

// NotNumeric builds a ParseError of kind ErrNumericCoercion.
func NotNumeric(path, raw string) error {
	return &ParseError{Kind: ErrNumericCoercion, Path: path, Reason: fmt.Sprintf("not numeric: %q", raw)}
}

// DecryptError wraps a decryptor failure for one fetched item. errors.Is
// matches ErrDecryption, and Unwrap yields the collaborator's error unchanged.
type DecryptError struct {
	ServerID string
	Err      error
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("%v: server_id=%s: %v", ErrDecryption, e.ServerID, e.Err)
}

func (e *DecryptError) Unwrap() error {
	return e.Err
}

func (e *DecryptError) Is(target error) bool {
	return target == ErrDecryption
}
