package transport

import (
	"fmt"
	"io"

	waBinary "go.mau.fi/whatsmeow/binary"

	"github.com/danmuck/newsletter/internal/protocol/frame"
)

// WriteNode encodes node and writes it as one frame.
func WriteNode(w io.Writer, node waBinary.Node, flags uint16, limits frame.Limits) error {
	payload, err := waBinary.Marshal(node)
	if err != nil {
		return fmt.Errorf("transport: encode %s: %w", node.Tag, err)
	}
	return frame.WriteFrame(w, frame.Frame{Header: frame.Header{Flags: flags}, Payload: payload}, limits)
}

// ReadNode reads one frame and decodes its node.
func ReadNode(r io.Reader, limits frame.Limits) (*waBinary.Node, frame.Header, error) {
	f, err := frame.ReadFrame(r, limits)
	if err != nil {
		return nil, frame.Header{}, err
	}
	node, err := decodePayload(f.Payload)
	if err != nil {
		return nil, f.Header, err
	}
	return node, f.Header, nil
}

type decodeError struct{ err error }

func (e decodeError) Error() string { return "transport: decode node: " + e.err.Error() }
func (e decodeError) Unwrap() error { return e.err }

func decodePayload(payload []byte) (*waBinary.Node, error) {
	data, err := waBinary.Unpack(payload)
	if err != nil {
		return nil, decodeError{err}
	}
	node, err := waBinary.Unmarshal(data)
	if err != nil {
		return nil, decodeError{err}
	}
	return node, nil
}
