// Package frame implements the length-prefixed envelope that carries
// encoded binary nodes over a stream connection.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	FixedHeaderLen = 12
	Magic          uint32 = 0x57414E4C
	Version        uint16 = 1

	// FlagNotification marks a server push that answers no request.
	FlagNotification uint16 = 0x01
	knownFlags              = FlagNotification
)

var (
	ErrShortHeader     = errors.New("frame: short fixed header")
	ErrBadMagic        = errors.New("frame: bad magic")
	ErrVersion         = errors.New("frame: unsupported version")
	ErrUnknownFlags    = errors.New("frame: unknown flags")
	ErrPayloadTooLarge = errors.New("frame: payload too large")
	ErrEmptyPayload    = errors.New("frame: empty payload")
)

// Header is the fixed wire header.
type Header struct {
	Magic      uint32
	Version    uint16
	Flags      uint16
	PayloadLen uint32
}

// Frame is one encoded node on the wire.
type Frame struct {
	Header  Header
	Payload []byte
}

// Limits constrains frame decode/encode memory use.
type Limits struct {
	MaxPayloadBytes uint32
}

func DefaultLimits() Limits {
	return Limits{MaxPayloadBytes: 4 * 1024 * 1024}
}

func ReadFrame(r io.Reader, limits Limits) (Frame, error) {
	var fixed [FixedHeaderLen]byte
	if _, err := io.ReadFull(r, fixed[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, ErrShortHeader
		}
		return Frame{}, err
	}

	h, err := DecodeHeader(fixed[:])
	if err != nil {
		return Frame{}, err
	}
	if err := h.Validate(limits); err != nil {
		return Frame{}, err
	}

	payload := make([]byte, h.PayloadLen)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	return Frame{Header: h, Payload: payload}, nil
}

func WriteFrame(w io.Writer, f Frame, limits Limits) error {
	if uint64(len(f.Payload)) > uint64(limits.MaxPayloadBytes) {
		return ErrPayloadTooLarge
	}
	h := f.Header
	if h.Magic == 0 {
		h.Magic = Magic
	}
	if h.Version == 0 {
		h.Version = Version
	}
	h.PayloadLen = uint32(len(f.Payload))
	if err := h.Validate(limits); err != nil {
		return err
	}

	buf := make([]byte, 0, FixedHeaderLen+len(f.Payload))
	buf = append(buf, EncodeHeader(h)...)
	buf = append(buf, f.Payload...)
	_, err := w.Write(buf)
	return err
}

// Validate checks a decoded header against the protocol constants and limits.
func (h Header) Validate(limits Limits) error {
	if h.Magic != Magic {
		return fmt.Errorf("%w: 0x%08x", ErrBadMagic, h.Magic)
	}
	if h.Version != Version {
		return fmt.Errorf("%w: %d", ErrVersion, h.Version)
	}
	if h.Flags&^knownFlags != 0 {
		return fmt.Errorf("%w: 0x%04x", ErrUnknownFlags, h.Flags)
	}
	if h.PayloadLen == 0 {
		return ErrEmptyPayload
	}
	if h.PayloadLen > limits.MaxPayloadBytes {
		return ErrPayloadTooLarge
	}
	return nil
}

func EncodeHeader(h Header) []byte {
	buf := make([]byte, FixedHeaderLen)
	binary.BigEndian.PutUint32(buf[0:4], h.Magic)
	binary.BigEndian.PutUint16(buf[4:6], h.Version)
	binary.BigEndian.PutUint16(buf[6:8], h.Flags)
	binary.BigEndian.PutUint32(buf[8:12], h.PayloadLen)
	return buf
}

func DecodeHeader(b []byte) (Header, error) {
	if len(b) != FixedHeaderLen {
		return Header{}, fmt.Errorf("frame: invalid fixed header length: %d", len(b))
	}
	return Header{
		Magic:      binary.BigEndian.Uint32(b[0:4]),
		Version:    binary.BigEndian.Uint16(b[4:6]),
		Flags:      binary.BigEndian.Uint16(b[6:8]),
		PayloadLen: binary.BigEndian.Uint32(b[8:12]),
	}, nil
}
