// Package decrypt provides message decryptors for fetched channel items.
package decrypt

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	waBinary "go.mau.fi/whatsmeow/binary"
	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"google.golang.org/protobuf/proto"

	"github.com/danmuck/newsletter/internal/newsletter"
	"github.com/danmuck/newsletter/internal/protocol/tree"
)

var (
	ErrNoPlaintext = errors.New("decrypt: item has no plaintext payload")
	ErrNoSender    = errors.New("decrypt: item has no from attribute")
)

// Plaintext decodes channel messages, which are carried unencrypted as a
// serialized message protobuf in a <plaintext> child.
type Plaintext struct {
	log zerolog.Logger
}

func NewPlaintext(log zerolog.Logger) *Plaintext {
	return &Plaintext{log: log.With().Str("component", "decrypt").Logger()}
}

func (p *Plaintext) DecryptMessage(ctx context.Context, node *waBinary.Node, _ newsletter.Identity) (*waWeb.WebMessageInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from, ok := tree.Attr(node, "from")
	if !ok || from == "" {
		return nil, ErrNoSender
	}
	child, ok := tree.FindChild(node, "plaintext")
	if !ok {
		return nil, ErrNoPlaintext
	}
	raw, ok := tree.Bytes(&child)
	if !ok {
		return nil, ErrNoPlaintext
	}

	msg := &waE2E.Message{}
	if err := proto.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("decrypt: unmarshal plaintext: %w", err)
	}

	info := &waWeb.WebMessageInfo{
		Key: &waCommon.MessageKey{
			RemoteJID: proto.String(from),
			FromMe:    proto.Bool(false),
		},
		Message: msg,
	}
	if id, ok := tree.Attr(node, "id"); ok {
		info.Key.ID = proto.String(id)
	}
	if ts, ok := tree.Attr(node, "t"); ok {
		seconds, err := strconv.ParseUint(ts, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("decrypt: timestamp %q: %w", ts, err)
		}
		info.MessageTimestamp = proto.Uint64(seconds)
	}
	p.log.Trace().Str("from", from).Int("bytes", len(raw)).Msg("decoded plaintext message")
	return info, nil
}
