package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	waBinary "go.mau.fi/whatsmeow/binary"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"golang.org/x/sync/errgroup"

	"github.com/danmuck/newsletter/internal/observability"
	"github.com/danmuck/newsletter/internal/protocol"
	"github.com/danmuck/newsletter/internal/protocol/tree"
)

// FetchMode selects the response shape ParseFetchedUpdates expects.
type FetchMode int

const (
	// FetchMessages reads <messages> directly and decrypts every item.
	FetchMessages FetchMode = iota
	// FetchUpdates reads <message_updates><messages> and carries counters only.
	FetchUpdates
)

func (m FetchMode) String() string {
	switch m {
	case FetchMessages:
		return "messages"
	case FetchUpdates:
		return "updates"
	default:
		return fmt.Sprintf("FetchMode(%d)", int(m))
	}
}

// Decryptor turns one encrypted item node into a message. Implementations
// own any locking of shared session state.
type Decryptor interface {
	DecryptMessage(ctx context.Context, node *waBinary.Node, self Identity) (*waWeb.WebMessageInfo, error)
}

var ErrNoDecryptor = errors.New("newsletter: messages mode requires a decryptor")

// ParseFetchedUpdates parses a fetched message/update response into one
// FetchedUpdate per item node, in input order. In FetchMessages mode every
// item is decrypted concurrently; any failure fails the whole batch and the
// call returns only after all decryptions have settled.
func ParseFetchedUpdates(ctx context.Context, node *waBinary.Node, mode FetchMode, dec Decryptor, self Identity) ([]FetchedUpdate, error) {
	list, err := itemList(node, mode)
	if err != nil {
		return nil, err
	}
	var origin types.JID
	if raw, ok := list.Attrs["jid"]; ok {
		switch v := raw.(type) {
		case types.JID:
			origin = v
		case string:
			if origin, err = types.ParseJID(v); err != nil {
				return nil, protocol.Malformed(list.Tag+".jid", err.Error())
			}
		}
	}

	items := tree.Children(&list)
	out := make([]FetchedUpdate, len(items))
	nodes := make([]waBinary.Node, len(items))
	for i := range items {
		nodes[i] = withOrigin(items[i], origin)
		update, err := parseItem(&nodes[i], origin)
		if err != nil {
			return nil, err
		}
		out[i] = update
	}
	if mode != FetchMessages || len(nodes) == 0 {
		return out, nil
	}
	if dec == nil {
		return nil, ErrNoDecryptor
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := range nodes {
		g.Go(func() error {
			start := time.Now()
			msg, err := dec.DecryptMessage(gctx, &nodes[i], self)
			observability.RecordDecrypt(err == nil, time.Since(start))
			if err != nil {
				return &protocol.DecryptError{ServerID: out[i].ServerID, Err: err}
			}
			out[i].Message = msg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func itemList(node *waBinary.Node, mode FetchMode) (waBinary.Node, error) {
	switch mode {
	case FetchMessages:
		list, ok := tree.FindChild(node, "messages")
		if !ok {
			return waBinary.Node{}, protocol.Malformed("messages", "missing messages child")
		}
		return list, nil
	case FetchUpdates:
		wrapper, ok := tree.FindChild(node, "message_updates")
		if !ok {
			return waBinary.Node{}, protocol.Malformed("message_updates", "missing message_updates child")
		}
		list, ok := tree.FindChild(&wrapper, "messages")
		if !ok {
			return waBinary.Node{}, protocol.Malformed("message_updates.messages", "missing messages child")
		}
		return list, nil
	default:
		return waBinary.Node{}, fmt.Errorf("newsletter: unsupported fetch mode %v", mode)
	}
}

// withOrigin returns a shallow copy of item with "from" set to the list jid,
// leaving the caller's response tree untouched.
func withOrigin(item waBinary.Node, origin types.JID) waBinary.Node {
	attrs := make(waBinary.Attrs, len(item.Attrs)+1)
	for k, v := range item.Attrs {
		attrs[k] = v
	}
	if !origin.IsEmpty() {
		attrs["from"] = origin
	}
	item.Attrs = attrs
	return item
}

func parseItem(item *waBinary.Node, origin types.JID) (FetchedUpdate, error) {
	serverID, ok := tree.Attr(item, "server_id")
	if !ok || serverID == "" {
		return FetchedUpdate{}, protocol.Malformed(item.Tag+".server_id", "missing required attribute")
	}
	update := FetchedUpdate{
		ServerID:  serverID,
		Origin:    origin,
		Reactions: []Reaction{},
	}
	if views, ok := tree.FindChild(item, "views_count"); ok {
		update.Views = tree.Count(&views, "count")
	}
	reactions, ok := tree.FindChild(item, "reactions")
	if !ok {
		return update, nil
	}
	for _, r := range tree.FindChildren(&reactions, "reaction") {
		code, ok := tree.Attr(&r, "code")
		if !ok {
			return FetchedUpdate{}, protocol.Malformed(item.Tag+".reactions.reaction.code", "missing required attribute")
		}
		update.Reactions = append(update.Reactions, Reaction{Code: code, Count: tree.Count(&r, "count")})
	}
	return update, nil
}
