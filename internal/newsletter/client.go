package newsletter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	waBinary "go.mau.fi/whatsmeow/binary"
	"go.mau.fi/whatsmeow/types"

	"github.com/danmuck/newsletter/internal/observability"
	"github.com/danmuck/newsletter/internal/protocol"
	"github.com/danmuck/newsletter/internal/protocol/tree"
)

// Default "after" cursor sent when the caller passes zero.
const defaultAfter = 100

// MetadataKeyType selects how a metadata lookup identifies the channel.
type MetadataKeyType string

const (
	KeyJID    MetadataKeyType = "JID"
	KeyInvite MetadataKeyType = "INVITE"
)

// Client composes newsletter operations out of the two request builders.
// It holds no per-channel state; every call builds fresh values.
type Client struct {
	transport Transport
	decryptor Decryptor
	self      Identity
	log       zerolog.Logger
}

func NewClient(transport Transport, decryptor Decryptor, self Identity, log zerolog.Logger) *Client {
	return &Client{
		transport: transport,
		decryptor: decryptor,
		self:      self,
		log:       log.With().Str("component", "newsletter").Logger(),
	}
}

func (c *Client) treeQuery(ctx context.Context, target types.JID, qt QueryType, payload ...waBinary.Node) (*waBinary.Node, error) {
	node, err := BuildTreeQuery(c.transport.GenerateRequestID(), target, qt, payload)
	if err != nil {
		return nil, err
	}
	op := "unknown"
	if len(payload) > 0 {
		op = payload[0].Tag
	}
	return c.send(ctx, "tree", op, node)
}

func (c *Client) mexQuery(ctx context.Context, target types.JID, queryID protocol.QueryID, extra map[string]any) (*waBinary.Node, error) {
	node, err := BuildMexQuery(c.transport.GenerateRequestID(), target, queryID, extra)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, "mex", queryID.Name(), node)
}

func (c *Client) send(ctx context.Context, kind, op string, node waBinary.Node) (*waBinary.Node, error) {
	start := time.Now()
	resp, err := c.transport.SendIQ(ctx, node)
	observability.RecordQuery(kind, op, err == nil, time.Since(start))
	if err != nil {
		c.log.Debug().Err(err).Str("kind", kind).Str("operation", op).Interface("id", node.Attrs["id"]).Msg("query failed")
		return nil, fmt.Errorf("newsletter: %s %s: %w", kind, op, err)
	}
	c.log.Trace().Str("kind", kind).Str("operation", op).Dur("elapsed", time.Since(start)).Msg("query ok")
	return resp, nil
}

// Metadata fetches a channel by jid or invite code, viewed as role.
func (c *Client) Metadata(ctx context.Context, keyType MetadataKeyType, key string, role ViewRole) (*Metadata, error) {
	if role == "" {
		role = RoleGuest
	}
	resp, err := c.mexQuery(ctx, types.EmptyJID, protocol.QueryMetadata, map[string]any{
		"input": map[string]any{
			"key":       key,
			"type":      strings.ToUpper(string(keyType)),
			"view_role": string(role),
		},
		"fetch_viewer_metadata": true,
		"fetch_full_image":      true,
		"fetch_creation_time":   true,
	})
	if err != nil {
		return nil, err
	}
	return ExtractMetadata(resp, false)
}

// Create creates a channel owned by the local identity.
func (c *Client) Create(ctx context.Context, name, description string, mode ReactionMode) (*Metadata, error) {
	if mode == "" {
		mode = ReactionAll
	}
	resp, err := c.mexQuery(ctx, types.EmptyJID, protocol.QueryCreate, map[string]any{
		"input": map[string]any{
			"name":        name,
			"description": description,
			"settings": map[string]any{
				"reaction_codes": map[string]any{"value": strings.ToUpper(string(mode))},
			},
		},
	})
	if err != nil {
		return nil, err
	}
	return ExtractMetadata(resp, true)
}

func (c *Client) Follow(ctx context.Context, jid types.JID) error {
	_, err := c.mexQuery(ctx, jid, protocol.QueryFollow, nil)
	return err
}

func (c *Client) Unfollow(ctx context.Context, jid types.JID) error {
	_, err := c.mexQuery(ctx, jid, protocol.QueryUnfollow, nil)
	return err
}

func (c *Client) Mute(ctx context.Context, jid types.JID) error {
	_, err := c.mexQuery(ctx, jid, protocol.QueryMute, nil)
	return err
}

func (c *Client) Unmute(ctx context.Context, jid types.JID) error {
	_, err := c.mexQuery(ctx, jid, protocol.QueryUnmute, nil)
	return err
}

func (c *Client) Delete(ctx context.Context, jid types.JID) error {
	_, err := c.mexQuery(ctx, jid, protocol.QueryDelete, nil)
	return err
}

func (c *Client) ChangeOwner(ctx context.Context, jid, user types.JID) error {
	_, err := c.mexQuery(ctx, jid, protocol.QueryChangeOwner, map[string]any{"user_id": user.String()})
	return err
}

func (c *Client) Demote(ctx context.Context, jid, user types.JID) error {
	_, err := c.mexQuery(ctx, jid, protocol.QueryDemote, map[string]any{"user_id": user.String()})
	return err
}

func (c *Client) AdminCount(ctx context.Context, jid types.JID) (int64, error) {
	resp, err := c.mexQuery(ctx, jid, protocol.QueryAdminCount, nil)
	if err != nil {
		return 0, err
	}
	return ExtractAdminCount(resp)
}

func (c *Client) update(ctx context.Context, jid types.JID, updates map[string]any) error {
	_, err := c.mexQuery(ctx, jid, protocol.QueryJobMutation, map[string]any{"updates": updates})
	return err
}

func (c *Client) UpdateName(ctx context.Context, jid types.JID, name string) error {
	return c.update(ctx, jid, map[string]any{"name": name, "settings": nil})
}

func (c *Client) UpdateDescription(ctx context.Context, jid types.JID, description string) error {
	return c.update(ctx, jid, map[string]any{"description": description, "settings": nil})
}

func (c *Client) UpdateReactionMode(ctx context.Context, jid types.JID, mode ReactionMode) error {
	if !mode.Valid() {
		return fmt.Errorf("newsletter: invalid reaction mode %q", mode)
	}
	return c.update(ctx, jid, map[string]any{
		"settings": map[string]any{
			"reaction_codes": map[string]any{"value": string(mode)},
		},
	})
}

// FetchMessages fetches and decrypts up to count messages of a channel
// identified by jid or invite code.
func (c *Client) FetchMessages(ctx context.Context, keyType MetadataKeyType, key string, count, after int) ([]FetchedUpdate, error) {
	attrs := waBinary.Attrs{
		"type":  strings.ToLower(string(keyType)),
		"count": strconv.Itoa(count),
		"after": cursor(after),
	}
	if keyType == KeyInvite {
		attrs["key"] = key
	} else {
		attrs["jid"] = key
	}
	resp, err := c.treeQuery(ctx, types.ServerJID, QueryRead, waBinary.Node{Tag: "messages", Attrs: attrs})
	if err != nil {
		return nil, err
	}
	updates, err := ParseFetchedUpdates(ctx, resp, FetchMessages, c.decryptor, c.self)
	if err != nil {
		return nil, err
	}
	c.log.Debug().Str("key", key).Int("items", len(updates)).Msg("fetched messages")
	return updates, nil
}

// FetchUpdates fetches view and reaction counters of recent channel messages.
func (c *Client) FetchUpdates(ctx context.Context, jid types.JID, count, after, since int) ([]FetchedUpdate, error) {
	resp, err := c.treeQuery(ctx, jid, QueryRead, waBinary.Node{
		Tag: "message_updates",
		Attrs: waBinary.Attrs{
			"count": strconv.Itoa(count),
			"after": cursor(after),
			"since": strconv.Itoa(since),
		},
	})
	if err != nil {
		return nil, err
	}
	return ParseFetchedUpdates(ctx, resp, FetchUpdates, nil, c.self)
}

// SubscribeLiveUpdates asks the server to push counter updates for jid and
// returns how long the subscription lasts.
func (c *Client) SubscribeLiveUpdates(ctx context.Context, jid types.JID) (time.Duration, error) {
	resp, err := c.treeQuery(ctx, jid, QueryWrite, waBinary.Node{Tag: "live_updates"})
	if err != nil {
		return 0, err
	}
	live, ok := tree.FindChild(resp, "live_updates")
	if !ok {
		return 0, protocol.Malformed("live_updates", "missing live_updates child")
	}
	raw, ok := tree.Attr(&live, "duration")
	if !ok {
		return 0, protocol.Malformed("live_updates.duration", "missing required attribute")
	}
	seconds, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, protocol.NotNumeric("live_updates.duration", raw)
	}
	return time.Duration(seconds) * time.Second, nil
}

func cursor(after int) string {
	if after == 0 {
		after = defaultAfter
	}
	return strconv.Itoa(after)
}
