package newsletter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	waBinary "go.mau.fi/whatsmeow/binary"
	"go.mau.fi/whatsmeow/types"

	"github.com/danmuck/newsletter/internal/protocol"
	"github.com/danmuck/newsletter/internal/protocol/tree"
	"github.com/danmuck/newsletter/internal/testutil/testlog"
)

func newTestClient(t *testing.T, ft *fakeTransport, dec Decryptor) *Client {
	t.Helper()
	log := testlog.Start(t)
	self := Identity{ID: types.NewJID("15550001", types.DefaultUserServer)}
	return NewClient(ft, dec, self, log)
}

func decodeVariables(t *testing.T, node waBinary.Node) map[string]any {
	t.Helper()
	var body struct {
		Variables map[string]any `json:"variables"`
	}
	if err := json.Unmarshal([]byte(mexBody(node)), &body); err != nil {
		t.Fatalf("decode mex body: %v", err)
	}
	return body.Variables
}

func TestClientUsesFreshRequestIDs(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(t, ft, nil)
	ctx := context.Background()

	if err := c.Follow(ctx, channelJID); err != nil {
		t.Fatalf("follow: %v", err)
	}
	if err := c.Mute(ctx, channelJID); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if ft.sent[0].Attrs["id"] == ft.sent[1].Attrs["id"] {
		t.Fatalf("request id reused: %v", ft.sent[0].Attrs["id"])
	}
	query, _ := tree.FindChild(&ft.sent[1], "query")
	if query.Attrs["query_id"] != string(protocol.QueryMute) {
		t.Fatalf("unexpected query id: %v", query.Attrs["query_id"])
	}
	if mexBody(ft.sent[0]) != `{"variables":{"newsletter_id":"123456@newsletter"}}` {
		t.Fatalf("unexpected follow body: %s", mexBody(ft.sent[0]))
	}
}

func TestClientMetadataRequestShape(t *testing.T) {
	ft := &fakeTransport{reply: func(waBinary.Node) (*waBinary.Node, error) {
		return resultNode(fetchedMetadataJSON), nil
	}}
	c := newTestClient(t, ft, nil)

	m, err := c.Metadata(context.Background(), KeyInvite, "AbCdEf", "")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if m.Invite != "inv" {
		t.Fatalf("unexpected metadata: %+v", m)
	}
	vars := decodeVariables(t, ft.last())
	if _, ok := vars["newsletter_id"]; ok {
		t.Fatalf("metadata lookup must not carry newsletter_id: %+v", vars)
	}
	input, _ := vars["input"].(map[string]any)
	if input["key"] != "AbCdEf" || input["type"] != "INVITE" || input["view_role"] != "GUEST" {
		t.Fatalf("unexpected input: %+v", input)
	}
	if vars["fetch_viewer_metadata"] != true || vars["fetch_full_image"] != true || vars["fetch_creation_time"] != true {
		t.Fatalf("missing fetch flags: %+v", vars)
	}
}

func TestClientCreateReadsCreatePath(t *testing.T) {
	created := `{"data":{"xwa2_newsletter_create":{"id":"9@newsletter","state":{"type":"ACTIVE"},"thread_metadata":{"creation_time":"1","name":{"text":"N","update_time":"1"},"description":{"text":"D","update_time":"1"},"invite":"x","picture":{},"preview":{},"settings":{"reaction_codes":{"value":"NONE"}},"subscribers_count":"0","verification":"UNVERIFIED"},"viewer_metadata":{"mute":"OFF","view_role":"OWNER"}}}}`
	ft := &fakeTransport{reply: func(waBinary.Node) (*waBinary.Node, error) {
		return resultNode(created), nil
	}}
	c := newTestClient(t, ft, nil)

	m, err := c.Create(context.Background(), "N", "D", ReactionNone)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.ID != "9@newsletter" || m.ReactionCodes == nil || *m.ReactionCodes != ReactionNone {
		t.Fatalf("unexpected created metadata: %+v", m)
	}
	if mexBody(ft.last()) != `{"variables":{"input":{"description":"D","name":"N","settings":{"reaction_codes":{"value":"NONE"}}}}}` {
		t.Fatalf("unexpected create body: %s", mexBody(ft.last()))
	}
}

func TestClientOwnershipAndUpdates(t *testing.T) {
	ft := &fakeTransport{}
	c := newTestClient(t, ft, nil)
	ctx := context.Background()
	user := types.NewJID("15550002", types.DefaultUserServer)

	if err := c.Demote(ctx, channelJID, user); err != nil {
		t.Fatalf("demote: %v", err)
	}
	if vars := decodeVariables(t, ft.last()); vars["user_id"] != "15550002@s.whatsapp.net" {
		t.Fatalf("unexpected demote variables: %+v", vars)
	}

	if err := c.UpdateName(ctx, channelJID, "renamed"); err != nil {
		t.Fatalf("update name: %v", err)
	}
	if mexBody(ft.last()) != `{"variables":{"newsletter_id":"123456@newsletter","updates":{"name":"renamed","settings":null}}}` {
		t.Fatalf("unexpected update body: %s", mexBody(ft.last()))
	}

	if err := c.UpdateReactionMode(ctx, channelJID, ReactionMode("SOME")); err == nil {
		t.Fatalf("expected invalid reaction mode error")
	}
}

func TestClientAdminCount(t *testing.T) {
	ft := &fakeTransport{reply: func(waBinary.Node) (*waBinary.Node, error) {
		return resultNode(`{"data":{"xwa2_newsletter_admin":{"admin_count":"2"}}}`), nil
	}}
	c := newTestClient(t, ft, nil)

	n, err := c.AdminCount(context.Background(), channelJID)
	if err != nil || n != 2 {
		t.Fatalf("unexpected admin count: %d %v", n, err)
	}
}

func TestClientFetchMessages(t *testing.T) {
	ft := &fakeTransport{reply: func(waBinary.Node) (*waBinary.Node, error) {
		return messagesResponse(item("100", "hello"), item("101", "world")), nil
	}}
	c := newTestClient(t, ft, &textDecryptor{})

	got, err := c.FetchMessages(context.Background(), KeyJID, channelJID.String(), 2, 0)
	if err != nil {
		t.Fatalf("fetch messages: %v", err)
	}
	if len(got) != 2 || got[1].Message.GetMessage().GetConversation() != "world" {
		t.Fatalf("unexpected messages: %+v", got)
	}

	req := ft.last()
	if req.Attrs["to"] != types.ServerJID || req.Attrs["type"] != "get" || req.Attrs["xmlns"] != "newsletter" {
		t.Fatalf("unexpected envelope: %+v", req.Attrs)
	}
	payload, ok := tree.FindChild(&req, "messages")
	if !ok {
		t.Fatalf("missing messages payload")
	}
	if payload.Attrs["type"] != "jid" || payload.Attrs["jid"] != "123456@newsletter" || payload.Attrs["count"] != "2" || payload.Attrs["after"] != "100" {
		t.Fatalf("unexpected payload attrs: %+v", payload.Attrs)
	}
}

func TestClientFetchUpdatesAndLiveUpdates(t *testing.T) {
	ft := &fakeTransport{reply: func(req waBinary.Node) (*waBinary.Node, error) {
		if _, ok := tree.FindChild(&req, "live_updates"); ok {
			return &waBinary.Node{Tag: "iq", Content: []waBinary.Node{
				{Tag: "live_updates", Attrs: waBinary.Attrs{"duration": "300"}},
			}}, nil
		}
		return updatesResponse(item("5", "")), nil
	}}
	c := newTestClient(t, ft, nil)
	ctx := context.Background()

	got, err := c.FetchUpdates(ctx, channelJID, 10, 50, 7)
	if err != nil {
		t.Fatalf("fetch updates: %v", err)
	}
	if len(got) != 1 || got[0].ServerID != "5" {
		t.Fatalf("unexpected updates: %+v", got)
	}
	req := ft.last()
	if req.Attrs["to"] != channelJID {
		t.Fatalf("updates must target the channel: %v", req.Attrs["to"])
	}
	payload, _ := tree.FindChild(&req, "message_updates")
	if payload.Attrs["count"] != "10" || payload.Attrs["after"] != "50" || payload.Attrs["since"] != "7" {
		t.Fatalf("unexpected payload attrs: %+v", payload.Attrs)
	}

	d, err := c.SubscribeLiveUpdates(ctx, channelJID)
	if err != nil {
		t.Fatalf("live updates: %v", err)
	}
	if d != 300*time.Second {
		t.Fatalf("unexpected duration: %v", d)
	}
	if ft.last().Attrs["type"] != "set" {
		t.Fatalf("live updates must be a write query")
	}
}

func TestClientSurfacesTransportErrors(t *testing.T) {
	cause := errors.New("socket closed")
	ft := &fakeTransport{reply: func(waBinary.Node) (*waBinary.Node, error) {
		return nil, cause
	}}
	c := newTestClient(t, ft, nil)

	if err := c.Unfollow(context.Background(), channelJID); !errors.Is(err, cause) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if len(ft.sent) != 1 {
		t.Fatalf("no retries expected, sent %d", len(ft.sent))
	}
}
