package newsletter

import (
	"encoding/json"
	"errors"
	"testing"

	waBinary "go.mau.fi/whatsmeow/binary"
	"go.mau.fi/whatsmeow/types"

	"github.com/danmuck/newsletter/internal/protocol"
	"github.com/danmuck/newsletter/internal/protocol/tree"
	"github.com/danmuck/newsletter/internal/testutil/testlog"
)

func mustJID(t *testing.T, raw string) types.JID {
	t.Helper()
	jid, err := types.ParseJID(raw)
	if err != nil {
		t.Fatalf("parse jid %q: %v", raw, err)
	}
	return jid
}

func TestBuildTreeQueryEnvelope(t *testing.T) {
	testlog.Start(t)

	target := mustJID(t, "123456@newsletter")
	payload := []waBinary.Node{{Tag: "live_updates"}}
	node, err := BuildTreeQuery("tag.1", target, QueryWrite, payload)
	if err != nil {
		t.Fatalf("build tree query: %v", err)
	}
	if node.Tag != "iq" {
		t.Fatalf("unexpected tag: %q", node.Tag)
	}
	if node.Attrs["id"] != "tag.1" || node.Attrs["type"] != "set" || node.Attrs["xmlns"] != "newsletter" {
		t.Fatalf("unexpected attrs: %+v", node.Attrs)
	}
	if node.Attrs["to"] != target {
		t.Fatalf("unexpected to: %v", node.Attrs["to"])
	}
	if _, ok := tree.FindChild(&node, "live_updates"); !ok {
		t.Fatalf("payload not carried")
	}
}

func TestBuildTreeQueryRejectsEmptyTarget(t *testing.T) {
	testlog.Start(t)

	_, err := BuildTreeQuery("tag.1", types.EmptyJID, QueryRead, nil)
	if !errors.Is(err, protocol.ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestBuildMexQueryConcreteBody(t *testing.T) {
	testlog.Start(t)

	node, err := BuildMexQuery("tag.2", mustJID(t, "123456@newsletter"), protocol.QueryMetadata, nil)
	if err != nil {
		t.Fatalf("build mex query: %v", err)
	}
	if node.Attrs["type"] != "get" || node.Attrs["xmlns"] != "w:mex" || node.Attrs["to"] != types.ServerJID {
		t.Fatalf("unexpected attrs: %+v", node.Attrs)
	}
	query, ok := tree.FindChild(&node, "query")
	if !ok {
		t.Fatalf("missing query child")
	}
	if query.Attrs["query_id"] != "6620195908089573" {
		t.Fatalf("unexpected query_id: %v", query.Attrs["query_id"])
	}
	body, ok := tree.Bytes(&query)
	if !ok {
		t.Fatalf("query content is not bytes")
	}
	if string(body) != `{"variables":{"newsletter_id":"123456@newsletter"}}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestBuildMexQueryMergesExtraLast(t *testing.T) {
	testlog.Start(t)

	node, err := BuildMexQuery("tag.3", mustJID(t, "1@newsletter"), protocol.QueryDemote, map[string]any{
		"user_id":       "99@s.whatsapp.net",
		"newsletter_id": "override@newsletter",
	})
	if err != nil {
		t.Fatalf("build mex query: %v", err)
	}
	query, _ := tree.FindChild(&node, "query")
	body, _ := tree.Bytes(&query)
	var decoded struct {
		Variables map[string]string `json:"variables"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if decoded.Variables["newsletter_id"] != "override@newsletter" {
		t.Fatalf("expected explicit newsletter_id override, got %+v", decoded.Variables)
	}
	if decoded.Variables["user_id"] != "99@s.whatsapp.net" {
		t.Fatalf("missing user_id: %+v", decoded.Variables)
	}
}

func TestBuildMexQueryWithoutTarget(t *testing.T) {
	testlog.Start(t)

	node, err := BuildMexQuery("tag.4", types.EmptyJID, protocol.QueryCreate, map[string]any{"input": map[string]any{"name": "N"}})
	if err != nil {
		t.Fatalf("build mex query: %v", err)
	}
	query, _ := tree.FindChild(&node, "query")
	body, _ := tree.Bytes(&query)
	if string(body) != `{"variables":{"input":{"name":"N"}}}` {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestBuildMexQueryRejectsUnknownQuery(t *testing.T) {
	testlog.Start(t)

	_, err := BuildMexQuery("tag.5", types.EmptyJID, protocol.QueryID("42"), nil)
	if !errors.Is(err, protocol.ErrUnknownQuery) {
		t.Fatalf("expected ErrUnknownQuery, got %v", err)
	}
}
