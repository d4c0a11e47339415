package newsletter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	waBinary "go.mau.fi/whatsmeow/binary"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"google.golang.org/protobuf/proto"

	"github.com/danmuck/newsletter/internal/protocol/tree"
)

type fakeTransport struct {
	mu      sync.Mutex
	counter atomic.Uint64
	sent    []waBinary.Node
	reply   func(req waBinary.Node) (*waBinary.Node, error)
}

func (f *fakeTransport) GenerateRequestID() string {
	return fmt.Sprintf("fake.%d", f.counter.Add(1))
}

func (f *fakeTransport) SendIQ(_ context.Context, node waBinary.Node) (*waBinary.Node, error) {
	f.mu.Lock()
	f.sent = append(f.sent, node)
	f.mu.Unlock()
	if f.reply == nil {
		return &waBinary.Node{Tag: "iq", Attrs: waBinary.Attrs{"id": node.Attrs["id"], "type": "result"}}, nil
	}
	return f.reply(node)
}

func (f *fakeTransport) last() waBinary.Node {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

// mexBody extracts the JSON query body of a sent mex request.
func mexBody(node waBinary.Node) string {
	query, _ := tree.FindChild(&node, "query")
	body, _ := tree.Bytes(&query)
	return string(body)
}

func resultNode(json string) *waBinary.Node {
	return &waBinary.Node{
		Tag:     "iq",
		Attrs:   waBinary.Attrs{"type": "result"},
		Content: []waBinary.Node{{Tag: "result", Content: []byte(json)}},
	}
}

// textDecryptor decrypts items by reading their "text" attribute. hooks run
// before returning and may block or fail per server id.
type textDecryptor struct {
	hooks map[string]func(ctx context.Context) error
	calls atomic.Int64
}

func (d *textDecryptor) DecryptMessage(ctx context.Context, node *waBinary.Node, _ Identity) (*waWeb.WebMessageInfo, error) {
	d.calls.Add(1)
	serverID, _ := tree.Attr(node, "server_id")
	if hook, ok := d.hooks[serverID]; ok {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	text, _ := tree.Attr(node, "text")
	from, _ := tree.Attr(node, "from")
	return &waWeb.WebMessageInfo{
		Message:  &waE2E.Message{Conversation: proto.String(text)},
		PushName: proto.String(from),
	}, nil
}
