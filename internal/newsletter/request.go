package newsletter

import (
	"context"
	"encoding/json"
	"fmt"

	waBinary "go.mau.fi/whatsmeow/binary"
	"go.mau.fi/whatsmeow/types"

	"github.com/danmuck/newsletter/internal/protocol"
)

const (
	namespaceNewsletter = "newsletter"
	namespaceMex        = "w:mex"
)

// QueryType is the IQ type attribute.
type QueryType string

const (
	QueryRead  QueryType = "get"
	QueryWrite QueryType = "set"
)

// Transport issues IQ requests. GenerateRequestID must return an id that no
// other in-flight request uses.
type Transport interface {
	GenerateRequestID() string
	SendIQ(ctx context.Context, node waBinary.Node) (*waBinary.Node, error)
}

// BuildTreeQuery builds an IQ in the newsletter namespace carrying payload.
func BuildTreeQuery(id string, target types.JID, qt QueryType, payload []waBinary.Node) (waBinary.Node, error) {
	if target.IsEmpty() {
		return waBinary.Node{}, fmt.Errorf("%w: empty jid", protocol.ErrInvalidTarget)
	}
	if qt != QueryRead && qt != QueryWrite {
		return waBinary.Node{}, fmt.Errorf("newsletter: invalid query type %q", qt)
	}
	return waBinary.Node{
		Tag: "iq",
		Attrs: waBinary.Attrs{
			"id":    id,
			"type":  string(qt),
			"xmlns": namespaceNewsletter,
			"to":    target,
		},
		Content: payload,
	}, nil
}

// BuildMexQuery builds a metadata-exchange IQ. The query body is
// {"variables":{"newsletter_id":target,...extra}}; extra keys are merged last.
// An empty target omits newsletter_id.
func BuildMexQuery(id string, target types.JID, queryID protocol.QueryID, extra map[string]any) (waBinary.Node, error) {
	if !queryID.Known() {
		return waBinary.Node{}, fmt.Errorf("%w: %q", protocol.ErrUnknownQuery, queryID)
	}
	body, err := encodeMexVariables(target, extra)
	if err != nil {
		return waBinary.Node{}, err
	}
	return waBinary.Node{
		Tag: "iq",
		Attrs: waBinary.Attrs{
			"id":    id,
			"type":  string(QueryRead),
			"xmlns": namespaceMex,
			"to":    types.ServerJID,
		},
		Content: []waBinary.Node{{
			Tag:     "query",
			Attrs:   waBinary.Attrs{"query_id": string(queryID)},
			Content: body,
		}},
	}, nil
}

func encodeMexVariables(target types.JID, extra map[string]any) ([]byte, error) {
	variables := make(map[string]any, len(extra)+1)
	if !target.IsEmpty() {
		variables["newsletter_id"] = target.String()
	}
	for k, v := range extra {
		variables[k] = v
	}
	body, err := json.Marshal(map[string]any{"variables": variables})
	if err != nil {
		return nil, fmt.Errorf("newsletter: encode mex variables: %w", err)
	}
	return body, nil
}
