package newsletter

import (
	waBinary "go.mau.fi/whatsmeow/binary"
	"go.mau.fi/whatsmeow/types"

	"github.com/danmuck/newsletter/internal/protocol"
	"github.com/danmuck/newsletter/internal/protocol/jsonobj"
	"github.com/danmuck/newsletter/internal/protocol/tree"
)

// AdminChange is a promote or demote pushed to channel admins.
type AdminChange struct {
	Newsletter types.JID `json:"newsletter"`
	Actor      string    `json:"actor,omitempty"`
	User       string    `json:"user,omitempty"`
	NewRole    ViewRole  `json:"new_role"`
	Promoted   bool      `json:"promoted"`
}

// SettingsChange is a metadata update pushed to channel viewers. Nil fields
// were not part of the update.
type SettingsChange struct {
	Newsletter    types.JID     `json:"newsletter"`
	Name          *string       `json:"name,omitempty"`
	Description   *string       `json:"description,omitempty"`
	ReactionCodes *ReactionMode `json:"reaction_codes,omitempty"`
}

// MexNotification is one parsed <notification><mex op_name=...> push.
// Exactly one of AdminChange and SettingsChange is set.
type MexNotification struct {
	Operation      protocol.NotificationName `json:"operation"`
	AdminChange    *AdminChange              `json:"admin_change,omitempty"`
	SettingsChange *SettingsChange           `json:"settings_change,omitempty"`
}

// ParseMexNotification recognizes a newsletter mex notification. ok is false
// for notifications with no mex child or an op_name outside the registry.
func ParseMexNotification(node *waBinary.Node) (*MexNotification, bool, error) {
	mex, found := tree.FindChild(node, "mex")
	if !found {
		return nil, false, nil
	}
	opName, _ := tree.Attr(&mex, "op_name")
	op := protocol.NotificationName(opName)
	path, known := op.Path()
	if !known {
		return nil, false, nil
	}

	var from types.JID
	if raw, ok := node.Attrs["from"].(types.JID); ok {
		from = raw
	} else if s, ok := tree.Attr(node, "from"); ok {
		parsed, err := types.ParseJID(s)
		if err != nil {
			return nil, true, protocol.Malformed("notification.from", err.Error())
		}
		from = parsed
	}

	content, found := tree.Bytes(&mex)
	if !found {
		return nil, true, protocol.Malformed("mex", "mex has no byte content")
	}
	root, err := jsonobj.Parse(content)
	if err != nil {
		return nil, true, err
	}
	data, err := root.RequireObject("data")
	if err != nil {
		return nil, true, err
	}
	payload, err := data.RequireObject(string(path))
	if err != nil {
		return nil, true, err
	}

	out := &MexNotification{Operation: op}
	switch op {
	case protocol.NotificationAdminPromote, protocol.NotificationAdminDemote:
		change, err := decodeAdminChange(payload, from, op == protocol.NotificationAdminPromote)
		if err != nil {
			return nil, true, err
		}
		out.AdminChange = change
	case protocol.NotificationUpdate:
		change, err := decodeSettingsChange(payload, from)
		if err != nil {
			return nil, true, err
		}
		out.SettingsChange = change
	}
	return out, true, nil
}

func decodeAdminChange(payload jsonobj.Object, from types.JID, promoted bool) (*AdminChange, error) {
	change := &AdminChange{Newsletter: from, Promoted: promoted, NewRole: RoleSubscriber}
	if promoted {
		change.NewRole = RoleAdmin
	}
	if id, ok, err := payload.String("id"); err != nil {
		return nil, err
	} else if ok {
		jid, err := types.ParseJID(id)
		if err != nil {
			return nil, protocol.Malformed(payload.Path()+".id", err.Error())
		}
		change.Newsletter = jid
	}
	var err error
	if change.Actor, err = optionalPN(payload, "actor"); err != nil {
		return nil, err
	}
	if change.User, err = optionalPN(payload, "user"); err != nil {
		return nil, err
	}
	return change, nil
}

func optionalPN(payload jsonobj.Object, key string) (string, error) {
	obj, ok, err := payload.Object(key)
	if err != nil || !ok {
		return "", err
	}
	pn, _, err := obj.String("pn")
	return pn, err
}

func decodeSettingsChange(payload jsonobj.Object, from types.JID) (*SettingsChange, error) {
	change := &SettingsChange{Newsletter: from}
	if id, ok, err := payload.String("id"); err != nil {
		return nil, err
	} else if ok {
		jid, err := types.ParseJID(id)
		if err != nil {
			return nil, protocol.Malformed(payload.Path()+".id", err.Error())
		}
		change.Newsletter = jid
	}
	thread, ok, err := payload.Object("thread_metadata")
	if err != nil || !ok {
		return change, err
	}
	if name, ok, err := thread.Object("name"); err != nil {
		return nil, err
	} else if ok {
		if text, ok, err := name.String("text"); err != nil {
			return nil, err
		} else if ok {
			change.Name = &text
		}
	}
	if description, ok, err := thread.Object("description"); err != nil {
		return nil, err
	} else if ok {
		if text, ok, err := description.String("text"); err != nil {
			return nil, err
		} else if ok {
			change.Description = &text
		}
	}
	if change.ReactionCodes, err = reactionCodes(thread); err != nil {
		return nil, err
	}
	return change, nil
}
