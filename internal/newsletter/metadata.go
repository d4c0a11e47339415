package newsletter

import (
	"fmt"

	waBinary "go.mau.fi/whatsmeow/binary"

	"github.com/danmuck/newsletter/internal/protocol"
	"github.com/danmuck/newsletter/internal/protocol/jsonobj"
	"github.com/danmuck/newsletter/internal/protocol/tree"
)

// mexResultData returns the object at data.<path> of a mex IQ response.
func mexResultData(node *waBinary.Node, path protocol.XWAPath) (jsonobj.Object, error) {
	result, ok := tree.FindChild(node, "result")
	if !ok {
		return jsonobj.Object{}, protocol.Malformed("result", "missing result child")
	}
	content, ok := tree.Bytes(&result)
	if !ok {
		return jsonobj.Object{}, protocol.Malformed("result", "result has no byte content")
	}
	root, err := jsonobj.Parse(content)
	if err != nil {
		return jsonobj.Object{}, err
	}
	data, err := root.RequireObject("data")
	if err != nil {
		return jsonobj.Object{}, err
	}
	return data.RequireObject(string(path))
}

// ExtractMetadata parses a metadata mex response. isCreate selects the create
// result key instead of the fetch result key. No partial value is returned.
func ExtractMetadata(node *waBinary.Node, isCreate bool) (*Metadata, error) {
	obj, err := mexResultData(node, protocol.MetadataPath(isCreate))
	if err != nil {
		return nil, err
	}
	return decodeMetadata(obj)
}

func decodeMetadata(obj jsonobj.Object) (*Metadata, error) {
	var (
		m   Metadata
		err error
	)
	if m.ID, err = obj.RequireString("id"); err != nil {
		return nil, err
	}

	state, err := obj.RequireObject("state")
	if err != nil {
		return nil, err
	}
	stateType, err := state.RequireString("type")
	if err != nil {
		return nil, err
	}
	m.State = State(stateType)
	if !m.State.Valid() {
		return nil, protocol.Malformed(state.Path()+".type", fmt.Sprintf("unknown state %q", stateType))
	}

	thread, err := obj.RequireObject("thread_metadata")
	if err != nil {
		return nil, err
	}
	if m.CreationTime, err = thread.RequireInt("creation_time"); err != nil {
		return nil, err
	}

	name, err := thread.RequireObject("name")
	if err != nil {
		return nil, err
	}
	if m.Name, err = name.RequireString("text"); err != nil {
		return nil, err
	}
	if m.NameTime, err = name.RequireInt("update_time"); err != nil {
		return nil, err
	}

	description, err := thread.RequireObject("description")
	if err != nil {
		return nil, err
	}
	if m.Description, err = description.RequireString("text"); err != nil {
		return nil, err
	}
	if m.DescriptionTime, err = description.RequireInt("update_time"); err != nil {
		return nil, err
	}

	if m.Invite, err = thread.RequireString("invite"); err != nil {
		return nil, err
	}
	handle, ok, err := thread.String("handle")
	if err != nil {
		return nil, err
	}
	if ok {
		m.Handle = &handle
	}

	if m.Picture, err = directPath(thread, "picture"); err != nil {
		return nil, err
	}
	if m.Preview, err = directPath(thread, "preview"); err != nil {
		return nil, err
	}
	if m.ReactionCodes, err = reactionCodes(thread); err != nil {
		return nil, err
	}

	if m.Subscribers, err = thread.RequireInt("subscribers_count"); err != nil {
		return nil, err
	}
	verification, err := thread.RequireString("verification")
	if err != nil {
		return nil, err
	}
	m.Verification = Verification(verification)
	if !m.Verification.Valid() {
		return nil, protocol.Malformed(thread.Path()+".verification", fmt.Sprintf("unknown verification %q", verification))
	}

	viewer, err := obj.RequireObject("viewer_metadata")
	if err != nil {
		return nil, err
	}
	mute, _, err := viewer.String("mute")
	if err != nil {
		return nil, err
	}
	role, _, err := viewer.String("view_role")
	if err != nil {
		return nil, err
	}
	m.ViewerMetadata = ViewerMetadata{Mute: MuteState(mute), ViewRole: ViewRole(role)}
	return &m, nil
}

// directPath reads <key>.direct_path. The image object is required; an absent
// or empty direct_path yields nil.
func directPath(thread jsonobj.Object, key string) (*string, error) {
	image, err := thread.RequireObject(key)
	if err != nil {
		return nil, err
	}
	path, ok, err := image.String("direct_path")
	if err != nil {
		return nil, err
	}
	if !ok || path == "" {
		return nil, nil
	}
	return &path, nil
}

// reactionCodes reads settings.reaction_codes.value; every step is optional.
func reactionCodes(thread jsonobj.Object) (*ReactionMode, error) {
	settings, ok, err := thread.Object("settings")
	if err != nil || !ok {
		return nil, err
	}
	codes, ok, err := settings.Object("reaction_codes")
	if err != nil || !ok {
		return nil, err
	}
	value, ok, err := codes.String("value")
	if err != nil || !ok {
		return nil, err
	}
	mode := ReactionMode(value)
	return &mode, nil
}

// ExtractAdminCount parses an admin-count mex response.
func ExtractAdminCount(node *waBinary.Node) (int64, error) {
	obj, err := mexResultData(node, protocol.PathAdminCount)
	if err != nil {
		return 0, err
	}
	return obj.RequireInt("admin_count")
}
