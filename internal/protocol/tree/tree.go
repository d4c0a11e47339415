// Package tree navigates binary node responses one level at a time.
//
// Multi-level lookups are written as explicit chains at the call site so each
// expected step stays visible.
package tree

import (
	"strconv"
	"strings"

	waBinary "go.mau.fi/whatsmeow/binary"
)

// Children returns the direct child nodes of n. Byte or empty content yields nil.
func Children(n *waBinary.Node) []waBinary.Node {
	if n == nil {
		return nil
	}
	children, ok := n.Content.([]waBinary.Node)
	if !ok {
		return nil
	}
	return children
}

// FindChild returns the first direct child tagged tag.
func FindChild(n *waBinary.Node, tag string) (waBinary.Node, bool) {
	for _, child := range Children(n) {
		if child.Tag == tag {
			return child, true
		}
	}
	return waBinary.Node{}, false
}

// FindChildren returns every direct child tagged tag, in document order.
func FindChildren(n *waBinary.Node, tag string) []waBinary.Node {
	children := Children(n)
	out := make([]waBinary.Node, 0, len(children))
	for _, child := range children {
		if child.Tag == tag {
			out = append(out, child)
		}
	}
	return out
}

// Bytes returns n's opaque byte content.
func Bytes(n *waBinary.Node) ([]byte, bool) {
	if n == nil {
		return nil, false
	}
	switch content := n.Content.(type) {
	case []byte:
		return content, true
	case string:
		return []byte(content), true
	default:
		return nil, false
	}
}

// Attr returns attribute key rendered as a string.
func Attr(n *waBinary.Node, key string) (string, bool) {
	if n == nil || n.Attrs == nil {
		return "", false
	}
	raw, ok := n.Attrs[key]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case interface{ String() string }:
		return v.String(), true
	default:
		return "", false
	}
}

// Count parses attribute key as a non-negative counter. Absent, negative or
// non-numeric values yield zero.
func Count(n *waBinary.Node, key string) int64 {
	raw, ok := Attr(n, key)
	if !ok {
		return 0
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
