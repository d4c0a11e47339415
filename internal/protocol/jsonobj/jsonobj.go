// Package jsonobj reads JSON objects one key at a time.
//
// Every accessor comes in two forms: the plain form reports absence through
// its boolean result, the Require form turns absence into a malformed-response
// error. Callers pick per field, so optional and required reads stay distinct.
// A JSON null is treated as absent.
package jsonobj

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/danmuck/newsletter/internal/protocol"
)

// Object is one decoded JSON object and the dotted path it was reached by.
type Object struct {
	path   string
	fields map[string]json.RawMessage
}

// Parse decodes data as UTF-8 text holding a JSON object.
func Parse(data []byte) (Object, error) {
	if !utf8.Valid(data) {
		return Object{}, protocol.Malformed("", "content is not valid UTF-8")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Object{}, protocol.Malformed("", "content is not a JSON object: "+err.Error())
	}
	if fields == nil {
		return Object{}, protocol.Malformed("", "content is JSON null")
	}
	return Object{fields: fields}, nil
}

// Path returns the dotted path of o from the document root.
func (o Object) Path() string {
	return o.path
}

// Has reports whether key is present and not null.
func (o Object) Has(key string) bool {
	_, ok := o.raw(key)
	return ok
}

func (o Object) child(key string) string {
	if o.path == "" {
		return key
	}
	return o.path + "." + key
}

func (o Object) raw(key string) (json.RawMessage, bool) {
	raw, ok := o.fields[key]
	if !ok {
		return nil, false
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func (o Object) missing(key string) error {
	return protocol.Malformed(o.child(key), "missing required field")
}

// Object returns the nested object at key.
func (o Object) Object(key string) (Object, bool, error) {
	raw, ok := o.raw(key)
	if !ok {
		return Object{}, false, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Object{}, false, protocol.Malformed(o.child(key), "expected object")
	}
	return Object{path: o.child(key), fields: fields}, true, nil
}

// RequireObject is Object with absence reported as an error.
func (o Object) RequireObject(key string) (Object, error) {
	v, ok, err := o.Object(key)
	if err != nil {
		return Object{}, err
	}
	if !ok {
		return Object{}, o.missing(key)
	}
	return v, nil
}

// String returns the string at key.
func (o Object) String(key string) (string, bool, error) {
	raw, ok := o.raw(key)
	if !ok {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, protocol.Malformed(o.child(key), "expected string")
	}
	return s, true, nil
}

// RequireString is String with absence reported as an error.
func (o Object) RequireString(key string) (string, error) {
	v, ok, err := o.String(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", o.missing(key)
	}
	return v, nil
}

// Int returns the integer at key, accepting a JSON number or a numeric
// string. Fractional values are truncated toward zero.
func (o Object) Int(key string) (int64, bool, error) {
	raw, ok := o.raw(key)
	if !ok {
		return 0, false, nil
	}
	var text string
	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) > 0 && trimmed[0] == '"':
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return 0, false, protocol.Malformed(o.child(key), "expected string or number")
		}
	case len(trimmed) > 0 && (trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9')):
		text = string(trimmed)
	default:
		return 0, false, protocol.Malformed(o.child(key), "expected string or number")
	}
	v, err := coerceInt(text)
	if err != nil {
		return 0, false, protocol.NotNumeric(o.child(key), text)
	}
	return v, true, nil
}

// RequireInt is Int with absence reported as an error.
func (o Object) RequireInt(key string) (int64, error) {
	v, ok, err := o.Int(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, o.missing(key)
	}
	return v, nil
}

// Bool returns the boolean at key.
func (o Object) Bool(key string) (bool, bool, error) {
	raw, ok := o.raw(key)
	if !ok {
		return false, false, nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return false, false, protocol.Malformed(o.child(key), "expected boolean")
	}
	return b, true, nil
}

func coerceInt(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, strconv.ErrRange
	}
	return int64(f), nil
}
