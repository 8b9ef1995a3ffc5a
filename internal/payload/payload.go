// Package payload navigates untyped webhook JSON with typed, fallible
// accessors. Deliveries are stored verbatim whether or not they parse; this
// package only pulls fields out of payloads that happen to be well shaped.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FieldError reports a payload field that was missing or of the wrong shape.
type FieldError struct {
	Path string
	Want string
	Got  string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("payload field %q: want %s, got %s", e.Path, e.Want, e.Got)
}

// Document is a parsed object-rooted JSON payload.
type Document map[string]any

// Parse decodes raw bytes into a Document, keeping numbers as json.Number.
func Parse(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	return Document(doc), nil
}

// BlockRef identifies the block a payload describes.
type BlockRef struct {
	Hash  string
	Index int64
}

// BlockIdentity extracts the block identity used for delivery deduplication.
// The second return is false when the payload does not carry a usable one.
func (d Document) BlockIdentity() (BlockRef, bool) {
	hash, err := StringAt(d, "block", "hash")
	if err != nil || hash == "" {
		return BlockRef{}, false
	}
	index, err := IntAt(d, "block", "index")
	if err != nil {
		return BlockRef{}, false
	}
	return BlockRef{Hash: hash, Index: index}, true
}

// StringAt returns the string at path inside v.
func StringAt(v any, path ...string) (string, error) {
	node, err := walk(v, path)
	if err != nil {
		return "", err
	}
	s, ok := node.(string)
	if !ok {
		return "", &FieldError{Path: joinPath(path), Want: "string", Got: typeName(node)}
	}
	return s, nil
}

// IntAt returns the integer at path. JSON numbers and digit strings qualify.
func IntAt(v any, path ...string) (int64, error) {
	node, err := walk(v, path)
	if err != nil {
		return 0, err
	}
	switch n := node.(type) {
	case json.Number:
		i, convErr := n.Int64()
		if convErr != nil {
			return 0, &FieldError{Path: joinPath(path), Want: "integer", Got: "number " + n.String()}
		}
		return i, nil
	case string:
		i, convErr := strconv.ParseInt(n, 10, 64)
		if convErr != nil {
			return 0, &FieldError{Path: joinPath(path), Want: "integer", Got: fmt.Sprintf("string %q", n)}
		}
		return i, nil
	}
	return 0, &FieldError{Path: joinPath(path), Want: "integer", Got: typeName(node)}
}

func walk(v any, path []string) (any, error) {
	node := v
	for i, key := range path {
		obj, ok := node.(map[string]any)
		if !ok {
			doc, isDoc := node.(Document)
			if !isDoc {
				at := joinPath(path[:i])
				if at == "" {
					at = "(root)"
				}
				return nil, &FieldError{Path: at, Want: "object", Got: typeName(node)}
			}
			obj = map[string]any(doc)
		}
		child, present := obj[key]
		if !present {
			return nil, &FieldError{Path: joinPath(path[:i+1]), Want: "present", Got: "missing"}
		}
		node = child
	}
	return node, nil
}

func joinPath(path []string) string {
	return strings.Join(path, ".")
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number, float64:
		return "number"
	case bool:
		return "bool"
	case map[string]any, Document:
		return "object"
	case []any:
		return "array"
	}
	return fmt.Sprintf("%T", v)
}
