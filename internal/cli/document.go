package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tailscale/hujson"
	"google.golang.org/protobuf/types/known/structpb"
	"gopkg.in/yaml.v3"
)

// Output formats of cat, show and get.
const (
	outputJSON    = "json"
	outputCompact = "compact"
	outputYAML    = "yaml"
)

// splitKey splits a dotted key ("server.port") into its members.
func splitKey(key string) ([]string, error) {
	parts := strings.Split(key, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty member in key %q", ErrUsage, key)
		}
	}

	return parts, nil
}

// lookup returns the value at a dotted key.
func lookup(doc *structpb.Struct, key string) (*structpb.Value, error) {
	parts, err := splitKey(key)
	if err != nil {
		return nil, err
	}

	cur := structpb.NewStructValue(doc)

	for i, p := range parts {
		obj := cur.GetStructValue()
		if obj == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotObject, strings.Join(parts[:i], "."))
		}

		next, ok := obj.GetFields()[p]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
		}

		cur = next
	}

	return cur, nil
}

// assign sets the value at a dotted key, creating intermediate objects.
func assign(doc *structpb.Struct, key string, v *structpb.Value) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}

	obj := doc

	for i, p := range parts[:len(parts)-1] {
		if obj.Fields == nil {
			obj.Fields = make(map[string]*structpb.Value)
		}

		next, ok := obj.Fields[p]
		if !ok {
			next = structpb.NewStructValue(&structpb.Struct{})
			obj.Fields[p] = next
		}

		if next.GetStructValue() == nil {
			return fmt.Errorf("%w: %s", ErrNotObject, strings.Join(parts[:i+1], "."))
		}

		obj = next.GetStructValue()
	}

	if obj.Fields == nil {
		obj.Fields = make(map[string]*structpb.Value)
	}

	obj.Fields[parts[len(parts)-1]] = v

	return nil
}

// remove deletes the member at a dotted key.
func remove(doc *structpb.Struct, key string) error {
	parts, err := splitKey(key)
	if err != nil {
		return err
	}

	parent := doc

	if len(parts) > 1 {
		v, err := lookup(doc, strings.Join(parts[:len(parts)-1], "."))
		if err != nil {
			return err
		}

		parent = v.GetStructValue()
		if parent == nil {
			return fmt.Errorf("%w: %s", ErrNotObject, strings.Join(parts[:len(parts)-1], "."))
		}
	}

	last := parts[len(parts)-1]

	if _, ok := parent.GetFields()[last]; !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}

	delete(parent.Fields, last)

	return nil
}

// parseValue parses a JSON (or JSONC) literal.
func parseValue(text string) (*structpb.Value, error) {
	std, err := hujson.Standardize([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidValue, text)
	}

	var raw any

	err = json.Unmarshal(std, &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidValue, text)
	}

	return structpb.NewValue(raw)
}

// render formats a plain Go value (from AsMap or AsInterface).
func render(v any, output string) (string, error) {
	switch output {
	case outputJSON, outputCompact:
		var buf bytes.Buffer

		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)

		if output == outputJSON {
			enc.SetIndent("", "  ")
		}

		err := enc.Encode(v)
		if err != nil {
			return "", err
		}

		return strings.TrimSuffix(buf.String(), "\n"), nil

	case outputYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return "", err
		}

		return strings.TrimSuffix(string(data), "\n"), nil

	default:
		return "", fmt.Errorf("%w: %q (use json, compact or yaml)", ErrUnknownOutput, output)
	}
}
