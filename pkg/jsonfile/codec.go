package jsonfile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tailscale/hujson"
)

// codec converts between a value and its serialized form.
//
// v is always a non-nil pointer to the cached value.
type codec interface {
	// check reports whether the codec can handle the value's type.
	check(v any) error
	marshal(v any) ([]byte, error)
	unmarshal(data []byte, v any) error
}

func codecFor(f Format) (codec, error) {
	switch f {
	case FormatIndented:
		return textCodec{indent: true}, nil
	case FormatCompact:
		return textCodec{}, nil
	case FormatBinary:
		return binaryCodec()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// textCodec writes JSON and reads JSON with comments and trailing commas,
// so files edited by hand still load. Values that are protobuf messages go
// through protojson.
type textCodec struct {
	indent bool
}

func (textCodec) check(any) error { return nil }

func (c textCodec) marshal(v any) ([]byte, error) {
	if m, ok := protoValue(v); ok {
		return marshalProtoJSON(m, c.indent)
	}

	if c.indent {
		return json.MarshalIndent(v, "", "  ")
	}

	return json.Marshal(v)
}

func (textCodec) unmarshal(data []byte, v any) error {
	// Standardize rewrites its input in place.
	std, err := hujson.Standardize(bytes.Clone(data))
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}

	if m, ok := protoTarget(v); ok {
		return unmarshalProtoJSON(std, m)
	}

	return json.Unmarshal(std, v)
}

// normalizeJSON re-renders JSON with the whitespace the text formats use.
func normalizeJSON(data []byte, indent bool) ([]byte, error) {
	var buf bytes.Buffer

	var err error
	if indent {
		err = json.Indent(&buf, data, "", "  ")
	} else {
		err = json.Compact(&buf, data)
	}

	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
