//go:build !jsonfile_noproto

package jsonfile

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// BinaryEnabled reports whether [FormatBinary] is compiled in.
const BinaryEnabled = true

func binaryCodec() (codec, error) {
	return protoCodec{}, nil
}

// protoCodec stores protobuf messages in the wire format. Marshaling is
// deterministic so unchanged values serialize to identical bytes.
type protoCodec struct{}

func (protoCodec) check(v any) error {
	if _, ok := protoTarget(v); ok {
		return nil
	}

	return fmt.Errorf("%w: binary needs a proto.Message, got %s", ErrUnsupportedFormat, reflect.TypeOf(v).Elem())
}

func (c protoCodec) marshal(v any) ([]byte, error) {
	m, ok := protoValue(v)
	if !ok {
		return nil, c.check(v)
	}

	return proto.MarshalOptions{Deterministic: true}.Marshal(m)
}

func (c protoCodec) unmarshal(data []byte, v any) error {
	m, ok := protoTarget(v)
	if !ok {
		return c.check(v)
	}

	return proto.Unmarshal(data, m)
}

// protoValue returns the message behind v (a pointer to the cached value)
// without allocating. A nil message pointer is returned as an empty message.
func protoValue(v any) (proto.Message, bool) {
	if m, ok := v.(proto.Message); ok {
		return m, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, false
	}

	m, ok := rv.Elem().Interface().(proto.Message)
	if !ok {
		return nil, false
	}

	if rv.Elem().IsNil() {
		return m.ProtoReflect().Type().New().Interface(), true
	}

	return m, true
}

// protoTarget is like protoValue but allocates a nil message in place so
// it can be decoded into.
func protoTarget(v any) (proto.Message, bool) {
	if m, ok := v.(proto.Message); ok {
		return m, true
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return nil, false
	}

	elem := rv.Elem()
	if elem.Kind() != reflect.Pointer {
		return nil, false
	}

	if !elem.Type().Implements(reflect.TypeOf((*proto.Message)(nil)).Elem()) {
		return nil, false
	}

	if elem.IsNil() {
		elem.Set(reflect.New(elem.Type().Elem()))
	}

	m, ok := elem.Interface().(proto.Message)

	return m, ok
}

func marshalProtoJSON(m proto.Message, indent bool) ([]byte, error) {
	raw, err := protojson.Marshal(m)
	if err != nil {
		return nil, err
	}

	// protojson randomizes whitespace between builds; normalize so the
	// committed form stays comparable.
	return normalizeJSON(raw, indent)
}

func unmarshalProtoJSON(data []byte, m proto.Message) error {
	return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, m)
}
