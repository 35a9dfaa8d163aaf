//go:build jsonfile_noproto

package jsonfile

import "fmt"

// BinaryEnabled reports whether [FormatBinary] is compiled in.
const BinaryEnabled = false

func binaryCodec() (codec, error) {
	return nil, fmt.Errorf("%w: binary (built with jsonfile_noproto)", ErrUnsupportedFormat)
}

// protoMessage stands in for proto.Message so the text codec compiles
// without the protobuf runtime.
type protoMessage interface{ isProtoMessage() }

func protoValue(any) (protoMessage, bool)  { return nil, false }
func protoTarget(any) (protoMessage, bool) { return nil, false }

func marshalProtoJSON(protoMessage, bool) ([]byte, error) {
	return nil, fmt.Errorf("%w: protobuf support not built", ErrUnsupportedFormat)
}

func unmarshalProtoJSON([]byte, protoMessage) error {
	return fmt.Errorf("%w: protobuf support not built", ErrUnsupportedFormat)
}
