package jsonfile

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format selects how a value is serialized on disk.
type Format uint8

const (
	// FormatAuto infers the format from the file extension; see [FormatForPath].
	FormatAuto Format = iota

	// FormatIndented is indented JSON.
	FormatIndented

	// FormatCompact is JSON without insignificant whitespace.
	FormatCompact

	// FormatBinary is the protobuf wire format. It requires a value type
	// implementing proto.Message and is compiled out by the jsonfile_noproto
	// build tag.
	FormatBinary
)

// Extensions recognized by [FormatForPath] and [CompressionForPath].
const (
	ExtJSON   = ".json"
	ExtBinary = ".pb"
	ExtZstd   = ".zst"
	ExtLZ4    = ".lz4"
)

// String returns the format name accepted by [ParseFormat].
func (f Format) String() string {
	switch f {
	case FormatAuto:
		return "auto"
	case FormatIndented:
		return "indented"
	case FormatCompact:
		return "compact"
	case FormatBinary:
		return "binary"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// ParseFormat parses a format name as printed by [Format.String].
// A few aliases are accepted ("json", "formatted", "pb", "protobuf").
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "indented", "formatted", "json":
		return FormatIndented, nil
	case "compact":
		return FormatCompact, nil
	case "binary", "pb", "protobuf":
		return FormatBinary, nil
	default:
		return FormatAuto, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// FormatForPath infers the payload format from the file extension,
// ignoring a trailing compression extension. ".pb" selects [FormatBinary];
// everything else, including no extension, selects [FormatIndented].
func FormatForPath(path string) Format {
	_, rest := CompressionForPath(path)

	if strings.EqualFold(filepath.Ext(rest), ExtBinary) {
		return FormatBinary
	}

	return FormatIndented
}

// resolveFormat replaces [FormatAuto] with the inferred format.
func resolveFormat(f Format, path string) Format {
	if f == FormatAuto {
		return FormatForPath(path)
	}

	return f
}

// extension returns the file extension used for type-derived paths.
func (f Format) extension() string {
	if f == FormatBinary {
		return ExtBinary
	}

	return ExtJSON
}
