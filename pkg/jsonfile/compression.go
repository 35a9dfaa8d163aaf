package jsonfile

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression wraps the serialized payload before it is written.
//
// It is selected by a trailing extension, independent of the [Format]:
// "settings.json.zst" is indented JSON compressed with zstd.
type Compression uint8

const (
	// CompressionNone stores the payload as-is.
	CompressionNone Compression = iota

	// CompressionZstd stores a zstd frame.
	CompressionZstd

	// CompressionLZ4 stores an LZ4 frame.
	CompressionLZ4
)

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("Compression(%d)", uint8(c))
	}
}

// CompressionForPath returns the compression selected by the path's last
// extension and the path with that extension removed.
func CompressionForPath(path string) (Compression, string) {
	ext := filepath.Ext(path)

	switch {
	case strings.EqualFold(ext, ExtZstd):
		return CompressionZstd, strings.TrimSuffix(path, ext)
	case strings.EqualFold(ext, ExtLZ4):
		return CompressionLZ4, strings.TrimSuffix(path, ext)
	default:
		return CompressionNone, path
	}
}

// EncodeAll and DecodeAll are safe for concurrent use, so one of each is shared.
var (
	zstdEncoder = sync.OnceValues(func() (*zstd.Encoder, error) {
		return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	})
	zstdDecoder = sync.OnceValues(func() (*zstd.Decoder, error) {
		return zstd.NewReader(nil)
	})
)

func compress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil

	case CompressionZstd:
		enc, err := zstdEncoder()
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}

		return enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil

	case CompressionLZ4:
		var buf bytes.Buffer

		zw := lz4.NewWriter(&buf)

		_, err := zw.Write(data)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}

		err = zw.Close()
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}

		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unknown compression %s", c)
	}
}

func decompress(c Compression, data []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return data, nil

	case CompressionZstd:
		dec, err := zstdDecoder()
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}

		out, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}

		return out, nil

	case CompressionLZ4:
		out, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}

		return out, nil

	default:
		return nil, fmt.Errorf("unknown compression %s", c)
	}
}
