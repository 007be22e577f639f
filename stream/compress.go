package stream

import (
	"fmt"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// MinCompressSize is the default payload size below which writers skip
// compression; tiny payloads usually grow when compressed.
const MinCompressSize = 512

// Shared zstd coders. EncodeAll and DecodeAll are safe for concurrent use
// on a single instance, so one of each serves the whole process.
var (
	zstdEncoder, _ = zstd.NewWriter(nil,
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	zstdDecoder, _ = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(MaxPayloadSize),
	)
)

// compress returns the stored form of payload under c. CompressionNone
// returns the payload unchanged.
func compress(c Compression, payload []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionSnappy:
		return snappy.Encode(nil, payload), nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(payload, nil), nil
	default:
		return nil, fmt.Errorf("bjs1: unknown compression %d", uint8(c))
	}
}

// decompress reverses compress, rejecting payloads that would inflate past
// limit bytes.
func decompress(c Compression, stored []byte, limit int) ([]byte, error) {
	switch c {
	case CompressionNone:
		return stored, nil

	case CompressionSnappy:
		n, err := snappy.DecodedLen(stored)
		if err != nil {
			return nil, fmt.Errorf("bjs1: snappy payload: %w", err)
		}
		if n > limit {
			return nil, &ParseError{
				Reason: fmt.Sprintf("decompressed payload too large: %d > %d", n, limit),
				Offset: -1,
			}
		}
		out, err := snappy.Decode(nil, stored)
		if err != nil {
			return nil, fmt.Errorf("bjs1: snappy payload: %w", err)
		}
		return out, nil

	case CompressionZstd:
		out, err := zstdDecoder.DecodeAll(stored, nil)
		if err != nil {
			return nil, fmt.Errorf("bjs1: zstd payload: %w", err)
		}
		if len(out) > limit {
			return nil, &ParseError{
				Reason: fmt.Sprintf("decompressed payload too large: %d > %d", len(out), limit),
				Offset: -1,
			}
		}
		return out, nil

	default:
		return nil, &ParseError{
			Reason: fmt.Sprintf("unknown compression %d", uint8(c)),
			Offset: -1,
		}
	}
}
