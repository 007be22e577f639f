// Package stream implements BJS1 (binjson stream v1) framing.
//
// BJS1 is a transport envelope for binary binjson payloads, providing:
//   - Message boundaries over any byte stream
//   - Multiplexing via stream IDs (sid)
//   - Ordering via sequence numbers (seq)
//   - Integrity via optional CRC-32
//   - Optional payload compression (snappy or zstd)
//   - Optional key-dictionary interning across frames
//
// Frame headers are not part of the payload encoding. The payload is a
// standard binjson value passed to the codec unchanged.
package stream

import (
	"fmt"
	"strconv"
)

// Version is the BJS1 protocol version.
const Version uint8 = 1

// Frame headers start with these two bytes.
var magic = [2]byte{'B', 'J'}

// FrameKind indicates the semantic category of a frame's payload.
type FrameKind uint8

const (
	KindValue FrameKind = 0 // Encoded binjson value
	KindAck   FrameKind = 1 // Acknowledgement of a sequence number
	KindErr   FrameKind = 2 // Error event, payload is an encoded value
	KindPing  FrameKind = 3 // Keepalive
	KindPong  FrameKind = 4 // Ping response
	KindDict  FrameKind = 5 // Key dictionary snapshot for late joiners
)

// String returns the kind name.
func (k FrameKind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindAck:
		return "ack"
	case KindErr:
		return "err"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindDict:
		return "dict"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ParseKind parses a kind name or numeric value.
func ParseKind(s string) (FrameKind, bool) {
	switch s {
	case "value":
		return KindValue, true
	case "ack":
		return KindAck, true
	case "err":
		return KindErr, true
	case "ping":
		return KindPing, true
	case "pong":
		return KindPong, true
	case "dict":
		return KindDict, true
	}
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return FrameKind(n), true
	}
	return 0, false
}

// Flags for BJS1 frames.
type Flags uint8

const (
	FlagHasCRC   Flags = 0x01 // CRC-32 of the stored payload is present
	FlagFinal    Flags = 0x02 // End-of-stream for this SID
	FlagDictKeys Flags = 0x04 // Payload object keys use the shared dictionary
)

// Compression identifies the codec a frame payload was stored with.
type Compression uint8

const (
	CompressionNone   Compression = 0
	CompressionSnappy Compression = 1
	CompressionZstd   Compression = 2
)

// String returns the compression name.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name.
func ParseCompression(s string) (Compression, bool) {
	switch s {
	case "none", "":
		return CompressionNone, true
	case "snappy":
		return CompressionSnappy, true
	case "zstd":
		return CompressionZstd, true
	default:
		return 0, false
	}
}

// Frame represents a single BJS1 frame.
//
// On the write side Payload holds the uncompressed bytes and the writer
// applies its configured compression. On the read side Payload holds the
// decompressed bytes; Compression records what the frame was stored with.
type Frame struct {
	Version     uint8       // Protocol version (must be 1)
	SID         uint64      // Stream identifier
	Seq         uint64      // Sequence number (per-SID, monotonic)
	Kind        FrameKind   // Frame kind
	Flags       Flags       // Flag bits
	Compression Compression // Payload compression on the wire
	Payload     []byte      // Payload bytes
	CRC         *uint32     // CRC-32 of the stored payload (nil if absent)
	Final       bool        // End-of-stream marker
}

// HasCRC returns true if a CRC is present.
func (f *Frame) HasCRC() bool {
	return f.CRC != nil
}

// IsFinal returns true if this is the final frame for its SID.
func (f *Frame) IsFinal() bool {
	return f.Final || f.Flags&FlagFinal != 0
}

// UsesDict returns true if the payload was encoded against a shared key
// dictionary.
func (f *Frame) UsesDict() bool {
	return f.Flags&FlagDictKeys != 0
}

// MaxPayloadSize is the default maximum payload size (64 MiB).
const MaxPayloadSize = 64 * 1024 * 1024

// ParseError reports a malformed frame.
type ParseError struct {
	Reason string
	Offset int
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("bjs1: %s at offset %d", e.Reason, e.Offset)
	}
	return fmt.Sprintf("bjs1: %s", e.Reason)
}

// CRCMismatchError is returned when CRC verification fails.
type CRCMismatchError struct {
	Expected uint32
	Got      uint32
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("bjs1: CRC mismatch: expected %08x, got %08x", e.Expected, e.Got)
}

// SequenceError is returned by a strict-sequencing reader when a frame
// arrives out of order.
type SequenceError struct {
	SID      uint64
	Expected uint64
	Got      uint64
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("bjs1: sequence gap on sid %d: expected %d, got %d", e.SID, e.Expected, e.Got)
}
