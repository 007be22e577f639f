// Package binjson implements a compact binary codec for JSON-like dynamic
// values.
//
// binjson is designed to be:
//   - Schema-free (a closed tagged-union value model, no IDL)
//   - Compact (single tag byte per value, varint integers and lengths)
//   - Order-preserving (object member order survives a round trip)
//   - Bridgeable (arbitrary Go types convert through the value model)
//   - Round-trippable to JSON (with base64 blobs and stringified
//     non-finite floats as the only lossy corners)
//   - Deterministic when needed (canonical form + content digest)
//
// # Data Model
//
// Scalars: null, bool, int, float, string, blob
// Containers: array, object (string keys, document order, unique)
//
// A Value is always a finite tree. Object keys are unique; the decoder
// rejects duplicates.
//
// # Wire Format
//
// Every value is a tag byte followed by its payload:
//
//	null/false/true  tag only
//	int              zig-zag varint
//	float            IEEE-754 binary64, little-endian
//	string, blob     uvarint length + bytes
//	array            uvarint count + elements
//	object           uvarint count + (key, value) pairs
//
// The encoding is headerless and self-terminating. Framing, compression,
// and checksums live in the stream package.
//
// # Typical Use
//
//	type Event struct {
//		Name string  `binjson:"name"`
//		Seq  int64   `binjson:"seq"`
//		Tags []string `binjson:"tags,omitempty"`
//	}
//
//	data, err := binjson.Marshal(Event{Name: "boot", Seq: 1})
//	...
//	var ev Event
//	err = binjson.Unmarshal(data, &ev)
//
// Or work with dynamic values directly:
//
//	v, err := binjson.FromJSON([]byte(`{"a": 1, "b": [true, null]}`))
//	data := binjson.Encode(v)
//	back, err := binjson.Decode(data)
package binjson
