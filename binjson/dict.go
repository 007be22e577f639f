package binjson

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"sync"
)

// KeyDict is a session-scoped interning table for object keys. In streams
// where the same keys repeat across many values, encoding a dictionary
// reference instead of the key text saves most of the key bytes.
//
// The dict-aware wire form of a key is self-describing: a uvarint of zero
// means an inline key follows (uvarint length + UTF-8 bytes) and both sides
// intern it if the dictionary has room; a uvarint N greater than zero means
// entry N-1. Entries are never evicted, so encoder and decoder stay in sync
// as long as they observe the same key sequence with the same MaxEntries.
//
// A KeyDict must not be shared by concurrently encoded streams.
type KeyDict struct {
	mu         sync.RWMutex
	keyToIdx   map[string]int
	idxToKey   []string
	maxEntries int
	frozen     bool
}

// MaxKeyDictEntries is the hard cap on dictionary size.
const MaxKeyDictEntries = 65535

// KeyDictOptions configures dictionary behavior.
type KeyDictOptions struct {
	// MaxEntries is the maximum number of entries (default: 4096,
	// capped at MaxKeyDictEntries).
	MaxEntries int

	// Preload are keys to intern at initialization. Both ends of a
	// stream must preload the same keys in the same order.
	Preload []string
}

// DefaultKeyDictOptions returns sensible defaults.
func DefaultKeyDictOptions() KeyDictOptions {
	return KeyDictOptions{MaxEntries: 4096}
}

// NewKeyDict creates a new key dictionary.
func NewKeyDict(opts KeyDictOptions) *KeyDict {
	if opts.MaxEntries <= 0 {
		opts.MaxEntries = 4096
	}
	if opts.MaxEntries > MaxKeyDictEntries {
		opts.MaxEntries = MaxKeyDictEntries
	}

	d := &KeyDict{
		keyToIdx:   make(map[string]int, 256),
		idxToKey:   make([]string, 0, 256),
		maxEntries: opts.MaxEntries,
	}
	for _, key := range opts.Preload {
		d.Intern(key)
	}
	return d
}

// Len returns the number of entries.
func (d *KeyDict) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.idxToKey)
}

// IsFrozen returns whether the dictionary is frozen.
func (d *KeyDict) IsFrozen() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.frozen
}

// Freeze prevents new entries from being added.
func (d *KeyDict) Freeze() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frozen = true
}

// Unfreeze allows new entries again.
func (d *KeyDict) Unfreeze() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frozen = false
}

// Reset discards all entries and unfreezes the dictionary.
func (d *KeyDict) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keyToIdx = make(map[string]int, 256)
	d.idxToKey = d.idxToKey[:0]
	d.frozen = false
}

// Lookup returns the index for a key, if present.
func (d *KeyDict) Lookup(key string) (int, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	idx, ok := d.keyToIdx[key]
	return idx, ok
}

// Key returns the key at an index, if valid.
func (d *KeyDict) Key(idx int) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if idx < 0 || idx >= len(d.idxToKey) {
		return "", false
	}
	return d.idxToKey[idx], true
}

// Intern adds a key and returns its index. An existing key keeps its index.
// Returns -1 if the dictionary is frozen or full.
func (d *KeyDict) Intern(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	if idx, ok := d.keyToIdx[key]; ok {
		return idx
	}
	if d.frozen || len(d.idxToKey) >= d.maxEntries {
		return -1
	}

	idx := len(d.idxToKey)
	d.keyToIdx[key] = idx
	d.idxToKey = append(d.idxToKey, key)
	return idx
}

// ============================================================
// Dict-Aware Codec Entry Points
// ============================================================

// EncodeWithDict encodes a value with object keys interned through dict.
// The output is only decodable by DecodeWithDict with a dictionary in the
// same state.
func EncodeWithDict(v *Value, dict *KeyDict) []byte {
	return AppendEncodeWithDict(make([]byte, 0, EncodedSize(v)), v, dict)
}

// AppendEncodeWithDict appends the dict-aware binary form of v to dst.
func AppendEncodeWithDict(dst []byte, v *Value, dict *KeyDict) []byte {
	return appendValue(dst, v, dict)
}

// DecodeWithDict decodes a value produced by EncodeWithDict.
func DecodeWithDict(data []byte, dict *KeyDict) (*Value, error) {
	return DecodeWithDictOptions(data, dict, DefaultDecodeOptions())
}

// DecodeWithDictOptions decodes a dict-aware value using opts.
func DecodeWithDictOptions(data []byte, dict *KeyDict, opts DecodeOptions) (*Value, error) {
	d := newDecoder(data, opts, dict)
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	if d.off != len(d.data) && !opts.AllowTrailing {
		return nil, decodeErr(d.off, ErrTrailingBytes)
	}
	return v, nil
}

// ============================================================
// Serialization
// ============================================================

// Serialized layout: magic "BJKD", entry count uint16 LE, FNV-1a checksum
// of the key bytes uint32 LE, then uint16-length-prefixed keys.

var keyDictMagic = [4]byte{'B', 'J', 'K', 'D'}

// Serialize encodes the dictionary to bytes so a session can be resumed.
func (d *KeyDict) Serialize() []byte {
	d.mu.RLock()
	defer d.mu.RUnlock()

	size := 10
	for _, key := range d.idxToKey {
		size += 2 + len(key)
	}

	buf := make([]byte, 0, size)
	buf = append(buf, keyDictMagic[:]...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(d.idxToKey)))

	checksumPos := len(buf)
	buf = binary.LittleEndian.AppendUint32(buf, 0)

	h := fnv.New32a()
	for _, key := range d.idxToKey {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(key)))
		buf = append(buf, key...)
		h.Write([]byte(key))
	}
	binary.LittleEndian.PutUint32(buf[checksumPos:], h.Sum32())

	return buf
}

// ParseKeyDict loads a dictionary from its serialized form.
func ParseKeyDict(data []byte, opts KeyDictOptions) (*KeyDict, error) {
	if len(data) < 10 {
		return nil, errors.New("binjson: key dict data too short for header")
	}
	if string(data[0:4]) != string(keyDictMagic[:]) {
		return nil, errors.New("binjson: invalid key dict magic")
	}

	numEntries := binary.LittleEndian.Uint16(data[4:6])
	storedChecksum := binary.LittleEndian.Uint32(data[6:10])

	d := NewKeyDict(opts)
	off := 10
	h := fnv.New32a()
	for i := 0; i < int(numEntries); i++ {
		if off+2 > len(data) {
			return nil, errors.New("binjson: truncated key dict entry length")
		}
		keyLen := int(binary.LittleEndian.Uint16(data[off:]))
		off += 2

		if off+keyLen > len(data) {
			return nil, errors.New("binjson: truncated key dict entry data")
		}
		key := string(data[off : off+keyLen])
		off += keyLen

		if d.Intern(key) < 0 {
			return nil, errors.New("binjson: key dict entries exceed max entries")
		}
		h.Write([]byte(key))
	}

	if h.Sum32() != storedChecksum {
		return nil, errors.New("binjson: key dict checksum mismatch")
	}
	return d, nil
}
