package stream

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/Neumenon/binjson/binjson"
)

// Reader reads BJS1 frames from an io.Reader.
type Reader struct {
	r          *bufio.Reader
	maxPayload int
	verifyCRC  bool
	strictSeq  bool
	dict       *binjson.KeyDict
	dictMax    int
	seqs       map[uint64]uint64 // last sequence seen per SID
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithMaxPayload sets the maximum payload size (default: 64 MiB).
func WithMaxPayload(max int) ReaderOption {
	return func(r *Reader) {
		r.maxPayload = max
	}
}

// WithoutCRCCheck disables CRC verification. Frames that carry a CRC are
// verified by default.
func WithoutCRCCheck() ReaderOption {
	return func(r *Reader) {
		r.verifyCRC = false
	}
}

// WithReadDict equips the reader with a key dictionary matching the
// writer's WithWriteDict. The dictionary advances as value frames are
// decoded, so dict-flagged frames must be decoded in arrival order;
// ReadValue does this. maxEntries of zero or less uses the default size.
func WithReadDict(maxEntries int) ReaderOption {
	return func(r *Reader) {
		r.dict = binjson.NewKeyDict(binjson.KeyDictOptions{MaxEntries: maxEntries})
		r.dictMax = maxEntries
	}
}

// WithStrictSequencing makes Next fail with a SequenceError when a frame
// arrives out of order for its SID. Ack and pong frames are exempt since
// they echo the sequence number they answer.
func WithStrictSequencing() ReaderOption {
	return func(r *Reader) {
		r.strictSeq = true
	}
}

// NewReader creates a new BJS1 frame reader.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	reader := &Reader{
		r:          bufio.NewReader(r),
		maxPayload: MaxPayloadSize,
		verifyCRC:  true,
		seqs:       make(map[uint64]uint64),
	}
	for _, opt := range opts {
		opt(reader)
	}
	return reader
}

// Next reads and returns the next frame, with its payload decompressed.
// Dict frames are applied to the reader's dictionary before being
// returned. Returns io.EOF at a clean end of stream.
func (r *Reader) Next() (*Frame, error) {
	var fixed [6]byte
	if _, err := io.ReadFull(r.r, fixed[:1]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if _, err := io.ReadFull(r.r, fixed[1:]); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	if fixed[0] != magic[0] || fixed[1] != magic[1] {
		return nil, &ParseError{
			Reason: fmt.Sprintf("bad magic %02x%02x", fixed[0], fixed[1]),
			Offset: 0,
		}
	}
	if fixed[2] != Version {
		return nil, &ParseError{
			Reason: fmt.Sprintf("unsupported version %d", fixed[2]),
			Offset: 2,
		}
	}

	frame := &Frame{
		Version:     fixed[2],
		Kind:        FrameKind(fixed[3]),
		Flags:       Flags(fixed[4]),
		Compression: Compression(fixed[5]),
	}
	frame.Final = frame.Flags&FlagFinal != 0

	var err error
	if frame.SID, err = binary.ReadUvarint(r.r); err != nil {
		return nil, fmt.Errorf("read sid: %w", err)
	}
	if frame.Seq, err = binary.ReadUvarint(r.r); err != nil {
		return nil, fmt.Errorf("read seq: %w", err)
	}
	length, err := binary.ReadUvarint(r.r)
	if err != nil {
		return nil, fmt.Errorf("read payload length: %w", err)
	}
	if length > uint64(r.maxPayload) {
		return nil, &ParseError{
			Reason: fmt.Sprintf("payload too large: %d > %d", length, r.maxPayload),
			Offset: -1,
		}
	}

	if frame.Flags&FlagHasCRC != 0 {
		var crcBytes [4]byte
		if _, err := io.ReadFull(r.r, crcBytes[:]); err != nil {
			return nil, fmt.Errorf("read crc: %w", err)
		}
		crc := binary.LittleEndian.Uint32(crcBytes[:])
		frame.CRC = &crc
	}

	var stored []byte
	if length > 0 {
		stored = make([]byte, length)
		if _, err := io.ReadFull(r.r, stored); err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
	}

	if r.verifyCRC && frame.CRC != nil {
		if computed := ComputeCRC(stored); computed != *frame.CRC {
			return nil, &CRCMismatchError{Expected: *frame.CRC, Got: computed}
		}
	}

	if frame.Payload, err = decompress(frame.Compression, stored, r.maxPayload); err != nil {
		return nil, err
	}

	// Acks and pongs echo the sequence they answer and seq 0 marks an
	// unsequenced frame; neither takes part in ordering.
	if r.strictSeq && frame.Seq != 0 && frame.Kind != KindAck && frame.Kind != KindPong {
		expected := r.seqs[frame.SID] + 1
		if frame.Seq != expected {
			return nil, &SequenceError{SID: frame.SID, Expected: expected, Got: frame.Seq}
		}
		r.seqs[frame.SID] = frame.Seq
	}

	if frame.Kind == KindDict && r.dict != nil {
		parsed, err := binjson.ParseKeyDict(frame.Payload, binjson.KeyDictOptions{MaxEntries: r.dictMax})
		if err != nil {
			return nil, fmt.Errorf("apply dict snapshot: %w", err)
		}
		r.dict = parsed
	}

	return frame, nil
}

// DecodeValue decodes a frame's payload as a value against the reader's
// dictionary. Empty payloads (bare final frames) decode to nil.
func (r *Reader) DecodeValue(f *Frame) (*binjson.Value, error) {
	if len(f.Payload) == 0 {
		return nil, nil
	}
	if f.UsesDict() {
		if r.dict == nil {
			return nil, &ParseError{Reason: "frame requires a key dictionary", Offset: -1}
		}
		return binjson.DecodeWithDict(f.Payload, r.dict)
	}
	return binjson.Decode(f.Payload)
}

// ReadValue reads frames until the next value frame and decodes its
// payload. Control frames are skipped and dict snapshots are applied along
// the way. The value is nil for a bare final frame. Returns io.EOF at end
// of stream.
func (r *Reader) ReadValue() (*Frame, *binjson.Value, error) {
	for {
		f, err := r.Next()
		if err != nil {
			return nil, nil, err
		}
		if f.Kind != KindValue {
			continue
		}
		v, err := r.DecodeValue(f)
		if err != nil {
			return f, nil, err
		}
		return f, v, nil
	}
}

// ReadAll reads all frames until EOF.
func (r *Reader) ReadAll() ([]*Frame, error) {
	var frames []*Frame
	for {
		frame, err := r.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return frames, err
		}
		frames = append(frames, frame)
	}
}
