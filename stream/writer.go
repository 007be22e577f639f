package stream

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/Neumenon/binjson/binjson"
)

// Writer writes BJS1 frames to an io.Writer. It assigns per-SID sequence
// numbers and applies the configured checksum, compression, and key
// dictionary uniformly. It is safe for concurrent use.
type Writer struct {
	mu          sync.Mutex
	w           io.Writer
	withCRC     bool
	compression Compression
	compressMin int
	dict        *binjson.KeyDict
	seqs        map[uint64]uint64 // next sequence number per SID
	scratch     []byte
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithChecksums makes the writer attach a CRC-32 to every frame.
func WithChecksums() WriterOption {
	return func(w *Writer) {
		w.withCRC = true
	}
}

// WithCompression compresses payloads of at least MinCompressSize bytes.
// Frames whose payload does not shrink are stored uncompressed.
func WithCompression(c Compression) WriterOption {
	return func(w *Writer) {
		w.compression = c
	}
}

// WithCompressMin overrides the minimum payload size for compression.
func WithCompressMin(n int) WriterOption {
	return func(w *Writer) {
		w.compressMin = n
	}
}

// WithWriteDict gives the writer a key dictionary, so object keys repeated
// across value frames are sent once and referenced afterwards. The reading
// side must use WithReadDict with the same maxEntries. maxEntries of zero
// or less uses the default size.
func WithWriteDict(maxEntries int) WriterOption {
	return func(w *Writer) {
		w.dict = binjson.NewKeyDict(binjson.KeyDictOptions{MaxEntries: maxEntries})
	}
}

// NewWriter creates a new BJS1 frame writer.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	writer := &Writer{
		w:           w,
		compressMin: MinCompressSize,
		seqs:        make(map[uint64]uint64),
	}
	for _, opt := range opts {
		opt(writer)
	}
	return writer
}

// Dict returns the writer's key dictionary, or nil if none is configured.
func (w *Writer) Dict() *binjson.KeyDict {
	return w.dict
}

// WriteFrame writes a single frame. The frame's Payload is taken as
// uncompressed bytes; checksum and compression policy come from the
// writer's options, not from the frame's CRC and Compression fields.
func (w *Writer) WriteFrame(f *Frame) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeFrameLocked(f)
}

func (w *Writer) writeFrameLocked(f *Frame) error {
	stored := f.Payload
	comp := CompressionNone
	if w.compression != CompressionNone && len(f.Payload) >= w.compressMin {
		out, err := compress(w.compression, f.Payload)
		if err != nil {
			return err
		}
		if len(out) < len(f.Payload) {
			stored, comp = out, w.compression
		}
	}
	if len(stored) > MaxPayloadSize {
		return &ParseError{
			Reason: fmt.Sprintf("payload too large: %d > %d", len(stored), MaxPayloadSize),
			Offset: -1,
		}
	}

	flags := f.Flags
	if f.Final {
		flags |= FlagFinal
	}
	if w.withCRC {
		flags |= FlagHasCRC
	} else {
		flags &^= FlagHasCRC
	}

	version := f.Version
	if version == 0 {
		version = Version
	}

	hdr := append(w.scratch[:0], magic[0], magic[1], version, byte(f.Kind), byte(flags), byte(comp))
	hdr = binary.AppendUvarint(hdr, f.SID)
	hdr = binary.AppendUvarint(hdr, f.Seq)
	hdr = binary.AppendUvarint(hdr, uint64(len(stored)))
	if w.withCRC {
		hdr = binary.LittleEndian.AppendUint32(hdr, ComputeCRC(stored))
	}
	w.scratch = hdr

	if _, err := w.w.Write(hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(stored) > 0 {
		if _, err := w.w.Write(stored); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}
	return nil
}

// WriteValue writes a value frame, assigning the next sequence number for
// the SID.
func (w *Writer) WriteValue(sid uint64, v *binjson.Value) error {
	return w.writeValue(sid, KindValue, v, false)
}

// WriteFinalValue writes a value frame marked as the end of its SID.
func (w *Writer) WriteFinalValue(sid uint64, v *binjson.Value) error {
	return w.writeValue(sid, KindValue, v, true)
}

// WriteErr writes an error event whose payload is an encoded value.
func (w *Writer) WriteErr(sid uint64, v *binjson.Value) error {
	return w.writeValue(sid, KindErr, v, false)
}

func (w *Writer) writeValue(sid uint64, kind FrameKind, v *binjson.Value, final bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Only value frames go through the dictionary. Skipping a dict-flagged
	// frame without decoding it would desynchronize the reader's table, and
	// readers are free to skip err frames.
	var payload []byte
	var flags Flags
	if w.dict != nil && kind == KindValue {
		payload = binjson.EncodeWithDict(v, w.dict)
		flags |= FlagDictKeys
	} else {
		payload = binjson.Encode(v)
	}
	return w.writeFrameLocked(&Frame{
		Version: Version,
		SID:     sid,
		Seq:     w.nextSeqLocked(sid),
		Kind:    kind,
		Flags:   flags,
		Payload: payload,
		Final:   final,
	})
}

// CloseStream writes an empty final frame for a SID. Readers observe a
// frame with IsFinal set and no payload.
func (w *Writer) CloseStream(sid uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeFrameLocked(&Frame{
		Version: Version,
		SID:     sid,
		Seq:     w.nextSeqLocked(sid),
		Kind:    KindValue,
		Final:   true,
	})
}

// WriteAck acknowledges a sequence number on a stream. The frame's own Seq
// is the acknowledged sequence.
func (w *Writer) WriteAck(sid, seq uint64) error {
	return w.WriteFrame(&Frame{Version: Version, SID: sid, Seq: seq, Kind: KindAck})
}

// WritePing writes a keepalive frame.
func (w *Writer) WritePing(sid uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeFrameLocked(&Frame{
		Version: Version,
		SID:     sid,
		Seq:     w.nextSeqLocked(sid),
		Kind:    KindPing,
	})
}

// WritePong answers a ping, echoing its sequence number.
func (w *Writer) WritePong(sid, seq uint64) error {
	return w.WriteFrame(&Frame{Version: Version, SID: sid, Seq: seq, Kind: KindPong})
}

// WriteDictSnapshot writes the current key dictionary as a dict frame, so
// a reader joining mid-stream can resynchronize. A reader that applies the
// snapshot decodes subsequent value frames as if it had seen the whole
// stream. No-op if the writer has no dictionary.
func (w *Writer) WriteDictSnapshot() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.dict == nil {
		return nil
	}
	return w.writeFrameLocked(&Frame{
		Version: Version,
		Kind:    KindDict,
		Seq:     w.nextSeqLocked(0),
		Payload: w.dict.Serialize(),
	})
}

// nextSeqLocked returns the next sequence number for a SID. Sequence
// numbers start at 1; 0 marks unsequenced frames.
func (w *Writer) nextSeqLocked(sid uint64) uint64 {
	w.seqs[sid]++
	return w.seqs[sid]
}
