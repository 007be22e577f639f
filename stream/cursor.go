package stream

import (
	"fmt"
	"io"
	"sync"

	"github.com/Neumenon/binjson/binjson"
)

// Cursor tracks per-SID state for stream processing. It maintains sequence
// numbers, acknowledgements, and the latest value with its content digest,
// and provides helpers for gap detection and resynchronization.
type Cursor struct {
	mu sync.RWMutex

	sids map[uint64]*SIDState
}

// SIDState holds state for a single stream ID. Sequence numbers start at
// 1, so a LastSeq of 0 means no sequenced frame has been seen.
type SIDState struct {
	SID       uint64
	LastSeq   uint64         // Last sequence number seen
	LastAcked uint64         // Last sequence number acknowledged
	Latest    *binjson.Value // Most recent value (optional)
	Digest    uint64         // Content digest of Latest
	HasDigest bool           // Whether Digest is valid
	Final     bool           // Whether the stream has ended
}

// NewCursor creates a new cursor.
func NewCursor() *Cursor {
	return &Cursor{
		sids: make(map[uint64]*SIDState),
	}
}

// Get returns the state for a SID, creating it if needed.
func (c *Cursor) Get(sid uint64) *SIDState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(sid)
}

func (c *Cursor) getLocked(sid uint64) *SIDState {
	st, ok := c.sids[sid]
	if !ok {
		st = &SIDState{SID: sid}
		c.sids[sid] = st
	}
	return st
}

// Peek returns the state for a SID without creating it.
func (c *Cursor) Peek(sid uint64) *SIDState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sids[sid]
}

// Delete removes state for a SID.
func (c *Cursor) Delete(sid uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sids, sid)
}

// SIDs returns all tracked stream IDs.
func (c *Cursor) SIDs() []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sids := make([]uint64, 0, len(c.sids))
	for sid := range c.sids {
		sids = append(sids, sid)
	}
	return sids
}

// Observe records a frame against its SID, enforcing strict sequence
// monotonicity. The first sequenced frame establishes the baseline; after
// that every frame must carry the next sequence number. Unsequenced
// frames (seq 0) pass through untracked. Returns an error for duplicates,
// gaps, and frames after the final frame.
func (c *Cursor) Observe(f *Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.getLocked(f.SID)

	if st.Final {
		return fmt.Errorf("bjs1: frame after final on sid %d", f.SID)
	}
	if f.Seq != 0 {
		if st.LastSeq > 0 {
			if f.Seq <= st.LastSeq {
				return fmt.Errorf("bjs1: sequence not monotonic on sid %d: got %d, last was %d",
					f.SID, f.Seq, st.LastSeq)
			}
			if f.Seq != st.LastSeq+1 {
				return &SequenceError{SID: f.SID, Expected: st.LastSeq + 1, Got: f.Seq}
			}
		}
		st.LastSeq = f.Seq
	}
	if f.IsFinal() {
		st.Final = true
	}
	return nil
}

// Advance is the lenient counterpart of Observe. It records seq as seen
// and reports whether the frame should be processed (false for duplicates
// and stale frames) along with the sequence that was expected, which
// differs from seq when there is a gap.
func (c *Cursor) Advance(sid, seq uint64) (accepted bool, expected uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.getLocked(sid)

	if seq == 0 {
		return true, 0
	}
	expected = seq
	if st.LastSeq > 0 {
		expected = st.LastSeq + 1
		if seq <= st.LastSeq {
			return false, expected
		}
	}
	st.LastSeq = seq
	return true, expected
}

// SetLatest stores the current value for a SID along with its content
// digest. Use it after processing a value frame so NeedsResync and digest
// comparisons have something to work from.
func (c *Cursor) SetLatest(sid uint64, v *binjson.Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.getLocked(sid)
	st.Latest = v
	st.Digest = binjson.Digest(v)
	st.HasDigest = true
}

// Finish marks a SID as ended.
func (c *Cursor) Finish(sid uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getLocked(sid).Final = true
}

// Ack marks a sequence as acknowledged.
func (c *Cursor) Ack(sid, seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.getLocked(sid)
	if seq > st.LastAcked {
		st.LastAcked = seq
	}
}

// PendingAcks returns sequences that have been seen but not acked.
func (c *Cursor) PendingAcks(sid uint64) []uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.sids[sid]
	if st == nil || st.LastSeq <= st.LastAcked {
		return nil
	}

	pending := make([]uint64, 0, st.LastSeq-st.LastAcked)
	for seq := st.LastAcked + 1; seq <= st.LastSeq; seq++ {
		pending = append(pending, seq)
	}
	return pending
}

// NeedsResync returns true if the SID has no usable state to verify
// against, meaning the consumer should request a fresh snapshot.
func (c *Cursor) NeedsResync(sid uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	st := c.sids[sid]
	return st == nil || !st.HasDigest
}

// ============================================================
// Frame Handler - functional processing helper
// ============================================================

// FrameHandler dispatches frames to callbacks with cursor tracking.
// Value and err payloads are decoded before dispatch. The handler itself
// must be driven from a single goroutine.
type FrameHandler struct {
	Cursor *Cursor

	// Callbacks (optional)
	OnValue func(sid, seq uint64, v *binjson.Value, st *SIDState) error
	OnErr   func(sid, seq uint64, v *binjson.Value, st *SIDState) error
	OnAck   func(sid, seq uint64, st *SIDState) error
	OnFinal func(sid uint64, st *SIDState) error

	// OnSeqGap is called when a frame skips ahead of the expected
	// sequence. Processing continues unless it returns an error.
	OnSeqGap func(sid, expected, got uint64) error
}

// NewFrameHandler creates a handler with a fresh cursor.
func NewFrameHandler() *FrameHandler {
	return &FrameHandler{
		Cursor: NewCursor(),
	}
}

// Handle processes one frame read from r. Duplicate and stale frames are
// dropped silently; gaps are reported through OnSeqGap and then processed.
func (h *FrameHandler) Handle(r *Reader, f *Frame) error {
	st := h.Cursor.Get(f.SID)

	// Acks and pongs echo the sequence they answer, so they stay outside
	// the per-SID ordering.
	if f.Kind != KindAck && f.Kind != KindPong {
		accepted, expected := h.Cursor.Advance(f.SID, f.Seq)
		if !accepted {
			return nil
		}
		if f.Seq != expected && h.OnSeqGap != nil {
			if err := h.OnSeqGap(f.SID, expected, f.Seq); err != nil {
				return err
			}
		}
	}

	var err error
	switch f.Kind {
	case KindValue:
		var v *binjson.Value
		if v, err = r.DecodeValue(f); err != nil {
			return err
		}
		if v != nil {
			h.Cursor.SetLatest(f.SID, v)
			if h.OnValue != nil {
				err = h.OnValue(f.SID, f.Seq, v, st)
			}
		}

	case KindErr:
		var v *binjson.Value
		if v, err = r.DecodeValue(f); err != nil {
			return err
		}
		if h.OnErr != nil {
			err = h.OnErr(f.SID, f.Seq, v, st)
		}

	case KindAck:
		h.Cursor.Ack(f.SID, f.Seq)
		if h.OnAck != nil {
			err = h.OnAck(f.SID, f.Seq, st)
		}
	}

	if err != nil {
		return err
	}

	if f.IsFinal() {
		h.Cursor.Finish(f.SID)
		if h.OnFinal != nil {
			return h.OnFinal(f.SID, st)
		}
	}
	return nil
}

// Run reads frames from r until EOF, dispatching each through Handle.
func (h *FrameHandler) Run(r *Reader) error {
	for {
		f, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := h.Handle(r, f); err != nil {
			return err
		}
	}
}
