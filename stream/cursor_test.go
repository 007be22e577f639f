package stream

import (
	"bytes"
	"testing"

	"github.com/Neumenon/binjson/binjson"
)

func TestCursor_Basic(t *testing.T) {
	cursor := NewCursor()

	// Get creates state
	state := cursor.Get(1)
	if state == nil {
		t.Fatal("Get should create state")
	}
	if state.SID != 1 {
		t.Errorf("SID = %d, want 1", state.SID)
	}
	if state.LastSeq != 0 {
		t.Errorf("LastSeq = %d, want 0", state.LastSeq)
	}

	// Peek returns nil for unknown
	if cursor.Peek(99) != nil {
		t.Error("Peek should return nil for unknown SID")
	}

	// SIDs
	cursor.Get(2)
	cursor.Get(3)
	sids := cursor.SIDs()
	if len(sids) != 3 {
		t.Errorf("SIDs returned %d, want 3", len(sids))
	}

	// Delete
	cursor.Delete(2)
	if cursor.Peek(2) != nil {
		t.Error("Delete should remove SID")
	}
}

func TestCursor_Observe(t *testing.T) {
	cursor := NewCursor()

	// First frame establishes the baseline
	err := cursor.Observe(&Frame{SID: 1, Seq: 1, Kind: KindValue})
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	state := cursor.Get(1)
	if state.LastSeq != 1 {
		t.Errorf("LastSeq = %d, want 1", state.LastSeq)
	}

	// Sequential frame
	if err := cursor.Observe(&Frame{SID: 1, Seq: 2, Kind: KindValue}); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if state.LastSeq != 2 {
		t.Errorf("LastSeq = %d, want 2", state.LastSeq)
	}

	// Gap should fail
	err = cursor.Observe(&Frame{SID: 1, Seq: 5, Kind: KindValue})
	if err == nil {
		t.Error("expected error for sequence gap")
	}
	if _, ok := err.(*SequenceError); !ok {
		t.Errorf("expected SequenceError, got %T: %v", err, err)
	}

	// Duplicate should fail
	if err := cursor.Observe(&Frame{SID: 1, Seq: 2, Kind: KindValue}); err == nil {
		t.Error("expected error for duplicate sequence")
	}
}

func TestCursor_ObserveBaseline(t *testing.T) {
	cursor := NewCursor()

	// A late joiner's first frame can start anywhere
	if err := cursor.Observe(&Frame{SID: 1, Seq: 10, Kind: KindValue}); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if err := cursor.Observe(&Frame{SID: 1, Seq: 11, Kind: KindValue}); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if err := cursor.Observe(&Frame{SID: 1, Seq: 13, Kind: KindValue}); err == nil {
		t.Error("expected error for gap after baseline")
	}
}

func TestCursor_ObserveUnsequenced(t *testing.T) {
	cursor := NewCursor()

	if err := cursor.Observe(&Frame{SID: 1, Seq: 0, Kind: KindPing}); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if cursor.Get(1).LastSeq != 0 {
		t.Error("unsequenced frames must not advance LastSeq")
	}

	// Final still sticks
	if err := cursor.Observe(&Frame{SID: 1, Seq: 0, Kind: KindValue, Final: true}); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if err := cursor.Observe(&Frame{SID: 1, Seq: 1, Kind: KindValue}); err == nil {
		t.Error("expected error for frame after final")
	}
}

func TestCursor_Advance(t *testing.T) {
	cursor := NewCursor()

	accepted, expected := cursor.Advance(1, 1)
	if !accepted || expected != 1 {
		t.Errorf("Advance(1) = %v/%d, want true/1", accepted, expected)
	}

	// Duplicate is dropped
	accepted, expected = cursor.Advance(1, 1)
	if accepted {
		t.Error("duplicate should not be accepted")
	}
	if expected != 2 {
		t.Errorf("expected = %d, want 2", expected)
	}

	// Gap is accepted but reported
	accepted, expected = cursor.Advance(1, 5)
	if !accepted {
		t.Error("gap should be accepted")
	}
	if expected != 2 {
		t.Errorf("expected = %d, want 2", expected)
	}
	if cursor.Get(1).LastSeq != 5 {
		t.Errorf("LastSeq = %d, want 5", cursor.Get(1).LastSeq)
	}

	// Unsequenced passes through
	accepted, expected = cursor.Advance(1, 0)
	if !accepted || expected != 0 {
		t.Errorf("Advance(0) = %v/%d, want true/0", accepted, expected)
	}
}

func TestCursor_Ack(t *testing.T) {
	cursor := NewCursor()

	for seq := uint64(1); seq <= 5; seq++ {
		if err := cursor.Observe(&Frame{SID: 1, Seq: seq, Kind: KindValue}); err != nil {
			t.Fatalf("Observe failed: %v", err)
		}
	}

	// No acks yet
	pending := cursor.PendingAcks(1)
	if len(pending) != 5 {
		t.Errorf("PendingAcks = %d, want 5", len(pending))
	}

	// Ack some
	cursor.Ack(1, 3)
	pending = cursor.PendingAcks(1)
	if len(pending) != 2 { // 4, 5
		t.Errorf("PendingAcks after ack = %d, want 2", len(pending))
	}
	if pending[0] != 4 || pending[1] != 5 {
		t.Errorf("pending = %v, want [4 5]", pending)
	}

	// Ack rest
	cursor.Ack(1, 5)
	if pending := cursor.PendingAcks(1); len(pending) != 0 {
		t.Errorf("PendingAcks after full ack = %d, want 0", len(pending))
	}

	// Stale acks never move LastAcked backwards
	cursor.Ack(1, 2)
	if cursor.Get(1).LastAcked != 5 {
		t.Errorf("LastAcked = %d, want 5", cursor.Get(1).LastAcked)
	}
}

func TestCursor_Latest(t *testing.T) {
	cursor := NewCursor()

	if !cursor.NeedsResync(1) {
		t.Error("fresh SID should need resync")
	}

	v := binjson.Object(
		binjson.Field("a", binjson.Int(1)),
		binjson.Field("b", binjson.Int(2)),
	)
	cursor.SetLatest(1, v)

	if cursor.NeedsResync(1) {
		t.Error("SID with a digest should not need resync")
	}

	state := cursor.Get(1)
	if !state.HasDigest {
		t.Error("HasDigest should be true after SetLatest")
	}
	if state.Digest != binjson.Digest(v) {
		t.Errorf("Digest = %x, want %x", state.Digest, binjson.Digest(v))
	}

	// Digest ignores member order, so a reordered copy matches
	reordered := binjson.Object(
		binjson.Field("b", binjson.Int(2)),
		binjson.Field("a", binjson.Int(1)),
	)
	if state.Digest != binjson.Digest(reordered) {
		t.Error("digest should not depend on member order")
	}
}

func TestCursor_Finish(t *testing.T) {
	cursor := NewCursor()

	if err := cursor.Observe(&Frame{SID: 1, Seq: 1, Kind: KindValue, Final: true}); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	if !cursor.Get(1).Final {
		t.Error("Final should be true")
	}
}

// ============================================================
// Frame Handler Tests
// ============================================================

func TestFrameHandler_Basic(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteValue(1, binjson.Object(binjson.Field("x", binjson.Int(1)))); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if err := w.WriteValue(1, binjson.Object(binjson.Field("x", binjson.Int(2)))); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if err := w.WriteErr(1, binjson.Str("boom")); err != nil {
		t.Fatalf("WriteErr: %v", err)
	}

	var values []int64
	var errs []string

	handler := NewFrameHandler()
	handler.OnValue = func(sid, seq uint64, v *binjson.Value, st *SIDState) error {
		x, _ := v.Get("x").AsInt()
		values = append(values, x)
		return nil
	}
	handler.OnErr = func(sid, seq uint64, v *binjson.Value, st *SIDState) error {
		s, _ := v.AsStr()
		errs = append(errs, s)
		return nil
	}

	if err := handler.Run(NewReader(&buf)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Errorf("values = %v, want [1 2]", values)
	}
	if len(errs) != 1 || errs[0] != "boom" {
		t.Errorf("errs = %v, want [boom]", errs)
	}

	// The cursor tracked the stream alongside
	state := handler.Cursor.Get(1)
	if state.LastSeq != 3 {
		t.Errorf("LastSeq = %d, want 3", state.LastSeq)
	}
	if state.Latest == nil {
		t.Fatal("Latest should be set")
	}
	x, _ := state.Latest.Get("x").AsInt()
	if x != 2 {
		t.Errorf("Latest.x = %d, want 2", x)
	}
}

func TestFrameHandler_GapCallback(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	payload := binjson.Encode(binjson.Str("x"))
	frames := []*Frame{
		{Version: 1, SID: 1, Seq: 1, Kind: KindValue, Payload: payload},
		{Version: 1, SID: 1, Seq: 5, Kind: KindValue, Payload: payload}, // Gap!
	}
	for _, f := range frames {
		if err := w.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	var gaps [][2]uint64
	handler := NewFrameHandler()
	handler.OnSeqGap = func(sid uint64, expected, got uint64) error {
		gaps = append(gaps, [2]uint64{expected, got})
		return nil // Allow gap
	}

	if err := handler.Run(NewReader(&buf)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(gaps) != 1 {
		t.Fatalf("expected 1 gap, got %d", len(gaps))
	}
	if gaps[0][0] != 2 || gaps[0][1] != 5 {
		t.Errorf("gap = %v, want [2 5]", gaps[0])
	}

	// State should still update if the callback allows
	if got := handler.Cursor.Get(1).LastSeq; got != 5 {
		t.Errorf("LastSeq = %d, want 5", got)
	}
}

func TestFrameHandler_DuplicateSkipped(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	for _, seq := range []uint64{1, 1, 2} {
		err := w.WriteFrame(&Frame{
			Version: 1,
			SID:     1,
			Seq:     seq,
			Kind:    KindValue,
			Payload: binjson.Encode(binjson.Int(int64(seq))),
		})
		if err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	var count int
	handler := NewFrameHandler()
	handler.OnValue = func(sid, seq uint64, v *binjson.Value, st *SIDState) error {
		count++
		return nil
	}

	if err := handler.Run(NewReader(&buf)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2 (duplicate should be skipped)", count)
	}
}

func TestFrameHandler_AckCallback(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteValue(1, binjson.Int(1)); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if err := w.WriteAck(1, 1); err != nil {
		t.Fatalf("WriteAck: %v", err)
	}

	var acks []uint64
	handler := NewFrameHandler()
	handler.OnAck = func(sid, seq uint64, st *SIDState) error {
		acks = append(acks, seq)
		return nil
	}

	if err := handler.Run(NewReader(&buf)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(acks) != 1 || acks[0] != 1 {
		t.Errorf("acks = %v, want [1]", acks)
	}
	if pending := handler.Cursor.PendingAcks(1); len(pending) != 0 {
		t.Errorf("pending = %v, want none", pending)
	}
}

func TestFrameHandler_FinalCallback(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	if err := w.WriteValue(1, binjson.Str("a")); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	if err := w.CloseStream(1); err != nil {
		t.Fatalf("CloseStream: %v", err)
	}

	var finalSIDs []uint64
	var valueCount int
	handler := NewFrameHandler()
	handler.OnValue = func(sid, seq uint64, v *binjson.Value, st *SIDState) error {
		valueCount++
		return nil
	}
	handler.OnFinal = func(sid uint64, st *SIDState) error {
		finalSIDs = append(finalSIDs, sid)
		return nil
	}

	if err := handler.Run(NewReader(&buf)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(finalSIDs) != 1 || finalSIDs[0] != 1 {
		t.Errorf("finalSIDs = %v", finalSIDs)
	}
	// The bare final frame carries no value
	if valueCount != 1 {
		t.Errorf("valueCount = %d, want 1", valueCount)
	}
	if !handler.Cursor.Get(1).Final {
		t.Error("cursor should mark the SID final")
	}
}
