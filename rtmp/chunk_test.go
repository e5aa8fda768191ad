package rtmp

import (
	"bytes"
	"testing"
)

func TestChunkRoundTripSmallMessage(t *testing.T) {
	var buf bytes.Buffer
	w := NewChunkIO(nil, &buf)
	w.SetSendChunkSize(128)

	payload := []byte("hello rtmp")
	if err := w.WriteMessage(ChunkIDCommand, MsgCommand, 0, 0, payload); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	r := NewChunkIO(&buf, nil)
	r.SetRecvChunkSize(128)
	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Type != MsgCommand || msg.StreamID != 0 || msg.Timestamp != 0 {
		t.Fatalf("unexpected message header: %+v", msg)
	}
	if !bytes.Equal(msg.Payload, payload) {
		t.Fatalf("payload mismatch: got %q want %q", msg.Payload, payload)
	}
}

func TestChunkFragmentedPayloadReassembly(t *testing.T) {
	var buf bytes.Buffer
	w := NewChunkIO(nil, &buf)
	w.SetSendChunkSize(16)

	payload := bytes.Repeat([]byte{0xab}, 200)
	if err := w.WriteMessage(ChunkIDVideo, MsgVideo, 1, 1000, payload); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	r := NewChunkIO(&buf, nil)
	r.SetRecvChunkSize(16)
	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if len(msg.Payload) != len(payload) {
		t.Fatalf("expected %d bytes, got %d", len(payload), len(msg.Payload))
	}
	if !bytes.Equal(msg.Payload, payload) {
		t.Fatalf("reassembled payload mismatch")
	}
	if msg.Timestamp != 1000 {
		t.Fatalf("expected timestamp 1000, got %d", msg.Timestamp)
	}
}

func TestChunkCompactFormatSelection(t *testing.T) {
	var buf bytes.Buffer
	w := NewChunkIO(nil, &buf)
	w.SetSendChunkSize(1024)

	payload := []byte{1, 2, 3, 4}

	// First message on this chunk id must be format 0.
	if err := w.WriteMessage(ChunkIDAudio, MsgAudio, 1, 0, payload); err != nil {
		t.Fatalf("WriteMessage 1: %v", err)
	}
	first := buf.Bytes()
	if first[0]>>6 != 0 {
		t.Fatalf("expected format 0 for first chunk, got format %d", first[0]>>6)
	}
	buf.Reset()

	// Same stream id/length/type, different timestamp delta -> format 2.
	if err := w.WriteMessage(ChunkIDAudio, MsgAudio, 1, 40, payload); err != nil {
		t.Fatalf("WriteMessage 2: %v", err)
	}
	second := buf.Bytes()
	if second[0]>>6 != 2 {
		t.Fatalf("expected format 2, got format %d", second[0]>>6)
	}
	buf.Reset()

	// Same delta (40 again) -> format 3.
	if err := w.WriteMessage(ChunkIDAudio, MsgAudio, 1, 80, payload); err != nil {
		t.Fatalf("WriteMessage 3: %v", err)
	}
	third := buf.Bytes()
	if third[0]>>6 != 3 {
		t.Fatalf("expected format 3, got format %d", third[0]>>6)
	}
	buf.Reset()

	// Different length -> format 1.
	if err := w.WriteMessage(ChunkIDAudio, MsgAudio, 1, 120, []byte{1, 2, 3, 4, 5}); err != nil {
		t.Fatalf("WriteMessage 4: %v", err)
	}
	fourth := buf.Bytes()
	if fourth[0]>>6 != 1 {
		t.Fatalf("expected format 1, got format %d", fourth[0]>>6)
	}
}

func TestChunkCompactFormatBeforeFormat0Rejected(t *testing.T) {
	// A format-1+ basic header on a chunk id never seen before is invalid.
	var buf bytes.Buffer
	// format=1, cid=3 (low6=3, no extra bytes)
	buf.WriteByte(1<<6 | 3)
	buf.Write(make([]byte, 7)) // format-1 message header

	r := NewChunkIO(&buf, nil)
	_, err := r.ReadMessage()
	if !IsKind(err, KindInvalidData) {
		t.Fatalf("expected KindInvalidData, got %v", err)
	}
}

func TestChunkExtendedTimestampBoundary(t *testing.T) {
	var buf bytes.Buffer
	w := NewChunkIO(nil, &buf)
	w.SetSendChunkSize(1024)

	payload := []byte{9, 9, 9}
	ts := uint32(0xFFFFFF) + 1

	if err := w.WriteMessage(ChunkIDVideo, MsgVideo, 1, ts, payload); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	r := NewChunkIO(&buf, nil)
	r.SetRecvChunkSize(1024)
	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Timestamp != ts {
		t.Fatalf("expected timestamp %d, got %d", ts, msg.Timestamp)
	}
}

func TestChunkExtendedTimestampStickyOnContinuation(t *testing.T) {
	var buf bytes.Buffer
	w := NewChunkIO(nil, &buf)
	w.SetSendChunkSize(8)

	payload := bytes.Repeat([]byte{0x11}, 40)
	ts := uint32(0xFFFFFF) + 500

	if err := w.WriteMessage(ChunkIDVideo, MsgVideo, 2, ts, payload); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	r := NewChunkIO(&buf, nil)
	r.SetRecvChunkSize(8)
	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.Timestamp != ts {
		t.Fatalf("expected timestamp %d, got %d", ts, msg.Timestamp)
	}
	if !bytes.Equal(msg.Payload, payload) {
		t.Fatalf("payload mismatch after extended-timestamp fragmentation")
	}
}

func TestChunkBasicHeaderWideChunkID(t *testing.T) {
	var buf bytes.Buffer
	w := NewChunkIO(nil, &buf)
	w.SetSendChunkSize(1024)

	const wideCID = 400 // requires the 3-byte basic header form
	if err := w.WriteMessage(wideCID, MsgData, 1, 0, []byte("x")); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	r := NewChunkIO(&buf, nil)
	r.SetRecvChunkSize(1024)
	msg, err := r.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if msg.ChunkStreamID != wideCID {
		t.Fatalf("expected chunk stream id %d, got %d", wideCID, msg.ChunkStreamID)
	}
}
