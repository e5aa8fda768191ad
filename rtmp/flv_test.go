package rtmp

import "testing"

func TestFLVTagRoundTrip(t *testing.T) {
	tag := Tag{Type: TagVideo, Timestamp: 0x01020304, Data: []byte{0x17, 0x01, 0x00, 0x00, 0x00, 0xde, 0xad, 0xbe, 0xef}}
	encoded := EncodeTag(tag)

	decoded, n, err := DecodeTag(encoded)
	if err != nil {
		t.Fatalf("DecodeTag: %v", err)
	}
	if n != len(encoded) {
		t.Fatalf("expected to consume %d bytes, consumed %d", len(encoded), n)
	}
	if decoded.Type != tag.Type || decoded.Timestamp != tag.Timestamp {
		t.Fatalf("header mismatch: got %+v want %+v", decoded, tag)
	}
	if string(decoded.Data) != string(tag.Data) {
		t.Fatalf("data mismatch: got %v want %v", decoded.Data, tag.Data)
	}
}

func TestFLVTagTimestampExtendedByte(t *testing.T) {
	tag := Tag{Type: TagAudio, Timestamp: 0xFFFFFF + 500, Data: []byte{0xaf, 0x01, 0x11, 0x22}}
	encoded := EncodeTag(tag)
	decoded, _, err := DecodeTag(encoded)
	if err != nil {
		t.Fatalf("DecodeTag: %v", err)
	}
	if decoded.Timestamp != tag.Timestamp {
		t.Fatalf("expected timestamp %d, got %d", tag.Timestamp, decoded.Timestamp)
	}
}

func TestFLVStripSetDataFrame(t *testing.T) {
	inner := EncodeAMF0(StringValue("onMetaData"), NullValue())
	marker := EncodeAMF0(StringValue(scriptDataFrameMarker))
	body := append(append([]byte(nil), marker...), inner...)

	stripped := StripSetDataFrame(body)
	if string(stripped) != string(inner) {
		t.Fatalf("expected marker stripped, got %v want %v", stripped, inner)
	}
}

func TestFLVStripSetDataFrameNoOpWithoutMarker(t *testing.T) {
	body := EncodeAMF0(StringValue("onMetaData"), NullValue())
	stripped := StripSetDataFrame(body)
	if string(stripped) != string(body) {
		t.Fatalf("expected body unchanged")
	}
}

func TestFLVSummarizeAudioAAC(t *testing.T) {
	data := []byte{0xaf, 0x01, 0x11, 0x22} // AAC (10), 44kHz, 16-bit, stereo; AAC raw packet
	summary, ok := SummarizeAudioTag(data)
	if !ok {
		t.Fatalf("expected ok")
	}
	if !summary.IsAAC || summary.AACPacketType != 0x01 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestFLVSummarizeVideoAVCWithNegativeCompositionTime(t *testing.T) {
	// AVC (7), key frame (1); packet type 1 (NALU); composition time -1
	data := []byte{0x17, 0x01, 0xff, 0xff, 0xff}
	summary, ok := SummarizeVideoTag(data)
	if !ok {
		t.Fatalf("expected ok")
	}
	if !summary.IsAVC || summary.CompositionTime != -1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}
