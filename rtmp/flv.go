// FLV tag codec: audio/video/script-data tags with their format-specific
// headers, used both for on-wire description and for the on-disk FLV sink.
//
// Grounded on the teacher's flv.go (createFlvTag: 11-byte tag header, 32-bit
// timestamp split into 24-bit big-endian + 1 extended high byte, trailing
// 4-byte previous-tag-size) generalized into a round-trippable Tag type
// (decode was entirely absent from the teacher, which only ever writes
// tags out). The per-codec summary fields are grounded on av.go/bitop.go's
// AAC/AVC header tables, read only far enough to describe a tag for
// logging, not to reinterpret SPS/AAC bitstreams.

package rtmp

import "encoding/binary"

// Tag type IDs match the chunk transport's message types for Audio/Video/
// Data, since every inbound audio/video/data chunk becomes exactly one tag.
const (
	TagAudio  byte = MsgAudio
	TagVideo  byte = MsgVideo
	TagScript byte = MsgData
)

// Tag is one FLV tag: type, timestamp in milliseconds, and the raw body
// (the codec-specific payload, unchanged from the wire).
type Tag struct {
	Type      byte
	Timestamp uint32
	Data      []byte
}

// scriptDataFrameMarker precedes the first script-data tag's payload on the
// wire and must be stripped before persistence, per §4.5.
const scriptDataFrameMarker = "@setDataFrame"

// StripSetDataFrame removes a leading "@setDataFrame" AMF0 string from a
// script-data (Data message) tag body, if present.
func StripSetDataFrame(body []byte) []byte {
	values, err := DecodeAMF0Values(body)
	if err != nil || len(values) == 0 {
		return body
	}
	if values[0].amfType != typeString || values[0].Str() != scriptDataFrameMarker {
		return body
	}
	marker := EncodeAMF0(values[0])
	if len(marker) > len(body) {
		return body
	}
	return body[len(marker):]
}

// EncodeTag serializes tag into the on-wire/on-disk FLV tag format: an
// 11-byte header, the body, and a trailing 4-byte previous-tag-size field.
func EncodeTag(tag Tag) []byte {
	length := uint32(len(tag.Data))
	out := make([]byte, 11+length+4)

	out[0] = tag.Type

	lenBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBytes, length)
	copy(out[1:4], lenBytes[1:4])

	out[4] = byte(tag.Timestamp >> 16)
	out[5] = byte(tag.Timestamp >> 8)
	out[6] = byte(tag.Timestamp)
	out[7] = byte(tag.Timestamp >> 24)

	// StreamID, always 0.
	out[8], out[9], out[10] = 0, 0, 0

	copy(out[11:11+length], tag.Data)

	binary.BigEndian.PutUint32(out[11+length:], 11+length)

	return out
}

// DecodeTag parses one on-wire/on-disk FLV tag, including its trailing
// previous-tag-size field, and returns the tag plus the number of bytes
// consumed.
func DecodeTag(buf []byte) (Tag, int, error) {
	if len(buf) < 11 {
		return Tag{}, 0, NewError(KindInsufficientData, "flv: tag header truncated")
	}

	tagType := buf[0]
	length := uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	timestamp := uint32(buf[4])<<16 | uint32(buf[5])<<8 | uint32(buf[6]) | uint32(buf[7])<<24

	total := 11 + int(length) + 4
	if len(buf) < total {
		return Tag{}, 0, NewError(KindInsufficientData, "flv: tag body truncated")
	}

	data := append([]byte(nil), buf[11:11+length]...)

	return Tag{Type: tagType, Timestamp: timestamp, Data: data}, total, nil
}

/* Codec-summary headers, used for logging only. */

// AudioSummary describes an audio tag's 1-byte header (and the AAC packet
// type byte when present), per §3's audio header layout.
type AudioSummary struct {
	SoundFormat   byte
	SoundRate     byte
	Is16Bit       bool
	IsStereo      bool
	IsAAC         bool
	AACPacketType byte // valid only if IsAAC
}

const soundFormatAAC = 10

func SummarizeAudioTag(data []byte) (AudioSummary, bool) {
	if len(data) < 1 {
		return AudioSummary{}, false
	}
	header := data[0]
	s := AudioSummary{
		SoundFormat: header >> 4,
		SoundRate:   (header >> 2) & 0x3,
		Is16Bit:     header&0x2 != 0,
		IsStereo:    header&0x1 != 0,
	}
	if s.SoundFormat == soundFormatAAC {
		s.IsAAC = true
		if len(data) >= 2 {
			s.AACPacketType = data[1]
		}
	}
	return s, true
}

// VideoSummary describes a video tag's 1-byte header (and the AVC packet
// type byte plus signed 24-bit composition time when present).
type VideoSummary struct {
	FrameType       byte
	CodecID         byte
	IsAVC           bool
	AVCPacketType   byte // valid only if IsAVC
	CompositionTime int32
}

const codecIDAVC = 7

func SummarizeVideoTag(data []byte) (VideoSummary, bool) {
	if len(data) < 1 {
		return VideoSummary{}, false
	}
	header := data[0]
	s := VideoSummary{
		FrameType: header >> 4,
		CodecID:   header & 0xf,
	}
	if s.CodecID == codecIDAVC && len(data) >= 5 {
		s.IsAVC = true
		s.AVCPacketType = data[1]
		raw := uint32(data[2])<<16 | uint32(data[3])<<8 | uint32(data[4])
		if raw&0x800000 != 0 {
			raw |= 0xff000000 // sign-extend 24-bit to 32-bit
		}
		s.CompositionTime = int32(raw)
	}
	return s, true
}
