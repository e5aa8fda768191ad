// RTMP chunk transport: basic header + message header + extended timestamp
// + fragmented payload, and the per-chunk-stream state that lets compact
// chunk formats omit fields.
//
// Grounded on the teacher's rtmp_packet.go (chunk header layout, CreateChunks
// fragmentation) and rtmp_session.go's ReadChunk (basic-header parsing,
// format inheritance, extended-timestamp escape). The teacher only reads on
// the server side and always writes format-0 chunks; this file generalizes
// both directions so the client can also read compact chunks from the
// server and the writer can pick the most compact format, per spec §4.2.

package rtmp

import (
	"bufio"
	"encoding/binary"
	"io"
)

const extendedTimestampMarker = uint32(0xFFFFFF)

// DefaultChunkSize is the chunk size both peers start with before any
// SetChunkSize control message.
const DefaultChunkSize = 128

// Message type IDs, as used in the message header and control messages.
const (
	MsgSetChunkSize        byte = 1
	MsgAbort               byte = 2
	MsgAcknowledgement     byte = 3
	MsgUserControl         byte = 4
	MsgWindowAckSize       byte = 5
	MsgSetPeerBandwidth    byte = 6
	MsgAudio               byte = 8
	MsgVideo               byte = 9
	MsgData                byte = 18
	MsgCommand             byte = 20
)

// Chunk-id routing conventions. These are local policy, not wire-enforced.
const (
	ChunkIDControl = 2
	ChunkIDCommand = 3
	ChunkIDAudio   = 4
	ChunkIDVideo   = 6
	ChunkIDData    = 8
)

// UserControl event types.
const (
	UserControlStreamBegin uint16 = 0
)

// Message is one fully-reassembled RTMP message.
type Message struct {
	ChunkStreamID uint32
	Type          byte
	StreamID      uint32
	Timestamp     uint32
	Payload       []byte
}

// chunkDescriptor is the "last received/sent chunk descriptor" of spec §3:
// present fields on a compact chunk overwrite it, absent fields are
// inherited from it.
type chunkDescriptor struct {
	initialized bool // a format-0 chunk has been seen/sent on this chunk id
	extended    bool // sticky: the initiating chunk of the current message used the extended-timestamp escape
	rawField    uint32
	clock       uint32 // running absolute timestamp, ms
	length      uint32
	msgType     byte
	streamID    uint32

	// receive-side reassembly only
	payload  []byte
	received uint32
}

// ChunkIO is the read/write half of the chunk transport for one connection.
// It owns the per-chunk-stream descriptor maps (spec §3's "session owns all
// protocol state").
type ChunkIO struct {
	r *bufio.Reader
	w io.Writer

	recvChunkSize uint32
	sendChunkSize uint32

	recv map[uint32]*chunkDescriptor
	send map[uint32]*chunkDescriptor

	bytesRead uint64
}

func NewChunkIO(r io.Reader, w io.Writer) *ChunkIO {
	return &ChunkIO{
		r:             bufio.NewReader(r),
		w:             w,
		recvChunkSize: DefaultChunkSize,
		sendChunkSize: DefaultChunkSize,
		recv:          make(map[uint32]*chunkDescriptor),
		send:          make(map[uint32]*chunkDescriptor),
	}
}

func (c *ChunkIO) SetRecvChunkSize(n uint32) { c.recvChunkSize = n }
func (c *ChunkIO) SetSendChunkSize(n uint32) { c.sendChunkSize = n }
func (c *ChunkIO) RecvChunkSize() uint32     { return c.recvChunkSize }
func (c *ChunkIO) SendChunkSize() uint32     { return c.sendChunkSize }

// BytesRead returns the cumulative count of bytes consumed by ReadMessage,
// for the acknowledgement middleware (§4.2).
func (c *ChunkIO) BytesRead() uint64 { return c.bytesRead }

func (c *ChunkIO) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return nil, WrapError(KindIO, err)
	}
	c.bytesRead += uint64(n)
	return buf, nil
}

func (c *ChunkIO) readBasicHeader() (format byte, cid uint32, err error) {
	b0, err := c.r.ReadByte()
	if err != nil {
		return 0, 0, WrapError(KindIO, err)
	}
	c.bytesRead++
	format = b0 >> 6
	low6 := uint32(b0 & 0x3f)

	switch low6 {
	case 0:
		b1, err := c.readN(1)
		if err != nil {
			return 0, 0, err
		}
		cid = 64 + uint32(b1[0])
	case 1:
		buf, err := c.readN(2)
		if err != nil {
			return 0, 0, err
		}
		cid = 64 + uint32(binary.LittleEndian.Uint16(buf))
	default:
		cid = low6
	}

	return format, cid, nil
}

func readUint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func writeUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// ReadMessage reads raw chunks off the wire until one full message is
// reassembled, applying field inheritance and extended-timestamp escape
// per spec §4.2.
func (c *ChunkIO) ReadMessage() (*Message, error) {
	for {
		format, cid, err := c.readBasicHeader()
		if err != nil {
			return nil, err
		}

		desc := c.recv[cid]
		if desc == nil {
			desc = &chunkDescriptor{}
			c.recv[cid] = desc
		}

		if format != 0 && !desc.initialized {
			return nil, NewError(KindInvalidData, "chunk: compact chunk before any format-0 chunk on this chunk stream")
		}

		var tsField uint32
		var haveTsField bool

		switch format {
		case 0:
			hdr, err := c.readN(11)
			if err != nil {
				return nil, err
			}
			tsField = readUint24(hdr[0:3])
			haveTsField = true
			desc.length = readUint24(hdr[3:6])
			desc.msgType = hdr[6]
			desc.streamID = binary.LittleEndian.Uint32(hdr[7:11])
		case 1:
			hdr, err := c.readN(7)
			if err != nil {
				return nil, err
			}
			tsField = readUint24(hdr[0:3])
			haveTsField = true
			desc.length = readUint24(hdr[3:6])
			desc.msgType = hdr[6]
		case 2:
			hdr, err := c.readN(3)
			if err != nil {
				return nil, err
			}
			tsField = readUint24(hdr[0:3])
			haveTsField = true
		case 3:
			// no message header bytes
		}

		var effective uint32
		if haveTsField {
			if tsField == extendedTimestampMarker {
				ext, err := c.readN(4)
				if err != nil {
					return nil, err
				}
				effective = binary.BigEndian.Uint32(ext)
				desc.extended = true
			} else {
				effective = tsField
				desc.extended = false
			}
		} else if desc.extended {
			ext, err := c.readN(4)
			if err != nil {
				return nil, err
			}
			effective = binary.BigEndian.Uint32(ext)
		} else {
			effective = desc.rawField
		}

		desc.initialized = true

		if desc.received == 0 {
			if format == 0 {
				desc.clock = effective
			} else {
				desc.clock += effective
			}
			desc.rawField = effective
			if uint32(cap(desc.payload)) < desc.length {
				desc.payload = make([]byte, 0, desc.length)
			} else {
				desc.payload = desc.payload[:0]
			}
		}

		fragSize := c.recvChunkSize - (desc.received % c.recvChunkSize)
		if remaining := desc.length - desc.received; fragSize > remaining {
			fragSize = remaining
		}

		if fragSize > 0 {
			buf, err := c.readN(int(fragSize))
			if err != nil {
				return nil, err
			}
			desc.payload = append(desc.payload, buf...)
			desc.received += fragSize
		}

		if desc.received >= desc.length {
			msg := &Message{
				ChunkStreamID: cid,
				Type:          desc.msgType,
				StreamID:      desc.streamID,
				Timestamp:     desc.clock,
				Payload:       append([]byte(nil), desc.payload...),
			}
			desc.received = 0
			return msg, nil
		}
	}
}

func (c *ChunkIO) encodeBasicHeader(format byte, cid uint32) []byte {
	switch {
	case cid < 64:
		return []byte{format<<6 | byte(cid)}
	case cid < 320:
		return []byte{format << 6, byte(cid - 64)}
	default:
		v := cid - 64
		return []byte{format<<6 | 1, byte(v), byte(v >> 8)}
	}
}

// WriteMessage writes msgType/streamID/timestamp/payload as one RTMP
// message on chunk-id cid, choosing the most compact chunk format
// consistent with the last message sent on cid, and fragmenting the
// payload using format-3 continuation chunks per sendChunkSize.
func (c *ChunkIO) WriteMessage(cid uint32, msgType byte, streamID uint32, timestamp uint32, payload []byte) error {
	last := c.send[cid]

	var format byte
	var tsField uint32

	switch {
	case last == nil || !last.initialized:
		format = 0
		tsField = timestamp
	case streamID != last.streamID:
		format = 0
		tsField = timestamp
	case msgType != last.msgType || uint32(len(payload)) != last.length:
		format = 1
		tsField = timestamp - last.clock
	default:
		delta := timestamp - last.clock
		tsField = delta
		if delta == last.rawField {
			format = 3
		} else {
			format = 2
		}
	}

	useExtended := tsField >= extendedTimestampMarker

	var out []byte
	out = append(out, c.encodeBasicHeader(format, cid)...)

	switch format {
	case 0:
		hdr := make([]byte, 11)
		if useExtended {
			writeUint24(hdr[0:3], extendedTimestampMarker)
		} else {
			writeUint24(hdr[0:3], tsField)
		}
		writeUint24(hdr[3:6], uint32(len(payload)))
		hdr[6] = msgType
		binary.LittleEndian.PutUint32(hdr[7:11], streamID)
		out = append(out, hdr...)
	case 1:
		hdr := make([]byte, 7)
		if useExtended {
			writeUint24(hdr[0:3], extendedTimestampMarker)
		} else {
			writeUint24(hdr[0:3], tsField)
		}
		writeUint24(hdr[3:6], uint32(len(payload)))
		hdr[6] = msgType
		out = append(out, hdr...)
	case 2:
		hdr := make([]byte, 3)
		if useExtended {
			writeUint24(hdr[0:3], extendedTimestampMarker)
		} else {
			writeUint24(hdr[0:3], tsField)
		}
		out = append(out, hdr...)
	case 3:
		// no message header bytes
	}

	if useExtended {
		ext := make([]byte, 4)
		binary.BigEndian.PutUint32(ext, tsField)
		out = append(out, ext...)
	}

	cont := c.encodeBasicHeader(3, cid)

	remaining := payload
	first := true
	for {
		n := len(remaining)
		if n > int(c.sendChunkSize) {
			n = int(c.sendChunkSize)
		}
		if first {
			out = append(out, remaining[:n]...)
			first = false
		} else {
			out = append(out, cont...)
			if useExtended {
				ext := make([]byte, 4)
				binary.BigEndian.PutUint32(ext, tsField)
				out = append(out, ext...)
			}
			out = append(out, remaining[:n]...)
		}
		remaining = remaining[n:]
		if len(remaining) == 0 {
			break
		}
	}

	if _, err := c.w.Write(out); err != nil {
		return WrapError(KindIO, err)
	}

	c.send[cid] = &chunkDescriptor{
		initialized: true,
		extended:    useExtended,
		rawField:    tsField,
		clock:       timestamp,
		length:      uint32(len(payload)),
		msgType:     msgType,
		streamID:    streamID,
	}

	return nil
}
