// Protocol control messages: SetChunkSize, Abort, Acknowledgement,
// UserControl, WindowAcknowledgementSize, SetPeerBandwidth.
//
// Grounded on the teacher's rtmp_session_utils.go (SendACK, SendWindowACK,
// SetPeerBandwidth, SetChunkSize, SendStreamStatus), which hand-assembles
// each message's bytes including its own basic+message header. Here the
// payload builders stay the same shape but are handed to ChunkIO.WriteMessage
// so header-format selection goes through one code path instead of being
// duplicated per control message.

package rtmp

import "encoding/binary"

// Peer bandwidth limit types, per SetPeerBandwidth's trailing byte.
const (
	LimitHard    byte = 0
	LimitSoft    byte = 1
	LimitDynamic byte = 2
)

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// WriteSetChunkSize sends a SetChunkSize control message and updates this
// ChunkIO's own send chunk size to match, since a peer's SetChunkSize only
// ever affects its own sending going forward.
func (c *ChunkIO) WriteSetChunkSize(size uint32) error {
	if err := c.WriteMessage(ChunkIDControl, MsgSetChunkSize, 0, 0, encodeUint32(size)); err != nil {
		return err
	}
	c.SetSendChunkSize(size)
	return nil
}

// WriteWindowAckSize sends a WindowAcknowledgementSize control message.
func (c *ChunkIO) WriteWindowAckSize(size uint32) error {
	return c.WriteMessage(ChunkIDControl, MsgWindowAckSize, 0, 0, encodeUint32(size))
}

// WriteSetPeerBandwidth sends a SetPeerBandwidth control message.
func (c *ChunkIO) WriteSetPeerBandwidth(size uint32, limitType byte) error {
	payload := append(encodeUint32(size), limitType)
	return c.WriteMessage(ChunkIDControl, MsgSetPeerBandwidth, 0, 0, payload)
}

// WriteAcknowledgement sends an Acknowledgement carrying the cumulative
// received-byte count, per the acknowledgement middleware in §4.2.
func (c *ChunkIO) WriteAcknowledgement(bytesReceived uint32) error {
	return c.WriteMessage(ChunkIDControl, MsgAcknowledgement, 0, 0, encodeUint32(bytesReceived))
}

// WriteUserControlStreamBegin sends a UserControl(StreamBegin) event with
// the given message-stream-id, per §4.4 step "Began".
func (c *ChunkIO) WriteUserControlStreamBegin(streamID uint32) error {
	payload := make([]byte, 6)
	binary.BigEndian.PutUint16(payload[0:2], UserControlStreamBegin)
	binary.BigEndian.PutUint32(payload[2:6], streamID)
	return c.WriteMessage(ChunkIDControl, MsgUserControl, 0, 0, payload)
}

// ParseUserControlStreamBegin reads the event type and (for StreamBegin)
// the message-stream-id out of a UserControl message payload.
func ParseUserControlStreamBegin(payload []byte) (eventType uint16, streamID uint32, ok bool) {
	if len(payload) < 2 {
		return 0, 0, false
	}
	eventType = binary.BigEndian.Uint16(payload[0:2])
	if eventType == UserControlStreamBegin && len(payload) >= 6 {
		streamID = binary.BigEndian.Uint32(payload[2:6])
	}
	return eventType, streamID, true
}

// ParseUint32Payload decodes the single big-endian uint32 carried by
// SetChunkSize, WindowAcknowledgementSize, and Acknowledgement messages.
func ParseUint32Payload(payload []byte) (uint32, bool) {
	if len(payload) < 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(payload[0:4]), true
}
