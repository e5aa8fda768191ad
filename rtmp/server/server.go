// Publisher-facing server: the inverse of the client's command sequence,
// plus the Published-state media loop that reassembles tags into an FLV
// sink.
//
// Grounded on the teacher's RTMPSession.HandleSession/HandleInvoke/
// HandleConnect/HandlePublish (rtmp_session.go) for the read-loop shape and
// the WindowACK/SetPeerBandwidth/SetChunkSize sequence sent right after
// connect, and on RespondConnect/RespondCreateStream (rtmp_session_utils.go)
// for the response payload shapes. Everything about play/subscribe and the
// GOP cache is dropped, since this system only ever accepts a publish.
package server

import (
	"io"
	"net"
	"time"

	"github.com/AgustinSRG/rtmp-publish-core/rtmp"
)

// Config is the server's session configuration.
type Config struct {
	DefaultChunkSize uint32
	WindowAckSize    uint32
	FmsVersion       string
	AwaitDuration    time.Duration
}

func (c *Config) setDefaults() {
	if c.DefaultChunkSize == 0 {
		c.DefaultChunkSize = rtmp.DefaultChunkSize
	}
	if c.WindowAckSize == 0 {
		c.WindowAckSize = 5_000_000
	}
	if c.FmsVersion == "" {
		c.FmsVersion = "FMS/5,0,17"
	}
}

// Sink is the server's persistence interface (§6): every reassembled tag is
// appended to it in arrival order.
type Sink interface {
	AppendTag(tag rtmp.Tag) error
}

// InitSink is called once the publisher's playpath is known (right before
// entering the media loop) to obtain the Sink that tags will be appended
// to.
type InitSink func(playpath string) (Sink, error)

type session struct {
	conn    io.ReadWriteCloser
	session *rtmp.Session
	cfg     Config
}

// Serve runs one publisher connection to completion: handshake, the setup
// command sequence, then the media loop. It returns when the connection
// ends, successfully or not.
func Serve(conn io.ReadWriteCloser, cfg Config, initSink InitSink) error {
	cfg.setDefaults()

	signed, err := rtmp.ServerHandshake(conn)
	if err != nil {
		return err
	}

	chunks := rtmp.NewChunkIO(conn, conn)
	chunks.SetSendChunkSize(cfg.DefaultChunkSize)
	chunks.SetRecvChunkSize(cfg.DefaultChunkSize)

	sess := rtmp.NewSession(chunks)
	sess.Signed = signed
	sess.AckWindow = cfg.WindowAckSize

	s := &session{conn: conn, session: sess, cfg: cfg}

	setup := rtmp.ChainAll(
		s.handleConnect,
		s.handleReleaseStream,
		s.handleFCPublish,
		s.handleCreateStream,
		s.sendStreamBegin,
		s.handlePublish,
	)
	if err := setup(); err != nil {
		return err
	}

	sink, err := initSink(s.session.Playpath)
	if err != nil {
		return rtmp.WrapError(rtmp.KindIO, err)
	}

	onePass := rtmp.Wrap(func(inner rtmp.Handler) error {
		if err := inner(); err != nil {
			return err
		}
		return s.session.MaybeAcknowledge()
	}, func() error { return s.handleMediaMessage(sink) })

	media := rtmp.WhileOk(nil, onePass)

	return media()
}

func (s *session) readCommand() (*rtmp.Command, error) {
	for {
		msg, err := s.session.Chunks.ReadMessage()
		if err != nil {
			return nil, err
		}
		switch msg.Type {
		case rtmp.MsgCommand:
			return rtmp.DecodeCommand(msg.Payload)
		case rtmp.MsgSetChunkSize:
			if size, ok := rtmp.ParseUint32Payload(msg.Payload); ok {
				s.session.Chunks.SetRecvChunkSize(size)
			}
		default:
			// Ignore other message types while waiting for a command.
		}
	}
}

func (s *session) writeCommand(cmd *rtmp.Command) error {
	return s.session.Chunks.WriteMessage(rtmp.ChunkIDCommand, rtmp.MsgCommand, 0, 0, rtmp.EncodeCommand(cmd))
}

func (s *session) handleConnect() error {
	cmd, err := s.readCommand()
	if err != nil {
		return err
	}
	if cmd.Name != "connect" || len(cmd.Args) == 0 {
		return rtmp.NewError(rtmp.KindInvalidData, "server: expected connect")
	}
	cmdObj := cmd.Args[0]
	s.session.App = cmdObj.Property("app").Str()
	s.session.TcUrl = cmdObj.Property("tcUrl").Str()

	if err := s.session.Chunks.WriteWindowAckSize(s.cfg.WindowAckSize); err != nil {
		return err
	}
	if err := s.session.Chunks.WriteSetPeerBandwidth(s.cfg.WindowAckSize, rtmp.LimitDynamic); err != nil {
		return err
	}
	if err := s.session.Chunks.WriteSetChunkSize(s.cfg.DefaultChunkSize); err != nil {
		return err
	}
	if err := s.writeCommand(rtmp.NewConnectResultCommand(int64(cmd.TransactionID), s.cfg.FmsVersion, 31)); err != nil {
		return err
	}
	return s.session.Advance(rtmp.StatusConnected)
}

func (s *session) handleReleaseStream() error {
	cmd, err := s.readCommand()
	if err != nil {
		return err
	}
	if cmd.Name != "releaseStream" {
		return rtmp.NewError(rtmp.KindInvalidData, "server: expected releaseStream")
	}
	if len(cmd.Args) >= 2 {
		s.session.Playpath = cmd.Args[1].Str()
	}
	if err := s.writeCommand(rtmp.NewNullResultCommand(int64(cmd.TransactionID))); err != nil {
		return err
	}
	return s.session.Advance(rtmp.StatusReleased)
}

func (s *session) handleFCPublish() error {
	cmd, err := s.readCommand()
	if err != nil {
		return err
	}
	if cmd.Name != "FCPublish" {
		return rtmp.NewError(rtmp.KindInvalidData, "server: expected FCPublish")
	}
	if len(cmd.Args) >= 2 {
		s.session.Playpath = cmd.Args[1].Str()
	}
	if err := s.writeCommand(rtmp.NewOnFCPublishCommand()); err != nil {
		return err
	}
	return s.session.Advance(rtmp.StatusFcPublished)
}

func (s *session) handleCreateStream() error {
	cmd, err := s.readCommand()
	if err != nil {
		return err
	}
	if cmd.Name != "createStream" {
		return rtmp.NewError(rtmp.KindInvalidData, "server: expected createStream")
	}
	s.session.MessageStreamID = 1
	if err := s.writeCommand(rtmp.NewCreateStreamResultCommand(int64(cmd.TransactionID), s.session.MessageStreamID)); err != nil {
		return err
	}
	return s.session.Advance(rtmp.StatusCreated)
}

func (s *session) sendStreamBegin() error {
	if err := s.session.Chunks.WriteUserControlStreamBegin(s.session.MessageStreamID); err != nil {
		return err
	}
	return s.session.Advance(rtmp.StatusBegan)
}

func (s *session) handlePublish() error {
	cmd, err := s.readCommand()
	if err != nil {
		return err
	}
	if cmd.Name != "publish" {
		return rtmp.NewError(rtmp.KindInvalidData, "server: expected publish")
	}
	if len(cmd.Args) >= 2 {
		s.session.Playpath = cmd.Args[1].Str()
	}
	if err := s.writeCommand(rtmp.NewPublishStartStatusCommand()); err != nil {
		return err
	}
	return s.session.Advance(rtmp.StatusPublished)
}

// armReadDeadline bounds the next media read by the configured await
// duration, per §4.6/§5's "the only core timeout is the Published-state
// media read": a silent publisher must not block the loop forever. A
// timeout surfaces like any other read failure (KindIO), which is fatal per
// §7's propagation rule once the session has reached Created.
func (s *session) armReadDeadline() {
	if s.cfg.AwaitDuration <= 0 {
		return
	}
	if nc, ok := s.conn.(net.Conn); ok {
		_ = nc.SetReadDeadline(time.Now().Add(s.cfg.AwaitDuration))
	}
}

func (s *session) handleMediaMessage(sink Sink) error {
	s.armReadDeadline()
	msg, err := s.session.Chunks.ReadMessage()
	if err != nil {
		return err
	}

	switch msg.Type {
	case rtmp.MsgAudio, rtmp.MsgVideo:
		return sink.AppendTag(rtmp.Tag{Type: msg.Type, Timestamp: msg.Timestamp, Data: msg.Payload})
	case rtmp.MsgData:
		body := rtmp.StripSetDataFrame(msg.Payload)
		return sink.AppendTag(rtmp.Tag{Type: msg.Type, Timestamp: msg.Timestamp, Data: body})
	case rtmp.MsgSetChunkSize:
		if size, ok := rtmp.ParseUint32Payload(msg.Payload); ok {
			s.session.Chunks.SetRecvChunkSize(size)
		}
		return nil
	case rtmp.MsgCommand:
		return s.handleMidStreamCommand(msg.Payload)
	default:
		return nil
	}
}

// handleMidStreamCommand handles the teardown commands the client may send
// mid-publish (§4.4's Teardown paragraph): FCUnpublish clears the playpath,
// deleteStream releases the message-stream-id and ends the session
// cleanly.
func (s *session) handleMidStreamCommand(payload []byte) error {
	cmd, err := rtmp.DecodeCommand(payload)
	if err != nil {
		return err
	}
	switch cmd.Name {
	case "FCUnpublish":
		s.session.Playpath = ""
		return nil
	case "deleteStream":
		s.session.MessageStreamID = 0
		return rtmp.ErrStreamExhausted
	default:
		return nil
	}
}
