// Publisher client: drives the handshake, the setup command sequence of
// §4.4, and the Published-state media loop.
//
// Grounded on the teacher's RTMPSession.HandleSession (rtmp_session.go) for
// the overall "read loop reacts to message type" shape, and on
// RespondConnect/RespondCreateStream/RespondPlay (rtmp_session_utils.go) for
// the command names and payload shapes, inverted here since the teacher
// never plays the requester role the spec's client needs.
package client

import (
	"io"
	"time"

	"github.com/AgustinSRG/rtmp-publish-core/rtmp"
)

// Config is the client's session configuration, per §6.
type Config struct {
	App              string
	TcUrl            string
	Playpath         string
	FlashVer         string
	SignedHandshake  bool
	DefaultChunkSize uint32
	AwaitDuration    time.Duration
}

func (c *Config) setDefaults() {
	if c.DefaultChunkSize == 0 {
		c.DefaultChunkSize = rtmp.DefaultChunkSize
	}
	if c.FlashVer == "" {
		c.FlashVer = "FMLE/3.0 (compatible; Lavf 60.10.100)"
	}
}

// Source is the FLV tag source the caller supplies, per §6's source
// interface: NextTag returns ok=false (with err=nil) to terminate the
// publish loop cleanly.
type Source interface {
	NextTag() (tag rtmp.Tag, ok bool, err error)
}

// Client is a connected, fully set-up publisher: handshake and the
// connect/releaseStream/FCPublish/createStream/publish sequence have all
// completed by the time Connect returns.
type Client struct {
	conn    io.ReadWriteCloser
	session *rtmp.Session
	cfg     Config
}

// Connect performs the handshake and the full setup sequence over conn,
// returning a Client ready for Publish.
func Connect(conn io.ReadWriteCloser, cfg Config) (*Client, error) {
	cfg.setDefaults()

	if err := rtmp.ClientHandshake(conn, cfg.SignedHandshake); err != nil {
		return nil, err
	}

	chunks := rtmp.NewChunkIO(conn, conn)
	chunks.SetSendChunkSize(cfg.DefaultChunkSize)
	chunks.SetRecvChunkSize(cfg.DefaultChunkSize)

	session := rtmp.NewSession(chunks)
	session.Signed = cfg.SignedHandshake
	session.App = cfg.App
	session.TcUrl = cfg.TcUrl
	session.Playpath = cfg.Playpath

	c := &Client{conn: conn, session: session, cfg: cfg}

	setup := rtmp.ChainAll(
		c.sendConnect,
		c.sendReleaseStream,
		c.sendFCPublish,
		c.sendCreateStream,
		c.awaitStreamBegin,
		c.sendPublish,
	)
	if err := setup(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) writeCommand(cmd *rtmp.Command) error {
	return c.session.Chunks.WriteMessage(rtmp.ChunkIDCommand, rtmp.MsgCommand, 0, 0, rtmp.EncodeCommand(cmd))
}

// readCommand reads messages until a Command message arrives, applying any
// control messages (chunk-size renegotiation) it sees along the way.
func (c *Client) readCommand() (*rtmp.Command, error) {
	for {
		msg, err := c.session.Chunks.ReadMessage()
		if err != nil {
			return nil, err
		}
		switch msg.Type {
		case rtmp.MsgCommand:
			return rtmp.DecodeCommand(msg.Payload)
		case rtmp.MsgSetChunkSize:
			if size, ok := rtmp.ParseUint32Payload(msg.Payload); ok {
				c.session.Chunks.SetRecvChunkSize(size)
			}
		default:
			// Control/media messages arriving during setup are ignored.
		}
	}
}

func (c *Client) sendConnect() error {
	txn := c.session.NextTransactionID()
	if err := c.writeCommand(rtmp.NewConnectCommand(txn, c.cfg.App, c.cfg.FlashVer, c.cfg.TcUrl)); err != nil {
		return err
	}
	resp, err := c.readCommand()
	if err != nil {
		return err
	}
	if resp.IsErrorStatus() {
		return resp.StatusError()
	}
	if resp.Name != "_result" {
		return rtmp.NewError(rtmp.KindInvalidData, "client: expected _result for connect")
	}
	return c.session.Advance(rtmp.StatusConnected)
}

func (c *Client) sendReleaseStream() error {
	txn := c.session.NextTransactionID()
	if err := c.writeCommand(rtmp.NewReleaseStreamCommand(txn, c.cfg.Playpath)); err != nil {
		return err
	}
	resp, err := c.readCommand()
	if err != nil {
		return err
	}
	if resp.IsErrorStatus() {
		return resp.StatusError()
	}
	return c.session.Advance(rtmp.StatusReleased)
}

func (c *Client) sendFCPublish() error {
	txn := c.session.NextTransactionID()
	if err := c.writeCommand(rtmp.NewFCPublishCommand(txn, c.cfg.Playpath)); err != nil {
		return err
	}
	resp, err := c.readCommand()
	if err != nil {
		return err
	}
	if resp.IsErrorStatus() {
		return resp.StatusError()
	}
	if resp.Name != "onFCPublish" {
		return rtmp.NewError(rtmp.KindInvalidData, "client: expected onFCPublish")
	}
	return c.session.Advance(rtmp.StatusFcPublished)
}

func (c *Client) sendCreateStream() error {
	txn := c.session.NextTransactionID()
	if err := c.writeCommand(rtmp.NewCreateStreamCommand(txn)); err != nil {
		return err
	}
	resp, err := c.readCommand()
	if err != nil {
		return err
	}
	if resp.IsErrorStatus() {
		return resp.StatusError()
	}
	if resp.Name != "_result" || len(resp.Args) < 2 {
		return rtmp.NewError(rtmp.KindInvalidData, "client: malformed createStream result")
	}
	c.session.MessageStreamID = uint32(resp.Args[1].Number())
	return c.session.Advance(rtmp.StatusCreated)
}

func (c *Client) awaitStreamBegin() error {
	for {
		msg, err := c.session.Chunks.ReadMessage()
		if err != nil {
			return err
		}
		if msg.Type != rtmp.MsgUserControl {
			continue
		}
		eventType, _, ok := rtmp.ParseUserControlStreamBegin(msg.Payload)
		if ok && eventType == rtmp.UserControlStreamBegin {
			return c.session.Advance(rtmp.StatusBegan)
		}
	}
}

func (c *Client) sendPublish() error {
	txn := c.session.NextTransactionID()
	if err := c.writeCommand(rtmp.NewPublishCommand(txn, c.cfg.Playpath)); err != nil {
		return err
	}
	resp, err := c.readCommand()
	if err != nil {
		return err
	}
	if resp.IsErrorStatus() {
		return resp.StatusError()
	}
	if resp.Name != "onStatus" {
		return rtmp.NewError(rtmp.KindInvalidData, "client: expected onStatus for publish")
	}
	return c.session.Advance(rtmp.StatusPublished)
}

func chunkIDForTag(tagType byte) uint32 {
	switch tagType {
	case rtmp.TagAudio:
		return rtmp.ChunkIDAudio
	case rtmp.TagVideo:
		return rtmp.ChunkIDVideo
	default:
		return rtmp.ChunkIDData
	}
}

// scriptDataFrameName is the AMF0 string an encoder prepends to a
// script-data tag's body on the wire (stripped by the receiver, per §4.5).
const scriptDataFrameName = "@setDataFrame"

func (c *Client) sendTag(tag rtmp.Tag) error {
	payload := tag.Data
	if tag.Type == rtmp.TagScript {
		marker := rtmp.EncodeAMF0(rtmp.StringValue(scriptDataFrameName))
		payload = append(append([]byte(nil), marker...), tag.Data...)
	}
	return c.session.Chunks.WriteMessage(chunkIDForTag(tag.Type), tag.Type, c.session.MessageStreamID, tag.Timestamp, payload)
}

// Publish streams every tag source yields until it reports clean
// exhaustion, or an error terminates the connection. Clean exhaustion
// returns nil. On any fatal error other than clean exhaustion, the required
// teardown commands (§4.4, Scenario F) are sent before the connection is
// closed.
func (c *Client) Publish(source Source) error {
	media := rtmp.WhileOk(nil, func() error {
		tag, ok, err := source.NextTag()
		if err != nil {
			return rtmp.WrapError(rtmp.KindIO, err)
		}
		if !ok {
			return rtmp.ErrStreamExhausted
		}
		return c.sendTag(tag)
	})

	err := rtmp.MapErr(media, c.teardown)()
	if rtmp.IsKind(err, rtmp.KindStreamExhausted) {
		return nil
	}
	return err
}

func (c *Client) teardown(cause error) error {
	if c.session.NeedsFCUnpublish() {
		txn := c.session.NextTransactionID()
		_ = c.writeCommand(rtmp.NewFCUnpublishCommand(txn, c.cfg.Playpath))
	}
	if c.session.NeedsDeleteStream() {
		txn := c.session.NextTransactionID()
		_ = c.writeCommand(rtmp.NewDeleteStreamCommand(txn, c.session.MessageStreamID))
	}
	_ = c.conn.Close()
	return cause
}

// Close closes the underlying connection without sending teardown
// commands, for callers that already know the session ended cleanly.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Session exposes the client's protocol state, mostly for tests and
// logging.
func (c *Client) Session() *rtmp.Session {
	return c.session
}
