// Session context: the per-connection protocol state shared by the client
// and server command sequencers and the chunk transport.
//
// Grounded on the teacher's RTMPSession (rtmp_session.go), which bundles
// chunk-stream maps, negotiated sizes, bandwidth state and connection
// metadata into one struct that every handler method receives as its
// receiver. This session drops everything play/relay/GOP-cache related
// (out of scope here) and adds the publisher-status ordering the teacher
// never modeled, since the teacher is a relay server and has no publisher
// state machine of its own to track beyond "is this client publishing".

package rtmp

// PublisherStatus is the ordered state of a publishing session. Ordering is
// used to decide which teardown commands to send on a fatal error.
type PublisherStatus int

const (
	StatusIdle PublisherStatus = iota
	StatusConnected
	StatusReleased
	StatusFcPublished
	StatusCreated
	StatusBegan
	StatusPublished
)

func (s PublisherStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnected:
		return "connected"
	case StatusReleased:
		return "released"
	case StatusFcPublished:
		return "fc-published"
	case StatusCreated:
		return "created"
	case StatusBegan:
		return "began"
	case StatusPublished:
		return "published"
	default:
		return "unknown"
	}
}

// Session is the shared protocol state for one connection, referenced by
// both the command sequencer and the media loop. Its lifetime equals the
// TCP connection.
type Session struct {
	Chunks *ChunkIO

	Signed bool

	App             string
	TcUrl           string
	Playpath        string
	MessageStreamID uint32

	Status PublisherStatus

	AckWindow      uint32
	lastAckedBytes uint64

	txnCounter int64
}

func NewSession(chunks *ChunkIO) *Session {
	return &Session{Chunks: chunks}
}

// NextTransactionID assigns the next monotonically increasing transaction
// id for a request this session originates.
func (s *Session) NextTransactionID() int64 {
	s.txnCounter++
	return s.txnCounter
}

// Advance enforces invariant 6 (status monotonicity): it only succeeds if
// next is strictly greater than the current status.
func (s *Session) Advance(next PublisherStatus) error {
	if next <= s.Status {
		return NewError(KindOther, "session: non-monotonic status transition")
	}
	s.Status = next
	return nil
}

// NeedsFCUnpublish reports whether teardown must include FCUnpublish, per
// §4.4's teardown rule (status >= FcPublished).
func (s *Session) NeedsFCUnpublish() bool {
	return s.Status >= StatusFcPublished
}

// NeedsDeleteStream reports whether teardown must include deleteStream, per
// §4.4's teardown rule (status >= Created).
func (s *Session) NeedsDeleteStream() bool {
	return s.Status >= StatusCreated
}

// MaybeAcknowledge is the acknowledgement middleware of §4.2: it compares
// the chunk transport's cumulative received-byte count against the
// declared bandwidth window and, once exceeded, sends an Acknowledgement
// and resets the window. Intended to run as the middleware half of a Wrap
// around the command+media loop, so it is transparent to handlers.
func (s *Session) MaybeAcknowledge() error {
	if s.AckWindow == 0 {
		return nil
	}
	total := s.Chunks.BytesRead()
	if total-s.lastAckedBytes < uint64(s.AckWindow) {
		return nil
	}
	if err := s.Chunks.WriteAcknowledgement(uint32(total)); err != nil {
		return err
	}
	s.lastAckedBytes = total
	return nil
}
