// Process-wide publisher bookkeeping: the channel→session registry the
// core's scheduling model says must live "behind a process-wide
// coordinator" rather than inside any one connection's context.
//
// Grounded on rtmp_server.go's sessions/channels maps and RTMPServer.Kill*
// methods, generalized to close over the connection instead of an
// RTMPSession.
package main

import (
	"io"
	"sync"
)

type publisherHandle struct {
	channel  string
	streamID string
	conn     io.Closer
}

// registry tracks one live publisher per channel name, so the remote-kill
// and coordinator links can find a connection to close by channel.
type registry struct {
	mu      sync.Mutex
	byChan  map[string]*publisherHandle
}

func newRegistry() *registry {
	return &registry{byChan: make(map[string]*publisherHandle)}
}

func (r *registry) register(channel, streamID string, conn io.Closer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byChan[channel] = &publisherHandle{channel: channel, streamID: streamID, conn: conn}
}

func (r *registry) unregister(channel string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byChan, channel)
}

// Kill implements remotekill.Killer and coordinator's STREAM-KILL dispatch:
// it closes the channel's connection, optionally only when streamID
// matches the one currently registered.
func (r *registry) Kill(channel, streamID string) {
	r.mu.Lock()
	h := r.byChan[channel]
	r.mu.Unlock()

	if h == nil {
		return
	}
	if streamID != "" && streamID != "*" && streamID != h.streamID {
		return
	}
	_ = h.conn.Close()
}

// KillAll closes every registered publisher, used when a coordinator
// reconnects and assumes every session it doesn't already know about is
// stale.
func (r *registry) KillAll() {
	r.mu.Lock()
	handles := make([]*publisherHandle, 0, len(r.byChan))
	for _, h := range r.byChan {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		_ = h.conn.Close()
	}
}
