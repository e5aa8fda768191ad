package server_test

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/AgustinSRG/rtmp-publish-core/rtmp"
	"github.com/AgustinSRG/rtmp-publish-core/rtmp/client"
	"github.com/AgustinSRG/rtmp-publish-core/rtmp/server"
)

type fakeSource struct {
	tags     []rtmp.Tag
	i        int
	failAt   int // -1 means never fail
	failErr  error
}

func (f *fakeSource) NextTag() (rtmp.Tag, bool, error) {
	if f.failAt >= 0 && f.i == f.failAt {
		return rtmp.Tag{}, false, f.failErr
	}
	if f.i >= len(f.tags) {
		return rtmp.Tag{}, false, nil
	}
	t := f.tags[f.i]
	f.i++
	return t, true, nil
}

type fakeSink struct {
	tags []rtmp.Tag
}

func (f *fakeSink) AppendTag(tag rtmp.Tag) error {
	f.tags = append(f.tags, rtmp.Tag{Type: tag.Type, Timestamp: tag.Timestamp, Data: append([]byte(nil), tag.Data...)})
	return nil
}

func sampleTags() []rtmp.Tag {
	return []rtmp.Tag{
		{Type: rtmp.TagVideo, Timestamp: 0, Data: []byte{0x17, 0x00, 0x00, 0x00, 0x00, 0xde, 0xad}},
		{Type: rtmp.TagAudio, Timestamp: 40, Data: []byte{0xaf, 0x01, 0x11, 0x22}},
		{Type: rtmp.TagVideo, Timestamp: 80, Data: []byte{0x27, 0x01, 0x00, 0x00, 0x00, 0xbe, 0xef}},
	}
}

func TestClientServerPublishEndToEnd(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	sink := &fakeSink{}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Serve(serverConn, server.Config{}, func(playpath string) (server.Sink, error) {
			if playpath != "mystream" {
				t.Errorf("expected playpath 'mystream', got %q", playpath)
			}
			return sink, nil
		})
	}()

	clientErr := make(chan error, 1)
	go func() {
		c, err := client.Connect(clientConn, client.Config{
			App:      "live",
			TcUrl:    "rtmp://host/live",
			Playpath: "mystream",
		})
		if err != nil {
			clientErr <- err
			return
		}
		src := &fakeSource{tags: sampleTags(), failAt: -1}
		if err := c.Publish(src); err != nil {
			clientErr <- err
			return
		}
		clientErr <- c.Close()
	}()

	select {
	case err := <-clientErr:
		if err != nil {
			t.Fatalf("client: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client timed out")
	}

	select {
	case err := <-serverErr:
		// The client closes the connection directly after a clean
		// exhaustion (no teardown commands), so the server's next read
		// surfaces as an I/O error; that is expected here.
		if err != nil && !rtmp.IsKind(err, rtmp.KindIO) {
			t.Fatalf("server: unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server timed out")
	}

	want := sampleTags()
	if len(sink.tags) != len(want) {
		t.Fatalf("expected %d tags persisted, got %d", len(want), len(sink.tags))
	}
	for i, tag := range sink.tags {
		if tag.Type != want[i].Type || tag.Timestamp != want[i].Timestamp {
			t.Fatalf("tag %d header mismatch: got %+v want %+v", i, tag, want[i])
		}
		if string(tag.Data) != string(want[i].Data) {
			t.Fatalf("tag %d data mismatch: got %v want %v", i, tag.Data, want[i].Data)
		}
	}
}

func TestClientServerTeardownOnMidPublishError(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	sink := &fakeSink{}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Serve(serverConn, server.Config{}, func(playpath string) (server.Sink, error) {
			return sink, nil
		})
	}()

	clientErr := make(chan error, 1)
	go func() {
		c, err := client.Connect(clientConn, client.Config{
			App:      "live",
			TcUrl:    "rtmp://host/live",
			Playpath: "mystream",
		})
		if err != nil {
			clientErr <- err
			return
		}
		src := &fakeSource{tags: sampleTags()[:1], failAt: 1, failErr: errors.New("disk read failure")}
		clientErr <- c.Publish(src)
	}()

	select {
	case err := <-clientErr:
		if !rtmp.IsKind(err, rtmp.KindIO) {
			t.Fatalf("expected a KindIO error from Publish, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client timed out")
	}

	select {
	case err := <-serverErr:
		if !rtmp.IsKind(err, rtmp.KindStreamExhausted) {
			t.Fatalf("expected server to see a clean deleteStream-triggered end, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server timed out")
	}

	if len(sink.tags) != 1 {
		t.Fatalf("expected exactly 1 tag persisted before teardown, got %d", len(sink.tags))
	}
}

func TestServerMediaReadTimeout(t *testing.T) {
	clientConn, serverConn := net.Pipe()

	sink := &fakeSink{}
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Serve(serverConn, server.Config{AwaitDuration: 50 * time.Millisecond}, func(playpath string) (server.Sink, error) {
			return sink, nil
		})
	}()

	go func() {
		c, err := client.Connect(clientConn, client.Config{
			App:      "live",
			TcUrl:    "rtmp://host/live",
			Playpath: "mystream",
		})
		if err != nil {
			return
		}
		// Go silent past the server's await duration, then close.
		time.Sleep(300 * time.Millisecond)
		_ = c.Close()
	}()

	select {
	case err := <-serverErr:
		if !rtmp.IsKind(err, rtmp.KindIO) {
			t.Fatalf("expected a KindIO read-deadline error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not time out on a silent publisher")
	}
}
