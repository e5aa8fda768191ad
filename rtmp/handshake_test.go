package rtmp

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func TestHandshakeUnsigned(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientErr := make(chan error, 1)
	serverErr := make(chan bool, 1)
	serverErrCh := make(chan error, 1)

	go func() {
		clientErr <- ClientHandshake(clientConn, false)
	}()
	go func() {
		signed, err := ServerHandshake(serverConn)
		serverErr <- signed
		serverErrCh <- err
	}()

	select {
	case err := <-clientErr:
		if err != nil {
			t.Fatalf("client handshake failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client handshake timed out")
	}

	select {
	case err := <-serverErrCh:
		if err != nil {
			t.Fatalf("server handshake failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server handshake timed out")
	}

	if signed := <-serverErr; signed {
		t.Fatalf("expected unsigned handshake detection")
	}
}

func TestHandshakeSigned(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientErr := make(chan error, 1)
	serverSigned := make(chan bool, 1)
	serverErrCh := make(chan error, 1)

	go func() {
		clientErr <- ClientHandshake(clientConn, true)
	}()
	go func() {
		signed, err := ServerHandshake(serverConn)
		serverSigned <- signed
		serverErrCh <- err
	}()

	select {
	case err := <-clientErr:
		if err != nil {
			t.Fatalf("client handshake failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("client handshake timed out")
	}

	select {
	case err := <-serverErrCh:
		if err != nil {
			t.Fatalf("server handshake failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server handshake timed out")
	}

	if signed := <-serverSigned; !signed {
		t.Fatalf("expected signed handshake detection")
	}
}

func TestHandshakeSignedRejectsTamperedDigest(t *testing.T) {
	// Build a client C1 with a corrupted digest and confirm the server
	// detects it without needing a live client.
	c1, err := newRandomBlock(latestClientVersion)
	if err != nil {
		t.Fatalf("newRandomBlock: %v", err)
	}
	offset := clientDigestOffset(c1)
	imprintDigest(c1, offset, []byte(clientKey))
	c1[offset] ^= 0xff // corrupt one digest byte

	if verifyDigest(c1, offset, []byte(clientKey)) {
		t.Fatalf("expected corrupted digest to fail verification")
	}
}

func TestHandshakeEchoSignatureZeroAccepted(t *testing.T) {
	ours, err := newRandomBlock(latestClientVersion)
	if err != nil {
		t.Fatalf("newRandomBlock: %v", err)
	}
	offset := clientDigestOffset(ours)
	imprintDigest(ours, offset, []byte(clientKey))

	echo := make([]byte, handshakeSize)
	copy(echo, bytes.Repeat([]byte{0x01}, handshakeSize))
	copy(echo[handshakeSize-digestSize:], make([]byte, digestSize)) // zero signature

	if !verifyEchoSignature(echo, ours, offset, clientKeyFull) {
		t.Fatalf("expected zero signature to be accepted for FFmpeg interop")
	}
}
