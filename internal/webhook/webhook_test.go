package webhook

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

func TestNotifierNoopWithoutURL(t *testing.T) {
	n := New("secret", "", "")
	id, err := n.StartEvent("live", "key", "1.2.3.4", "host", 1935)
	if err != nil || id != "" {
		t.Fatalf("expected a silent no-op, got id=%q err=%v", id, err)
	}
}

func TestNotifierStartEventSignsAndReturnsStreamID(t *testing.T) {
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("rtmp-event")
		w.Header().Set("stream-id", "abc123")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := New("secret", srv.URL, "")
	id, err := n.StartEvent("live", "key", "1.2.3.4", "host", 1935)
	if err != nil {
		t.Fatalf("StartEvent: %v", err)
	}
	if id != "abc123" {
		t.Fatalf("expected stream id abc123, got %q", id)
	}

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(gotToken, claims)
	if err != nil {
		t.Fatalf("parsing signed token: %v", err)
	}
	if claims["event"] != "start" || claims["channel"] != "live" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestNotifierStopEventErrorsOnNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New("secret", srv.URL, "")
	if err := n.StopEvent("live", "key", "abc123", "1.2.3.4"); err == nil {
		t.Fatal("expected an error from a non-200 response")
	}
}
