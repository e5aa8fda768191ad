// Start/stop publish notifications: a signed JWT carried in a request
// header, POSTed to an operator-configured URL.
//
// Grounded on rtmp_callback.go's SendStartCallback/SendStopCallback. The
// teacher imports github.com/golang-jwt/jwt (v4) here while control_auth.go
// imports .../jwt/v5 for the coordinator handshake token — two major
// versions of the same library in one module. This package standardizes on
// v5, the version the module's go.mod actually declares.
package webhook

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenLifetime = 120 * time.Second

// Notifier POSTs signed start/stop events for a publish session.
type Notifier struct {
	Secret      string
	URL         string
	Subject     string
	Client      *http.Client
}

// New builds a Notifier. An empty URL makes every call a no-op, matching
// the teacher's "CALLBACK_URL not set -> no callback" short-circuit.
func New(secret, url, subject string) *Notifier {
	if subject == "" {
		subject = "rtmp_event"
	}
	return &Notifier{Secret: secret, URL: url, Subject: subject, Client: &http.Client{}}
}

func (n *Notifier) sign(claims jwt.MapClaims) (string, error) {
	claims["exp"] = time.Now().Add(tokenLifetime).Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(n.Secret))
}

func (n *Notifier) post(token string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, n.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("rtmp-event", token)
	return n.Client.Do(req)
}

// StartEvent reports the start of a publish and returns the stream id the
// remote end assigns, read from the response's stream-id header.
func (n *Notifier) StartEvent(channel, key, clientIP, rtmpHost string, rtmpPort int) (string, error) {
	if n.URL == "" {
		return "", nil
	}

	token, err := n.sign(jwt.MapClaims{
		"sub":       n.Subject,
		"event":     "start",
		"channel":   channel,
		"key":       key,
		"client_ip": clientIP,
		"rtmp_host": rtmpHost,
		"rtmp_port": rtmpPort,
	})
	if err != nil {
		return "", err
	}

	res, err := n.post(token)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("webhook: start callback returned status %d", res.StatusCode)
	}
	return res.Header.Get("stream-id"), nil
}

// StopEvent reports the end of a publish.
func (n *Notifier) StopEvent(channel, key, streamID, clientIP string) error {
	if n.URL == "" {
		return nil
	}

	token, err := n.sign(jwt.MapClaims{
		"sub":       n.Subject,
		"event":     "stop",
		"channel":   channel,
		"key":       key,
		"stream_id": streamID,
		"client_ip": clientIP,
	})
	if err != nil {
		return err
	}

	res, err := n.post(token)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("webhook: stop callback returned status %d", res.StatusCode)
	}
	return nil
}
