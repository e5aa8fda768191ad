// Optional control-plane connection: a websocket link to a coordinator
// service that approves publish requests and can remotely kill a stream,
// speaking a small RPC-message protocol over the wire.
//
// Grounded on control_connection.go's ControlServerConnection
// (Connect/RunReaderLoop/ParseIncomingMessage/RequestPublish/PublishEnd/
// RunHeartBeatLoop) and control_auth.go's MakeWebsocketAuthenticationToken,
// generalized from methods closing over a *RTMPServer into callbacks the
// caller supplies.
package coordinator

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	messages "github.com/AgustinSRG/go-simple-rpc-message"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

// PublishResponse is the coordinator's verdict on a publish request.
type PublishResponse struct {
	Accepted bool
	StreamID string
}

type pendingRequest struct {
	waiter chan PublishResponse
}

// Options configures the connection and the hooks the caller wants invoked.
type Options struct {
	BaseURL      string
	Secret       string // signs the connection's auth token, via JWT HS256
	ExternalIP   string
	ExternalPort string
	ExternalSSL  bool

	// OnReconnect fires once a fresh connection is established: any
	// publisher this process still thinks is live must be killed, since
	// the coordinator believes the process restarted.
	OnReconnect func()

	// OnStreamKill fires when the coordinator asks for a channel's
	// publisher to be killed. streamID is "" or "*" for "any session".
	OnStreamKill func(channel, streamID string)

	Log func(line string)
}

// Connection is a reconnecting websocket link to a coordinator service. A
// zero-value Options.BaseURL puts it in stand-alone mode: every call
// succeeds trivially without talking to anything.
type Connection struct {
	opts Options

	connectionURL string

	mu            sync.Mutex
	conn          *websocket.Conn
	nextRequestID uint64
	requests      map[string]*pendingRequest
	enabled       bool
}

// New builds a Connection from Options. Call Start to begin connecting.
func New(opts Options) (*Connection, error) {
	c := &Connection{opts: opts, requests: make(map[string]*pendingRequest)}

	if opts.BaseURL == "" {
		c.enabled = false
		return c, nil
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("coordinator: invalid base url: %w", err)
	}
	path, _ := url.Parse("/ws/control/rtmp")
	c.connectionURL = base.ResolveReference(path).String()
	c.enabled = true
	return c, nil
}

func (c *Connection) log(line string) {
	if c.opts.Log != nil {
		c.opts.Log(line)
	}
}

func (c *Connection) authToken() string {
	if c.opts.Secret == "" {
		return ""
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "rtmp-control"})
	signed, err := token.SignedString([]byte(c.opts.Secret))
	if err != nil {
		c.log("coordinator: failed to sign auth token: " + err.Error())
		return ""
	}
	return signed
}

// Start begins connecting (and reconnecting) in the background. A no-op in
// stand-alone mode.
func (c *Connection) Start() {
	if !c.enabled {
		return
	}
	go c.connect()
	go c.heartbeatLoop()
}

func (c *Connection) connect() {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return
	}

	headers := http.Header{}
	if tok := c.authToken(); tok != "" {
		headers.Set("x-control-auth-token", tok)
	}
	if c.opts.ExternalIP != "" {
		headers.Set("x-external-ip", c.opts.ExternalIP)
	}
	if c.opts.ExternalPort != "" {
		headers.Set("x-custom-port", c.opts.ExternalPort)
	}
	if c.opts.ExternalSSL {
		headers.Set("x-ssl-use", "true")
	}

	conn, _, err := websocket.DefaultDialer.Dial(c.connectionURL, headers)
	if err != nil {
		c.mu.Unlock()
		c.log("coordinator: connection error: " + err.Error())
		go c.reconnectAfterDelay()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	if c.opts.OnReconnect != nil {
		c.opts.OnReconnect()
	}

	go c.readLoop(conn)
}

func (c *Connection) reconnectAfterDelay() {
	time.Sleep(10 * time.Second)
	c.connect()
}

func (c *Connection) onDisconnect(err error) {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	c.log("coordinator: disconnected: " + err.Error())
	go c.connect()
}

func (c *Connection) send(msg messages.RPCMessage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return false
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(msg.Serialize())) == nil
}

func (c *Connection) nextRequestIDStr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextRequestID
	c.nextRequestID++
	return fmt.Sprint(id)
}

func (c *Connection) readLoop(conn *websocket.Conn) {
	for {
		if err := conn.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
			conn.Close()
			c.onDisconnect(err)
			return
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			c.onDisconnect(err)
			return
		}
		msg := messages.ParseRPCMessage(string(raw))
		c.dispatch(&msg)
	}
}

func (c *Connection) dispatch(msg *messages.RPCMessage) {
	switch msg.Method {
	case "ERROR":
		c.log("coordinator: remote error " + msg.GetParam("Error-Code") + ": " + msg.GetParam("Error-Message"))
	case "PUBLISH-ACCEPT":
		c.resolveRequest(msg.GetParam("Request-Id"), PublishResponse{Accepted: true, StreamID: msg.GetParam("Stream-Id")})
	case "PUBLISH-DENY":
		c.resolveRequest(msg.GetParam("Request-Id"), PublishResponse{Accepted: false})
	case "STREAM-KILL":
		if c.opts.OnStreamKill != nil {
			c.opts.OnStreamKill(msg.GetParam("Stream-Channel"), msg.GetParam("Stream-Id"))
		}
	}
}

func (c *Connection) resolveRequest(requestID string, res PublishResponse) {
	c.mu.Lock()
	req := c.requests[requestID]
	c.mu.Unlock()
	if req == nil {
		return
	}
	req.waiter <- res
}

func (c *Connection) heartbeatLoop() {
	for {
		time.Sleep(20 * time.Second)
		c.send(messages.RPCMessage{Method: "HEARTBEAT"})
	}
}

// RequestPublish asks the coordinator whether channel/key may publish,
// blocking up to 20 seconds for a verdict. In stand-alone mode it always
// accepts.
func (c *Connection) RequestPublish(channel, key, userIP string) PublishResponse {
	if !c.enabled {
		return PublishResponse{Accepted: true}
	}

	requestID := c.nextRequestIDStr()
	req := &pendingRequest{waiter: make(chan PublishResponse, 1)}

	c.mu.Lock()
	c.requests[requestID] = req
	c.mu.Unlock()

	sent := c.send(messages.RPCMessage{Method: "PUBLISH-REQUEST", Params: map[string]string{
		"Request-ID":    requestID,
		"Stream-Channel": channel,
		"Stream-Key":     key,
		"User-IP":        userIP,
	}})
	if !sent {
		c.mu.Lock()
		delete(c.requests, requestID)
		c.mu.Unlock()
		return PublishResponse{Accepted: false}
	}

	timer := time.AfterFunc(20*time.Second, func() {
		req.waiter <- PublishResponse{Accepted: false}
	})

	res := <-req.waiter
	timer.Stop()

	c.mu.Lock()
	delete(c.requests, requestID)
	c.mu.Unlock()

	return res
}

// PublishEnd notifies the coordinator that a publish session ended.
func (c *Connection) PublishEnd(channel, streamID string) bool {
	if !c.enabled {
		return true
	}
	return c.send(messages.RPCMessage{Method: "PUBLISH-END", Params: map[string]string{
		"Stream-Channel": channel,
		"Stream-ID":      streamID,
	}})
}
