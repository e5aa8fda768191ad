// Remote session termination over a Redis pub/sub channel: an operator (or
// another process) publishes a short command string, and the matching
// publish session is killed.
//
// Grounded on redis_cmds.go's setupRedisCommandReceiver/parseRedisCommand,
// generalized from free functions closing over a *RTMPServer into a
// Listener closing over a caller-supplied Killer.
package remotekill

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Killer is implemented by whatever tracks live publish sessions, keyed by
// channel name.
type Killer interface {
	// Kill ends the session publishing on channel, if one exists. If
	// streamID is non-empty, the kill only applies when it matches the
	// session's current stream id (the close-stream command's semantics).
	Kill(channel, streamID string)
}

// Config configures the Redis connection and channel to subscribe to.
type Config struct {
	Host     string
	Port     string
	Password string
	Channel  string
	TLS      bool
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == "" {
		c.Port = "6379"
	}
	if c.Channel == "" {
		c.Channel = "rtmp_commands"
	}
}

// Listener subscribes to a Redis channel and dispatches kill-session/
// close-stream commands to a Killer until its context is cancelled.
type Listener struct {
	cfg    Config
	killer Killer
	onErr  func(error)
}

// New builds a Listener. onErr, if non-nil, is called with transient
// connection errors as the listener retries.
func New(cfg Config, killer Killer, onErr func(error)) *Listener {
	cfg.setDefaults()
	if onErr == nil {
		onErr = func(error) {}
	}
	return &Listener{cfg: cfg, killer: killer, onErr: onErr}
}

// Run subscribes and dispatches commands until ctx is cancelled, retrying
// the connection every 10 seconds on failure, matching the teacher's
// reconnect pacing.
func (l *Listener) Run(ctx context.Context) {
	opts := &redis.Options{
		Addr:     l.cfg.Host + ":" + l.cfg.Port,
		Password: l.cfg.Password,
	}
	if l.cfg.TLS {
		opts.TLSConfig = &tls.Config{}
	}

	client := redis.NewClient(opts)
	defer client.Close()

	sub := client.Subscribe(ctx, l.cfg.Channel)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.onErr(err)
			time.Sleep(10 * time.Second)
			continue
		}
		l.dispatch(msg.Payload)
	}
}

// dispatch parses one command of the form "name>arg1|arg2" and applies it.
// Malformed input is reported through onErr and otherwise ignored, matching
// the teacher's parseRedisCommand tolerance for bad input on a shared
// channel.
func (l *Listener) dispatch(cmd string) {
	parts := strings.SplitN(cmd, ">", 2)
	if len(parts) != 2 {
		l.onErr(errors.New("remotekill: malformed command: " + cmd))
		return
	}

	name := parts[0]
	args := strings.Split(parts[1], "|")

	switch name {
	case "kill-session":
		if len(args) < 1 || args[0] == "" {
			l.onErr(errors.New("remotekill: kill-session missing channel: " + cmd))
			return
		}
		l.killer.Kill(args[0], "")
	case "close-stream":
		if len(args) < 2 {
			l.onErr(errors.New("remotekill: close-stream missing arguments: " + cmd))
			return
		}
		l.killer.Kill(args[0], args[1])
	default:
		l.onErr(errors.New("remotekill: unknown command: " + name))
	}
}
