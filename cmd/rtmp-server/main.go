// RTMP publish-ingest server binary: TCP listener, per-IP admission,
// lifecycle webhook, optional coordinator and remote-kill links, wired
// around the protocol core in rtmp/server.
//
// Grounded on the teacher's main.go/rtmp_server.go for the overall
// "create server, accept loop, one goroutine per connection" shape.
package main

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"strconv"

	"github.com/AgustinSRG/rtmp-publish-core/internal/config"
	"github.com/AgustinSRG/rtmp-publish-core/internal/coordinator"
	"github.com/AgustinSRG/rtmp-publish-core/internal/flvfile"
	"github.com/AgustinSRG/rtmp-publish-core/internal/ipguard"
	"github.com/AgustinSRG/rtmp-publish-core/internal/remotekill"
	"github.com/AgustinSRG/rtmp-publish-core/internal/rtmplog"
	"github.com/AgustinSRG/rtmp-publish-core/internal/webhook"
	"github.com/AgustinSRG/rtmp-publish-core/rtmp/server"
)

func main() {
	config.LoadDotEnv()
	cfg := config.ServerConfigFromEnv()
	log := rtmplog.New()

	log.Info(fmt.Sprintf("RTMP server starting on %s:%d", cfg.BindAddress, cfg.Port))

	guard := ipguard.New(cfg.MaxIPConnections, cfg.ConcurrentWhitelist)
	notifier := webhook.New(cfg.JWTSecret, cfg.CallbackURL, cfg.JWTSubject)
	reg := newRegistry()

	coord, err := coordinator.New(coordinator.Options{
		BaseURL:      cfg.ControlBaseURL,
		Secret:       cfg.ControlSecret,
		OnReconnect:  reg.KillAll,
		OnStreamKill: reg.Kill,
		Log:          log.Info,
	})
	if err != nil {
		log.Error(err)
		return
	}
	coord.Start()

	if cfg.RedisEnabled {
		listener := remotekill.New(remotekill.Config{
			Host:     cfg.RedisHost,
			Port:     cfg.RedisPort,
			Password: cfg.RedisPassword,
			Channel:  cfg.RedisChannel,
			TLS:      cfg.RedisTLS,
		}, reg, log.Error)
		go listener.Run(context.Background())
	}

	ln, err := net.Listen("tcp", cfg.BindAddress+":"+strconv.Itoa(cfg.Port))
	if err != nil {
		log.Error(err)
		return
	}
	defer ln.Close()

	sessionID := uint64(0)
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Error(err)
			continue
		}
		sessionID++
		go handleConn(conn, sessionID, cfg, log, guard, notifier, coord, reg)
	}
}

func handleConn(conn net.Conn, sessionID uint64, cfg config.ServerConfig, log *rtmplog.Logger, guard *ipguard.Guard, notifier *webhook.Notifier, coord *coordinator.Connection, reg *registry) {
	remoteIP, _, _ := net.SplitHostPort(conn.RemoteAddr().String())

	if !guard.CanPublish(remoteIP) {
		log.Session(sessionID, remoteIP, "rejected: too many concurrent connections")
		conn.Close()
		return
	}
	defer guard.Release(remoteIP)

	log.Session(sessionID, remoteIP, "connected")
	defer log.Session(sessionID, remoteIP, "disconnected")

	var channel, streamID string
	var sink *flvfile.Sink

	srvCfg := server.Config{
		DefaultChunkSize: cfg.DefaultChunkSize,
		WindowAckSize:    cfg.WindowAckSize,
	}

	err := server.Serve(conn, srvCfg, func(playpath string) (server.Sink, error) {
		channel = playpath

		res := coord.RequestPublish(channel, channel, remoteIP)
		if !res.Accepted {
			return nil, fmt.Errorf("publish request denied for channel %q", channel)
		}
		streamID = res.StreamID

		id, err := notifier.StartEvent(channel, channel, remoteIP, cfg.BindAddress, cfg.Port)
		if err != nil {
			log.Warning("webhook start event failed: " + err.Error())
		} else if id != "" {
			streamID = id
		}

		reg.register(channel, streamID, conn)

		path := filepath.Join(cfg.OutputDirectory, channel+".flv")
		s, err := flvfile.CreateSink(path)
		if err != nil {
			return nil, err
		}
		sink = s
		return sink, nil
	})

	if sink != nil {
		_ = sink.Close()
	}

	if channel != "" {
		reg.unregister(channel)
		coord.PublishEnd(channel, streamID)
		if werr := notifier.StopEvent(channel, channel, streamID, remoteIP); werr != nil {
			log.Warning("webhook stop event failed: " + werr.Error())
		}
	}

	if err != nil {
		log.Session(sessionID, remoteIP, "ended: "+err.Error())
	}
}
