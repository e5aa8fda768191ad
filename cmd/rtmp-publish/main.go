// RTMP publisher client binary: dials a server and republishes a local FLV
// file through the protocol core in rtmp/client.
//
// The teacher has no client-side equivalent (it only ever accepts
// publishers); this binary's shape instead follows the same
// "read config, dial, drive one session, log the outcome" pattern the
// teacher's main.go uses for the server.
package main

import (
	"flag"
	"fmt"
	"net"

	"github.com/AgustinSRG/rtmp-publish-core/internal/config"
	"github.com/AgustinSRG/rtmp-publish-core/internal/flvfile"
	"github.com/AgustinSRG/rtmp-publish-core/internal/rtmplog"
	"github.com/AgustinSRG/rtmp-publish-core/rtmp/client"
)

func main() {
	config.LoadDotEnv()
	cfg := config.ClientConfigFromEnv()
	log := rtmplog.New()

	inputPath := flag.String("input", "", "path to the FLV file to publish")
	flag.Parse()

	if *inputPath == "" {
		log.Warning("usage: rtmp-publish -input <file.flv> (target/app/playpath via env)")
		return
	}
	if cfg.TargetAddress == "" || cfg.App == "" || cfg.Playpath == "" {
		log.Warning("RTMP_TARGET_ADDRESS, RTMP_APP and RTMP_PLAYPATH must all be set")
		return
	}

	src, err := flvfile.OpenSource(*inputPath)
	if err != nil {
		log.Error(err)
		return
	}
	defer src.Close()

	conn, err := net.Dial("tcp", cfg.TargetAddress)
	if err != nil {
		log.Error(err)
		return
	}

	c, err := client.Connect(conn, client.Config{
		App:              cfg.App,
		TcUrl:            cfg.TcUrl,
		Playpath:         cfg.Playpath,
		SignedHandshake:  cfg.SignedHandshake,
		DefaultChunkSize: cfg.DefaultChunkSize,
	})
	if err != nil {
		log.Error(err)
		return
	}

	log.Info(fmt.Sprintf("publishing %s to %s%s/%s", *inputPath, cfg.TargetAddress, cfg.App, cfg.Playpath))

	if err := c.Publish(src); err != nil {
		log.Error(err)
		return
	}

	if err := c.Close(); err != nil {
		log.Error(err)
	}
	log.Info("publish finished")
}
