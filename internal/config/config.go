// Environment-variable configuration, in the teacher's style: plain
// os.Getenv reads with string-to-number fallbacks, rather than a struct-tag
// binding library. The teacher declares github.com/joho/godotenv in its
// go.mod but never calls it (see DESIGN.md); this package is where that gets
// fixed, with a best-effort Load() at process start.
//
// Grounded on rtmp_server.go's CreateRTMPServer env reads (BIND_ADDRESS,
// RTMP_PORT, MAX_IP_CONCURRENT_CONNECTIONS, CONCURRENT_LIMIT_WHITELIST,
// RTMP_CHUNK_SIZE) and rtmp_callback.go/control_auth.go's JWT_SECRET/
// CALLBACK_URL/CONTROL_SECRET/CONTROL_BASE_URL reads. SSL_PORT/SSL_CERT/
// SSL_KEY and GOP_CACHE_SIZE_MB are dropped: RTMPS transport and the GOP
// cache/play path are out of scope for a publish-only core.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file into the process environment if one is
// present. A missing file is not an error, matching godotenv's own
// convention for optional local overrides.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// ServerConfig is the publish-accepting server's process-level configuration.
type ServerConfig struct {
	BindAddress          string
	Port                 int
	MaxIPConnections      uint32
	ConcurrentWhitelist  string
	DefaultChunkSize     uint32
	WindowAckSize        uint32
	OutputDirectory      string

	JWTSecret   string
	CallbackURL string
	JWTSubject  string

	ControlBaseURL string
	ControlSecret  string

	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisChannel  string
	RedisTLS      bool
}

func getenvUint32(key string, def uint32) uint32 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return def
	}
	return uint32(n)
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// ServerConfigFromEnv reads a ServerConfig the way the teacher's
// CreateRTMPServer reads its os.Getenv calls, minus the SSL/GOP-cache
// variables this core doesn't carry.
func ServerConfigFromEnv() ServerConfig {
	return ServerConfig{
		BindAddress:         os.Getenv("BIND_ADDRESS"),
		Port:                getenvInt("RTMP_PORT", 1935),
		MaxIPConnections:    getenvUint32("MAX_IP_CONCURRENT_CONNECTIONS", 4),
		ConcurrentWhitelist: os.Getenv("CONCURRENT_LIMIT_WHITELIST"),
		DefaultChunkSize:    getenvUint32("RTMP_CHUNK_SIZE", 128),
		WindowAckSize:       getenvUint32("RTMP_WINDOW_ACK_SIZE", 5_000_000),
		OutputDirectory:     envOr("RTMP_OUTPUT_DIR", "./recordings"),

		JWTSecret:   os.Getenv("JWT_SECRET"),
		CallbackURL: os.Getenv("CALLBACK_URL"),
		JWTSubject:  os.Getenv("CUSTOM_JWT_SUBJECT"),

		ControlBaseURL: os.Getenv("CONTROL_BASE_URL"),
		ControlSecret:  os.Getenv("CONTROL_SECRET"),

		RedisEnabled:  os.Getenv("REDIS_USE") == "YES",
		RedisHost:     envOr("REDIS_HOST", "localhost"),
		RedisPort:     envOr("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisChannel:  envOr("REDIS_CHANNEL", "rtmp_commands"),
		RedisTLS:      os.Getenv("REDIS_TLS") == "YES",
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ClientConfig is the publisher client's process-level configuration.
type ClientConfig struct {
	TargetAddress    string
	App              string
	TcUrl            string
	Playpath         string
	SignedHandshake  bool
	DefaultChunkSize uint32
}

// ClientConfigFromEnv reads the publisher client's configuration. The
// teacher has no client-side equivalent (it only ever accepts publishers),
// so these variable names are new, chosen to mirror the server's naming.
func ClientConfigFromEnv() ClientConfig {
	return ClientConfig{
		TargetAddress:    os.Getenv("RTMP_TARGET_ADDRESS"),
		App:              os.Getenv("RTMP_APP"),
		TcUrl:            os.Getenv("RTMP_TCURL"),
		Playpath:         os.Getenv("RTMP_PLAYPATH"),
		SignedHandshake:  os.Getenv("RTMP_SIGNED_HANDSHAKE") == "YES",
		DefaultChunkSize: getenvUint32("RTMP_CHUNK_SIZE", 128),
	}
}
