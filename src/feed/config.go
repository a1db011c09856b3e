package feed

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	SourceWebsocket = "ws"
	SourceNATS      = "nats"
	SourceNone      = "none"
)

type Config struct {
	Source string `envconfig:"FEED_SOURCE" default:"none"`

	WSURL            string        `envconfig:"FEED_WS_URL" default:"ws://localhost:8080/ws"`
	Instruments      []string      `envconfig:"FEED_INSTRUMENTS"`
	HandshakeTimeout time.Duration `envconfig:"FEED_HANDSHAKE_TIMEOUT" default:"15s"`
	WriteTimeout     time.Duration `envconfig:"FEED_WRITE_TIMEOUT" default:"5s"`
	ReconnectWait    time.Duration `envconfig:"FEED_RECONNECT_WAIT" default:"1s"`
	ReconnectMaxWait time.Duration `envconfig:"FEED_RECONNECT_MAX_WAIT" default:"30s"`
	PushTimeout      time.Duration `envconfig:"FEED_PUSH_TIMEOUT" default:"5s"`

	NATSURL     string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	NATSSubject string `envconfig:"NATS_TICK_SUBJECT" default:"ticks.*"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
