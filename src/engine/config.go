package engine

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	QueueSize   int           `envconfig:"ENGINE_QUEUE_SIZE" default:"256"`
	FireTimeout time.Duration `envconfig:"ENGINE_FIRE_TIMEOUT" default:"5s"`
	// SyncPeriod re-fetches GTT lists from the authority; 0 disables it.
	SyncPeriod time.Duration `envconfig:"ENGINE_SYNC_PERIOD" default:"60s"`
	// IdleCheck is how often a worker without ticks checks whether its
	// instrument still has ACTIVE orders.
	IdleCheck time.Duration `envconfig:"ENGINE_IDLE_CHECK" default:"5s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
