package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AuthorityBaseURL string        `envconfig:"AUTHORITY_BASE_URL" default:"http://localhost:8080/api"`
	AuthorityToken   string        `envconfig:"AUTHORITY_TOKEN"`
	RequestTimeout   time.Duration `envconfig:"AUTHORITY_REQUEST_TIMEOUT" default:"3s"`
	// RetryCount only applies to GET and DELETE.
	RetryCount   int           `envconfig:"AUTHORITY_RETRY_COUNT" default:"2"`
	RetryWait    time.Duration `envconfig:"AUTHORITY_RETRY_WAIT" default:"200ms"`
	RetryMaxWait time.Duration `envconfig:"AUTHORITY_RETRY_MAX_WAIT" default:"2s"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
