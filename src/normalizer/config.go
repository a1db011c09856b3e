package normalizer

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	TickSize float64 `envconfig:"TICK_SIZE" default:"0.1"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// TickSizeDecimal returns the configured tick size, falling back to DefaultTickSize.
func (c Config) TickSizeDecimal() decimal.Decimal {
	if c.TickSize <= 0 {
		return DefaultTickSize
	}
	return decimal.NewFromFloat(c.TickSize)
}
