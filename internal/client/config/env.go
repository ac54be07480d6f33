package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

const EnvPrefix = "NODEA_"

func parseEnv(config *Config) error {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}
