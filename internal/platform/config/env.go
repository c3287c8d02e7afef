package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix namespaces every environment variable read by this repository.
const EnvPrefix = "CONTRIBUTOR_BILLING_"

// ParseEnv loads configuration from prefixed environment variables.
//
// Struct tags name the variable without the prefix, so `env:"DB_PATH"` reads
// CONTRIBUTOR_BILLING_DB_PATH.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
