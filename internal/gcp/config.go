package gcp

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// ParseEnv loads a service configuration struct from environment variables.
// Fields are declared with `env:"NAME,required"` and `envDefault` tags.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
