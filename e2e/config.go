package e2e

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SERVER_ADDR points the suite at an already-running stub server.
	// Empty means the suite boots one in-process.
	ServerAddr string `envconfig:"SERVER_ADDR"`
	AuthSecret string `envconfig:"AUTH_SECRET" default:"e2e-shared-secret"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours     bool          `envconfig:"E2E_COLOURS" default:"true"`
	StepTimeout time.Duration `envconfig:"E2E_STEP_TIMEOUT" default:"10s"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
