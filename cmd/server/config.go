package main

import (
	"errors"

	"github.com/caarlos0/env/v11"

	"github.com/k11v/telebuild/internal/access"
	"github.com/k11v/telebuild/internal/apppg"
	"github.com/k11v/telebuild/internal/apps3"
	"github.com/k11v/telebuild/internal/auth"
	"github.com/k11v/telebuild/internal/build/buildamqp"
	"github.com/k11v/telebuild/internal/project"
	"github.com/k11v/telebuild/internal/server"
)

// config holds the application configuration.
type config struct {
	Development bool             `env:"TELEBUILD_DEVELOPMENT"`
	Access      access.Config    `envPrefix:"TELEBUILD_ACCESS_"`
	Auth        auth.Config      `envPrefix:"TELEBUILD_AUTH_"`
	AMQP        buildamqp.Config `envPrefix:"TELEBUILD_AMQP_"`
	Postgres    apppg.Config     `envPrefix:"TELEBUILD_POSTGRES_"`
	Projects    project.Config   `envPrefix:"TELEBUILD_PROJECTS_"`
	S3          apps3.Config     `envPrefix:"TELEBUILD_S3_"`
	Server      server.Config    `envPrefix:"TELEBUILD_SERVER_"`
}

// parseConfig parses the application configuration from the environment variables.
func parseConfig(environ []string) (*config, error) {
	var cfg config

	err := env.ParseWithOptions(&cfg, env.Options{
		Environment: env.ToMap(environ),
	})
	if err != nil {
		return nil, err
	}
	if cfg.Auth.VerificationKeyFile == "" {
		return nil, errors.New("missing TELEBUILD_AUTH_VERIFICATION_KEY_FILE")
	}

	return &cfg, nil
}
