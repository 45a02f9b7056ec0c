package build

import (
	"errors"
	"fmt"
)

// Config holds the engine configuration.
type Config struct {
	Bin                    string       `env:"BIN"`
	Root                   string       `env:"ROOT"`          // default: ".telebuild"
	LogDir                 string       `env:"LOG_DIR"`       // default: "Logs"
	LogBehaviour           LogBehaviour `env:"LOG_BEHAVIOUR"` // default: "StdoutFile"
	Entry                  string       `env:"ENTRY"`
	Secret                 string       `env:"SECRET"`
	DestinationDevelopment string       `env:"DESTINATION_DEVELOPMENT"`
	DestinationRelease     string       `env:"DESTINATION_RELEASE"`
	Env                    []string     `env:"ENV"`
}

func (c *Config) root() string {
	r := c.Root
	if r == "" {
		r = ".telebuild"
	}
	return r
}

func (c *Config) logDir() string {
	d := c.LogDir
	if d == "" {
		d = "Logs"
	}
	return d
}

func (c *Config) logBehaviour() LogBehaviour {
	b := c.LogBehaviour
	if b == "" {
		b = LogBehaviourStdoutFile
	}
	return b
}

func (c *Config) destination(p Platform) (string, error) {
	var d string
	switch p {
	case PlatformAndroidDevelopment:
		d = c.DestinationDevelopment
	case PlatformAndroidRelease:
		d = c.DestinationRelease
	}
	if d == "" {
		return "", errors.Join(ErrConfiguration, fmt.Errorf("missing destination for platform %s", p))
	}
	return d, nil
}
