package config

import (
	"fmt"

	"github.com/caarlos0/env/v7"
)

// Settings selects where configuration documents come from.
type Settings struct {
	ConsulAddr    string `env:"CONFIG_CONSUL_ADDR"`
	ConsulPrefix  string `env:"CONFIG_CONSUL_PREFIX"  envDefault:"config"`
	ConsulService string `env:"CONFIG_CONSUL_SERVICE"`
	Dir           string `env:"CONFIG_DIR"`
}

// ParseEnv fills Settings from the environment. opts may carry a prefix or
// a fixed environment for tests.
func ParseEnv(opts ...env.Options) (Settings, error) {
	var s Settings
	if err := env.Parse(&s, opts...); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config settings: %w", err)
	}
	return s, nil
}

// FromEnv builds a Chain of the sources named by the environment: Consul
// first, then the config directory.
func FromEnv() (Chain, error) {
	s, err := ParseEnv()
	if err != nil {
		return nil, err
	}
	return s.Sources()
}

func (s Settings) Sources() (Chain, error) {
	var chain Chain
	if s.ConsulAddr != "" {
		src, err := NewConsulSource(s.ConsulAddr, s.ConsulPrefix, s.ConsulService)
		if err != nil {
			return nil, err
		}
		chain = append(chain, src)
	}
	if s.Dir != "" {
		chain = append(chain, FileSource{Dir: s.Dir})
	}
	return chain, nil
}
