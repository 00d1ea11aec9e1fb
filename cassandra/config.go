package cassandra

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JIeeiroSst/cassutils/config"
	"github.com/caarlos0/env/v7"
	"github.com/gocql/gocql"
)

const (
	defaultPort           = 9042
	defaultProtoVersion   = 4
	defaultConnectTimeout = 10 * time.Second
	defaultConsistency    = "QUORUM"
)

var errNoNodes = errors.New("no cassandra nodes configured")

// Config is the "cassandra" configuration document. Any field may be
// overridden by its CASSANDRA_* environment variable.
type Config struct {
	Nodes            []string      `json:"node"             yaml:"node"             env:"CASSANDRA_NODES" envSeparator:","`
	Username         string        `json:"username"         yaml:"username"         env:"CASSANDRA_USERNAME"`
	Password         string        `json:"password"         yaml:"password"         env:"CASSANDRA_PASSWORD"`
	Keyspace         string        `json:"keyspace"         yaml:"keyspace"         env:"CASSANDRA_KEYSPACE"`
	Port             int           `json:"port"             yaml:"port"             env:"CASSANDRA_PORT"`
	Consistency      string        `json:"consistency"      yaml:"consistency"      env:"CASSANDRA_CONSISTENCY"`
	ProtoVersion     int           `json:"protoVersion"     yaml:"protoVersion"     env:"CASSANDRA_PROTO_VERSION"`
	ConnectTimeout   time.Duration `json:"connectTimeout"   yaml:"connectTimeout"   env:"CASSANDRA_CONNECT_TIMEOUT"`
	Timeout          time.Duration `json:"timeout"          yaml:"timeout"          env:"CASSANDRA_TIMEOUT"`
	NumConns         int           `json:"numConns"         yaml:"numConns"         env:"CASSANDRA_NUM_CONNS"`
	LocalDC          string        `json:"localDC"          yaml:"localDC"          env:"CASSANDRA_LOCAL_DC"`
	MaxPreparedStmts int           `json:"maxPreparedStmts" yaml:"maxPreparedStmts" env:"CASSANDRA_MAX_PREPARED_STMTS"`
}

// UnmarshalJSON accepts timeouts as duration strings ("3s") or as
// nanoseconds, the same as the YAML form.
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	aux := struct {
		*plain
		ConnectTimeout jsonDuration `json:"connectTimeout"`
		Timeout        jsonDuration `json:"timeout"`
	}{
		plain:          (*plain)(c),
		ConnectTimeout: jsonDuration(c.ConnectTimeout),
		Timeout:        jsonDuration(c.Timeout),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.ConnectTimeout = time.Duration(aux.ConnectTimeout)
	c.Timeout = time.Duration(aux.Timeout)
	return nil
}

type jsonDuration time.Duration

func (d *jsonDuration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*d = jsonDuration(value)
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*d = jsonDuration(parsed)
	case nil:
	default:
		return fmt.Errorf("invalid duration %s", data)
	}
	return nil
}

// ParseConfig decodes a JSON or YAML document, applies environment
// overrides and defaults, and validates the result.
func ParseConfig(data []byte, opts ...env.Options) (Config, error) {
	var cfg Config
	if err := config.Decode(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := env.Parse(&cfg, opts...); err != nil {
		return Config{}, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.ProtoVersion == 0 {
		c.ProtoVersion = defaultProtoVersion
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.Consistency == "" {
		c.Consistency = defaultConsistency
	}
}

func (c Config) Validate() error {
	if len(c.Nodes) == 0 {
		return errNoNodes
	}
	if c.Consistency != "" {
		if _, err := gocql.ParseConsistencyWrapper(c.Consistency); err != nil {
			return fmt.Errorf("invalid consistency %q: %w", c.Consistency, err)
		}
	}
	return nil
}

// ClusterConfig turns c into a gocql cluster. Every node becomes a contact
// point and queries default to QUORUM unless Consistency says otherwise.
func (c Config) ClusterConfig() (*gocql.ClusterConfig, error) {
	cfg := c
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	consistency, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
	if err != nil {
		return nil, err
	}

	cluster := gocql.NewCluster(cfg.Nodes...)
	cluster.Consistency = consistency
	cluster.Port = cfg.Port
	cluster.ProtoVersion = cfg.ProtoVersion
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Keyspace = cfg.Keyspace
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout
	}
	if cfg.NumConns > 0 {
		cluster.NumConns = cfg.NumConns
	}
	if cfg.MaxPreparedStmts > 0 {
		cluster.MaxPreparedStmts = cfg.MaxPreparedStmts
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	if cfg.LocalDC != "" {
		cluster.PoolConfig.HostSelectionPolicy = gocql.TokenAwareHostPolicy(gocql.DCAwareRoundRobinPolicy(cfg.LocalDC))
	}

	return cluster, nil
}
