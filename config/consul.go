package config

import (
	"context"
	"fmt"
	"path"

	consulapi "github.com/hashicorp/consul/api"
)

// ConsulSource reads configuration documents from the Consul KV store.
// A document named "cassandra" lives at "<Prefix>/cassandra".
type ConsulSource struct {
	Host    string
	Prefix  string
	Service string

	client *consulapi.Client
}

func NewConsulSource(host, prefix, service string) (*ConsulSource, error) {
	client, err := getConsul(host)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}

	return &ConsulSource{
		Host:    host,
		Prefix:  prefix,
		Service: service,
		client:  client,
	}, nil
}

func getConsul(address string) (*consulapi.Client, error) {
	config := consulapi.DefaultConfig()
	config.Address = address
	return consulapi.NewClient(config)
}

func (c *ConsulSource) key(name string) string {
	if c.Prefix == "" {
		return name
	}
	return path.Join(c.Prefix, name)
}

func (c *ConsulSource) Configuration(ctx context.Context, name string) ([]byte, error) {
	opts := (&consulapi.QueryOptions{}).WithContext(ctx)

	if c.Service != "" {
		if _, _, err := c.client.Catalog().Service(c.Service, "", opts); err != nil {
			return nil, fmt.Errorf("failed to look up service %s: %w", c.Service, err)
		}
	}

	key := c.key(name)
	pair, _, err := c.client.KV().Get(key, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read consul key %s: %w", key, err)
	}

	if pair == nil || len(pair.Value) == 0 {
		return nil, fmt.Errorf("consul key %s: %w", key, ErrNotFound)
	}

	return pair.Value, nil
}
