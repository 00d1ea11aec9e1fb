// Package config resolves named configuration documents from Consul,
// files on disk or memory, and decodes them.
package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("configuration not found")

// Source returns the raw document stored under name. Sources return an
// error wrapping ErrNotFound when they do not hold the document.
type Source interface {
	Configuration(ctx context.Context, name string) ([]byte, error)
}

type StaticSource map[string][]byte

func (s StaticSource) Configuration(_ context.Context, name string) ([]byte, error) {
	data, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return data, nil
}

// Chain asks each source in turn and returns the first document found.
// Errors other than ErrNotFound stop the lookup.
type Chain []Source

func (c Chain) Configuration(ctx context.Context, name string) ([]byte, error) {
	for _, src := range c {
		data, err := src.Configuration(ctx, name)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%s: %w", name, ErrNotFound)
}

var (
	mu         sync.RWMutex
	defaultSrc Source
)

// SetDefault installs the process-wide source used by Get.
func SetDefault(src Source) {
	mu.Lock()
	defer mu.Unlock()
	defaultSrc = src
}

// Default returns the process-wide source. When none was installed it
// is built from the environment on first use.
func Default() (Source, error) {
	mu.RLock()
	src := defaultSrc
	mu.RUnlock()
	if src != nil {
		return src, nil
	}

	mu.Lock()
	defer mu.Unlock()
	if defaultSrc != nil {
		return defaultSrc, nil
	}
	src, err := FromEnv()
	if err != nil {
		return nil, err
	}
	defaultSrc = src
	return src, nil
}

func Get(ctx context.Context, name string) ([]byte, error) {
	src, err := Default()
	if err != nil {
		return nil, err
	}
	return src.Configuration(ctx, name)
}

// Decode unmarshals a JSON or YAML document into v. Documents starting
// with '{' are JSON; anything else is read as YAML.
func Decode(data []byte, v interface{}) error {
	if isJSON(data) {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("failed to decode configuration: %w", err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

func isJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}
