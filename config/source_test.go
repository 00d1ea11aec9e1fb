package config

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/caarlos0/env/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct{ err error }

func (f failingSource) Configuration(context.Context, string) ([]byte, error) {
	return nil, f.err
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")

	tests := []struct {
		name    string
		chain   Chain
		want    string
		wantErr error
	}{
		{
			name:  "first source wins",
			chain: Chain{StaticSource{"cassandra": []byte("a")}, StaticSource{"cassandra": []byte("b")}},
			want:  "a",
		},
		{
			name:  "falls through not found",
			chain: Chain{StaticSource{}, StaticSource{"cassandra": []byte("b")}},
			want:  "b",
		},
		{
			name:    "hard error stops lookup",
			chain:   Chain{failingSource{err: boom}, StaticSource{"cassandra": []byte("b")}},
			wantErr: boom,
		},
		{
			name:    "empty chain",
			chain:   Chain{},
			wantErr: ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.chain.Configuration(ctx, "cassandra")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(data))
		})
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cassandra.yaml"), []byte("node: [a]"), 0o600))

	src := FileSource{Dir: dir}
	data, err := src.Configuration(context.Background(), "cassandra")
	require.NoError(t, err)
	assert.Equal(t, "node: [a]", string(data))

	_, err = src.Configuration(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDecode(t *testing.T) {
	type doc struct {
		Node     []string `json:"node" yaml:"node"`
		Username string   `json:"username" yaml:"username"`
		Password string   `json:"password" yaml:"password"`
	}

	var fromJSON doc
	require.NoError(t, Decode([]byte(`{"node":["10.0.0.1","10.0.0.2"],"username":"cass"}`), &fromJSON))
	assert.Equal(t, doc{Node: []string{"10.0.0.1", "10.0.0.2"}, Username: "cass"}, fromJSON)

	var escaped doc
	require.NoError(t, Decode([]byte("\n\t{\"node\":[\"10.0.0.1\"],\"password\":\"p\\/w\\u00e9\"}"), &escaped))
	assert.Equal(t, doc{Node: []string{"10.0.0.1"}, Password: "p/w\u00e9"}, escaped)

	var fromYAML doc
	require.NoError(t, Decode([]byte("node:\n  - 10.0.0.1\nusername: cass\n"), &fromYAML))
	assert.Equal(t, doc{Node: []string{"10.0.0.1"}, Username: "cass"}, fromYAML)

	assert.Error(t, Decode([]byte("node: [unterminated"), &fromYAML))
	assert.Error(t, Decode([]byte(`{"node": [`), &fromJSON))
}

func TestSettings(t *testing.T) {
	s, err := ParseEnv(env.Options{Environment: map[string]string{
		"CONFIG_DIR": "/etc/app",
	}})
	require.NoError(t, err)
	assert.Equal(t, "config", s.ConsulPrefix)

	chain, err := s.Sources()
	require.NoError(t, err)
	require.Len(t, chain, 1)
	assert.Equal(t, FileSource{Dir: "/etc/app"}, chain[0])
}

func TestDefaultSource(t *testing.T) {
	SetDefault(StaticSource{"cassandra": []byte("x")})
	defer SetDefault(nil)

	data, err := Get(context.Background(), "cassandra")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func newConsulServer(t *testing.T, kv map[string]string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Consul-Index", "1")
		w.Header().Set("X-Consul-LastContact", "0")
		w.Header().Set("X-Consul-KnownLeader", "true")

		key := strings.TrimPrefix(r.URL.Path, "/v1/kv/")
		value, ok := kv[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]map[string]interface{}{{
			"Key":   key,
			"Value": base64.StdEncoding.EncodeToString([]byte(value)),
		}})
	}))
}

func TestConsulSource(t *testing.T) {
	server := newConsulServer(t, map[string]string{
		"config/cassandra": `{"node":["10.0.0.1"]}`,
	})
	defer server.Close()

	src, err := NewConsulSource(strings.TrimPrefix(server.URL, "http://"), "config", "")
	require.NoError(t, err)

	data, err := src.Configuration(context.Background(), "cassandra")
	require.NoError(t, err)
	assert.JSONEq(t, `{"node":["10.0.0.1"]}`, string(data))

	_, err = src.Configuration(context.Background(), "redis")
	assert.ErrorIs(t, err, ErrNotFound)
}
