// Package cassandra holds the process-wide Cassandra connector: one
// gocql session built lazily from the "cassandra" configuration document,
// with a statement cache and a mapping manager on top of it.
package cassandra

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JIeeiroSst/cassutils/codec"
	"github.com/JIeeiroSst/cassutils/config"
	"github.com/JIeeiroSst/cassutils/logger"
	"github.com/gocql/gocql"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

const (
	configName        = "cassandra"
	releaseVersionCQL = "SELECT release_version FROM system.local"
)

var (
	ErrConfig      = errors.New("unable to load cassandra config")
	ErrUnavailable = errors.New("cassandra unavailable")
)

// Session is the part of *gocql.Session the connector depends on.
type Session interface {
	Query(stmt string, values ...interface{}) *gocql.Query
	Close()
	Closed() bool
}

type Connector struct {
	cluster        *gocql.ClusterConfig
	session        Session
	statementCache *StatementCache
	mappingManager *MappingManager
	log            *zap.Logger
}

var (
	mu       sync.Mutex
	instance *Connector
	opts     settings
	breaker  *gobreaker.CircuitBreaker

	dial = func(cluster *gocql.ClusterConfig) (Session, error) {
		session, err := cluster.CreateSession()
		if err != nil {
			return nil, err
		}
		return session, nil
	}
)

type settings struct {
	source   config.Source
	config   *Config
	codecs   []codec.Codec
	registry *codec.Registry
	logger   *zap.Logger
}

type Option func(*settings)

// WithConfigSource reads the "cassandra" document from src instead of the
// process default source.
func WithConfigSource(src config.Source) Option {
	return func(s *settings) {
		s.source = src
	}
}

// WithConfig skips the configuration source altogether.
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		s.config = &cfg
	}
}

// WithCodecs registers extra codecs alongside the built-in ones.
func WithCodecs(codecs ...codec.Codec) Option {
	return func(s *settings) {
		s.codecs = append(s.codecs, codecs...)
	}
}

func WithCodecRegistry(r *codec.Registry) Option {
	return func(s *settings) {
		s.registry = r
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// Setup records options for the next connector build. It has no effect
// on a connector that is already open.
func Setup(options ...Option) {
	mu.Lock()
	defer mu.Unlock()
	for _, o := range options {
		o(&opts)
	}
}

// Instance returns the process-wide connector, building it on first use.
// A failed build leaves no connector behind, so the next call tries again.
func Instance(ctx context.Context) (*Connector, error) {
	mu.Lock()
	defer mu.Unlock()

	if instance != nil {
		return instance, nil
	}

	log := opts.log(ctx)
	log.Debug("creating cassandra connector")

	c, err := newConnector(ctx, opts)
	if err != nil {
		connectAttempts.WithLabelValues("failure").Inc()
		log.Error("failed to create cassandra connector", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	connectAttempts.WithLabelValues("success").Inc()
	connectorOpen.Set(1)
	instance = c
	return c, nil
}

// MustInstance is Instance for callers that cannot run without Cassandra.
func MustInstance() *Connector {
	c, err := Instance(context.Background())
	if err != nil {
		panic(err)
	}
	return c
}

func (s settings) baseLogger() *zap.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logger.L()
}

func (s settings) log(ctx context.Context) *zap.Logger {
	return withTrace(s.baseLogger(), ctx)
}

func withTrace(l *zap.Logger, ctx context.Context) *zap.Logger {
	if id := logger.TraceID(ctx); id != "" {
		return l.With(zap.String("trace_id", id))
	}
	return l
}

func (s settings) codecRegistry() *codec.Registry {
	if s.registry != nil {
		return s.registry
	}
	return codec.Default
}

func newConnector(ctx context.Context, s settings) (*Connector, error) {
	cfg, err := loadConfig(ctx, s)
	if err != nil {
		return nil, err
	}

	cluster, err := cfg.ClusterConfig()
	if err != nil {
		return nil, err
	}

	session, err := connect(cluster, s.baseLogger())
	if err != nil {
		return nil, err
	}

	registry := s.codecRegistry()
	statementCache := NewStatementCache(session)
	c := &Connector{
		cluster:        cluster,
		session:        session,
		statementCache: statementCache,
		mappingManager: NewMappingManager(session, statementCache, registry),
		log:            s.baseLogger(),
	}

	if err := registerCustomCodecs(registry, s.codecs); err != nil {
		session.Close()
		return nil, err
	}

	return c, nil
}

func loadConfig(ctx context.Context, s settings) (Config, error) {
	if s.config != nil {
		cfg := *s.config
		cfg.setDefaults()
		return cfg, cfg.Validate()
	}

	var (
		data []byte
		err  error
	)
	if s.source != nil {
		data, err = s.source.Configuration(ctx, configName)
	} else {
		data, err = config.Get(ctx, configName)
	}
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(data)
}

func connect(cluster *gocql.ClusterConfig, log *zap.Logger) (Session, error) {
	if breaker == nil {
		breaker = newBreaker(log)
	}

	session, err := breaker.Execute(func() (interface{}, error) {
		return dial(cluster)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, fmt.Errorf("failed to connect to cassandra: %w", err)
	}
	return session.(Session), nil
}

func registerCustomCodecs(r *codec.Registry, extra []codec.Codec) error {
	if err := codec.RegisterDefaults(r); err != nil {
		return err
	}
	for _, c := range extra {
		if err := r.Register(c); err != nil && !errors.Is(err, codec.ErrCodecExists) {
			return err
		}
	}
	return nil
}

func (c *Connector) Session() Session {
	return c.session
}

func (c *Connector) StatementCache() *StatementCache {
	return c.statementCache
}

func (c *Connector) MappingManager() *MappingManager {
	return c.mappingManager
}

// Ping reads the server release version.
func (c *Connector) Ping(ctx context.Context) (string, error) {
	var version string
	if err := c.statementCache.Query(ctx, releaseVersionCQL).Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query release version: %w", err)
	}
	return version, nil
}

// Close tears down the open connector, if any: the statement cache is
// cleared, then the session closed, then the cluster released. The
// connector is detached first so concurrent Instance calls build a new one.
func Close() {
	closeConnector(context.Background())
}

// closeConnector logs with the trace id of ctx, never with the one the
// connector was built under.
func closeConnector(ctx context.Context) {
	mu.Lock()
	c := instance
	instance = nil
	mu.Unlock()

	if c == nil {
		return
	}

	log := withTrace(c.log, ctx)
	log.Debug("clearing statement cache...")
	c.statementCache.Clear()

	log.Debug("closing session...")
	c.session.Close()

	log.Debug("releasing cluster...")
	c.cluster = nil

	connectorOpen.Set(0)
	log.Debug("done")
}

// ShutdownHook adapts Close to a shutdown.Listener hook.
func ShutdownHook() func(ctx context.Context) error {
	return func(ctx context.Context) error {
		mu.Lock()
		log := opts.log(ctx)
		mu.Unlock()

		log.Debug("shutting down cassandra...")
		closeConnector(ctx)
		log.Debug("cassandra shutdown done.")
		return nil
	}
}
