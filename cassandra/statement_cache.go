package cassandra

import (
	"context"
	"sync"

	"github.com/gocql/gocql"
)

// Statement is a CQL string plus the query settings it is always run
// with. The driver prepares and caches the statement server side the
// first time it is executed.
type Statement struct {
	CQL        string
	Idempotent bool
	PageSize   int

	consistency *gocql.Consistency
}

type StatementOption func(*Statement)

func WithConsistency(c gocql.Consistency) StatementOption {
	return func(s *Statement) {
		s.consistency = &c
	}
}

func WithIdempotent() StatementOption {
	return func(s *Statement) {
		s.Idempotent = true
	}
}

func WithPageSize(n int) StatementOption {
	return func(s *Statement) {
		s.PageSize = n
	}
}

// Consistency reports the statement level, if one was set.
func (s *Statement) Consistency() (gocql.Consistency, bool) {
	if s.consistency == nil {
		return 0, false
	}
	return *s.consistency, true
}

func (s *Statement) bind(ctx context.Context, session Session, values ...interface{}) *gocql.Query {
	q := session.Query(s.CQL, values...).WithContext(ctx)
	if s.consistency != nil {
		q = q.Consistency(*s.consistency)
	}
	if s.Idempotent {
		q = q.Idempotent(true)
	}
	if s.PageSize > 0 {
		q = q.PageSize(s.PageSize)
	}
	return q
}

// StatementCache keeps statement definitions keyed by CQL text. It has no
// eviction of its own; the driver bounds its prepared statement cache
// with Config.MaxPreparedStmts.
type StatementCache struct {
	session Session

	mu         sync.RWMutex
	statements map[string]*Statement
}

func NewStatementCache(session Session) *StatementCache {
	return &StatementCache{
		session:    session,
		statements: make(map[string]*Statement),
	}
}

// Prepare returns the statement for cql, creating it on first use. opts
// only apply when the statement is created.
func (c *StatementCache) Prepare(cql string, opts ...StatementOption) *Statement {
	if s, ok := c.Get(cql); ok {
		statementLookups.WithLabelValues("hit").Inc()
		return s
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.statements[cql]; ok {
		statementLookups.WithLabelValues("hit").Inc()
		return s
	}

	s := &Statement{CQL: cql}
	for _, opt := range opts {
		opt(s)
	}
	c.statements[cql] = s
	statementLookups.WithLabelValues("miss").Inc()
	statementCacheSize.Set(float64(len(c.statements)))
	return s
}

func (c *StatementCache) Get(cql string) (*Statement, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.statements[cql]
	return s, ok
}

// Query binds values to the cached statement for cql.
func (c *StatementCache) Query(ctx context.Context, cql string, values ...interface{}) *gocql.Query {
	return c.Prepare(cql).bind(ctx, c.session, values...)
}

func (c *StatementCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.statements)
}

func (c *StatementCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.statements = make(map[string]*Statement)
	statementCacheSize.Set(0)
}
