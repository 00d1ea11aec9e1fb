package cassandra

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/JIeeiroSst/cassutils/codec"
	"github.com/gocql/gocql"
	"github.com/scylladb/go-reflectx"
)

var (
	ErrNotFound = errors.New("entity not found")
	ErrKeyCount = errors.New("wrong number of primary key values")
)

// MappingManager maps tagged structs onto tables. Field values pass
// through the codec registry on the way in and out.
type MappingManager struct {
	session    Session
	statements *StatementCache
	codecs     *codec.Registry

	mu     sync.RWMutex
	tables map[reflect.Type]*tableMapping
}

func NewMappingManager(session Session, statements *StatementCache, codecs *codec.Registry) *MappingManager {
	if codecs == nil {
		codecs = codec.Default
	}
	return &MappingManager{
		session:    session,
		statements: statements,
		codecs:     codecs,
		tables:     make(map[reflect.Type]*tableMapping),
	}
}

func (m *MappingManager) Session() Session {
	return m.session
}

func (m *MappingManager) table(t reflect.Type) (*tableMapping, error) {
	m.mu.RLock()
	tbl, ok := m.tables[t]
	m.mu.RUnlock()
	if ok {
		return tbl, nil
	}

	tbl, err := parseTable(t)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.tables[t]; ok {
		return existing, nil
	}
	m.tables[t] = tbl
	return tbl, nil
}

func (m *MappingManager) encode(values []interface{}) ([]interface{}, error) {
	out := make([]interface{}, len(values))
	for i, v := range values {
		enc, err := m.codecs.Encode(v)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

// Mapper reads and writes values of T in its table.
type Mapper[T any] struct {
	manager *MappingManager
	table   *tableMapping
}

func NewMapper[T any](m *MappingManager) (*Mapper[T], error) {
	tbl, err := m.table(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	return &Mapper[T]{manager: m, table: tbl}, nil
}

func (m *Mapper[T]) Table() string {
	return m.table.name
}

// Columns lists the mapped columns in the order Scan expects them.
func (m *Mapper[T]) Columns() []string {
	return m.table.columnNames()
}

// Get loads the row with the given primary key, partition key values
// first.
func (m *Mapper[T]) Get(ctx context.Context, keys ...interface{}) (*T, error) {
	args, err := m.keyArgs(keys)
	if err != nil {
		return nil, err
	}

	var out T
	dest, finish := m.scanTargets(reflect.ValueOf(&out).Elem())
	if err := m.manager.statements.Query(ctx, m.table.selectCQL, args...).Scan(dest...); err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", m.table.name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get from %s: %w", m.table.name, err)
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (m *Mapper[T]) Save(ctx context.Context, entity *T) error {
	values, err := m.values(entity)
	if err != nil {
		return err
	}
	if err := m.manager.statements.Query(ctx, m.table.insertCQL, values...).Exec(); err != nil {
		return fmt.Errorf("failed to save to %s: %w", m.table.name, err)
	}
	return nil
}

func (m *Mapper[T]) Delete(ctx context.Context, keys ...interface{}) error {
	args, err := m.keyArgs(keys)
	if err != nil {
		return err
	}
	if err := m.manager.statements.Query(ctx, m.table.deleteCQL, args...).Exec(); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", m.table.name, err)
	}
	return nil
}

// Select runs the full-row select with the raw condition where and maps
// every row.
func (m *Mapper[T]) Select(ctx context.Context, where string, values ...interface{}) ([]T, error) {
	args, err := m.manager.encode(values)
	if err != nil {
		return nil, err
	}
	return m.Scan(m.manager.statements.Query(ctx, m.table.where(where), args...).Iter())
}

// Scan maps the rows of iter and closes it. The iterator must select
// Columns() in order.
func (m *Mapper[T]) Scan(iter *gocql.Iter) ([]T, error) {
	var out []T
	for {
		var row T
		dest, finish := m.scanTargets(reflect.ValueOf(&row).Elem())
		if !iter.Scan(dest...) {
			break
		}
		if err := finish(); err != nil {
			_ = iter.Close()
			return nil, err
		}
		out = append(out, row)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", m.table.name, err)
	}
	return out, nil
}

func (m *Mapper[T]) keyArgs(keys []interface{}) ([]interface{}, error) {
	if len(keys) != len(m.table.keyNames) {
		return nil, fmt.Errorf("%s expects %d, got %d: %w", m.table.name, len(m.table.keyNames), len(keys), ErrKeyCount)
	}
	return m.manager.encode(keys)
}

// values binds entity in insert order. Nil embedded pointers are
// allocated on the way.
func (m *Mapper[T]) values(entity *T) ([]interface{}, error) {
	v := reflect.ValueOf(entity).Elem()
	values := make([]interface{}, len(m.table.insertNames))
	for i, name := range m.table.insertNames {
		c := m.table.byName[name]
		enc, err := m.manager.codecs.Encode(reflectx.FieldByIndexes(v, c.index).Interface())
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c.name, err)
		}
		values[i] = enc
	}
	return values, nil
}

// scanTargets returns scan destinations for every column of v. Columns
// with a codec scan into a holder that finish decodes into the field.
func (m *Mapper[T]) scanTargets(v reflect.Value) ([]interface{}, func() error) {
	type pending struct {
		name   string
		field  reflect.Value
		holder reflect.Value
		codec  codec.Codec
	}

	dest := make([]interface{}, len(m.table.columns))
	var decode []pending
	for i, c := range m.table.columns {
		field := reflectx.FieldByIndexes(v, c.index)
		if cd, ok := m.manager.codecs.Lookup(field.Type()); ok {
			holder := reflect.New(cd.Column())
			dest[i] = holder.Interface()
			decode = append(decode, pending{name: c.name, field: field, holder: holder, codec: cd})
			continue
		}
		dest[i] = field.Addr().Interface()
	}

	return dest, func() error {
		for _, p := range decode {
			val, err := p.codec.Decode(p.holder.Elem().Interface())
			if err != nil {
				return fmt.Errorf("column %s: %w", p.name, err)
			}
			p.field.Set(reflect.ValueOf(val))
		}
		return nil
	}
}
