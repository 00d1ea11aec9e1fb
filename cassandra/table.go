package cassandra

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/scylladb/go-reflectx"
	"github.com/scylladb/gocqlx/v2/qb"
	"github.com/scylladb/gocqlx/v2/table"
)

var (
	ErrNotStruct       = errors.New("mapped type must be a struct")
	ErrNoPartitionKey  = errors.New("mapped type has no partition key")
	ErrDuplicateColumn = errors.New("column mapped by more than one field")
)

// Tabler overrides the table name derived from the type name.
type Tabler interface {
	TableName() string
}

var tablerType = reflect.TypeOf((*Tabler)(nil)).Elem()

// fieldMapper reads `cql` tags; untagged fields map to their snake_case
// name.
var fieldMapper = reflectx.NewMapperFunc("cql", reflectx.CamelToSnakeASCII)

type column struct {
	name  string
	index []int
}

type tableMapping struct {
	name    string
	columns []column
	byName  map[string]column

	// keyNames lists the primary key, partition keys first.
	keyNames    []string
	insertNames []string

	selectCQL string
	insertCQL string
	deleteCQL string
	scanCQL   string
}

// parseTable reads the `cql:"name,partition|clustering"` tags of t. "-"
// skips a field and embedded structs are flattened. Partition keys come
// before clustering keys, each in field order.
func parseTable(t reflect.Type) (*tableMapping, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s: %w", t, ErrNotStruct)
	}

	m := &tableMapping{
		name:   tableName(t),
		byName: make(map[string]column),
	}

	var names, partition, clustering []string
	for _, fi := range fieldMapper.TypeMap(t).Index {
		if fi.Embedded || strings.Contains(fi.Path, ".") {
			continue
		}

		name := fi.Name
		if name == "" {
			name = reflectx.CamelToSnakeASCII(fi.Field.Name)
		}
		if _, ok := m.byName[name]; ok {
			return nil, fmt.Errorf("%s.%s: %q: %w", t, fi.Field.Name, name, ErrDuplicateColumn)
		}

		for opt := range fi.Options {
			switch opt {
			case "partition":
				partition = append(partition, name)
			case "clustering":
				clustering = append(clustering, name)
			default:
				return nil, fmt.Errorf("%s.%s: unknown cql tag option %q", t, fi.Field.Name, opt)
			}
		}

		col := column{name: name, index: fi.Index}
		m.columns = append(m.columns, col)
		m.byName[name] = col
		names = append(names, name)
	}

	if len(partition) == 0 {
		return nil, fmt.Errorf("%s: %w", t, ErrNoPartitionKey)
	}

	tbl := table.New(table.Metadata{
		Name:    m.name,
		Columns: names,
		PartKey: partition,
		SortKey: clustering,
	})
	m.selectCQL, m.keyNames = tbl.Get()
	m.insertCQL, m.insertNames = tbl.Insert()
	m.deleteCQL, _ = tbl.Delete()
	m.scanCQL, _ = qb.Select(m.name).Columns(names...).ToCql()
	return m, nil
}

func tableName(t reflect.Type) string {
	if reflect.PointerTo(t).Implements(tablerType) {
		return reflect.New(t).Interface().(Tabler).TableName()
	}
	return reflectx.CamelToSnakeASCII(t.Name())
}

func (m *tableMapping) columnNames() []string {
	names := make([]string, len(m.columns))
	for i, c := range m.columns {
		names[i] = c.name
	}
	return names
}

// where appends a raw condition to the full-row select.
func (m *tableMapping) where(cond string) string {
	return strings.TrimSpace(m.scanCQL) + " WHERE " + cond
}
