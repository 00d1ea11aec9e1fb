package codec

import (
	"fmt"
	"reflect"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// UUIDCodec lets google/uuid values be bound to uuid and timeuuid columns.
type UUIDCodec struct{}

func (UUIDCodec) Type() reflect.Type {
	return reflect.TypeOf(uuid.UUID{})
}

func (UUIDCodec) Column() reflect.Type {
	return reflect.TypeOf(gocql.UUID{})
}

func (UUIDCodec) Encode(v interface{}) (interface{}, error) {
	u, ok := v.(uuid.UUID)
	if !ok {
		return nil, fmt.Errorf("%T is not uuid.UUID: %w", v, ErrInvalidType)
	}
	return gocql.UUID(u), nil
}

func (UUIDCodec) Decode(raw interface{}) (interface{}, error) {
	u, ok := raw.(gocql.UUID)
	if !ok {
		return nil, fmt.Errorf("%T is not gocql.UUID: %w", raw, ErrInvalidType)
	}
	return uuid.UUID(u), nil
}
