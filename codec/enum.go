package codec

import (
	"fmt"
	"reflect"
)

type enumCodec[T comparable] struct {
	typ    reflect.Type
	names  map[T]string
	values map[string]T
}

// NewEnumCodec stores T in a text column under the given names. Names
// must be unique.
func NewEnumCodec[T comparable](names map[T]string) (Codec, error) {
	values := make(map[string]T, len(names))
	for v, name := range names {
		if prev, ok := values[name]; ok {
			return nil, fmt.Errorf("enum name %q used by both %v and %v", name, prev, v)
		}
		values[name] = v
	}

	return &enumCodec[T]{
		typ:    reflect.TypeOf((*T)(nil)).Elem(),
		names:  names,
		values: values,
	}, nil
}

func (c *enumCodec[T]) Type() reflect.Type {
	return c.typ
}

func (c *enumCodec[T]) Column() reflect.Type {
	return reflect.TypeOf("")
}

func (c *enumCodec[T]) Encode(v interface{}) (interface{}, error) {
	e, ok := v.(T)
	if !ok {
		return nil, fmt.Errorf("%T is not %s: %w", v, c.typ, ErrInvalidType)
	}
	name, ok := c.names[e]
	if !ok {
		return nil, fmt.Errorf("%s(%v): %w", c.typ, e, ErrUnknownValue)
	}
	return name, nil
}

// Decode maps an empty column to the zero value of T.
func (c *enumCodec[T]) Decode(raw interface{}) (interface{}, error) {
	name, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%T is not a string: %w", raw, ErrInvalidType)
	}
	if name == "" {
		var zero T
		return zero, nil
	}
	v, ok := c.values[name]
	if !ok {
		return nil, fmt.Errorf("%s %q: %w", c.typ, name, ErrUnknownValue)
	}
	return v, nil
}
