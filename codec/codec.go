// Package codec converts application types to and from the values gocql
// binds and scans.
package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	ErrCodecExists  = errors.New("codec already registered")
	ErrUnknownValue = errors.New("unknown value")
	ErrInvalidType  = errors.New("invalid type")
)

// Codec maps one Go type onto a column representation gocql understands.
// Column is the type scanned from the driver; Decode receives a value of
// that type and returns a value of Type.
type Codec interface {
	Type() reflect.Type
	Column() reflect.Type
	Encode(v interface{}) (interface{}, error)
	Decode(raw interface{}) (interface{}, error)
}

type Registry struct {
	mu     sync.RWMutex
	codecs map[reflect.Type]Codec
}

func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[reflect.Type]Codec),
	}
}

// Default is the registry the connector registers its codecs in.
var Default = NewRegistry()

func (r *Registry) Register(c Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := c.Type()
	if _, ok := r.codecs[t]; ok {
		return fmt.Errorf("%s: %w", t, ErrCodecExists)
	}
	r.codecs[t] = c
	return nil
}

func (r *Registry) Lookup(t reflect.Type) (Codec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.codecs[t]
	return c, ok
}

// Encode converts v with its registered codec. Values without a codec are
// returned unchanged.
func (r *Registry) Encode(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	c, ok := r.Lookup(reflect.TypeOf(v))
	if !ok {
		return v, nil
	}
	return c.Encode(v)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.codecs)
}

func Register(c Codec) error {
	return Default.Register(c)
}

// RegisterDefaults adds the built-in codecs to r. Codecs already present
// are left alone, so it may be called on every connect.
func RegisterDefaults(r *Registry) error {
	for _, c := range []Codec{UUIDCodec{}} {
		if err := r.Register(c); err != nil && !errors.Is(err, ErrCodecExists) {
			return err
		}
	}
	return nil
}
