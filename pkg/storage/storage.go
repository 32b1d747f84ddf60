package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Fixed keys of the shopper's key-value state.
const (
	KeyCart                = "cart"
	KeySelectedForCheckout = "selectedForCheckout"
	KeyUserData            = "userData"
	KeyUserToken           = "userToken"
)

// ErrNotFound is returned by Get when the key holds no value.
var ErrNotFound = errors.New("storage: key not found")

// Storage is a string key-value store holding JSON-encoded values.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key; removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
}

// Batcher is implemented by drivers that apply a group of writes atomically.
type Batcher interface {
	Apply(ctx context.Context, sets map[string]string, removes []string) error
}

// namespacer is implemented by drivers with a native namespace notion.
type namespacer interface {
	WithNamespace(namespace string) Storage
}

// Apply writes sets and removes as one unit. Drivers implementing Batcher do it
// natively; for the rest the previous values are captured first and restored
// when a later write fails.
func Apply(ctx context.Context, s Storage, sets map[string]string, removes []string) error {
	if b, ok := s.(Batcher); ok {
		return b.Apply(ctx, sets, removes)
	}

	type prior struct {
		key     string
		value   string
		present bool
	}
	touched := make([]prior, 0, len(sets)+len(removes))
	capture := func(key string) error {
		val, err := s.Get(ctx, key)
		switch {
		case err == nil:
			touched = append(touched, prior{key: key, value: val, present: true})
		case errors.Is(err, ErrNotFound):
			touched = append(touched, prior{key: key})
		default:
			return err
		}
		return nil
	}
	rollback := func() {
		for i := len(touched) - 1; i >= 0; i-- {
			p := touched[i]
			if p.present {
				_ = s.Set(ctx, p.key, p.value)
			} else {
				_ = s.Remove(ctx, p.key)
			}
		}
	}

	for _, key := range sortedKeys(sets) {
		if err := capture(key); err != nil {
			return err
		}
		if err := s.Set(ctx, key, sets[key]); err != nil {
			touched = touched[:len(touched)-1]
			rollback()
			return err
		}
	}
	for _, key := range removes {
		if err := capture(key); err != nil {
			rollback()
			return err
		}
		if err := s.Remove(ctx, key); err != nil {
			touched = touched[:len(touched)-1]
			rollback()
			return err
		}
	}
	return nil
}

// Namespaced scopes every key of store under namespace so many shoppers can
// share one backend.
func Namespaced(store Storage, namespace string) Storage {
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		return store
	}
	if b, ok := store.(*Backend); ok {
		store = b.Storage
	}
	if ns, ok := store.(namespacer); ok {
		return ns.WithNamespace(namespace)
	}
	return &prefixed{inner: store, prefix: namespace + ":"}
}

type prefixed struct {
	inner  Storage
	prefix string
}

func (p *prefixed) key(k string) string { return p.prefix + k }

func (p *prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.inner.Get(ctx, p.key(key))
}

func (p *prefixed) Set(ctx context.Context, key, value string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return p.inner.Set(ctx, p.key(key), value)
}

func (p *prefixed) Remove(ctx context.Context, key string) error {
	return p.inner.Remove(ctx, p.key(key))
}

func (p *prefixed) Apply(ctx context.Context, sets map[string]string, removes []string) error {
	scopedSets := make(map[string]string, len(sets))
	for k, v := range sets {
		if err := validateKey(k); err != nil {
			return err
		}
		scopedSets[p.key(k)] = v
	}
	scopedRemoves := make([]string, 0, len(removes))
	for _, k := range removes {
		scopedRemoves = append(scopedRemoves, p.key(k))
	}
	return Apply(ctx, p.inner, scopedSets, scopedRemoves)
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("storage: empty key")
	}
	return nil
}
