// Package kv is the accessor for small persisted client state: the timer
// markers, the profile cache and the cookie jar. Components never touch the
// backing store directly; they go through a Namespace with typed helpers.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrNotFound = errors.New("kv: key not found")

type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

type namespaced struct {
	inner  Store
	prefix string
}

// Namespace scopes every key of s under "prefix:".
func Namespace(s Store, prefix string) Store {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		return s
	}
	return &namespaced{inner: s, prefix: prefix + ":"}
}

func (n *namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.inner.Get(ctx, n.prefix+key)
}

func (n *namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.prefix+key, value)
}

func (n *namespaced) Delete(ctx context.Context, key string) error {
	return n.inner.Delete(ctx, n.prefix+key)
}

// GetInt64 reports ok=false when the key is absent. A present but
// unparsable value is an error.
func GetInt64(ctx context.Context, s Store, key string) (int64, bool, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("kv: decode %q as int64: %w", key, err)
	}
	return n, true, nil
}

func SetInt64(ctx context.Context, s Store, key string, v int64) error {
	return s.Set(ctx, key, strconv.FormatInt(v, 10))
}

// GetJSON decodes the value at key into v. Absent keys return ErrNotFound.
func GetJSON(ctx context.Context, s Store, key string, v any) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("kv: decode %q: %w", key, err)
	}
	return nil
}

func SetJSON(ctx context.Context, s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("kv: encode %q: %w", key, err)
	}
	return s.Set(ctx, key, string(b))
}
