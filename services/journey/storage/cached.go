// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultCacheSize is the number of keys CachedStore keeps when no size is given.
const DefaultCacheSize = 1024

// cacheCounters are the hit and miss counters of one CachedStore.
type cacheCounters struct {
	hits   prometheus.Counter
	misses prometheus.Counter
}

func newCacheCounters(reg prometheus.Registerer) (cc cacheCounters, err error) {
	// promauto panics on duplicate registration; surface it as an error.
	defer func() {
		if r := recover(); r != nil {
			cc, err = cacheCounters{}, fmt.Errorf("register cache collectors: %v", r)
		}
	}()
	f := promauto.With(reg)
	return cacheCounters{
		hits: f.NewCounter(prometheus.CounterOpts{
			Name: "journey_storage_cache_hits_total",
			Help: "Reads served from the journey storage LRU cache",
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Name: "journey_storage_cache_misses_total",
			Help: "Reads that fell through the journey storage LRU cache",
		}),
	}, nil
}

// CacheOption configures a CachedStore.
type CacheOption func(*cacheConfig)

type cacheConfig struct {
	reg prometheus.Registerer
}

// WithCacheRegisterer registers the hit and miss counters on reg. Without it
// the counters still count but are not exported.
func WithCacheRegisterer(reg prometheus.Registerer) CacheOption {
	return func(c *cacheConfig) { c.reg = reg }
}

// CachedStore is a write-through LRU cache in front of another Store.
//
// Description:
//
//	Reads are served from the cache when present; misses read the backing
//	store and populate the cache when the key exists. Writes and removals go
//	to the backing store first and only touch the cache once that succeeds,
//	so the cache never holds a value the backing store rejected. Missing keys
//	are not cached.
//
// Thread Safety: Safe for concurrent use.
type CachedStore struct {
	backing Store
	cache   *lru.Cache[string, []byte]
	metrics cacheCounters
}

// NewCachedStore wraps backing with an LRU of the given size.
//
// Inputs:
//
//	backing - The authoritative store. Must not be nil.
//	size - Maximum cached keys. Zero or negative uses DefaultCacheSize.
//	opts - Optional Prometheus registerer.
//
// Outputs:
//
//	*CachedStore - The wrapper.
//	error - Non-nil if backing is nil or the counters cannot be registered.
func NewCachedStore(backing Store, size int, opts ...CacheOption) (*CachedStore, error) {
	if backing == nil {
		return nil, errors.New("backing store must not be nil")
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	var cfg cacheConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	metrics, err := newCacheCounters(cfg.reg)
	if err != nil {
		return nil, err
	}
	return &CachedStore{backing: backing, cache: cache, metrics: metrics}, nil
}

func (c *CachedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}
	if v, ok := c.cache.Get(key); ok {
		c.metrics.hits.Inc()
		return append([]byte(nil), v...), true, nil
	}
	c.metrics.misses.Inc()

	v, ok, err := c.backing.Get(ctx, key)
	if err != nil || !ok {
		return v, ok, err
	}
	c.cache.Add(key, append([]byte(nil), v...))
	return v, true, nil
}

func (c *CachedStore) Set(ctx context.Context, key string, value []byte) error {
	if err := c.backing.Set(ctx, key, value); err != nil {
		c.cache.Remove(key)
		return err
	}
	c.cache.Add(key, append([]byte(nil), value...))
	return nil
}

func (c *CachedStore) Remove(ctx context.Context, key string) error {
	c.cache.Remove(key)
	return c.backing.Remove(ctx, key)
}

// Purge drops every cached entry without touching the backing store.
func (c *CachedStore) Purge() {
	c.cache.Purge()
}

// Len returns the number of cached keys.
func (c *CachedStore) Len() int {
	return c.cache.Len()
}
