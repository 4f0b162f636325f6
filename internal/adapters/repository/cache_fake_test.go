package repository_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

// fakeCache is an in-memory ports.Cache for tests. It records invalidations
// so cache-aside behavior can be asserted without Redis.
type fakeCache struct {
	mu sync.Mutex

	data            map[string][]byte
	removed         []string
	removedPrefixes []string

	failReads  bool
	failWrites bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failReads {
		return false
	}

	payload, ok := c.data[key]
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return false
	}
	return true
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failWrites {
		return errors.New("cache backend unavailable")
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = payload
	return nil
}

func (c *fakeCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failWrites {
		return errors.New("cache backend unavailable")
	}

	delete(c.data, key)
	c.removed = append(c.removed, key)
	return nil
}

func (c *fakeCache) RemoveByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failWrites {
		return errors.New("cache backend unavailable")
	}

	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	c.removedPrefixes = append(c.removedPrefixes, prefix)
	return nil
}

func (c *fakeCache) contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

func (c *fakeCache) seed(key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	c.data[key] = payload
	c.mu.Unlock()
}
