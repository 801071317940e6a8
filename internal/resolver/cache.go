package resolver

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// refCache memoizes resolved resource names by logical key. Entries are
// written once and never evicted; the set of distinct keys is bounded by the
// upload session the resolver serves.
type refCache struct {
	group singleflight.Group

	mu   sync.Mutex
	refs map[string]string
}

func newRefCache() *refCache {
	return &refCache{refs: make(map[string]string)}
}

// resolve returns the cached resource name for key, running fill at most once
// per key to obtain it. Concurrent callers for the same unresolved key share
// one in-flight fill and receive its result. A failed fill leaves the cache
// unchanged, so the next call for the same key retries from scratch.
func (c *refCache) resolve(ctx context.Context, key string, fill func(context.Context) (string, error)) (string, error) {
	c.mu.Lock()
	ref, ok := c.refs[key]
	c.mu.Unlock()
	if ok {
		return ref, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A previous flight may have finished between the cache check and
		// joining the group.
		c.mu.Lock()
		ref, ok := c.refs[key]
		c.mu.Unlock()
		if ok {
			return ref, nil
		}

		ref, err := fill(ctx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.refs[key] = ref
		c.mu.Unlock()
		return ref, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
