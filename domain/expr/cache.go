package expr

import (
	gocache "github.com/patrickmn/go-cache"
)

// Cache memoizes parse results by source text. Parsing is deterministic,
// so concurrent population races are harmless; the underlying store is
// safe for unsynchronized use. The cache is owned by its creator (the
// definition loader) rather than being process-global, so tests can run
// with isolated caches.
type Cache struct {
	store *gocache.Cache
}

func NewCache() *Cache {
	return &Cache{store: gocache.New(gocache.NoExpiration, 0)}
}

func (c *Cache) Parse(source string) (Node, error) {
	if cached, found := c.store.Get(source); found {
		return cached.(Node), nil
	}
	node, err := Parse(source)
	if err != nil {
		return nil, err
	}
	c.store.Set(source, node, gocache.NoExpiration)
	return node, nil
}

func (c *Cache) ParseTemplate(source string) (*Template, error) {
	key := "template\x00" + source
	if cached, found := c.store.Get(key); found {
		return cached.(*Template), nil
	}
	t, err := ParseTemplate(source)
	if err != nil {
		return nil, err
	}
	c.store.Set(key, t, gocache.NoExpiration)
	return t, nil
}
