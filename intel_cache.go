/*
File: intel_cache.go
Version: 1.1.0
Description: Thread-safe sharded cache for threat-intel lookups. Bounded LRU
             per shard with TTL expiry applied lazily on read; no background
             sweeper competes with request-serving goroutines.
*/

package main

import (
	"container/list"
	"hash/maphash"
	"sync"
	"time"
)

const intelCacheShards = 64

type intelCacheEntry struct {
	key     string
	result  ThreatIntelResult
	expires time.Time
}

type intelCacheShard struct {
	sync.RWMutex
	items    map[string]*list.Element
	lruList  *list.List
	capacity int
}

type IntelCache struct {
	shards [intelCacheShards]*intelCacheShard
	seed   maphash.Seed
}

func NewIntelCache(capacity int) *IntelCache {
	c := &IntelCache{
		seed: maphash.MakeSeed(),
	}
	shardCap := capacity / intelCacheShards
	if shardCap < 1 {
		shardCap = 1
	}

	for i := 0; i < intelCacheShards; i++ {
		c.shards[i] = &intelCacheShard{
			items:    make(map[string]*list.Element),
			lruList:  list.New(),
			capacity: shardCap,
		}
	}
	return c
}

func (c *IntelCache) getShard(key string) *intelCacheShard {
	var h maphash.Hash
	h.SetSeed(c.seed)
	h.WriteString(key)
	return c.shards[h.Sum64()&(intelCacheShards-1)]
}

// Get returns the cached result if present and unexpired. Expired entries
// are evicted on the spot.
func (c *IntelCache) Get(key string) (ThreatIntelResult, bool) {
	shard := c.getShard(key)

	shard.RLock()
	el, found := shard.items[key]
	var expired bool
	if found {
		expired = time.Now().After(el.Value.(*intelCacheEntry).expires)
	}
	shard.RUnlock()

	if !found {
		return ThreatIntelResult{}, false
	}

	shard.Lock()
	defer shard.Unlock()
	el, found = shard.items[key]
	if !found {
		return ThreatIntelResult{}, false
	}
	entry := el.Value.(*intelCacheEntry)
	if expired || time.Now().After(entry.expires) {
		shard.lruList.Remove(el)
		delete(shard.items, key)
		return ThreatIntelResult{}, false
	}
	shard.lruList.MoveToFront(el)
	return entry.result, true
}

// Add stores a result with the given TTL, evicting the least recently used
// entry when the shard is full.
func (c *IntelCache) Add(key string, result ThreatIntelResult, ttl time.Duration) {
	shard := c.getShard(key)
	shard.Lock()
	defer shard.Unlock()

	expires := time.Now().Add(ttl)

	if el, found := shard.items[key]; found {
		shard.lruList.MoveToFront(el)
		entry := el.Value.(*intelCacheEntry)
		entry.result = result
		entry.expires = expires
		return
	}

	if shard.lruList.Len() >= shard.capacity {
		if oldest := shard.lruList.Back(); oldest != nil {
			shard.lruList.Remove(oldest)
			delete(shard.items, oldest.Value.(*intelCacheEntry).key)
		}
	}

	entry := &intelCacheEntry{key: key, result: result, expires: expires}
	shard.items[key] = shard.lruList.PushFront(entry)
}

func (c *IntelCache) Flush() {
	for _, shard := range c.shards {
		shard.Lock()
		shard.items = make(map[string]*list.Element)
		shard.lruList.Init()
		shard.Unlock()
	}
}

// Len reports the total number of resident entries, expired or not.
func (c *IntelCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.RLock()
		total += shard.lruList.Len()
		shard.RUnlock()
	}
	return total
}
