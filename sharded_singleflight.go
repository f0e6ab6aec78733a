/*
File: sharded_singleflight.go
Version: 1.0.0
Description: A sharded wrapper around singleflight.Group. Intel lookups for a
             hot host coalesce onto one in-flight call without funneling every
             key through a single mutex.
*/

package main

import (
	"hash/maphash"

	"golang.org/x/sync/singleflight"
)

const flightShardCount = 128

type ShardedGroup struct {
	shards [flightShardCount]singleflight.Group
	seed   maphash.Seed
}

func NewShardedGroup() *ShardedGroup {
	return &ShardedGroup{seed: maphash.MakeSeed()}
}

func (g *ShardedGroup) getShard(key string) *singleflight.Group {
	var h maphash.Hash
	h.SetSeed(g.seed)
	h.WriteString(key)
	return &g.shards[h.Sum64()&(flightShardCount-1)]
}

func (g *ShardedGroup) Do(key string, fn func() (interface{}, error)) (v interface{}, err error, shared bool) {
	return g.getShard(key).Do(key, fn)
}

func (g *ShardedGroup) Forget(key string) {
	g.getShard(key).Forget(key)
}
