// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package client

import (
	"context"
	"strconv"

	farm "github.com/dgryski/go-farm"
	"github.com/dgryski/go-rendezvous"
)

// Router spreads keys across a fixed set of shard KvClients using
// rendezvous (highest random weight) hashing, so a benchmark can target a
// sharded cluster instead of a single backend instance. Rendezvous hashing
// is preferred over a modulo scheme because adding or removing a shard
// only remaps the keys that hashed to the changed shard, not the whole
// keyspace.
type Router struct {
	AsyncAdapter

	shards []KvClient
	rdv    *rendezvous.Rendezvous
}

// NewRouter returns a Router distributing keys across shards by index.
func NewRouter(shards []KvClient) *Router {
	nodes := make([]string, len(shards))
	for i := range shards {
		nodes[i] = strconv.Itoa(i)
	}
	r := &Router{shards: shards}
	r.rdv = rendezvous.New(nodes, hashNode)
	r.AsyncAdapter = AsyncAdapter{Sync: r}
	return r
}

func hashNode(s string) uint64 {
	return farm.Hash64([]byte(s))
}

func (r *Router) shardFor(key int64) KvClient {
	nodeStr := r.rdv.Lookup(strconv.FormatInt(key, 10))
	idx, err := strconv.Atoi(nodeStr)
	if err != nil || idx < 0 || idx >= len(r.shards) {
		idx = 0
	}
	return r.shards[idx]
}

func (r *Router) Put(ctx context.Context, key int64, record map[string]any, policy Policy) error {
	return r.shardFor(key).Put(ctx, key, record, policy)
}

func (r *Router) Get(ctx context.Context, key int64, policy Policy) (map[string]any, error) {
	return r.shardFor(key).Get(ctx, key, policy)
}

func (r *Router) Delete(ctx context.Context, key int64, policy Policy) error {
	return r.shardFor(key).Delete(ctx, key, policy)
}

func (r *Router) UDFApply(ctx context.Context, key int64, module, function string, args map[string]any, policy Policy) error {
	return r.shardFor(key).UDFApply(ctx, key, module, function, args, policy)
}

// BatchRead groups keys by shard, issues one BatchRead per shard, and
// reassembles results in the caller's original key order.
func (r *Router) BatchRead(ctx context.Context, keys []int64, policy Policy) ([]BatchResult, error) {
	byShard := make(map[KvClient][]int64)
	for _, k := range keys {
		shard := r.shardFor(k)
		byShard[shard] = append(byShard[shard], k)
	}
	perKey := make(map[int64]BatchResult, len(keys))
	for shard, shardKeys := range byShard {
		res, err := shard.BatchRead(ctx, shardKeys, policy)
		if err != nil {
			return nil, err
		}
		for _, r := range res {
			perKey[r.Key] = r
		}
	}
	out := make([]BatchResult, len(keys))
	for i, k := range keys {
		out[i] = perKey[k]
	}
	return out, nil
}
