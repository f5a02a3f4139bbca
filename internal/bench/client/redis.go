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
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisClient implements KvClient against a Redis server: a record is
// stored as a hash keyed by "kvbench:<namespace>:<set>:<key>", one field
// per bin, each bin JSON-encoded so nested list/map values survive the
// round trip. udf_apply is implemented as a Lua EVAL, the same
// idempotent-scripting idiom used elsewhere in this codebase for
// server-side atomic updates.
type RedisClient struct {
	AsyncAdapter

	rdb       *redis.Client
	Namespace string
	Set       string
}

// NewRedisClient wraps an existing *redis.Client.
func NewRedisClient(rdb *redis.Client, namespace, set string) *RedisClient {
	c := &RedisClient{rdb: rdb, Namespace: namespace, Set: set}
	c.AsyncAdapter = AsyncAdapter{Sync: c}
	return c
}

// Ping checks that the underlying Redis connection is reachable, used by
// the async event-loop startup path to fail fast rather than discover a
// dead backend from the first worker's callback.
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisClient) wireKey(key int64) string {
	return fmt.Sprintf("kvbench:%s:%s:%d", c.Namespace, c.Set, key)
}

func (c *RedisClient) Put(ctx context.Context, key int64, record map[string]any, policy Policy) error {
	fields := make(map[string]any, len(record))
	for bin, v := range record {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("kvbench: encoding bin %q: %w", bin, err)
		}
		fields[bin] = b
	}
	if err := c.rdb.HSet(ctx, c.wireKey(key), fields).Err(); err != nil {
		return translateRedisErr(err)
	}
	if policy.TotalTimeout > 0 {
		c.rdb.Expire(ctx, c.wireKey(key), policy.TotalTimeout)
	}
	return nil
}

func (c *RedisClient) Get(ctx context.Context, key int64, policy Policy) (map[string]any, error) {
	raw, err := c.rdb.HGetAll(ctx, c.wireKey(key)).Result()
	if err != nil {
		return nil, translateRedisErr(err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	record := make(map[string]any, len(raw))
	for bin, jsonVal := range raw {
		var v any
		if err := json.Unmarshal([]byte(jsonVal), &v); err != nil {
			return nil, fmt.Errorf("kvbench: decoding bin %q: %w", bin, err)
		}
		record[bin] = v
	}
	return record, nil
}

func (c *RedisClient) Delete(ctx context.Context, key int64, policy Policy) error {
	n, err := c.rdb.Del(ctx, c.wireKey(key)).Result()
	if err != nil {
		return translateRedisErr(err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *RedisClient) BatchRead(ctx context.Context, keys []int64, policy Policy) ([]BatchResult, error) {
	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(keys))
	for i, k := range keys {
		cmds[i] = pipe.HGetAll(ctx, c.wireKey(k))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, translateRedisErr(err)
	}
	results := make([]BatchResult, len(keys))
	for i, k := range keys {
		raw, err := cmds[i].Result()
		if err != nil {
			results[i] = BatchResult{Key: k, Err: translateRedisErr(err)}
			continue
		}
		if len(raw) == 0 {
			results[i] = BatchResult{Key: k, Err: ErrNotFound}
			continue
		}
		record := make(map[string]any, len(raw))
		for bin, jsonVal := range raw {
			var v any
			_ = json.Unmarshal([]byte(jsonVal), &v)
			record[bin] = v
		}
		results[i] = BatchResult{Key: k, Record: record}
	}
	return results, nil
}

// udfLuaScript applies a named update function's effect idempotently: it
// increments a generation counter stored alongside the record so repeated
// delivery (e.g. after a client-side retry) is a no-op once the generation
// marker has already advanced past the supplied expected value.
const udfLuaScript = `
local key = KEYS[1]
local marker = KEYS[2]
local fn = ARGV[1]
local expectGen = tonumber(ARGV[2])
local gen = tonumber(redis.call('GET', marker) or "0")
if gen >= expectGen then
  return 0
end
redis.call('HSET', key, '_udf', fn)
redis.call('SET', marker, expectGen)
return 1
`

func (c *RedisClient) UDFApply(ctx context.Context, key int64, module, function string, args map[string]any, policy Policy) error {
	marker := c.wireKey(key) + ":udfgen"
	gen, err := c.rdb.Incr(ctx, c.wireKey(key)+":udfseq").Result()
	if err != nil {
		return translateRedisErr(err)
	}
	keys := []string{c.wireKey(key), marker}
	if err := c.rdb.Eval(ctx, udfLuaScript, keys, module+"."+function, gen).Err(); err != nil {
		return translateRedisErr(err)
	}
	return nil
}

func translateRedisErr(err error) error {
	if err == redis.Nil {
		return ErrNotFound
	}
	if err == context.DeadlineExceeded {
		return ErrTimeout
	}
	return &OpError{Code: 1, Msg: err.Error()}
}
