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
	"sync"
)

// Mock is an in-process KvClient backed by a guarded map. It never times
// out or errors on its own; it exists for unit tests and dependency-free
// smoke runs, never as the default backend for a real benchmark.
type Mock struct {
	AsyncAdapter

	mu      sync.RWMutex
	records map[int64]map[string]any
}

// NewMock returns an empty Mock client.
func NewMock() *Mock {
	m := &Mock{records: make(map[int64]map[string]any)}
	m.AsyncAdapter = AsyncAdapter{Sync: m}
	return m
}

func (m *Mock) Put(ctx context.Context, key int64, record map[string]any, policy Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]any, len(record))
	for k, v := range record {
		cp[k] = v
	}
	m.records[key] = cp
	return nil
}

func (m *Mock) Get(ctx context.Context, key int64, policy Policy) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make(map[string]any, len(rec))
	for k, v := range rec {
		cp[k] = v
	}
	return cp, nil
}

func (m *Mock) Delete(ctx context.Context, key int64, policy Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[key]; !ok {
		return ErrNotFound
	}
	delete(m.records, key)
	return nil
}

func (m *Mock) BatchRead(ctx context.Context, keys []int64, policy Policy) ([]BatchResult, error) {
	results := make([]BatchResult, len(keys))
	for i, k := range keys {
		rec, err := m.Get(ctx, k, policy)
		results[i] = BatchResult{Key: k, Record: rec, Err: err}
	}
	return results, nil
}

func (m *Mock) UDFApply(ctx context.Context, key int64, module, function string, args map[string]any, policy Policy) error {
	// The mock has no UDF runtime; it records that the function "ran" by
	// stamping a marker bin, which is enough for tests exercising the
	// UDF dice branch end to end.
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[key]
	if !ok {
		rec = make(map[string]any)
		m.records[key] = rec
	}
	rec["_udf"] = module + "." + function
	return nil
}
