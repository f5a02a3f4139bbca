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

// Package client defines the abstract KvClient the benchmark core drives,
// and provides concrete backends (an in-memory mock, Redis, Postgres) plus
// a rendezvous-hash router that spreads keys across a set of backends.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned when an operation exceeds its policy's timeout.
var ErrTimeout = errors.New("kvbench: operation timed out")

// ErrNotFound is returned by Get and Delete when the key does not exist.
var ErrNotFound = errors.New("kvbench: key not found")

// OpError wraps a backend-specific error code and message, for the
// "error(code, msg)" outcome named in the core's KvClient contract.
type OpError struct {
	Code int
	Msg  string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("kvbench: error %d: %s", e.Code, e.Msg)
}

// Policy carries the per-operation tunables the core's contract names:
// timeouts, retries, commit level, read mode, durability, and a
// compression hint. It is a plain value type, threaded through every call
// alongside a context.Context used for cancellation/deadline.
type Policy struct {
	SocketTimeout    time.Duration
	TotalTimeout     time.Duration
	Retries          int
	CommitLevel      string // e.g. "all", "master"
	ReadModeAP       string // e.g. "one", "all"
	Durable          bool
	CompressionRatio float64
}

// BatchResult is one element of a BatchRead response: either a record, or
// an error (which may be ErrNotFound).
type BatchResult struct {
	Key    int64
	Record map[string]any
	Err    error
}

// SyncClient is the blocking half of KvClient.
type SyncClient interface {
	Put(ctx context.Context, key int64, record map[string]any, policy Policy) error
	Get(ctx context.Context, key int64, policy Policy) (map[string]any, error)
	Delete(ctx context.Context, key int64, policy Policy) error
	BatchRead(ctx context.Context, keys []int64, policy Policy) ([]BatchResult, error)
	UDFApply(ctx context.Context, key int64, module, function string, args map[string]any, policy Policy) error
}

// Callback reports the outcome of an asynchronous Put/Delete/UDFApply.
type Callback func(err error)

// GetCallback reports the outcome of an asynchronous Get.
type GetCallback func(record map[string]any, err error)

// BatchCallback reports the outcome of an asynchronous BatchRead.
type BatchCallback func(results []BatchResult, err error)

// KvClient is the full abstract collaborator the benchmark core drives:
// synchronous and asynchronous put/get/delete/batch_read/udf_apply.
// Implementations must be safe for concurrent use by many worker
// goroutines.
type KvClient interface {
	SyncClient

	PutAsync(ctx context.Context, key int64, record map[string]any, policy Policy, cb Callback)
	GetAsync(ctx context.Context, key int64, policy Policy, cb GetCallback)
	DeleteAsync(ctx context.Context, key int64, policy Policy, cb Callback)
	BatchReadAsync(ctx context.Context, keys []int64, policy Policy, cb BatchCallback)
	UDFApplyAsync(ctx context.Context, key int64, module, function string, args map[string]any, policy Policy, cb Callback)
}

// AsyncAdapter supplies the five *Async methods of KvClient in terms of a
// SyncClient, by running the blocking call on its own goroutine and
// delivering the result to the callback. Concrete backends embed this
// instead of hand-writing the same goroutine-wrapping five times.
type AsyncAdapter struct {
	Sync SyncClient
}

func (a AsyncAdapter) PutAsync(ctx context.Context, key int64, record map[string]any, policy Policy, cb Callback) {
	go func() { cb(a.Sync.Put(ctx, key, record, policy)) }()
}

func (a AsyncAdapter) GetAsync(ctx context.Context, key int64, policy Policy, cb GetCallback) {
	go func() {
		rec, err := a.Sync.Get(ctx, key, policy)
		cb(rec, err)
	}()
}

func (a AsyncAdapter) DeleteAsync(ctx context.Context, key int64, policy Policy, cb Callback) {
	go func() { cb(a.Sync.Delete(ctx, key, policy)) }()
}

func (a AsyncAdapter) BatchReadAsync(ctx context.Context, keys []int64, policy Policy, cb BatchCallback) {
	go func() {
		res, err := a.Sync.BatchRead(ctx, keys, policy)
		cb(res, err)
	}()
}

func (a AsyncAdapter) UDFApplyAsync(ctx context.Context, key int64, module, function string, args map[string]any, policy Policy, cb Callback) {
	go func() { cb(a.Sync.UDFApply(ctx, key, module, function, args, policy)) }()
}
