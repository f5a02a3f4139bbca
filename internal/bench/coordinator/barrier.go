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

package coordinator

import "sync"

// Barrier is a reusable N-way rendezvous point. Unlike sync.WaitGroup it
// can be waited on repeatedly: each completed round increments an internal
// generation counter so that goroutines which call Wait again immediately
// are not confused by stragglers from the previous round.
type Barrier struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	count      int
	generation uint64
}

// NewBarrier returns a Barrier that releases once n goroutines have called
// Wait.
func NewBarrier(n int) *Barrier {
	b := &Barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks until n goroutines (across all callers of this Barrier) have
// called Wait for the current round, then releases all of them together.
func (b *Barrier) Wait() {
	b.mu.Lock()
	gen := b.generation
	b.count++
	if b.count == b.n {
		b.count = 0
		b.generation++
		b.cond.Broadcast()
		b.mu.Unlock()
		return
	}
	for gen == b.generation {
		b.cond.Wait()
	}
	b.mu.Unlock()
}
