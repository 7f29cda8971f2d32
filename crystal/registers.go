// Copyright 2025 go-highway Authors
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

package crystal

// RegisterTile holds ItemsPerThread values for each of the BlockThreads
// threads of a block. It stands in for the per-thread register arrays of a
// GPU kernel and is private to one block invocation.
type RegisterTile[T Lanes] struct {
	threads   int
	perThread int
	data      []T
}

// NewRegisterTile allocates a zeroed register tile shaped by cfg.
func NewRegisterTile[T Lanes](cfg Config) *RegisterTile[T] {
	return &RegisterTile[T]{
		threads:   cfg.BlockThreads,
		perThread: cfg.ItemsPerThread,
		data:      make([]T, cfg.TileSize()),
	}
}

// Thread returns the registers of thread tid.
func (r *RegisterTile[T]) Thread(tid int) []T {
	base := tid * r.perThread
	return r.data[base : base+r.perThread : base+r.perThread]
}

// At returns slot item of thread tid.
func (r *RegisterTile[T]) At(tid, item int) T {
	return r.data[tid*r.perThread+item]
}

// Set stores v in slot item of thread tid.
func (r *RegisterTile[T]) Set(tid, item int, v T) {
	r.data[tid*r.perThread+item] = v
}

// Clear zeroes every register.
func (r *RegisterTile[T]) Clear() {
	clear(r.data)
}

// Threads returns the number of threads the tile was shaped for.
func (r *RegisterTile[T]) Threads() int { return r.threads }

// ItemsPerThread returns the number of slots per thread.
func (r *RegisterTile[T]) ItemsPerThread() int { return r.perThread }
