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

import "sync/atomic"

// ShuffleDownAdd adds lane l+offset into lane l for every lane of a warp, as
// one simultaneous exchange. Lanes that would read past the warp receive 0,
// so the upper offset lanes keep their value.
//
// [1,2,3,4,5,6,7,8] with offset=2 -> [4,6,8,10,12,14,7,8]
func ShuffleDownAdd[T Lanes](lanes []T, offset int) {
	if offset <= 0 {
		return
	}
	// Ascending order reads lane l+offset before it is overwritten.
	for l := 0; l+offset < len(lanes); l++ {
		lanes[l] += lanes[l+offset]
	}
}

// WarpReduce folds a warp with log2(len(lanes)) shuffle-down steps and
// returns lane 0. The lanes are consumed.
func WarpReduce[T Lanes](lanes []T) T {
	if len(lanes) == 0 {
		return 0
	}
	for offset := len(lanes) / 2; offset > 0; offset /= 2 {
		ShuffleDownAdd(lanes, offset)
	}
	return lanes[0]
}

// ReduceThreads sums one partial value per thread with the two-level tree of
// a thread block: each warp reduces its lanes, lane 0 of warp w writes the
// warp total to shared[w], and after the barrier the first warp reduces
// shared, reading 0 for lanes at or above the warp count.
//
// values must hold BlockThreads entries and is not modified.
func ReduceThreads[T Lanes](cfg Config, values []T) T {
	ws := cfg.WarpSize
	lanes := make([]T, len(values))
	copy(lanes, values)
	shared := make([]T, ws)
	for w := range cfg.NumWarps() {
		shared[w] = WarpReduce(lanes[w*ws : (w+1)*ws])
	}
	return WarpReduce(shared)
}

// BlockSum returns the sum of the tile's valid register slots.
func BlockSum[T Lanes](t Tile, items *RegisterTile[T]) T {
	partial := make([]T, t.BlockThreads)
	for tid := range t.BlockThreads {
		regs := items.Thread(tid)
		var sum T
		for i := range t.ThreadItems(tid) {
			sum += regs[i]
		}
		partial[tid] = sum
	}
	return ReduceThreads(t.Config, partial)
}

// BlockReduce reduces one partial sum per thread and commits the block total
// to acc with a single atomic add. It returns the block total.
func BlockReduce(cfg Config, threadSums []uint64, acc *Accumulator) uint64 {
	total := ReduceThreads(cfg, threadSums)
	acc.Add(total)
	return total
}

// Accumulator is a grid-wide 64-bit sum. Blocks add to it concurrently;
// overflow wraps around.
type Accumulator struct {
	v atomic.Uint64
}

// Add adds delta.
func (a *Accumulator) Add(delta uint64) { a.v.Add(delta) }

// Load returns the current total.
func (a *Accumulator) Load() uint64 { return a.v.Load() }

// Reset zeroes the total.
func (a *Accumulator) Reset() { a.v.Store(0) }

// Bytes returns the device memory footprint.
func (a *Accumulator) Bytes() int64 { return 8 }
