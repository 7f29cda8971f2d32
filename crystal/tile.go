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

// Path identifies which of the two per-tile code paths a block primitive
// takes.
type Path int

const (
	// PathDirect is taken by full tiles. Every register slot maps to a valid
	// row, so no bounds check is performed.
	PathDirect Path = iota

	// PathGuarded is taken by the final partial tile. Each slot is checked
	// against the tile's item count.
	PathGuarded
)

// String implements fmt.Stringer.
func (p Path) String() string {
	switch p {
	case PathDirect:
		return "direct"
	case PathGuarded:
		return "guarded"
	default:
		return "unknown"
	}
}

// Tile is the contiguous slice of rows handled by one thread block.
//
// Thread t, slot i of a tile corresponds to row Offset + t + i*BlockThreads.
// The striped layout means that, for a fixed slot, consecutive threads touch
// consecutive rows.
type Tile struct {
	Config

	// Index is the block index within the grid.
	Index int

	// Offset is the first row of the tile, Index × TileSize.
	Offset int

	// NumItems is the number of valid rows, TileSize for every tile except
	// possibly the last.
	NumItems int
}

// Partition returns the tile that block blockIdx handles over a column of
// numRows rows. Only the last block of the grid may be partial.
func Partition(cfg Config, blockIdx, numRows int) Tile {
	size := cfg.TileSize()
	offset := blockIdx * size
	n := numRows - offset
	if n > size {
		n = size
	}
	if n < 0 {
		n = 0
	}
	return Tile{
		Config:   cfg,
		Index:    blockIdx,
		Offset:   offset,
		NumItems: n,
	}
}

// Full reports whether the tile holds TileSize valid rows.
func (t Tile) Full() bool {
	return t.NumItems == t.TileSize()
}

// Path returns the code path block primitives take for this tile.
func (t Tile) Path() Path {
	if t.Full() {
		return PathDirect
	}
	return PathGuarded
}

// Valid reports whether thread tid, slot item maps to a row of the tile.
func (t Tile) Valid(tid, item int) bool {
	return tid+item*t.BlockThreads < t.NumItems
}

// Row returns the column row for thread tid, slot item.
func (t Tile) Row(tid, item int) int {
	return t.Offset + tid + item*t.BlockThreads
}

// ThreadItems returns how many leading slots of thread tid hold valid rows.
// Rows of a thread increase with the slot index, so the valid slots always
// form a prefix: all ItemsPerThread on the direct path, and
// ceil((NumItems-tid)/BlockThreads) clamped to [0, ItemsPerThread] on the
// guarded path.
func (t Tile) ThreadItems(tid int) int {
	if t.Full() {
		return t.ItemsPerThread
	}
	remaining := t.NumItems - tid
	if remaining <= 0 {
		return 0
	}
	n := (remaining + t.BlockThreads - 1) / t.BlockThreads
	if n > t.ItemsPerThread {
		n = t.ItemsPerThread
	}
	return n
}
