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

import (
	"math/bits"

	"github.com/cockroachdb/errors"
)

// Config describes the shape of a thread block. It replaces the compile-time
// block_threads / items_per_thread template parameters of a GPU kernel with
// runtime values, so one kernel body serves every tile size.
type Config struct {
	// BlockThreads is the number of logical threads per block.
	BlockThreads int `toml:"block_threads"`

	// ItemsPerThread is the number of register slots each thread owns.
	ItemsPerThread int `toml:"items_per_thread"`

	// WarpSize is the number of threads that reduce together with
	// shuffle-down exchanges.
	WarpSize int `toml:"warp_size"`
}

// DefaultConfig returns 128 threads × 4 items with 32-lane warps.
func DefaultConfig() Config {
	return Config{
		BlockThreads:   128,
		ItemsPerThread: 4,
		WarpSize:       32,
	}
}

// TileSize returns BlockThreads × ItemsPerThread, the nominal number of rows
// handled by one block.
func (c Config) TileSize() int {
	return c.BlockThreads * c.ItemsPerThread
}

// NumWarps returns the number of warps in a block.
func (c Config) NumWarps() int {
	return c.BlockThreads / c.WarpSize
}

// NumBlocks returns ceil(numRows / TileSize), the grid size for a column of
// numRows rows.
func (c Config) NumBlocks(numRows int) int {
	size := c.TileSize()
	if numRows <= 0 || size <= 0 {
		return 0
	}
	return (numRows + size - 1) / size
}

// Validate reports whether the configuration can run the block primitives.
// The two-level reduction needs whole warps and at most WarpSize warps, so
// that the first warp can fold every per-warp partial sum.
func (c Config) Validate() error {
	switch {
	case c.BlockThreads <= 0:
		return errors.Wrapf(ErrInvalidConfig, "block_threads must be positive, got %d", c.BlockThreads)
	case c.ItemsPerThread <= 0:
		return errors.Wrapf(ErrInvalidConfig, "items_per_thread must be positive, got %d", c.ItemsPerThread)
	case c.WarpSize <= 0 || bits.OnesCount(uint(c.WarpSize)) != 1:
		return errors.Wrapf(ErrInvalidConfig, "warp_size must be a power of two, got %d", c.WarpSize)
	case c.BlockThreads%c.WarpSize != 0:
		return errors.Wrapf(ErrInvalidConfig,
			"block_threads (%d) must be a multiple of warp_size (%d)", c.BlockThreads, c.WarpSize)
	case c.NumWarps() > c.WarpSize:
		return errors.Wrapf(ErrInvalidConfig,
			"block has %d warps, more than warp_size (%d)", c.NumWarps(), c.WarpSize)
	}
	return nil
}
