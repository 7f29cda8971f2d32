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

package device

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ajroetker/go-crystal/crystal"
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLaunchCoversGrid(t *testing.T) {
	dev := New(WithWorkers(4))
	defer dev.Close()

	cfg := crystal.DefaultConfig()
	for _, n := range []int{0, 1, cfg.TileSize() - 1, cfg.TileSize(), cfg.TileSize() + 1, 100_000} {
		var rows, blocks atomic.Int64
		err := dev.Launch("count", cfg, n, func(t crystal.Tile) {
			blocks.Add(1)
			rows.Add(int64(t.NumItems))
		})
		require.NoError(t, err)
		require.Equal(t, int64(n), rows.Load())
		require.Equal(t, int64(cfg.NumBlocks(n)), blocks.Load())
	}
}

func TestLaunchInvalidConfig(t *testing.T) {
	dev := New()
	defer dev.Close()

	err := dev.Launch("bad", crystal.Config{BlockThreads: 3, ItemsPerThread: 1, WarpSize: 2}, 10, func(crystal.Tile) {
		t.Fatal("kernel must not run")
	})
	require.True(t, errors.Is(err, crystal.ErrInvalidConfig), "%v", err)
}

func TestLaunchRecoversFault(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	reg := prometheus.NewRegistry()
	dev := New(WithWorkers(2), WithLogger(zap.New(core)), WithRegisterer(reg))
	defer dev.Close()

	cfg := crystal.DefaultConfig()
	col := make([]int32, 10)
	err := dev.Launch("oob", cfg, 5*cfg.TileSize(), func(t crystal.Tile) {
		regs := crystal.NewRegisterTile[int32](cfg)
		crystal.BlockLoad(t, col, regs)
	})
	require.True(t, errors.Is(err, ErrKernelFault), "%v", err)
	require.Contains(t, err.Error(), "kernel oob")
	require.Equal(t, 1, logs.Len())
	require.Equal(t, "kernel fault", logs.All()[0].Message)
	require.Equal(t, 1.0, testutil.ToFloat64(dev.metrics.faults.WithLabelValues("oob")))
	require.Equal(t, 1.0, testutil.ToFloat64(dev.metrics.launches.WithLabelValues("oob")))

	// The device stays usable after a fault.
	require.NoError(t, dev.Launch("ok", cfg, 10, func(crystal.Tile) {}))
}

func TestReserve(t *testing.T) {
	dev := New(WithMemoryLimit(1 << 10))
	defer dev.Close()

	release, err := dev.Reserve("a", 600)
	require.NoError(t, err)
	require.Equal(t, int64(600), dev.Reserved())

	_, err = dev.Reserve("b", 600)
	require.True(t, errors.Is(err, ErrOutOfMemory), "%v", err)
	require.Contains(t, err.Error(), "b: 600 B requested")

	release()
	release()
	require.Zero(t, dev.Reserved())
	require.Zero(t, testutil.ToFloat64(dev.metrics.reserved))

	release, err = dev.Reserve("b", 600)
	require.NoError(t, err)
	release()
}

func TestReserveUnlimited(t *testing.T) {
	dev := New()
	defer dev.Close()

	release, err := dev.Reserve("huge", 1<<40)
	require.NoError(t, err)
	release()
}

type counterBuffer struct{ resets atomic.Int32 }

func (c *counterBuffer) Reset() { c.resets.Add(1) }

func TestMemset(t *testing.T) {
	dev := New(WithWorkers(3))
	defer dev.Close()

	bufs := make([]*counterBuffer, 7)
	args := make([]Buffer, len(bufs))
	for i := range bufs {
		bufs[i] = &counterBuffer{}
		args[i] = bufs[i]
	}
	dev.Memset(args...)
	for i, b := range bufs {
		require.Equal(t, int32(1), b.resets.Load(), "buffer %d", i)
	}
}

// rangeBuffer records the slot ranges Memset zeroes.
type rangeBuffer struct {
	counterBuffer
	slots    []atomic.Int32
	counters atomic.Int32
}

func (r *rangeBuffer) Slots() int { return len(r.slots) }

func (r *rangeBuffer) ResetSlots(start, end int) {
	for i := start; i < end; i++ {
		r.slots[i].Add(1)
	}
}

func (r *rangeBuffer) ResetCounters() { r.counters.Add(1) }

func TestMemsetSplitsLargeBuffers(t *testing.T) {
	dev := New(WithWorkers(4))
	defer dev.Close()

	large := &rangeBuffer{slots: make([]atomic.Int32, memsetSplit+5)}
	small := &rangeBuffer{slots: make([]atomic.Int32, 10)}
	dev.Memset(large, small)

	require.Zero(t, large.resets.Load())
	require.Equal(t, int32(1), large.counters.Load())
	for i := range large.slots {
		if got := large.slots[i].Load(); got != 1 {
			t.Fatalf("slot %d zeroed %d times", i, got)
		}
	}
	require.Equal(t, int32(1), small.resets.Load())
	require.Zero(t, small.counters.Load())
}

func TestMemsetPairTable(t *testing.T) {
	dev := New(WithWorkers(4))
	defer dev.Close()

	n := 2 * memsetSplit
	keys := make([]int32, n)
	for i := range keys {
		keys[i] = int32(i + 1)
	}
	ht := crystal.NewPairTable[int32, int32](n, 1)
	cfg := crystal.DefaultConfig()
	require.NoError(t, dev.Launch("build", cfg, n, func(tile crystal.Tile) {
		kr := crystal.NewRegisterTile[int32](cfg)
		m := crystal.NewSelectionMask(cfg)
		crystal.BlockLoad(tile, keys, kr)
		crystal.InitFlags(tile, m)
		crystal.BuildPairs(tile, kr, kr, m, ht)
	}))
	require.Equal(t, n, ht.Len())

	dev.Memset(ht)
	require.Zero(t, ht.Len())
	require.NoError(t, ht.Err())
}

func TestSerialEnv(t *testing.T) {
	t.Setenv("CRYSTAL_SERIAL", "1")
	dev := New(WithWorkers(8))
	defer dev.Close()

	require.Equal(t, 1, dev.Workers())
	require.True(t, strings.HasSuffix(dev.Name(), "(serial)"), dev.Name())

	var order []int
	require.NoError(t, dev.Launch("ordered", crystal.DefaultConfig(), 10*crystal.DefaultConfig().TileSize(), func(t crystal.Tile) {
		order = append(order, t.Index)
	}))
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)

	t.Setenv("CRYSTAL_SERIAL", "false")
	require.False(t, SerialEnv())
}

func TestHostString(t *testing.T) {
	h := Host{Arch: "amd64", Features: []string{"avx2", "fma"}, CPUs: 16}
	require.Equal(t, "amd64 (avx2, fma), 16 CPUs", h.String())
	h.Features = nil
	require.Equal(t, "amd64, 16 CPUs", h.String())
	require.NotEmpty(t, CurrentHost().Arch)
}

func TestStopwatch(t *testing.T) {
	sw := StartStopwatch()
	time.Sleep(time.Millisecond)
	first := sw.Lap()
	require.GreaterOrEqual(t, first, time.Millisecond)
	require.GreaterOrEqual(t, sw.Total(), first)
}
