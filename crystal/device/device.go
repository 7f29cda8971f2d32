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

// Package device executes crystal kernels. A Device owns the worker pool
// that runs the blocks of a grid, tracks device memory reservations against
// a limit, and reports launches through zap and Prometheus.
//
// Usage:
//
//	dev := device.New(device.WithLogger(logger))
//	defer dev.Close()
//
//	release, err := dev.Reserve("hash_table", ht.Bytes())
//	if err != nil {
//	    return err
//	}
//	defer release()
//
//	err = dev.Launch("build", cfg, numRows, func(t crystal.Tile) { ... })
package device

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ajroetker/go-crystal/crystal"
	"github.com/ajroetker/go-crystal/crystal/contrib/workerpool"
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Options configures a Device.
type Options struct {
	// Workers is the number of goroutines that execute blocks. If <= 0,
	// uses GOMAXPROCS.
	Workers int `toml:"workers"`

	// MemoryLimit caps the bytes Reserve hands out. If <= 0, reservations
	// are unlimited.
	MemoryLimit int64 `toml:"memory_limit"`

	// Logger receives launch and fault records. Defaults to zap.NewNop().
	Logger *zap.Logger `toml:"-"`

	// Registerer receives the device metrics. Defaults to a private registry.
	Registerer prometheus.Registerer `toml:"-"`
}

// Option modifies Options.
type Option func(*Options)

// WithWorkers sets the number of block-executing goroutines.
func WithWorkers(n int) Option {
	return func(o *Options) { o.Workers = n }
}

// WithMemoryLimit caps device memory reservations at bytes.
func WithMemoryLimit(bytes int64) Option {
	return func(o *Options) { o.MemoryLimit = bytes }
}

// WithLogger sets the device logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithRegisterer sets where the device metrics are registered.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(o *Options) { o.Registerer = r }
}

// WithOptions copies every field of opts, for callers that load Options
// from a configuration file.
func WithOptions(opts Options) Option {
	return func(o *Options) { *o = opts }
}

// Device runs kernel grids on a persistent worker pool.
type Device struct {
	host     Host
	serial   bool
	pool     *workerpool.Pool
	logger   *zap.Logger
	metrics  *metrics
	limit    int64
	reserved atomic.Int64
}

// New creates a Device. Setting CRYSTAL_SERIAL forces a single worker.
func New(opts ...Option) *Device {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Registerer == nil {
		o.Registerer = prometheus.NewRegistry()
	}
	serial := SerialEnv()
	if serial {
		o.Workers = 1
	}
	d := &Device{
		host:    CurrentHost(),
		serial:  serial,
		pool:    workerpool.New(o.Workers),
		logger:  o.Logger,
		metrics: newMetrics(o.Registerer),
		limit:   o.MemoryLimit,
	}
	d.logger.Info("device ready", zap.String("name", d.Name()), zap.Int64("memory_limit", d.limit))
	return d
}

// Close stops the worker pool. Launches after Close run on the caller's
// goroutine.
func (d *Device) Close() {
	d.pool.Close()
}

// Name describes the device, as printed by "Running on ...".
func (d *Device) Name() string {
	mode := "parallel"
	if d.serial {
		mode = "serial"
	}
	return fmt.Sprintf("%s, %d workers (%s)", d.host, d.pool.NumWorkers(), mode)
}

// Host returns the processor the device runs on.
func (d *Device) Host() Host { return d.host }

// Workers returns the number of block-executing goroutines.
func (d *Device) Workers() int { return d.pool.NumWorkers() }

// Logger returns the device logger.
func (d *Device) Logger() *zap.Logger { return d.logger }

type kernelFault struct {
	block int
	value any
	stack []byte
}

// Launch runs kernel once per tile of a numRows-row grid shaped by cfg and
// returns when every block has finished. Blocks run concurrently in no
// particular order.
//
// A panic inside a block is recovered and returned as ErrKernelFault; blocks
// that have not started when the fault is seen are skipped.
func (d *Device) Launch(name string, cfg crystal.Config, numRows int, kernel func(crystal.Tile)) error {
	if err := cfg.Validate(); err != nil {
		return errors.Wrapf(err, "launch %s", name)
	}
	blocks := cfg.NumBlocks(numRows)

	var fault atomic.Pointer[kernelFault]
	start := time.Now()
	d.pool.Blocks(blocks, func(b int) {
		if fault.Load() != nil {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				fault.CompareAndSwap(nil, &kernelFault{block: b, value: r, stack: debug.Stack()})
			}
		}()
		kernel(crystal.Partition(cfg, b, numRows))
	})
	elapsed := time.Since(start)

	f := fault.Load()
	d.metrics.observeLaunch(name, elapsed, f != nil)
	if f != nil {
		d.logger.Error("kernel fault",
			zap.String("kernel", name),
			zap.Int("block", f.block),
			zap.Any("panic", f.value))
		err := errors.Wrapf(ErrKernelFault, "kernel %s, block %d: %v", name, f.block, f.value)
		return errors.WithDetailf(err, "%s", f.stack)
	}
	d.logger.Debug("launch",
		zap.String("kernel", name),
		zap.Int("blocks", blocks),
		zap.Int("rows", numRows),
		zap.Duration("elapsed", elapsed))
	return nil
}

// Reserve claims bytes of device memory for the buffer called name. The
// returned release function gives the memory back and may be called more
// than once.
func (d *Device) Reserve(name string, bytes int64) (release func(), err error) {
	for {
		cur := d.reserved.Load()
		next := cur + bytes
		if d.limit > 0 && next > d.limit {
			d.logger.Warn("reservation refused",
				zap.String("buffer", name),
				zap.Int64("bytes", bytes),
				zap.Int64("reserved", cur),
				zap.Int64("limit", d.limit))
			return nil, errors.Wrapf(ErrOutOfMemory, "%s: %s requested, %s of %s in use",
				name, humanize.IBytes(uint64(bytes)), humanize.IBytes(uint64(cur)), humanize.IBytes(uint64(d.limit)))
		}
		if d.reserved.CompareAndSwap(cur, next) {
			break
		}
	}
	d.metrics.reserved.Add(float64(bytes))
	var once sync.Once
	return func() {
		once.Do(func() {
			d.reserved.Add(-bytes)
			d.metrics.reserved.Sub(float64(bytes))
		})
	}, nil
}

// Reserved returns the bytes currently reserved.
func (d *Device) Reserved() int64 { return d.reserved.Load() }

// Buffer is device memory that can be zeroed by Memset.
type Buffer interface {
	Reset()
}

// SlotBuffer is a Buffer backed by one slot array whose ranges can be zeroed
// independently.
type SlotBuffer interface {
	Buffer
	Slots() int
	ResetSlots(start, end int)
	ResetCounters()
}

// memsetSplit is the slot count from which Memset spreads one buffer over
// every worker.
const memsetSplit = 1 << 16

// Memset zeroes bufs. Large slot buffers are split into one contiguous range
// per worker; the remaining buffers are reset one buffer per worker.
func (d *Device) Memset(bufs ...Buffer) {
	var small []Buffer
	for _, b := range bufs {
		sb, ok := b.(SlotBuffer)
		if !ok || sb.Slots() < memsetSplit {
			small = append(small, b)
			continue
		}
		sb.ResetCounters()
		d.pool.Ranges(sb.Slots(), sb.ResetSlots)
	}
	d.pool.Blocks(len(small), func(i int) {
		small[i].Reset()
	})
}
