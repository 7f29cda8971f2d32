// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

// Package workerpool runs the blocks of a grid on a persistent set of worker
// goroutines. A Pool is created once per device and reused across every
// kernel launch, so a launch costs one channel send per worker instead of one
// goroutine per block.
//
// Usage:
//
//	pool := workerpool.New(runtime.GOMAXPROCS(0))
//	defer pool.Close()
//
//	pool.Blocks(cfg.NumBlocks(n), func(block int) {
//	    kernel(crystal.Partition(cfg, block, n))
//	})
package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool is a persistent worker pool. Workers are spawned once at creation and
// reused by every dispatch until Close.
//
// Dispatches may be issued concurrently from several goroutines, but a
// callback must never dispatch on the pool that runs it.
type Pool struct {
	numWorkers int
	workC      chan workItem
	closeOnce  sync.Once
	closed     atomic.Bool
}

type workItem struct {
	fn      func()
	barrier *sync.WaitGroup
}

// New creates a pool with numWorkers workers. If numWorkers <= 0, uses
// GOMAXPROCS.
func New(numWorkers int) *Pool {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	p := &Pool{
		numWorkers: numWorkers,
		workC:      make(chan workItem, numWorkers*2),
	}
	for range numWorkers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for item := range p.workC {
		item.fn()
		item.barrier.Done()
	}
}

// NumWorkers returns the number of workers in the pool.
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// Close shuts down the pool. Dispatches after Close run on the calling
// goroutine. Calling Close multiple times is safe.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		close(p.workC)
	})
}

// fanOut sends body to up to n workers and waits for all of them.
func (p *Pool) fanOut(workers int, body func()) {
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		p.workC <- workItem{fn: body, barrier: &wg}
	}
	wg.Wait()
}

// Blocks calls fn once for every block index in [0, numBlocks). Workers
// claim the next unclaimed block with an atomic counter, so blocks run in no
// particular order and uneven blocks balance across workers. Blocks returns
// once every call has returned.
func (p *Pool) Blocks(numBlocks int, fn func(block int)) {
	if numBlocks <= 0 {
		return
	}
	workers := min(p.numWorkers, numBlocks)
	if workers == 1 || p.closed.Load() {
		for b := range numBlocks {
			fn(b)
		}
		return
	}
	var next atomic.Int64
	p.fanOut(workers, func() {
		for {
			b := int(next.Add(1)) - 1
			if b >= numBlocks {
				return
			}
			fn(b)
		}
	})
}

// Ranges splits [0, n) into one contiguous range per worker and calls
// fn(start, end) for each. Device.Memset uses it to zero large slot arrays.
func (p *Pool) Ranges(n int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := min(p.numWorkers, n)
	if workers == 1 || p.closed.Load() {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var next atomic.Int64
	p.fanOut(workers, func() {
		start := int(next.Add(1)-1) * chunk
		if start >= n {
			return
		}
		fn(start, min(start+chunk, n))
	})
}
