// Copyright 2025 The go-highway Authors. SPDX-License-Identifier: Apache-2.0

package workerpool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNew(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	if pool.NumWorkers() != 4 {
		t.Errorf("NumWorkers() = %d, want 4", pool.NumWorkers())
	}
}

func TestNewDefault(t *testing.T) {
	pool := New(0)
	defer pool.Close()

	if pool.NumWorkers() != runtime.GOMAXPROCS(0) {
		t.Errorf("NumWorkers() = %d, want %d", pool.NumWorkers(), runtime.GOMAXPROCS(0))
	}
}

func TestBlocksVisitsEachOnce(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	for _, n := range []int{0, 1, 3, 4, 5, 1000} {
		visits := make([]atomic.Int32, n)
		pool.Blocks(n, func(b int) {
			visits[b].Add(1)
		})
		for b := range visits {
			if got := visits[b].Load(); got != 1 {
				t.Errorf("n=%d: block %d visited %d times, want 1", n, b, got)
			}
		}
	}
}

func TestRanges(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	for _, n := range []int{1, 3, 7, 100} {
		results := make([]int, n)
		pool.Ranges(n, func(start, end int) {
			for i := start; i < end; i++ {
				results[i] = i * 2
			}
		})
		for i := range n {
			if results[i] != i*2 {
				t.Errorf("n=%d: results[%d] = %d, want %d", n, i, results[i], i*2)
			}
		}
	}
}

func TestZeroWork(t *testing.T) {
	pool := New(4)
	defer pool.Close()

	var called bool
	pool.Blocks(0, func(int) { called = true })
	pool.Ranges(0, func(int, int) { called = true })
	if called {
		t.Error("dispatch with n=0 should not call fn")
	}
}

func TestConcurrentDispatch(t *testing.T) {
	pool := New(3)
	defer pool.Close()

	var total atomic.Int64
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Blocks(50, func(int) { total.Add(1) })
		}()
	}
	wg.Wait()
	if got := total.Load(); got != 400 {
		t.Errorf("total = %d, want 400", got)
	}
}

func TestCloseMultipleTimes(t *testing.T) {
	pool := New(4)
	pool.Close()
	pool.Close() // Should not panic
}

func TestClosedPoolFallback(t *testing.T) {
	pool := New(4)
	pool.Close()

	n := 100
	results := make([]int, n)
	pool.Blocks(n, func(b int) {
		results[b] = b * 2
	})
	for i := range n {
		if results[i] != i*2 {
			t.Errorf("results[%d] = %d, want %d", i, results[i], i*2)
		}
	}
}

func BenchmarkBlocks(b *testing.B) {
	pool := New(0)
	defer pool.Close()

	var sink atomic.Int64
	for b.Loop() {
		pool.Blocks(2048, func(block int) {
			sink.Add(int64(block))
		})
	}
}
