// Package crystal provides block-parallel primitives for columnar query
// execution: tile partitioning, striped block loads and stores, selection
// masks driven by comparison predicates, direct-addressed hash tables built
// with atomic compare-and-swap, and warp-style tree reductions.
//
// A kernel is a function of one Tile. The grid launcher in crystal/device
// runs one kernel invocation per tile, concurrently and in any order. Within
// a block, the BlockThreads logical threads execute in lockstep: every block
// primitive processes all threads of the block before returning, so a call
// boundary acts as a block-wide barrier.
//
// Basic usage:
//
//	cfg := crystal.DefaultConfig()
//	ht := crystal.NewPairTable[int32, int32](numDim, 1)
//
//	// Build: one launch over the dimension table.
//	dev.Launch("build", cfg, numDim, func(t crystal.Tile) {
//	    keys := crystal.NewRegisterTile[int32](cfg)
//	    vals := crystal.NewRegisterTile[int32](cfg)
//	    mask := crystal.NewSelectionMask(cfg)
//	    crystal.InitFlags(t, mask)
//	    crystal.BlockLoad(t, dimKey, keys)
//	    crystal.BlockLoad(t, dimVal, vals)
//	    crystal.BuildPairs(t, keys, vals, mask, ht)
//	})
package crystal

// Floats is a constraint for floating-point column types.
type Floats interface {
	~float32 | ~float64
}

// SignedInts is a constraint for signed integer column types.
type SignedInts interface {
	~int32 | ~int64
}

// UnsignedInts is a constraint for unsigned integer column types.
type UnsignedInts interface {
	~uint32 | ~uint64
}

// Integers is a constraint for all integer column types.
type Integers interface {
	SignedInts | UnsignedInts
}

// Lanes is a constraint for all scalar types a column or register tile can
// hold.
type Lanes interface {
	Floats | Integers
}

// Keys is a constraint for hash-table keys and payloads. Both are 32 bits
// wide so that a key and its payload pack into one 64-bit slot.
type Keys interface {
	~int32 | ~uint32
}
