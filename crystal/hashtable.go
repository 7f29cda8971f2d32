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
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

// emptyKey marks an unoccupied slot. Keys equal to it cannot be stored.
const emptyKey = 0

// slotter maps keys onto slots by direct addressing: key k lands in slot
// k - keysMin. Keys outside [keysMin, keysMin+numSlots) have no slot, so two
// distinct keys never share one.
type slotter[K Keys] struct {
	keysMin  K
	numSlots int
}

// slot returns the slot for key, or -1 if key has none.
func (s slotter[K]) slot(key K) int {
	d := int64(key) - int64(s.keysMin)
	if d < 0 || d >= int64(s.numSlots) {
		return -1
	}
	return int(d)
}

// NumSlots returns the table capacity.
func (s slotter[K]) NumSlots() int { return s.numSlots }

// KeysMin returns the smallest key the table accepts.
func (s slotter[K]) KeysMin() K { return s.keysMin }

// buildStats counts keys the builder had to skip. Blocks update it
// concurrently; it is read on the host once the build launch has completed.
type buildStats struct {
	outOfRange atomic.Int64
	empty      atomic.Int64
	conflicts  atomic.Int64
}

func (b *buildStats) reset() {
	b.outOfRange.Store(0)
	b.empty.Store(0)
	b.conflicts.Store(0)
}

// err reports every violation seen since the last reset. Each class stays
// visible to errors.Is.
func (b *buildStats) err(numSlots int, keysMin int64) error {
	var errs []error
	if n := b.empty.Load(); n > 0 {
		errs = append(errs, errors.Wrapf(ErrEmptyKey, "%d build keys skipped", n))
	}
	if n := b.outOfRange.Load(); n > 0 {
		errs = append(errs, errors.Wrapf(ErrKeyOutOfRange,
			"%d build keys outside [%d, %d)", n, keysMin, keysMin+int64(numSlots)))
	}
	if n := b.conflicts.Load(); n > 0 {
		errs = append(errs, errors.Wrapf(ErrPayloadConflict, "%d build rows lost their payload", n))
	}
	return errors.Join(errs...)
}

// KeyTable is a presence-only hash table: each slot holds a key or 0.
type KeyTable[K Keys] struct {
	slotter[K]
	slots []atomic.Uint32
	stats buildStats
}

// NewKeyTable allocates a zeroed presence-only table.
func NewKeyTable[K Keys](numSlots int, keysMin K) *KeyTable[K] {
	return &KeyTable[K]{
		slotter: slotter[K]{keysMin: keysMin, numSlots: numSlots},
		slots:   make([]atomic.Uint32, numSlots),
	}
}

// insert claims the key's slot with a compare-and-swap from empty. When two
// threads race on one key, exactly one store wins and the loser observes an
// identical value.
func (ht *KeyTable[K]) insert(key K) {
	if key == emptyKey {
		ht.stats.empty.Add(1)
		return
	}
	s := ht.slot(key)
	if s < 0 {
		ht.stats.outOfRange.Add(1)
		return
	}
	ht.slots[s].CompareAndSwap(emptyKey, uint32(key))
}

// Contains reports whether key was inserted.
func (ht *KeyTable[K]) Contains(key K) bool {
	if key == emptyKey {
		return false
	}
	s := ht.slot(key)
	return s >= 0 && ht.slots[s].Load() == uint32(key)
}

// Len counts occupied slots. It is meant for the host, after a build.
func (ht *KeyTable[K]) Len() int {
	n := 0
	for i := range ht.slots {
		if ht.slots[i].Load() != emptyKey {
			n++
		}
	}
	return n
}

// Reset zeroes every slot and violation counter.
func (ht *KeyTable[K]) Reset() {
	ht.ResetSlots(0, len(ht.slots))
	ht.ResetCounters()
}

// Slots returns the length of the slot array.
func (ht *KeyTable[K]) Slots() int { return len(ht.slots) }

// ResetSlots empties slots [start, end). Disjoint ranges may be reset
// concurrently.
func (ht *KeyTable[K]) ResetSlots(start, end int) {
	for i := start; i < end; i++ {
		ht.slots[i].Store(emptyKey)
	}
}

// ResetCounters zeroes the violation counters.
func (ht *KeyTable[K]) ResetCounters() { ht.stats.reset() }

// Bytes returns the device memory footprint of the slot array.
func (ht *KeyTable[K]) Bytes() int64 { return int64(ht.numSlots) * 4 }

// Err returns the build violations seen since the last Reset, or nil.
func (ht *KeyTable[K]) Err() error {
	return ht.stats.err(ht.numSlots, int64(ht.keysMin))
}

// PairTable maps keys to 32-bit payloads. A slot is one 64-bit word holding
// the key in its low half and the payload in its high half, written by a
// single compare-and-swap, so a reader never sees a key without its payload.
type PairTable[K Keys, V Keys] struct {
	slotter[K]
	slots []atomic.Uint64
	stats buildStats
}

// NewPairTable allocates a zeroed key+payload table.
func NewPairTable[K Keys, V Keys](numSlots int, keysMin K) *PairTable[K, V] {
	return &PairTable[K, V]{
		slotter: slotter[K]{keysMin: keysMin, numSlots: numSlots},
		slots:   make([]atomic.Uint64, numSlots),
	}
}

func pack[K Keys, V Keys](key K, val V) uint64 {
	return uint64(uint32(key)) | uint64(uint32(val))<<32
}

func unpack[K Keys, V Keys](word uint64) (K, V) {
	return K(uint32(word)), V(uint32(word >> 32))
}

// insert claims the key's slot. A repeated key keeps whichever payload was
// written first; a repeat carrying a different payload is counted as a
// conflict.
func (ht *PairTable[K, V]) insert(key K, val V) {
	if key == emptyKey {
		ht.stats.empty.Add(1)
		return
	}
	s := ht.slot(key)
	if s < 0 {
		ht.stats.outOfRange.Add(1)
		return
	}
	if ht.slots[s].CompareAndSwap(0, pack(key, val)) {
		return
	}
	if _, v := unpack[K, V](ht.slots[s].Load()); v != val {
		ht.stats.conflicts.Add(1)
	}
}

// Lookup returns the payload stored for key.
func (ht *PairTable[K, V]) Lookup(key K) (V, bool) {
	var zero V
	if key == emptyKey {
		return zero, false
	}
	s := ht.slot(key)
	if s < 0 {
		return zero, false
	}
	k, v := unpack[K, V](ht.slots[s].Load())
	if k != key {
		return zero, false
	}
	return v, true
}

// Len counts occupied slots.
func (ht *PairTable[K, V]) Len() int {
	n := 0
	for i := range ht.slots {
		if ht.slots[i].Load() != 0 {
			n++
		}
	}
	return n
}

// Reset zeroes every slot and violation counter.
func (ht *PairTable[K, V]) Reset() {
	ht.ResetSlots(0, len(ht.slots))
	ht.ResetCounters()
}

// Slots returns the length of the slot array.
func (ht *PairTable[K, V]) Slots() int { return len(ht.slots) }

// ResetSlots empties slots [start, end). Disjoint ranges may be reset
// concurrently.
func (ht *PairTable[K, V]) ResetSlots(start, end int) {
	for i := start; i < end; i++ {
		ht.slots[i].Store(0)
	}
}

// ResetCounters zeroes the violation counters.
func (ht *PairTable[K, V]) ResetCounters() { ht.stats.reset() }

// Bytes returns the device memory footprint of the slot array.
func (ht *PairTable[K, V]) Bytes() int64 { return int64(ht.numSlots) * 8 }

// Err returns the build violations seen since the last Reset, or nil.
func (ht *PairTable[K, V]) Err() error {
	return ht.stats.err(ht.numSlots, int64(ht.keysMin))
}
