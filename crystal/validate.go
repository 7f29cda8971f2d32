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
	"github.com/RoaringBitmap/roaring"
	"github.com/cockroachdb/errors"
)

// ValidateKeys checks on the host that keys can be built into a
// presence-only table of numSlots slots starting at keysMin: no key is 0 and
// every key has a slot. Repeated keys are allowed.
func ValidateKeys[K Keys](keys []K, numSlots int, keysMin K) error {
	return validate[K, K](keys, nil, numSlots, keysMin)
}

// ValidatePairs checks keys like ValidateKeys and also that a repeated key
// always carries the same payload.
func ValidatePairs[K Keys, V Keys](keys []K, vals []V, numSlots int, keysMin K) error {
	if len(vals) != len(keys) {
		return errors.Newf("crystal: %d keys but %d payloads", len(keys), len(vals))
	}
	if vals == nil {
		vals = []V{}
	}
	return validate(keys, vals, numSlots, keysMin)
}

// validate checks payloads only when vals is non-nil. filled marks the slots
// whose first payload has been recorded in first.
func validate[K Keys, V Keys](keys []K, vals []V, numSlots int, keysMin K) error {
	s := slotter[K]{keysMin: keysMin, numSlots: numSlots}
	var (
		filled *roaring.Bitmap
		first  []V
	)
	if vals != nil {
		filled = roaring.New()
		first = make([]V, numSlots)
	}
	for row, key := range keys {
		if key == emptyKey {
			return errors.Wrapf(ErrEmptyKey, "row %d", row)
		}
		slot := s.slot(key)
		if slot < 0 {
			return errors.Wrapf(ErrKeyOutOfRange, "row %d: key %d outside [%d, %d)",
				row, key, int64(keysMin), int64(keysMin)+int64(numSlots))
		}
		if vals == nil {
			continue
		}
		if filled.CheckedAdd(uint32(slot)) {
			first[slot] = vals[row]
			continue
		}
		if first[slot] != vals[row] {
			return errors.Wrapf(ErrPayloadConflict, "row %d: key %d has payloads %d and %d",
				row, key, int64(first[slot]), int64(vals[row]))
		}
	}
	return nil
}
