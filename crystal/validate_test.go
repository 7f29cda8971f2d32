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
	"testing"

	"github.com/cockroachdb/errors"
)

func TestValidateKeys(t *testing.T) {
	tests := []struct {
		name     string
		keys     []int32
		numSlots int
		keysMin  int32
		want     error
	}{
		{"dense", []int32{1, 2, 3, 4}, 4, 1, nil},
		{"shuffled with repeats", []int32{4, 1, 4, 2}, 4, 1, nil},
		{"date range", []int32{19920101, 19981230}, 19981230 - 19920101 + 1, 19920101, nil},
		{"empty", nil, 0, 1, nil},
		{"zero key", []int32{1, 0}, 4, 0, ErrEmptyKey},
		{"below min", []int32{5}, 4, 10, ErrKeyOutOfRange},
		{"past capacity", []int32{1, 5}, 4, 1, ErrKeyOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateKeys(tt.keys, tt.numSlots, tt.keysMin)
			if tt.want == nil {
				if err != nil {
					t.Errorf("got %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidatePairs(t *testing.T) {
	tests := []struct {
		name string
		keys []int32
		vals []int32
		want error
	}{
		{"unique", []int32{3, 1, 2}, []int32{30, 10, 20}, nil},
		{"repeat same payload", []int32{2, 1, 2}, []int32{7, 0, 7}, nil},
		{"repeat zero payload", []int32{1, 1}, []int32{0, 0}, nil},
		{"conflict", []int32{2, 1, 2}, []int32{7, 0, 8}, ErrPayloadConflict},
		{"conflict with zero", []int32{1, 1}, []int32{0, 5}, ErrPayloadConflict},
		{"zero key", []int32{0}, []int32{1}, ErrEmptyKey},
		{"past capacity", []int32{4}, []int32{1}, ErrKeyOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePairs(tt.keys, tt.vals, 3, 1)
			if tt.want == nil {
				if err != nil {
					t.Errorf("got %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	if err := ValidatePairs([]int32{1, 2}, []int32{1}, 3, 1); err == nil {
		t.Errorf("length mismatch: got nil error")
	}
	if err := ValidatePairs[int32, int32](nil, nil, 3, 1); err != nil {
		t.Errorf("empty: got %v, want nil", err)
	}
}
