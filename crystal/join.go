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

// BuildKeys inserts the key of every selected valid slot into ht.
func BuildKeys[K Keys](t Tile, keys *RegisterTile[K], m *SelectionMask, ht *KeyTable[K]) {
	for tid := range t.BlockThreads {
		regs := keys.Thread(tid)
		flags := m.Thread(tid)
		for i := range t.ThreadItems(tid) {
			if flags[i] {
				ht.insert(regs[i])
			}
		}
	}
}

// BuildPairs inserts (key, value) for every selected valid slot into ht.
func BuildPairs[K Keys, V Keys](t Tile, keys *RegisterTile[K], vals *RegisterTile[V], m *SelectionMask, ht *PairTable[K, V]) {
	for tid := range t.BlockThreads {
		kr := keys.Thread(tid)
		vr := vals.Thread(tid)
		flags := m.Thread(tid)
		for i := range t.ThreadItems(tid) {
			if flags[i] {
				ht.insert(kr[i], vr[i])
			}
		}
	}
}

// ProbeKeys clears the flag of every selected valid slot whose key is
// absent from ht. Unselected slots are not probed.
func ProbeKeys[K Keys](t Tile, keys *RegisterTile[K], m *SelectionMask, ht *KeyTable[K]) {
	for tid := range t.BlockThreads {
		regs := keys.Thread(tid)
		flags := m.Thread(tid)
		for i := range t.ThreadItems(tid) {
			if flags[i] && !ht.Contains(regs[i]) {
				flags[i] = false
			}
		}
	}
}

// ProbePairs looks up the key of every selected valid slot. A hit writes the
// payload into out; a miss clears the flag. Unselected slots of out are left
// untouched.
func ProbePairs[K Keys, V Keys](t Tile, keys *RegisterTile[K], out *RegisterTile[V], m *SelectionMask, ht *PairTable[K, V]) {
	for tid := range t.BlockThreads {
		kr := keys.Thread(tid)
		or := out.Thread(tid)
		flags := m.Thread(tid)
		for i := range t.ThreadItems(tid) {
			if !flags[i] {
				continue
			}
			v, ok := ht.Lookup(kr[i])
			if !ok {
				flags[i] = false
				continue
			}
			or[i] = v
		}
	}
}
