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

// BlockLoad copies the tile's rows of column into items using the striped
// layout: thread t, slot i receives column[Offset + t + i*BlockThreads].
//
// Full tiles take the direct path. On the guarded path slots past the tile
// end are zero-filled so that later arithmetic over them is harmless; callers
// still gate on the selection mask, which InitFlags leaves false there.
func BlockLoad[T Lanes](t Tile, column []T, items *RegisterTile[T]) {
	src := column[t.Offset : t.Offset+t.NumItems]
	if t.Full() {
		loadDirect(t, src, items)
		return
	}
	loadGuarded(t, src, items)
}

func loadDirect[T Lanes](t Tile, src []T, items *RegisterTile[T]) {
	threads := t.BlockThreads
	for tid := range threads {
		regs := items.Thread(tid)
		for i := range regs {
			regs[i] = src[tid+i*threads]
		}
	}
}

func loadGuarded[T Lanes](t Tile, src []T, items *RegisterTile[T]) {
	threads := t.BlockThreads
	for tid := range threads {
		regs := items.Thread(tid)
		n := t.ThreadItems(tid)
		for i := range n {
			regs[i] = src[tid+i*threads]
		}
		clear(regs[n:])
	}
}

// BlockStore is the inverse of BlockLoad: it writes items back to column in
// the striped layout. On the guarded path slots past the tile end are not
// written.
func BlockStore[T Lanes](t Tile, items *RegisterTile[T], column []T) {
	dst := column[t.Offset : t.Offset+t.NumItems]
	threads := t.BlockThreads
	for tid := range threads {
		regs := items.Thread(tid)
		n := t.ThreadItems(tid)
		for i := range n {
			dst[tid+i*threads] = regs[i]
		}
	}
}
