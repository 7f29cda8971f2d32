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

// Package project provides projection kernels: each block loads tiles of
// two input columns, combines them element-wise in registers and writes the
// result column with a block store.
package project

import (
	"math"

	"github.com/ajroetker/go-crystal/crystal"
	"github.com/ajroetker/go-crystal/crystal/device"
	"github.com/cockroachdb/errors"
)

// Coefficients of the projected expression a·x + b·y.
type Coefficients[T crystal.Floats] struct {
	A, B T
}

// DefaultCoefficients is 2·x + 3·y.
func DefaultCoefficients[T crystal.Floats]() Coefficients[T] {
	return Coefficients[T]{A: 2, B: 3}
}

// BaseLinear computes out[i] = a·x[i] + b·y[i] on the host.
func BaseLinear[T crystal.Floats](c Coefficients[T], x, y, out []T) {
	for i := range x {
		out[i] = c.A*x[i] + c.B*y[i]
	}
}

// BaseSigmoid computes out[i] = 1 / (1 + e^-(a·x[i] + b·y[i])) on the host.
func BaseSigmoid[T crystal.Floats](c Coefficients[T], x, y, out []T) {
	for i := range x {
		out[i] = sigmoid(c.A*x[i] + c.B*y[i])
	}
}

func sigmoid[T crystal.Floats](v T) T {
	return T(1 / (1 + math.Exp(-float64(v))))
}

func checkLengths(name string, n int, cols ...int) error {
	for _, c := range cols {
		if c < n {
			return errors.Newf("project %s: column of %d rows, want at least %d", name, c, n)
		}
	}
	return nil
}

// launch runs fn over the registers of every tile of x and y and stores
// the registers of x back to out.
func launch[T crystal.Floats](dev *device.Device, cfg crystal.Config, name string, x, y, out []T, fn func(xv, yv T) T) error {
	if err := checkLengths(name, len(x), len(y), len(out)); err != nil {
		return err
	}
	return dev.Launch(name, cfg, len(x), func(t crystal.Tile) {
		xr := crystal.NewRegisterTile[T](t.Config)
		yr := crystal.NewRegisterTile[T](t.Config)
		crystal.BlockLoad(t, x, xr)
		crystal.BlockLoad(t, y, yr)
		for tid := range t.BlockThreads {
			xs, ys := xr.Thread(tid), yr.Thread(tid)
			for i := range t.ThreadItems(tid) {
				xs[i] = fn(xs[i], ys[i])
			}
		}
		crystal.BlockStore(t, xr, out)
	})
}

// Linear computes out = a·x + b·y on dev.
func Linear[T crystal.Floats](dev *device.Device, cfg crystal.Config, c Coefficients[T], x, y, out []T) error {
	return launch(dev, cfg, "project/linear", x, y, out, func(xv, yv T) T {
		return c.A*xv + c.B*yv
	})
}

// Sigmoid computes out = sigmoid(a·x + b·y) on dev.
func Sigmoid[T crystal.Floats](dev *device.Device, cfg crystal.Config, c Coefficients[T], x, y, out []T) error {
	return launch(dev, cfg, "project/sigmoid", x, y, out, func(xv, yv T) T {
		return sigmoid(c.A*xv + c.B*yv)
	})
}
