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
	"fmt"

	"github.com/cockroachdb/errors"
)

// Predicate tests a single register value against a runtime compare value.
type Predicate[T Lanes] interface {
	// Test returns true if the value satisfies the predicate.
	Test(value T) bool
}

// Op names a comparison operator.
type Op int

const (
	OpLess Op = iota
	OpGreater
	OpLessEqual
	OpGreaterEqual
	OpEqual
)

var opNames = [...]string{
	OpLess:         "<",
	OpGreater:      ">",
	OpLessEqual:    "<=",
	OpGreaterEqual: ">=",
	OpEqual:        "==",
}

// Valid reports whether o is a known operator.
func (o Op) Valid() bool {
	return o >= 0 && int(o) < len(opNames)
}

// String implements fmt.Stringer.
func (o Op) String() string {
	if !o.Valid() {
		return fmt.Sprintf("Op(%d)", int(o))
	}
	return opNames[o]
}

// ParseOp returns the operator spelled s.
func ParseOp(s string) (Op, error) {
	for op, name := range opNames {
		if name == s {
			return Op(op), nil
		}
	}
	return 0, errors.Newf("crystal: unknown comparison operator %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (o Op) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, errors.Newf("crystal: invalid comparison operator %d", int(o))
	}
	return []byte(opNames[o]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler with ParseOp.
func (o *Op) UnmarshalText(text []byte) error {
	op, err := ParseOp(string(text))
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// NewPredicate returns the predicate "value op v".
func NewPredicate[T Lanes](op Op, v T) Predicate[T] {
	switch op {
	case OpLess:
		return LessThan[T]{Threshold: v}
	case OpGreater:
		return GreaterThan[T]{Threshold: v}
	case OpLessEqual:
		return LessEqual[T]{Threshold: v}
	case OpGreaterEqual:
		return GreaterEqual[T]{Threshold: v}
	case OpEqual:
		return Equal[T]{Value: v}
	default:
		panic(errors.AssertionFailedf("crystal: unknown comparison operator %d", int(op)))
	}
}

// LessThan returns true for values where v < threshold.
type LessThan[T Lanes] struct {
	Threshold T
}

func (p LessThan[T]) Test(value T) bool {
	return value < p.Threshold
}

// GreaterThan returns true for values where v > threshold.
type GreaterThan[T Lanes] struct {
	Threshold T
}

func (p GreaterThan[T]) Test(value T) bool {
	return value > p.Threshold
}

// LessEqual returns true for values where v <= threshold.
type LessEqual[T Lanes] struct {
	Threshold T
}

func (p LessEqual[T]) Test(value T) bool {
	return value <= p.Threshold
}

// GreaterEqual returns true for values where v >= threshold.
type GreaterEqual[T Lanes] struct {
	Threshold T
}

func (p GreaterEqual[T]) Test(value T) bool {
	return value >= p.Threshold
}

// Equal returns true for values where v == value.
type Equal[T Lanes] struct {
	Value T
}

func (p Equal[T]) Test(value T) bool {
	return value == p.Value
}

// FuncPredicate adapts an arbitrary function to a Predicate.
type FuncPredicate[T Lanes] func(T) bool

func (f FuncPredicate[T]) Test(value T) bool {
	return f(value)
}
