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

import "github.com/cockroachdb/errors"

var (
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("crystal: invalid block configuration")

	// ErrKeyOutOfRange marks build keys without a slot.
	ErrKeyOutOfRange = errors.New("crystal: key outside [keys_min, keys_min+num_slots)")

	// ErrEmptyKey marks build keys equal to the empty-slot sentinel 0.
	ErrEmptyKey = errors.New("crystal: key equals the empty-slot sentinel")

	// ErrPayloadConflict marks a build key repeated with a different payload.
	ErrPayloadConflict = errors.New("crystal: build key repeated with a different payload")

	// ErrGroupOutOfRange marks group attributes outside their declared domain.
	ErrGroupOutOfRange = errors.New("crystal: group attribute outside its domain")
)
