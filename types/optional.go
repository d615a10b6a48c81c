/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package types

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Values is a raw column -> value payload. Every key is written as given.
type Values map[string]interface{}

// Keys returns the column names in sorted order.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// OptionalField is implemented by payload fields that may be left unset.
type OptionalField interface {
	IsSet() bool
	FieldValue() interface{}
}

// Optional is a payload field that tracks whether the caller provided it.
// The zero value is unset; Null produces a field that is set to NULL.
type Optional[V any] struct {
	value V
	set   bool
	null  bool
}

var _ OptionalField = Optional[int]{}

// Set returns a provided field holding v.
func Set[V any](v V) Optional[V] {
	return Optional[V]{value: v, set: true}
}

// Null returns a provided field holding NULL.
func Null[V any]() Optional[V] {
	return Optional[V]{set: true, null: true}
}

func (o Optional[V]) IsSet() bool { return o.set }

func (o Optional[V]) IsNull() bool { return o.set && o.null }

// Get returns the value and whether it is set and not NULL.
func (o Optional[V]) Get() (V, bool) {
	return o.value, o.set && !o.null
}

// FieldValue returns the value to write, nil for NULL.
func (o Optional[V]) FieldValue() interface{} {
	if o.null {
		return nil
	}
	return o.value
}

func (o Optional[V]) MarshalJSON() ([]byte, error) {
	if !o.set || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON marks the field as provided; an explicit null sets it to NULL.
// Keys missing from the document never reach this method and stay unset.
func (o *Optional[V]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = Null[V]()
		return nil
	}
	var v V
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Set(v)
	return nil
}
