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

package repository

import "github.com/tomoncle/crudkit/types"

// Result is the outcome of a single-row Add, Update or Delete. What it holds
// depends on the projection the call was made with:
//
//   - ProjectionEntity: the affected row and its key;
//   - ProjectionPrimaryKey: the key only;
//   - ProjectionNone: only the affected row count.
//
// Found is false when no row was affected or when nothing was returned.
type Result[T any, ID comparable] struct {
	projection types.Projection
	entity     *T
	id         ID
	found      bool
	affected   int64
}

func (r Result[T, ID]) Projection() types.Projection { return r.projection }

// Found reports whether a row was returned.
func (r Result[T, ID]) Found() bool { return r.found }

// Entity returns the row, only for ProjectionEntity.
func (r Result[T, ID]) Entity() (*T, bool) {
	return r.entity, r.found && r.entity != nil
}

// ID returns the key of the row for ProjectionEntity and ProjectionPrimaryKey.
func (r Result[T, ID]) ID() (ID, bool) {
	return r.id, r.found
}

// RowsAffected returns the number of rows the statement touched.
func (r Result[T, ID]) RowsAffected() int64 { return r.affected }

// BulkResult is the outcome of AddBulk. Row order is the store's, not
// necessarily the input order.
type BulkResult[T any, ID comparable] struct {
	projection types.Projection
	entities   []*T
	ids        []ID
	affected   int64
}

func (r BulkResult[T, ID]) Projection() types.Projection { return r.projection }

// Entities returns the inserted rows for ProjectionEntity.
func (r BulkResult[T, ID]) Entities() []*T { return r.entities }

// IDs returns the inserted keys for ProjectionEntity and ProjectionPrimaryKey.
func (r BulkResult[T, ID]) IDs() []ID { return r.ids }

// Len returns the number of rows inserted.
func (r BulkResult[T, ID]) Len() int { return int(r.affected) }

func (r BulkResult[T, ID]) first() Result[T, ID] {
	res := Result[T, ID]{projection: r.projection, affected: r.affected}
	if len(r.ids) > 0 {
		res.id = r.ids[0]
		res.found = true
	}
	if len(r.entities) > 0 {
		res.entity = r.entities[0]
	}
	return res
}
