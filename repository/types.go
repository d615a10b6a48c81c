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

import (
	"context"

	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// CommandRepository defines the mutating operations. Every call runs on the
// session handed in and never commits or rolls back.
type CommandRepository[T any, ID comparable] interface {
	Add(ctx context.Context, s bun.IDB, payload Payload, p types.Projection) (Result[T, ID], error)

	AddBulk(ctx context.Context, s bun.IDB, payloads []Payload, p types.Projection) (BulkResult[T, ID], error)

	Update(ctx context.Context, s bun.IDB, payload Payload, p types.Projection, preds ...types.Predicate) (Result[T, ID], error)

	UpdateBulk(ctx context.Context, s bun.IDB, rows []KeyedPayload[ID]) error

	Delete(ctx context.Context, s bun.IDB, p types.Projection, preds ...types.Predicate) (Result[T, ID], error)
}

// QueryRepository defines the read operations.
type QueryRepository[T any, ID comparable] interface {
	GetOneOrNone(ctx context.Context, s bun.IDB, preds ...types.Predicate) (*T, error)

	GetOneOrNoneID(ctx context.Context, s bun.IDB, preds ...types.Predicate) (ID, bool, error)

	GetExactlyOne(ctx context.Context, s bun.IDB, preds ...types.Predicate) (*T, error)

	Count(ctx context.Context, s bun.IDB, preds ...types.Predicate) (int, error)

	CountFromQuery(ctx context.Context, q *bun.SelectQuery) (int, error)

	Exists(ctx context.Context, s bun.IDB, preds ...types.Predicate) (bool, error)

	List(ctx context.Context, s bun.IDB, page *types.PageRequest, preds ...types.Predicate) ([]*T, error)
}

// PageQueryRepository defines pagination functionality for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, s bun.IDB, page *types.PageRequest, preds ...types.Predicate) (*types.Pagination[T], error)
}

// Repository combines command, query and pagination operations over one
// entity type and exposes its table metadata.
type Repository[T any, ID comparable] interface {
	CommandRepository[T, ID]
	QueryRepository[T, ID]
	PageQueryRepository[T]
	Descriptor() *Descriptor
	Dialect() schema.Dialect
	NewSelect(s bun.IDB) *bun.SelectQuery
}
