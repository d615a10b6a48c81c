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
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tomoncle/crudkit/database"
	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID       int64   `bun:"id,pk,autoincrement" json:"id"`
	Name     string  `bun:"name,notnull,unique" json:"name"`
	Price    int64   `bun:"price,notnull,default:0" json:"price"`
	Note     *string `bun:"note" json:"note"`
	Category string  `bun:"category,notnull,default:'misc'" json:"category"`
}

// ItemCreate writes every field it declares.
type ItemCreate struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// ItemPatch writes only the fields that were set.
type ItemPatch struct {
	Name  types.Optional[string] `json:"name"`
	Price types.Optional[int64]  `json:"price"`
	Note  types.Optional[string] `json:"note"`
}

type Counter struct {
	bun.BaseModel `bun:"table:counters"`

	ID   int64 `bun:"id,pk,autoincrement"`
	Hits int64 `bun:"hits,notnull,default:0"`
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.CreateTables(context.Background(), db, (*Item)(nil), (*Counter)(nil)))
	return db
}

// setup returns a repository and a transaction that is rolled back when the
// test ends.
func setup(t *testing.T) (context.Context, bun.Tx, Repository[Item, int64]) {
	t.Helper()
	ctx, db, tx := setupDB(t)
	return ctx, tx, MustNewRepository[Item, int64](db)
}

func setupDB(t *testing.T) (context.Context, *bun.DB, bun.Tx) {
	t.Helper()
	ctx := context.Background()
	db := newTestDB(t)

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return ctx, db, tx
}

func seedItems(t *testing.T, ctx context.Context, s bun.IDB, repo Repository[Item, int64], names ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(names))
	for i, name := range names {
		res, err := repo.Add(ctx, s, ItemCreate{Name: name, Price: int64(i+1) * 10}, types.ProjectionPrimaryKey)
		require.NoError(t, err)
		id, ok := res.ID()
		require.True(t, ok)
		ids = append(ids, id)
	}
	return ids
}

func strPtr(s string) *string { return &s }
