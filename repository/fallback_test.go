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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/crudkit/database"
	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// noReturningDialect is SQLite without RETURNING, so writes take the path
// used for MySQL.
type noReturningDialect struct {
	*sqlitedialect.Dialect
}

func (d noReturningDialect) Features() feature.Feature {
	return d.Dialect.Features().Remove(feature.Returning | feature.InsertReturning | feature.DeleteReturning)
}

func setupNoReturning(t *testing.T) (context.Context, bun.Tx, Repository[Item, int64]) {
	t.Helper()
	ctx := context.Background()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, noReturningDialect{sqlitedialect.New()})
	t.Cleanup(func() { _ = db.Close() })
	require.False(t, db.Dialect().Features().Has(feature.InsertReturning))
	require.NoError(t, database.CreateTables(ctx, db, (*Item)(nil)))

	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tx.Rollback() })
	return ctx, tx, MustNewRepository[Item, int64](db)
}

func nameOf(t *testing.T, ctx context.Context, s bun.IDB, repo Repository[Item, int64], id int64) string {
	t.Helper()
	item, err := repo.GetExactlyOne(ctx, s, types.Eq("id", id))
	require.NoError(t, err)
	return item.Name
}

func TestNoReturningAdd(t *testing.T) {
	ctx, tx, repo := setupNoReturning(t)

	res, err := repo.Add(ctx, tx, ItemCreate{Name: "a", Price: 10}, types.ProjectionEntity)
	require.NoError(t, err)
	item, ok := res.Entity()
	require.True(t, ok)
	assert.Equal(t, int64(1), item.ID)
	assert.Equal(t, "misc", item.Category)

	res, err = repo.Add(ctx, tx, types.Values{"id": int64(40), "name": "explicit"}, types.ProjectionPrimaryKey)
	require.NoError(t, err)
	id, ok := res.ID()
	require.True(t, ok)
	assert.Equal(t, int64(40), id)
}

func TestNoReturningAddBulk(t *testing.T) {
	ctx, tx, repo := setupNoReturning(t)
	seedItems(t, ctx, tx, repo, "a")

	keys, err := repo.AddBulk(ctx, tx, []Payload{
		ItemCreate{Name: "b", Price: 1},
		ItemCreate{Name: "c", Price: 2},
	}, types.ProjectionPrimaryKey)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 3}, keys.IDs())
	assert.Equal(t, "b", nameOf(t, ctx, tx, repo, 2))
	assert.Equal(t, "c", nameOf(t, ctx, tx, repo, 3))

	rows, err := repo.AddBulk(ctx, tx, []Payload{
		ItemCreate{Name: "d", Price: 3},
		ItemCreate{Name: "e", Price: 4},
		ItemCreate{Name: "f", Price: 5},
	}, types.ProjectionEntity)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 5, 6}, rows.IDs())
	require.Len(t, rows.Entities(), 3)
	for i, name := range []string{"d", "e", "f"} {
		assert.Equal(t, name, rows.Entities()[i].Name)
		assert.Equal(t, rows.IDs()[i], rows.Entities()[i].ID)
	}
	assert.Equal(t, 3, rows.Len())
}

func TestNoReturningUpdate(t *testing.T) {
	ctx, tx, repo := setupNoReturning(t)
	ids := seedItems(t, ctx, tx, repo, "a", "b", "c")

	t.Run("entity", func(t *testing.T) {
		res, err := repo.Update(ctx, tx, ItemPatch{Note: types.Set("hello")}, types.ProjectionEntity, types.Eq("id", ids[0]))
		require.NoError(t, err)
		item, ok := res.Entity()
		require.True(t, ok)
		assert.Equal(t, ids[0], item.ID)
		require.NotNil(t, item.Note)
		assert.Equal(t, "hello", *item.Note)
		assert.Equal(t, int64(10), item.Price)
	})

	t.Run("primary key", func(t *testing.T) {
		res, err := repo.Update(ctx, tx, ItemPatch{Price: types.Set[int64](21)}, types.ProjectionPrimaryKey, types.Eq("name", "b"))
		require.NoError(t, err)
		id, ok := res.ID()
		require.True(t, ok)
		assert.Equal(t, ids[1], id)
		_, ok = res.Entity()
		assert.False(t, ok)
	})

	t.Run("no match", func(t *testing.T) {
		res, err := repo.Update(ctx, tx, ItemPatch{Price: types.Set[int64](1)}, types.ProjectionEntity, types.Eq("id", int64(999)))
		require.NoError(t, err)
		assert.False(t, res.Found())
	})

	t.Run("several rows", func(t *testing.T) {
		res, err := repo.Update(ctx, tx, ItemPatch{Price: types.Set[int64](99)}, types.ProjectionEntity, types.Where("price < ?", 25))
		assert.ErrorIs(t, err, ErrMultipleResults)
		assert.Equal(t, int64(2), res.RowsAffected())

		n, err := repo.Count(ctx, tx, types.Eq("price", 99))
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestNoReturningDelete(t *testing.T) {
	ctx, tx, repo := setupNoReturning(t)
	ids := seedItems(t, ctx, tx, repo, "a", "b", "c", "d", "e")

	t.Run("entity", func(t *testing.T) {
		res, err := repo.Delete(ctx, tx, types.ProjectionEntity, types.Eq("id", ids[0]))
		require.NoError(t, err)
		item, ok := res.Entity()
		require.True(t, ok)
		assert.Equal(t, "a", item.Name)
		assert.Equal(t, int64(10), item.Price)

		ok, err = repo.Exists(ctx, tx, types.Eq("id", ids[0]))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("primary key", func(t *testing.T) {
		res, err := repo.Delete(ctx, tx, types.ProjectionPrimaryKey, types.Eq("name", "b"))
		require.NoError(t, err)
		id, ok := res.ID()
		require.True(t, ok)
		assert.Equal(t, ids[1], id)
	})

	t.Run("no match", func(t *testing.T) {
		res, err := repo.Delete(ctx, tx, types.ProjectionEntity, types.Eq("id", ids[0]))
		require.NoError(t, err)
		assert.False(t, res.Found())
	})

	t.Run("several rows", func(t *testing.T) {
		_, err := repo.Delete(ctx, tx, types.ProjectionPrimaryKey, types.Where("price > ?", 35))
		assert.ErrorIs(t, err, ErrMultipleResults)

		n, err := repo.Count(ctx, tx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}
