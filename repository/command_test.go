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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/crudkit/database"
	"github.com/tomoncle/crudkit/types"
)

func TestAddPrimaryKeyThenGetExactlyOne(t *testing.T) {
	ctx, tx, repo := setup(t)

	res, err := repo.Add(ctx, tx, types.Values{"name": "a"}, types.ProjectionPrimaryKey)
	require.NoError(t, err)
	require.True(t, res.Found())
	id, ok := res.ID()
	require.True(t, ok)
	assert.Positive(t, id)
	_, hasEntity := res.Entity()
	assert.False(t, hasEntity)

	item, err := repo.GetExactlyOne(ctx, tx, types.Eq("id", id))
	require.NoError(t, err)
	assert.Equal(t, "a", item.Name)
}

func TestAddEntityUsesStoreDefaults(t *testing.T) {
	ctx, tx, repo := setup(t)

	res, err := repo.Add(ctx, tx, &ItemCreate{Name: "widget", Price: 5}, types.ProjectionEntity)
	require.NoError(t, err)

	item, ok := res.Entity()
	require.True(t, ok)
	assert.Equal(t, "widget", item.Name)
	assert.EqualValues(t, 5, item.Price)
	assert.Equal(t, "misc", item.Category)
	assert.Nil(t, item.Note)

	id, _ := res.ID()
	assert.Equal(t, item.ID, id)
}

func TestAddProjectionNone(t *testing.T) {
	ctx, tx, repo := setup(t)

	res, err := repo.Add(ctx, tx, types.Values{"name": "a"}, types.ProjectionNone)
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.EqualValues(t, 1, res.RowsAffected())
	assert.Equal(t, types.ProjectionNone, res.Projection())

	n, err := repo.Count(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAddEmptyPayloadWritesDefaults(t *testing.T) {
	ctx, db, tx := setupDB(t)
	counters := MustNewRepository[Counter, int64](db)

	res, err := counters.Add(ctx, tx, nil, types.ProjectionEntity)
	require.NoError(t, err)
	counter, ok := res.Entity()
	require.True(t, ok)
	assert.Positive(t, counter.ID)
	assert.Zero(t, counter.Hits)
}

func TestAddRejectsBadInput(t *testing.T) {
	ctx, tx, repo := setup(t)

	_, err := repo.Add(ctx, tx, types.Values{"name": "a", "colour": "red"}, types.ProjectionNone)
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.True(t, IsPayloadError(err))

	_, err = repo.Add(ctx, tx, types.Values{"name": "a"}, types.Projection(42))
	assert.ErrorIs(t, err, ErrInvalidProjection)

	_, err = repo.Add(ctx, tx, 42, types.ProjectionNone)
	assert.Error(t, err)

	n, err := repo.Count(ctx, tx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddConstraintViolations(t *testing.T) {
	ctx, tx, repo := setup(t)
	seedItems(t, ctx, tx, repo, "a")

	_, err := repo.Add(ctx, tx, types.Values{"name": "a"}, types.ProjectionEntity)
	require.Error(t, err)
	assert.True(t, IsConstraintViolation(err))
	assert.False(t, IsPayloadError(err))
	var ce *ConstraintError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, database.DuplicateKeyErr, ce.Kind)
	assert.Equal(t, "items", ce.Table)
	assert.Equal(t, "add", ce.Op)

	_, err = repo.Add(ctx, tx, types.Values{"name": nil}, types.ProjectionNone)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, database.NotNullViolationErr, ce.Kind)
}

func TestAddBulkProjectionNone(t *testing.T) {
	ctx, tx, repo := setup(t)
	seedItems(t, ctx, tx, repo, "existing")

	before, err := repo.Count(ctx, tx)
	require.NoError(t, err)

	res, err := repo.AddBulk(ctx, tx, []Payload{
		types.Values{"name": "v1", "price": 1},
		types.Values{"name": "v2", "price": 2},
		types.Values{"name": "v3", "price": 3},
	}, types.ProjectionNone)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Len())
	assert.Empty(t, res.IDs())

	after, err := repo.Count(ctx, tx)
	require.NoError(t, err)
	assert.Equal(t, before+3, after)
}

func TestAddBulkReturnsRows(t *testing.T) {
	ctx, tx, repo := setup(t)

	res, err := repo.AddBulk(ctx, tx, []Payload{
		ItemCreate{Name: "x", Price: 1},
		&ItemCreate{Name: "y", Price: 2},
	}, types.ProjectionEntity)
	require.NoError(t, err)
	require.Len(t, res.Entities(), 2)
	require.Len(t, res.IDs(), 2)

	names := []string{res.Entities()[0].Name, res.Entities()[1].Name}
	assert.ElementsMatch(t, []string{"x", "y"}, names)
	for i, e := range res.Entities() {
		assert.Equal(t, e.ID, res.IDs()[i])
		assert.Equal(t, "misc", e.Category)
	}

	ids, err := repo.AddBulk(ctx, tx, []Payload{types.Values{"name": "z"}}, types.ProjectionPrimaryKey)
	require.NoError(t, err)
	require.Len(t, ids.IDs(), 1)
	assert.Nil(t, ids.Entities())
}

func TestAddBulkEdgeCases(t *testing.T) {
	ctx, tx, repo := setup(t)

	res, err := repo.AddBulk(ctx, tx, nil, types.ProjectionEntity)
	require.NoError(t, err)
	assert.Zero(t, res.Len())

	_, err = repo.AddBulk(ctx, tx, []Payload{
		types.Values{"name": "a"},
		types.Values{"name": "b", "price": 2},
	}, types.ProjectionNone)
	assert.ErrorIs(t, err, ErrInconsistentPayloads)

	_, err = repo.AddBulk(ctx, tx, []Payload{types.Values{}, nil}, types.ProjectionNone)
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = repo.AddBulk(ctx, tx, []Payload{
		types.Values{"name": "dup"},
		types.Values{"name": "dup"},
	}, types.ProjectionNone)
	assert.True(t, IsConstraintViolation(err))

	n, err := repo.Count(ctx, tx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateWritesOnlySetFields(t *testing.T) {
	ctx, tx, repo := setup(t)
	res, err := repo.Add(ctx, tx, types.Values{"name": "a", "price": 1, "note": "keep"}, types.ProjectionPrimaryKey)
	require.NoError(t, err)
	id, _ := res.ID()

	updated, err := repo.Update(ctx, tx, ItemPatch{Price: types.Set[int64](9)}, types.ProjectionEntity, types.Eq("id", id))
	require.NoError(t, err)
	item, ok := updated.Entity()
	require.True(t, ok)
	assert.Equal(t, "a", item.Name)
	assert.EqualValues(t, 9, item.Price)
	assert.Equal(t, strPtr("keep"), item.Note)

	updated, err = repo.Update(ctx, tx, ItemPatch{Note: types.Null[string]()}, types.ProjectionEntity, types.Eq("id", id))
	require.NoError(t, err)
	item, _ = updated.Entity()
	assert.Nil(t, item.Note)
	assert.EqualValues(t, 9, item.Price)
}

func TestUpdateFromJSONPatch(t *testing.T) {
	ctx, tx, repo := setup(t)
	ids := seedItems(t, ctx, tx, repo, "a")
	_, err := repo.Update(ctx, tx, types.Values{"note": "old"}, types.ProjectionNone, types.Eq("id", ids[0]))
	require.NoError(t, err)

	var patch ItemPatch
	require.NoError(t, json.Unmarshal([]byte(`{"price": 7, "note": null}`), &patch))

	res, err := repo.Update(ctx, tx, &patch, types.ProjectionEntity, types.Eq("id", ids[0]))
	require.NoError(t, err)
	item, ok := res.Entity()
	require.True(t, ok)
	assert.Equal(t, "a", item.Name)
	assert.EqualValues(t, 7, item.Price)
	assert.Nil(t, item.Note)
}

func TestUpdateMissingRowIsAbsent(t *testing.T) {
	ctx, tx, repo := setup(t)
	seedItems(t, ctx, tx, repo, "a")

	for _, p := range []types.Projection{types.ProjectionEntity, types.ProjectionPrimaryKey, types.ProjectionNone} {
		res, err := repo.Update(ctx, tx, types.Values{"name": "b"}, p, types.Eq("id", int64(999)))
		require.NoError(t, err, p.String())
		assert.False(t, res.Found(), p.String())
		assert.Zero(t, res.RowsAffected(), p.String())
	}
}

func TestUpdateRejectsEmptyPayload(t *testing.T) {
	ctx, tx, repo := setup(t)
	ids := seedItems(t, ctx, tx, repo, "a")

	_, err := repo.Update(ctx, tx, ItemPatch{}, types.ProjectionEntity, types.Eq("id", ids[0]))
	assert.ErrorIs(t, err, ErrEmptyPayload)

	_, err = repo.Update(ctx, tx, types.Values{"missing": 1}, types.ProjectionEntity, types.Eq("id", ids[0]))
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestUpdateMultipleRows(t *testing.T) {
	ctx, tx, repo := setup(t)
	seedItems(t, ctx, tx, repo, "a", "b", "c")

	res, err := repo.Update(ctx, tx, types.Values{"category": "sale"}, types.ProjectionNone)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.RowsAffected())

	_, err = repo.Update(ctx, tx, types.Values{"price": 0}, types.ProjectionEntity, types.Eq("category", "sale"))
	assert.True(t, IsMultipleResults(err))

	n, err := repo.Count(ctx, tx, types.Eq("price", 0))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestUpdateConstraintViolation(t *testing.T) {
	ctx, tx, repo := setup(t)
	ids := seedItems(t, ctx, tx, repo, "a", "b")

	_, err := repo.Update(ctx, tx, types.Values{"name": "a"}, types.ProjectionPrimaryKey, types.Eq("id", ids[1]))
	var ce *ConstraintError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, database.DuplicateKeyErr, ce.Kind)
}

func TestUpdateBulk(t *testing.T) {
	ctx, tx, repo := setup(t)
	ids := seedItems(t, ctx, tx, repo, "a", "b", "c")

	err := repo.UpdateBulk(ctx, tx, []KeyedPayload[int64]{
		{Key: ids[0], Fields: ItemPatch{Price: types.Set[int64](100)}},
		{Key: ids[1], Fields: types.Values{"name": "bee", "note": "n"}},
		{Key: ids[2], Fields: ItemPatch{}},
	})
	require.NoError(t, err)

	items, err := repo.List(ctx, tx, nil)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, "a", items[0].Name)
	assert.EqualValues(t, 100, items[0].Price)
	assert.Nil(t, items[0].Note)

	assert.Equal(t, "bee", items[1].Name)
	assert.EqualValues(t, 20, items[1].Price)
	assert.Equal(t, strPtr("n"), items[1].Note)

	assert.Equal(t, "c", items[2].Name)
	assert.EqualValues(t, 30, items[2].Price)
}

func TestUpdateBulkEdgeCases(t *testing.T) {
	ctx, tx, repo := setup(t)
	ids := seedItems(t, ctx, tx, repo, "a", "b")

	require.NoError(t, repo.UpdateBulk(ctx, tx, nil))

	err := repo.UpdateBulk(ctx, tx, []KeyedPayload[int64]{
		{Key: ids[0], Fields: types.Values{"price": 1}},
		{Key: ids[0], Fields: types.Values{"price": 2}},
	})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	err = repo.UpdateBulk(ctx, tx, []KeyedPayload[int64]{
		{Key: ids[0], Fields: types.Values{"name": "b"}},
	})
	assert.True(t, IsConstraintViolation(err))

	// unknown keys are ignored
	require.NoError(t, repo.UpdateBulk(ctx, tx, []KeyedPayload[int64]{
		{Key: 999, Fields: types.Values{"price": 5}},
	}))
	n, err := repo.Count(ctx, tx, types.Eq("price", 5))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteIsIdempotent(t *testing.T) {
	ctx, tx, repo := setup(t)
	ids := seedItems(t, ctx, tx, repo, "a", "b")

	res, err := repo.Delete(ctx, tx, types.ProjectionEntity, types.Eq("id", ids[0]))
	require.NoError(t, err)
	item, ok := res.Entity()
	require.True(t, ok)
	assert.Equal(t, "a", item.Name)

	res, err = repo.Delete(ctx, tx, types.ProjectionEntity, types.Eq("id", ids[0]))
	require.NoError(t, err)
	assert.False(t, res.Found())

	exists, err := repo.Exists(ctx, tx, types.Eq("id", ids[0]))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDeleteProjections(t *testing.T) {
	ctx, tx, repo := setup(t)
	ids := seedItems(t, ctx, tx, repo, "a", "b", "c")

	res, err := repo.Delete(ctx, tx, types.ProjectionPrimaryKey, types.Eq("name", "b"))
	require.NoError(t, err)
	id, ok := res.ID()
	require.True(t, ok)
	assert.Equal(t, ids[1], id)

	_, err = repo.Delete(ctx, tx, types.ProjectionPrimaryKey)
	assert.ErrorIs(t, err, ErrMultipleResults)

	res, err = repo.Delete(ctx, tx, types.ProjectionNone)
	require.NoError(t, err)
	assert.False(t, res.Found())

	n, err := repo.Count(ctx, tx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
