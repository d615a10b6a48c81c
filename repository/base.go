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
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/feature"
	"github.com/uptrace/bun/schema"
)

type baseRepositoryImpl[T any, ID comparable] struct {
	db   *bun.DB
	desc *Descriptor
}

// NewRepository returns a generic repository for T. db supplies the dialect
// and the table metadata; statements run on the session passed to each call.
func NewRepository[T any, ID comparable](db *bun.DB) (Repository[T, ID], error) {
	desc, err := newDescriptor[T, ID](db)
	if err != nil {
		return nil, err
	}
	return &baseRepositoryImpl[T, ID]{db: db, desc: desc}, nil
}

// MustNewRepository is like NewRepository but panics on error.
func MustNewRepository[T any, ID comparable](db *bun.DB) Repository[T, ID] {
	repo, err := NewRepository[T, ID](db)
	if err != nil {
		panic(err)
	}
	return repo
}

func (r *baseRepositoryImpl[T, ID]) Descriptor() *Descriptor { return r.desc }

func (r *baseRepositoryImpl[T, ID]) Dialect() schema.Dialect { return r.db.Dialect() }

func (r *baseRepositoryImpl[T, ID]) NewSelect(s bun.IDB) *bun.SelectQuery {
	return s.NewSelect().Model((*T)(nil))
}

type whereBuilder[Q any] interface {
	Where(query string, args ...interface{}) Q
}

func applyWhere[Q whereBuilder[Q]](q Q, preds []types.Predicate) Q {
	for _, p := range preds {
		q = q.Where(p.Query, p.Args...)
	}
	return q
}

// applyMutationWhere is applyWhere for UPDATE and DELETE, which Bun refuses
// to build without a WHERE clause. No predicates targets every row.
func applyMutationWhere[Q whereBuilder[Q]](q Q, preds []types.Predicate) Q {
	if len(preds) == 0 {
		return q.Where("1 = 1")
	}
	return applyWhere(q, preds)
}

func (r *baseRepositoryImpl[T, ID]) pkIdent() bun.Ident { return bun.Ident(r.desc.PrimaryKey()) }

func (r *baseRepositoryImpl[T, ID]) byKeys(ids []ID) types.Predicate {
	return types.Where("? IN (?)", r.pkIdent(), bun.In(ids))
}

func checkProjection(p types.Projection) error {
	if !p.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidProjection, int(p))
	}
	return nil
}

func hasFeature(s bun.IDB, f feature.Feature) bool {
	return s.Dialect().Features().Has(f)
}

// returningExpr is the RETURNING list for a projection.
func (r *baseRepositoryImpl[T, ID]) returningExpr(p types.Projection) (string, []interface{}) {
	if p == types.ProjectionPrimaryKey {
		return "?", []interface{}{r.pkIdent()}
	}
	return "*", nil
}

// scanReturning runs exec with a destination matching the projection and
// collects the returned rows.
func (r *baseRepositoryImpl[T, ID]) scanReturning(
	p types.Projection, exec func(dest interface{}) (sql.Result, error),
) (BulkResult[T, ID], error) {
	result := BulkResult[T, ID]{projection: p}
	var err error
	switch p {
	case types.ProjectionEntity:
		var rows []T
		_, err = exec(&rows)
		result.entities = make([]*T, len(rows))
		result.ids = make([]ID, len(rows))
		for i := range rows {
			result.entities[i] = &rows[i]
			result.ids[i] = keyOf[T, ID](r.desc, &rows[i])
		}
	case types.ProjectionPrimaryKey:
		_, err = exec(&result.ids)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return result, err
	}
	result.affected = int64(len(result.ids))
	return result, nil
}

// single narrows a bulk outcome to at most one row.
func (r *baseRepositoryImpl[T, ID]) single(op string, bulk BulkResult[T, ID]) (Result[T, ID], error) {
	if bulk.affected > 1 {
		return Result[T, ID]{projection: bulk.projection, affected: bulk.affected},
			fmt.Errorf("%w: %s %s affected %d rows", ErrMultipleResults, op, r.desc.Table(), bulk.affected)
	}
	return bulk.first(), nil
}

func (r *baseRepositoryImpl[T, ID]) Add(ctx context.Context, s bun.IDB, payload Payload, p types.Projection) (Result[T, ID], error) {
	if err := checkProjection(p); err != nil {
		return Result[T, ID]{}, err
	}
	values, err := r.desc.normalize(payload)
	if err != nil {
		return Result[T, ID]{}, err
	}
	columns := values.Keys()
	bulk, err := r.insert(ctx, s, "add", columns, [][]interface{}{valuesRow(columns, values)}, p)
	if err != nil {
		return Result[T, ID]{}, err
	}
	return bulk.first(), nil
}

func (r *baseRepositoryImpl[T, ID]) AddBulk(ctx context.Context, s bun.IDB, payloads []Payload, p types.Projection) (BulkResult[T, ID], error) {
	if err := checkProjection(p); err != nil {
		return BulkResult[T, ID]{}, err
	}
	if len(payloads) == 0 {
		return BulkResult[T, ID]{projection: p}, nil
	}
	columns, rows, err := r.desc.insertRows(payloads)
	if err != nil {
		return BulkResult[T, ID]{}, err
	}
	if len(columns) == 0 {
		return BulkResult[T, ID]{}, fmt.Errorf("%w: bulk insert into %s sets no fields", ErrEmptyPayload, r.desc.Table())
	}
	return r.insert(ctx, s, "add bulk", columns, rows, p)
}

// insert runs one INSERT for all rows. Dialects without INSERT ... RETURNING
// read keys from the payload or from LastInsertId and reload the rows.
func (r *baseRepositoryImpl[T, ID]) insert(
	ctx context.Context, s bun.IDB, op string, columns []string, rows [][]interface{}, p types.Projection,
) (BulkResult[T, ID], error) {
	query, args := r.insertQuery(s, columns, rows)

	if p != types.ProjectionNone && hasFeature(s, feature.InsertReturning) {
		expr, exprArgs := r.returningExpr(p)
		raw := s.NewRaw(query+" RETURNING "+expr, append(args, exprArgs...)...)
		result, err := r.scanReturning(p, func(dest interface{}) (sql.Result, error) {
			return raw.Exec(ctx, dest)
		})
		return result, storeError(op, r.desc.Table(), err)
	}

	result := BulkResult[T, ID]{projection: p}
	res, err := s.NewRaw(query, args...).Exec(ctx)
	if err != nil {
		return result, storeError(op, r.desc.Table(), err)
	}
	if result.affected, err = res.RowsAffected(); err != nil {
		result.affected = int64(len(rows))
	}
	if p == types.ProjectionNone {
		return result, nil
	}

	if result.ids, err = r.insertedKeys(s, res, columns, rows); err != nil {
		return result, fmt.Errorf("%s %s: %w", op, r.desc.Table(), err)
	}
	if p == types.ProjectionEntity {
		if result.entities, err = r.loadByKeys(ctx, s, result.ids); err != nil {
			return result, storeError(op, r.desc.Table(), err)
		}
	}
	return result, nil
}

func (r *baseRepositoryImpl[T, ID]) insertQuery(s bun.IDB, columns []string, rows [][]interface{}) (string, []interface{}) {
	table := r.desc.tableExpr()
	if len(columns) == 0 {
		if s.Dialect().Name() == dialect.MySQL {
			return "INSERT INTO ? () VALUES ()", []interface{}{table}
		}
		return "INSERT INTO ? DEFAULT VALUES", []interface{}{table}
	}
	idents := make([]interface{}, len(columns))
	for i, column := range columns {
		idents[i] = bun.Ident(column)
	}
	return "INSERT INTO ? (?) VALUES ?", []interface{}{table, bun.In(idents), bun.In(rows)}
}

// insertedKeys returns the keys of the inserted rows: the payload's own key
// values when it set the primary key, else consecutive generated ids.
// MySQL reports the id of the first row of a multi-row insert, SQLite the
// id of the last one.
func (r *baseRepositoryImpl[T, ID]) insertedKeys(s bun.IDB, res sql.Result, columns []string, rows [][]interface{}) ([]ID, error) {
	ids := make([]ID, 0, len(rows))
	if pos := sort.SearchStrings(columns, r.desc.PrimaryKey()); pos < len(columns) && columns[pos] == r.desc.PrimaryKey() {
		for _, row := range rows {
			id, err := toKey[T, ID](r.desc, row[pos].(columnValue).v)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	first, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	if s.Dialect().Name() != dialect.MySQL {
		first -= int64(len(rows) - 1)
	}
	for i := range rows {
		id, err := toKey[T, ID](r.desc, first+int64(i))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *baseRepositoryImpl[T, ID]) loadByKeys(ctx context.Context, s bun.IDB, ids []ID) ([]*T, error) {
	entities := make([]*T, 0, len(ids))
	if len(ids) == 0 {
		return entities, nil
	}
	err := s.NewSelect().
		Model(&entities).
		Where("? IN (?)", r.pkIdent(), bun.In(ids)).
		OrderExpr("? ASC", r.pkIdent()).
		Scan(ctx)
	return entities, err
}

// selectForUpdate reads the rows a mutation is about to touch, locking them
// where the dialect supports row locks.
func (r *baseRepositoryImpl[T, ID]) selectForUpdate(
	ctx context.Context, s bun.IDB, p types.Projection, preds []types.Predicate,
) (BulkResult[T, ID], error) {
	result := BulkResult[T, ID]{projection: p}
	lock := func(q *bun.SelectQuery) *bun.SelectQuery {
		if s.Dialect().Name() == dialect.SQLite {
			return q
		}
		return q.For("UPDATE")
	}

	if p == types.ProjectionEntity {
		q := applyWhere(s.NewSelect().Model(&result.entities), preds)
		if err := lock(q).OrderExpr("? ASC", r.pkIdent()).Scan(ctx); err != nil {
			return result, err
		}
		result.ids = make([]ID, len(result.entities))
		for i, e := range result.entities {
			result.ids[i] = keyOf[T, ID](r.desc, e)
		}
	} else {
		q := applyWhere(r.NewSelect(s).Column(r.desc.PrimaryKey()), preds)
		if err := lock(q).OrderExpr("? ASC", r.pkIdent()).Scan(ctx, &result.ids); err != nil {
			return result, err
		}
	}
	result.affected = int64(len(result.ids))
	return result, nil
}

func (r *baseRepositoryImpl[T, ID]) newUpdate(s bun.IDB, values types.Values) *bun.UpdateQuery {
	q := s.NewUpdate().Model((*T)(nil))
	for _, column := range values.Keys() {
		q = q.Set("? = ?", bun.Ident(column), values[column])
	}
	return q
}

func (r *baseRepositoryImpl[T, ID]) Update(
	ctx context.Context, s bun.IDB, payload Payload, p types.Projection, preds ...types.Predicate,
) (Result[T, ID], error) {
	if err := checkProjection(p); err != nil {
		return Result[T, ID]{}, err
	}
	values, err := r.desc.normalize(payload)
	if err != nil {
		return Result[T, ID]{}, err
	}
	if len(values) == 0 {
		return Result[T, ID]{}, fmt.Errorf("%w: update of %s sets no fields", ErrEmptyPayload, r.desc.Table())
	}

	if p == types.ProjectionNone {
		res, err := applyMutationWhere(r.newUpdate(s, values), preds).Exec(ctx)
		if err != nil {
			return Result[T, ID]{}, storeError("update", r.desc.Table(), err)
		}
		n, _ := res.RowsAffected()
		return Result[T, ID]{projection: p, affected: n}, nil
	}

	if hasFeature(s, feature.Returning) {
		expr, args := r.returningExpr(p)
		q := applyMutationWhere(r.newUpdate(s, values), preds).Returning(expr, args...)
		bulk, err := r.scanReturning(p, func(dest interface{}) (sql.Result, error) {
			return q.Exec(ctx, dest)
		})
		if err != nil {
			return Result[T, ID]{}, storeError("update", r.desc.Table(), err)
		}
		return r.single("update", bulk)
	}

	targets, err := r.selectForUpdate(ctx, s, types.ProjectionPrimaryKey, preds)
	if err != nil {
		return Result[T, ID]{}, storeError("update", r.desc.Table(), err)
	}
	if len(targets.ids) == 0 {
		return Result[T, ID]{projection: p}, nil
	}
	keys := r.byKeys(targets.ids)
	if _, err := r.newUpdate(s, values).Where(keys.Query, keys.Args...).Exec(ctx); err != nil {
		return Result[T, ID]{}, storeError("update", r.desc.Table(), err)
	}
	bulk := BulkResult[T, ID]{projection: p, ids: targets.ids, affected: targets.affected}
	if p == types.ProjectionEntity {
		if bulk.entities, err = r.loadByKeys(ctx, s, targets.ids); err != nil {
			return Result[T, ID]{}, storeError("update", r.desc.Table(), err)
		}
	}
	return r.single("update", bulk)
}

// UpdateBulk compiles every row into a single statement:
//
//	UPDATE t SET col = CASE pk WHEN k1 THEN v1 ... ELSE col END, ... WHERE pk IN (k1, ...)
//
// so each row only touches the fields it carries.
func (r *baseRepositoryImpl[T, ID]) UpdateBulk(ctx context.Context, s bun.IDB, rows []KeyedPayload[ID]) error {
	seen := make(map[ID]struct{}, len(rows))
	keys := make([]ID, 0, len(rows))
	fields := make([]types.Values, 0, len(rows))
	columnSet := make(map[string]struct{})
	for _, row := range rows {
		if _, dup := seen[row.Key]; dup {
			return fmt.Errorf("%w: %v", ErrDuplicateKey, row.Key)
		}
		seen[row.Key] = struct{}{}

		values, err := r.desc.normalize(row.Fields)
		if err != nil {
			return err
		}
		if len(values) == 0 {
			continue
		}
		keys = append(keys, row.Key)
		fields = append(fields, values)
		for column := range values {
			columnSet[column] = struct{}{}
		}
	}
	if len(keys) == 0 {
		return nil
	}

	columns := make([]string, 0, len(columnSet))
	for column := range columnSet {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	q := s.NewUpdate().Model((*T)(nil))
	for _, column := range columns {
		var expr strings.Builder
		expr.WriteString("? = CASE ?")
		args := []interface{}{bun.Ident(column), r.pkIdent()}
		for i, values := range fields {
			v, ok := values[column]
			if !ok {
				continue
			}
			expr.WriteString(" WHEN ? THEN ?")
			args = append(args, keys[i], v)
		}
		expr.WriteString(" ELSE ? END")
		args = append(args, bun.Ident(column))
		q = q.Set(expr.String(), args...)
	}

	where := r.byKeys(keys)
	_, err := q.Where(where.Query, where.Args...).Exec(ctx)
	return storeError("update bulk", r.desc.Table(), err)
}

func (r *baseRepositoryImpl[T, ID]) Delete(
	ctx context.Context, s bun.IDB, p types.Projection, preds ...types.Predicate,
) (Result[T, ID], error) {
	if err := checkProjection(p); err != nil {
		return Result[T, ID]{}, err
	}

	if p == types.ProjectionNone {
		res, err := applyMutationWhere(s.NewDelete().Model((*T)(nil)), preds).Exec(ctx)
		if err != nil {
			return Result[T, ID]{}, storeError("delete", r.desc.Table(), err)
		}
		n, _ := res.RowsAffected()
		return Result[T, ID]{projection: p, affected: n}, nil
	}

	if hasFeature(s, feature.DeleteReturning) {
		expr, args := r.returningExpr(p)
		q := applyMutationWhere(s.NewDelete().Model((*T)(nil)), preds).Returning(expr, args...)
		bulk, err := r.scanReturning(p, func(dest interface{}) (sql.Result, error) {
			return q.Exec(ctx, dest)
		})
		if err != nil {
			return Result[T, ID]{}, storeError("delete", r.desc.Table(), err)
		}
		return r.single("delete", bulk)
	}

	bulk, err := r.selectForUpdate(ctx, s, p, preds)
	if err != nil {
		return Result[T, ID]{}, storeError("delete", r.desc.Table(), err)
	}
	if len(bulk.ids) == 0 {
		return Result[T, ID]{projection: p}, nil
	}
	keys := r.byKeys(bulk.ids)
	if _, err := s.NewDelete().Model((*T)(nil)).Where(keys.Query, keys.Args...).Exec(ctx); err != nil {
		return Result[T, ID]{}, storeError("delete", r.desc.Table(), err)
	}
	return r.single("delete", bulk)
}

func (r *baseRepositoryImpl[T, ID]) GetOneOrNone(ctx context.Context, s bun.IDB, preds ...types.Predicate) (*T, error) {
	var entities []*T
	err := applyWhere(s.NewSelect().Model(&entities), preds).Limit(2).Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, storeError("get", r.desc.Table(), err)
	}
	switch len(entities) {
	case 0:
		return nil, nil
	case 1:
		return entities[0], nil
	default:
		return nil, fmt.Errorf("%w: %s matched more than one row", ErrMultipleResults, r.desc.Table())
	}
}

func (r *baseRepositoryImpl[T, ID]) GetOneOrNoneID(ctx context.Context, s bun.IDB, preds ...types.Predicate) (ID, bool, error) {
	var zero ID
	var ids []ID
	err := applyWhere(r.NewSelect(s).Column(r.desc.PrimaryKey()), preds).Limit(2).Scan(ctx, &ids)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return zero, false, storeError("get id", r.desc.Table(), err)
	}
	switch len(ids) {
	case 0:
		return zero, false, nil
	case 1:
		return ids[0], true, nil
	default:
		return zero, false, fmt.Errorf("%w: %s matched more than one row", ErrMultipleResults, r.desc.Table())
	}
}

func (r *baseRepositoryImpl[T, ID]) GetExactlyOne(ctx context.Context, s bun.IDB, preds ...types.Predicate) (*T, error) {
	entity, err := r.GetOneOrNone(ctx, s, preds...)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, r.desc.Table())
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T, ID]) Count(ctx context.Context, s bun.IDB, preds ...types.Predicate) (int, error) {
	n, err := applyWhere(r.NewSelect(s), preds).Count(ctx)
	if err != nil {
		return 0, storeError("count", r.desc.Table(), err)
	}
	return n, nil
}

// CountFromQuery scans the single value selected by q, e.g. a COUNT or SUM
// built by the caller. NULL and no row count as 0.
func (r *baseRepositoryImpl[T, ID]) CountFromQuery(ctx context.Context, q *bun.SelectQuery) (int, error) {
	if q == nil {
		return 0, fmt.Errorf("count %s: nil query", r.desc.Table())
	}
	var n sql.NullInt64
	if err := q.Scan(ctx, &n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, storeError("count", r.desc.Table(), err)
	}
	return int(n.Int64), nil
}

func (r *baseRepositoryImpl[T, ID]) Exists(ctx context.Context, s bun.IDB, preds ...types.Predicate) (bool, error) {
	ok, err := applyWhere(r.NewSelect(s), preds).Exists(ctx)
	if err != nil {
		return false, storeError("exists", r.desc.Table(), err)
	}
	return ok, nil
}

func (r *baseRepositoryImpl[T, ID]) List(
	ctx context.Context, s bun.IDB, page *types.PageRequest, preds ...types.Predicate,
) ([]*T, error) {
	if page == nil {
		page = types.NewDefaultPageRequest()
	}
	entities := make([]*T, 0)
	q := applyWhere(s.NewSelect().Model(&entities), preds)
	if page.HasOrders() {
		q = q.Order(page.GetOrders()...)
	} else if page.IsAsc() {
		q = q.OrderExpr("? ASC", r.pkIdent())
	} else {
		q = q.OrderExpr("? DESC", r.pkIdent())
	}
	if err := q.Offset(page.GetOffset()).Limit(page.GetLimit()).Scan(ctx); err != nil {
		return nil, storeError("list", r.desc.Table(), err)
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T, ID]) Page(
	ctx context.Context, s bun.IDB, page *types.PageRequest, preds ...types.Predicate,
) (*types.Pagination[T], error) {
	if page == nil {
		page = types.NewDefaultPageRequest()
	}
	pagination := types.NewDefaultPagination[T](page.GetOffset(), page.GetLimit())
	total, err := r.Count(ctx, s, preds...)
	if err != nil || total == 0 {
		return pagination, err
	}
	items, err := r.List(ctx, s, page, preds...)
	if err != nil {
		return nil, err
	}
	pagination.Count = total
	pagination.Items = items
	return pagination, nil
}
