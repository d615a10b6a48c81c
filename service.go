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

package crudkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/tomoncle/crudkit/database"
	"github.com/tomoncle/crudkit/repository"
	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
)

// Service runs repository operations in transactions it owns. Each call
// commits on success and rolls back on error.
type Service[T any, ID comparable] interface {
	// Create inserts one row and returns it as stored.
	Create(ctx context.Context, payload repository.Payload) (*T, error)

	// CreateMany inserts every payload in one statement.
	CreateMany(ctx context.Context, payloads ...repository.Payload) ([]*T, error)

	// Get returns the row with the given key or repository.ErrNotFound.
	Get(ctx context.Context, id ID) (*T, error)

	// Find returns the single row matching preds, or nil.
	Find(ctx context.Context, preds ...types.Predicate) (*T, error)

	// Update writes payload to the row with the given key and returns the
	// updated row, or repository.ErrNotFound.
	Update(ctx context.Context, id ID, payload repository.Payload) (*T, error)

	// UpdateMany applies one payload per key.
	UpdateMany(ctx context.Context, rows ...repository.KeyedPayload[ID]) error

	// Delete removes the row with the given key, or returns repository.ErrNotFound.
	Delete(ctx context.Context, id ID) error

	Count(ctx context.Context, preds ...types.Predicate) (int, error)

	Exists(ctx context.Context, preds ...types.Predicate) (bool, error)

	List(ctx context.Context, page *types.PageRequest, preds ...types.Predicate) ([]*T, error)

	Page(ctx context.Context, page *types.PageRequest, preds ...types.Predicate) (*types.Pagination[T], error)

	// WithTx runs fn in one transaction, for work spanning several calls.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID]) error) error

	Repository() repository.Repository[T, ID]
}

type baseServiceImpl[T any, ID comparable] struct {
	mu   sync.Mutex
	db   *bun.DB
	repo repository.Repository[T, ID]
}

// NewService returns a Service bound to db.
func NewService[T any, ID comparable](db *bun.DB) (Service[T, ID], error) {
	repo, err := repository.NewRepository[T, ID](db)
	if err != nil {
		return nil, err
	}
	return &baseServiceImpl[T, ID]{db: db, repo: repo}, nil
}

// NewDefaultService returns a Service on the connection opened by
// database.InitDB. The repository is built on first use once the database is
// connected; calls made before that return database.ErrNotConnected.
func NewDefaultService[T any, ID comparable]() Service[T, ID] {
	return &baseServiceImpl[T, ID]{}
}

func (s *baseServiceImpl[T, ID]) bind() (*bun.DB, repository.Repository[T, ID], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.repo != nil {
		return s.db, s.repo, nil
	}
	db := database.GetDB()
	if db == nil {
		return nil, nil, database.ErrNotConnected
	}
	repo, err := repository.NewRepository[T, ID](db)
	if err != nil {
		return nil, nil, err
	}
	s.db, s.repo = db, repo
	return db, repo, nil
}

type sessionFunc[T any, ID comparable] func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID]) error

func (s *baseServiceImpl[T, ID]) run(ctx context.Context, fn sessionFunc[T, ID]) error {
	db, repo, err := s.bind()
	if err != nil {
		return err
	}
	return database.WithSession(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx, repo)
	})
}

// runByKey is run for calls addressing one row, with errors naming the row.
func (s *baseServiceImpl[T, ID]) runByKey(ctx context.Context, op string, id ID, fn func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID], key types.Predicate) error) error {
	db, repo, err := s.bind()
	if err != nil {
		return err
	}
	desc := repo.Descriptor()
	err = database.WithSession(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, tx, repo, types.Eq(desc.PrimaryKey(), id))
	})
	if err != nil {
		return fmt.Errorf("%s %s %v: %w", op, desc.Table(), id, err)
	}
	return nil
}

func (s *baseServiceImpl[T, ID]) Repository() repository.Repository[T, ID] {
	_, repo, err := s.bind()
	if err != nil {
		return nil
	}
	return repo
}

func (s *baseServiceImpl[T, ID]) WithTx(
	ctx context.Context, fn func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID]) error,
) error {
	return s.run(ctx, fn)
}

func (s *baseServiceImpl[T, ID]) Create(ctx context.Context, payload repository.Payload) (*T, error) {
	var entity *T
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID]) error {
		res, err := repo.Add(ctx, tx, payload, types.ProjectionEntity)
		if err != nil {
			return err
		}
		entity, _ = res.Entity()
		return nil
	})
	return entity, err
}

func (s *baseServiceImpl[T, ID]) CreateMany(ctx context.Context, payloads ...repository.Payload) ([]*T, error) {
	var entities []*T
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID]) error {
		res, err := repo.AddBulk(ctx, tx, payloads, types.ProjectionEntity)
		if err != nil {
			return err
		}
		entities = res.Entities()
		return nil
	})
	return entities, err
}

func (s *baseServiceImpl[T, ID]) Get(ctx context.Context, id ID) (*T, error) {
	var entity *T
	err := s.runByKey(ctx, "get", id, func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID], key types.Predicate) (err error) {
		entity, err = repo.GetExactlyOne(ctx, tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *baseServiceImpl[T, ID]) Find(ctx context.Context, preds ...types.Predicate) (*T, error) {
	var entity *T
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID]) (err error) {
		entity, err = repo.GetOneOrNone(ctx, tx, preds...)
		return err
	})
	return entity, err
}

func (s *baseServiceImpl[T, ID]) Update(ctx context.Context, id ID, payload repository.Payload) (*T, error) {
	var entity *T
	err := s.runByKey(ctx, "update", id, func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID], key types.Predicate) error {
		res, err := repo.Update(ctx, tx, payload, types.ProjectionEntity, key)
		if err != nil {
			return err
		}
		var ok bool
		if entity, ok = res.Entity(); !ok {
			return repository.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (s *baseServiceImpl[T, ID]) UpdateMany(ctx context.Context, rows ...repository.KeyedPayload[ID]) error {
	return s.run(ctx, func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID]) error {
		return repo.UpdateBulk(ctx, tx, rows)
	})
}

func (s *baseServiceImpl[T, ID]) Delete(ctx context.Context, id ID) error {
	return s.runByKey(ctx, "delete", id, func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID], key types.Predicate) error {
		res, err := repo.Delete(ctx, tx, types.ProjectionPrimaryKey, key)
		if err != nil {
			return err
		}
		if !res.Found() {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (s *baseServiceImpl[T, ID]) Count(ctx context.Context, preds ...types.Predicate) (int, error) {
	var n int
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID]) (err error) {
		n, err = repo.Count(ctx, tx, preds...)
		return err
	})
	return n, err
}

func (s *baseServiceImpl[T, ID]) Exists(ctx context.Context, preds ...types.Predicate) (bool, error) {
	var ok bool
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID]) (err error) {
		ok, err = repo.Exists(ctx, tx, preds...)
		return err
	})
	return ok, err
}

func (s *baseServiceImpl[T, ID]) List(ctx context.Context, page *types.PageRequest, preds ...types.Predicate) ([]*T, error) {
	var items []*T
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID]) (err error) {
		items, err = repo.List(ctx, tx, page, preds...)
		return err
	})
	return items, err
}

func (s *baseServiceImpl[T, ID]) Page(ctx context.Context, page *types.PageRequest, preds ...types.Predicate) (*types.Pagination[T], error) {
	var p *types.Pagination[T]
	err := s.run(ctx, func(ctx context.Context, tx bun.Tx, repo repository.Repository[T, ID]) (err error) {
		p, err = repo.Page(ctx, tx, page, preds...)
		return err
	})
	return p, err
}
