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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
)

// TxFunc is a unit of work executed inside a transaction.
type TxFunc func(ctx context.Context, tx bun.Tx) error

// WithSession runs fn in a transaction begun on db and commits when fn
// returns nil. On error or panic the transaction is rolled back. When db is
// itself a bun.Tx the work runs inside a savepoint.
func WithSession(ctx context.Context, db bun.IDB, fn TxFunc) (err error) {
	return WithSessionOptions(ctx, db, nil, fn)
}

// WithSessionOptions is WithSession with explicit transaction options.
func WithSessionOptions(ctx context.Context, db bun.IDB, opts *sql.TxOptions, fn TxFunc) (err error) {
	if db == nil {
		return ErrNotConnected
	}
	if d, ok := db.(*bun.DB); ok && d == nil {
		return ErrNotConnected
	}

	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rec := recover(); rec != nil {
			rollback(tx)
			panic(rec)
		}
		rollback(tx)
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func rollback(tx bun.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		GetLogger().Error("Failed to roll back transaction", "error", err)
	}
}
