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
	"errors"
	"fmt"

	"github.com/tomoncle/crudkit/database"
)

var (
	// ErrNotFound is returned when exactly one row was required and none matched.
	ErrNotFound = errors.New("record not found")
	// ErrMultipleResults is returned when at most one row was expected and more matched.
	ErrMultipleResults = errors.New("multiple records found")
	// ErrUnknownField is returned when a payload names a column the entity does not have.
	ErrUnknownField = errors.New("unknown field")
	// ErrEmptyPayload is returned when an update carries no fields.
	ErrEmptyPayload = errors.New("empty payload")
	// ErrInconsistentPayloads is returned when bulk insert rows set different columns.
	ErrInconsistentPayloads = errors.New("bulk payloads must set the same fields")
	// ErrInvalidProjection is returned for an unknown types.Projection value.
	ErrInvalidProjection = errors.New("invalid projection")
	// ErrDuplicateKey is returned when a bulk update names the same key twice.
	ErrDuplicateKey = errors.New("duplicate key in bulk update")
	// ErrUnsupportedModel is returned when an entity cannot back a repository.
	ErrUnsupportedModel = errors.New("unsupported model")
)

// ConstraintError reports a uniqueness, not-null, foreign key or check
// constraint violation raised by the store. Unwrap returns the driver error.
type ConstraintError struct {
	Kind  database.SQLError
	Op    string
	Table string
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Table, e.Kind, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsMultipleResults reports whether err is or wraps ErrMultipleResults.
func IsMultipleResults(err error) bool { return errors.Is(err, ErrMultipleResults) }

// IsConstraintViolation reports whether err carries a *ConstraintError.
func IsConstraintViolation(err error) bool {
	var ce *ConstraintError
	return errors.As(err, &ce)
}

// IsPayloadError reports whether err was caused by the caller's input rather
// than by the store.
func IsPayloadError(err error) bool {
	return errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrEmptyPayload) ||
		errors.Is(err, ErrInconsistentPayloads) ||
		errors.Is(err, ErrInvalidProjection) ||
		errors.Is(err, ErrDuplicateKey)
}

func storeError(op, table string, err error) error {
	if err == nil {
		return nil
	}
	if is, kind := database.IsSqlError(err); is && kind.IsConstraint() {
		return &ConstraintError{Kind: kind, Op: op, Table: table, Err: err}
	}
	return fmt.Errorf("%s %s: %w", op, table, err)
}
