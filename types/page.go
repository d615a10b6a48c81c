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
	"fmt"
	"strings"

	"github.com/uptrace/bun"
)

// Default paging window.
const (
	DefaultOffset = 0
	DefaultLimit  = 100
)

// Predicate is one WHERE condition, rendered verbatim through Bun's Where.
// Predicates passed together are combined with AND.
type Predicate struct {
	Query string
	Args  []interface{}
}

// String renders the predicate for logs.
func (p Predicate) String() string {
	if len(p.Args) == 0 {
		return p.Query
	}
	return fmt.Sprintf("%s %v", p.Query, p.Args)
}

// Where creates a predicate from a raw condition and its placeholder args.
func Where(query string, args ...interface{}) Predicate {
	return Predicate{Query: query, Args: args}
}

// Eq matches column = value; a nil value matches NULL.
func Eq(column string, value interface{}) Predicate {
	if value == nil {
		return IsNull(column)
	}
	return Predicate{Query: "? = ?", Args: []interface{}{bun.Ident(column), value}}
}

// In matches column IN (values...). values must be a slice.
func In(column string, values interface{}) Predicate {
	return Predicate{Query: "? IN (?)", Args: []interface{}{bun.Ident(column), bun.In(values)}}
}

// IsNull matches rows where column IS NULL.
func IsNull(column string) Predicate {
	return Predicate{Query: "? IS NULL", Args: []interface{}{bun.Ident(column)}}
}

// PageRequest describes an offset/limit window and its ordering.
type PageRequest struct {
	offset int
	limit  int
	asc    bool
	orders []string // column names
}

func (p *PageRequest) GetOffset() int {
	if p.offset < 0 {
		p.offset = DefaultOffset
	}
	return p.offset
}

func (p *PageRequest) GetLimit() int {
	if p.limit < 1 {
		p.limit = DefaultLimit
	}
	return p.limit
}

func (p *PageRequest) IsAsc() bool {
	return p.asc
}

func (p *PageRequest) HasOrders() bool {
	return len(p.orders) > 0
}

// GetOrders renders the order columns with the request direction,
// e.g. "name ASC".
func (p *PageRequest) GetOrders() []string {
	direction := "DESC"
	if p.asc {
		direction = "ASC"
	}
	orders := make([]string, 0, len(p.orders))
	for _, column := range p.orders {
		column = strings.TrimSpace(column)
		if column == "" {
			continue
		}
		orders = append(orders, column+" "+direction)
	}
	return orders
}

// NewPageRequest constructs a PageRequest ordered by the given columns.
func NewPageRequest(offset int, limit int, asc bool, orders ...string) *PageRequest {
	return &PageRequest{offset: offset, limit: limit, asc: asc, orders: orders}
}

// NewDefaultPageRequest returns the first DefaultLimit rows in ascending
// primary key order.
func NewDefaultPageRequest() *PageRequest {
	return NewPageRequest(DefaultOffset, DefaultLimit, true)
}

// Pagination holds one window of items plus the total matching count.
type Pagination[T any] struct {
	Offset int  `json:"offset"`
	Limit  int  `json:"limit"`
	Count  int  `json:"count"`
	Items  []*T `json:"items"`
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](offset int, limit int) *Pagination[T] {
	return &Pagination[T]{offset, limit, 0, make([]*T, 0)}
}
