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
	"fmt"
	"reflect"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Descriptor describes the table behind an entity type: its name, columns
// and single primary key. It is derived once from Bun's table metadata.
type Descriptor struct {
	table    *schema.Table
	pk       *schema.Field
	byGoName map[string]*schema.Field
}

func newDescriptor[T any, ID comparable](db *bun.DB) (*Descriptor, error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrUnsupportedModel, typ)
	}

	table := db.Table(typ)
	if len(table.PKs) != 1 {
		return nil, fmt.Errorf("%w: %s must have exactly one primary key, got %d",
			ErrUnsupportedModel, table.TypeName, len(table.PKs))
	}

	pk := table.PKs[0]
	idType := reflect.TypeOf((*ID)(nil)).Elem()
	if pk.StructField.Type != idType {
		return nil, fmt.Errorf("%w: primary key %s.%s is %s, not %s",
			ErrUnsupportedModel, table.TypeName, pk.GoName, pk.StructField.Type, idType)
	}

	byGoName := make(map[string]*schema.Field, len(table.Fields))
	for _, f := range table.Fields {
		byGoName[f.GoName] = f
	}
	return &Descriptor{table: table, pk: pk, byGoName: byGoName}, nil
}

// Table returns the unquoted table name.
func (d *Descriptor) Table() string { return d.table.Name }

// PrimaryKey returns the primary key column name.
func (d *Descriptor) PrimaryKey() string { return d.pk.Name }

// Columns returns the column names in declaration order, primary key first.
func (d *Descriptor) Columns() []string {
	columns := make([]string, len(d.table.Fields))
	for i, f := range d.table.Fields {
		columns[i] = f.Name
	}
	return columns
}

// HasColumn reports whether name is a column of the table.
func (d *Descriptor) HasColumn(name string) bool {
	_, ok := d.table.FieldMap[name]
	return ok
}

func (d *Descriptor) columnForGoName(goName string) (string, bool) {
	f, ok := d.byGoName[goName]
	if !ok {
		return "", false
	}
	return f.Name, true
}

func (d *Descriptor) tableExpr() schema.Safe { return d.table.SQLName }

// keyOf reads the primary key out of an entity.
func keyOf[T any, ID comparable](d *Descriptor, entity *T) ID {
	id, _ := d.pk.Value(reflect.ValueOf(entity).Elem()).Interface().(ID)
	return id
}

// toKey converts a driver or payload value into an ID using the
// primary key field's scanner.
func toKey[T any, ID comparable](d *Descriptor, src interface{}) (ID, error) {
	if id, ok := src.(ID); ok {
		return id, nil
	}
	idType := d.pk.StructField.Type
	if v := reflect.ValueOf(src); v.IsValid() && isNumber(v.Kind()) && isNumber(idType.Kind()) {
		id, _ := v.Convert(idType).Interface().(ID)
		return id, nil
	}
	var row T
	strct := reflect.ValueOf(&row).Elem()
	if err := d.pk.ScanValue(strct, src); err != nil {
		var zero ID
		return zero, fmt.Errorf("convert %T to %s key: %w", src, d.pk.Name, err)
	}
	return keyOf[T, ID](d, &row), nil
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
