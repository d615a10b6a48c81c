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
	"strings"

	"github.com/tomoncle/crudkit/types"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// Payload is the input of Add, Update and UpdateBulk. It is one of:
//
//   - types.Values or map[string]interface{}: every key is written as given;
//   - a struct or pointer to struct: types.Optional fields are written only
//     when set, plain fields are always written.
//
// A struct field maps to the column named by its bun tag, else to the entity
// column with the same Go field name, else to its json tag. Fields tagged
// bun:"-" are skipped, and so is a zero autoincrement primary key.
type Payload interface{}

// KeyedPayload is one row of a bulk update: the target key and its fields.
type KeyedPayload[ID comparable] struct {
	Key    ID
	Fields Payload
}

var (
	baseModelType = reflect.TypeOf(bun.BaseModel{})
	valuesType    = reflect.TypeOf(types.Values{})
)

// normalize turns a payload into a column -> value mapping, keeping only the
// fields the caller provided.
func (d *Descriptor) normalize(payload Payload) (types.Values, error) {
	values := types.Values{}
	if payload == nil {
		return values, nil
	}

	v := reflect.ValueOf(payload)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return values, nil
		}
		v = v.Elem()
	}

	switch {
	case v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String:
		iter := v.MapRange()
		for iter.Next() {
			value := iter.Value().Interface()
			if f, ok := value.(types.OptionalField); ok {
				if !f.IsSet() {
					continue
				}
				value = f.FieldValue()
			}
			values[iter.Key().String()] = value
		}
	case v.Kind() == reflect.Struct:
		if err := d.collectStruct(v, values); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}

	for column := range values {
		if !d.HasColumn(column) {
			return nil, fmt.Errorf("%w: %s has no column %q", ErrUnknownField, d.Table(), column)
		}
	}
	return values, nil
}

func (d *Descriptor) collectStruct(v reflect.Value, values types.Values) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Type == baseModelType {
			continue
		}
		fv := v.Field(i)

		if sf.Anonymous && sf.Tag.Get("bun") == "" {
			inner := fv
			if inner.Kind() == reflect.Ptr {
				if inner.IsNil() {
					continue
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct && inner.Type() != valuesType {
				if err := d.collectStruct(inner, values); err != nil {
					return err
				}
				continue
			}
		}
		if !sf.IsExported() || !fv.CanInterface() {
			continue
		}

		column, skip := d.columnOf(sf)
		if skip {
			continue
		}
		if column == "" {
			return fmt.Errorf("%w: %s.%s does not map to a column of %s",
				ErrUnknownField, t.Name(), sf.Name, d.Table())
		}

		value := fv.Interface()
		if f, ok := value.(types.OptionalField); ok {
			if !f.IsSet() {
				continue
			}
			value = f.FieldValue()
		} else if column == d.pk.Name && d.pk.AutoIncrement && fv.IsZero() {
			continue
		}
		values[column] = value
	}
	return nil
}

// columnOf resolves the column of a payload struct field.
func (d *Descriptor) columnOf(sf reflect.StructField) (column string, skip bool) {
	if tag, ok := sf.Tag.Lookup("bun"); ok {
		name := strings.SplitN(tag, ",", 2)[0]
		switch {
		case name == "-":
			return "", true
		case strings.Contains(name, ":"):
			// bun options such as "table:..." or "rel:..."
			return "", true
		case name != "":
			return name, false
		}
	}
	if name, ok := d.columnForGoName(sf.Name); ok {
		return name, false
	}
	if tag, ok := sf.Tag.Lookup("json"); ok {
		name := strings.SplitN(tag, ",", 2)[0]
		if name == "-" {
			return "", true
		}
		if name != "" {
			return name, false
		}
	}
	return "", false
}

// insertRows normalizes bulk insert payloads into one column list and a
// value matrix in that column order.
func (d *Descriptor) insertRows(payloads []Payload) ([]string, [][]interface{}, error) {
	var columns []string
	rows := make([][]interface{}, 0, len(payloads))
	for i, payload := range payloads {
		values, err := d.normalize(payload)
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			columns = values.Keys()
		} else if !sameColumns(columns, values) {
			return nil, nil, fmt.Errorf("%w: row %d sets %v, row 0 sets %v",
				ErrInconsistentPayloads, i, values.Keys(), columns)
		}
		rows = append(rows, valuesRow(columns, values))
	}
	return columns, rows, nil
}

func sameColumns(columns []string, values types.Values) bool {
	if len(columns) != len(values) {
		return false
	}
	for _, column := range columns {
		if _, ok := values[column]; !ok {
			return false
		}
	}
	return true
}

// columnValue renders one value of a VALUES row. bun.In alone would expand
// slice values into nested tuples and cannot render untyped nils.
type columnValue struct {
	v interface{}
}

var _ schema.QueryAppender = columnValue{}

func (c columnValue) AppendQuery(fmter schema.Formatter, b []byte) ([]byte, error) {
	return schema.Append(fmter, b, c.v), nil
}

func valuesRow(columns []string, values types.Values) []interface{} {
	row := make([]interface{}, len(columns))
	for i, column := range columns {
		row[i] = columnValue{values[column]}
	}
	return row
}
