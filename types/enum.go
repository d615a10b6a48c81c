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
)

// Common illegal/default values used by enums.
const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum represents a basic enum contract used by domain types.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

type enumEntry struct {
	name string
	desc string
}

// Projection selects the shape returned by a mutating repository call.
type Projection int

const (
	// ProjectionEntity returns the full affected row(s).
	ProjectionEntity Projection = iota
	// ProjectionPrimaryKey returns only the primary key value(s).
	ProjectionPrimaryKey
	// ProjectionNone executes the statement and returns nothing.
	ProjectionNone
)

var projectionEntries = map[Projection]enumEntry{
	ProjectionEntity:     {"entity", "return the full affected rows"},
	ProjectionPrimaryKey: {"id", "return the primary key of the affected rows"},
	ProjectionNone:       {"none", "return nothing"},
}

var _ BaseEnum = ProjectionEntity

func (p Projection) IsValid() bool {
	_, ok := projectionEntries[p]
	return ok
}

func (p Projection) Number() int {
	if !p.IsValid() {
		return IllegalValue
	}
	return int(p)
}

func (p Projection) Name() string {
	if e, ok := projectionEntries[p]; ok {
		return e.name
	}
	return IllegalName
}

func (p Projection) Desc() string {
	if e, ok := projectionEntries[p]; ok {
		return e.desc
	}
	return IllegalDesc
}

func (p Projection) String() string { return p.Name() }

// MarshalText encodes the projection by name.
func (p Projection) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid projection: %d", int(p))
	}
	return []byte(p.Name()), nil
}

// UnmarshalText decodes a projection name, see ParseProjection.
func (p *Projection) UnmarshalText(b []byte) error {
	v, err := ParseProjection(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// ParseProjection accepts "entity" (or "model"), "id" (or "primary_key") and
// "none". The empty string maps to ProjectionEntity.
func ParseProjection(s string) (Projection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "entity", "model":
		return ProjectionEntity, nil
	case "id", "pk", "primary_key":
		return ProjectionPrimaryKey, nil
	case "none":
		return ProjectionNone, nil
	default:
		return Projection(IllegalValue), fmt.Errorf("unknown projection: %q", s)
	}
}

// Mode is the deployment mode of the process.
type Mode int

const (
	ModeProd Mode = iota
	ModeDev
	ModeLocal
	ModeTest
)

var modeEntries = map[Mode]enumEntry{
	ModeProd:  {"PROD", "production"},
	ModeDev:   {"DEV", "development"},
	ModeLocal: {"LOCAL", "local workstation"},
	ModeTest:  {"TEST", "automated tests"},
}

var _ BaseEnum = ModeProd

func (m Mode) IsValid() bool {
	_, ok := modeEntries[m]
	return ok
}

func (m Mode) Number() int {
	if !m.IsValid() {
		return IllegalValue
	}
	return int(m)
}

func (m Mode) Name() string {
	if e, ok := modeEntries[m]; ok {
		return e.name
	}
	return IllegalName
}

func (m Mode) Desc() string {
	if e, ok := modeEntries[m]; ok {
		return e.desc
	}
	return IllegalDesc
}

func (m Mode) String() string { return m.Name() }

func (m Mode) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, fmt.Errorf("invalid mode: %d", int(m))
	}
	return []byte(m.Name()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// ParseMode parses PROD, DEV, LOCAL or TEST, case-insensitively.
func ParseMode(s string) (Mode, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for m, e := range modeEntries {
		if e.name == name {
			return m, nil
		}
	}
	return Mode(IllegalValue), fmt.Errorf("unknown mode: %q", s)
}
