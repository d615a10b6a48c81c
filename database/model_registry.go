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
	"reflect"
	"sort"
	"sync"
)

var defaultRegistry = NewModelRegistry()

// SQLModel is a Bun model known to the bootstrap. Instance returns a struct
// pointer; models with a lower Priority are created first and dropped last.
type SQLModel interface {
	Instance() interface{}
	Priority() int
}

// ModelRegistry stores SQL models in a deterministic order.
type ModelRegistry interface {
	Register(model SQLModel)
	Models() []SQLModel
	Instances() []interface{}
}

type registeredModel struct {
	SQLModel
	seq int
}

type modelRegistry struct {
	mu     sync.RWMutex
	models []registeredModel
	types  map[reflect.Type]int
}

// NewModelRegistry returns an empty registry.
func NewModelRegistry() ModelRegistry {
	return &modelRegistry{types: make(map[reflect.Type]int)}
}

// Register adds model. Registering the same struct type again replaces the
// earlier entry.
func (r *modelRegistry) Register(model SQLModel) {
	if model == nil || model.Instance() == nil {
		return
	}
	typ := reflect.TypeOf(model.Instance())

	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.types[typ]; ok {
		r.models[i].SQLModel = model
		return
	}
	r.types[typ] = len(r.models)
	r.models = append(r.models, registeredModel{SQLModel: model, seq: len(r.models)})
}

// Models returns the models ordered by priority, then registration order.
func (r *modelRegistry) Models() []SQLModel {
	r.mu.RLock()
	sorted := make([]registeredModel, len(r.models))
	copy(sorted, r.models)
	r.mu.RUnlock()

	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Priority() != sorted[j].Priority() {
			return sorted[i].Priority() < sorted[j].Priority()
		}
		return sorted[i].seq < sorted[j].seq
	})

	result := make([]SQLModel, len(sorted))
	for i, m := range sorted {
		result[i] = m.SQLModel
	}
	return result
}

func (r *modelRegistry) Instances() []interface{} {
	models := r.Models()
	instances := make([]interface{}, len(models))
	for i, model := range models {
		instances[i] = model.Instance()
	}
	return instances
}

type modelAdapter struct {
	instance interface{}
	priority int
}

// NewModelAdapter wraps a struct pointer and priority into an SQLModel.
func NewModelAdapter(instance interface{}, priority int) SQLModel {
	return &modelAdapter{instance: instance, priority: priority}
}

func (a *modelAdapter) Instance() interface{} { return a.instance }

func (a *modelAdapter) Priority() int { return a.priority }

// RegisterModel adds instance to the default registry.
func RegisterModel(instance interface{}, priority int) {
	defaultRegistry.Register(NewModelAdapter(instance, priority))
}

// RegisteredModels returns the default registry's models by priority.
func RegisteredModels() []SQLModel {
	return defaultRegistry.Models()
}

// RegisteredModelInstances returns the default registry's struct pointers.
func RegisteredModelInstances() []interface{} {
	return defaultRegistry.Instances()
}
