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

// Package repository implements a generic CRUD repository over Bun.
//
// A Repository[T, ID] is bound to one entity type with a single primary key.
// Every operation takes the caller's session (a *bun.DB or a bun.Tx) and
// never commits. Write operations take a types.Projection selecting the
// shape of their result.
package repository
