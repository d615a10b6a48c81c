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
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	content := `
-- widgets
INSERT INTO widgets (name)
VALUES ('a');

INSERT INTO widgets (name) VALUES ('b');
INSERT INTO widgets (name) VALUES ('c')
`
	statements := SplitStatements(content)
	assert.Equal(t, []string{
		"INSERT INTO widgets (name) VALUES ('a');",
		"INSERT INTO widgets (name) VALUES ('b');",
		"INSERT INTO widgets (name) VALUES ('c')",
	}, statements)
}

func TestSeederOrdersFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"common/002_second.sql": {Data: []byte("SELECT 1;")},
		"common/001_first.sql":  {Data: []byte("SELECT 1;")},
		"common/readme.md":      {Data: []byte("ignored")},
		"local/010_local.sql":   {Data: []byte("SELECT 1;")},
		"local/extra.sql":       {Data: []byte("SELECT 1;")},
		"test/001_test.sql":     {Data: []byte("SELECT 1;")},
	}

	files, err := NewSeeder(fsys, "LOCAL").Files()
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	assert.Equal(t, []string{
		"common/001_first.sql",
		"common/002_second.sql",
		"local/010_local.sql",
		"local/extra.sql",
	}, paths)
	assert.Equal(t, 999, files[3].Order)
}

func TestSeederRun(t *testing.T) {
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"common/001_widgets.sql": {Data: []byte("INSERT INTO widgets (name) VALUES ('a');\nINSERT INTO widgets (name) VALUES ('b');")},
		"dev/001_more.sql":       {Data: []byte("INSERT INTO widgets (name) VALUES ('c');")},
	}

	results, err := NewSeeder(fsys, "dev").Run(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, results[0].Statements)
	assert.EqualValues(t, 2, results[0].RowsAffected)
	assert.Equal(t, 3, countWidgets(t, db))
}

func TestSeederRunIsAtomic(t *testing.T) {
	db := newTestDB(t)
	fsys := fstest.MapFS{
		"common/001_widgets.sql": {Data: []byte("INSERT INTO widgets (name) VALUES ('a');")},
		"common/002_dup.sql":     {Data: []byte("INSERT INTO widgets (name) VALUES ('a');")},
	}

	_, err := NewSeeder(fsys, "").Run(context.Background(), db)
	require.Error(t, err)
	_, kind := IsSqlError(err)
	assert.Equal(t, DuplicateKeyErr, kind)
	assert.Equal(t, 0, countWidgets(t, db))
}

func TestSeederWithoutFiles(t *testing.T) {
	db := newTestDB(t)
	results, err := NewSeeder(fstest.MapFS{}, "prod").Run(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, results)
}
