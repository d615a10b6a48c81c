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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

const commonSeedDir = "common"

var seedOrderPattern = regexp.MustCompile(`^(\d+)_`)

// SeedFile is a SQL file picked up by the Seeder.
type SeedFile struct {
	Path        string
	Name        string
	Order       int
	Environment string
}

// SeedResult reports one executed SeedFile.
type SeedResult struct {
	File         string
	Statements   int
	RowsAffected int64
	Duration     time.Duration
}

// Seeder executes the SQL files under common/ and then under the
// environment's directory. Files run by their numeric "NNN_" prefix; files
// without one run last.
type Seeder struct {
	fsys        fs.FS
	environment string
	logger      Logger
}

// NewSeeder returns a Seeder reading from fsys for the given environment.
func NewSeeder(fsys fs.FS, environment string) *Seeder {
	return &Seeder{
		fsys:        fsys,
		environment: strings.ToLower(environment),
		logger:      GetLogger(),
	}
}

// Files lists the seed files in execution order.
func (s *Seeder) Files() ([]SeedFile, error) {
	files, err := s.filesIn(commonSeedDir)
	if err != nil {
		return nil, err
	}
	if s.environment != "" && s.environment != commonSeedDir {
		envFiles, err := s.filesIn(s.environment)
		if err != nil {
			return nil, err
		}
		files = append(files, envFiles...)
	}
	return files, nil
}

func (s *Seeder) filesIn(dir string) ([]SeedFile, error) {
	var files []SeedFile
	err := fs.WalkDir(s.fsys, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(path.Ext(d.Name()), ".sql") {
			return nil
		}
		files = append(files, SeedFile{
			Path:        p,
			Name:        d.Name(),
			Order:       seedOrder(d.Name()),
			Environment: dir,
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list seed files in %s: %w", dir, err)
	}

	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Order != files[j].Order {
			return files[i].Order < files[j].Order
		}
		return files[i].Name < files[j].Name
	})
	return files, nil
}

// Run executes every seed file in a single transaction.
func (s *Seeder) Run(ctx context.Context, db bun.IDB) ([]SeedResult, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		s.logger.Info("No seed files found", "environment", s.environment)
		return nil, nil
	}

	results := make([]SeedResult, 0, len(files))
	err = WithSession(ctx, db, func(ctx context.Context, tx bun.Tx) error {
		for _, file := range files {
			result, err := s.execute(ctx, tx, file)
			if err != nil {
				return err
			}
			s.logger.Info("Seed file executed",
				"file", result.File,
				"statements", result.Statements,
				"rows_affected", result.RowsAffected,
				"duration", result.Duration.String(),
			)
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Seeder) execute(ctx context.Context, tx bun.Tx, file SeedFile) (SeedResult, error) {
	start := time.Now()
	result := SeedResult{File: file.Path}

	content, err := fs.ReadFile(s.fsys, file.Path)
	if err != nil {
		return result, fmt.Errorf("failed to read seed file %s: %w", file.Path, err)
	}

	for _, stmt := range SplitStatements(string(content)) {
		res, err := tx.ExecContext(ctx, stmt)
		if err != nil {
			return result, fmt.Errorf("seed file %s: %w", file.Path, err)
		}
		n, _ := res.RowsAffected()
		result.RowsAffected += n
		result.Statements++
	}
	result.Duration = time.Since(start)
	return result, nil
}

// SplitStatements splits SQL text on trailing semicolons, dropping blank
// lines and "--" comment lines.
func SplitStatements(content string) []string {
	var statements []string
	var current strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}

		current.WriteString(line)
		current.WriteString(" ")

		if strings.HasSuffix(line, ";") {
			statements = append(statements, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}
	return statements
}

func seedOrder(name string) int {
	matches := seedOrderPattern.FindStringSubmatch(name)
	if len(matches) > 1 {
		if n, err := strconv.Atoi(matches[1]); err == nil {
			return n
		}
	}
	return 999
}
