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
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

var supportedTypes = []string{"postgres", "postgresql", "mysql", "sqlite", "sqlite3"}

// BaseDatabaseFactory creates and manages a configured database manager and
// provides helpers for initialization, health checks, and statistics.
type BaseDatabaseFactory struct {
	manager AbstractDatabaseManager
	logger  Logger
}

// NewDatabaseFactory returns a new database factory using the package logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{logger: GetLogger()}
}

// CreateFromConfig constructs a database manager from cfg after applying
// environment overrides.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}

	f.overrideFromEnv(cfg)

	supported := false
	for _, t := range supportedTypes {
		if strings.EqualFold(cfg.Type, t) {
			supported = true
			break
		}
	}
	if !supported {
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.Type, supportedTypes)
	}

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)

	f.manager = manager
	return manager, nil
}

// EnvOverride maps one DB_* variable onto a ConnectionConfig field.
type EnvOverride struct {
	Key   string
	apply func(cfg *ConnectionConfig, value string) error
}

func stringOverride(key string, field func(*ConnectionConfig) *string) EnvOverride {
	return EnvOverride{Key: key, apply: func(cfg *ConnectionConfig, v string) error {
		*field(cfg) = v
		return nil
	}}
}

func intOverride(key string, field func(*ConnectionConfig) *int) EnvOverride {
	return EnvOverride{Key: key, apply: func(cfg *ConnectionConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}}
}

// durationOverride accepts Go durations ("90s") or a number of seconds.
func durationOverride(key string, field func(*ConnectionConfig) *time.Duration) EnvOverride {
	return EnvOverride{Key: key, apply: func(cfg *ConnectionConfig, v string) error {
		if n, err := strconv.Atoi(v); err == nil {
			*field(cfg) = time.Duration(n) * time.Second
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(cfg) = d
		return nil
	}}
}

func boolOverride(key string, field func(*ConnectionConfig) *bool) EnvOverride {
	return EnvOverride{Key: key, apply: func(cfg *ConnectionConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}}
}

// EnvOverrides lists the variables that take precedence over a
// ConnectionConfig when a manager is created.
var EnvOverrides = []EnvOverride{
	stringOverride("DB_TYPE", func(c *ConnectionConfig) *string { return &c.Type }),
	stringOverride("DB_HOST", func(c *ConnectionConfig) *string { return &c.Host }),
	intOverride("DB_PORT", func(c *ConnectionConfig) *int { return &c.Port }),
	stringOverride("DB_USERNAME", func(c *ConnectionConfig) *string { return &c.Username }),
	stringOverride("DB_PASSWORD", func(c *ConnectionConfig) *string { return &c.Password }),
	stringOverride("DB_NAME", func(c *ConnectionConfig) *string { return &c.DBName }),
	stringOverride("DB_SSLMODE", func(c *ConnectionConfig) *string { return &c.SSLMode }),
	intOverride("DB_MAX_IDLE_CONNS", func(c *ConnectionConfig) *int { return &c.MaxIdleConns }),
	intOverride("DB_MAX_OPEN_CONNS", func(c *ConnectionConfig) *int { return &c.MaxOpenConns }),
	durationOverride("DB_CONN_MAX_LIFETIME", func(c *ConnectionConfig) *time.Duration { return &c.ConnMaxLifetime }),
	durationOverride("DB_SLOW_QUERY_TIME", func(c *ConnectionConfig) *time.Duration { return &c.SlowQueryTime }),
	boolOverride("DB_ENABLE_QUERY_LOG", func(c *ConnectionConfig) *bool { return &c.EnableQueryLog }),
}

// ApplyEnvOverrides sets every field whose variable lookup finds non-empty.
// Malformed values leave the field unchanged and are returned joined.
func ApplyEnvOverrides(cfg *ConnectionConfig, lookup func(key string) (string, bool)) error {
	var errs []error
	for _, o := range EnvOverrides {
		v, ok := lookup(o.Key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := o.apply(cfg, strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", o.Key, v, err))
		}
	}
	return errors.Join(errs...)
}

func (f *BaseDatabaseFactory) overrideFromEnv(cfg *ConnectionConfig) {
	if err := ApplyEnvOverrides(cfg, os.LookupEnv); err != nil {
		f.logger.Warn("Ignoring malformed database environment override", "error", err)
	}
}

// InitializeDatabase connects and optionally creates the registered tables.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context, createTables bool) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}

	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if createTables {
		if err := f.manager.CreateTables(ctx); err != nil {
			return fmt.Errorf("failed to create database tables: %w", err)
		}
	}
	f.logger.Info("Database initialization completed")
	return nil
}

// GetManager returns the underlying database manager.
func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns the Bun database instance, or nil if not initialized.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// SetLogger sets the logger on the factory and the underlying manager.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

// Close closes the database connection managed by the factory.
func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Disconnect()
}

// GetHealthStatus returns the current database health status from the manager.
func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{
			LastError:     "Database manager not initialized",
			LastCheckTime: time.Now(),
		}
	}
	return f.manager.HealthCheck(ctx)
}

// GetStats returns database connection statistics from the manager.
func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
