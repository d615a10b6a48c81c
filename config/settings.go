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

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tomoncle/crudkit/database"
	"github.com/tomoncle/crudkit/types"
	"gopkg.in/yaml.v3"
)

// ErrMissingSettings is wrapped by Load when required settings are absent.
var ErrMissingSettings = errors.New("missing required settings")

// Settings is the application configuration.
type Settings struct {
	Mode        types.Mode
	AppName     string
	AppVersion  string
	CORSOrigins []string

	DBType           string
	PostgresDB       string
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	SQLitePath       string
	PoolSize         int
	MaxOverflow      int

	HTTPAddr  string
	LogLevel  string
	LogFormat string

	CreateTablesOnStartup bool
	SeedPath              string
}

// Loader reads settings from an optional YAML file, an optional dotenv file
// and the environment, later sources overriding earlier ones.
type Loader struct {
	ConfigFile string
	EnvFile    string
	LookupEnv  func(key string) (string, bool)
}

// Load reads settings from $CONFIG_FILE, .env and the process environment.
func Load() (*Settings, error) {
	return NewLoader().Load()
}

// NewLoader returns a Loader using $CONFIG_FILE, .env and os.LookupEnv.
func NewLoader() *Loader {
	return &Loader{
		ConfigFile: os.Getenv(ConfigFileEnv),
		EnvFile:    EnvFile,
		LookupEnv:  os.LookupEnv,
	}
}

func (l *Loader) Load() (*Settings, error) {
	raw, err := l.collect()
	if err != nil {
		return nil, err
	}
	return parse(raw)
}

// collect merges the raw values of every source by setting key.
func (l *Loader) collect() (map[string]string, error) {
	raw := make(map[string]string)

	if l.ConfigFile != "" {
		content, err := os.ReadFile(l.ConfigFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.ConfigFile, err)
		}
		var doc map[string]interface{}
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", l.ConfigFile, err)
		}
		for k, v := range doc {
			raw[strings.ToUpper(k)] = yamlString(v)
		}
	}

	if l.EnvFile != "" {
		values, err := godotenv.Read(l.EnvFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read env file %s: %w", l.EnvFile, err)
		}
		for k, v := range values {
			raw[strings.ToUpper(k)] = v
		}
	}

	if l.LookupEnv != nil {
		for _, key := range settingKeys {
			if v, ok := l.LookupEnv(key); ok {
				raw[key] = v
			}
		}
	}
	return raw, nil
}

func yamlString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(val)
	}
}

type parser struct {
	raw     map[string]string
	missing []string
	errs    []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.raw[key]); v != "" {
		return v
	}
	return def
}

func (p *parser) required(key string) string {
	v := p.str(key, "")
	if v == "" {
		p.missing = append(p.missing, key)
	}
	return v
}

func (p *parser) integer(key string, def int, required bool) int {
	v := p.str(key, "")
	if v == "" {
		if required {
			p.missing = append(p.missing, key)
		}
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return def
	}
	return n
}

func (p *parser) boolean(key string) bool {
	v := p.str(key, "")
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
	}
	return b
}

func parse(raw map[string]string) (*Settings, error) {
	p := &parser{raw: raw}
	s := &Settings{
		AppName:    p.str(KeyAppName, DefaultAppName),
		AppVersion: p.str(KeyAppVersion, DefaultAppVersion),
		DBType:     strings.ToLower(p.str(KeyDBType, DefaultDBType)),
		HTTPAddr:   p.str(KeyHTTPAddr, DefaultHTTPAddr),
		LogLevel:   p.str(KeyLogLevel, "info"),
		LogFormat:  p.str(KeyLogFormat, "text"),
		SeedPath:   p.str(KeySeedPath, ""),
	}

	if mode := p.required(KeyMode); mode != "" {
		m, err := types.ParseMode(mode)
		if err != nil {
			p.errs = append(p.errs, fmt.Errorf("%s: %w", KeyMode, err))
		}
		s.Mode = m
	}

	s.CORSOrigins = splitList(p.str(KeyCORSOrigins, "*"))
	s.CreateTablesOnStartup = p.boolean(KeyCreateTables)

	switch s.DBType {
	case "postgres", "postgresql":
		s.PostgresDB = p.required(KeyPostgresDB)
		s.PostgresUser = p.required(KeyPostgresUser)
		s.PostgresPassword = p.required(KeyPostgresPassword)
		s.PostgresHost = p.required(KeyPostgresHost)
		s.PostgresPort = p.integer(KeyPostgresPort, 0, true)
		s.PoolSize = p.integer(KeyPoolSize, 0, true)
		s.MaxOverflow = p.integer(KeyMaxOverflow, 0, true)
	case "sqlite", "sqlite3":
		s.SQLitePath = p.str(KeySQLitePath, DefaultSQLitePath)
		s.PoolSize = p.integer(KeyPoolSize, DefaultPoolSize, false)
		s.MaxOverflow = p.integer(KeyMaxOverflow, DefaultOverflow, false)
	default:
		p.errs = append(p.errs, fmt.Errorf("%s: unsupported database type %q", KeyDBType, s.DBType))
	}

	if len(p.missing) > 0 {
		sort.Strings(p.missing)
		p.errs = append([]error{fmt.Errorf("%w: %s", ErrMissingSettings, strings.Join(p.missing, ", "))}, p.errs...)
	}
	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return s, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// IsProduction reports whether the service runs in PROD mode.
func (s *Settings) IsProduction() bool { return s.Mode == types.ModeProd }

// Description is the human readable banner, e.g. "app in DEV mode.".
func (s *Settings) Description() string {
	return fmt.Sprintf("%s in %s mode.", s.AppName, s.Mode)
}

// ApplicationName identifies connections of this service on the server.
func (s *Settings) ApplicationName() string {
	return fmt.Sprintf("%s_%s", s.AppName, s.Mode)
}

// DatabaseURL renders the connection URL. Credentials are escaped.
func (s *Settings) DatabaseURL() string {
	if s.DBType == "sqlite" || s.DBType == "sqlite3" {
		return "sqlite://" + s.SQLitePath
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(s.PostgresUser, s.PostgresPassword),
		Host:   net.JoinHostPort(s.PostgresHost, strconv.Itoa(s.PostgresPort)),
		Path:   "/" + s.PostgresDB,
	}
	return u.String()
}

// DatabaseConfig maps the settings onto the database package configuration.
// The pool keeps PoolSize idle connections and opens at most
// PoolSize+MaxOverflow.
func (s *Settings) DatabaseConfig() *database.Config {
	conn := database.DefaultConnectionConfig()
	conn.Type = s.DBType
	conn.ApplicationName = s.ApplicationName()
	conn.MaxIdleConns = s.PoolSize
	conn.MaxOpenConns = s.PoolSize + s.MaxOverflow
	conn.ConnMaxLifetime = PoolRecycle
	conn.EnableQueryLog = s.Mode == types.ModeLocal

	if s.DBType == "sqlite" || s.DBType == "sqlite3" {
		conn.DBName = s.SQLitePath
	} else {
		conn.Host = s.PostgresHost
		conn.Port = s.PostgresPort
		conn.Username = s.PostgresUser
		conn.Password = s.PostgresPassword
		conn.DBName = s.PostgresDB
	}

	return &database.Config{
		ConnectionConfig: *conn,
		BootstrapConfig: database.BootstrapConfig{
			CreateTablesOnStartup: s.CreateTablesOnStartup,
			SeedPath:              s.SeedPath,
			SeedEnvironment:       strings.ToLower(s.Mode.String()),
		},
	}
}
