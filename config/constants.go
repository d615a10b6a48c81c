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

import "time"

const (
	// EnvFile is the dotenv file read from the working directory.
	EnvFile = ".env"
	// ConfigFileEnv names the variable holding an optional YAML settings file.
	ConfigFileEnv = "CONFIG_FILE"

	// PoolRecycle is the maximum lifetime of a pooled connection.
	PoolRecycle = 3600 * time.Second
	// CORSMaxAge is how long browsers may cache a preflight response.
	CORSMaxAge = 12 * time.Hour

	DefaultAppName    = "app"
	DefaultAppVersion = "0.1.0"
	DefaultHTTPAddr   = ":8000"
	DefaultDBType     = "postgres"
	DefaultSQLitePath = "app.db"
	DefaultPoolSize   = 5
	DefaultOverflow   = 10
)

// CORSMethods are the methods allowed by the CORS middleware.
var CORSMethods = []string{"DELETE", "GET", "OPTIONS", "PATCH", "POST", "PUT"}

// Setting keys, shared by the YAML file, the .env file and the environment.
const (
	KeyMode             = "MODE"
	KeyAppName          = "APP_NAME"
	KeyAppVersion       = "APP_VERSION"
	KeyCORSOrigins      = "CORS_ORIGINS"
	KeyDBType           = "DB_TYPE"
	KeyPostgresDB       = "POSTGRES_DB"
	KeyPostgresUser     = "POSTGRES_USER"
	KeyPostgresPassword = "POSTGRES_PASSWORD"
	KeyPostgresHost     = "POSTGRES_HOST"
	KeyPostgresPort     = "POSTGRES_PORT"
	KeySQLitePath       = "SQLITE_PATH"
	KeyPoolSize         = "POOL_SIZE"
	KeyMaxOverflow      = "MAX_OVERFLOW"
	KeyHTTPAddr         = "HTTP_ADDR"
	KeyLogLevel         = "LOG_LEVEL"
	KeyLogFormat        = "LOG_FORMAT"
	KeyCreateTables     = "BOOTSTRAP_CREATE_TABLES"
	KeySeedPath         = "BOOTSTRAP_SEED_PATH"
)

var settingKeys = []string{
	KeyMode, KeyAppName, KeyAppVersion, KeyCORSOrigins,
	KeyDBType, KeyPostgresDB, KeyPostgresUser, KeyPostgresPassword, KeyPostgresHost, KeyPostgresPort,
	KeySQLitePath, KeyPoolSize, KeyMaxOverflow,
	KeyHTTPAddr, KeyLogLevel, KeyLogFormat,
	KeyCreateTables, KeySeedPath,
}
