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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tomoncle/crudkit/config"
	"github.com/tomoncle/crudkit/database"
	"github.com/tomoncle/crudkit/server"
	"github.com/tomoncle/crudkit/utils"
)

var logger = utils.NewLogger("MAIN")

func main() {
	if err := run(); err != nil {
		logger.WithError(err).Error("exit")
		os.Exit(1)
	}
}

func run() error {
	settings, err := config.Load()
	if err != nil {
		return err
	}
	utils.ConfigureConsoleLogFormat(settings.LogFormat)
	utils.ConfigureLogLevel(settings.LogLevel)
	if settings.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Info(settings.Description())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.InitDB(ctx, settings.DatabaseConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := database.CloseDB(); err != nil {
			logger.WithError(err).Warn("close database")
		}
	}()

	reg := prometheus.NewRegistry()
	hook, err := database.NewMetricsHook(reg)
	if err != nil {
		return err
	}
	database.GetDatabaseManager().AddQueryHook(hook)

	router, err := server.NewRouter(server.Options{
		Settings: settings,
		SQLDB:    db.DB,
		Registry: reg,
	})
	if err != nil {
		return err
	}
	return server.Run(ctx, server.NewHTTPServer(settings.HTTPAddr, router))
}
