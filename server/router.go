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

package server

import (
	"database/sql"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/tomoncle/crudkit/config"
	"github.com/tomoncle/crudkit/types"
	"github.com/tomoncle/crudkit/utils"
)

// HealthCheckResponse is the body of GET /api/v1/healthcheck.
type HealthCheckResponse struct {
	Mode    types.Mode `json:"mode"`
	Version string     `json:"version"`
	Status  string     `json:"status"`
}

// Options wires the router to its dependencies. Only Settings is required.
type Options struct {
	Settings *config.Settings
	// SQLDB feeds the connection pool collector of /metrics when set.
	SQLDB *sql.DB
	// Registry backs /metrics. A fresh registry is created when nil.
	Registry *prometheus.Registry
	Logger   *logrus.Logger
}

// NewRouter builds the HTTP handler of the service.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Settings == nil {
		return nil, fmt.Errorf("server: settings are required")
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewLogger("HTTP")
	}
	reg, err := metricsRegistry(opts)
	if err != nil {
		return nil, err
	}

	corsCfg := corsConfig(opts.Settings)
	if err := corsCfg.Validate(); err != nil {
		return nil, fmt.Errorf("server: cors: %w", err)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), RequestLogger(opts.Logger), cors.New(corsCfg))

	api := router.Group("/api/v1")
	api.GET("/healthcheck", healthCheck(opts.Settings))

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	if !opts.Settings.IsProduction() {
		router.GET("/", home(opts.Settings))
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Detail: "Not found"})
	})
	return router, nil
}

func corsConfig(s *config.Settings) cors.Config {
	origins := s.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     config.CORSMethods,
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", HeaderRequestID},
		ExposeHeaders:    []string{HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           config.CORSMaxAge,
	}
}

func metricsRegistry(opts Options) (*prometheus.Registry, error) {
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	cs := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if opts.SQLDB != nil {
		cs = append(cs, collectors.NewDBStatsCollector(opts.SQLDB, opts.Settings.AppName))
	}
	for _, c := range cs {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, fmt.Errorf("server: register collector: %w", err)
		}
	}
	return reg, nil
}

func healthCheck(s *config.Settings) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthCheckResponse{
			Mode:    s.Mode,
			Version: s.AppVersion,
			Status:  "OK",
		})
	}
}

var homePage = template.Must(template.New("home").Parse(`<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Description}}</h1>
<ul>
<li><a href="/api/v1/healthcheck">Healthcheck</a></li>
<li><a href="/metrics">Metrics</a></li>
</ul>
</body>
</html>
`))

func home(s *config.Settings) gin.HandlerFunc {
	data := struct{ Title, Description string }{s.AppName, s.Description()}
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := homePage.Execute(c.Writer, data); err != nil {
			_ = c.Error(err)
		}
	}
}
