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
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestQueryLogHook(t *testing.T) {
	var buf bytes.Buffer
	hook := NewQueryLogHook(&buf, "")

	hook.AfterQuery(context.Background(), &bun.QueryEvent{
		Query:     "SELECT * FROM widgets",
		StartTime: time.Now(),
	})
	assert.Contains(t, buf.String(), "[BUN]")
	assert.Contains(t, buf.String(), "SELECT * FROM widgets")

	buf.Reset()
	hook.AfterQuery(context.Background(), &bun.QueryEvent{
		Query:     "INSERT INTO widgets DEFAULT VALUES",
		StartTime: time.Now(),
		Err:       errors.New("boom"),
	})
	assert.Contains(t, buf.String(), "boom")
}

func TestQueryLogHookEnvAndSilence(t *testing.T) {
	var buf bytes.Buffer
	hook := NewQueryLogHook(&buf, "CRUDKIT_TEST_QUERY_LOG")
	event := &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()}

	t.Setenv("CRUDKIT_TEST_QUERY_LOG", "0")
	hook.AfterQuery(context.Background(), event)
	assert.Empty(t, buf.String())

	// "1" only reports failed statements
	t.Setenv("CRUDKIT_TEST_QUERY_LOG", "1")
	hook.AfterQuery(context.Background(), event)
	assert.Empty(t, buf.String())

	t.Setenv("CRUDKIT_TEST_QUERY_LOG", "2")
	EnableBunSqlSilent(true)
	hook.AfterQuery(context.Background(), event)
	EnableBunSqlSilent(false)
	assert.Empty(t, buf.String())

	hook.AfterQuery(context.Background(), event)
	assert.Contains(t, buf.String(), "SELECT 1")
}

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) SetLevel(LogLevel)                  {}
func (l *recordingLogger) Debug(string, ...interface{})       {}
func (l *recordingLogger) Info(string, ...interface{})        {}
func (l *recordingLogger) Error(string, ...interface{})       {}
func (l *recordingLogger) Warn(msg string, _ ...interface{}) { l.warnings = append(l.warnings, msg) }

func TestSlowQueryHook(t *testing.T) {
	logger := &recordingLogger{}
	hook := NewSlowQueryHook(10*time.Millisecond, logger)

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	assert.Empty(t, logger.warnings)

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now().Add(-time.Second)})
	assert.Equal(t, []string{"Database slow query detected"}, logger.warnings)
}

func TestMetricsHook(t *testing.T) {
	reg := prometheus.NewRegistry()
	hook, err := NewMetricsHook(reg)
	require.NoError(t, err)

	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	hook.AfterQuery(context.Background(), &bun.QueryEvent{Query: "UPDATE widgets SET name = 'x'", StartTime: time.Now(), Err: errors.New("boom")})

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "crudkit_db_query_duration_seconds", families[0].GetName())

	labels := map[string]uint64{}
	for _, m := range families[0].GetMetric() {
		key := ""
		for _, lp := range m.GetLabel() {
			key += lp.GetName() + "=" + lp.GetValue() + ";"
		}
		labels[key] = m.GetHistogram().GetSampleCount()
	}
	assert.Equal(t, map[string]uint64{
		"op=select;status=ok;":    1,
		"op=update;status=error;": 1,
	}, labels)

	again, err := NewMetricsHook(reg)
	require.NoError(t, err)
	assert.Same(t, hook.duration, again.duration)
}
