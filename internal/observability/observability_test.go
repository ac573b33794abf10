// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/research-digest/pkg/types"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewLoggerJSONWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, types.LoggingConfig{Level: "debug", Format: "json"})
	logger = WithSource(WithTask(logger, "daily"), "arxiv-ro", "arxiv")

	logger.Debug().Int("records", 3).Msg("fetched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "daily", entry["task"])
	assert.Equal(t, "arxiv-ro", entry["source"])
	assert.Equal(t, "arxiv", entry["kind"])
	assert.Equal(t, float64(3), entry["records"])
}

func TestNewLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, types.LoggingConfig{Level: "warn"})
	logger.Info().Msg("hidden")
	assert.Empty(t, buf.String())
	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestMetricsObserve(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveFetch("arxiv", "ok", 4, time.Second)
	m.ObserveFetch("arxiv", "error", 0, time.Second)
	m.ObserveStage("keyword", 10, 3)
	m.ObserveRun("daily", 3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceFetches.WithLabelValues("arxiv", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SourceFetches.WithLabelValues("arxiv", "error")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.SourceRecords.WithLabelValues("arxiv")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.FilterRecords.WithLabelValues("keyword", "in")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FilterRecords.WithLabelValues("keyword", "out")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TaskRecordsKept.WithLabelValues("daily")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("example.org", "200", time.Millisecond)
		m.ObserveFetch("web", "ok", 1, time.Millisecond)
		m.ObserveStage("regex", 1, 1)
		m.ObserveRun("t", 1)
	})
}

func TestMetricsServerExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.ObserveRun("daily", 2)

	srv := NewMetricsServer(":0", reg)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, MetricsPath, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `research_digest_task_records_kept{task="daily"} 2`)
}
