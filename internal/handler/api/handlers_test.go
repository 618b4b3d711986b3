package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CreditLens/internal/domain/models"
	"CreditLens/internal/middleware"
	"CreditLens/internal/repository"
	"CreditLens/internal/services/explain"
	"CreditLens/internal/services/features"
	"CreditLens/internal/services/normalize"
	"CreditLens/internal/services/scoring"
	"CreditLens/internal/services/snapshot"
	"CreditLens/internal/services/training"
	"CreditLens/internal/usecase"
	"CreditLens/pkg/logger"
)

const day = 24 * time.Hour

type nopMetrics struct{}

func (nopMetrics) RecordScore(string, float64)   {}
func (nopMetrics) RecordError(string)            {}
func (nopMetrics) RecordLatency(string, float64) {}
func (nopMetrics) RecordIngested(string)         {}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, b models.ScoreBundle) error { return nil }
func (nopPublisher) Close() error                                            { return nil }

type nopDocs struct{}

func (nopDocs) PutHeadline(ctx context.Context, issuerID, headline string, observedAt time.Time) error {
	return nil
}

type env struct {
	e        *echo.Echo
	registry *scoring.Registry
}

func newEnv(t *testing.T) *env {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)

	obs := repository.NewMemoryObservationStore()
	snaps := repository.NewMemorySnapshotStore()
	scores := repository.NewMemoryScoreStore()
	registry := scoring.NewRegistry()

	schema := []features.Spec{
		{Name: "price_last", Source: models.SourceMarket, Metric: "price", Window: 7 * day, Agg: features.AggLast, CarryForward: true, Label: "latest share price"},
		{Name: "sentiment_30d", Source: models.SourceNewsSentiment, Metric: "headline_sentiment", Window: 30 * day, Agg: features.AggMean, Label: "recent news sentiment"},
	}
	builder := snapshot.NewBuilder(schema, obs, snaps, 0.5)

	ingest := usecase.NewIngestUseCase(normalize.New(0), obs, nopDocs{}, nopMetrics{}, log)
	pipe := middleware.NewIngestPipeline(ingest, nopMetrics{}, middleware.WithMaxRPS(0))
	pipeline := usecase.NewScorePipeline(builder, scoring.NewLogisticScorer(),
		explain.NewGenerator(features.Labels(schema), 5), registry,
		scores, nopPublisher{}, nopMetrics{}, log)
	classes := usecase.NewClassScoreUseCase(pipeline, registry, map[string][]string{"us_tech": {"AAPL"}})
	coordinator := training.NewCoordinator(registry, features.Names(schema), training.DefaultCoordinatorConfig(), log)

	e := echo.New()
	NewObservationsEchoHandler(log, pipe).RegisterRoutes(e)
	NewScoresEchoHandler(log, pipeline, classes).RegisterRoutes(e)
	NewModelsEchoHandler(log, coordinator, nil).RegisterRoutes(e)

	return &env{e: e, registry: registry}
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func trainingBody(n int) string {
	var b strings.Builder
	b.WriteString(`{"rows":[`)
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		x0 := float64(i%21) - 9.5
		distress := "false"
		if x0 < 0 {
			distress = "true"
		}
		b.WriteString(`{"features":[` + strconv.FormatFloat(x0, 'f', 1, 64) + `,` +
			strconv.Itoa(i%5) + `],"distress":` + distress + `}`)
	}
	b.WriteString("]}")
	return b.String()
}

func TestObservationsIngestEndpoint(t *testing.T) {
	env := newEnv(t)
	now := time.Now().Add(-time.Hour).Unix()

	body := `{"observations":[
		{"issuer_id":"AAPL","source":"market","metric":"price","value":150,"observed_at":` + strconv.FormatInt(now, 10) + `},
		{"issuer_id":"AAPL","source":"bad","metric":"price","value":1,"observed_at":` + strconv.FormatInt(now, 10) + `}
	]}`
	rec := do(t, env.e, http.MethodPost, "/api/observations", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data models.IngestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Data.Accepted)
	require.Len(t, resp.Data.Rejected, 1)
	assert.Equal(t, 1, resp.Data.Rejected[0].Index)
}

func TestObservationsIngestRejectsEmptyBatch(t *testing.T) {
	env := newEnv(t)
	rec := do(t, env.e, http.MethodPost, "/api/observations", `{"observations":[]}`)
	var resp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestModelLifecycleEndpoints(t *testing.T) {
	env := newEnv(t)

	rec := do(t, env.e, http.MethodPost, "/api/models/submit", trainingBody(105))
	require.Equal(t, http.StatusOK, rec.Code)
	var created struct {
		Data models.ModelVersion `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := strconv.FormatUint(created.Data.ID, 10)
	assert.Equal(t, models.StatusCandidate, created.Data.Status)

	rec = do(t, env.e, http.MethodPost, "/api/models/"+id+"/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var validated struct {
		Data struct {
			Validated bool `json:"validated"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &validated))
	assert.True(t, validated.Data.Validated)

	rec = do(t, env.e, http.MethodPost, "/api/models/"+id+"/promote", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, env.e, http.MethodGet, "/api/models/active", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var active struct {
		Data models.ActiveModelMetrics `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &active))
	assert.Equal(t, created.Data.ID, active.Data.ModelVersion)
}

func TestActiveModelBeforePromotion(t *testing.T) {
	env := newEnv(t)
	rec := do(t, env.e, http.MethodGet, "/api/models/active", "")
	var resp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusServiceUnavailable, resp.Status)
}

func TestComputeAndLatestScoreEndpoints(t *testing.T) {
	env := newEnv(t)
	now := time.Now()

	// Seed a model and observations through the public surface.
	rec := do(t, env.e, http.MethodPost, "/api/models/submit", trainingBody(105))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, env.e, http.MethodPost, "/api/models/1/validate", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, env.e, http.MethodPost, "/api/models/1/promote", "")
	require.Equal(t, http.StatusOK, rec.Code)

	obsBody := `{"observations":[
		{"issuer_id":"AAPL","source":"market","metric":"price","value":-3,"observed_at":` + strconv.FormatInt(now.Add(-time.Hour).Unix(), 10) + `},
		{"issuer_id":"AAPL","source":"news_sentiment","metric":"headline_sentiment","value":2,"observed_at":` + strconv.FormatInt(now.Add(-time.Hour).Unix(), 10) + `}
	]}`
	rec = do(t, env.e, http.MethodPost, "/api/observations", obsBody)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, env.e, http.MethodPost, "/api/scores", `{"issuer_id":"AAPL"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var computed struct {
		Data models.ScoreBundle `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &computed))
	assert.Equal(t, "AAPL", computed.Data.IssuerID)
	assert.NotEmpty(t, computed.Data.KeyFactors)

	rec = do(t, env.e, http.MethodGet, "/api/scores/latest?issuer=AAPL", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var latest struct {
		Data models.ScoreBundle `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &latest))
	assert.Equal(t, computed.Data.Score, latest.Data.Score)
}

func TestLatestScoreNotFound(t *testing.T) {
	env := newEnv(t)
	rec := do(t, env.e, http.MethodGet, "/api/scores/latest?issuer=NOPE", "")
	var resp struct {
		Status int `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Status)
}
