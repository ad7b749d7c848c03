package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formbricks/recommender/internal/api/handlers"
	"github.com/formbricks/recommender/internal/config"
	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/service"
)

type stubRecommender struct{}

func (stubRecommender) RecommendForProduct(_ context.Context, _ int64, _ int) ([]models.Recommendation, error) {
	return []models.Recommendation{{ID: 2, Score: 0.9}}, nil
}

func (stubRecommender) RecommendForUser(_ context.Context, userID int64, _ int) (*models.UserRecommendations, error) {
	return &models.UserRecommendations{
		UserID: userID, Source: models.SourceUserProfile, Recommendations: []models.Recommendation{},
	}, nil
}

func (stubRecommender) ExplainProfile(_ context.Context, userID int64) (*models.ProfileExplanation, error) {
	return &models.ProfileExplanation{UserID: userID}, nil
}

type stubRebuilder struct{}

func (stubRebuilder) RebuildIndex(context.Context) (*service.SyncResult, error) {
	return &service.SyncResult{Indexed: 3}, nil
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

func newTestHandler(metrics http.Handler) http.Handler {
	rec := stubRecommender{}
	server := newHTTPServer(
		&config.Config{Port: "0"},
		handlers.NewHealthHandler(stubPinger{}),
		handlers.NewRecommendationsHandler(rec, rec, 0),
		handlers.NewSyncHandler(stubRebuilder{}, nil),
		metrics, nil, nil, nil,
	)

	return server.Handler
}

func TestHTTPServer_Routes(t *testing.T) {
	handler := newTestHandler(nil)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/v1/recommend/product/5", http.StatusOK},
		{http.MethodGet, "/v1/recommend/user/7", http.StatusOK},
		{http.MethodGet, "/v1/recommend/user/7/profile", http.StatusOK},
		{http.MethodPost, "/v1/sync", http.StatusOK},
		{http.MethodGet, "/v1/recommend/product/abc", http.StatusBadRequest},
		{http.MethodPost, "/v1/recommend/product/5", http.StatusMethodNotAllowed},
		{http.MethodGet, "/v1/sync", http.StatusMethodNotAllowed},
		{http.MethodPost, "/v1/sync?async=true", http.StatusBadRequest},
		{http.MethodGet, "/metrics", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestHTTPServer_ProductBody(t *testing.T) {
	w := httptest.NewRecorder()
	newTestHandler(nil).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/recommend/product/5?limit=3", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		ProductID       int64 `json:"product_id"`
		Recommendations []struct {
			ID int64 `json:"id"`
		} `json:"recommendations"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(5), body.ProductID)
	require.Len(t, body.Recommendations, 1)
	assert.Equal(t, int64(2), body.Recommendations[0].ID)
}

func TestHTTPServer_MetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})

	w := httptest.NewRecorder()
	newTestHandler(metrics).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())
}

func TestHTTPServer_PropagatesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")

	w := httptest.NewRecorder()
	newTestHandler(nil).ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}
