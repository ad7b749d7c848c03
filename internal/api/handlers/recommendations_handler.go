// Package handlers implements the HTTP handlers of the recommender API.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/formbricks/recommender/internal/api/response"
	"github.com/formbricks/recommender/internal/api/validation"
	"github.com/formbricks/recommender/internal/models"
	"github.com/formbricks/recommender/internal/recerrors"
)

// RecommendationService defines the recommendation operations used by the handler.
type RecommendationService interface {
	RecommendForProduct(ctx context.Context, productID int64, k int) ([]models.Recommendation, error)
	RecommendForUser(ctx context.Context, userID int64, k int) (*models.UserRecommendations, error)
}

// ProfileExplainer reports how a user's profile was derived.
type ProfileExplainer interface {
	ExplainProfile(ctx context.Context, userID int64) (*models.ProfileExplanation, error)
}

// RecommendationsHandler handles the /v1/recommend endpoints.
type RecommendationsHandler struct {
	service  RecommendationService
	profiles ProfileExplainer
	timeout  time.Duration
}

// NewRecommendationsHandler creates the handler. timeout bounds each request's calls to the
// embedding provider, vector index and relational store; zero disables it.
func NewRecommendationsHandler(
	service RecommendationService, profiles ProfileExplainer, timeout time.Duration,
) *RecommendationsHandler {
	return &RecommendationsHandler{service: service, profiles: profiles, timeout: timeout}
}

func (h *RecommendationsHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(r.Context())
	}

	return context.WithTimeout(r.Context(), h.timeout)
}

// parseRequest reads the path id and ?limit. It writes the 400 itself and returns ok=false on bad input.
func parseRequest(w http.ResponseWriter, r *http.Request) (id int64, limit int, ok bool) {
	id, err := validation.ParsePathID(r, "id")
	if err != nil {
		validation.RespondValidationError(w, err)

		return 0, 0, false
	}

	limit, err = validation.ParseLimit(r)
	if err != nil {
		validation.RespondValidationError(w, err)

		return 0, 0, false
	}

	return id, limit, true
}

// ProductRecommendations handles GET /v1/recommend/product/{id}.
func (h *RecommendationsHandler) ProductRecommendations(w http.ResponseWriter, r *http.Request) {
	productID, limit, ok := parseRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	recs, err := h.service.RecommendForProduct(ctx, productID, limit)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, recerrors.ErrUpstreamUnavailable) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusServiceUnavailable
		}

		slog.ErrorContext(ctx, "product recommendations failed", "product_id", productID, "error", err)
		response.RespondJSON(w, status, models.ProductRecommendations{
			ProductID:       productID,
			Recommendations: []models.Recommendation{},
			Error:           err.Error(),
		})

		return
	}

	response.RespondJSON(w, http.StatusOK, models.ProductRecommendations{
		ProductID:       productID,
		Recommendations: recs,
	})
}

// UserRecommendations handles GET /v1/recommend/user/{id}.
func (h *RecommendationsHandler) UserRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, limit, ok := parseRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	out, err := h.service.RecommendForUser(ctx, userID, limit)
	if err != nil {
		slog.ErrorContext(ctx, "user recommendations failed", "user_id", userID, "error", err)
		response.RespondJSON(w, http.StatusInternalServerError, models.UserRecommendations{
			UserID:          userID,
			Source:          models.SourceUserProfile,
			Recommendations: []models.Recommendation{},
			Error:           err.Error(),
		})

		return
	}

	response.RespondJSON(w, http.StatusOK, out)
}

// UserProfile handles GET /v1/recommend/user/{id}/profile.
func (h *RecommendationsHandler) UserProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := validation.ParsePathID(r, "id")
	if err != nil {
		validation.RespondValidationError(w, err)

		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	exp, err := h.profiles.ExplainProfile(ctx, userID)
	if err != nil {
		slog.ErrorContext(ctx, "explain profile failed", "user_id", userID, "error", err)

		if errors.Is(err, recerrors.ErrUpstreamUnavailable) {
			response.RespondServiceUnavailable(w, err.Error())

			return
		}

		response.RespondInternalServerError(w, "Failed to explain profile")

		return
	}

	response.RespondJSON(w, http.StatusOK, exp)
}
