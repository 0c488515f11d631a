package rest

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"calcReco/domain"
	"calcReco/pkg/metrics"

	"github.com/AMFarhan21/fres"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type (
	RecommendationHandler struct {
		validate *validator.Validate
		service  RecommendationService
	}

	RecommendationService interface {
		GenerateRecommendations(ctx context.Context, req domain.RecommendationRequest) ([]domain.Recommendation, error)
		GetRecommendationsByType(ctx context.Context, t domain.RecommendationType, req domain.RecommendationRequest) ([]domain.Recommendation, error)
		ExplainConfidence(sampleSize, successRate, recency, consistency, relevance float64) domain.ConfidenceBreakdown
	}

	RecommendationQuery struct {
		CalculatorType string   `query:"calculator_type" validate:"omitempty,max=64"`
		Types          []string `query:"type" validate:"dive,oneof=parameter-value parameter-combination material-selection workflow preset"`
		MinConfidence  string   `query:"min_confidence" validate:"omitempty,numeric"`
	}

	ConfidenceQuery struct {
		SampleSize  float64 `query:"sample_size"`
		SuccessRate float64 `query:"success_rate"`
		Recency     float64 `query:"recency"`
		Consistency float64 `query:"consistency"`
		Relevance   float64 `query:"relevance"`
	}
)

func NewRecommendationHandler(svc RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{
		validate: validator.New(),
		service:  svc,
	}
}

// GET /api/v1/recommendations?calculator_type=beam&type=workflow&type=preset&min_confidence=0.5
func (h *RecommendationHandler) List(c echo.Context) error {
	start := time.Now()

	req, err := h.bindRequest(c)
	if err != nil {
		observe("list", start, http.StatusBadRequest)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	recs, err := h.service.GenerateRecommendations(c.Request().Context(), req)
	if err != nil {
		observe("list", start, http.StatusInternalServerError)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	observe("list", start, http.StatusOK)
	return c.JSON(http.StatusOK, fres.Response.StatusOK(recs))
}

// GET /api/v1/recommendations/:type
func (h *RecommendationHandler) ByType(c echo.Context) error {
	start := time.Now()

	t, err := domain.ParseRecommendationType(c.Param("type"))
	if err != nil {
		observe("by_type", start, http.StatusBadRequest)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	req, err := h.bindRequest(c)
	if err != nil {
		observe("by_type", start, http.StatusBadRequest)
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	recs, err := h.service.GetRecommendationsByType(c.Request().Context(), t, req)
	if err != nil {
		observe("by_type", start, http.StatusInternalServerError)
		return c.JSON(http.StatusInternalServerError, ResponseError{Message: err.Error()})
	}

	observe("by_type", start, http.StatusOK)
	return c.JSON(http.StatusOK, fres.Response.StatusOK(recs))
}

// GET /api/v1/recommendations/confidence?sample_size=4&success_rate=0.75
func (h *RecommendationHandler) Confidence(c echo.Context) error {
	var q ConfidenceQuery
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, ResponseError{Message: err.Error()})
	}

	b := h.service.ExplainConfidence(q.SampleSize, q.SuccessRate, q.Recency, q.Consistency, q.Relevance)
	return c.JSON(http.StatusOK, fres.Response.StatusOK(b))
}

var errInvalidMinConfidence = errors.New("min_confidence must be between 0 and 1")

func (h *RecommendationHandler) bindRequest(c echo.Context) (domain.RecommendationRequest, error) {
	var q RecommendationQuery
	if err := c.Bind(&q); err != nil {
		return domain.RecommendationRequest{}, err
	}
	q.Types = splitTypes(q.Types)
	if err := h.validate.Struct(&q); err != nil {
		return domain.RecommendationRequest{}, err
	}

	req := domain.RecommendationRequest{
		UserID:         userIDFrom(c),
		CalculatorType: q.CalculatorType,
	}
	for _, s := range q.Types {
		t, err := domain.ParseRecommendationType(s)
		if err != nil {
			return domain.RecommendationRequest{}, err
		}
		req.Types = append(req.Types, t)
	}
	if q.MinConfidence != "" {
		v, err := strconv.ParseFloat(q.MinConfidence, 64)
		if err != nil || v < 0 || v > 1 {
			return domain.RecommendationRequest{}, errInvalidMinConfidence
		}
		req.MinConfidence = &v
	}

	return req, nil
}

// splitTypes accepts both ?type=a&type=b and ?type=a,b.
func splitTypes(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func userIDFrom(c echo.Context) string {
	if uid, ok := c.Get("user_id").(string); ok {
		return uid
	}
	return ""
}

func observe(route string, start time.Time, status int) {
	metrics.RecommendLatency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	metrics.RecommendRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}
