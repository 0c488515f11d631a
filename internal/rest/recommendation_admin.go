package rest

import (
	"context"
	"net/http"

	"calcReco/domain"

	"github.com/AMFarhan21/fres"
	"github.com/labstack/echo/v4"
)

type RecommendationCacheService interface {
	ClearCache(ctx context.Context)
	GetCacheStats(ctx context.Context) domain.CacheStats
}

type RecommendationAdminHandler struct {
	service RecommendationCacheService
}

func NewRecommendationAdminHandler(svc RecommendationCacheService) *RecommendationAdminHandler {
	return &RecommendationAdminHandler{service: svc}
}

// GET /api/v1/admin/recommendations/cache
func (h *RecommendationAdminHandler) CacheStats(c echo.Context) error {
	stats := h.service.GetCacheStats(c.Request().Context())
	return c.JSON(http.StatusOK, fres.Response.StatusOK(stats))
}

// DELETE /api/v1/admin/recommendations/cache
func (h *RecommendationAdminHandler) ClearCache(c echo.Context) error {
	h.service.ClearCache(c.Request().Context())
	return c.JSON(http.StatusOK, fres.Response.StatusOK("cache cleared"))
}
