package router

import (
	"calcReco/internal/rest"

	"github.com/labstack/echo/v4"
)

func SetRecommendationRoutes(api *echo.Group, handler *rest.RecommendationHandler, auth echo.MiddlewareFunc) {
	reco := api.Group("/recommendations", auth)
	reco.GET("", handler.List)
	reco.GET("/confidence", handler.Confidence)
	reco.GET("/:type", handler.ByType)
}

func SetRecommendationAdminRoutes(api *echo.Group, handler *rest.RecommendationAdminHandler, auth echo.MiddlewareFunc, adminOnly echo.MiddlewareFunc) {
	admin := api.Group("/admin/recommendations", auth, adminOnly)
	admin.GET("/cache", handler.CacheStats)
	admin.DELETE("/cache", handler.ClearCache)
}
