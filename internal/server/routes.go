package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = NotFoundJSON()

	e.Use(SetJSONContentType)
	e.Use(SetNoCacheHeaders)

	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)
	v1.GET("/tokens", h.Tokens)

	v1.POST("/sessions", h.SessionCreate)

	sess := v1.Group("/sessions/:id")
	sess.GET("", h.SessionGet)
	sess.DELETE("", h.SessionDelete)
	sess.PUT("/sell", h.SetSell)
	sess.PUT("/mode", h.SetMode)
	sess.POST("/slots", h.AddSlot)
	sess.PUT("/slots/:index", h.SetSlot)
	sess.DELETE("/slots/:index", h.RemoveSlot)
	sess.GET("/simulate", h.Simulate)
	sess.GET("/params", h.BuildParams)
	sess.GET("/link", h.DeepLinkGet)
	sess.PUT("/link", h.DeepLinkApply)
	sess.POST("/connect", h.Connect)
	sess.POST("/disconnect", h.Disconnect)
	sess.GET("/prices/:feedId", h.Price)

	// Submission touches the chain; keep it paced.
	txgroup := sess.Group("")
	txgroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.5), // 1 request every 2 seconds
		Burst:     2,
		ExpiresIn: 2 * time.Minute,
	})))
	txgroup.POST("/submit", h.Submit)
	txgroup.POST("/approve", h.Approve)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
