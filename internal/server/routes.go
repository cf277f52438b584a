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
	// Set custom error handler for consistent JSON responses
	e.HTTPErrorHandler = NotFoundJSON()

	// Apply global middleware
	e.Use(SetJSONContentType) // Ensure all responses are JSON
	e.Use(SetNoCacheHeaders)  // Prevent caching of API responses

	// Optional API key authentication
	if cfg.APIKey != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key", // Look for API key in X-API-Key header
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil // Simple string comparison
			},
		}))
	}

	// API v1 routes
	v1 := e.Group("/v1")
	v1.GET("/health", h.Health)                            // Health + endpoint registry
	v1.GET("/quote", h.Quote)                              // Single-leg Jupiter quote
	v1.GET("/executions/recent", h.RecentExecutions)       // Recent execution records
	v1.GET("/opportunities/recent", h.RecentOpportunities) // Latest cached scan results

	// Pipeline controls, rate limited so a retry storm cannot queue up
	// overlapping executions behind the in-flight guard.
	pipeline := v1.Group("")
	pipeline.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(1), // 1 request per second
		Burst:     3,
		ExpiresIn: 2 * time.Minute,
	})))
	pipeline.POST("/scan", h.Scan)       // One scan pass
	pipeline.POST("/execute", h.Execute) // Scan and execute the best opportunity

	// Analyst endpoints with stricter rate limiting
	aigroup := v1.Group("/ai")
	aigroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(0.2), // 1 request every 5 seconds
		Burst:     2,               // Allow burst of 2 requests
		ExpiresIn: 2 * time.Minute, // Rate limit window
	})))
	aigroup.POST("/ask", h.Ask) // Natural language to SQL endpoint

	// Runtime toggle CRUD endpoints
	flagGroup := v1.Group("/flags")
	flagGroup.GET("", h.FlagsList)           // List all toggles
	flagGroup.POST("", h.FlagsUpsert)        // Create new toggle
	flagGroup.GET("/:key", h.FlagsGet)       // Get specific toggle
	flagGroup.PUT("/:key", h.FlagsUpdate)    // Update existing toggle
	flagGroup.DELETE("/:key", h.FlagsDelete) // Delete toggle

	// Catch-all route for 404 responses
	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
