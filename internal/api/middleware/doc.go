// Package middleware provides the HTTP middleware stack of the service.
//
// Middleware stack includes:
//   - OriginGuard: Rejects browser requests from origins outside the allowlist
//   - CORS: Cross-origin resource sharing with configurable origins
//   - RequireJSON: 415 for request bodies that are not application/json
//   - RateLimit: Per-IP token bucket rate limiting with idle client eviction
//   - GlobalRateLimit: One token bucket shared by every caller
//   - RequestID: X-Request-ID assignment and propagation
//   - AccessLog: One zap log line per request
//
// Example Usage:
//
//	origins := middleware.NewOriginPolicy(cfg.Server.CORSOrigins)
//	router.Use(middleware.RequestID())
//	router.Use(middleware.AccessLog(logger))
//	router.Use(middleware.OriginGuard(origins))
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig().WithOrigins(origins.Origins())))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
//
//	posts := router.Group("", middleware.RequireJSON())
package middleware
