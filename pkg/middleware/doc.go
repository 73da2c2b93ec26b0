// Package middleware provides HTTP middleware for authentication and rate limiting.
//
// # Authentication
//
// AuthMiddleware reads an optional "Authorization: Bearer <token>" header, verifies the
// token and loads the current actor. Requests without a header continue anonymously;
// a malformed or expired token is rejected with 401.
//
//	authMW := middleware.NewAuthMiddleware(tokenIssuer, userStore)
//	router.Use(authMW.Handler)
//	actor := middleware.ActorFromRequest(r) // nil when anonymous
//
// # Rate Limiting
//
// The signup and token endpoints are throttled per client address with a fixed window.
// RateLimiter keeps windows in a bounded LRU in process memory; DistributedRateLimiter
// keeps them in Redis so every instance shares one budget. Limiter errors fail open.
//
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "verdict:ratelimit")
//	authRoutes.Use(middleware.NewRateLimitMiddleware(limiter, logger).Handler)
package middleware
