// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Response Helpers
//
//	httputil.WriteSuccess(w, user)
//	httputil.WriteCreated(w, review)
//	httputil.WriteList(w, count, titles)   // {"count": n, "results": [...]}
//	httputil.WriteAppError(w, r, err)      // maps apperrors kinds to status codes
//
// Validation errors render as {"<field>": ["message"]}, everything else as {"error": "..."}.
//
// # Request Parsing
//
//	id, err := httputil.ParsePathInt64(r, "title_id")
//	page, err := httputil.ParsePage(r)
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//	)(router)
package httputil
