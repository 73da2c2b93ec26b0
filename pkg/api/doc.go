// Package api exposes verdict over HTTP.
//
// Every route lives under /api/v1 and is served by gorilla/mux. Requests pass request
// id, access log and metrics middleware, then bearer authentication, which leaves
// the request anonymous when no Authorization header is sent. The /auth routes are
// additionally rate limited.
//
// Handlers only decode input and encode output. Permission checks, path resolution
// and validation happen in the services, and their errors are rendered by
// httputil.WriteAppError:
//
//	400 {"field": ["message"]}   validation
//	401 {"error": "..."}         anonymous actor denied
//	403 {"error": "..."}         authenticated actor denied
//	404 {"error": "..."}         missing or mis-nested resource
package api
