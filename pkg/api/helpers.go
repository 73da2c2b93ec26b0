package api

import (
	"net/http"

	"github.com/platinummonkey/verdict/pkg/httputil"
)

// pathID parses a numeric path id. Malformed ids become 0, which resolves to nothing,
// so permission checks still run before the 404.
func pathID(r *http.Request, key string) int64 {
	id, err := httputil.ParsePathInt64(r, key)
	if err != nil {
		return 0
	}
	return id
}
