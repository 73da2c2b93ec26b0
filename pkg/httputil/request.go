package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/verdict/pkg/apperrors"
)

const (
	// DefaultPageSize is used when a list request carries no limit
	DefaultPageSize = 50
	// MaxPageSize caps the limit query parameter
	MaxPageSize = 500
)

// ParseJSON decodes JSON from the request body into the destination.
// An empty body decodes to the zero value.
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.ValidationWrap(apperrors.NonFieldErrors, "invalid JSON body", err)
	}
	return nil
}

// ParsePathInt64 extracts and parses an int64 path parameter. A malformed id addresses
// nothing, so it is reported as not found.
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	str := mux.Vars(r)[key]
	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil || val <= 0 {
		return 0, apperrors.NotFound(fmt.Errorf("invalid %s %q", key, str))
	}
	return val, nil
}

// PathString extracts a string path parameter
func PathString(r *http.Request, key string) string {
	return mux.Vars(r)[key]
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, apperrors.Validation(key, "a valid integer is required")
	}
	return val, nil
}

// ParseQueryString extracts a string query parameter
func ParseQueryString(r *http.Request, key string, defaultVal string) string {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// Page is a limit/offset window over a collection
type Page struct {
	Limit  int
	Offset int
}

// ParsePage reads limit and offset query parameters
func ParsePage(r *http.Request) (Page, error) {
	limit, err := ParseQueryInt(r, "limit", DefaultPageSize)
	if err != nil {
		return Page{}, err
	}
	offset, err := ParseQueryInt(r, "offset", 0)
	if err != nil {
		return Page{}, err
	}
	if limit <= 0 {
		return Page{}, apperrors.Validation("limit", "ensure this value is greater than 0")
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		return Page{}, apperrors.Validation("offset", "ensure this value is greater than or equal to 0")
	}
	return Page{Limit: limit, Offset: offset}, nil
}
