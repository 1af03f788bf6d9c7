// Package httpkit holds the small request-decoding and query-parameter
// helpers every internal/routes/* package shares, grounded on the
// teacher's internal/iam/interfaces/http/common/request.go RequestDecoder
// and QueryParams types.
package httpkit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/inspectra/platform-core/pkg/errors"
	"github.com/inspectra/platform-core/pkg/validator"
)

// maxBodyBytes bounds a decoded request body, mirroring the teacher's
// RequestDecoder.maxSize.
const maxBodyBytes = 1 << 20

// DecodeJSON decodes r's body into dest and validates it against dest's
// `validate` struct tags, rejecting unknown fields the same way the
// teacher's decodeJSON/RequestDecoder.Decode do. Validation runs through
// pkg/validator so every route gets the platform's custom tags (slug,
// strongpassword, money, percentage, ...) for free.
func DecodeJSON(r *http.Request, dest interface{}) error {
	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return errors.ErrBadRequest("invalid request body: " + err.Error())
	}

	if err := validator.Validate(dest); err != nil {
		return err
	}
	return nil
}

// QueryString returns the named query parameter, or def if absent.
func QueryString(r *http.Request, key, def string) string {
	if v := r.URL.Query().Get(key); v != "" {
		return v
	}
	return def
}

// QueryInt returns the named query parameter parsed as int, or def if
// absent or unparseable.
func QueryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// QueryInt64 returns the named query parameter parsed as int64, or def if
// absent or unparseable.
func QueryInt64(r *http.Request, key string, def int64) int64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// QueryBool returns the named query parameter parsed as bool, or def if
// absent or unparseable.
func QueryBool(r *http.Request, key string, def bool) bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// QueryStringSlice splits a comma-separated query parameter, returning
// nil if absent.
func QueryStringSlice(r *http.Request, key string) []string {
	v := r.URL.Query().Get(key)
	if v == "" {
		return nil
	}
	return strings.Split(v, ",")
}
