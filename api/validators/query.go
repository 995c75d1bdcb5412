package validators

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// Query wraps the request's query string. Every failure is a CodeValidation
// error whose details name the offending field.
type Query struct {
	values url.Values
}

func QueryOf(r *http.Request) Query {
	return Query{values: r.URL.Query()}
}

func (q Query) raw(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

// Int is bounded by [lo, hi]. Absent parameters yield def.
func (q Query) Int(key string, def, lo, hi int) (int, error) {
	raw := q.raw(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, invalidQuery(key, "must be numeric")
	case n < lo || n > hi:
		return 0, invalidQuery(key, "out of range").WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return n, nil
}

func (q Query) String(key string, maxLen int) string {
	return SanitizeString(q.values.Get(key), maxLen)
}

// QueryEnum parses key with parse, or returns the zero value when absent.
func QueryEnum[T ~string](q Query, key string, parse func(string) (T, error)) (T, error) {
	raw := q.raw(key)
	if raw == "" {
		var zero T
		return zero, nil
	}
	v, err := parse(raw)
	if err != nil {
		return v, invalidQuery(key, "has an unsupported value")
	}
	return v, nil
}

// ParseQueryInt is QueryOf(r).Int.
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	return QueryOf(r).Int(key, def, lo, hi)
}

func ParseQueryString(r *http.Request, key string, maxLen int) string {
	return QueryOf(r).String(key, maxLen)
}

func invalidQuery(key, reason string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "query parameter "+key+" "+reason).
		WithDetails(map[string]any{"field": key})
}
