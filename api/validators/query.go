package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
	"github.com/angelmondragon/lootmarket-backend/pkg/pagination"
)

// queryParam returns def when key is absent or blank. Parse failures become
// VALIDATION_ERROR with the field name in details.
func queryParam[T any](r *http.Request, key string, def T, parse func(string) (T, error), invalid string) (T, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, pkgerrors.New(pkgerrors.CodeValidation, invalid).WithDetails(map[string]any{"field": key})
	}
	return v, nil
}

// ParseQueryInt reads an integer in [lo, hi]. An absent parameter yields def
// unchecked.
func ParseQueryInt(r *http.Request, key string, def, lo, hi int) (int, error) {
	if !hasQuery(r, key) {
		return def, nil
	}
	v, err := queryParam(r, key, def, strconv.Atoi, "query parameter must be numeric")
	if err != nil {
		return 0, err
	}
	if v < lo || v > hi {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "query parameter out of range").
			WithDetails(map[string]any{"field": key, "min": lo, "max": hi})
	}
	return v, nil
}

func hasQuery(r *http.Request, key string) bool {
	return strings.TrimSpace(r.URL.Query().Get(key)) != ""
}

// ParseQueryBool reads a strconv-style boolean.
func ParseQueryBool(r *http.Request, key string, def bool) (bool, error) {
	return queryParam(r, key, def, strconv.ParseBool, "query parameter must be a boolean")
}

// ParseQueryUUID returns nil when the query parameter is absent.
func ParseQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	return queryParam(r, key, (*uuid.UUID)(nil), func(raw string) (*uuid.UUID, error) {
		id, err := uuid.Parse(raw)
		return &id, err
	}, "invalid id")
}

// ParsePage reads page (1-based, default 1) and size (default 0, meaning the
// service default). Pages below 1 are clamped to 1; a supplied size outside
// [1, pagination.MaxSize] is rejected.
func ParsePage(r *http.Request) (pagination.Params, error) {
	page, err := queryParam(r, "page", 1, strconv.Atoi, "query parameter must be numeric")
	if err != nil {
		return pagination.Params{}, err
	}
	size, err := ParseQueryInt(r, "size", 0, 1, pagination.MaxSize)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Page: max(page, 1), Size: size}, nil
}
