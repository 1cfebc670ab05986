package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
)

type sampleBody struct {
	Name  string `json:"name" validate:"required,max=5"`
	Email string `json:"email" validate:"omitempty,email"`
	Slug  string `json:"slug,omitempty" validate:"omitempty,slug"`
	Count int    `json:"count,omitempty"`
}

func detailsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok, "details %T", typed.Details())
	return details
}

func TestDecodeJSONBody(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"axe"}`))
		var body sampleBody
		require.NoError(t, DecodeJSONBody(req, &body))
		assert.Equal(t, "axe", body.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"axe","extra":1}`))
		var body sampleBody
		err := DecodeJSONBody(req, &body)
		require.Error(t, err)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	})

	t.Run("validation details use json names", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","email":"nope"}`))
		var body sampleBody
		err := DecodeJSONBody(req, &body)
		require.Error(t, err)
		details := detailsOf(t, err)
		assert.Equal(t, "is required", details["name"])
		assert.Equal(t, "must be a valid email", details["email"])
	})

	t.Run("slug", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"axe","slug":"Bad Slug"}`))
		var body sampleBody
		err := DecodeJSONBody(req, &body)
		require.Error(t, err)
		assert.Contains(t, detailsOf(t, err)["slug"], "lowercase")

		ok := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"axe","slug":"path-of-exile-2"}`))
		assert.NoError(t, DecodeJSONBody(ok, &body))
	})

	t.Run("wrong type names the field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"axe","count":"many"}`))
		var body sampleBody
		err := DecodeJSONBody(req, &body)
		require.Error(t, err)
		assert.Equal(t, "must be a int", detailsOf(t, err)["count"])
	})

	t.Run("empty and trailing input", func(t *testing.T) {
		var body sampleBody
		err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader("")), &body)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

		err = DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`)), &body)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	})

	t.Run("oversized body", func(t *testing.T) {
		huge := `{"name":"` + strings.Repeat("x", MaxBodyBytes) + `"}`
		var body sampleBody
		err := DecodeJSONBody(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge)), &body)
		require.Error(t, err)
		assert.Equal(t, "request body too large", pkgerrors.As(err).Message())
	})
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?page=3&size=abc&big=500", nil)

	page, err := ParseQueryInt(req, "page", 1, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 3, page)

	def, err := ParseQueryInt(req, "missing", 12, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 12, def)

	_, err = ParseQueryInt(req, "size", 1, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseQueryInt(req, "big", 1, 1, 100)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?unread=true&bad=maybe", nil)

	got, err := ParseQueryBool(req, "unread", false)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = ParseQueryBool(req, "missing", false)
	require.NoError(t, err)
	assert.False(t, got)

	_, err = ParseQueryBool(req, "bad", false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParsePage(t *testing.T) {
	page, err := ParsePage(httptest.NewRequest(http.MethodGet, "/?page=2&size=25", nil))
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 25, page.Size)

	page, err = ParsePage(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Zero(t, page.Size)

	page, err = ParsePage(httptest.NewRequest(http.MethodGet, "/?page=3", nil))
	require.NoError(t, err)
	assert.Equal(t, 3, page.Page)
	assert.Zero(t, page.Size)

	for _, raw := range []string{"0", "-4"} {
		page, err = ParsePage(httptest.NewRequest(http.MethodGet, "/?page="+raw, nil))
		require.NoError(t, err)
		assert.Equal(t, 1, page.Page, "page=%s", raw)
	}

	_, err = ParsePage(httptest.NewRequest(http.MethodGet, "/?page=two", nil))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParsePage(httptest.NewRequest(http.MethodGet, "/?size=0", nil))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParsePage(httptest.NewRequest(http.MethodGet, "/?size=100000", nil))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "size", details["field"])
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	withParam := func(value string) *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rc := chi.NewRouteContext()
		rc.URLParams.Add("listingId", value)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
	}

	got, err := ParseUUIDParam(withParam(id.String()), "listingId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(withParam("not-a-uuid"), "listingId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = ParseUUIDParam(withParam(""), "listingId")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryUUID(t *testing.T) {
	id := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/?game="+id.String()+"&bad=zzz", nil)

	got, err := ParseQueryUUID(req, "game")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, id, *got)

	missing, err := ParseQueryUUID(req, "category")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = ParseQueryUUID(req, "bad")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abc  ", 10))
	assert.Equal(t, "ab", SanitizeString("abcdef", 2))
	assert.Equal(t, "héé", SanitizeString("héééé", 3))
	assert.Equal(t, "line\nnext", SanitizeString("line\x00\nnext\x07", 0))
}
