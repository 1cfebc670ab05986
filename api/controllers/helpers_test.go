package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/lootmarket-backend/api/middleware"
	pkgAuth "github.com/angelmondragon/lootmarket-backend/pkg/auth"
	"github.com/angelmondragon/lootmarket-backend/pkg/config"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "lootmarket", ExpirationMinutes: 60}

func asActor(r *http.Request, role enums.UserRole) (*http.Request, pkgAuth.Actor) {
	actor := pkgAuth.Actor{UserID: uuid.New(), Role: role, SessionID: uuid.NewString()}
	return r.WithContext(middleware.WithActor(r.Context(), actor)), actor
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope.Data
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	return envelope.Error.Code
}
