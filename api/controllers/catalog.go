package controllers

import (
	"net/http"

	"github.com/angelmondragon/lootmarket-backend/api/middleware"
	"github.com/angelmondragon/lootmarket-backend/api/responses"
	"github.com/angelmondragon/lootmarket-backend/api/validators"
	"github.com/angelmondragon/lootmarket-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
)

type createGameRequest struct {
	Name string `json:"name" validate:"required,max=80"`
	Slug string `json:"slug" validate:"required,max=80,slug"`
}

// CatalogCategories lists categories with their active listing counts.
func CatalogCategories(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		categories, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, categories)
	}
}

func CatalogGames(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		games, err := svc.Games(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, games)
	}
}

func AdminCreateGame(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body createGameRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		game, err := svc.CreateGame(r.Context(), actor, catalog.CreateGameInput{
			Name: validators.SanitizeString(body.Name, 80),
			Slug: validators.SanitizeString(body.Slug, 80),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, game)
	}
}
