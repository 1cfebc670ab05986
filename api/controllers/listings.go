package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/lootmarket-backend/api/middleware"
	"github.com/angelmondragon/lootmarket-backend/api/responses"
	"github.com/angelmondragon/lootmarket-backend/api/validators"
	"github.com/angelmondragon/lootmarket-backend/internal/listings"
	"github.com/angelmondragon/lootmarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/lootmarket-backend/pkg/errors"
	"github.com/angelmondragon/lootmarket-backend/pkg/logger"
	"github.com/angelmondragon/lootmarket-backend/pkg/pagination"
)

const maxSearchLength = 120

type upsertListingRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description *string         `json:"description,omitempty" validate:"omitempty,max=4000"`
	Details     *string         `json:"details,omitempty" validate:"omitempty,max=4000"`
	Server      *string         `json:"server,omitempty" validate:"omitempty,max=120"`
	GameID      uuid.UUID       `json:"game_id" validate:"required"`
	CategoryID  uuid.UUID       `json:"category_id" validate:"required"`
	Stock       int             `json:"stock" validate:"min=0"`
	Price       decimal.Decimal `json:"price"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

func (req upsertListingRequest) toInput() listings.UpsertInput {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return listings.UpsertInput{
		Title:       validators.SanitizeString(req.Title, 200),
		Description: req.Description,
		Details:     req.Details,
		Server:      req.Server,
		GameID:      req.GameID,
		CategoryID:  req.CategoryID,
		Stock:       req.Stock,
		Price:       req.Price,
		IsActive:    active,
	}
}

// ListingsBrowse serves the storefront catalog. A client may send
// X-Request-Generation with a counter that grows per filter change; replies to
// requests overtaken by a newer generation fail with STATE_CONFLICT.
func ListingsBrowse(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}

		filter, page, err := parseListingQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		generation, err := parseGeneration(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := listings.BrowseInput{Filter: filter, Page: page}
		if generation > 0 {
			input.ClientKey = browseClientKey(r)
			input.Generation = generation
			w.Header().Set(middleware.RequestGenerationHeader, strconv.FormatUint(generation, 10))
		}

		result, err := svc.Browse(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func ListingGet(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}
		id, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// AdminListingsList includes inactive listings.
func AdminListingsList(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter, page, err := parseListingQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AdminList(r.Context(), actor, listings.AdminListInput{Filter: filter, Page: page})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminListingCreate(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body upsertListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Create(r.Context(), actor, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

func AdminListingUpdate(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body upsertListingRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.Update(r.Context(), actor, id, body.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

func AdminListingDelete(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "listings service unavailable"))
			return
		}
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

func parseListingQuery(r *http.Request) (listings.Filter, pagination.Params, error) {
	q := r.URL.Query()

	sort, err := enums.ParseListingSort(strings.TrimSpace(q.Get("sort")))
	if err != nil {
		return listings.Filter{}, pagination.Params{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sort").
			WithDetails(map[string]any{"field": "sort"})
	}
	gameID, err := validators.ParseQueryUUID(r, "game")
	if err != nil {
		return listings.Filter{}, pagination.Params{}, err
	}
	page, err := validators.ParsePage(r)
	if err != nil {
		return listings.Filter{}, pagination.Params{}, err
	}

	filter := listings.Filter{
		CategorySlug: strings.ToLower(strings.TrimSpace(q.Get("category"))),
		Search:       validators.SanitizeString(q.Get("q"), maxSearchLength),
		Sort:         sort,
	}
	if gameID != nil {
		filter.GameID = *gameID
	}
	return filter, page, nil
}

func parseGeneration(r *http.Request) (uint64, error) {
	raw := strings.TrimSpace(r.Header.Get(middleware.RequestGenerationHeader))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request generation").
			WithDetails(map[string]any{"field": middleware.RequestGenerationHeader})
	}
	return value, nil
}

// browseClientKey scopes generations to the signed-in user when there is one.
func browseClientKey(r *http.Request) string {
	if userID := middleware.UserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID
	}
	return "ip:" + middleware.ClientIP(r)
}
