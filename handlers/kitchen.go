package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/codewidneha/kitchenhub/query"
	"github.com/codewidneha/kitchenhub/utils"
)

// SearchKitchens serves the radius search with optional text, cuisine
// and rating filters.
func (h *Handler) SearchKitchens(w http.ResponseWriter, r *http.Request) {
	lat, latSet, latOK := utils.QueryFloat(r, "latitude", 0)
	lng, lngSet, lngOK := utils.QueryFloat(r, "longitude", 0)
	if !latSet || !lngSet || !latOK || !lngOK {
		utils.RespondError(w, http.StatusBadRequest, "latitude and longitude required")
		return
	}
	radius, _, radiusOK := utils.QueryFloat(r, "radius", query.DefaultRadiusKm)
	minRating, _, ratingOK := utils.QueryFloat(r, "min_rating", 0)
	if !radiusOK || !ratingOK {
		utils.RespondError(w, http.StatusBadRequest, "radius and min_rating must be numeric")
		return
	}

	hits, err := h.engine.RadiusSearch(r.Context(), query.SearchParams{
		Latitude:  lat,
		Longitude: lng,
		RadiusKm:  radius,
		MinRating: minRating,
		FoodQuery: r.URL.Query().Get("food_query"),
		Cuisine:   r.URL.Query().Get("cuisine_type"),
	})
	if err != nil {
		if errors.Is(err, query.ErrInvalidQuery) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, hits)
}

// NearbyKitchens is the no-filter variant of the radius search.
func (h *Handler) NearbyKitchens(w http.ResponseWriter, r *http.Request) {
	lat, latSet, latOK := utils.QueryFloat(r, "latitude", 0)
	lng, lngSet, lngOK := utils.QueryFloat(r, "longitude", 0)
	if !latSet || !lngSet || !latOK || !lngOK {
		utils.RespondError(w, http.StatusBadRequest, "latitude and longitude required")
		return
	}

	hits, err := h.engine.RadiusSearch(r.Context(), query.SearchParams{
		Latitude:  lat,
		Longitude: lng,
		RadiusKm:  query.DefaultRadiusKm,
	})
	if err != nil {
		if errors.Is(err, query.ErrInvalidQuery) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, hits)
}

// GetKitchenDetails returns the full canonical record for one kitchen.
func (h *Handler) GetKitchenDetails(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid kitchen id")
		return
	}

	detail, err := h.engine.Detail(r.Context(), id)
	if err != nil {
		if errors.Is(err, query.ErrNotFound) {
			utils.RespondError(w, http.StatusNotFound, "kitchen not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, detail)
}

// SearchMenu returns kitchens having menu items matching the query.
func (h *Handler) SearchMenu(w http.ResponseWriter, r *http.Request) {
	matches, err := h.engine.MenuSearch(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		if errors.Is(err, query.ErrInvalidQuery) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "menu search failed")
		return
	}
	utils.RespondJSON(w, http.StatusOK, matches)
}

// ActivePromotions lists promotions currently in their validity window.
func (h *Handler) ActivePromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := h.engine.ActivePromotions(r.Context())
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to list promotions")
		return
	}
	utils.RespondJSON(w, http.StatusOK, promos)
}

// Health reports liveness with the current timestamp. No side effects.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.clock(),
	})
}
