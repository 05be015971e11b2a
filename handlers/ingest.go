package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/codewidneha/kitchenhub/ingestion"
	"github.com/codewidneha/kitchenhub/utils"
)

// TriggerIngest starts a scraping run for a location. Partial platform
// failures still return 200; they are enumerated in the summary.
func (h *Handler) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Location  string   `json:"location"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Location == "" || req.Latitude == nil || req.Longitude == nil {
		utils.RespondError(w, http.StatusBadRequest, "location, latitude and longitude are required")
		return
	}
	if !(*req.Latitude >= -90 && *req.Latitude <= 90) || !(*req.Longitude >= -180 && *req.Longitude <= 180) {
		utils.RespondError(w, http.StatusBadRequest, "latitude or longitude out of range")
		return
	}

	summary, err := h.ingestor.Run(r.Context(), ingestion.Origin{
		Location:  req.Location,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
	})
	if err != nil {
		logrus.Printf("ingestion run for %q aborted: %v", req.Location, err)
		utils.RespondError(w, http.StatusInternalServerError, "ingestion run aborted")
		return
	}

	totals := summary.Totals()
	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"summary":          summary,
		"totals":           totals,
		"failed_platforms": summary.Failed(),
	})
}
