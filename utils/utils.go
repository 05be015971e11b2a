package utils

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// Clock supplies the current time. Components take it explicitly so tests
// can pin "now" when exercising merges and promotion windows.
type Clock func() time.Time

// SystemClock is the production clock.
func SystemClock() time.Time { return time.Now().UTC() }

func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.Printf("failed to encode response, error: %v", err)
	}
}

func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// QueryFloat parses a float query parameter, returning def when absent.
// ok is false only when the parameter is present but malformed.
func QueryFloat(r *http.Request, name string, def float64) (val float64, set bool, ok bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, false, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def, true, false
	}
	return v, true, true
}
