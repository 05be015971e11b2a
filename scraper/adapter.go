// Package scraper holds the platform adapters. Each adapter fetches raw
// listings near an origin from one delivery platform; everything past
// "produce records or fail" (anti-bot hardening in particular) is out of
// scope here, and a failing adapter only degrades its own platform.
package scraper

import (
	"context"
	"fmt"

	"github.com/codewidneha/kitchenhub/config"
	"github.com/codewidneha/kitchenhub/models"
)

// Adapter is what the ingestion orchestrator consumes.
type Adapter interface {
	Platform() string
	Fetch(ctx context.Context, location string, lat, lng float64) ([]models.RawListing, error)
}

// AdapterError reports a platform-level fetch failure.
type AdapterError struct {
	Platform string
	Reason   string
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s: %s", e.Platform, e.Reason)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// BuildAdapters constructs an adapter per enabled platform. Unknown
// platform names get the generic JSON listing client.
func BuildAdapters(cfg *config.PlatformsConfig) []Adapter {
	var adapters []Adapter
	for _, p := range cfg.Enabled() {
		adapters = append(adapters, newAdapter(p, cfg.Adapter))
	}
	return adapters
}

func newAdapter(p config.PlatformConfig, retry config.AdapterConfig) Adapter {
	switch p.Name {
	case "swiggy":
		return NewSwiggy(p.BaseURL, retry)
	case "zomato":
		return NewZomato(p.BaseURL, retry)
	case "eatsure":
		return NewEatSure(p.BaseURL, retry)
	default:
		return newJSONClient(p.Name, p.BaseURL, "/api/listings", "listings", retry)
	}
}
