// Package normalizer turns raw platform listings into canonical-shaped
// drafts. It validates the required fields exhaustively instead of
// trusting any platform's schema; a bad record is reported per record
// and never aborts the batch.
package normalizer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/codewidneha/kitchenhub/models"
)

// ErrInvalidListing marks a raw record that cannot be normalized. All
// field-level failures wrap it.
var (
	ErrInvalidListing   = errors.New("invalid listing")
	ErrMissingName      = fmt.Errorf("%w: name is required", ErrInvalidListing)
	ErrMissingLatitude  = fmt.Errorf("%w: latitude is required", ErrInvalidListing)
	ErrMissingLongitude = fmt.Errorf("%w: longitude is required", ErrInvalidListing)
	ErrLatitudeRange    = fmt.Errorf("%w: latitude out of range", ErrInvalidListing)
	ErrLongitudeRange   = fmt.Errorf("%w: longitude out of range", ErrInvalidListing)
	ErrRatingRange      = fmt.Errorf("%w: rating out of range", ErrInvalidListing)
)

// Normalize maps one raw listing from the named platform into a draft.
// Required: name, latitude, longitude. Everything else defaults to
// empty/absent. Pure transform, no side effects.
func Normalize(platform string, raw models.RawListing) (*models.Draft, error) {
	name, ok := str(raw, "name", "kitchen_name", "title")
	if !ok || strings.TrimSpace(name) == "" {
		return nil, ErrMissingName
	}

	lat, ok := num(raw, "latitude", "lat")
	if !ok {
		return nil, ErrMissingLatitude
	}
	lng, ok := num(raw, "longitude", "lng", "lon")
	if !ok {
		return nil, ErrMissingLongitude
	}
	// Written so NaN fails the comparison too.
	if !(lat >= -90 && lat <= 90) {
		return nil, ErrLatitudeRange
	}
	if !(lng >= -180 && lng <= 180) {
		return nil, ErrLongitudeRange
	}

	draft := &models.Draft{
		Platform:  platform,
		Name:      strings.TrimSpace(name),
		Latitude:  lat,
		Longitude: lng,
	}

	if id, ok := str(raw, "external_id", "platform_id", "id"); ok {
		draft.ExternalID = strings.TrimSpace(id)
	}
	if r, ok := num(raw, "rating"); ok {
		if !(r >= 0 && r <= 5) {
			return nil, ErrRatingRange
		}
		draft.Rating = r
	}
	if c, ok := num(raw, "total_reviews", "review_count"); ok && c > 0 {
		draft.ReviewCount = int(c)
	}
	if v, ok := boolean(raw, "verified"); ok {
		draft.Verified = v
	}
	if v, ok := boolean(raw, "precise_location", "precise"); ok {
		draft.PreciseLocation = v
	}

	draft.MenuItems = menuItems(raw)
	draft.Promotions = promotions(raw)
	draft.Reviews = reviews(raw)

	return draft, nil
}

func menuItems(raw models.RawListing) []models.DraftMenuItem {
	var items []models.DraftMenuItem
	for _, entry := range list(raw, "menu_items", "menu") {
		name, ok := str(entry, "item_name", "name")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		item := models.DraftMenuItem{Name: strings.TrimSpace(name)}
		if p, ok := num(entry, "price"); ok {
			item.Price = &p
		}
		if c, ok := str(entry, "cuisine", "cuisine_type"); ok {
			item.Cuisine = strings.TrimSpace(c)
		}
		items = append(items, item)
	}
	return items
}

func promotions(raw models.RawListing) []models.DraftPromotion {
	var promos []models.DraftPromotion
	for _, entry := range list(raw, "promotions", "offers") {
		desc, ok := str(entry, "details", "description")
		if !ok || strings.TrimSpace(desc) == "" {
			continue
		}
		promo := models.DraftPromotion{Description: strings.TrimSpace(desc)}
		if t, ok := timestamp(entry, "starts_at", "start", "valid_from"); ok {
			promo.StartsAt = t
		}
		if t, ok := timestamp(entry, "ends_at", "end", "valid_until"); ok {
			promo.EndsAt = &t
		}
		promos = append(promos, promo)
	}
	return promos
}

func reviews(raw models.RawListing) []models.DraftReview {
	var out []models.DraftReview
	for _, entry := range list(raw, "reviews") {
		body, _ := str(entry, "text", "body")
		rating, ok := num(entry, "rating")
		if !ok || rating < 0 || rating > 5 {
			continue
		}
		review := models.DraftReview{Rating: rating, Body: strings.TrimSpace(body)}
		if id, ok := str(entry, "external_id", "id"); ok {
			review.ExternalID = strings.TrimSpace(id)
		}
		if t, ok := timestamp(entry, "timestamp", "reviewed_at"); ok {
			review.ReviewedAt = t
		}
		out = append(out, review)
	}
	return out
}

// CanonicalName folds case, strips punctuation and collapses whitespace.
// Both the reconciler's name match and the menu-item union key use it.
func CanonicalName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

func str(m map[string]interface{}, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func num(m map[string]interface{}, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case float32:
			return float64(n), true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func boolean(m map[string]interface{}, keys ...string) (bool, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if b, ok := v.(bool); ok {
				return b, true
			}
		}
	}
	return false, false
}

func timestamp(m map[string]interface{}, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		switch t := v.(type) {
		case time.Time:
			return t, true
		case string:
			if parsed, err := time.Parse(time.RFC3339, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func list(m map[string]interface{}, keys ...string) []map[string]interface{} {
	for _, k := range keys {
		v, ok := m[k]
		if !ok {
			continue
		}
		raw, ok := v.([]interface{})
		if !ok {
			continue
		}
		var out []map[string]interface{}
		for _, item := range raw {
			if entry, ok := item.(map[string]interface{}); ok {
				out = append(out, entry)
			}
		}
		return out
	}
	return nil
}
