package models

import (
	"time"

	"github.com/google/uuid"
)

// Kitchen is the canonical record for one real-world cloud kitchen,
// independent of how many platforms list it. Rating and TotalReviews are
// derived from the per-platform contributions in Sources.
type Kitchen struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Latitude     float64         `db:"latitude" json:"latitude"`
	Longitude    float64         `db:"longitude" json:"longitude"`
	Rating       float64         `db:"rating" json:"rating"`
	TotalReviews int             `db:"total_reviews" json:"total_reviews"`
	Sources      []KitchenSource `db:"-" json:"sources,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	LastUpdated  time.Time       `db:"last_updated" json:"last_updated"`
}

// KitchenSource records one platform's contribution to a canonical kitchen.
// Re-ingesting the same platform replaces its row, so the weighted rating
// never double-counts a platform.
type KitchenSource struct {
	ID              uuid.UUID `db:"id" json:"id"`
	KitchenID       uuid.UUID `db:"kitchen_id" json:"kitchen_id"`
	Platform        string    `db:"platform" json:"platform"`
	ExternalID      string    `db:"external_id" json:"external_id"`
	Rating          float64   `db:"rating" json:"rating"`
	ReviewCount     int       `db:"review_count" json:"review_count"`
	Verified        bool      `db:"verified" json:"verified"`
	PreciseLocation bool      `db:"precise_location" json:"precise_location"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

type MenuItem struct {
	ID             uuid.UUID `db:"id" json:"id"`
	KitchenID      uuid.UUID `db:"kitchen_id" json:"kitchen_id"`
	Name           string    `db:"name" json:"name"`
	NormalizedName string    `db:"normalized_name" json:"-"`
	Price          *float64  `db:"price" json:"price,omitempty"`
	Cuisine        string    `db:"cuisine" json:"cuisine,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Review is append-only history; rows are never mutated after insert.
type Review struct {
	ID         uuid.UUID `db:"id" json:"id"`
	KitchenID  uuid.UUID `db:"kitchen_id" json:"kitchen_id"`
	Platform   string    `db:"platform" json:"platform"`
	ExternalID string    `db:"external_id" json:"external_id,omitempty"`
	Rating     float64   `db:"rating" json:"rating"`
	Body       string    `db:"body" json:"body"`
	ReviewedAt time.Time `db:"reviewed_at" json:"reviewed_at"`
}

type Promotion struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	KitchenID   uuid.UUID  `db:"kitchen_id" json:"kitchen_id"`
	Platform    string     `db:"platform" json:"platform"`
	Description string     `db:"description" json:"description"`
	StartsAt    time.Time  `db:"starts_at" json:"starts_at"`
	EndsAt      *time.Time `db:"ends_at" json:"ends_at,omitempty"`
}

// ActiveAt reports whether the promotion's validity window contains now.
// A nil EndsAt means the promotion is open-ended.
func (p Promotion) ActiveAt(now time.Time) bool {
	if now.Before(p.StartsAt) {
		return false
	}
	return p.EndsAt == nil || now.Before(*p.EndsAt)
}
