package models

import "time"

// RawListing is one loosely-typed record as a platform adapter produced it.
// The exact keys vary by platform; the normalizer owns interpreting them.
type RawListing map[string]interface{}

// Draft is a normalized listing awaiting the merge/create decision.
type Draft struct {
	Platform        string
	ExternalID      string
	Name            string
	Latitude        float64
	Longitude       float64
	Rating          float64
	ReviewCount     int
	Verified        bool
	PreciseLocation bool
	MenuItems       []DraftMenuItem
	Promotions      []DraftPromotion
	Reviews         []DraftReview
}

type DraftMenuItem struct {
	Name    string
	Price   *float64
	Cuisine string
}

type DraftPromotion struct {
	Description string
	StartsAt    time.Time
	EndsAt      *time.Time
}

type DraftReview struct {
	ExternalID string
	Rating     float64
	Body       string
	ReviewedAt time.Time
}
