// Package query is the read side of the catalog: radius search, detail
// lookups, menu search and active promotions. Every operation is
// side-effect-free and reads committed state only.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/codewidneha/kitchenhub/database/dbhelper"
	"github.com/codewidneha/kitchenhub/geo"
	"github.com/codewidneha/kitchenhub/models"
	"github.com/codewidneha/kitchenhub/normalizer"
	"github.com/codewidneha/kitchenhub/utils"
)

var (
	ErrInvalidQuery = errors.New("invalid query")
	ErrNotFound     = errors.New("kitchen not found")
)

const (
	DefaultRadiusKm = 5.0
	reviewLimit     = 20
)

type Engine struct {
	store *dbhelper.Store
	clock utils.Clock
}

func NewEngine(store *dbhelper.Store, clock utils.Clock) *Engine {
	return &Engine{store: store, clock: clock}
}

// SearchParams filters a radius search. RadiusKm and MinRating carry
// defaults when zero; FoodQuery and Cuisine are optional.
type SearchParams struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	MinRating float64
	FoodQuery string
	Cuisine   string
}

// KitchenHit is one radius-search result.
type KitchenHit struct {
	models.Kitchen
	DistanceKm   float64  `json:"distance_km"`
	MatchedItems []string `json:"matched_items,omitempty"`
}

// RadiusSearch returns kitchens within the radius, pre-filtered by a
// bounding box and then filtered by exact great-circle distance, ordered
// by ascending distance with ties broken by descending rating.
func (e *Engine) RadiusSearch(ctx context.Context, p SearchParams) ([]KitchenHit, error) {
	// Negated comparisons so NaN coordinates fail too.
	if !(p.Latitude >= -90 && p.Latitude <= 90) {
		return nil, fmt.Errorf("%w: latitude out of range", ErrInvalidQuery)
	}
	if !(p.Longitude >= -180 && p.Longitude <= 180) {
		return nil, fmt.Errorf("%w: longitude out of range", ErrInvalidQuery)
	}
	radius := p.RadiusKm
	if !(radius >= 0) || math.IsInf(radius, 1) {
		return nil, fmt.Errorf("%w: radius must be a non-negative number", ErrInvalidQuery)
	}
	if radius == 0 {
		radius = DefaultRadiusKm
	}

	minLat, maxLat, minLon, maxLon := geo.BoundingBox(p.Latitude, p.Longitude, radius)
	kitchens, err := e.store.KitchensInBox(ctx, minLat, maxLat, minLon, maxLon, p.MinRating)
	if err != nil {
		return nil, err
	}

	var textMatches map[uuid.UUID][]string
	if q := strings.TrimSpace(p.FoodQuery); q != "" {
		textMatches, err = e.menuMatches(ctx, q)
		if err != nil {
			return nil, err
		}
	}

	var cuisineIDs map[uuid.UUID]bool
	if c := strings.TrimSpace(p.Cuisine); c != "" {
		cuisineIDs, err = e.store.CuisineKitchenIDs(ctx, c)
		if err != nil {
			return nil, err
		}
	}

	hits := make([]KitchenHit, 0, len(kitchens))
	for _, k := range kitchens {
		dist := geo.Distance(p.Latitude, p.Longitude, k.Latitude, k.Longitude)
		if dist > radius {
			continue
		}
		if cuisineIDs != nil && !cuisineIDs[k.ID] {
			continue
		}

		hit := KitchenHit{Kitchen: k, DistanceKm: dist}
		if textMatches != nil {
			items := textMatches[k.ID]
			nameHit := strings.Contains(
				normalizer.CanonicalName(k.Name),
				normalizer.CanonicalName(p.FoodQuery),
			)
			if len(items) == 0 && !nameHit {
				continue
			}
			hit.MatchedItems = items
		}
		hits = append(hits, hit)
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].DistanceKm != hits[j].DistanceKm {
			return hits[i].DistanceKm < hits[j].DistanceKm
		}
		return hits[i].Rating > hits[j].Rating
	})
	return hits, nil
}

// KitchenDetail is the full canonical record for one kitchen.
type KitchenDetail struct {
	models.Kitchen
	MenuItems        []models.MenuItem  `json:"menu_items"`
	ActivePromotions []models.Promotion `json:"active_promotions"`
	Reviews          []models.Review    `json:"reviews"`
}

// Detail returns the kitchen with its menu, currently active promotions
// and recent reviews. All rows are read in one transaction so a merge
// committing mid-read never produces a response mixing pre-merge kitchen
// fields with post-merge children.
func (e *Engine) Detail(ctx context.Context, id uuid.UUID) (*KitchenDetail, error) {
	var detail *KitchenDetail
	err := e.store.ReadTx(ctx, func(tx *sql.Tx) error {
		kitchen, err := e.store.GetKitchenTx(tx, id)
		if err != nil {
			return err
		}

		sources, err := e.store.SourcesForKitchen(tx, id)
		if err != nil {
			return err
		}
		kitchen.Sources = sources

		items, err := e.store.MenuItemsTx(ctx, tx, id)
		if err != nil {
			return err
		}

		promos, err := e.store.PromotionsTx(ctx, tx, id)
		if err != nil {
			return err
		}
		now := e.clock()
		active := make([]models.Promotion, 0, len(promos))
		for _, p := range promos {
			if p.ActiveAt(now) {
				active = append(active, p)
			}
		}

		reviews, err := e.store.ReviewsTx(ctx, tx, id, reviewLimit)
		if err != nil {
			return err
		}

		detail = &KitchenDetail{
			Kitchen:          *kitchen,
			MenuItems:        items,
			ActivePromotions: active,
			Reviews:          reviews,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, dbhelper.ErrKitchenNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return detail, nil
}

// MenuMatch pairs a kitchen with the item names that matched the query.
type MenuMatch struct {
	models.Kitchen
	MatchedItems []string `json:"matched_items"`
}

// MenuSearch returns kitchens having at least one menu item matching the
// free-text query, case-insensitive.
func (e *Engine) MenuSearch(ctx context.Context, foodQuery string) ([]MenuMatch, error) {
	q := strings.TrimSpace(foodQuery)
	if q == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidQuery)
	}

	matches, err := e.menuMatches(ctx, q)
	if err != nil {
		return nil, err
	}

	results := make([]MenuMatch, 0, len(matches))
	for kitchenID, items := range matches {
		kitchen, err := e.store.GetKitchen(ctx, kitchenID)
		if err != nil {
			if errors.Is(err, dbhelper.ErrKitchenNotFound) {
				continue
			}
			return nil, err
		}
		results = append(results, MenuMatch{Kitchen: *kitchen, MatchedItems: items})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Rating > results[j].Rating
	})
	return results, nil
}

// ActivePromotions returns every promotion whose validity window contains
// the current time, joined with the owning kitchen.
func (e *Engine) ActivePromotions(ctx context.Context) ([]dbhelper.ActivePromotion, error) {
	return e.store.ActivePromotions(ctx, e.clock())
}

func (e *Engine) menuMatches(ctx context.Context, foodQuery string) (map[uuid.UUID][]string, error) {
	items, err := e.store.MenuItemsMatching(ctx, normalizer.CanonicalName(foodQuery))
	if err != nil {
		return nil, err
	}
	matches := make(map[uuid.UUID][]string)
	for _, item := range items {
		matches[item.KitchenID] = append(matches[item.KitchenID], item.Name)
	}
	return matches, nil
}
