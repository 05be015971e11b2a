// Package reconciler decides whether a normalized draft is an existing
// canonical kitchen or a new one, and applies the merge policy. All
// writes for one draft commit in a single transaction.
package reconciler

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codewidneha/kitchenhub/config"
	"github.com/codewidneha/kitchenhub/database/dbhelper"
	"github.com/codewidneha/kitchenhub/geo"
	"github.com/codewidneha/kitchenhub/models"
	"github.com/codewidneha/kitchenhub/normalizer"
	"github.com/codewidneha/kitchenhub/utils"
)

// Outcome reports what happened to one draft.
type Outcome struct {
	KitchenID uuid.UUID
	Created   bool
}

type Reconciler struct {
	store *dbhelper.Store
	cfg   config.ReconcilerConfig
	clock utils.Clock
	locks *bucketLocks
}

func New(store *dbhelper.Store, cfg config.ReconcilerConfig, clock utils.Clock) *Reconciler {
	return &Reconciler{
		store: store,
		cfg:   cfg,
		clock: clock,
		locks: newBucketLocks(),
	}
}

// errMatchOutsideLock aborts a merge whose matched kitchen lies outside
// the locked neighborhood; the caller re-acquires and retries.
var errMatchOutsideLock = errors.New("matched kitchen outside locked buckets")

// Reconcile matches the draft against the catalog and merges or creates.
// The draft's coordinate bucket is locked for the duration, so two
// concurrent drafts for the same (possibly new) kitchen serialize
// instead of racing into duplicates. An external-id match can resolve to
// a kitchen relocated outside the locked neighborhood; the merge then
// retries holding that kitchen's bucket too, so it cannot race a
// proximity-matched merge on the same kitchen.
func (r *Reconciler) Reconcile(draft *models.Draft) (Outcome, error) {
	if draft.ExternalID == "" {
		draft.ExternalID = syntheticExternalID(draft)
	}

	points := [][2]float64{{draft.Latitude, draft.Longitude}}
	for {
		grant := r.locks.Acquire(points...)

		var out Outcome
		var outside *[2]float64
		err := r.store.Tx(func(tx *sql.Tx) error {
			kitchenID, matched, err := r.match(tx, draft)
			if err != nil {
				return err
			}
			if !matched {
				id, err := r.create(tx, draft)
				if err != nil {
					return err
				}
				out = Outcome{KitchenID: id, Created: true}
				return nil
			}

			kitchen, err := r.store.GetKitchenTx(tx, kitchenID)
			if err != nil {
				return err
			}
			if !grant.covers(kitchen.Latitude, kitchen.Longitude) {
				outside = &[2]float64{kitchen.Latitude, kitchen.Longitude}
				return errMatchOutsideLock
			}
			out = Outcome{KitchenID: kitchenID}
			return r.merge(tx, kitchen, draft)
		})
		grant.release()

		if errors.Is(err, errMatchOutsideLock) && outside != nil {
			points = append(points, *outside)
			continue
		}
		if err != nil {
			return Outcome{}, err
		}
		return out, nil
	}
}

// match resolves the draft to an existing kitchen: first by the
// platform's own listing id, then by proximity plus name similarity.
// Both proximity and name must agree; nearby is not enough.
func (r *Reconciler) match(tx *sql.Tx, draft *models.Draft) (uuid.UUID, bool, error) {
	id, found, err := r.store.SourceByExternalID(tx, draft.Platform, draft.ExternalID)
	if err != nil {
		return uuid.Nil, false, err
	}
	if found {
		return id, true, nil
	}

	radiusKm := r.cfg.MatchRadiusM / 1000
	minLat, maxLat, minLon, maxLon := geo.BoundingBox(draft.Latitude, draft.Longitude, radiusKm)
	candidates, err := r.store.CandidatesInBox(tx, minLat, maxLat, minLon, maxLon)
	if err != nil {
		return uuid.Nil, false, err
	}

	bestDist := radiusKm
	var best *models.Kitchen
	for i := range candidates {
		c := &candidates[i]
		dist := geo.Distance(draft.Latitude, draft.Longitude, c.Latitude, c.Longitude)
		if dist > radiusKm {
			continue
		}
		if !NamesSimilar(draft.Name, c.Name, r.cfg.NameSimilarity) {
			continue
		}
		if best == nil || dist < bestDist {
			best = c
			bestDist = dist
		}
	}
	if best == nil {
		return uuid.Nil, false, nil
	}
	return best.ID, true, nil
}

func (r *Reconciler) create(tx *sql.Tx, draft *models.Draft) (uuid.UUID, error) {
	now := r.clock()
	kitchen := &models.Kitchen{
		ID:           uuid.New(),
		Name:         draft.Name,
		Latitude:     draft.Latitude,
		Longitude:    draft.Longitude,
		Rating:       draft.Rating,
		TotalReviews: draft.ReviewCount,
		CreatedAt:    now,
		LastUpdated:  now,
	}
	if err := r.store.CreateKitchen(tx, kitchen); err != nil {
		return uuid.Nil, err
	}
	if err := r.writeSourceAndChildren(tx, kitchen.ID, draft); err != nil {
		return uuid.Nil, err
	}
	logrus.Printf("created kitchen %s (%s via %s)", kitchen.ID, kitchen.Name, draft.Platform)
	return kitchen.ID, nil
}

// merge applies the conflict-resolution policy: first-write-wins name
// unless the new source is verified and no existing one is, coordinates
// keep existing unless the new source is marked precise, rating is the
// review-count-weighted mean across platforms, children are unioned or
// appended per their own rules.
func (r *Reconciler) merge(tx *sql.Tx, kitchen *models.Kitchen, draft *models.Draft) error {
	kitchenID := kitchen.ID

	existing, err := r.store.SourcesForKitchen(tx, kitchenID)
	if err != nil {
		return err
	}
	anyVerified := false
	for _, src := range existing {
		if src.Verified {
			anyVerified = true
			break
		}
	}
	if draft.Verified && !anyVerified {
		kitchen.Name = draft.Name
	}
	if draft.PreciseLocation {
		kitchen.Latitude = draft.Latitude
		kitchen.Longitude = draft.Longitude
	}

	if err := r.writeSourceAndChildren(tx, kitchenID, draft); err != nil {
		return err
	}

	sources, err := r.store.SourcesForKitchen(tx, kitchenID)
	if err != nil {
		return err
	}
	kitchen.Rating, kitchen.TotalReviews = weightedRating(sources)
	kitchen.LastUpdated = r.clock()

	if err := r.store.UpdateKitchen(tx, kitchen); err != nil {
		return err
	}
	logrus.Printf("merged %s listing into kitchen %s (%s)", draft.Platform, kitchen.ID, kitchen.Name)
	return nil
}

func (r *Reconciler) writeSourceAndChildren(tx *sql.Tx, kitchenID uuid.UUID, draft *models.Draft) error {
	now := r.clock()

	src := &models.KitchenSource{
		ID:              uuid.New(),
		KitchenID:       kitchenID,
		Platform:        draft.Platform,
		ExternalID:      draft.ExternalID,
		Rating:          draft.Rating,
		ReviewCount:     draft.ReviewCount,
		Verified:        draft.Verified,
		PreciseLocation: draft.PreciseLocation,
		UpdatedAt:       now,
	}
	if err := r.store.ReplaceSource(tx, src); err != nil {
		return err
	}

	for _, item := range draft.MenuItems {
		mi := &models.MenuItem{
			ID:             uuid.New(),
			KitchenID:      kitchenID,
			Name:           item.Name,
			NormalizedName: normalizer.CanonicalName(item.Name),
			Price:          item.Price,
			Cuisine:        item.Cuisine,
			CreatedAt:      now,
		}
		if err := r.store.AddMenuItem(tx, mi); err != nil {
			return err
		}
	}

	for _, promo := range draft.Promotions {
		p := &models.Promotion{
			ID:          uuid.New(),
			KitchenID:   kitchenID,
			Platform:    draft.Platform,
			Description: promo.Description,
			StartsAt:    promo.StartsAt,
			EndsAt:      promo.EndsAt,
		}
		dup, err := r.store.HasPromotion(tx, p)
		if err != nil {
			return err
		}
		if dup {
			continue
		}
		if err := r.store.AddPromotion(tx, p); err != nil {
			return err
		}
	}

	for _, review := range draft.Reviews {
		exists, err := r.store.ReviewExists(tx, kitchenID, draft.Platform, review.ExternalID)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		reviewedAt := review.ReviewedAt
		if reviewedAt.IsZero() {
			reviewedAt = now
		}
		rv := &models.Review{
			ID:         uuid.New(),
			KitchenID:  kitchenID,
			Platform:   draft.Platform,
			ExternalID: review.ExternalID,
			Rating:     review.Rating,
			Body:       review.Body,
			ReviewedAt: reviewedAt,
		}
		if err := r.store.AddReview(tx, rv); err != nil {
			return err
		}
	}
	return nil
}

// weightedRating computes the review-count-weighted mean across the
// platform contributions, so 1000 reviews outweigh 5. Platforms that
// report a rating but no count fall back to an unweighted mean among
// themselves when no platform has counts at all.
func weightedRating(sources []models.KitchenSource) (float64, int) {
	var weightedSum float64
	var ratedReviews int
	var totalReviews int
	var ratingSum float64
	var rated int

	for _, src := range sources {
		totalReviews += src.ReviewCount
		if src.Rating > 0 {
			weightedSum += src.Rating * float64(src.ReviewCount)
			ratedReviews += src.ReviewCount
			ratingSum += src.Rating
			rated++
		}
	}

	if ratedReviews > 0 {
		return weightedSum / float64(ratedReviews), totalReviews
	}
	if rated > 0 {
		return ratingSum / float64(rated), totalReviews
	}
	return 0, totalReviews
}

// syntheticExternalID gives listings without a platform id a stable key,
// so re-ingesting the same listing replaces rather than duplicates its
// source row.
func syntheticExternalID(draft *models.Draft) string {
	return fmt.Sprintf("%s@%.5f,%.5f", normalizer.CanonicalName(draft.Name), draft.Latitude, draft.Longitude)
}
