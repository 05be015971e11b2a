// Package dbhelper is the catalog store: raw SQL over the kitchens,
// kitchen_sources, menu_items, reviews and promotions tables. Write
// helpers take a *sql.Tx so the reconciler commits a whole merge in one
// transaction.
package dbhelper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/codewidneha/kitchenhub/database"
	"github.com/codewidneha/kitchenhub/models"
)

var ErrKitchenNotFound = errors.New("kitchen not found")

// Store wraps the database handle for catalog access. It is passed
// explicitly; there is no package-level connection.
type Store struct {
	db *database.DB
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Tx runs fn in a single transaction against the underlying database.
func (s *Store) Tx(fn func(tx *sql.Tx) error) error {
	return s.db.Tx(fn)
}

// ReadTx runs fn in a snapshot-consistent read transaction.
func (s *Store) ReadTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.db.ReadTx(ctx, fn)
}

func (s *Store) CreateKitchen(tx *sql.Tx, k *models.Kitchen) error {
	_, err := tx.Exec(s.db.Rebind(`
		INSERT INTO kitchens (id, name, latitude, longitude, rating, total_reviews, created_at, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		k.ID.String(), k.Name, k.Latitude, k.Longitude, k.Rating, k.TotalReviews, k.CreatedAt, k.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to insert kitchen: %w", err)
	}
	return nil
}

func (s *Store) UpdateKitchen(tx *sql.Tx, k *models.Kitchen) error {
	_, err := tx.Exec(s.db.Rebind(`
		UPDATE kitchens
		SET name = ?, latitude = ?, longitude = ?, rating = ?, total_reviews = ?, last_updated = ?
		WHERE id = ?`),
		k.Name, k.Latitude, k.Longitude, k.Rating, k.TotalReviews, k.LastUpdated, k.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update kitchen: %w", err)
	}
	return nil
}

// GetKitchenTx reads a kitchen row inside the merge transaction.
func (s *Store) GetKitchenTx(tx *sql.Tx, id uuid.UUID) (*models.Kitchen, error) {
	row := tx.QueryRow(s.db.Rebind(`
		SELECT id, name, latitude, longitude, rating, total_reviews, created_at, last_updated
		FROM kitchens WHERE id = ?`), id.String())
	return scanKitchen(row)
}

// GetKitchen reads a kitchen row outside any transaction.
func (s *Store) GetKitchen(ctx context.Context, id uuid.UUID) (*models.Kitchen, error) {
	row := s.db.QueryRowContext(ctx, s.db.Rebind(`
		SELECT id, name, latitude, longitude, rating, total_reviews, created_at, last_updated
		FROM kitchens WHERE id = ?`), id.String())
	return scanKitchen(row)
}

// KitchensInBox returns kitchens inside the bounding box with rating at
// or above the floor. The box is a pre-filter; the caller applies the
// exact distance check.
func (s *Store) KitchensInBox(ctx context.Context, minLat, maxLat, minLon, maxLon, minRating float64) ([]models.Kitchen, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT id, name, latitude, longitude, rating, total_reviews, created_at, last_updated
		FROM kitchens
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ? AND rating >= ?`),
		minLat, maxLat, minLon, maxLon, minRating)
	if err != nil {
		return nil, fmt.Errorf("failed to query kitchens in box: %w", err)
	}
	defer rows.Close()
	return collectKitchens(rows)
}

// CandidatesInBox is the in-transaction variant used by the reconciler's
// match step.
func (s *Store) CandidatesInBox(tx *sql.Tx, minLat, maxLat, minLon, maxLon float64) ([]models.Kitchen, error) {
	rows, err := tx.Query(s.db.Rebind(`
		SELECT id, name, latitude, longitude, rating, total_reviews, created_at, last_updated
		FROM kitchens
		WHERE latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?`),
		minLat, maxLat, minLon, maxLon)
	if err != nil {
		return nil, fmt.Errorf("failed to query merge candidates: %w", err)
	}
	defer rows.Close()
	return collectKitchens(rows)
}

// SourceByExternalID resolves the kitchen already holding this platform
// listing, if any. It short-circuits the proximity match and makes
// re-ingestion idempotent.
func (s *Store) SourceByExternalID(tx *sql.Tx, platform, externalID string) (uuid.UUID, bool, error) {
	var raw string
	err := tx.QueryRow(s.db.Rebind(`
		SELECT kitchen_id FROM kitchen_sources
		WHERE platform = ? AND external_id = ?`), platform, externalID).Scan(&raw)
	if err == sql.ErrNoRows {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to look up source: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to parse kitchen id: %w", err)
	}
	return id, true, nil
}

// ReplaceSource installs the platform's current contribution, replacing
// any prior row for the same platform or the same external listing.
func (s *Store) ReplaceSource(tx *sql.Tx, src *models.KitchenSource) error {
	_, err := tx.Exec(s.db.Rebind(`
		DELETE FROM kitchen_sources
		WHERE (kitchen_id = ? AND platform = ?) OR (platform = ? AND external_id = ?)`),
		src.KitchenID.String(), src.Platform, src.Platform, src.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to clear prior source: %w", err)
	}

	_, err = tx.Exec(s.db.Rebind(`
		INSERT INTO kitchen_sources (id, kitchen_id, platform, external_id, rating, review_count, verified, precise_location, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		src.ID.String(), src.KitchenID.String(), src.Platform, src.ExternalID,
		src.Rating, src.ReviewCount, src.Verified, src.PreciseLocation, src.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert source: %w", err)
	}
	return nil
}

// SourcesForKitchen returns all platform contributions, within the merge
// transaction so the weighted rating is computed on current rows.
func (s *Store) SourcesForKitchen(tx *sql.Tx, kitchenID uuid.UUID) ([]models.KitchenSource, error) {
	rows, err := tx.Query(s.db.Rebind(`
		SELECT id, kitchen_id, platform, external_id, rating, review_count, verified, precise_location, updated_at
		FROM kitchen_sources WHERE kitchen_id = ?`), kitchenID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []models.KitchenSource
	for rows.Next() {
		var src models.KitchenSource
		var id, kid string
		if err := rows.Scan(&id, &kid, &src.Platform, &src.ExternalID,
			&src.Rating, &src.ReviewCount, &src.Verified, &src.PreciseLocation, &src.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		if src.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse source id: %w", err)
		}
		if src.KitchenID, err = uuid.Parse(kid); err != nil {
			return nil, fmt.Errorf("failed to parse kitchen id: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

// Sources returns the platform contributions outside a transaction, for
// detail responses.
func (s *Store) Sources(ctx context.Context, kitchenID uuid.UUID) ([]models.KitchenSource, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT id, kitchen_id, platform, external_id, rating, review_count, verified, precise_location, updated_at
		FROM kitchen_sources WHERE kitchen_id = ?`), kitchenID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []models.KitchenSource
	for rows.Next() {
		var src models.KitchenSource
		var id, kid string
		if err := rows.Scan(&id, &kid, &src.Platform, &src.ExternalID,
			&src.Rating, &src.ReviewCount, &src.Verified, &src.PreciseLocation, &src.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		if src.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse source id: %w", err)
		}
		if src.KitchenID, err = uuid.Parse(kid); err != nil {
			return nil, fmt.Errorf("failed to parse kitchen id: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanKitchen(row rowScanner) (*models.Kitchen, error) {
	var k models.Kitchen
	var id string
	err := row.Scan(&id, &k.Name, &k.Latitude, &k.Longitude, &k.Rating, &k.TotalReviews, &k.CreatedAt, &k.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, ErrKitchenNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan kitchen: %w", err)
	}
	if k.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("failed to parse kitchen id: %w", err)
	}
	return &k, nil
}

func collectKitchens(rows *sql.Rows) ([]models.Kitchen, error) {
	var kitchens []models.Kitchen
	for rows.Next() {
		k, err := scanKitchen(rows)
		if err != nil {
			return nil, err
		}
		kitchens = append(kitchens, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate kitchens: %w", err)
	}
	return kitchens, nil
}
