package dbhelper

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/codewidneha/kitchenhub/models"
)

// AddMenuItem inserts the item unless one with the same normalized name
// already exists for the kitchen (set union by normalized name).
func (s *Store) AddMenuItem(tx *sql.Tx, item *models.MenuItem) error {
	var exists bool
	err := tx.QueryRow(s.db.Rebind(`
		SELECT EXISTS (
			SELECT 1 FROM menu_items
			WHERE kitchen_id = ? AND normalized_name = ?
		)`), item.KitchenID.String(), item.NormalizedName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check menu item: %w", err)
	}
	if exists {
		return nil
	}

	_, err = tx.Exec(s.db.Rebind(`
		INSERT INTO menu_items (id, kitchen_id, name, normalized_name, price, cuisine, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		item.ID.String(), item.KitchenID.String(), item.Name, item.NormalizedName,
		item.Price, item.Cuisine, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert menu item: %w", err)
	}
	return nil
}

// querier abstracts the pool and a transaction so the read helpers can
// serve both the query engine's snapshot reads and plain lookups.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (s *Store) MenuItems(ctx context.Context, kitchenID uuid.UUID) ([]models.MenuItem, error) {
	return s.menuItems(ctx, s.db, kitchenID)
}

// MenuItemsTx is the in-transaction variant for snapshot reads.
func (s *Store) MenuItemsTx(ctx context.Context, tx *sql.Tx, kitchenID uuid.UUID) ([]models.MenuItem, error) {
	return s.menuItems(ctx, tx, kitchenID)
}

func (s *Store) menuItems(ctx context.Context, q querier, kitchenID uuid.UUID) ([]models.MenuItem, error) {
	rows, err := q.QueryContext(ctx, s.db.Rebind(`
		SELECT id, kitchen_id, name, normalized_name, price, cuisine, created_at
		FROM menu_items WHERE kitchen_id = ?
		ORDER BY name`), kitchenID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()
	return collectMenuItems(rows)
}

// MenuItemsMatching returns menu items whose name contains the query,
// case-insensitive, across all kitchens.
func (s *Store) MenuItemsMatching(ctx context.Context, query string) ([]models.MenuItem, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT id, kitchen_id, name, normalized_name, price, cuisine, created_at
		FROM menu_items
		WHERE normalized_name LIKE '%' || ? || '%'
		ORDER BY name`), query)
	if err != nil {
		return nil, fmt.Errorf("failed to search menu items: %w", err)
	}
	defer rows.Close()
	return collectMenuItems(rows)
}

// CuisineKitchenIDs returns the ids of kitchens offering at least one
// menu item tagged with the cuisine, case-insensitive.
func (s *Store) CuisineKitchenIDs(ctx context.Context, cuisine string) (map[uuid.UUID]bool, error) {
	rows, err := s.db.QueryContext(ctx, s.db.Rebind(`
		SELECT DISTINCT kitchen_id FROM menu_items
		WHERE LOWER(cuisine) = LOWER(?)`), cuisine)
	if err != nil {
		return nil, fmt.Errorf("failed to query cuisines: %w", err)
	}
	defer rows.Close()

	ids := make(map[uuid.UUID]bool)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan kitchen id: %w", err)
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse kitchen id: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cuisines: %w", err)
	}
	return ids, nil
}

// HasPromotion reports whether an equivalent promotion (same description
// and platform, overlapping validity window) is already recorded.
func (s *Store) HasPromotion(tx *sql.Tx, p *models.Promotion) (bool, error) {
	rows, err := tx.Query(s.db.Rebind(`
		SELECT starts_at, ends_at FROM promotions
		WHERE kitchen_id = ? AND platform = ? AND description = ?`),
		p.KitchenID.String(), p.Platform, p.Description)
	if err != nil {
		return false, fmt.Errorf("failed to query promotions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var starts time.Time
		var ends sql.NullTime
		if err := rows.Scan(&starts, &ends); err != nil {
			return false, fmt.Errorf("failed to scan promotion window: %w", err)
		}
		var endsPtr *time.Time
		if ends.Valid {
			endsPtr = &ends.Time
		}
		if windowsOverlap(p.StartsAt, p.EndsAt, starts, endsPtr) {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("failed to iterate promotions: %w", err)
	}
	return false, nil
}

func (s *Store) AddPromotion(tx *sql.Tx, p *models.Promotion) error {
	_, err := tx.Exec(s.db.Rebind(`
		INSERT INTO promotions (id, kitchen_id, platform, description, starts_at, ends_at)
		VALUES (?, ?, ?, ?, ?, ?)`),
		p.ID.String(), p.KitchenID.String(), p.Platform, p.Description, p.StartsAt, nullTime(p.EndsAt))
	if err != nil {
		return fmt.Errorf("failed to insert promotion: %w", err)
	}
	return nil
}

func (s *Store) Promotions(ctx context.Context, kitchenID uuid.UUID) ([]models.Promotion, error) {
	return s.promotions(ctx, s.db, kitchenID)
}

// PromotionsTx is the in-transaction variant for snapshot reads.
func (s *Store) PromotionsTx(ctx context.Context, tx *sql.Tx, kitchenID uuid.UUID) ([]models.Promotion, error) {
	return s.promotions(ctx, tx, kitchenID)
}

func (s *Store) promotions(ctx context.Context, q querier, kitchenID uuid.UUID) ([]models.Promotion, error) {
	rows, err := q.QueryContext(ctx, s.db.Rebind(`
		SELECT id, kitchen_id, platform, description, starts_at, ends_at
		FROM promotions WHERE kitchen_id = ?
		ORDER BY starts_at DESC`), kitchenID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query promotions: %w", err)
	}
	defer rows.Close()
	return collectPromotions(rows)
}

// ActivePromotion pairs a promotion with its owning kitchen.
type ActivePromotion struct {
	models.Promotion
	KitchenName string `json:"kitchen_name"`
}

// ActivePromotions returns promotions whose window contains now, joined
// with the owning kitchen's name. The window check runs in Go so the SQL
// stays dialect-neutral and the clock stays injected.
func (s *Store) ActivePromotions(ctx context.Context, now time.Time) ([]ActivePromotion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.kitchen_id, p.platform, p.description, p.starts_at, p.ends_at, k.name
		FROM promotions p
		JOIN kitchens k ON k.id = p.kitchen_id
		ORDER BY p.starts_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active promotions: %w", err)
	}
	defer rows.Close()

	var active []ActivePromotion
	for rows.Next() {
		var ap ActivePromotion
		var id, kid string
		var ends sql.NullTime
		if err := rows.Scan(&id, &kid, &ap.Platform, &ap.Description, &ap.StartsAt, &ends, &ap.KitchenName); err != nil {
			return nil, fmt.Errorf("failed to scan active promotion: %w", err)
		}
		if ap.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse promotion id: %w", err)
		}
		if ap.KitchenID, err = uuid.Parse(kid); err != nil {
			return nil, fmt.Errorf("failed to parse kitchen id: %w", err)
		}
		if ends.Valid {
			ap.EndsAt = &ends.Time
		}
		if ap.ActiveAt(now) {
			active = append(active, ap)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate active promotions: %w", err)
	}
	return active, nil
}

// ReviewExists reports whether a review with this platform external id is
// already stored. Reviews without an external id are never deduplicated.
func (s *Store) ReviewExists(tx *sql.Tx, kitchenID uuid.UUID, platform, externalID string) (bool, error) {
	if externalID == "" {
		return false, nil
	}
	var exists bool
	err := tx.QueryRow(s.db.Rebind(`
		SELECT EXISTS (
			SELECT 1 FROM reviews
			WHERE kitchen_id = ? AND platform = ? AND external_id = ?
		)`), kitchenID.String(), platform, externalID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check review: %w", err)
	}
	return exists, nil
}

func (s *Store) AddReview(tx *sql.Tx, r *models.Review) error {
	_, err := tx.Exec(s.db.Rebind(`
		INSERT INTO reviews (id, kitchen_id, platform, external_id, rating, body, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		r.ID.String(), r.KitchenID.String(), r.Platform, r.ExternalID, r.Rating, r.Body, r.ReviewedAt)
	if err != nil {
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func (s *Store) Reviews(ctx context.Context, kitchenID uuid.UUID, limit int) ([]models.Review, error) {
	return s.reviews(ctx, s.db, kitchenID, limit)
}

// ReviewsTx is the in-transaction variant for snapshot reads.
func (s *Store) ReviewsTx(ctx context.Context, tx *sql.Tx, kitchenID uuid.UUID, limit int) ([]models.Review, error) {
	return s.reviews(ctx, tx, kitchenID, limit)
}

func (s *Store) reviews(ctx context.Context, q querier, kitchenID uuid.UUID, limit int) ([]models.Review, error) {
	rows, err := q.QueryContext(ctx, s.db.Rebind(`
		SELECT id, kitchen_id, platform, external_id, rating, body, reviewed_at
		FROM reviews WHERE kitchen_id = ?
		ORDER BY reviewed_at DESC
		LIMIT ?`), kitchenID.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []models.Review
	for rows.Next() {
		var r models.Review
		var id, kid string
		if err := rows.Scan(&id, &kid, &r.Platform, &r.ExternalID, &r.Rating, &r.Body, &r.ReviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse review id: %w", err)
		}
		if r.KitchenID, err = uuid.Parse(kid); err != nil {
			return nil, fmt.Errorf("failed to parse kitchen id: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return reviews, nil
}

func collectMenuItems(rows *sql.Rows) ([]models.MenuItem, error) {
	var items []models.MenuItem
	for rows.Next() {
		var m models.MenuItem
		var id, kid string
		var price sql.NullFloat64
		if err := rows.Scan(&id, &kid, &m.Name, &m.NormalizedName, &price, &m.Cuisine, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan menu item: %w", err)
		}
		var err error
		if m.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse menu item id: %w", err)
		}
		if m.KitchenID, err = uuid.Parse(kid); err != nil {
			return nil, fmt.Errorf("failed to parse kitchen id: %w", err)
		}
		if price.Valid {
			m.Price = &price.Float64
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate menu items: %w", err)
	}
	return items, nil
}

func collectPromotions(rows *sql.Rows) ([]models.Promotion, error) {
	var promos []models.Promotion
	for rows.Next() {
		var p models.Promotion
		var id, kid string
		var ends sql.NullTime
		if err := rows.Scan(&id, &kid, &p.Platform, &p.Description, &p.StartsAt, &ends); err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		var err error
		if p.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("failed to parse promotion id: %w", err)
		}
		if p.KitchenID, err = uuid.Parse(kid); err != nil {
			return nil, fmt.Errorf("failed to parse kitchen id: %w", err)
		}
		if ends.Valid {
			p.EndsAt = &ends.Time
		}
		promos = append(promos, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate promotions: %w", err)
	}
	return promos, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// windowsOverlap treats a nil end as open-ended.
func windowsOverlap(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time) bool {
	if aEnd != nil && !bStart.Before(*aEnd) {
		return false
	}
	if bEnd != nil && !aStart.Before(*bEnd) {
		return false
	}
	return true
}
