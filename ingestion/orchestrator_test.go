package ingestion_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/codewidneha/kitchenhub/config"
	"github.com/codewidneha/kitchenhub/database"
	"github.com/codewidneha/kitchenhub/database/dbhelper"
	"github.com/codewidneha/kitchenhub/ingestion"
	"github.com/codewidneha/kitchenhub/models"
	"github.com/codewidneha/kitchenhub/reconciler"
	"github.com/codewidneha/kitchenhub/scraper"
)

var testDBCounter int64

// fakeAdapter serves a canned batch or a canned error.
type fakeAdapter struct {
	platform string
	listings []models.RawListing
	err      error
}

func (f *fakeAdapter) Platform() string { return f.platform }

func (f *fakeAdapter) Fetch(ctx context.Context, location string, lat, lng float64) ([]models.RawListing, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listings, nil
}

func newRecon(t *testing.T) (*reconciler.Reconciler, *dbhelper.Store) {
	t.Helper()
	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:ingest%d?mode=memory&cache=shared&_foreign_keys=on", n)

	db, err := database.Connect(database.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("could not open database connection: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Migrate(); err != nil {
		t.Fatalf("could not run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	store := dbhelper.NewStore(db)
	clock := func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	cfg := config.ReconcilerConfig{MatchRadiusM: 50, NameSimilarity: 0.6}
	return reconciler.New(store, cfg, clock), store
}

func kitchenIDForSource(t *testing.T, store *dbhelper.Store, platform, externalID string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := store.Tx(func(tx *sql.Tx) error {
		found, ok, err := store.SourceByExternalID(tx, platform, externalID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no source for %s/%s", platform, externalID)
		}
		id = found
		return nil
	})
	if err != nil {
		t.Fatalf("looking up source %s/%s: %v", platform, externalID, err)
	}
	return id
}

func listing(id, name string, lat, lng float64) models.RawListing {
	return models.RawListing{
		"external_id":   id,
		"name":          name,
		"latitude":      lat,
		"longitude":     lng,
		"rating":        4.2,
		"total_reviews": 30,
	}
}

const origin = "Connaught Place"

func TestRun_AllPlatformsSucceed(t *testing.T) {
	recon, store := newRecon(t)

	o := ingestion.New([]scraper.Adapter{
		&fakeAdapter{platform: "swiggy", listings: []models.RawListing{
			listing("sw-1", "Biryani Blues", 28.7041, 77.1025),
			listing("sw-2", "Momo Station", 28.7100, 77.1100),
		}},
		&fakeAdapter{platform: "zomato", listings: []models.RawListing{
			// Same kitchen as sw-1, should merge rather than create.
			listing("zo-9", "Biryani Blues", 28.70412, 77.10252),
		}},
	}, recon, 5*time.Second)

	summary, err := o.Run(context.Background(), ingestion.Origin{Location: origin, Latitude: 28.7041, Longitude: 77.1025})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	totals := summary.Totals()
	if totals.Fetched != 3 || totals.Normalized != 3 {
		t.Errorf("totals = %+v, want 3 fetched and normalized", totals)
	}
	if totals.Created != 2 || totals.Merged != 1 {
		t.Errorf("created = %d merged = %d, want 2 and 1", totals.Created, totals.Merged)
	}
	if failed := summary.Failed(); len(failed) != 0 {
		t.Errorf("failed platforms = %v, want none", failed)
	}

	id := kitchenIDForSource(t, store, "swiggy", "sw-1")
	sources, err := store.Sources(context.Background(), id)
	if err != nil {
		t.Fatalf("Sources failed: %v", err)
	}
	if len(sources) != 2 {
		t.Errorf("merged kitchen has %d sources, want 2", len(sources))
	}
}

func TestRun_OneAdapterFailing(t *testing.T) {
	recon, _ := newRecon(t)

	boom := errors.New("upstream returned 503")
	o := ingestion.New([]scraper.Adapter{
		&fakeAdapter{platform: "swiggy", err: boom},
		&fakeAdapter{platform: "zomato", listings: []models.RawListing{
			listing("zo-1", "Rolls Republic", 28.7041, 77.1025),
		}},
	}, recon, 5*time.Second)

	summary, err := o.Run(context.Background(), ingestion.Origin{Location: origin})
	if err != nil {
		t.Fatalf("Run should absorb a single platform failure, got: %v", err)
	}

	if failed := summary.Failed(); len(failed) != 1 || failed[0] != "swiggy" {
		t.Errorf("failed platforms = %v, want [swiggy]", failed)
	}
	totals := summary.Totals()
	if totals.Created != 1 {
		t.Errorf("created = %d, want the zomato listing persisted", totals.Created)
	}

	for _, p := range summary.Platforms {
		if p.Platform == "swiggy" && p.FailureReason == "" {
			t.Errorf("swiggy result has no failure reason")
		}
	}
}

func TestRun_InvalidListingsSkipped(t *testing.T) {
	recon, _ := newRecon(t)

	bad := models.RawListing{"name": "No Coordinates Cafe"}
	o := ingestion.New([]scraper.Adapter{
		&fakeAdapter{platform: "swiggy", listings: []models.RawListing{
			bad,
			listing("sw-1", "Valid Kitchen", 28.7041, 77.1025),
		}},
	}, recon, 5*time.Second)

	summary, err := o.Run(context.Background(), ingestion.Origin{Location: origin})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	totals := summary.Totals()
	if totals.Fetched != 2 || totals.Invalid != 1 || totals.Created != 1 {
		t.Errorf("totals = %+v, want 2 fetched, 1 invalid, 1 created", totals)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	recon, _ := newRecon(t)

	o := ingestion.New([]scraper.Adapter{
		&fakeAdapter{platform: "swiggy", listings: []models.RawListing{
			listing("sw-1", "Kitchen One", 28.7041, 77.1025),
		}},
	}, recon, 5*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := o.Run(ctx, ingestion.Origin{Location: origin})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if summary == nil {
		t.Fatal("summary should still be returned on cancellation")
	}
}
