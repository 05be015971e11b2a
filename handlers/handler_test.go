package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codewidneha/kitchenhub/config"
	"github.com/codewidneha/kitchenhub/database"
	"github.com/codewidneha/kitchenhub/database/dbhelper"
	"github.com/codewidneha/kitchenhub/handlers"
	"github.com/codewidneha/kitchenhub/ingestion"
	"github.com/codewidneha/kitchenhub/models"
	"github.com/codewidneha/kitchenhub/query"
	"github.com/codewidneha/kitchenhub/reconciler"
	"github.com/codewidneha/kitchenhub/scraper"
	"github.com/codewidneha/kitchenhub/server"
)

var testDBCounter int64

var testNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

type stubAdapter struct {
	platform string
	listings []models.RawListing
}

func (s *stubAdapter) Platform() string { return s.platform }

func (s *stubAdapter) Fetch(ctx context.Context, location string, lat, lng float64) ([]models.RawListing, error) {
	return s.listings, nil
}

// newAPI wires the real stack over an in-memory database and a stubbed
// platform adapter, so tests exercise the routes end to end.
func newAPI(t *testing.T, listings []models.RawListing) *server.Server {
	t.Helper()
	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:api%d?mode=memory&cache=shared&_foreign_keys=on", n)

	db, err := database.Connect(database.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("could not open database connection: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Migrate(); err != nil {
		t.Fatalf("could not run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := func() time.Time { return testNow }
	store := dbhelper.NewStore(db)
	recon := reconciler.New(store, config.ReconcilerConfig{MatchRadiusM: 50, NameSimilarity: 0.6}, clock)
	ingestor := ingestion.New([]scraper.Adapter{
		&stubAdapter{platform: "swiggy", listings: listings},
	}, recon, 5*time.Second)
	engine := query.NewEngine(store, clock)

	return server.SetupRoutes(handlers.New(ingestor, engine, clock))
}

func doJSON(t *testing.T, srv *server.Server, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			// List responses decode to nil here; tests that need them
			// decode the body themselves.
			decoded = nil
		}
	}
	return rec, decoded
}

func sampleListings() []models.RawListing {
	return []models.RawListing{
		{
			"external_id": "sw-1", "name": "Biryani Blues",
			"latitude": 28.7041, "longitude": 77.1025,
			"rating": 4.4, "total_reviews": 120,
			"menu_items": []interface{}{
				map[string]interface{}{"name": "Hyderabadi Biryani", "price": 260.0, "cuisine": "Hyderabadi"},
			},
		},
		{
			"external_id": "sw-2", "name": "Momo Station",
			"latitude": 28.7400, "longitude": 77.1500,
			"rating": 4.1, "total_reviews": 45,
		},
	}
}

func scrapeBody() string {
	return `{"location": "Connaught Place", "latitude": 28.7041, "longitude": 77.1025}`
}

func TestScrapeEndpoint(t *testing.T) {
	srv := newAPI(t, sampleListings())

	rec, body := doJSON(t, srv, http.MethodPost, "/api/scrape", scrapeBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	totals, ok := body["totals"].(map[string]interface{})
	if !ok {
		t.Fatalf("response has no totals: %v", body)
	}
	if totals["created"] != float64(2) {
		t.Errorf("created = %v, want 2", totals["created"])
	}
	if failed, ok := body["failed_platforms"].([]interface{}); ok && len(failed) != 0 {
		t.Errorf("failed_platforms = %v, want none", failed)
	}
}

func TestScrapeEndpoint_BadRequests(t *testing.T) {
	srv := newAPI(t, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{{`},
		{"missing coordinates", `{"location": "Delhi"}`},
		{"latitude out of range", `{"location": "Delhi", "latitude": 95, "longitude": 77}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, _ := doJSON(t, srv, http.MethodPost, "/api/scrape", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv := newAPI(t, sampleListings())
	if rec, _ := doJSON(t, srv, http.MethodPost, "/api/scrape", scrapeBody()); rec.Code != http.StatusOK {
		t.Fatalf("seeding scrape failed: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/kitchens/search?latitude=28.7041&longitude=77.1025&radius=2", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var hits []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &hits); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d, want only the kitchen inside 2 km", len(hits))
	}
	if hits[0]["name"] != "Biryani Blues" {
		t.Errorf("name = %v", hits[0]["name"])
	}

	rec2, _ := doJSON(t, srv, http.MethodGet, "/api/kitchens/search?longitude=77.1", "")
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("missing latitude status = %d, want 400", rec2.Code)
	}

	// strconv.ParseFloat accepts "NaN", so the range check has to catch it.
	rec3, _ := doJSON(t, srv, http.MethodGet, "/api/kitchens/search?latitude=NaN&longitude=77.1", "")
	if rec3.Code != http.StatusBadRequest {
		t.Errorf("NaN latitude status = %d, want 400", rec3.Code)
	}
}

func TestKitchenDetailEndpoint(t *testing.T) {
	srv := newAPI(t, sampleListings())
	if rec, _ := doJSON(t, srv, http.MethodPost, "/api/scrape", scrapeBody()); rec.Code != http.StatusOK {
		t.Fatalf("seeding scrape failed: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/kitchens/search?latitude=28.7041&longitude=77.1025&radius=2", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	var hits []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &hits); err != nil || len(hits) == 0 {
		t.Fatalf("could not find a seeded kitchen: %v", err)
	}
	id := hits[0]["id"].(string)

	rec2, body := doJSON(t, srv, http.MethodGet, "/api/kitchens/"+id, "")
	if rec2.Code != http.StatusOK {
		t.Fatalf("status = %d", rec2.Code)
	}
	if body["name"] != "Biryani Blues" {
		t.Errorf("name = %v", body["name"])
	}
	items, ok := body["menu_items"].([]interface{})
	if !ok || len(items) != 1 {
		t.Errorf("menu_items = %v, want 1 item", body["menu_items"])
	}

	rec3, _ := doJSON(t, srv, http.MethodGet, "/api/kitchens/not-a-uuid", "")
	if rec3.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rec3.Code)
	}

	rec4, _ := doJSON(t, srv, http.MethodGet, "/api/kitchens/00000000-0000-0000-0000-000000000001", "")
	if rec4.Code != http.StatusNotFound {
		t.Errorf("unknown id status = %d, want 404", rec4.Code)
	}
}

func TestMenuSearchEndpoint(t *testing.T) {
	srv := newAPI(t, sampleListings())
	if rec, _ := doJSON(t, srv, http.MethodPost, "/api/scrape", scrapeBody()); rec.Code != http.StatusOK {
		t.Fatalf("seeding scrape failed: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/menu/search?q=biryani", nil)
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var matches []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &matches); err != nil {
		t.Fatalf("could not decode response: %v", err)
	}
	if len(matches) != 1 || matches[0]["name"] != "Biryani Blues" {
		t.Errorf("matches = %v", matches)
	}

	rec2, _ := doJSON(t, srv, http.MethodGet, "/api/menu/search", "")
	if rec2.Code != http.StatusBadRequest {
		t.Errorf("empty query status = %d, want 400", rec2.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := newAPI(t, nil)

	rec, body := doJSON(t, srv, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v", body["status"])
	}
}
