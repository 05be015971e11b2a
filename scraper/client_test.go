package scraper_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/codewidneha/kitchenhub/config"
	"github.com/codewidneha/kitchenhub/scraper"
)

func fastRetry(attempts int) config.AdapterConfig {
	return config.AdapterConfig{
		TimeoutSec:        2,
		MaxAttempts:       attempts,
		InitialDelayMs:    1,
		MaxDelayMs:        5,
		BackoffMultiplier: 2.0,
	}
}

func TestFetch_EnvelopePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dapi/restaurants/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("location"); got != "Connaught Place" {
			t.Errorf("location = %q", got)
		}
		if got := r.Header.Get("User-Agent"); got == "" {
			t.Error("request carries no User-Agent")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"kitchens": [{"name": "Biryani Blues", "latitude": 28.7, "longitude": 77.1}]}`))
	}))
	defer srv.Close()

	a := scraper.NewSwiggy(srv.URL, fastRetry(1))
	listings, err := a.Fetch(context.Background(), "Connaught Place", 28.7, 77.1)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(listings) != 1 {
		t.Fatalf("listings = %d, want 1", len(listings))
	}
	if listings[0]["name"] != "Biryani Blues" {
		t.Errorf("name = %v", listings[0]["name"])
	}
}

func TestFetch_BareArrayPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name": "Outlet One"}, {"name": "Outlet Two"}]`))
	}))
	defer srv.Close()

	a := scraper.NewEatSure(srv.URL, fastRetry(1))
	listings, err := a.Fetch(context.Background(), "Delhi", 28.7, 77.1)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("listings = %d, want 2", len(listings))
	}
}

func TestFetch_RetriesThenSucceeds(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"restaurants": [{"name": "Back Up"}]}`))
	}))
	defer srv.Close()

	a := scraper.NewZomato(srv.URL, fastRetry(3))
	listings, err := a.Fetch(context.Background(), "Delhi", 28.7, 77.1)
	if err != nil {
		t.Fatalf("Fetch failed after retries: %v", err)
	}
	if len(listings) != 1 {
		t.Errorf("listings = %d, want 1", len(listings))
	}
	if got := atomic.LoadInt64(&calls); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestFetch_ExhaustedRetriesReturnAdapterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := scraper.NewSwiggy(srv.URL, fastRetry(2))
	_, err := a.Fetch(context.Background(), "Delhi", 28.7, 77.1)
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}

	var adapterErr *scraper.AdapterError
	if !errors.As(err, &adapterErr) {
		t.Fatalf("error type = %T, want *AdapterError", err)
	}
	if adapterErr.Platform != "swiggy" {
		t.Errorf("Platform = %q", adapterErr.Platform)
	}
	if !errors.Is(err, scraper.ErrUnexpectedStatusCode) {
		t.Errorf("error %v does not wrap ErrUnexpectedStatusCode", err)
	}
}

func TestFetch_MissingEnvelopeKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	a := scraper.NewZomato(srv.URL, fastRetry(1))
	_, err := a.Fetch(context.Background(), "Delhi", 28.7, 77.1)
	if err == nil {
		t.Fatal("expected an error for a payload missing the envelope key")
	}
}
