package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"GreyPulse/pkg/logger"
)

func TestHTTPAdapter_ParsesArrayPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"company": "Acme Industries Ltd", "gmp": 45.5, "updated_at": "2026-08-29T09:00:00Z"},
			{"name": "Zenith Power IPO", "premium": "₹12"},
			{"company": "Broken Row", "gmp": "n/a"}
		]`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter("test", srv.URL, 5*time.Second, logger.Nop())
	obs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(obs) != 2 {
		t.Fatalf("expected 2 parsable rows, got %d", len(obs))
	}
	if obs[0].IPOKey != "acme industries" {
		t.Errorf("expected normalized key, got %q", obs[0].IPOKey)
	}
	if obs[0].Value != 45.5 {
		t.Errorf("expected 45.5, got %.2f", obs[0].Value)
	}
	want := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	if !obs[0].ObservedAt.Equal(want) {
		t.Errorf("expected timestamp from payload, got %v", obs[0].ObservedAt)
	}
	if obs[1].IPOKey != "zenith power" {
		t.Errorf("expected stripped ipo suffix, got %q", obs[1].IPOKey)
	}
	if obs[1].Value != 12 {
		t.Errorf("expected currency prefix stripped, got %.2f", obs[1].Value)
	}
}

func TestHTTPAdapter_ParsesWrappedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [{"company": "Acme", "gmp": "1,250"}]}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter("test", srv.URL, 5*time.Second, logger.Nop())
	obs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("expected 1 row, got %d", len(obs))
	}
	if obs[0].Value != 1250 {
		t.Errorf("expected thousands separator stripped, got %.2f", obs[0].Value)
	}
}

func TestHTTPAdapter_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusBadGateway)
	}))
	defer srv.Close()

	a := NewHTTPAdapter("test", srv.URL, 5*time.Second, logger.Nop())
	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for 502")
	}
}

func TestHTTPAdapter_AllRowsUnparsable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"company": "Acme", "gmp": "n/a"}]`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter("test", srv.URL, 5*time.Second, logger.Nop())
	if _, err := a.Fetch(context.Background()); err == nil {
		t.Fatal("expected error when every row is unparsable")
	}
}

func TestMockAdapter_StampsFetchTime(t *testing.T) {
	a := NewMockAdapter("mock", map[string]float64{"Acme Industries": 40})
	before := time.Now()
	obs, err := a.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("expected 1 observation, got %d", len(obs))
	}
	if obs[0].ObservedAt.Before(before) {
		t.Errorf("expected fetch-time stamp, got %v", obs[0].ObservedAt)
	}
	if obs[0].IPOKey != "acme industries" {
		t.Errorf("expected normalized key, got %q", obs[0].IPOKey)
	}
}
