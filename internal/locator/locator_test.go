package locator_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"AldebaranChat/internal/locator"
)

func TestHaversineIdenticalPoints(t *testing.T) {
	p := locator.Coord{Lat: 6.9271, Lon: 79.8612}
	if d := locator.Haversine(p, p); d != 0 {
		t.Fatalf("distance between identical points = %v, want 0", d)
	}
}

func TestHaversineOneDegree(t *testing.T) {
	d := locator.Haversine(locator.Coord{}, locator.Coord{Lon: 1})
	want := locator.EarthRadiusKm * math.Pi / 180
	if math.Abs(d-want) > 1e-9 {
		t.Fatalf("one degree along the equator = %v, want %v", d, want)
	}
}

func geocoder(t *testing.T, places string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("q") != "hospital in Kandy" || q.Get("format") != "json" || q.Get("limit") != "10" ||
			q.Get("addressdetails") != "1" || q.Get("accept-language") != "en" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("geocoder must not receive a credential")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(places))
	}))
}

func TestSearchSortsNearestFirst(t *testing.T) {
	places, _ := json.Marshal([]map[string]string{
		{"display_name": "Far Hospital, Somewhere", "lat": "0", "lon": "5"},
		{"display_name": "Near Hospital, Elsewhere", "lat": "0", "lon": "1"},
	})
	srv := geocoder(t, string(places), http.StatusOK)
	defer srv.Close()

	c := locator.New(locator.NewHTTP(srv.URL), nil)
	got, err := c.Search(context.Background(), "Kandy", &locator.Coord{Lat: 0, Lon: 0})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
	if got[0].Name != "Near Hospital" || got[1].Name != "Far Hospital" {
		t.Fatalf("wrong order: %q then %q", got[0].Name, got[1].Name)
	}
	if got[0].DistanceKm == nil || *got[0].DistanceKm >= *got[1].DistanceKm {
		t.Fatalf("distances not ascending")
	}
}

func TestSearchWithoutOriginKeepsOrder(t *testing.T) {
	srv := geocoder(t, `[{"display_name":"B","lat":"0","lon":"5"},{"display_name":"A","lat":"0","lon":"1"},{"display_name":"Bad","lat":"x","lon":"1"}]`, http.StatusOK)
	defer srv.Close()

	c := locator.New(locator.NewHTTP(srv.URL), nil)
	got, err := c.Search(context.Background(), "Kandy", nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 2 || got[0].Name != "B" || got[0].DistanceKm != nil {
		t.Fatalf("unexpected results %+v", got)
	}
}

func TestSearchFailures(t *testing.T) {
	empty := geocoder(t, `[]`, http.StatusOK)
	defer empty.Close()
	broken := geocoder(t, `oops`, http.StatusBadGateway)
	defer broken.Close()

	ctx := context.Background()
	if _, err := locator.New(locator.NewHTTP(empty.URL), nil).Search(ctx, "Kandy", nil); !errors.Is(err, locator.ErrNoResults) {
		t.Fatalf("expected ErrNoResults, got %v", err)
	}
	if _, err := locator.New(locator.NewHTTP(broken.URL), nil).Search(ctx, "Kandy", nil); !errors.Is(err, locator.ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
	if _, err := locator.New(nil, nil).Search(ctx, "  ", nil); !errors.Is(err, locator.ErrNoLocation) {
		t.Fatalf("expected ErrNoLocation, got %v", err)
	}
}

func TestShortNameAndMapsURL(t *testing.T) {
	if got := locator.ShortName("General Hospital, Main Street, Kandy"); got != "General Hospital" {
		t.Fatalf("ShortName = %q", got)
	}
	if got := locator.ShortName("Solo"); got != "Solo" {
		t.Fatalf("ShortName = %q", got)
	}
	want := "https://www.google.com/maps/search/?api=1&query=7.2906,80.6337"
	if got := locator.MapsURL(locator.Coord{Lat: 7.2906, Lon: 80.6337}); got != want {
		t.Fatalf("MapsURL = %q, want %q", got, want)
	}
}
