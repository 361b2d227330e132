// Package locator finds hospitals near a place through a geocoding service.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"AldebaranChat/internal/api"
	"AldebaranChat/internal/backend"
)

var (
	ErrNoResults   = errors.New("no hospitals found in this location")
	ErrFetchFailed = errors.New("failed to fetch hospital data")
	ErrNoLocation  = errors.New("no location given")
)

// SearchLimit is how many places one search asks for
const SearchLimit = 10

// Requester is the transport the locator sends its query through
type Requester interface {
	Do(ctx context.Context, method, path string, in, out any) error
}

// Hospital is one search result
type Hospital struct {
	Name        string
	DisplayName string
	Position    Coord
	// DistanceKm is set only when the searcher's position was known
	DistanceKm *float64
}

// MapsURL links to the hospital on a map
func (h Hospital) MapsURL() string {
	return MapsURL(h.Position)
}

// Client queries the geocoder
type Client struct {
	http   Requester
	logger *slog.Logger
}

// New returns a locator sending requests through r
func New(r Requester, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{http: r, logger: logger}
}

// NewHTTP builds the geocoder transport for baseURL
func NewHTTP(baseURL string, opts ...api.Option) *api.Client {
	opts = append([]api.Option{
		api.WithService("geocoder"),
		api.WithUserAgent("aldebaran-cli"),
	}, opts...)
	return api.New(baseURL, opts...)
}

// Search looks up hospitals in location. With an origin the results carry a
// distance and are ordered nearest first; otherwise the service's order is
// kept.
func (c *Client) Search(ctx context.Context, location string, origin *Coord) ([]Hospital, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, ErrNoLocation
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", "hospital in "+location)
	q.Set("limit", strconv.Itoa(SearchLimit))
	q.Set("addressdetails", "1")
	q.Set("accept-language", "en")

	var places []backend.Place
	if err := c.http.Do(ctx, http.MethodGet, "/search?"+q.Encode(), nil, &places); err != nil {
		c.logger.Error("hospital search failed", "location", location, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	hospitals := make([]Hospital, 0, len(places))
	for _, p := range places {
		lat, errLat := strconv.ParseFloat(p.Lat, 64)
		lon, errLon := strconv.ParseFloat(p.Lon, 64)
		if errLat != nil || errLon != nil {
			c.logger.Warn("skipping place with bad coordinates", "name", p.DisplayName, "lat", p.Lat, "lon", p.Lon)
			continue
		}
		h := Hospital{
			Name:        ShortName(p.DisplayName),
			DisplayName: p.DisplayName,
			Position:    Coord{Lat: lat, Lon: lon},
		}
		if origin != nil {
			d := Haversine(*origin, h.Position)
			h.DistanceKm = &d
		}
		hospitals = append(hospitals, h)
	}

	if len(hospitals) == 0 {
		c.logger.Info("no hospitals found", "location", location)
		return nil, ErrNoResults
	}

	if origin != nil {
		SortByDistance(hospitals)
	}
	c.logger.Info("hospitals found", "location", location, "count", len(hospitals), "sorted", origin != nil)
	return hospitals, nil
}

// SortByDistance orders hospitals nearest first. Entries without a distance
// go last in their original order.
func SortByDistance(hs []Hospital) {
	sort.SliceStable(hs, func(i, j int) bool {
		a, b := hs[i].DistanceKm, hs[j].DistanceKm
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}

// ShortName is the first comma-separated part of a display name
func ShortName(displayName string) string {
	name, _, _ := strings.Cut(displayName, ",")
	return strings.TrimSpace(name)
}

// MapsURL is a map search link for c
func MapsURL(c Coord) string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%s,%s",
		strconv.FormatFloat(c.Lat, 'f', -1, 64), strconv.FormatFloat(c.Lon, 'f', -1, 64))
}
