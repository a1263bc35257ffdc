// Package places resolves a coordinate plus keyword into candidate
// restaurants with reviews, and fetches photo URLs for selected places.
// Search rides the Places API v1 (searchNearby/searchText); photos go
// through the legacy Place Details API via the googlemaps client, which has
// no v1 bindings.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"ai-restaurant-analysis/internal/models"
	"ai-restaurant-analysis/pkg/config"
	errs "ai-restaurant-analysis/pkg/errors"
	"ai-restaurant-analysis/pkg/geography"
	"ai-restaurant-analysis/pkg/logging"
)

const (
	searchNearbyURL = "https://places.googleapis.com/v1/places:searchNearby"
	searchTextURL   = "https://places.googleapis.com/v1/places:searchText"
	photoBaseURL    = "https://maps.googleapis.com/maps/api/place/photo"

	maxReviewsPerPlace = 10
)

var fieldMask = strings.Join([]string{
	"places.id",
	"places.displayName",
	"places.formattedAddress",
	"places.userRatingCount",
	"places.priceLevel",
	"places.googleMapsUri",
	"places.location",
	"places.reviews",
}, ",")

// Searcher is the places collaborator the pipeline depends on.
type Searcher interface {
	SearchNearby(ctx context.Context, lat, lng, radiusMeters float64, keyword string, maxResults int) ([]models.Place, error)
	FetchPhotos(ctx context.Context, placeID string, maxCount int) ([]string, error)
}

// NewFromConfig returns the live client, or the fixture-backed one when
// GOOGLE_PLACES_API_MODE=mock.
func NewFromConfig(cfg *config.Config, log *logging.Logger) (Searcher, error) {
	if cfg.PlacesAPIMode == "mock" {
		return NewFixtureClient(cfg.PlacesMockFile, log)
	}
	return NewClient(cfg.PlacesAPIKey, log)
}

type Client struct {
	apiKey     string
	httpClient *http.Client
	mapsClient *maps.Client
	log        *logging.ComponentLogger

	// overridable in tests
	nearbyURL string
	textURL   string
}

func NewClient(apiKey string, log *logging.Logger) (*Client, error) {
	mc, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, errs.NewExternal("places.NewClient", "places", "init maps client", err)
	}
	return &Client{
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		mapsClient: mc,
		log:        log.WithComponent("places"),
		nearbyURL:  searchNearbyURL,
		textURL:    searchTextURL,
	}, nil
}

// v1 wire types, only the fields the field mask requests.

type v1SearchResponse struct {
	Places []v1Place `json:"places"`
}

type v1Place struct {
	ID              string `json:"id"`
	DisplayName     v1Text `json:"displayName"`
	FormattedAddr   string `json:"formattedAddress"`
	UserRatingCount int    `json:"userRatingCount"`
	PriceLevel      string `json:"priceLevel"`
	GoogleMapsURI   string `json:"googleMapsUri"`
	Location        *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"location"`
	Reviews []struct {
		Rating            float64 `json:"rating"`
		Text              v1Text  `json:"text"`
		AuthorAttribution struct {
			DisplayName string `json:"displayName"`
		} `json:"authorAttribution"`
	} `json:"reviews"`
}

type v1Text struct {
	Text string `json:"text"`
}

// SearchNearby returns candidate places around a point. An empty keyword
// uses the pure nearby search; otherwise the keyword becomes a text query
// biased to the same circle.
func (c *Client) SearchNearby(ctx context.Context, lat, lng, radiusMeters float64, keyword string, maxResults int) ([]models.Place, error) {
	circle := map[string]any{
		"circle": map[string]any{
			"center": map[string]any{"latitude": lat, "longitude": lng},
			"radius": radiusMeters,
		},
	}

	endpoint := c.nearbyURL
	payload := map[string]any{
		"includedTypes":       []string{"restaurant"},
		"maxResultCount":      maxResults,
		"locationRestriction": circle,
	}
	if keyword != "" {
		endpoint = c.textURL
		payload = map[string]any{
			"textQuery":      keyword,
			"includedType":   "restaurant",
			"maxResultCount": maxResults,
			"locationBias":   circle,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.NewExternal("places.SearchNearby", "places", "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errs.NewExternal("places.SearchNearby", "places", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)
	req.Header.Set("Accept-Language", "ko")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errs.NewExternal("places.SearchNearby", "places", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errs.NewExternal("places.SearchNearby", "places",
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errs.NewExternal("places.SearchNearby", "places", "read body", err)
	}

	var parsed v1SearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errs.NewExternal("places.SearchNearby", "places", "malformed response JSON", err)
	}
	return withinRadius(convertPlaces(parsed.Places), lat, lng, radiusMeters), nil
}

// withinRadius drops places outside the search circle. Text search only
// biases toward the circle, so its results can land well past the radius.
// Places without a location are kept.
func withinRadius(in []models.Place, lat, lng, radiusMeters float64) []models.Place {
	center := geography.Point{X: lat, Y: lng}
	out := in[:0]
	for _, p := range in {
		if p.Latitude != nil && p.Longitude != nil &&
			!geography.WithinRadius(center, geography.Point{X: *p.Latitude, Y: *p.Longitude}, radiusMeters) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// FetchPhotos returns up to maxCount photo URLs for a place. Photo failures
// degrade to an empty list; a missing photo never fails a run.
func (c *Client) FetchPhotos(ctx context.Context, placeID string, maxCount int) ([]string, error) {
	details, err := c.mapsClient.PlaceDetails(ctx, &maps.PlaceDetailsRequest{
		PlaceID:  placeID,
		Fields:   []maps.PlaceDetailsFieldMask{maps.PlaceDetailsFieldMaskPhotos},
		Language: "ko",
	})
	if err != nil {
		c.log.Warn("photo lookup failed", logging.PlaceID(placeID), logging.Err(err))
		return nil, nil
	}

	urls := make([]string, 0, maxCount)
	for _, photo := range details.Photos {
		if len(urls) >= maxCount {
			break
		}
		q := url.Values{}
		q.Set("maxwidth", "400")
		q.Set("photo_reference", photo.PhotoReference)
		q.Set("key", c.apiKey)
		urls = append(urls, photoBaseURL+"?"+q.Encode())
	}
	return urls, nil
}

func convertPlaces(in []v1Place) []models.Place {
	out := make([]models.Place, 0, len(in))
	for _, p := range in {
		place := models.Place{
			ID:          p.ID,
			Name:        p.DisplayName.Text,
			Address:     p.FormattedAddr,
			RatingCount: p.UserRatingCount,
			PriceLevel:  p.PriceLevel,
			MapsURI:     p.GoogleMapsURI,
		}
		if p.Location != nil {
			lat, lng := p.Location.Latitude, p.Location.Longitude
			place.Latitude, place.Longitude = &lat, &lng
		}
		for i, r := range p.Reviews {
			if i >= maxReviewsPerPlace {
				break
			}
			place.Reviews = append(place.Reviews, models.Review{
				Text:   r.Text.Text,
				Author: r.AuthorAttribution.DisplayName,
				Rating: r.Rating,
			})
		}
		out = append(out, place)
	}
	return out
}

// Dedup merges keyword query results, keeping the first occurrence of each
// place id and the overall encounter order.
func Dedup(batches ...[]models.Place) []models.Place {
	seen := make(map[string]bool)
	var out []models.Place
	for _, batch := range batches {
		for _, p := range batch {
			if p.ID == "" || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}

// FixtureClient serves a canned v1 search response from disk. Used for
// offline development and tests (GOOGLE_PLACES_API_MODE=mock).
type FixtureClient struct {
	places []models.Place
	log    *logging.ComponentLogger
}

func NewFixtureClient(path string, log *logging.Logger) (*FixtureClient, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewValidation("places.NewFixtureClient", "fixture file missing", err)
	}
	var parsed v1SearchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errs.NewValidation("places.NewFixtureClient", "fixture file malformed", err)
	}
	return &FixtureClient{places: convertPlaces(parsed.Places), log: log.WithComponent("places")}, nil
}

func (f *FixtureClient) SearchNearby(_ context.Context, _, _, _ float64, _ string, maxResults int) ([]models.Place, error) {
	if maxResults > 0 && maxResults < len(f.places) {
		return append([]models.Place{}, f.places[:maxResults]...), nil
	}
	return append([]models.Place{}, f.places...), nil
}

func (f *FixtureClient) FetchPhotos(context.Context, string, int) ([]string, error) {
	return nil, nil
}
