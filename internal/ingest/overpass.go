// Package ingest fetches road segment data from an external map data
// provider and materializes it into the graph store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/civicmaps/civicroute/internal/errors"
	"github.com/civicmaps/civicroute/internal/geo"
	"github.com/civicmaps/civicroute/internal/models"
)

// nonDriveable lists highway classes excluded from the routing graph.
var nonDriveable = []string{"footway", "cycleway", "path", "service", "track", "steps"}

// Way is one road segment: an ordered run of external node identifiers.
type Way struct {
	ID      int64
	NodeIDs []int64
	Tags    map[string]string
}

// RoadData is the decoded provider response for one bounding box.
type RoadData struct {
	Ways  []Way
	Nodes map[int64]models.Coordinate
}

// RoadFetcher abstracts the map data provider so the builder can be
// tested against canned data.
type RoadFetcher interface {
	FetchRoads(ctx context.Context, bounds geo.Bounds) (*RoadData, error)
}

// OverpassClient fetches driveable ways from an Overpass API endpoint.
// Requests are rate limited and run under a bounded timeout; any failure
// aborts the whole import rather than partially completing.
type OverpassClient struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewOverpassClient creates an Overpass API client.
func NewOverpassClient(endpoint string, timeout time.Duration, requestsPerSec float64) *OverpassClient {
	if requestsPerSec <= 0 {
		requestsPerSec = 1
	}
	return &OverpassClient{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(requestsPerSec), 1),
		logger:     slog.Default().With("component", "overpass"),
	}
}

// FetchRoads queries driveable ways plus their member nodes in the box.
func (c *OverpassClient) FetchRoads(ctx context.Context, bounds geo.Bounds) (*RoadData, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("overpass rate limiter: %w", err)
	}

	query := buildQuery(bounds)
	c.logger.Debug("fetching road data",
		"min_lat", bounds.MinLat, "max_lat", bounds.MaxLat,
		"min_lng", bounds.MinLng, "max_lng", bounds.MaxLng)

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeExternal, "overpass request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &apperrors.Error{
			Type:    apperrors.TypeExternal,
			Message: fmt.Sprintf("overpass returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	var decoded overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, apperrors.Wrap(err, apperrors.TypeExternal, "decode overpass response")
	}

	data := decodeElements(decoded.Elements)
	c.logger.Info("road data fetched", "ways", len(data.Ways), "nodes", len(data.Nodes))
	return data, nil
}

// buildQuery renders the Overpass QL statement for driveable roads in a
// box. Overpass bbox order is south,west,north,east.
func buildQuery(b geo.Bounds) string {
	bbox := fmt.Sprintf("%f,%f,%f,%f", b.MinLat, b.MinLng, b.MaxLat, b.MaxLng)
	exclude := strings.Join(nonDriveable, "|")
	return fmt.Sprintf(`[out:json][timeout:60];
way["highway"]["highway"!~"^(%s)$"](%s);
(._;>;);
out body;`, exclude, bbox)
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type  string            `json:"type"`
	ID    int64             `json:"id"`
	Lat   float64           `json:"lat"`
	Lon   float64           `json:"lon"`
	Nodes []int64           `json:"nodes"`
	Tags  map[string]string `json:"tags"`
}

// decodeElements splits the flat element list into ways and a node
// coordinate lookup.
func decodeElements(elements []overpassElement) *RoadData {
	data := &RoadData{Nodes: make(map[int64]models.Coordinate)}
	for _, el := range elements {
		switch el.Type {
		case "node":
			data.Nodes[el.ID] = models.Coordinate{Lat: el.Lat, Lng: el.Lon}
		case "way":
			data.Ways = append(data.Ways, Way{ID: el.ID, NodeIDs: el.Nodes, Tags: el.Tags})
		}
	}
	return data
}
