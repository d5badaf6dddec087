// Package geometry resolves the drivable path through an ordered list of
// coordinates using an OSRM-compatible routing service.
package geometry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/commutewise/console/internal/domain"
)

const (
	DefaultBaseURL = "https://router.project-osrm.org"
	DefaultProfile = "driving"
)

// Result is a resolved path with its total distance and duration.
type Result struct {
	Path            orb.LineString
	DistanceMeters  float64
	DurationSeconds float64
}

// Observer receives the outcome label of every request ("ok", "no_path", "error").
type Observer interface {
	GeometryRequest(outcome string)
}

// OSRMClient calls the OSRM route service. It never retries.
type OSRMClient struct {
	httpClient *http.Client
	baseURL    string
	profile    string
	observer   Observer
}

// NewOSRMClient constructs a client. A nil httpClient gets a 10 second
// timeout; empty baseURL and profile fall back to the public demo server.
func NewOSRMClient(httpClient *http.Client, baseURL, profile string, observer Observer) *OSRMClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if profile == "" {
		profile = DefaultProfile
	}
	return &OSRMClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		profile:    profile,
		observer:   observer,
	}
}

type routeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Geometry *geojson.Geometry `json:"geometry"`
		Distance float64           `json:"distance"`
		Duration float64           `json:"duration"`
	} `json:"routes"`
}

// Resolve requests one path through coords in order. A nil Result with a nil
// error means the service answered but found no path.
func (c *OSRMClient) Resolve(ctx context.Context, coords []domain.Coordinate) (*Result, error) {
	res, err := c.resolve(ctx, coords)
	switch {
	case err != nil:
		c.observe("error")
	case res == nil:
		c.observe("no_path")
	default:
		c.observe("ok")
	}
	return res, err
}

func (c *OSRMClient) resolve(ctx context.Context, coords []domain.Coordinate) (*Result, error) {
	if len(coords) < 2 {
		return nil, fmt.Errorf("geometry: need at least 2 coordinates, got %d", len(coords))
	}

	endpoint := fmt.Sprintf("%s/route/v1/%s/%s?%s",
		c.baseURL, url.PathEscape(c.profile), joinCoords(coords),
		url.Values{"overview": {"full"}, "geometries": {"geojson"}}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("geometry: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geometry: do request: %w", err)
	}
	defer resp.Body.Close()

	var payload routeResponse
	if resp.StatusCode >= 300 {
		// OSRM answers NoRoute with 400 and a JSON body.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if json.Unmarshal(body, &payload) == nil && payload.Code == "NoRoute" {
			return nil, nil
		}
		return nil, fmt.Errorf("geometry: http %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("geometry: decode: %w", err)
	}
	switch payload.Code {
	case "Ok":
	case "NoRoute", "NoSegment":
		return nil, nil
	default:
		return nil, fmt.Errorf("geometry: code=%s: %s", payload.Code, payload.Message)
	}
	if len(payload.Routes) == 0 {
		return nil, nil
	}

	route := payload.Routes[0]
	if route.Geometry == nil {
		return nil, errors.New("geometry: route without geometry")
	}
	line, ok := route.Geometry.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("geometry: unexpected geometry type %s", route.Geometry.Type)
	}
	return &Result{Path: line, DistanceMeters: route.Distance, DurationSeconds: route.Duration}, nil
}

func (c *OSRMClient) observe(outcome string) {
	if c.observer != nil {
		c.observer.GeometryRequest(outcome)
	}
}

// joinCoords renders "lng,lat;lng,lat" in input order.
func joinCoords(coords []domain.Coordinate) string {
	parts := make([]string, len(coords))
	for i, p := range coords {
		parts[i] = strconv.FormatFloat(p.Lng, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
	}
	return strings.Join(parts, ";")
}
