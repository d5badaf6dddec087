package handler

import (
	"net/http"

	"github.com/paulmach/orb/geojson"

	"github.com/commutewise/console/internal/domain"
)

// Pagination describes one page of a list response.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// Page is the envelope of every paginated list.
type Page[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// RouteResponse is a route with its resolved path as a GeoJSON LineString,
// or null when no path was found.
type RouteResponse struct {
	domain.Route
	Path *geojson.Geometry `json:"path"`
}

func routeToResponse(r domain.Route) RouteResponse {
	out := RouteResponse{Route: r}
	if len(r.Path) > 0 {
		out.Path = geojson.NewGeometry(r.Path)
	}
	return out
}

func paginationParams(w http.ResponseWriter, r *http.Request) (domain.PaginationParams, bool) {
	page, ok := queryInt(w, r, "page")
	if !ok {
		return domain.PaginationParams{}, false
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return domain.PaginationParams{}, false
	}
	return domain.NewPaginationParams(page, limit), true
}

// ListStops handles GET /stops.
// Supports ?page= and ?limit= query parameters (defaults: page=1, limit=20, max=100).
func (s *Server) ListStops(w http.ResponseWriter, r *http.Request) {
	params, ok := paginationParams(w, r)
	if !ok {
		return
	}
	stops, total, err := s.d.Stops.List(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Page[domain.Stop]{
		Data:       stops,
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: total},
	})
}

// ListZones handles GET /stops/zones.
func (s *Server) ListZones(w http.ResponseWriter, r *http.Request) {
	zones, err := s.d.Stops.Zones(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"zones": zones})
}

// GetStop handles GET /stops/{id}.
func (s *Server) GetStop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	st, err := s.d.Stops.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ListStopRoutes handles GET /stops/{id}/routes: every route that starts,
// ends or stops at the stop.
func (s *Server) ListStopRoutes(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	routes, err := s.d.Routes.Referencing(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data := make([]RouteResponse, len(routes))
	for i, rt := range routes {
		data[i] = routeToResponse(rt)
	}
	writeJSON(w, http.StatusOK, map[string][]RouteResponse{"data": data})
}

// ListRoutes handles GET /routes.
func (s *Server) ListRoutes(w http.ResponseWriter, r *http.Request) {
	params, ok := paginationParams(w, r)
	if !ok {
		return
	}
	routes, total, err := s.d.Routes.List(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	data := make([]RouteResponse, len(routes))
	for i, rt := range routes {
		data[i] = routeToResponse(rt)
	}
	writeJSON(w, http.StatusOK, Page[RouteResponse]{
		Data:       data,
		Pagination: Pagination{Page: params.Page, Limit: params.Limit, Total: total},
	})
}

// GetRoute handles GET /routes/{id}.
func (s *Server) GetRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	rt, err := s.d.Routes.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routeToResponse(rt))
}
