package handler

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/waypoint"
	"github.com/commutewise/console/internal/workflow"
)

type stopRef struct {
	StopID uuid.UUID `json:"stop_id"`
}

type newRouteRequest struct {
	Origin uuid.UUID `json:"origin"`
}

type strictStopsRequest struct {
	Strict bool `json:"strict"`
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type waypointsRequest struct {
	Waypoints waypoint.Sequence `json:"waypoints"`
}

type dragRequest struct {
	Phase workflow.DragPhase `json:"phase"`
	Index int                `json:"index"`
}

func (s *Server) respondView(w http.ResponseWriter, r *http.Request, v workflow.View, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetWorkflow handles GET /workflow.
func (s *Server) GetWorkflow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.d.Workflow.View())
}

// MapClick handles POST /workflow/map-click with a {lat, lng} body.
func (s *Server) MapClick(w http.ResponseWriter, r *http.Request) {
	var at domain.Coordinate
	if !decodeJSON(w, r, &at, false) {
		return
	}
	v, err := s.d.Workflow.MapClick(at)
	s.respondView(w, r, v, err)
}

// MarkerClick handles POST /workflow/marker-click.
func (s *Server) MarkerClick(w http.ResponseWriter, r *http.Request) {
	var body stopRef
	if !decodeJSON(w, r, &body, false) {
		return
	}
	v, err := s.d.Workflow.MarkerClick(r.Context(), body.StopID)
	s.respondView(w, r, v, err)
}

// CancelWorkflow handles POST /workflow/cancel.
func (s *Server) CancelWorkflow(w http.ResponseWriter, r *http.Request) {
	v, err := s.d.Workflow.Cancel()
	s.respondView(w, r, v, err)
}

// SaveWorkflow handles POST /workflow/save. It saves the open node or route form.
func (s *Server) SaveWorkflow(w http.ResponseWriter, r *http.Request) {
	v, err := s.d.Workflow.Save(r.Context())
	s.respondView(w, r, v, err)
}

// EditStop handles POST /workflow/stops/{id}/edit.
func (s *Server) EditStop(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	v, err := s.d.Workflow.EditStop(r.Context(), id)
	s.respondView(w, r, v, err)
}

// NewRoute handles POST /workflow/routes/new. The body is optional; an
// origin prefills the first waypoint.
func (s *Server) NewRoute(w http.ResponseWriter, r *http.Request) {
	var body newRouteRequest
	if !decodeJSON(w, r, &body, true) {
		return
	}
	v, err := s.d.Workflow.NewRoute(r.Context(), body.Origin)
	s.respondView(w, r, v, err)
}

// EditRoute handles POST /workflow/routes/{id}/edit.
func (s *Server) EditRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	v, err := s.d.Workflow.EditRoute(r.Context(), id)
	s.respondView(w, r, v, err)
}

// UpdateRouteForm handles PATCH /workflow/route-form.
func (s *Server) UpdateRouteForm(w http.ResponseWriter, r *http.Request) {
	var p workflow.RoutePatch
	if !decodeJSON(w, r, &p, false) {
		return
	}
	v, err := s.d.Workflow.UpdateRoute(p)
	s.respondView(w, r, v, err)
}

// ToggleFreeRide handles POST /workflow/route-form/free-ride.
func (s *Server) ToggleFreeRide(w http.ResponseWriter, r *http.Request) {
	v, err := s.d.Workflow.ToggleFreeRide()
	s.respondView(w, r, v, err)
}

// SetStrictStops handles POST /workflow/route-form/strict-stops.
func (s *Server) SetStrictStops(w http.ResponseWriter, r *http.Request) {
	var body strictStopsRequest
	if !decodeJSON(w, r, &body, false) {
		return
	}
	v, err := s.d.Workflow.SetStrictStops(body.Strict)
	s.respondView(w, r, v, err)
}

// InsertSlot handles POST /workflow/route-form/slots.
func (s *Server) InsertSlot(w http.ResponseWriter, r *http.Request) {
	v, err := s.d.Workflow.InsertSlot()
	s.respondView(w, r, v, err)
}

// SetSlot handles PUT /workflow/route-form/slots/{index}.
func (s *Server) SetSlot(w http.ResponseWriter, r *http.Request) {
	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}
	var body stopRef
	if !decodeJSON(w, r, &body, false) {
		return
	}
	v, err := s.d.Workflow.SetSlot(index, body.StopID)
	s.respondView(w, r, v, err)
}

// RemoveSlot handles DELETE /workflow/route-form/slots/{index}.
func (s *Server) RemoveSlot(w http.ResponseWriter, r *http.Request) {
	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}
	v, err := s.d.Workflow.RemoveSlot(index)
	s.respondView(w, r, v, err)
}

// PickFromMap handles POST /workflow/route-form/slots/{index}/pick.
func (s *Server) PickFromMap(w http.ResponseWriter, r *http.Request) {
	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}
	v, err := s.d.Workflow.PickFromMap(index)
	s.respondView(w, r, v, err)
}

// PickForRoute handles POST /workflow/routes/{id}/waypoints/{index}/pick.
// The next marker click writes the chosen stop into the saved route.
func (s *Server) PickForRoute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}
	v, err := s.d.Workflow.PickForRoute(r.Context(), id, index)
	s.respondView(w, r, v, err)
}

// UpdateRouteWaypoints handles PUT /routes/{id}/waypoints.
func (s *Server) UpdateRouteWaypoints(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var body waypointsRequest
	if !decodeJSON(w, r, &body, false) {
		return
	}
	route, err := s.d.Workflow.UpdateWaypoints(r.Context(), id, body.Waypoints)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, routeToResponse(route))
}

// CreateStopForSlot handles POST /workflow/route-form/slots/{index}/create-stop.
func (s *Server) CreateStopForSlot(w http.ResponseWriter, r *http.Request) {
	index, ok := pathInt(w, r, "index")
	if !ok {
		return
	}
	v, err := s.d.Workflow.CreateStopForSlot(index)
	s.respondView(w, r, v, err)
}

// Reorder handles POST /workflow/route-form/reorder.
func (s *Server) Reorder(w http.ResponseWriter, r *http.Request) {
	var body reorderRequest
	if !decodeJSON(w, r, &body, false) {
		return
	}
	v, err := s.d.Workflow.Reorder(body.From, body.To)
	s.respondView(w, r, v, err)
}

// Drag handles POST /workflow/route-form/drag.
func (s *Server) Drag(w http.ResponseWriter, r *http.Request) {
	var body dragRequest
	if !decodeJSON(w, r, &body, false) {
		return
	}
	v, err := s.d.Workflow.Drag(body.Phase, body.Index)
	s.respondView(w, r, v, err)
}

// UpdateNodeForm handles PATCH /workflow/node-form.
func (s *Server) UpdateNodeForm(w http.ResponseWriter, r *http.Request) {
	var p workflow.NodePatch
	if !decodeJSON(w, r, &p, false) {
		return
	}
	v, err := s.d.Workflow.UpdateNode(p)
	s.respondView(w, r, v, err)
}

// MovePin handles POST /workflow/node-form/move-pin.
func (s *Server) MovePin(w http.ResponseWriter, r *http.Request) {
	v, err := s.d.Workflow.MovePin()
	s.respondView(w, r, v, err)
}
