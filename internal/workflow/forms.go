package workflow

import (
	"slices"
	"strconv"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/fare"
	"github.com/commutewise/console/internal/waypoint"
)

// DefaultETAMinutes prefills the travel-time field of a new route.
const DefaultETAMinutes = "15"

// NodeForm is the stop editor. StopID is uuid.Nil for a stop not yet saved.
type NodeForm struct {
	StopID   uuid.UUID             `json:"stop_id"`
	Name     string                `json:"name"`
	Category domain.StopCategory   `json:"category"`
	Zone     string                `json:"zone"`
	Vehicles []domain.VehicleClass `json:"vehicles"`
	Location domain.Coordinate     `json:"location"`
}

// NewNodeForm returns the form for a stop placed at loc.
func NewNodeForm(loc domain.Coordinate) *NodeForm {
	return &NodeForm{
		Category: domain.CategoryStopPoint,
		Zone:     domain.UnassignedZone,
		Vehicles: []domain.VehicleClass{domain.VehicleTricycle},
		Location: loc,
	}
}

// NodeFormFromStop loads a stored stop into the editor.
func NodeFormFromStop(s domain.Stop) *NodeForm {
	f := &NodeForm{
		StopID:   s.ID,
		Name:     s.Name,
		Category: s.Category,
		Zone:     s.Zone,
		Vehicles: slices.Clone(s.Vehicles),
		Location: s.Location,
	}
	if f.Zone == "" {
		f.Zone = domain.UnassignedZone
	}
	if f.Vehicles == nil {
		f.Vehicles = []domain.VehicleClass{}
	}
	return f
}

// Clone returns a deep copy.
func (f *NodeForm) Clone() *NodeForm {
	if f == nil {
		return nil
	}
	out := *f
	out.Vehicles = slices.Clone(f.Vehicles)
	return &out
}

// Stop converts the form into the value handed to the stop store.
func (f *NodeForm) Stop() domain.Stop {
	return domain.Stop{
		ID:       f.StopID,
		Name:     f.Name,
		Category: f.Category,
		Location: f.Location,
		Zone:     f.Zone,
		Vehicles: slices.Clone(f.Vehicles),
	}
}

// RouteForm is the route editor.
type RouteForm struct {
	RouteID     uuid.UUID         `json:"route_id"`
	Name        string            `json:"name"`
	Fare        fare.Fields       `json:"fare"`
	ETAMinutes  string            `json:"eta_minutes"`
	StrictStops bool              `json:"strict_stops"`
	Stops       waypoint.Sequence `json:"stops"`
}

// NewRouteForm returns the template for a new route.
func NewRouteForm() *RouteForm {
	return &RouteForm{
		Fare:       fare.Defaults(),
		ETAMinutes: DefaultETAMinutes,
		Stops:      waypoint.Template(),
	}
}

// RouteFormFromRoute loads a stored route into the editor. A route stored
// without a waypoint list falls back to its origin and destination.
func RouteFormFromRoute(r domain.Route) *RouteForm {
	stops := waypoint.Sequence(slices.Clone(r.Waypoints))
	if len(stops) == 0 {
		stops = waypoint.Sequence{r.Origin, r.Destination}
	}
	for len(stops) < waypoint.MinStops {
		stops = append(stops, uuid.Nil)
	}
	return &RouteForm{
		RouteID:     r.ID,
		Name:        r.Name,
		Fare:        fare.FromRoute(r),
		ETAMinutes:  strconv.Itoa(r.ETAMinutes),
		StrictStops: r.StrictStops,
		Stops:       stops,
	}
}

// Clone returns a deep copy.
func (f *RouteForm) Clone() *RouteForm {
	if f == nil {
		return nil
	}
	out := *f
	out.Stops = f.Stops.Clone()
	return &out
}

// Pending is the one-slot snapshot of an interrupted editor. It is nil,
// a RouteDetour, a NodeDetour or a StoredRouteDetour.
type Pending interface {
	pending()
}

// RouteDetour holds the route form while the operator picks or creates the
// stop for Slot.
type RouteDetour struct {
	Snapshot *RouteForm
	Slot     int
}

// NodeDetour holds the stop form while the operator picks a new location.
type NodeDetour struct {
	Snapshot *NodeForm
}

// StoredRouteDetour marks a map pick for one slot of a saved route, started
// from the route list rather than the route editor. No form is open.
type StoredRouteDetour struct {
	RouteID uuid.UUID
	Slot    int
}

func (RouteDetour) pending()       {}
func (NodeDetour) pending()        {}
func (StoredRouteDetour) pending() {}

// PendingSummary describes the pending detour in a View.
type PendingSummary struct {
	Kind    string     `json:"kind"`
	Slot    *int       `json:"slot,omitempty"`
	RouteID *uuid.UUID `json:"route_id,omitempty"`
}

func summarize(p Pending) *PendingSummary {
	switch p := p.(type) {
	case RouteDetour:
		slot := p.Slot
		return &PendingSummary{Kind: "route", Slot: &slot}
	case NodeDetour:
		return &PendingSummary{Kind: "node"}
	case StoredRouteDetour:
		slot, id := p.Slot, p.RouteID
		return &PendingSummary{Kind: "stored_route", Slot: &slot, RouteID: &id}
	}
	return nil
}
