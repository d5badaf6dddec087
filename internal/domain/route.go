package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// Route is a directed path through an ordered list of stops.
// Origin and Destination mirror the first and last waypoint; call
// SyncEndpoints before persisting. Path is nil when geometry resolution
// failed or found no path.
type Route struct {
	ID              uuid.UUID      `json:"id"`
	Name            string         `json:"name" validate:"required,max=200"`
	Mode            VehicleClass   `json:"mode" validate:"required"`
	Waypoints       []uuid.UUID    `json:"waypoints" validate:"min=2"`
	Origin          uuid.UUID      `json:"origin"`
	Destination     uuid.UUID      `json:"destination"`
	Path            orb.LineString `json:"-"`
	DistanceMeters  float64        `json:"distance_meters" validate:"gte=0"`
	DurationSeconds float64        `json:"duration_seconds" validate:"gte=0"`
	ETAMinutes      int            `json:"eta_minutes" validate:"gte=0"`
	Fare            float64        `json:"fare" validate:"gte=0"`
	DiscountedFare  float64        `json:"discounted_fare" validate:"gte=0"`
	StrictStops     bool           `json:"strict_stops"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// SyncEndpoints copies the first and last waypoint into Origin and Destination.
func (r *Route) SyncEndpoints() {
	if len(r.Waypoints) == 0 {
		r.Origin, r.Destination = uuid.Nil, uuid.Nil
		return
	}
	r.Origin = r.Waypoints[0]
	r.Destination = r.Waypoints[len(r.Waypoints)-1]
}

// References reports whether stopID appears anywhere on the route.
func (r Route) References(stopID uuid.UUID) bool {
	if r.Origin == stopID || r.Destination == stopID {
		return true
	}
	for _, id := range r.Waypoints {
		if id == stopID {
			return true
		}
	}
	return false
}

// RouteSaveResult is returned by the route gateway. WaypointsOmitted is set
// when the store rejected the waypoint list and the route was written
// without it.
type RouteSaveResult struct {
	Route            Route
	WaypointsOmitted bool
}
