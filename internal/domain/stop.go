// Package domain contains the core data types for the route console.
// It is imported by every other internal package (repo, service, workflow,
// handler) and depends only on uuid and orb value types.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// UnassignedZone is stored instead of an empty administrative zone.
const UnassignedZone = "Unassigned"

// StopCategory is the closed set of stop kinds.
type StopCategory string

const (
	CategoryStopPoint  StopCategory = "stop_point"
	CategoryTerminal   StopCategory = "terminal"
	CategorySchool     StopCategory = "school"
	CategoryHospital   StopCategory = "hospital"
	CategoryMall       StopCategory = "mall"
	CategoryRestaurant StopCategory = "restaurant"
)

// Valid reports whether c is one of the known categories.
func (c StopCategory) Valid() bool {
	switch c {
	case CategoryStopPoint, CategoryTerminal, CategorySchool,
		CategoryHospital, CategoryMall, CategoryRestaurant:
		return true
	}
	return false
}

// VehicleClass is a vehicle type a terminal serves or a route runs.
type VehicleClass string

const (
	VehicleTricycle VehicleClass = "tricycle"
	VehicleJeep     VehicleClass = "jeep"
	VehicleBus      VehicleClass = "bus"
	VehicleEBus     VehicleClass = "ebus"
)

// Valid reports whether v is one of the known vehicle classes.
func (v VehicleClass) Valid() bool {
	switch v {
	case VehicleTricycle, VehicleJeep, VehicleBus, VehicleEBus:
		return true
	}
	return false
}

// Coordinate is a WGS84 point.
type Coordinate struct {
	Lat float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"gte=-180,lte=180"`
}

// Stop is a named point of interest usable as a route waypoint.
// Vehicles is only meaningful when Category is CategoryTerminal.
type Stop struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name" validate:"required,max=200"`
	Category  StopCategory   `json:"category" validate:"required"`
	Location  Coordinate     `json:"location"`
	Zone      string         `json:"zone"`
	Vehicles  []VehicleClass `json:"vehicles"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// IsTerminal reports whether the stop carries permitted vehicle classes.
func (s Stop) IsTerminal() bool { return s.Category == CategoryTerminal }
