// Package fare derives discounted fares and applies the free-ride toggle to
// the fare fields of the route editor. Values are kept as the strings the
// operator typed so an empty field stays distinguishable from zero.
package fare

import (
	"math"
	"strconv"
	"strings"

	"github.com/commutewise/console/internal/domain"
)

const (
	// DiscountRate is applied to the base fare to derive the discounted fare.
	DiscountRate = 0.80

	DefaultFare     = "15"
	DefaultDiscount = "12"

	// FreeRideMode is the vehicle class forced while free ride is on.
	FreeRideMode = domain.VehicleBus
)

// DeriveDiscount returns round(base * 0.8) formatted as an integer, or "" when
// base is empty or not a number. Halves round up.
func DeriveDiscount(base string) string {
	v, ok := parse(base)
	if !ok {
		return ""
	}
	return format(math.Floor(v*DiscountRate + 0.5))
}

// Fields is the fare section of the route form.
type Fields struct {
	Fare     string              `json:"fare"`
	Discount string              `json:"discounted_fare"`
	Mode     domain.VehicleClass `json:"mode"`
	FreeRide bool                `json:"free_ride"`
}

// Defaults returns the fare section of a new route.
func Defaults() Fields {
	return Fields{Fare: DefaultFare, Discount: DefaultDiscount, Mode: domain.VehicleTricycle}
}

// FromRoute rebuilds the fare section of a stored route. Free ride is
// inferred from a zero fare on the free-ride vehicle class.
func FromRoute(r domain.Route) Fields {
	return Fields{
		Fare:     format(r.Fare),
		Discount: format(r.DiscountedFare),
		Mode:     r.Mode,
		FreeRide: r.Fare == 0 && r.Mode == FreeRideMode,
	}
}

// SetFare stores the base fare and re-derives the discount. Ignored while
// free ride is on.
func (f Fields) SetFare(v string) Fields {
	if f.FreeRide {
		return f
	}
	f.Fare = v
	f.Discount = DeriveDiscount(v)
	return f
}

// SetDiscount overrides the derived discount until the fare changes again.
// Ignored while free ride is on.
func (f Fields) SetDiscount(v string) Fields {
	if f.FreeRide {
		return f
	}
	f.Discount = v
	return f
}

// SetMode changes the vehicle class.
func (f Fields) SetMode(m domain.VehicleClass) Fields {
	f.Mode = m
	return f
}

// ToggleFreeRide flips the free-ride flag. Turning it on zeroes both fares
// and forces FreeRideMode; turning it off refills empty or zero fields with
// the defaults and leaves the mode alone.
func (f Fields) ToggleFreeRide() Fields {
	f.FreeRide = !f.FreeRide
	if f.FreeRide {
		f.Fare, f.Discount, f.Mode = "0", "0", FreeRideMode
		return f
	}
	if blank(f.Fare) {
		f.Fare = DefaultFare
	}
	if blank(f.Discount) {
		f.Discount = DefaultDiscount
	}
	return f
}

// Amounts returns the numeric fares to persist. Empty fields fall back to the
// defaults; a free ride is always zero.
func (f Fields) Amounts() (fare, discount float64) {
	if f.FreeRide {
		return 0, 0
	}
	fare, ok := parse(f.Fare)
	if !ok {
		fare, _ = parse(DefaultFare)
	}
	discount, ok = parse(f.Discount)
	if !ok {
		discount, _ = parse(DefaultDiscount)
	}
	return fare, discount
}

func parse(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func blank(s string) bool {
	v, ok := parse(s)
	return !ok || v == 0
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
