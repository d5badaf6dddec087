// Package workflow is the editor state machine of the route console. It owns
// the stop and route forms, the single pending detour, and the map
// interaction mode, and it is the only code that changes any of them.
//
// Persistence and geometry calls run outside the machine lock under a
// cancellable context. While one is in flight every other mutation returns
// domain.ErrBusy. Cancel and LockSession abort it and its late result is
// dropped.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/geometry"
	"github.com/commutewise/console/internal/notice"
	"github.com/commutewise/console/internal/waypoint"
)

// StopStore is the stop side of the entity store gateway.
type StopStore interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Stop, error)
	Lookup(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]domain.Stop, error)
	Save(ctx context.Context, s domain.Stop) (domain.Stop, error)
}

// RouteStore is the route side of the entity store gateway.
type RouteStore interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Route, error)
	Save(ctx context.Context, r domain.Route) (domain.RouteSaveResult, error)
}

// Resolver finds the path through an ordered coordinate list. A nil result
// with a nil error means no path exists.
type Resolver interface {
	Resolve(ctx context.Context, coords []domain.Coordinate) (*geometry.Result, error)
}

// Notifier shows operator notices.
type Notifier interface {
	Show(kind notice.Kind, message string)
}

// TransitionObserver is told about every state change.
type TransitionObserver interface {
	WorkflowTransition(from, to string)
}

// Deps are the collaborators of a Machine. Observer and Logger may be nil.
type Deps struct {
	Stops    StopStore
	Routes   RouteStore
	Resolver Resolver
	Notifier Notifier
	Observer TransitionObserver
	Logger   *slog.Logger
}

// View is a read-only snapshot of the machine for rendering.
type View struct {
	State         State           `json:"state"`
	EditorVisible bool            `json:"editor_visible"`
	Instruction   string          `json:"instruction,omitempty"`
	Busy          bool            `json:"busy"`
	Node          *NodeForm       `json:"node,omitempty"`
	Route         *RouteForm      `json:"route,omitempty"`
	Pending       *PendingSummary `json:"pending,omitempty"`
}

// RoutePatch carries route form field edits. Nil fields are left alone.
// Fare is applied before Discount so an explicit discount wins.
type RoutePatch struct {
	Name       *string              `json:"name"`
	Mode       *domain.VehicleClass `json:"mode"`
	ETAMinutes *string              `json:"eta_minutes"`
	Fare       *string              `json:"fare"`
	Discount   *string              `json:"discounted_fare"`
}

// NodePatch carries stop form field edits. Nil fields are left alone.
type NodePatch struct {
	Name     *string                `json:"name"`
	Category *domain.StopCategory   `json:"category"`
	Zone     *string                `json:"zone"`
	Vehicles *[]domain.VehicleClass `json:"vehicles"`
}

// DragPhase is one step of a drag gesture on the waypoint list.
type DragPhase string

const (
	DragStart DragPhase = "start"
	DragEnter DragPhase = "enter"
	DragDrop  DragPhase = "drop"
)

// Machine is the console editor. All methods are safe for concurrent use.
type Machine struct {
	stops    StopStore
	routes   RouteStore
	resolver Resolver
	notifier Notifier
	observer TransitionObserver
	log      *slog.Logger

	mu      sync.Mutex
	state   State
	node    *NodeForm
	route   *RouteForm
	pending Pending
	drag    waypoint.DragTracker

	busy     bool
	ioCancel context.CancelFunc
	epoch    uint64
}

// New returns a Machine in the idle state.
func New(deps Deps) *Machine {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Machine{
		stops:    deps.Stops,
		routes:   deps.Routes,
		resolver: deps.Resolver,
		notifier: deps.Notifier,
		observer: deps.Observer,
		log:      log,
		state:    StateIdle,
	}
}

// View returns the current snapshot.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

// MapClick handles a click on empty map canvas. It opens a new stop at the
// coordinate when idle or placing, moves the pin when relocating, and is
// ignored while picking a stop.
func (m *Machine) MapClick(at domain.Coordinate) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if at.Lat < -90 || at.Lat > 90 || at.Lng < -180 || at.Lng > 180 {
		return m.viewLocked(), fmt.Errorf("%w: coordinate out of range", domain.ErrValidation)
	}

	switch m.state {
	case StatePickingOnMap:
		if err := m.guardLocked(StatePickingOnMap); err != nil {
			return m.viewLocked(), err
		}
		return m.viewLocked(), nil
	case StateRelocating:
		if err := m.guardLocked(StateEditingNode); err != nil {
			return m.viewLocked(), err
		}
		detour, ok := m.pending.(NodeDetour)
		if !ok {
			return m.viewLocked(), fmt.Errorf("%w: no stop awaiting relocation", domain.ErrInvalidTransition)
		}
		m.node = detour.Snapshot.Clone()
		m.node.Location = at
		m.pending = nil
		m.moveLocked(StateEditingNode)
		return m.viewLocked(), nil
	case StateIdle, StatePlacingNode:
		if err := m.guardLocked(StateEditingNode); err != nil {
			return m.viewLocked(), err
		}
		m.node = NewNodeForm(at)
		m.moveLocked(StateEditingNode)
		return m.viewLocked(), nil
	}
	if err := m.guardLocked(m.state); err != nil {
		return m.viewLocked(), err
	}
	return m.viewLocked(), fmt.Errorf("%w: map is covered by the %s editor", domain.ErrInvalidTransition, m.state)
}

// MarkerClick handles a click on an existing stop marker. While picking it
// fills the pending slot and reopens the route editor, or writes the stop
// straight into a saved route when the pick started from the route list;
// while idle it opens the stop for editing.
func (m *Machine) MarkerClick(ctx context.Context, stopID uuid.UUID) (View, error) {
	m.mu.Lock()
	if m.state == StateIdle {
		m.mu.Unlock()
		return m.EditStop(ctx, stopID)
	}
	if stored, ok := m.pending.(StoredRouteDetour); ok && m.state == StatePickingOnMap {
		return m.fillStoredSlot(ctx, stored, stopID)
	}
	defer m.mu.Unlock()

	if err := m.guardLocked(StateEditingRoute); err != nil {
		return m.viewLocked(), err
	}
	detour, ok := m.pending.(RouteDetour)
	if m.state != StatePickingOnMap || !ok {
		return m.viewLocked(), fmt.Errorf("%w: marker clicks are not accepted in %s", domain.ErrInvalidTransition, m.state)
	}
	form := detour.Snapshot.Clone()
	stops, err := form.Stops.SetSlot(detour.Slot, stopID)
	if err != nil {
		return m.viewLocked(), fmt.Errorf("workflow.Machine.MarkerClick: %w", err)
	}
	form.Stops = stops
	m.route = form
	m.pending = nil
	m.moveLocked(StateEditingRoute)
	return m.viewLocked(), nil
}

// EditStop loads a stored stop into the stop editor.
func (m *Machine) EditStop(ctx context.Context, id uuid.UUID) (View, error) {
	m.mu.Lock()
	if err := m.guardLocked(StateEditingNode); err != nil {
		defer m.mu.Unlock()
		return m.viewLocked(), err
	}
	if m.state != StateIdle {
		defer m.mu.Unlock()
		return m.viewLocked(), fmt.Errorf("%w: close the %s editor first", domain.ErrInvalidTransition, m.state)
	}
	ioCtx, epoch := m.beginLocked(ctx)
	m.mu.Unlock()

	stop, err := m.stops.Get(ioCtx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if aborted := m.finishLocked(epoch); aborted != nil {
		return m.viewLocked(), aborted
	}
	if err != nil {
		return m.viewLocked(), fmt.Errorf("workflow.Machine.EditStop: %w", err)
	}
	m.node = NodeFormFromStop(stop)
	m.moveLocked(StateEditingNode)
	return m.viewLocked(), nil
}

// NewRoute opens the route editor on an empty template. A non-nil origin is
// placed in the first slot, and a terminal origin lends its first vehicle
// class to the route mode.
func (m *Machine) NewRoute(ctx context.Context, origin uuid.UUID) (View, error) {
	m.mu.Lock()
	if err := m.routeOpenableLocked(); err != nil {
		defer m.mu.Unlock()
		return m.viewLocked(), err
	}
	if origin == uuid.Nil {
		defer m.mu.Unlock()
		m.openRouteLocked(NewRouteForm())
		return m.viewLocked(), nil
	}
	ioCtx, epoch := m.beginLocked(ctx)
	m.mu.Unlock()

	stop, err := m.stops.Get(ioCtx, origin)

	m.mu.Lock()
	defer m.mu.Unlock()
	if aborted := m.finishLocked(epoch); aborted != nil {
		return m.viewLocked(), aborted
	}
	if err != nil {
		return m.viewLocked(), fmt.Errorf("workflow.Machine.NewRoute: %w", err)
	}
	form := NewRouteForm()
	form.Stops[0] = stop.ID
	if stop.IsTerminal() && len(stop.Vehicles) > 0 {
		form.Fare = form.Fare.SetMode(stop.Vehicles[0])
	}
	m.openRouteLocked(form)
	return m.viewLocked(), nil
}

// EditRoute loads a stored route into the route editor.
func (m *Machine) EditRoute(ctx context.Context, id uuid.UUID) (View, error) {
	m.mu.Lock()
	if err := m.routeOpenableLocked(); err != nil {
		defer m.mu.Unlock()
		return m.viewLocked(), err
	}
	ioCtx, epoch := m.beginLocked(ctx)
	m.mu.Unlock()

	route, err := m.routes.Get(ioCtx, id)

	m.mu.Lock()
	defer m.mu.Unlock()
	if aborted := m.finishLocked(epoch); aborted != nil {
		return m.viewLocked(), aborted
	}
	if err != nil {
		return m.viewLocked(), fmt.Errorf("workflow.Machine.EditRoute: %w", err)
	}
	m.openRouteLocked(RouteFormFromRoute(route))
	return m.viewLocked(), nil
}

// routeOpenableLocked reports why a route form cannot be loaded now. Only
// an idle machine or an open route editor may load one; a detour must be
// finished or cancelled first.
func (m *Machine) routeOpenableLocked() error {
	if err := m.guardLocked(StateEditingRoute); err != nil {
		return err
	}
	if m.state != StateIdle && m.state != StateEditingRoute {
		return fmt.Errorf("%w: finish the %s step first", domain.ErrInvalidTransition, m.state)
	}
	if m.pending != nil {
		return fmt.Errorf("%w: another detour is pending", domain.ErrInvalidTransition)
	}
	return nil
}

func (m *Machine) openRouteLocked(form *RouteForm) {
	m.route = form
	m.node = nil
	m.drag.Reset()
	m.moveLocked(StateEditingRoute)
}

// UpdateRoute applies field edits to the open route form.
func (m *Machine) UpdateRoute(p RoutePatch) (View, error) {
	return m.editRoute(func(f *RouteForm) error {
		if p.Mode != nil {
			if !p.Mode.Valid() {
				return fmt.Errorf("%w: unknown vehicle mode %q", domain.ErrValidation, *p.Mode)
			}
			f.Fare = f.Fare.SetMode(*p.Mode)
		}
		if p.Name != nil {
			f.Name = *p.Name
		}
		if p.ETAMinutes != nil {
			f.ETAMinutes = *p.ETAMinutes
		}
		if p.Fare != nil {
			f.Fare = f.Fare.SetFare(*p.Fare)
		}
		if p.Discount != nil {
			f.Fare = f.Fare.SetDiscount(*p.Discount)
		}
		return nil
	})
}

// ToggleFreeRide flips the free-ride switch of the route form.
func (m *Machine) ToggleFreeRide() (View, error) {
	return m.editRoute(func(f *RouteForm) error {
		f.Fare = f.Fare.ToggleFreeRide()
		return nil
	})
}

// SetStrictStops sets whether boarding is limited to listed stops.
func (m *Machine) SetStrictStops(strict bool) (View, error) {
	return m.editRoute(func(f *RouteForm) error {
		f.StrictStops = strict
		return nil
	})
}

// InsertSlot adds an empty waypoint slot before the destination.
func (m *Machine) InsertSlot() (View, error) {
	return m.editRoute(func(f *RouteForm) error {
		f.Stops = f.Stops.InsertSlot()
		return nil
	})
}

// RemoveSlot drops an intermediate waypoint slot.
func (m *Machine) RemoveSlot(index int) (View, error) {
	return m.editRoute(func(f *RouteForm) error {
		f.Stops = f.Stops.RemoveSlot(index)
		return nil
	})
}

// SetSlot assigns a stop to a waypoint slot. uuid.Nil clears it.
func (m *Machine) SetSlot(index int, stopID uuid.UUID) (View, error) {
	return m.editRoute(func(f *RouteForm) error {
		stops, err := f.Stops.SetSlot(index, stopID)
		if err != nil {
			return err
		}
		f.Stops = stops
		return nil
	})
}

// Reorder moves one waypoint slot.
func (m *Machine) Reorder(from, to int) (View, error) {
	return m.editRoute(func(f *RouteForm) error {
		f.Stops = waypoint.Reorder(f.Stops, from, to)
		return nil
	})
}

// Drag feeds one drag gesture step. A drop applies the accumulated move.
func (m *Machine) Drag(phase DragPhase, index int) (View, error) {
	return m.editRoute(func(f *RouteForm) error {
		switch phase {
		case DragStart:
			m.drag.Start(index)
		case DragEnter:
			m.drag.Enter(index)
		case DragDrop:
			if stops, ok := m.drag.Drop(f.Stops); ok {
				f.Stops = stops
			}
		default:
			return fmt.Errorf("%w: unknown drag phase %q", domain.ErrValidation, phase)
		}
		return nil
	})
}

// editRoute applies fn to a copy of the open route form and keeps the copy
// only when fn succeeds.
func (m *Machine) editRoute(fn func(f *RouteForm) error) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(StateEditingRoute); err != nil {
		return m.viewLocked(), err
	}
	if m.state != StateEditingRoute || m.route == nil {
		return m.viewLocked(), fmt.Errorf("%w: no route form open", domain.ErrInvalidTransition)
	}
	form := m.route.Clone()
	if err := fn(form); err != nil {
		return m.viewLocked(), err
	}
	m.route = form
	return m.viewLocked(), nil
}

// UpdateNode applies field edits to the open stop form.
func (m *Machine) UpdateNode(p NodePatch) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(StateEditingNode); err != nil {
		return m.viewLocked(), err
	}
	if m.state != StateEditingNode || m.node == nil {
		return m.viewLocked(), fmt.Errorf("%w: no stop form open", domain.ErrInvalidTransition)
	}
	form := m.node.Clone()
	if p.Category != nil {
		if !p.Category.Valid() {
			return m.viewLocked(), fmt.Errorf("%w: unknown category %q", domain.ErrValidation, *p.Category)
		}
		form.Category = *p.Category
	}
	if p.Vehicles != nil {
		for _, v := range *p.Vehicles {
			if !v.Valid() {
				return m.viewLocked(), fmt.Errorf("%w: unknown vehicle class %q", domain.ErrValidation, v)
			}
		}
		form.Vehicles = append([]domain.VehicleClass{}, (*p.Vehicles)...)
	}
	if p.Name != nil {
		form.Name = *p.Name
	}
	if p.Zone != nil {
		form.Zone = *p.Zone
	}
	m.node = form
	return m.viewLocked(), nil
}

// PickFromMap hides the route editor so the operator can choose the stop for
// slot by clicking its marker.
func (m *Machine) PickFromMap(slot int) (View, error) {
	return m.detourRoute(slot, StatePickingOnMap)
}

// CreateStopForSlot hides the route editor so the operator can place a new
// stop. Saving that stop writes its id into slot and reopens the route.
// While picking for the same slot it switches straight to placing and keeps
// the route snapshot.
func (m *Machine) CreateStopForSlot(slot int) (View, error) {
	m.mu.Lock()
	if m.state != StatePickingOnMap {
		defer m.mu.Unlock()
		return m.detourRouteLocked(slot, StatePlacingNode)
	}
	defer m.mu.Unlock()
	if err := m.guardLocked(StatePlacingNode); err != nil {
		return m.viewLocked(), err
	}
	detour, ok := m.pending.(RouteDetour)
	if !ok {
		return m.viewLocked(), fmt.Errorf("%w: no route form awaiting a stop", domain.ErrInvalidTransition)
	}
	if slot != detour.Slot {
		return m.viewLocked(), fmt.Errorf("%w: picking for slot %d, not %d", domain.ErrValidation, detour.Slot, slot)
	}
	m.moveLocked(StatePlacingNode)
	return m.viewLocked(), nil
}

func (m *Machine) detourRoute(slot int, to State) (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detourRouteLocked(slot, to)
}

func (m *Machine) detourRouteLocked(slot int, to State) (View, error) {
	if err := m.guardLocked(to); err != nil {
		return m.viewLocked(), err
	}
	if m.state != StateEditingRoute || m.route == nil {
		return m.viewLocked(), fmt.Errorf("%w: no route form open", domain.ErrInvalidTransition)
	}
	if m.pending != nil {
		return m.viewLocked(), fmt.Errorf("%w: another detour is pending", domain.ErrInvalidTransition)
	}
	if slot < 0 || slot >= len(m.route.Stops) {
		return m.viewLocked(), fmt.Errorf("%w: slot %d out of range", domain.ErrValidation, slot)
	}
	m.pending = RouteDetour{Snapshot: m.route.Clone(), Slot: slot}
	m.route = nil
	m.drag.Reset()
	m.moveLocked(to)
	return m.viewLocked(), nil
}

// PickForRoute lets the operator choose the stop for one slot of a saved
// route by clicking its marker, without opening the route editor. The next
// marker click writes the route; Cancel returns to idle.
func (m *Machine) PickForRoute(ctx context.Context, routeID uuid.UUID, slot int) (View, error) {
	m.mu.Lock()
	if err := m.storedRouteEditableLocked(StatePickingOnMap); err != nil {
		defer m.mu.Unlock()
		return m.viewLocked(), err
	}
	ioCtx, epoch := m.beginLocked(ctx)
	m.mu.Unlock()

	route, err := m.routes.Get(ioCtx, routeID)

	m.mu.Lock()
	defer m.mu.Unlock()
	if aborted := m.finishLocked(epoch); aborted != nil {
		return m.viewLocked(), aborted
	}
	if err != nil {
		return m.viewLocked(), fmt.Errorf("workflow.Machine.PickForRoute: %w", err)
	}
	if n := len(RouteFormFromRoute(route).Stops); slot < 0 || slot >= n {
		return m.viewLocked(), fmt.Errorf("%w: slot %d out of range", domain.ErrValidation, slot)
	}
	m.pending = StoredRouteDetour{RouteID: route.ID, Slot: slot}
	m.moveLocked(StatePickingOnMap)
	return m.viewLocked(), nil
}

// UpdateWaypoints replaces the stop list of a saved route without opening
// the route editor. Empty slots are dropped and at least two stops must
// remain. The path is resolved again before the write.
func (m *Machine) UpdateWaypoints(ctx context.Context, routeID uuid.UUID, stops waypoint.Sequence) (domain.Route, error) {
	m.mu.Lock()
	if err := m.storedRouteEditableLocked(StateIdle); err != nil {
		m.mu.Unlock()
		return domain.Route{}, err
	}
	if _, _, _, err := stops.Compact(); err != nil {
		err = m.invalidLocked("Route needs at least 2 stops")
		m.mu.Unlock()
		return domain.Route{}, err
	}
	ioCtx, epoch := m.beginLocked(ctx)
	m.mu.Unlock()

	result, geomErr, err := m.rewriteRoute(ioCtx, routeID, func(waypoint.Sequence) (waypoint.Sequence, error) {
		return stops, nil
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if aborted := m.finishLocked(epoch); aborted != nil {
		return domain.Route{}, aborted
	}
	if err := m.reportRouteSaveLocked(false, result, geomErr, err); err != nil {
		return domain.Route{}, fmt.Errorf("workflow.Machine.UpdateWaypoints: %w", err)
	}
	return result.Route, nil
}

// fillStoredSlot is entered with m.mu held. A failed write keeps the pick
// open so the operator can retry or cancel.
func (m *Machine) fillStoredSlot(ctx context.Context, detour StoredRouteDetour, stopID uuid.UUID) (View, error) {
	if err := m.guardLocked(StateIdle); err != nil {
		defer m.mu.Unlock()
		return m.viewLocked(), err
	}
	ioCtx, epoch := m.beginLocked(ctx)
	m.mu.Unlock()

	result, geomErr, err := m.rewriteRoute(ioCtx, detour.RouteID, func(s waypoint.Sequence) (waypoint.Sequence, error) {
		return s.SetSlot(detour.Slot, stopID)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if aborted := m.finishLocked(epoch); aborted != nil {
		return m.viewLocked(), aborted
	}
	if err := m.reportRouteSaveLocked(false, result, geomErr, err); err != nil {
		return m.viewLocked(), fmt.Errorf("workflow.Machine.MarkerClick: %w", err)
	}
	m.pending = nil
	m.moveLocked(StateIdle)
	return m.viewLocked(), nil
}

// storedRouteEditableLocked reports why a saved route cannot be changed
// from the route list now.
func (m *Machine) storedRouteEditableLocked(to State) error {
	if err := m.guardLocked(to); err != nil {
		return err
	}
	if m.state != StateIdle || m.pending != nil {
		return fmt.Errorf("%w: close the %s editor first", domain.ErrInvalidTransition, m.state)
	}
	return nil
}

// rewriteRoute loads a saved route, applies edit to its stop list and writes
// it back with a freshly resolved path. Every other field is kept.
func (m *Machine) rewriteRoute(ctx context.Context, id uuid.UUID, edit func(waypoint.Sequence) (waypoint.Sequence, error)) (result domain.RouteSaveResult, geomErr, err error) {
	route, err := m.routes.Get(ctx, id)
	if err != nil {
		return result, nil, err
	}
	stops, err := edit(RouteFormFromRoute(route).Stops)
	if err != nil {
		return result, nil, err
	}
	ids, _, _, err := stops.Compact()
	if err != nil {
		return result, nil, err
	}
	route.Waypoints = ids
	route.SyncEndpoints()
	route.Path, route.DistanceMeters, route.DurationSeconds = nil, 0, 0
	return m.persistRoute(ctx, route)
}

// MovePin hides the stop editor until the next map click supplies a new
// location for the stop.
func (m *Machine) MovePin() (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.guardLocked(StateRelocating); err != nil {
		return m.viewLocked(), err
	}
	if m.state != StateEditingNode || m.node == nil {
		return m.viewLocked(), fmt.Errorf("%w: no stop form open", domain.ErrInvalidTransition)
	}
	if m.pending != nil {
		return m.viewLocked(), fmt.Errorf("%w: another detour is pending", domain.ErrInvalidTransition)
	}
	m.pending = NodeDetour{Snapshot: m.node.Clone()}
	m.node = nil
	m.moveLocked(StateRelocating)
	return m.viewLocked(), nil
}

// Cancel aborts any in-flight call and backs out of the current mode. A
// pending detour is restored exactly as it was snapshotted; without one the
// editor closes.
func (m *Machine) Cancel() (View, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSessionLocked {
		return m.viewLocked(), domain.ErrSessionLocked
	}
	m.abortLocked()
	m.drag.Reset()

	switch p := m.pending.(type) {
	case RouteDetour:
		m.node = nil
		m.route = p.Snapshot.Clone()
		m.pending = nil
		m.moveLocked(StateEditingRoute)
	case NodeDetour:
		m.node = p.Snapshot.Clone()
		m.pending = nil
		m.moveLocked(StateEditingNode)
	case StoredRouteDetour:
		m.pending = nil
		m.moveLocked(StateIdle)
	default:
		m.node, m.route = nil, nil
		m.moveLocked(StateIdle)
	}
	return m.viewLocked(), nil
}

// Save persists the open form. Validation failures leave the form as is and
// touch no store.
func (m *Machine) Save(ctx context.Context) (View, error) {
	m.mu.Lock()
	switch m.state {
	case StateEditingNode:
		return m.saveNode(ctx)
	case StateEditingRoute:
		return m.saveRoute(ctx)
	}
	defer m.mu.Unlock()
	if err := m.guardLocked(m.state); err != nil {
		return m.viewLocked(), err
	}
	return m.viewLocked(), fmt.Errorf("%w: nothing to save in %s", domain.ErrInvalidTransition, m.state)
}

// saveNode is entered with m.mu held.
func (m *Machine) saveNode(ctx context.Context) (View, error) {
	if err := m.guardLocked(StateEditingNode); err != nil {
		defer m.mu.Unlock()
		return m.viewLocked(), err
	}
	draft := m.node.Stop()
	draft.Name = strings.TrimSpace(draft.Name)
	if draft.Name == "" {
		defer m.mu.Unlock()
		return m.viewLocked(), m.invalidLocked("Location name is required")
	}
	ioCtx, epoch := m.beginLocked(ctx)
	m.mu.Unlock()

	saved, err := m.stops.Save(ioCtx, draft)

	m.mu.Lock()
	defer m.mu.Unlock()
	if aborted := m.finishLocked(epoch); aborted != nil {
		return m.viewLocked(), aborted
	}
	if err != nil {
		m.log.Warn("stop save failed", "error", err)
		m.notify(notice.KindError, err.Error())
		return m.viewLocked(), fmt.Errorf("workflow.Machine.Save: %w", err)
	}
	m.notify(notice.KindSuccess, "Location saved!")
	m.node = nil

	if detour, ok := m.pending.(RouteDetour); ok {
		form := detour.Snapshot.Clone()
		if stops, err := form.Stops.SetSlot(detour.Slot, saved.ID); err == nil {
			form.Stops = stops
		}
		m.route = form
		m.pending = nil
		m.moveLocked(StateEditingRoute)
		return m.viewLocked(), nil
	}
	m.moveLocked(StateIdle)
	return m.viewLocked(), nil
}

// saveRoute is entered with m.mu held.
func (m *Machine) saveRoute(ctx context.Context) (View, error) {
	if err := m.guardLocked(StateIdle); err != nil {
		defer m.mu.Unlock()
		return m.viewLocked(), err
	}
	draft, err := m.routeDraftLocked()
	if err != nil {
		defer m.mu.Unlock()
		return m.viewLocked(), err
	}
	ioCtx, epoch := m.beginLocked(ctx)
	m.mu.Unlock()

	result, geomErr, err := m.persistRoute(ioCtx, draft)

	m.mu.Lock()
	defer m.mu.Unlock()
	if aborted := m.finishLocked(epoch); aborted != nil {
		return m.viewLocked(), aborted
	}
	if err := m.reportRouteSaveLocked(draft.ID == uuid.Nil, result, geomErr, err); err != nil {
		return m.viewLocked(), fmt.Errorf("workflow.Machine.Save: %w", err)
	}
	m.route = nil
	m.moveLocked(StateIdle)
	return m.viewLocked(), nil
}

// reportRouteSaveLocked shows the outcome of a route write and returns err.
func (m *Machine) reportRouteSaveLocked(created bool, result domain.RouteSaveResult, geomErr, err error) error {
	if geomErr != nil && err == nil {
		m.log.Warn("route geometry unavailable", "error", geomErr)
		m.notify(notice.KindError, "Routing service failed; route saved without a path")
	}
	if err != nil {
		m.log.Warn("route save failed", "error", err)
		m.notify(notice.KindError, err.Error())
		return err
	}
	switch {
	case result.WaypointsOmitted:
		m.notify(notice.KindWarning, "Route saved without waypoints: the store does not support them")
	case created:
		m.notify(notice.KindSuccess, "Route saved successfully!")
	default:
		m.notify(notice.KindSuccess, "Route updated successfully!")
	}
	return nil
}

func (m *Machine) routeDraftLocked() (domain.Route, error) {
	f := m.route
	ids, _, _, err := f.Stops.Compact()
	if err != nil {
		return domain.Route{}, m.invalidLocked("Route requires at least an origin and a destination")
	}
	eta := 0
	if s := strings.TrimSpace(f.ETAMinutes); s != "" {
		eta, err = strconv.Atoi(s)
		if err != nil || eta < 0 {
			return domain.Route{}, m.invalidLocked("Travel time must be a whole number of minutes")
		}
	} else {
		eta, _ = strconv.Atoi(DefaultETAMinutes)
	}
	if !f.Fare.Mode.Valid() {
		return domain.Route{}, m.invalidLocked("Vehicle mode is required")
	}
	base, discount := f.Fare.Amounts()
	if base < 0 || discount < 0 {
		return domain.Route{}, m.invalidLocked("Fares cannot be negative")
	}
	r := domain.Route{
		ID:             f.RouteID,
		Name:           strings.TrimSpace(f.Name),
		Mode:           f.Fare.Mode,
		Waypoints:      ids,
		ETAMinutes:     eta,
		Fare:           base,
		DiscountedFare: discount,
		StrictStops:    f.StrictStops,
	}
	r.SyncEndpoints()
	return r, nil
}

// persistRoute resolves geometry for draft and writes it. A geometry failure
// is returned as geomErr and does not stop the write; a cancelled ctx does.
func (m *Machine) persistRoute(ctx context.Context, draft domain.Route) (result domain.RouteSaveResult, geomErr, err error) {
	stops, err := m.stops.Lookup(ctx, draft.Waypoints)
	if err != nil {
		return result, nil, err
	}
	coords := make([]domain.Coordinate, 0, len(draft.Waypoints))
	for i, id := range draft.Waypoints {
		s, ok := stops[id]
		if !ok {
			return result, nil, fmt.Errorf("%w: waypoint %d references a stop that no longer exists", domain.ErrValidation, i+1)
		}
		coords = append(coords, s.Location)
	}

	res, rerr := m.resolver.Resolve(ctx, coords)
	if ctx.Err() != nil {
		return result, nil, ctx.Err()
	}
	switch {
	case rerr != nil:
		geomErr = rerr
	case res == nil:
		geomErr = errors.New("no drivable path between the waypoints")
	default:
		draft.Path = res.Path
		draft.DistanceMeters = res.DistanceMeters
		draft.DurationSeconds = res.DurationSeconds
	}

	result, err = m.routes.Save(ctx, draft)
	return result, geomErr, err
}

// LockSession discards every form and pending detour, aborts in-flight
// calls, and blocks the machine until UnlockSession.
func (m *Machine) LockSession(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.abortLocked()
	m.node, m.route, m.pending = nil, nil, nil
	m.drag.Reset()
	m.moveLocked(StateSessionLocked)
}

// UnlockSession returns a locked machine to idle after re-authentication.
func (m *Machine) UnlockSession(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateSessionLocked {
		m.moveLocked(StateIdle)
	}
}

// guardLocked reports why the machine cannot move to the target state.
func (m *Machine) guardLocked(to State) error {
	if m.state == StateSessionLocked {
		return domain.ErrSessionLocked
	}
	if m.busy {
		return domain.ErrBusy
	}
	if !CanTransition(m.state, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, m.state, to)
	}
	return nil
}

func (m *Machine) beginLocked(ctx context.Context) (context.Context, uint64) {
	ioCtx, cancel := context.WithCancel(ctx)
	m.busy = true
	m.ioCancel = cancel
	m.epoch++
	return ioCtx, m.epoch
}

// finishLocked ends the call started at epoch. It returns a non-nil error
// when the call was aborted in the meantime and its result must be dropped.
func (m *Machine) finishLocked(epoch uint64) error {
	if epoch != m.epoch {
		if m.state == StateSessionLocked {
			return domain.ErrSessionLocked
		}
		return context.Canceled
	}
	m.busy = false
	if m.ioCancel != nil {
		m.ioCancel()
		m.ioCancel = nil
	}
	return nil
}

func (m *Machine) abortLocked() {
	if !m.busy {
		return
	}
	m.ioCancel()
	m.ioCancel = nil
	m.busy = false
	m.epoch++
}

func (m *Machine) moveLocked(to State) {
	from := m.state
	m.state = to
	if from == to {
		return
	}
	m.log.Debug("workflow transition", "from", from, "to", to)
	if m.observer != nil {
		m.observer.WorkflowTransition(string(from), string(to))
	}
}

func (m *Machine) invalidLocked(msg string) error {
	m.notify(notice.KindError, msg)
	return fmt.Errorf("%w: %s", domain.ErrValidation, msg)
}

func (m *Machine) notify(kind notice.Kind, msg string) {
	if m.notifier != nil {
		m.notifier.Show(kind, msg)
	}
}

func (m *Machine) viewLocked() View {
	v := View{
		State:         m.state,
		EditorVisible: m.state.editorVisible(),
		Busy:          m.busy,
		Node:          m.node.Clone(),
		Route:         m.route.Clone(),
		Pending:       summarize(m.pending),
	}
	switch m.state {
	case StatePickingOnMap:
		switch d := m.pending.(type) {
		case RouteDetour:
			v.Instruction = fmt.Sprintf("Select Stop #%d from map", d.Slot+1)
		case StoredRouteDetour:
			v.Instruction = "Select a stop from the map for this route."
		}
	case StatePlacingNode:
		v.Instruction = "Click on the map to place the new Stop Point"
	case StateRelocating:
		v.Instruction = "Click new location on the map for this stop"
	case StateSessionLocked:
		v.Instruction = "Session expired due to inactivity. Sign in again to continue."
	}
	return v
}
