// Package handler implements the HTTP API of the route console on chi.
// Every handler is a method on Server; methods are split into files by
// concern (workflow.go, catalog.go, deletion.go, ...) but share the Server
// struct so they can reach its dependencies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/commutewise/console/internal/deletion"
	"github.com/commutewise/console/internal/domain"
	"github.com/commutewise/console/internal/identity"
	"github.com/commutewise/console/internal/waypoint"
	"github.com/commutewise/console/internal/workflow"
)

// Workflow is the editor state machine the console drives.
// *workflow.Machine satisfies it.
type Workflow interface {
	View() workflow.View
	MapClick(at domain.Coordinate) (workflow.View, error)
	MarkerClick(ctx context.Context, stopID uuid.UUID) (workflow.View, error)
	EditStop(ctx context.Context, id uuid.UUID) (workflow.View, error)
	NewRoute(ctx context.Context, origin uuid.UUID) (workflow.View, error)
	EditRoute(ctx context.Context, id uuid.UUID) (workflow.View, error)
	PickForRoute(ctx context.Context, routeID uuid.UUID, slot int) (workflow.View, error)
	UpdateWaypoints(ctx context.Context, routeID uuid.UUID, stops waypoint.Sequence) (domain.Route, error)
	UpdateRoute(p workflow.RoutePatch) (workflow.View, error)
	ToggleFreeRide() (workflow.View, error)
	SetStrictStops(strict bool) (workflow.View, error)
	InsertSlot() (workflow.View, error)
	RemoveSlot(index int) (workflow.View, error)
	SetSlot(index int, stopID uuid.UUID) (workflow.View, error)
	Reorder(from, to int) (workflow.View, error)
	Drag(phase workflow.DragPhase, index int) (workflow.View, error)
	UpdateNode(p workflow.NodePatch) (workflow.View, error)
	PickFromMap(slot int) (workflow.View, error)
	CreateStopForSlot(slot int) (workflow.View, error)
	MovePin() (workflow.View, error)
	Cancel() (workflow.View, error)
	Save(ctx context.Context) (workflow.View, error)
}

// StopReader serves the stop catalogue.
type StopReader interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Stop, error)
	List(ctx context.Context, p domain.PaginationParams) ([]domain.Stop, int64, error)
	Zones(ctx context.Context) ([]string, error)
}

// RouteReader serves the route catalogue.
type RouteReader interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Route, error)
	List(ctx context.Context, p domain.PaginationParams) ([]domain.Route, int64, error)
	Referencing(ctx context.Context, stopID uuid.UUID) ([]domain.Route, error)
}

// DeletionGuard holds the pending confirmation dialog.
type DeletionGuard interface {
	Request(t deletion.Target, message string) (deletion.Prompt, error)
	Pending() (deletion.Prompt, bool)
	Confirm(ctx context.Context) (deletion.Target, error)
	Cancel() bool
}

// DeletionDescriber resolves what a deletion request refers to.
type DeletionDescriber interface {
	Describe(ctx context.Context, kind domain.EntityKind, id uuid.UUID) (deletion.Target, string, error)
}

// FeedbackBoard is the optimistic triage list.
type FeedbackBoard interface {
	Filter(status, query string) []domain.Feedback
	Reload(ctx context.Context) ([]domain.Feedback, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.FeedbackStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// Dashboard serves the overview tiles and the activity log.
type Dashboard interface {
	Counts(ctx context.Context) (domain.Counts, error)
	Activity(ctx context.Context, limit int) ([]domain.AuditRecord, error)
}

// RecentFeedback serves the newest reports for the dashboard.
type RecentFeedback interface {
	Recent(ctx context.Context, limit int) ([]domain.Feedback, error)
}

// Session is the inactivity supervisor as seen by the API.
type Session interface {
	Touch(event string) bool
	Resume(ctx context.Context) (identity.Identity, error)
}

// Deps are the collaborators of a Server. Authenticate and Gate wrap the
// protected routes and may be nil in tests; Notices and Metrics may be nil
// to leave those endpoints unmounted.
type Deps struct {
	Workflow       Workflow
	Stops          StopReader
	Routes         RouteReader
	Deletions      DeletionGuard
	Describer      DeletionDescriber
	Feedback       FeedbackBoard
	RecentFeedback RecentFeedback
	Dashboard      Dashboard
	Session        Session
	Notices        http.Handler
	Metrics        http.Handler
	OpenAPI        []byte
	Authenticate   func(http.Handler) http.Handler
	Gate           func(http.Handler) http.Handler
	Logger         *slog.Logger
}

// Server implements every endpoint of the console API.
type Server struct {
	d   Deps
	log *slog.Logger
}

// NewServer constructs the Server with all its dependencies.
func NewServer(d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Server{d: d, log: log}
}

// NewHealthHandler returns a Server for health-check-only use.
func NewHealthHandler() *Server {
	return NewServer(Deps{})
}

// Routes builds the chi router. Request-scoped middleware (request IDs,
// logging, recovery) is applied by the caller.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.GetHealth)
	if s.d.OpenAPI != nil {
		r.Get("/openapi.yaml", s.GetOpenAPI)
	}
	if s.d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.d.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(orPassThrough(s.d.Authenticate))

		// Reachable while the session is locked.
		r.Post("/session/resume", s.ResumeSession)
		if s.d.Notices != nil {
			r.Method(http.MethodGet, "/ws", s.d.Notices)
		}

		r.Group(func(r chi.Router) {
			r.Use(orPassThrough(s.d.Gate))

			r.Post("/session/activity", s.RecordActivity)

			r.Route("/workflow", func(r chi.Router) {
				r.Get("/", s.GetWorkflow)
				r.Post("/map-click", s.MapClick)
				r.Post("/marker-click", s.MarkerClick)
				r.Post("/cancel", s.CancelWorkflow)
				r.Post("/save", s.SaveWorkflow)
				r.Post("/stops/{id}/edit", s.EditStop)
				r.Post("/routes/new", s.NewRoute)
				r.Post("/routes/{id}/edit", s.EditRoute)
				r.Post("/routes/{id}/waypoints/{index}/pick", s.PickForRoute)

				r.Patch("/route-form", s.UpdateRouteForm)
				r.Post("/route-form/free-ride", s.ToggleFreeRide)
				r.Post("/route-form/strict-stops", s.SetStrictStops)
				r.Post("/route-form/slots", s.InsertSlot)
				r.Put("/route-form/slots/{index}", s.SetSlot)
				r.Delete("/route-form/slots/{index}", s.RemoveSlot)
				r.Post("/route-form/slots/{index}/pick", s.PickFromMap)
				r.Post("/route-form/slots/{index}/create-stop", s.CreateStopForSlot)
				r.Post("/route-form/reorder", s.Reorder)
				r.Post("/route-form/drag", s.Drag)

				r.Patch("/node-form", s.UpdateNodeForm)
				r.Post("/node-form/move-pin", s.MovePin)
			})

			r.Get("/stops", s.ListStops)
			r.Get("/stops/zones", s.ListZones)
			r.Get("/stops/{id}", s.GetStop)
			r.Get("/stops/{id}/routes", s.ListStopRoutes)
			r.Get("/routes", s.ListRoutes)
			r.Get("/routes/{id}", s.GetRoute)
			r.Put("/routes/{id}/waypoints", s.UpdateRouteWaypoints)

			r.Get("/deletions", s.GetDeletion)
			r.Post("/deletions", s.RequestDeletion)
			r.Post("/deletions/confirm", s.ConfirmDeletion)
			r.Post("/deletions/cancel", s.CancelDeletion)

			r.Get("/feedback", s.ListFeedback)
			r.Post("/feedback/reload", s.ReloadFeedback)
			r.Patch("/feedback/{id}", s.UpdateFeedback)
			r.Delete("/feedback/{id}", s.DeleteFeedback)

			r.Get("/dashboard", s.GetDashboard)
			r.Get("/audit-log", s.ListAuditLog)
		})
	})
	return r
}

func orPassThrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return mw
}
