package workflow

// State is the editor mode of the console.
type State string

const (
	StateIdle          State = "idle"
	StateEditingNode   State = "editing_node"
	StatePlacingNode   State = "placing_node"
	StateEditingRoute  State = "editing_route"
	StatePickingOnMap  State = "picking_on_map"
	StateRelocating    State = "relocating"
	StateSessionLocked State = "session_locked"
)

var transitions = map[State]map[State]struct{}{
	StateIdle: {
		StateEditingNode:  {},
		StateEditingRoute: {},
		StatePickingOnMap: {},
	},
	StateEditingNode: {
		StateIdle:         {},
		StateRelocating:   {},
		StateEditingRoute: {},
	},
	StatePlacingNode: {StateEditingNode: {}, StateEditingRoute: {}},
	StateEditingRoute: {
		StateIdle:         {},
		StatePickingOnMap: {},
		StatePlacingNode:  {},
	},
	StatePickingOnMap: {
		StateEditingRoute: {},
		StatePlacingNode:  {},
		StateIdle:         {},
	},
	StateRelocating:    {StateEditingNode: {}},
	StateSessionLocked: {StateIdle: {}},
}

// CanTransition reports whether the editor may move from one state to the
// other. Staying put is always allowed, and the session lock is reachable
// from everywhere.
func CanTransition(from, to State) bool {
	if from == to || to == StateSessionLocked {
		return true
	}
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// editorVisible reports whether the editor surface is shown in s. Detour
// states hide the editor without closing it.
func (s State) editorVisible() bool {
	return s == StateEditingNode || s == StateEditingRoute
}
