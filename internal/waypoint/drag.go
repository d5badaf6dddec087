package waypoint

// DragTracker turns platform drag gestures into a single Reorder call.
// Start records the grabbed slot, Enter the slot currently hovered, and Drop
// applies the move and resets the tracker.
type DragTracker struct {
	from, over int
	active     bool
}

// Start begins a drag from index.
func (d *DragTracker) Start(index int) {
	d.from, d.over, d.active = index, index, true
}

// Enter records the slot under the pointer.
func (d *DragTracker) Enter(index int) {
	if d.active {
		d.over = index
	}
}

// Active reports whether a drag is in progress.
func (d *DragTracker) Active() bool { return d.active }

// Drop applies the pending move to s. ok is false when no drag was started.
func (d *DragTracker) Drop(s Sequence) (out Sequence, ok bool) {
	if !d.active {
		return s.Clone(), false
	}
	out = Reorder(s, d.from, d.over)
	d.Reset()
	return out, true
}

// Reset abandons any drag in progress.
func (d *DragTracker) Reset() {
	*d = DragTracker{}
}
