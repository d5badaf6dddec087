// Package waypoint implements the ordered stop list edited for one route.
// Every operation returns a new Sequence and never mutates its receiver, so a
// snapshot taken before an edit stays valid.
package waypoint

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/commutewise/console/internal/domain"
)

// MinStops is the smallest number of filled slots a route may be saved with.
const MinStops = 2

// Sequence is an ordered list of stop references. uuid.Nil marks an empty slot.
// Index 0 is the origin and the last index is the destination.
type Sequence []uuid.UUID

// Template returns the two empty slots a new route starts with.
func Template() Sequence {
	return Sequence{uuid.Nil, uuid.Nil}
}

// Clone returns an independent copy.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	return slices.Clone(s)
}

// InsertSlot adds an empty slot just before the destination. With fewer than
// two slots it appends instead.
func (s Sequence) InsertSlot() Sequence {
	out := s.Clone()
	if len(out) >= 2 {
		return slices.Insert(out, len(out)-1, uuid.Nil)
	}
	return append(out, uuid.Nil)
}

// RemoveSlot drops the slot at index. It is a no-op when the sequence has two
// or fewer slots, when index is out of range, or when index addresses the
// origin or destination. Endpoints can only be replaced.
func (s Sequence) RemoveSlot(index int) Sequence {
	if len(s) <= MinStops || index <= 0 || index >= len(s)-1 {
		return s.Clone()
	}
	return slices.Delete(s.Clone(), index, index+1)
}

// SetSlot assigns id to the slot at index. Any index is allowed, endpoints
// included; passing uuid.Nil clears the slot.
func (s Sequence) SetSlot(index int, id uuid.UUID) (Sequence, error) {
	if index < 0 || index >= len(s) {
		return s.Clone(), fmt.Errorf("%w: slot %d out of range", domain.ErrValidation, index)
	}
	out := s.Clone()
	out[index] = id
	return out, nil
}

// Reorder moves the entry at from to position to, preserving the relative
// order of every other entry. Out-of-range indexes return an unchanged copy.
func Reorder(s Sequence, from, to int) Sequence {
	out := s.Clone()
	if from < 0 || from >= len(out) || to < 0 || to >= len(out) || from == to {
		return out
	}
	item := out[from]
	out = slices.Delete(out, from, from+1)
	return slices.Insert(out, to, item)
}

// Filled returns the non-empty slots in order.
func (s Sequence) Filled() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s))
	for _, id := range s {
		if id != uuid.Nil {
			out = append(out, id)
		}
	}
	return out
}

// Compact filters out empty slots and enforces the minimum stop count.
// It returns the waypoint list to persist with its origin and destination.
func (s Sequence) Compact() (ids []uuid.UUID, origin, destination uuid.UUID, err error) {
	ids = s.Filled()
	if len(ids) < MinStops {
		return nil, uuid.Nil, uuid.Nil, fmt.Errorf("%w: route requires at least an origin and a destination", domain.ErrValidation)
	}
	return ids, ids[0], ids[len(ids)-1], nil
}

// MarshalJSON encodes empty slots as "" so clients never see the nil UUID.
func (s Sequence) MarshalJSON() ([]byte, error) {
	out := make([]string, len(s))
	for i, id := range s {
		if id != uuid.Nil {
			out[i] = id.String()
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts "" and null as empty slots.
func (s *Sequence) UnmarshalJSON(data []byte) error {
	var raw []*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Sequence, len(raw))
	for i, v := range raw {
		if v == nil || *v == "" {
			continue
		}
		id, err := uuid.Parse(*v)
		if err != nil {
			return fmt.Errorf("%w: slot %d: %v", domain.ErrValidation, i, err)
		}
		out[i] = id
	}
	*s = out
	return nil
}
