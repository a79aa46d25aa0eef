// Package history keeps the most recent local captures for operator feedback.
package history

import "github.com/cuckoodile/attendance-cam/pkg/types"

// Capacity is the number of captures kept; older ones are dropped
const Capacity = 5

// History is a newest-first list of transformed captures, capped at Capacity.
// It is not persisted and is not the authoritative attendance list.
type History struct {
	items []*types.TransformedCapture
}

// New creates an empty history
func New() *History {
	return &History{items: make([]*types.TransformedCapture, 0, Capacity)}
}

// Push adds a capture at the front, evicting the oldest entry when full
func (h *History) Push(c *types.TransformedCapture) {
	if len(h.items) == Capacity {
		h.items = h.items[:Capacity-1]
	}
	h.items = append(h.items, nil)
	copy(h.items[1:], h.items)
	h.items[0] = c
}

// Items returns a copy of the captures, newest first
func (h *History) Items() []*types.TransformedCapture {
	out := make([]*types.TransformedCapture, len(h.items))
	copy(out, h.items)
	return out
}

// Latest returns the newest capture, or nil when empty
func (h *History) Latest() *types.TransformedCapture {
	if len(h.items) == 0 {
		return nil
	}
	return h.items[0]
}

func (h *History) Len() int { return len(h.items) }

// Clear drops every capture
func (h *History) Clear() {
	h.items = h.items[:0]
}
