package camera

import (
	"context"
	"errors"

	"github.com/cuckoodile/attendance-cam/pkg/types"
)

// ErrNoFrame is returned when the device has no frame to hand out yet
var ErrNoFrame = errors.New("camera: no frame available")

// Source owns the capture device and hands out the current frame as a data URI.
// Callers never touch the device directly.
type Source interface {
	Snapshot(ctx context.Context, facing types.Facing) (string, error)
}

// StaticSource serves fixed frames per facing; a missing entry means no frame
type StaticSource struct {
	Frames map[types.Facing]string
}

// NewStaticSource returns a source serving the same frame for both facings
func NewStaticSource(frame string) *StaticSource {
	return &StaticSource{Frames: map[types.Facing]string{
		types.FacingFront: frame,
		types.FacingBack:  frame,
	}}
}

func (s *StaticSource) Snapshot(ctx context.Context, facing types.Facing) (string, error) {
	frame, ok := s.Frames[facing]
	if !ok || frame == "" {
		return "", ErrNoFrame
	}
	return frame, nil
}

// Mux routes each facing to its own source
type Mux map[types.Facing]Source

func (m Mux) Snapshot(ctx context.Context, facing types.Facing) (string, error) {
	src, ok := m[facing]
	if !ok || src == nil {
		return "", ErrNoFrame
	}
	return src.Snapshot(ctx, facing)
}
