package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Facing selects which capture device a snapshot comes from
type Facing string

const (
	FacingFront Facing = "front"
	FacingBack  Facing = "back"
)

// ParseFacing accepts front/back as well as the browser facing-mode names user/environment
func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front", "user":
		return FacingFront, nil
	case "back", "environment":
		return FacingBack, nil
	}
	return "", fmt.Errorf("unknown facing %q (use front or back)", s)
}

// ModeHint returns the facing-mode hint understood by camera devices
func (f Facing) ModeHint() string {
	if f == FacingBack {
		return "environment"
	}
	return "user"
}

// ErrInvalidRotation is returned for rotations that are not a multiple of 90
var ErrInvalidRotation = errors.New("rotation must be one of 0, 90, 180, 270")

// TransformConfig is the set of geometric adjustments baked into a capture
type TransformConfig struct {
	Facing   Facing `json:"facing"`
	Mirrored bool   `json:"mirrored"`
	Flipped  bool   `json:"flipped"`
	Rotation int    `json:"rotation"`
}

// DefaultTransformConfig returns the startup settings: front camera, mirrored, upright
func DefaultTransformConfig() TransformConfig {
	return TransformConfig{
		Facing:   FacingFront,
		Mirrored: true,
		Flipped:  false,
		Rotation: 0,
	}
}

// Validate checks that the rotation is one of the four quarter turns
func (c TransformConfig) Validate() error {
	switch c.Rotation {
	case 0, 90, 180, 270:
		return nil
	}
	return fmt.Errorf("%w: got %d", ErrInvalidRotation, c.Rotation)
}

// Normalized returns a copy with rotation reduced modulo 360
func (c TransformConfig) Normalized() TransformConfig {
	c.Rotation = ((c.Rotation % 360) + 360) % 360
	return c
}

// SwapsDimensions reports whether the output surface has width and height exchanged
func (c TransformConfig) SwapsDimensions() bool {
	return c.Rotation%180 != 0
}

// TransformedCapture is a snapshot with its transform baked into the pixels
type TransformedCapture struct {
	DataURI    string          `json:"data_uri"`
	Payload    []byte          `json:"-"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Config     TransformConfig `json:"config"`
	CapturedAt time.Time       `json:"captured_at"`
}

// AttendanceRecord is a record owned by the attendance service
type AttendanceRecord struct {
	ID        int64     `json:"id"`
	Img       string    `json:"img"`
	CreatedAt time.Time `json:"created_at"`
}

var createdAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseCreatedAt parses the timestamp formats the attendance service is known to emit
func ParseCreatedAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range createdAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable created_at %q", s)
}

// UnmarshalJSON accepts date-only and RFC3339 created_at values
func (r *AttendanceRecord) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID        int64  `json:"id"`
		Img       string `json:"img"`
		CreatedAt string `json:"created_at"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.ID = raw.ID
	r.Img = raw.Img
	r.CreatedAt = time.Time{}
	if raw.CreatedAt != "" {
		t, err := ParseCreatedAt(raw.CreatedAt)
		if err != nil {
			return err
		}
		r.CreatedAt = t
	}
	return nil
}
