// Package controller turns operator intent into transform settings, runs the
// capture and upload flow, and renders the attendance list.
//
// The local capture history and the remote attendance list are independent
// views. A failed upload leaves its history entry in place; nothing reconciles
// the two.
package controller

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/cuckoodile/attendance-cam/internal/logger"
	"github.com/cuckoodile/attendance-cam/pkg/camera"
	"github.com/cuckoodile/attendance-cam/pkg/cue"
	"github.com/cuckoodile/attendance-cam/pkg/history"
	"github.com/cuckoodile/attendance-cam/pkg/transform"
	"github.com/cuckoodile/attendance-cam/pkg/types"
)

// DefaultCooldown is the window after a capture during which captures are refused
const DefaultCooldown = 3 * time.Second

// Attendance is the slice of the attendance client the controller needs
type Attendance interface {
	FetchAttendance(ctx context.Context) ([]types.AttendanceRecord, error)
	SubmitCapture(ctx context.Context, payload []byte) (*types.AttendanceRecord, error)
	Refresh(ctx context.Context) ([]types.AttendanceRecord, error)
}

// Archiver stores a copy of each capture; failures are logged and ignored
type Archiver interface {
	Archive(capture *types.TransformedCapture) error
}

// Status describes what a capture request did
type Status int

const (
	// StatusCaptured means a capture was produced and its upload started
	StatusCaptured Status = iota
	// StatusCooldown means the request arrived during cooldown and was dropped
	StatusCooldown
	// StatusNoFrame means the camera had nothing to give
	StatusNoFrame
	// StatusDecodeFailed means the snapshot could not be decoded
	StatusDecodeFailed
	// StatusTransformFailed means the settings were rejected or encoding failed
	StatusTransformFailed
)

func (s Status) String() string {
	switch s {
	case StatusCaptured:
		return "captured"
	case StatusCooldown:
		return "cooldown"
	case StatusNoFrame:
		return "no frame"
	case StatusDecodeFailed:
		return "decode failed"
	case StatusTransformFailed:
		return "transform failed"
	}
	return "unknown"
}

// Outcome is the result of one capture request
type Outcome struct {
	Status  Status
	Capture *types.TransformedCapture
}

// Options configures a Controller
type Options struct {
	Source     camera.Source
	Engine     *transform.Engine
	Attendance Attendance
	Cue        cue.Player
	Archiver   Archiver
	Logger     *logger.Logger
	Cooldown   time.Duration
	Now        func() time.Time
}

// Controller owns the view state: settings, cooldown and local history
type Controller struct {
	source     camera.Source
	engine     *transform.Engine
	attendance Attendance
	cue        cue.Player
	archiver   Archiver
	log        *logger.Logger
	cooldown   time.Duration
	now        func() time.Time

	settings      types.TransformConfig
	history       *history.History
	cooldownUntil time.Time

	uploads sync.WaitGroup

	// upload results are kept per submission order, not completion order
	mu            sync.Mutex
	uploadSeq     uint64
	lastErrSeq    uint64
	lastRecordSeq uint64
	lastUploadErr error
	lastRecord    *types.AttendanceRecord
}

// New creates a controller with default settings
func New(opts Options) *Controller {
	c := &Controller{
		source:     opts.Source,
		engine:     opts.Engine,
		attendance: opts.Attendance,
		cue:        opts.Cue,
		archiver:   opts.Archiver,
		log:        opts.Logger,
		cooldown:   opts.Cooldown,
		now:        opts.Now,
		settings:   types.DefaultTransformConfig(),
		history:    history.New(),
	}
	if c.engine == nil {
		c.engine = transform.NewEngine()
	}
	if c.cue == nil {
		c.cue = cue.Silent{}
	}
	if c.log == nil {
		c.log = logger.Discard()
	}
	if c.cooldown <= 0 {
		c.cooldown = DefaultCooldown
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Settings returns the transform applied to the next capture
func (c *Controller) Settings() types.TransformConfig {
	return c.settings
}

// SetFacing selects the camera; choosing the current facing changes nothing
func (c *Controller) SetFacing(f types.Facing) {
	if c.settings.Facing == f {
		return
	}
	c.settings.Facing = f
	c.log.Debug("facing set to %s", f)
}

func (c *Controller) ToggleMirror() {
	c.settings.Mirrored = !c.settings.Mirrored
}

func (c *Controller) ToggleFlip() {
	c.settings.Flipped = !c.settings.Flipped
}

// RotateStep advances the rotation by a quarter turn clockwise
func (c *Controller) RotateStep() {
	c.settings.Rotation = (c.settings.Rotation + 90) % 360
}

// InCooldown reports whether capture requests are currently refused
func (c *Controller) InCooldown() bool {
	return c.now().Before(c.cooldownUntil)
}

// CooldownRemaining returns how long until the next capture is accepted
func (c *Controller) CooldownRemaining() time.Duration {
	if d := c.cooldownUntil.Sub(c.now()); d > 0 {
		return d
	}
	return 0
}

// History returns the local captures, newest first
func (c *Controller) History() []*types.TransformedCapture {
	return c.history.Items()
}

// LatestCapture returns the newest local capture, or nil
func (c *Controller) LatestCapture() *types.TransformedCapture {
	return c.history.Latest()
}

// ClearHistory drops the local captures; the attendance list is untouched
func (c *Controller) ClearHistory() {
	c.history.Clear()
}

// OnCaptureRequested runs one capture: snapshot, cue, transform, history,
// upload. The upload runs in the background and is not awaited. Cooldown is
// armed whether or not a frame was obtained.
func (c *Controller) OnCaptureRequested(ctx context.Context) Outcome {
	if c.InCooldown() {
		c.log.Debug("capture ignored, cooling down for %s", c.CooldownRemaining().Round(time.Millisecond))
		return Outcome{Status: StatusCooldown}
	}

	outcome := c.capture(ctx)
	c.cooldownUntil = c.now().Add(c.cooldown)
	return outcome
}

func (c *Controller) capture(ctx context.Context) Outcome {
	if c.source == nil {
		return Outcome{Status: StatusNoFrame}
	}

	settings := c.settings
	raw, err := c.source.Snapshot(ctx, settings.Facing)

	if err := c.cue.Play(); err != nil {
		c.log.Debug("capture cue: %v", err)
	}

	if err != nil {
		if !errors.Is(err, camera.ErrNoFrame) {
			c.log.Warning("snapshot failed: %v", err)
		}
		return Outcome{Status: StatusNoFrame}
	}

	captured, err := c.engine.Transform(raw, settings)
	if errors.Is(err, transform.ErrDecode) {
		c.log.Warning("capture abandoned: %v", err)
		return Outcome{Status: StatusDecodeFailed}
	}
	if err != nil {
		c.log.Error("transform capture (rotation=%d): %v", settings.Rotation, err)
		return Outcome{Status: StatusTransformFailed}
	}

	c.history.Push(captured)
	c.log.Info("captured %dx%d (facing=%s mirrored=%t flipped=%t rotation=%d)",
		captured.Width, captured.Height, settings.Facing, settings.Mirrored, settings.Flipped, settings.Rotation)

	if c.archiver != nil {
		if err := c.archiver.Archive(captured); err != nil {
			c.log.Warning("archive capture: %v", err)
		}
	}

	c.submit(ctx, captured.Payload)
	return Outcome{Status: StatusCaptured, Capture: captured}
}

// submit uploads in the background; on success the attendance list is refreshed
func (c *Controller) submit(ctx context.Context, payload []byte) {
	if c.attendance == nil {
		return
	}

	// the upload outlives the request that triggered it
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	c.uploadSeq++
	seq := c.uploadSeq
	c.mu.Unlock()

	c.uploads.Add(1)
	go func() {
		defer c.uploads.Done()

		record, err := c.attendance.SubmitCapture(ctx, payload)
		c.mu.Lock()
		if seq > c.lastErrSeq {
			c.lastErrSeq = seq
			c.lastUploadErr = err
		}
		if err == nil && seq > c.lastRecordSeq {
			c.lastRecordSeq = seq
			c.lastRecord = record
		}
		c.mu.Unlock()

		if err != nil {
			c.log.Error("attendance upload: %v", err)
			return
		}
		c.log.Info("attendance recorded (id=%d)", record.ID)

		if _, err := c.attendance.Refresh(ctx); err != nil {
			c.log.Error("refresh attendance: %v", err)
		}
	}()
}

// Wait blocks until all in-flight uploads have finished
func (c *Controller) Wait() {
	c.uploads.Wait()
}

// LastUploadError returns the result of the most recently submitted upload
// that has finished; an older upload finishing later does not replace it
func (c *Controller) LastUploadError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUploadErr
}

// LastRecord returns the record of the most recently submitted successful upload
func (c *Controller) LastRecord() *types.AttendanceRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastRecord
}

// SortByRecency orders records newest first; equal timestamps keep their order
func SortByRecency(records []types.AttendanceRecord) {
	slices.SortStableFunc(records, func(a, b types.AttendanceRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
