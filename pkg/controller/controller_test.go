package controller

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cuckoodile/attendance-cam/pkg/attendance"
	"github.com/cuckoodile/attendance-cam/pkg/camera"
	"github.com/cuckoodile/attendance-cam/pkg/transform"
	"github.com/cuckoodile/attendance-cam/pkg/types"
)

// MockAttendance is a testify mock of the attendance client
type MockAttendance struct {
	mock.Mock
}

func (m *MockAttendance) FetchAttendance(ctx context.Context) ([]types.AttendanceRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]types.AttendanceRecord)
	return records, args.Error(1)
}

func (m *MockAttendance) SubmitCapture(ctx context.Context, payload []byte) (*types.AttendanceRecord, error) {
	args := m.Called(ctx, payload)
	record, _ := args.Get(0).(*types.AttendanceRecord)
	return record, args.Error(1)
}

func (m *MockAttendance) Refresh(ctx context.Context) ([]types.AttendanceRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]types.AttendanceRecord)
	return records, args.Error(1)
}

type fakeClock struct {
	t time.Time
}

func (f *fakeClock) Now() time.Time { return f.t }

func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

type countingCue struct {
	plays int
	err   error
}

func (c *countingCue) Play() error {
	c.plays++
	return c.err
}

type recordingArchiver struct {
	mu       sync.Mutex
	archived int
	err      error
}

func (a *recordingArchiver) Archive(*types.TransformedCapture) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived++
	return a.err
}

func frame(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{10, 200, 10, 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return transform.EncodeDataURI("image/png", buf.Bytes())
}

func newTestController(t *testing.T, src camera.Source, att Attendance) (*Controller, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	c := New(Options{
		Source:     src,
		Attendance: att,
		Now:        clock.Now,
	})
	return c, clock
}

func TestDefaults(t *testing.T) {
	c, _ := newTestController(t, nil, nil)
	assert.Equal(t, types.DefaultTransformConfig(), c.Settings())
	assert.Equal(t, DefaultCooldown, c.cooldown)
	assert.False(t, c.InCooldown())
	assert.Empty(t, c.History())
}

func TestSettingsSetters(t *testing.T) {
	c, _ := newTestController(t, nil, nil)
	start := c.Settings()

	c.ToggleMirror()
	assert.Equal(t, !start.Mirrored, c.Settings().Mirrored)
	c.ToggleMirror()
	assert.Equal(t, start.Mirrored, c.Settings().Mirrored)

	c.ToggleFlip()
	assert.True(t, c.Settings().Flipped)
	c.ToggleFlip()
	assert.Equal(t, start.Flipped, c.Settings().Flipped)

	c.SetFacing(types.FacingFront)
	assert.Equal(t, start, c.Settings())
	c.SetFacing(types.FacingBack)
	assert.Equal(t, types.FacingBack, c.Settings().Facing)

	for _, want := range []int{90, 180, 270, 0} {
		c.RotateStep()
		assert.Equal(t, want, c.Settings().Rotation)
	}
}

func TestCaptureUploadsAndRefreshes(t *testing.T) {
	att := new(MockAttendance)
	record := &types.AttendanceRecord{ID: 9}
	att.On("SubmitCapture", mock.Anything, mock.Anything).Return(record, nil).Once()
	att.On("Refresh", mock.Anything).Return([]types.AttendanceRecord{*record}, nil).Once()

	cueSpy := &countingCue{}
	archiver := &recordingArchiver{}
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := New(Options{
		Source:     camera.NewStaticSource(frame(t, 40, 20)),
		Attendance: att,
		Cue:        cueSpy,
		Archiver:   archiver,
		Now:        clock.Now,
	})
	c.RotateStep()

	outcome := c.OnCaptureRequested(context.Background())
	c.Wait()

	require.Equal(t, StatusCaptured, outcome.Status)
	assert.Equal(t, 20, outcome.Capture.Width)
	assert.Equal(t, 40, outcome.Capture.Height)
	assert.Equal(t, 90, outcome.Capture.Config.Rotation)
	assert.Equal(t, 1, cueSpy.plays)
	assert.Equal(t, 1, archiver.archived)
	require.Len(t, c.History(), 1)
	assert.Same(t, outcome.Capture, c.History()[0])
	assert.NoError(t, c.LastUploadError())
	assert.Equal(t, record, c.LastRecord())
	assert.True(t, c.InCooldown())

	att.AssertExpectations(t)
	att.AssertCalled(t, "SubmitCapture", mock.Anything, outcome.Capture.Payload)
}

func TestSettingsDoNotRewriteEarlierCaptures(t *testing.T) {
	att := new(MockAttendance)
	att.On("SubmitCapture", mock.Anything, mock.Anything).Return(&types.AttendanceRecord{ID: 1}, nil)
	att.On("Refresh", mock.Anything).Return([]types.AttendanceRecord{}, nil)

	c, _ := newTestController(t, camera.NewStaticSource(frame(t, 8, 4)), att)
	first := c.OnCaptureRequested(context.Background())
	c.Wait()

	c.RotateStep()
	c.ToggleMirror()

	assert.Equal(t, 0, first.Capture.Config.Rotation)
	assert.True(t, first.Capture.Config.Mirrored)
	assert.Equal(t, 8, first.Capture.Width)
}

func TestCooldownDropsRequests(t *testing.T) {
	att := new(MockAttendance)
	att.On("SubmitCapture", mock.Anything, mock.Anything).Return(&types.AttendanceRecord{ID: 1}, nil)
	att.On("Refresh", mock.Anything).Return([]types.AttendanceRecord{}, nil)

	c, clock := newTestController(t, camera.NewStaticSource(frame(t, 8, 8)), att)

	require.Equal(t, StatusCaptured, c.OnCaptureRequested(context.Background()).Status)
	c.Wait()

	clock.Advance(time.Second)
	assert.Equal(t, StatusCooldown, c.OnCaptureRequested(context.Background()).Status)
	c.Wait()

	assert.Len(t, c.History(), 1)
	att.AssertNumberOfCalls(t, "SubmitCapture", 1)

	clock.Advance(2 * time.Second)
	assert.False(t, c.InCooldown())
	assert.Equal(t, StatusCaptured, c.OnCaptureRequested(context.Background()).Status)
	c.Wait()

	assert.Len(t, c.History(), 2)
	att.AssertNumberOfCalls(t, "SubmitCapture", 2)
}

func TestNoFrameStillArmsCooldown(t *testing.T) {
	att := new(MockAttendance)
	cueSpy := &countingCue{err: errors.New("no audio device")}
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := New(Options{
		Source:     &camera.StaticSource{},
		Attendance: att,
		Cue:        cueSpy,
		Now:        clock.Now,
	})

	outcome := c.OnCaptureRequested(context.Background())
	c.Wait()

	assert.Equal(t, StatusNoFrame, outcome.Status)
	assert.Nil(t, outcome.Capture)
	assert.Equal(t, 1, cueSpy.plays)
	assert.Empty(t, c.History())
	assert.True(t, c.InCooldown())
	assert.Equal(t, 3*time.Second, c.CooldownRemaining())
	att.AssertNotCalled(t, "SubmitCapture", mock.Anything, mock.Anything)
}

func TestDecodeFailureIsDropped(t *testing.T) {
	att := new(MockAttendance)
	c, _ := newTestController(t, camera.NewStaticSource(transform.EncodeDataURI("image/jpeg", []byte("garbage"))), att)

	outcome := c.OnCaptureRequested(context.Background())
	c.Wait()

	assert.Equal(t, StatusDecodeFailed, outcome.Status)
	assert.Empty(t, c.History())
	assert.True(t, c.InCooldown())
	att.AssertNotCalled(t, "SubmitCapture", mock.Anything, mock.Anything)
}

func TestUploadFailureKeepsHistory(t *testing.T) {
	att := new(MockAttendance)
	att.On("SubmitCapture", mock.Anything, mock.Anything).Return(nil, &attendance.UploadError{StatusCode: 500})

	c, _ := newTestController(t, camera.NewStaticSource(frame(t, 8, 8)), att)
	outcome := c.OnCaptureRequested(context.Background())
	c.Wait()

	assert.Equal(t, StatusCaptured, outcome.Status)
	assert.Len(t, c.History(), 1)

	var uploadErr *attendance.UploadError
	assert.True(t, errors.As(c.LastUploadError(), &uploadErr))
	assert.Nil(t, c.LastRecord())
	att.AssertNotCalled(t, "Refresh", mock.Anything)
}

func TestFacingSelectsSource(t *testing.T) {
	att := new(MockAttendance)
	att.On("SubmitCapture", mock.Anything, mock.Anything).Return(&types.AttendanceRecord{ID: 1}, nil)
	att.On("Refresh", mock.Anything).Return([]types.AttendanceRecord{}, nil)

	src := &camera.StaticSource{Frames: map[types.Facing]string{types.FacingBack: frame(t, 6, 2)}}
	c, clock := newTestController(t, src, att)

	assert.Equal(t, StatusNoFrame, c.OnCaptureRequested(context.Background()).Status)

	clock.Advance(DefaultCooldown)
	c.SetFacing(types.FacingBack)
	outcome := c.OnCaptureRequested(context.Background())
	c.Wait()
	assert.Equal(t, StatusCaptured, outcome.Status)
	assert.Equal(t, types.FacingBack, outcome.Capture.Config.Facing)
}

func TestViewSortsByRecency(t *testing.T) {
	att := new(MockAttendance)
	att.On("FetchAttendance", mock.Anything).Return([]types.AttendanceRecord{
		{ID: 1, Img: "a.jpg", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: 2, Img: "b.jpg", CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	}, nil)

	c, _ := newTestController(t, nil, att)
	v := c.View(context.Background())

	require.False(t, v.Loading)
	require.Len(t, v.Records, 2)
	assert.Equal(t, int64(2), v.Records[0].ID)
	assert.Equal(t, int64(1), v.Records[1].ID)
}

func TestViewLoadingOnFetchError(t *testing.T) {
	att := new(MockAttendance)
	att.On("FetchAttendance", mock.Anything).Return(nil, &attendance.FetchError{StatusCode: 502})

	c, _ := newTestController(t, nil, att)

	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	assert.Equal(t, LoadingText+"\n", buf.String())
}

func TestRenderView(t *testing.T) {
	v := View{
		Settings:     types.TransformConfig{Facing: types.FacingBack, Mirrored: true, Rotation: 270},
		InCooldown:   true,
		HistoryCount: 2,
		Records: []types.AttendanceRecord{
			{ID: 5, Img: "http://svc/media/x.jpg", CreatedAt: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderView(&buf, v))
	out := buf.String()

	assert.Contains(t, out, "[Front] [*Back] [*Mirror] [Flip Vertically] Rotation: 270°")
	assert.Contains(t, out, "Cooldown...")
	assert.Contains(t, out, "Local captures: 2")
	assert.Contains(t, out, "#5")
	assert.Contains(t, out, "http://svc/media/x.jpg")
}

func TestSortByRecencyIsStable(t *testing.T) {
	same := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	records := []types.AttendanceRecord{
		{ID: 1, CreatedAt: same},
		{ID: 2, CreatedAt: same.Add(time.Hour)},
		{ID: 3, CreatedAt: same},
	}
	SortByRecency(records)
	assert.Equal(t, []int64{2, 1, 3}, []int64{records[0].ID, records[1].ID, records[2].ID})
}

// End to end against a fake attendance service over HTTP

type attendanceService struct {
	gets  atomic.Int32
	posts atomic.Int32
	fail  bool
}

func (s *attendanceService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.gets.Add(1)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[{"id": 1, "img": "a.jpg", "created_at": "2024-01-01"}, {"id": 2, "img": "b.jpg", "created_at": "2024-06-01"}]`)
	case http.MethodPost:
		s.posts.Add(1)
		if s.fail {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		io.WriteString(w, `{"id": 3, "img": "c.jpg", "created_at": "2024-07-01T00:00:00Z"}`)
	}
}

func TestEndToEndFetchOrdering(t *testing.T) {
	svc := &attendanceService{}
	ts := httptest.NewServer(svc)
	defer ts.Close()

	client, err := attendance.NewClient(ts.URL)
	require.NoError(t, err)

	c, _ := newTestController(t, nil, client)

	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	out := buf.String()

	require.Contains(t, out, "#2")
	assert.Less(t, strings.Index(out, "#2"), strings.Index(out, "#1"), "2024-06-01 must be listed first")
}

func TestEndToEndFailedUploadDoesNotRefetch(t *testing.T) {
	svc := &attendanceService{fail: true}
	ts := httptest.NewServer(svc)
	defer ts.Close()

	client, err := attendance.NewClient(ts.URL)
	require.NoError(t, err)

	c, _ := newTestController(t, camera.NewStaticSource(frame(t, 8, 8)), client)
	c.View(context.Background())
	require.Equal(t, int32(1), svc.gets.Load())

	c.OnCaptureRequested(context.Background())
	c.Wait()

	assert.Equal(t, int32(1), svc.posts.Load())
	assert.Equal(t, int32(1), svc.gets.Load())
	_, cached := client.Cached()
	assert.True(t, cached)
	assert.Len(t, c.History(), 1)
}

func TestEndToEndSuccessfulUploadRefetches(t *testing.T) {
	svc := &attendanceService{}
	ts := httptest.NewServer(svc)
	defer ts.Close()

	client, err := attendance.NewClient(ts.URL)
	require.NoError(t, err)

	c, _ := newTestController(t, camera.NewStaticSource(frame(t, 8, 8)), client)
	c.View(context.Background())

	c.OnCaptureRequested(context.Background())
	c.Wait()

	assert.Equal(t, int32(2), svc.gets.Load())
	_, cached := client.Cached()
	assert.True(t, cached)
}

func TestRejectedSettingsAreNotDecodeFailures(t *testing.T) {
	att := new(MockAttendance)
	c, _ := newTestController(t, camera.NewStaticSource(frame(t, 8, 8)), att)
	c.settings.Rotation = 45

	outcome := c.OnCaptureRequested(context.Background())
	c.Wait()

	assert.Equal(t, StatusTransformFailed, outcome.Status)
	assert.Equal(t, "transform failed", outcome.Status.String())
	assert.Empty(t, c.History())
	assert.True(t, c.InCooldown())
	att.AssertNotCalled(t, "SubmitCapture", mock.Anything, mock.Anything)
}

func TestLateOlderUploadDoesNotMaskNewerFailure(t *testing.T) {
	first, second := frame(t, 8, 8), frame(t, 4, 6)
	engine := transform.NewEngine()
	settings := types.DefaultTransformConfig()
	firstCapture, err := engine.Transform(first, settings)
	require.NoError(t, err)
	secondCapture, err := engine.Transform(second, settings)
	require.NoError(t, err)

	release := make(chan struct{})
	att := new(MockAttendance)
	att.On("SubmitCapture", mock.Anything, firstCapture.Payload).
		Run(func(mock.Arguments) { <-release }).
		Return(&types.AttendanceRecord{ID: 1}, nil)
	att.On("SubmitCapture", mock.Anything, secondCapture.Payload).
		Return(nil, &attendance.UploadError{StatusCode: http.StatusBadGateway})
	att.On("Refresh", mock.Anything).Return([]types.AttendanceRecord{}, nil)

	src := camera.NewStaticSource(first)
	c, clock := newTestController(t, src, att)

	require.Equal(t, StatusCaptured, c.OnCaptureRequested(context.Background()).Status)
	clock.Advance(DefaultCooldown)
	src.Frames[types.FacingFront] = second
	require.Equal(t, StatusCaptured, c.OnCaptureRequested(context.Background()).Status)

	require.Eventually(t, func() bool { return c.LastUploadError() != nil }, 2*time.Second, 5*time.Millisecond)
	close(release)
	c.Wait()

	var uploadErr *attendance.UploadError
	assert.True(t, errors.As(c.LastUploadError(), &uploadErr), "the newer failure must stay visible")
	require.NotNil(t, c.LastRecord())
	assert.Equal(t, int64(1), c.LastRecord().ID)
}

func TestLatestCaptureAndClearHistory(t *testing.T) {
	c, clock := newTestController(t, camera.NewStaticSource(frame(t, 8, 8)), nil)
	assert.Nil(t, c.LatestCapture())

	c.OnCaptureRequested(context.Background())
	clock.Advance(DefaultCooldown)
	c.RotateStep()
	outcome := c.OnCaptureRequested(context.Background())

	require.NotNil(t, c.LatestCapture())
	assert.Same(t, outcome.Capture, c.LatestCapture())
	assert.Len(t, c.History(), 2)

	c.ClearHistory()
	assert.Empty(t, c.History())
	assert.Nil(t, c.LatestCapture())
}
