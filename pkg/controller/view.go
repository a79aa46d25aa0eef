package controller

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cuckoodile/attendance-cam/pkg/types"
)

// LoadingText is shown while the attendance list is pending or failed to load
const LoadingText = "Loading..."

// View is a snapshot of everything the operator sees
type View struct {
	Loading      bool
	Settings     types.TransformConfig
	InCooldown   bool
	Records      []types.AttendanceRecord
	HistoryCount int
}

// View fetches the attendance list (cache first) and assembles the view.
// A failed fetch yields a loading view, never a partial list.
func (c *Controller) View(ctx context.Context) View {
	v := View{
		Settings:     c.settings,
		InCooldown:   c.InCooldown(),
		HistoryCount: c.history.Len(),
	}

	if c.attendance == nil {
		v.Loading = true
		return v
	}

	records, err := c.attendance.FetchAttendance(ctx)
	if err != nil {
		c.log.Error("load attendance: %v", err)
		v.Loading = true
		return v
	}

	SortByRecency(records)
	v.Records = records
	return v
}

// Render writes the current view as text
func (c *Controller) Render(ctx context.Context, w io.Writer) error {
	return RenderView(w, c.View(ctx))
}

// RenderView writes v as text
func RenderView(w io.Writer, v View) error {
	if v.Loading {
		_, err := fmt.Fprintln(w, LoadingText)
		return err
	}

	var b strings.Builder
	b.WriteString("Webcam Capture\n")
	fmt.Fprintf(&b, "[%s] [%s] [%s] [%s] Rotation: %d°\n",
		toggle("Front", v.Settings.Facing == types.FacingFront),
		toggle("Back", v.Settings.Facing == types.FacingBack),
		toggle("Mirror", v.Settings.Mirrored),
		toggle("Flip Vertically", v.Settings.Flipped),
		v.Settings.Rotation)

	if v.InCooldown {
		b.WriteString("( Cooldown... )\n")
	} else {
		b.WriteString("( Capture )\n")
	}

	fmt.Fprintf(&b, "Local captures: %d\n", v.HistoryCount)
	fmt.Fprintf(&b, "Latest captures (%d):\n", len(v.Records))
	for i, r := range v.Records {
		fmt.Fprintf(&b, "  %d. #%d %s %s\n", i+1, r.ID, formatCreatedAt(r.CreatedAt), r.Img)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func toggle(label string, on bool) string {
	if on {
		return "*" + label
	}
	return label
}

func formatCreatedAt(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
