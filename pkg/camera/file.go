package camera

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/cuckoodile/attendance-cam/pkg/transform"
	"github.com/cuckoodile/attendance-cam/pkg/types"
)

// FileSource reads the current frame from a file per facing, for example a still
// that rpicam-still or ffmpeg keeps overwriting
type FileSource struct {
	paths map[types.Facing]string
}

// NewFileSource creates a file source; an empty path disables that facing
func NewFileSource(front, back string) *FileSource {
	return &FileSource{paths: map[types.Facing]string{
		types.FacingFront: front,
		types.FacingBack:  back,
	}}
}

func (s *FileSource) Snapshot(ctx context.Context, facing types.Facing) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := s.paths[facing]
	if path == "" {
		return "", ErrNoFrame
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNoFrame
	}
	if err != nil {
		return "", fmt.Errorf("read frame %s: %w", path, err)
	}
	if len(data) == 0 {
		return "", ErrNoFrame
	}

	return frameDataURI(data), nil
}

// frameDataURI sniffs the content type and wraps data as a data URI
func frameDataURI(data []byte) string {
	mime := mimetype.Detect(data).String()
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	return transform.EncodeDataURI(mime, data)
}
