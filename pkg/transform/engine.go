package transform

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/cuckoodile/attendance-cam/pkg/types"
)

// DefaultQuality matches the JPEG quality browsers use for canvas exports
const DefaultQuality = 92

// ErrDecode is matched by every DecodeError via errors.Is
var ErrDecode = errors.New("snapshot could not be decoded")

// DecodeError reports a snapshot that is malformed or has no pixels
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode snapshot: %s: %v", e.Reason, e.Err)
	}
	return "decode snapshot: " + e.Reason
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// Engine bakes a TransformConfig into snapshot pixels
type Engine struct {
	quality int
	now     func() time.Time
}

// NewEngine creates an engine that encodes JPEG at the default quality
func NewEngine() *Engine {
	return NewEngineWithQuality(DefaultQuality)
}

// NewEngineWithQuality creates an engine with a custom JPEG quality (1-100)
func NewEngineWithQuality(quality int) *Engine {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Engine{quality: quality, now: time.Now}
}

// Transform decodes a raw snapshot, applies cfg and returns the encoded capture.
// Nothing is produced when the snapshot fails to decode.
func (e *Engine) Transform(raw string, cfg types.TransformConfig) (*types.TransformedCapture, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src, err := DecodeSnapshot(raw)
	if err != nil {
		return nil, err
	}

	out := e.Apply(src, cfg)

	payload, err := e.Encode(out)
	if err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}

	b := out.Bounds()
	return &types.TransformedCapture{
		DataURI:    EncodeDataURI("image/jpeg", payload),
		Payload:    payload,
		Width:      b.Dx(),
		Height:     b.Dy(),
		Config:     cfg,
		CapturedAt: e.now(),
	}, nil
}

// Apply returns a new image sized to the post-rotation bounding box.
//
// The mapping is the one a 2D canvas produces for translate(center), rotate(θ),
// scale(mirror, flip), drawImage(centered): the source is mirrored and flipped
// about its own center first, then turned clockwise by θ. Swapping that order
// reverses the apparent rotation whenever exactly one axis is mirrored.
func (e *Engine) Apply(src image.Image, cfg types.TransformConfig) *image.NRGBA {
	cfg = cfg.Normalized()

	img := imaging.Clone(src)
	if cfg.Mirrored {
		img = imaging.FlipH(img)
	}
	if cfg.Flipped {
		img = imaging.FlipV(img)
	}

	// imaging rotates counter-clockwise
	switch cfg.Rotation {
	case 90:
		img = imaging.Rotate270(img)
	case 180:
		img = imaging.Rotate180(img)
	case 270:
		img = imaging.Rotate90(img)
	}
	return img
}

// Encode writes img as JPEG at the engine quality
func (e *Engine) Encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.quality)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save writes a capture to path in the given format (jpg, png or webp)
func (e *Engine) Save(capture *types.TransformedCapture, path, format string) error {
	switch strings.ToLower(format) {
	case "", "jpg", "jpeg":
		return os.WriteFile(path, capture.Payload, 0o644)
	}

	img, err := decodeImageFromBytes(capture.Payload)
	if err != nil {
		return err
	}

	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Quality: float32(e.quality)}
		return webp.Encode(f, img, opts)
	case "png":
		return imaging.Save(img, path)
	default:
		return fmt.Errorf("unsupported archive format: %s", format)
	}
}

// DecodeSnapshot decodes a data URI or a bare base64 payload into an image
func DecodeSnapshot(raw string) (image.Image, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, &DecodeError{Reason: "empty snapshot"}
	}

	data, err := decodeSnapshotBytes(raw)
	if err != nil {
		return nil, &DecodeError{Reason: "bad data URI", Err: err}
	}

	img, err := decodeImageFromBytes(data)
	if err != nil {
		return nil, &DecodeError{Reason: "unknown image format", Err: err}
	}

	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return nil, &DecodeError{Reason: fmt.Sprintf("image has no pixels (%dx%d)", b.Dx(), b.Dy())}
	}
	return img, nil
}

func decodeSnapshotBytes(raw string) ([]byte, error) {
	if strings.HasPrefix(raw, "data:") {
		_, data, err := ParseDataURI(raw)
		return data, err
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func decodeImageFromBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// ParseDataURI splits a base64 data URI into its mime type and decoded bytes
func ParseDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, fmt.Errorf("not a data URI")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("data URI has no payload")
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("data URI is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mime, data, nil
}

// EncodeDataURI builds a base64 data URI
func EncodeDataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
