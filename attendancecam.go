// Package attendancecam captures camera stills, bakes the operator's transform
// settings into the pixels and submits them to an attendance service.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//		"os"
//
//		attendancecam "github.com/cuckoodile/attendance-cam"
//		"github.com/cuckoodile/attendance-cam/internal/config"
//	)
//
//	func main() {
//		cfg := config.Default()
//		cfg.Camera.FrontSource = "/run/camera/front.jpg"
//
//		app, err := attendancecam.New(cfg, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		app.Controller.RotateStep()
//		app.Controller.OnCaptureRequested(context.Background())
//		app.Controller.Wait()
//		app.Controller.Render(context.Background(), os.Stdout)
//	}
//
// The package consists of these components:
//
// 1. Camera (pkg/camera): per-facing frame sources (files, HTTP snapshot URLs)
// 2. Transform (pkg/transform): mirror, flip and quarter-turn rotation baked into JPEG
// 3. History (pkg/history): the five most recent local captures
// 4. Attendance (pkg/attendance): list and upload against the attendance service, with a query cache
// 5. Controller (pkg/controller): settings, capture cooldown, upload orchestration and rendering
package attendancecam

import (
	"fmt"
	"os"
	"strings"

	"github.com/cuckoodile/attendance-cam/internal/config"
	"github.com/cuckoodile/attendance-cam/internal/logger"
	"github.com/cuckoodile/attendance-cam/internal/utils"
	"github.com/cuckoodile/attendance-cam/pkg/attendance"
	"github.com/cuckoodile/attendance-cam/pkg/camera"
	"github.com/cuckoodile/attendance-cam/pkg/controller"
	"github.com/cuckoodile/attendance-cam/pkg/cue"
	"github.com/cuckoodile/attendance-cam/pkg/transform"
	"github.com/cuckoodile/attendance-cam/pkg/types"
)

// Version of the attendance-cam library
const Version = "1.0.0"

// App bundles the wired components
type App struct {
	Config     *config.Config
	Source     camera.Source
	Engine     *transform.Engine
	Client     *attendance.Client
	Controller *controller.Controller
}

// New wires every component from cfg. A nil logger discards output.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}

	source, err := NewSource(cfg.Camera)
	if err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}

	client, err := attendance.NewClient(cfg.Service.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("attendance client: %w", err)
	}
	client.SetTimeout(cfg.Timeout())

	engine := transform.NewEngineWithQuality(cfg.Capture.JPEGQuality)

	var archiver controller.Archiver
	if cfg.Capture.ArchiveDir != "" {
		archiver, err = NewDirArchiver(engine, cfg.Capture.ArchiveDir, cfg.Capture.ArchiveFormat)
		if err != nil {
			return nil, fmt.Errorf("capture archive: %w", err)
		}
	}

	ctrl := controller.New(controller.Options{
		Source:     source,
		Engine:     engine,
		Attendance: client,
		Cue:        cue.FromSettings(cfg.Cue.Command, cfg.Cue.Bell, os.Stdout),
		Archiver:   archiver,
		Logger:     log,
		Cooldown:   cfg.Cooldown(),
	})

	return &App{
		Config:     cfg,
		Source:     source,
		Engine:     engine,
		Client:     client,
		Controller: ctrl,
	}, nil
}

// NewSource builds a camera source per facing. Values starting with http:// or
// https:// are snapshot URLs, anything else is a file path.
func NewSource(cfg config.CameraConfig) (camera.Source, error) {
	mux := camera.Mux{}
	for facing, location := range map[types.Facing]string{
		types.FacingFront: cfg.FrontSource,
		types.FacingBack:  cfg.BackSource,
	} {
		if location == "" {
			continue
		}
		if isURL(location) {
			src, err := camera.NewHTTPSource(location, location)
			if err != nil {
				return nil, err
			}
			mux[facing] = src
			continue
		}
		mux[facing] = camera.NewFileSource(location, location)
	}
	return mux, nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// DirArchiver writes every capture into a directory
type DirArchiver struct {
	engine *transform.Engine
	dir    string
	format string
}

// NewDirArchiver creates the directory when missing
func NewDirArchiver(engine *transform.Engine, dir, format string) (*DirArchiver, error) {
	if err := utils.EnsureDir(dir); err != nil {
		return nil, err
	}
	if format == "" {
		format = "jpg"
	}
	return &DirArchiver{engine: engine, dir: dir, format: format}, nil
}

// Archive saves capture under a timestamped name
func (a *DirArchiver) Archive(capture *types.TransformedCapture) error {
	path := utils.CaptureFilename(a.dir, capture.CapturedAt, string(capture.Config.Facing), a.format)
	if err := a.engine.Save(capture, path, a.format); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
