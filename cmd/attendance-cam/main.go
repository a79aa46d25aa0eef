package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	attendancecam "github.com/cuckoodile/attendance-cam"
	"github.com/cuckoodile/attendance-cam/internal/config"
	"github.com/cuckoodile/attendance-cam/internal/logger"
	"github.com/cuckoodile/attendance-cam/internal/utils"
	"github.com/cuckoodile/attendance-cam/pkg/controller"
	"github.com/cuckoodile/attendance-cam/pkg/types"
)

const help = `commands:
  front | back      select the camera
  mirror            toggle horizontal mirroring
  flip              toggle vertical flip
  rotate            rotate a further 90 degrees clockwise
  capture | c       take a capture and upload it
  list | l          show the attendance list
  history | h       show local captures
  clear             drop local captures
  save-config       write the effective configuration to the config file
  status | s        show the current settings
  help              show this help
  quit | q          wait for pending uploads and exit`

func main() {
	var configPath, url, front, back, archive, ext, logDir string
	var quality int
	var once, debug bool

	flag.StringVar(&configPath, "config", config.GetConfigPath(), "config file path (JSON)")
	flag.StringVar(&url, "url", "", "attendance service base URL (overrides config)")
	flag.StringVar(&front, "front", "", "front camera source: file path or http(s) snapshot URL")
	flag.StringVar(&back, "back", "", "back camera source: file path or http(s) snapshot URL")
	flag.StringVar(&archive, "archive", "", "directory receiving a copy of every capture")
	flag.StringVar(&ext, "ext", "", "archive format: jpg|png|webp")
	flag.IntVar(&quality, "quality", 0, "JPEG quality for uploads (1-100)")
	flag.StringVar(&logDir, "logdir", "", "directory for log files")
	flag.BoolVar(&once, "once", false, "take a single capture, wait for the upload and exit")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if url != "" {
		cfg.Service.BaseURL = url
	}
	if front != "" {
		cfg.Camera.FrontSource = front
	}
	if back != "" {
		cfg.Camera.BackSource = back
	}
	if archive != "" {
		cfg.Capture.ArchiveDir = archive
	}
	if ext != "" {
		cfg.Capture.ArchiveFormat = strings.ToLower(ext)
	}
	if quality != 0 {
		cfg.Capture.JPEGQuality = quality
	}
	if logDir != "" {
		cfg.Log.Dir = logDir
	}
	if debug {
		cfg.Log.Debug = true
	}

	lg, err := logger.New(cfg.Log.Dir, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Close()

	app, err := attendancecam.New(cfg, lg)
	if err != nil {
		log.Fatalf("usage: %s [-front path|URL] [-back path|URL] [-url service] [-archive dir]: %v", filepath.Base(os.Args[0]), err)
	}
	lg.Info("attendance-cam %s using %s", attendancecam.GetVersion(), cfg.Service.BaseURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once {
		outcome := app.Controller.OnCaptureRequested(ctx)
		app.Controller.Wait()
		if outcome.Status != controller.StatusCaptured {
			log.Fatalf("capture failed: %s", outcome.Status)
		}
		if err := app.Controller.LastUploadError(); err != nil {
			log.Fatalf("%v", err)
		}
		if rec := app.Controller.LastRecord(); rec != nil {
			fmt.Printf("uploaded #%d %s\n", rec.ID, rec.Img)
		}
		return
	}

	run(ctx, app, configPath)
	app.Controller.Wait()
}

func run(ctx context.Context, app *attendancecam.App, configPath string) {
	ctrl := app.Controller
	if err := ctrl.Render(ctx, os.Stdout); err != nil {
		log.Printf("render: %v", err)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = strings.ToLower(strings.TrimSpace(l))
		}

		switch line {
		case "":
			continue
		case "front", "back", "user", "environment":
			facing, err := types.ParseFacing(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			ctrl.SetFacing(facing)
			printSettings(ctrl)
		case "mirror":
			ctrl.ToggleMirror()
			printSettings(ctrl)
		case "flip":
			ctrl.ToggleFlip()
			printSettings(ctrl)
		case "rotate", "r":
			ctrl.RotateStep()
			printSettings(ctrl)
		case "capture", "c":
			outcome := ctrl.OnCaptureRequested(ctx)
			switch outcome.Status {
			case controller.StatusCaptured:
				fmt.Printf("captured %dx%d, uploading\n", outcome.Capture.Width, outcome.Capture.Height)
			case controller.StatusCooldown:
				fmt.Printf("cooldown, %s left\n", ctrl.CooldownRemaining().Round(100 * time.Millisecond))
			default:
				fmt.Println(outcome.Status)
			}
		case "list", "l":
			if err := ctrl.Render(ctx, os.Stdout); err != nil {
				log.Printf("render: %v", err)
			}
		case "history", "h":
			printHistory(ctrl)
		case "clear":
			ctrl.ClearHistory()
			fmt.Println("local captures cleared")
		case "save-config":
			if err := app.Config.SaveToFile(configPath); err != nil {
				fmt.Printf("save config: %v\n", err)
				continue
			}
			fmt.Printf("wrote %s\n", configPath)
		case "status", "s":
			printSettings(ctrl)
			if err := ctrl.LastUploadError(); err != nil {
				fmt.Printf("last upload: %v\n", err)
			}
		case "help", "?":
			fmt.Println(help)
		case "quit", "q", "exit":
			return
		default:
			fmt.Printf("unknown command %q, try help\n", line)
		}
	}
}

func printSettings(ctrl *controller.Controller) {
	s := ctrl.Settings()
	fmt.Printf("facing=%s mirrored=%t flipped=%t rotation=%d°\n", s.Facing, s.Mirrored, s.Flipped, s.Rotation)
}

func printHistory(ctrl *controller.Controller) {
	items := ctrl.History()
	if len(items) == 0 {
		fmt.Println("no local captures")
		return
	}
	for i, c := range items {
		fmt.Printf("  %d. %s %dx%d %s rotation=%d°\n", i+1,
			c.CapturedAt.Local().Format("15:04:05"), c.Width, c.Height, c.Config.Facing, c.Config.Rotation)
	}
	if latest := ctrl.LatestCapture(); latest != nil {
		fmt.Printf("latest: %s, mirrored=%t flipped=%t\n",
			utils.FormatFileSize(int64(len(latest.Payload))), latest.Config.Mirrored, latest.Config.Flipped)
	}
}
