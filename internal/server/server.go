// Package server is a small reference implementation of the attendance service:
// it lists attendance records and accepts multipart image uploads.
package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuckoodile/attendance-cam/internal/logger"
	"github.com/cuckoodile/attendance-cam/internal/utils"
	"github.com/cuckoodile/attendance-cam/pkg/types"
)

const (
	imagesDir      = "attendance_images"
	mediaRoute     = "/media"
	maxUploadBytes = 16 << 20
)

// Server serves the attendance API
type Server struct {
	store     *Store
	mediaDir  string
	publicURL string
	log       *logger.Logger
	now       func() time.Time
	maxUpload int64
}

// New creates a server storing uploads below mediaDir. publicURL, when set,
// prefixes image URLs; otherwise they are built from the request host.
func New(store *Store, mediaDir, publicURL string, log *logger.Logger) (*Server, error) {
	if err := utils.EnsureDir(filepath.Join(mediaDir, imagesDir)); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		store:     store,
		mediaDir:  mediaDir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
		log:       log,
		now:       time.Now,
		maxUpload: maxUploadBytes,
	}, nil
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.MaxMultipartMemory = maxUploadBytes

	r.GET("/api/attendance/", s.listAttendance)
	r.POST("/api/attendance/", s.createAttendance)
	r.Static(mediaRoute, s.mediaDir)

	return r
}

func (s *Server) listAttendance(c *gin.Context) {
	rows, err := s.store.List()
	if err != nil {
		s.log.Error("list attendance: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list attendance"})
		return
	}

	records := make([]types.AttendanceRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, s.record(c, row))
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) createAttendance(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	header, err := c.FormFile("img")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"img": []string{"File too large."}})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"img": []string{"No file was submitted."}})
		return
	}
	if utils.GetFileExtension(header.Filename) != "" && !utils.IsImageFile(header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"img": []string{"Upload a valid image."}})
		return
	}

	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"img": []string{"Upload could not be read."}})
		return
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"img": []string{"Upload could not be read."}})
		return
	}

	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		c.JSON(http.StatusBadRequest, gin.H{"img": []string{"Upload a valid image."}})
		return
	}

	name := uuid.NewString() + mime.Extension()
	rel := path.Join(imagesDir, name)
	if err := os.WriteFile(filepath.Join(s.mediaDir, imagesDir, name), data, 0o644); err != nil {
		s.log.Error("store upload: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store image"})
		return
	}

	row, err := s.store.Create(rel, s.now())
	if err != nil {
		s.log.Error("create attendance: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create attendance"})
		return
	}

	s.log.Info("attendance %d stored (%s, %s)", row.ID, rel, utils.FormatFileSize(int64(len(data))))
	c.JSON(http.StatusOK, s.record(c, *row))
}

// record turns a row into the API shape with an absolute image URL
func (s *Server) record(c *gin.Context, row Row) types.AttendanceRecord {
	base := s.publicURL
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	return types.AttendanceRecord{
		ID:        row.ID,
		Img:       base + mediaRoute + "/" + row.Img,
		CreatedAt: row.CreatedAt,
	}
}
