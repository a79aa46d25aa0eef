package server

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Row is a stored attendance entry; Img is the media-relative file path
type Row struct {
	ID        int64
	Img       string
	CreatedAt time.Time
}

// Store keeps attendance rows in SQLite with serialized writes
type Store struct {
	conn *sql.DB
	mu   sync.RWMutex
}

// OpenStore opens (and migrates) the SQLite database at dbPath
func OpenStore(dbPath string) (*Store, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS attendance (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		img TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attendance_created_at ON attendance(created_at);
	`

	_, err := s.conn.Exec(schema)
	return err
}

// Create inserts a row stamped with createdAt
func (s *Store) Create(img string, createdAt time.Time) (*Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt = createdAt.UTC()
	result, err := s.conn.Exec(`INSERT INTO attendance (img, created_at) VALUES (?, ?)`, img, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert attendance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read attendance id: %w", err)
	}

	return &Row{ID: id, Img: img, CreatedAt: createdAt}, nil
}

// List returns every row in insertion order
func (s *Store) List() ([]Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.conn.Query(`SELECT id, img, created_at FROM attendance ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance: %w", err)
	}
	defer rows.Close()

	out := []Row{}
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Img, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}
