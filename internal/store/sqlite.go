package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const (
	timeFormat = "2006-01-02T15:04:05.000000000Z07:00"
	memoryPath = ":memory:"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		notification_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		delivered INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		cwd TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_nid ON notifications(notification_id);
	CREATE INDEX IF NOT EXISTS idx_notifications_created ON notifications(created_at);`,
}

// SQLiteStore implements Store using modernc.org/sqlite (pure Go, zero CGO).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
// The database file is created with 0600 permissions and its parent directory with 0700.
// Several hook processes may open the same file at once; the busy timeout
// serializes their writes.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := path
	if path != memoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}

		// Pre-create the file with restrictive permissions if it doesn't exist
		if _, err := os.Stat(path); os.IsNotExist(err) {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return nil, fmt.Errorf("creating database file: %w", err)
			}
			_ = f.Close()
		}

		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite handles one writer at a time
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	// Ensure schema_version table exists
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	var current int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		slog.Info("applying migration", "version", i+1)
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT OR IGNORE INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("recording migration %d: %w", i+1, err)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Notifications ---

func (s *SQLiteStore) RecordNotification(n *NotificationRecord) error {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	res, err := s.db.Exec(`INSERT INTO notifications (notification_id, kind, delivered, reason, cwd, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		n.NotificationID, n.Kind, boolToInt(n.Delivered), n.Reason, n.Cwd, formatTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("inserting notification: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		n.ID = id
	}
	return nil
}

func (s *SQLiteStore) ListNotifications(f NotificationFilter) ([]NotificationRecord, error) {
	query := `SELECT id, notification_id, kind, delivered, reason, cwd, created_at
		FROM notifications WHERE 1=1`
	var args []any

	if f.NotificationID != "" {
		query += " AND notification_id = ?"
		args = append(args, f.NotificationID)
	}
	if f.DeliveredOnly {
		query += " AND delivered = 1"
	}
	if !f.Since.IsZero() {
		query += " AND created_at >= ?"
		args = append(args, formatTime(f.Since))
	}

	query += " ORDER BY created_at DESC, id DESC"

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []NotificationRecord
	for rows.Next() {
		var n NotificationRecord
		var delivered int
		var createdAt string
		if err := rows.Scan(&n.ID, &n.NotificationID, &n.Kind, &delivered, &n.Reason, &n.Cwd, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		n.Delivered = delivered != 0
		n.CreatedAt = parseTime(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

// Cleanup removes notifications recorded before olderThan.
func (s *SQLiteStore) Cleanup(olderThan time.Time) (int64, error) {
	res, err := s.db.Exec("DELETE FROM notifications WHERE created_at < ?", formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("cleaning notifications: %w", err)
	}
	return res.RowsAffected()
}

// --- Helpers ---

// formatTime stores fixed-width UTC so that lexical order is chronological.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
