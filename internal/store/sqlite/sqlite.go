package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/chatrelay/internal/store"
)

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS users (
  id            TEXT PRIMARY KEY,
  username      TEXT NOT NULL,
  email         TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at    INTEGER NOT NULL
);
`,
	`
CREATE TABLE IF NOT EXISTS messages (
  seq         INTEGER PRIMARY KEY AUTOINCREMENT,
  id          TEXT NOT NULL UNIQUE,
  sender      TEXT NOT NULL,
  sender_name TEXT NOT NULL DEFAULT '',
  body        TEXT NOT NULL DEFAULT '',
  room        TEXT,
  to_user     TEXT,
  to_name     TEXT,
  is_private  INTEGER NOT NULL DEFAULT 0,
  file_name   TEXT,
  file_type   TEXT,
  file_data   TEXT,
  created_at  INTEGER NOT NULL
);
`,
	`
CREATE INDEX IF NOT EXISTS idx_messages_room_time
ON messages (room, created_at, seq);
`,
	`
CREATE INDEX IF NOT EXISTS idx_messages_public_time
ON messages (is_private, created_at, seq) WHERE room IS NULL;
`,
}

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies pending migrations.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, Migrate)
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema against an in-memory database.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Migrate brings the schema up to date, tracking progress in PRAGMA user_version.
func Migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version >= len(migrations) {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i := version; i < len(migrations); i++ {
		if _, err := tx.Exec(migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d;", i+1)); err != nil {
			return fmt.Errorf("set schema version %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Checkpoint truncates the write-ahead log.
func (s *SQLiteStore) Checkpoint(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
		return fmt.Errorf("wal checkpoint truncate: %w", err)
	}
	return nil
}

// ==== UserStore implementation ====

// CreateUser inserts a new user.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt.UnixMilli())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return fmt.Errorf("insert user: %w", store.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`
	var user store.User
	var createdAt int64
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", email, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	user.CreatedAt = time.UnixMilli(createdAt).UTC()

	return &user, nil
}

// ==== MessageStore implementation ====

const messageColumns = `id, sender, sender_name, body, room, to_user, to_name, is_private, file_name, file_type, file_data, created_at`

// SaveMessage persists a message to storage.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var fileName, fileType, fileData any
	if msg.File != nil {
		fileName, fileType, fileData = msg.File.Name, msg.File.Type, msg.File.Data
	}

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.User,
		msg.UserName,
		msg.Msg,
		msg.Room,
		msg.To,
		msg.ToName,
		msg.IsPrivate,
		fileName,
		fileType,
		fileData,
		msg.Time.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert message %q: %w", msg.ID, err)
	}
	return nil
}

// ListPublicMessages returns global, non-private messages oldest first.
func (s *SQLiteStore) ListPublicMessages(ctx context.Context, limit int) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room IS NULL AND is_private = 0
		ORDER BY created_at ASC, seq ASC
		LIMIT ?
	`
	return s.queryMessages(ctx, query, limit)
}

// ListRoomMessages returns messages tagged with room oldest first.
func (s *SQLiteStore) ListRoomMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room = ?
		ORDER BY created_at ASC, seq ASC
		LIMIT ?
	`
	return s.queryMessages(ctx, query, room, limit)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func scanMessage(rows *sql.Rows) (*store.Message, error) {
	var (
		msg                          store.Message
		room, to, toName             sql.NullString
		fileName, fileType, fileData sql.NullString
		createdAt                    int64
	)
	if err := rows.Scan(
		&msg.ID,
		&msg.User,
		&msg.UserName,
		&msg.Msg,
		&room,
		&to,
		&toName,
		&msg.IsPrivate,
		&fileName,
		&fileType,
		&fileData,
		&createdAt,
	); err != nil {
		return nil, err
	}

	msg.Room = nullString(room)
	msg.To = nullString(to)
	msg.ToName = nullString(toName)
	if fileData.Valid {
		msg.File = &store.FileAttachment{
			Name: fileName.String,
			Type: fileType.String,
			Data: fileData.String,
		}
	}
	msg.Time = time.UnixMilli(createdAt).UTC()

	return &msg, nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

var (
	_ store.Store        = (*SQLiteStore)(nil)
	_ store.Checkpointer = (*SQLiteStore)(nil)
)
