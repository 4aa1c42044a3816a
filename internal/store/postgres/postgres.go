package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vovakirdan/chatrelay/internal/store"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS users (
  id            TEXT PRIMARY KEY,
  username      TEXT NOT NULL,
  email         TEXT NOT NULL UNIQUE,
  password_hash TEXT NOT NULL,
  created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
  seq         BIGSERIAL PRIMARY KEY,
  id          TEXT NOT NULL UNIQUE,
  sender      TEXT NOT NULL,
  sender_name TEXT NOT NULL DEFAULT '',
  body        TEXT NOT NULL DEFAULT '',
  room        TEXT,
  to_user     TEXT,
  to_name     TEXT,
  is_private  BOOLEAN NOT NULL DEFAULT FALSE,
  file_name   TEXT,
  file_type   TEXT,
  file_data   TEXT,
  created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_room_time ON messages (room, created_at, seq);
CREATE INDEX IF NOT EXISTS idx_messages_public_time ON messages (created_at, seq) WHERE room IS NULL AND NOT is_private;
`

// PostgresStore implements store.Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, verifies the connection and ensures the schema exists.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(connectCtx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateUser inserts a new user.
func (s *PostgresStore) CreateUser(ctx context.Context, user *store.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query, user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("insert user: %w", store.ErrDuplicate)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE email = $1
	`
	var user store.User
	err := s.pool.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", email, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

const messageColumns = `id, sender, sender_name, body, room, to_user, to_name, is_private, file_name, file_type, file_data, created_at`

// SaveMessage persists a message.
func (s *PostgresStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (` + messageColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	var fileName, fileType, fileData *string
	if msg.File != nil {
		fileName, fileType, fileData = &msg.File.Name, &msg.File.Type, &msg.File.Data
	}

	_, err := s.pool.Exec(ctx, query,
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
		msg.Time,
	)
	if err != nil {
		return fmt.Errorf("insert message %q: %w", msg.ID, err)
	}
	return nil
}

// ListPublicMessages returns global, non-private messages oldest first.
func (s *PostgresStore) ListPublicMessages(ctx context.Context, limit int) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room IS NULL AND NOT is_private
		ORDER BY created_at ASC, seq ASC
		LIMIT $1
	`
	return s.queryMessages(ctx, query, limit)
}

// ListRoomMessages returns messages tagged with room oldest first.
func (s *PostgresStore) ListRoomMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room = $1
		ORDER BY created_at ASC, seq ASC
		LIMIT $2
	`
	return s.queryMessages(ctx, query, room, limit)
}

func (s *PostgresStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0)
	for rows.Next() {
		var (
			msg                          store.Message
			fileName, fileType, fileData *string
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.User,
			&msg.UserName,
			&msg.Msg,
			&msg.Room,
			&msg.To,
			&msg.ToName,
			&msg.IsPrivate,
			&fileName,
			&fileType,
			&fileData,
			&msg.Time,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if fileData != nil {
			msg.File = &store.FileAttachment{
				Name: store.Deref(fileName),
				Type: store.Deref(fileType),
				Data: *fileData,
			}
		}
		msg.Time = msg.Time.UTC()
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

var _ store.Store = (*PostgresStore)(nil)
