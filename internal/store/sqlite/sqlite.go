package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lobbychat/internal/store"
	"github.com/vovakirdan/lobbychat/internal/store/migrate"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ store.Store = (*SQLiteStore)(nil)

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema on an in-memory database.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}

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

// NewMemory returns an in-memory store with the schema already provisioned.
func NewMemory(ctx context.Context) (*SQLiteStore, error) {
	return NewWithSetup(":memory:", func(db *sql.DB) error {
		return migrate.Up(ctx, db, migrate.DialectSQLite, nil)
	})
}

func open(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return db, nil
}

// Migrate provisions the schema. Safe to call on an already provisioned database.
func (s *SQLiteStore) Migrate(ctx context.Context, logger *zerolog.Logger) error {
	return migrate.Up(ctx, s.db, migrate.DialectSQLite, logger)
}

// Ping checks that the database file is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser inserts an anonymous user.
func (s *SQLiteStore) CreateUser(ctx context.Context, userID string) (int64, error) {
	query := `
		INSERT INTO users (user_id, created_at)
		VALUES (?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, userID, time.Now().UTC().UnixNano())
	if err != nil {
		if isConstraintViolation(err) {
			return 0, fmt.Errorf("insert user %s: %w: %w", userID, store.ErrDuplicate, err)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}

// ==== MessageStore implementation ====

// InsertMessage persists a message to storage.
// CreatedAt outside store.MinCreatedAt..store.MaxCreatedAt is rejected with store.ErrTimeOutOfRange.
func (s *SQLiteStore) InsertMessage(ctx context.Context, msg *store.Message) (int64, error) {
	if !store.ValidCreatedAt(msg.CreatedAt) {
		return 0, fmt.Errorf("insert message %s at %s: %w", msg.ID, msg.CreatedAt.Format(time.RFC3339), store.ErrTimeOutOfRange)
	}

	query := `
		INSERT INTO messages (id, chat_id, text, user_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.ID, msg.ChatID, msg.Text, msg.UserID, msg.CreatedAt.UTC().UnixNano())
	if err != nil {
		if isConstraintViolation(err) {
			return 0, fmt.Errorf("insert message %s: %w: %w", msg.ID, store.ErrDuplicate, err)
		}
		return 0, fmt.Errorf("insert message: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}

	if n == 1 {
		seq, err := result.LastInsertId()
		if err != nil {
			return n, fmt.Errorf("get last insert id: %w", err)
		}
		msg.Seq = seq
	}
	return n, nil
}

// ListMessages retrieves all messages of a chat, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, chatID string) ([]*store.Message, error) {
	query := `
		SELECT seq, id, chat_id, text, user_id, created_at
		FROM messages
		WHERE chat_id = ?
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var createdAt int64
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.ChatID, &msg.Text, &msg.UserID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = time.Unix(0, createdAt).UTC()
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// isConstraintViolation reports primary key and unique constraint failures.
func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
