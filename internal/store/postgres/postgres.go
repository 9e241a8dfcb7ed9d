package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/lobbychat/internal/store"
	"github.com/vovakirdan/lobbychat/internal/store/migrate"
)

// PostgresStore implements store.Store on a pgx connection pool.
// The pool replaces broken connections on its own.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*PostgresStore)(nil)

// New parses dsn, opens a pool and pings the server.
func New(ctx context.Context, dsn string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate provisions the schema through a database/sql handle on the same config.
func (s *PostgresStore) Migrate(ctx context.Context, logger *zerolog.Logger) error {
	sqlDB := stdlib.OpenDB(*s.pool.Config().ConnConfig)
	defer sqlDB.Close()

	return migrate.Up(ctx, sqlDB, migrate.DialectPostgres, logger)
}

// Ping checks that the server is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes every pooled connection.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// CreateUser inserts an anonymous user.
func (s *PostgresStore) CreateUser(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `INSERT INTO users (user_id) VALUES ($1)`, userID)
	if err != nil {
		if IsUniqueViolation(err) {
			return 0, fmt.Errorf("insert user %s: %w: %w", userID, store.ErrDuplicate, err)
		}
		return 0, fmt.Errorf("insert user: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InsertMessage persists a message and fills msg.Seq.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg *store.Message) (int64, error) {
	query := `
		INSERT INTO messages (id, chat_id, text, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`
	rows, err := s.pool.Query(ctx, query, msg.ID, msg.ChatID, msg.Text, msg.UserID, msg.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("insert message: %w", err)
	}
	defer rows.Close()

	var seq int64
	for rows.Next() {
		if err := rows.Scan(&seq); err != nil {
			return 0, fmt.Errorf("scan message seq: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		if IsUniqueViolation(err) {
			return 0, fmt.Errorf("insert message %s: %w: %w", msg.ID, store.ErrDuplicate, err)
		}
		return 0, fmt.Errorf("insert message: %w", err)
	}

	n := rows.CommandTag().RowsAffected()
	if n == 1 {
		msg.Seq = seq
	}
	return n, nil
}

// ListMessages retrieves all messages of a chat, oldest first.
func (s *PostgresStore) ListMessages(ctx context.Context, chatID string) ([]*store.Message, error) {
	query := `
		SELECT seq, id, chat_id, text, user_id, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY created_at ASC, seq ASC
	`
	rows, err := s.pool.Query(ctx, query, chatID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.Seq, &msg.ID, &msg.ChatID, &msg.Text, &msg.UserID, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = msg.CreatedAt.UTC()
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// IsUniqueViolation checks if the error is a PostgreSQL unique constraint violation (code 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
