package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"studybot/models"
)

type dialect struct {
	driver string
	schema string
}

var (
	postgresDialect = dialect{
		driver: "postgres",
		schema: `
			CREATE TABLE IF NOT EXISTS messages (
				seq        BIGSERIAL PRIMARY KEY,
				id         TEXT NOT NULL UNIQUE,
				user_id    TEXT NOT NULL,
				role       TEXT NOT NULL,
				content    TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_messages_user_seq ON messages(user_id, seq);`,
	}
	sqliteDialect = dialect{
		driver: "sqlite3",
		schema: `
			CREATE TABLE IF NOT EXISTS messages (
				seq        INTEGER PRIMARY KEY AUTOINCREMENT,
				id         TEXT NOT NULL UNIQUE,
				user_id    TEXT NOT NULL,
				role       TEXT NOT NULL,
				content    TEXT NOT NULL,
				created_at TIMESTAMP NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_messages_user_seq ON messages(user_id, seq);`,
	}
)

// bind rewrites $N placeholders for drivers that want '?'.
func (d dialect) bind(query string) string {
	if d.driver == "postgres" {
		return query
	}
	for i := 9; i >= 1; i-- {
		query = strings.ReplaceAll(query, "$"+strconv.Itoa(i), "?")
	}
	return query
}

// SQLStore keeps messages in one table of a SQL database. seq is the
// table's autoincrement key, so insertion order is replay order.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

// OpenPostgres connects with lib/pq. sslmode defaults to disable when the
// DSN does not set one.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	if !strings.Contains(dsn, "sslmode=") {
		switch {
		case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
			if strings.Contains(dsn, "?") {
				dsn += "&sslmode=disable"
			} else {
				dsn += "?sslmode=disable"
			}
		default:
			dsn += " sslmode=disable"
		}
	}

	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return newSQLStore(ctx, db, postgresDialect)
}

// OpenSQLite opens (or creates) a SQLite database file, creating its
// parent directory.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDialect.driver, path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open db at %s: %w", path, err)
	}
	return newSQLStore(ctx, db, sqliteDialect)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dialect) (*SQLStore, error) {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, unavailable("ping "+d.driver, err)
	}
	if _, err := db.ExecContext(ctx, d.schema); err != nil {
		db.Close()
		return nil, unavailable("create schema", err)
	}
	return &SQLStore{db: db, d: d}, nil
}

func (s *SQLStore) History(ctx context.Context, userID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.d.bind(`
		SELECT seq, id, user_id, role, content, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY seq ASC`), userID)
	if err != nil {
		return nil, unavailable("query history", err)
	}
	defer rows.Close()

	msgs := make([]models.Message, 0)
	for rows.Next() {
		var (
			m    models.Message
			role string
		)
		if err := rows.Scan(&m.Seq, &m.ID, &m.UserID, &role, &m.Content, &m.Timestamp); err != nil {
			return nil, unavailable("scan message", err)
		}
		m.Role = models.Role(role)
		m.Timestamp = m.Timestamp.UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate history", err)
	}
	return msgs, nil
}

func (s *SQLStore) Append(ctx context.Context, msgs ...models.Message) ([]models.Message, error) {
	if err := validate(msgs); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin", err)
	}
	defer tx.Rollback()

	insert := s.d.bind(`
		INSERT INTO messages (id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq`)

	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if err := tx.QueryRowContext(ctx, insert, m.ID, m.UserID, string(m.Role), m.Content, m.Timestamp.UTC()).Scan(&m.Seq); err != nil {
			return nil, unavailable("insert message", err)
		}
		out = append(out, m)
	}

	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit", err)
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
