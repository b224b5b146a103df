// Package store persists chat messages, action records and token
// counters in a per-user SQLite database.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mzeroual/forge/internal/engine"
)

// Store implements engine.Recorder on top of SQLite.
type Store struct {
	db *sql.DB
}

// Open creates a database connection and initializes the schema.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	// WAL mode allows readers to proceed while a run is writing.
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers well.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		message_id     TEXT PRIMARY KEY,
		project_id     TEXT NOT NULL,
		role           TEXT NOT NULL,
		content        TEXT NOT NULL,
		tokens_input   INTEGER NOT NULL DEFAULT 0,
		tokens_output  INTEGER NOT NULL DEFAULT 0,
		context_tokens INTEGER NOT NULL DEFAULT 0,
		metadata       TEXT,
		created_at     INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS action_records (
		record_id  INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL,
		type       TEXT NOT NULL,
		path       TEXT NOT NULL,
		status     TEXT NOT NULL,
		timestamp  INTEGER NOT NULL,
		FOREIGN KEY (message_id) REFERENCES messages(message_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_messages_project
		ON messages(project_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_action_records_message
		ON action_records(message_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// AppendMessage stores a message and returns its generated id. A caller
// supplied id is kept as-is.
func (s *Store) AppendMessage(ctx context.Context, projectID string, m engine.MessageRecord) (string, error) {
	id := m.ID
	if id == "" {
		id = uuid.New().String()
	}
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	var meta sql.NullString
	if len(m.Metadata) > 0 {
		raw, err := json.Marshal(m.Metadata)
		if err != nil {
			return "", fmt.Errorf("failed to encode message metadata: %w", err)
		}
		meta = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages
			(message_id, project_id, role, content, tokens_input, tokens_output, context_tokens, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, projectID, string(m.Role), m.Content,
		m.TokensInput, m.TokensOutput, m.ContextTokens,
		meta, created.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert message: %w", err)
	}
	return id, nil
}

// AppendActionRecord attaches an action record to a stored message.
func (s *Store) AppendActionRecord(ctx context.Context, messageID string, rec engine.ActionRecord) error {
	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO action_records (message_id, type, path, status, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		messageID, rec.Type, rec.Path, string(rec.Status), ts.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert action record: %w", err)
	}
	return nil
}

// UpdateActionStatus transitions a pending action record.
func (s *Store) UpdateActionStatus(ctx context.Context, messageID, path, typ string, status engine.RecordStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE action_records SET status = ?
		WHERE message_id = ? AND path = ? AND type = ?`,
		string(status), messageID, path, typ,
	)
	if err != nil {
		return fmt.Errorf("failed to update action status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no action record for message %s path %s", messageID, path)
	}
	return nil
}

// UpdateMessageContent replaces a message's text, keeping its counters.
func (s *Store) UpdateMessageContent(ctx context.Context, messageID, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ? WHERE message_id = ?`,
		content, messageID,
	)
	if err != nil {
		return fmt.Errorf("failed to update message content: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no message with id %s", messageID)
	}
	return nil
}

// SumTokenTotals returns the cumulative input and output token counts
// across a project's history.
func (s *Store) SumTokenTotals(ctx context.Context, projectID string) (engine.TokenTotals, error) {
	var t engine.TokenTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(tokens_input), 0), COALESCE(SUM(tokens_output), 0)
		FROM messages WHERE project_id = ?`,
		projectID,
	).Scan(&t.Input, &t.Output)
	if err != nil {
		return engine.TokenTotals{}, fmt.Errorf("failed to sum token totals: %w", err)
	}
	return t, nil
}

// LatestContextTokens returns the context size recorded with the most
// recent message, or zero for a fresh project.
func (s *Store) LatestContextTokens(ctx context.Context, projectID string) (int, error) {
	var tokens int
	err := s.db.QueryRowContext(ctx, `
		SELECT context_tokens FROM messages
		WHERE project_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`,
		projectID,
	).Scan(&tokens)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read latest context tokens: %w", err)
	}
	return tokens, nil
}

// RecentMessages returns up to limit messages in chronological order.
func (s *Store) RecentMessages(ctx context.Context, projectID string, limit int) ([]engine.MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, role, content, tokens_input, tokens_output, context_tokens, metadata, created_at
		FROM (
			SELECT message_id, role, content, tokens_input, tokens_output, context_tokens, metadata, created_at,
			       rowid AS rid
			FROM messages
			WHERE project_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		) ORDER BY created_at ASC, rid ASC`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent messages: %w", err)
	}
	defer rows.Close()

	var out []engine.MessageRecord
	for rows.Next() {
		var (
			m       engine.MessageRecord
			role    string
			meta    sql.NullString
			created int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &m.TokensInput, &m.TokensOutput, &m.ContextTokens, &meta, &created); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		m.Role = engine.MessageRole(role)
		m.CreatedAt = time.Unix(created, 0)
		if meta.Valid && meta.String != "" {
			if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
				return nil, fmt.Errorf("failed to decode message metadata: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
