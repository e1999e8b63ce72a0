package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/devaloi/socialchat/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens or creates a SQLite database at the given path.
// Use ":memory:" for an in-memory database.
func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Every pooled connection to ":memory:" would see its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			is_group INTEGER NOT NULL DEFAULT 0,
			created_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL
		);
		CREATE TABLE IF NOT EXISTS conversation_members (
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (conversation_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_members_user ON conversation_members(user_id);
		CREATE TABLE IF NOT EXISTS messages (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			sender_id TEXT NOT NULL,
			text TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	`)
	return err
}

// CreateConversation persists a conversation and its ordered member list.
func (s *SQLiteStore) CreateConversation(ctx context.Context, c domain.Conversation) (domain.Conversation, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Conversation{}, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO conversations (id, name, is_group, created_by, created_at) VALUES (?, ?, ?, ?, ?)",
		c.ID, c.Name, c.IsGroup, c.CreatedBy, c.CreatedAt,
	); err != nil {
		return domain.Conversation{}, err
	}
	for i, m := range c.Members {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO conversation_members (conversation_id, user_id, position) VALUES (?, ?, ?)",
			c.ID, m, i,
		); err != nil {
			return domain.Conversation{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Conversation{}, err
	}
	return c, nil
}

// FindConversation loads a conversation with its members.
func (s *SQLiteStore) FindConversation(ctx context.Context, id string) (domain.Conversation, error) {
	var c domain.Conversation
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, is_group, created_by, created_at FROM conversations WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.IsGroup, &c.CreatedBy, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Conversation{}, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	if c.Members, err = s.members(ctx, id); err != nil {
		return domain.Conversation{}, err
	}
	return c, nil
}

// FindDirectConversation returns the non-group conversation whose members are a and b.
func (s *SQLiteStore) FindDirectConversation(ctx context.Context, a, b string) (domain.Conversation, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		SELECT c.id FROM conversations c
		JOIN conversation_members ma ON ma.conversation_id = c.id AND ma.user_id = ?
		JOIN conversation_members mb ON mb.conversation_id = c.id AND mb.user_id = ?
		WHERE c.is_group = 0
		LIMIT 1
	`, a, b).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Conversation{}, fmt.Errorf("%w: direct conversation %s/%s", domain.ErrNotFound, a, b)
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	return s.FindConversation(ctx, id)
}

// ListConversations returns the user's conversations, newest first.
func (s *SQLiteStore) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id FROM conversations c
		JOIN conversation_members m ON m.conversation_id = c.id
		WHERE m.user_id = ?
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	convs := make([]domain.Conversation, 0, len(ids))
	for _, id := range ids {
		c, err := s.FindConversation(ctx, id)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, nil
}

// AddMembers appends new members after the existing ones.
func (s *SQLiteStore) AddMembers(ctx context.Context, conversationID string, members []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM conversation_members WHERE conversation_id = ?",
		conversationID,
	).Scan(&next); err != nil {
		return err
	}
	for _, m := range members {
		res, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO conversation_members (conversation_id, user_id, position) VALUES (?, ?, ?)",
			conversationID, m, next,
		)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			next++
		}
	}
	return tx.Commit()
}

// RemoveMember deletes one membership row.
func (s *SQLiteStore) RemoveMember(ctx context.Context, conversationID, userID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM conversation_members WHERE conversation_id = ? AND user_id = ?",
		conversationID, userID,
	)
	return err
}

// CreateMessage persists a message to the database.
func (s *SQLiteStore) CreateMessage(ctx context.Context, conversationID, senderID, text string) (domain.Message, error) {
	m := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, conversation_id, sender_id, text, created_at) VALUES (?, ?, ?, ?, ?)",
		m.ID, m.ConversationID, m.SenderID, m.Text, m.CreatedAt,
	)
	if err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

// History returns the last `limit` messages for a conversation, oldest first.
func (s *SQLiteStore) History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, text, created_at FROM messages
		WHERE conversation_id = ?
		ORDER BY seq DESC
		LIMIT ?
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reverse(msgs)
	return msgs, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) members(ctx context.Context, id string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM conversation_members WHERE conversation_id = ? ORDER BY position", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	members := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// reverse flips newest-first query results to oldest-first order.
func reverse(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// Open builds the store selected by driver.
func Open(ctx context.Context, driver, path, dsn string) (Store, error) {
	switch strings.ToLower(driver) {
	case "sqlite":
		return NewSQLite(path)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, fmt.Errorf("unknown store driver %q", driver)
	}
}
