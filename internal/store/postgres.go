package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/devaloi/socialchat/internal/domain"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgres connects to dsn, verifies the connection and creates the schema.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{db: pool}, nil
}

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		is_group BOOLEAN NOT NULL DEFAULT FALSE,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS conversation_members (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (conversation_id, user_id)
	);
	CREATE INDEX IF NOT EXISTS idx_members_user ON conversation_members(user_id);
	CREATE TABLE IF NOT EXISTS messages (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		sender_id TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
`

func (s *PostgresStore) CreateConversation(ctx context.Context, c domain.Conversation) (domain.Conversation, error) {
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().UTC()

	err := pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO conversations (id, name, is_group, created_by, created_at) VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.Name, c.IsGroup, c.CreatedBy, c.CreatedAt,
		); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for i, m := range c.Members {
			batch.Queue(`INSERT INTO conversation_members (conversation_id, user_id, position) VALUES ($1, $2, $3)`, c.ID, m, i)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return domain.Conversation{}, err
	}
	return c, nil
}

func (s *PostgresStore) FindConversation(ctx context.Context, id string) (domain.Conversation, error) {
	var c domain.Conversation
	err := s.db.QueryRow(ctx, `
		SELECT c.id, c.name, c.is_group, c.created_by, c.created_at,
			COALESCE(ARRAY_AGG(m.user_id ORDER BY m.position) FILTER (WHERE m.user_id IS NOT NULL), '{}')
		FROM conversations c
		LEFT JOIN conversation_members m ON m.conversation_id = c.id
		WHERE c.id = $1
		GROUP BY c.id
	`, id).Scan(&c.ID, &c.Name, &c.IsGroup, &c.CreatedBy, &c.CreatedAt, &c.Members)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, fmt.Errorf("%w: conversation %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	return c, nil
}

func (s *PostgresStore) FindDirectConversation(ctx context.Context, a, b string) (domain.Conversation, error) {
	var id string
	err := s.db.QueryRow(ctx, `
		SELECT c.id FROM conversations c
		JOIN conversation_members ma ON ma.conversation_id = c.id AND ma.user_id = $1
		JOIN conversation_members mb ON mb.conversation_id = c.id AND mb.user_id = $2
		WHERE NOT c.is_group
		LIMIT 1
	`, a, b).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, fmt.Errorf("%w: direct conversation %s/%s", domain.ErrNotFound, a, b)
	}
	if err != nil {
		return domain.Conversation{}, err
	}
	return s.FindConversation(ctx, id)
}

func (s *PostgresStore) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT c.id FROM conversations c
		JOIN conversation_members m ON m.conversation_id = c.id
		WHERE m.user_id = $1
		ORDER BY c.created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
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

func (s *PostgresStore) AddMembers(ctx context.Context, conversationID string, members []string) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		for _, m := range members {
			if _, err := tx.Exec(ctx, `
				INSERT INTO conversation_members (conversation_id, user_id, position)
				SELECT $1, $2, COALESCE(MAX(position) + 1, 0) FROM conversation_members WHERE conversation_id = $1
				ON CONFLICT (conversation_id, user_id) DO NOTHING
			`, conversationID, m); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *PostgresStore) RemoveMember(ctx context.Context, conversationID, userID string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM conversation_members WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	)
	return err
}

func (s *PostgresStore) CreateMessage(ctx context.Context, conversationID, senderID, text string) (domain.Message, error) {
	m := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, sender_id, text, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ConversationID, m.SenderID, m.Text, m.CreatedAt,
	)
	if err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

func (s *PostgresStore) History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, conversation_id, sender_id, text, created_at FROM messages
		WHERE conversation_id = $1
		ORDER BY seq DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	msgs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Message, error) {
		var m domain.Message
		err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Text, &m.CreatedAt)
		return m, err
	})
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}
