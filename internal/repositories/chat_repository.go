package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"partner-chat/internal/models"
)

var (
	ErrChatNotFound   = errors.New("chat not found")
	ErrNotParticipant = errors.New("not a chat participant")
	ErrSelfChat       = errors.New("cannot create chat with self")
)

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.Chat, error)
	IsParticipant(ctx context.Context, chatID int, userID int) (bool, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	ListChats(ctx context.Context, userID int) ([]models.Chat, error)
	MarkRead(ctx context.Context, chatID int, userID int) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

type chatRow struct {
	ID           int           `db:"id"`
	Participants pq.Int64Array `db:"participants"`
	UnreadCount  int           `db:"unread_count"`
	CreatedAt    time.Time     `db:"created_at"`

	LastID         sql.NullInt64  `db:"last_id"`
	LastSenderID   sql.NullInt64  `db:"last_sender_id"`
	LastContent    sql.NullString `db:"last_content"`
	LastAttachment sql.NullString `db:"last_attachment"`
	LastDeleted    sql.NullBool   `db:"last_deleted"`
	LastEditedAt   sql.NullTime   `db:"last_edited_at"`
	LastCreatedAt  sql.NullTime   `db:"last_created_at"`
}

func (r chatRow) toModel() models.Chat {
	chat := models.Chat{
		ID:          r.ID,
		UnreadCount: r.UnreadCount,
		CreatedAt:   r.CreatedAt,
	}
	for _, id := range r.Participants {
		chat.Participants = append(chat.Participants, int(id))
	}
	if r.LastID.Valid {
		last := models.Message{
			ID:        int(r.LastID.Int64),
			ChatID:    r.ID,
			SenderID:  int(r.LastSenderID.Int64),
			Deleted:   r.LastDeleted.Bool,
			CreatedAt: r.LastCreatedAt.Time,
		}
		if r.LastContent.Valid {
			last.Content = &r.LastContent.String
		}
		if r.LastAttachment.Valid {
			last.Attachment = &r.LastAttachment.String
		}
		if r.LastEditedAt.Valid {
			last.EditedAt = &r.LastEditedAt.Time
		}
		chat.LastMessage = &last
	}
	return chat
}

const chatColumns = `c.id, ARRAY[c.user1_id, c.user2_id] AS participants, c.created_at`

// CreateOrGetChat creates a chat between two users if it does not already exist.
func (r *ChatRepo) CreateOrGetChat(ctx context.Context, userID int, friendID int) (models.Chat, error) {
	if userID == friendID {
		return models.Chat{}, ErrSelfChat
	}
	participants := []int{userID, friendID}
	sort.Ints(participants)
	user1, user2 := participants[0], participants[1]

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO chats (user1_id, user2_id) VALUES ($1, $2) ON CONFLICT (user1_id, user2_id) DO NOTHING`, user1, user2); err != nil {
		return models.Chat{}, fmt.Errorf("insert chat: %w", err)
	}

	var row chatRow
	if err := tx.GetContext(ctx, &row, `SELECT `+chatColumns+` FROM chats c WHERE c.user1_id=$1 AND c.user2_id=$2`, user1, user2); err != nil {
		return models.Chat{}, fmt.Errorf("select chat: %w", err)
	}

	for _, member := range participants {
		if _, err := tx.ExecContext(ctx, `INSERT INTO chat_members (chat_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, row.ID, member); err != nil {
			return models.Chat{}, fmt.Errorf("insert member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Chat{}, fmt.Errorf("commit: %w", err)
	}
	return row.toModel(), nil
}

// IsParticipant checks whether a user belongs to the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var row chatRow
	err := r.db.GetContext(ctx, &row, `SELECT `+chatColumns+` FROM chats c WHERE c.id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	if err != nil {
		return models.Chat{}, err
	}
	return row.toModel(), nil
}

// ListChats returns the user's chats with unread counts and the last message,
// most recently active first.
func (r *ChatRepo) ListChats(ctx context.Context, userID int) ([]models.Chat, error) {
	query := `SELECT ` + chatColumns + `,
            (SELECT COUNT(*) FROM messages um
                WHERE um.chat_id = c.id AND um.sender_id <> $1
                AND um.deleted = FALSE AND um.id > cm.last_read_message_id) AS unread_count,
            lm.id AS last_id, lm.sender_id AS last_sender_id, lm.content AS last_content,
            lm.attachment AS last_attachment, lm.deleted AS last_deleted,
            lm.edited_at AS last_edited_at, lm.created_at AS last_created_at
        FROM chats c
        JOIN chat_members cm ON cm.chat_id = c.id AND cm.user_id = $1
        LEFT JOIN LATERAL (
            SELECT id, sender_id, content, attachment, deleted, edited_at, created_at
            FROM messages WHERE chat_id = c.id ORDER BY id DESC LIMIT 1
        ) lm ON TRUE
        ORDER BY COALESCE(lm.created_at, c.created_at) DESC, c.id DESC`
	rows, err := r.db.QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []models.Chat{}
	for rows.Next() {
		var row chatRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		result = append(result, row.toModel())
	}
	return result, rows.Err()
}

// MarkRead moves the user's read marker to the newest message of the chat.
func (r *ChatRepo) MarkRead(ctx context.Context, chatID int, userID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_members
        SET last_read_message_id = GREATEST(last_read_message_id,
            COALESCE((SELECT MAX(id) FROM messages WHERE chat_id = $1), 0))
        WHERE chat_id = $1 AND user_id = $2`, chatID, userID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotParticipant
	}
	return nil
}
