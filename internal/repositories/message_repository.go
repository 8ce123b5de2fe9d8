package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"partner-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, chat_id, sender_id, content, attachment, parent_id, deleted, edited_at, created_at`

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	ListMessages(ctx context.Context, chatID int, page models.Page) ([]models.Message, error)
	CreateMessage(ctx context.Context, chatID int, senderID int, draft models.Draft) (models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	EditMessage(ctx context.Context, messageID int, senderID int, content string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID int, senderID int) (models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// ListMessages returns one page of a chat in ascending id order. Deleted
// messages are included as tombstones.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int, page models.Page) ([]models.Message, error) {
	var (
		query   string
		args    []interface{}
		reverse bool
	)
	switch {
	case page.AfterID != nil:
		query = `SELECT ` + messageColumns + ` FROM messages WHERE chat_id=$1 AND id > $2 ORDER BY id ASC LIMIT $3`
		args = []interface{}{chatID, *page.AfterID, page.Limit}
	case page.BeforeID != nil:
		query = `SELECT ` + messageColumns + ` FROM messages WHERE chat_id=$1 AND id < $2 ORDER BY id DESC LIMIT $3`
		args = []interface{}{chatID, *page.BeforeID, page.Limit}
		reverse = true
	default:
		query = `SELECT ` + messageColumns + ` FROM messages WHERE chat_id=$1 ORDER BY id DESC LIMIT $2`
		args = []interface{}{chatID, page.Limit}
		reverse = true
	}

	msgs := []models.Message{}
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}
	if reverse {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	return msgs, nil
}

// CreateMessage stores a message in a chat.
func (r *MessageRepo) CreateMessage(ctx context.Context, chatID int, senderID int, draft models.Draft) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (chat_id, sender_id, content, attachment, parent_id)
        VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		chatID, senderID, draft.Content, draft.Attachment, draft.ParentID).StructScan(&msg)
	return msg, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// EditMessage replaces the content of a live message owned by senderID.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID int, senderID int, content string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET content=$3, edited_at=NOW()
        WHERE id=$1 AND sender_id=$2 AND deleted=FALSE RETURNING `+messageColumns,
		messageID, senderID, content).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// DeleteMessage turns a message owned by senderID into a tombstone. An
// already deleted message yields ErrMessageNotFound.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int, senderID int) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx, `UPDATE messages SET deleted=TRUE, content=NULL, attachment=NULL
        WHERE id=$1 AND sender_id=$2 AND deleted=FALSE RETURNING `+messageColumns,
		messageID, senderID).StructScan(&msg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}
