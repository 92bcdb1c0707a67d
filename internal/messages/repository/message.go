package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	messageerrors "freezefit/internal/messages/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const defaultOperationTimeout = 5 * time.Second

// Parties names both ends of a conversation.
type Parties struct {
	InstituteName string `db:"institute_name"`
	OwnerID       string `db:"owner_id"`
	OwnerEmail    string `db:"owner_email"`
	OwnerName     string `db:"owner_name"`
	CustomerEmail string `db:"customer_email"`
	CustomerName  string `db:"customer_name"`
}

type MessageRepository interface {
	Create(ctx context.Context, msg *model.Message) error
	FindConversation(ctx context.Context, instituteID string, customerID string, limit int, offset int) ([]*model.Message, error)
	CountConversation(ctx context.Context, instituteID string, customerID string) (int64, error)
	ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error)
	MarkRead(ctx context.Context, instituteID string, customerID string, readerID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	FindParties(ctx context.Context, instituteID string, customerID string) (*Parties, error)
}

type postgresMessageRepository struct {
	db *sqlx.DB
}

func NewPostgresMessageRepository(cfg *config.Config) MessageRepository {
	return &postgresMessageRepository{db: cfg.DB}
}

func (r *postgresMessageRepository) Create(ctx context.Context, msg *model.Message) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query := `
		INSERT INTO messages (institute_id, customer_id, sender_id, sender_role, body)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	row := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, query,
		msg.InstituteID, msg.CustomerID, msg.SenderID, msg.SenderRole, msg.Body)
	if err := row.Scan(&msg.ID, &msg.CreatedAt); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return messageerrors.ErrInstituteNotFound
		}
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *postgresMessageRepository) FindConversation(ctx context.Context, instituteID string, customerID string, limit int, offset int) ([]*model.Message, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	messages := []*model.Message{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &messages, `
		SELECT id, institute_id, customer_id, sender_id, sender_role, body, read_at, created_at
		FROM messages
		WHERE institute_id = $1 AND customer_id = $2
		ORDER BY created_at, id
		LIMIT $3 OFFSET $4`, instituteID, customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	return messages, nil
}

func (r *postgresMessageRepository) CountConversation(ctx context.Context, instituteID string, customerID string) (int64, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var count int64
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &count,
		`SELECT COUNT(*) FROM messages WHERE institute_id = $1 AND customer_id = $2`, instituteID, customerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

// ListConversations returns every thread the user takes part in, either as
// the customer or as owner of the institute, newest activity first.
func (r *postgresMessageRepository) ListConversations(ctx context.Context, userID string) ([]*model.Conversation, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	conversations := []*model.Conversation{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &conversations, `
		WITH latest AS (
			SELECT DISTINCT ON (m.institute_id, m.customer_id)
				m.institute_id, m.customer_id, m.body, m.sender_id, m.created_at
			FROM messages m
			JOIN institutes i ON i.id = m.institute_id
			WHERE m.customer_id = $1 OR i.owner_id = $1
			ORDER BY m.institute_id, m.customer_id, m.created_at DESC
		)
		SELECT l.institute_id, i.name AS institute_name, l.customer_id, u.name AS customer_name,
			l.body AS last_message, l.sender_id AS last_sender_id, l.created_at AS last_message_at,
			(SELECT COUNT(*) FROM messages x
			 WHERE x.institute_id = l.institute_id AND x.customer_id = l.customer_id
			   AND x.sender_id <> $1 AND x.read_at IS NULL) AS unread_count
		FROM latest l
		JOIN institutes i ON i.id = l.institute_id
		JOIN users u ON u.id = l.customer_id
		ORDER BY l.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}

// MarkRead stamps read_at on the messages the reader received.
func (r *postgresMessageRepository) MarkRead(ctx context.Context, instituteID string, customerID string, readerID string) (int64, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `
		UPDATE messages SET read_at = now()
		WHERE institute_id = $1 AND customer_id = $2 AND sender_id <> $3 AND read_at IS NULL`,
		instituteID, customerID, readerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

func (r *postgresMessageRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var count int
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &count, `
		SELECT COUNT(*)
		FROM messages m
		JOIN institutes i ON i.id = m.institute_id
		WHERE (m.customer_id = $1 OR i.owner_id = $1) AND m.sender_id <> $1 AND m.read_at IS NULL`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

func (r *postgresMessageRepository) FindParties(ctx context.Context, instituteID string, customerID string) (*Parties, error) {
	if uuid.Validate(instituteID) != nil {
		return nil, messageerrors.ErrInstituteNotFound
	}
	if uuid.Validate(customerID) != nil {
		return nil, messageerrors.ErrCustomerNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var parties Parties
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &parties, `
		SELECT i.name AS institute_name, o.id AS owner_id, o.email AS owner_email, o.name AS owner_name,
			COALESCE(c.email, '') AS customer_email, COALESCE(c.name, '') AS customer_name
		FROM institutes i
		JOIN users o ON o.id = i.owner_id
		LEFT JOIN users c ON c.id = $2
		WHERE i.id = $1`, instituteID, customerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, messageerrors.ErrInstituteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation parties: %w", err)
	}
	if parties.CustomerEmail == "" {
		return nil, messageerrors.ErrCustomerNotFound
	}
	return &parties, nil
}
