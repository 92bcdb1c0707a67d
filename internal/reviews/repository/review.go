package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	reviewerrors "freezefit/internal/reviews/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultOperationTimeout = 5 * time.Second

	reviewColumns = `r.id, r.institute_id, r.customer_id, u.name AS customer_name, r.appointment_id, r.rating,
		r.title, r.comment, r.provider_reply, r.replied_at, r.created_at, r.updated_at`

	reviewFrom = ` FROM reviews r JOIN users u ON u.id = r.customer_id`
)

// AppointmentRef is the part of an appointment a review may reference.
type AppointmentRef struct {
	CustomerID  string `db:"customer_id"`
	InstituteID string `db:"institute_id"`
	Status      string `db:"status"`
}

// Contacts is what the review.created notification needs.
type Contacts struct {
	InstituteName string `db:"institute_name"`
	OwnerID       string `db:"owner_id"`
	OwnerEmail    string `db:"owner_email"`
	OwnerName     string `db:"owner_name"`
}

type ReviewRepository interface {
	Create(ctx context.Context, review *model.Review) error
	FindByID(ctx context.Context, id string) (*model.Review, error)
	FindByInstitute(ctx context.Context, instituteID string, sort string, limit int, offset int) ([]*model.Review, error)
	CountByInstitute(ctx context.Context, instituteID string) (int64, error)
	Update(ctx context.Context, id string, changes *postgres.Changes) error
	SetReply(ctx context.Context, id string, reply string, at time.Time) error
	Delete(ctx context.Context, id string) error
	RecomputeAggregates(ctx context.Context, instituteID string) error
	FindAppointment(ctx context.Context, appointmentID string) (*AppointmentRef, error)
	FindContacts(ctx context.Context, instituteID string) (*Contacts, error)
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type postgresReviewRepository struct {
	db        *sqlx.DB
	txManager postgres.TransactionManager
}

func NewPostgresReviewRepository(cfg *config.Config) ReviewRepository {
	return &postgresReviewRepository{
		db:        cfg.DB,
		txManager: postgres.NewTransactionManager(cfg.DB),
	}
}

func (r *postgresReviewRepository) Create(ctx context.Context, review *model.Review) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query := `
		INSERT INTO reviews (institute_id, customer_id, appointment_id, rating, title, comment)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	row := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, query,
		review.InstituteID, review.CustomerID, review.AppointmentID, review.Rating, review.Title, review.Comment)
	if err := row.Scan(&review.ID, &review.CreatedAt, &review.UpdatedAt); err != nil {
		if postgres.IsUniqueViolation(err) {
			return reviewerrors.ErrAlreadyReviewed
		}
		if postgres.IsForeignKeyViolation(err) {
			return reviewerrors.ErrInstituteNotFound
		}
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

func (r *postgresReviewRepository) FindByID(ctx context.Context, id string) (*model.Review, error) {
	if uuid.Validate(id) != nil {
		return nil, reviewerrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var review model.Review
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &review,
		`SELECT `+reviewColumns+reviewFrom+` WHERE r.id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reviewerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find review: %w", err)
	}
	return &review, nil
}

func (r *postgresReviewRepository) FindByInstitute(ctx context.Context, instituteID string, sort string, limit int, offset int) ([]*model.Review, error) {
	if uuid.Validate(instituteID) != nil {
		return nil, reviewerrors.ErrInstituteNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	reviews := []*model.Review{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &reviews,
		`SELECT `+reviewColumns+reviewFrom+`
		WHERE r.institute_id = $1
		ORDER BY `+reviewOrder(sort)+`
		LIMIT $2 OFFSET $3`, instituteID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

func reviewOrder(sort string) string {
	switch sort {
	case model.ReviewSortRatingHigh:
		return "r.rating DESC, r.created_at DESC, r.id"
	case model.ReviewSortRatingLow:
		return "r.rating ASC, r.created_at DESC, r.id"
	default:
		return "r.created_at DESC, r.id"
	}
}

func (r *postgresReviewRepository) CountByInstitute(ctx context.Context, instituteID string) (int64, error) {
	if uuid.Validate(instituteID) != nil {
		return 0, reviewerrors.ErrInstituteNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var count int64
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &count,
		`SELECT COUNT(*) FROM reviews WHERE institute_id = $1`, instituteID)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

func (r *postgresReviewRepository) Update(ctx context.Context, id string, changes *postgres.Changes) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query, args := postgres.BuildUpdate("reviews", "id", id, changes, "")
	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return reviewerrors.ErrNotFound
	}
	return nil
}

func (r *postgresReviewRepository) SetReply(ctx context.Context, id string, reply string, at time.Time) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx,
		`UPDATE reviews SET provider_reply = $2, replied_at = $3 WHERE id = $1`, id, reply, at)
	if err != nil {
		return fmt.Errorf("failed to save reply: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return reviewerrors.ErrNotFound
	}
	return nil
}

func (r *postgresReviewRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return reviewerrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete review: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return reviewerrors.ErrNotFound
	}
	return nil
}

// RecomputeAggregates rewrites the institute's average rating and review
// count from the reviews table. Run it in the transaction that changed a
// review.
func (r *postgresReviewRepository) RecomputeAggregates(ctx context.Context, instituteID string) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	_, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `
		UPDATE institutes i
		SET average_rating = agg.average, review_count = agg.total, updated_at = now()
		FROM (
			SELECT COALESCE(ROUND(AVG(rating)::numeric, 2), 0) AS average, COUNT(*) AS total
			FROM reviews WHERE institute_id = $1
		) agg
		WHERE i.id = $1`, instituteID)
	if err != nil {
		return fmt.Errorf("failed to recompute rating aggregates: %w", err)
	}
	return nil
}

func (r *postgresReviewRepository) FindAppointment(ctx context.Context, appointmentID string) (*AppointmentRef, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var ref AppointmentRef
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &ref,
		`SELECT customer_id, institute_id, status FROM appointments WHERE id = $1`, appointmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reviewerrors.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load appointment: %w", err)
	}
	return &ref, nil
}

func (r *postgresReviewRepository) FindContacts(ctx context.Context, instituteID string) (*Contacts, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var c Contacts
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &c, `
		SELECT i.name AS institute_name, o.id AS owner_id, o.email AS owner_email, o.name AS owner_name
		FROM institutes i JOIN users o ON o.id = i.owner_id
		WHERE i.id = $1`, instituteID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, reviewerrors.ErrInstituteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load institute contacts: %w", err)
	}
	return &c, nil
}

func (r *postgresReviewRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
