package repository

import (
	"context"
	"fmt"
	"time"

	favoriteerrors "freezefit/internal/favorites/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const defaultOperationTimeout = 5 * time.Second

type FavoriteRepository interface {
	Add(ctx context.Context, userID string, instituteID string) (bool, error)
	Remove(ctx context.Context, userID string, instituteID string) (bool, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int) ([]*model.Favorite, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
}

type postgresFavoriteRepository struct {
	db *sqlx.DB
}

func NewPostgresFavoriteRepository(cfg *config.Config) FavoriteRepository {
	return &postgresFavoriteRepository{db: cfg.DB}
}

// Add reports whether a new favorite was stored. Repeating it is a no-op.
func (r *postgresFavoriteRepository) Add(ctx context.Context, userID string, instituteID string) (bool, error) {
	if uuid.Validate(instituteID) != nil {
		return false, favoriteerrors.ErrInstituteNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `
		INSERT INTO favorites (user_id, institute_id) VALUES ($1, $2)
		ON CONFLICT (user_id, institute_id) DO NOTHING`, userID, instituteID)
	if err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return false, favoriteerrors.ErrInstituteNotFound
		}
		return false, fmt.Errorf("failed to add favorite: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (r *postgresFavoriteRepository) Remove(ctx context.Context, userID string, instituteID string) (bool, error) {
	if uuid.Validate(instituteID) != nil {
		return false, nil
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = $1 AND institute_id = $2`, userID, instituteID)
	if err != nil {
		return false, fmt.Errorf("failed to remove favorite: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (r *postgresFavoriteRepository) FindByUser(ctx context.Context, userID string, limit int, offset int) ([]*model.Favorite, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	favorites := []*model.Favorite{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &favorites, `
		SELECT f.institute_id, i.name AS institute_name, i.city, i.image_url,
			i.average_rating, i.review_count, f.created_at
		FROM favorites f JOIN institutes i ON i.id = f.institute_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, f.institute_id
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return favorites, nil
}

func (r *postgresFavoriteRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var count int64
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &count,
		`SELECT COUNT(*) FROM favorites WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count favorites: %w", err)
	}
	return count, nil
}
