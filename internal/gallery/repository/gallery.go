package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	galleryerrors "freezefit/internal/gallery/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	defaultOperationTimeout = 5 * time.Second

	imageColumns = `id, institute_id, image_url, caption, sort_order, created_at`
)

type GalleryRepository interface {
	Create(ctx context.Context, image *model.GalleryImage) error
	FindByID(ctx context.Context, id string) (*model.GalleryImage, error)
	FindByInstitute(ctx context.Context, instituteID string) ([]*model.GalleryImage, error)
	Delete(ctx context.Context, id string) error
	SetOrder(ctx context.Context, id string, order int) error
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type postgresGalleryRepository struct {
	db        *sqlx.DB
	txManager postgres.TransactionManager
}

func NewPostgresGalleryRepository(cfg *config.Config) GalleryRepository {
	return &postgresGalleryRepository{
		db:        cfg.DB,
		txManager: postgres.NewTransactionManager(cfg.DB),
	}
}

// Create appends the image after the institute's current last position.
func (r *postgresGalleryRepository) Create(ctx context.Context, image *model.GalleryImage) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query := `
		INSERT INTO gallery_images (institute_id, image_url, caption, sort_order)
		SELECT $1, $2, $3, COALESCE(MAX(sort_order), 0) + 1
		FROM gallery_images WHERE institute_id = $1
		RETURNING id, sort_order, created_at`

	row := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, query, image.InstituteID, image.ImageURL, image.Caption)
	if err := row.Scan(&image.ID, &image.SortOrder, &image.CreatedAt); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return galleryerrors.ErrInstituteNotFound
		}
		return fmt.Errorf("failed to insert gallery image: %w", err)
	}
	return nil
}

func (r *postgresGalleryRepository) FindByID(ctx context.Context, id string) (*model.GalleryImage, error) {
	if uuid.Validate(id) != nil {
		return nil, galleryerrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var image model.GalleryImage
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &image,
		`SELECT `+imageColumns+` FROM gallery_images WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, galleryerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find gallery image: %w", err)
	}
	return &image, nil
}

func (r *postgresGalleryRepository) FindByInstitute(ctx context.Context, instituteID string) ([]*model.GalleryImage, error) {
	if uuid.Validate(instituteID) != nil {
		return nil, galleryerrors.ErrInstituteNotFound
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	images := []*model.GalleryImage{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &images,
		`SELECT `+imageColumns+` FROM gallery_images WHERE institute_id = $1 ORDER BY sort_order, created_at, id`, instituteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list gallery images: %w", err)
	}
	return images, nil
}

func (r *postgresGalleryRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `DELETE FROM gallery_images WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete gallery image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return galleryerrors.ErrNotFound
	}
	return nil
}

func (r *postgresGalleryRepository) SetOrder(ctx context.Context, id string, order int) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx,
		`UPDATE gallery_images SET sort_order = $2 WHERE id = $1`, id, order)
	if err != nil {
		return fmt.Errorf("failed to reorder gallery image: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return galleryerrors.ErrNotFound
	}
	return nil
}

func (r *postgresGalleryRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
