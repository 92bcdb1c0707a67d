package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	instituteserrors "freezefit/internal/institutes/errors"
	"freezefit/pkg/config"
	"freezefit/pkg/db/postgres"
	"freezefit/pkg/model"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	defaultOperationTimeout = 5 * time.Second

	instituteColumns = `id, owner_id, name, description, street, postal_code, city, country, phone, email,
		website_url, latitude, longitude, image_url, amenities, timezone, is_active, average_rating,
		review_count, created_at, updated_at`

	earthRadiusKM = 6371.0
)

type InstituteRepository interface {
	Create(ctx context.Context, institute *model.Institute) error
	FindByID(ctx context.Context, id string) (*model.Institute, error)
	FindByOwner(ctx context.Context, ownerID string, limit int, offset int) ([]*model.Institute, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)
	Search(ctx context.Context, search *model.InstituteSearch) ([]*model.Institute, error)
	CountSearch(ctx context.Context, search *model.InstituteSearch) (int64, error)
	Update(ctx context.Context, id string, changes *postgres.Changes) (*model.Institute, error)
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error
}

type postgresInstituteRepository struct {
	db        *sqlx.DB
	txManager postgres.TransactionManager
}

func NewPostgresInstituteRepository(cfg *config.Config) InstituteRepository {
	return &postgresInstituteRepository{
		db:        cfg.DB,
		txManager: postgres.NewTransactionManager(cfg.DB),
	}
}

func (r *postgresInstituteRepository) Create(ctx context.Context, institute *model.Institute) error {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query := `
		INSERT INTO institutes (owner_id, name, description, street, postal_code, city, country, phone,
			email, website_url, latitude, longitude, image_url, amenities, timezone, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	row := postgres.Querier(ctx, r.db).QueryRowxContext(ctx, query,
		institute.OwnerID, institute.Name, institute.Description, institute.Street, institute.PostalCode,
		institute.City, institute.Country, institute.Phone, institute.Email, institute.WebsiteURL,
		institute.Latitude, institute.Longitude, institute.ImageURL, pq.Array([]string(institute.Amenities)),
		institute.Timezone, institute.IsActive)
	if err := row.Scan(&institute.ID, &institute.CreatedAt, &institute.UpdatedAt); err != nil {
		if postgres.IsForeignKeyViolation(err) {
			return instituteserrors.ErrOwnerNotFound
		}
		return fmt.Errorf("failed to insert institute: %w", err)
	}
	return nil
}

func (r *postgresInstituteRepository) FindByID(ctx context.Context, id string) (*model.Institute, error) {
	if uuid.Validate(id) != nil {
		return nil, instituteserrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var institute model.Institute
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &institute,
		`SELECT `+instituteColumns+` FROM institutes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, instituteserrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find institute: %w", err)
	}
	return &institute, nil
}

func (r *postgresInstituteRepository) FindByOwner(ctx context.Context, ownerID string, limit int, offset int) ([]*model.Institute, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	institutes := []*model.Institute{}
	err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &institutes, `
		SELECT `+instituteColumns+`
		FROM institutes
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list institutes by owner: %w", err)
	}
	return institutes, nil
}

func (r *postgresInstituteRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	var count int64
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &count,
		`SELECT COUNT(*) FROM institutes WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to count institutes by owner: %w", err)
	}
	return count, nil
}

// searchBase renders the filtered, distance-annotated row set shared by the
// page and the count query so both use the same placeholders.
func searchBase(search *model.InstituteSearch) (string, []any) {
	w := &postgres.Where{}
	w.Add("is_active")

	distance := "NULL::double precision"
	if search.HasLocation() {
		lat := w.Arg(*search.Latitude)
		lng := w.Arg(*search.Longitude)
		// least() keeps rounding at near-antipodal points inside asin's domain.
		distance = fmt.Sprintf(`(2 * %g * asin(least(1, sqrt(
			power(sin(radians(latitude - %s) / 2), 2) +
			cos(radians(%s)) * cos(radians(latitude)) * power(sin(radians(longitude - %s) / 2), 2)))))`,
			earthRadiusKM, lat, lat, lng)
	}

	if search.Query != "" {
		pattern := "%" + postgres.EscapeLike(search.Query) + "%"
		w.Add("(name ILIKE ? OR description ILIKE ?)", pattern, pattern)
	}
	if search.City != "" {
		w.Add("lower(city) = lower(?)", search.City)
	}
	if search.Amenity != "" {
		w.Add("? = ANY(amenities)", search.Amenity)
	}
	if search.MinRating != nil {
		w.Add("average_rating >= ?", *search.MinRating)
	}
	if search.HasLocation() && search.RadiusKM != nil {
		w.Add(distance+" <= ?", *search.RadiusKM)
	}

	query := `SELECT ` + instituteColumns + `, ` + distance + ` AS distance_km FROM institutes` + w.SQL()
	return query, w.Args()
}

func searchOrder(sort string) string {
	switch sort {
	case model.SortName:
		return "name ASC, id"
	case model.SortDistance:
		return "distance_km ASC NULLS LAST, id"
	case model.SortNewest:
		return "created_at DESC, id"
	default:
		return "average_rating DESC, review_count DESC, name ASC, id"
	}
}

func (r *postgresInstituteRepository) Search(ctx context.Context, search *model.InstituteSearch) ([]*model.Institute, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	base, args := searchBase(search)
	n := len(args)
	query := fmt.Sprintf(`SELECT * FROM (%s) s ORDER BY %s LIMIT $%d OFFSET $%d`,
		base, searchOrder(search.Sort), n+1, n+2)
	args = append(args, search.Limit, search.Offset)

	institutes := []*model.Institute{}
	if err := sqlx.SelectContext(ctx, postgres.Querier(ctx, r.db), &institutes, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search institutes: %w", err)
	}
	return institutes, nil
}

func (r *postgresInstituteRepository) CountSearch(ctx context.Context, search *model.InstituteSearch) (int64, error) {
	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	base, args := searchBase(search)

	var count int64
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &count, `SELECT COUNT(*) FROM (`+base+`) s`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count institutes: %w", err)
	}
	return count, nil
}

func (r *postgresInstituteRepository) Update(ctx context.Context, id string, changes *postgres.Changes) (*model.Institute, error) {
	if uuid.Validate(id) != nil {
		return nil, instituteserrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	query, args := postgres.BuildUpdate("institutes", "id", id, changes, instituteColumns)

	var institute model.Institute
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, r.db), &institute, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, instituteserrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update institute: %w", err)
	}
	return &institute, nil
}

// Delete removes the institute. Services, hours, appointments and the rest
// go with it through ON DELETE CASCADE.
func (r *postgresInstituteRepository) Delete(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return instituteserrors.ErrInvalidID
	}

	ctx, cancel := postgres.WithTimeout(ctx, defaultOperationTimeout)
	defer cancel()

	result, err := postgres.Querier(ctx, r.db).ExecContext(ctx, `DELETE FROM institutes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete institute: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return instituteserrors.ErrNotFound
	}
	return nil
}

func (r *postgresInstituteRepository) ExecuteTransaction(ctx context.Context, fn postgres.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
