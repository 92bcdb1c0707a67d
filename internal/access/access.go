package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"freezefit/pkg/auth"
	"freezefit/pkg/db/postgres"
	apperrors "freezefit/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var ErrInstituteNotFound = errors.New("institute not found")

// Checker answers ownership questions for provider-side operations.
type Checker interface {
	InstituteOwner(ctx context.Context, instituteID string) (string, error)
	RequireInstituteOwner(ctx context.Context, p *auth.Principal, instituteID string) error
	IsInstituteOwner(ctx context.Context, p *auth.Principal, instituteID string) (bool, error)
}

type ownershipChecker struct {
	db *sqlx.DB
}

func NewChecker(db *sqlx.DB) Checker {
	return &ownershipChecker{db: db}
}

func (c *ownershipChecker) InstituteOwner(ctx context.Context, instituteID string) (string, error) {
	if uuid.Validate(instituteID) != nil {
		return "", ErrInstituteNotFound
	}

	var ownerID string
	err := sqlx.GetContext(ctx, postgres.Querier(ctx, c.db), &ownerID,
		`SELECT owner_id FROM institutes WHERE id = $1`, instituteID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrInstituteNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load institute owner: %w", err)
	}
	return ownerID, nil
}

// RequireInstituteOwner passes for admins and for the provider owning the
// institute. A missing institute is reported before ownership.
func (c *ownershipChecker) RequireInstituteOwner(ctx context.Context, p *auth.Principal, instituteID string) error {
	if p == nil {
		return apperrors.Unauthorized("Authentication required")
	}

	ownerID, err := c.InstituteOwner(ctx, instituteID)
	if errors.Is(err, ErrInstituteNotFound) {
		return apperrors.NotFoundWithID("Institute", instituteID)
	}
	if err != nil {
		return apperrors.Internal("Failed to verify institute ownership", err)
	}

	if p.IsAdmin() || ownerID == p.UserID {
		return nil
	}
	return apperrors.Forbidden("You do not manage this institute")
}

// IsInstituteOwner is the non-failing variant used to widen public reads.
func (c *ownershipChecker) IsInstituteOwner(ctx context.Context, p *auth.Principal, instituteID string) (bool, error) {
	if p == nil {
		return false, nil
	}
	ownerID, err := c.InstituteOwner(ctx, instituteID)
	if errors.Is(err, ErrInstituteNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsAdmin() || ownerID == p.UserID, nil
}
