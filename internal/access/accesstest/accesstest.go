// Package accesstest provides an in-memory ownership checker for service
// tests.
package accesstest

import (
	"context"
	"sync"

	"freezefit/internal/access"
	"freezefit/pkg/auth"
	apperrors "freezefit/pkg/errors"
)

// Owners maps institute IDs to owner user IDs.
type Owners struct {
	mu     sync.RWMutex
	owners map[string]string
}

var _ access.Checker = (*Owners)(nil)

func New() *Owners {
	return &Owners{owners: map[string]string{}}
}

func (o *Owners) Set(instituteID, ownerID string) *Owners {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.owners[instituteID] = ownerID
	return o
}

func (o *Owners) InstituteOwner(_ context.Context, instituteID string) (string, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	owner, ok := o.owners[instituteID]
	if !ok {
		return "", access.ErrInstituteNotFound
	}
	return owner, nil
}

func (o *Owners) RequireInstituteOwner(ctx context.Context, p *auth.Principal, instituteID string) error {
	if p == nil {
		return apperrors.Unauthorized("Authentication required")
	}
	owner, err := o.InstituteOwner(ctx, instituteID)
	if err != nil {
		return apperrors.NotFoundWithID("Institute", instituteID)
	}
	if p.IsAdmin() || owner == p.UserID {
		return nil
	}
	return apperrors.Forbidden("You do not manage this institute")
}

func (o *Owners) IsInstituteOwner(ctx context.Context, p *auth.Principal, instituteID string) (bool, error) {
	if p == nil {
		return false, nil
	}
	owner, err := o.InstituteOwner(ctx, instituteID)
	if err != nil {
		return false, nil
	}
	return p.IsAdmin() || owner == p.UserID, nil
}
