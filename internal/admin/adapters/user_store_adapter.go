package adapters

import (
	"context"
	"errors"

	identity "adminguard/internal/identity/models"
	id "adminguard/pkg/domain"
	dErrors "adminguard/pkg/domain-errors"
	"adminguard/pkg/platform/sentinel"
)

// IdentityStore is the subset of the credential store the admin surface needs.
type IdentityStore interface {
	GetIdentityByID(ctx context.Context, userID id.UserID) (*identity.Identity, error)
	UpdateIdentity(ctx context.Context, userID id.UserID, patch identity.Patch) (*identity.Identity, error)
}

// UserStoreAdapter adapts the credential store to the admin service, translating store
// sentinels into domain errors.
type UserStoreAdapter struct {
	store IdentityStore
}

func NewUserStoreAdapter(store IdentityStore) *UserStoreAdapter {
	return &UserStoreAdapter{store: store}
}

func (a *UserStoreAdapter) FindByID(ctx context.Context, userID id.UserID) (*identity.Identity, error) {
	ident, err := a.store.GetIdentityByID(ctx, userID)
	if err != nil {
		return nil, translate(err, "failed to load user")
	}
	return ident, nil
}

func (a *UserStoreAdapter) SetStatus(ctx context.Context, userID id.UserID, status identity.Status) (*identity.Identity, error) {
	ident, err := a.store.UpdateIdentity(ctx, userID, identity.Patch{Status: &status})
	if err != nil {
		return nil, translate(err, "failed to update user status")
	}
	return ident, nil
}

func translate(err error, msg string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
