package auth

import (
	"context"
	"errors"

	"github.com/evecs/backend/internal/apperr"
	"github.com/evecs/backend/internal/models"
	"github.com/evecs/backend/internal/store"
)

// Repository handles user persistence on the document store. Users are
// keyed by user_id.
type Repository struct {
	store store.Store
}

// NewRepository creates a user repository.
func NewRepository(st store.Store) *Repository {
	return &Repository{store: st}
}

// GetByID returns a user and its document version by user id.
func (r *Repository) GetByID(ctx context.Context, userID string) (*models.User, store.Version, error) {
	var u models.User
	ver, err := r.store.FindOne(ctx, models.CollectionUsers, store.Eq("user_id", userID), &u)
	if err != nil {
		return nil, 0, mapUserErr(err, userID)
	}
	return &u, ver, nil
}

// GetByEmail returns a user and its document version by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, store.Version, error) {
	var u models.User
	ver, err := r.store.FindOne(ctx, models.CollectionUsers, store.Eq("email", email), &u)
	if err != nil {
		return nil, 0, mapUserErr(err, email)
	}
	return &u, ver, nil
}

// emailClaim reserves an address in its own collection; the insert key is
// what makes registration races lose cleanly.
type emailClaim struct {
	UserID string `bson:"user_id" json:"user_id"`
	Email  string `bson:"email" json:"email"`
}

// Create claims the email key, then inserts the user document. A lost claim
// race surfaces as DuplicateEmail; a failed user insert releases the claim.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	claim := emailClaim{UserID: u.UserID, Email: u.Email}
	if err := r.store.Insert(ctx, models.CollectionUserEmails, models.EmailKey(u.Email), claim); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return apperr.Newf(apperr.KindDuplicateEmail, "email", "email %q is already in use", u.Email)
		}
		return mapUserErr(err, u.UserID)
	}
	if err := r.store.Insert(ctx, models.CollectionUsers, u.UserID, u); err != nil {
		_ = r.store.Delete(ctx, models.CollectionUserEmails, models.EmailKey(u.Email))
		return mapUserErr(err, u.UserID)
	}
	return nil
}

// ChangeEmail moves the uniqueness claim from oldEmail to newEmail. The new
// claim is taken before the old one is released, so the address can never be
// held by two accounts in between.
func (r *Repository) ChangeEmail(ctx context.Context, userID, oldEmail, newEmail string) error {
	if models.EmailKey(oldEmail) == models.EmailKey(newEmail) {
		return nil
	}
	claim := emailClaim{UserID: userID, Email: newEmail}
	if err := r.store.Insert(ctx, models.CollectionUserEmails, models.EmailKey(newEmail), claim); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return apperr.Newf(apperr.KindDuplicateEmail, "email", "email %q is already in use", newEmail)
		}
		return mapUserErr(err, userID)
	}
	if err := r.store.Delete(ctx, models.CollectionUserEmails, models.EmailKey(oldEmail)); err != nil && !errors.Is(err, store.ErrNotFound) {
		return mapUserErr(err, userID)
	}
	return nil
}

// Replace swaps the user document under optimistic concurrency.
func (r *Repository) Replace(ctx context.Context, u *models.User, expected store.Version) (store.Version, error) {
	ver, err := r.store.Replace(ctx, models.CollectionUsers, u.UserID, u, expected)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return 0, err
		}
		return 0, mapUserErr(err, u.UserID)
	}
	return ver, nil
}

// Delete removes a user document and releases its email claim.
func (r *Repository) Delete(ctx context.Context, userID string) error {
	u, _, err := r.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, models.CollectionUsers, userID); err != nil {
		return mapUserErr(err, userID)
	}
	_ = r.store.Delete(ctx, models.CollectionUserEmails, models.EmailKey(u.Email))
	return nil
}

func mapUserErr(err error, ref string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperr.Newf(apperr.KindUserNotFound, "user_id", "user %q not found", ref)
	case errors.Is(err, store.ErrTimeout):
		return apperr.Wrap(apperr.KindTimeout, err, "user lookup timed out")
	default:
		return apperr.Wrap(apperr.KindStoreFault, err, "user store failure")
	}
}
