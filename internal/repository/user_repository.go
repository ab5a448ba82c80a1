package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/store"
)

type userDocument struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

type emailIndex struct {
	Email     string    `json:"email"`
	UserID    string    `json:"user_id"`
	ClaimedAt time.Time `json:"claimed_at"`
}

// orphanClaimGrace is how long a claim without a user document is treated as a
// registration still in flight.
const orphanClaimGrace = time.Minute

// UserRepository stores accounts plus a unique e-mail index.
type UserRepository struct {
	users  *store.Collection[userDocument]
	emails *store.Collection[emailIndex]
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(driver store.Driver) *UserRepository {
	return &UserRepository{
		users:  store.NewCollection[userDocument](driver, store.Users),
		emails: store.NewCollection[emailIndex](driver, store.UserEmails),
	}
}

// NormalizeEmail is the key used by the e-mail index.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create claims the e-mail address and stores the user. store.ErrConflict is
// returned when the address belongs to another account.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	key := NormalizeEmail(user.Email)

	// A claim whose user document never got written may be taken over once it
	// is older than orphanClaimGrace.
	orphan := ""
	if idx, err := r.emails.Get(ctx, key); err == nil {
		if _, err := r.users.Get(ctx, idx.UserID); err == nil {
			return store.ErrConflict
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("check user email: %w", err)
		}
		if time.Since(idx.ClaimedAt) < orphanClaimGrace {
			return store.ErrConflict
		}
		orphan = idx.UserID
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check user email: %w", err)
	}

	_, err := r.emails.Upsert(ctx, key, func(current *emailIndex) (*emailIndex, error) {
		if current != nil && current.UserID != orphan {
			return nil, store.ErrConflict
		}
		return &emailIndex{Email: key, UserID: user.ID, ClaimedAt: time.Now().UTC()}, nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return err
		}
		return fmt.Errorf("claim user email: %w", err)
	}

	doc := userDocument{User: *user, PasswordHash: user.PasswordHash}
	if err := r.users.Create(ctx, user.ID, &doc); err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	// The claim may have been taken over while the user document was written.
	idx, err := r.emails.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("verify user email: %w", err)
	}
	if idx.UserID != user.ID {
		return store.ErrConflict
	}
	return nil
}

// FindByEmail returns a user by e-mail address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	idx, err := r.emails.Get(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find user email: %w", err)
	}
	return r.FindByID(ctx, idx.UserID)
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	doc, err := r.users.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return doc.toModel(), nil
}

// FindByIDs returns the users with the given ids keyed by id.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]models.User, error) {
	set := toSet(ids)
	docs, err := r.users.Find(ctx, func(d *userDocument) bool {
		_, ok := set[d.ID]
		return ok
	})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	result := make(map[string]models.User, len(docs))
	for i := range docs {
		result[docs[i].ID] = *docs[i].toModel()
	}
	return result, nil
}

func (d *userDocument) toModel() *models.User {
	user := d.User
	user.PasswordHash = d.PasswordHash
	return &user
}
