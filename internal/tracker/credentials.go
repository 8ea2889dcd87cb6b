// internal/tracker/credentials.go
package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/valpere/PriceScrapexter/internal/domain"
	"github.com/valpere/PriceScrapexter/internal/llm"
	"github.com/valpere/PriceScrapexter/internal/storage/sqlstore"
	"github.com/valpere/PriceScrapexter/internal/utils"
)

// CredentialStore loads stored per-user credentials.
type CredentialStore interface {
	Get(ctx context.Context, userID int64) (*domain.Credential, error)
}

// StoreCredentialResolver resolves credentials from the store and falls
// back to a process-wide key when the user has none.
type StoreCredentialResolver struct {
	store        CredentialStore
	fallbackKey  string
	defaultModel string
}

// NewCredentialResolver creates a resolver. store may be nil, in which
// case only the fallback key is used.
func NewCredentialResolver(store CredentialStore, fallbackKey, defaultModel string) *StoreCredentialResolver {
	if defaultModel == "" {
		defaultModel = llm.DefaultModel
	}
	return &StoreCredentialResolver{
		store:        store,
		fallbackKey:  fallbackKey,
		defaultModel: defaultModel,
	}
}

// Resolve returns the user's credential or a NO_CREDENTIAL error.
func (r *StoreCredentialResolver) Resolve(ctx context.Context, userID int64) (domain.Credential, error) {
	if r.store != nil {
		cred, err := r.store.Get(ctx, userID)
		switch {
		case err == nil && cred != nil && cred.APIKey != "":
			if cred.Model == "" {
				cred.Model = r.defaultModel
			}
			return *cred, nil
		case err != nil && !errors.Is(err, sqlstore.ErrNotFound):
			return domain.Credential{}, fmt.Errorf("load credential for user %d: %w", userID, err)
		}
	}

	if r.fallbackKey != "" {
		return domain.Credential{UserID: userID, APIKey: r.fallbackKey, Model: r.defaultModel}, nil
	}

	return domain.Credential{}, utils.NewError(utils.ErrCodeNoCredential, "No API key configured for user").
		WithContext("user_id", userID).
		Build()
}
