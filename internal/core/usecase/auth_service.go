package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/ports"
)

var ErrUnauthorized = errors.New("unauthorized")

// AuthService maps API tokens to the tenant every request is scoped to.
type AuthService struct {
	repo ports.APIKeyRepository
	now  func() time.Time
}

func NewAuthService(repo ports.APIKeyRepository) *AuthService {
	return &AuthService{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Issue stores token as an active key for tenantID. Issuing a token that
// already exists moves it to the new tenant and name and reactivates it.
func (s *AuthService) Issue(ctx context.Context, token, tenantID, name string) (domain.APIKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.APIKey{}, fmt.Errorf("api key token is empty: %w", domain.ErrInvalidKey)
	}
	if err := domain.ValidateKey(tenantID); err != nil {
		return domain.APIKey{}, err
	}
	if err := domain.ValidateName(name); err != nil {
		return domain.APIKey{}, err
	}

	key := domain.APIKey{
		TokenHash: HashToken(token),
		TenantID:  tenantID,
		Name:      name,
		Active:    true,
		CreatedAt: s.now(),
	}
	if err := s.repo.Upsert(ctx, key); err != nil {
		return domain.APIKey{}, err
	}
	return key, nil
}

func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.APIKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.APIKey{}, ErrUnauthorized
	}

	apiKey, err := s.repo.FindByTokenHash(ctx, HashToken(token))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.APIKey{}, ErrUnauthorized
		}
		return domain.APIKey{}, err
	}
	if !apiKey.Active || domain.ValidateKey(apiKey.TenantID) != nil {
		return domain.APIKey{}, ErrUnauthorized
	}
	return apiKey, nil
}

// HashToken is the stored form of a token.
func HashToken(token string) string {
	digest := sha256.Sum256([]byte(token))
	return hex.EncodeToString(digest[:])
}
