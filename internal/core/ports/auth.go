package ports

import (
	"context"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

// APIKeyRepository stores API keys by the sha256 of their token.
type APIKeyRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error)
	// Upsert keeps the original created_at when the token already exists.
	Upsert(ctx context.Context, key domain.APIKey) error
}
