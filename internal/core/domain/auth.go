package domain

import "time"

// APIKey scopes every request to a tenant. Only the sha256 of the token is
// stored.
type APIKey struct {
	TokenHash string
	TenantID  string
	Name      string
	Active    bool
	CreatedAt time.Time
}
