package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
)

type stubAPIKeyRepo struct {
	findFn func(ctx context.Context, tokenHash string) (domain.APIKey, error)
	stored []domain.APIKey
}

func (s *stubAPIKeyRepo) FindByTokenHash(ctx context.Context, tokenHash string) (domain.APIKey, error) {
	if s.findFn != nil {
		return s.findFn(ctx, tokenHash)
	}
	for _, k := range s.stored {
		if k.TokenHash == tokenHash {
			return k, nil
		}
	}
	return domain.APIKey{}, domain.ErrNotFound
}

func (s *stubAPIKeyRepo) Upsert(_ context.Context, key domain.APIKey) error {
	s.stored = append(s.stored, key)
	return nil
}

func TestAuthServiceAuthenticateSuccess(t *testing.T) {
	repo := &stubAPIKeyRepo{findFn: func(_ context.Context, tokenHash string) (domain.APIKey, error) {
		if tokenHash != HashToken("token-1") {
			t.Fatalf("unexpected token hash: %s", tokenHash)
		}
		return domain.APIKey{TenantID: "tenant-a", Active: true, CreatedAt: time.Now()}, nil
	}}

	svc := NewAuthService(repo)
	key, err := svc.Authenticate(context.Background(), " token-1 ")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if key.TenantID != "tenant-a" {
		t.Fatalf("expected tenant-a, got %s", key.TenantID)
	}
}

func TestAuthServiceAuthenticateUnauthorized(t *testing.T) {
	inactive := &stubAPIKeyRepo{stored: []domain.APIKey{{TokenHash: HashToken("off"), TenantID: "tenant-a"}}}
	tests := []struct {
		name  string
		repo  *stubAPIKeyRepo
		token string
	}{
		{name: "empty token", repo: &stubAPIKeyRepo{}, token: ""},
		{name: "unknown token", repo: &stubAPIKeyRepo{}, token: "nope"},
		{name: "inactive key", repo: inactive, token: "off"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAuthService(tt.repo).Authenticate(context.Background(), tt.token)
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected unauthorized, got %v", err)
			}
		})
	}
}

func TestAuthServiceAuthenticateRepoError(t *testing.T) {
	boom := errors.New("db down")
	repo := &stubAPIKeyRepo{findFn: func(context.Context, string) (domain.APIKey, error) { return domain.APIKey{}, boom }}
	if _, err := NewAuthService(repo).Authenticate(context.Background(), "t"); !errors.Is(err, boom) {
		t.Fatalf("expected repo error, got %v", err)
	}
}

func TestAuthServiceIssue(t *testing.T) {
	repo := &stubAPIKeyRepo{}
	svc := NewAuthService(repo)

	key, err := svc.Issue(context.Background(), "secret", "tenant-a", "ci")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if key.TokenHash != HashToken("secret") || !key.Active {
		t.Fatalf("unexpected key: %+v", key)
	}

	got, err := svc.Authenticate(context.Background(), "secret")
	if err != nil || got.Name != "ci" {
		t.Fatalf("issued key should authenticate: %+v %v", got, err)
	}

	if _, err := svc.Issue(context.Background(), " ", "tenant-a", "ci"); !errors.Is(err, domain.ErrInvalidKey) {
		t.Fatalf("expected invalid key for empty token, got %v", err)
	}
	if _, err := svc.Issue(context.Background(), "x", "bad tenant", "ci"); !errors.Is(err, domain.ErrInvalidKey) {
		t.Fatalf("expected invalid key for tenant, got %v", err)
	}
	if _, err := svc.Issue(context.Background(), "x", "tenant-a", "a/b"); !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected invalid name, got %v", err)
	}
}
