package usecase

import (
	"context"

	"github.com/atvirokodosprendimai/tabcheck/internal/core/domain"
	"github.com/atvirokodosprendimai/tabcheck/internal/core/ports"
)

const (
	defaultRunListLimit = 50
	maxRunListLimit     = 500
)

// RunService reads run history.
type RunService struct {
	repo ports.RunRepository
}

func NewRunService(repo ports.RunRepository) *RunService {
	return &RunService{repo: repo}
}

func (s *RunService) Get(ctx context.Context, tenantID, id string) (domain.ValidationRun, error) {
	if err := domain.ValidateKey(tenantID); err != nil {
		return domain.ValidationRun{}, err
	}
	if err := domain.ValidateKey(id); err != nil {
		return domain.ValidationRun{}, err
	}
	return s.repo.Get(ctx, tenantID, id)
}

func (s *RunService) List(ctx context.Context, filter domain.RunFilter) ([]domain.ValidationRun, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultRunListLimit
	}
	if filter.Limit > maxRunListLimit {
		filter.Limit = maxRunListLimit
	}
	return s.repo.List(ctx, filter)
}
