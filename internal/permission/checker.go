// Package permission answers role and permission questions about actors.
package permission

import (
	"context"

	"admissions/internal/domain"
	"admissions/pkg/errors"
	"admissions/pkg/logger"

	"github.com/google/uuid"
)

// Checker is the capability used by the engine and verification pipeline to
// authorize reviewer actions. Implementations must be side-effect free.
type Checker interface {
	HasPermission(ctx context.Context, actor uuid.UUID, permission string) (bool, error)
	HasRole(ctx context.Context, actor uuid.UUID, role string) (bool, error)
}

// ReviewerRepository is the subset of reviewer persistence the checker needs.
type ReviewerRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Reviewer, error)
}

// DatabaseChecker resolves permissions from the reviewers table. An unknown
// or inactive reviewer has no permissions and no roles.
type DatabaseChecker struct {
	repo   ReviewerRepository
	logger logger.Logger
}

func NewDatabaseChecker(repo ReviewerRepository, log logger.Logger) *DatabaseChecker {
	return &DatabaseChecker{repo: repo, logger: log}
}

func (c *DatabaseChecker) HasPermission(ctx context.Context, actor uuid.UUID, permission string) (bool, error) {
	rev, err := c.repo.FindByID(ctx, actor)
	if err == errors.ErrReviewerNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !rev.IsActive {
		return false, nil
	}
	for _, p := range rev.Permissions {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}

func (c *DatabaseChecker) HasRole(ctx context.Context, actor uuid.UUID, role string) (bool, error) {
	rev, err := c.repo.FindByID(ctx, actor)
	if err == errors.ErrReviewerNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !rev.IsActive {
		return false, nil
	}
	for _, r := range rev.Roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}
