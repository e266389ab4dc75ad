package scimprov

import (
	"context"

	"github.com/google/uuid"

	"github.com/visibuild/scimitar/internal/domain"
	"github.com/visibuild/scimitar/internal/filter"
)

// ResourceRepository is the storage surface the provider drives. The
// PostgreSQL implementation lives in internal/repository.
type ResourceRepository interface {
	Count(ctx context.Context, rt *domain.ResourceType, pred *filter.Predicate) (int64, error)
	List(ctx context.Context, rt *domain.ResourceType, pred *filter.Predicate, offset, limit int) ([]*domain.Record, error)
	Get(ctx context.Context, rt *domain.ResourceType, id uuid.UUID) (*domain.Record, error)
	GetForUpdate(ctx context.Context, rt *domain.ResourceType, id uuid.UUID) (*domain.Record, error)
	CheckUnique(ctx context.Context, rt *domain.ResourceType, rec *domain.Record) error
	Insert(ctx context.Context, rt *domain.ResourceType, rec *domain.Record) error
	Update(ctx context.Context, rt *domain.ResourceType, rec *domain.Record) error
	Delete(ctx context.Context, rt *domain.ResourceType, id uuid.UUID) error
}

// MutationStrategy lets a resource type override how records are
// persisted and destroyed. The provider calls it inside the mutation
// transaction, after validation and uniqueness checks have passed.
type MutationStrategy interface {
	// Save persists the record. insert reports whether the record is new.
	Save(ctx context.Context, repo ResourceRepository, rt *domain.ResourceType, rec *domain.Record, insert bool) error

	// Destroy removes the record from the active scope.
	Destroy(ctx context.Context, repo ResourceRepository, rt *domain.ResourceType, rec *domain.Record) error
}

// defaultStrategy inserts, updates, and deletes rows directly.
type defaultStrategy struct{}

var _ MutationStrategy = defaultStrategy{}

func (defaultStrategy) Save(ctx context.Context, repo ResourceRepository, rt *domain.ResourceType, rec *domain.Record, insert bool) error {
	if insert {
		return repo.Insert(ctx, rt, rec)
	}
	return repo.Update(ctx, rt, rec)
}

func (defaultStrategy) Destroy(ctx context.Context, repo ResourceRepository, rt *domain.ResourceType, rec *domain.Record) error {
	return repo.Delete(ctx, rt, rec.ID)
}
