package scimprov

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elimity-com/scim"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	scimfilter "github.com/scim2/filter-parser/v2"

	"github.com/visibuild/scimitar/internal/domain"
	"github.com/visibuild/scimitar/internal/filter"
	"github.com/visibuild/scimitar/internal/mapper"
	"github.com/visibuild/scimitar/internal/observability"
	"github.com/visibuild/scimitar/internal/repository"
)

// txRunner is satisfied by *database.DB, which owns the canonical
// begin/rollback/commit sequence.
type txRunner interface {
	WithTransaction(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// txBeginner is satisfied by database scopes that can open transactions
// but carry no transaction helper, such as mock pools.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// RepositoryFactory builds a repository bound to a database scope, which
// is either the shared pool or a single transaction.
type RepositoryFactory func(db repository.DBTX) ResourceRepository

// Provider serves the SCIM protocol surface for one registered resource
// type. It implements scim.ResourceHandler.
type Provider struct {
	db       repository.DBTX
	rt       *domain.ResourceType
	newRepo  RepositoryFactory
	strategy MutationStrategy
	logger   zerolog.Logger
	metrics  *observability.Metrics

	defaultPageSize int
	maxPageSize     int

	now func() time.Time
}

var _ scim.ResourceHandler = (*Provider)(nil)

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithLogger sets the provider's logger.
func WithLogger(logger zerolog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithMetrics enables operation metrics.
func WithMetrics(m *observability.Metrics) ProviderOption {
	return func(p *Provider) {
		p.metrics = m
	}
}

// WithPageSizes sets the default and maximum page sizes for list
// operations.
func WithPageSizes(defaultSize, maxSize int) ProviderOption {
	return func(p *Provider) {
		p.defaultPageSize = defaultSize
		p.maxPageSize = maxSize
	}
}

// WithMutationStrategy overrides how records are persisted and
// destroyed.
func WithMutationStrategy(s MutationStrategy) ProviderOption {
	return func(p *Provider) {
		p.strategy = s
	}
}

// WithRepositoryFactory overrides the repository implementation.
func WithRepositoryFactory(f RepositoryFactory) ProviderOption {
	return func(p *Provider) {
		p.newRepo = f
	}
}

// NewProvider creates a provider for the given resource type backed by
// the given database scope.
func NewProvider(db repository.DBTX, rt *domain.ResourceType, opts ...ProviderOption) *Provider {
	p := &Provider{
		db: db,
		rt: rt,
		newRepo: func(db repository.DBTX) ResourceRepository {
			return repository.NewPgResourceRepository(db)
		},
		strategy:        defaultStrategy{},
		logger:          zerolog.Nop(),
		defaultPageSize: 50,
		maxPageSize:     200,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// GetAll returns one page of resources matching the request's filter.
func (p *Provider) GetAll(r *http.Request, params scim.ListRequestParams) (scim.Page, error) {
	ctx := r.Context()
	start := p.now()
	repo := p.newRepo(p.db)

	var expr scimfilter.Expression
	if params.FilterValidator != nil {
		expr = params.FilterValidator.GetFilter()
	}
	pred, err := filter.Compile(expr, p.rt, 0)
	if err != nil {
		return scim.Page{}, p.fail(ctx, "list", nil, err, start)
	}

	total, err := repo.Count(ctx, p.rt, pred)
	if err != nil {
		return scim.Page{}, p.fail(ctx, "list", nil, err, start)
	}

	window := newPageWindow(params.StartIndex, params.Count, p.defaultPageSize, p.maxPageSize)
	records, err := repo.List(ctx, p.rt, pred, window.offset, window.limit)
	if err != nil {
		return scim.Page{}, p.fail(ctx, "list", nil, err, start)
	}

	resources := make([]scim.Resource, 0, len(records))
	for _, rec := range records {
		resources = append(resources, mapper.ToResource(p.rt, rec))
	}

	if p.metrics != nil {
		p.metrics.RecordListPage(p.rt.Name, len(resources), pred != nil)
	}
	p.done(ctx, "list", start)

	return scim.Page{
		TotalResults: int(total),
		Resources:    resources,
	}, nil
}

// Get retrieves a single resource by id.
func (p *Provider) Get(r *http.Request, id string) (scim.Resource, error) {
	ctx := r.Context()
	start := p.now()

	uid, err := parseID(p.rt, id)
	if err != nil {
		return scim.Resource{}, p.fail(ctx, "get", nil, err, start)
	}

	rec, err := p.newRepo(p.db).Get(ctx, p.rt, uid)
	if err != nil {
		return scim.Resource{}, p.fail(ctx, "get", nil, err, start)
	}

	p.done(ctx, "get", start)
	return mapper.ToResource(p.rt, rec), nil
}

// Create validates and persists a new resource.
func (p *Provider) Create(r *http.Request, attributes scim.ResourceAttributes) (scim.Resource, error) {
	ctx := r.Context()
	start := p.now()

	rec := domain.NewRecord()
	rec.ID = uuid.New()
	mapper.FromResource(p.rt, rec, attributes)

	if err := mapper.Validate(p.rt, rec); err != nil {
		return scim.Resource{}, p.fail(ctx, "create", rec, err, start)
	}

	now := p.now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	err := p.inTransaction(ctx, func(repo ResourceRepository) error {
		if err := repo.CheckUnique(ctx, p.rt, rec); err != nil {
			return err
		}
		return p.strategy.Save(ctx, repo, p.rt, rec, true)
	})
	if err != nil {
		return scim.Resource{}, p.fail(ctx, "create", rec, err, start)
	}

	p.done(ctx, "create", start)
	return mapper.ToResource(p.rt, rec), nil
}

// Replace overwrites an existing resource with the given attribute
// document. Mapped attributes absent from the document are cleared.
func (p *Provider) Replace(r *http.Request, id string, attributes scim.ResourceAttributes) (scim.Resource, error) {
	ctx := r.Context()
	start := p.now()

	uid, err := parseID(p.rt, id)
	if err != nil {
		return scim.Resource{}, p.fail(ctx, "replace", nil, err, start)
	}

	var rec *domain.Record
	err = p.inTransaction(ctx, func(repo ResourceRepository) error {
		var err error
		rec, err = repo.GetForUpdate(ctx, p.rt, uid)
		if err != nil {
			return err
		}

		mapper.FromResource(p.rt, rec, attributes)
		if err := mapper.Validate(p.rt, rec); err != nil {
			return err
		}
		rec.UpdatedAt = p.now().UTC()

		if err := repo.CheckUnique(ctx, p.rt, rec); err != nil {
			return err
		}
		return p.strategy.Save(ctx, repo, p.rt, rec, false)
	})
	if err != nil {
		return scim.Resource{}, p.fail(ctx, "replace", rec, err, start)
	}

	p.done(ctx, "replace", start)
	return mapper.ToResource(p.rt, rec), nil
}

// Patch applies a sequence of patch operations to an existing resource.
// The modified record is validated and persisted atomically.
func (p *Provider) Patch(r *http.Request, id string, operations []scim.PatchOperation) (scim.Resource, error) {
	ctx := r.Context()
	start := p.now()

	uid, err := parseID(p.rt, id)
	if err != nil {
		return scim.Resource{}, p.fail(ctx, "patch", nil, err, start)
	}

	var rec *domain.Record
	err = p.inTransaction(ctx, func(repo ResourceRepository) error {
		var err error
		rec, err = repo.GetForUpdate(ctx, p.rt, uid)
		if err != nil {
			return err
		}

		if err := mapper.ApplyPatch(p.rt, rec, operations); err != nil {
			return err
		}
		if err := mapper.Validate(p.rt, rec); err != nil {
			return err
		}
		rec.UpdatedAt = p.now().UTC()

		if err := repo.CheckUnique(ctx, p.rt, rec); err != nil {
			return err
		}
		return p.strategy.Save(ctx, repo, p.rt, rec, false)
	})
	if err != nil {
		return scim.Resource{}, p.fail(ctx, "patch", rec, err, start)
	}

	p.done(ctx, "patch", start)
	return mapper.ToResource(p.rt, rec), nil
}

// Delete removes a resource. The record is loaded under lock first so
// the mutation strategy can inspect it before destroying it.
func (p *Provider) Delete(r *http.Request, id string) error {
	ctx := r.Context()
	start := p.now()

	uid, err := parseID(p.rt, id)
	if err != nil {
		return p.fail(ctx, "delete", nil, err, start)
	}

	err = p.inTransaction(ctx, func(repo ResourceRepository) error {
		rec, err := repo.GetForUpdate(ctx, p.rt, uid)
		if err != nil {
			return err
		}
		return p.strategy.Destroy(ctx, repo, p.rt, rec)
	})
	if err != nil {
		return p.fail(ctx, "delete", nil, err, start)
	}

	p.done(ctx, "delete", start)
	return nil
}

// inTransaction runs fn against a repository bound to a fresh
// transaction, delegating to the pool's transaction helper when it has
// one. A scope that cannot begin transactions is used directly.
func (p *Provider) inTransaction(ctx context.Context, fn func(repo ResourceRepository) error) error {
	if runner, ok := p.db.(txRunner); ok {
		return runner.WithTransaction(ctx, func(tx pgx.Tx) error {
			return fn(p.newRepo(tx))
		})
	}

	beginner, ok := p.db.(txBeginner)
	if !ok {
		return fn(p.newRepo(p.db))
	}

	tx, err := beginner.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(p.newRepo(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// parseID parses a protocol resource id. Malformed ids cannot match any
// stored record, so they are reported as not found rather than invalid.
func parseID(rt *domain.ResourceType, id string) (uuid.UUID, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, domain.NewNotFoundError(rt.Name, id)
	}
	return uid, nil
}

// fail logs and records a failed operation and returns its protocol
// representation.
func (p *Provider) fail(ctx context.Context, operation string, rec *domain.Record, err error, start time.Time) error {
	kind := errorKind(rec, err)

	logger := observability.WithOperationContext(p.logger, p.rt.Name, operation)
	logger.Warn().
		Str("request_id", observability.RequestIDFromContext(ctx)).
		Err(err).
		Str("kind", kind).
		Msg("operation failed")

	if p.metrics != nil {
		p.metrics.RecordOperation(p.rt.Name, operation, "error", p.now().Sub(start).Seconds())
		p.metrics.RecordOperationError(p.rt.Name, operation, kind)
	}

	return translateError(rec, err)
}

// done records a successful operation.
func (p *Provider) done(ctx context.Context, operation string, start time.Time) {
	logger := observability.WithOperationContext(p.logger, p.rt.Name, operation)
	logger.Debug().
		Str("request_id", observability.RequestIDFromContext(ctx)).
		Msg("operation completed")

	if p.metrics != nil {
		p.metrics.RecordOperation(p.rt.Name, operation, "success", p.now().Sub(start).Seconds())
	}
}
