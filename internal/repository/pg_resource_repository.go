package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/visibuild/scimitar/internal/domain"
	"github.com/visibuild/scimitar/internal/filter"
)

// pgUniqueViolation is the PostgreSQL error code for unique_violation.
const pgUniqueViolation = "23505"

// PgResourceRepository is a PostgreSQL-backed storage scope for SCIM
// resource records. All queries are driven by the resource type's
// registration: table, id column, and ordered data columns.
type PgResourceRepository struct {
	db DBTX
}

// NewPgResourceRepository creates a new PostgreSQL resource repository.
func NewPgResourceRepository(db DBTX) *PgResourceRepository {
	return &PgResourceRepository{db: db}
}

// Count returns the number of records matching the predicate, or the
// size of the whole scope when the predicate is nil.
func (r *PgResourceRepository) Count(ctx context.Context, rt *domain.ResourceType, pred *filter.Predicate) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", rt.Table)
	var args []any
	if pred != nil {
		query += " WHERE " + pred.SQL
		args = pred.Args
	}

	var total int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count %s records: %w", rt.Name, err)
	}

	return total, nil
}

// List returns one page of records matching the predicate, ordered
// ascending by the native id column so that repeated calls against
// unchanged data paginate stably.
func (r *PgResourceRepository) List(ctx context.Context, rt *domain.ResourceType, pred *filter.Predicate, offset, limit int) ([]*domain.Record, error) {
	where := ""
	var args []any
	if pred != nil {
		where = " WHERE " + pred.SQL
		args = append(args, pred.Args...)
	}

	query := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s ASC LIMIT $%d OFFSET $%d",
		selectColumns(rt), rt.Table, where, rt.IDColumn(), len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s records: %w", rt.Name, err)
	}
	defer rows.Close()

	records := make([]*domain.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecordFromRows(rt, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s record: %w", rt.Name, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s records: %w", rt.Name, err)
	}

	return records, nil
}

// Get retrieves a single record by its native id.
func (r *PgResourceRepository) Get(ctx context.Context, rt *domain.ResourceType, id uuid.UUID) (*domain.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		selectColumns(rt), rt.Table, rt.IDColumn())

	rec, err := scanRecord(rt, r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(rt.Name, id.String())
		}
		return nil, fmt.Errorf("failed to get %s record: %w", rt.Name, err)
	}

	return rec, nil
}

// GetForUpdate retrieves a single record by id with a row-level lock.
// It must be called within a transaction for the lock to be meaningful.
func (r *PgResourceRepository) GetForUpdate(ctx context.Context, rt *domain.ResourceType, id uuid.UUID) (*domain.Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 FOR UPDATE",
		selectColumns(rt), rt.Table, rt.IDColumn())

	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s record for update: %w", rt.Name, err)
	}

	rec, err := scanRecordRows(rt, rows)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError(rt.Name, id.String())
		}
		return nil, fmt.Errorf("failed to scan %s record: %w", rt.Name, err)
	}

	return rec, nil
}

// CheckUnique verifies the record's unique columns against the rest of
// the scope, excluding the record itself. Conflicts are recorded on the
// record as "taken" field errors; the first conflict is returned as a
// domain.UniquenessError. The database constraint remains the backstop
// for writes racing between check and save.
func (r *PgResourceRepository) CheckUnique(ctx context.Context, rt *domain.ResourceType, rec *domain.Record) error {
	columns := make([]string, 0, len(rt.Unique))
	for column := range rt.Unique {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	var firstErr error
	for _, column := range columns {
		v := rec.Get(column)
		if v == nil {
			continue
		}

		condition := fmt.Sprintf("%s = $1", column)
		if _, ok := v.(string); ok {
			condition = fmt.Sprintf("LOWER(%s) = LOWER($1)", column)
		}
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s AND %s <> $2",
			rt.Table, condition, rt.IDColumn())

		var conflicts int64
		if err := r.db.QueryRow(ctx, query, v, rec.ID).Scan(&conflicts); err != nil {
			return fmt.Errorf("failed to check %s uniqueness: %w", rt.Name, err)
		}
		if conflicts == 0 {
			continue
		}

		attr := rt.UniqueAttribute(column)
		detail := fmt.Sprintf("%s has already been taken", attr)
		rec.AddFieldError(attr, domain.TagTaken, detail)
		if firstErr == nil {
			firstErr = domain.NewUniquenessError(rt.Name, column, detail)
		}
	}

	return firstErr
}

// Insert persists a new record. A unique-constraint violation is
// reported as a domain.UniquenessError and additionally recorded on the
// record as a field error tagged "taken".
func (r *PgResourceRepository) Insert(ctx context.Context, rt *domain.ResourceType, rec *domain.Record) error {
	cols := rt.Columns()
	names := make([]string, 0, len(cols)+3)
	placeholders := make([]string, 0, len(cols)+3)
	args := make([]any, 0, len(cols)+3)

	appendArg := func(name string, v any) {
		names = append(names, name)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)+1))
		args = append(args, v)
	}

	appendArg(rt.IDColumn(), rec.ID)
	for _, col := range cols {
		v, err := encodeValue(rt, col, rec.Get(col))
		if err != nil {
			return err
		}
		appendArg(col, v)
	}
	appendArg("created_at", rec.CreatedAt)
	appendArg("updated_at", rec.UpdatedAt)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		rt.Table, strings.Join(names, ", "), strings.Join(placeholders, ", "))

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if uniqueErr := asUniquenessError(rt, rec, err); uniqueErr != nil {
			return uniqueErr
		}
		return fmt.Errorf("failed to insert %s record: %w", rt.Name, err)
	}

	return nil
}

// Update persists the current state of an existing record. Uniqueness
// violations are reported exactly as in Insert; a missing row is a
// domain.NotFoundError.
func (r *PgResourceRepository) Update(ctx context.Context, rt *domain.ResourceType, rec *domain.Record) error {
	cols := rt.Columns()
	assignments := make([]string, 0, len(cols)+1)
	args := make([]any, 0, len(cols)+2)

	for _, col := range cols {
		v, err := encodeValue(rt, col, rec.Get(col))
		if err != nil {
			return err
		}
		args = append(args, v)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, rec.UpdatedAt)
	assignments = append(assignments, fmt.Sprintf("updated_at = $%d", len(args)))

	args = append(args, rec.ID)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		rt.Table, strings.Join(assignments, ", "), rt.IDColumn(), len(args))

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if uniqueErr := asUniquenessError(rt, rec, err); uniqueErr != nil {
			return uniqueErr
		}
		return fmt.Errorf("failed to update %s record: %w", rt.Name, err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError(rt.Name, rec.ID.String())
	}

	return nil
}

// Delete permanently removes a record by id.
func (r *PgResourceRepository) Delete(ctx context.Context, rt *domain.ResourceType, id uuid.UUID) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", rt.Table, rt.IDColumn())

	result, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", rt.Name, err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError(rt.Name, id.String())
	}

	return nil
}

// asUniquenessError converts a PostgreSQL unique_violation into a
// domain.UniquenessError, attaching a "taken" field error to the record
// for the violated attribute. Returns nil for unrelated errors.
func asUniquenessError(rt *domain.ResourceType, rec *domain.Record, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return nil
	}

	column := constraintColumn(rt, pgErr.ConstraintName)
	attr := rt.UniqueAttribute(column)
	detail := fmt.Sprintf("%s has already been taken", attr)
	rec.AddFieldError(attr, domain.TagTaken, detail)

	return domain.NewUniquenessError(rt.Name, column, detail)
}

// constraintColumn guesses the violated column from the constraint name
// (PostgreSQL names unique indexes <table>_<column>_key by default).
func constraintColumn(rt *domain.ResourceType, constraint string) string {
	for column := range rt.Unique {
		if strings.Contains(constraint, column) {
			return column
		}
	}
	for _, column := range rt.Columns() {
		if strings.Contains(constraint, column) {
			return column
		}
	}
	return constraint
}

// selectColumns renders the fixed SELECT list: id, the sorted data
// columns, then the bookkeeping timestamps.
func selectColumns(rt *domain.ResourceType) string {
	cols := make([]string, 0, len(rt.Columns())+3)
	cols = append(cols, rt.IDColumn())
	cols = append(cols, rt.Columns()...)
	cols = append(cols, "created_at", "updated_at")
	return strings.Join(cols, ", ")
}

// encodeValue prepares a record value for binding. JSON document columns
// are marshaled explicitly so the wire value is deterministic.
func encodeValue(rt *domain.ResourceType, column string, v any) (any, error) {
	if v == nil || !rt.IsJSON(column) {
		return v, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", column, err)
	}
	return data, nil
}

// decodeValue reverses encodeValue for scanned values.
func decodeValue(rt *domain.ResourceType, column string, v any) (any, error) {
	if !rt.IsJSON(column) {
		return v, nil
	}

	data, ok := v.([]byte)
	if !ok || len(data) == 0 {
		return v, nil
	}

	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", column, err)
	}
	return decoded, nil
}

// scanRecord scans a single row into a Record.
func scanRecord(rt *domain.ResourceType, row pgx.Row) (*domain.Record, error) {
	cols := rt.Columns()
	rec := domain.NewRecord()

	values := make([]any, len(cols))
	dest := make([]any, 0, len(cols)+3)
	dest = append(dest, &rec.ID)
	for i := range values {
		dest = append(dest, &values[i])
	}
	dest = append(dest, &rec.CreatedAt, &rec.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	for i, col := range cols {
		decoded, err := decodeValue(rt, col, values[i])
		if err != nil {
			return nil, err
		}
		rec.Set(col, decoded)
	}

	return rec, nil
}

// scanRecordRows scans a single row from pgx.Rows into a Record. Used
// with SELECT FOR UPDATE, which returns Rows instead of Row.
func scanRecordRows(rt *domain.ResourceType, rows pgx.Rows) (*domain.Record, error) {
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, pgx.ErrNoRows
	}

	return scanRecordFromRows(rt, rows)
}

// scanRecordFromRows scans the current row from pgx.Rows into a Record.
func scanRecordFromRows(rt *domain.ResourceType, rows pgx.Rows) (*domain.Record, error) {
	return scanRecord(rt, rows)
}
