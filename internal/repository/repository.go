// Package repository provides the relational storage scope for SCIM
// resource records.
//
// # Overview
//
// The package implements the storage side of the request-to-storage
// translation pipeline: generic, resource-type-driven queries against a
// PostgreSQL table, with uniqueness violations and missing rows surfaced
// as domain errors.
//
// # Thread Safety
//
// PgResourceRepository is safe for concurrent use by multiple goroutines.
// The underlying pgxpool handles connection pooling and synchronization.
//
// # Error Handling
//
// All methods return domain-specific errors from the domain package,
// wrapped with context using fmt.Errorf with the %w verb:
//
//   - domain.NotFoundError: the record does not exist in the scope
//   - domain.UniquenessError: a unique constraint was violated
//
// # Transactions
//
// The DBTX interface supports both pool and transaction contexts.
// Mutation orchestration passes a pgx.Tx so that one record's
// read-modify-persist sequence shares a single transaction.
package repository

import (
	"github.com/visibuild/scimitar/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. Repositories work against either a *database.DB or a pgx.Tx.
type DBTX = database.DBTX
