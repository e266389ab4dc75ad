// Package scimprov implements the SCIM resource handler that drives the
// resource lifecycle against the relational store.
//
// # Overview
//
// A Provider binds one registered resource type to storage and serves
// the full protocol surface for it:
//
//   - GetAll: filtered, paginated listing
//   - Get: single-resource retrieval
//   - Create, Replace, Patch: mutations with validation and uniqueness
//     checks
//   - Delete: removal (or whatever the mutation strategy decides)
//
// # Transactions
//
// Every mutation runs inside a single transaction: the current row is
// locked, modified, validated, and persisted before commit. When the
// underlying scope cannot begin transactions the provider degrades to
// running against it directly.
//
// # Mutation Strategies
//
// The MutationStrategy hook lets a resource type override how records
// are persisted and destroyed, e.g. flagging rows inactive instead of
// deleting them. The default strategy inserts, updates, and deletes
// rows directly.
//
// # Error Handling
//
// Domain errors are translated to protocol errors at the boundary:
// missing rows become 404 responses, uniqueness conflicts become 409
// responses with the "uniqueness" scimType, and rejected filters or
// values become 400 responses. Anything else is reported as an opaque
// internal error.
package scimprov
