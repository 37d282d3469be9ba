// Package store provides the shared DynamoDB plumbing for single-table
// repositories.
//
// A single-table design maps several logical entity types onto one physical
// table using overloaded partition and sort keys, so that every access
// pattern is a key lookup or a range query. This package holds what the
// repositories built on that idea have in common; the key layout of each
// table lives with its entities (see package entity).
//
// # Client
//
// All operations go through the [Client] interface, which is the method set
// of *dynamodb.Client that the repositories use. Build a real client with
// [NewClient]:
//
//	client, err := store.NewClient(ctx, store.DefaultClientConfig())
//
// [DefaultClientConfig] targets DynamoDB Local on http://localhost:8000.
// Clear Endpoint and the static keys to use the default AWS credential chain.
//
// # Table administration
//
// [Admin] creates, describes and deletes a table from a [TableSchema].
// CreateTable is idempotent: an existing table is logged and left alone.
//
// # Errors
//
// The package defines the error taxonomy shared by all repositories:
//
//   - [ErrAlreadyExists] - the table already exists
//   - [ErrTableNotFound] - the table does not exist
//   - [ErrConditionFailed] - a conditional write was rejected
//   - [ErrConflict] - a uniqueness constraint was violated
//   - [ErrMalformedRecord] - a stored item does not have the expected shape
//   - [ErrUnavailable] - a retryable service or network failure
//   - [ErrInvalidInput] - arguments rejected before reaching the store
//
// Use [MapError] to translate SDK errors into this taxonomy.
package store
