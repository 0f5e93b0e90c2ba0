// Package client contains the client-side building blocks that talk to the
// outside world: the remote submissions API and the local SQLite store.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) covering
//     the three remote calls of a file submission: requesting upload
//     targets, building the upload request for one file, and creating the
//     submission from uploaded file ids.
//  2. A JSON-over-HTTP implementation (see HTTPClient) that injects an
//     optional bearer token and maps HTTP statuses to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match
// with errors.Is: ErrUnavailable, ErrUnauthorized, ErrBadRequest,
// ErrInvalidResponse.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation and timeouts.
package client
