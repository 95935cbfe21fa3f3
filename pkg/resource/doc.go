// Package resource provides a reusable library for managing uploaded binary
// resources with pluggable repository and storage backends.
//
// It exposes a single Service interface that orchestrates upload completion
// (provider metadata extraction, blob resolution, best-effort URL derivation,
// persistence), upload URL issuance and single or bulk deletion with
// cross-store consistency. Implementations of repositories (memory, Postgres)
// and blob/object stores (memory, S3-compatible) are provided under
// subpackages.
//
// Consistency Model
//
// A resource record and its blob are deleted together in one logical
// operation. Bulk deletes remove all resolved records in a single atomic
// metadata transaction; the per-blob deletions happen before that transaction
// and are idempotent, so a failed bulk delete is always safe to retry.
package resource
