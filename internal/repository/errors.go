// Package repository defines error types that are reused across multiple
// repositories and by the services built on them.  Every read and write is
// scoped by business (tenant); these sentinels let higher layers tell a
// missing row apart from a cross-tenant reference.
package repository

import "errors"

// ErrNotFound is returned when no row matches within the caller's tenant.
var ErrNotFound = errors.New("not found")

// ErrTenantMismatch is returned when a record exists but belongs to a
// different business than the one in scope.  It signals a data-integrity
// bug upstream and must never be silently corrected.
var ErrTenantMismatch = errors.New("tenant mismatch")

// ErrMissingTenant is returned when a query is issued without a business
// scope.
var ErrMissingTenant = errors.New("business_id is required")

// ErrConflict is returned when a conditional update finds the row in a
// different state than expected, e.g. a status transition that lost a
// race against another writer.
var ErrConflict = errors.New("conflict")
