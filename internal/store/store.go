// Package store holds integration contexts: per-tenant provider
// configuration read on every webhook delivery and poll cycle.
package store

import (
	"context"
	"errors"
)

// OrgWideTenant is the explicit "no tenant" sentinel: an organization-wide
// integration is keyed on this value, and at most one such integration may
// exist per organization.
const OrgWideTenant = ""

// ErrNotFound marks a lookup for an installation no integration is
// configured for. Callers treat it as "not ours", not as a failure.
var ErrNotFound = errors.New("integration not found")

// Integration is one configured connection between a provider installation
// and an organization (or one of its tenants). The mapping configuration is
// stored as the raw YAML the user authored; the pipeline never mutates it.
type Integration struct {
	Provider       string
	InstallationID string
	OrganizationID string
	TenantID       string
	Mapping        string
}

// Store is the external persistence layer for integrations. The ingestion
// pipeline only reads from it.
type Store interface {
	GetByInstallation(ctx context.Context, installationID string) (*Integration, error)
	List(ctx context.Context) ([]Integration, error)
}
