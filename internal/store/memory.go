package store

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps integrations in memory, uniquely keyed by
// (organizationId, tenantId) with OrgWideTenant as the explicit org-wide
// sentinel. Used when integrations are seeded from the config file, and by
// tests.
type MemoryStore struct {
	lock           sync.RWMutex
	byOrgTenant    map[string]*Integration
	byInstallation map[string]*Integration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byOrgTenant:    map[string]*Integration{},
		byInstallation: map[string]*Integration{},
	}
}

func orgTenantKey(organizationID string, tenantID string) string {
	return organizationID + "\x00" + tenantID
}

// Put saves an integration, rejecting a second integration for the same
// (organization, tenant) pair. Two distinct tenants of one organization, or
// a tenant-scoped plus an org-wide one, may coexist.
func (s *MemoryStore) Put(integration *Integration) error {
	if integration.OrganizationID == "" {
		return fmt.Errorf("integration missing organization ID")
	}

	if integration.InstallationID == "" {
		return fmt.Errorf("integration missing installation ID")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	key := orgTenantKey(integration.OrganizationID, integration.TenantID)

	if existing, ok := s.byOrgTenant[key]; ok &&
		existing.InstallationID != integration.InstallationID {
		return fmt.Errorf(
			"organization %s already has an integration for tenant %q",
			integration.OrganizationID,
			integration.TenantID,
		)
	}

	s.byOrgTenant[key] = integration
	s.byInstallation[integration.InstallationID] = integration

	return nil
}

func (s *MemoryStore) GetByInstallation(
	ctx context.Context,
	installationID string,
) (*Integration, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	integration, ok := s.byInstallation[installationID]
	if !ok {
		return nil, ErrNotFound
	}

	found := *integration
	return &found, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Integration, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	integrations := make([]Integration, 0, len(s.byOrgTenant))
	for _, integration := range s.byOrgTenant {
		integrations = append(integrations, *integration)
	}

	return integrations, nil
}
