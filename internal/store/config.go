package store

import (
	"fmt"

	"github.com/spf13/viper"
)

type integrationConfig struct {
	Provider       string
	InstallationId string
	OrganizationId string
	TenantId       string
	Mapping        string
}

// FromConfig seeds a MemoryStore from the `integrations` key of the loaded
// config file.
func FromConfig() (*MemoryStore, error) {
	configs := []integrationConfig{}

	err := viper.UnmarshalKey("integrations", &configs)
	if err != nil {
		return nil, fmt.Errorf("reading integrations from config failed: %s", err)
	}

	memoryStore := NewMemoryStore()

	for _, config := range configs {
		provider := config.Provider
		if provider == "" {
			provider = "github"
		}

		err := memoryStore.Put(&Integration{
			Provider:       provider,
			InstallationID: config.InstallationId,
			OrganizationID: config.OrganizationId,
			TenantID:       config.TenantId,
			Mapping:        config.Mapping,
		})
		if err != nil {
			return nil, err
		}
	}

	return memoryStore, nil
}
