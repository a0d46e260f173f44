package catalog

import "context"

// EntityInput is one upsert request to the catalog store. TenantID may be
// empty for an organization-wide entity.
type EntityInput struct {
	Identifier     string                 `json:"identifier"`
	Blueprint      string                 `json:"blueprint"`
	Title          string                 `json:"title"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
	Relations      map[string]interface{} `json:"relations,omitempty"`
	OrganizationID string                 `json:"organizationId"`
	TenantID       string                 `json:"tenantId,omitempty"`
	CreatedBy      string                 `json:"createdBy,omitempty"`
	Icon           string                 `json:"icon,omitempty"`
}

// Sink is the external catalog store. Create is expected to upsert keyed by
// (organizationId, tenantId, blueprint, identifier), which is what makes
// repeated and overlapping ingestion of the same provider state safe.
type Sink interface {
	Create(ctx context.Context, input *EntityInput) error
}
