package mapping

import (
	"context"
	"fmt"
	"strings"

	"github.com/opencatalog/github-entity-sync/internal/catalog"
	"github.com/opencatalog/github-entity-sync/pkg/jsonq"
	log "github.com/sirupsen/logrus"
)

// fileMarker prefixes a property value that should be filled with repository
// file content instead of being evaluated as an expression.
const fileMarker = "file://"

// selectorMatchAll short-circuits selector evaluation; it is the documented
// way to spell "match everything" and must behave identically to omitting
// the selector.
const selectorMatchAll = "true"

// FileResolver fetches one file's decoded content from the provider.
// Resolve returns nil when the file cannot be fetched for any reason; file
// content is optional enrichment, never a hard requirement.
type FileResolver interface {
	Resolve(
		ctx context.Context,
		path string,
		payload interface{},
		installationID string,
	) interface{}
}

// Mapper turns provider payloads into canonical entities by interpreting a
// tenant's mapping configuration.
type Mapper struct {
	log      *log.Logger
	resolver FileResolver
}

// New returns a Mapper. The resolver may be nil, in which case file content
// properties always map to null.
func New(logger *log.Logger, resolver FileResolver) *Mapper {
	return &Mapper{log: logger, resolver: resolver}
}

// Transform applies every rule in rawConfig whose kind matches the given
// resource kind to the payload. One payload may fan out into several
// entities, and a failure inside one rule never blocks the others: rules are
// user-authored and may contain mistakes. Only a configuration that cannot
// be parsed at all fails the call.
func (m *Mapper) Transform(
	ctx context.Context,
	payload interface{},
	kind string,
	rawConfig string,
	installationID string,
) ([]catalog.Entity, error) {
	config, err := Parse(rawConfig)
	if err != nil {
		return nil, err
	}

	entities := []catalog.Entity{}

	for i, resource := range config.Resources {
		if resource.Kind != kind {
			continue
		}

		selected := m.matches(resource.Selector.Query, payload)
		if !selected {
			m.log.Debugf(
				"rule %d (%s) not selected for payload",
				i,
				resource.Kind,
			)
			continue
		}

		entity, err := m.mapRule(ctx, &resource, payload, installationID)
		if err != nil {
			m.log.Warnf(
				"error mapping rule %d (%s), skipping: %s",
				i,
				resource.Kind,
				err,
			)
			continue
		}

		entities = append(entities, *entity)
	}

	return entities, nil
}

// matches decides whether a rule applies to a payload. No selector means
// match: selection is opt-out. An evaluator failure is treated as "does not
// match" so a broken selector in one rule cannot abort the transform.
func (m *Mapper) matches(query string, payload interface{}) bool {
	if query == "" || query == selectorMatchAll {
		return true
	}

	result, err := jsonq.Evaluate(query, payload)
	if err != nil {
		m.log.Warnf("selector evaluation failed, treating as no match: %s", err)
		return false
	}

	return jsonq.Truthy(result)
}

func (m *Mapper) mapRule(
	ctx context.Context,
	resource *Resource,
	payload interface{},
	installationID string,
) (*catalog.Entity, error) {
	mappings := resource.Port.Entity.Mappings

	blueprint := resource.Kind
	if mappings.Blueprint != "" {
		v, err := jsonq.Evaluate(mappings.Blueprint, payload)
		if err != nil {
			return nil, err
		}
		blueprint = asString(v)
	}

	identifier, err := jsonq.Evaluate(mappings.Identifier, payload)
	if err != nil {
		return nil, err
	}

	title, err := jsonq.Evaluate(mappings.Title, payload)
	if err != nil {
		return nil, err
	}

	entity := &catalog.Entity{
		Identifier: asString(identifier),
		Title:      asString(title),
		Blueprint:  blueprint,
		Properties: map[string]interface{}{},
		Relations:  map[string]interface{}{},
	}

	for name, expr := range mappings.Properties {
		if strings.HasPrefix(expr, fileMarker) {
			entity.Properties[name] = m.resolveFile(
				ctx,
				strings.TrimPrefix(expr, fileMarker),
				payload,
				installationID,
			)
			continue
		}

		v, err := jsonq.Evaluate(expr, payload)
		if err != nil {
			return nil, err
		}
		entity.Properties[name] = v
	}

	for name, expr := range mappings.Relations {
		v, err := jsonq.Evaluate(expr, payload)
		if err != nil {
			return nil, err
		}
		entity.Relations[name] = v
	}

	return entity, nil
}

func (m *Mapper) resolveFile(
	ctx context.Context,
	path string,
	payload interface{},
	installationID string,
) interface{} {
	if m.resolver == nil {
		m.log.Warnf(
			"no file resolver configured, mapping %s%s to null",
			fileMarker,
			path,
		)
		return nil
	}

	return m.resolver.Resolve(ctx, path, payload, installationID)
}

func asString(v interface{}) string {
	switch u := v.(type) {
	case nil:
		return ""
	case string:
		return u
	default:
		return fmt.Sprintf("%v", u)
	}
}
