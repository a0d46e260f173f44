package catalog

import (
	"context"

	log "github.com/sirupsen/logrus"
)

const createdBy = "github-entity-sync"

// Persist upserts each valid entity through the sink. Entities missing
// identifier, blueprint or title are skipped with a warning, and a sink
// failure for one entity never stops the remaining ones. Returns the number
// of entities accepted by the sink.
func Persist(
	ctx context.Context,
	logger *log.Logger,
	sink Sink,
	organizationID string,
	tenantID string,
	entities []Entity,
) int {
	persisted := 0

	for _, entity := range entities {
		if !entity.Valid() {
			logger.Warnf(
				"skipping entity with missing identity fields (identifier=%q blueprint=%q title=%q)",
				entity.Identifier,
				entity.Blueprint,
				entity.Title,
			)
			continue
		}

		err := sink.Create(ctx, &EntityInput{
			Identifier:     entity.Identifier,
			Blueprint:      entity.Blueprint,
			Title:          entity.Title,
			Properties:     entity.Properties,
			Relations:      entity.Relations,
			OrganizationID: organizationID,
			TenantID:       tenantID,
			CreatedBy:      createdBy,
		})
		if err != nil {
			logger.Warnf(
				"failed to persist entity %s (%s): %s",
				entity.Identifier,
				entity.Blueprint,
				err,
			)
			continue
		}

		logger.Debugf(
			"persisted entity %s (%s)",
			entity.Identifier,
			entity.Blueprint,
		)

		persisted += 1
	}

	return persisted
}
