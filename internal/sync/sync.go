// Package sync performs full reconciliation sweeps: it re-derives every
// entity observable from the provider's current state, so repeated runs
// converge through the sink's idempotent upsert.
package sync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid"
	"github.com/opencatalog/github-entity-sync/internal/catalog"
	"github.com/opencatalog/github-entity-sync/internal/github"
	"github.com/opencatalog/github-entity-sync/internal/mapping"
	"github.com/opencatalog/github-entity-sync/internal/metrics"
	"github.com/opencatalog/github-entity-sync/internal/store"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Synchronizer sweeps every configured integration against the provider's
// API, feeding each fetched item through the mapping engine.
type Synchronizer struct {
	log         *log.Logger
	app         *github.App
	store       store.Store
	mapper      *mapping.Mapper
	sink        catalog.Sink
	concurrency int
	timeout     time.Duration

	lock    sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// New returns a Synchronizer. Concurrency bounds how many repositories are
// swept in parallel per integration; 1 preserves strictly sequential
// traversal, which keeps load on the rate-limited provider API minimal.
func New(
	logger *log.Logger,
	app *github.App,
	integrationStore store.Store,
	mapper *mapping.Mapper,
	sink catalog.Sink,
	concurrency int,
	timeout time.Duration,
) *Synchronizer {
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Synchronizer{
		log:         logger,
		app:         app,
		store:       integrationStore,
		mapper:      mapper,
		sink:        sink,
		concurrency: concurrency,
		timeout:     timeout,
	}
}

// Result tallies one integration's sweep.
type Result struct {
	TotalRepositories      int64
	TotalItemsMapped       int64
	TotalEntitiesPersisted int64
	TotalCollectionErrors  int64
}

// collection is one independent resource listing pulled per repository. A
// failure fetching one collection never prevents the others from running.
type collection struct {
	kind  string
	fetch func(
		ctx context.Context,
		client *github.InstallationClient,
		owner string,
		repo string,
	) ([]map[string]interface{}, error)
}

var collections = []collection{
	{"issue", func(ctx context.Context, c *github.InstallationClient, o, r string) ([]map[string]interface{}, error) {
		return c.ListIssues(ctx, o, r)
	}},
	{"pull-request", func(ctx context.Context, c *github.InstallationClient, o, r string) ([]map[string]interface{}, error) {
		return c.ListPullRequests(ctx, o, r)
	}},
	{"workflow-run", func(ctx context.Context, c *github.InstallationClient, o, r string) ([]map[string]interface{}, error) {
		return c.ListWorkflowRuns(ctx, o, r)
	}},
	{"branches", func(ctx context.Context, c *github.InstallationClient, o, r string) ([]map[string]interface{}, error) {
		return c.ListBranches(ctx, o, r)
	}},
	{"tags", func(ctx context.Context, c *github.InstallationClient, o, r string) ([]map[string]interface{}, error) {
		return c.ListTags(ctx, o, r)
	}},
	{"releases", func(ctx context.Context, c *github.InstallationClient, o, r string) ([]map[string]interface{}, error) {
		return c.ListReleases(ctx, o, r)
	}},
	{"deployment", func(ctx context.Context, c *github.InstallationClient, o, r string) ([]map[string]interface{}, error) {
		return c.ListDeployments(ctx, o, r)
	}},
	{"environment", func(ctx context.Context, c *github.InstallationClient, o, r string) ([]map[string]interface{}, error) {
		return c.ListEnvironments(ctx, o, r)
	}},
	{"dependabot-alert", func(ctx context.Context, c *github.InstallationClient, o, r string) ([]map[string]interface{}, error) {
		return c.ListDependabotAlerts(ctx, o, r)
	}},
	{"code-scanning", func(ctx context.Context, c *github.InstallationClient, o, r string) ([]map[string]interface{}, error) {
		return c.ListCodeScanningAlerts(ctx, o, r)
	}},
}

// Trigger starts a full sweep in the background and returns immediately.
// Returns false when a sweep is already in flight.
func (s *Synchronizer) Trigger() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.running {
		s.log.Info("sync already running, ignoring trigger")
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	go func() {
		defer func() {
			s.lock.Lock()
			s.running = false
			s.cancel = nil
			s.lock.Unlock()
			cancel()
		}()

		if err := s.SyncAll(ctx); err != nil {
			s.log.Errorf("sync run failed: %s", err)
		}
	}()

	return true
}

// Stop cancels an in-flight background sweep, if any.
func (s *Synchronizer) Stop() {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.cancel != nil {
		s.cancel()
	}
}

// SyncAll sweeps every stored integration. A failure in one integration's
// sweep is logged and never aborts the batch.
func (s *Synchronizer) SyncAll(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	runID, _ := uuid.NewV4()

	metrics.SyncRuns.Inc()

	integrations, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("listing integrations failed: %s", err)
	}

	s.log.Infof(
		"sync run %s starting for %d integrations",
		runID,
		len(integrations),
	)

	for _, integration := range integrations {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		result, err := s.SyncOne(ctx, &integration)
		if err != nil {
			metrics.SyncIntegrationFailures.Inc()
			s.log.Errorf(
				"sync failed for installation %s (org %s): %s",
				integration.InstallationID,
				integration.OrganizationID,
				err,
			)
			continue
		}

		s.log.Infof(
			"sync run %s finished installation %s: %d repositories, %d items mapped, %d entities persisted, %d collection errors",
			runID,
			integration.InstallationID,
			result.TotalRepositories,
			result.TotalItemsMapped,
			result.TotalEntitiesPersisted,
			result.TotalCollectionErrors,
		)
	}

	s.log.Infof("sync run %s complete", runID)

	return nil
}

// SyncOne sweeps one integration: every repository its installation grants
// access to, and per repository every resource collection. Repositories fan
// out across a worker pool bounded by the configured concurrency; the
// collections of a single repository stay sequential and individually
// fault-isolated.
func (s *Synchronizer) SyncOne(
	ctx context.Context,
	integration *store.Integration,
) (*Result, error) {
	if s.app == nil {
		return nil, fmt.Errorf("github integration not configured")
	}

	// Reject a broken rule set before touching the provider at all.
	if _, err := mapping.Parse(integration.Mapping); err != nil {
		return nil, err
	}

	client := s.app.InstallationClient(ctx, integration.InstallationID)

	repositories, err := client.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repositories failed: %s", err)
	}

	s.log.Debugf(
		"installation %s: sweeping %d repositories",
		integration.InstallationID,
		len(repositories),
	)

	var counts tally

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)

	for _, repository := range repositories {
		repository := repository

		group.Go(func() error {
			if groupCtx.Err() != nil {
				return groupCtx.Err()
			}

			s.syncRepository(groupCtx, client, integration, repository, &counts)
			counts.repositories.Add(1)

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	result := counts.result()

	metrics.EntitiesPersisted.WithLabelValues("sync").
		Add(float64(result.TotalEntitiesPersisted))

	return result, nil
}

type tally struct {
	repositories     atomic.Int64
	itemsMapped      atomic.Int64
	persisted        atomic.Int64
	collectionErrors atomic.Int64
}

func (t *tally) result() *Result {
	return &Result{
		TotalRepositories:      t.repositories.Load(),
		TotalItemsMapped:       t.itemsMapped.Load(),
		TotalEntitiesPersisted: t.persisted.Load(),
		TotalCollectionErrors:  t.collectionErrors.Load(),
	}
}

func (s *Synchronizer) syncRepository(
	ctx context.Context,
	client *github.InstallationClient,
	integration *store.Integration,
	repository map[string]interface{},
	counts *tally,
) {
	owner, name, ok := repositoryOwnerAndName(repository)
	if !ok {
		s.log.Warn("skipping repository with no usable full_name")
		return
	}

	s.log.Debugf("sweeping repository %s/%s", owner, name)

	// The repository record itself is a mappable item too.
	s.processItems(
		ctx,
		integration,
		"repository",
		[]map[string]interface{}{repository},
		counts,
	)

	for _, collection := range collections {
		if ctx.Err() != nil {
			return
		}

		items, err := collection.fetch(ctx, client, owner, name)
		if err != nil {
			counts.collectionErrors.Add(1)
			s.log.Warnf(
				"fetching %s for %s/%s failed: %s",
				collection.kind,
				owner,
				name,
				err,
			)
			continue
		}

		s.processItems(ctx, integration, collection.kind, items, counts)
	}
}

// processItems feeds each fetched item through the mapping engine with the
// collection's resource kind and persists the valid results.
func (s *Synchronizer) processItems(
	ctx context.Context,
	integration *store.Integration,
	kind string,
	items []map[string]interface{},
	counts *tally,
) {
	for _, item := range items {
		entities, err := s.mapper.Transform(
			ctx,
			item,
			kind,
			integration.Mapping,
			integration.InstallationID,
		)
		if err != nil {
			s.log.Warnf("mapping %s item failed: %s", kind, err)
			continue
		}

		counts.itemsMapped.Add(1)

		persisted := catalog.Persist(
			ctx,
			s.log,
			s.sink,
			integration.OrganizationID,
			integration.TenantID,
			entities,
		)

		counts.persisted.Add(int64(persisted))
	}
}
