package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/opencatalog/github-entity-sync/internal/github"
	"github.com/opencatalog/github-entity-sync/internal/mapping"
	"github.com/opencatalog/github-entity-sync/internal/sync"
	"github.com/opencatalog/github-entity-sync/pkg/interop"
)

type SyncResult struct {
	Success bool
	Message error
}

// HandleRequest runs one full reconciliation sweep per invocation.
func HandleRequest(ctx context.Context) (SyncResult, error) {
	i, err := interop.NewInteroperability()
	if err != nil {
		retErr := fmt.Errorf("failed to create interop: %s", err)
		return SyncResult{false, retErr}, retErr
	}

	var resolver mapping.FileResolver
	if i.App != nil {
		resolver = github.NewContentResolver(i.App, i.Logger)
	}

	synchronizer := sync.New(
		i.Logger,
		i.App,
		i.Store,
		mapping.New(i.Logger, resolver),
		i.Sink,
		i.SyncConcurrency,
		i.SyncTimeout,
	)

	err = synchronizer.SyncAll(ctx)
	if err != nil {
		retErr := fmt.Errorf("sync failed: %s", err)
		return SyncResult{false, retErr}, retErr
	}

	return SyncResult{true, nil}, nil
}

func main() {
	lambda.Start(HandleRequest)
}
