package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/opencatalog/github-entity-sync/internal/github"
	"github.com/opencatalog/github-entity-sync/internal/mapping"
	"github.com/opencatalog/github-entity-sync/internal/sync"
	"github.com/opencatalog/github-entity-sync/internal/webhook"
	"github.com/opencatalog/github-entity-sync/pkg/interop"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	i, err := interop.NewInteroperability()
	if err != nil {
		fmt.Printf("failed to create interop: %s\n", err)
		os.Exit(1)
	}

	var resolver mapping.FileResolver
	if i.App != nil {
		resolver = github.NewContentResolver(i.App, i.Logger)
	}

	mapper := mapping.New(i.Logger, resolver)

	synchronizer := sync.New(
		i.Logger,
		i.App,
		i.Store,
		mapper,
		i.Sink,
		i.SyncConcurrency,
		i.SyncTimeout,
	)

	mux := http.NewServeMux()

	mux.Handle(
		"/webhook",
		webhook.NewHandler(i.Logger, i.App, i.Store, mapper, i.Sink),
	)

	mux.HandleFunc("/sync", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		if synchronizer.Trigger() {
			w.WriteHeader(http.StatusAccepted)
			fmt.Fprintln(w, "sync started")
			return
		}

		w.WriteHeader(http.StatusConflict)
		fmt.Fprintln(w, "sync already running")
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	i.Logger.Infof("listening on %s", i.ListenAddr)

	err = http.ListenAndServe(i.ListenAddr, mux)
	if err != nil {
		fmt.Printf("server failed: %s\n", err)
		os.Exit(2)
	}
}
