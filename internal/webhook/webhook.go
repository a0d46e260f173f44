// Package webhook receives provider event deliveries and drives the mapping
// engine synchronously, one delivery per request.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/opencatalog/github-entity-sync/internal/catalog"
	"github.com/opencatalog/github-entity-sync/internal/github"
	"github.com/opencatalog/github-entity-sync/internal/mapping"
	"github.com/opencatalog/github-entity-sync/internal/metrics"
	"github.com/opencatalog/github-entity-sync/internal/store"
	"github.com/spf13/cast"
	log "github.com/sirupsen/logrus"
)

// kindsByEvent routes provider event types to resource kinds. An event type
// missing here is acknowledged and dropped.
var kindsByEvent = map[string]string{
	"push":                        "repository",
	"repository":                  "repository",
	"pull_request":                "pull-request",
	"pull_request_review":         "pull-request",
	"pull_request_review_comment": "pull-request",
	"issues":                      "issue",
	"issue_comment":               "issue",
	"workflow_run":                "workflow-run",
	"deployment":                  "deployment",
	"deployment_status":           "deployment",
	"dependabot_alert":            "dependabot-alert",
	"code_scanning_alert":         "code-scanning",
	"secret_scanning_alert":       "code-scanning",
	"team":                        "team",
	"team_add":                    "team",
	"member":                      "user",
	"release":                     "releases",
	"create":                      "tags",
	"branch_protection_rule":      "branches",
}

// pullRequestKind marks events whose relation and identifier expressions
// need the full event envelope rather than the embedded repository object.
const pullRequestKind = "pull-request"

// Handler is the webhook ingestor. It is safe for concurrent requests;
// every delivery is processed to completion within its own request.
type Handler struct {
	log    *log.Logger
	app    *github.App
	store  store.Store
	mapper *mapping.Mapper
	sink   catalog.Sink
}

func NewHandler(
	logger *log.Logger,
	app *github.App,
	integrationStore store.Store,
	mapper *mapping.Mapper,
	sink catalog.Sink,
) *Handler {
	return &Handler{
		log:    logger,
		app:    app,
		store:  integrationStore,
		mapper: mapper,
		sink:   sink,
	}
}

type response struct {
	OK        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
	Persisted int    `json:"persisted"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.app == nil {
		h.respond(w, http.StatusServiceUnavailable, response{
			Message: "github integration not configured",
		})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.log.Warnf("reading webhook body failed: %s", err)
		h.respond(w, http.StatusBadRequest, response{Message: "unreadable body"})
		return
	}

	signature := r.Header.Get("X-Hub-Signature-256")
	if err := h.app.VerifySignature(body, signature); err != nil {
		h.log.Warnf(
			"rejecting delivery %s: %s",
			r.Header.Get("X-GitHub-Delivery"),
			err,
		)
		h.respond(w, http.StatusUnauthorized, response{Message: "invalid signature"})
		return
	}

	event := r.Header.Get("X-GitHub-Event")

	metrics.WebhookEventsReceived.WithLabelValues(event).Inc()

	if event == "ping" {
		h.respond(w, http.StatusOK, response{OK: true, Message: "pong"})
		return
	}

	kind, ok := kindsByEvent[event]
	if !ok {
		h.log.Debugf("ignoring unsupported event type %s", event)
		metrics.WebhookEventsDropped.WithLabelValues("unsupported_event").Inc()
		h.respond(w, http.StatusOK, response{OK: true, Message: "event ignored"})
		return
	}

	var envelope map[string]interface{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		h.log.Warnf("unparseable webhook body: %s", err)
		h.respond(w, http.StatusBadRequest, response{Message: "invalid JSON"})
		return
	}

	installationID := installationFrom(envelope)

	integration, err := h.store.GetByInstallation(r.Context(), installationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.log.Debugf(
				"no integration configured for installation %s, dropping %s event",
				installationID,
				event,
			)
			metrics.WebhookEventsDropped.WithLabelValues("unknown_installation").Inc()
			h.respond(w, http.StatusOK, response{OK: true, Message: "not configured"})
			return
		}

		h.log.Errorf("integration lookup failed: %s", err)
		h.respond(w, http.StatusInternalServerError, response{Message: "lookup failed"})
		return
	}

	payload := selectPayload(envelope, kind)

	entities, err := h.mapper.Transform(
		r.Context(),
		payload,
		kind,
		integration.Mapping,
		integration.InstallationID,
	)
	if err != nil {
		h.log.Errorf(
			"transform failed for installation %s: %s",
			installationID,
			err,
		)
		h.respond(w, http.StatusInternalServerError, response{Message: "transform failed"})
		return
	}

	persisted := catalog.Persist(
		r.Context(),
		h.log,
		h.sink,
		integration.OrganizationID,
		integration.TenantID,
		entities,
	)

	metrics.EntitiesPersisted.WithLabelValues("webhook").Add(float64(persisted))

	h.log.Infof(
		"processed %s event for installation %s: %d entities persisted",
		event,
		installationID,
		persisted,
	)

	h.respond(w, http.StatusOK, response{OK: true, Persisted: persisted})
}

// selectPayload picks what the mapping engine sees: the embedded repository
// object when the event carries one, except pull-request-flavored events,
// whose expressions read fields outside the repository object.
func selectPayload(
	envelope map[string]interface{},
	kind string,
) interface{} {
	if kind == pullRequestKind {
		return envelope
	}

	if repository, ok := envelope["repository"].(map[string]interface{}); ok {
		return repository
	}

	return envelope
}

func installationFrom(envelope map[string]interface{}) string {
	installation, ok := envelope["installation"].(map[string]interface{})
	if !ok {
		return ""
	}

	return cast.ToString(installation["id"])
}

func (h *Handler) respond(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Warnf("failed to write webhook response: %s", err)
	}
}
