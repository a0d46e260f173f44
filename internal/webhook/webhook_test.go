package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opencatalog/github-entity-sync/internal/catalog"
	"github.com/opencatalog/github-entity-sync/internal/github"
	"github.com/opencatalog/github-entity-sync/internal/mapping"
	"github.com/opencatalog/github-entity-sync/internal/store"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const webhookSecret = "s3cret"

const testMapping = `
resources:
  - kind: repository
    selector:
      query: "true"
    port:
      entity:
        mappings:
          identifier: .name
          title: .name
          blueprint: '"service"'
          properties:
            language: .language
  - kind: pull-request
    port:
      entity:
        mappings:
          identifier: .repository.name + "-" + (.pull_request.number|tostring)
          title: .pull_request.title
          blueprint: '"pull-request"'
`

type recordingSink struct {
	inputs  []*catalog.EntityInput
	failFor map[string]bool
}

func (s *recordingSink) Create(ctx context.Context, input *catalog.EntityInput) error {
	if s.failFor[input.Identifier] {
		return fmt.Errorf("sink unavailable")
	}
	s.inputs = append(s.inputs, input)
	return nil
}

func testLogger() *log.Logger {
	logger := log.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testApp(t *testing.T) *github.App {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keyPEM := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	app, err := github.NewApp(github.Config{
		AppID:         "1",
		PrivateKey:    keyPEM,
		WebhookSecret: webhookSecret,
	}, testLogger())
	require.NoError(t, err)

	return app
}

func testStore(t *testing.T) *store.MemoryStore {
	t.Helper()

	s := store.NewMemoryStore()
	require.NoError(t, s.Put(&store.Integration{
		Provider:       "github",
		InstallationID: "12345",
		OrganizationID: "org-1",
		TenantID:       "team-a",
		Mapping:        testMapping,
	}))

	return s
}

func testHandler(t *testing.T, sink catalog.Sink) *Handler {
	t.Helper()

	logger := testLogger()

	return NewHandler(
		logger,
		testApp(t),
		testStore(t),
		mapping.New(logger, nil),
		sink,
	)
}

func deliver(
	t *testing.T,
	handler *Handler,
	event string,
	body string,
	sign bool,
) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(
		http.MethodPost,
		"/webhook",
		strings.NewReader(body),
	)
	req.Header.Set("X-GitHub-Event", event)
	req.Header.Set("X-GitHub-Delivery", "delivery-1")

	if sign {
		mac := hmac.New(sha256.New, []byte(webhookSecret))
		mac.Write([]byte(body))
		req.Header.Set(
			"X-Hub-Signature-256",
			"sha256="+hex.EncodeToString(mac.Sum(nil)),
		)
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	return recorder
}

func decodeResponse(t *testing.T, recorder *httptest.ResponseRecorder) response {
	t.Helper()

	var resp response
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return resp
}

func TestWebhookUnconfiguredApp(t *testing.T) {
	handler := NewHandler(testLogger(), nil, testStore(t), nil, nil)

	recorder := deliver(t, handler, "push", "{}", false)
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	sink := &recordingSink{}
	handler := testHandler(t, sink)

	recorder := deliver(t, handler, "push", `{"zen":"ok"}`, false)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Empty(t, sink.inputs)
}

func TestWebhookPing(t *testing.T) {
	handler := testHandler(t, &recordingSink{})

	recorder := deliver(t, handler, "ping", `{"zen":"ok"}`, true)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "pong", decodeResponse(t, recorder).Message)
}

func TestWebhookUnsupportedEventAcknowledged(t *testing.T) {
	sink := &recordingSink{}
	handler := testHandler(t, sink)

	recorder := deliver(t, handler, "star", `{"action":"created"}`, true)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, sink.inputs)
}

func TestWebhookUnknownInstallationAcknowledged(t *testing.T) {
	sink := &recordingSink{}
	handler := testHandler(t, sink)

	body := `{"installation":{"id":999},"repository":{"name":"svc-demo"}}`

	recorder := deliver(t, handler, "push", body, true)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Empty(t, sink.inputs)
}

func TestWebhookPushPersistsRepositoryEntity(t *testing.T) {
	sink := &recordingSink{}
	handler := testHandler(t, sink)

	body := `{
		"installation": {"id": 12345},
		"repository": {"name": "svc-demo", "language": "TS"}
	}`

	recorder := deliver(t, handler, "push", body, true)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 1, decodeResponse(t, recorder).Persisted)

	require.Len(t, sink.inputs, 1)
	input := sink.inputs[0]
	assert.Equal(t, "svc-demo", input.Identifier)
	assert.Equal(t, "service", input.Blueprint)
	assert.Equal(t, "TS", input.Properties["language"])
	assert.Equal(t, "org-1", input.OrganizationID)
	assert.Equal(t, "team-a", input.TenantID)
}

// Pull request rules read fields outside the repository object, so those
// events keep the whole envelope.
func TestWebhookPullRequestKeepsEnvelope(t *testing.T) {
	sink := &recordingSink{}
	handler := testHandler(t, sink)

	body := `{
		"installation": {"id": 12345},
		"repository": {"name": "svc-demo"},
		"pull_request": {"number": 7, "title": "Add webhook retries"}
	}`

	recorder := deliver(t, handler, "pull_request", body, true)
	assert.Equal(t, http.StatusOK, recorder.Code)

	require.Len(t, sink.inputs, 1)
	assert.Equal(t, "svc-demo-7", sink.inputs[0].Identifier)
	assert.Equal(t, "Add webhook retries", sink.inputs[0].Title)
}

func TestWebhookSkipsInvalidEntity(t *testing.T) {
	sink := &recordingSink{}
	handler := testHandler(t, sink)

	// No name field: identifier and title map to null.
	body := `{
		"installation": {"id": 12345},
		"repository": {"language": "TS"}
	}`

	recorder := deliver(t, handler, "push", body, true)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 0, decodeResponse(t, recorder).Persisted)
	assert.Empty(t, sink.inputs)
}

func TestWebhookSinkFailureReportedInCount(t *testing.T) {
	sink := &recordingSink{failFor: map[string]bool{"svc-demo": true}}
	handler := testHandler(t, sink)

	body := `{
		"installation": {"id": 12345},
		"repository": {"name": "svc-demo", "language": "TS"}
	}`

	recorder := deliver(t, handler, "push", body, true)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, 0, decodeResponse(t, recorder).Persisted)
}

func TestSelectPayload(t *testing.T) {
	envelope := map[string]interface{}{
		"repository":   map[string]interface{}{"name": "svc-demo"},
		"pull_request": map[string]interface{}{"number": 1.0},
	}

	selected := selectPayload(envelope, "repository")
	assert.Equal(t, envelope["repository"], selected)

	selected = selectPayload(envelope, pullRequestKind)
	assert.Equal(t, envelope, selected)

	bare := map[string]interface{}{"action": "created"}
	assert.Equal(t, bare, selectPayload(bare, "team"))
}
