package catalog

import (
	"context"
	"fmt"
	"io"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	inputs  []*EntityInput
	failFor map[string]bool
}

func (s *recordingSink) Create(ctx context.Context, input *EntityInput) error {
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

func TestPersistSkipsInvalidEntities(t *testing.T) {
	sink := &recordingSink{}

	n := Persist(context.Background(), testLogger(), sink, "org-1", "", []Entity{
		{Identifier: "svc-a", Title: "svc-a", Blueprint: "service"},
		{Identifier: "", Title: "no-id", Blueprint: "service"},
		{Identifier: "no-title", Title: "", Blueprint: "service"},
		{Identifier: "no-blueprint", Title: "no-blueprint", Blueprint: ""},
	})

	assert.Equal(t, 1, n)
	require.Len(t, sink.inputs, 1)
	assert.Equal(t, "svc-a", sink.inputs[0].Identifier)
	assert.Equal(t, "org-1", sink.inputs[0].OrganizationID)
	assert.Equal(t, createdBy, sink.inputs[0].CreatedBy)
}

func TestPersistContinuesAfterSinkFailure(t *testing.T) {
	sink := &recordingSink{failFor: map[string]bool{"svc-b": true}}

	n := Persist(context.Background(), testLogger(), sink, "org-1", "team-1", []Entity{
		{Identifier: "svc-a", Title: "svc-a", Blueprint: "service"},
		{Identifier: "svc-b", Title: "svc-b", Blueprint: "service"},
		{Identifier: "svc-c", Title: "svc-c", Blueprint: "service"},
	})

	assert.Equal(t, 2, n)
	require.Len(t, sink.inputs, 2)
	assert.Equal(t, "svc-a", sink.inputs[0].Identifier)
	assert.Equal(t, "svc-c", sink.inputs[1].Identifier)
	assert.Equal(t, "team-1", sink.inputs[0].TenantID)
}

func TestEntityValid(t *testing.T) {
	e := Entity{Identifier: "a", Title: "b", Blueprint: "c"}
	assert.True(t, e.Valid())

	e.Title = ""
	assert.False(t, e.Valid())
}
