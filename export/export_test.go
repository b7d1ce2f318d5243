package export

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stixgraph/stixgraph"
	"github.com/stixgraph/stixgraph/connector"
	"github.com/stixgraph/stixgraph/observable"
	"github.com/stixgraph/stixgraph/queue"
	"github.com/stixgraph/stixgraph/store"
	"github.com/stixgraph/stixgraph/work"
)

type fakeResolver struct {
	connectors []*connector.Connector
	err        error
}

func (f *fakeResolver) Connector(ctx context.Context, id string) (*connector.Connector, error) {
	for _, c := range f.connectors {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeResolver) ConnectorsForExport(ctx context.Context, format string, onlyActive bool) ([]*connector.Connector, error) {
	if f.err != nil {
		return nil, f.err
	}
	return connector.FilterForExport(f.connectors, format, onlyActive), nil
}

type fakePublisher struct {
	mu       sync.Mutex
	messages map[string][]queue.DispatchMessage
	failFor  string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{messages: make(map[string][]queue.DispatchMessage)}
}

func (f *fakePublisher) PushToConnector(ctx context.Context, conn *connector.Connector, message any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conn.ID == f.failFor {
		return errors.New("queue unreachable")
	}
	msg, ok := message.(queue.DispatchMessage)
	if !ok {
		return errors.New("unexpected message type")
	}
	f.messages[conn.ID] = append(f.messages[conn.ID], msg)
	return nil
}

func exportConnector(id, name string) *connector.Connector {
	return &connector.Connector{
		ID:     id,
		Name:   name,
		Type:   connector.TypeInternalExportFile,
		Scope:  []string{"application/json"},
		Active: true,
	}
}

type exportFixture struct {
	orchestrator *Orchestrator
	store        *store.MemoryStore
	resolver     *fakeResolver
	publisher    *fakePublisher
}

func newExportFixture(t *testing.T, connectors ...*connector.Connector) *exportFixture {
	t.Helper()

	memory := store.NewMemoryStore().WithTypeResolver(observable.ClassifiesUnder)
	resolver := &fakeResolver{connectors: connectors}
	publisher := newFakePublisher()

	orchestrator, err := NewOrchestrator(OrchestratorConfig{
		Store:      memory,
		Connectors: resolver,
		Works:      work.NewCreator(memory),
		Publisher:  publisher,
	})
	require.NoError(t, err)

	return &exportFixture{
		orchestrator: orchestrator,
		store:        memory,
		resolver:     resolver,
		publisher:    publisher,
	}
}

func TestRequestExportFansOutToEveryConnector(t *testing.T) {
	fx := newExportFixture(t,
		exportConnector("c1", "export-json"),
		exportConnector("c2", "export-stix"),
	)
	ctx := context.Background()

	handles, err := fx.orchestrator.RequestExport(ctx, Request{
		Format:     "application/json",
		ExportType: "withArgs",
		ListArgs: &store.ListArgs{
			Types:   []string{"Mutex"},
			Filters: []store.Filter{{Key: "entity_type", Values: []string{"Mutex"}}},
			OrderBy: "created_at",
			First:   50,
		},
	})
	require.NoError(t, err)
	require.Len(t, handles, 2)

	seen := map[string]bool{}
	for _, h := range handles {
		seen[h.Connector.ID] = true
		require.NotNil(t, h.Work)
		require.NotNil(t, h.Job)
		assert.Equal(t, h.Connector.ID, h.Work.ConnectorID)
		assert.Equal(t, h.Work.InternalID, h.Job.WorkID)
		assert.Equal(t, EntityScope, h.Work.EntityType)
	}
	assert.True(t, seen["c1"])
	assert.True(t, seen["c2"])

	// One message per connector with the rewritten vocabulary.
	for _, id := range []string{"c1", "c2"} {
		msgs := fx.publisher.messages[id]
		require.Len(t, msgs, 1)
		msg := msgs[0]
		assert.Equal(t, EntityScope, msg.EntityType)
		assert.Equal(t, "withArgs", msg.ExportType)
		assert.Empty(t, msg.EntityID)
		require.NotNil(t, msg.ListArgs)
		require.Len(t, msg.ListArgs.Filters, 1)
		assert.Equal(t, "entityType", msg.ListArgs.Filters[0].Key)
		assert.Equal(t, []string{"Mutex"}, msg.ListArgs.Filters[0].Values)
		assert.Equal(t, "created", msg.ListArgs.OrderBy)
		assert.Equal(t, []string{"Mutex"}, msg.ListArgs.Types)
		assert.Equal(t, 50, msg.ListArgs.First)
		assert.NotEmpty(t, msg.FileName)
	}
}

func TestRequestExportSingleConnector(t *testing.T) {
	fx := newExportFixture(t, exportConnector("c1", "export-json"))

	handles, err := fx.orchestrator.RequestExport(context.Background(), Request{
		Format: "application/json",
	})
	require.NoError(t, err)
	require.Len(t, handles, 1)
	require.Len(t, fx.publisher.messages["c1"], 1)
}

func TestRequestExportSingleEntity(t *testing.T) {
	fx := newExportFixture(t, exportConnector("c1", "export-json"))
	ctx := context.Background()

	entity, err := fx.store.CreateEntity(ctx, "tester", map[string]any{"value": "10.0.0.1"}, observable.TypeIPv4Addr)
	require.NoError(t, err)

	handles, err := fx.orchestrator.RequestExport(ctx, Request{
		Format:     "application/json",
		EntityID:   entity.ID,
		ExportType: "simple",
	})
	require.NoError(t, err)
	require.Len(t, handles, 1)

	msg := fx.publisher.messages["c1"][0]
	assert.Equal(t, entity.ID, msg.EntityID)
	assert.Nil(t, msg.ListArgs)
	assert.Contains(t, msg.FileName, "10.0.0.1")
	assert.Contains(t, msg.FileName, observable.TypeIPv4Addr)
	assert.True(t, strings.HasSuffix(msg.FileName, ".json"))
}

func TestRequestExportMissingEntity(t *testing.T) {
	fx := newExportFixture(t, exportConnector("c1", "export-json"))

	_, err := fx.orchestrator.RequestExport(context.Background(), Request{
		Format:   "application/json",
		EntityID: "missing",
	})
	assert.ErrorIs(t, err, stixgraph.ErrNotFound)
}

func TestRequestExportPartialDispatchFailure(t *testing.T) {
	fx := newExportFixture(t,
		exportConnector("c1", "export-json"),
		exportConnector("c2", "export-stix"),
	)
	fx.publisher.failFor = "c2"

	handles, err := fx.orchestrator.RequestExport(context.Background(), Request{
		Format: "application/json",
	})
	require.NoError(t, err)

	// Only the surviving connector's handle comes back.
	require.Len(t, handles, 1)
	assert.Equal(t, "c1", handles[0].Connector.ID)
	assert.Len(t, fx.publisher.messages["c1"], 1)
	assert.Empty(t, fx.publisher.messages["c2"])
}

func TestRequestExportNoConnectors(t *testing.T) {
	fx := newExportFixture(t)

	handles, err := fx.orchestrator.RequestExport(context.Background(), Request{
		Format: "application/json",
	})
	require.NoError(t, err)
	assert.Empty(t, handles)
}

func TestExportAskMapsHandles(t *testing.T) {
	fx := newExportFixture(t, exportConnector("c1", "export-json"))

	files, err := fx.orchestrator.ExportAsk(context.Background(), Request{
		Format:  "application/json",
		Context: "/exports/lists",
	})
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.NotEmpty(t, files[0].ID)
	assert.NotEmpty(t, files[0].Name)
	assert.Equal(t, "/exports/lists", files[0].Context)
	assert.Equal(t, work.StatusProgress, files[0].Status)
}

func TestRequestExportWithMarking(t *testing.T) {
	fx := newExportFixture(t, exportConnector("c1", "export-json"))
	ctx := context.Background()

	marking, err := fx.store.CreateEntity(ctx, "tester", map[string]any{"definition": "TLP:RED"}, "Marking-Definition")
	require.NoError(t, err)

	handles, err := fx.orchestrator.RequestExport(ctx, Request{
		Format:       "application/json",
		MaxMarkingID: marking.ID,
	})
	require.NoError(t, err)
	require.Len(t, handles, 1)

	msg := fx.publisher.messages["c1"][0]
	assert.Equal(t, marking.ID, msg.MaxMarkingDefinition)
	assert.Contains(t, msg.FileName, "TLP:RED")
}
