package work

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stixgraph/stixgraph/connector"
	"github.com/stixgraph/stixgraph/store"
)

func TestCreateWork(t *testing.T) {
	s := store.NewMemoryStore()
	creator := NewCreator(s)
	ctx := context.Background()

	conn := &connector.Connector{ID: "export-csv", Type: connector.TypeInternalExportFile}
	w, j, err := creator.CreateWork(ctx, conn, "stix-observable", "obs-1", "/exports", "file.csv")
	require.NoError(t, err)

	assert.NotEmpty(t, w.InternalID)
	assert.Equal(t, "export-csv", w.ConnectorID)
	assert.Equal(t, "stix-observable", w.EntityType)
	assert.Equal(t, "obs-1", w.EntityID)
	assert.Equal(t, "/exports", w.WorkContext)
	assert.Equal(t, "file.csv", w.WorkFile)
	assert.Equal(t, StatusProgress, w.Status)

	assert.NotEmpty(t, j.InternalID)
	assert.Equal(t, w.InternalID, j.WorkID)
	assert.Equal(t, StatusProgress, j.Status)

	// Both records are persisted through the store.
	workEntity, err := s.LoadEntityByID(ctx, w.InternalID, EntityTypeWork)
	require.NoError(t, err)
	status, _ := workEntity.Attr("status")
	assert.Equal(t, StatusProgress, status)

	jobEntity, err := s.LoadEntityByID(ctx, j.InternalID, EntityTypeJob)
	require.NoError(t, err)
	workID, _ := jobEntity.Attr("work_id")
	assert.Equal(t, w.InternalID, workID)
}

func TestCreateWorkRequiresConnector(t *testing.T) {
	creator := NewCreator(store.NewMemoryStore())

	_, _, err := creator.CreateWork(context.Background(), nil, "stix-observable", "", "", "")
	assert.Error(t, err)
}

func TestWorkToExportFile(t *testing.T) {
	w := &Work{
		InternalID:  "work-1",
		WorkFile:    "20250101T000000Z_all_csv.csv",
		WorkContext: "/exports",
		Status:      StatusProgress,
	}

	f := WorkToExportFile(w)
	assert.Equal(t, "work-1", f.ID)
	assert.Equal(t, w.WorkFile, f.Name)
	assert.Equal(t, "/exports", f.Context)
	assert.Equal(t, StatusProgress, f.Status)
}
