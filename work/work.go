// Package work tracks the asynchronous tasks handed to connectors. One Work
// record represents a task from the caller's point of view; one Job record
// is the unit enqueued on a connector's queue. Both are created together,
// synchronously, and completed later by the external connector.
package work

import (
	"context"
	"fmt"
	"time"

	"github.com/stixgraph/stixgraph/connector"
	"github.com/stixgraph/stixgraph/store"
)

// Work status values. Created works start in StatusProgress; the connector
// moves them to StatusComplete (or StatusError) when done.
const (
	StatusProgress = "progress"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Entity type tags used for persistence.
const (
	EntityTypeWork = "Work"
	EntityTypeJob  = "Job"
)

// Work is one export or enrichment task tied to a connector.
type Work struct {
	// InternalID is the stable work identifier.
	InternalID string `json:"internal_id"`

	// ConnectorID is the connector the task was handed to.
	ConnectorID string `json:"connector_id"`

	// EntityType is the domain tag of the data the task operates on.
	EntityType string `json:"entity_type"`

	// EntityID is the subject entity, or empty for bulk tasks.
	EntityID string `json:"entity_id,omitempty"`

	// WorkContext is the destination context of the produced file.
	WorkContext string `json:"work_context,omitempty"`

	// WorkFile is the base path of the produced file.
	WorkFile string `json:"work_file,omitempty"`

	// Status tracks the lifecycle of the task.
	Status string `json:"status"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at"`
}

// Job is the unit enqueued on a connector's queue for one Work.
type Job struct {
	// InternalID is the stable job identifier.
	InternalID string `json:"internal_id"`

	// WorkID is the Work this job belongs to.
	WorkID string `json:"work_id"`

	// Status tracks the lifecycle of the job.
	Status string `json:"status"`
}

// ExportFile is the user-facing handle of one pending export, derived from
// the Work record only. Callers poll it until the connector completes.
type ExportFile struct {
	// ID is the work identifier backing this handle.
	ID string `json:"id"`

	// Name is the base path of the file being produced.
	Name string `json:"name"`

	// Context is the destination context of the file.
	Context string `json:"context,omitempty"`

	// Status mirrors the work status.
	Status string `json:"status"`
}

// WorkToExportFile maps a Work record into its user-facing export handle.
func WorkToExportFile(w *Work) ExportFile {
	return ExportFile{
		ID:      w.InternalID,
		Name:    w.WorkFile,
		Context: w.WorkContext,
		Status:  w.Status,
	}
}

// Creator persists Work/Job pairs through the entity store.
type Creator struct {
	store store.EntityStore
}

// NewCreator builds a Creator over the given store.
func NewCreator(s store.EntityStore) *Creator {
	return &Creator{store: s}
}

// CreateWork persists one Work and its Job for the given connector and
// returns both records. The pair starts in StatusProgress; the connector
// completes it asynchronously.
func (c *Creator) CreateWork(ctx context.Context, conn *connector.Connector, entityType, entityID, workContext, fileName string) (*Work, *Job, error) {
	if conn == nil {
		return nil, nil, fmt.Errorf("connector is required")
	}

	workEntity, err := c.store.CreateEntity(ctx, "", map[string]any{
		"connector_id": conn.ID,
		"entity_type":  entityType,
		"entity_id":    entityID,
		"work_context": workContext,
		"work_file":    fileName,
		"status":       StatusProgress,
	}, EntityTypeWork)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create work: %w", err)
	}

	jobEntity, err := c.store.CreateEntity(ctx, "", map[string]any{
		"work_id": workEntity.ID,
		"status":  StatusProgress,
	}, EntityTypeJob)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create job: %w", err)
	}

	w := &Work{
		InternalID:  workEntity.ID,
		ConnectorID: conn.ID,
		EntityType:  entityType,
		EntityID:    entityID,
		WorkContext: workContext,
		WorkFile:    fileName,
		Status:      StatusProgress,
		CreatedAt:   workEntity.CreatedAt,
	}
	j := &Job{
		InternalID: jobEntity.ID,
		WorkID:     workEntity.ID,
		Status:     StatusProgress,
	}
	return w, j, nil
}
