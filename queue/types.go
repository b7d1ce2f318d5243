package queue

import (
	"fmt"
	"time"

	"github.com/stixgraph/stixgraph/store"
)

// ListArgs is the connector-facing snapshot of a list query attached to a
// bulk export. Filter keys and the ordering key have already been rewritten
// into the connector vocabulary by the export orchestrator; type tags,
// pagination and date bounds carry over untranslated.
type ListArgs struct {
	// Types restricts the export to the given entity types.
	Types []string `json:"types,omitempty"`

	// Filters are attribute filters, keys in connector vocabulary.
	Filters []store.Filter `json:"filters,omitempty"`

	// OrderBy names the ordering attribute, in connector vocabulary.
	OrderBy string `json:"orderBy,omitempty"`

	// OrderMode is "asc" or "desc".
	OrderMode string `json:"orderMode,omitempty"`

	// Search is the free-text search term.
	Search string `json:"search,omitempty"`

	// First limits the number of exported entities. Zero means no limit.
	First int `json:"first,omitempty"`

	// After is an opaque pagination cursor.
	After string `json:"after,omitempty"`

	// StartDate and EndDate bound time-filtered exports.
	StartDate time.Time `json:"startDate,omitempty"`
	EndDate   time.Time `json:"endDate,omitempty"`
}

// DispatchMessage is one export task handed to a connector.
type DispatchMessage struct {
	// WorkID identifies the Work record tracking this task.
	WorkID string `json:"work_id"`

	// JobID identifies the Job record enqueued for the connector.
	JobID string `json:"job_id"`

	// MaxMarkingDefinition is the id of the marking definition bounding the
	// export, or empty when the export is unrestricted.
	MaxMarkingDefinition string `json:"max_marking_definition,omitempty"`

	// ExportType is "simple" or "full" for entity exports, "withArgs" or
	// "withoutArgs" for list exports.
	ExportType string `json:"export_type,omitempty"`

	// EntityType is the fixed domain tag of the exported data.
	EntityType string `json:"entity_type"`

	// EntityID is the exported entity id, or empty for bulk list exports.
	EntityID string `json:"entity_id,omitempty"`

	// ListArgs carries the (rewritten) list query for bulk exports.
	ListArgs *ListArgs `json:"list_args,omitempty"`

	// FileContext is the destination context of the produced file.
	FileContext string `json:"file_context,omitempty"`

	// FileName is the base path of the produced file.
	FileName string `json:"file_name"`
}

// Validate checks the message carries the identifiers a connector needs.
func (m *DispatchMessage) Validate() error {
	if m.WorkID == "" {
		return fmt.Errorf("work_id is required")
	}
	if m.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if m.EntityType == "" {
		return fmt.Errorf("entity_type is required")
	}
	return nil
}

// EnrichmentMessage is one enrichment task handed to a connector.
type EnrichmentMessage struct {
	// WorkID identifies the Work record tracking this task.
	WorkID string `json:"work_id"`

	// JobID identifies the Job record enqueued for the connector.
	JobID string `json:"job_id"`

	// EntityID is the entity to enrich.
	EntityID string `json:"entity_id"`
}

// Validate checks the message carries the identifiers a connector needs.
func (m *EnrichmentMessage) Validate() error {
	if m.WorkID == "" {
		return fmt.Errorf("work_id is required")
	}
	if m.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if m.EntityID == "" {
		return fmt.Errorf("entity_id is required")
	}
	return nil
}
