// Package connector provides registration and discovery of external worker
// connectors. Connectors self-register in etcd under a lease; entries vanish
// on their own when a connector crashes or loses connectivity, so discovery
// always reflects the live connector population.
package connector

import (
	"context"
	"time"
)

// Connector type tags describing what a connector does.
const (
	// TypeExternalImport connectors pull data in from outside sources.
	TypeExternalImport = "EXTERNAL_IMPORT"

	// TypeInternalEnrichment connectors enrich existing entities.
	TypeInternalEnrichment = "INTERNAL_ENRICHMENT"

	// TypeInternalExportFile connectors produce export files.
	TypeInternalExportFile = "INTERNAL_EXPORT_FILE"

	// TypeInternalImportFile connectors ingest uploaded files.
	TypeInternalImportFile = "INTERNAL_IMPORT_FILE"
)

// Connector describes one registered worker connector instance.
type Connector struct {
	// ID is the stable connector identifier.
	ID string `json:"id"`

	// Name is the human-readable connector name (e.g., "export-stix2-csv").
	Name string `json:"name"`

	// Type is one of the connector type tags above.
	Type string `json:"connector_type"`

	// Scope lists the formats (mime types) the connector handles.
	Scope []string `json:"connector_scope"`

	// Active reports whether the connector accepts new work.
	Active bool `json:"active"`

	// Queue is the name of the dispatch queue the connector consumes.
	// Empty means the default queue derived from the connector id.
	Queue string `json:"queue,omitempty"`

	// RegisteredAt is the timestamp of the current registration.
	RegisteredAt time.Time `json:"registered_at"`
}

// SupportsFormat reports whether the connector's scope contains the format.
func (c *Connector) SupportsFormat(format string) bool {
	for _, s := range c.Scope {
		if s == format {
			return true
		}
	}
	return false
}

// IsExporter reports whether the connector produces export files.
func (c *Connector) IsExporter() bool {
	return c.Type == TypeInternalExportFile
}

// Resolver is the discovery interface the domain layer consumes. The etcd
// client implements it; tests use in-memory fakes.
type Resolver interface {
	// Connector returns one connector by id.
	Connector(ctx context.Context, id string) (*Connector, error)

	// ConnectorsForExport returns the export-capable connectors registered
	// for the given format. With onlyActive set, inactive connectors are
	// filtered out.
	ConnectorsForExport(ctx context.Context, format string, onlyActive bool) ([]*Connector, error)
}
