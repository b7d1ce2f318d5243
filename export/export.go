// Package export orchestrates connector export jobs: it discovers the
// export-capable connectors for a format, creates per-connector work/job
// tracking pairs, names the output files, rewrites list queries into the
// connector vocabulary, and fans the dispatch messages out over the queue.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/stixgraph/stixgraph"
	"github.com/stixgraph/stixgraph/connector"
	"github.com/stixgraph/stixgraph/observable"
	"github.com/stixgraph/stixgraph/queue"
	"github.com/stixgraph/stixgraph/store"
	"github.com/stixgraph/stixgraph/work"
)

// EntityScope is the fixed domain tag stamped on every observable export
// message and file name.
const EntityScope = "stix-observable"

// Request parameterizes one export ask.
type Request struct {
	// Format is the mime type the connectors must support.
	Format string

	// EntityID is the single entity to export, empty for bulk list exports.
	EntityID string

	// ExportType is "simple" or "full" for entity exports, "withArgs" or
	// "withoutArgs" for list exports.
	ExportType string

	// MaxMarkingID bounds the export to a marking definition. Resolved for
	// file naming and message metadata only; enforcement is the connector's
	// concern.
	MaxMarkingID string

	// Context is the destination directory context of the produced files.
	Context string

	// ListArgs is the list query of a bulk export, nil for entity exports.
	ListArgs *store.ListArgs
}

// Handle is one successfully enrolled connector export.
type Handle struct {
	Connector *connector.Connector `json:"connector"`
	Work      *work.Work           `json:"work"`
	Job       *work.Job            `json:"job"`
}

// WorkCreator persists work/job tracking pairs, one per enrolled connector.
type WorkCreator interface {
	CreateWork(ctx context.Context, conn *connector.Connector, entityType, entityID, workContext, fileName string) (*work.Work, *work.Job, error)
}

// Orchestrator fans export requests out over the registered connectors.
type Orchestrator struct {
	store      store.EntityStore
	connectors connector.Resolver
	works      WorkCreator
	publisher  queue.Publisher
	mappings   *FieldMappings
	logger     *slog.Logger
	tracer     trace.Tracer
}

// OrchestratorConfig wires the orchestrator dependencies. All fields but
// Mappings, Logger and Tracer are required; Mappings defaults to the
// standard observable vocabulary.
type OrchestratorConfig struct {
	Store      store.EntityStore
	Connectors connector.Resolver
	Works      WorkCreator
	Publisher  queue.Publisher
	Mappings   *FieldMappings
	Logger     *slog.Logger
	Tracer     trace.Tracer
}

// NewOrchestrator validates the configuration and builds the orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("entity store is required")
	}
	if cfg.Connectors == nil {
		return nil, fmt.Errorf("connector resolver is required")
	}
	if cfg.Works == nil {
		return nil, fmt.Errorf("work creator is required")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("queue publisher is required")
	}
	if cfg.Mappings == nil {
		cfg.Mappings = DefaultFieldMappings()
	}
	if err := cfg.Mappings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid field mappings: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("stixgraph/export")
	}
	return &Orchestrator{
		store:      cfg.Store,
		connectors: cfg.Connectors,
		works:      cfg.Works,
		publisher:  cfg.Publisher,
		mappings:   cfg.Mappings,
		logger:     cfg.Logger,
		tracer:     cfg.Tracer,
	}, nil
}

// RequestExport enrolls every export connector registered for the request
// format and returns the handles of the enrollments that succeeded.
//
// Fan-out is parallel and best-effort per connector: a connector whose
// work creation or dispatch fails is logged and left out of the returned
// handles, without affecting the others. Callers must tolerate partial
// enrollment; no ordering is guaranteed between connectors.
func (o *Orchestrator) RequestExport(ctx context.Context, req Request) ([]Handle, error) {
	const op = "export.RequestExport"
	ctx, span := o.tracer.Start(ctx, op)
	defer span.End()

	connectors, err := o.connectors.ConnectorsForExport(ctx, req.Format, true)
	if err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}

	var entity *store.Entity
	if req.EntityID != "" {
		entity, err = o.store.LoadEntityByID(ctx, req.EntityID, observable.AbstractObservable)
		if err != nil {
			return nil, stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"id": req.EntityID})
		}
	}

	var marking *store.Entity
	if req.MaxMarkingID != "" {
		marking, err = o.store.LoadEntityByID(ctx, req.MaxMarkingID, "Marking-Definition")
		if err != nil {
			return nil, stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"marking_id": req.MaxMarkingID})
		}
	}

	listArgs := o.mappings.RewriteListArgs(req.ListArgs)

	var (
		mu      sync.Mutex
		handles []Handle
		wg      sync.WaitGroup
	)
	for _, conn := range connectors {
		wg.Add(1)
		go func(conn *connector.Connector) {
			defer wg.Done()
			handle, err := o.enroll(ctx, conn, req, entity, marking, listArgs)
			if err != nil {
				o.logger.Warn("export connector enrollment failed",
					"connector", conn.Name, "format", req.Format, "error", err)
				return
			}
			mu.Lock()
			handles = append(handles, handle)
			mu.Unlock()
		}(conn)
	}
	wg.Wait()

	return handles, nil
}

// enroll creates one connector's work/job pair and dispatches its message.
func (o *Orchestrator) enroll(ctx context.Context, conn *connector.Connector, req Request, entity, marking *store.Entity, listArgs *queue.ListArgs) (Handle, error) {
	fileName := GenerateExportFileName(req.Format, conn, entity, EntityScope, req.ExportType, marking)

	entityID := ""
	if entity != nil {
		entityID = entity.ID
	}
	w, job, err := o.works.CreateWork(ctx, conn, EntityScope, entityID, req.Context, fileName)
	if err != nil {
		return Handle{}, fmt.Errorf("create work: %w", err)
	}

	message := queue.DispatchMessage{
		WorkID:               w.InternalID,
		JobID:                job.InternalID,
		MaxMarkingDefinition: req.MaxMarkingID,
		ExportType:           req.ExportType,
		EntityType:           EntityScope,
		EntityID:             entityID,
		ListArgs:             listArgs,
		FileContext:          w.WorkContext,
		FileName:             w.WorkFile,
	}
	if err := o.publisher.PushToConnector(ctx, conn, message); err != nil {
		return Handle{}, fmt.Errorf("dispatch: %w", err)
	}
	return Handle{Connector: conn, Work: w, Job: job}, nil
}

// ExportAsk is the user-facing export entry point: it requests the export
// and maps the enrolled handles into pollable export file descriptors.
func (o *Orchestrator) ExportAsk(ctx context.Context, req Request) ([]work.ExportFile, error) {
	handles, err := o.RequestExport(ctx, req)
	if err != nil {
		return nil, err
	}
	files := make([]work.ExportFile, 0, len(handles))
	for _, h := range handles {
		files = append(files, work.WorkToExportFile(h.Work))
	}
	return files, nil
}
