// Package observable implements the stix-cyber-observable domain: the type
// registry, value resolution, syntax validation, and the mutation service
// tying persistence, enrichment, indicator linking, and live notifications
// together.
package observable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stixgraph/stixgraph"
	"github.com/stixgraph/stixgraph/bus"
	"github.com/stixgraph/stixgraph/connector"
	"github.com/stixgraph/stixgraph/files"
	"github.com/stixgraph/stixgraph/queue"
	"github.com/stixgraph/stixgraph/store"
	"github.com/stixgraph/stixgraph/work"
)

// Enricher requests post-creation enrichment of an entity. The connector
// dispatcher implements it; creation treats enrichment failures as
// non-fatal.
type Enricher interface {
	AskEnrich(ctx context.Context, entityID, entityType string) error
}

// WorkCreator persists work/job tracking pairs for connector dispatches.
type WorkCreator interface {
	CreateWork(ctx context.Context, conn *connector.Connector, entityType, entityID, workContext, fileName string) (*work.Work, *work.Job, error)
}

// CreateInput is one observable creation request. Input holds the typed
// attribute bag for the declared Type; CreateIndicator requests best-effort
// derivation of a detection indicator after creation.
type CreateInput struct {
	Type            string
	Input           map[string]any
	CreateIndicator bool
}

// RelationInput describes one meta relationship to attach or detach.
type RelationInput struct {
	ToID             string
	RelationshipType string
}

// RelationsInput describes a batch of meta relationships of one type.
type RelationsInput struct {
	ToIDs            []string
	RelationshipType string
}

// Count pairs a filtered count with the unfiltered total of the index.
type Count struct {
	Count int `json:"count"`
	Total int `json:"total"`
}

// ServiceConfig wires the service dependencies. Store, Checker, Topics and
// Notifier are required; the rest degrade gracefully when absent (optional
// behaviors are skipped, observability falls back to the global providers).
type ServiceConfig struct {
	Store      store.EntityStore
	Index      store.SearchIndex
	Checker    *Checker
	Topics     *bus.Topics
	Notifier   bus.Notifier
	Contexts   bus.ContextStore
	Connectors connector.Resolver
	Works      WorkCreator
	Publisher  queue.Publisher
	Enricher   Enricher
	Linker     *IndicatorLinker
	Files      files.Storage
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Meter      metric.Meter
}

// Service is the stix-cyber-observable mutation and query service.
type Service struct {
	store      store.EntityStore
	index      store.SearchIndex
	checker    *Checker
	topics     *bus.Topics
	notifier   bus.Notifier
	contexts   bus.ContextStore
	connectors connector.Resolver
	works      WorkCreator
	publisher  queue.Publisher
	enricher   Enricher
	linker     *IndicatorLinker
	files      files.Storage
	logger     *slog.Logger
	tracer     trace.Tracer

	createdCounter metric.Int64Counter
}

// NewService validates the configuration and builds the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("entity store is required")
	}
	if cfg.Checker == nil {
		return nil, fmt.Errorf("syntax checker is required")
	}
	if cfg.Topics == nil {
		return nil, fmt.Errorf("topic registry is required")
	}
	if cfg.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("stixgraph/observable")
	}
	if cfg.Meter == nil {
		cfg.Meter = otel.Meter("stixgraph/observable")
	}
	created, err := cfg.Meter.Int64Counter("stixgraph.observables.created")
	if err != nil {
		return nil, fmt.Errorf("register created counter: %w", err)
	}
	return &Service{
		store:          cfg.Store,
		index:          cfg.Index,
		checker:        cfg.Checker,
		topics:         cfg.Topics,
		notifier:       cfg.Notifier,
		contexts:       cfg.Contexts,
		connectors:     cfg.Connectors,
		works:          cfg.Works,
		publisher:      cfg.Publisher,
		enricher:       cfg.Enricher,
		linker:         cfg.Linker,
		files:          cfg.Files,
		logger:         cfg.Logger,
		tracer:         cfg.Tracer,
		createdCounter: created,
	}, nil
}

// notify publishes a bus event. Delivery failures are logged, never
// propagated: a completed mutation is not rolled back because the live
// stream missed it.
func (s *Service) notify(ctx context.Context, topic, actor string, payload any) {
	if topic == "" {
		return
	}
	if err := s.notifier.Notify(ctx, topic, actor, payload); err != nil {
		s.logger.Warn("event notification failed", "topic", topic, "error", err)
	}
}

// Create validates and persists a new observable.
//
// The type must be a registered observable type and the typed attribute bag
// must be present and syntactically valid. After persistence, enrichment is
// requested and (when asked) an indicator is derived; both are best-effort
// and logged on failure. The Added notification closes the operation.
func (s *Service) Create(ctx context.Context, actor string, input CreateInput) (*store.Entity, error) {
	const op = "observable.Create"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	if !IsObservable(input.Type) {
		return nil, stixgraph.NewUnsupportedTypeError(op, stixgraph.ErrUnsupportedType).
			WithContext(map[string]any{"type": input.Type})
	}
	if input.Input == nil {
		return nil, stixgraph.NewMissingInputError(op, stixgraph.ErrMissingInput).
			WithContext(map[string]any{"type": input.Type})
	}
	if diag := s.checker.Check(input.Type, input.Input); diag != nil {
		return nil, stixgraph.NewMalformedError(op, stixgraph.ErrMalformedObservable).
			WithContext(map[string]any{"type": diag.EntityType, "rule": diag.Rule, "detail": diag.Message})
	}

	created, err := s.store.CreateEntity(ctx, actor, input.Input, input.Type)
	if err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	s.createdCounter.Add(ctx, 1)

	if s.enricher != nil {
		if err := s.enricher.AskEnrich(ctx, created.ID, created.EntityType); err != nil {
			s.logger.Warn("enrichment request failed", "id", created.ID, "error", err)
		}
	}

	if input.CreateIndicator && s.linker != nil {
		res := s.linker.Link(ctx, actor, created, input.Input)
		switch {
		case res.Err != nil:
			s.logger.Info("cannot create indicator", "id", created.ID, "error", res.Err)
		case res.Skipped != "":
			s.logger.Debug("indicator creation skipped", "id", created.ID, "reason", res.Skipped)
		}
	}

	s.notify(ctx, s.topics.Added(AbstractObservable), actor, created)
	return created, nil
}

// FindByID loads one observable by id.
func (s *Service) FindByID(ctx context.Context, id string) (*store.Entity, error) {
	const op = "observable.FindByID"
	entity, err := s.store.LoadEntityByID(ctx, id, AbstractObservable)
	if err != nil {
		return nil, stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"id": id})
	}
	return entity, nil
}

// FindAll lists observables. Non-observable entries in args.Types are
// dropped; an empty selection falls back to the whole observable family.
func (s *Service) FindAll(ctx context.Context, args store.ListArgs) ([]*store.Entity, error) {
	const op = "observable.FindAll"
	types := make([]string, 0, len(args.Types))
	for _, t := range args.Types {
		if IsObservable(t) {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		types = []string{AbstractObservable}
	}
	entities, err := s.store.ListEntities(ctx, types, []string{"standard_id"}, args)
	if err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	return entities, nil
}

// Number returns the filtered count and the unfiltered total of the
// observable index. The total ignores the end-date bound so dashboards can
// show progress against the full population.
func (s *Service) Number(ctx context.Context, args store.ListArgs) (Count, error) {
	const op = "observable.Number"
	if s.index == nil {
		return Count{}, stixgraph.NewInternalError(op, fmt.Errorf("search index not configured"))
	}
	count, err := s.index.Count(ctx, store.IndexObservables, args)
	if err != nil {
		return Count{}, stixgraph.NewInternalError(op, err)
	}
	totalArgs := args
	totalArgs.EndDate = time.Time{}
	total, err := s.index.Count(ctx, store.IndexObservables, totalArgs)
	if err != nil {
		return Count{}, stixgraph.NewInternalError(op, err)
	}
	return Count{Count: count, Total: total}, nil
}

// ReportsTimeSeries buckets the reports containing the given observable.
func (s *Service) ReportsTimeSeries(ctx context.Context, observableID string, args store.TimeSeriesArgs) ([]store.TimeSeriesPoint, error) {
	const op = "observable.ReportsTimeSeries"
	filters := []store.TimeSeriesFilter{{IsRelation: true, Type: RelationObject, Value: observableID}}
	points, err := s.store.TimeSeriesEntities(ctx, "Report", filters, args)
	if err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	return points, nil
}

// ObservablesTimeSeries buckets observable creation over time, for one
// concrete type or the whole family when entityType is empty.
func (s *Service) ObservablesTimeSeries(ctx context.Context, entityType string, args store.TimeSeriesArgs) ([]store.TimeSeriesPoint, error) {
	const op = "observable.ObservablesTimeSeries"
	target := AbstractObservable
	if entityType != "" {
		target = entityType
	}
	points, err := s.store.TimeSeriesEntities(ctx, target, nil, args)
	if err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	return points, nil
}

// Delete removes an observable and its attached relations. Deletion is a
// plain delegation to the store; no event is published for it.
func (s *Service) Delete(ctx context.Context, actor, id string) (string, error) {
	const op = "observable.Delete"
	deleted, err := s.store.DeleteEntityByID(ctx, actor, id, AbstractObservable)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"id": id})
		}
		return "", stixgraph.NewInternalError(op, err)
	}
	return deleted, nil
}

// AddRelation attaches one meta relationship to an observable. Only meta
// relationship types are accepted through this path.
func (s *Service) AddRelation(ctx context.Context, actor, id string, input RelationInput) (*store.Entity, error) {
	const op = "observable.AddRelation"
	if !IsMetaRelationship(input.RelationshipType) {
		return nil, stixgraph.NewUnsupportedRelationError(op, stixgraph.ErrUnsupportedRelation).
			WithContext(map[string]any{"relationship_type": input.RelationshipType})
	}
	if _, err := s.store.LoadEntityByID(ctx, id, AbstractObservable); err != nil {
		return nil, stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"id": id})
	}
	relation := store.Relation{FromID: id, ToID: input.ToID, RelationshipType: input.RelationshipType}
	if _, err := s.store.CreateRelation(ctx, actor, relation); err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	return s.reloadAndNotifyEdited(ctx, op, actor, id)
}

// AddRelations attaches a batch of meta relationships of one type in a
// single bulk write, followed by a single Edited notification.
func (s *Service) AddRelations(ctx context.Context, actor, id string, input RelationsInput) (*store.Entity, error) {
	const op = "observable.AddRelations"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	if !IsMetaRelationship(input.RelationshipType) {
		return nil, stixgraph.NewUnsupportedRelationError(op, stixgraph.ErrUnsupportedRelation).
			WithContext(map[string]any{"relationship_type": input.RelationshipType})
	}
	if _, err := s.store.LoadEntityByID(ctx, id, AbstractObservable); err != nil {
		return nil, stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"id": id})
	}
	relations := make([]store.Relation, 0, len(input.ToIDs))
	for _, toID := range input.ToIDs {
		relations = append(relations, store.Relation{FromID: id, ToID: toID, RelationshipType: input.RelationshipType})
	}
	if _, err := s.store.CreateRelations(ctx, actor, relations); err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	return s.reloadAndNotifyEdited(ctx, op, actor, id)
}

// RemoveRelation detaches all meta relationships of one type between the
// observable and a target entity.
func (s *Service) RemoveRelation(ctx context.Context, actor, id, toID, relationshipType string) (*store.Entity, error) {
	const op = "observable.RemoveRelation"
	if !IsMetaRelationship(relationshipType) {
		return nil, stixgraph.NewUnsupportedRelationError(op, stixgraph.ErrUnsupportedRelation).
			WithContext(map[string]any{"relationship_type": relationshipType})
	}
	if _, err := s.store.LoadEntityByID(ctx, id, AbstractObservable); err != nil {
		return nil, stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"id": id})
	}
	if err := s.store.DeleteRelationsByFromAndTo(ctx, actor, id, toID, relationshipType, AbstractMetaRelationship); err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	return s.reloadAndNotifyEdited(ctx, op, actor, id)
}

// EditField applies attribute patches to an observable in one write.
func (s *Service) EditField(ctx context.Context, actor, id string, patches []store.AttributePatch) (*store.Entity, error) {
	const op = "observable.EditField"
	if err := s.store.UpdateAttribute(ctx, actor, id, AbstractObservable, patches); err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	return s.reloadAndNotifyEdited(ctx, op, actor, id)
}

func (s *Service) reloadAndNotifyEdited(ctx context.Context, op, actor, id string) (*store.Entity, error) {
	entity, err := s.store.LoadEntityByID(ctx, id, AbstractObservable)
	if err != nil {
		return nil, stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"id": id})
	}
	s.notify(ctx, s.topics.Edited(AbstractObservable), actor, entity)
	return entity, nil
}

// EditContext declares that an actor started editing an observable. The
// context record is stored with a TTL and the edit is broadcast.
func (s *Service) EditContext(ctx context.Context, actor, id, payload string) (*store.Entity, error) {
	const op = "observable.EditContext"
	if s.contexts == nil {
		return nil, stixgraph.NewInternalError(op, fmt.Errorf("context store not configured"))
	}
	if err := s.contexts.SetEditContext(ctx, actor, id, payload); err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	return s.reloadAndNotifyEdited(ctx, op, actor, id)
}

// CleanContext withdraws an actor's edit context. Cleaning an absent
// context is a no-op that still notifies, so late listeners converge.
func (s *Service) CleanContext(ctx context.Context, actor, id string) (*store.Entity, error) {
	const op = "observable.CleanContext"
	if s.contexts == nil {
		return nil, stixgraph.NewInternalError(op, fmt.Errorf("context store not configured"))
	}
	if err := s.contexts.CleanEditContext(ctx, actor, id); err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	return s.reloadAndNotifyEdited(ctx, op, actor, id)
}

// AskEnrichment dispatches an explicit enrichment request to one connector
// and returns the tracking work.
func (s *Service) AskEnrichment(ctx context.Context, actor, id, connectorID string) (*work.Work, error) {
	const op = "observable.AskEnrichment"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	if s.connectors == nil || s.works == nil || s.publisher == nil {
		return nil, stixgraph.NewInternalError(op, fmt.Errorf("enrichment dispatch not configured"))
	}
	entity, err := s.store.LoadEntityByID(ctx, id, AbstractObservable)
	if err != nil {
		return nil, stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"id": id})
	}
	conn, err := s.connectors.Connector(ctx, connectorID)
	if err != nil {
		return nil, stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"connector_id": connectorID})
	}
	w, job, err := s.works.CreateWork(ctx, conn, entity.EntityType, entity.ID, "", "")
	if err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	message := queue.EnrichmentMessage{WorkID: w.InternalID, JobID: job.InternalID, EntityID: entity.ID}
	if err := s.publisher.PushToConnector(ctx, conn, message); err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	return w, nil
}

// ImportPush stores an uploaded document for later import processing.
func (s *Service) ImportPush(ctx context.Context, actor, id string, file files.File) (*files.Stored, error) {
	const op = "observable.ImportPush"
	if s.files == nil {
		return nil, stixgraph.NewInternalError(op, fmt.Errorf("file storage not configured"))
	}
	entity, err := s.store.LoadEntityByID(ctx, id, AbstractObservable)
	if err != nil {
		return nil, stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"id": id})
	}
	opts := files.UploadOptions{EntityType: entity.EntityType, EntityID: entity.ID}
	stored, err := s.files.Upload(ctx, actor, files.PurposeImport, file, opts)
	if err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	s.notify(ctx, s.topics.Edited(AbstractObservable), actor, entity)
	return stored, nil
}

// ExportPush stores a connector-produced export document.
func (s *Service) ExportPush(ctx context.Context, actor, id string, file files.File, exportContext, listArgs string) (*files.Stored, error) {
	const op = "observable.ExportPush"
	if s.files == nil {
		return nil, stixgraph.NewInternalError(op, fmt.Errorf("file storage not configured"))
	}
	entity, err := s.store.LoadEntityByID(ctx, id, AbstractObservable)
	if err != nil {
		return nil, stixgraph.NewNotFoundError(op, err).WithContext(map[string]any{"id": id})
	}
	opts := files.UploadOptions{
		EntityType: entity.EntityType,
		EntityID:   entity.ID,
		Context:    exportContext,
		ListArgs:   listArgs,
	}
	stored, err := s.files.Upload(ctx, actor, files.PurposeExport, file, opts)
	if err != nil {
		return nil, stixgraph.NewInternalError(op, err)
	}
	s.notify(ctx, s.topics.Edited(AbstractObservable), actor, entity)
	return stored, nil
}
