package observable

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/stixgraph/stixgraph/connector"
	"github.com/stixgraph/stixgraph/queue"
)

// ConnectorLister is the discovery surface the auto enricher needs: the
// full registered connector population, filtered locally by type and scope.
type ConnectorLister interface {
	All(ctx context.Context) ([]*connector.Connector, error)
}

// AutoEnricher dispatches enrichment tasks to every active enrichment
// connector whose scope covers the entity type. It backs the fire-and-forget
// enrichment step of observable creation.
type AutoEnricher struct {
	connectors ConnectorLister
	works      WorkCreator
	publisher  queue.Publisher
	logger     *slog.Logger
}

// NewAutoEnricher builds an AutoEnricher.
func NewAutoEnricher(connectors ConnectorLister, works WorkCreator, publisher queue.Publisher, logger *slog.Logger) *AutoEnricher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AutoEnricher{
		connectors: connectors,
		works:      works,
		publisher:  publisher,
		logger:     logger,
	}
}

// AskEnrich enqueues one enrichment task per eligible connector. A connector
// whose work creation or dispatch fails is logged and skipped; the first
// failure is remembered so the caller can log that enrichment was partial.
func (e *AutoEnricher) AskEnrich(ctx context.Context, entityID, entityType string) error {
	connectors, err := e.connectors.All(ctx)
	if err != nil {
		return fmt.Errorf("list connectors: %w", err)
	}

	var firstErr error
	for _, conn := range connectors {
		if conn.Type != connector.TypeInternalEnrichment || !conn.Active {
			continue
		}
		if !conn.SupportsFormat(entityType) {
			continue
		}
		if err := e.dispatch(ctx, conn, entityID, entityType); err != nil {
			e.logger.Warn("enrichment dispatch failed",
				"connector", conn.Name, "entity_id", entityID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (e *AutoEnricher) dispatch(ctx context.Context, conn *connector.Connector, entityID, entityType string) error {
	w, job, err := e.works.CreateWork(ctx, conn, entityType, entityID, "", "")
	if err != nil {
		return fmt.Errorf("create work: %w", err)
	}
	message := queue.EnrichmentMessage{
		WorkID:   w.InternalID,
		JobID:    job.InternalID,
		EntityID: entityID,
	}
	if err := e.publisher.PushToConnector(ctx, conn, message); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	return nil
}
