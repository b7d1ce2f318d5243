// Package store defines the entity/relation persistence contract consumed by
// the domain layer, together with an in-memory implementation used for tests
// and embedded deployments.
//
// The production backends (graph database and search index) live outside
// this module; the domain core only ever talks to the narrow interfaces
// declared here.
package store

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by store operations.
var (
	// ErrNotFound is returned when a requested entity or relation does not exist.
	ErrNotFound = errors.New("store: entity not found")

	// ErrInvalidInput is returned when an input record is missing required fields.
	ErrInvalidInput = errors.New("store: invalid input")

	// ErrStorageFailed is returned when the underlying storage backend fails.
	ErrStorageFailed = errors.New("store: storage operation failed")
)

// Entity is a typed record held by the graph store. The attribute bag shape
// is determined by EntityType and validated by the domain layer before
// persistence.
type Entity struct {
	// ID is the stable internal identifier. Auto-generated if empty on create.
	ID string `json:"id"`

	// EntityType is the concrete type tag (e.g., "Mutex", "StixFile").
	EntityType string `json:"entity_type"`

	// Attributes contains the type-specific attribute bag
	// (e.g., "path", "md5", "pid", "account_login").
	Attributes map[string]any `json:"attributes,omitempty"`

	// CreatedAt is the timestamp when the entity was created.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the entity was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// Attr returns the named attribute as a string. The second return reports
// whether the attribute is present and non-empty.
func (e *Entity) Attr(key string) (string, bool) {
	if e == nil || e.Attributes == nil {
		return "", false
	}
	v, ok := e.Attributes[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Relation is a directed edge between two entities.
type Relation struct {
	// ID is the stable internal identifier. Auto-generated if empty on create.
	ID string `json:"id"`

	// FromID is the source entity id.
	FromID string `json:"from_id"`

	// ToID is the target entity id.
	ToID string `json:"to_id"`

	// RelationshipType is the edge type (e.g., "object-label", "based-on").
	RelationshipType string `json:"relationship_type"`

	// CreatedAt is the timestamp when the relation was created.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that the relation has all required fields populated.
func (r *Relation) Validate() error {
	if r.FromID == "" {
		return errors.New("relation FromID cannot be empty")
	}
	if r.ToID == "" {
		return errors.New("relation ToID cannot be empty")
	}
	if r.RelationshipType == "" {
		return errors.New("relation RelationshipType cannot be empty")
	}
	return nil
}

// Filter restricts a list query to entities whose attribute matches one of
// the given values.
type Filter struct {
	// Key is the attribute name, in the domain layer's internal vocabulary.
	Key string `json:"key"`

	// Values are the accepted attribute values.
	Values []string `json:"values"`
}

// ListArgs parameterizes list/search queries over the store.
type ListArgs struct {
	// Types restricts results to the given entity types. An abstract type
	// tag matches every concrete type beneath it.
	Types []string `json:"types,omitempty"`

	// Search is a free-text search term applied by the backend.
	Search string `json:"search,omitempty"`

	// Filters are attribute filters combined with AND semantics.
	Filters []Filter `json:"filters,omitempty"`

	// OrderBy names the attribute used for ordering.
	OrderBy string `json:"orderBy,omitempty"`

	// OrderMode is "asc" or "desc". Defaults to "asc".
	OrderMode string `json:"orderMode,omitempty"`

	// First limits the number of returned entities. Zero means no limit.
	First int `json:"first,omitempty"`

	// After is an opaque pagination cursor.
	After string `json:"after,omitempty"`

	// StartDate and EndDate bound time-filtered queries.
	StartDate time.Time `json:"startDate,omitempty"`
	EndDate   time.Time `json:"endDate,omitempty"`
}

// TimeSeriesArgs parameterizes time-bucketed aggregation queries.
type TimeSeriesArgs struct {
	// Field is the timestamp attribute to bucket on.
	Field string `json:"field"`

	// Operation is the aggregation ("count" is the only one the domain uses).
	Operation string `json:"operation"`

	// StartDate and EndDate bound the series.
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`

	// Interval is the bucket width ("day", "month", "year").
	Interval string `json:"interval"`
}

// TimeSeriesFilter restricts a time series to entities connected through a
// relation to a specific entity.
type TimeSeriesFilter struct {
	// IsRelation marks the filter as a relation-based restriction.
	IsRelation bool `json:"isRelation"`

	// Type is the relationship type to follow.
	Type string `json:"type"`

	// Value is the id of the entity the relation must point at.
	Value string `json:"value"`
}

// TimeSeriesPoint is one bucket of a time series.
type TimeSeriesPoint struct {
	Date  time.Time `json:"date"`
	Value int       `json:"value"`
}

// AttributePatch is one field edit applied through UpdateAttribute.
type AttributePatch struct {
	// Key is the attribute name.
	Key string `json:"key"`

	// Values are the new values. Single-valued attributes use one element.
	Values []any `json:"value"`
}

// EntityStore is the persistence contract for entities and relations.
//
// Implementations are expected to be safe for concurrent use. Per-attribute
// update semantics (last-write-wins or backend transaction isolation) are
// the backend's responsibility; the domain layer issues one logical write
// per mutation and holds no cross-call locks.
type EntityStore interface {
	// LoadEntityByID returns the entity with the given id, checking that it
	// belongs under the given abstract type. Returns ErrNotFound if absent.
	LoadEntityByID(ctx context.Context, id, abstractType string) (*Entity, error)

	// ListEntities returns entities of the given types matching args.
	ListEntities(ctx context.Context, types []string, indexedFields []string, args ListArgs) ([]*Entity, error)

	// CreateEntity persists a new entity of the given type with the given
	// attribute bag and returns the stored record.
	CreateEntity(ctx context.Context, actor string, attributes map[string]any, entityType string) (*Entity, error)

	// CreateRelation persists a single directed edge.
	CreateRelation(ctx context.Context, actor string, input Relation) (*Relation, error)

	// CreateRelations persists a batch of edges in one bulk call.
	CreateRelations(ctx context.Context, actor string, inputs []Relation) ([]*Relation, error)

	// DeleteEntityByID removes the entity and its attached relations.
	DeleteEntityByID(ctx context.Context, actor, id, abstractType string) (string, error)

	// DeleteRelationsByFromAndTo removes all edges of the given type between
	// the two entities.
	DeleteRelationsByFromAndTo(ctx context.Context, actor, fromID, toID, relationshipType, abstractType string) error

	// UpdateAttribute applies attribute patches within one write transaction.
	UpdateAttribute(ctx context.Context, actor, id, abstractType string, patches []AttributePatch) error

	// TimeSeriesEntities aggregates entities of the given type into time
	// buckets, optionally restricted through relation filters.
	TimeSeriesEntities(ctx context.Context, entityType string, filters []TimeSeriesFilter, args TimeSeriesArgs) ([]TimeSeriesPoint, error)
}

// SearchIndex exposes the count queries backed by the search engine.
type SearchIndex interface {
	// Count returns the number of documents in the index matching args.
	Count(ctx context.Context, index string, args ListArgs) (int, error)
}

// IndexObservables is the search index holding cyber observables.
const IndexObservables = "stix_cyber_observables"
